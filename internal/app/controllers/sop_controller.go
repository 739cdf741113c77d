package controllers

import (
	"apex-http-service/internal/domain/services"
	"apex-http-service/internal/domain/services/container"
	"apex-http-service/internal/error/code"
	"apex-http-service/internal/error/response"

	"github.com/gin-gonic/gin"
)

// InterfaceSOPController 定义SOP控制器接口
type InterfaceSOPController interface {
	GetSOPs()
	GetSOP()
	CreateSOP()
	UpdateSOP()
	DeleteSOP()
}

// SOPController 处理标准作业程序的请求
type SOPController struct {
	baseController
}

// NewSOPController 创建一个新的SOP控制器
func NewSOPController(ctx *gin.Context, container *container.ServiceContainer) *SOPController {
	return &SOPController{baseController{Ctx: ctx, Container: container}}
}

// HandleSOPFunc 返回一个处理SOP请求的Gin处理函数
func HandleSOPFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewSOPController(ctx, container)

		switch method {
		case "getSOPs":
			controller.GetSOPs()
		case "getSOP":
			controller.GetSOP()
		case "createSOP":
			controller.CreateSOP()
		case "updateSOP":
			controller.UpdateSOP()
		case "deleteSOP":
			controller.DeleteSOP()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "无效的方法", nil)
		}
	}
}

func (c *SOPController) sopService() services.InterfaceSOPService {
	return c.service("sop").(services.InterfaceSOPService)
}

// 1. GetSOPs 获取SOP列表
// @Summary 获取SOP列表
// @Tags SOP
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码，默认为1"
// @Param page_size query int false "每页条数，默认为20"
// @Param property_id query int false "物业ID"
// @Param incident_type query string false "事件类型"
// @Param status query string false "draft, active, archived"
// @Param search query string false "标题"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /sops [get]
func (c *SOPController) GetSOPs() {
	var q services.SOPQuery
	if !c.bindQuery(&q) {
		return
	}
	q.Normalize()

	sops, total, err := c.sopService().ListSOPs(c.Ctx.Request.Context(), q)
	if err != nil {
		c.fail(err)
		return
	}
	response.Page(c.Ctx, sops, total, q.Page, q.PageSize)
}

// 2. GetSOP 获取SOP详情
// @Summary 获取SOP详情
// @Tags SOP
// @Produce json
// @Security BearerAuth
// @Param id path int true "SOP ID"
// @Success 200 {object} response.Response{data=models.SOP}
// @Failure 404 {object} ErrorResponse
// @Router /sops/{id} [get]
func (c *SOPController) GetSOP() {
	id, ok := c.pathID("id")
	if !ok {
		return
	}
	sop, err := c.sopService().GetSOP(c.Ctx.Request.Context(), id)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, sop)
}

// 3. CreateSOP 创建SOP
// @Summary 创建SOP
// @Description 至少包含一个步骤，步骤序号规整为 1..n
// @Tags SOP
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sop body services.SOPInput true "SOP信息"
// @Success 201 {object} response.Response{data=models.SOP}
// @Failure 400 {object} ErrorResponse
// @Router /sops [post]
func (c *SOPController) CreateSOP() {
	var in services.SOPInput
	if !c.bindJSON(&in) {
		return
	}
	sop, err := c.sopService().CreateSOP(c.Ctx.Request.Context(), c.actor(), in)
	if err != nil {
		c.fail(err)
		return
	}
	response.Created(c.Ctx, sop)
}

// 4. UpdateSOP 更新SOP
// @Summary 更新SOP
// @Description 步骤变化时版本号递增
// @Tags SOP
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "SOP ID"
// @Param sop body services.SOPInput true "SOP信息"
// @Success 200 {object} response.Response{data=models.SOP}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /sops/{id} [put]
func (c *SOPController) UpdateSOP() {
	id, ok := c.pathID("id")
	if !ok {
		return
	}
	var in services.SOPInput
	if !c.bindJSON(&in) {
		return
	}
	sop, err := c.sopService().UpdateSOP(c.Ctx.Request.Context(), c.actor(), id, in)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, sop)
}

// 5. DeleteSOP 删除SOP
// @Summary 删除SOP
// @Tags SOP
// @Produce json
// @Security BearerAuth
// @Param id path int true "SOP ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} ErrorResponse
// @Router /sops/{id} [delete]
func (c *SOPController) DeleteSOP() {
	id, ok := c.pathID("id")
	if !ok {
		return
	}
	if err := c.sopService().DeleteSOP(c.Ctx.Request.Context(), c.actor(), id); err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, gin.H{"id": id})
}

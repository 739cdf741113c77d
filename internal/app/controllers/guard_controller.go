package controllers

import (
	"strconv"

	"apex-http-service/internal/domain/services"
	"apex-http-service/internal/domain/services/container"
	"apex-http-service/internal/error/code"
	"apex-http-service/internal/error/response"

	"github.com/gin-gonic/gin"
)

// InterfaceGuardController 定义警卫控制器接口
type InterfaceGuardController interface {
	GetGuards()
	GetGuard()
	CreateGuard()
	UpdateGuard()
	DeleteGuard()
	UpdateGuardStatus()
	GetAvailableGuards()
}

// GuardController 处理警卫相关的请求
type GuardController struct {
	baseController
}

// NewGuardController 创建一个新的警卫控制器
func NewGuardController(ctx *gin.Context, container *container.ServiceContainer) *GuardController {
	return &GuardController{baseController{Ctx: ctx, Container: container}}
}

// HandleGuardFunc 返回一个处理警卫请求的Gin处理函数
func HandleGuardFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewGuardController(ctx, container)

		switch method {
		case "getGuards":
			controller.GetGuards()
		case "getGuard":
			controller.GetGuard()
		case "createGuard":
			controller.CreateGuard()
		case "updateGuard":
			controller.UpdateGuard()
		case "deleteGuard":
			controller.DeleteGuard()
		case "updateGuardStatus":
			controller.UpdateGuardStatus()
		case "getAvailableGuards":
			controller.GetAvailableGuards()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "无效的方法", nil)
		}
	}
}

func (c *GuardController) guardService() services.InterfaceGuardService {
	return c.service("guard").(services.InterfaceGuardService)
}

// 1. GetGuards 获取警卫列表
// @Summary 获取警卫列表
// @Tags Guard
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码，默认为1"
// @Param page_size query int false "每页条数，默认为20"
// @Param status query string false "值班状态"
// @Param property_id query int false "当前物业"
// @Param search query string false "姓名或工号"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /guards [get]
func (c *GuardController) GetGuards() {
	var q services.GuardQuery
	if !c.bindQuery(&q) {
		return
	}
	q.Normalize()

	guards, total, err := c.guardService().ListGuards(c.Ctx.Request.Context(), q)
	if err != nil {
		c.fail(err)
		return
	}
	response.Page(c.Ctx, guards, total, q.Page, q.PageSize)
}

// 2. GetGuard 获取警卫详情
// @Summary 获取警卫详情
// @Tags Guard
// @Produce json
// @Security BearerAuth
// @Param id path int true "警卫ID"
// @Success 200 {object} response.Response{data=models.Guard}
// @Failure 404 {object} ErrorResponse
// @Router /guards/{id} [get]
func (c *GuardController) GetGuard() {
	id, ok := c.pathID("id")
	if !ok {
		return
	}
	guard, err := c.guardService().GetGuard(c.Ctx.Request.Context(), id)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, guard)
}

// 3. CreateGuard 创建警卫
// @Summary 创建警卫
// @Tags Guard
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param guard body services.GuardInput true "警卫信息"
// @Success 201 {object} response.Response{data=models.Guard}
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /guards [post]
func (c *GuardController) CreateGuard() {
	var in services.GuardInput
	if !c.bindJSON(&in) {
		return
	}
	guard, err := c.guardService().CreateGuard(c.Ctx.Request.Context(), c.actor(), in)
	if err != nil {
		c.fail(err)
		return
	}
	response.Created(c.Ctx, guard)
}

// 4. UpdateGuard 更新警卫
// @Summary 更新警卫
// @Tags Guard
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "警卫ID"
// @Param guard body services.GuardInput true "警卫信息"
// @Success 200 {object} response.Response{data=models.Guard}
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /guards/{id} [put]
func (c *GuardController) UpdateGuard() {
	id, ok := c.pathID("id")
	if !ok {
		return
	}
	var in services.GuardInput
	if !c.bindJSON(&in) {
		return
	}
	guard, err := c.guardService().UpdateGuard(c.Ctx.Request.Context(), c.actor(), id, in)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, guard)
}

// 5. DeleteGuard 删除警卫
// @Summary 删除警卫
// @Description 执行派遣中的警卫不能删除
// @Tags Guard
// @Produce json
// @Security BearerAuth
// @Param id path int true "警卫ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /guards/{id} [delete]
func (c *GuardController) DeleteGuard() {
	id, ok := c.pathID("id")
	if !ok {
		return
	}
	if err := c.guardService().DeleteGuard(c.Ctx.Request.Context(), c.actor(), id); err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, gin.H{"id": id})
}

// 6. UpdateGuardStatus 更新警卫值班状态
// @Summary 更新警卫状态
// @Description 上报值班状态、所在物业和位置
// @Tags Guard
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "警卫ID"
// @Param status body services.GuardStatusInput true "状态信息"
// @Success 200 {object} response.Response{data=models.Guard}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /guards/{id}/status [patch]
func (c *GuardController) UpdateGuardStatus() {
	id, ok := c.pathID("id")
	if !ok {
		return
	}
	var in services.GuardStatusInput
	if !c.bindJSON(&in) {
		return
	}
	guard, err := c.guardService().UpdateStatus(c.Ctx.Request.Context(), c.actor(), id, in)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, guard)
}

// 7. GetAvailableGuards 可派遣的警卫
// @Summary 可派遣警卫
// @Description 返回在岗警卫，可按物业过滤
// @Tags Guard
// @Produce json
// @Security BearerAuth
// @Param property_id query int false "物业ID"
// @Success 200 {object} response.Response{data=[]models.Guard}
// @Router /guards/available [get]
func (c *GuardController) GetAvailableGuards() {
	var propertyID *uint
	if raw := c.Ctx.Query("property_id"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			response.ParamError(c.Ctx, "Invalid property_id")
			return
		}
		id := uint(v)
		propertyID = &id
	}
	guards, err := c.guardService().ListAvailable(c.Ctx.Request.Context(), propertyID)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, guards)
}

package controllers

import (
	"apex-http-service/internal/domain/services"
	"apex-http-service/internal/domain/services/container"
	"apex-http-service/internal/error/code"
	"apex-http-service/internal/error/response"

	"github.com/gin-gonic/gin"
)

// DispatchController 处理警卫派遣请求
type DispatchController struct {
	baseController
}

// NewDispatchController 创建一个新的派遣控制器
func NewDispatchController(ctx *gin.Context, container *container.ServiceContainer) *DispatchController {
	return &DispatchController{baseController{Ctx: ctx, Container: container}}
}

// HandleDispatchFunc 返回一个处理派遣请求的Gin处理函数
func HandleDispatchFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewDispatchController(ctx, container)

		switch method {
		case "getDispatches":
			controller.GetDispatches()
		case "getDispatch":
			controller.GetDispatch()
		case "createDispatch":
			controller.CreateDispatch()
		case "updateDispatchStatus":
			controller.UpdateDispatchStatus()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "无效的方法", nil)
		}
	}
}

func (c *DispatchController) dispatchService() services.InterfaceDispatchService {
	return c.service("dispatch").(services.InterfaceDispatchService)
}

// 1. GetDispatches 获取派遣列表
// @Summary 获取派遣列表
// @Tags Dispatch
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码，默认为1"
// @Param page_size query int false "每页条数，默认为20"
// @Param incident_id query int false "事件ID"
// @Param guard_id query int false "警卫ID"
// @Param status query string false "派遣状态"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /dispatch [get]
func (c *DispatchController) GetDispatches() {
	var q services.DispatchQuery
	if !c.bindQuery(&q) {
		return
	}
	q.Normalize()

	dispatches, total, err := c.dispatchService().ListDispatches(c.Ctx.Request.Context(), q)
	if err != nil {
		c.fail(err)
		return
	}
	response.Page(c.Ctx, dispatches, total, q.Page, q.PageSize)
}

// 2. GetDispatch 获取派遣详情
// @Summary 获取派遣详情
// @Tags Dispatch
// @Produce json
// @Security BearerAuth
// @Param id path int true "派遣ID"
// @Success 200 {object} response.Response{data=models.Dispatch}
// @Failure 404 {object} ErrorResponse
// @Router /dispatch/{id} [get]
func (c *DispatchController) GetDispatch() {
	id, ok := c.pathID("id")
	if !ok {
		return
	}
	dispatch, err := c.dispatchService().GetDispatch(c.Ctx.Request.Context(), id)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, dispatch)
}

// 3. CreateDispatch 派遣警卫
// @Summary 派遣警卫
// @Description 事件必须未结束且警卫在岗，成功后推送MQTT通知
// @Tags Dispatch
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param dispatch body services.DispatchInput true "派遣信息"
// @Success 201 {object} response.Response{data=models.Dispatch}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 429 {object} response.RateLimitResponse
// @Router /dispatch [post]
func (c *DispatchController) CreateDispatch() {
	var in services.DispatchInput
	if !c.bindJSON(&in) {
		return
	}
	dispatch, err := c.dispatchService().CreateDispatch(c.Ctx.Request.Context(), c.actor(), in)
	if err != nil {
		c.fail(err)
		return
	}
	response.Created(c.Ctx, dispatch)
}

// 4. UpdateDispatchStatus 更新派遣状态
// @Summary 更新派遣状态
// @Description assigned→acknowledged→en_route→on_scene→completed，未结束的派遣可以取消
// @Tags Dispatch
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "派遣ID"
// @Param status body services.DispatchStatusInput true "目标状态"
// @Success 200 {object} response.Response{data=models.Dispatch}
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /dispatch/{id}/status [patch]
func (c *DispatchController) UpdateDispatchStatus() {
	id, ok := c.pathID("id")
	if !ok {
		return
	}
	var in services.DispatchStatusInput
	if !c.bindJSON(&in) {
		return
	}
	dispatch, err := c.dispatchService().UpdateStatus(c.Ctx.Request.Context(), c.actor(), id, in)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, dispatch)
}

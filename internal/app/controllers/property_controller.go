package controllers

import (
	"apex-http-service/internal/domain/services"
	"apex-http-service/internal/domain/services/container"
	"apex-http-service/internal/error/code"
	"apex-http-service/internal/error/response"

	"github.com/gin-gonic/gin"
)

// InterfacePropertyController 定义物业控制器接口
type InterfacePropertyController interface {
	GetProperties()
	GetProperty()
	CreateProperty()
	UpdateProperty()
	DeleteProperty()
	GetZones()
	CreateZone()
	DeleteZone()
}

// PropertyController 处理物业及区域相关的请求
type PropertyController struct {
	baseController
}

// NewPropertyController 创建一个新的物业控制器
func NewPropertyController(ctx *gin.Context, container *container.ServiceContainer) *PropertyController {
	return &PropertyController{baseController{Ctx: ctx, Container: container}}
}

// HandlePropertyFunc 返回一个处理物业请求的Gin处理函数
func HandlePropertyFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewPropertyController(ctx, container)

		switch method {
		case "getProperties":
			controller.GetProperties()
		case "getProperty":
			controller.GetProperty()
		case "createProperty":
			controller.CreateProperty()
		case "updateProperty":
			controller.UpdateProperty()
		case "deleteProperty":
			controller.DeleteProperty()
		case "getZones":
			controller.GetZones()
		case "createZone":
			controller.CreateZone()
		case "deleteZone":
			controller.DeleteZone()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "无效的方法", nil)
		}
	}
}

func (c *PropertyController) propertyService() services.InterfacePropertyService {
	return c.service("property").(services.InterfacePropertyService)
}

// 1. GetProperties 获取物业列表
// @Summary 获取物业列表
// @Tags Property
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码，默认为1"
// @Param page_size query int false "每页条数，默认为20"
// @Param status query string false "状态"
// @Param search query string false "名称、编码或城市"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /properties [get]
func (c *PropertyController) GetProperties() {
	var q services.PropertyQuery
	if !c.bindQuery(&q) {
		return
	}
	q.Normalize()

	properties, total, err := c.propertyService().ListProperties(c.Ctx.Request.Context(), q)
	if err != nil {
		c.fail(err)
		return
	}
	response.Page(c.Ctx, properties, total, q.Page, q.PageSize)
}

// 2. GetProperty 获取物业详情
// @Summary 获取物业详情
// @Tags Property
// @Produce json
// @Security BearerAuth
// @Param id path int true "物业ID"
// @Success 200 {object} response.Response{data=models.Property}
// @Failure 404 {object} ErrorResponse
// @Router /properties/{id} [get]
func (c *PropertyController) GetProperty() {
	id, ok := c.pathID("id")
	if !ok {
		return
	}
	property, err := c.propertyService().GetProperty(c.Ctx.Request.Context(), id)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, property)
}

// 3. CreateProperty 创建物业
// @Summary 创建物业
// @Description 物业编码唯一
// @Tags Property
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param property body services.PropertyInput true "物业信息"
// @Success 201 {object} response.Response{data=models.Property}
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /properties [post]
func (c *PropertyController) CreateProperty() {
	var in services.PropertyInput
	if !c.bindJSON(&in) {
		return
	}
	property, err := c.propertyService().CreateProperty(c.Ctx.Request.Context(), c.actor(), in)
	if err != nil {
		c.fail(err)
		return
	}
	response.Created(c.Ctx, property)
}

// 4. UpdateProperty 更新物业
// @Summary 更新物业
// @Tags Property
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "物业ID"
// @Param property body services.PropertyInput true "物业信息"
// @Success 200 {object} response.Response{data=models.Property}
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /properties/{id} [put]
func (c *PropertyController) UpdateProperty() {
	id, ok := c.pathID("id")
	if !ok {
		return
	}
	var in services.PropertyInput
	if !c.bindJSON(&in) {
		return
	}
	property, err := c.propertyService().UpdateProperty(c.Ctx.Request.Context(), c.actor(), id, in)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, property)
}

// 5. DeleteProperty 删除物业
// @Summary 删除物业
// @Description 存在未结束事件时拒绝删除
// @Tags Property
// @Produce json
// @Security BearerAuth
// @Param id path int true "物业ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /properties/{id} [delete]
func (c *PropertyController) DeleteProperty() {
	id, ok := c.pathID("id")
	if !ok {
		return
	}
	if err := c.propertyService().DeleteProperty(c.Ctx.Request.Context(), c.actor(), id); err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, gin.H{"id": id})
}

// 6. GetZones 获取物业区域
// @Summary 获取物业区域
// @Tags Property
// @Produce json
// @Security BearerAuth
// @Param id path int true "物业ID"
// @Success 200 {object} response.Response{data=[]models.Zone}
// @Failure 404 {object} ErrorResponse
// @Router /properties/{id}/zones [get]
func (c *PropertyController) GetZones() {
	id, ok := c.pathID("id")
	if !ok {
		return
	}
	zones, err := c.propertyService().ListZones(c.Ctx.Request.Context(), id)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, zones)
}

// 7. CreateZone 创建区域
// @Summary 创建区域
// @Tags Property
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "物业ID"
// @Param zone body services.ZoneInput true "区域信息"
// @Success 201 {object} response.Response{data=models.Zone}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /properties/{id}/zones [post]
func (c *PropertyController) CreateZone() {
	id, ok := c.pathID("id")
	if !ok {
		return
	}
	var in services.ZoneInput
	if !c.bindJSON(&in) {
		return
	}
	zone, err := c.propertyService().CreateZone(c.Ctx.Request.Context(), c.actor(), id, in)
	if err != nil {
		c.fail(err)
		return
	}
	response.Created(c.Ctx, zone)
}

// 8. DeleteZone 删除区域
// @Summary 删除区域
// @Tags Property
// @Produce json
// @Security BearerAuth
// @Param id path int true "物业ID"
// @Param zoneId path int true "区域ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} ErrorResponse
// @Router /properties/{id}/zones/{zoneId} [delete]
func (c *PropertyController) DeleteZone() {
	id, ok := c.pathID("id")
	if !ok {
		return
	}
	zoneID, ok := c.pathID("zoneId")
	if !ok {
		return
	}
	if err := c.propertyService().DeleteZone(c.Ctx.Request.Context(), c.actor(), id, zoneID); err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, gin.H{"id": zoneID})
}

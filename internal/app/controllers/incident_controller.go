package controllers

import (
	"apex-http-service/internal/domain/services"
	"apex-http-service/internal/domain/services/container"
	"apex-http-service/internal/error/code"
	"apex-http-service/internal/error/response"

	"github.com/gin-gonic/gin"
)

// InterfaceIncidentController 定义事件控制器接口
type InterfaceIncidentController interface {
	GetIncidents()
	GetIncident()
	CreateIncident()
	UpdateIncident()
	UpdateIncidentStatus()
	AddIncidentEvidence()
	DeleteIncident()
	GetIncidentSOPs()
}

// IncidentController 处理安全事件相关的请求
type IncidentController struct {
	baseController
}

// NewIncidentController 创建一个新的事件控制器
func NewIncidentController(ctx *gin.Context, container *container.ServiceContainer) *IncidentController {
	return &IncidentController{baseController{Ctx: ctx, Container: container}}
}

// HandleIncidentFunc 返回一个处理事件请求的Gin处理函数
func HandleIncidentFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewIncidentController(ctx, container)

		switch method {
		case "getIncidents":
			controller.GetIncidents()
		case "getIncident":
			controller.GetIncident()
		case "createIncident":
			controller.CreateIncident()
		case "updateIncident":
			controller.UpdateIncident()
		case "updateIncidentStatus":
			controller.UpdateIncidentStatus()
		case "addIncidentEvidence":
			controller.AddIncidentEvidence()
		case "deleteIncident":
			controller.DeleteIncident()
		case "getIncidentSOPs":
			controller.GetIncidentSOPs()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "无效的方法", nil)
		}
	}
}

func (c *IncidentController) incidentService() services.InterfaceIncidentService {
	return c.service("incident").(services.InterfaceIncidentService)
}

// 1. GetIncidents 获取事件列表
// @Summary 获取事件列表
// @Description 按上报时间倒序，severity、status 支持逗号分隔的多个值
// @Tags Incident
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码，默认为1"
// @Param page_size query int false "每页条数，默认为20，最大100"
// @Param property_id query int false "物业ID"
// @Param zone_id query int false "区域ID"
// @Param status query string false "状态"
// @Param severity query string false "严重程度"
// @Param tier query int false "告警等级 1-3"
// @Param incident_type query string false "事件类型"
// @Param assigned_guard_id query int false "指派警卫"
// @Param from query string false "上报时间起 (RFC3339)"
// @Param to query string false "上报时间止 (RFC3339)"
// @Param search query string false "标题、描述或编号"
// @Success 200 {object} response.Response{data=response.PageData}
// @Failure 400 {object} ErrorResponse
// @Router /incidents [get]
func (c *IncidentController) GetIncidents() {
	var q services.IncidentQuery
	if !c.bindQuery(&q) {
		return
	}
	q.Normalize()

	incidents, total, err := c.incidentService().ListIncidents(c.Ctx.Request.Context(), q)
	if err != nil {
		c.fail(err)
		return
	}
	response.Page(c.Ctx, incidents, total, q.Page, q.PageSize)
}

// 2. GetIncident 获取事件详情
// @Summary 获取事件详情
// @Tags Incident
// @Produce json
// @Security BearerAuth
// @Param id path int true "事件ID"
// @Success 200 {object} response.Response{data=models.Incident}
// @Failure 404 {object} ErrorResponse
// @Router /incidents/{id} [get]
func (c *IncidentController) GetIncident() {
	id, ok := c.pathID("id")
	if !ok {
		return
	}
	incident, err := c.incidentService().GetIncident(c.Ctx.Request.Context(), id)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, incident)
}

// 3. CreateIncident 上报事件
// @Summary 上报事件
// @Description 自动生成事件编号并计算告警等级
// @Tags Incident
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param incident body services.IncidentInput true "事件信息"
// @Success 201 {object} response.Response{data=models.Incident}
// @Failure 400 {object} ErrorResponse
// @Router /incidents [post]
func (c *IncidentController) CreateIncident() {
	var in services.IncidentInput
	if !c.bindJSON(&in) {
		return
	}
	incident, err := c.incidentService().CreateIncident(c.Ctx.Request.Context(), c.actor(), in)
	if err != nil {
		c.fail(err)
		return
	}
	response.Created(c.Ctx, incident)
}

// 4. UpdateIncident 更新事件
// @Summary 更新事件
// @Tags Incident
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "事件ID"
// @Param incident body services.IncidentInput true "事件信息"
// @Success 200 {object} response.Response{data=models.Incident}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /incidents/{id} [put]
func (c *IncidentController) UpdateIncident() {
	id, ok := c.pathID("id")
	if !ok {
		return
	}
	var in services.IncidentInput
	if !c.bindJSON(&in) {
		return
	}
	incident, err := c.incidentService().UpdateIncident(c.Ctx.Request.Context(), c.actor(), id, in)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, incident)
}

// 5. UpdateIncidentStatus 事件状态流转
// @Summary 事件状态流转
// @Tags Incident
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "事件ID"
// @Param status body services.IncidentStatusInput true "目标状态"
// @Success 200 {object} response.Response{data=models.Incident}
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /incidents/{id}/status [patch]
func (c *IncidentController) UpdateIncidentStatus() {
	id, ok := c.pathID("id")
	if !ok {
		return
	}
	var in services.IncidentStatusInput
	if !c.bindJSON(&in) {
		return
	}
	incident, err := c.incidentService().UpdateStatus(c.Ctx.Request.Context(), c.actor(), id, in)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, incident)
}

// 6. AddIncidentEvidence 追加证据
// @Summary 追加证据
// @Tags Incident
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "事件ID"
// @Param evidence body services.EvidenceInput true "证据"
// @Success 200 {object} response.Response{data=models.Incident}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /incidents/{id}/evidence [post]
func (c *IncidentController) AddIncidentEvidence() {
	id, ok := c.pathID("id")
	if !ok {
		return
	}
	var in services.EvidenceInput
	if !c.bindJSON(&in) {
		return
	}
	incident, err := c.incidentService().AddEvidence(c.Ctx.Request.Context(), c.actor(), id, in)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, incident)
}

// 7. DeleteIncident 删除事件
// @Summary 删除事件
// @Tags Incident
// @Produce json
// @Security BearerAuth
// @Param id path int true "事件ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} ErrorResponse
// @Router /incidents/{id} [delete]
func (c *IncidentController) DeleteIncident() {
	id, ok := c.pathID("id")
	if !ok {
		return
	}
	if err := c.incidentService().DeleteIncident(c.Ctx.Request.Context(), c.actor(), id); err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, gin.H{"id": id})
}

// 8. GetIncidentSOPs 事件适用的SOP
// @Summary 事件适用的SOP
// @Description 物业专属优先于全局，类型专属优先于通用
// @Tags Incident
// @Produce json
// @Security BearerAuth
// @Param id path int true "事件ID"
// @Success 200 {object} response.Response{data=[]models.SOP}
// @Failure 404 {object} ErrorResponse
// @Router /incidents/{id}/sops [get]
func (c *IncidentController) GetIncidentSOPs() {
	id, ok := c.pathID("id")
	if !ok {
		return
	}
	incident, err := c.incidentService().GetIncident(c.Ctx.Request.Context(), id)
	if err != nil {
		c.fail(err)
		return
	}
	sops, err := c.service("sop").(services.InterfaceSOPService).MatchSOPs(c.Ctx.Request.Context(), incident)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, sops)
}

package controllers

import (
	"apex-http-service/internal/domain/services"
	"apex-http-service/internal/domain/services/container"
	"apex-http-service/internal/error/code"
	"apex-http-service/internal/error/response"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportController 处理统计报表请求
type ReportController struct {
	baseController
}

// NewReportController 创建一个新的报表控制器
func NewReportController(ctx *gin.Context, container *container.ServiceContainer) *ReportController {
	return &ReportController{baseController{Ctx: ctx, Container: container}}
}

// HandleReportFunc 返回一个处理报表请求的Gin处理函数
func HandleReportFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewReportController(ctx, container)

		switch method {
		case "incidentSummary":
			controller.IncidentSummary()
		case "exportIncidents":
			controller.ExportIncidents()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "无效的方法", nil)
		}
	}
}

func (c *ReportController) reportService() services.InterfaceReportService {
	return c.service("report").(services.InterfaceReportService)
}

// 1. IncidentSummary 事件汇总
// @Summary 事件汇总
// @Description 按状态、严重程度、等级、类型和物业统计，附平均响应和处置时长
// @Tags Report
// @Produce json
// @Security BearerAuth
// @Param from query string false "上报时间起 (RFC3339)"
// @Param to query string false "上报时间止 (RFC3339)"
// @Param property_id query int false "物业ID"
// @Success 200 {object} response.Response{data=services.IncidentSummary}
// @Failure 400 {object} ErrorResponse
// @Router /reports/incidents/summary [get]
func (c *ReportController) IncidentSummary() {
	var q services.ReportQuery
	if !c.bindQuery(&q) {
		return
	}
	summary, err := c.reportService().IncidentSummary(c.Ctx.Request.Context(), q)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, summary)
}

// 2. ExportIncidents 导出事件
// @Summary 导出事件
// @Description 导出为 XLSX 文件
// @Tags Report
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param from query string false "上报时间起 (RFC3339)"
// @Param to query string false "上报时间止 (RFC3339)"
// @Param property_id query int false "物业ID"
// @Success 200 {file} file
// @Failure 429 {object} response.RateLimitResponse
// @Router /reports/incidents/export [get]
func (c *ReportController) ExportIncidents() {
	var q services.ReportQuery
	if !c.bindQuery(&q) {
		return
	}
	content, filename, err := c.reportService().ExportIncidents(c.Ctx.Request.Context(), q)
	if err != nil {
		c.fail(err)
		return
	}
	c.Ctx.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Ctx.Data(200, xlsxContentType, content)
}

package controllers

import (
	"apex-http-service/internal/domain/services"
	"apex-http-service/internal/domain/services/container"
	"apex-http-service/internal/error/response"

	"github.com/gin-gonic/gin"
)

// AuditController 审计日志查询
type AuditController struct {
	baseController
}

// HandleAuditFunc 返回一个处理审计日志请求的Gin处理函数
func HandleAuditFunc(container *container.ServiceContainer) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := &AuditController{baseController{Ctx: ctx, Container: container}}
		controller.GetAuditLogs()
	}
}

// GetAuditLogs 获取审计日志
// @Summary 获取审计日志
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码，默认为1"
// @Param page_size query int false "每页条数，默认为20"
// @Param user_id query int false "用户ID"
// @Param resource query string false "资源"
// @Param action query string false "操作"
// @Success 200 {object} response.Response{data=response.PageData}
// @Failure 403 {object} ErrorResponse
// @Router /audit-logs [get]
func (c *AuditController) GetAuditLogs() {
	var q services.AuditQuery
	if !c.bindQuery(&q) {
		return
	}
	q.Normalize()

	logs, total, err := c.service("audit").(services.InterfaceAuditService).List(c.Ctx.Request.Context(), q)
	if err != nil {
		c.fail(err)
		return
	}
	response.Page(c.Ctx, logs, total, q.Page, q.PageSize)
}

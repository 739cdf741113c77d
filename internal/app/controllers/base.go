package controllers

import (
	"errors"
	"strconv"

	"apex-http-service/internal/app/middleware"
	"apex-http-service/internal/domain/services"
	"apex-http-service/internal/domain/services/container"
	"apex-http-service/internal/error/code"
	"apex-http-service/internal/error/response"
	Logger "apex-http-service/pkg/logger"
	"apex-http-service/pkg/utils"

	"github.com/gin-gonic/gin"
)

// ErrorResponse 表示错误响应
type ErrorResponse struct {
	Success bool   `json:"success" example:"false"`
	Code    string `json:"code" example:"NOT_FOUND"`
	Message string `json:"message" example:"Resource not found"`
}

// baseController 控制器公共字段
type baseController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

func (b *baseController) service(name string) interface{} {
	return b.Container.GetService(name)
}

// actor 当前请求的操作者
func (b *baseController) actor() services.Actor {
	return middleware.CurrentActor(b.Ctx)
}

// pathID 解析路径中的数字ID，失败时写入参数错误响应
func (b *baseController) pathID(name string) (uint, bool) {
	id, err := strconv.ParseUint(b.Ctx.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.ParamError(b.Ctx, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// bindJSON 绑定请求体，失败时写入绑定错误响应
func (b *baseController) bindJSON(obj interface{}) bool {
	if err := b.Ctx.ShouldBindJSON(obj); err != nil {
		response.BindError(b.Ctx, err)
		return false
	}
	return true
}

// bindQuery 绑定查询参数
func (b *baseController) bindQuery(obj interface{}) bool {
	if err := b.Ctx.ShouldBindQuery(obj); err != nil {
		response.ParamError(b.Ctx, "Invalid query parameters: "+err.Error())
		return false
	}
	return true
}

// errorCodes 业务错误到响应码的映射，按顺序匹配
var errorCodes = []struct {
	err  error
	code string
}{
	{services.ErrNotFound, code.ErrNotFound},
	{services.ErrValidation, code.ErrValidation},
	{services.ErrForbidden, code.ErrForbidden},
	{utils.ErrPasswordTooShort, code.ErrValidation},
	{services.ErrSelfDelete, code.ErrValidation},
	{services.ErrInvalidTransition, code.ErrInvalidTransition},
	{services.ErrGuardUnavailable, code.ErrGuardUnavailable},
	{services.ErrIncidentClosed, code.ErrIncidentClosed},
	{services.ErrLastAdmin, code.ErrLastAdmin},
	{services.ErrConflict, code.ErrConflict},
	{services.ErrInvalidCredentials, code.ErrInvalidCredentials},
	{services.ErrAccountInactive, code.ErrAccountInactive},
	{services.ErrTokenExpired, code.ErrTokenExpired},
	{services.ErrTokenInvalid, code.ErrTokenInvalid},
}

// fail 把服务层错误映射为统一响应，未知错误只记录日志不暴露细节
func (b *baseController) fail(err error) {
	for _, m := range errorCodes {
		if errors.Is(err, m.err) {
			response.FailWithMessage(b.Ctx, m.code, err.Error(), nil)
			return
		}
	}
	Logger.Error("%s %s 处理失败: %v", b.Ctx.Request.Method, b.Ctx.Request.URL.Path, err)
	response.Fail(b.Ctx, code.ErrDatabase, nil)
}

package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"apex-http-service/internal/error/code"
)

// Response 定义统一的响应格式
type Response struct {
	Success bool        `json:"success"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// RateLimitResponse 限流响应格式
type RateLimitResponse struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"`
}

// PageData 分页数据
type PageData struct {
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int64       `json:"total_pages"`
	Items      interface{} `json:"items"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: code.GetMessage(code.ErrSuccess),
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Message: "Created",
		Data:    data,
	})
}

// Page 分页响应
func Page(c *gin.Context, items interface{}, total int64, page, pageSize int) {
	Success(c, PageData{
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + int64(pageSize) - 1) / int64(pageSize),
		Items:      items,
	})
}

// Fail 失败响应
func Fail(c *gin.Context, errorCode string, data interface{}) {
	c.JSON(code.GetStatus(errorCode), Response{
		Success: false,
		Code:    errorCode,
		Message: code.GetMessage(errorCode),
		Data:    data,
	})
}

// FailWithMessage 失败响应（自定义消息）
func FailWithMessage(c *gin.Context, errorCode string, message string, data interface{}) {
	c.JSON(code.GetStatus(errorCode), Response{
		Success: false,
		Code:    errorCode,
		Message: message,
		Data:    data,
	})
}

// Abort 失败响应并中断后续处理
func Abort(c *gin.Context, errorCode string, message string) {
	if message == "" {
		message = code.GetMessage(errorCode)
	}
	c.AbortWithStatusJSON(code.GetStatus(errorCode), Response{
		Success: false,
		Code:    errorCode,
		Message: message,
	})
}

// TooManyRequests 限流响应
func TooManyRequests(c *gin.Context, message string, retryAfter int) {
	if message == "" {
		message = code.GetMessage(code.ErrTooManyRequests)
	}
	c.AbortWithStatusJSON(http.StatusTooManyRequests, RateLimitResponse{
		Success:    false,
		Error:      "Too many requests",
		Code:       code.ErrTooManyRequests,
		Message:    message,
		RetryAfter: retryAfter,
	})
}

// ParamError 参数错误响应
func ParamError(c *gin.Context, message string) {
	FailWithMessage(c, code.ErrValidation, message, nil)
}

// BindError 请求体绑定错误
func BindError(c *gin.Context, err error) {
	FailWithMessage(c, code.ErrBind, "Invalid request body: "+err.Error(), nil)
}

// ServerError 服务器错误响应
func ServerError(c *gin.Context) {
	Fail(c, code.ErrInternal, nil)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	if message == "" {
		message = code.GetMessage(code.ErrNotFound)
	}
	FailWithMessage(c, code.ErrNotFound, message, nil)
}

// Unauthorized 未授权响应
func Unauthorized(c *gin.Context) {
	Fail(c, code.ErrTokenInvalid, nil)
}

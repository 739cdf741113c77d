package controllers

import (
	"apex-http-service/internal/app/middleware"
	"apex-http-service/internal/domain/services"
	"apex-http-service/internal/domain/services/container"
	"apex-http-service/internal/error/code"
	"apex-http-service/internal/error/response"

	"github.com/gin-gonic/gin"
)

// InterfaceJWTController 定义认证控制器接口
type InterfaceJWTController interface {
	Login()
	Refresh()
	Logout()
	Me()
}

// JWTController 处理身份验证请求
type JWTController struct {
	baseController
}

// NewJWTController 创建一个新的认证控制器
func NewJWTController(ctx *gin.Context, container *container.ServiceContainer) *JWTController {
	return &JWTController{baseController{Ctx: ctx, Container: container}}
}

// LoginRequest 表示登录请求，email 和 username 任选其一
type LoginRequest struct {
	Email    string `json:"email" example:"admin@apex.local"`
	Username string `json:"username" example:"admin"`
	Password string `json:"password" binding:"required" example:"ChangeMe123!"`
}

// HandleJWTFunc 返回一个处理认证请求的Gin处理函数
func HandleJWTFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewJWTController(ctx, container)

		switch method {
		case "login":
			controller.Login()
		case "refresh":
			controller.Refresh()
		case "logout":
			controller.Logout()
		case "me":
			controller.Me()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "无效的方法", nil)
		}
	}
}

func (c *JWTController) authService() services.InterfaceAuthService {
	return c.service("auth").(services.InterfaceAuthService)
}

// 1. Login 用户登录
// @Summary 用户登录
// @Description 使用邮箱或用户名登录，返回JWT令牌
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "登录信息"
// @Success 200 {object} response.Response{data=services.LoginResult}
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 429 {object} response.RateLimitResponse
// @Router /auth/login [post]
func (c *JWTController) Login() {
	var req LoginRequest
	if !c.bindJSON(&req) {
		return
	}

	result, err := c.authService().Login(c.Ctx.Request.Context(), c.actor(), services.LoginInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, result)
}

// 2. Refresh 刷新令牌
// @Summary 刷新令牌
// @Description 签发新令牌并吊销当前令牌
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=services.LoginResult}
// @Failure 401 {object} ErrorResponse
// @Router /auth/refresh [post]
func (c *JWTController) Refresh() {
	result, err := c.authService().Refresh(c.Ctx.Request.Context(), c.actor(), middleware.CurrentClaims(c.Ctx))
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, result)
}

// 3. Logout 注销
// @Summary 注销
// @Description 吊销当前令牌
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} ErrorResponse
// @Router /auth/logout [post]
func (c *JWTController) Logout() {
	if err := c.authService().Logout(c.Ctx.Request.Context(), c.actor(), middleware.CurrentClaims(c.Ctx)); err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, gin.H{"logged_out": true})
}

// 4. Me 当前用户信息
// @Summary 当前用户
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.User}
// @Failure 401 {object} ErrorResponse
// @Router /auth/me [get]
func (c *JWTController) Me() {
	user, err := c.authService().Me(c.Ctx.Request.Context(), middleware.CurrentUserID(c.Ctx))
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, user)
}

package controllers

import (
	"apex-http-service/internal/domain/services"
	"apex-http-service/internal/domain/services/container"
	"apex-http-service/internal/error/code"
	"apex-http-service/internal/error/response"

	"github.com/gin-gonic/gin"
)

// InterfaceUserController 定义用户控制器接口
type InterfaceUserController interface {
	GetUsers()
	GetUser()
	CreateUser()
	UpdateUser()
	DeleteUser()
}

// UserController 处理后台用户管理请求
type UserController struct {
	baseController
}

// NewUserController 创建一个新的用户控制器
func NewUserController(ctx *gin.Context, container *container.ServiceContainer) *UserController {
	return &UserController{baseController{Ctx: ctx, Container: container}}
}

// HandleUserFunc 返回一个处理用户请求的Gin处理函数
func HandleUserFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewUserController(ctx, container)

		switch method {
		case "getUsers":
			controller.GetUsers()
		case "getUser":
			controller.GetUser()
		case "createUser":
			controller.CreateUser()
		case "updateUser":
			controller.UpdateUser()
		case "deleteUser":
			controller.DeleteUser()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "无效的方法", nil)
		}
	}
}

func (c *UserController) userService() services.InterfaceUserService {
	return c.service("user").(services.InterfaceUserService)
}

// 1. GetUsers 获取用户列表
// @Summary 获取用户列表
// @Tags User
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码，默认为1"
// @Param page_size query int false "每页条数，默认为20"
// @Param role query string false "角色"
// @Param status query string false "状态"
// @Param search query string false "邮箱、用户名或姓名"
// @Success 200 {object} response.Response{data=response.PageData}
// @Failure 403 {object} ErrorResponse
// @Router /users [get]
func (c *UserController) GetUsers() {
	var q services.UserQuery
	if !c.bindQuery(&q) {
		return
	}
	q.Normalize()

	users, total, err := c.userService().ListUsers(c.Ctx.Request.Context(), q)
	if err != nil {
		c.fail(err)
		return
	}
	response.Page(c.Ctx, users, total, q.Page, q.PageSize)
}

// 2. GetUser 获取用户详情
// @Summary 获取用户详情
// @Tags User
// @Produce json
// @Security BearerAuth
// @Param id path int true "用户ID"
// @Success 200 {object} response.Response{data=models.User}
// @Failure 404 {object} ErrorResponse
// @Router /users/{id} [get]
func (c *UserController) GetUser() {
	id, ok := c.pathID("id")
	if !ok {
		return
	}
	user, err := c.userService().GetUserByID(c.Ctx.Request.Context(), id)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, user)
}

// 3. CreateUser 创建用户
// @Summary 创建用户
// @Description 只有 admin_super 可以创建 admin_super
// @Tags User
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param user body services.CreateUserInput true "用户信息"
// @Success 201 {object} response.Response{data=models.User}
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /users [post]
func (c *UserController) CreateUser() {
	var in services.CreateUserInput
	if !c.bindJSON(&in) {
		return
	}
	user, err := c.userService().CreateUser(c.Ctx.Request.Context(), c.actor(), in)
	if err != nil {
		c.fail(err)
		return
	}
	response.Created(c.Ctx, user)
}

// 4. UpdateUser 更新用户
// @Summary 更新用户
// @Tags User
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "用户ID"
// @Param user body services.UpdateUserInput true "用户信息"
// @Success 200 {object} response.Response{data=models.User}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /users/{id} [put]
func (c *UserController) UpdateUser() {
	id, ok := c.pathID("id")
	if !ok {
		return
	}
	var in services.UpdateUserInput
	if !c.bindJSON(&in) {
		return
	}
	user, err := c.userService().UpdateUser(c.Ctx.Request.Context(), c.actor(), id, in)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, user)
}

// 5. DeleteUser 删除用户
// @Summary 删除用户
// @Description 不能删除自己，也不能删除最后一个超级管理员
// @Tags User
// @Produce json
// @Security BearerAuth
// @Param id path int true "用户ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /users/{id} [delete]
func (c *UserController) DeleteUser() {
	id, ok := c.pathID("id")
	if !ok {
		return
	}
	if err := c.userService().DeleteUser(c.Ctx.Request.Context(), c.actor(), id); err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, gin.H{"id": id})
}

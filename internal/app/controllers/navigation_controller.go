package controllers

import (
	"apex-http-service/internal/app/access"
	"apex-http-service/internal/app/middleware"
	"apex-http-service/internal/error/response"

	"github.com/gin-gonic/gin"
)

// GetNavigation 当前角色可访问的前端页面
// @Summary 导航菜单
// @Description 按角色过滤前端路由表
// @Tags Navigation
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]access.Page}
// @Failure 401 {object} ErrorResponse
// @Router /navigation [get]
func GetNavigation(c *gin.Context) {
	role := middleware.CurrentRole(c)
	response.Success(c, gin.H{
		"role":  role,
		"pages": access.Navigation(role),
	})
}

package controllers

import (
	"net/http"
	"net/url"
	"strings"

	"apex-http-service/internal/app/middleware"
	"apex-http-service/internal/domain/services/container"
	Logger "apex-http-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// newUpgrader 按允许的来源校验 WebSocket 握手
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, o := range allowedOrigins {
				if o == "*" || strings.EqualFold(o, origin) {
					return true
				}
			}
			u, err := url.Parse(origin)
			return err == nil && strings.EqualFold(u.Host, r.Host)
		},
	}
}

// HandleLiveFunc 实时监控推送
// @Summary 实时监控
// @Description WebSocket 连接，推送 {type, data, timestamp} 事件；浏览器可用 ?token= 传递令牌
// @Tags Live
// @Security BearerAuth
// @Param token query string false "JWT令牌"
// @Success 101 {string} string "Switching Protocols"
// @Failure 401 {object} ErrorResponse
// @Router /live [get]
func HandleLiveFunc(container *container.ServiceContainer) gin.HandlerFunc {
	upgrader := newUpgrader(container.Config().CORSAllowedOrigins)
	return func(ctx *gin.Context) {
		conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
		if err != nil {
			// Upgrade 已写入错误响应
			Logger.Warning("[Live] WebSocket 握手失败: %v", err)
			return
		}
		container.LiveHub().Register(conn, middleware.CurrentUserID(ctx), middleware.CurrentRole(ctx))
	}
}

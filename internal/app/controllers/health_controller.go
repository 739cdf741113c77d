package controllers

import (
	"context"
	"time"

	"apex-http-service/internal/app/middleware"
	"apex-http-service/internal/domain/services"
	"apex-http-service/internal/domain/services/container"
	"apex-http-service/internal/error/code"
	"apex-http-service/internal/error/response"
	"apex-http-service/internal/infrastructure/database"

	"github.com/gin-gonic/gin"
)

// HealthCheckController 健康检查控制器
type HealthCheckController struct {
	baseController
}

// NewHealthCheckController 创建健康检查控制器实例
func NewHealthCheckController(ctx *gin.Context, container *container.ServiceContainer) *HealthCheckController {
	return &HealthCheckController{baseController{Ctx: ctx, Container: container}}
}

// HandleHealthFunc 返回一个处理健康检查请求的Gin处理函数
func HandleHealthFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewHealthCheckController(ctx, container)

		switch method {
		case "ping":
			controller.Ping()
		case "status":
			controller.Status()
		case "cacheStats":
			controller.CacheStats()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "无效的方法", nil)
		}
	}
}

// Ping 健康检查端点
// @Summary 健康检查
// @Tags Health
// @Produce json
// @Success 200 {object} response.Response
// @Router /health [get]
func (h *HealthCheckController) Ping() {
	response.Success(h.Ctx, gin.H{
		"status":  "healthy",
		"message": "pong",
	})
}

// Status 依赖状态：数据库连接池、Redis、MQTT 和实时连接数
// @Summary 依赖状态
// @Tags Health
// @Produce json
// @Success 200 {object} response.Response
// @Failure 503 {object} ErrorResponse
// @Router /health/status [get]
func (h *HealthCheckController) Status() {
	ctx, cancel := context.WithTimeout(h.Ctx.Request.Context(), 3*time.Second)
	defer cancel()

	healthy := true
	dbStatus := gin.H{"status": "up"}
	pool := h.service("pool").(*database.ConnectionPool)
	if err := pool.HealthCheck(ctx); err != nil {
		healthy = false
		dbStatus["status"] = "down"
		dbStatus["error"] = err.Error()
	} else if stats, err := pool.Stats(); err == nil {
		dbStatus["pool"] = stats
	}

	redisStatus := gin.H{"status": "disabled"}
	if redisService, ok := h.service("redis").(services.InterfaceRedisService); ok && redisService != nil {
		if err := redisService.Ping(ctx); err != nil {
			redisStatus = gin.H{"status": "down", "error": err.Error()}
		} else {
			redisStatus = gin.H{"status": "up"}
		}
	}

	mqttStatus := gin.H{"status": "disabled"}
	if mqttService, ok := h.service("mqtt").(services.InterfaceMQTTService); ok && mqttService != nil {
		mqttStatus = gin.H{"status": "down"}
		if mqttService.IsConnected() {
			mqttStatus = gin.H{"status": "up"}
		}
	}

	data := gin.H{
		"status":       "healthy",
		"database":     dbStatus,
		"redis":        redisStatus,
		"mqtt":         mqttStatus,
		"live_clients": h.Container.LiveHub().ClientCount(),
		"time":         time.Now().UTC(),
	}
	if !healthy {
		data["status"] = "unhealthy"
		response.FailWithMessage(h.Ctx, code.ErrUnavailable, "database is not reachable", data)
		return
	}
	response.Success(h.Ctx, data)
}

// CacheStats 响应缓存统计
// @Summary 响应缓存统计
// @Tags Health
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /health/cache-stats [get]
func (h *HealthCheckController) CacheStats() {
	response.Success(h.Ctx, middleware.CacheStats())
}

package container

import (
	"context"
	"sync"
	"time"

	"apex-http-service/internal/domain/services"
	"apex-http-service/internal/infrastructure/config"
	"apex-http-service/internal/infrastructure/database"
	Logger "apex-http-service/pkg/logger"

	"gorm.io/gorm"
)

// ServiceContainer 管理所有服务的依赖注入
type ServiceContainer struct {
	pool   *database.ConnectionPool
	config *config.Config

	// 基础服务
	redisService services.InterfaceRedisService
	mqttService  services.InterfaceMQTTService
	liveHub      *services.LiveHub
	jwtService   services.InterfaceJWTService
	auditService services.InterfaceAuditService

	// 业务服务
	authService        services.InterfaceAuthService
	userService        services.InterfaceUserService
	propertyService    services.InterfacePropertyService
	guardService       services.InterfaceGuardService
	sopService         services.InterfaceSOPService
	contactListService services.InterfaceContactListService
	incidentService    services.InterfaceIncidentService
	dispatchService    services.InterfaceDispatchService
	reportService      services.InterfaceReportService

	mu sync.RWMutex
}

// Option 替换默认构造的基础服务，主要用于测试
type Option func(*ServiceContainer)

// WithRedis 使用指定的Redis服务
func WithRedis(r services.InterfaceRedisService) Option {
	return func(c *ServiceContainer) { c.redisService = r }
}

// WithMQTT 使用指定的MQTT服务
func WithMQTT(m services.InterfaceMQTTService) Option {
	return func(c *ServiceContainer) { c.mqttService = m }
}

// NewServiceContainer 创建新的服务容器
func NewServiceContainer(pool *database.ConnectionPool, cfg *config.Config, opts ...Option) *ServiceContainer {
	if pool == nil {
		panic("数据库连接为空")
	}
	if cfg == nil {
		panic("配置为空")
	}

	c := &ServiceContainer{pool: pool, config: cfg}
	for _, opt := range opts {
		opt(c)
	}
	c.initializeServices()
	return c
}

// initializeServices 初始化所有服务
func (c *ServiceContainer) initializeServices() {
	c.mu.Lock()
	defer c.mu.Unlock()

	db := c.pool.GetDB()

	if c.redisService == nil && c.config.RedisEnabled {
		c.redisService = services.NewRedisService(c.config)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.redisService.Ping(ctx); err != nil {
			Logger.Warning("Redis连接测试失败: %v，令牌吊销将退回内存存储", err)
		}
		cancel()
	}

	if c.mqttService == nil && c.config.MQTTEnabled {
		c.mqttService = services.NewMQTTService(c.config)
		if err := c.mqttService.Connect(); err != nil {
			Logger.Error("MQTT服务连接失败: %v", err)
		}
	}

	c.liveHub = services.NewLiveHub()

	var revocation services.TokenRevocationStore
	if c.redisService != nil {
		revocation = c.redisService
	}
	c.jwtService = services.NewJWTService(c.config, revocation)
	c.auditService = services.NewAuditService(db, c.config)

	c.authService = services.NewAuthService(db, c.jwtService, c.auditService)
	c.userService = services.NewUserService(db, c.config, c.auditService, c.jwtService)
	c.propertyService = services.NewPropertyService(db, c.config, c.auditService)
	c.guardService = services.NewGuardService(db, c.config, c.auditService, c.liveHub)
	c.sopService = services.NewSOPService(db, c.config, c.auditService)
	c.contactListService = services.NewContactListService(db, c.config, c.auditService)
	c.incidentService = services.NewIncidentService(db, c.config, c.auditService, c.liveHub, c.mqttService)
	c.dispatchService = services.NewDispatchService(db, c.config, c.auditService, c.liveHub, c.mqttService)
	c.reportService = services.NewReportService(db, c.config)
}

// GetService 获取指定名称的服务
func (c *ServiceContainer) GetService(name string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch name {
	case "config":
		return c.config
	case "db":
		return c.pool.GetDB()
	case "pool":
		return c.pool
	case "redis":
		return c.redisService
	case "mqtt":
		return c.mqttService
	case "live":
		return c.liveHub
	case "jwt":
		return c.jwtService
	case "audit":
		return c.auditService
	case "auth":
		return c.authService
	case "user":
		return c.userService
	case "property":
		return c.propertyService
	case "guard":
		return c.guardService
	case "sop":
		return c.sopService
	case "contact_list":
		return c.contactListService
	case "incident":
		return c.incidentService
	case "dispatch":
		return c.dispatchService
	case "report":
		return c.reportService
	default:
		return nil
	}
}

// GetDB 获取数据库连接
func (c *ServiceContainer) GetDB() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pool.GetDB()
}

// Config 获取配置
func (c *ServiceContainer) Config() *config.Config {
	return c.config
}

// LiveHub 获取实时推送中心
func (c *ServiceContainer) LiveHub() *services.LiveHub {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.liveHub
}

// Close 释放外部连接
func (c *ServiceContainer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mqttService != nil {
		c.mqttService.Disconnect()
	}
	if c.redisService != nil {
		if err := c.redisService.Close(); err != nil {
			Logger.Warning("关闭Redis连接失败: %v", err)
		}
	}
}

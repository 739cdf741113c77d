package routes

import (
	"time"

	_ "apex-http-service/docs"
	"apex-http-service/internal/app/access"
	"apex-http-service/internal/app/controllers"
	"apex-http-service/internal/app/middleware"
	"apex-http-service/internal/domain/models"
	"apex-http-service/internal/domain/services"
	"apex-http-service/internal/domain/services/container"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// APIPrefix 内部API根路径
const APIPrefix = "/api/internal/v1"

// reportsPrefix 报表缓存前缀，事件和派遣写入后清除
const reportsPrefix = APIPrefix + "/reports"

// 写操作角色
var managerRoles = []string{models.RoleAdmin, models.RoleManager}

// SetupRouter 初始化并返回配置好的路由
func SetupRouter(container *container.ServiceContainer, limiter *middleware.RateLimiter) *gin.Engine {
	cfg := container.Config()

	r := gin.New()
	r.Use(middleware.Recovery(), middleware.RequestLogger(), middleware.CORS(cfg.CORSAllowedOrigins))

	// 添加 Swagger 文档路由
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 兼容Docker健康检查的路由
	r.GET("/health", controllers.HandleHealthFunc(container, "ping"))
	r.GET("/health/status", controllers.HandleHealthFunc(container, "status"))

	registerRoutes(r, container, limiter)
	return r
}

// registerRoutes 配置所有API路由
func registerRoutes(r *gin.Engine, container *container.ServiceContainer, limiter *middleware.RateLimiter) {
	jwtService := container.GetService("jwt").(services.InterfaceJWTService)

	api := r.Group(APIPrefix)
	api.Use(
		limiter.Limit(middleware.PolicyGeneral),
		limiter.Limit(middleware.PolicyWrite, middleware.RateLimiterConfig{Methods: middleware.WriteMethods}),
		middleware.SanitizeJSON(),
	)

	registerPublicRoutes(api, container, limiter)

	// 浏览器 WebSocket 无法设置请求头，单独使用查询参数认证
	api.GET("/live",
		middleware.AuthenticateWebSocket(jwtService),
		middleware.RequireRoles(access.FieldRoles...),
		controllers.HandleLiveFunc(container),
	)

	authed := api.Group("")
	authed.Use(middleware.Authenticate(jwtService))
	registerAuthRoutes(authed, container)
	registerUserRoutes(authed, container)
	registerPropertyRoutes(authed, container)
	registerGuardRoutes(authed, container)
	registerSOPRoutes(authed, container)
	registerContactListRoutes(authed, container)
	registerIncidentRoutes(authed, container)
	registerDispatchRoutes(authed, container, limiter)
	registerReportRoutes(authed, container, limiter)

	authed.GET("/audit-logs", middleware.RequireRoles(access.AdminRoles...), controllers.HandleAuditFunc(container))
	authed.GET("/navigation", controllers.GetNavigation)
}

// registerPublicRoutes 注册公共路由
func registerPublicRoutes(api *gin.RouterGroup, container *container.ServiceContainer, limiter *middleware.RateLimiter) {
	api.GET("/health", controllers.HandleHealthFunc(container, "ping"))
	api.GET("/health/status", controllers.HandleHealthFunc(container, "status"))
	api.POST("/auth/login", limiter.Limit(middleware.PolicyAuth), controllers.HandleJWTFunc(container, "login"))
}

// registerAuthRoutes 注册认证路由
func registerAuthRoutes(api *gin.RouterGroup, container *container.ServiceContainer) {
	authGroup := api.Group("/auth")
	authGroup.POST("/refresh", controllers.HandleJWTFunc(container, "refresh"))
	authGroup.POST("/logout", controllers.HandleJWTFunc(container, "logout"))
	authGroup.GET("/me", controllers.HandleJWTFunc(container, "me"))

	api.GET("/health/cache-stats", middleware.RequireRoles(access.AdminRoles...), controllers.HandleHealthFunc(container, "cacheStats"))
}

// registerUserRoutes 注册用户管理路由
func registerUserRoutes(api *gin.RouterGroup, container *container.ServiceContainer) {
	userGroup := api.Group("/users")
	userGroup.Use(middleware.RequireRoles(access.AdminRoles...))
	{
		userGroup.GET("", controllers.HandleUserFunc(container, "getUsers"))
		userGroup.GET("/:id", controllers.HandleUserFunc(container, "getUser"))
		userGroup.POST("", controllers.HandleUserFunc(container, "createUser"))
		userGroup.PUT("/:id", controllers.HandleUserFunc(container, "updateUser"))
		userGroup.DELETE("/:id", controllers.HandleUserFunc(container, "deleteUser"))
	}
}

// registerPropertyRoutes 注册物业路由
func registerPropertyRoutes(api *gin.RouterGroup, container *container.ServiceContainer) {
	propertyGroup := api.Group("/properties")
	writers := middleware.RequireRoles(managerRoles...)
	{
		propertyGroup.GET("", controllers.HandlePropertyFunc(container, "getProperties"))
		propertyGroup.GET("/:id", controllers.HandlePropertyFunc(container, "getProperty"))
		propertyGroup.POST("", writers, controllers.HandlePropertyFunc(container, "createProperty"))
		propertyGroup.PUT("/:id", writers, controllers.HandlePropertyFunc(container, "updateProperty"))
		propertyGroup.DELETE("/:id", writers, controllers.HandlePropertyFunc(container, "deleteProperty"))

		propertyGroup.GET("/:id/zones", controllers.HandlePropertyFunc(container, "getZones"))
		propertyGroup.POST("/:id/zones", writers, controllers.HandlePropertyFunc(container, "createZone"))
		propertyGroup.DELETE("/:id/zones/:zoneId", writers, controllers.HandlePropertyFunc(container, "deleteZone"))
	}
}

// registerGuardRoutes 注册警卫路由
func registerGuardRoutes(api *gin.RouterGroup, container *container.ServiceContainer) {
	guardGroup := api.Group("/guards")
	readers := middleware.RequireRoles(access.FieldRoles...)
	writers := middleware.RequireRoles(access.OperatorRoles...)
	{
		guardGroup.GET("", readers, controllers.HandleGuardFunc(container, "getGuards"))
		guardGroup.GET("/available", writers, controllers.HandleGuardFunc(container, "getAvailableGuards"))
		guardGroup.GET("/:id", readers, controllers.HandleGuardFunc(container, "getGuard"))
		guardGroup.POST("", writers, controllers.HandleGuardFunc(container, "createGuard"))
		guardGroup.PUT("/:id", writers, controllers.HandleGuardFunc(container, "updateGuard"))
		guardGroup.DELETE("/:id", writers, controllers.HandleGuardFunc(container, "deleteGuard"))
		guardGroup.PATCH("/:id/status", readers, controllers.HandleGuardFunc(container, "updateGuardStatus"))
	}
}

// registerSOPRoutes 注册SOP路由
func registerSOPRoutes(api *gin.RouterGroup, container *container.ServiceContainer) {
	sopGroup := api.Group("/sops")
	sopGroup.Use(middleware.RequireRoles(access.FieldRoles...))
	writers := middleware.RequireRoles(managerRoles...)
	{
		sopGroup.GET("", controllers.HandleSOPFunc(container, "getSOPs"))
		sopGroup.GET("/:id", controllers.HandleSOPFunc(container, "getSOP"))
		sopGroup.POST("", writers, controllers.HandleSOPFunc(container, "createSOP"))
		sopGroup.PUT("/:id", writers, controllers.HandleSOPFunc(container, "updateSOP"))
		sopGroup.DELETE("/:id", writers, controllers.HandleSOPFunc(container, "deleteSOP"))
	}
}

// registerContactListRoutes 注册联系人列表路由
func registerContactListRoutes(api *gin.RouterGroup, container *container.ServiceContainer) {
	contactGroup := api.Group("/contact-lists")
	contactGroup.Use(middleware.RequireRoles(access.OperatorRoles...))
	writers := middleware.RequireRoles(managerRoles...)
	{
		contactGroup.GET("", controllers.HandleContactListFunc(container, "getContactLists"))
		contactGroup.GET("/:id", controllers.HandleContactListFunc(container, "getContactList"))
		contactGroup.POST("", writers, controllers.HandleContactListFunc(container, "createContactList"))
		contactGroup.PUT("/:id", writers, controllers.HandleContactListFunc(container, "updateContactList"))
		contactGroup.DELETE("/:id", writers, controllers.HandleContactListFunc(container, "deleteContactList"))
	}
}

// registerIncidentRoutes 注册事件路由
func registerIncidentRoutes(api *gin.RouterGroup, container *container.ServiceContainer) {
	incidentGroup := api.Group("/incidents")
	incidentGroup.Use(middleware.RequireRoles(access.FieldRoles...), middleware.InvalidateOnWrite(reportsPrefix))
	{
		incidentGroup.GET("", controllers.HandleIncidentFunc(container, "getIncidents"))
		incidentGroup.GET("/:id", controllers.HandleIncidentFunc(container, "getIncident"))
		incidentGroup.GET("/:id/sops", controllers.HandleIncidentFunc(container, "getIncidentSOPs"))
		incidentGroup.POST("", controllers.HandleIncidentFunc(container, "createIncident"))
		incidentGroup.PUT("/:id", controllers.HandleIncidentFunc(container, "updateIncident"))
		incidentGroup.PATCH("/:id/status", controllers.HandleIncidentFunc(container, "updateIncidentStatus"))
		incidentGroup.POST("/:id/evidence", controllers.HandleIncidentFunc(container, "addIncidentEvidence"))
		incidentGroup.DELETE("/:id", middleware.RequireRoles(access.AdminRoles...), controllers.HandleIncidentFunc(container, "deleteIncident"))
	}
}

// registerDispatchRoutes 注册派遣路由
func registerDispatchRoutes(api *gin.RouterGroup, container *container.ServiceContainer, limiter *middleware.RateLimiter) {
	dispatchGroup := api.Group("/dispatch")
	dispatchGroup.Use(
		middleware.RequireRoles(access.FieldRoles...),
		limiter.Limit(middleware.PolicyDispatch, middleware.RateLimiterConfig{Methods: middleware.WriteMethods}),
		middleware.InvalidateOnWrite(reportsPrefix),
	)
	{
		dispatchGroup.GET("", controllers.HandleDispatchFunc(container, "getDispatches"))
		dispatchGroup.GET("/:id", controllers.HandleDispatchFunc(container, "getDispatch"))
		dispatchGroup.POST("", middleware.RequireRoles(access.OperatorRoles...), controllers.HandleDispatchFunc(container, "createDispatch"))
		dispatchGroup.PATCH("/:id/status", controllers.HandleDispatchFunc(container, "updateDispatchStatus"))
	}
}

// registerReportRoutes 注册报表路由
func registerReportRoutes(api *gin.RouterGroup, container *container.ServiceContainer, limiter *middleware.RateLimiter) {
	reportGroup := api.Group("/reports")
	reportGroup.Use(middleware.RequireRoles(access.ReportRoles...))
	{
		reportGroup.GET("/incidents/summary",
			middleware.Cache(middleware.CacheConfig{Expiration: 30 * time.Second}),
			controllers.HandleReportFunc(container, "incidentSummary"))
		reportGroup.GET("/incidents/export",
			limiter.Limit(middleware.PolicyReport),
			controllers.HandleReportFunc(container, "exportIncidents"))
	}
}

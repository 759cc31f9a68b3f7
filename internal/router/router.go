package router

import (
	"rentflow/internal/handlers"
	"rentflow/internal/middleware"
	"rentflow/internal/models"
	"rentflow/internal/services"
	"rentflow/pkg/config"
	"rentflow/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// SetupRouter 设置路由
func SetupRouter(container *services.Container, jwtManager *jwt.JWTManager, cfg *config.Config) *gin.Engine {
	router := gin.New()

	// 中间件
	router.Use(middleware.RequestLogger())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetupCORS(cfg.CORS))
	if container.Metrics != nil {
		router.Use(container.Metrics.Middleware())
		if cfg.Metrics.Enabled {
			router.GET("/metrics", gin.WrapH(container.Metrics.Handler()))
		}
	}

	registerRoutes(router, container, jwtManager, cfg)
	return router
}

// 注册所有路由
func registerRoutes(router *gin.Engine, container *services.Container, jwtManager *jwt.JWTManager, cfg *config.Config) {
	auth := middleware.NewAuthMiddleware(container.Identity, jwtManager)
	can := auth.RequireCapability

	systemHandler := handlers.NewSystemHandler(container.DB, container.Queue)
	webhookHandler := handlers.NewWebhookHandler(container.Identity)
	wsHandler := handlers.NewWebSocketHandler(container.Queue, auth, container.Notifications, cfg.CORS.AllowOrigins)

	userHandler := handlers.NewUserHandler(container.Identity)
	propertyHandler := handlers.NewPropertyHandler(container.Properties, container.Units)
	unitHandler := handlers.NewUnitHandler(container.Units)
	leaseHandler := handlers.NewLeaseHandler(container.Leases)
	paymentHandler := handlers.NewPaymentHandler(container.Payments)
	maintenanceHandler := handlers.NewMaintenanceHandler(container.Maintenance)
	notificationHandler := handlers.NewNotificationHandler(container.Notifications)
	calendarHandler := handlers.NewCalendarHandler(container.Calendar)

	// API路由组
	api := router.Group("/api/v1")
	{
		// 健康检查接口
		api.GET("/health", systemHandler.Health)
		api.GET("/ping", systemHandler.Ping)

		// 身份提供方回调（无需登录）
		api.POST("/webhooks/clerk", webhookHandler.Clerk)

		// WebSocket 在握手时自行校验 token 参数
		api.GET("/ws/notifications", wsHandler.Notifications)

		authed := api.Group("", auth.RequireLogin())

		users := authed.Group("/users")
		{
			users.GET("/me", userHandler.Me)
			users.GET("", can(models.CapListUsers), userHandler.List)
			users.GET("/:id", can(models.CapListUsers), userHandler.Get)
			users.PATCH("/:id/role", can(models.CapManageUsers), userHandler.ChangeRole)
		}

		properties := authed.Group("/properties", can(models.CapManageProperties))
		{
			properties.POST("", propertyHandler.Create)
			properties.GET("", propertyHandler.List)
			properties.GET("/:id", propertyHandler.Get)
			properties.PUT("/:id", propertyHandler.Update)
			properties.DELETE("/:id", propertyHandler.Delete)
			properties.POST("/:id/units", propertyHandler.CreateUnit)
			properties.GET("/:id/units", propertyHandler.ListUnits)
		}

		units := authed.Group("/units", can(models.CapManageProperties))
		{
			units.GET("", unitHandler.List)
			units.GET("/vacant", unitHandler.Vacant)
			units.GET("/:id", unitHandler.Get)
			units.PUT("/:id", unitHandler.Update)
			units.DELETE("/:id", unitHandler.Delete)
		}

		// 租客可以查看自己的租约
		leases := authed.Group("/leases")
		{
			leases.POST("", can(models.CapManageLeases), leaseHandler.Allocate)
			leases.GET("", leaseHandler.List)
			leases.GET("/:id", leaseHandler.Get)
			leases.POST("/:id/terminate", can(models.CapManageLeases), leaseHandler.Terminate)
		}

		// 租客提交、房东登记都走 POST，由服务按角色区分
		payments := authed.Group("/payments")
		{
			payments.POST("", paymentHandler.Create)
			payments.GET("", paymentHandler.List)
			payments.GET("/:id", paymentHandler.Get)
			payments.PATCH("/:id", can(models.CapReviewPayments), paymentHandler.Review)
		}

		authed.GET("/dashboard", can(models.CapViewDashboard), paymentHandler.Dashboard)

		maintenance := authed.Group("/maintenance")
		{
			maintenance.POST("", can(models.CapSubmitMaintenance), maintenanceHandler.Create)
			maintenance.GET("", maintenanceHandler.List)
			maintenance.GET("/:id", maintenanceHandler.Get)
			maintenance.PATCH("/:id/status", can(models.CapManageMaintenance), maintenanceHandler.UpdateStatus)
		}

		notifications := authed.Group("/notifications")
		{
			notifications.POST("", can(models.CapSendNotifications), notificationHandler.Send)
			notifications.GET("", notificationHandler.List)
			notifications.GET("/unread-count", notificationHandler.UnreadCount)
			notifications.PATCH("/read", notificationHandler.MarkRead)
		}

		calendar := authed.Group("/calendar", can(models.CapManageCalendar))
		{
			calendar.POST("", calendarHandler.Create)
			calendar.GET("", calendarHandler.List)
			calendar.DELETE("/:id", calendarHandler.Delete)
		}
	}
}

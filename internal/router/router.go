package router

import (
	"log"

	"nguvuhire/config"
	"nguvuhire/internal/domain"
	"nguvuhire/internal/handler"
	"nguvuhire/internal/middleware"
	"nguvuhire/internal/repository"
	"nguvuhire/internal/service"
	"nguvuhire/internal/ws"
	"nguvuhire/pkg/pesapal"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Deps are the outside collaborators built by the caller. Dedupe and FCM may be nil.
type Deps struct {
	Gateway pesapal.Gateway
	Dedupe  service.Deduper
	FCM     *service.FCMService
	Hub     *ws.Hub
}

type App struct {
	Engine     *gin.Engine
	Reconciler *service.Reconciler
	Hub        *ws.Hub
}

func Setup(cfg *config.Config, db *gorm.DB, deps Deps) *App {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler.RegisterValidators()

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())

	hub := deps.Hub
	if hub == nil {
		hub = ws.NewHub()
	}

	// Repositories
	orderRepo := repository.NewPaymentOrderRepository(db)
	creditRepo := repository.NewCreditRepository(db)
	boostRepo := repository.NewBoostRepository(db)
	postRepo := repository.NewPostRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	ipnRepo := repository.NewIPNEventRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	adminRepo := repository.NewAdminRepository(db)

	// Services
	if deps.FCM != nil {
		log.Printf("[FCM] Push notifications enabled")
	} else {
		log.Printf("[FCM] Push notifications disabled: set FIREBASE_SERVICE_ACCOUNT_PATH to enable")
	}
	notifSvc := service.NewNotificationService(notificationRepo, profileRepo, deps.FCM)
	ledger := service.NewLedger(db, creditRepo, boostRepo, postRepo, cfg.Credits.FreeAllotment)
	orderSvc := service.NewOrderService(cfg, orderRepo, postRepo, deps.Gateway, deps.Dedupe)
	paymentSvc := service.NewPaymentService(db, orderRepo, profileRepo, ipnRepo, auditRepo, ledger, deps.Gateway, notifSvc, hub, cfg.Server.FrontendURL)
	subSvc := service.NewSubscriptionService(subRepo, ledger)
	reconciler := service.NewReconciler(cfg.Reconcile, orderRepo, boostRepo, paymentSvc)

	// Handlers
	paymentHandler := handler.NewPaymentHandler(orderSvc, paymentSvc)
	boostHandler := handler.NewBoostHandler(ledger)
	subHandler := handler.NewSubscriptionHandler(subSvc)
	adminHandler := handler.NewAdminHandler(reconciler, paymentSvc, ipnRepo, adminRepo)
	notificationHandler := handler.NewNotificationHandler(notifSvc, profileRepo)
	healthHandler := handler.NewHealthHandler(db)

	authMw := middleware.AuthRequired(&cfg.JWT)
	limitMw := middleware.RateLimit(middleware.NewIPRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateBurst))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	base := r.Group(cfg.Server.BasePath)
	{
		base.GET("/health", healthHandler.Health)

		// Pesapal calls these; they are never rate limited or authenticated.
		base.GET("/payments/callback", paymentHandler.Callback)
		base.GET("/payments/ipn", paymentHandler.IPN)
		base.POST("/payments/ipn", paymentHandler.IPN)

		payments := base.Group("/payments")
		payments.Use(limitMw, authMw)
		{
			payments.POST("/create", paymentHandler.Create)
			payments.GET("/orders", paymentHandler.ListOrders)
			payments.GET("/orders/:reference", paymentHandler.GetOrder)
		}

		boosts := base.Group("/boosts")
		boosts.Use(limitMw, authMw)
		{
			boosts.POST("/boost-post", middleware.RequireRole(domain.RoleEmployer, domain.RoleJobSeeker, domain.RoleAdmin), boostHandler.BoostPost)
			boosts.GET("/credits", boostHandler.Credits)
		}

		base.GET("/subscriptions/status", limitMw, authMw, subHandler.Status)

		me := base.Group("/me")
		me.Use(limitMw, authMw)
		{
			me.GET("/notifications", notificationHandler.List)
			me.PUT("/notifications/:id/read", notificationHandler.MarkRead)
			me.POST("/fcm-token", notificationHandler.RegisterFCMToken)
		}

		admin := base.Group("/admin")
		admin.Use(authMw, middleware.AdminRequired())
		{
			admin.GET("/dashboard", adminHandler.Dashboard)
			admin.GET("/payments", adminHandler.ListPayments)
			admin.POST("/payments/reconcile", adminHandler.Reconcile)
			admin.POST("/payments/:reference/reverify", adminHandler.Reverify)
			admin.GET("/payments/ipn-events/:trackingId", adminHandler.IPNEvents)
		}

		base.GET("/ws/payments", ws.UpgradePaymentsWS(&cfg.JWT, hub))
	}

	return &App{Engine: r, Reconciler: reconciler, Hub: hub}
}

package router

import (
	"fmt"
	"strings"

	"github.com/partners4saas/engine/internal/config"
	adminhandlers "github.com/partners4saas/engine/internal/http/handlers/admin"
	publichandlers "github.com/partners4saas/engine/internal/http/handlers/public"
	"github.com/partners4saas/engine/internal/logger"
	"github.com/partners4saas/engine/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按接入端/运营端分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "p4s"
	}
	redisClient := c.RedisStore.Client()
	webhookRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:webhook", redisPrefix),
		WindowSeconds: cfg.Security.WebhookRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.WebhookRateLimit.MaxRequests,
		BlockSeconds:  cfg.Security.WebhookRateLimit.BlockSeconds,
		Message:       "webhook rate limited",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 接入端接口（点击归因与转化上报）
		apiV1.POST("/attributions", publicHandler.TrackClick)
		apiV1.POST("/attributions/:id/enrich", publicHandler.EnrichAttribution)
		apiV1.POST("/conversions", publicHandler.RecordConversion)
		apiV1.POST("/partners/:slug/webhook",
			RateLimitMiddleware(redisClient, webhookRule, KeyByPathParam("slug")),
			publicHandler.PartnerWebhook)

		// 运营端接口
		admin := apiV1.Group("/admin")
		admin.Use(OperatorJWTMiddleware(cfg.OperatorJWT.SecretKey))
		{
			// 合作伙伴管理
			admin.POST("/partners", adminHandler.CreatePartner)
			admin.GET("/partners", adminHandler.ListPartners)
			admin.GET("/partners/:id", adminHandler.GetPartner)
			admin.PUT("/partners/:id", adminHandler.UpdatePartner)
			admin.PATCH("/partners/:id/active", adminHandler.SetPartnerActive)
			admin.POST("/partners/:id/rotate-secret", adminHandler.RotatePartnerWebhookSecret)
			admin.POST("/partners/:id/referral-url", adminHandler.GeneratePartnerReferralURL)
			admin.GET("/partners/:id/analytics", adminHandler.PartnerAnalytics)
			admin.GET("/partners/:id/summary", adminHandler.PartnerSummary)

			// 转化事件管理
			admin.GET("/events", adminHandler.ListEvents)
			admin.GET("/events/:id", adminHandler.GetEvent)
			admin.POST("/events/:id/verify", adminHandler.VerifyEvent)
			admin.POST("/events/:id/dispute", adminHandler.DisputeEvent)
			admin.POST("/events/:id/reinstate", adminHandler.ReinstateEvent)
			admin.POST("/events/:id/recalculate", adminHandler.RecalculateEvent)

			// 结算管理
			admin.POST("/payouts", adminHandler.CreatePayout)
			admin.POST("/payouts/run-monthly", adminHandler.RunMonthlyPayouts)
			admin.GET("/payouts", adminHandler.ListPayouts)
			admin.GET("/payouts/:id", adminHandler.GetPayout)
			admin.POST("/payouts/:id/mark-paid", adminHandler.MarkPayoutPaid)
			admin.POST("/payouts/:id/dispute", adminHandler.DisputePayout)

			// 回调日志
			admin.GET("/webhook-logs", adminHandler.ListWebhookLogs)
			admin.POST("/webhook-logs/:id/retry", adminHandler.RetryWebhookLog)

			// 服务指标
			admin.GET("/metrics", adminHandler.ServiceMetrics)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}

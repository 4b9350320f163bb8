package provider

import (
	"github.com/partners4saas/engine/internal/cache"
	"github.com/partners4saas/engine/internal/config"
	"github.com/partners4saas/engine/internal/extractor"
	"github.com/partners4saas/engine/internal/logger"
	"github.com/partners4saas/engine/internal/models"
	"github.com/partners4saas/engine/internal/queue"
	"github.com/partners4saas/engine/internal/repository"
	"github.com/partners4saas/engine/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	Cache       cache.Store
	RedisStore  *cache.RedisStore
	QueueClient *queue.Client
	Extractors  *extractor.Registry

	// Repositories
	PartnerRepo     repository.PartnerRepository
	AttributionRepo repository.AttributionRepository
	EventRepo       repository.EventRepository
	PayoutRepo      repository.PayoutRepository
	WebhookLogRepo  repository.WebhookLogRepository

	// Services
	PartnerService     *service.PartnerService
	AttributionService *service.AttributionService
	CommissionService  *service.CommissionService
	WebhookService     *service.WebhookService
	SettlementService  *service.SettlementService
	AnalyticsService   *service.AnalyticsService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存，Redis 不可用时退化为空实现
	var store cache.Store = cache.NewNoopStore()
	redisStore, err := cache.NewRedisStore(&cfg.Redis)
	if err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	} else if redisStore != nil {
		store = redisStore
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		Cache:       store,
		RedisStore:  redisStore,
		QueueClient: queueClient,
		Extractors:  extractor.NewRegistry(),
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.PartnerRepo = repository.NewPartnerRepository(db)
	c.AttributionRepo = repository.NewAttributionRepository(db)
	c.EventRepo = repository.NewEventRepository(db)
	c.PayoutRepo = repository.NewPayoutRepository(db)
	c.WebhookLogRepo = repository.NewWebhookLogRepository(db)
}

func (c *Container) initServices() {
	c.PartnerService = service.NewPartnerService(c.PartnerRepo, c.Config.Referral.BaseURL)
	c.AttributionService = service.NewAttributionService(c.AttributionRepo, c.PartnerRepo, c.Cache)
	c.CommissionService = service.NewCommissionService(c.EventRepo, c.PartnerRepo, c.AttributionRepo)
	c.WebhookService = service.NewWebhookService(
		c.PartnerRepo,
		c.EventRepo,
		c.WebhookLogRepo,
		c.AttributionService,
		c.Extractors,
		c.Config.Settlement.WebhookMaxAttempts,
	)
	c.SettlementService = service.NewSettlementService(c.EventRepo, c.PayoutRepo, c.PartnerRepo)
	c.AnalyticsService = service.NewAnalyticsService(c.EventRepo, c.AttributionRepo, c.PartnerRepo, c.Cache)
}

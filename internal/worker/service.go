package worker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/partners4saas/engine/internal/config"
	"github.com/partners4saas/engine/internal/logger"
	"github.com/partners4saas/engine/internal/queue"

	"github.com/hibiken/asynq"
)

const defaultCleanupInterval = time.Hour

// Service 异步队列服务
// 携带 Scheduler 负责月度结算定时投递，归因清理走进程内定时循环
type Service struct {
	name            string
	server          *asynq.Server
	mux             *asynq.ServeMux
	scheduler       *asynq.Scheduler
	consumer        *Consumer
	cleanupInterval time.Duration
}

// NewService 创建异步队列服务
func NewService(cfg *config.Config, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Queue.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(&cfg.Queue)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: time.Local})
	cron := strings.TrimSpace(cfg.Settlement.MonthlyCron)
	if cron != "" {
		task, err := queue.NewSettlementMonthlyTask(queue.SettlementMonthlyPayload{})
		if err != nil {
			return nil, err
		}
		if _, err := scheduler.Register(cron, task, asynq.Queue(queue.DefaultQueue)); err != nil {
			return nil, err
		}
	}

	cleanupInterval := defaultCleanupInterval
	if cfg.Attribution.CleanupIntervalMinutes > 0 {
		cleanupInterval = time.Duration(cfg.Attribution.CleanupIntervalMinutes) * time.Minute
	}

	return &Service{
		name:            "worker",
		server:          server,
		mux:             mux,
		scheduler:       scheduler,
		consumer:        consumer,
		cleanupInterval: cleanupInterval,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.scheduler != nil {
		if err := s.scheduler.Start(); err != nil {
			return err
		}
	}
	if s.consumer != nil && s.consumer.AttributionService != nil {
		go s.runAttributionCleanupLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	_ = ctx
	if s.scheduler != nil {
		s.scheduler.Shutdown()
	}
	if s.server != nil {
		s.server.Shutdown()
	}
	return nil
}

func (s *Service) runAttributionCleanupLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.AttributionService == nil {
		return
	}
	runOnce := func() {
		if _, err := s.consumer.AttributionService.CleanupExpired(); err != nil {
			logger.Warnw("worker_attribution_cleanup_loop_failed", "error", err)
		}
	}
	runOnce()

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

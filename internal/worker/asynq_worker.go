package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/partners4saas/engine/internal/logger"
	"github.com/partners4saas/engine/internal/provider"
	"github.com/partners4saas/engine/internal/queue"
	"github.com/partners4saas/engine/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskWebhookProcess, c.handleWebhookProcess)
	mux.HandleFunc(queue.TaskSettlementMonthly, c.handleSettlementMonthly)
	mux.HandleFunc(queue.TaskAttributionCleanup, c.handleAttributionCleanup)
}

func (c *Consumer) handleWebhookProcess(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_webhook_process_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.WebhookProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_webhook_process_unmarshal_failed", "error", err)
		return err
	}
	if payload.LogID == 0 {
		logger.Debugw("worker_webhook_process_skip_invalid_payload", "log_id", payload.LogID)
		return nil
	}
	if c.WebhookService == nil {
		logger.Warnw("worker_webhook_process_skip_service_nil", "log_id", payload.LogID)
		return nil
	}
	_, err := c.WebhookService.ProcessLog(ctx, payload.LogID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDuplicateDelivery):
			logger.Debugw("worker_webhook_process_skip_duplicate", "log_id", payload.LogID)
			return nil
		case errors.Is(err, service.ErrNotFound):
			logger.Debugw("worker_webhook_process_skip_not_found", "log_id", payload.LogID)
			return nil
		default:
			logger.Warnw("worker_webhook_process_failed", "log_id", payload.LogID, "error", err)
			return err
		}
	}
	return nil
}

func (c *Consumer) handleSettlementMonthly(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_settlement_monthly_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.SettlementMonthlyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_settlement_monthly_unmarshal_failed", "error", err)
		return err
	}
	if c.SettlementService == nil {
		logger.Warnw("worker_settlement_monthly_skip_service_nil")
		return nil
	}

	periodStart, periodEnd, err := settlementPeriod(payload)
	if err != nil {
		logger.Warnw("worker_settlement_monthly_invalid_period",
			"period_start", payload.PeriodStart,
			"period_end", payload.PeriodEnd,
			"error", err,
		)
		return nil
	}
	if _, err := c.SettlementService.ProcessMonthlyPayouts(periodStart, periodEnd); err != nil {
		logger.Warnw("worker_settlement_monthly_failed", "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handleAttributionCleanup(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_attribution_cleanup_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	if c.AttributionService == nil {
		logger.Warnw("worker_attribution_cleanup_skip_service_nil")
		return nil
	}
	if _, err := c.AttributionService.CleanupExpired(); err != nil {
		logger.Warnw("worker_attribution_cleanup_failed", "error", err)
		return err
	}
	return nil
}

// settlementPeriod 解析结算区间，未指定时取上一个自然月
func settlementPeriod(payload queue.SettlementMonthlyPayload) (time.Time, time.Time, error) {
	if payload.PeriodStart == "" || payload.PeriodEnd == "" {
		start, end := service.PreviousMonthPeriod(time.Now())
		return start, end, nil
	}
	start, err := time.Parse("2006-01-02", payload.PeriodStart)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.Parse("2006-01-02", payload.PeriodEnd)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, errors.New("period end must be after start")
	}
	return start, end, nil
}

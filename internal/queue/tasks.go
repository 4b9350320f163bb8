package queue

import (
	"encoding/json"

	"github.com/partners4saas/engine/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskWebhookProcess Webhook 载荷解析任务
	TaskWebhookProcess = constants.TaskWebhookProcess
	// TaskSettlementMonthly 月度结算任务
	TaskSettlementMonthly = constants.TaskSettlementMonthly
	// TaskAttributionCleanup 归因过期清理任务
	TaskAttributionCleanup = constants.TaskAttributionCleanup
)

// WebhookProcessPayload Webhook 解析任务载荷
type WebhookProcessPayload struct {
	LogID uint `json:"log_id"`
}

// SettlementMonthlyPayload 月度结算任务载荷
// Period 为空时结算上一个自然月
type SettlementMonthlyPayload struct {
	PeriodStart string `json:"period_start,omitempty"`
	PeriodEnd   string `json:"period_end,omitempty"`
}

// AttributionCleanupPayload 归因清理任务载荷
type AttributionCleanupPayload struct{}

// NewWebhookProcessTask 创建 Webhook 解析任务
func NewWebhookProcessTask(payload WebhookProcessPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWebhookProcess, body), nil
}

// NewSettlementMonthlyTask 创建月度结算任务
func NewSettlementMonthlyTask(payload SettlementMonthlyPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSettlementMonthly, body), nil
}

// NewAttributionCleanupTask 创建归因清理任务
func NewAttributionCleanupTask() (*asynq.Task, error) {
	body, err := json.Marshal(AttributionCleanupPayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAttributionCleanup, body), nil
}

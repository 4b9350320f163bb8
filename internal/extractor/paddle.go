package extractor

import (
	"encoding/json"
	"strings"

	"github.com/partners4saas/engine/internal/constants"
	"github.com/partners4saas/engine/internal/models"
	"github.com/shopspring/decimal"
)

// paddle 事件类型到平台事件类型的映射
var paddleEventTypes = map[string]string{
	"payment_succeeded":              constants.EventTypePurchase,
	"subscription_created":           constants.EventTypeSubscription,
	"subscription_payment_succeeded": constants.EventTypeRenewal,
}

type paddlePayload struct {
	AlertID        string `json:"alert_id"`
	AlertName      string `json:"alert_name"`
	OrderID        string `json:"order_id"`
	SaleGross      string `json:"sale_gross"`
	Currency       string `json:"currency"`
	Email          string `json:"email"`
	Passthrough    string `json:"passthrough"`
	EventTime      string `json:"event_time"`
	SubscriptionID string `json:"subscription_id"`
}

// paddlePassthrough 商户透传字段，携带平台侧的用户标识
type paddlePassthrough struct {
	UserKey string `json:"user_key"`
}

// PaddleExtractor 解析 Paddle 形态的事件载荷
type PaddleExtractor struct{}

// NewPaddleExtractor 创建 Paddle 解析策略
func NewPaddleExtractor() *PaddleExtractor {
	return &PaddleExtractor{}
}

// Name 策略名
func (e *PaddleExtractor) Name() string {
	return "paddle"
}

// Extract 解析载荷
func (e *PaddleExtractor) Extract(body []byte) (*CanonicalEvent, error) {
	var payload paddlePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, ErrPayloadInvalid
	}
	eventType, ok := paddleEventTypes[strings.TrimSpace(payload.AlertName)]
	if !ok {
		return nil, ErrEventTypeEmpty
	}
	externalID := strings.TrimSpace(payload.AlertID)
	if externalID == "" {
		externalID = strings.TrimSpace(payload.OrderID)
	}
	if externalID == "" {
		return nil, ErrExternalIDEmpty
	}

	userKey := paddleUserKey(payload)
	amount := models.Money{}
	if gross := strings.TrimSpace(payload.SaleGross); gross != "" {
		d, err := decimal.NewFromString(gross)
		if err != nil {
			return nil, ErrPayloadInvalid
		}
		amount = models.NewMoneyFromDecimal(d)
	}

	metadata := models.JSON{}
	if payload.SubscriptionID != "" {
		metadata["subscription_id"] = payload.SubscriptionID
	}
	if payload.OrderID != "" {
		metadata["order_id"] = payload.OrderID
	}

	event := &CanonicalEvent{
		ExternalID: externalID,
		EventType:  eventType,
		UserKey:    userKey,
		Amount:     amount,
		Currency:   normalizeCurrency(payload.Currency),
		Metadata:   metadata,
	}
	if ts := parseTimestamp(payload.EventTime); ts != nil {
		event.OccurredAt = ts
	}
	return event, nil
}

func paddleUserKey(payload paddlePayload) string {
	raw := strings.TrimSpace(payload.Passthrough)
	if raw != "" {
		var pass paddlePassthrough
		if err := json.Unmarshal([]byte(raw), &pass); err == nil {
			if key := strings.TrimSpace(pass.UserKey); key != "" {
				return key
			}
		}
	}
	return strings.TrimSpace(payload.Email)
}

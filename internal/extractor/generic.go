package extractor

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/partners4saas/engine/internal/models"
	"github.com/shopspring/decimal"
)

// genericPayload 平台原生 webhook 载荷
type genericPayload struct {
	EventType  string          `json:"event_type"`
	ExternalID string          `json:"external_id"`
	UserKey    string          `json:"user_key"`
	Amount     json.RawMessage `json:"amount"`
	Currency   string          `json:"currency"`
	OccurredAt string          `json:"occurred_at"`
	Metadata   models.JSON     `json:"metadata"`
}

// GenericExtractor 通用解析策略，处理平台原生载荷格式
type GenericExtractor struct{}

// NewGenericExtractor 创建通用解析策略
func NewGenericExtractor() *GenericExtractor {
	return &GenericExtractor{}
}

// Name 策略名
func (e *GenericExtractor) Name() string {
	return "generic"
}

// Extract 解析载荷
func (e *GenericExtractor) Extract(body []byte) (*CanonicalEvent, error) {
	var payload genericPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, ErrPayloadInvalid
	}
	eventType := strings.ToLower(strings.TrimSpace(payload.EventType))
	if eventType == "" {
		return nil, ErrEventTypeEmpty
	}
	externalID := strings.TrimSpace(payload.ExternalID)
	if externalID == "" {
		return nil, ErrExternalIDEmpty
	}

	amount, err := parseAmount(payload.Amount)
	if err != nil {
		return nil, err
	}

	event := &CanonicalEvent{
		ExternalID: externalID,
		EventType:  eventType,
		UserKey:    strings.TrimSpace(payload.UserKey),
		Amount:     amount,
		Currency:   normalizeCurrency(payload.Currency),
		Metadata:   payload.Metadata,
	}
	if ts := parseTimestamp(payload.OccurredAt); ts != nil {
		event.OccurredAt = ts
	}
	return event, nil
}

// parseAmount 兼容字符串与数字两种金额格式
func parseAmount(raw json.RawMessage) (models.Money, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return models.Money{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return models.Money{}, ErrPayloadInvalid
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return models.Money{}, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return models.Money{}, ErrPayloadInvalid
		}
		return models.NewMoneyFromDecimal(d), nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return models.Money{}, ErrPayloadInvalid
	}
	return models.NewMoneyFromDecimal(decimal.NewFromFloat(f)), nil
}

func normalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

func parseTimestamp(value string) *time.Time {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			return &ts
		}
	}
	return nil
}

package extractor

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/partners4saas/engine/internal/constants"
	"github.com/partners4saas/engine/internal/models"
	"github.com/shopspring/decimal"
)

// stripe 金额按分计价，这里列出零小数位货币
var stripeZeroDecimalCurrencies = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {},
	"KRW": {}, "MGA": {}, "PYG": {}, "RWF": {}, "UGX": {}, "VND": {},
	"VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

// stripe 事件类型到平台事件类型的映射
var stripeEventTypes = map[string]string{
	"checkout.session.completed":           constants.EventTypePurchase,
	"customer.created":                     constants.EventTypeSignup,
	"customer.subscription.created":        constants.EventTypeSubscription,
	"customer.subscription.updated":        constants.EventTypeRenewal,
	"invoice.paid":                         constants.EventTypeRenewal,
	"customer.subscription.trial_will_end": constants.EventTypeTrialStart,
}

type stripePayload struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			ID                string      `json:"id"`
			AmountTotal       *int64      `json:"amount_total"`
			Amount            *int64      `json:"amount"`
			AmountPaid        *int64      `json:"amount_paid"`
			Currency          string      `json:"currency"`
			Customer          string      `json:"customer"`
			ClientReferenceID string      `json:"client_reference_id"`
			Metadata          models.JSON `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// StripeExtractor 解析 Stripe 形态的事件载荷
type StripeExtractor struct{}

// NewStripeExtractor 创建 Stripe 解析策略
func NewStripeExtractor() *StripeExtractor {
	return &StripeExtractor{}
}

// Name 策略名
func (e *StripeExtractor) Name() string {
	return "stripe"
}

// Extract 解析载荷
func (e *StripeExtractor) Extract(body []byte) (*CanonicalEvent, error) {
	var payload stripePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, ErrPayloadInvalid
	}
	eventType, ok := stripeEventTypes[strings.TrimSpace(payload.Type)]
	if !ok {
		return nil, ErrEventTypeEmpty
	}
	externalID := strings.TrimSpace(payload.ID)
	if externalID == "" {
		externalID = strings.TrimSpace(payload.Data.Object.ID)
	}
	if externalID == "" {
		return nil, ErrExternalIDEmpty
	}

	currency := normalizeCurrency(payload.Data.Object.Currency)
	userKey := strings.TrimSpace(payload.Data.Object.ClientReferenceID)
	if userKey == "" {
		userKey = strings.TrimSpace(payload.Data.Object.Customer)
	}

	event := &CanonicalEvent{
		ExternalID: externalID,
		EventType:  eventType,
		UserKey:    userKey,
		Amount:     stripeAmount(payload, currency),
		Currency:   currency,
		Metadata:   payload.Data.Object.Metadata,
	}
	if payload.Created > 0 {
		ts := time.Unix(payload.Created, 0).UTC()
		event.OccurredAt = &ts
	}
	return event, nil
}

// stripeAmount 把最小货币单位换算为主单位
func stripeAmount(payload stripePayload, currency string) models.Money {
	var cents *int64
	switch {
	case payload.Data.Object.AmountTotal != nil:
		cents = payload.Data.Object.AmountTotal
	case payload.Data.Object.AmountPaid != nil:
		cents = payload.Data.Object.AmountPaid
	case payload.Data.Object.Amount != nil:
		cents = payload.Data.Object.Amount
	}
	if cents == nil {
		return models.Money{}
	}
	amount := decimal.NewFromInt(*cents)
	if _, zero := stripeZeroDecimalCurrencies[currency]; !zero {
		amount = amount.Div(decimal.NewFromInt(100))
	}
	return models.NewMoneyFromDecimal(amount)
}

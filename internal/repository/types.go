package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// PartnerListFilter 查询合作伙伴列表的过滤条件
type PartnerListFilter struct {
	Page       int
	PageSize   int
	Keyword    string
	OnlyActive bool
}

// EventListFilter 查询转化事件列表的过滤条件
type EventListFilter struct {
	Page        int
	PageSize    int
	PartnerID   uint
	EventType   string
	Status      string
	ExternalID  string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// PayoutListFilter 查询结算单列表的过滤条件
type PayoutListFilter struct {
	Page      int
	PageSize  int
	PartnerID uint
	Status    string
}

// WebhookLogListFilter 查询 Webhook 日志的过滤条件
type WebhookLogListFilter struct {
	Page        int
	PageSize    int
	PartnerID   uint
	OnlyFailed  bool
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// EventStatusSum 按状态汇总的佣金金额
type EventStatusSum struct {
	Status          string          `gorm:"column:commission_status"`
	EventCount      int64           `gorm:"column:event_count"`
	RevenueTotal    decimal.Decimal `gorm:"column:revenue_total"`
	CommissionTotal decimal.Decimal `gorm:"column:commission_total"`
}

// EventTypeSum 按事件类型汇总
type EventTypeSum struct {
	EventType       string          `gorm:"column:event_type"`
	EventCount      int64           `gorm:"column:event_count"`
	RevenueTotal    decimal.Decimal `gorm:"column:revenue_total"`
	CommissionTotal decimal.Decimal `gorm:"column:commission_total"`
}

// DailyEventSum 按天汇总
type DailyEventSum struct {
	Day             string          `gorm:"column:day"`
	EventCount      int64           `gorm:"column:event_count"`
	RevenueTotal    decimal.Decimal `gorm:"column:revenue_total"`
	CommissionTotal decimal.Decimal `gorm:"column:commission_total"`
}

// PartnerTotals 跨周期汇总
type PartnerTotals struct {
	PartnerID       uint            `gorm:"column:partner_id"`
	EventCount      int64           `gorm:"column:event_count"`
	RevenueTotal    decimal.Decimal `gorm:"column:revenue_total"`
	CommissionTotal decimal.Decimal `gorm:"column:commission_total"`
}

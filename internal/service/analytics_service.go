package service

import (
	"context"
	"fmt"
	"time"

	"github.com/partners4saas/engine/internal/cache"
	"github.com/partners4saas/engine/internal/logger"
	"github.com/partners4saas/engine/internal/models"
	"github.com/partners4saas/engine/internal/repository"
	"github.com/shopspring/decimal"
)

const (
	analyticsHotTTL    = time.Minute
	analyticsClosedTTL = time.Hour
	serviceMetricsTTL  = 5 * time.Minute
)

// AnalyticsService 运营分析服务
type AnalyticsService struct {
	eventRepo       repository.EventRepository
	attributionRepo repository.AttributionRepository
	partnerRepo     repository.PartnerRepository
	store           cache.Store
}

// NewAnalyticsService 创建运营分析服务
func NewAnalyticsService(
	eventRepo repository.EventRepository,
	attributionRepo repository.AttributionRepository,
	partnerRepo repository.PartnerRepository,
	store cache.Store,
) *AnalyticsService {
	if store == nil {
		store = cache.NewNoopStore()
	}
	return &AnalyticsService{
		eventRepo:       eventRepo,
		attributionRepo: attributionRepo,
		partnerRepo:     partnerRepo,
		store:           store,
	}
}

// DailyPoint 日维度数据点
type DailyPoint struct {
	Day             string       `json:"day"`
	EventCount      int64        `json:"event_count"`
	RevenueTotal    models.Money `json:"revenue_total"`
	CommissionTotal models.Money `json:"commission_total"`
}

// PartnerAnalytics 合作伙伴分析报表
type PartnerAnalytics struct {
	PartnerID       uint                      `json:"partner_id"`
	From            time.Time                 `json:"from"`
	To              time.Time                 `json:"to"`
	ClickCount      int64                     `json:"click_count"`
	ConversionCount int64                     `json:"conversion_count"`
	ConversionRate  float64                   `json:"conversion_rate"`
	AvgOrderValue   models.Money              `json:"avg_order_value"`
	RevenueTotal    models.Money              `json:"revenue_total"`
	CommissionTotal models.Money              `json:"commission_total"`
	ByStatus        map[string]models.Money   `json:"by_status"`
	ByType          []repository.EventTypeSum `json:"by_type"`
	Daily           []DailyPoint              `json:"daily"`
}

// ServiceMetrics 全局运营指标
type ServiceMetrics struct {
	ActivePartners  int64                      `json:"active_partners"`
	EventCount      int64                      `json:"event_count"`
	RevenueTotal    models.Money               `json:"revenue_total"`
	CommissionTotal models.Money               `json:"commission_total"`
	TopPartners     []repository.PartnerTotals `json:"top_partners"`
	GeneratedAt     time.Time                  `json:"generated_at"`
}

// PartnerReport 生成合作伙伴分析报表
// 覆盖当天的查询短缓存，历史区间长缓存
func (s *AnalyticsService) PartnerReport(ctx context.Context, partnerID uint, from, to time.Time) (*PartnerAnalytics, error) {
	if s.eventRepo == nil || partnerID == 0 {
		return nil, ErrNotFound
	}
	if !to.After(from) {
		return nil, ErrParamInvalid
	}

	cacheKey := cache.PartnerAnalyticsKey(partnerID, fmt.Sprintf("%s_%s", from.Format("20060102"), to.Format("20060102")))
	var cached PartnerAnalytics
	if hit, err := s.store.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	report := &PartnerAnalytics{
		PartnerID: partnerID,
		From:      from,
		To:        to,
		ByStatus:  make(map[string]models.Money),
	}

	clicks, err := s.attributionRepo.CountByPartner(partnerID, from, to)
	if err != nil {
		return nil, err
	}
	report.ClickCount = clicks

	conversions, err := s.eventRepo.CountConversions(partnerID, from, to)
	if err != nil {
		return nil, err
	}
	report.ConversionCount = conversions
	if clicks > 0 {
		report.ConversionRate = float64(conversions) / float64(clicks) * 100
	}

	statusRows, err := s.eventRepo.SumByStatus(partnerID, from, to)
	if err != nil {
		return nil, err
	}
	revenue := decimal.Zero
	commission := decimal.Zero
	for _, row := range statusRows {
		revenue = revenue.Add(row.RevenueTotal)
		commission = commission.Add(row.CommissionTotal)
		report.ByStatus[row.Status] = models.NewMoneyFromDecimal(row.CommissionTotal)
	}
	report.RevenueTotal = models.NewMoneyFromDecimal(revenue)
	report.CommissionTotal = models.NewMoneyFromDecimal(commission)
	if conversions > 0 {
		report.AvgOrderValue = models.NewMoneyFromDecimal(revenue.Div(decimal.NewFromInt(conversions)))
	}

	typeRows, err := s.eventRepo.SumByType(partnerID, from, to)
	if err != nil {
		return nil, err
	}
	report.ByType = typeRows

	dayRows, err := s.eventRepo.SumByDay(partnerID, from, to)
	if err != nil {
		return nil, err
	}
	report.Daily = make([]DailyPoint, 0, len(dayRows))
	for _, row := range dayRows {
		report.Daily = append(report.Daily, DailyPoint{
			Day:             row.Day,
			EventCount:      row.EventCount,
			RevenueTotal:    models.NewMoneyFromDecimal(row.RevenueTotal),
			CommissionTotal: models.NewMoneyFromDecimal(row.CommissionTotal),
		})
	}

	ttl := analyticsClosedTTL
	if to.After(startOfDay(time.Now())) {
		ttl = analyticsHotTTL
	}
	if err := s.store.SetJSON(ctx, cacheKey, report, ttl); err != nil {
		logger.Warnw("analytics_cache_write_failed", "partner_id", partnerID, "error", err.Error())
	}
	return report, nil
}

// Metrics 生成全局运营指标
func (s *AnalyticsService) Metrics(ctx context.Context, from, to time.Time) (*ServiceMetrics, error) {
	if s.eventRepo == nil || s.partnerRepo == nil {
		return nil, ErrNotFound
	}
	if !to.After(from) {
		return nil, ErrParamInvalid
	}

	var cached ServiceMetrics
	if hit, err := s.store.GetJSON(ctx, cache.ServiceMetricsKey(), &cached); err == nil && hit {
		return &cached, nil
	}

	metrics := &ServiceMetrics{GeneratedAt: time.Now()}
	activeCount, err := s.partnerRepo.CountActive()
	if err != nil {
		return nil, err
	}
	metrics.ActivePartners = activeCount

	totals, err := s.eventRepo.TotalsByPartner(from, to)
	if err != nil {
		return nil, err
	}
	revenue := decimal.Zero
	commission := decimal.Zero
	for _, row := range totals {
		metrics.EventCount += row.EventCount
		revenue = revenue.Add(row.RevenueTotal)
		commission = commission.Add(row.CommissionTotal)
	}
	metrics.RevenueTotal = models.NewMoneyFromDecimal(revenue)
	metrics.CommissionTotal = models.NewMoneyFromDecimal(commission)
	metrics.TopPartners = totals

	if err := s.store.SetJSON(ctx, cache.ServiceMetricsKey(), metrics, serviceMetricsTTL); err != nil {
		logger.Warnw("analytics_cache_write_failed", "error", err.Error())
	}
	return metrics, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

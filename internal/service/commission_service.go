package service

import (
	"strings"
	"time"

	"github.com/partners4saas/engine/internal/constants"
	"github.com/partners4saas/engine/internal/logger"
	"github.com/partners4saas/engine/internal/models"
	"github.com/partners4saas/engine/internal/repository"
	"github.com/shopspring/decimal"
)

// CommissionService 佣金生命周期服务
type CommissionService struct {
	eventRepo       repository.EventRepository
	partnerRepo     repository.PartnerRepository
	attributionRepo repository.AttributionRepository
}

// NewCommissionService 创建佣金服务
func NewCommissionService(
	eventRepo repository.EventRepository,
	partnerRepo repository.PartnerRepository,
	attributionRepo repository.AttributionRepository,
) *CommissionService {
	return &CommissionService{
		eventRepo:       eventRepo,
		partnerRepo:     partnerRepo,
		attributionRepo: attributionRepo,
	}
}

// CommissionSummary 佣金汇总
type CommissionSummary struct {
	PartnerID       uint                    `json:"partner_id"`
	ClickCount      int64                   `json:"click_count"`
	EventCount      int64                   `json:"event_count"`
	ConversionRate  float64                 `json:"conversion_rate"`
	AvgOrderValue   models.Money            `json:"avg_order_value"`
	RevenueTotal    models.Money            `json:"revenue_total"`
	CommissionTotal models.Money            `json:"commission_total"`
	ByStatus        map[string]models.Money `json:"by_status"`
}

// VerifyEvent 核实事件佣金：pending -> confirmed
func (s *CommissionService) VerifyEvent(id uint) (*models.ConversionEvent, error) {
	event, err := s.getEvent(id)
	if err != nil {
		return nil, err
	}
	if event.CommissionStatus != constants.CommissionStatusPending {
		return nil, ErrEventStatusInvalid
	}
	now := time.Now()
	event.CommissionStatus = constants.CommissionStatusConfirmed
	event.IsVerified = true
	event.VerifiedAt = &now
	event.DisputeReason = ""
	event.UpdatedAt = now
	if err := s.eventRepo.Update(event); err != nil {
		return nil, err
	}
	logger.Infow("commission_event_verified", "event_id", event.ID, "partner_id", event.PartnerID)
	return event, nil
}

// DisputeEvent 争议事件佣金：pending/confirmed -> disputed
// 已打款事件不可争议
func (s *CommissionService) DisputeEvent(id uint, reason string) (*models.ConversionEvent, error) {
	event, err := s.getEvent(id)
	if err != nil {
		return nil, err
	}
	switch event.CommissionStatus {
	case constants.CommissionStatusPending, constants.CommissionStatusConfirmed:
	default:
		return nil, ErrEventStatusInvalid
	}
	event.CommissionStatus = constants.CommissionStatusDisputed
	event.DisputeReason = truncate(reason, 255)
	event.UpdatedAt = time.Now()
	if err := s.eventRepo.Update(event); err != nil {
		return nil, err
	}
	logger.Warnw("commission_event_disputed",
		"event_id", event.ID,
		"partner_id", event.PartnerID,
		"reason", event.DisputeReason,
	)
	return event, nil
}

// ReinstateEvent 争议撤销：disputed -> confirmed
// 撤销即重新核实，事件回到可结算集合
func (s *CommissionService) ReinstateEvent(id uint) (*models.ConversionEvent, error) {
	event, err := s.getEvent(id)
	if err != nil {
		return nil, err
	}
	if event.CommissionStatus != constants.CommissionStatusDisputed {
		return nil, ErrEventStatusInvalid
	}
	now := time.Now()
	event.CommissionStatus = constants.CommissionStatusConfirmed
	event.DisputeReason = ""
	event.IsVerified = true
	event.VerifiedAt = &now
	event.UpdatedAt = now
	if err := s.eventRepo.Update(event); err != nil {
		return nil, err
	}
	logger.Infow("commission_event_reinstated", "event_id", event.ID, "partner_id", event.PartnerID)
	return event, nil
}

// RecalculationResult 佣金复核结果
type RecalculationResult struct {
	Event    *models.ConversionEvent `json:"event"`
	Expected models.Money            `json:"expected"`
	Stored   models.Money            `json:"stored"`
	Match    bool                    `json:"match"`
}

// RecalculateEvent 按事件快照复核佣金
// 只读审计：用事件上存档的条款（比例或固定金额）重算并比对，不修改任何数据。
// 合作伙伴后续的规则或配置变更不影响历史快照。
func (s *CommissionService) RecalculateEvent(id uint) (*RecalculationResult, error) {
	event, err := s.getEvent(id)
	if err != nil {
		return nil, err
	}

	snapshot := &models.Partner{
		CommissionType: event.CommissionType,
		CommissionRate: event.CommissionRate,
		FixedAmount:    event.CommissionRate,
	}
	quote := ComputeCommission(snapshot, event.EventType, event.Amount)

	result := &RecalculationResult{
		Event:    event,
		Expected: quote.Amount,
		Stored:   event.CommissionAmount,
		Match:    quote.Amount.Decimal.Equal(event.CommissionAmount.Decimal),
	}
	if !result.Match {
		logger.Warnw("commission_recalculation_mismatch",
			"event_id", event.ID,
			"partner_id", event.PartnerID,
			"expected", result.Expected.String(),
			"stored", result.Stored.String(),
		)
	}
	return result, nil
}

// GetEvent 获取事件
func (s *CommissionService) GetEvent(id uint) (*models.ConversionEvent, error) {
	return s.getEvent(id)
}

// ListEvents 查询事件列表
func (s *CommissionService) ListEvents(filter repository.EventListFilter) ([]models.ConversionEvent, int64, error) {
	if s.eventRepo == nil {
		return nil, 0, ErrNotFound
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		switch status {
		case constants.CommissionStatusPending, constants.CommissionStatusConfirmed,
			constants.CommissionStatusDisputed, constants.CommissionStatusPaid:
		default:
			return nil, 0, ErrParamInvalid
		}
	}
	return s.eventRepo.List(filter)
}

// Summarize 汇总窗口内的合作伙伴佣金
// 转化率按点击数折算成百分比，均值除零时返回 0
func (s *CommissionService) Summarize(partnerID uint, from, to time.Time) (*CommissionSummary, error) {
	if s.eventRepo == nil || s.partnerRepo == nil || partnerID == 0 {
		return nil, ErrNotFound
	}
	partner, err := s.partnerRepo.GetByID(partnerID)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, ErrNotFound
	}
	rows, err := s.eventRepo.SumByStatus(partnerID, from, to)
	if err != nil {
		return nil, err
	}
	summary := &CommissionSummary{
		PartnerID: partnerID,
		ByStatus:  make(map[string]models.Money),
	}
	revenue := decimal.Zero
	commission := decimal.Zero
	for _, row := range rows {
		summary.EventCount += row.EventCount
		revenue = revenue.Add(row.RevenueTotal)
		commission = commission.Add(row.CommissionTotal)
		summary.ByStatus[row.Status] = models.NewMoneyFromDecimal(row.CommissionTotal)
	}
	summary.RevenueTotal = models.NewMoneyFromDecimal(revenue)
	summary.CommissionTotal = models.NewMoneyFromDecimal(commission)

	if s.attributionRepo != nil {
		clicks, err := s.attributionRepo.CountByPartner(partnerID, from, to)
		if err != nil {
			return nil, err
		}
		summary.ClickCount = clicks
	}
	if summary.ClickCount > 0 {
		summary.ConversionRate = float64(summary.EventCount) / float64(summary.ClickCount) * 100
	}
	if summary.EventCount > 0 {
		summary.AvgOrderValue = models.NewMoneyFromDecimal(
			revenue.Div(decimal.NewFromInt(summary.EventCount)),
		)
	}
	return summary, nil
}

func (s *CommissionService) getEvent(id uint) (*models.ConversionEvent, error) {
	if s.eventRepo == nil || id == 0 {
		return nil, ErrNotFound
	}
	event, err := s.eventRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrNotFound
	}
	return event, nil
}

package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/partners4saas/engine/internal/constants"
	"github.com/partners4saas/engine/internal/logger"
	"github.com/partners4saas/engine/internal/models"
	"github.com/partners4saas/engine/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SettlementService 佣金结算服务
type SettlementService struct {
	eventRepo   repository.EventRepository
	payoutRepo  repository.PayoutRepository
	partnerRepo repository.PartnerRepository
}

// NewSettlementService 创建结算服务
func NewSettlementService(
	eventRepo repository.EventRepository,
	payoutRepo repository.PayoutRepository,
	partnerRepo repository.PartnerRepository,
) *SettlementService {
	return &SettlementService{
		eventRepo:   eventRepo,
		payoutRepo:  payoutRepo,
		partnerRepo: partnerRepo,
	}
}

// MonthlyRunResult 月度结算批次结果
type MonthlyRunResult struct {
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	PayoutCount int       `json:"payout_count"`
	SkipCount   int       `json:"skip_count"`
	FailCount   int       `json:"fail_count"`
}

// CreatePayout 为单个合作伙伴创建结算单
// 事务内对候选事件加行锁，确保并发结算不会重复吃掉同一事件。
// 锁定后行数与更新行数不一致时整体回滚。
func (s *SettlementService) CreatePayout(partnerID uint, periodStart, periodEnd time.Time, eventTypes []string) (*models.Payout, error) {
	if s.eventRepo == nil || s.payoutRepo == nil || partnerID == 0 {
		return nil, ErrNotFound
	}
	if !periodEnd.After(periodStart) {
		return nil, ErrParamInvalid
	}
	partner, err := s.partnerRepo.GetByID(partnerID)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, ErrNotFound
	}

	var payout *models.Payout
	err = s.eventRepo.Transaction(func(tx *gorm.DB) error {
		eventRepo := s.eventRepo.WithTx(tx)
		payoutRepo := s.payoutRepo.WithTx(tx)

		events, err := eventRepo.ListConfirmedForSettlementForUpdate(partnerID, periodStart, periodEnd, eventTypes)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return ErrNothingToSettle
		}

		total := decimal.Zero
		ids := make(models.UintSlice, 0, len(events))
		for _, event := range events {
			total = total.Add(event.CommissionAmount.Decimal)
			ids = append(ids, event.ID)
		}

		now := time.Now()
		payout = &models.Payout{
			PayoutNo:    generatePayoutNo(),
			PartnerID:   partnerID,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
			EventIDs:    ids,
			EventCount:  len(ids),
			TotalAmount: models.NewMoneyFromDecimal(total),
			Status:      constants.PayoutStatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := payoutRepo.Create(payout); err != nil {
			return err
		}

		affected, err := eventRepo.BatchMarkPaid([]uint(ids), payout.ID, now)
		if err != nil {
			return err
		}
		if affected != int64(len(ids)) {
			return fmt.Errorf("settlement conflict: locked %d events, updated %d", len(ids), affected)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("payout_created",
		"payout_no", payout.PayoutNo,
		"partner_id", partnerID,
		"event_count", payout.EventCount,
		"total_amount", payout.TotalAmount.String(),
	)
	return payout, nil
}

// ProcessMonthlyPayouts 对所有启用的合作伙伴执行月度结算
// 单个合作伙伴失败不影响其余批次
func (s *SettlementService) ProcessMonthlyPayouts(periodStart, periodEnd time.Time) (*MonthlyRunResult, error) {
	if s.partnerRepo == nil {
		return nil, ErrNotFound
	}
	partners, err := s.partnerRepo.ListActive()
	if err != nil {
		return nil, err
	}

	result := &MonthlyRunResult{PeriodStart: periodStart, PeriodEnd: periodEnd}
	for _, partner := range partners {
		_, err := s.CreatePayout(partner.ID, periodStart, periodEnd, nil)
		switch {
		case err == nil:
			result.PayoutCount++
		case err == ErrNothingToSettle:
			result.SkipCount++
		default:
			result.FailCount++
			logger.Errorw("monthly_payout_failed",
				"partner_id", partner.ID,
				"error", err.Error(),
			)
		}
	}
	logger.Infow("monthly_payout_run_done",
		"period_start", periodStart.Format("2006-01-02"),
		"period_end", periodEnd.Format("2006-01-02"),
		"created", result.PayoutCount,
		"skipped", result.SkipCount,
		"failed", result.FailCount,
	)
	return result, nil
}

// PreviousMonthPeriod 计算上一个自然月的结算区间
func PreviousMonthPeriod(now time.Time) (time.Time, time.Time) {
	firstOfThisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return firstOfThisMonth.AddDate(0, -1, 0), firstOfThisMonth
}

// MarkPaid 确认打款：pending -> paid
func (s *SettlementService) MarkPaid(id uint, paymentReference string) (*models.Payout, error) {
	payout, err := s.getPayout(id)
	if err != nil {
		return nil, err
	}
	if payout.Status != constants.PayoutStatusPending {
		return nil, ErrPayoutStatusInvalid
	}
	now := time.Now()
	payout.Status = constants.PayoutStatusPaid
	payout.PaymentReference = truncate(paymentReference, 128)
	payout.PaidAt = &now
	payout.UpdatedAt = now
	if err := s.payoutRepo.Update(payout); err != nil {
		return nil, err
	}
	logger.Infow("payout_marked_paid", "payout_no", payout.PayoutNo, "reference", payout.PaymentReference)
	return payout, nil
}

// Dispute 将结算单置为争议：pending -> disputed
// 已打款的结算单不可争议，事件集合保持不变
func (s *SettlementService) Dispute(id uint, reason string) (*models.Payout, error) {
	payout, err := s.getPayout(id)
	if err != nil {
		return nil, err
	}
	if payout.Status != constants.PayoutStatusPending {
		return nil, ErrPayoutStatusInvalid
	}
	payout.Status = constants.PayoutStatusDisputed
	payout.DisputeReason = truncate(reason, 255)
	payout.UpdatedAt = time.Now()
	if err := s.payoutRepo.Update(payout); err != nil {
		return nil, err
	}
	logger.Warnw("payout_disputed", "payout_no", payout.PayoutNo, "reason", payout.DisputeReason)
	return payout, nil
}

// Get 获取结算单
func (s *SettlementService) Get(id uint) (*models.Payout, error) {
	return s.getPayout(id)
}

// List 查询结算单列表
func (s *SettlementService) List(filter repository.PayoutListFilter) ([]models.Payout, int64, error) {
	if s.payoutRepo == nil {
		return nil, 0, ErrNotFound
	}
	return s.payoutRepo.List(filter)
}

func (s *SettlementService) getPayout(id uint) (*models.Payout, error) {
	if s.payoutRepo == nil || id == 0 {
		return nil, ErrNotFound
	}
	payout, err := s.payoutRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if payout == nil {
		return nil, ErrNotFound
	}
	return payout, nil
}

func generatePayoutNo() string {
	compact := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "PO" + time.Now().Format("200601") + compact[:16]
}

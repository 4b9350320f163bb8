package service

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/partners4saas/engine/internal/constants"
	"github.com/partners4saas/engine/internal/models"
	"github.com/partners4saas/engine/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupSettlementServiceTest(t *testing.T) (*SettlementService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:settlement_svc_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Partner{}, &models.ConversionEvent{}, &models.Payout{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	svc := NewSettlementService(
		repository.NewEventRepository(db),
		repository.NewPayoutRepository(db),
		repository.NewPartnerRepository(db),
	)
	return svc, db
}

func createSettlementEvent(t *testing.T, db *gorm.DB, partnerID uint, externalID, eventType, status string, commission int64, createdAt time.Time) *models.ConversionEvent {
	t.Helper()
	event := &models.ConversionEvent{
		PartnerID:        partnerID,
		EventType:        eventType,
		ExternalID:       externalID,
		Amount:           models.NewMoneyFromDecimal(decimal.NewFromInt(commission * 5)),
		Currency:         "USD",
		CommissionAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(commission)),
		CommissionType:   constants.CommissionTypePercentage,
		CommissionStatus: status,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
	if err := db.Create(event).Error; err != nil {
		t.Fatalf("create event failed: %v", err)
	}
	return event
}

func TestSettlementCreatePayout(t *testing.T) {
	svc, db := setupSettlementServiceTest(t)
	partner := createTestPartner(t, db, "settle-partner", 30)

	periodStart := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	inPeriod := periodStart.Add(10 * 24 * time.Hour)

	confirmed1 := createSettlementEvent(t, db, partner.ID, "ord-1", constants.EventTypePurchase, constants.CommissionStatusConfirmed, 20, inPeriod)
	confirmed2 := createSettlementEvent(t, db, partner.ID, "ord-2", constants.EventTypeSubscription, constants.CommissionStatusConfirmed, 30, inPeriod)
	// 未确认、争议与区间外的事件都不参与结算
	createSettlementEvent(t, db, partner.ID, "ord-3", constants.EventTypePurchase, constants.CommissionStatusPending, 40, inPeriod)
	createSettlementEvent(t, db, partner.ID, "ord-4", constants.EventTypePurchase, constants.CommissionStatusDisputed, 50, inPeriod)
	createSettlementEvent(t, db, partner.ID, "ord-5", constants.EventTypePurchase, constants.CommissionStatusConfirmed, 60, periodEnd.Add(time.Hour))

	payout, err := svc.CreatePayout(partner.ID, periodStart, periodEnd, nil)
	if err != nil {
		t.Fatalf("create payout failed: %v", err)
	}
	if payout.EventCount != 2 {
		t.Fatalf("expected 2 events settled, got %d", payout.EventCount)
	}
	if payout.TotalAmount.String() != "50.00" {
		t.Fatalf("expected total 50.00, got %s", payout.TotalAmount.String())
	}
	if !strings.HasPrefix(payout.PayoutNo, "PO") {
		t.Fatalf("unexpected payout no %s", payout.PayoutNo)
	}
	if payout.Status != constants.PayoutStatusPending {
		t.Fatalf("expected pending payout, got %s", payout.Status)
	}

	for _, id := range []uint{confirmed1.ID, confirmed2.ID} {
		var stored models.ConversionEvent
		if err := db.First(&stored, id).Error; err != nil {
			t.Fatalf("load event failed: %v", err)
		}
		if stored.CommissionStatus != constants.CommissionStatusPaid {
			t.Fatalf("expected event %d marked paid, got %s", id, stored.CommissionStatus)
		}
		if stored.PayoutID == nil || *stored.PayoutID != payout.ID {
			t.Fatalf("expected event %d linked to payout %d", id, payout.ID)
		}
	}
}

func TestSettlementCreatePayoutNoDoubleSettlement(t *testing.T) {
	svc, db := setupSettlementServiceTest(t)
	partner := createTestPartner(t, db, "double-settle", 30)

	periodStart := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	createSettlementEvent(t, db, partner.ID, "ord-once", constants.EventTypePurchase, constants.CommissionStatusConfirmed, 25, periodStart.Add(time.Hour))

	if _, err := svc.CreatePayout(partner.ID, periodStart, periodEnd, nil); err != nil {
		t.Fatalf("first settlement failed: %v", err)
	}
	if _, err := svc.CreatePayout(partner.ID, periodStart, periodEnd, nil); err != ErrNothingToSettle {
		t.Fatalf("expected ErrNothingToSettle on second run, got %v", err)
	}
}

func TestSettlementDefaultEventTypesExcludeSignup(t *testing.T) {
	svc, db := setupSettlementServiceTest(t)
	partner := createTestPartner(t, db, "signup-skip", 30)

	periodStart := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	createSettlementEvent(t, db, partner.ID, "sig-1", constants.EventTypeSignup, constants.CommissionStatusConfirmed, 10, periodStart.Add(time.Hour))

	if _, err := svc.CreatePayout(partner.ID, periodStart, periodEnd, nil); err != ErrNothingToSettle {
		t.Fatalf("expected signup excluded by default, got %v", err)
	}

	// 显式指定事件类型时可以纳入
	payout, err := svc.CreatePayout(partner.ID, periodStart, periodEnd, []string{constants.EventTypeSignup})
	if err != nil {
		t.Fatalf("explicit settlement failed: %v", err)
	}
	if payout.EventCount != 1 {
		t.Fatalf("expected 1 signup event settled, got %d", payout.EventCount)
	}
}

func TestSettlementCreatePayoutInvalidPeriod(t *testing.T) {
	svc, db := setupSettlementServiceTest(t)
	partner := createTestPartner(t, db, "bad-period", 30)

	at := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	if _, err := svc.CreatePayout(partner.ID, at, at, nil); err != ErrParamInvalid {
		t.Fatalf("expected ErrParamInvalid for empty period, got %v", err)
	}
	if _, err := svc.CreatePayout(partner.ID, at, at.Add(-time.Hour), nil); err != ErrParamInvalid {
		t.Fatalf("expected ErrParamInvalid for inverted period, got %v", err)
	}
}

func TestSettlementMarkPaid(t *testing.T) {
	svc, db := setupSettlementServiceTest(t)
	partner := createTestPartner(t, db, "mark-paid", 30)

	periodStart := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	createSettlementEvent(t, db, partner.ID, "ord-pay", constants.EventTypePurchase, constants.CommissionStatusConfirmed, 80, periodStart.Add(time.Hour))

	payout, err := svc.CreatePayout(partner.ID, periodStart, periodEnd, nil)
	if err != nil {
		t.Fatalf("create payout failed: %v", err)
	}

	paid, err := svc.MarkPaid(payout.ID, "wire-20260801-001")
	if err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	if paid.Status != constants.PayoutStatusPaid {
		t.Fatalf("expected paid status, got %s", paid.Status)
	}
	if paid.PaymentReference != "wire-20260801-001" {
		t.Fatalf("expected payment reference recorded, got %s", paid.PaymentReference)
	}
	if paid.PaidAt == nil {
		t.Fatalf("expected paid_at to be set")
	}

	// 已打款的结算单不允许重复打款或转入争议
	if _, err := svc.MarkPaid(payout.ID, "wire-again"); err != ErrPayoutStatusInvalid {
		t.Fatalf("expected ErrPayoutStatusInvalid on repeated mark, got %v", err)
	}
	if _, err := svc.Dispute(payout.ID, "late"); err != ErrPayoutStatusInvalid {
		t.Fatalf("expected ErrPayoutStatusInvalid disputing paid payout, got %v", err)
	}
}

func TestSettlementDispute(t *testing.T) {
	svc, db := setupSettlementServiceTest(t)
	partner := createTestPartner(t, db, "dispute-payout", 30)

	periodStart := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	createSettlementEvent(t, db, partner.ID, "ord-disp", constants.EventTypePurchase, constants.CommissionStatusConfirmed, 45, periodStart.Add(time.Hour))

	payout, err := svc.CreatePayout(partner.ID, periodStart, periodEnd, nil)
	if err != nil {
		t.Fatalf("create payout failed: %v", err)
	}

	disputed, err := svc.Dispute(payout.ID, "commission rule mismatch")
	if err != nil {
		t.Fatalf("dispute failed: %v", err)
	}
	if disputed.Status != constants.PayoutStatusDisputed {
		t.Fatalf("expected disputed status, got %s", disputed.Status)
	}
	if disputed.DisputeReason != "commission rule mismatch" {
		t.Fatalf("expected dispute reason recorded, got %s", disputed.DisputeReason)
	}
	// 事件集合保持不变
	if disputed.EventCount != 1 || len(disputed.EventIDs) != 1 {
		t.Fatalf("expected event set untouched, got %+v", disputed)
	}
}

func TestSettlementPaidEventIsTerminal(t *testing.T) {
	svc, db := setupSettlementServiceTest(t)
	partner := createTestPartner(t, db, "terminal", 30)

	periodStart := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	event := createSettlementEvent(t, db, partner.ID, "ord-term", constants.EventTypePurchase, constants.CommissionStatusConfirmed, 33, periodStart.Add(time.Hour))

	if _, err := svc.CreatePayout(partner.ID, periodStart, periodEnd, nil); err != nil {
		t.Fatalf("create payout failed: %v", err)
	}

	commissionSvc := NewCommissionService(
		repository.NewEventRepository(db),
		repository.NewPartnerRepository(db),
		repository.NewAttributionRepository(db),
	)
	if _, err := commissionSvc.DisputeEvent(event.ID, "too late"); err != ErrEventStatusInvalid {
		t.Fatalf("expected paid event to be terminal, got %v", err)
	}
}

func TestSettlementProcessMonthlyPayouts(t *testing.T) {
	svc, db := setupSettlementServiceTest(t)
	active := createTestPartner(t, db, "monthly-a", 30)
	empty := createTestPartner(t, db, "monthly-b", 30)
	_ = empty

	periodStart := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	createSettlementEvent(t, db, active.ID, "ord-m1", constants.EventTypePurchase, constants.CommissionStatusConfirmed, 70, periodStart.Add(time.Hour))

	result, err := svc.ProcessMonthlyPayouts(periodStart, periodEnd)
	if err != nil {
		t.Fatalf("monthly run failed: %v", err)
	}
	if result.PayoutCount != 1 {
		t.Fatalf("expected 1 payout created, got %d", result.PayoutCount)
	}
	if result.SkipCount != 1 {
		t.Fatalf("expected 1 partner skipped, got %d", result.SkipCount)
	}
	if result.FailCount != 0 {
		t.Fatalf("expected no failures, got %d", result.FailCount)
	}
}

func TestPreviousMonthPeriod(t *testing.T) {
	now := time.Date(2026, 8, 31, 15, 4, 5, 0, time.UTC)
	start, end := PreviousMonthPeriod(now)
	if !start.Equal(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected period start %v", start)
	}
	if !end.Equal(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected period end %v", end)
	}

	// 跨年
	start, end = PreviousMonthPeriod(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	if !start.Equal(time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected cross-year period %v %v", start, end)
	}
}

package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/partners4saas/engine/internal/constants"
	"github.com/partners4saas/engine/internal/models"
	"github.com/partners4saas/engine/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupCommissionServiceTest(t *testing.T) (*CommissionService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:commission_svc_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Partner{}, &models.Attribution{}, &models.ConversionEvent{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	svc := NewCommissionService(
		repository.NewEventRepository(db),
		repository.NewPartnerRepository(db),
		repository.NewAttributionRepository(db),
	)
	return svc, db
}

func createCommissionEvent(t *testing.T, db *gorm.DB, partnerID uint, externalID, status string, amount, commission int64) *models.ConversionEvent {
	t.Helper()
	now := time.Now()
	event := &models.ConversionEvent{
		PartnerID:        partnerID,
		EventType:        constants.EventTypePurchase,
		ExternalID:       externalID,
		Amount:           models.NewMoneyFromDecimal(decimal.NewFromInt(amount)),
		Currency:         "USD",
		CommissionAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(commission)),
		CommissionType:   constants.CommissionTypePercentage,
		CommissionStatus: status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := db.Create(event).Error; err != nil {
		t.Fatalf("create event failed: %v", err)
	}
	return event
}

func TestCommissionServiceVerifyEvent(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)
	partner := createTestPartner(t, db, "verify-p", 30)
	event := createCommissionEvent(t, db, partner.ID, "ord-v1", constants.CommissionStatusPending, 100, 20)

	verified, err := svc.VerifyEvent(event.ID)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if verified.CommissionStatus != constants.CommissionStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", verified.CommissionStatus)
	}
	if !verified.IsVerified || verified.VerifiedAt == nil {
		t.Fatalf("expected verified flags set")
	}

	// confirmed 不允许二次核实
	if _, err := svc.VerifyEvent(event.ID); err != ErrEventStatusInvalid {
		t.Fatalf("expected ErrEventStatusInvalid on second verify, got %v", err)
	}
}

func TestCommissionServiceDisputeAndReinstate(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)
	partner := createTestPartner(t, db, "dispute-p", 30)
	event := createCommissionEvent(t, db, partner.ID, "ord-d1", constants.CommissionStatusPending, 100, 20)

	disputed, err := svc.DisputeEvent(event.ID, "refund requested")
	if err != nil {
		t.Fatalf("dispute failed: %v", err)
	}
	if disputed.CommissionStatus != constants.CommissionStatusDisputed {
		t.Fatalf("expected disputed, got %s", disputed.CommissionStatus)
	}
	if disputed.DisputeReason != "refund requested" {
		t.Fatalf("expected reason recorded, got %s", disputed.DisputeReason)
	}

	// disputed 不允许直接核实
	if _, err := svc.VerifyEvent(event.ID); err != ErrEventStatusInvalid {
		t.Fatalf("expected ErrEventStatusInvalid verifying disputed event, got %v", err)
	}

	reinstated, err := svc.ReinstateEvent(event.ID)
	if err != nil {
		t.Fatalf("reinstate failed: %v", err)
	}
	if reinstated.CommissionStatus != constants.CommissionStatusConfirmed {
		t.Fatalf("expected confirmed after reinstate, got %s", reinstated.CommissionStatus)
	}
	if reinstated.DisputeReason != "" {
		t.Fatalf("expected dispute reason cleared")
	}
	if !reinstated.IsVerified || reinstated.VerifiedAt == nil {
		t.Fatalf("expected reinstated event re-verified")
	}

	// 回到 confirmed 后可以再次争议
	if _, err := svc.DisputeEvent(event.ID, "second look"); err != nil {
		t.Fatalf("dispute after reinstate failed: %v", err)
	}
}

func TestCommissionServiceDisputeConfirmedEvent(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)
	partner := createTestPartner(t, db, "dispute-c", 30)
	event := createCommissionEvent(t, db, partner.ID, "ord-dc", constants.CommissionStatusConfirmed, 100, 20)

	disputed, err := svc.DisputeEvent(event.ID, "chargeback")
	if err != nil {
		t.Fatalf("dispute confirmed event failed: %v", err)
	}
	if disputed.CommissionStatus != constants.CommissionStatusDisputed {
		t.Fatalf("expected disputed, got %s", disputed.CommissionStatus)
	}
}

func TestCommissionServiceReinstateRequiresDisputed(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)
	partner := createTestPartner(t, db, "reinstate-p", 30)
	event := createCommissionEvent(t, db, partner.ID, "ord-r1", constants.CommissionStatusPending, 100, 20)

	if _, err := svc.ReinstateEvent(event.ID); err != ErrEventStatusInvalid {
		t.Fatalf("expected ErrEventStatusInvalid reinstating pending event, got %v", err)
	}
}

func TestCommissionServiceRecalculateMatch(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)
	partner := createTestPartner(t, db, "recalc-p", 30)

	event := createCommissionEvent(t, db, partner.ID, "ord-rc", constants.CommissionStatusPending, 200, 40)
	if err := db.Model(event).Update("commission_rate", models.NewMoneyFromDecimal(decimal.NewFromInt(20))).Error; err != nil {
		t.Fatalf("set rate snapshot failed: %v", err)
	}
	if err := db.Model(event).Update("attribution_id", 1).Error; err != nil {
		t.Fatalf("bind attribution failed: %v", err)
	}

	// 复核用快照费率，合作伙伴当前规则变更不影响结果
	if err := db.Model(partner).Update("commission_rate", models.NewMoneyFromDecimal(decimal.NewFromInt(10))).Error; err != nil {
		t.Fatalf("update rate failed: %v", err)
	}

	result, err := svc.RecalculateEvent(event.ID)
	if err != nil {
		t.Fatalf("recalculate failed: %v", err)
	}
	if !result.Match {
		t.Fatalf("expected snapshot to match, expected %s stored %s", result.Expected.String(), result.Stored.String())
	}
	if result.Expected.String() != "40.00" {
		t.Fatalf("expected recomputed 40.00, got %s", result.Expected.String())
	}

	var stored models.ConversionEvent
	if err := db.First(&stored, event.ID).Error; err != nil {
		t.Fatalf("load event failed: %v", err)
	}
	if stored.CommissionAmount.String() != "40.00" {
		t.Fatalf("recalculation must not mutate the event, got %s", stored.CommissionAmount.String())
	}
}

func TestCommissionServiceRecalculateMismatch(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)
	partner := createTestPartner(t, db, "recalc-bad", 30)

	// 存档金额与快照费率不一致
	event := createCommissionEvent(t, db, partner.ID, "ord-bad", constants.CommissionStatusPending, 200, 99)
	if err := db.Model(event).Update("commission_rate", models.NewMoneyFromDecimal(decimal.NewFromInt(20))).Error; err != nil {
		t.Fatalf("set rate snapshot failed: %v", err)
	}
	if err := db.Model(event).Update("attribution_id", 1).Error; err != nil {
		t.Fatalf("bind attribution failed: %v", err)
	}

	result, err := svc.RecalculateEvent(event.ID)
	if err != nil {
		t.Fatalf("recalculate failed: %v", err)
	}
	if result.Match {
		t.Fatalf("expected mismatch for tampered amount")
	}
	if result.Expected.String() != "40.00" || result.Stored.String() != "99.00" {
		t.Fatalf("unexpected audit result expected %s stored %s", result.Expected.String(), result.Stored.String())
	}
}

func TestCommissionServiceRecalculateUnattributedZero(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)
	partner := createTestPartner(t, db, "recalc-zero", 30)

	// 未归因事件入库时佣金与条款快照一并归零，复核应同样得到零
	event := createCommissionEvent(t, db, partner.ID, "ord-rz", constants.CommissionStatusPending, 200, 0)

	result, err := svc.RecalculateEvent(event.ID)
	if err != nil {
		t.Fatalf("recalculate failed: %v", err)
	}
	if !result.Match || !result.Expected.IsZero() {
		t.Fatalf("expected zero-commission audit to match, expected %s", result.Expected.String())
	}

	// 快照非零而存储为零视作不一致
	tampered := createCommissionEvent(t, db, partner.ID, "ord-rz2", constants.CommissionStatusPending, 200, 0)
	if err := db.Model(tampered).Update("commission_rate", models.NewMoneyFromDecimal(decimal.NewFromInt(20))).Error; err != nil {
		t.Fatalf("set rate snapshot failed: %v", err)
	}
	result, err = svc.RecalculateEvent(tampered.ID)
	if err != nil {
		t.Fatalf("recalculate failed: %v", err)
	}
	if result.Match || result.Expected.String() != "40.00" {
		t.Fatalf("expected mismatch for zeroed amount with live snapshot, expected %s", result.Expected.String())
	}
}

func TestCommissionServiceListEvents(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)
	partner := createTestPartner(t, db, "list-p", 30)
	createCommissionEvent(t, db, partner.ID, "ord-l1", constants.CommissionStatusPending, 100, 20)
	createCommissionEvent(t, db, partner.ID, "ord-l2", constants.CommissionStatusConfirmed, 100, 20)
	createCommissionEvent(t, db, partner.ID, "ord-l3", constants.CommissionStatusConfirmed, 100, 20)

	events, total, err := svc.ListEvents(repository.EventListFilter{
		PartnerID: partner.ID,
		Status:    constants.CommissionStatusConfirmed,
		Page:      1,
		PageSize:  10,
	})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 2 || len(events) != 2 {
		t.Fatalf("expected 2 confirmed events, got total %d len %d", total, len(events))
	}

	if _, _, err := svc.ListEvents(repository.EventListFilter{Status: "bogus"}); err != ErrParamInvalid {
		t.Fatalf("expected ErrParamInvalid for unknown status, got %v", err)
	}
}

func TestCommissionServiceSummarize(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)
	partner := createTestPartner(t, db, "summary-p", 30)
	createCommissionEvent(t, db, partner.ID, "ord-s1", constants.CommissionStatusPending, 100, 20)
	createCommissionEvent(t, db, partner.ID, "ord-s2", constants.CommissionStatusConfirmed, 300, 60)

	now := time.Now()
	for i := 0; i < 4; i++ {
		click := models.Attribution{
			PartnerID: partner.ID,
			UserKey:   fmt.Sprintf("sum-user-%d", i),
			CreatedAt: now.Add(-30 * time.Minute),
			ExpiresAt: now.Add(30 * 24 * time.Hour),
		}
		if err := db.Create(&click).Error; err != nil {
			t.Fatalf("create click failed: %v", err)
		}
	}

	summary, err := svc.Summarize(partner.ID, now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	if summary.EventCount != 2 {
		t.Fatalf("expected 2 events, got %d", summary.EventCount)
	}
	if summary.ClickCount != 4 {
		t.Fatalf("expected 4 clicks, got %d", summary.ClickCount)
	}
	// 转化率按百分比折算
	if summary.ConversionRate != 50 {
		t.Fatalf("expected conversion rate 50, got %f", summary.ConversionRate)
	}
	if summary.AvgOrderValue.String() != "200.00" {
		t.Fatalf("expected avg order value 200.00, got %s", summary.AvgOrderValue.String())
	}
	if summary.RevenueTotal.String() != "400.00" {
		t.Fatalf("expected revenue 400.00, got %s", summary.RevenueTotal.String())
	}
	if summary.CommissionTotal.String() != "80.00" {
		t.Fatalf("expected commission 80.00, got %s", summary.CommissionTotal.String())
	}
	if summary.ByStatus[constants.CommissionStatusConfirmed].String() != "60.00" {
		t.Fatalf("expected confirmed bucket 60.00, got %s", summary.ByStatus[constants.CommissionStatusConfirmed].String())
	}
}

func TestCommissionServiceSummarizeZeroGuards(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)
	partner := createTestPartner(t, db, "summary-empty", 30)

	now := time.Now()
	summary, err := svc.Summarize(partner.ID, now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	// 没有点击与事件时比率为 0 而不是除零错误
	if summary.ConversionRate != 0 || !summary.AvgOrderValue.IsZero() {
		t.Fatalf("expected zero-guarded summary, got rate %f avg %s", summary.ConversionRate, summary.AvgOrderValue.String())
	}

	if _, err := svc.Summarize(9999, now.Add(-time.Hour), now.Add(time.Hour)); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for unknown partner, got %v", err)
	}
}

func TestCommissionServiceRecalculateFixedSnapshot(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)
	partner := createTestPartner(t, db, "recalc-fixed", 30)
	now := time.Now()

	// 固定佣金条款存档 15.00，存储值被改成 99.00
	corrupted := &models.ConversionEvent{
		PartnerID:        partner.ID,
		EventType:        constants.EventTypePurchase,
		ExternalID:       "ord-fx1",
		Amount:           models.NewMoneyFromDecimal(decimal.NewFromInt(999)),
		Currency:         "USD",
		CommissionAmount: models.NewMoneyFromDecimal(decimal.RequireFromString("99.00")),
		CommissionType:   constants.CommissionTypeFixed,
		CommissionRate:   models.NewMoneyFromDecimal(decimal.RequireFromString("15.00")),
		CommissionStatus: constants.CommissionStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := db.Create(corrupted).Error; err != nil {
		t.Fatalf("create event failed: %v", err)
	}

	result, err := svc.RecalculateEvent(corrupted.ID)
	if err != nil {
		t.Fatalf("recalculate failed: %v", err)
	}
	if result.Match {
		t.Fatalf("expected corrupted fixed commission to be flagged")
	}
	if result.Expected.String() != "15.00" || result.Stored.String() != "99.00" {
		t.Fatalf("expected 15.00 vs 99.00, got %s vs %s", result.Expected.String(), result.Stored.String())
	}

	clean := &models.ConversionEvent{
		PartnerID:        partner.ID,
		EventType:        constants.EventTypePurchase,
		ExternalID:       "ord-fx2",
		Amount:           models.NewMoneyFromDecimal(decimal.NewFromInt(999)),
		Currency:         "USD",
		CommissionAmount: models.NewMoneyFromDecimal(decimal.RequireFromString("15.00")),
		CommissionType:   constants.CommissionTypeFixed,
		CommissionRate:   models.NewMoneyFromDecimal(decimal.RequireFromString("15.00")),
		CommissionStatus: constants.CommissionStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := db.Create(clean).Error; err != nil {
		t.Fatalf("create event failed: %v", err)
	}
	result, err = svc.RecalculateEvent(clean.ID)
	if err != nil {
		t.Fatalf("recalculate failed: %v", err)
	}
	if !result.Match {
		t.Fatalf("expected intact fixed commission to match, got expected %s", result.Expected.String())
	}
}

func TestCommissionServiceRecalculateIgnoresPartnerConfig(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)
	partner := createTestPartner(t, db, "recalc-config", 30)

	// 入库时无归因不计佣，条款快照为零
	event := createCommissionEvent(t, db, partner.ID, "ord-cfg", constants.CommissionStatusPending, 100, 0)

	if err := db.Model(partner).Update("commission_on_unattributed", true).Error; err != nil {
		t.Fatalf("update flag failed: %v", err)
	}

	result, err := svc.RecalculateEvent(event.ID)
	if err != nil {
		t.Fatalf("recalculate failed: %v", err)
	}
	if !result.Match {
		t.Fatalf("expected historical event unaffected by config change, got expected %s", result.Expected.String())
	}
	if !result.Expected.IsZero() {
		t.Fatalf("expected zero from zeroed snapshot, got %s", result.Expected.String())
	}
}

package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/partners4saas/engine/internal/cache"
	"github.com/partners4saas/engine/internal/constants"
	"github.com/partners4saas/engine/internal/models"
	"github.com/partners4saas/engine/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupAnalyticsServiceTest(t *testing.T) (*AnalyticsService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:analytics_svc_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Partner{}, &models.Attribution{}, &models.ConversionEvent{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	svc := NewAnalyticsService(
		repository.NewEventRepository(db),
		repository.NewAttributionRepository(db),
		repository.NewPartnerRepository(db),
		cache.NewMemoryStore(),
	)
	return svc, db
}

func createAnalyticsClick(t *testing.T, db *gorm.DB, partnerID uint, userKey string, at time.Time) {
	t.Helper()
	click := models.Attribution{
		PartnerID: partnerID,
		UserKey:   userKey,
		CreatedAt: at,
		ExpiresAt: at.Add(30 * 24 * time.Hour),
	}
	if err := db.Create(&click).Error; err != nil {
		t.Fatalf("create click failed: %v", err)
	}
}

func TestAnalyticsPartnerReport(t *testing.T) {
	svc, db := setupAnalyticsServiceTest(t)
	partner := createTestPartner(t, db, "report-p", 30)

	now := time.Now()
	from := now.Add(-48 * time.Hour)
	to := now.Add(time.Hour)

	createAnalyticsClick(t, db, partner.ID, "u1", now.Add(-24*time.Hour))
	createAnalyticsClick(t, db, partner.ID, "u2", now.Add(-12*time.Hour))
	createAnalyticsClick(t, db, partner.ID, "u3", now.Add(-6*time.Hour))
	createAnalyticsClick(t, db, partner.ID, "u4", now.Add(-2*time.Hour))

	createCommissionEvent(t, db, partner.ID, "rep-1", constants.CommissionStatusConfirmed, 100, 20)
	createCommissionEvent(t, db, partner.ID, "rep-2", constants.CommissionStatusPending, 300, 60)

	report, err := svc.PartnerReport(context.Background(), partner.ID, from, to)
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if report.ClickCount != 4 {
		t.Fatalf("expected 4 clicks, got %d", report.ClickCount)
	}
	if report.ConversionCount != 2 {
		t.Fatalf("expected 2 conversions, got %d", report.ConversionCount)
	}
	if report.ConversionRate != 50 {
		t.Fatalf("expected conversion rate 50, got %f", report.ConversionRate)
	}
	if report.AvgOrderValue.String() != "200.00" {
		t.Fatalf("expected avg order value 200.00, got %s", report.AvgOrderValue.String())
	}
	if report.RevenueTotal.String() != "400.00" {
		t.Fatalf("expected revenue 400.00, got %s", report.RevenueTotal.String())
	}
	if report.CommissionTotal.String() != "80.00" {
		t.Fatalf("expected commission 80.00, got %s", report.CommissionTotal.String())
	}
	if report.ByStatus[constants.CommissionStatusConfirmed].String() != "20.00" {
		t.Fatalf("unexpected confirmed bucket %s", report.ByStatus[constants.CommissionStatusConfirmed].String())
	}
	if len(report.Daily) == 0 {
		t.Fatalf("expected daily series")
	}
}

func TestAnalyticsPartnerReportZeroClicks(t *testing.T) {
	svc, db := setupAnalyticsServiceTest(t)
	partner := createTestPartner(t, db, "zero-clicks", 30)
	createCommissionEvent(t, db, partner.ID, "zc-1", constants.CommissionStatusPending, 100, 20)

	now := time.Now()
	report, err := svc.PartnerReport(context.Background(), partner.ID, now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if report.ClickCount != 0 {
		t.Fatalf("expected 0 clicks, got %d", report.ClickCount)
	}
	// 没有点击时转化率定义为 0
	if report.ConversionRate != 0 {
		t.Fatalf("expected conversion rate 0, got %f", report.ConversionRate)
	}
}

func TestAnalyticsPartnerReportCached(t *testing.T) {
	svc, db := setupAnalyticsServiceTest(t)
	partner := createTestPartner(t, db, "cached-p", 30)
	createCommissionEvent(t, db, partner.ID, "cp-1", constants.CommissionStatusConfirmed, 100, 20)

	now := time.Now()
	from := now.Add(-time.Hour)
	to := now.Add(time.Hour)

	first, err := svc.PartnerReport(context.Background(), partner.ID, from, to)
	if err != nil {
		t.Fatalf("first report failed: %v", err)
	}

	// 第二次读取命中缓存，新写入的事件不可见
	createCommissionEvent(t, db, partner.ID, "cp-2", constants.CommissionStatusConfirmed, 500, 100)
	second, err := svc.PartnerReport(context.Background(), partner.ID, from, to)
	if err != nil {
		t.Fatalf("second report failed: %v", err)
	}
	if second.ConversionCount != first.ConversionCount {
		t.Fatalf("expected cached report, got conversion count %d vs %d", second.ConversionCount, first.ConversionCount)
	}
}

func TestAnalyticsPartnerReportInvalidPeriod(t *testing.T) {
	svc, db := setupAnalyticsServiceTest(t)
	partner := createTestPartner(t, db, "bad-range", 30)

	now := time.Now()
	if _, err := svc.PartnerReport(context.Background(), partner.ID, now, now); err != ErrParamInvalid {
		t.Fatalf("expected ErrParamInvalid for empty range, got %v", err)
	}
}

func TestAnalyticsMetrics(t *testing.T) {
	svc, db := setupAnalyticsServiceTest(t)
	top := createTestPartner(t, db, "metrics-top", 30)
	other := createTestPartner(t, db, "metrics-other", 30)

	inactive := createTestPartner(t, db, "metrics-off", 30)
	if err := db.Model(inactive).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	createCommissionEvent(t, db, top.ID, "m-1", constants.CommissionStatusConfirmed, 1000, 200)
	createCommissionEvent(t, db, top.ID, "m-2", constants.CommissionStatusConfirmed, 500, 100)
	createCommissionEvent(t, db, other.ID, "m-3", constants.CommissionStatusPending, 100, 20)

	now := time.Now()
	metrics, err := svc.Metrics(context.Background(), now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("metrics failed: %v", err)
	}
	if metrics.ActivePartners != 2 {
		t.Fatalf("expected 2 active partners, got %d", metrics.ActivePartners)
	}
	if metrics.EventCount != 3 {
		t.Fatalf("expected 3 events, got %d", metrics.EventCount)
	}
	if metrics.RevenueTotal.String() != "1600.00" {
		t.Fatalf("expected revenue 1600.00, got %s", metrics.RevenueTotal.String())
	}
	if metrics.CommissionTotal.String() != "320.00" {
		t.Fatalf("expected commission 320.00, got %s", metrics.CommissionTotal.String())
	}
	if len(metrics.TopPartners) == 0 {
		t.Fatalf("expected top partner rows")
	}
	if metrics.TopPartners[0].PartnerID != top.ID {
		t.Fatalf("expected partner %d on top, got %d", top.ID, metrics.TopPartners[0].PartnerID)
	}
	if !decimal.NewFromInt(300).Equal(metrics.TopPartners[0].CommissionTotal) {
		t.Fatalf("expected top commission 300, got %s", metrics.TopPartners[0].CommissionTotal.String())
	}
}

package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/partners4saas/engine/internal/cache"
	"github.com/partners4saas/engine/internal/constants"
	"github.com/partners4saas/engine/internal/models"
	"github.com/partners4saas/engine/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupAttributionServiceTest(t *testing.T) (*AttributionService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:attr_svc_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Partner{}, &models.Attribution{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	svc := NewAttributionService(
		repository.NewAttributionRepository(db),
		repository.NewPartnerRepository(db),
		cache.NewMemoryStore(),
	)
	return svc, db
}

func createTestPartner(t *testing.T, db *gorm.DB, slug string, windowDays int) *models.Partner {
	t.Helper()
	partner := &models.Partner{
		Name:                  slug,
		Slug:                  slug,
		CommissionType:        constants.CommissionTypePercentage,
		CommissionRate:        models.NewMoneyFromDecimal(decimal.NewFromInt(20)),
		AttributionWindowDays: windowDays,
		WebhookSecret:         "test-secret-" + slug,
		ReferralParam:         "via",
		ReferralCode:          "code-" + slug,
		IsActive:              true,
	}
	if err := db.Create(partner).Error; err != nil {
		t.Fatalf("create partner failed: %v", err)
	}
	return partner
}

func TestAttributionServiceRecordClick(t *testing.T) {
	svc, db := setupAttributionServiceTest(t)
	partner := createTestPartner(t, db, "click-partner", 30)

	attribution, err := svc.RecordClick(context.Background(), RecordClickInput{
		ReferralCode: partner.ReferralCode,
		UserKey:      "user-1",
		SiteID:       "docs",
		ClientIP:     "203.0.113.9",
	})
	if err != nil {
		t.Fatalf("record click failed: %v", err)
	}
	if attribution.PartnerID != partner.ID {
		t.Fatalf("expected partner %d, got %d", partner.ID, attribution.PartnerID)
	}
	window := attribution.ExpiresAt.Sub(attribution.CreatedAt)
	if window != 30*24*time.Hour {
		t.Fatalf("expected 30 day window, got %v", window)
	}
}

func TestAttributionServiceRecordClickBySlugFallback(t *testing.T) {
	svc, db := setupAttributionServiceTest(t)
	partner := createTestPartner(t, db, "slug-fallback", 30)

	attribution, err := svc.RecordClick(context.Background(), RecordClickInput{
		ReferralCode: partner.Slug,
		UserKey:      "user-2",
	})
	if err != nil {
		t.Fatalf("record click by slug failed: %v", err)
	}
	if attribution.PartnerID != partner.ID {
		t.Fatalf("expected slug fallback to match partner %d", partner.ID)
	}
}

func TestAttributionServiceRecordClickInactivePartner(t *testing.T) {
	svc, db := setupAttributionServiceTest(t)
	partner := createTestPartner(t, db, "paused-partner", 30)
	if err := db.Model(partner).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate partner failed: %v", err)
	}

	if _, err := svc.RecordClick(context.Background(), RecordClickInput{
		ReferralCode: partner.ReferralCode,
	}); err != ErrPartnerInactive {
		t.Fatalf("expected ErrPartnerInactive, got %v", err)
	}
}

func TestAttributionServiceResolveLastTouch(t *testing.T) {
	svc, db := setupAttributionServiceTest(t)
	partner := createTestPartner(t, db, "last-touch", 30)
	now := time.Now()

	older := models.Attribution{
		PartnerID: partner.ID,
		UserKey:   "user-lt",
		SiteID:    "old-site",
		CreatedAt: now.Add(-48 * time.Hour),
		ExpiresAt: now.Add(28 * 24 * time.Hour),
	}
	newer := models.Attribution{
		PartnerID: partner.ID,
		UserKey:   "user-lt",
		SiteID:    "new-site",
		CreatedAt: now.Add(-1 * time.Hour),
		ExpiresAt: now.Add(30 * 24 * time.Hour),
	}
	if err := db.Create(&older).Error; err != nil {
		t.Fatalf("create older click failed: %v", err)
	}
	if err := db.Create(&newer).Error; err != nil {
		t.Fatalf("create newer click failed: %v", err)
	}

	match, err := svc.Resolve(context.Background(), partner.ID, "user-lt")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if match.Confidence != constants.AttributionConfidenceUserKey {
		t.Fatalf("expected user_key confidence, got %s", match.Confidence)
	}
	if match.Attribution == nil || match.Attribution.ID != newer.ID {
		t.Fatalf("expected newest click to win")
	}
}

func TestAttributionServiceResolveExpiredWindow(t *testing.T) {
	svc, db := setupAttributionServiceTest(t)
	partner := createTestPartner(t, db, "expired-window", 30)
	now := time.Now()

	// 第 31 天：点击已出窗
	expired := models.Attribution{
		PartnerID: partner.ID,
		UserKey:   "user-exp",
		CreatedAt: now.Add(-31 * 24 * time.Hour),
		ExpiresAt: now.Add(-24 * time.Hour),
	}
	if err := db.Create(&expired).Error; err != nil {
		t.Fatalf("create expired click failed: %v", err)
	}

	match, err := svc.Resolve(context.Background(), partner.ID, "user-exp")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if match.Confidence != constants.AttributionConfidenceNone {
		t.Fatalf("expected none confidence for expired click, got %s", match.Confidence)
	}
	if match.Attribution != nil {
		t.Fatalf("expected no attribution for expired click")
	}
}

func TestAttributionServiceResolvePartnerRecentFallback(t *testing.T) {
	svc, db := setupAttributionServiceTest(t)
	partner := createTestPartner(t, db, "recent-fallback", 30)
	now := time.Now()

	anonymous := models.Attribution{
		PartnerID: partner.ID,
		UserKey:   "someone-else",
		CreatedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(29 * 24 * time.Hour),
	}
	if err := db.Create(&anonymous).Error; err != nil {
		t.Fatalf("create click failed: %v", err)
	}

	match, err := svc.Resolve(context.Background(), partner.ID, "unknown-user")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if match.Confidence != constants.AttributionConfidencePartnerRecent {
		t.Fatalf("expected partner_recent confidence, got %s", match.Confidence)
	}
}

func TestAttributionServiceEnrichMetadata(t *testing.T) {
	svc, db := setupAttributionServiceTest(t)
	partner := createTestPartner(t, db, "enrich-partner", 30)
	now := time.Now()

	attribution := models.Attribution{
		PartnerID: partner.ID,
		UserKey:   "user-enrich",
		Metadata:  models.JSON{"source": "newsletter"},
		CreatedAt: now,
		ExpiresAt: now.Add(30 * 24 * time.Hour),
	}
	if err := db.Create(&attribution).Error; err != nil {
		t.Fatalf("create click failed: %v", err)
	}

	enriched, err := svc.EnrichMetadata(attribution.ID, models.JSON{"campaign": "spring"})
	if err != nil {
		t.Fatalf("enrich failed: %v", err)
	}
	if enriched.Metadata["source"] != "newsletter" || enriched.Metadata["campaign"] != "spring" {
		t.Fatalf("expected merged metadata, got %+v", enriched.Metadata)
	}

	expired := models.Attribution{
		PartnerID: partner.ID,
		UserKey:   "user-gone",
		CreatedAt: now.Add(-40 * 24 * time.Hour),
		ExpiresAt: now.Add(-10 * 24 * time.Hour),
	}
	if err := db.Create(&expired).Error; err != nil {
		t.Fatalf("create expired click failed: %v", err)
	}
	if _, err := svc.EnrichMetadata(expired.ID, models.JSON{"late": true}); err != ErrAttributionExpired {
		t.Fatalf("expected ErrAttributionExpired, got %v", err)
	}
}

func TestAttributionServiceCleanupExpired(t *testing.T) {
	svc, db := setupAttributionServiceTest(t)
	partner := createTestPartner(t, db, "cleanup-partner", 30)
	now := time.Now()

	rows := []models.Attribution{
		{PartnerID: partner.ID, UserKey: "stale-1", CreatedAt: now.Add(-60 * 24 * time.Hour), ExpiresAt: now.Add(-30 * 24 * time.Hour)},
		{PartnerID: partner.ID, UserKey: "stale-2", CreatedAt: now.Add(-45 * 24 * time.Hour), ExpiresAt: now.Add(-15 * 24 * time.Hour)},
		{PartnerID: partner.ID, UserKey: "fresh", CreatedAt: now, ExpiresAt: now.Add(30 * 24 * time.Hour)},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("create click failed: %v", err)
		}
	}

	deleted, err := svc.CleanupExpired()
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted rows, got %d", deleted)
	}
	var remaining int64
	if err := db.Model(&models.Attribution{}).Count(&remaining).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("expected 1 remaining row, got %d", remaining)
	}
}

func TestAttributionServiceResolveStaleCacheSnapshot(t *testing.T) {
	svc, db := setupAttributionServiceTest(t)
	partner := createTestPartner(t, db, "stale-cache", 30)
	now := time.Now()

	older := models.Attribution{
		PartnerID: partner.ID,
		UserKey:   "user-stale",
		SiteID:    "old-site",
		CreatedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(29 * 24 * time.Hour),
	}
	newer := models.Attribution{
		PartnerID: partner.ID,
		UserKey:   "user-stale",
		SiteID:    "new-site",
		CreatedAt: now.Add(-1 * time.Hour),
		ExpiresAt: now.Add(30 * 24 * time.Hour),
	}
	if err := db.Create(&older).Error; err != nil {
		t.Fatalf("create older click failed: %v", err)
	}
	if err := db.Create(&newer).Error; err != nil {
		t.Fatalf("create newer click failed: %v", err)
	}

	// 并发点击竞态：快照停留在较早的点击上
	stale := cache.BuildAttributionSnapshot(&older)
	if err := cache.SetAttributionSnapshot(context.Background(), svc.store, stale, now); err != nil {
		t.Fatalf("seed cache failed: %v", err)
	}

	match, err := svc.Resolve(context.Background(), partner.ID, "user-stale")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if match.Attribution == nil || match.Attribution.ID != newer.ID {
		t.Fatalf("expected newest click to win over stale snapshot")
	}

	// 快照被校正为最新点击
	snapshot, hit, err := cache.GetAttributionSnapshot(context.Background(), svc.store, partner.ID, "user-stale")
	if err != nil {
		t.Fatalf("read cache failed: %v", err)
	}
	if !hit || snapshot == nil || snapshot.AttributionID != newer.ID {
		t.Fatalf("expected snapshot refreshed to newest click")
	}
}

func TestAttributionServiceResolveDropsOrphanSnapshot(t *testing.T) {
	svc, db := setupAttributionServiceTest(t)
	partner := createTestPartner(t, db, "orphan-cache", 30)
	now := time.Now()

	ghost := models.Attribution{
		ID:        4242,
		PartnerID: partner.ID,
		UserKey:   "user-orphan",
		CreatedAt: now.Add(-time.Hour),
		ExpiresAt: now.Add(24 * time.Hour),
	}
	if err := cache.SetAttributionSnapshot(context.Background(), svc.store, cache.BuildAttributionSnapshot(&ghost), now); err != nil {
		t.Fatalf("seed cache failed: %v", err)
	}

	match, err := svc.Resolve(context.Background(), partner.ID, "user-orphan")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if match.Attribution != nil || match.Confidence != constants.AttributionConfidenceNone {
		t.Fatalf("expected no attribution for orphan snapshot, got %+v", match)
	}

	_, hit, err := cache.GetAttributionSnapshot(context.Background(), svc.store, partner.ID, "user-orphan")
	if err != nil {
		t.Fatalf("read cache failed: %v", err)
	}
	if hit {
		t.Fatalf("expected orphan snapshot evicted")
	}
}

func TestTruncateRuneBoundary(t *testing.T) {
	value := strings.Repeat("a", 9) + "界面"
	got := truncate(value, 10)
	if got != strings.Repeat("a", 9) {
		t.Fatalf("expected cut before multi-byte rune, got %q", got)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("expected valid utf-8 after truncate, got %q", got)
	}
	if truncate("short", 10) != "short" {
		t.Fatalf("expected value under limit unchanged")
	}
	if got := truncate(strings.Repeat("界", 4), 7); got != "界界" || !utf8.ValidString(got) {
		t.Fatalf("expected cut on rune boundary, got %q", got)
	}
}

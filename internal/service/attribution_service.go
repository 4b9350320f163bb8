package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/partners4saas/engine/internal/cache"
	"github.com/partners4saas/engine/internal/constants"
	"github.com/partners4saas/engine/internal/logger"
	"github.com/partners4saas/engine/internal/models"
	"github.com/partners4saas/engine/internal/repository"
)

// AttributionService 归因业务服务
type AttributionService struct {
	repo        repository.AttributionRepository
	partnerRepo repository.PartnerRepository
	store       cache.Store
}

// NewAttributionService 创建归因服务
func NewAttributionService(
	repo repository.AttributionRepository,
	partnerRepo repository.PartnerRepository,
	store cache.Store,
) *AttributionService {
	if store == nil {
		store = cache.NewNoopStore()
	}
	return &AttributionService{
		repo:        repo,
		partnerRepo: partnerRepo,
		store:       store,
	}
}

// RecordClickInput 点击记录输入
type RecordClickInput struct {
	ReferralCode string
	UserKey      string
	SiteID       string
	ProjectID    string
	ClientIP     string
	UserAgent    string
	Referrer     string
	LandingPage  string
	Metadata     models.JSON
}

// AttributionMatch 归因裁决结果
type AttributionMatch struct {
	Attribution *models.Attribution
	Confidence  string
}

// RecordClick 记录推荐点击并写入归因记录
// 过期时间取合作伙伴归因窗口，停用的合作伙伴拒绝记录
func (s *AttributionService) RecordClick(ctx context.Context, input RecordClickInput) (*models.Attribution, error) {
	if s.repo == nil || s.partnerRepo == nil {
		return nil, ErrNotFound
	}
	partner, err := s.lookupPartner(input.ReferralCode)
	if err != nil {
		return nil, err
	}
	if !partner.IsActive {
		return nil, ErrPartnerInactive
	}

	now := time.Now()
	attribution := &models.Attribution{
		PartnerID:   partner.ID,
		UserKey:     strings.TrimSpace(input.UserKey),
		SiteID:      strings.TrimSpace(input.SiteID),
		ProjectID:   strings.TrimSpace(input.ProjectID),
		ClientIP:    strings.TrimSpace(input.ClientIP),
		UserAgent:   truncate(input.UserAgent, 1024),
		Referrer:    truncate(input.Referrer, 1024),
		LandingPage: truncate(input.LandingPage, 512),
		Metadata:    input.Metadata,
		CreatedAt:   now,
		ExpiresAt:   now.Add(partner.AttributionWindow()),
	}
	if err := s.repo.Create(attribution); err != nil {
		return nil, err
	}

	if attribution.UserKey != "" {
		snapshot := cache.BuildAttributionSnapshot(attribution)
		if err := cache.SetAttributionSnapshot(ctx, s.store, snapshot, now); err != nil {
			logger.Warnw("attribution_cache_write_failed",
				"partner_id", partner.ID,
				"attribution_id", attribution.ID,
				"error", err.Error(),
			)
		}
	}
	return attribution, nil
}

// Resolve 归因裁决：最近点击优先
// 缓存快照只作加速提示，裁决以 (partner, user_key) 的最新库表行为准，
// 并发点击下落后的快照在此校正，最后回退合作伙伴最近点击
func (s *AttributionService) Resolve(ctx context.Context, partnerID uint, userKey string) (*AttributionMatch, error) {
	if s.repo == nil || partnerID == 0 {
		return &AttributionMatch{Confidence: constants.AttributionConfidenceNone}, nil
	}
	now := time.Now()
	key := strings.TrimSpace(userKey)

	if key != "" {
		snapshot, hit, err := cache.GetAttributionSnapshot(ctx, s.store, partnerID, key)
		if err != nil {
			logger.Warnw("attribution_cache_read_failed",
				"partner_id", partnerID,
				"error", err.Error(),
			)
		}
		if snapshot != nil && !time.Unix(snapshot.ExpiresAt, 0).After(now) {
			snapshot = nil
		}

		attribution, err := s.repo.GetLatestValid(partnerID, key, now)
		if err != nil {
			return nil, err
		}
		if attribution != nil {
			if snapshot == nil || snapshot.AttributionID != attribution.ID {
				if snapshot != nil {
					logger.Infow("attribution_cache_stale",
						"partner_id", partnerID,
						"cached_attribution_id", snapshot.AttributionID,
						"attribution_id", attribution.ID,
					)
				}
				fresh := cache.BuildAttributionSnapshot(attribution)
				if err := cache.SetAttributionSnapshot(ctx, s.store, fresh, now); err != nil {
					logger.Warnw("attribution_cache_write_failed",
						"partner_id", partnerID,
						"attribution_id", attribution.ID,
						"error", err.Error(),
					)
				}
			}
			return &AttributionMatch{
				Attribution: attribution,
				Confidence:  constants.AttributionConfidenceUserKey,
			}, nil
		}
		if hit {
			if err := cache.DelAttributionSnapshot(ctx, s.store, partnerID, key); err != nil {
				logger.Warnw("attribution_cache_del_failed",
					"partner_id", partnerID,
					"error", err.Error(),
				)
			}
		}
	}

	recent, err := s.repo.GetLatestValidForPartner(partnerID, now)
	if err != nil {
		return nil, err
	}
	if recent != nil {
		return &AttributionMatch{
			Attribution: recent,
			Confidence:  constants.AttributionConfidencePartnerRecent,
		}, nil
	}
	return &AttributionMatch{Confidence: constants.AttributionConfidenceNone}, nil
}

// EnrichMetadata 合并归因扩展元数据
// 只允许补充元数据，归因主体字段创建后不可变
func (s *AttributionService) EnrichMetadata(id uint, patch models.JSON) (*models.Attribution, error) {
	if s.repo == nil || id == 0 {
		return nil, ErrNotFound
	}
	attribution, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if attribution == nil {
		return nil, ErrNotFound
	}
	if attribution.Expired(time.Now()) {
		return nil, ErrAttributionExpired
	}
	if len(patch) == 0 {
		return attribution, nil
	}
	merged := models.JSON{}
	for k, v := range attribution.Metadata {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	if err := s.repo.UpdateMetadata(id, merged); err != nil {
		return nil, err
	}
	attribution.Metadata = merged
	return attribution, nil
}

// CleanupExpired 删除过期的归因记录
func (s *AttributionService) CleanupExpired() (int64, error) {
	if s.repo == nil {
		return 0, nil
	}
	deleted, err := s.repo.DeleteExpired(time.Now())
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		logger.Infow("attribution_cleanup_done", "deleted", deleted)
	}
	return deleted, nil
}

func (s *AttributionService) lookupPartner(referralCode string) (*models.Partner, error) {
	code := strings.TrimSpace(referralCode)
	if code == "" {
		return nil, ErrParamInvalid
	}
	partner, err := s.partnerRepo.GetByReferralCode(code)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		partner, err = s.partnerRepo.GetBySlug(code)
		if err != nil {
			return nil, err
		}
	}
	if partner == nil {
		return nil, ErrNotFound
	}
	return partner, nil
}

// truncate 截断到字节上限，回退到完整的 UTF-8 字符边界
func truncate(value string, limit int) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) <= limit {
		return trimmed
	}
	for limit > 0 && !utf8.RuneStart(trimmed[limit]) {
		limit--
	}
	return trimmed[:limit]
}

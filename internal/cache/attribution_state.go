package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/partners4saas/engine/internal/models"
)

// AttributionSnapshot 归因快照
// 仅缓存归因裁决所需的最小字段，过期时间与归因窗口对齐
type AttributionSnapshot struct {
	AttributionID uint   `json:"attribution_id"`
	PartnerID     uint   `json:"partner_id"`
	UserKey       string `json:"user_key"`
	SiteID        string `json:"site_id,omitempty"`
	ProjectID     string `json:"project_id,omitempty"`
	CreatedAt     int64  `json:"created_at"`
	ExpiresAt     int64  `json:"expires_at"`
}

// BuildAttributionSnapshot 从归因模型构建快照
func BuildAttributionSnapshot(attr *models.Attribution) *AttributionSnapshot {
	if attr == nil {
		return nil
	}
	return &AttributionSnapshot{
		AttributionID: attr.ID,
		PartnerID:     attr.PartnerID,
		UserKey:       attr.UserKey,
		SiteID:        attr.SiteID,
		ProjectID:     attr.ProjectID,
		CreatedAt:     attr.CreatedAt.Unix(),
		ExpiresAt:     attr.ExpiresAt.Unix(),
	}
}

func attributionStateKey(partnerID uint, userKey string) string {
	return fmt.Sprintf("attr:%d:%s", partnerID, strings.TrimSpace(userKey))
}

// PartnerAnalyticsKey 合作伙伴分析缓存键
func PartnerAnalyticsKey(partnerID uint, day string) string {
	return fmt.Sprintf("analytics:partner:%d:%s", partnerID, day)
}

// ServiceMetricsKey 全局运营指标缓存键
func ServiceMetricsKey() string {
	return "analytics:service"
}

// GetAttributionSnapshot 获取归因快照
func GetAttributionSnapshot(ctx context.Context, store Store, partnerID uint, userKey string) (*AttributionSnapshot, bool, error) {
	if store == nil || partnerID == 0 || strings.TrimSpace(userKey) == "" {
		return nil, false, nil
	}
	var state AttributionSnapshot
	hit, err := store.GetJSON(ctx, attributionStateKey(partnerID, userKey), &state)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &state, true, nil
}

// SetAttributionSnapshot 写入归因快照
// TTL 以快照剩余有效期为上限，已过期的快照不写入
func SetAttributionSnapshot(ctx context.Context, store Store, state *AttributionSnapshot, now time.Time) error {
	if store == nil || state == nil || state.PartnerID == 0 || strings.TrimSpace(state.UserKey) == "" {
		return nil
	}
	ttl := time.Unix(state.ExpiresAt, 0).Sub(now)
	if ttl <= 0 {
		return nil
	}
	return store.SetJSON(ctx, attributionStateKey(state.PartnerID, state.UserKey), state, ttl)
}

// DelAttributionSnapshot 删除归因快照
func DelAttributionSnapshot(ctx context.Context, store Store, partnerID uint, userKey string) error {
	if store == nil || partnerID == 0 || strings.TrimSpace(userKey) == "" {
		return nil
	}
	return store.Del(ctx, attributionStateKey(partnerID, userKey))
}

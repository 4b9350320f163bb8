package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/partners4saas/engine/internal/models"
	"gorm.io/gorm"
)

// AttributionRepository 归因记录数据访问接口
type AttributionRepository interface {
	Create(attribution *models.Attribution) error
	GetByID(id uint) (*models.Attribution, error)
	GetLatestValid(partnerID uint, userKey string, now time.Time) (*models.Attribution, error)
	GetLatestValidForPartner(partnerID uint, now time.Time) (*models.Attribution, error)
	UpdateMetadata(id uint, metadata models.JSON) error
	CountByPartner(partnerID uint, from, to time.Time) (int64, error)
	DeleteExpired(now time.Time) (int64, error)
}

// GormAttributionRepository GORM 归因仓储
type GormAttributionRepository struct {
	db *gorm.DB
}

// NewAttributionRepository 创建归因仓储
func NewAttributionRepository(db *gorm.DB) *GormAttributionRepository {
	return &GormAttributionRepository{db: db}
}

// Create 创建归因记录
func (r *GormAttributionRepository) Create(attribution *models.Attribution) error {
	return r.db.Create(attribution).Error
}

// GetByID 按ID获取归因记录
func (r *GormAttributionRepository) GetByID(id uint) (*models.Attribution, error) {
	if id == 0 {
		return nil, nil
	}
	var row models.Attribution
	if err := r.db.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// GetLatestValid 查询某伙伴下指定身份的最近一次未过期点击（last-touch）
func (r *GormAttributionRepository) GetLatestValid(partnerID uint, userKey string, now time.Time) (*models.Attribution, error) {
	key := strings.TrimSpace(userKey)
	if partnerID == 0 || key == "" {
		return nil, nil
	}
	var row models.Attribution
	err := r.db.Where("partner_id = ? AND user_key = ? AND expires_at > ?", partnerID, key, now).
		Order("created_at DESC, id DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// GetLatestValidForPartner 查询某伙伴下最近一次未过期点击（匿名回退）
func (r *GormAttributionRepository) GetLatestValidForPartner(partnerID uint, now time.Time) (*models.Attribution, error) {
	if partnerID == 0 {
		return nil, nil
	}
	var row models.Attribution
	err := r.db.Where("partner_id = ? AND expires_at > ?", partnerID, now).
		Order("created_at DESC, id DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// UpdateMetadata 仅更新扩展元数据列
func (r *GormAttributionRepository) UpdateMetadata(id uint, metadata models.JSON) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.Attribution{}).
		Where("id = ?", id).
		Update("metadata", metadata).Error
}

// CountByPartner 统计窗口内的点击数
func (r *GormAttributionRepository) CountByPartner(partnerID uint, from, to time.Time) (int64, error) {
	if partnerID == 0 {
		return 0, nil
	}
	var total int64
	if err := r.db.Model(&models.Attribution{}).
		Where("partner_id = ? AND created_at >= ? AND created_at < ?", partnerID, from, to).
		Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// DeleteExpired 批量删除已过期的归因记录
func (r *GormAttributionRepository) DeleteExpired(now time.Time) (int64, error) {
	result := r.db.Where("expires_at <= ?", now).Delete(&models.Attribution{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

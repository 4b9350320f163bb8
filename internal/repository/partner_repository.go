package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/partners4saas/engine/internal/models"
	"gorm.io/gorm"
)

// PartnerRepository 合作伙伴数据访问接口
type PartnerRepository interface {
	GetByID(id uint) (*models.Partner, error)
	GetBySlug(slug string) (*models.Partner, error)
	GetByReferralCode(code string) (*models.Partner, error)
	Create(partner *models.Partner) error
	Update(partner *models.Partner) error
	UpdateActive(id uint, active bool, updatedAt time.Time) error
	List(filter PartnerListFilter) ([]models.Partner, int64, error)
	ListActive() ([]models.Partner, error)
	CountActive() (int64, error)
}

// GormPartnerRepository GORM 合作伙伴仓储
type GormPartnerRepository struct {
	db *gorm.DB
}

// NewPartnerRepository 创建合作伙伴仓储
func NewPartnerRepository(db *gorm.DB) *GormPartnerRepository {
	return &GormPartnerRepository{db: db}
}

// GetByID 按ID获取合作伙伴
func (r *GormPartnerRepository) GetByID(id uint) (*models.Partner, error) {
	if id == 0 {
		return nil, nil
	}
	var partner models.Partner
	if err := r.db.First(&partner, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &partner, nil
}

// GetBySlug 按唯一标识获取合作伙伴
func (r *GormPartnerRepository) GetBySlug(slug string) (*models.Partner, error) {
	normalized := strings.ToLower(strings.TrimSpace(slug))
	if normalized == "" {
		return nil, nil
	}
	var partner models.Partner
	if err := r.db.Where("slug = ?", normalized).First(&partner).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &partner, nil
}

// GetByReferralCode 按推荐码获取合作伙伴
func (r *GormPartnerRepository) GetByReferralCode(code string) (*models.Partner, error) {
	normalized := strings.TrimSpace(code)
	if normalized == "" {
		return nil, nil
	}
	var partner models.Partner
	if err := r.db.Where("referral_code = ?", normalized).First(&partner).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &partner, nil
}

// Create 创建合作伙伴
func (r *GormPartnerRepository) Create(partner *models.Partner) error {
	return r.db.Create(partner).Error
}

// Update 更新合作伙伴
func (r *GormPartnerRepository) Update(partner *models.Partner) error {
	return r.db.Save(partner).Error
}

// UpdateActive 更新启用状态
func (r *GormPartnerRepository) UpdateActive(id uint, active bool, updatedAt time.Time) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.Partner{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  active,
			"updated_at": updatedAt,
		}).Error
}

// List 查询合作伙伴列表
func (r *GormPartnerRepository) List(filter PartnerListFilter) ([]models.Partner, int64, error) {
	query := r.db.Model(&models.Partner{})
	if filter.OnlyActive {
		query = query.Where("is_active = ?", true)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		like := "%" + keyword + "%"
		query = query.Where("(name LIKE ? OR slug LIKE ? OR referral_code LIKE ?)", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.Partner
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListActive 查询全部启用的合作伙伴
func (r *GormPartnerRepository) ListActive() ([]models.Partner, error) {
	var rows []models.Partner
	if err := r.db.Where("is_active = ?", true).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountActive 统计启用的合作伙伴数
func (r *GormPartnerRepository) CountActive() (int64, error) {
	var total int64
	if err := r.db.Model(&models.Partner{}).Where("is_active = ?", true).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

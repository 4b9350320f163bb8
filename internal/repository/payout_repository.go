package repository

import (
	"errors"
	"strings"

	"github.com/partners4saas/engine/internal/constants"
	"github.com/partners4saas/engine/internal/models"
	"gorm.io/gorm"
)

// PayoutRepository 结算单数据访问接口
type PayoutRepository interface {
	WithTx(tx *gorm.DB) PayoutRepository

	Create(payout *models.Payout) error
	GetByID(id uint) (*models.Payout, error)
	GetByPayoutNo(payoutNo string) (*models.Payout, error)
	Update(payout *models.Payout) error
	List(filter PayoutListFilter) ([]models.Payout, int64, error)
	SumPaidAmount(partnerID uint) (models.Money, error)
}

// GormPayoutRepository GORM 结算单仓储
type GormPayoutRepository struct {
	db *gorm.DB
}

// NewPayoutRepository 创建结算单仓储
func NewPayoutRepository(db *gorm.DB) *GormPayoutRepository {
	return &GormPayoutRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPayoutRepository) WithTx(tx *gorm.DB) PayoutRepository {
	if tx == nil {
		return r
	}
	return &GormPayoutRepository{db: tx}
}

// Create 创建结算单
func (r *GormPayoutRepository) Create(payout *models.Payout) error {
	return r.db.Create(payout).Error
}

// GetByID 按ID获取结算单
func (r *GormPayoutRepository) GetByID(id uint) (*models.Payout, error) {
	if id == 0 {
		return nil, nil
	}
	var row models.Payout
	if err := r.db.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// GetByPayoutNo 按结算单号获取结算单
func (r *GormPayoutRepository) GetByPayoutNo(payoutNo string) (*models.Payout, error) {
	no := strings.TrimSpace(payoutNo)
	if no == "" {
		return nil, nil
	}
	var row models.Payout
	if err := r.db.Where("payout_no = ?", no).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Update 更新结算单
func (r *GormPayoutRepository) Update(payout *models.Payout) error {
	return r.db.Save(payout).Error
}

// List 查询结算单列表
func (r *GormPayoutRepository) List(filter PayoutListFilter) ([]models.Payout, int64, error) {
	query := r.db.Model(&models.Payout{})
	if filter.PartnerID != 0 {
		query = query.Where("partner_id = ?", filter.PartnerID)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Payout
	if err := applyPagination(query, filter.Page, filter.PageSize).
		Order("id DESC").
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// SumPaidAmount 统计已打款总额
func (r *GormPayoutRepository) SumPaidAmount(partnerID uint) (models.Money, error) {
	if partnerID == 0 {
		return models.Money{}, nil
	}
	var row struct {
		Total models.Money `gorm:"column:total"`
	}
	if err := r.db.Model(&models.Payout{}).
		Select("COALESCE(SUM(total_amount), 0) AS total").
		Where("partner_id = ? AND status = ?", partnerID, constants.PayoutStatusPaid).
		Scan(&row).Error; err != nil {
		return models.Money{}, err
	}
	return row.Total, nil
}

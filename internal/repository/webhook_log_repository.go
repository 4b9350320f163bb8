package repository

import (
	"errors"
	"time"

	"github.com/partners4saas/engine/internal/models"
	"gorm.io/gorm"
)

// WebhookLogRepository Webhook 日志数据访问接口
type WebhookLogRepository interface {
	Create(log *models.WebhookLog) error
	GetByID(id uint) (*models.WebhookLog, error)
	Update(log *models.WebhookLog) error
	MarkProcessed(id uint, eventID *uint, updatedAt time.Time) error
	MarkFailed(id uint, reason string, updatedAt time.Time) error
	List(filter WebhookLogListFilter) ([]models.WebhookLog, int64, error)
}

// GormWebhookLogRepository GORM Webhook 日志仓储
type GormWebhookLogRepository struct {
	db *gorm.DB
}

// NewWebhookLogRepository 创建 Webhook 日志仓储
func NewWebhookLogRepository(db *gorm.DB) *GormWebhookLogRepository {
	return &GormWebhookLogRepository{db: db}
}

// Create 创建日志
func (r *GormWebhookLogRepository) Create(log *models.WebhookLog) error {
	return r.db.Create(log).Error
}

// GetByID 按ID获取日志
func (r *GormWebhookLogRepository) GetByID(id uint) (*models.WebhookLog, error) {
	if id == 0 {
		return nil, nil
	}
	var row models.WebhookLog
	if err := r.db.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Update 更新日志
func (r *GormWebhookLogRepository) Update(log *models.WebhookLog) error {
	return r.db.Save(log).Error
}

// MarkProcessed 标记处理成功并清空失败原因
func (r *GormWebhookLogRepository) MarkProcessed(id uint, eventID *uint, updatedAt time.Time) error {
	if id == 0 {
		return nil
	}
	updates := map[string]interface{}{
		"processed":     true,
		"process_error": "",
		"event_id":      eventID,
		"attempts":      gorm.Expr("attempts + 1"),
		"updated_at":    updatedAt,
	}
	return r.db.Model(&models.WebhookLog{}).Where("id = ?", id).Updates(updates).Error
}

// MarkFailed 记录处理失败原因
func (r *GormWebhookLogRepository) MarkFailed(id uint, reason string, updatedAt time.Time) error {
	if id == 0 {
		return nil
	}
	if len(reason) > 512 {
		reason = reason[:512]
	}
	updates := map[string]interface{}{
		"processed":     false,
		"process_error": reason,
		"attempts":      gorm.Expr("attempts + 1"),
		"updated_at":    updatedAt,
	}
	return r.db.Model(&models.WebhookLog{}).Where("id = ?", id).Updates(updates).Error
}

// List 查询日志列表
func (r *GormWebhookLogRepository) List(filter WebhookLogListFilter) ([]models.WebhookLog, int64, error) {
	query := r.db.Model(&models.WebhookLog{})
	if filter.PartnerID != 0 {
		query = query.Where("partner_id = ?", filter.PartnerID)
	}
	if filter.OnlyFailed {
		query = query.Where("processed = ?", false)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at < ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.WebhookLog
	if err := applyPagination(query, filter.Page, filter.PageSize).
		Order("id DESC").
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/partners4saas/engine/internal/constants"
	"github.com/partners4saas/engine/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventRepository 转化事件数据访问接口
type EventRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) EventRepository

	CreateIgnoreDuplicate(event *models.ConversionEvent) (bool, error)
	GetByID(id uint) (*models.ConversionEvent, error)
	GetByExternalID(partnerID uint, externalID string) (*models.ConversionEvent, error)
	Update(event *models.ConversionEvent) error
	List(filter EventListFilter) ([]models.ConversionEvent, int64, error)
	ListConfirmedForSettlementForUpdate(partnerID uint, periodStart, periodEnd time.Time, eventTypes []string) ([]models.ConversionEvent, error)
	BatchMarkPaid(ids []uint, payoutID uint, updatedAt time.Time) (int64, error)
	SumByStatus(partnerID uint, from, to time.Time) ([]EventStatusSum, error)
	SumByType(partnerID uint, from, to time.Time) ([]EventTypeSum, error)
	SumByDay(partnerID uint, from, to time.Time) ([]DailyEventSum, error)
	CountConversions(partnerID uint, from, to time.Time) (int64, error)
	TotalsByPartner(from, to time.Time) ([]PartnerTotals, error)
}

// GormEventRepository GORM 转化事件仓储
type GormEventRepository struct {
	db *gorm.DB
}

// NewEventRepository 创建转化事件仓储
func NewEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

// WithTx 绑定事务
func (r *GormEventRepository) WithTx(tx *gorm.DB) EventRepository {
	if tx == nil {
		return r
	}
	return &GormEventRepository{db: tx}
}

// Transaction 执行事务
func (r *GormEventRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// CreateIgnoreDuplicate 幂等创建事件：
// (partner_id, external_id) 冲突时不写入，返回 false 表示重复投递。
func (r *GormEventRepository) CreateIgnoreDuplicate(event *models.ConversionEvent) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "partner_id"}, {Name: "external_id"}},
		DoNothing: true,
	}).Create(event)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetByID 按ID获取事件
func (r *GormEventRepository) GetByID(id uint) (*models.ConversionEvent, error) {
	if id == 0 {
		return nil, nil
	}
	var row models.ConversionEvent
	if err := r.db.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// GetByExternalID 按幂等键获取事件
func (r *GormEventRepository) GetByExternalID(partnerID uint, externalID string) (*models.ConversionEvent, error) {
	key := strings.TrimSpace(externalID)
	if partnerID == 0 || key == "" {
		return nil, nil
	}
	var row models.ConversionEvent
	if err := r.db.Where("partner_id = ? AND external_id = ?", partnerID, key).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Update 更新事件
func (r *GormEventRepository) Update(event *models.ConversionEvent) error {
	return r.db.Save(event).Error
}

// List 查询事件列表
func (r *GormEventRepository) List(filter EventListFilter) ([]models.ConversionEvent, int64, error) {
	query := r.db.Model(&models.ConversionEvent{})
	if filter.PartnerID != 0 {
		query = query.Where("partner_id = ?", filter.PartnerID)
	}
	if eventType := strings.TrimSpace(filter.EventType); eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("commission_status = ?", status)
	}
	if externalID := strings.TrimSpace(filter.ExternalID); externalID != "" {
		query = query.Where("external_id = ?", externalID)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.ConversionEvent
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListConfirmedForSettlementForUpdate 锁定查询待结算事件。
// 必须在事务内调用：加行锁防止并发结算重复打包同一事件。
func (r *GormEventRepository) ListConfirmedForSettlementForUpdate(partnerID uint, periodStart, periodEnd time.Time, eventTypes []string) ([]models.ConversionEvent, error) {
	if partnerID == 0 {
		return []models.ConversionEvent{}, nil
	}
	if len(eventTypes) == 0 {
		eventTypes = constants.DefaultSettlementEventTypes
	}
	var rows []models.ConversionEvent
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("partner_id = ? AND commission_status = ? AND payout_id IS NULL AND event_type IN ? AND created_at >= ? AND created_at < ?",
			partnerID,
			constants.CommissionStatusConfirmed,
			eventTypes,
			periodStart,
			periodEnd,
		).
		Order("id asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// BatchMarkPaid 批量将事件置为已结算。
// 带状态条件的更新：只吃掉仍处于 confirmed 且未绑定结算单的行。
func (r *GormEventRepository) BatchMarkPaid(ids []uint, payoutID uint, updatedAt time.Time) (int64, error) {
	if len(ids) == 0 || payoutID == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.ConversionEvent{}).
		Where("id IN ? AND commission_status = ? AND payout_id IS NULL", ids, constants.CommissionStatusConfirmed).
		Updates(map[string]interface{}{
			"commission_status": constants.CommissionStatusPaid,
			"payout_id":         payoutID,
			"updated_at":        updatedAt,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// SumByStatus 按佣金状态汇总金额
func (r *GormEventRepository) SumByStatus(partnerID uint, from, to time.Time) ([]EventStatusSum, error) {
	var rows []EventStatusSum
	query := r.db.Model(&models.ConversionEvent{}).
		Select("commission_status, COUNT(*) AS event_count, COALESCE(SUM(amount), 0) AS revenue_total, COALESCE(SUM(commission_amount), 0) AS commission_total").
		Where("created_at >= ? AND created_at < ?", from, to).
		Group("commission_status")
	if partnerID != 0 {
		query = query.Where("partner_id = ?", partnerID)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SumByType 按事件类型汇总金额
func (r *GormEventRepository) SumByType(partnerID uint, from, to time.Time) ([]EventTypeSum, error) {
	if partnerID == 0 {
		return []EventTypeSum{}, nil
	}
	var rows []EventTypeSum
	if err := r.db.Model(&models.ConversionEvent{}).
		Select("event_type, COUNT(*) AS event_count, COALESCE(SUM(amount), 0) AS revenue_total, COALESCE(SUM(commission_amount), 0) AS commission_total").
		Where("partner_id = ? AND created_at >= ? AND created_at < ?", partnerID, from, to).
		Group("event_type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SumByDay 按天汇总金额
func (r *GormEventRepository) SumByDay(partnerID uint, from, to time.Time) ([]DailyEventSum, error) {
	if partnerID == 0 {
		return []DailyEventSum{}, nil
	}
	var rows []DailyEventSum
	dayExpr := dayBucketExpr(r.db, "created_at")
	if err := r.db.Model(&models.ConversionEvent{}).
		Select(dayExpr + " AS day, COUNT(*) AS event_count, COALESCE(SUM(amount), 0) AS revenue_total, COALESCE(SUM(commission_amount), 0) AS commission_total").
		Where("partner_id = ? AND created_at >= ? AND created_at < ?", partnerID, from, to).
		Group("day").
		Order("day asc").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountConversions 统计窗口内事件数
func (r *GormEventRepository) CountConversions(partnerID uint, from, to time.Time) (int64, error) {
	if partnerID == 0 {
		return 0, nil
	}
	var total int64
	if err := r.db.Model(&models.ConversionEvent{}).
		Where("partner_id = ? AND created_at >= ? AND created_at < ?", partnerID, from, to).
		Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// TotalsByPartner 跨伙伴汇总（服务级指标用）
func (r *GormEventRepository) TotalsByPartner(from, to time.Time) ([]PartnerTotals, error) {
	var rows []PartnerTotals
	if err := r.db.Model(&models.ConversionEvent{}).
		Select("partner_id, COUNT(*) AS event_count, COALESCE(SUM(amount), 0) AS revenue_total, COALESCE(SUM(commission_amount), 0) AS commission_total").
		Where("created_at >= ? AND created_at < ?", from, to).
		Group("partner_id").
		Order("commission_total desc").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

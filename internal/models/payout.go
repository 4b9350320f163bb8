package models

import "time"

// Payout 结算批次记录
// 事件集合在创建后不可变更
type Payout struct {
	ID               uint      `gorm:"primarykey" json:"id"`                                          // 主键
	PayoutNo         string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"payout_no"`        // 结算单号
	PartnerID        uint      `gorm:"not null;index" json:"partner_id"`                              // 合作伙伴ID
	PeriodStart      time.Time `gorm:"not null;index" json:"period_start"`                            // 结算周期开始
	PeriodEnd        time.Time `gorm:"not null;index" json:"period_end"`                              // 结算周期结束
	EventIDs         UintSlice `gorm:"type:text" json:"event_ids"`                                    // 包含的事件ID集合
	EventCount       int       `gorm:"not null;default:0" json:"event_count"`                         // 事件数量
	TotalAmount      Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"`     // 结算总额
	Status           string    `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"` // 状态
	PaymentReference string    `gorm:"type:varchar(128)" json:"payment_reference,omitempty"`          // 打款凭据
	DisputeReason    string    `gorm:"type:varchar(255)" json:"dispute_reason,omitempty"`             // 争议原因
	PaidAt           *time.Time `json:"paid_at,omitempty"`                                            // 打款确认时间
	CreatedAt        time.Time `gorm:"index" json:"created_at"`                                       // 创建时间
	UpdatedAt        time.Time `gorm:"index" json:"updated_at"`                                       // 更新时间

	Partner Partner `gorm:"foreignKey:PartnerID" json:"partner,omitempty"` // 合作伙伴
}

// TableName 指定表名
func (Payout) TableName() string {
	return "commission_payouts"
}

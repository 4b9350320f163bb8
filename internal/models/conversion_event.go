package models

import "time"

// ConversionEvent 转化事件记录
// (partner_id, external_id) 唯一索引用于 Webhook 重放去重
type ConversionEvent struct {
	ID                    uint       `gorm:"primarykey" json:"id"`                                                                   // 主键
	PartnerID             uint       `gorm:"not null;index;index:idx_event_external,unique" json:"partner_id"`                       // 合作伙伴ID
	AttributionID         *uint      `gorm:"index" json:"attribution_id,omitempty"`                                                  // 归因记录ID（可空）
	EventType             string     `gorm:"type:varchar(32);not null;index" json:"event_type"`                                      // 事件类型
	ExternalID            string     `gorm:"type:varchar(128);not null;index:idx_event_external,unique" json:"external_id"`          // 外部事件ID（幂等键）
	UserKey               string     `gorm:"type:varchar(128);index" json:"user_key"`                                                // 用户标识
	Amount                Money      `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`                                    // 事件金额
	Currency              string     `gorm:"type:varchar(8);not null;default:'USD'" json:"currency"`                                 // 币种
	CommissionAmount      Money      `gorm:"type:decimal(20,2);not null;default:0" json:"commission_amount"`                         // 佣金金额
	CommissionType        string     `gorm:"type:varchar(20)" json:"commission_type"`                                                // 佣金类型快照
	CommissionRate        Money      `gorm:"type:decimal(10,2);not null;default:0" json:"commission_rate"`                           // 佣金条款快照（比例或固定金额）
	AttributionConfidence string     `gorm:"type:varchar(20);not null;default:'none'" json:"attribution_confidence"`                 // 归因置信度
	CommissionStatus      string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"commission_status"`             // 佣金状态
	IsVerified            bool       `gorm:"not null;default:false" json:"is_verified"`                                              // 是否已核实
	VerifiedAt            *time.Time `json:"verified_at,omitempty"`                                                                  // 核实时间
	DisputeReason         string     `gorm:"type:varchar(255)" json:"dispute_reason,omitempty"`                                      // 争议原因
	PayoutID              *uint      `gorm:"index" json:"payout_id,omitempty"`                                                       // 所属结算单ID
	RawPayload            JSON       `gorm:"type:text" json:"raw_payload,omitempty"`                                                 // 原始载荷
	CreatedAt             time.Time  `gorm:"index" json:"created_at"`                                                                // 创建时间
	UpdatedAt             time.Time  `gorm:"index" json:"updated_at"`                                                                // 更新时间

	Partner     Partner      `gorm:"foreignKey:PartnerID" json:"partner,omitempty"`         // 合作伙伴
	Attribution *Attribution `gorm:"foreignKey:AttributionID" json:"attribution,omitempty"` // 归因记录
}

// TableName 指定表名
func (ConversionEvent) TableName() string {
	return "conversion_events"
}

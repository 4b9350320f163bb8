package models

import "time"

// WebhookLog Webhook 原始载荷审计记录
// 无论处理成功与否都先落库，供重试与排障使用
type WebhookLog struct {
	ID           uint      `gorm:"primarykey" json:"id"`                              // 主键
	PartnerID    uint      `gorm:"not null;index" json:"partner_id"`                  // 合作伙伴ID
	RequestID    string    `gorm:"type:varchar(64);index" json:"request_id"`          // 请求ID
	Signature    string    `gorm:"type:varchar(128)" json:"signature"`                // 签名头
	RawBody      string    `gorm:"type:text" json:"raw_body"`                         // 原始请求体
	Processed    bool      `gorm:"not null;default:false;index" json:"processed"`     // 是否处理成功
	ProcessError string    `gorm:"type:varchar(512)" json:"process_error,omitempty"`  // 处理失败原因
	EventID      *uint     `gorm:"index" json:"event_id,omitempty"`                   // 生成的事件ID
	Attempts     int       `gorm:"not null;default:0" json:"attempts"`                // 处理尝试次数
	CreatedAt    time.Time `gorm:"index" json:"created_at"`                           // 创建时间
	UpdatedAt    time.Time `gorm:"index" json:"updated_at"`                           // 更新时间

	Partner Partner `gorm:"foreignKey:PartnerID" json:"partner,omitempty"` // 合作伙伴
}

// TableName 指定表名
func (WebhookLog) TableName() string {
	return "webhook_logs"
}

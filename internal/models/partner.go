package models

import (
	"time"
)

// Partner 合作伙伴配置（佣金规则、归因窗口、Webhook 密钥）
type Partner struct {
	ID                       uint      `gorm:"primarykey" json:"id"`                                        // 主键
	Name                     string    `gorm:"type:varchar(128);not null" json:"name"`                      // 名称
	Slug                     string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"slug"`           // 唯一标识
	CommissionType           string    `gorm:"type:varchar(20);not null;default:'percentage'" json:"commission_type"` // 佣金类型（percentage/fixed）
	CommissionRate           Money     `gorm:"type:decimal(10,2);not null;default:0" json:"commission_rate"`          // 佣金比例（百分比）
	FixedAmount              Money     `gorm:"type:decimal(20,2);not null;default:0" json:"fixed_amount"`             // 固定佣金金额
	AttributionWindowDays    int       `gorm:"not null;default:30" json:"attribution_window_days"`          // 归因窗口（天）
	WebhookSecret            string    `gorm:"type:varchar(128)" json:"-"`                                  // Webhook 签名密钥
	ReferralParam            string    `gorm:"type:varchar(32);not null;default:'via'" json:"referral_param"` // 推荐链接参数名
	ReferralCode             string    `gorm:"type:varchar(64);not null;index" json:"referral_code"`        // 推荐码
	CommissionOnUnattributed bool      `gorm:"not null;default:false" json:"commission_on_unattributed"`    // 无归因转化是否计佣
	IsActive                 bool      `gorm:"not null;default:true;index" json:"is_active"`                // 启用状态
	CreatedAt                time.Time `gorm:"index" json:"created_at"`                                     // 创建时间
	UpdatedAt                time.Time `gorm:"index" json:"updated_at"`                                     // 更新时间
}

// TableName 指定表名
func (Partner) TableName() string {
	return "partners"
}

// AttributionWindow 归因窗口时长
func (p Partner) AttributionWindow() time.Duration {
	days := p.AttributionWindowDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

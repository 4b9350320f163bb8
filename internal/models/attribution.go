package models

import "time"

// Attribution 归因点击记录
// 创建后除 Metadata 外不再变更，到期后由清理任务删除
type Attribution struct {
	ID          uint      `gorm:"primarykey" json:"id"`                                        // 主键
	PartnerID   uint      `gorm:"not null;index;index:idx_attribution_identity" json:"partner_id"` // 合作伙伴ID
	UserKey     string    `gorm:"type:varchar(128);index:idx_attribution_identity" json:"user_key"` // 用户/会话标识
	SiteID      string    `gorm:"type:varchar(64)" json:"site_id"`                             // 站点标识
	ProjectID   string    `gorm:"type:varchar(64)" json:"project_id"`                          // 项目标识
	ClientIP    string    `gorm:"type:varchar(64)" json:"client_ip"`                           // 客户端IP
	UserAgent   string    `gorm:"type:varchar(1024)" json:"user_agent"`                        // 客户端UA
	Referrer    string    `gorm:"type:varchar(1024)" json:"referrer"`                          // 来源地址
	LandingPage string    `gorm:"type:varchar(512)" json:"landing_page"`                       // 落地页面
	Metadata    JSON      `gorm:"type:text" json:"metadata,omitempty"`                         // 扩展元数据
	CreatedAt   time.Time `gorm:"index;not null" json:"created_at"`                            // 创建时间
	ExpiresAt   time.Time `gorm:"index;not null" json:"expires_at"`                            // 过期时间

	Partner Partner `gorm:"foreignKey:PartnerID" json:"partner,omitempty"` // 合作伙伴
}

// TableName 指定表名
func (Attribution) TableName() string {
	return "attributions"
}

// Expired 判断归因记录是否已过期
func (a Attribution) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

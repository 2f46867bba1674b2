package models

import "time"

// AffiliateClick 推广点击流水（只追加）
type AffiliateClick struct {
	ID            uint      `gorm:"primarykey" json:"id"`                                       // 主键
	ClickID       string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"click_id"`      // 点击标识（UUID）
	AffiliateID   uint      `gorm:"not null;index" json:"affiliate_id"`                         // 推广伙伴ID
	AffiliateCode string    `gorm:"type:varchar(32);not null;index" json:"affiliate_code"`      // 点击时的推广码快照
	Campaign      string    `gorm:"type:varchar(128);index" json:"campaign"`                    // 活动标签
	VisitorKey    string    `gorm:"type:varchar(128);index" json:"visitor_key"`                 // 访客标识
	LandingPath   string    `gorm:"type:varchar(512)" json:"landing_path"`                      // 落地页面路径
	Referrer      string    `gorm:"type:varchar(1024)" json:"referrer"`                         // 来源地址
	ClientIP      string    `gorm:"type:varchar(64)" json:"client_ip"`                          // 客户端IP
	UserAgent     string    `gorm:"type:varchar(1024)" json:"user_agent"`                       // 客户端UA
	CreatedAt     time.Time `gorm:"index;not null;default:CURRENT_TIMESTAMP" json:"created_at"` // 创建时间

	Affiliate Affiliate `gorm:"foreignKey:AffiliateID" json:"affiliate,omitempty"` // 推广伙伴
}

// TableName 指定表名
func (AffiliateClick) TableName() string {
	return "affiliate_clicks"
}

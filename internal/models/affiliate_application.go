package models

import (
	"time"

	"gorm.io/gorm"
)

// AffiliateApplication 推广伙伴入驻申请
type AffiliateApplication struct {
	ID               uint           `gorm:"primarykey" json:"id"`                          // 主键
	Name             string         `gorm:"type:varchar(128);not null" json:"name"`        // 申请人名称
	Email            string         `gorm:"type:varchar(255);not null;index" json:"email"` // 联系邮箱
	Website          string         `gorm:"type:varchar(512)" json:"website"`              // 推广站点
	PromotionChannel string         `gorm:"type:varchar(255)" json:"promotion_channel"`    // 推广渠道说明
	Status           string         `gorm:"type:varchar(20);not null;index" json:"status"` // 状态 pending/approved/rejected
	RejectReason     string         `gorm:"type:varchar(255)" json:"reject_reason"`        // 拒绝原因
	AffiliateID      *uint          `gorm:"index" json:"affiliate_id,omitempty"`           // 批准后创建的推广伙伴ID
	ReviewedBy       string         `gorm:"type:varchar(64)" json:"reviewed_by"`           // 审核人
	ReviewedAt       *time.Time     `json:"reviewed_at,omitempty"`                         // 审核时间
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`                       // 创建时间
	UpdatedAt        time.Time      `gorm:"index" json:"updated_at"`                       // 更新时间
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`                                // 软删除时间
}

// TableName 指定表名
func (AffiliateApplication) TableName() string {
	return "affiliate_applications"
}

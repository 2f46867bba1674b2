package models

import (
	"time"

	"gorm.io/gorm"
)

// Affiliate 推广伙伴档案（含冗余统计账户）
type Affiliate struct {
	ID            uint           `gorm:"primarykey" json:"id"`                              // 主键
	Name          string         `gorm:"type:varchar(128);not null" json:"name"`            // 推广伙伴名称
	Email         string         `gorm:"type:varchar(255);index" json:"email"`              // 联系邮箱
	Website       string         `gorm:"type:varchar(512)" json:"website"`                  // 推广站点
	AffiliateCode string         `gorm:"type:varchar(32);not null;uniqueIndex" json:"code"` // 推广码（大写归一化）
	Status        string         `gorm:"type:varchar(20);not null;index" json:"status"`     // 状态 active/disabled

	CommissionRate   *float64 `gorm:"type:decimal(10,2)" json:"commission_rate,omitempty"`   // 佣金比例覆盖（百分比，空用全局）
	CheckoutDiscount *float64 `gorm:"type:decimal(10,2)" json:"checkout_discount,omitempty"` // 结算折扣覆盖（百分比，空用全局）

	// 冗余统计账户：balance = total_earnings - total_paid，仅在转化/打款事务内变更
	Clicks        int64 `gorm:"not null;default:0" json:"clicks"`                            // 点击数
	Conversions   int64 `gorm:"not null;default:0" json:"conversions"`                       // 转化数
	TotalEarnings Money `gorm:"type:decimal(20,2);not null;default:0" json:"total_earnings"` // 累计佣金
	TotalPaid     Money `gorm:"type:decimal(20,2);not null;default:0" json:"total_paid"`     // 累计打款
	Balance       Money `gorm:"type:decimal(20,2);not null;default:0" json:"balance"`        // 可结算余额

	CreatedAt time.Time      `gorm:"index" json:"created_at"` // 创建时间
	UpdatedAt time.Time      `gorm:"index" json:"updated_at"` // 更新时间
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`          // 软删除时间
}

// TableName 指定表名
func (Affiliate) TableName() string {
	return "affiliates"
}

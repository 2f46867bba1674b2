package models

import (
	"time"

	"gorm.io/gorm"
)

// Order 订单快照（订单系统通过回调同步，佣金字段归本服务所有）
type Order struct {
	ID             uint           `gorm:"primarykey" json:"id"`                                         // 主键
	OrderNo        string         `gorm:"uniqueIndex;not null" json:"order_no"`                         // 订单编号
	Status         string         `gorm:"index;not null" json:"status"`                                 // 订单状态
	Currency       string         `gorm:"not null;default:'SEK'" json:"currency"`                       // 币种
	TotalAmount    Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"`    // 实付金额（含运费、含税）
	ShippingAmount Money          `gorm:"type:decimal(20,2);not null;default:0" json:"shipping_amount"` // 运费金额
	DiscountAmount Money          `gorm:"type:decimal(20,2);not null;default:0" json:"discount_amount"` // 推广折扣金额
	VisitorKey     string         `gorm:"type:varchar(128);index" json:"visitor_key,omitempty"`         // 下单访客标识

	// 推广归因快照与佣金绑定
	AffiliateCode       string     `gorm:"type:varchar(32);index" json:"affiliate_code,omitempty"`           // 下单时的归因推广码
	AffiliateID         *uint      `gorm:"index" json:"affiliate_id,omitempty"`                              // 归因推广伙伴ID
	AffiliateCommission *Money     `gorm:"type:decimal(20,2)" json:"affiliate_commission,omitempty"`         // 计提佣金（转化处理后写入）
	ConversionProcessed bool       `gorm:"not null;default:false;index" json:"conversion_processed"`         // 转化是否已处理（幂等闸门）
	ConversionAt        *time.Time `gorm:"index" json:"conversion_at,omitempty"`                             // 转化处理时间

	CompletedAt *time.Time     `gorm:"index" json:"completed_at"` // 完成时间
	CanceledAt  *time.Time     `gorm:"index" json:"canceled_at"`  // 取消时间
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`   // 创建时间
	UpdatedAt   time.Time      `gorm:"index" json:"updated_at"`   // 更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`            // 软删除时间
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

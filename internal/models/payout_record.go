package models

import "time"

// PayoutRecord 打款结算记录（创建后不可变更）
type PayoutRecord struct {
	ID              uint      `gorm:"primarykey" json:"id"`                                      // 主键
	PayoutNo        string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"payout_no"`    // 打款编号（UUID）
	AffiliateID     uint      `gorm:"not null;index" json:"affiliate_id"`                        // 推广伙伴ID
	Amount          Money     `gorm:"type:decimal(20,2);not null" json:"amount"`                 // 打款金额
	BalanceAfter    Money     `gorm:"type:decimal(20,2);not null" json:"balance_after"`          // 打款后余额快照
	InvoiceNumber   string    `gorm:"type:varchar(64);not null;index" json:"invoice_number"`     // 发票号（3-50字符）
	InvoiceURL      string    `gorm:"type:varchar(1024)" json:"invoice_url"`                     // 发票文件地址
	InvoiceFileName string    `gorm:"type:varchar(255)" json:"invoice_file_name"`                // 发票文件名
	InvoiceFileSize int64     `gorm:"not null;default:0" json:"invoice_file_size"`               // 发票文件大小（字节）
	Notes           string    `gorm:"type:varchar(1024)" json:"notes"`                           // 备注
	ProcessedBy     string    `gorm:"type:varchar(64);not null" json:"processed_by"`             // 操作管理员
	Status          string    `gorm:"type:varchar(20);not null;index" json:"status"`             // 状态 completed
	SettledAt       time.Time `gorm:"index;not null" json:"settled_at"`                          // 结算时间
	CreatedAt       time.Time `gorm:"index;not null;default:CURRENT_TIMESTAMP" json:"created_at"` // 创建时间

	Affiliate Affiliate `gorm:"foreignKey:AffiliateID" json:"affiliate,omitempty"` // 推广伙伴
}

// TableName 指定表名
func (PayoutRecord) TableName() string {
	return "payout_records"
}

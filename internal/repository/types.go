package repository

import "time"

// AffiliateListFilter 查询推广伙伴列表的过滤条件
type AffiliateListFilter struct {
	Page     int
	PageSize int
	Code     string
	Status   string
	Keyword  string
}

// AffiliateApplicationListFilter 查询入驻申请列表的过滤条件
type AffiliateApplicationListFilter struct {
	Page     int
	PageSize int
	Status   string
	Email    string
	Keyword  string
}

// AffiliateClickListFilter 查询点击流水列表的过滤条件
type AffiliateClickListFilter struct {
	Page        int
	PageSize    int
	AffiliateID uint
	Campaign    string
	VisitorKey  string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// OrderListFilter 查询订单快照列表的过滤条件
type OrderListFilter struct {
	Page                int
	PageSize            int
	OrderNo             string
	Status              string
	AffiliateID         uint
	AffiliateCode       string
	ConversionProcessed *bool
	CreatedFrom         *time.Time
	CreatedTo           *time.Time
}

// PayoutListFilter 查询打款记录列表的过滤条件
type PayoutListFilter struct {
	Page          int
	PageSize      int
	AffiliateID   uint
	InvoiceNumber string
	SettledFrom   *time.Time
	SettledTo     *time.Time
}

// AuthzAuditLogListFilter 查询权限审计日志列表的过滤条件
type AuthzAuditLogListFilter struct {
	Page            int
	PageSize        int
	OperatorAdminID uint
	TargetAdminID   uint
	Action          string
	Role            string
	Object          string
	Method          string
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
}

package constants

// 订单状态常量（订单系统回调同步的快照状态）
const (
	OrderStatusPendingPayment = "pending_payment"
	OrderStatusPaid           = "paid"
	OrderStatusCompleted      = "completed"
	OrderStatusCanceled       = "canceled"
)

// 推广伙伴状态常量
const (
	AffiliateStatusActive   = "active"
	AffiliateStatusDisabled = "disabled"
)

// 推广入驻申请状态常量
const (
	AffiliateApplicationStatusPending  = "pending"
	AffiliateApplicationStatusApproved = "approved"
	AffiliateApplicationStatusRejected = "rejected"
)

// 入驻申请审核动作常量
const (
	AffiliateApplicationActionApprove = "approve"
	AffiliateApplicationActionReject  = "reject"
)

// 打款记录状态常量
const (
	PayoutStatusCompleted = "completed"
)

// 转化处理结果常量
const (
	ConversionOutcomeProcessed        = "processed"
	ConversionOutcomeAlreadyProcessed = "already_processed"
	ConversionOutcomeIneligible       = "ineligible"
	ConversionOutcomeSkippedCanceled  = "skipped_canceled"
)

// 队列常量
const (
	QueueDefault            = "default"
	TaskAffiliateClick      = "affiliate:click"
	TaskOrderConversion     = "order:conversion"
	TaskReconciliationSweep = "affiliate:reconciliation_sweep"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "fx"
)

// 设置键常量
const (
	SettingKeyAffiliateConfig = "affiliate_config"
)

// 币种常量
const (
	SiteCurrencyDefault = "SEK"
)

package service

import (
	"errors"
	"strings"
)

// 业务错误定义，handler 层通过 errors.Is 映射为响应码
var (
	ErrNotFound           = errors.New("record not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("concurrent modification conflict")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrWeakPassword       = errors.New("weak password")

	ErrAffiliateDisabled        = errors.New("affiliate disabled")
	ErrAffiliateProgramDisabled = errors.New("affiliate program disabled")
	ErrAffiliateCodeInvalid     = errors.New("affiliate code invalid")
	ErrAffiliateCodeTaken       = errors.New("affiliate code already taken")
	ErrAffiliateConfigInvalid   = errors.New("affiliate config invalid")
	ErrApplicationPendingExists = errors.New("pending application already exists")
	ErrApplicationReviewed      = errors.New("application already reviewed")

	ErrCommissionInputInvalid = errors.New("commission input invalid")
	ErrOrderStatusInvalid     = errors.New("order status invalid")
	ErrOrderExists            = errors.New("order already exists")

	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrPayoutAmountInvalid  = errors.New("payout amount invalid")
	ErrInvoiceNumberInvalid = errors.New("invoice number invalid")
)

// isUniqueViolation 判断是否唯一约束冲突（sqlite 与 postgres 消息兼容）
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

// isRetryableTxError 判断是否可重试的事务序列化失败
func isRetryableTxError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "deadlock") ||
		strings.Contains(msg, "could not serialize")
}

package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/fenxiao-next/internal/http/response"
	"github.com/fenxiao-next/internal/repository"
	"github.com/fenxiao-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CreatePayoutRequest 结算打款请求
type CreatePayoutRequest struct {
	Amount          string `json:"amount" binding:"required"`
	InvoiceNumber   string `json:"invoice_number" binding:"required"`
	InvoiceURL      string `json:"invoice_url"`
	InvoiceFileName string `json:"invoice_file_name"`
	InvoiceFileSize int64  `json:"invoice_file_size"`
	Notes           string `json:"notes"`
}

// CreateAffiliatePayout 为推广伙伴结算打款
func (h *Handler) CreateAffiliatePayout(c *gin.Context) {
	affiliateID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req CreatePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		respondError(c, response.CodeBadRequest, "amount invalid", nil)
		return
	}

	payout, err := h.PayoutService.ProcessPayout(service.PayoutInput{
		AffiliateID:     affiliateID,
		Amount:          amount,
		InvoiceNumber:   req.InvoiceNumber,
		InvoiceURL:      req.InvoiceURL,
		InvoiceFileName: req.InvoiceFileName,
		InvoiceFileSize: req.InvoiceFileSize,
		Notes:           req.Notes,
		ProcessedBy:     currentUsername(c),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "affiliate not found", nil)
		case errors.Is(err, service.ErrPayoutAmountInvalid):
			respondError(c, response.CodeBadRequest, "amount invalid", nil)
		case errors.Is(err, service.ErrInvoiceNumberInvalid):
			respondError(c, response.CodeBadRequest, "invoice number must be 3-50 characters", nil)
		case errors.Is(err, service.ErrInsufficientBalance):
			respondError(c, response.CodeBadRequest, err.Error(), nil)
		case errors.Is(err, service.ErrConflict):
			respondError(c, response.CodeConflict, "concurrent modification, retry", nil)
		default:
			respondError(c, response.CodeInternal, "payout failed", err)
		}
		return
	}
	response.Success(c, payout)
}

// ListPayouts 获取打款记录列表
func (h *Handler) ListPayouts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	var affiliateID uint
	if raw := strings.TrimSpace(c.Query("affiliate_id")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			respondError(c, response.CodeBadRequest, "affiliate id invalid", nil)
			return
		}
		affiliateID = uint(parsed)
	}
	settledFrom, err := parseTimeNullable(strings.TrimSpace(c.Query("settled_from")))
	if err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	settledTo, err := parseTimeNullable(strings.TrimSpace(c.Query("settled_to")))
	if err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	payouts, total, err := h.PayoutService.ListPayouts(repository.PayoutListFilter{
		Page:          page,
		PageSize:      pageSize,
		AffiliateID:   affiliateID,
		InvoiceNumber: strings.TrimSpace(c.Query("invoice_number")),
		SettledFrom:   settledFrom,
		SettledTo:     settledTo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "payout fetch failed", err)
		return
	}

	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, payouts, pagination)
}

// GetPayout 获取打款记录详情
func (h *Handler) GetPayout(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	payout, err := h.PayoutService.GetPayout(id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondError(c, response.CodeNotFound, "payout not found", nil)
			return
		}
		respondError(c, response.CodeInternal, "payout fetch failed", err)
		return
	}
	response.Success(c, payout)
}

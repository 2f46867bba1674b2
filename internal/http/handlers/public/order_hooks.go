package public

import (
	"strings"

	"github.com/fenxiao-next/internal/http/response"
	"github.com/fenxiao-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// OrderHookRequest 订单快照登记请求
type OrderHookRequest struct {
	OrderNo       string `json:"order_no" binding:"required"`
	Status        string `json:"status"`
	Currency      string `json:"currency"`
	Total         string `json:"total" binding:"required"`
	Shipping      string `json:"shipping"`
	Discount      string `json:"discount"`
	VisitorKey    string `json:"visitor_key"`
	AffiliateCode string `json:"affiliate_code"`
}

// RegisterOrderHook 登记或刷新订单快照
func (h *Handler) RegisterOrderHook(c *gin.Context) {
	var req OrderHookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	if h.ConversionService == nil {
		respondError(c, response.CodeInternal, "conversion service unavailable", nil)
		return
	}

	total, err := decimal.NewFromString(strings.TrimSpace(req.Total))
	if err != nil {
		respondError(c, response.CodeBadRequest, "total amount invalid", nil)
		return
	}
	shipping, err := parseOptionalAmount(req.Shipping)
	if err != nil {
		respondError(c, response.CodeBadRequest, "shipping amount invalid", nil)
		return
	}
	discount, err := parseOptionalAmount(req.Discount)
	if err != nil {
		respondError(c, response.CodeBadRequest, "discount amount invalid", nil)
		return
	}

	order, err := h.ConversionService.RegisterOrder(c.Request.Context(), service.OrderSnapshotInput{
		OrderNo:       req.OrderNo,
		Status:        req.Status,
		Currency:      req.Currency,
		Total:         total,
		Shipping:      shipping,
		Discount:      discount,
		VisitorKey:    req.VisitorKey,
		AffiliateCode: req.AffiliateCode,
	})
	if err != nil {
		respondWithMappedError(c, err, orderHookErrorRules, response.CodeInternal, "order register failed")
		return
	}
	response.Success(c, gin.H{
		"order_no":       order.OrderNo,
		"status":         order.Status,
		"affiliate_code": order.AffiliateCode,
	})
}

// OrderCompletedHookRequest 订单完成事件请求
type OrderCompletedHookRequest struct {
	OrderNo string `json:"order_no" binding:"required"`
}

// OrderCompletedHook 处理订单完成事件并触发转化
func (h *Handler) OrderCompletedHook(c *gin.Context) {
	var req OrderCompletedHookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	if h.ConversionService == nil {
		respondError(c, response.CodeInternal, "conversion service unavailable", nil)
		return
	}

	result, err := h.ConversionService.HandleOrderCompleted(c.Request.Context(), req.OrderNo)
	if err != nil {
		respondWithMappedError(c, err, orderHookErrorRules, response.CodeInternal, "order completion failed")
		return
	}
	response.Success(c, result)
}

func parseOptionalAmount(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(trimmed)
}

package admin

import (
	"strconv"
	"strings"

	"github.com/fenxiao-next/internal/http/response"
	"github.com/fenxiao-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListOrders 获取订单快照列表
func (h *Handler) ListOrders(c *gin.Context) {
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

	var conversionProcessed *bool
	if raw := strings.TrimSpace(c.Query("conversion_processed")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "bad request", err)
			return
		}
		conversionProcessed = &parsed
	}

	createdFrom, err := parseTimeNullable(strings.TrimSpace(c.Query("created_from")))
	if err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	createdTo, err := parseTimeNullable(strings.TrimSpace(c.Query("created_to")))
	if err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	orders, total, err := h.OrderRepo.List(repository.OrderListFilter{
		Page:                page,
		PageSize:            pageSize,
		OrderNo:             strings.TrimSpace(c.Query("order_no")),
		Status:              strings.TrimSpace(c.Query("status")),
		AffiliateID:         affiliateID,
		AffiliateCode:       strings.TrimSpace(c.Query("affiliate_code")),
		ConversionProcessed: conversionProcessed,
		CreatedFrom:         createdFrom,
		CreatedTo:           createdTo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "order fetch failed", err)
		return
	}

	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, orders, pagination)
}

// GetOrder 获取订单快照详情
func (h *Handler) GetOrder(c *gin.Context) {
	orderNo := strings.TrimSpace(c.Param("order_no"))
	if orderNo == "" {
		respondError(c, response.CodeBadRequest, "order no invalid", nil)
		return
	}

	order, err := h.OrderRepo.GetByOrderNo(orderNo)
	if err != nil {
		respondError(c, response.CodeInternal, "order fetch failed", err)
		return
	}
	if order == nil {
		respondError(c, response.CodeNotFound, "order not found", nil)
		return
	}
	response.Success(c, order)
}

package admin

import (
	"errors"

	"github.com/fenxiao-next/internal/http/response"
	"github.com/fenxiao-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetAffiliateSetting 获取推广结算设置
func (h *Handler) GetAffiliateSetting(c *gin.Context) {
	setting, err := h.SettingService.GetAffiliateSetting()
	if err != nil {
		respondError(c, response.CodeInternal, "fetch failed", err)
		return
	}
	response.Success(c, setting)
}

// UpdateAffiliateSettingRequest 更新推广结算设置请求
type UpdateAffiliateSettingRequest struct {
	Enabled                 bool    `json:"enabled"`
	VATRate                 float64 `json:"vat_rate"`
	DefaultCommissionRate   float64 `json:"default_commission_rate"`
	DefaultCheckoutDiscount float64 `json:"default_checkout_discount"`
	AttributionDays         int     `json:"attribution_days"`
}

// UpdateAffiliateSetting 更新推广结算设置
func (h *Handler) UpdateAffiliateSetting(c *gin.Context) {
	var req UpdateAffiliateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	setting, err := h.SettingService.UpdateAffiliateSetting(service.AffiliateSetting{
		Enabled:                 req.Enabled,
		VATRate:                 req.VATRate,
		DefaultCommissionRate:   req.DefaultCommissionRate,
		DefaultCheckoutDiscount: req.DefaultCheckoutDiscount,
		AttributionDays:         req.AttributionDays,
	})
	if err != nil {
		if errors.Is(err, service.ErrAffiliateConfigInvalid) {
			respondError(c, response.CodeBadRequest, err.Error(), nil)
			return
		}
		respondError(c, response.CodeInternal, "save failed", err)
		return
	}
	response.Success(c, setting)
}

package public

import (
	"strings"

	"github.com/fenxiao-next/internal/http/response"
	"github.com/fenxiao-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ReferralCaptureRequest 推广归因捕获请求
type ReferralCaptureRequest struct {
	VisitorKey  string `json:"visitor_key" binding:"required"`
	Code        string `json:"code" binding:"required"`
	Campaign    string `json:"campaign"`
	LandingPath string `json:"landing_path"`
	Referrer    string `json:"referrer"`
}

// CaptureReferral 捕获访客推广归因
func (h *Handler) CaptureReferral(c *gin.Context) {
	var req ReferralCaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	if h.AttributionService == nil {
		respondError(c, response.CodeInternal, "attribution unavailable", nil)
		return
	}

	state, err := h.AttributionService.Capture(c.Request.Context(), service.CaptureInput{
		VisitorKey:  req.VisitorKey,
		Code:        req.Code,
		Campaign:    req.Campaign,
		LandingPath: req.LandingPath,
		Referrer:    req.Referrer,
		ClientIP:    c.ClientIP(),
		UserAgent:   c.GetHeader("User-Agent"),
	})
	if err != nil {
		respondWithMappedError(c, err, referralCaptureErrorRules, response.CodeInternal, "referral capture failed")
		return
	}
	response.Success(c, state)
}

// GetReferralAttribution 查询访客当前归因与暂存折扣
func (h *Handler) GetReferralAttribution(c *gin.Context) {
	visitorKey := strings.TrimSpace(c.Query("visitor_key"))
	if visitorKey == "" {
		respondError(c, response.CodeBadRequest, "visitor key is required", nil)
		return
	}
	if h.AttributionService == nil {
		respondError(c, response.CodeInternal, "attribution unavailable", nil)
		return
	}

	view, err := h.AttributionService.GetAttribution(c.Request.Context(), visitorKey)
	if err != nil {
		respondError(c, response.CodeInternal, "attribution fetch failed", err)
		return
	}
	response.Success(c, view)
}

// StageReferralDiscountRequest 结算折扣暂存请求
type StageReferralDiscountRequest struct {
	VisitorKey string `json:"visitor_key" binding:"required"`
}

// StageReferralDiscount 为访客当前归因暂存结算折扣
func (h *Handler) StageReferralDiscount(c *gin.Context) {
	var req StageReferralDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	if h.AttributionService == nil {
		respondError(c, response.CodeInternal, "attribution unavailable", nil)
		return
	}

	discount, err := h.AttributionService.StageDiscount(c.Request.Context(), req.VisitorKey)
	if err != nil {
		respondWithMappedError(c, err, referralCaptureErrorRules, response.CodeInternal, "discount stage failed")
		return
	}
	response.Success(c, discount)
}

package public

import (
	"errors"

	"github.com/fenxiao-next/internal/http/response"
	"github.com/fenxiao-next/internal/service"

	"github.com/gin-gonic/gin"
)

// AffiliateApplicationRequest 推广伙伴入驻申请请求
type AffiliateApplicationRequest struct {
	Name             string `json:"name" binding:"required"`
	Email            string `json:"email" binding:"required,email"`
	Website          string `json:"website"`
	PromotionChannel string `json:"promotion_channel"`
}

// SubmitAffiliateApplication 提交推广伙伴入驻申请
func (h *Handler) SubmitAffiliateApplication(c *gin.Context) {
	var req AffiliateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	if h.AffiliateService == nil {
		respondError(c, response.CodeInternal, "affiliate service unavailable", nil)
		return
	}

	application, err := h.AffiliateService.SubmitApplication(service.AffiliateApplicationInput{
		Name:             req.Name,
		Email:            req.Email,
		Website:          req.Website,
		PromotionChannel: req.PromotionChannel,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrApplicationPendingExists):
			respondError(c, response.CodeConflict, "a pending application already exists for this email", nil)
		case errors.Is(err, service.ErrInvalidInput):
			respondError(c, response.CodeBadRequest, "bad request", nil)
		default:
			respondError(c, response.CodeInternal, "application submit failed", err)
		}
		return
	}
	response.Success(c, gin.H{
		"id":     application.ID,
		"status": application.Status,
	})
}

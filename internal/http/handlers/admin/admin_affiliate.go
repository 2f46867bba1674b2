package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/fenxiao-next/internal/http/response"
	"github.com/fenxiao-next/internal/repository"
	"github.com/fenxiao-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ====================  入驻申请管理  ====================

// ListAffiliateApplications 获取入驻申请列表
func (h *Handler) ListAffiliateApplications(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	applications, total, err := h.AffiliateService.ListApplications(repository.AffiliateApplicationListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
		Email:    strings.TrimSpace(c.Query("email")),
		Keyword:  strings.TrimSpace(c.Query("search")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "application fetch failed", err)
		return
	}

	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, applications, pagination)
}

// ApproveApplicationRequest 批准入驻申请请求
type ApproveApplicationRequest struct {
	CodeOverride     string   `json:"code_override"`
	CommissionRate   *float64 `json:"commission_rate"`
	CheckoutDiscount *float64 `json:"checkout_discount"`
}

// ApproveAffiliateApplication 批准入驻申请并创建推广伙伴
func (h *Handler) ApproveAffiliateApplication(c *gin.Context) {
	applicationID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req ApproveApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	affiliate, err := h.AffiliateService.ApproveApplication(service.ApproveApplicationInput{
		ApplicationID:    applicationID,
		ReviewedBy:       currentUsername(c),
		CodeOverride:     req.CodeOverride,
		CommissionRate:   req.CommissionRate,
		CheckoutDiscount: req.CheckoutDiscount,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "application not found", nil)
		case errors.Is(err, service.ErrApplicationReviewed):
			respondError(c, response.CodeConflict, "application already reviewed", nil)
		case errors.Is(err, service.ErrAffiliateCodeTaken):
			respondError(c, response.CodeConflict, "affiliate code already taken", nil)
		case errors.Is(err, service.ErrAffiliateCodeInvalid):
			respondError(c, response.CodeBadRequest, "affiliate code invalid", nil)
		case errors.Is(err, service.ErrInvalidInput):
			respondError(c, response.CodeBadRequest, "bad request", nil)
		default:
			respondError(c, response.CodeInternal, "application approve failed", err)
		}
		return
	}
	response.Success(c, affiliate)
}

// RejectApplicationRequest 拒绝入驻申请请求
type RejectApplicationRequest struct {
	Reason string `json:"reason"`
}

// RejectAffiliateApplication 拒绝入驻申请
func (h *Handler) RejectAffiliateApplication(c *gin.Context) {
	applicationID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req RejectApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	application, err := h.AffiliateService.RejectApplication(applicationID, currentUsername(c), req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "application not found", nil)
		case errors.Is(err, service.ErrApplicationReviewed):
			respondError(c, response.CodeConflict, "application already reviewed", nil)
		default:
			respondError(c, response.CodeInternal, "application reject failed", err)
		}
		return
	}
	response.Success(c, application)
}

// ====================  推广伙伴管理  ====================

// ListAffiliates 获取推广伙伴列表
func (h *Handler) ListAffiliates(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	affiliates, total, err := h.AffiliateService.ListAffiliates(repository.AffiliateListFilter{
		Page:     page,
		PageSize: pageSize,
		Code:     strings.TrimSpace(c.Query("code")),
		Status:   strings.TrimSpace(c.Query("status")),
		Keyword:  strings.TrimSpace(c.Query("search")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "affiliate fetch failed", err)
		return
	}

	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, affiliates, pagination)
}

// GetAffiliate 获取推广伙伴详情
func (h *Handler) GetAffiliate(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	affiliate, err := h.AffiliateService.GetAffiliate(id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondError(c, response.CodeNotFound, "affiliate not found", nil)
			return
		}
		respondError(c, response.CodeInternal, "affiliate fetch failed", err)
		return
	}
	response.Success(c, affiliate)
}

// UpdateAffiliateRequest 更新推广伙伴请求
type UpdateAffiliateRequest struct {
	Name             *string  `json:"name"`
	Email            *string  `json:"email"`
	Website          *string  `json:"website"`
	CommissionRate   *float64 `json:"commission_rate"`
	CheckoutDiscount *float64 `json:"checkout_discount"`
	ClearOverrides   bool     `json:"clear_overrides"`
}

// UpdateAffiliate 更新推广伙伴资料与覆盖比例
func (h *Handler) UpdateAffiliate(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req UpdateAffiliateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	affiliate, err := h.AffiliateService.UpdateAffiliate(id, service.AffiliateUpdateInput{
		Name:             req.Name,
		Email:            req.Email,
		Website:          req.Website,
		CommissionRate:   req.CommissionRate,
		CheckoutDiscount: req.CheckoutDiscount,
		ClearOverrides:   req.ClearOverrides,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "affiliate not found", nil)
		case errors.Is(err, service.ErrInvalidInput):
			respondError(c, response.CodeBadRequest, "bad request", nil)
		default:
			respondError(c, response.CodeInternal, "affiliate update failed", err)
		}
		return
	}
	response.Success(c, affiliate)
}

// UpdateAffiliateStatusRequest 更新推广伙伴状态请求
type UpdateAffiliateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateAffiliateStatus 启用/停用推广伙伴
func (h *Handler) UpdateAffiliateStatus(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req UpdateAffiliateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	affiliate, err := h.AffiliateService.UpdateAffiliateStatus(id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "affiliate not found", nil)
		case errors.Is(err, service.ErrInvalidInput):
			respondError(c, response.CodeBadRequest, "status invalid", nil)
		default:
			respondError(c, response.CodeInternal, "affiliate update failed", err)
		}
		return
	}
	response.Success(c, affiliate)
}

// ====================  点击流水  ====================

// ListAffiliateClicks 获取点击流水列表
func (h *Handler) ListAffiliateClicks(c *gin.Context) {
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

	clicks, total, err := h.AffiliateRepo.ListClicks(repository.AffiliateClickListFilter{
		Page:        page,
		PageSize:    pageSize,
		AffiliateID: affiliateID,
		Campaign:    strings.TrimSpace(c.Query("campaign")),
		VisitorKey:  strings.TrimSpace(c.Query("visitor_key")),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "click fetch failed", err)
		return
	}

	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, clicks, pagination)
}

func parseIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "id invalid", nil)
		return 0, false
	}
	return uint(id), true
}

package admin

import (
	"errors"

	"github.com/fenxiao-next/internal/http/response"
	"github.com/fenxiao-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ReconcileAllAffiliates 对全部推广伙伴执行对账
func (h *Handler) ReconcileAllAffiliates(c *gin.Context) {
	reports, err := h.ReconciliationService.ReconcileAll()
	if err != nil {
		respondError(c, response.CodeInternal, "reconciliation failed", err)
		return
	}

	dirty := 0
	for _, report := range reports {
		if !report.Clean {
			dirty++
		}
	}
	response.Success(c, gin.H{
		"total":   len(reports),
		"dirty":   dirty,
		"reports": reports,
	})
}

// ReconcileAffiliate 对单个推广伙伴执行对账
func (h *Handler) ReconcileAffiliate(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	report, err := h.ReconciliationService.ReconcileAffiliate(id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondError(c, response.CodeNotFound, "affiliate not found", nil)
			return
		}
		respondError(c, response.CodeInternal, "reconciliation failed", err)
		return
	}
	response.Success(c, report)
}

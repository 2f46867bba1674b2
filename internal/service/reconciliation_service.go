package service

import (
	"strconv"

	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/repository"
)

const reconciliationUnprocessedLimit = 200

// ReconciliationService 台账对账服务（只读）
// 冗余统计列与点击/订单/打款明细表重新汇总的结果比对，偏差即为账目漂移
type ReconciliationService struct {
	affiliateRepo repository.AffiliateRepository
	orderRepo     repository.OrderRepository
	payoutRepo    repository.PayoutRepository
}

// NewReconciliationService 创建对账服务
func NewReconciliationService(
	affiliateRepo repository.AffiliateRepository,
	orderRepo repository.OrderRepository,
	payoutRepo repository.PayoutRepository,
) *ReconciliationService {
	return &ReconciliationService{
		affiliateRepo: affiliateRepo,
		orderRepo:     orderRepo,
		payoutRepo:    payoutRepo,
	}
}

// ReconciliationField 单个统计字段的对账明细
type ReconciliationField struct {
	Recorded   string `json:"recorded"`   // 冗余列记录值
	Recomputed string `json:"recomputed"` // 明细表重算值
	Match      bool   `json:"match"`
}

// ReconciliationReport 单个推广伙伴的对账报告
type ReconciliationReport struct {
	AffiliateID   uint                `json:"affiliate_id"`
	AffiliateCode string              `json:"affiliate_code"`
	Clicks        ReconciliationField `json:"clicks"`
	Conversions   ReconciliationField `json:"conversions"`
	TotalEarnings ReconciliationField `json:"total_earnings"`
	TotalPaid     ReconciliationField `json:"total_paid"`
	Balance       ReconciliationField `json:"balance"`
	Clean         bool                `json:"clean"`

	// 携带推广码但从未转化处理的订单，提示事件丢失
	UnprocessedOrders []string `json:"unprocessed_orders,omitempty"`
}

// ReconcileAffiliate 对单个推广伙伴执行对账
func (s *ReconciliationService) ReconcileAffiliate(affiliateID uint) (*ReconciliationReport, error) {
	if s == nil || s.affiliateRepo == nil || s.orderRepo == nil || s.payoutRepo == nil {
		return nil, ErrInvalidInput
	}
	affiliate, err := s.affiliateRepo.GetByID(affiliateID)
	if err != nil {
		return nil, err
	}
	if affiliate == nil {
		return nil, ErrNotFound
	}
	return s.buildReport(affiliate)
}

// ReconcileAll 对全部推广伙伴执行对账
func (s *ReconciliationService) ReconcileAll() ([]ReconciliationReport, error) {
	if s == nil || s.affiliateRepo == nil {
		return nil, ErrInvalidInput
	}

	reports := make([]ReconciliationReport, 0)
	page := 1
	const pageSize = 100
	for {
		affiliates, total, err := s.affiliateRepo.List(repository.AffiliateListFilter{Page: page, PageSize: pageSize})
		if err != nil {
			return nil, err
		}
		for i := range affiliates {
			report, err := s.buildReport(&affiliates[i])
			if err != nil {
				return nil, err
			}
			reports = append(reports, *report)
		}
		if int64(page*pageSize) >= total || len(affiliates) == 0 {
			break
		}
		page++
	}
	return reports, nil
}

func (s *ReconciliationService) buildReport(affiliate *models.Affiliate) (*ReconciliationReport, error) {
	clicks, err := s.affiliateRepo.CountClicksByAffiliate(affiliate.ID)
	if err != nil {
		return nil, err
	}
	conversions, err := s.orderRepo.CountProcessedConversionsByAffiliate(affiliate.ID)
	if err != nil {
		return nil, err
	}
	earned, err := s.orderRepo.SumCommissionByAffiliate(affiliate.ID)
	if err != nil {
		return nil, err
	}
	paid, err := s.payoutRepo.SumAmountByAffiliate(affiliate.ID)
	if err != nil {
		return nil, err
	}
	unprocessed, err := s.orderRepo.ListUnprocessedWithCode(affiliate.ID, reconciliationUnprocessedLimit)
	if err != nil {
		return nil, err
	}

	earnedMoney := models.NewMoneyFromDecimal(earned)
	paidMoney := models.NewMoneyFromDecimal(paid)
	balanceMoney := models.NewMoneyFromDecimal(earned.Sub(paid))

	report := &ReconciliationReport{
		AffiliateID:   affiliate.ID,
		AffiliateCode: affiliate.AffiliateCode,
		Clicks:        compareInt(affiliate.Clicks, clicks),
		Conversions:   compareInt(affiliate.Conversions, conversions),
		TotalEarnings: compareMoney(affiliate.TotalEarnings, earnedMoney),
		TotalPaid:     compareMoney(affiliate.TotalPaid, paidMoney),
		Balance:       compareMoney(affiliate.Balance, balanceMoney),
	}
	for _, order := range unprocessed {
		report.UnprocessedOrders = append(report.UnprocessedOrders, order.OrderNo)
	}
	report.Clean = report.Clicks.Match &&
		report.Conversions.Match &&
		report.TotalEarnings.Match &&
		report.TotalPaid.Match &&
		report.Balance.Match &&
		len(report.UnprocessedOrders) == 0
	return report, nil
}

func compareInt(recorded, recomputed int64) ReconciliationField {
	return ReconciliationField{
		Recorded:   strconv.FormatInt(recorded, 10),
		Recomputed: strconv.FormatInt(recomputed, 10),
		Match:      recorded == recomputed,
	}
}

func compareMoney(recorded, recomputed models.Money) ReconciliationField {
	return ReconciliationField{
		Recorded:   recorded.String(),
		Recomputed: recomputed.String(),
		Match:      recorded.Decimal.Equal(recomputed.Decimal),
	}
}

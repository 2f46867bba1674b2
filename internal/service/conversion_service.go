package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/logger"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/queue"
	"github.com/fenxiao-next/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ConversionService 订单转化处理服务
// 订单完成事件至少一次投递，processed 闸门保证佣金恰好计提一次
type ConversionService struct {
	orderRepo      repository.OrderRepository
	affiliateRepo  repository.AffiliateRepository
	affiliateSvc   *AffiliateService
	settingSvc     *SettingService
	attributionSvc *AttributionService
	queueClient    *queue.Client
}

// NewConversionService 创建转化处理服务
func NewConversionService(
	orderRepo repository.OrderRepository,
	affiliateRepo repository.AffiliateRepository,
	affiliateSvc *AffiliateService,
	settingSvc *SettingService,
	attributionSvc *AttributionService,
	queueClient *queue.Client,
) *ConversionService {
	return &ConversionService{
		orderRepo:      orderRepo,
		affiliateRepo:  affiliateRepo,
		affiliateSvc:   affiliateSvc,
		settingSvc:     settingSvc,
		attributionSvc: attributionSvc,
		queueClient:    queueClient,
	}
}

// OrderSnapshotInput 订单快照登记入参
type OrderSnapshotInput struct {
	OrderNo       string
	Status        string
	Currency      string
	Total         decimal.Decimal
	Shipping      decimal.Decimal
	Discount      decimal.Decimal
	VisitorKey    string
	AffiliateCode string // 为空时回退访客归因快照
}

// RegisterOrder 登记或刷新订单快照。
// 归因推广码在登记时定格为订单快照，后续归因变化不影响已登记订单。
func (s *ConversionService) RegisterOrder(ctx context.Context, input OrderSnapshotInput) (*models.Order, error) {
	if s == nil || s.orderRepo == nil {
		return nil, ErrInvalidInput
	}
	orderNo := strings.TrimSpace(input.OrderNo)
	if orderNo == "" {
		return nil, fmt.Errorf("%w: order no is required", ErrInvalidInput)
	}
	if input.Total.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: total must be positive", ErrInvalidInput)
	}
	if input.Shipping.IsNegative() || input.Discount.IsNegative() {
		return nil, fmt.Errorf("%w: shipping and discount must not be negative", ErrInvalidInput)
	}
	status := strings.TrimSpace(input.Status)
	if status == "" {
		status = constants.OrderStatusPendingPayment
	}

	code := strings.ToUpper(strings.TrimSpace(input.AffiliateCode))
	visitorKey := strings.TrimSpace(input.VisitorKey)
	if code == "" && visitorKey != "" && s.attributionSvc != nil {
		view, err := s.attributionSvc.GetAttribution(ctx, visitorKey)
		if err != nil {
			logger.Warnw("conversion_read_attribution_failed", "order_no", orderNo, "error", err)
		} else if view != nil && view.State != nil {
			code = view.State.AffiliateCode
		}
	}

	var affiliateID *uint
	if code != "" {
		affiliate, err := s.affiliateRepo.GetByCode(code)
		if err != nil {
			return nil, err
		}
		if affiliate != nil {
			affiliateID = &affiliate.ID
		}
	}

	existing, err := s.orderRepo.GetByOrderNo(orderNo)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if existing == nil {
		order := &models.Order{
			OrderNo:        orderNo,
			Status:         status,
			Currency:       strings.TrimSpace(input.Currency),
			TotalAmount:    models.NewMoneyFromDecimal(input.Total),
			ShippingAmount: models.NewMoneyFromDecimal(input.Shipping),
			DiscountAmount: models.NewMoneyFromDecimal(input.Discount),
			VisitorKey:     visitorKey,
			AffiliateCode:  code,
			AffiliateID:    affiliateID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if order.Currency == "" {
			order.Currency = constants.SiteCurrencyDefault
		}
		if err := s.orderRepo.Create(order); err != nil {
			if isUniqueViolation(err) {
				return nil, ErrOrderExists
			}
			return nil, err
		}
		return order, nil
	}

	// 已处理订单的金额与归因快照不可再变，仅允许状态推进
	existing.Status = status
	if !existing.ConversionProcessed {
		existing.TotalAmount = models.NewMoneyFromDecimal(input.Total)
		existing.ShippingAmount = models.NewMoneyFromDecimal(input.Shipping)
		existing.DiscountAmount = models.NewMoneyFromDecimal(input.Discount)
		if code != "" {
			existing.AffiliateCode = code
			existing.AffiliateID = affiliateID
		}
	}
	if status == constants.OrderStatusCanceled && existing.CanceledAt == nil {
		existing.CanceledAt = &now
	}
	existing.UpdatedAt = now
	if err := s.orderRepo.Update(existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// HandleOrderCompleted 处理订单完成事件：推进状态并触发转化处理
func (s *ConversionService) HandleOrderCompleted(ctx context.Context, orderNo string) (*ConversionResult, error) {
	if s == nil || s.orderRepo == nil {
		return nil, ErrInvalidInput
	}
	trimmed := strings.TrimSpace(orderNo)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: order no is required", ErrInvalidInput)
	}

	order, err := s.orderRepo.GetByOrderNo(trimmed)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrNotFound
	}
	if order.Status == constants.OrderStatusCanceled {
		return &ConversionResult{Outcome: constants.ConversionOutcomeSkippedCanceled}, nil
	}
	if order.Status != constants.OrderStatusCompleted {
		now := time.Now()
		order.Status = constants.OrderStatusCompleted
		order.CompletedAt = &now
		order.UpdatedAt = now
		if err := s.orderRepo.Update(order); err != nil {
			return nil, err
		}
	}

	if s.queueClient.Enabled() {
		if err := s.queueClient.EnqueueOrderConversion(queue.OrderConversionPayload{OrderNo: trimmed}); err != nil {
			// 入队失败降级为同步处理，保证事件不丢
			logger.Warnw("conversion_enqueue_failed", "order_no", trimmed, "error", err)
			return s.ProcessConversion(trimmed)
		}
		return &ConversionResult{Outcome: "enqueued"}, nil
	}
	return s.ProcessConversion(trimmed)
}

// ConversionResult 转化处理结果
type ConversionResult struct {
	Outcome     string        `json:"outcome"`
	OrderNo     string        `json:"order_no"`
	AffiliateID *uint         `json:"affiliate_id,omitempty"`
	Commission  *models.Money `json:"commission,omitempty"`
}

// ProcessConversion 处理单笔订单转化（幂等）。
// 事务内加锁读取订单，processed 标记先行检查：重复投递返回 already_processed，
// 不产生第二笔佣金；已取消订单直接跳过且不落标记。
func (s *ConversionService) ProcessConversion(orderNo string) (*ConversionResult, error) {
	if s == nil || s.orderRepo == nil || s.affiliateRepo == nil {
		return nil, ErrInvalidInput
	}
	trimmed := strings.TrimSpace(orderNo)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: order no is required", ErrInvalidInput)
	}

	var result *ConversionResult
	err := s.orderRepo.Transaction(func(tx *gorm.DB) error {
		orderTx := s.orderRepo.WithTx(tx)
		affiliateTx := s.affiliateRepo.WithTx(tx)

		order, err := orderTx.GetByOrderNoForUpdate(trimmed)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrNotFound
		}
		if order.ConversionProcessed {
			result = &ConversionResult{
				Outcome:     constants.ConversionOutcomeAlreadyProcessed,
				OrderNo:     order.OrderNo,
				AffiliateID: order.AffiliateID,
				Commission:  order.AffiliateCommission,
			}
			return nil
		}
		if order.Status == constants.OrderStatusCanceled {
			result = &ConversionResult{Outcome: constants.ConversionOutcomeSkippedCanceled, OrderNo: order.OrderNo}
			return nil
		}
		if order.Status != constants.OrderStatusCompleted {
			return fmt.Errorf("%w: order %s is %s", ErrOrderStatusInvalid, order.OrderNo, order.Status)
		}

		now := time.Now()

		// 无推广码或推广码无法解析到有效伙伴：终态不合格，标记已处理且不计佣
		affiliate, eligible, err := s.resolveEligibleAffiliate(affiliateTx, order)
		if err != nil {
			return err
		}
		if !eligible {
			order.ConversionProcessed = true
			order.ConversionAt = &now
			order.UpdatedAt = now
			if err := orderTx.Update(order); err != nil {
				return err
			}
			result = &ConversionResult{Outcome: constants.ConversionOutcomeIneligible, OrderNo: order.OrderNo}
			return nil
		}

		rate, err := s.affiliateSvc.EffectiveCommissionRate(affiliate)
		if err != nil {
			return err
		}
		setting, err := s.settingSvc.GetAffiliateSetting()
		if err != nil {
			return err
		}
		breakdown, err := CalculateCommission(CommissionInput{
			Total:          order.TotalAmount.Decimal,
			Shipping:       order.ShippingAmount.Decimal,
			CommissionRate: rate,
			VATRate:        decimal.NewFromFloat(setting.VATRate),
		})
		if err != nil {
			return err
		}

		commission := breakdown.Commission
		order.AffiliateID = &affiliate.ID
		order.AffiliateCommission = &commission
		order.ConversionProcessed = true
		order.ConversionAt = &now
		order.UpdatedAt = now
		if err := orderTx.Update(order); err != nil {
			return err
		}

		affiliate.Conversions++
		affiliate.TotalEarnings = models.NewMoneyFromDecimal(affiliate.TotalEarnings.Decimal.Add(commission.Decimal))
		affiliate.Balance = models.NewMoneyFromDecimal(affiliate.Balance.Decimal.Add(commission.Decimal))
		affiliate.UpdatedAt = now
		if err := affiliateTx.Update(affiliate); err != nil {
			return err
		}

		result = &ConversionResult{
			Outcome:     constants.ConversionOutcomeProcessed,
			OrderNo:     order.OrderNo,
			AffiliateID: &affiliate.ID,
			Commission:  &commission,
		}
		return nil
	})
	if err != nil {
		if isRetryableTxError(err) {
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return nil, err
	}

	if result != nil {
		logger.Infow("conversion_processed",
			"order_no", result.OrderNo,
			"outcome", result.Outcome,
		)
	}
	return result, nil
}

// resolveEligibleAffiliate 在事务内解析并锁定可计佣的推广伙伴
func (s *ConversionService) resolveEligibleAffiliate(affiliateTx repository.AffiliateRepository, order *models.Order) (*models.Affiliate, bool, error) {
	if strings.TrimSpace(order.AffiliateCode) == "" {
		return nil, false, nil
	}
	affiliate, err := affiliateTx.GetByCode(order.AffiliateCode)
	if err != nil {
		return nil, false, err
	}
	if affiliate == nil || affiliate.Status != constants.AffiliateStatusActive {
		return nil, false, nil
	}
	// 重新按主键加锁，余额变更必须持有行锁
	locked, err := affiliateTx.GetByIDForUpdate(affiliate.ID)
	if err != nil {
		return nil, false, err
	}
	if locked == nil || locked.Status != constants.AffiliateStatusActive {
		return nil, false, nil
	}
	return locked, true, nil
}

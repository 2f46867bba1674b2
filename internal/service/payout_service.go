package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/logger"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	invoiceNumberMinLen = 3
	invoiceNumberMaxLen = 50
)

// PayoutService 打款结算服务
type PayoutService struct {
	affiliateRepo repository.AffiliateRepository
	payoutRepo    repository.PayoutRepository
}

// NewPayoutService 创建打款结算服务
func NewPayoutService(affiliateRepo repository.AffiliateRepository, payoutRepo repository.PayoutRepository) *PayoutService {
	return &PayoutService{affiliateRepo: affiliateRepo, payoutRepo: payoutRepo}
}

// PayoutInput 打款结算入参
type PayoutInput struct {
	AffiliateID     uint
	Amount          decimal.Decimal
	InvoiceNumber   string
	InvoiceURL      string
	InvoiceFileName string
	InvoiceFileSize int64
	Notes           string
	ProcessedBy     string
}

// ProcessPayout 执行打款结算。
// 余额校验与扣减在同一事务内完成，伙伴行持有行锁，
// 并发打款不可能把余额扣成负数；打款记录创建后不可变更。
func (s *PayoutService) ProcessPayout(input PayoutInput) (*models.PayoutRecord, error) {
	if s == nil || s.affiliateRepo == nil || s.payoutRepo == nil {
		return nil, ErrInvalidInput
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: amount must be positive", ErrPayoutAmountInvalid)
	}
	invoiceNumber := strings.TrimSpace(input.InvoiceNumber)
	if length := len([]rune(invoiceNumber)); length < invoiceNumberMinLen || length > invoiceNumberMaxLen {
		return nil, fmt.Errorf("%w: invoice number must be %d-%d chars", ErrInvoiceNumberInvalid, invoiceNumberMinLen, invoiceNumberMaxLen)
	}

	amount := models.NewMoneyFromDecimal(input.Amount)

	var record *models.PayoutRecord
	err := s.affiliateRepo.Transaction(func(tx *gorm.DB) error {
		affiliateTx := s.affiliateRepo.WithTx(tx)
		payoutTx := s.payoutRepo.WithTx(tx)

		affiliate, err := affiliateTx.GetByIDForUpdate(input.AffiliateID)
		if err != nil {
			return err
		}
		if affiliate == nil {
			return ErrNotFound
		}

		// 余额检查必须在持锁后进行，锁外读到的余额不可信
		if amount.Decimal.GreaterThan(affiliate.Balance.Decimal) {
			return fmt.Errorf("%w: requested %s exceeds available %s",
				ErrInsufficientBalance, amount.String(), affiliate.Balance.String())
		}

		now := time.Now()
		newBalance := models.NewMoneyFromDecimal(affiliate.Balance.Decimal.Sub(amount.Decimal))

		record = &models.PayoutRecord{
			PayoutNo:        uuid.NewString(),
			AffiliateID:     affiliate.ID,
			Amount:          amount,
			BalanceAfter:    newBalance,
			InvoiceNumber:   invoiceNumber,
			InvoiceURL:      strings.TrimSpace(input.InvoiceURL),
			InvoiceFileName: strings.TrimSpace(input.InvoiceFileName),
			InvoiceFileSize: input.InvoiceFileSize,
			Notes:           strings.TrimSpace(input.Notes),
			ProcessedBy:     strings.TrimSpace(input.ProcessedBy),
			Status:          constants.PayoutStatusCompleted,
			SettledAt:       now,
			CreatedAt:       now,
		}
		if err := payoutTx.Create(record); err != nil {
			return err
		}

		affiliate.TotalPaid = models.NewMoneyFromDecimal(affiliate.TotalPaid.Decimal.Add(amount.Decimal))
		affiliate.Balance = newBalance
		affiliate.UpdatedAt = now
		return affiliateTx.Update(affiliate)
	})
	if err != nil {
		if isRetryableTxError(err) {
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return nil, err
	}

	logger.Infow("payout_settled",
		"payout_no", record.PayoutNo,
		"affiliate_id", record.AffiliateID,
		"amount", record.Amount.String(),
		"invoice_number", record.InvoiceNumber,
	)
	return record, nil
}

// GetPayout 获取打款记录详情
func (s *PayoutService) GetPayout(id uint) (*models.PayoutRecord, error) {
	if s == nil || s.payoutRepo == nil {
		return nil, ErrInvalidInput
	}
	record, err := s.payoutRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrNotFound
	}
	return record, nil
}

// ListPayouts 查询打款记录列表
func (s *PayoutService) ListPayouts(filter repository.PayoutListFilter) ([]models.PayoutRecord, int64, error) {
	if s == nil || s.payoutRepo == nil {
		return nil, 0, ErrInvalidInput
	}
	return s.payoutRepo.List(filter)
}

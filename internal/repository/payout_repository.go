package repository

import (
	"errors"
	"strings"

	"github.com/fenxiao-next/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PayoutRepository 打款记录数据访问接口（记录只增不改）
type PayoutRepository interface {
	WithTx(tx *gorm.DB) PayoutRepository

	Create(record *models.PayoutRecord) error
	GetByID(id uint) (*models.PayoutRecord, error)
	GetByPayoutNo(payoutNo string) (*models.PayoutRecord, error)
	List(filter PayoutListFilter) ([]models.PayoutRecord, int64, error)
	SumAmountByAffiliate(affiliateID uint) (decimal.Decimal, error)
}

// GormPayoutRepository GORM 打款记录仓储
type GormPayoutRepository struct {
	db *gorm.DB
}

// NewPayoutRepository 创建打款记录仓储
func NewPayoutRepository(db *gorm.DB) *GormPayoutRepository {
	return &GormPayoutRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPayoutRepository) WithTx(tx *gorm.DB) PayoutRepository {
	if tx == nil {
		return r
	}
	return &GormPayoutRepository{db: tx}
}

// Create 创建打款记录
func (r *GormPayoutRepository) Create(record *models.PayoutRecord) error {
	return r.db.Create(record).Error
}

// GetByID 按ID获取打款记录
func (r *GormPayoutRepository) GetByID(id uint) (*models.PayoutRecord, error) {
	if id == 0 {
		return nil, nil
	}
	var record models.PayoutRecord
	if err := r.db.First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetByPayoutNo 按打款编号获取打款记录
func (r *GormPayoutRepository) GetByPayoutNo(payoutNo string) (*models.PayoutRecord, error) {
	trimmed := strings.TrimSpace(payoutNo)
	if trimmed == "" {
		return nil, nil
	}
	var record models.PayoutRecord
	if err := r.db.Where("payout_no = ?", trimmed).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// List 查询打款记录列表
func (r *GormPayoutRepository) List(filter PayoutListFilter) ([]models.PayoutRecord, int64, error) {
	query := r.db.Model(&models.PayoutRecord{})
	if filter.AffiliateID != 0 {
		query = query.Where("affiliate_id = ?", filter.AffiliateID)
	}
	if invoice := strings.TrimSpace(filter.InvoiceNumber); invoice != "" {
		query = query.Where("invoice_number = ?", invoice)
	}
	if filter.SettledFrom != nil {
		query = query.Where("settled_at >= ?", *filter.SettledFrom)
	}
	if filter.SettledTo != nil {
		query = query.Where("settled_at <= ?", *filter.SettledTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.PayoutRecord
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// SumAmountByAffiliate 汇总推广伙伴累计打款金额
func (r *GormPayoutRepository) SumAmountByAffiliate(affiliateID uint) (decimal.Decimal, error) {
	if affiliateID == 0 {
		return decimal.Zero, nil
	}
	var sum decimal.NullDecimal
	if err := r.db.Model(&models.PayoutRecord{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("affiliate_id = ?", affiliateID).
		Scan(&sum).Error; err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

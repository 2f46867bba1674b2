package repository

import (
	"errors"
	"strings"

	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderRepository 订单快照数据访问接口
type OrderRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) OrderRepository

	GetByOrderNo(orderNo string) (*models.Order, error)
	GetByOrderNoForUpdate(orderNo string) (*models.Order, error)
	Create(order *models.Order) error
	Update(order *models.Order) error
	List(filter OrderListFilter) ([]models.Order, int64, error)

	CountProcessedConversionsByAffiliate(affiliateID uint) (int64, error)
	SumCommissionByAffiliate(affiliateID uint) (decimal.Decimal, error)
	ListUnprocessedWithCode(affiliateID uint, limit int) ([]models.Order, error)
}

// GormOrderRepository GORM 订单快照仓储
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单快照仓储
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) OrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// Transaction 执行事务
func (r *GormOrderRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByOrderNo 按订单编号获取订单快照
func (r *GormOrderRepository) GetByOrderNo(orderNo string) (*models.Order, error) {
	trimmed := strings.TrimSpace(orderNo)
	if trimmed == "" {
		return nil, nil
	}
	var order models.Order
	if err := r.db.Where("order_no = ?", trimmed).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByOrderNoForUpdate 按订单编号加锁获取订单快照（转化事务内使用）
func (r *GormOrderRepository) GetByOrderNoForUpdate(orderNo string) (*models.Order, error) {
	trimmed := strings.TrimSpace(orderNo)
	if trimmed == "" {
		return nil, nil
	}
	var order models.Order
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_no = ?", trimmed).
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// Create 创建订单快照
func (r *GormOrderRepository) Create(order *models.Order) error {
	return r.db.Create(order).Error
}

// Update 更新订单快照
func (r *GormOrderRepository) Update(order *models.Order) error {
	return r.db.Save(order).Error
}

// List 查询订单快照列表
func (r *GormOrderRepository) List(filter OrderListFilter) ([]models.Order, int64, error) {
	query := r.db.Model(&models.Order{})
	if orderNo := strings.TrimSpace(filter.OrderNo); orderNo != "" {
		query = query.Where("order_no = ?", orderNo)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if filter.AffiliateID != 0 {
		query = query.Where("affiliate_id = ?", filter.AffiliateID)
	}
	if code := strings.TrimSpace(filter.AffiliateCode); code != "" {
		query = query.Where("affiliate_code = ?", strings.ToUpper(code))
	}
	if filter.ConversionProcessed != nil {
		query = query.Where("conversion_processed = ?", *filter.ConversionProcessed)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.Order
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// CountProcessedConversionsByAffiliate 统计已计提佣金的转化订单数（排除已取消订单）
func (r *GormOrderRepository) CountProcessedConversionsByAffiliate(affiliateID uint) (int64, error) {
	if affiliateID == 0 {
		return 0, nil
	}
	var count int64
	if err := r.db.Model(&models.Order{}).
		Where("affiliate_id = ? AND conversion_processed = ? AND affiliate_commission IS NOT NULL AND status <> ?",
			affiliateID, true, constants.OrderStatusCanceled).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumCommissionByAffiliate 汇总已计提佣金金额（排除已取消订单）
func (r *GormOrderRepository) SumCommissionByAffiliate(affiliateID uint) (decimal.Decimal, error) {
	if affiliateID == 0 {
		return decimal.Zero, nil
	}
	var sum decimal.NullDecimal
	if err := r.db.Model(&models.Order{}).
		Select("COALESCE(SUM(affiliate_commission), 0)").
		Where("affiliate_id = ? AND conversion_processed = ? AND affiliate_commission IS NOT NULL AND status <> ?",
			affiliateID, true, constants.OrderStatusCanceled).
		Scan(&sum).Error; err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

// ListUnprocessedWithCode 查询携带推广码但尚未转化处理的订单（对账用）
func (r *GormOrderRepository) ListUnprocessedWithCode(affiliateID uint, limit int) ([]models.Order, error) {
	query := r.db.Model(&models.Order{}).
		Where("affiliate_code <> '' AND conversion_processed = ? AND status <> ?",
			false, constants.OrderStatusCanceled)
	if affiliateID != 0 {
		query = query.Where("affiliate_id = ?", affiliateID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.Order
	if err := query.Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

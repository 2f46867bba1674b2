package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/fenxiao-next/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AffiliateRepository 推广伙伴数据访问接口
type AffiliateRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) AffiliateRepository

	GetByID(id uint) (*models.Affiliate, error)
	GetByIDForUpdate(id uint) (*models.Affiliate, error)
	GetByCode(code string) (*models.Affiliate, error)
	Create(affiliate *models.Affiliate) error
	Update(affiliate *models.Affiliate) error
	UpdateStatus(id uint, status string, updatedAt time.Time) error
	List(filter AffiliateListFilter) ([]models.Affiliate, int64, error)
	IncrementClicks(id uint, delta int64) error

	CreateClick(click *models.AffiliateClick) error
	GetClickByClickID(clickID string) (*models.AffiliateClick, error)
	ListClicks(filter AffiliateClickListFilter) ([]models.AffiliateClick, int64, error)
	CountClicksByAffiliate(affiliateID uint) (int64, error)

	CreateApplication(application *models.AffiliateApplication) error
	GetApplicationByID(id uint) (*models.AffiliateApplication, error)
	GetApplicationByIDForUpdate(id uint) (*models.AffiliateApplication, error)
	UpdateApplication(application *models.AffiliateApplication) error
	HasPendingApplicationByEmail(email string) (bool, error)
	ListApplications(filter AffiliateApplicationListFilter) ([]models.AffiliateApplication, int64, error)
}

// GormAffiliateRepository GORM 推广伙伴仓储
type GormAffiliateRepository struct {
	db *gorm.DB
}

// NewAffiliateRepository 创建推广伙伴仓储
func NewAffiliateRepository(db *gorm.DB) *GormAffiliateRepository {
	return &GormAffiliateRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAffiliateRepository) WithTx(tx *gorm.DB) AffiliateRepository {
	if tx == nil {
		return r
	}
	return &GormAffiliateRepository{db: tx}
}

// Transaction 执行事务
func (r *GormAffiliateRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByID 按ID获取推广伙伴
func (r *GormAffiliateRepository) GetByID(id uint) (*models.Affiliate, error) {
	if id == 0 {
		return nil, nil
	}
	var affiliate models.Affiliate
	if err := r.db.First(&affiliate, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &affiliate, nil
}

// GetByIDForUpdate 按ID加锁获取推广伙伴（余额变更事务内使用）
func (r *GormAffiliateRepository) GetByIDForUpdate(id uint) (*models.Affiliate, error) {
	if id == 0 {
		return nil, nil
	}
	var affiliate models.Affiliate
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&affiliate, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &affiliate, nil
}

// GetByCode 按推广码获取推广伙伴（大写归一化）
func (r *GormAffiliateRepository) GetByCode(code string) (*models.Affiliate, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, nil
	}
	var affiliate models.Affiliate
	if err := r.db.Where("affiliate_code = ?", normalized).First(&affiliate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &affiliate, nil
}

// Create 创建推广伙伴
func (r *GormAffiliateRepository) Create(affiliate *models.Affiliate) error {
	return r.db.Create(affiliate).Error
}

// Update 更新推广伙伴
func (r *GormAffiliateRepository) Update(affiliate *models.Affiliate) error {
	return r.db.Save(affiliate).Error
}

// UpdateStatus 更新推广伙伴状态
func (r *GormAffiliateRepository) UpdateStatus(id uint, status string, updatedAt time.Time) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.Affiliate{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     strings.TrimSpace(status),
			"updated_at": updatedAt,
		}).Error
}

// List 查询推广伙伴列表
func (r *GormAffiliateRepository) List(filter AffiliateListFilter) ([]models.Affiliate, int64, error) {
	query := r.db.Model(&models.Affiliate{})
	if code := strings.TrimSpace(filter.Code); code != "" {
		query = query.Where("affiliate_code = ?", strings.ToUpper(code))
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		condition, argCount := buildKeywordLikeCondition(r.db, []string{"name", "email", "affiliate_code"})
		query = query.Where("("+condition+")", repeatLikeArgs("%"+keyword+"%", argCount)...)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.Affiliate
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// IncrementClicks 自增点击统计
func (r *GormAffiliateRepository) IncrementClicks(id uint, delta int64) error {
	if id == 0 || delta == 0 {
		return nil
	}
	return r.db.Model(&models.Affiliate{}).
		Where("id = ?", id).
		UpdateColumn("clicks", gorm.Expr("clicks + ?", delta)).Error
}

// CreateClick 创建推广点击记录
func (r *GormAffiliateRepository) CreateClick(click *models.AffiliateClick) error {
	return r.db.Create(click).Error
}

// GetClickByClickID 按点击标识获取点击记录
func (r *GormAffiliateRepository) GetClickByClickID(clickID string) (*models.AffiliateClick, error) {
	trimmed := strings.TrimSpace(clickID)
	if trimmed == "" {
		return nil, nil
	}
	var click models.AffiliateClick
	if err := r.db.Where("click_id = ?", trimmed).First(&click).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &click, nil
}

// ListClicks 查询点击流水列表
func (r *GormAffiliateRepository) ListClicks(filter AffiliateClickListFilter) ([]models.AffiliateClick, int64, error) {
	query := r.db.Model(&models.AffiliateClick{})
	if filter.AffiliateID != 0 {
		query = query.Where("affiliate_id = ?", filter.AffiliateID)
	}
	if campaign := strings.TrimSpace(filter.Campaign); campaign != "" {
		query = query.Where("campaign = ?", campaign)
	}
	if visitorKey := strings.TrimSpace(filter.VisitorKey); visitorKey != "" {
		query = query.Where("visitor_key = ?", visitorKey)
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

	var rows []models.AffiliateClick
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// CountClicksByAffiliate 统计推广伙伴点击数
func (r *GormAffiliateRepository) CountClicksByAffiliate(affiliateID uint) (int64, error) {
	if affiliateID == 0 {
		return 0, nil
	}
	var count int64
	if err := r.db.Model(&models.AffiliateClick{}).
		Where("affiliate_id = ?", affiliateID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CreateApplication 创建入驻申请
func (r *GormAffiliateRepository) CreateApplication(application *models.AffiliateApplication) error {
	return r.db.Create(application).Error
}

// GetApplicationByID 按ID获取入驻申请
func (r *GormAffiliateRepository) GetApplicationByID(id uint) (*models.AffiliateApplication, error) {
	if id == 0 {
		return nil, nil
	}
	var application models.AffiliateApplication
	if err := r.db.First(&application, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &application, nil
}

// GetApplicationByIDForUpdate 按ID加锁获取入驻申请（审核事务内使用）
func (r *GormAffiliateRepository) GetApplicationByIDForUpdate(id uint) (*models.AffiliateApplication, error) {
	if id == 0 {
		return nil, nil
	}
	var application models.AffiliateApplication
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&application, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &application, nil
}

// UpdateApplication 更新入驻申请
func (r *GormAffiliateRepository) UpdateApplication(application *models.AffiliateApplication) error {
	return r.db.Save(application).Error
}

// HasPendingApplicationByEmail 查询邮箱是否存在待审核申请
func (r *GormAffiliateRepository) HasPendingApplicationByEmail(email string) (bool, error) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" {
		return false, nil
	}
	var count int64
	if err := r.db.Model(&models.AffiliateApplication{}).
		Where("email = ? AND status = ?", trimmed, "pending").
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListApplications 查询入驻申请列表
func (r *GormAffiliateRepository) ListApplications(filter AffiliateApplicationListFilter) ([]models.AffiliateApplication, int64, error) {
	query := r.db.Model(&models.AffiliateApplication{})
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if email := strings.ToLower(strings.TrimSpace(filter.Email)); email != "" {
		query = query.Where("email = ?", email)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		condition, argCount := buildKeywordLikeCondition(r.db, []string{"name", "email", "website"})
		query = query.Where("("+condition+")", repeatLikeArgs("%"+keyword+"%", argCount)...)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.AffiliateApplication
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

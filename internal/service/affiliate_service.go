package service

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	affiliateCodePrefixMaxLen = 8
	affiliateCodeGenAttempts  = 5
)

var affiliateCodePattern = regexp.MustCompile(`^[A-Z0-9-]{3,20}$`)

// AffiliateService 推广伙伴生命周期服务
type AffiliateService struct {
	repo       repository.AffiliateRepository
	settingSvc *SettingService
}

// NewAffiliateService 创建推广伙伴服务
func NewAffiliateService(repo repository.AffiliateRepository, settingSvc *SettingService) *AffiliateService {
	return &AffiliateService{repo: repo, settingSvc: settingSvc}
}

// AffiliateApplicationInput 入驻申请入参
type AffiliateApplicationInput struct {
	Name             string
	Email            string
	Website          string
	PromotionChannel string
}

// SubmitApplication 提交入驻申请
func (s *AffiliateService) SubmitApplication(input AffiliateApplicationInput) (*models.AffiliateApplication, error) {
	if s == nil || s.repo == nil {
		return nil, ErrInvalidInput
	}
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if name == "" || email == "" {
		return nil, fmt.Errorf("%w: name and email are required", ErrInvalidInput)
	}

	pending, err := s.repo.HasPendingApplicationByEmail(email)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, ErrApplicationPendingExists
	}

	now := time.Now()
	application := &models.AffiliateApplication{
		Name:             name,
		Email:            email,
		Website:          strings.TrimSpace(input.Website),
		PromotionChannel: strings.TrimSpace(input.PromotionChannel),
		Status:           constants.AffiliateApplicationStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.CreateApplication(application); err != nil {
		return nil, err
	}
	return application, nil
}

// ListApplications 查询入驻申请列表
func (s *AffiliateService) ListApplications(filter repository.AffiliateApplicationListFilter) ([]models.AffiliateApplication, int64, error) {
	if s == nil || s.repo == nil {
		return nil, 0, ErrInvalidInput
	}
	return s.repo.ListApplications(filter)
}

// ApproveApplicationInput 申请批准入参
type ApproveApplicationInput struct {
	ApplicationID    uint
	ReviewedBy       string
	CodeOverride     string   // 可选，管理员指定推广码
	CommissionRate   *float64 // 可选，按伙伴覆盖佣金比例
	CheckoutDiscount *float64 // 可选，按伙伴覆盖结算折扣
}

// ApproveApplication 批准入驻申请并创建推广伙伴
func (s *AffiliateService) ApproveApplication(input ApproveApplicationInput) (*models.Affiliate, error) {
	if s == nil || s.repo == nil {
		return nil, ErrInvalidInput
	}

	codeOverride := ""
	if strings.TrimSpace(input.CodeOverride) != "" {
		normalized, err := normalizeAffiliateCodeOverride(input.CodeOverride)
		if err != nil {
			return nil, err
		}
		codeOverride = normalized
	}
	if input.CommissionRate != nil && (*input.CommissionRate < 0 || *input.CommissionRate > 100) {
		return nil, fmt.Errorf("%w: commission rate must be within 0-100", ErrInvalidInput)
	}
	if input.CheckoutDiscount != nil && (*input.CheckoutDiscount < 0 || *input.CheckoutDiscount > 100) {
		return nil, fmt.Errorf("%w: checkout discount must be within 0-100", ErrInvalidInput)
	}

	var affiliate *models.Affiliate
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)

		application, err := repoTx.GetApplicationByIDForUpdate(input.ApplicationID)
		if err != nil {
			return err
		}
		if application == nil {
			return ErrNotFound
		}
		if application.Status != constants.AffiliateApplicationStatusPending {
			return ErrApplicationReviewed
		}

		created, err := s.createAffiliateTx(repoTx, application, codeOverride, input.CommissionRate, input.CheckoutDiscount)
		if err != nil {
			return err
		}

		now := time.Now()
		application.Status = constants.AffiliateApplicationStatusApproved
		application.AffiliateID = &created.ID
		application.ReviewedBy = strings.TrimSpace(input.ReviewedBy)
		application.ReviewedAt = &now
		application.UpdatedAt = now
		if err := repoTx.UpdateApplication(application); err != nil {
			return err
		}

		affiliate = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return affiliate, nil
}

func (s *AffiliateService) createAffiliateTx(repoTx repository.AffiliateRepository, application *models.AffiliateApplication, codeOverride string, commissionRate, checkoutDiscount *float64) (*models.Affiliate, error) {
	now := time.Now()
	base := models.Affiliate{
		Name:             application.Name,
		Email:            application.Email,
		Website:          application.Website,
		Status:           constants.AffiliateStatusActive,
		CommissionRate:   commissionRate,
		CheckoutDiscount: checkoutDiscount,
		TotalEarnings:    models.NewMoneyFromDecimal(decimal.Zero),
		TotalPaid:        models.NewMoneyFromDecimal(decimal.Zero),
		Balance:          models.NewMoneyFromDecimal(decimal.Zero),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if codeOverride != "" {
		affiliate := base
		affiliate.AffiliateCode = codeOverride
		if err := repoTx.Create(&affiliate); err != nil {
			if isUniqueViolation(err) {
				return nil, ErrAffiliateCodeTaken
			}
			return nil, err
		}
		return &affiliate, nil
	}

	// 生成码冲突时换一个重试，连续冲突视为异常
	for attempt := 0; attempt < affiliateCodeGenAttempts; attempt++ {
		code, err := generateAffiliateCode(application.Name)
		if err != nil {
			return nil, err
		}
		affiliate := base
		affiliate.AffiliateCode = code
		if err := repoTx.Create(&affiliate); err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return nil, err
		}
		return &affiliate, nil
	}
	return nil, fmt.Errorf("%w: affiliate code generation exhausted", ErrConflict)
}

// RejectApplication 拒绝入驻申请
func (s *AffiliateService) RejectApplication(applicationID uint, reviewedBy, reason string) (*models.AffiliateApplication, error) {
	if s == nil || s.repo == nil {
		return nil, ErrInvalidInput
	}

	var result *models.AffiliateApplication
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)

		application, err := repoTx.GetApplicationByIDForUpdate(applicationID)
		if err != nil {
			return err
		}
		if application == nil {
			return ErrNotFound
		}
		if application.Status != constants.AffiliateApplicationStatusPending {
			return ErrApplicationReviewed
		}

		now := time.Now()
		application.Status = constants.AffiliateApplicationStatusRejected
		application.RejectReason = strings.TrimSpace(reason)
		application.ReviewedBy = strings.TrimSpace(reviewedBy)
		application.ReviewedAt = &now
		application.UpdatedAt = now
		if err := repoTx.UpdateApplication(application); err != nil {
			return err
		}
		result = application
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetAffiliate 获取推广伙伴详情
func (s *AffiliateService) GetAffiliate(id uint) (*models.Affiliate, error) {
	if s == nil || s.repo == nil {
		return nil, ErrInvalidInput
	}
	affiliate, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if affiliate == nil {
		return nil, ErrNotFound
	}
	return affiliate, nil
}

// ListAffiliates 查询推广伙伴列表
func (s *AffiliateService) ListAffiliates(filter repository.AffiliateListFilter) ([]models.Affiliate, int64, error) {
	if s == nil || s.repo == nil {
		return nil, 0, ErrInvalidInput
	}
	return s.repo.List(filter)
}

// AffiliateUpdateInput 推广伙伴更新入参（nil 表示不修改）
type AffiliateUpdateInput struct {
	Name             *string
	Email            *string
	Website          *string
	CommissionRate   *float64
	CheckoutDiscount *float64
	ClearOverrides   bool
}

// UpdateAffiliate 更新推广伙伴资料与覆盖比例
func (s *AffiliateService) UpdateAffiliate(id uint, input AffiliateUpdateInput) (*models.Affiliate, error) {
	affiliate, err := s.GetAffiliate(id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
		affiliate.Name = name
	}
	if input.Email != nil {
		affiliate.Email = strings.ToLower(strings.TrimSpace(*input.Email))
	}
	if input.Website != nil {
		affiliate.Website = strings.TrimSpace(*input.Website)
	}
	if input.ClearOverrides {
		affiliate.CommissionRate = nil
		affiliate.CheckoutDiscount = nil
	}
	if input.CommissionRate != nil {
		if *input.CommissionRate < 0 || *input.CommissionRate > 100 {
			return nil, fmt.Errorf("%w: commission rate must be within 0-100", ErrInvalidInput)
		}
		affiliate.CommissionRate = input.CommissionRate
	}
	if input.CheckoutDiscount != nil {
		if *input.CheckoutDiscount < 0 || *input.CheckoutDiscount > 100 {
			return nil, fmt.Errorf("%w: checkout discount must be within 0-100", ErrInvalidInput)
		}
		affiliate.CheckoutDiscount = input.CheckoutDiscount
	}

	affiliate.UpdatedAt = time.Now()
	if err := s.repo.Update(affiliate); err != nil {
		return nil, err
	}
	return affiliate, nil
}

// UpdateAffiliateStatus 更新推广伙伴状态
// 停用只阻断后续归因与转化，余额与打款历史保持不变
func (s *AffiliateService) UpdateAffiliateStatus(id uint, status string) (*models.Affiliate, error) {
	normalized := strings.TrimSpace(status)
	if normalized != constants.AffiliateStatusActive && normalized != constants.AffiliateStatusDisabled {
		return nil, fmt.Errorf("%w: unsupported status %q", ErrInvalidInput, status)
	}

	affiliate, err := s.GetAffiliate(id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(affiliate.ID, normalized, time.Now()); err != nil {
		return nil, err
	}
	affiliate.Status = normalized
	return affiliate, nil
}

// ResolveActiveByCode 按推广码解析有效推广伙伴
func (s *AffiliateService) ResolveActiveByCode(code string) (*models.Affiliate, error) {
	if s == nil || s.repo == nil {
		return nil, ErrInvalidInput
	}
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, fmt.Errorf("%w: empty affiliate code", ErrAffiliateCodeInvalid)
	}
	affiliate, err := s.repo.GetByCode(normalized)
	if err != nil {
		return nil, err
	}
	if affiliate == nil {
		return nil, ErrNotFound
	}
	if affiliate.Status != constants.AffiliateStatusActive {
		return nil, ErrAffiliateDisabled
	}
	return affiliate, nil
}

// EffectiveCommissionRate 解析生效佣金比例（伙伴覆盖优先，否则取全局默认）
func (s *AffiliateService) EffectiveCommissionRate(affiliate *models.Affiliate) (decimal.Decimal, error) {
	setting, err := s.settingSvc.GetAffiliateSetting()
	if err != nil {
		return decimal.Zero, err
	}
	if affiliate != nil && affiliate.CommissionRate != nil && *affiliate.CommissionRate > 0 {
		return decimal.NewFromFloat(*affiliate.CommissionRate).Round(2), nil
	}
	return decimal.NewFromFloat(setting.DefaultCommissionRate).Round(2), nil
}

// EffectiveCheckoutDiscount 解析生效结算折扣（伙伴覆盖优先，否则取全局默认）
func (s *AffiliateService) EffectiveCheckoutDiscount(affiliate *models.Affiliate) (float64, error) {
	setting, err := s.settingSvc.GetAffiliateSetting()
	if err != nil {
		return 0, err
	}
	if affiliate != nil && affiliate.CheckoutDiscount != nil && *affiliate.CheckoutDiscount > 0 {
		return *affiliate.CheckoutDiscount, nil
	}
	return setting.DefaultCheckoutDiscount, nil
}

// normalizeAffiliateCodeOverride 归一化并校验管理员指定的推广码
func normalizeAffiliateCodeOverride(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if !affiliateCodePattern.MatchString(normalized) {
		return "", fmt.Errorf("%w: code must be 3-20 chars of A-Z 0-9 -", ErrAffiliateCodeInvalid)
	}
	return normalized, nil
}

// generateAffiliateCode 生成默认推广码：名称字母前缀 + 连字符 + 3 位随机数字
func generateAffiliateCode(name string) (string, error) {
	prefix := affiliateCodePrefix(name)

	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	digits := make([]byte, 3)
	for i, b := range buf {
		digits[i] = '0' + b%10
	}
	return fmt.Sprintf("%s-%s", prefix, string(digits)), nil
}

func affiliateCodePrefix(name string) string {
	var builder strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(name)) {
		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			continue
		}
		builder.WriteRune(r)
		if builder.Len() >= affiliateCodePrefixMaxLen {
			break
		}
	}
	if builder.Len() == 0 {
		return "AFF"
	}
	return builder.String()
}

package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/repository"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestSubmitApplication(t *testing.T) {
	svc, _ := setupAffiliateServiceTest(t)

	application, err := svc.SubmitApplication(AffiliateApplicationInput{
		Name:             "Nordic Deals Blog",
		Email:            "  Hello@NordicDeals.example ",
		Website:          "https://nordicdeals.example",
		PromotionChannel: "deal blog",
	})
	if err != nil {
		t.Fatalf("submit application failed: %v", err)
	}
	if application.Email != "hello@nordicdeals.example" {
		t.Fatalf("expected lowercased email, got %q", application.Email)
	}
	if application.Status != constants.AffiliateApplicationStatusPending {
		t.Fatalf("expected pending status, got %q", application.Status)
	}

	if _, err := svc.SubmitApplication(AffiliateApplicationInput{
		Name:  "Nordic Deals Blog",
		Email: "hello@nordicdeals.example",
	}); !errors.Is(err, ErrApplicationPendingExists) {
		t.Fatalf("expected ErrApplicationPendingExists, got %v", err)
	}
}

func TestSubmitApplicationRequiresNameAndEmail(t *testing.T) {
	svc, _ := setupAffiliateServiceTest(t)

	if _, err := svc.SubmitApplication(AffiliateApplicationInput{Email: "only@email.example"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing name, got %v", err)
	}
	if _, err := svc.SubmitApplication(AffiliateApplicationInput{Name: "only name"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing email, got %v", err)
	}
}

func TestApproveApplicationGeneratesCode(t *testing.T) {
	svc, db := setupAffiliateServiceTest(t)
	application := createTestApplication(t, db, "apply@techreview.example")

	affiliate, err := svc.ApproveApplication(ApproveApplicationInput{
		ApplicationID: application.ID,
		ReviewedBy:    "admin",
	})
	if err != nil {
		t.Fatalf("approve application failed: %v", err)
	}
	if !affiliateCodePattern.MatchString(affiliate.AffiliateCode) {
		t.Fatalf("generated code %q does not match pattern", affiliate.AffiliateCode)
	}
	if affiliate.Status != constants.AffiliateStatusActive {
		t.Fatalf("expected active affiliate, got %q", affiliate.Status)
	}
	if !affiliate.Balance.Decimal.IsZero() {
		t.Fatalf("expected zero opening balance, got %s", affiliate.Balance.String())
	}

	var reloaded models.AffiliateApplication
	if err := db.First(&reloaded, application.ID).Error; err != nil {
		t.Fatalf("reload application failed: %v", err)
	}
	if reloaded.Status != constants.AffiliateApplicationStatusApproved {
		t.Fatalf("expected approved application, got %q", reloaded.Status)
	}
	if reloaded.AffiliateID == nil || *reloaded.AffiliateID != affiliate.ID {
		t.Fatalf("expected application linked to affiliate %d, got %+v", affiliate.ID, reloaded.AffiliateID)
	}
	if reloaded.ReviewedBy != "admin" || reloaded.ReviewedAt == nil {
		t.Fatalf("expected review metadata, got reviewer=%q reviewed_at=%v", reloaded.ReviewedBy, reloaded.ReviewedAt)
	}
}

func TestApproveApplicationCodeOverride(t *testing.T) {
	svc, db := setupAffiliateServiceTest(t)
	application := createTestApplication(t, db, "apply@override.example")

	rate := 20.0
	affiliate, err := svc.ApproveApplication(ApproveApplicationInput{
		ApplicationID:  application.ID,
		ReviewedBy:     "admin",
		CodeOverride:   " partner-01 ",
		CommissionRate: &rate,
	})
	if err != nil {
		t.Fatalf("approve application failed: %v", err)
	}
	if affiliate.AffiliateCode != "PARTNER-01" {
		t.Fatalf("expected normalized override code PARTNER-01, got %q", affiliate.AffiliateCode)
	}
	if affiliate.CommissionRate == nil || *affiliate.CommissionRate != 20 {
		t.Fatalf("expected commission rate override 20, got %+v", affiliate.CommissionRate)
	}
}

func TestApproveApplicationCodeTaken(t *testing.T) {
	svc, db := setupAffiliateServiceTest(t)
	createTestAffiliate(t, db, "TAKEN-001", constants.AffiliateStatusActive)
	application := createTestApplication(t, db, "apply@taken.example")

	_, err := svc.ApproveApplication(ApproveApplicationInput{
		ApplicationID: application.ID,
		ReviewedBy:    "admin",
		CodeOverride:  "TAKEN-001",
	})
	if !errors.Is(err, ErrAffiliateCodeTaken) {
		t.Fatalf("expected ErrAffiliateCodeTaken, got %v", err)
	}
}

func TestApproveApplicationInvalidOverride(t *testing.T) {
	svc, db := setupAffiliateServiceTest(t)
	application := createTestApplication(t, db, "apply@badcode.example")

	_, err := svc.ApproveApplication(ApproveApplicationInput{
		ApplicationID: application.ID,
		ReviewedBy:    "admin",
		CodeOverride:  "x!",
	})
	if !errors.Is(err, ErrAffiliateCodeInvalid) {
		t.Fatalf("expected ErrAffiliateCodeInvalid, got %v", err)
	}
}

func TestApproveApplicationAlreadyReviewed(t *testing.T) {
	svc, db := setupAffiliateServiceTest(t)
	application := createTestApplication(t, db, "apply@twice.example")

	if _, err := svc.ApproveApplication(ApproveApplicationInput{ApplicationID: application.ID, ReviewedBy: "admin"}); err != nil {
		t.Fatalf("first approve failed: %v", err)
	}
	if _, err := svc.ApproveApplication(ApproveApplicationInput{ApplicationID: application.ID, ReviewedBy: "admin"}); !errors.Is(err, ErrApplicationReviewed) {
		t.Fatalf("expected ErrApplicationReviewed, got %v", err)
	}
}

func TestRejectApplication(t *testing.T) {
	svc, db := setupAffiliateServiceTest(t)
	application := createTestApplication(t, db, "apply@reject.example")

	rejected, err := svc.RejectApplication(application.ID, "admin", "no traffic data")
	if err != nil {
		t.Fatalf("reject application failed: %v", err)
	}
	if rejected.Status != constants.AffiliateApplicationStatusRejected {
		t.Fatalf("expected rejected status, got %q", rejected.Status)
	}
	if rejected.RejectReason != "no traffic data" || rejected.ReviewedBy != "admin" {
		t.Fatalf("unexpected review metadata: %+v", rejected)
	}

	if _, err := svc.RejectApplication(application.ID, "admin", "again"); !errors.Is(err, ErrApplicationReviewed) {
		t.Fatalf("expected ErrApplicationReviewed on second reject, got %v", err)
	}
}

func TestUpdateAffiliateStatus(t *testing.T) {
	svc, db := setupAffiliateServiceTest(t)
	affiliate := createTestAffiliate(t, db, "STATUS-001", constants.AffiliateStatusActive)

	disabled, err := svc.UpdateAffiliateStatus(affiliate.ID, constants.AffiliateStatusDisabled)
	if err != nil {
		t.Fatalf("disable affiliate failed: %v", err)
	}
	if disabled.Status != constants.AffiliateStatusDisabled {
		t.Fatalf("expected disabled status, got %q", disabled.Status)
	}

	if _, err := svc.UpdateAffiliateStatus(affiliate.ID, "archived"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unsupported status, got %v", err)
	}
}

func TestUpdateAffiliateOverrides(t *testing.T) {
	svc, db := setupAffiliateServiceTest(t)
	affiliate := createTestAffiliate(t, db, "UPDATE-001", constants.AffiliateStatusActive)

	rate := 25.0
	discount := 12.5
	updated, err := svc.UpdateAffiliate(affiliate.ID, AffiliateUpdateInput{
		CommissionRate:   &rate,
		CheckoutDiscount: &discount,
	})
	if err != nil {
		t.Fatalf("update affiliate failed: %v", err)
	}
	if updated.CommissionRate == nil || *updated.CommissionRate != 25 {
		t.Fatalf("expected commission rate override 25, got %+v", updated.CommissionRate)
	}

	cleared, err := svc.UpdateAffiliate(affiliate.ID, AffiliateUpdateInput{ClearOverrides: true})
	if err != nil {
		t.Fatalf("clear overrides failed: %v", err)
	}
	if cleared.CommissionRate != nil || cleared.CheckoutDiscount != nil {
		t.Fatalf("expected overrides cleared, got %+v / %+v", cleared.CommissionRate, cleared.CheckoutDiscount)
	}

	badRate := 120.0
	if _, err := svc.UpdateAffiliate(affiliate.ID, AffiliateUpdateInput{CommissionRate: &badRate}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for rate above 100, got %v", err)
	}
}

func TestResolveActiveByCode(t *testing.T) {
	svc, db := setupAffiliateServiceTest(t)
	active := createTestAffiliate(t, db, "RESOLVE-001", constants.AffiliateStatusActive)
	createTestAffiliate(t, db, "RESOLVE-002", constants.AffiliateStatusDisabled)

	resolved, err := svc.ResolveActiveByCode("  resolve-001 ")
	if err != nil {
		t.Fatalf("resolve active code failed: %v", err)
	}
	if resolved.ID != active.ID {
		t.Fatalf("expected affiliate %d, got %d", active.ID, resolved.ID)
	}

	if _, err := svc.ResolveActiveByCode("RESOLVE-002"); !errors.Is(err, ErrAffiliateDisabled) {
		t.Fatalf("expected ErrAffiliateDisabled, got %v", err)
	}
	if _, err := svc.ResolveActiveByCode("RESOLVE-404"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.ResolveActiveByCode("   "); !errors.Is(err, ErrAffiliateCodeInvalid) {
		t.Fatalf("expected ErrAffiliateCodeInvalid for blank code, got %v", err)
	}
}

func TestEffectiveCommissionRate(t *testing.T) {
	svc, db := setupAffiliateServiceTest(t)

	plain := createTestAffiliate(t, db, "RATE-001", constants.AffiliateStatusActive)
	rate, err := svc.EffectiveCommissionRate(&plain)
	if err != nil {
		t.Fatalf("resolve default rate failed: %v", err)
	}
	if !rate.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("expected default rate 15, got %s", rate.String())
	}

	override := 20.0
	boosted := createTestAffiliate(t, db, "RATE-002", constants.AffiliateStatusActive)
	boosted.CommissionRate = &override
	rate, err = svc.EffectiveCommissionRate(&boosted)
	if err != nil {
		t.Fatalf("resolve override rate failed: %v", err)
	}
	if !rate.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected override rate 20, got %s", rate.String())
	}

	zero := 0.0
	boosted.CommissionRate = &zero
	rate, err = svc.EffectiveCommissionRate(&boosted)
	if err != nil {
		t.Fatalf("resolve zero override failed: %v", err)
	}
	if !rate.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("expected fallback to default for zero override, got %s", rate.String())
	}
}

func TestGenerateAffiliateCodePrefix(t *testing.T) {
	cases := []struct {
		name   string
		prefix string
	}{
		{"Nordic Deals Blog", "NORDICDE"},
		{"tech", "TECH"},
		{"数字商店", "AFF"},
		{"  ", "AFF"},
	}
	for _, tc := range cases {
		if got := affiliateCodePrefix(tc.name); got != tc.prefix {
			t.Fatalf("prefix of %q: want %q got %q", tc.name, tc.prefix, got)
		}
	}

	code, err := generateAffiliateCode("Nordic Deals Blog")
	if err != nil {
		t.Fatalf("generate code failed: %v", err)
	}
	if !affiliateCodePattern.MatchString(code) {
		t.Fatalf("generated code %q does not match pattern", code)
	}
}

func setupAffiliateServiceTest(t *testing.T) (*AffiliateService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:affiliate_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Affiliate{}, &models.AffiliateApplication{}, &models.AffiliateClick{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	settingSvc := NewSettingService(newMockSettingRepo())
	return NewAffiliateService(repository.NewAffiliateRepository(db), settingSvc), db
}

func createTestAffiliate(t *testing.T, db *gorm.DB, code, status string) models.Affiliate {
	t.Helper()

	row := models.Affiliate{
		Name:          "tester " + code,
		Email:         fmt.Sprintf("%s@affiliate.example", code),
		AffiliateCode: code,
		Status:        status,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create affiliate failed: %v", err)
	}
	return row
}

func createTestApplication(t *testing.T, db *gorm.DB, email string) models.AffiliateApplication {
	t.Helper()

	row := models.AffiliateApplication{
		Name:             "Tech Review SE",
		Email:            email,
		Website:          "https://techreview.example",
		PromotionChannel: "review site",
		Status:           constants.AffiliateApplicationStatusPending,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create application failed: %v", err)
	}
	return row
}

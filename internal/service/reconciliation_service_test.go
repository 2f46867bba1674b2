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

func TestReconcileAffiliateClean(t *testing.T) {
	svc, db := setupReconciliationServiceTest(t)
	affiliate := createReconciliationTestAffiliate(t, db, "RECON-01", 1, 1, "144.12", "100.00", "44.12")
	createReconciliationTestClick(t, db, affiliate, "recon-click-1")
	createReconciliationTestProcessedOrder(t, db, affiliate, "FX-R-1001", "144.12")
	createReconciliationTestPayout(t, db, affiliate, "recon-payout-1", "100.00")

	report, err := svc.ReconcileAffiliate(affiliate.ID)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if !report.Clean {
		t.Fatalf("expected clean report, got %+v", report)
	}
	for name, field := range map[string]ReconciliationField{
		"clicks":         report.Clicks,
		"conversions":    report.Conversions,
		"total_earnings": report.TotalEarnings,
		"total_paid":     report.TotalPaid,
		"balance":        report.Balance,
	} {
		if !field.Match {
			t.Fatalf("field %s mismatch: recorded=%s recomputed=%s", name, field.Recorded, field.Recomputed)
		}
	}
	if len(report.UnprocessedOrders) != 0 {
		t.Fatalf("expected no unprocessed orders, got %v", report.UnprocessedOrders)
	}
}

func TestReconcileAffiliateDetectsDrift(t *testing.T) {
	svc, db := setupReconciliationServiceTest(t)
	affiliate := createReconciliationTestAffiliate(t, db, "RECON-02", 5, 0, "0.00", "0.00", "0.00")

	report, err := svc.ReconcileAffiliate(affiliate.ID)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if report.Clean {
		t.Fatalf("expected dirty report for click drift")
	}
	if report.Clicks.Match {
		t.Fatalf("expected clicks mismatch: recorded=%s recomputed=%s", report.Clicks.Recorded, report.Clicks.Recomputed)
	}
	if report.Clicks.Recorded != "5" || report.Clicks.Recomputed != "0" {
		t.Fatalf("unexpected click figures: %+v", report.Clicks)
	}
}

func TestReconcileAffiliateFlagsUnprocessedOrders(t *testing.T) {
	svc, db := setupReconciliationServiceTest(t)
	affiliate := createReconciliationTestAffiliate(t, db, "RECON-03", 0, 0, "0.00", "0.00", "0.00")

	now := time.Now()
	order := models.Order{
		OrderNo:       "FX-R-2001",
		Status:        constants.OrderStatusCompleted,
		Currency:      constants.SiteCurrencyDefault,
		TotalAmount:   models.NewMoneyFromDecimal(decimal.NewFromInt(800)),
		AffiliateCode: affiliate.AffiliateCode,
		AffiliateID:   &affiliate.ID,
		CompletedAt:   &now,
		CreatedAt:     now,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	report, err := svc.ReconcileAffiliate(affiliate.ID)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if report.Clean {
		t.Fatalf("expected dirty report for unprocessed order")
	}
	if len(report.UnprocessedOrders) != 1 || report.UnprocessedOrders[0] != "FX-R-2001" {
		t.Fatalf("expected FX-R-2001 flagged, got %v", report.UnprocessedOrders)
	}
}

func TestReconcileAffiliateNotFound(t *testing.T) {
	svc, _ := setupReconciliationServiceTest(t)

	if _, err := svc.ReconcileAffiliate(9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReconcileAll(t *testing.T) {
	svc, db := setupReconciliationServiceTest(t)
	createReconciliationTestAffiliate(t, db, "RECON-04", 0, 0, "0.00", "0.00", "0.00")
	createReconciliationTestAffiliate(t, db, "RECON-05", 3, 0, "0.00", "0.00", "0.00")

	reports, err := svc.ReconcileAll()
	if err != nil {
		t.Fatalf("reconcile all failed: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	dirty := 0
	for _, report := range reports {
		if !report.Clean {
			dirty++
		}
	}
	if dirty != 1 {
		t.Fatalf("expected exactly 1 dirty report, got %d", dirty)
	}
}

func setupReconciliationServiceTest(t *testing.T) (*ReconciliationService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:reconciliation_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Affiliate{}, &models.AffiliateClick{}, &models.Order{}, &models.PayoutRecord{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewReconciliationService(
		repository.NewAffiliateRepository(db),
		repository.NewOrderRepository(db),
		repository.NewPayoutRepository(db),
	), db
}

func createReconciliationTestAffiliate(t *testing.T, db *gorm.DB, code string, clicks, conversions int64, earned, paid, balance string) models.Affiliate {
	t.Helper()

	row := models.Affiliate{
		Name:          "recon tester " + code,
		Email:         fmt.Sprintf("%s@affiliate.example", code),
		AffiliateCode: code,
		Status:        constants.AffiliateStatusActive,
		Clicks:        clicks,
		Conversions:   conversions,
		TotalEarnings: models.NewMoneyFromDecimal(decimal.RequireFromString(earned)),
		TotalPaid:     models.NewMoneyFromDecimal(decimal.RequireFromString(paid)),
		Balance:       models.NewMoneyFromDecimal(decimal.RequireFromString(balance)),
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create affiliate failed: %v", err)
	}
	return row
}

func createReconciliationTestClick(t *testing.T, db *gorm.DB, affiliate models.Affiliate, clickID string) {
	t.Helper()

	row := models.AffiliateClick{
		ClickID:       clickID,
		AffiliateID:   affiliate.ID,
		AffiliateCode: affiliate.AffiliateCode,
		VisitorKey:    "recon-visitor",
		CreatedAt:     time.Now(),
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create click failed: %v", err)
	}
}

func createReconciliationTestProcessedOrder(t *testing.T, db *gorm.DB, affiliate models.Affiliate, orderNo, commission string) {
	t.Helper()

	now := time.Now()
	money := models.NewMoneyFromDecimal(decimal.RequireFromString(commission))
	row := models.Order{
		OrderNo:             orderNo,
		Status:              constants.OrderStatusCompleted,
		Currency:            constants.SiteCurrencyDefault,
		TotalAmount:         models.NewMoneyFromDecimal(decimal.NewFromInt(1250)),
		ShippingAmount:      models.NewMoneyFromDecimal(decimal.NewFromInt(49)),
		AffiliateCode:       affiliate.AffiliateCode,
		AffiliateID:         &affiliate.ID,
		AffiliateCommission: &money,
		ConversionProcessed: true,
		ConversionAt:        &now,
		CompletedAt:         &now,
		CreatedAt:           now,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create processed order failed: %v", err)
	}
}

func createReconciliationTestPayout(t *testing.T, db *gorm.DB, affiliate models.Affiliate, payoutNo, amount string) {
	t.Helper()

	row := models.PayoutRecord{
		PayoutNo:      payoutNo,
		AffiliateID:   affiliate.ID,
		Amount:        models.NewMoneyFromDecimal(decimal.RequireFromString(amount)),
		BalanceAfter:  models.NewMoneyFromDecimal(decimal.Zero),
		InvoiceNumber: "INV-RECON-1",
		ProcessedBy:   "admin",
		Status:        constants.PayoutStatusCompleted,
		SettledAt:     time.Now(),
		CreatedAt:     time.Now(),
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create payout failed: %v", err)
	}
}

package service

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/repository"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestProcessPayoutSettlesBalance(t *testing.T) {
	svc, db := setupPayoutServiceTest(t)
	affiliate := createPayoutTestAffiliate(t, db, "PAY-001", 500)

	record, err := svc.ProcessPayout(PayoutInput{
		AffiliateID:   affiliate.ID,
		Amount:        decimal.NewFromInt(200),
		InvoiceNumber: "INV-2026-001",
		InvoiceURL:    "https://invoices.example/INV-2026-001.pdf",
		Notes:         "august settlement",
		ProcessedBy:   "admin",
	})
	if err != nil {
		t.Fatalf("process payout failed: %v", err)
	}
	if record.PayoutNo == "" {
		t.Fatalf("expected payout no assigned")
	}
	if record.Status != constants.PayoutStatusCompleted {
		t.Fatalf("expected completed status, got %q", record.Status)
	}
	if record.BalanceAfter.String() != "300.00" {
		t.Fatalf("expected balance after 300.00, got %s", record.BalanceAfter.String())
	}
	if record.SettledAt.IsZero() {
		t.Fatalf("expected settled_at set")
	}

	var reloaded models.Affiliate
	if err := db.First(&reloaded, affiliate.ID).Error; err != nil {
		t.Fatalf("reload affiliate failed: %v", err)
	}
	if reloaded.TotalPaid.String() != "200.00" || reloaded.Balance.String() != "300.00" {
		t.Fatalf("unexpected ledger: paid=%s balance=%s", reloaded.TotalPaid.String(), reloaded.Balance.String())
	}
}

func TestProcessPayoutExactBalance(t *testing.T) {
	svc, db := setupPayoutServiceTest(t)
	affiliate := createPayoutTestAffiliate(t, db, "PAY-002", 144)

	record, err := svc.ProcessPayout(PayoutInput{
		AffiliateID:   affiliate.ID,
		Amount:        decimal.NewFromInt(144),
		InvoiceNumber: "INV-2026-002",
		ProcessedBy:   "admin",
	})
	if err != nil {
		t.Fatalf("process payout failed: %v", err)
	}
	if !record.BalanceAfter.Decimal.IsZero() {
		t.Fatalf("expected zero balance after full drain, got %s", record.BalanceAfter.String())
	}
}

func TestProcessPayoutInsufficientBalance(t *testing.T) {
	svc, db := setupPayoutServiceTest(t)
	affiliate := createPayoutTestAffiliate(t, db, "PAY-003", 100)

	_, err := svc.ProcessPayout(PayoutInput{
		AffiliateID:   affiliate.ID,
		Amount:        decimal.NewFromFloat(100.01),
		InvoiceNumber: "INV-2026-003",
		ProcessedBy:   "admin",
	})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// 拒绝打款不得留下任何记录或余额变化
	var count int64
	if err := db.Model(&models.PayoutRecord{}).Where("affiliate_id = ?", affiliate.ID).Count(&count).Error; err != nil {
		t.Fatalf("count payouts failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no payout records, got %d", count)
	}
	var reloaded models.Affiliate
	if err := db.First(&reloaded, affiliate.ID).Error; err != nil {
		t.Fatalf("reload affiliate failed: %v", err)
	}
	if reloaded.Balance.String() != "100.00" {
		t.Fatalf("expected balance unchanged, got %s", reloaded.Balance.String())
	}
}

func TestProcessPayoutRejectInvalidAmount(t *testing.T) {
	svc, db := setupPayoutServiceTest(t)
	affiliate := createPayoutTestAffiliate(t, db, "PAY-004", 100)

	if _, err := svc.ProcessPayout(PayoutInput{
		AffiliateID:   affiliate.ID,
		Amount:        decimal.Zero,
		InvoiceNumber: "INV-2026-004",
		ProcessedBy:   "admin",
	}); !errors.Is(err, ErrPayoutAmountInvalid) {
		t.Fatalf("expected ErrPayoutAmountInvalid for zero amount, got %v", err)
	}
	if _, err := svc.ProcessPayout(PayoutInput{
		AffiliateID:   affiliate.ID,
		Amount:        decimal.NewFromInt(-10),
		InvoiceNumber: "INV-2026-004",
		ProcessedBy:   "admin",
	}); !errors.Is(err, ErrPayoutAmountInvalid) {
		t.Fatalf("expected ErrPayoutAmountInvalid for negative amount, got %v", err)
	}
}

func TestProcessPayoutRejectInvalidInvoiceNumber(t *testing.T) {
	svc, db := setupPayoutServiceTest(t)
	affiliate := createPayoutTestAffiliate(t, db, "PAY-005", 100)

	if _, err := svc.ProcessPayout(PayoutInput{
		AffiliateID:   affiliate.ID,
		Amount:        decimal.NewFromInt(10),
		InvoiceNumber: "ab",
		ProcessedBy:   "admin",
	}); !errors.Is(err, ErrInvoiceNumberInvalid) {
		t.Fatalf("expected ErrInvoiceNumberInvalid for short number, got %v", err)
	}
	if _, err := svc.ProcessPayout(PayoutInput{
		AffiliateID:   affiliate.ID,
		Amount:        decimal.NewFromInt(10),
		InvoiceNumber: strings.Repeat("9", 51),
		ProcessedBy:   "admin",
	}); !errors.Is(err, ErrInvoiceNumberInvalid) {
		t.Fatalf("expected ErrInvoiceNumberInvalid for long number, got %v", err)
	}
}

func TestProcessPayoutUnknownAffiliate(t *testing.T) {
	svc, _ := setupPayoutServiceTest(t)

	if _, err := svc.ProcessPayout(PayoutInput{
		AffiliateID:   9999,
		Amount:        decimal.NewFromInt(10),
		InvoiceNumber: "INV-2026-404",
		ProcessedBy:   "admin",
	}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListPayoutsByAffiliate(t *testing.T) {
	svc, db := setupPayoutServiceTest(t)
	first := createPayoutTestAffiliate(t, db, "PAY-006", 500)
	second := createPayoutTestAffiliate(t, db, "PAY-007", 500)

	for i, affiliate := range []models.Affiliate{first, first, second} {
		if _, err := svc.ProcessPayout(PayoutInput{
			AffiliateID:   affiliate.ID,
			Amount:        decimal.NewFromInt(50),
			InvoiceNumber: fmt.Sprintf("INV-LIST-%03d", i),
			ProcessedBy:   "admin",
		}); err != nil {
			t.Fatalf("seed payout %d failed: %v", i, err)
		}
	}

	rows, total, err := svc.ListPayouts(repository.PayoutListFilter{AffiliateID: first.ID, Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list payouts failed: %v", err)
	}
	if total != 2 || len(rows) != 2 {
		t.Fatalf("expected 2 payouts for affiliate, got total=%d rows=%d", total, len(rows))
	}

	if _, err := svc.GetPayout(99999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown payout, got %v", err)
	}
}

func setupPayoutServiceTest(t *testing.T) (*PayoutService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:payout_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Affiliate{}, &models.PayoutRecord{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewPayoutService(repository.NewAffiliateRepository(db), repository.NewPayoutRepository(db)), db
}

func createPayoutTestAffiliate(t *testing.T, db *gorm.DB, code string, balance int64) models.Affiliate {
	t.Helper()

	row := models.Affiliate{
		Name:          "payout tester " + code,
		Email:         fmt.Sprintf("%s@affiliate.example", code),
		AffiliateCode: code,
		Status:        constants.AffiliateStatusActive,
		TotalEarnings: models.NewMoneyFromDecimal(decimal.NewFromInt(balance)),
		Balance:       models.NewMoneyFromDecimal(decimal.NewFromInt(balance)),
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create affiliate failed: %v", err)
	}
	return row
}

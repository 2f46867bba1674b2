//go:build integration
// +build integration

package repository

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresIntegrationDB 初始化 PostgreSQL 集成测试数据库。
func setupPostgresIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("skip postgres integration test: TEST_POSTGRES_DSN is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open postgres failed: %v", err)
	}

	cleanupModels := []interface{}{
		&models.PayoutRecord{},
		&models.Order{},
		&models.AffiliateClick{},
		&models.AffiliateApplication{},
		&models.Affiliate{},
	}
	_ = db.Migrator().DropTable(cleanupModels...)

	if err := db.AutoMigrate(
		&models.Affiliate{},
		&models.AffiliateApplication{},
		&models.AffiliateClick{},
		&models.Order{},
		&models.PayoutRecord{},
	); err != nil {
		t.Fatalf("migrate postgres models failed: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Migrator().DropTable(cleanupModels...)
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func TestPostgresAffiliateAggregates(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	now := time.Now().UTC().Truncate(time.Second)

	affiliateRepo := NewAffiliateRepository(db)
	affiliate := &models.Affiliate{
		Name:          "PG Partner",
		Email:         "pg@partner.example",
		AffiliateCode: "PGTEST-001",
		Status:        constants.AffiliateStatusActive,
	}
	if err := affiliateRepo.Create(affiliate); err != nil {
		t.Fatalf("create affiliate failed: %v", err)
	}

	for i, clickID := range []string{"pg-click-1", "pg-click-2"} {
		click := &models.AffiliateClick{
			ClickID:       clickID,
			AffiliateID:   affiliate.ID,
			AffiliateCode: affiliate.AffiliateCode,
			VisitorKey:    "pg-visitor",
			Campaign:      "pg-campaign",
			CreatedAt:     now.Add(time.Duration(i) * time.Minute),
		}
		if err := affiliateRepo.CreateClick(click); err != nil {
			t.Fatalf("create click failed: %v", err)
		}
	}

	clickCount, err := affiliateRepo.CountClicksByAffiliate(affiliate.ID)
	if err != nil {
		t.Fatalf("count clicks failed: %v", err)
	}
	if clickCount != 2 {
		t.Fatalf("click count want 2 got %d", clickCount)
	}

	orderRepo := NewOrderRepository(db)
	commission := models.NewMoneyFromDecimal(decimal.NewFromFloat(144.12))
	completedAt := now
	conversionAt := now
	order := &models.Order{
		OrderNo:             "PG-ORDER-001",
		Status:              constants.OrderStatusCompleted,
		Currency:            "SEK",
		TotalAmount:         models.NewMoneyFromDecimal(decimal.NewFromInt(1250)),
		ShippingAmount:      models.NewMoneyFromDecimal(decimal.NewFromInt(49)),
		AffiliateCode:       affiliate.AffiliateCode,
		AffiliateID:         &affiliate.ID,
		AffiliateCommission: &commission,
		ConversionProcessed: true,
		ConversionAt:        &conversionAt,
		CompletedAt:         &completedAt,
		CreatedAt:           now,
	}
	if err := orderRepo.Create(order); err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	conversions, err := orderRepo.CountProcessedConversionsByAffiliate(affiliate.ID)
	if err != nil {
		t.Fatalf("count conversions failed: %v", err)
	}
	if conversions != 1 {
		t.Fatalf("conversion count want 1 got %d", conversions)
	}

	commissionSum, err := orderRepo.SumCommissionByAffiliate(affiliate.ID)
	if err != nil {
		t.Fatalf("sum commission failed: %v", err)
	}
	if !commissionSum.Equal(decimal.NewFromFloat(144.12)) {
		t.Fatalf("commission sum want 144.12 got %s", commissionSum.String())
	}

	payoutRepo := NewPayoutRepository(db)
	payout := &models.PayoutRecord{
		PayoutNo:      "pg-payout-1",
		AffiliateID:   affiliate.ID,
		Amount:        models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
		BalanceAfter:  models.NewMoneyFromDecimal(decimal.NewFromFloat(44.12)),
		InvoiceNumber: "INV-PG-1",
		ProcessedBy:   "admin",
		Status:        constants.PayoutStatusCompleted,
		SettledAt:     now,
	}
	if err := payoutRepo.Create(payout); err != nil {
		t.Fatalf("create payout failed: %v", err)
	}

	paidSum, err := payoutRepo.SumAmountByAffiliate(affiliate.ID)
	if err != nil {
		t.Fatalf("sum payouts failed: %v", err)
	}
	if !paidSum.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("paid sum want 100 got %s", paidSum.String())
	}
}

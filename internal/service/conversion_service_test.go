package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fenxiao-next/internal/cache"
	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/repository"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestRegisterOrderSnapshot(t *testing.T) {
	svc, db := setupConversionServiceTest(t)
	affiliate := createTestAffiliate(t, db, "REG-001", constants.AffiliateStatusActive)

	order, err := svc.RegisterOrder(context.Background(), OrderSnapshotInput{
		OrderNo:       "FX-1001",
		Status:        constants.OrderStatusPaid,
		Total:         decimal.NewFromInt(1250),
		Shipping:      decimal.NewFromInt(49),
		AffiliateCode: "reg-001",
	})
	if err != nil {
		t.Fatalf("register order failed: %v", err)
	}
	if order.AffiliateCode != "REG-001" {
		t.Fatalf("expected normalized code REG-001, got %q", order.AffiliateCode)
	}
	if order.AffiliateID == nil || *order.AffiliateID != affiliate.ID {
		t.Fatalf("expected affiliate id %d, got %+v", affiliate.ID, order.AffiliateID)
	}
	if order.Currency != constants.SiteCurrencyDefault {
		t.Fatalf("expected default currency, got %q", order.Currency)
	}

	// 重复登记刷新金额与状态
	refreshed, err := svc.RegisterOrder(context.Background(), OrderSnapshotInput{
		OrderNo:       "FX-1001",
		Status:        constants.OrderStatusCompleted,
		Total:         decimal.NewFromInt(1300),
		Shipping:      decimal.NewFromInt(49),
		AffiliateCode: "REG-001",
	})
	if err != nil {
		t.Fatalf("refresh order failed: %v", err)
	}
	if refreshed.Status != constants.OrderStatusCompleted {
		t.Fatalf("expected status completed, got %q", refreshed.Status)
	}
	if !refreshed.TotalAmount.Decimal.Equal(decimal.NewFromInt(1300)) {
		t.Fatalf("expected refreshed total 1300, got %s", refreshed.TotalAmount.String())
	}
}

func TestRegisterOrderAttributionFallback(t *testing.T) {
	svc, db := setupConversionServiceTest(t)
	affiliate := createTestAffiliate(t, db, "FALLBACK-01", constants.AffiliateStatusActive)

	ctx := context.Background()
	if _, err := svc.attributionSvc.Capture(ctx, CaptureInput{
		VisitorKey: "visitor-fallback",
		Code:       affiliate.AffiliateCode,
	}); err != nil {
		t.Fatalf("capture attribution failed: %v", err)
	}

	order, err := svc.RegisterOrder(ctx, OrderSnapshotInput{
		OrderNo:    "FX-1002",
		Total:      decimal.NewFromInt(500),
		VisitorKey: "visitor-fallback",
	})
	if err != nil {
		t.Fatalf("register order failed: %v", err)
	}
	if order.AffiliateCode != affiliate.AffiliateCode {
		t.Fatalf("expected attribution fallback code %q, got %q", affiliate.AffiliateCode, order.AffiliateCode)
	}
	if order.AffiliateID == nil || *order.AffiliateID != affiliate.ID {
		t.Fatalf("expected attribution fallback affiliate %d, got %+v", affiliate.ID, order.AffiliateID)
	}
}

func TestRegisterOrderFrozenAfterProcessed(t *testing.T) {
	svc, db := setupConversionServiceTest(t)
	affiliate := createTestAffiliate(t, db, "FROZEN-01", constants.AffiliateStatusActive)
	createConversionTestOrder(t, db, "FX-1003", constants.OrderStatusCompleted, affiliate.AffiliateCode, &affiliate.ID)

	if _, err := svc.ProcessConversion("FX-1003"); err != nil {
		t.Fatalf("process conversion failed: %v", err)
	}

	refreshed, err := svc.RegisterOrder(context.Background(), OrderSnapshotInput{
		OrderNo:       "FX-1003",
		Status:        constants.OrderStatusCompleted,
		Total:         decimal.NewFromInt(9999),
		AffiliateCode: "OTHER-01",
	})
	if err != nil {
		t.Fatalf("refresh processed order failed: %v", err)
	}
	if !refreshed.TotalAmount.Decimal.Equal(decimal.NewFromInt(1250)) {
		t.Fatalf("processed order amounts must stay frozen, got total %s", refreshed.TotalAmount.String())
	}
	if refreshed.AffiliateCode != affiliate.AffiliateCode {
		t.Fatalf("processed order attribution must stay frozen, got %q", refreshed.AffiliateCode)
	}
}

func TestRegisterOrderRejectInvalidInput(t *testing.T) {
	svc, _ := setupConversionServiceTest(t)

	if _, err := svc.RegisterOrder(context.Background(), OrderSnapshotInput{Total: decimal.NewFromInt(100)}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing order no, got %v", err)
	}
	if _, err := svc.RegisterOrder(context.Background(), OrderSnapshotInput{OrderNo: "FX-X", Total: decimal.Zero}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for non-positive total, got %v", err)
	}
}

func TestProcessConversionCreditsCommission(t *testing.T) {
	svc, db := setupConversionServiceTest(t)
	affiliate := createTestAffiliate(t, db, "CONV-001", constants.AffiliateStatusActive)
	createConversionTestOrder(t, db, "FX-2001", constants.OrderStatusCompleted, affiliate.AffiliateCode, &affiliate.ID)

	result, err := svc.ProcessConversion("FX-2001")
	if err != nil {
		t.Fatalf("process conversion failed: %v", err)
	}
	if result.Outcome != constants.ConversionOutcomeProcessed {
		t.Fatalf("expected processed outcome, got %q", result.Outcome)
	}
	if result.Commission == nil || result.Commission.String() != "144.12" {
		t.Fatalf("expected commission 144.12, got %+v", result.Commission)
	}

	var reloaded models.Affiliate
	if err := db.First(&reloaded, affiliate.ID).Error; err != nil {
		t.Fatalf("reload affiliate failed: %v", err)
	}
	if reloaded.Conversions != 1 {
		t.Fatalf("expected 1 conversion, got %d", reloaded.Conversions)
	}
	if reloaded.TotalEarnings.String() != "144.12" || reloaded.Balance.String() != "144.12" {
		t.Fatalf("unexpected ledger: earnings=%s balance=%s", reloaded.TotalEarnings.String(), reloaded.Balance.String())
	}

	var order models.Order
	if err := db.Where("order_no = ?", "FX-2001").First(&order).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if !order.ConversionProcessed || order.ConversionAt == nil {
		t.Fatalf("expected order marked processed, got %+v", order)
	}
}

func TestProcessConversionIdempotent(t *testing.T) {
	svc, db := setupConversionServiceTest(t)
	affiliate := createTestAffiliate(t, db, "CONV-002", constants.AffiliateStatusActive)
	createConversionTestOrder(t, db, "FX-2002", constants.OrderStatusCompleted, affiliate.AffiliateCode, &affiliate.ID)

	first, err := svc.ProcessConversion("FX-2002")
	if err != nil {
		t.Fatalf("first process failed: %v", err)
	}
	second, err := svc.ProcessConversion("FX-2002")
	if err != nil {
		t.Fatalf("second process failed: %v", err)
	}
	if second.Outcome != constants.ConversionOutcomeAlreadyProcessed {
		t.Fatalf("expected already_processed outcome, got %q", second.Outcome)
	}
	if second.Commission == nil || !second.Commission.Decimal.Equal(first.Commission.Decimal) {
		t.Fatalf("replay must return original commission, got %+v", second.Commission)
	}

	var reloaded models.Affiliate
	if err := db.First(&reloaded, affiliate.ID).Error; err != nil {
		t.Fatalf("reload affiliate failed: %v", err)
	}
	if reloaded.Conversions != 1 || reloaded.Balance.String() != "144.12" {
		t.Fatalf("replay must not double-credit: conversions=%d balance=%s", reloaded.Conversions, reloaded.Balance.String())
	}
}

func TestProcessConversionUsesOverrideRate(t *testing.T) {
	svc, db := setupConversionServiceTest(t)
	override := 20.0
	affiliate := createTestAffiliate(t, db, "CONV-003", constants.AffiliateStatusActive)
	if err := db.Model(&models.Affiliate{}).Where("id = ?", affiliate.ID).Update("commission_rate", override).Error; err != nil {
		t.Fatalf("set override rate failed: %v", err)
	}
	createConversionTestOrder(t, db, "FX-2003", constants.OrderStatusCompleted, affiliate.AffiliateCode, &affiliate.ID)

	result, err := svc.ProcessConversion("FX-2003")
	if err != nil {
		t.Fatalf("process conversion failed: %v", err)
	}
	// (1250-49)/1.25 * 20% = 192.16
	if result.Commission == nil || result.Commission.String() != "192.16" {
		t.Fatalf("expected commission 192.16 at override rate, got %+v", result.Commission)
	}
}

func TestProcessConversionCanceledSkipped(t *testing.T) {
	svc, db := setupConversionServiceTest(t)
	affiliate := createTestAffiliate(t, db, "CONV-004", constants.AffiliateStatusActive)
	createConversionTestOrder(t, db, "FX-2004", constants.OrderStatusCanceled, affiliate.AffiliateCode, &affiliate.ID)

	result, err := svc.ProcessConversion("FX-2004")
	if err != nil {
		t.Fatalf("process conversion failed: %v", err)
	}
	if result.Outcome != constants.ConversionOutcomeSkippedCanceled {
		t.Fatalf("expected skipped_canceled outcome, got %q", result.Outcome)
	}

	var order models.Order
	if err := db.Where("order_no = ?", "FX-2004").First(&order).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if order.ConversionProcessed {
		t.Fatalf("canceled order must not be marked processed")
	}
}

func TestProcessConversionIneligible(t *testing.T) {
	svc, db := setupConversionServiceTest(t)

	// 无推广码
	createConversionTestOrder(t, db, "FX-2005", constants.OrderStatusCompleted, "", nil)
	result, err := svc.ProcessConversion("FX-2005")
	if err != nil {
		t.Fatalf("process conversion failed: %v", err)
	}
	if result.Outcome != constants.ConversionOutcomeIneligible {
		t.Fatalf("expected ineligible outcome, got %q", result.Outcome)
	}
	var order models.Order
	if err := db.Where("order_no = ?", "FX-2005").First(&order).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if !order.ConversionProcessed {
		t.Fatalf("ineligible order must be marked processed")
	}
	if order.AffiliateCommission != nil {
		t.Fatalf("ineligible order must not carry commission")
	}

	// 推广码指向停用伙伴
	disabled := createTestAffiliate(t, db, "CONV-006", constants.AffiliateStatusDisabled)
	createConversionTestOrder(t, db, "FX-2006", constants.OrderStatusCompleted, disabled.AffiliateCode, &disabled.ID)
	result, err = svc.ProcessConversion("FX-2006")
	if err != nil {
		t.Fatalf("process conversion failed: %v", err)
	}
	if result.Outcome != constants.ConversionOutcomeIneligible {
		t.Fatalf("expected ineligible outcome for disabled affiliate, got %q", result.Outcome)
	}
}

func TestProcessConversionRejectNonCompleted(t *testing.T) {
	svc, db := setupConversionServiceTest(t)
	affiliate := createTestAffiliate(t, db, "CONV-007", constants.AffiliateStatusActive)
	createConversionTestOrder(t, db, "FX-2007", constants.OrderStatusPendingPayment, affiliate.AffiliateCode, &affiliate.ID)

	if _, err := svc.ProcessConversion("FX-2007"); !errors.Is(err, ErrOrderStatusInvalid) {
		t.Fatalf("expected ErrOrderStatusInvalid, got %v", err)
	}
	if _, err := svc.ProcessConversion("FX-404"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown order, got %v", err)
	}
}

func TestHandleOrderCompleted(t *testing.T) {
	svc, db := setupConversionServiceTest(t)
	affiliate := createTestAffiliate(t, db, "DONE-001", constants.AffiliateStatusActive)
	createConversionTestOrder(t, db, "FX-3001", constants.OrderStatusPaid, affiliate.AffiliateCode, &affiliate.ID)

	result, err := svc.HandleOrderCompleted(context.Background(), "FX-3001")
	if err != nil {
		t.Fatalf("handle order completed failed: %v", err)
	}
	if result.Outcome != constants.ConversionOutcomeProcessed {
		t.Fatalf("expected synchronous processed outcome, got %q", result.Outcome)
	}

	var order models.Order
	if err := db.Where("order_no = ?", "FX-3001").First(&order).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if order.Status != constants.OrderStatusCompleted || order.CompletedAt == nil {
		t.Fatalf("expected order completed, got status=%q completed_at=%v", order.Status, order.CompletedAt)
	}
}

func TestHandleOrderCompletedCanceled(t *testing.T) {
	svc, db := setupConversionServiceTest(t)
	affiliate := createTestAffiliate(t, db, "DONE-002", constants.AffiliateStatusActive)
	createConversionTestOrder(t, db, "FX-3002", constants.OrderStatusCanceled, affiliate.AffiliateCode, &affiliate.ID)

	result, err := svc.HandleOrderCompleted(context.Background(), "FX-3002")
	if err != nil {
		t.Fatalf("handle order completed failed: %v", err)
	}
	if result.Outcome != constants.ConversionOutcomeSkippedCanceled {
		t.Fatalf("expected skipped_canceled outcome, got %q", result.Outcome)
	}

	if _, err := svc.HandleOrderCompleted(context.Background(), "FX-404"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown order, got %v", err)
	}
}

func setupConversionServiceTest(t *testing.T) (*ConversionService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:conversion_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Affiliate{}, &models.AffiliateClick{}, &models.Order{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	settingSvc := NewSettingService(newMockSettingRepo())
	affiliateRepo := repository.NewAffiliateRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	affiliateSvc := NewAffiliateService(affiliateRepo, settingSvc)
	attributionSvc := NewAttributionService(affiliateRepo, affiliateSvc, settingSvc, cache.NewMemoryAttributionStore(), nil)
	return NewConversionService(orderRepo, affiliateRepo, affiliateSvc, settingSvc, attributionSvc, nil), db
}

func createConversionTestOrder(t *testing.T, db *gorm.DB, orderNo, status, affiliateCode string, affiliateID *uint) models.Order {
	t.Helper()

	now := time.Now()
	row := models.Order{
		OrderNo:        orderNo,
		Status:         status,
		Currency:       constants.SiteCurrencyDefault,
		TotalAmount:    models.NewMoneyFromDecimal(decimal.NewFromInt(1250)),
		ShippingAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(49)),
		AffiliateCode:  affiliateCode,
		AffiliateID:    affiliateID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if status == constants.OrderStatusCompleted {
		row.CompletedAt = &now
	}
	if status == constants.OrderStatusCanceled {
		row.CanceledAt = &now
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return row
}

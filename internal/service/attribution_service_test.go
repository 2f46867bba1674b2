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
	"github.com/fenxiao-next/internal/queue"
	"github.com/fenxiao-next/internal/repository"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestCaptureAttribution(t *testing.T) {
	svc, _, db := setupAttributionServiceTest(t)
	affiliate := createTestAffiliate(t, db, "CAPTURE-01", constants.AffiliateStatusActive)

	ctx := context.Background()
	state, err := svc.Capture(ctx, CaptureInput{
		VisitorKey:  "visitor-capture",
		Code:        " capture-01 ",
		Campaign:    "summer",
		LandingPath: "/products/mattress",
	})
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if state.AffiliateCode != "CAPTURE-01" {
		t.Fatalf("expected normalized code, got %q", state.AffiliateCode)
	}
	if state.ClickID == "" {
		t.Fatalf("expected click id assigned")
	}
	if state.ExpiresAt <= time.Now().Unix() {
		t.Fatalf("expected future expiry, got %d", state.ExpiresAt)
	}

	// 队列关闭时点击同步落库并累加统计
	var clicks int64
	if err := db.Model(&models.AffiliateClick{}).Where("affiliate_id = ?", affiliate.ID).Count(&clicks).Error; err != nil {
		t.Fatalf("count clicks failed: %v", err)
	}
	if clicks != 1 {
		t.Fatalf("expected 1 click row, got %d", clicks)
	}
	var reloaded models.Affiliate
	if err := db.First(&reloaded, affiliate.ID).Error; err != nil {
		t.Fatalf("reload affiliate failed: %v", err)
	}
	if reloaded.Clicks != 1 {
		t.Fatalf("expected click counter 1, got %d", reloaded.Clicks)
	}
}

func TestCaptureLastRefWinsEvictsStagedDiscount(t *testing.T) {
	svc, _, db := setupAttributionServiceTest(t)
	createTestAffiliate(t, db, "FIRST-01", constants.AffiliateStatusActive)
	createTestAffiliate(t, db, "SECOND-01", constants.AffiliateStatusActive)

	ctx := context.Background()
	if _, err := svc.Capture(ctx, CaptureInput{VisitorKey: "visitor-lastref", Code: "FIRST-01"}); err != nil {
		t.Fatalf("first capture failed: %v", err)
	}
	if _, err := svc.StageDiscount(ctx, "visitor-lastref"); err != nil {
		t.Fatalf("stage discount failed: %v", err)
	}

	if _, err := svc.Capture(ctx, CaptureInput{VisitorKey: "visitor-lastref", Code: "SECOND-01"}); err != nil {
		t.Fatalf("second capture failed: %v", err)
	}

	view, err := svc.GetAttribution(ctx, "visitor-lastref")
	if err != nil {
		t.Fatalf("get attribution failed: %v", err)
	}
	if view.State == nil || view.State.AffiliateCode != "SECOND-01" {
		t.Fatalf("expected last-ref code SECOND-01, got %+v", view.State)
	}
	if view.StagedDiscount != nil {
		t.Fatalf("expected staged discount evicted on code change, got %+v", view.StagedDiscount)
	}
}

func TestCaptureSameCodeKeepsStagedDiscount(t *testing.T) {
	svc, _, db := setupAttributionServiceTest(t)
	createTestAffiliate(t, db, "KEEP-01", constants.AffiliateStatusActive)

	ctx := context.Background()
	if _, err := svc.Capture(ctx, CaptureInput{VisitorKey: "visitor-keep", Code: "KEEP-01"}); err != nil {
		t.Fatalf("first capture failed: %v", err)
	}
	if _, err := svc.StageDiscount(ctx, "visitor-keep"); err != nil {
		t.Fatalf("stage discount failed: %v", err)
	}
	if _, err := svc.Capture(ctx, CaptureInput{VisitorKey: "visitor-keep", Code: "KEEP-01"}); err != nil {
		t.Fatalf("repeat capture failed: %v", err)
	}

	view, err := svc.GetAttribution(ctx, "visitor-keep")
	if err != nil {
		t.Fatalf("get attribution failed: %v", err)
	}
	if view.StagedDiscount == nil || view.StagedDiscount.AffiliateCode != "KEEP-01" {
		t.Fatalf("expected staged discount kept on same code, got %+v", view.StagedDiscount)
	}
}

func TestCaptureRejections(t *testing.T) {
	svc, settingSvc, db := setupAttributionServiceTest(t)
	createTestAffiliate(t, db, "REJECT-01", constants.AffiliateStatusDisabled)

	ctx := context.Background()
	if _, err := svc.Capture(ctx, CaptureInput{Code: "REJECT-01"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing visitor key, got %v", err)
	}
	if _, err := svc.Capture(ctx, CaptureInput{VisitorKey: "visitor-x", Code: "REJECT-01"}); !errors.Is(err, ErrAffiliateDisabled) {
		t.Fatalf("expected ErrAffiliateDisabled, got %v", err)
	}
	if _, err := svc.Capture(ctx, CaptureInput{VisitorKey: "visitor-x", Code: "NOPE-404"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown code, got %v", err)
	}

	if _, err := settingSvc.UpdateAffiliateSetting(AffiliateSetting{
		Enabled:                 false,
		VATRate:                 0.25,
		DefaultCommissionRate:   15,
		DefaultCheckoutDiscount: 10,
		AttributionDays:         30,
	}); err != nil {
		t.Fatalf("disable program failed: %v", err)
	}
	if _, err := svc.Capture(ctx, CaptureInput{VisitorKey: "visitor-x", Code: "REJECT-01"}); !errors.Is(err, ErrAffiliateProgramDisabled) {
		t.Fatalf("expected ErrAffiliateProgramDisabled, got %v", err)
	}
}

func TestRecordClickDeduplicates(t *testing.T) {
	svc, _, db := setupAttributionServiceTest(t)
	affiliate := createTestAffiliate(t, db, "CLICK-01", constants.AffiliateStatusActive)

	payload := queue.AffiliateClickPayload{
		ClickID:       "click-dedup-1",
		AffiliateID:   affiliate.ID,
		AffiliateCode: affiliate.AffiliateCode,
		VisitorKey:    "visitor-click",
	}
	if err := svc.RecordClick(payload); err != nil {
		t.Fatalf("first record failed: %v", err)
	}
	if err := svc.RecordClick(payload); err != nil {
		t.Fatalf("replay record failed: %v", err)
	}

	var rows int64
	if err := db.Model(&models.AffiliateClick{}).Where("click_id = ?", payload.ClickID).Count(&rows).Error; err != nil {
		t.Fatalf("count clicks failed: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected single click row, got %d", rows)
	}
	var reloaded models.Affiliate
	if err := db.First(&reloaded, affiliate.ID).Error; err != nil {
		t.Fatalf("reload affiliate failed: %v", err)
	}
	if reloaded.Clicks != 1 {
		t.Fatalf("replay must not double-count clicks, got %d", reloaded.Clicks)
	}
}

func TestGetAttributionExpired(t *testing.T) {
	svc, _, _ := setupAttributionServiceTest(t)
	store := svc.store.(*cache.MemoryAttributionStore)

	past := time.Now().Add(-time.Hour)
	if err := store.SetAttribution(context.Background(), "visitor-expired", &cache.AttributionState{
		AffiliateCode: "OLD-01",
		CapturedAt:    past.Add(-24 * time.Hour).Unix(),
		ExpiresAt:     past.Unix(),
	}, time.Minute); err != nil {
		t.Fatalf("seed expired state failed: %v", err)
	}

	view, err := svc.GetAttribution(context.Background(), "visitor-expired")
	if err != nil {
		t.Fatalf("get attribution failed: %v", err)
	}
	if view.State != nil {
		t.Fatalf("expired attribution must read as empty, got %+v", view.State)
	}
}

func TestStageDiscount(t *testing.T) {
	svc, _, db := setupAttributionServiceTest(t)
	affiliate := createTestAffiliate(t, db, "STAGE-01", constants.AffiliateStatusActive)

	ctx := context.Background()
	if _, err := svc.StageDiscount(ctx, "visitor-stage"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound without attribution, got %v", err)
	}

	if _, err := svc.Capture(ctx, CaptureInput{VisitorKey: "visitor-stage", Code: affiliate.AffiliateCode}); err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	discount, err := svc.StageDiscount(ctx, "visitor-stage")
	if err != nil {
		t.Fatalf("stage discount failed: %v", err)
	}
	if discount.DiscountPercent != 10 {
		t.Fatalf("expected default checkout discount 10, got %v", discount.DiscountPercent)
	}

	// 伙伴覆盖折扣优先于全局默认
	override := 25.0
	if err := db.Model(&models.Affiliate{}).Where("id = ?", affiliate.ID).Update("checkout_discount", override).Error; err != nil {
		t.Fatalf("set override discount failed: %v", err)
	}
	discount, err = svc.StageDiscount(ctx, "visitor-stage")
	if err != nil {
		t.Fatalf("stage discount with override failed: %v", err)
	}
	if discount.DiscountPercent != 25 {
		t.Fatalf("expected override discount 25, got %v", discount.DiscountPercent)
	}
}

func setupAttributionServiceTest(t *testing.T) (*AttributionService, *SettingService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:attribution_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Affiliate{}, &models.AffiliateClick{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	settingSvc := NewSettingService(newMockSettingRepo())
	affiliateRepo := repository.NewAffiliateRepository(db)
	affiliateSvc := NewAffiliateService(affiliateRepo, settingSvc)
	svc := NewAttributionService(affiliateRepo, affiliateSvc, settingSvc, cache.NewMemoryAttributionStore(), nil)
	return svc, settingSvc, db
}

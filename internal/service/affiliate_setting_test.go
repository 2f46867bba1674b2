package service

import (
	"errors"
	"testing"

	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/models"
)

type mockSettingRepo struct {
	store map[string]models.JSON
}

func newMockSettingRepo() *mockSettingRepo {
	return &mockSettingRepo{store: make(map[string]models.JSON)}
}

func (r *mockSettingRepo) GetByKey(key string) (*models.Setting, error) {
	value, ok := r.store[key]
	if !ok {
		return nil, nil
	}
	return &models.Setting{Key: key, ValueJSON: value}, nil
}

func (r *mockSettingRepo) Upsert(key string, value models.JSON) (*models.Setting, error) {
	r.store[key] = value
	return &models.Setting{Key: key, ValueJSON: value}, nil
}

func TestGetAffiliateSettingFallback(t *testing.T) {
	svc := NewSettingService(newMockSettingRepo())

	setting, err := svc.GetAffiliateSetting()
	if err != nil {
		t.Fatalf("get affiliate setting failed: %v", err)
	}
	if !setting.Enabled {
		t.Fatalf("expected default enabled true")
	}
	if setting.VATRate != 0.25 {
		t.Fatalf("expected default vat rate 0.25, got %v", setting.VATRate)
	}
	if setting.DefaultCommissionRate != 15 {
		t.Fatalf("expected default commission rate 15, got %v", setting.DefaultCommissionRate)
	}
	if setting.DefaultCheckoutDiscount != 10 {
		t.Fatalf("expected default checkout discount 10, got %v", setting.DefaultCheckoutDiscount)
	}
	if setting.AttributionDays != 30 {
		t.Fatalf("expected default attribution days 30, got %d", setting.AttributionDays)
	}
}

func TestUpdateAffiliateSettingPersists(t *testing.T) {
	repo := newMockSettingRepo()
	svc := NewSettingService(repo)

	updated, err := svc.UpdateAffiliateSetting(AffiliateSetting{
		Enabled:                 true,
		VATRate:                 0.12,
		DefaultCommissionRate:   18.555,
		DefaultCheckoutDiscount: 5,
		AttributionDays:         14,
	})
	if err != nil {
		t.Fatalf("update affiliate setting failed: %v", err)
	}
	if updated.DefaultCommissionRate != 18.56 {
		t.Fatalf("expected commission rate rounded to 18.56, got %v", updated.DefaultCommissionRate)
	}

	saved, ok := repo.store[constants.SettingKeyAffiliateConfig]
	if !ok {
		t.Fatalf("expected affiliate setting saved")
	}
	if saved["default_commission_rate"] != 18.56 {
		t.Fatalf("expected saved commission rate 18.56, got %v", saved["default_commission_rate"])
	}

	reloaded, err := svc.GetAffiliateSetting()
	if err != nil {
		t.Fatalf("reload affiliate setting failed: %v", err)
	}
	if reloaded.VATRate != 0.12 || reloaded.AttributionDays != 14 {
		t.Fatalf("unexpected reloaded setting: %+v", reloaded)
	}
}

func TestUpdateAffiliateSettingRejectInvalid(t *testing.T) {
	svc := NewSettingService(newMockSettingRepo())

	cases := []struct {
		name    string
		setting AffiliateSetting
	}{
		{"commission rate above 100", AffiliateSetting{VATRate: 0.25, DefaultCommissionRate: 150, DefaultCheckoutDiscount: 10, AttributionDays: 30}},
		{"negative checkout discount", AffiliateSetting{VATRate: 0.25, DefaultCommissionRate: 15, DefaultCheckoutDiscount: -1, AttributionDays: 30}},
		{"vat rate above 1", AffiliateSetting{VATRate: 1.5, DefaultCommissionRate: 15, DefaultCheckoutDiscount: 10, AttributionDays: 30}},
		{"attribution days zero", AffiliateSetting{VATRate: 0.25, DefaultCommissionRate: 15, DefaultCheckoutDiscount: 10, AttributionDays: 0}},
	}
	for _, tc := range cases {
		if _, err := svc.UpdateAffiliateSetting(tc.setting); !errors.Is(err, ErrAffiliateConfigInvalid) {
			t.Fatalf("%s: expected ErrAffiliateConfigInvalid, got %v", tc.name, err)
		}
	}
}

func TestGetAffiliateSettingClampsStoredJunk(t *testing.T) {
	repo := newMockSettingRepo()
	repo.store[constants.SettingKeyAffiliateConfig] = models.JSON{
		"enabled":                   "yes",
		"vat_rate":                  4.0,
		"default_commission_rate":   500.0,
		"default_checkout_discount": -20.0,
		"attribution_days":          9000,
	}
	svc := NewSettingService(repo)

	setting, err := svc.GetAffiliateSetting()
	if err != nil {
		t.Fatalf("get affiliate setting failed: %v", err)
	}
	if !setting.Enabled {
		t.Fatalf("expected enabled parsed from string")
	}
	if setting.VATRate != 1 {
		t.Fatalf("expected vat rate clamped to 1, got %v", setting.VATRate)
	}
	if setting.DefaultCommissionRate != 100 {
		t.Fatalf("expected commission rate clamped to 100, got %v", setting.DefaultCommissionRate)
	}
	if setting.DefaultCheckoutDiscount != 0 {
		t.Fatalf("expected checkout discount clamped to 0, got %v", setting.DefaultCheckoutDiscount)
	}
	if setting.AttributionDays != 365 {
		t.Fatalf("expected attribution days clamped to 365, got %d", setting.AttributionDays)
	}
}

package service

import (
	"fmt"
	"math"

	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/models"
)

const (
	affiliateCommissionRateMin   = 0
	affiliateCommissionRateMax   = 100
	affiliateCheckoutDiscountMin = 0
	affiliateCheckoutDiscountMax = 100
	affiliateVATRateMin          = 0
	affiliateVATRateMax          = 1
	affiliateAttributionDaysMin  = 1
	affiliateAttributionDaysMax  = 365
)

// AffiliateSetting 推广结算配置
type AffiliateSetting struct {
	Enabled                 bool    `json:"enabled"`
	VATRate                 float64 `json:"vat_rate"`
	DefaultCommissionRate   float64 `json:"default_commission_rate"`
	DefaultCheckoutDiscount float64 `json:"default_checkout_discount"`
	AttributionDays         int     `json:"attribution_days"`
}

// AffiliateDefaultSetting 默认推广结算配置
func AffiliateDefaultSetting() AffiliateSetting {
	return NormalizeAffiliateSetting(AffiliateSetting{
		Enabled:                 true,
		VATRate:                 0.25,
		DefaultCommissionRate:   15,
		DefaultCheckoutDiscount: 10,
		AttributionDays:         30,
	})
}

// NormalizeAffiliateSetting 归一化推广结算配置
func NormalizeAffiliateSetting(setting AffiliateSetting) AffiliateSetting {
	setting.DefaultCommissionRate = roundAffiliateDecimal(setting.DefaultCommissionRate)
	if setting.DefaultCommissionRate < affiliateCommissionRateMin {
		setting.DefaultCommissionRate = affiliateCommissionRateMin
	}
	if setting.DefaultCommissionRate > affiliateCommissionRateMax {
		setting.DefaultCommissionRate = affiliateCommissionRateMax
	}

	setting.DefaultCheckoutDiscount = roundAffiliateDecimal(setting.DefaultCheckoutDiscount)
	if setting.DefaultCheckoutDiscount < affiliateCheckoutDiscountMin {
		setting.DefaultCheckoutDiscount = affiliateCheckoutDiscountMin
	}
	if setting.DefaultCheckoutDiscount > affiliateCheckoutDiscountMax {
		setting.DefaultCheckoutDiscount = affiliateCheckoutDiscountMax
	}

	if setting.VATRate < affiliateVATRateMin {
		setting.VATRate = affiliateVATRateMin
	}
	if setting.VATRate > affiliateVATRateMax {
		setting.VATRate = affiliateVATRateMax
	}

	if setting.AttributionDays < affiliateAttributionDaysMin {
		setting.AttributionDays = affiliateAttributionDaysMin
	}
	if setting.AttributionDays > affiliateAttributionDaysMax {
		setting.AttributionDays = affiliateAttributionDaysMax
	}
	return setting
}

// ValidateAffiliateSetting 校验推广结算配置（管理端更新走拒绝而非静默截断）
func ValidateAffiliateSetting(setting AffiliateSetting) error {
	if setting.DefaultCommissionRate < affiliateCommissionRateMin || setting.DefaultCommissionRate > affiliateCommissionRateMax {
		return fmt.Errorf("%w: commission rate must be within 0-100", ErrAffiliateConfigInvalid)
	}
	if setting.DefaultCheckoutDiscount < affiliateCheckoutDiscountMin || setting.DefaultCheckoutDiscount > affiliateCheckoutDiscountMax {
		return fmt.Errorf("%w: checkout discount must be within 0-100", ErrAffiliateConfigInvalid)
	}
	if setting.VATRate < affiliateVATRateMin || setting.VATRate > affiliateVATRateMax {
		return fmt.Errorf("%w: vat rate must be within 0-1", ErrAffiliateConfigInvalid)
	}
	if setting.AttributionDays < affiliateAttributionDaysMin || setting.AttributionDays > affiliateAttributionDaysMax {
		return fmt.Errorf("%w: attribution days must be within 1-365", ErrAffiliateConfigInvalid)
	}
	return nil
}

// AffiliateSettingToMap 将推广结算配置转换为 settings 存储结构
func AffiliateSettingToMap(setting AffiliateSetting) map[string]interface{} {
	normalized := NormalizeAffiliateSetting(setting)
	return map[string]interface{}{
		"enabled":                   normalized.Enabled,
		"vat_rate":                  normalized.VATRate,
		"default_commission_rate":   normalized.DefaultCommissionRate,
		"default_checkout_discount": normalized.DefaultCheckoutDiscount,
		"attribution_days":          normalized.AttributionDays,
	}
}

func affiliateSettingFromJSON(raw models.JSON, fallback AffiliateSetting) AffiliateSetting {
	result := fallback

	if enabledRaw, ok := raw["enabled"]; ok {
		result.Enabled = parseSettingBool(enabledRaw)
	}
	if vatRaw, ok := raw["vat_rate"]; ok {
		if parsed, err := parseSettingFloat(vatRaw); err == nil {
			result.VATRate = parsed
		}
	}
	if rateRaw, ok := raw["default_commission_rate"]; ok {
		if parsed, err := parseSettingFloat(rateRaw); err == nil {
			result.DefaultCommissionRate = parsed
		}
	}
	if discountRaw, ok := raw["default_checkout_discount"]; ok {
		if parsed, err := parseSettingFloat(discountRaw); err == nil {
			result.DefaultCheckoutDiscount = parsed
		}
	}
	if daysRaw, ok := raw["attribution_days"]; ok {
		if parsed, err := parseSettingInt(daysRaw); err == nil {
			result.AttributionDays = parsed
		}
	}

	return NormalizeAffiliateSetting(result)
}

func normalizeAffiliateSettingMap(value map[string]interface{}) models.JSON {
	setting := affiliateSettingFromJSON(models.JSON(value), AffiliateDefaultSetting())
	return models.JSON(AffiliateSettingToMap(setting))
}

// GetAffiliateSetting 获取推广结算设置（优先 settings，空时回退默认）
func (s *SettingService) GetAffiliateSetting() (AffiliateSetting, error) {
	fallback := AffiliateDefaultSetting()
	if s == nil {
		return fallback, nil
	}

	value, err := s.GetByKey(constants.SettingKeyAffiliateConfig)
	if err != nil {
		return fallback, err
	}
	if value == nil {
		return fallback, nil
	}
	return affiliateSettingFromJSON(value, fallback), nil
}

// UpdateAffiliateSetting 更新推广结算设置
func (s *SettingService) UpdateAffiliateSetting(setting AffiliateSetting) (AffiliateSetting, error) {
	if err := ValidateAffiliateSetting(setting); err != nil {
		return AffiliateDefaultSetting(), err
	}
	normalized := NormalizeAffiliateSetting(setting)
	if _, err := s.Update(constants.SettingKeyAffiliateConfig, AffiliateSettingToMap(normalized)); err != nil {
		return AffiliateDefaultSetting(), err
	}
	return normalized, nil
}

func roundAffiliateDecimal(value float64) float64 {
	return math.Round(value*100) / 100
}

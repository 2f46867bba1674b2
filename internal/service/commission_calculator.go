package service

import (
	"fmt"

	"github.com/fenxiao-next/internal/models"
	"github.com/shopspring/decimal"
)

// CommissionInput 佣金计算入参
type CommissionInput struct {
	Total          decimal.Decimal // 订单实付金额（含运费、含税）
	Shipping       decimal.Decimal // 运费金额
	CommissionRate decimal.Decimal // 佣金比例（百分比，0-100）
	VATRate        decimal.Decimal // 增值税率（小数，0.25 = 25%）
}

// CommissionBreakdown 佣金计算明细
type CommissionBreakdown struct {
	GrossBase  decimal.Decimal `json:"gross_base"`  // 扣除运费后的含税基数
	NetBase    decimal.Decimal `json:"net_base"`    // 去税后的佣金基数
	VATAmount  decimal.Decimal `json:"vat_amount"`  // 去除的增值税金额
	Commission models.Money    `json:"commission"`  // 最终佣金（两位小数，四舍五入）
}

// CalculateCommission 按固定扣减顺序计算佣金：
// 先扣运费，再去增值税，再按比例计提，仅在最后一步四舍五入到两位小数。
// 相同入参恒定产出相同结果。
func CalculateCommission(input CommissionInput) (CommissionBreakdown, error) {
	if input.Total.LessThanOrEqual(decimal.Zero) {
		return CommissionBreakdown{}, fmt.Errorf("%w: total must be positive", ErrCommissionInputInvalid)
	}
	if input.Shipping.IsNegative() {
		return CommissionBreakdown{}, fmt.Errorf("%w: shipping must not be negative", ErrCommissionInputInvalid)
	}
	if input.CommissionRate.IsNegative() || input.CommissionRate.GreaterThan(decimal.NewFromInt(100)) {
		return CommissionBreakdown{}, fmt.Errorf("%w: commission rate must be within 0-100", ErrCommissionInputInvalid)
	}
	if input.VATRate.IsNegative() {
		return CommissionBreakdown{}, fmt.Errorf("%w: vat rate must not be negative", ErrCommissionInputInvalid)
	}

	grossBase := input.Total.Sub(input.Shipping)
	if grossBase.IsNegative() {
		// 运费高于实付金额时基数按零计，佣金不为负
		grossBase = decimal.Zero
	}

	netBase := grossBase.Div(decimal.NewFromInt(1).Add(input.VATRate))
	vatAmount := grossBase.Sub(netBase)

	commission := netBase.Mul(input.CommissionRate).Div(decimal.NewFromInt(100))

	return CommissionBreakdown{
		GrossBase:  grossBase,
		NetBase:    netBase,
		VATAmount:  vatAmount,
		Commission: models.NewMoneyFromDecimal(commission),
	}, nil
}

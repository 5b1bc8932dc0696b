// Package pricing prorates the value of a membership across tiers.
package pricing

import (
	"time"

	"github.com/fatflowers/membership/internal/models"
	"github.com/shopspring/decimal"
)

const (
	// PointsPerCurrencyUnit is the compensation rate for one currency unit of upgrade price.
	PointsPerCurrencyUnit = 10
	// DaysPerYear converts a yearly price into a daily value.
	DaysPerYear = 365
	// MonthsPerYear derives a yearly price from a monthly one.
	MonthsPerYear = 12
)

// Result is the outcome of one upgrade cost computation.
type Result struct {
	OriginalRemainingValue decimal.Decimal
	TargetRemainingValue   decimal.Decimal
	UpgradePrice           decimal.Decimal
	PointCompensation      int64
	Calculation            models.UpgradeCalculation
}

// ComputeUpgradeCost prices the move of the remaining days of a membership to a target tier.
// The upgrade price floors at zero and compensation is PointsPerCurrencyUnit per unit of price.
func ComputeUpgradeCost(paidAmount decimal.Decimal, originalTotalDays, remainingDays int, targetYearlyPrice decimal.Decimal) Result {
	remaining := clamp(remainingDays, 0, max(originalTotalDays, 0))
	days := decimal.NewFromInt(int64(remaining))

	dailyValue := decimal.Zero
	if originalTotalDays > 0 {
		dailyValue = paidAmount.Div(decimal.NewFromInt(int64(originalTotalDays)))
	}
	originalRemaining := dailyValue.Mul(days).Round(2)

	targetDaily := targetYearlyPrice.Div(decimal.NewFromInt(DaysPerYear))
	targetRemaining := targetDaily.Mul(days).Round(2)

	price := targetRemaining.Sub(originalRemaining).Round(2)
	if price.IsNegative() {
		price = decimal.Zero
	}
	points := price.Mul(decimal.NewFromInt(PointsPerCurrencyUnit)).Round(0).IntPart()

	return Result{
		OriginalRemainingValue: originalRemaining,
		TargetRemainingValue:   targetRemaining,
		UpgradePrice:           price,
		PointCompensation:      points,
		Calculation: models.UpgradeCalculation{
			PaidAmount:             paidAmount,
			OriginalTotalDays:      originalTotalDays,
			RemainingDays:          remaining,
			DailyValue:             dailyValue.Round(6),
			TargetYearlyPrice:      targetYearlyPrice,
			TargetDailyValue:       targetDaily.Round(6),
			OriginalRemainingValue: originalRemaining,
			TargetRemainingValue:   targetRemaining,
		},
	}
}

// ResolveTargetYearlyPrice returns the first yearly price among products, else the first monthly
// price times twelve. ok is false when no product carries a price.
func ResolveTargetYearlyPrice(products []*models.Product) (price decimal.Decimal, ok bool) {
	for _, p := range products {
		if p != nil && p.PriceYearly.Valid {
			return p.PriceYearly.Decimal, true
		}
	}
	for _, p := range products {
		if p != nil && p.PriceMonthly.Valid {
			return p.PriceMonthly.Decimal.Mul(decimal.NewFromInt(MonthsPerYear)), true
		}
	}
	return decimal.Zero, false
}

// DaysBetween counts the whole days from a to b, zero when b is not after a.
func DaysBetween(a, b time.Time) int {
	if !b.After(a) {
		return 0
	}
	return int(b.Sub(a) / (24 * time.Hour))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

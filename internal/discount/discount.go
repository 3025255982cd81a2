// Package discount applies a student's discounts to a fee amount.
package discount

import (
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bursar/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Result is the outcome of running the waterfall over one amount.
type Result struct {
	Gross   decimal.Decimal
	Net     decimal.Decimal
	Applied []model.AppliedDiscount
}

// Total is the sum of realised discounts.
func (r Result) Total() decimal.Decimal {
	return r.Gross.Sub(r.Net)
}

// Apply runs discounts in order against the remaining balance. A
// full-exemption zeroes what is left, a percentage takes value% of the
// remainder and a fixed amount takes min(value, remainder). Processing stops
// once nothing is left, so realised discounts never exceed the gross amount.
// Amounts are rounded half-up to two decimals.
func Apply(amount decimal.Decimal, discounts []model.Discount) Result {
	gross := amount.Round(2)
	if gross.IsNegative() {
		gross = decimal.Zero
	}
	res := Result{Gross: gross, Net: gross}
	remaining := gross

	for _, d := range discounts {
		if !remaining.IsPositive() {
			break
		}
		var off decimal.Decimal
		switch {
		case d.Category == model.DiscountFullExemption:
			off = remaining
		case d.Type == model.DiscountPercentage:
			pct := clamp(d.Value, decimal.Zero, hundred)
			off = remaining.Mul(pct).Div(hundred).Round(2)
		case d.Type == model.DiscountFixed:
			off = decimal.Max(d.Value, decimal.Zero).Round(2)
		default:
			continue
		}
		if off.GreaterThan(remaining) {
			off = remaining
		}
		if off.IsZero() {
			continue
		}
		remaining = remaining.Sub(off)
		res.Applied = append(res.Applied, model.AppliedDiscount{
			Category: d.Category,
			Type:     d.Type,
			Value:    d.Value,
			Amount:   off,
		})
	}
	res.Net = remaining
	return res
}

// ForFeeHead returns the discounts that apply to feeHeadID, preserving order.
// A discount without a fee head applies to every head.
func ForFeeHead(discounts []model.Discount, feeHeadID string) []model.Discount {
	var out []model.Discount
	for _, d := range discounts {
		if d.FeeHeadID == "" || d.FeeHeadID == feeHeadID {
			out = append(out, d)
		}
	}
	return out
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	return decimal.Min(decimal.Max(v, lo), hi)
}

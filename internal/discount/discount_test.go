package discount

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bursar/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func pct(v string) model.Discount {
	return model.Discount{Category: model.DiscountSiblings, Type: model.DiscountPercentage, Value: dec(v)}
}

func fixed(v string) model.Discount {
	return model.Discount{Category: model.DiscountSpecial, Type: model.DiscountFixed, Value: dec(v)}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name      string
		amount    string
		discounts []model.Discount
		net       string
		applied   []string
	}{
		{"no discounts", "5000", nil, "5000", nil},
		{"percentage", "5000", []model.Discount{pct("10")}, "4500", []string{"500"}},
		{"percentage then fixed", "5000", []model.Discount{pct("10"), fixed("1000")}, "3500", []string{"500", "1000"}},
		{"fixed then percentage", "5000", []model.Discount{fixed("1000"), pct("10")}, "3600", []string{"1000", "400"}},
		{"fixed capped", "300", []model.Discount{fixed("1000"), pct("10")}, "0", []string{"300"}},
		{"full exemption", "5000", []model.Discount{pct("10"), {Category: model.DiscountFullExemption}}, "0", []string{"500", "4500"}},
		{"percentage over 100 capped", "200", []model.Discount{pct("150")}, "0", []string{"200"}},
		{"rounds half up", "100.01", []model.Discount{pct("50")}, "50", []string{"50.01"}},
		{"zero discount skipped", "100", []model.Discount{fixed("0")}, "100", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Apply(dec(tt.amount), tt.discounts)
			assert.True(t, res.Net.Equal(dec(tt.net)), "net %s", res.Net)
			require.Len(t, res.Applied, len(tt.applied))
			for i, want := range tt.applied {
				assert.True(t, res.Applied[i].Amount.Equal(dec(want)), "discount %d = %s", i, res.Applied[i].Amount)
			}
			assert.True(t, res.Total().LessThanOrEqual(res.Gross))
			assert.True(t, res.Total().Add(res.Net).Equal(res.Gross))
		})
	}
}

func TestApply_NeverNegative(t *testing.T) {
	for _, ds := range [][]model.Discount{
		{fixed("1e9")},
		{pct("100"), fixed("10")},
		{{Category: model.DiscountFullExemption}, {Category: model.DiscountFullExemption}},
	} {
		res := Apply(dec("123.45"), ds)
		assert.False(t, res.Net.IsNegative())
		assert.True(t, res.Total().Equal(dec("123.45")))
	}
}

func TestForFeeHead(t *testing.T) {
	all := []model.Discount{
		pct("10"),
		{Category: model.DiscountStaff, Type: model.DiscountFixed, Value: dec("50"), FeeHeadID: "books"},
		{Category: model.DiscountMerit, Type: model.DiscountFixed, Value: dec("20"), FeeHeadID: "tuition"},
	}
	got := ForFeeHead(all, "tuition")
	require.Len(t, got, 2)
	assert.Equal(t, model.DiscountSiblings, got[0].Category)
	assert.Equal(t, model.DiscountMerit, got[1].Category)
}

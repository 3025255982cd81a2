package payments

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func twoHeads() []Outstanding {
	return []Outstanding{
		{InvoiceID: "inv-1", InvoiceSerial: 1, FeeHeadID: "books", Priority: 2, Balance: dec("1000")},
		{InvoiceID: "inv-1", InvoiceSerial: 1, FeeHeadID: "tuition", Priority: 1, Balance: dec("5000")},
	}
}

func TestDistribute_Scenarios(t *testing.T) {
	tests := []struct {
		name                   string
		amount                 string
		tuition, books, credit string
	}{
		{"partial", "3000", "3000", "0", "0"},
		{"overpaid", "6500", "5000", "1000", "500"},
		{"exact", "6000", "5000", "1000", "0"},
		{"tiny", "0.01", "0.01", "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Distribute(twoHeads(), dec(tt.amount))
			assert.True(t, d.For("tuition").Equal(dec(tt.tuition)), "tuition %s", d.For("tuition"))
			assert.True(t, d.For("books").Equal(dec(tt.books)), "books %s", d.For("books"))
			assert.True(t, d.Credit.Equal(dec(tt.credit)), "credit %s", d.Credit)
			assert.True(t, d.Allocated().Add(d.Credit).Equal(dec(tt.amount)))
		})
	}
}

func TestDistribute_Order(t *testing.T) {
	outstanding := []Outstanding{
		{InvoiceID: "b", InvoiceSerial: 2, FeeHeadID: "tuition", Priority: 1, Balance: dec("100")},
		{InvoiceID: "a", InvoiceSerial: 1, FeeHeadID: "transport", Priority: 1, Balance: dec("100")},
		{InvoiceID: "a", InvoiceSerial: 1, FeeHeadID: "activity", Priority: 1, Balance: dec("100")},
		{InvoiceID: "a", InvoiceSerial: 1, FeeHeadID: "books", Priority: 0, Balance: dec("100")},
	}
	d := Distribute(outstanding, dec("250"))
	require.Len(t, d.Allocations, 3)
	assert.Equal(t, "books", d.Allocations[0].FeeHeadID)
	assert.Equal(t, "activity", d.Allocations[1].FeeHeadID)
	assert.Equal(t, "transport", d.Allocations[2].FeeHeadID)
	assert.True(t, d.Allocations[2].Amount.Equal(dec("50")))
	assert.True(t, d.Allocations[2].Remaining.Equal(dec("50")))
	assert.True(t, d.Credit.IsZero())
}

func TestDistribute_EdgeCases(t *testing.T) {
	d := Distribute(nil, dec("400"))
	assert.Empty(t, d.Allocations)
	assert.True(t, d.Credit.Equal(dec("400")), "no balances means everything is credit")

	d = Distribute(twoHeads(), decimal.Zero)
	assert.Empty(t, d.Allocations)
	assert.True(t, d.Credit.IsZero())

	d = Distribute([]Outstanding{{FeeHeadID: "x", Balance: dec("-5")}}, dec("10"))
	assert.Empty(t, d.Allocations)
	assert.True(t, d.Credit.Equal(dec("10")))
}

func TestDistribute_DoesNotReorderInput(t *testing.T) {
	in := twoHeads()
	Distribute(in, dec("10"))
	assert.Equal(t, "books", in[0].FeeHeadID)
}

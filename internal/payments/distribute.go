// Package payments allocates student payments across outstanding invoice
// balances and records receipts.
package payments

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Outstanding is the unpaid part of one fee head on one invoice.
type Outstanding struct {
	InvoiceID     string
	InvoiceSerial int
	FeeHeadID     string
	FeeHeadName   string
	Priority      int
	Balance       decimal.Decimal
}

// Allocation is the share of a payment applied to one outstanding balance.
type Allocation struct {
	InvoiceID     string
	InvoiceSerial int
	FeeHeadID     string
	FeeHeadName   string
	Amount        decimal.Decimal
	Remaining     decimal.Decimal // balance left after this allocation
}

// Distribution is the result of splitting a payment.
type Distribution struct {
	Amount      decimal.Decimal
	Allocations []Allocation
	Credit      decimal.Decimal
}

// Allocated sums the allocations.
func (d Distribution) Allocated() decimal.Decimal {
	total := decimal.Zero
	for _, a := range d.Allocations {
		total = total.Add(a.Amount)
	}
	return total
}

// For returns what was allocated to a fee head across all invoices.
func (d Distribution) For(feeHeadID string) decimal.Decimal {
	total := decimal.Zero
	for _, a := range d.Allocations {
		if a.FeeHeadID == feeHeadID {
			total = total.Add(a.Amount)
		}
	}
	return total
}

// Distribute applies amount greedily to the outstanding balances ordered by
// priority, then invoice serial, then fee head ID. Whatever is left becomes
// credit, so the allocations plus the credit always equal amount. Balances
// that receive nothing are omitted.
func Distribute(outstanding []Outstanding, amount decimal.Decimal) Distribution {
	d := Distribution{Amount: amount, Credit: decimal.Zero}
	if !amount.IsPositive() {
		return d
	}

	sorted := append([]Outstanding(nil), outstanding...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.InvoiceSerial != b.InvoiceSerial {
			return a.InvoiceSerial < b.InvoiceSerial
		}
		return a.FeeHeadID < b.FeeHeadID
	})

	remaining := amount
	for _, o := range sorted {
		if !remaining.IsPositive() {
			break
		}
		if !o.Balance.IsPositive() {
			continue
		}
		take := decimal.Min(remaining, o.Balance)
		d.Allocations = append(d.Allocations, Allocation{
			InvoiceID:     o.InvoiceID,
			InvoiceSerial: o.InvoiceSerial,
			FeeHeadID:     o.FeeHeadID,
			FeeHeadName:   o.FeeHeadName,
			Amount:        take,
			Remaining:     o.Balance.Sub(take),
		})
		remaining = remaining.Sub(take)
	}
	d.Credit = remaining
	return d
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountCategory is why a student receives a reduction.
type DiscountCategory string

const (
	DiscountSiblings      DiscountCategory = "siblings"
	DiscountStaff         DiscountCategory = "staff"
	DiscountMerit         DiscountCategory = "merit"
	DiscountFullExemption DiscountCategory = "full-exemption"
	DiscountSpecial       DiscountCategory = "special"
)

// DiscountType is how the discount value is interpreted.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Discount is a reduction granted to a student, optionally for one fee head only.
type Discount struct {
	Category  DiscountCategory `yaml:"category"`
	Type      DiscountType     `yaml:"type"`
	Value     decimal.Decimal  `yaml:"value"`
	FeeHeadID string           `yaml:"fee_head_id,omitempty"` // "" = every fee head
}

// AppliedDiscount records what a discount actually removed from an item.
type AppliedDiscount struct {
	Category DiscountCategory `yaml:"category"`
	Type     DiscountType     `yaml:"type"`
	Value    decimal.Decimal  `yaml:"value"`
	Amount   decimal.Decimal  `yaml:"amount"`
}

// InvoiceItem is one fee head billed on an invoice.
type InvoiceItem struct {
	FeeHeadID        string            `yaml:"fee_head_id"`
	FeeHeadName      string            `yaml:"fee_head_name"`
	Priority         int               `yaml:"priority"`
	Amount           decimal.Decimal   `yaml:"amount"` // gross, before discounts
	RevenueAccountID string            `yaml:"revenue_account_id"`
	Discounts        []AppliedDiscount `yaml:"discounts,omitempty"`
	Net              decimal.Decimal   `yaml:"net"`
}

// DiscountTotal sums the realised discounts on the item.
func (i InvoiceItem) DiscountTotal() decimal.Decimal {
	total := decimal.Zero
	for _, d := range i.Discounts {
		total = total.Add(d.Amount)
	}
	return total
}

// Invoice bills a student for a set of fee heads.
type Invoice struct {
	ID              string          `yaml:"id"`
	Serial          int             `yaml:"serial"`
	StudentID       string          `yaml:"student_id"`
	StudentName     string          `yaml:"student_name"`
	YearID          string          `yaml:"year_id"`
	GradeID         string          `yaml:"grade_id"`
	Term            int             `yaml:"term"` // 0 = full year
	Percentage      decimal.Decimal `yaml:"percentage"`
	DueDate         time.Time       `yaml:"due_date"`
	IssuedAt        time.Time       `yaml:"issued_at"`
	IssuedBy        string          `yaml:"issued_by"`
	Items           []InvoiceItem   `yaml:"items"`
	Total           decimal.Decimal `yaml:"total"`
	State           State           `yaml:"state"`
	JournalEntryID  string          `yaml:"journal_entry_id,omitempty"`
	VoidReason      string          `yaml:"void_reason,omitempty"`
	VoidedAt        *time.Time      `yaml:"voided_at,omitempty"`
	VoidedBy        string          `yaml:"voided_by,omitempty"`
	ReversalEntryID string          `yaml:"reversal_entry_id,omitempty"`
	Notes           string          `yaml:"notes,omitempty"`
}

// Posted reports whether the invoice currently counts toward the ledger.
func (inv Invoice) Posted() bool {
	return inv.State == StateActive
}

// Voided reports whether the invoice has been voided.
func (inv Invoice) Voided() bool {
	return inv.State == StateVoided
}

// Recalculate sets Total to the sum of item nets.
func (inv *Invoice) Recalculate() {
	total := decimal.Zero
	for _, it := range inv.Items {
		total = total.Add(it.Net)
	}
	inv.Total = total
}

// Covers reports whether the invoice bills feeHeadID for term. A full-year
// invoice covers both terms and vice versa.
func (inv Invoice) Covers(feeHeadID string, term int) bool {
	if inv.Term != 0 && term != 0 && inv.Term != term {
		return false
	}
	for _, it := range inv.Items {
		if it.FeeHeadID == feeHeadID {
			return true
		}
	}
	return false
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptLineKind distinguishes allocations from unapplied credit.
type ReceiptLineKind string

const (
	ReceiptLineAllocation ReceiptLineKind = "allocation"
	ReceiptLineCredit     ReceiptLineKind = "credit"
)

// ReceiptLine is one slice of a payment.
type ReceiptLine struct {
	Kind          ReceiptLineKind `yaml:"kind"`
	InvoiceID     string          `yaml:"invoice_id,omitempty"`
	InvoiceSerial int             `yaml:"invoice_serial,omitempty"`
	FeeHeadID     string          `yaml:"fee_head_id,omitempty"`
	Amount        decimal.Decimal `yaml:"amount"`
}

// Receipt records cash received from or on behalf of a student.
type Receipt struct {
	ID                string          `yaml:"id"`
	Number            int             `yaml:"number"`
	StudentID         string          `yaml:"student_id"`
	Date              time.Time       `yaml:"date"`
	Amount            decimal.Decimal `yaml:"amount"`
	TreasuryAccountID string          `yaml:"treasury_account_id"`
	Reference         string          `yaml:"reference,omitempty"`
	Lines             []ReceiptLine   `yaml:"lines"`
	JournalEntryID    string          `yaml:"journal_entry_id,omitempty"`
	CreatedBy         string          `yaml:"created_by"`
	CreatedAt         time.Time       `yaml:"created_at"`
}

// Credit returns the unallocated remainder carried as a credit balance.
func (r Receipt) Credit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range r.Lines {
		if l.Kind == ReceiptLineCredit {
			total = total.Add(l.Amount)
		}
	}
	return total
}

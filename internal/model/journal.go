package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceTolerance is the largest debit/credit difference still considered balanced.
var BalanceTolerance = decimal.New(1, -2)

// EntryStatus represents the lifecycle state of a journal entry.
type EntryStatus string

const (
	StatusDraft    EntryStatus = "DRAFT"
	StatusPosted   EntryStatus = "POSTED"
	StatusApproved EntryStatus = "APPROVED"
	StatusRejected EntryStatus = "REJECTED"
)

// IsValid reports whether s is a known status.
func (s EntryStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusPosted, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// IsTerminal returns true once the entry can no longer change.
func (s EntryStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanEdit returns true if lines and header may still change.
func (s EntryStatus) CanEdit() bool {
	return s == StatusDraft
}

// CanPost returns true if a draft may be submitted.
func (s EntryStatus) CanPost() bool {
	return s == StatusDraft
}

// CanDecide returns true if the entry can be approved or rejected.
func (s EntryStatus) CanDecide() bool {
	return s == StatusPosted
}

// EntrySource records which part of the system produced an entry.
type EntrySource string

const (
	SourceManual          EntrySource = "manual"
	SourceReceipts        EntrySource = "receipts"
	SourcePayments        EntrySource = "payments"
	SourceAssets          EntrySource = "assets"
	SourcePayroll         EntrySource = "payroll"
	SourceInventoryIn     EntrySource = "inventory-in"
	SourceInventoryOut    EntrySource = "inventory-out"
	SourceInventoryAdjust EntrySource = "inventory-adjust"
	SourceInvoices        EntrySource = "invoices"
	SourceYearOpening     EntrySource = "year-opening"
)

// IsValid reports whether s is a known source.
func (s EntrySource) IsValid() bool {
	switch s {
	case SourceManual, SourceReceipts, SourcePayments, SourceAssets, SourcePayroll,
		SourceInventoryIn, SourceInventoryOut, SourceInventoryAdjust,
		SourceInvoices, SourceYearOpening:
		return true
	}
	return false
}

// InitialStatus is DRAFT for manual entries and POSTED for everything else.
func (s EntrySource) InitialStatus() EntryStatus {
	if s == SourceManual {
		return StatusDraft
	}
	return StatusPosted
}

// JournalLine is one debit or credit against a single account.
type JournalLine struct {
	AccountID string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Note      string
}

// NewLine builds a line with negative inputs clamped to zero. When both
// sides are positive they are netted onto the larger side.
func NewLine(accountID string, debit, credit decimal.Decimal, note string) JournalLine {
	if debit.IsNegative() {
		debit = decimal.Zero
	}
	if credit.IsNegative() {
		credit = decimal.Zero
	}
	if debit.IsPositive() && credit.IsPositive() {
		if debit.GreaterThanOrEqual(credit) {
			debit, credit = debit.Sub(credit), decimal.Zero
		} else {
			debit, credit = decimal.Zero, credit.Sub(debit)
		}
	}
	return JournalLine{AccountID: accountID, Debit: debit, Credit: credit, Note: note}
}

// Normalize re-applies the NewLine clamping rules in place.
func (l *JournalLine) Normalize() {
	*l = NewLine(l.AccountID, l.Debit, l.Credit, l.Note)
}

// Delta returns debit minus credit, the signed effect on the account balance.
func (l JournalLine) Delta() decimal.Decimal {
	return l.Debit.Sub(l.Credit)
}

// JournalEntry is a dated, numbered set of lines that must balance before approval.
type JournalEntry struct {
	ID           string
	Number       int
	Date         time.Time
	Description  string
	Source       EntrySource
	Reference    string
	Status       EntryStatus
	CreatedBy    string
	CreatedAt    time.Time
	ApprovedBy   string
	ApprovedAt   *time.Time
	RejectedBy   string
	RejectedAt   *time.Time
	RejectReason string
	Applied      bool // balances already posted to the chart
	Lines        []JournalLine

	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	IsBalanced  bool
}

// Recalculate normalizes every line and derives the totals and balanced flag.
func (e *JournalEntry) Recalculate() {
	debit := decimal.Zero
	credit := decimal.Zero
	for i := range e.Lines {
		e.Lines[i].Normalize()
		debit = debit.Add(e.Lines[i].Debit)
		credit = credit.Add(e.Lines[i].Credit)
	}
	e.TotalDebit = debit
	e.TotalCredit = credit
	e.IsBalanced = debit.Sub(credit).Abs().LessThanOrEqual(BalanceTolerance)
}

// Clone returns a deep copy so callers cannot mutate stored lines.
func (e JournalEntry) Clone() JournalEntry {
	out := e
	out.Lines = append([]JournalLine(nil), e.Lines...)
	if e.ApprovedAt != nil {
		t := *e.ApprovedAt
		out.ApprovedAt = &t
	}
	if e.RejectedAt != nil {
		t := *e.RejectedAt
		out.RejectedAt = &t
	}
	return out
}

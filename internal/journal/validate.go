package journal

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bursar/internal/model"
)

// Invariants checked by ValidateEntry and ValidateJournal.
const (
	InvariantBalanced   = 1 // debits equal credits within tolerance
	InvariantSingleSide = 2 // each line carries exactly one of debit or credit
	InvariantAccount    = 3 // lines reference existing leaf accounts
	InvariantDecimals   = 4 // amounts have at most two decimal places
	InvariantNotEmpty   = 5 // an entry has at least one line
	InvariantSequence   = 6 // entry numbers are unique and contiguous from 1
	InvariantStatus     = 7 // status and source are known values
)

// ValidationError describes a single invariant violation.
type ValidationError struct {
	Invariant   int
	EntryID     string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invariant %d [%s]: %s", e.Invariant, e.EntryID, e.Description)
}

// AccountChecker answers the questions the journal asks of the chart.
type AccountChecker interface {
	Exists(id string) bool
	IsLeaf(id string) bool
}

var hundred = decimal.NewFromInt(100)

// ValidateEntry checks one entry. Balance is only enforced for entries that
// have left DRAFT, since drafts may be saved half-finished.
func ValidateEntry(e model.JournalEntry, accounts AccountChecker) []ValidationError {
	var errs []ValidationError
	add := func(inv int, format string, args ...any) {
		errs = append(errs, ValidationError{Invariant: inv, EntryID: e.ID, Description: fmt.Sprintf(format, args...)})
	}

	if !e.Status.IsValid() {
		add(InvariantStatus, "unknown status %q", e.Status)
	}
	if !e.Source.IsValid() {
		add(InvariantStatus, "unknown source %q", e.Source)
	}
	if len(e.Lines) == 0 {
		add(InvariantNotEmpty, "entry has no lines")
	}

	debit, credit := decimal.Zero, decimal.Zero
	for i, l := range e.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)

		if l.Debit.IsNegative() || l.Credit.IsNegative() || l.Debit.IsPositive() == l.Credit.IsPositive() {
			add(InvariantSingleSide, "line %d must have exactly one positive debit or credit", i+1)
		}
		switch {
		case !accounts.Exists(l.AccountID):
			add(InvariantAccount, "line %d: unknown account %s", i+1, l.AccountID)
		case !accounts.IsLeaf(l.AccountID):
			add(InvariantAccount, "line %d: account %s is not a postable leaf", i+1, l.AccountID)
		}
		if !twoDecimals(l.Debit) {
			add(InvariantDecimals, "line %d: debit %s has more than 2 decimal places", i+1, l.Debit)
		}
		if !twoDecimals(l.Credit) {
			add(InvariantDecimals, "line %d: credit %s has more than 2 decimal places", i+1, l.Credit)
		}
	}

	if e.Status != model.StatusDraft && debit.Sub(credit).Abs().GreaterThan(model.BalanceTolerance) {
		add(InvariantBalanced, "debits (%s) != credits (%s)", debit.StringFixed(2), credit.StringFixed(2))
	}
	return errs
}

// ValidateJournal checks every entry of a period plus the numbering sequence.
// Rejected entries are exempt from the balance and account checks.
func ValidateJournal(entries []model.JournalEntry, accounts AccountChecker) []ValidationError {
	var errs []ValidationError

	seen := make(map[int]string, len(entries))
	for _, e := range entries {
		if e.Status != model.StatusRejected {
			errs = append(errs, ValidateEntry(e, accounts)...)
		}
		if prev, dup := seen[e.Number]; dup {
			errs = append(errs, ValidationError{
				Invariant:   InvariantSequence,
				EntryID:     e.ID,
				Description: fmt.Sprintf("number %d already used by %s", e.Number, prev),
			})
			continue
		}
		seen[e.Number] = e.ID
	}
	for n := 1; n <= len(seen); n++ {
		if _, ok := seen[n]; !ok {
			errs = append(errs, ValidationError{
				Invariant:   InvariantSequence,
				EntryID:     fmt.Sprintf("seq %d", n),
				Description: fmt.Sprintf("missing number %d in 1..%d", n, len(seen)),
			})
		}
	}
	return errs
}

func twoDecimals(d decimal.Decimal) bool {
	scaled := d.Mul(hundred)
	return scaled.Equal(scaled.Truncate(0))
}

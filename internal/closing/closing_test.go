package closing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bursar/internal/ledgererr"
	"github.com/cleared-dev/bursar/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type stubJournal struct {
	drafts, unbalanced []model.JournalEntry
}

func (s stubJournal) Drafts() []model.JournalEntry {
	return s.drafts
}

func (s stubJournal) UnbalancedPosted() []model.JournalEntry {
	return s.unbalanced
}

func (s stubJournal) DisplayNumber(e model.JournalEntry) string {
	return e.ID
}

type stubInvoices []model.Invoice

func (s stubInvoices) All() []model.Invoice { return s }

type stubChart map[model.SystemTag]bool

func (s stubChart) CanProvision(tag model.SystemTag) error {
	if s[tag] {
		return errors.New("no room in the chart")
	}
	return nil
}

func TestValidate_Ready(t *testing.T) {
	invs := stubInvoices{
		{ID: "a", State: model.StateActive, Total: dec("100"), JournalEntryID: "je-1"},
		{ID: "b", State: model.StateActive, Total: decimal.Zero},
		{ID: "c", State: model.StateVoided, Total: dec("50"), JournalEntryID: "je-1", ReversalEntryID: "je-2"},
		{ID: "d", State: model.StateVoided, Total: decimal.Zero},
	}
	r := Validate(stubJournal{}, invs, stubChart{})
	assert.True(t, r.Ready())
	assert.NoError(t, r.Err())
}

func TestValidate_Issues(t *testing.T) {
	j := stubJournal{
		drafts:     []model.JournalEntry{{ID: "JV-2025-0003"}},
		unbalanced: []model.JournalEntry{{ID: "JV-2025-0004", TotalDebit: dec("10"), TotalCredit: dec("9")}},
	}
	invs := stubInvoices{
		{ID: "unposted", State: model.StateActive, Total: dec("100")},
		{ID: "unreversed", State: model.StateVoided, Total: dec("100"), JournalEntryID: "je-1"},
		{ID: "odd", State: model.StateDisabled},
	}
	r := Validate(j, invs, stubChart{model.TagDeferredRevenue: true})

	require.Len(t, r.Issues, 6)
	kinds := make(map[IssueKind]int)
	for _, is := range r.Issues {
		kinds[is.Kind]++
	}
	assert.Equal(t, 1, kinds[IssueDraftEntry])
	assert.Equal(t, 1, kinds[IssueUnbalancedEntry])
	assert.Equal(t, 3, kinds[IssueAmbiguousInvoice])
	assert.Equal(t, 1, kinds[IssueSystemAccount])

	err := r.Err()
	assert.ErrorIs(t, err, ledgererr.ErrCloseNotReady)
	assert.Contains(t, err.Error(), "JV-2025-0003")
	assert.Contains(t, err.Error(), "DEFERRED_REVENUE")
}

var sys = SystemAccounts{
	Receivable:       "ar",
	DeferredRevenue:  "deferred",
	RetainedEarnings: "retained",
	CurrentYearPnL:   "pnl",
}

func closingChart() []model.Account {
	return []model.Account{
		{ID: "assets", Code: "1", Type: model.AccountTypeAsset, IsMain: true},
		{ID: "cash", Code: "1101", Name: "Cash", Type: model.AccountTypeAsset, Balance: dec("3500")},
		{ID: "ar", Code: "1103", Name: "Receivables", Type: model.AccountTypeAsset, Balance: dec("2500")},
		{ID: "deferred", Code: "2101", Name: "Deferred", Type: model.AccountTypeLiability},
		{ID: "capital", Code: "3101", Name: "Capital", Type: model.AccountTypeEquity, Balance: dec("-1000")},
		{ID: "tuition", Code: "4101", Name: "Tuition", Type: model.AccountTypeRevenue, Balance: dec("-6000")},
		{ID: "salaries", Code: "5101", Name: "Salaries", Type: model.AccountTypeExpense, Balance: dec("1000")},
		{ID: "empty", Code: "5102", Name: "Rent", Type: model.AccountTypeExpense},
	}
}

func lineFor(lines []model.JournalLine, accountID string) (model.JournalLine, bool) {
	for _, l := range lines {
		if l.AccountID == accountID {
			return l, true
		}
	}
	return model.JournalLine{}, false
}

func totals(lines []model.JournalLine) (decimal.Decimal, decimal.Decimal) {
	d, c := decimal.Zero, decimal.Zero
	for _, l := range lines {
		d = d.Add(l.Debit)
		c = c.Add(l.Credit)
	}
	return d, c
}

func TestBuildOpening(t *testing.T) {
	op := BuildOpening(OpeningParams{
		Accounts:        closingChart(),
		StudentBalances: map[string]decimal.Decimal{"S1": dec("3000"), "S2": dec("-500"), "S3": decimal.Zero},
		System:          sys,
	})

	debit, credit := totals(op.Lines)
	assert.True(t, debit.Equal(credit), "debits %s credits %s", debit, credit)
	assert.True(t, op.Plug.IsZero())

	ar, ok := lineFor(op.Lines, "ar")
	require.True(t, ok)
	assert.Equal(t, "3000.00", ar.Debit.StringFixed(2))
	deferred, ok := lineFor(op.Lines, "deferred")
	require.True(t, ok)
	assert.Equal(t, "500.00", deferred.Credit.StringFixed(2))

	tuition, ok := lineFor(op.Lines, "tuition")
	require.True(t, ok)
	assert.Equal(t, "6000.00", tuition.Credit.StringFixed(2))

	_, ok = lineFor(op.Lines, "empty")
	assert.False(t, ok)
	_, ok = lineFor(op.Lines, "assets")
	assert.False(t, ok)
}

func TestBuildOpening_RollIncomeToPnL(t *testing.T) {
	op := BuildOpening(OpeningParams{
		Accounts:        closingChart(),
		StudentBalances: map[string]decimal.Decimal{"S1": dec("3000"), "S2": dec("-500")},
		System:          sys,
		RollIncomeToPnL: true,
	})

	_, ok := lineFor(op.Lines, "tuition")
	assert.False(t, ok)
	pnl, ok := lineFor(op.Lines, "pnl")
	require.True(t, ok)
	assert.Equal(t, "5000.00", pnl.Credit.StringFixed(2))

	debit, credit := totals(op.Lines)
	assert.True(t, debit.Equal(credit))
}

func TestBuildOpening_PlugsDifference(t *testing.T) {
	op := BuildOpening(OpeningParams{
		Accounts: []model.Account{
			{ID: "cash", Code: "1101", Type: model.AccountTypeAsset, Balance: dec("700")},
		},
		System: sys,
	})

	assert.Equal(t, "-700.00", op.Plug.StringFixed(2))
	re, ok := lineFor(op.Lines, "retained")
	require.True(t, ok)
	assert.Equal(t, "700.00", re.Credit.StringFixed(2))
	debit, credit := totals(op.Lines)
	assert.True(t, debit.Equal(credit))
}

func TestBuildOpening_Empty(t *testing.T) {
	op := BuildOpening(OpeningParams{System: sys})
	assert.Empty(t, op.Lines)
	assert.True(t, op.Plug.IsZero())
}

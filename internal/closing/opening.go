package closing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bursar/internal/model"
)

// SystemAccounts are the resolved IDs of the accounts the opening entry uses.
type SystemAccounts struct {
	Receivable       string
	DeferredRevenue  string
	RetainedEarnings string
	CurrentYearPnL   string
}

// OpeningParams are the closing figures of a period.
type OpeningParams struct {
	Accounts        []model.Account
	StudentBalances map[string]decimal.Decimal // positive = owes, negative = prepaid
	System          SystemAccounts
	RollIncomeToPnL bool
}

// Opening is the set of lines that carries balances into the next period.
type Opening struct {
	Lines []model.JournalLine
	Plug  decimal.Decimal // amount booked to retained earnings to balance; debit-positive
}

// BuildOpening computes the opening lines. Every leaf with a non-zero balance
// gets a line, except the receivable and deferred revenue accounts, which are
// rebuilt from student balances: debtors in the receivable, prepayments in
// deferred revenue. With RollIncomeToPnL the revenue and expense balances are
// collapsed into the current-year P&L account. Any remaining difference is
// booked to retained earnings so the entry always balances.
func BuildOpening(p OpeningParams) Opening {
	b := newBuilder()

	accts := append([]model.Account(nil), p.Accounts...)
	sort.SliceStable(accts, func(i, j int) bool { return accts[i].Code < accts[j].Code })
	for _, a := range accts {
		if a.IsMain || a.Balance.IsZero() || a.ID == p.System.Receivable || a.ID == p.System.DeferredRevenue {
			continue
		}
		if p.RollIncomeToPnL && a.Type.IsIncomeStatement() {
			b.add(p.System.CurrentYearPnL, a.Balance, "current year result")
			continue
		}
		b.add(a.ID, a.Balance, a.Name)
	}

	owed, prepaid := decimal.Zero, decimal.Zero
	for _, bal := range p.StudentBalances {
		if bal.IsPositive() {
			owed = owed.Add(bal)
		} else {
			prepaid = prepaid.Add(bal.Neg())
		}
	}
	b.add(p.System.Receivable, owed, "student receivables")
	b.add(p.System.DeferredRevenue, prepaid.Neg(), "prepaid student credit")

	plug := b.net().Neg()
	b.add(p.System.RetainedEarnings, plug, "opening balance adjustment")
	return Opening{Lines: b.lines(), Plug: plug}
}

// builder accumulates debit-positive amounts per account in first-seen order.
type builder struct {
	order  []string
	amount map[string]decimal.Decimal
	note   map[string]string
}

func newBuilder() *builder {
	return &builder{amount: make(map[string]decimal.Decimal), note: make(map[string]string)}
}

func (b *builder) add(accountID string, delta decimal.Decimal, note string) {
	if delta.IsZero() {
		return
	}
	if _, ok := b.amount[accountID]; !ok {
		b.order = append(b.order, accountID)
		b.amount[accountID] = decimal.Zero
		b.note[accountID] = note
	}
	b.amount[accountID] = b.amount[accountID].Add(delta)
}

func (b *builder) net() decimal.Decimal {
	total := decimal.Zero
	for _, v := range b.amount {
		total = total.Add(v)
	}
	return total
}

func (b *builder) lines() []model.JournalLine {
	var out []model.JournalLine
	for _, id := range b.order {
		amt := b.amount[id]
		switch {
		case amt.IsPositive():
			out = append(out, model.NewLine(id, amt, decimal.Zero, b.note[id]))
		case amt.IsNegative():
			out = append(out, model.NewLine(id, decimal.Zero, amt.Neg(), b.note[id]))
		}
	}
	return out
}

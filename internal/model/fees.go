package model

import "github.com/shopspring/decimal"

// FeeType marks whether a fee head applies to every student.
type FeeType string

const (
	FeeTypeMandatory FeeType = "MANDATORY"
	FeeTypeOptional  FeeType = "OPTIONAL"
)

// FeeHead is a named billable category such as tuition or books.
type FeeHead struct {
	ID        string  `yaml:"id"`
	Name      string  `yaml:"name"`
	AccountID string  `yaml:"account_id"`
	Type      FeeType `yaml:"type"`
	Recurring bool    `yaml:"recurring"`
	Priority  int     `yaml:"priority"` // lower is paid first
	State     State   `yaml:"state"`
}

// FeeItem is one fee head's amount inside a grade structure.
type FeeItem struct {
	FeeHeadID        string          `yaml:"fee_head_id"`
	Amount           decimal.Decimal `yaml:"amount"`
	RevenueAccountID string          `yaml:"revenue_account_id,omitempty"`
	CostAccountID    string          `yaml:"cost_account_id,omitempty"`
	Term1Pct         decimal.Decimal `yaml:"term1_pct"`
	Term2Pct         decimal.Decimal `yaml:"term2_pct"`
}

// TermShare returns the fraction (0..1) of the amount billed for a term.
// Term 0 means the whole year.
func (i FeeItem) TermShare(term int) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	switch term {
	case 1:
		return i.Term1Pct.Div(hundred)
	case 2:
		return i.Term2Pct.Div(hundred)
	default:
		return decimal.NewFromInt(1)
	}
}

// GradeFeeStructure holds the fee items billed to one grade in one academic year.
type GradeFeeStructure struct {
	ID      string          `yaml:"id"`
	YearID  string          `yaml:"year_id"`
	GradeID string          `yaml:"grade_id"`
	Items   []FeeItem       `yaml:"items"`
	Total   decimal.Decimal `yaml:"total"`
}

// Recalculate sets Total to the sum of item amounts.
func (s *GradeFeeStructure) Recalculate() {
	total := decimal.Zero
	for _, it := range s.Items {
		total = total.Add(it.Amount)
	}
	s.Total = total
}

// Item returns the item for a fee head, if present.
func (s GradeFeeStructure) Item(feeHeadID string) (FeeItem, bool) {
	for _, it := range s.Items {
		if it.FeeHeadID == feeHeadID {
			return it, true
		}
	}
	return FeeItem{}, false
}

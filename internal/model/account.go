package model

import "github.com/shopspring/decimal"

// AccountType classifies accounts in the chart of accounts.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// IsValid reports whether t is one of the five account types.
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// IsIncomeStatement reports whether balances of this type belong to the P&L.
func (t AccountType) IsIncomeStatement() bool {
	return t == AccountTypeRevenue || t == AccountTypeExpense
}

// SystemTag identifies an account the engine manages automatically.
type SystemTag string

const (
	TagOpeningBalance   SystemTag = "OPENING_BALANCE"
	TagStudentAR        SystemTag = "STUDENT_AR"
	TagDeferredRevenue  SystemTag = "DEFERRED_REVENUE"
	TagCurrentYearPnL   SystemTag = "CURRENT_YEAR_PNL"
	TagRetainedEarnings SystemTag = "RETAINED_EARNINGS"
)

// RequiredSystemTags lists the accounts that must exist before a year can close.
func RequiredSystemTags() []SystemTag {
	return []SystemTag{
		TagOpeningBalance,
		TagStudentAR,
		TagDeferredRevenue,
		TagCurrentYearPnL,
		TagRetainedEarnings,
	}
}

// Account represents a row in the chart of accounts.
//
// Balance follows the debit-positive convention for every account type:
// a debit increases it and a credit decreases it.
type Account struct {
	ID          string
	Code        string
	Name        string
	Type        AccountType
	Level       int
	ParentID    string // "" = root
	IsMain      bool
	Balance     decimal.Decimal
	IsSystem    bool
	SystemTag   SystemTag
	Locked      bool
	Description string
}

// IsRoot reports whether the account sits at the top of the hierarchy.
func (a Account) IsRoot() bool {
	return a.ParentID == ""
}

package accounts

import "github.com/cleared-dev/bursar/internal/model"

// DefaultChart returns the starter chart of accounts for a school. Every
// system-tagged account is present so a fresh period can close without
// provisioning.
func DefaultChart() []model.Account {
	return []model.Account{
		group("1", "Assets", model.AccountTypeAsset, ""),
		group("11", "Current Assets", model.AccountTypeAsset, "1"),
		leaf("1101", "Cash on Hand", model.AccountTypeAsset, "11"),
		leaf("1102", "Bank", model.AccountTypeAsset, "11"),
		system("1103", "Student Receivables", model.AccountTypeAsset, "11", model.TagStudentAR),
		group("2", "Liabilities", model.AccountTypeLiability, ""),
		group("21", "Current Liabilities", model.AccountTypeLiability, "2"),
		system("2101", "Deferred Revenue", model.AccountTypeLiability, "21", model.TagDeferredRevenue),
		leaf("2102", "Accrued Expenses", model.AccountTypeLiability, "21"),
		group("3", "Equity", model.AccountTypeEquity, ""),
		group("31", "Capital", model.AccountTypeEquity, "3"),
		system("3101", "Opening Balance", model.AccountTypeEquity, "31", model.TagOpeningBalance),
		system("3102", "Retained Earnings", model.AccountTypeEquity, "31", model.TagRetainedEarnings),
		system("3103", "Current Year P&L", model.AccountTypeEquity, "31", model.TagCurrentYearPnL),
		group("4", "Revenue", model.AccountTypeRevenue, ""),
		group("41", "Fee Revenue", model.AccountTypeRevenue, "4"),
		leaf("4101", "Tuition Fees", model.AccountTypeRevenue, "41"),
		leaf("4102", "Books & Materials", model.AccountTypeRevenue, "41"),
		leaf("4103", "Transport Fees", model.AccountTypeRevenue, "41"),
		leaf("4104", "Activity Fees", model.AccountTypeRevenue, "41"),
		group("5", "Expenses", model.AccountTypeExpense, ""),
		group("51", "Operating Expenses", model.AccountTypeExpense, "5"),
		leaf("5101", "Salaries", model.AccountTypeExpense, "51"),
		leaf("5102", "Teaching Supplies", model.AccountTypeExpense, "51"),
		leaf("5103", "Utilities", model.AccountTypeExpense, "51"),
	}
}

// DefaultID is the deterministic ID used for accounts in the starter chart.
func DefaultID(code string) string {
	return "acct-" + code
}

func group(code, name string, t model.AccountType, parentCode string) model.Account {
	a := leaf(code, name, t, parentCode)
	a.IsMain = true
	return a
}

func leaf(code, name string, t model.AccountType, parentCode string) model.Account {
	a := model.Account{
		ID:    DefaultID(code),
		Code:  code,
		Name:  name,
		Type:  t,
		Level: len(code)/2 + 1,
	}
	if parentCode != "" {
		a.ParentID = DefaultID(parentCode)
	}
	return a
}

func system(code, name string, t model.AccountType, parentCode string, tag model.SystemTag) model.Account {
	a := leaf(code, name, t, parentCode)
	a.IsSystem = true
	a.SystemTag = tag
	return a
}

package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bursar/internal/accounts"
	"github.com/cleared-dev/bursar/internal/fees"
	"github.com/cleared-dev/bursar/internal/invoicing"
	"github.com/cleared-dev/bursar/internal/journal"
	"github.com/cleared-dev/bursar/internal/model"
	"github.com/cleared-dev/bursar/internal/payments"
)

// Chart of accounts.

// AddAccount adds an account to the chart.
func (b *Book) AddAccount(a model.Account) (model.Account, error) {
	return mutate(b, func() (model.Account, error) { return b.accounts.Add(a) })
}

// UpdateAccount changes an account's editable fields.
func (b *Book) UpdateAccount(id string, p accounts.Patch) (model.Account, error) {
	return mutate(b, func() (model.Account, error) { return b.accounts.Update(id, p) })
}

// DeleteAccount removes an account without children, balance, lock or system tag.
func (b *Book) DeleteAccount(id string) error {
	return mutateErr(b, func() error { return b.accounts.Delete(id) })
}

// LockAccount marks an account as locked against edits.
func (b *Book) LockAccount(id string) error {
	return mutateErr(b, func() error { return b.accounts.Lock(id) })
}

// EnsureSystemAccount resolves or creates a tagged account.
func (b *Book) EnsureSystemAccount(tag model.SystemTag) (string, error) {
	return mutate(b, func() (string, error) { return b.accounts.EnsureSystemAccount(tag) })
}

// NextCode returns the next free child code under parentID.
func (b *Book) NextCode(parentID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accounts.NextCode(parentID)
}

// Account returns an account by ID.
func (b *Book) Account(id string) (model.Account, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accounts.Get(id)
}

// AccountByCode returns an account by its code.
func (b *Book) AccountByCode(code string) (model.Account, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accounts.GetByCode(code)
}

// AccountByTag returns the account carrying a system tag.
func (b *Book) AccountByTag(tag model.SystemTag) (model.Account, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accounts.GetBySystemTag(tag)
}

// Accounts returns the chart in tree order.
func (b *Book) Accounts() []model.Account {
	return query(b, func() []model.Account { return b.accounts.Tree() })
}

// ChildAccounts returns the direct children of an account.
func (b *Book) ChildAccounts(parentID string) []model.Account {
	return query(b, func() []model.Account { return b.accounts.Children(parentID) })
}

// Journal.

// AddEntry records a journal entry. Manual entries start as drafts.
func (b *Book) AddEntry(p journal.AddParams) (model.JournalEntry, error) {
	return mutate(b, func() (model.JournalEntry, error) { return b.journal.Add(p) })
}

// UpdateEntry edits a draft entry.
func (b *Book) UpdateEntry(id string, p journal.UpdateParams) (model.JournalEntry, error) {
	return mutate(b, func() (model.JournalEntry, error) { return b.journal.Update(id, p) })
}

// PostEntry submits a draft for approval.
func (b *Book) PostEntry(id string) (model.JournalEntry, error) {
	return mutate(b, func() (model.JournalEntry, error) { return b.journal.Post(id) })
}

// ApproveEntry approves a posted entry and applies its balances.
func (b *Book) ApproveEntry(id, approvedBy string) (model.JournalEntry, error) {
	return mutate(b, func() (model.JournalEntry, error) { return b.journal.Approve(id, approvedBy) })
}

// RejectEntry rejects a posted entry.
func (b *Book) RejectEntry(id, rejectedBy, reason string) (model.JournalEntry, error) {
	return mutate(b, func() (model.JournalEntry, error) { return b.journal.Reject(id, rejectedBy, reason) })
}

// DeleteEntry always fails; entries are corrected by reversal.
func (b *Book) DeleteEntry(id string) error {
	return mutateErr(b, func() error { return b.journal.Delete(id) })
}

// ReverseEntry posts an entry offsetting an applied one.
func (b *Book) ReverseEntry(id string, p journal.ReverseParams) (model.JournalEntry, error) {
	return mutate(b, func() (model.JournalEntry, error) { return b.journal.Reverse(id, p) })
}

// Entry returns a journal entry by ID.
func (b *Book) Entry(id string) (model.JournalEntry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.journal.Get(id)
}

// EntryByNumber finds an entry by its sequence number in the period.
func (b *Book) EntryByNumber(n int) (model.JournalEntry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.journal.GetByNumber(n)
}

// Entries returns the entries matching f.
func (b *Book) Entries(f journal.Filter) []model.JournalEntry {
	return query(b, func() []model.JournalEntry { return b.journal.List(f) })
}

// EntryNumber formats an entry's number, e.g. JV-2025-0001.
func (b *Book) EntryNumber(e model.JournalEntry) string {
	return query(b, func() string { return b.journal.DisplayNumber(e) })
}

// CheckJournal runs every journal invariant over the whole period.
func (b *Book) CheckJournal() []journal.ValidationError {
	return query(b, func() []journal.ValidationError { return b.journal.Check() })
}

// Fee configuration.

// AddFeeHead adds a fee head.
func (b *Book) AddFeeHead(p fees.HeadParams) (model.FeeHead, error) {
	return mutate(b, func() (model.FeeHead, error) { return b.fees.AddFeeHead(p) })
}

// UpdateFeeHead changes a fee head.
func (b *Book) UpdateFeeHead(id string, p fees.HeadPatch) (model.FeeHead, error) {
	return mutate(b, func() (model.FeeHead, error) { return b.fees.UpdateFeeHead(id, p) })
}

// DisableFeeHead stops a fee head from being billed.
func (b *Book) DisableFeeHead(id string) (model.FeeHead, error) {
	return mutate(b, func() (model.FeeHead, error) { return b.fees.DisableFeeHead(id) })
}

// EnableFeeHead makes a disabled fee head billable again.
func (b *Book) EnableFeeHead(id string) (model.FeeHead, error) {
	return mutate(b, func() (model.FeeHead, error) { return b.fees.EnableFeeHead(id) })
}

// DeleteFeeHead removes a fee head no structure references.
func (b *Book) DeleteFeeHead(id string) error {
	return mutateErr(b, func() error { return b.fees.DeleteFeeHead(id) })
}

// InitYear seeds an empty fee structure for every grade in the roster.
func (b *Book) InitYear(yearID string) ([]model.GradeFeeStructure, error) {
	return mutate(b, func() ([]model.GradeFeeStructure, error) {
		return b.fees.InitializeYearFees(yearID, b.roster.Grades())
	})
}

// AddGradeFeeItem adds a fee head's amount to a grade structure.
func (b *Book) AddGradeFeeItem(yearID, gradeID string, item model.FeeItem) (model.GradeFeeStructure, error) {
	return mutate(b, func() (model.GradeFeeStructure, error) { return b.fees.AddGradeFeeItem(yearID, gradeID, item) })
}

// UpdateGradeFeeItem replaces a grade structure's item for item.FeeHeadID.
func (b *Book) UpdateGradeFeeItem(yearID, gradeID string, item model.FeeItem) (model.GradeFeeStructure, error) {
	return mutate(b, func() (model.GradeFeeStructure, error) { return b.fees.UpdateGradeFeeItem(yearID, gradeID, item) })
}

// RemoveGradeFeeItem drops a fee head from a grade structure.
func (b *Book) RemoveGradeFeeItem(yearID, gradeID, feeHeadID string) (model.GradeFeeStructure, error) {
	return mutate(b, func() (model.GradeFeeStructure, error) { return b.fees.RemoveGradeFeeItem(yearID, gradeID, feeHeadID) })
}

// FeeHeads returns every fee head.
func (b *Book) FeeHeads() []model.FeeHead {
	return query(b, func() []model.FeeHead { return b.fees.Heads() })
}

// FeeHead returns a fee head by ID.
func (b *Book) FeeHead(id string) (model.FeeHead, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fees.Head(id)
}

// FeeStructure returns a grade's fee structure for a year.
func (b *Book) FeeStructure(yearID, gradeID string) (model.GradeFeeStructure, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fees.Structure(yearID, gradeID)
}

// FeeStructures returns every grade structure of a year.
func (b *Book) FeeStructures(yearID string) []model.GradeFeeStructure {
	return query(b, func() []model.GradeFeeStructure { return b.fees.Structures(yearID) })
}

// Invoicing.

// PreviewInvoices computes an invoice batch without changing anything.
func (b *Book) PreviewInvoices(p invoicing.PreviewParams) ([]invoicing.PreviewRow, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.invoices.Preview(p)
}

// GenerateInvoices invoices the rows of a preview and posts the batch entry.
func (b *Book) GenerateInvoices(rows []invoicing.PreviewRow, p invoicing.GenerateParams) (invoicing.GenerateResult, error) {
	return mutate(b, func() (invoicing.GenerateResult, error) { return b.invoices.Generate(rows, p) })
}

// VoidInvoice voids an invoice and posts its reversal.
func (b *Book) VoidInvoice(id string, p invoicing.VoidParams) (invoicing.VoidResult, error) {
	return mutate(b, func() (invoicing.VoidResult, error) { return b.invoices.Void(id, p) })
}

// VoidAndReissue voids invoices and bills their students again.
func (b *Book) VoidAndReissue(ids []string, void invoicing.VoidParams, p invoicing.ReissueParams) (invoicing.ReissueResult, error) {
	return mutate(b, func() (invoicing.ReissueResult, error) { return b.invoices.VoidAndReissue(ids, void, p) })
}

// EditInvoice changes an invoice's non-financial fields.
func (b *Book) EditInvoice(id string, p invoicing.EditParams) (model.Invoice, error) {
	return mutate(b, func() (model.Invoice, error) { return b.invoices.Edit(id, p) })
}

// Invoice returns an invoice by ID.
func (b *Book) Invoice(id string) (model.Invoice, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.invoices.Get(id)
}

// InvoiceBySerial returns an invoice by serial number.
func (b *Book) InvoiceBySerial(serial int) (model.Invoice, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.invoices.GetBySerial(serial)
}

// Invoices returns every invoice ordered by serial.
func (b *Book) Invoices() []model.Invoice {
	return query(b, func() []model.Invoice { return b.invoices.All() })
}

// InvoicesByStudent returns a student's invoices.
func (b *Book) InvoicesByStudent(studentID string) []model.Invoice {
	return query(b, func() []model.Invoice { return b.invoices.ByStudent(studentID) })
}

// InvoicesByGrade returns the invoices of a grade in a year.
func (b *Book) InvoicesByGrade(yearID, gradeID string) []model.Invoice {
	return query(b, func() []model.Invoice { return b.invoices.ByGrade(yearID, gradeID) })
}

// InvoicesByYear returns the invoices of a year.
func (b *Book) InvoicesByYear(yearID string) []model.Invoice {
	return query(b, func() []model.Invoice { return b.invoices.ByYear(yearID) })
}

// InvoiceTotals sums the active invoices.
func (b *Book) InvoiceTotals() invoicing.Totals {
	return query(b, func() invoicing.Totals { return b.invoices.Totals() })
}

// Payments.

// PreviewPayment shows how a payment would be allocated.
func (b *Book) PreviewPayment(studentID string, amount decimal.Decimal) (payments.Distribution, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.payments.Preview(studentID, amount)
}

// DistributePayment records a payment and allocates it to outstanding fees.
func (b *Book) DistributePayment(p payments.PaymentParams) (model.Receipt, error) {
	return mutate(b, func() (model.Receipt, error) { return b.payments.DistributePayment(p) })
}

// Outstanding returns a student's unpaid invoice items by priority.
func (b *Book) Outstanding(studentID string) []payments.Outstanding {
	return query(b, func() []payments.Outstanding { return b.payments.Outstanding(studentID) })
}

// Receipts returns every receipt.
func (b *Book) Receipts() []model.Receipt {
	return query(b, func() []model.Receipt { return b.payments.Receipts() })
}

// ReceiptsFor returns a student's receipts.
func (b *Book) ReceiptsFor(studentID string) []model.Receipt {
	return query(b, func() []model.Receipt { return b.payments.ReceiptsFor(studentID) })
}

// StudentBalance returns what a student owes; negative means credit.
func (b *Book) StudentBalance(studentID string) decimal.Decimal {
	return query(b, func() decimal.Decimal { return b.payments.StudentBalance(studentID) })
}

// Balances returns the balance of every invoiced student.
func (b *Book) Balances() []payments.Balance {
	return query(b, func() []payments.Balance { return b.payments.Balances() })
}

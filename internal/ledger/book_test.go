package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bursar/internal/accounts"
	"github.com/cleared-dev/bursar/internal/fees"
	"github.com/cleared-dev/bursar/internal/invoicing"
	"github.com/cleared-dev/bursar/internal/journal"
	"github.com/cleared-dev/bursar/internal/ledgererr"
	"github.com/cleared-dev/bursar/internal/model"
	"github.com/cleared-dev/bursar/internal/payments"
	"github.com/cleared-dev/bursar/internal/roster"
	"github.com/cleared-dev/bursar/internal/store"
)

var (
	arID      = accounts.DefaultID("1103")
	cashID    = accounts.DefaultID("1101")
	tuitionID = accounts.DefaultID("4101")
	day       = time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testRoster() *roster.Roster {
	return roster.New(
		[]model.Student{
			{ID: "S1", Name: "Lina", GradeID: "G1", YearID: "2025", Status: model.EnrollmentEnrolled},
			{ID: "S2", Name: "Omar", GradeID: "G1", YearID: "2025", Status: model.EnrollmentEnrolled},
		},
		[]model.Grade{{ID: "G1", Name: "Grade 1", Order: 1}},
		[]model.TreasuryAccount{{ID: "cash", Name: "Cash box", AccountID: cashID}},
	)
}

func newTestBook(t *testing.T) (*Book, *store.FileStore) {
	t.Helper()
	st := store.NewFileStore(t.TempDir(), nil, nil)
	period := model.Period{
		TenantID:  "greenfield",
		YearID:    "2025",
		StartDate: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC),
	}
	b, err := Create(st, period, accounts.DefaultChart(), Options{Roster: testRoster()})
	require.NoError(t, err)
	return b, st
}

// seedFees sets up tuition 5000 (priority 1) and books 1000 (priority 2).
func seedFees(t *testing.T, b *Book) {
	t.Helper()
	_, err := b.AddFeeHead(fees.HeadParams{ID: "tuition", Name: "Tuition", AccountID: tuitionID, Priority: 1})
	require.NoError(t, err)
	_, err = b.AddFeeHead(fees.HeadParams{ID: "books", Name: "Books", AccountID: accounts.DefaultID("4102"), Priority: 2})
	require.NoError(t, err)
	_, err = b.InitYear("2025")
	require.NoError(t, err)
	_, err = b.AddGradeFeeItem("2025", "G1", model.FeeItem{FeeHeadID: "tuition", Amount: dec("5000")})
	require.NoError(t, err)
	_, err = b.AddGradeFeeItem("2025", "G1", model.FeeItem{FeeHeadID: "books", Amount: dec("1000")})
	require.NoError(t, err)
}

func invoice(t *testing.T, b *Book, studentIDs ...string) invoicing.GenerateResult {
	t.Helper()
	rows, err := b.PreviewInvoices(invoicing.PreviewParams{YearID: "2025", GradeID: "G1", StudentIDs: studentIDs})
	require.NoError(t, err)
	res, err := b.GenerateInvoices(rows, invoicing.GenerateParams{Actor: "bursar", Date: day})
	require.NoError(t, err)
	return res
}

func pay(t *testing.T, b *Book, studentID, amount string) model.Receipt {
	t.Helper()
	r, err := b.DistributePayment(payments.PaymentParams{StudentID: studentID, Amount: dec(amount), TreasuryID: "cash", Date: day, Actor: "cashier"})
	require.NoError(t, err)
	return r
}

func balance(t *testing.T, b *Book, id string) string {
	t.Helper()
	a, ok := b.Account(id)
	require.True(t, ok)
	return a.Balance.StringFixed(2)
}

func TestCreate_Errors(t *testing.T) {
	b, st := newTestBook(t)
	_, err := Create(st, b.Period(), accounts.DefaultChart(), Options{Roster: testRoster()})
	assert.ErrorIs(t, err, ledgererr.ErrInvalidInput)

	_, err = Create(st, model.Period{TenantID: "greenfield"}, nil, Options{Roster: testRoster()})
	assert.ErrorIs(t, err, ledgererr.ErrInvalidInput)
}

func TestBook_PersistsEveryChange(t *testing.T) {
	b, st := newTestBook(t)
	seedFees(t, b)
	invoice(t, b, "S1")
	pay(t, b, "S1", "6500")

	reopened, err := Open(st, b.Key(), Options{Roster: testRoster()})
	require.NoError(t, err)
	assert.Len(t, reopened.Invoices(), 1)
	assert.Len(t, reopened.Receipts(), 1)
	assert.Len(t, reopened.FeeHeads(), 2)
	assert.Equal(t, "-500.00", reopened.StudentBalance("S1").StringFixed(2))
	assert.Equal(t, "6500.00", balance(t, reopened, cashID))
	assert.True(t, reopened.LastKnown().Equal(b.LastKnown()))
}

func TestBook_InvoicePaymentScenario(t *testing.T) {
	b, _ := newTestBook(t)
	seedFees(t, b)

	res := invoice(t, b, "S1")
	require.Len(t, res.Invoices, 1)
	assert.Equal(t, "6000.00", res.Invoices[0].Total.StringFixed(2))

	r := pay(t, b, "S1", "3000")
	require.Len(t, r.Lines, 1)
	assert.Equal(t, "tuition", r.Lines[0].FeeHeadID)

	out := b.Outstanding("S1")
	require.Len(t, out, 2)
	assert.Equal(t, "2000.00", out[0].Balance.StringFixed(2))

	d, err := b.PreviewPayment("S1", dec("3500"))
	require.NoError(t, err)
	assert.Equal(t, "500.00", d.Credit.StringFixed(2))

	assert.Equal(t, "3000.00", balance(t, b, arID))
	assert.Empty(t, b.CheckJournal())
}

func TestBook_ManualEntryLifecycle(t *testing.T) {
	b, _ := newTestBook(t)

	e, err := b.AddEntry(journal.AddParams{
		Date:        day,
		Description: "Owner capital",
		Source:      model.SourceManual,
		CreatedBy:   "bursar",
		Lines: []model.JournalLine{
			model.NewLine(cashID, dec("1000"), decimal.Zero, ""),
			model.NewLine(accounts.DefaultID("3101"), decimal.Zero, dec("1000"), ""),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "JV-2025-0001", b.EntryNumber(e))
	assert.Equal(t, "0.00", balance(t, b, cashID))

	_, err = b.PostEntry(e.ID)
	require.NoError(t, err)
	_, err = b.ApproveEntry(e.ID, "head")
	require.NoError(t, err)
	assert.Equal(t, "1000.00", balance(t, b, cashID))

	assert.ErrorIs(t, b.DeleteEntry(e.ID), ledgererr.ErrNoDeletion)

	rev, err := b.ReverseEntry(e.ID, journal.ReverseParams{Actor: "head"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPosted, rev.Status)
	assert.Equal(t, "0.00", balance(t, b, cashID))

	got, ok := b.EntryByNumber(2)
	require.True(t, ok)
	assert.Equal(t, rev.ID, got.ID)
	assert.Len(t, b.Entries(journal.Filter{Status: model.StatusApproved}), 1)
}

func TestBook_AccountCommands(t *testing.T) {
	b, _ := newTestBook(t)

	code, err := b.NextCode(accounts.DefaultID("41"))
	require.NoError(t, err)
	a, err := b.AddAccount(model.Account{Code: code, Name: "Exam Fees", Type: model.AccountTypeRevenue, ParentID: accounts.DefaultID("41")})
	require.NoError(t, err)

	name := "Examination Fees"
	_, err = b.UpdateAccount(a.ID, accounts.Patch{Name: &name})
	require.NoError(t, err)
	require.NoError(t, b.LockAccount(a.ID))

	newCode := "4199"
	_, err = b.UpdateAccount(a.ID, accounts.Patch{Code: &newCode})
	assert.ErrorIs(t, err, ledgererr.ErrAccountLocked)

	byCode, ok := b.AccountByCode(code)
	require.True(t, ok)
	assert.Equal(t, "Examination Fees", byCode.Name)
	assert.Len(t, b.ChildAccounts(accounts.DefaultID("41")), 5)
	ar, ok := b.AccountByTag(model.TagStudentAR)
	require.True(t, ok)
	assert.Equal(t, arID, ar.ID)
}

func TestCheckClose_BlocksOnDraft(t *testing.T) {
	b, _ := newTestBook(t)
	_, err := b.AddEntry(journal.AddParams{
		Date: day, Description: "pending", Source: model.SourceManual, CreatedBy: "bursar",
		Lines: []model.JournalLine{model.NewLine(cashID, dec("5"), decimal.Zero, "")},
	})
	require.NoError(t, err)

	report := b.CheckClose()
	assert.False(t, report.Ready())

	_, err = b.Close(CloseParams{Actor: "head", Date: day})
	assert.ErrorIs(t, err, ledgererr.ErrCloseNotReady)
	assert.False(t, b.Closed())
}

func TestClose(t *testing.T) {
	b, st := newTestBook(t)
	seedFees(t, b)
	invoice(t, b, "S1", "S2")
	pay(t, b, "S1", "6500")
	pay(t, b, "S2", "1000")

	res, err := b.Close(CloseParams{Actor: "head", Date: day})
	require.NoError(t, err)
	assert.True(t, res.Closed.Closed)
	assert.Equal(t, "2026", res.Next.YearID)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), res.Next.StartDate)
	assert.True(t, res.Plug.IsZero())
	assert.Equal(t, model.SourceYearOpening, res.OpeningEntry.Source)
	assert.True(t, res.OpeningEntry.IsBalanced)

	next, err := Open(st, store.Key{Tenant: "greenfield", Period: "2026"}, Options{Roster: testRoster()})
	require.NoError(t, err)
	assert.Equal(t, "7500.00", balance(t, next, cashID))
	assert.Equal(t, "5000.00", balance(t, next, arID), "S2 still owes 5000")
	assert.Equal(t, "-500.00", balance(t, next, accounts.DefaultID("2101")), "S1 prepaid 500")
	assert.Equal(t, "-10000.00", balance(t, next, tuitionID))
	assert.Len(t, next.FeeHeads(), 2)
	assert.Empty(t, next.Invoices())

	_, err = b.AddFeeHead(fees.HeadParams{Name: "Late", AccountID: tuitionID})
	assert.ErrorIs(t, err, ledgererr.ErrPeriodClosed)
	_, err = b.Close(CloseParams{Actor: "head"})
	assert.ErrorIs(t, err, ledgererr.ErrPeriodClosed)

	reopened, err := Open(st, b.Key(), Options{Roster: testRoster()})
	require.NoError(t, err)
	assert.True(t, reopened.Closed())
	_, err = reopened.DistributePayment(payments.PaymentParams{StudentID: "S2", Amount: dec("1"), TreasuryID: "cash", Date: day, Actor: "c"})
	assert.ErrorIs(t, err, ledgererr.ErrPeriodClosed)
}

func TestClose_RollIncome(t *testing.T) {
	st := store.NewFileStore(t.TempDir(), nil, nil)
	b, err := Create(st, model.Period{TenantID: "greenfield", YearID: "2025"}, accounts.DefaultChart(), Options{Roster: testRoster(), RollIncomeToPnL: true})
	require.NoError(t, err)
	seedFees(t, b)
	invoice(t, b, "S1")

	_, err = b.Close(CloseParams{Actor: "head", Date: day})
	require.NoError(t, err)

	next, err := Open(st, store.Key{Tenant: "greenfield", Period: "2026"}, Options{Roster: testRoster()})
	require.NoError(t, err)
	assert.Equal(t, "0.00", balance(t, next, tuitionID))
	assert.Equal(t, "-6000.00", balance(t, next, accounts.DefaultID("3103")))
}

func TestClose_NextYearID(t *testing.T) {
	st := store.NewFileStore(t.TempDir(), nil, nil)
	b, err := Create(st, model.Period{TenantID: "greenfield", YearID: "2025-26"}, accounts.DefaultChart(), Options{Roster: testRoster()})
	require.NoError(t, err)

	_, err = b.Close(CloseParams{Actor: "head"})
	assert.ErrorIs(t, err, ledgererr.ErrInvalidInput)
	_, err = b.Close(CloseParams{Actor: "head", NextYearID: "2025-26"})
	assert.ErrorIs(t, err, ledgererr.ErrInvalidInput)

	res, err := b.Close(CloseParams{Actor: "head", NextYearID: "2026-27"})
	require.NoError(t, err)
	assert.Equal(t, "2026-27", res.Next.YearID)
	assert.Empty(t, res.OpeningEntry.ID, "an empty chart carries nothing forward")
}

func TestClose_ProvisionsMissingSystemAccounts(t *testing.T) {
	var chart []model.Account
	for _, a := range accounts.DefaultChart() {
		if a.SystemTag != model.TagRetainedEarnings {
			chart = append(chart, a)
		}
	}
	st := store.NewFileStore(t.TempDir(), nil, nil)
	b, err := Create(st, model.Period{TenantID: "greenfield", YearID: "2025"}, chart, Options{Roster: testRoster()})
	require.NoError(t, err)

	assert.True(t, b.CheckClose().Ready())
	_, err = b.Close(CloseParams{Actor: "head", Date: day})
	require.NoError(t, err)
	_, ok := b.AccountByTag(model.TagRetainedEarnings)
	assert.True(t, ok)
}

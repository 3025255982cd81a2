package payments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bursar/internal/accounts"
	"github.com/cleared-dev/bursar/internal/fees"
	"github.com/cleared-dev/bursar/internal/invoicing"
	"github.com/cleared-dev/bursar/internal/journal"
	"github.com/cleared-dev/bursar/internal/ledgererr"
	"github.com/cleared-dev/bursar/internal/model"
	"github.com/cleared-dev/bursar/internal/roster"
)

var (
	arID    = accounts.DefaultID("1103")
	cashID  = accounts.DefaultID("1101")
	payDate = time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	accts *accounts.Service
	jrn   *journal.Service
	inv   *invoicing.Service
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	accts := accounts.NewService(accounts.DefaultChart(), nil)
	jrn := journal.NewService("2025", nil, accts, nil)
	fs := fees.NewService(fees.Data{}, accts, nil)
	grades := []model.Grade{{ID: "G1", Name: "Grade 1", Order: 1}}

	_, err := fs.AddFeeHead(fees.HeadParams{ID: "tuition", Name: "Tuition", AccountID: accounts.DefaultID("4101"), Priority: 1})
	require.NoError(t, err)
	_, err = fs.AddFeeHead(fees.HeadParams{ID: "books", Name: "Books", AccountID: accounts.DefaultID("4102"), Priority: 2})
	require.NoError(t, err)
	_, err = fs.InitializeYearFees("2025", grades)
	require.NoError(t, err)
	_, err = fs.AddGradeFeeItem("2025", "G1", model.FeeItem{FeeHeadID: "tuition", Amount: dec("5000")})
	require.NoError(t, err)
	_, err = fs.AddGradeFeeItem("2025", "G1", model.FeeItem{FeeHeadID: "books", Amount: dec("1000")})
	require.NoError(t, err)

	r := roster.New(
		[]model.Student{
			{ID: "S1", Name: "Lina", GradeID: "G1", YearID: "2025", Status: model.EnrollmentEnrolled},
			{ID: "S2", Name: "Omar", GradeID: "G1", YearID: "2025", Status: model.EnrollmentEnrolled},
		},
		grades,
		[]model.TreasuryAccount{
			{ID: "cash", Name: "Cash box", AccountID: cashID},
			{ID: "bad", Name: "Misrouted", AccountID: accounts.DefaultID("4101")},
		},
	)

	inv := invoicing.NewService(invoicing.Data{}, invoicing.Deps{Accounts: accts, Fees: fs, Students: r, Journal: jrn}, nil)
	rows, err := inv.Preview(invoicing.PreviewParams{YearID: "2025", GradeID: "G1", StudentIDs: []string{"S1"}})
	require.NoError(t, err)
	_, err = inv.Generate(rows, invoicing.GenerateParams{Actor: "bursar", Date: payDate})
	require.NoError(t, err)

	svc := NewService(Data{}, Deps{Accounts: accts, Invoices: inv, Directory: r, Journal: jrn}, nil)
	svc.now = func() time.Time { return payDate }
	inv.SetAllocationLookup(svc.AllocatedTo)
	return &fixture{accts: accts, jrn: jrn, inv: inv, svc: svc}
}

func (f *fixture) pay(t *testing.T, studentID, amount string) model.Receipt {
	t.Helper()
	r, err := f.svc.DistributePayment(PaymentParams{StudentID: studentID, Amount: dec(amount), TreasuryID: "cash", Date: payDate, Actor: "cashier"})
	require.NoError(t, err)
	return r
}

func (f *fixture) balance(t *testing.T, id string) string {
	t.Helper()
	a, ok := f.accts.Get(id)
	require.True(t, ok)
	return a.Balance.StringFixed(2)
}

func TestDistributePayment_Partial(t *testing.T) {
	f := newFixture(t)

	r := f.pay(t, "S1", "3000")
	assert.Equal(t, 1, r.Number)
	assert.Equal(t, "RCT-000001", DisplayNumber(r))
	require.Len(t, r.Lines, 1)
	assert.Equal(t, "tuition", r.Lines[0].FeeHeadID)
	assert.Equal(t, "3000.00", r.Lines[0].Amount.StringFixed(2))
	assert.True(t, r.Credit().IsZero())

	entry, ok := f.jrn.Get(r.JournalEntryID)
	require.True(t, ok)
	assert.Equal(t, model.SourceReceipts, entry.Source)
	assert.True(t, entry.IsBalanced)
	assert.Equal(t, "3000.00", f.balance(t, cashID))
	assert.Equal(t, "3000.00", f.balance(t, arID))

	out := f.svc.Outstanding("S1")
	require.Len(t, out, 2)
	assert.Equal(t, "2000.00", out[0].Balance.StringFixed(2))
	assert.Equal(t, "3000.00", f.svc.StudentBalance("S1").StringFixed(2))
}

func TestDistributePayment_Overpaid(t *testing.T) {
	f := newFixture(t)

	r := f.pay(t, "S1", "6500")
	require.Len(t, r.Lines, 3)
	assert.Equal(t, "5000.00", r.Lines[0].Amount.StringFixed(2))
	assert.Equal(t, "1000.00", r.Lines[1].Amount.StringFixed(2))
	assert.Equal(t, model.ReceiptLineCredit, r.Lines[2].Kind)
	assert.Equal(t, "500.00", r.Credit().StringFixed(2))

	assert.Empty(t, f.svc.Outstanding("S1"))
	assert.Equal(t, "-500.00", f.svc.StudentBalance("S1").StringFixed(2))
	assert.Equal(t, "-500.00", f.balance(t, arID))
}

func TestDistributePayment_SecondPaymentContinues(t *testing.T) {
	f := newFixture(t)
	f.pay(t, "S1", "4000")
	r := f.pay(t, "S1", "1500")

	assert.Equal(t, 2, r.Number)
	require.Len(t, r.Lines, 2)
	assert.Equal(t, "1000.00", r.Lines[0].Amount.StringFixed(2))
	assert.Equal(t, "books", r.Lines[1].FeeHeadID)
	assert.Equal(t, "500.00", r.Lines[1].Amount.StringFixed(2))

	invs := f.inv.ByStudent("S1")
	require.Len(t, invs, 1)
	assert.Equal(t, "5500.00", f.svc.AllocatedTo(invs[0].ID).StringFixed(2))
	assert.Len(t, f.svc.ReceiptsFor("S1"), 2)
}

func TestDistributePayment_NoInvoiceIsCredit(t *testing.T) {
	f := newFixture(t)
	r := f.pay(t, "S2", "250")
	require.Len(t, r.Lines, 1)
	assert.Equal(t, model.ReceiptLineCredit, r.Lines[0].Kind)
	assert.Equal(t, "-250.00", f.svc.StudentBalance("S2").StringFixed(2))
}

func TestDistributePayment_Errors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		p    PaymentParams
		want error
	}{
		{"zero amount", PaymentParams{StudentID: "S1", TreasuryID: "cash", Date: payDate, Actor: "c"}, ledgererr.ErrInvalidAmount},
		{"three decimals", PaymentParams{StudentID: "S1", Amount: dec("1.005"), TreasuryID: "cash", Date: payDate, Actor: "c"}, ledgererr.ErrInvalidAmount},
		{"no actor", PaymentParams{StudentID: "S1", Amount: dec("10"), TreasuryID: "cash", Date: payDate}, ledgererr.ErrInvalidInput},
		{"unknown student", PaymentParams{StudentID: "S9", Amount: dec("10"), TreasuryID: "cash", Date: payDate, Actor: "c"}, ledgererr.ErrUnknownStudent},
		{"unknown treasury", PaymentParams{StudentID: "S1", Amount: dec("10"), TreasuryID: "vault", Date: payDate, Actor: "c"}, ledgererr.ErrUnknownAccount},
		{"non-asset treasury", PaymentParams{StudentID: "S1", Amount: dec("10"), TreasuryID: "bad", Date: payDate, Actor: "c"}, ledgererr.ErrInvalidAccountReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.DistributePayment(tt.p)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.svc.Receipts())
	assert.Equal(t, "0.00", f.balance(t, cashID))
}

func TestPreview_DoesNotRecord(t *testing.T) {
	f := newFixture(t)
	d, err := f.svc.Preview("S1", dec("6500"))
	require.NoError(t, err)
	assert.Equal(t, "500.00", d.Credit.StringFixed(2))
	assert.Empty(t, f.svc.Receipts())

	_, err = f.svc.Preview("S9", dec("1"))
	assert.ErrorIs(t, err, ledgererr.ErrUnknownStudent)
}

func TestVoidedInvoiceLeavesCredit(t *testing.T) {
	f := newFixture(t)
	f.pay(t, "S1", "2000")
	inv := f.inv.ByStudent("S1")[0]

	res, err := f.inv.Void(inv.ID, invoicing.VoidParams{Reason: "left school", Actor: "bursar"})
	require.NoError(t, err)
	assert.Contains(t, res.Warning, "2000.00")

	assert.Empty(t, f.svc.Outstanding("S1"))
	assert.Equal(t, "-2000.00", f.svc.StudentBalance("S1").StringFixed(2))
	assert.Equal(t, "-2000.00", f.balance(t, arID))
}

func TestBalances(t *testing.T) {
	f := newFixture(t)
	f.pay(t, "S1", "1000")
	f.pay(t, "S2", "50")

	balances := f.svc.Balances()
	require.Len(t, balances, 2)
	assert.Equal(t, "S1", balances[0].StudentID)
	assert.Equal(t, "6000.00", balances[0].Invoiced.StringFixed(2))
	assert.Equal(t, "5000.00", balances[0].Balance.StringFixed(2))
	assert.Equal(t, "-50.00", balances[1].Balance.StringFixed(2))

	reloaded := NewService(f.svc.Data(), f.svc.deps, nil)
	assert.Equal(t, 3, reloaded.NextNumber())
	assert.Equal(t, "5000.00", reloaded.StudentBalance("S1").StringFixed(2))
}

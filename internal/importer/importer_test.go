package importer

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bursar/internal/model"
	"github.com/cleared-dev/bursar/internal/payments"
)

func readChase(t *testing.T) []model.BankDeposit {
	t.Helper()
	f, err := os.Open("testdata/chase_checking.csv")
	require.NoError(t, err)
	defer f.Close()

	deps, err := NewChaseParser("bank").Parse(f)
	require.NoError(t, err)
	return deps
}

func TestChaseParser_KeepsCreditsOnly(t *testing.T) {
	deps := readChase(t)
	require.Len(t, deps, 3)

	assert.Equal(t, "STU-0001", deps[0].StudentID)
	assert.Equal(t, "3000.00", deps[0].Amount.StringFixed(2))
	assert.Equal(t, "bank", deps[0].TreasuryID)
	assert.Equal(t, 2025, deps[0].Date.Year())
	assert.Equal(t, 3, deps[0].Date.Day())

	assert.Equal(t, "STU-0002", deps[1].StudentID, "stu0002 is read as the roster ID")
	assert.Empty(t, deps[2].StudentID, "deposit without a student reference")
}

func TestChaseParser_Reference(t *testing.T) {
	deps := readChase(t)
	assert.Equal(t, "chase_20250103_TUITIONSTU0001TERM1_3000.00", deps[0].Reference)
}

func TestChaseParser_SameDayDepositsGetDistinctReferences(t *testing.T) {
	csv := "Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\n" +
		"CREDIT,09/01/2025,TUITION STU-0042,500.00,ACH_CREDIT,1500.00,\n" +
		"CREDIT,09/01/2025,TUITION STU-0043,700.00,ACH_CREDIT,2200.00,\n"
	deps, err := NewChaseParser("bank").Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, deps, 2)
	assert.NotEqual(t, deps[0].Reference, deps[1].Reference)

	again, err := NewChaseParser("bank").Parse(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, deps[0].Reference, again[0].Reference, "re-reading the export yields the same references")

	payer := &fakePayer{}
	res := Apply(payer, deps, "bursar", nil)
	assert.Len(t, res.Receipts, 2)
	assert.Empty(t, res.Duplicates)
}

func TestFindStudent(t *testing.T) {
	tests := []struct {
		desc, want string
	}{
		{"TUITION STU-0042", "STU-0042"},
		{"tuition stu0042 term 2", "STU-0042"},
		{"Stu-7 fees", "STU-7"},
		{"STUDENT FEES", ""},
		{"CASH DEPOSIT", ""},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			assert.Equal(t, tt.want, findStudent(tt.desc))
		})
	}
}

func TestChaseParser_EmptyFile(t *testing.T) {
	deps, err := NewChaseParser("bank").Parse(strings.NewReader("Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\n"))
	require.NoError(t, err)
	assert.Nil(t, deps)
}

func TestChaseParser_BadRows(t *testing.T) {
	tests := []struct {
		name, row, want string
	}{
		{"bad date", "CREDIT,NOTADATE,desc,4.00,ACH_CREDIT,100.00,", "parsing date"},
		{"bad amount", "CREDIT,01/03/2025,desc,NOTANUMBER,ACH_CREDIT,100.00,", "parsing amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			csv := "Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\n" + tt.row + "\n"
			_, err := NewChaseParser("bank").Parse(strings.NewReader(csv))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDepositParser_Parse(t *testing.T) {
	f, err := os.Open("testdata/deposits.csv")
	require.NoError(t, err)
	defer f.Close()

	deps, err := (&DepositParser{}).Parse(f)
	require.NoError(t, err)
	require.Len(t, deps, 2)
	assert.Equal(t, "STU-0001", deps[0].StudentID)
	assert.Equal(t, "cash", deps[0].TreasuryID)
	assert.Equal(t, "TELLER-0091", deps[0].Reference)
	assert.True(t, deps[1].Amount.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, 2, int(deps[0].Date.Month()))
}

func TestDepositParser_Errors(t *testing.T) {
	p := &DepositParser{}

	_, err := p.Parse(strings.NewReader("when,who,amount,where,ref\n2025-01-01,S1,1,cash,x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected header")

	_, err = p.Parse(strings.NewReader(DepositHeader + "\n01/02/2025,S1,1,cash,x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry("bank")
	assert.NotNil(t, r.Get("deposits"))
	assert.NotNil(t, r.Get("CHASE"))
	assert.Nil(t, r.Get("nonexistent"))

	assert.Panics(t, func() { r.Register(&DepositParser{}) })
}

type fakePayer struct {
	receipts []model.Receipt
	fail     map[string]error
}

func (f *fakePayer) DistributePayment(p payments.PaymentParams) (model.Receipt, error) {
	if err := f.fail[p.StudentID]; err != nil {
		return model.Receipt{}, err
	}
	r := model.Receipt{
		Number:            len(f.receipts) + 1,
		StudentID:         p.StudentID,
		Amount:            p.Amount,
		TreasuryAccountID: p.TreasuryID,
		Reference:         p.Reference,
		CreatedBy:         p.Actor,
	}
	f.receipts = append(f.receipts, r)
	return r, nil
}

func (f *fakePayer) Receipts() []model.Receipt { return f.receipts }

func TestApply(t *testing.T) {
	payer := &fakePayer{fail: map[string]error{"STU-9999": errors.New("unknown student STU-9999")}}
	deposits := []model.BankDeposit{
		{StudentID: "STU-0001", Amount: decimal.NewFromInt(100), TreasuryID: "cash", Reference: "A"},
		{StudentID: "", Amount: decimal.NewFromInt(50), TreasuryID: "cash", Reference: "B"},
		{StudentID: "STU-9999", Amount: decimal.NewFromInt(75), TreasuryID: "cash", Reference: "C"},
		{StudentID: "STU-0001", Amount: decimal.NewFromInt(100), TreasuryID: "cash", Reference: "A"},
	}

	res := Apply(payer, deposits, "importer", nil)
	require.Len(t, res.Receipts, 1)
	assert.Equal(t, "importer", res.Receipts[0].CreatedBy)
	require.Len(t, res.Duplicates, 1)
	require.Len(t, res.Rejected, 2)
	assert.Equal(t, "no student reference", res.Rejected[0].Reason)
	assert.Contains(t, res.Rejected[1].Reason, "unknown student")

	again := Apply(payer, deposits[:1], "importer", nil)
	assert.Empty(t, again.Receipts)
	assert.Len(t, again.Duplicates, 1)
}

func TestScan_FindsCSVs(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.MkdirAll(filepath.Join(importDir, "processed"), 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(importDir, "bank.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "other.txt"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "processed", "old.csv"), []byte("data"), 0o644))

	files, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "bank.csv", files[0].Name)
	assert.EqualValues(t, 4, files[0].Size)
}

func TestScan_EmptyDir(t *testing.T) {
	files, err := Scan(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestMarkProcessed(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.MkdirAll(importDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "bank.csv"), []byte("data"), 0o644))

	require.NoError(t, MarkProcessed(dir, "bank.csv"))

	_, err := os.Stat(filepath.Join(importDir, "bank.csv"))
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(filepath.Join(dir, "import", "processed", "bank.csv"))
	assert.NoError(t, err)
}

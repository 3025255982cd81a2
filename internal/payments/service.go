package payments

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/bursar/internal/id"
	"github.com/cleared-dev/bursar/internal/journal"
	"github.com/cleared-dev/bursar/internal/ledgererr"
	"github.com/cleared-dev/bursar/internal/model"
	"github.com/cleared-dev/bursar/internal/validation"
)

const entity = "receipt"

// InvoiceSource lists the invoices payments are applied to.
type InvoiceSource interface {
	All() []model.Invoice
	Get(invoiceID string) (model.Invoice, bool)
}

// Directory resolves students and treasury accounts.
type Directory interface {
	Student(id string) (model.Student, bool)
	Treasury(id string) (model.TreasuryAccount, bool)
}

// AccountProvider resolves and provisions ledger accounts.
type AccountProvider interface {
	Get(id string) (model.Account, bool)
	IsLeaf(id string) bool
	EnsureSystemAccount(tag model.SystemTag) (string, error)
}

// Poster records journal entries.
type Poster interface {
	Add(p journal.AddParams) (model.JournalEntry, error)
}

// Deps are the collaborators of the payments Service.
type Deps struct {
	Accounts  AccountProvider
	Invoices  InvoiceSource
	Directory Directory
	Journal   Poster
}

// Data is the persisted receipt register.
type Data struct {
	Receipts []model.Receipt `yaml:"receipts"`
}

// Service records receipts for a period. It is not safe for concurrent use.
type Service struct {
	receipts []model.Receipt
	deps     Deps
	log      *zap.Logger
	now      func() time.Time
}

// NewService creates a Service over loaded receipts.
func NewService(data Data, deps Deps, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{deps: deps, log: logger, now: time.Now}
	for _, r := range data.Receipts {
		s.receipts = append(s.receipts, cloneReceipt(r))
	}
	return s
}

// Data returns a copy of the register for persistence.
func (s *Service) Data() Data {
	return Data{Receipts: s.Receipts()}
}

// Outstanding returns the unpaid fee head balances of a student's active
// invoices.
func (s *Service) Outstanding(studentID string) []Outstanding {
	var out []Outstanding
	for _, inv := range s.deps.Invoices.All() {
		if inv.StudentID != studentID || !inv.Posted() {
			continue
		}
		for _, it := range inv.Items {
			bal := it.Net.Sub(s.allocated(inv.ID, it.FeeHeadID))
			if !bal.IsPositive() {
				continue
			}
			out = append(out, Outstanding{
				InvoiceID:     inv.ID,
				InvoiceSerial: inv.Serial,
				FeeHeadID:     it.FeeHeadID,
				FeeHeadName:   it.FeeHeadName,
				Priority:      it.Priority,
				Balance:       bal,
			})
		}
	}
	return out
}

// Preview shows how a payment would be split without recording it.
func (s *Service) Preview(studentID string, amount decimal.Decimal) (Distribution, error) {
	if _, ok := s.deps.Directory.Student(studentID); !ok {
		return Distribution{}, unknownStudent(studentID)
	}
	if err := checkAmount(amount); err != nil {
		return Distribution{}, err
	}
	return Distribute(s.Outstanding(studentID), amount), nil
}

// PaymentParams describes cash received for a student.
type PaymentParams struct {
	StudentID  string    `validate:"required"`
	TreasuryID string    `validate:"required"`
	Date       time.Time `validate:"required"`
	Reference  string    `validate:"max=120"`
	Actor      string    `validate:"required"`
	Amount     decimal.Decimal
}

// DistributePayment allocates a payment, posts a receipts entry debiting the
// treasury account and crediting student receivables, and records the
// receipt. Nothing is recorded if posting fails.
func (s *Service) DistributePayment(p PaymentParams) (model.Receipt, error) {
	if err := validation.Struct(entity, p); err != nil {
		return model.Receipt{}, err
	}
	if err := checkAmount(p.Amount); err != nil {
		return model.Receipt{}, err
	}
	if _, ok := s.deps.Directory.Student(p.StudentID); !ok {
		return model.Receipt{}, unknownStudent(p.StudentID)
	}
	treasury, ok := s.deps.Directory.Treasury(p.TreasuryID)
	if !ok {
		return model.Receipt{}, ledgererr.Newf(ledgererr.KindReferential, ledgererr.ErrUnknownAccount.Code, entity, "", "unknown treasury account %s", p.TreasuryID)
	}
	cash, ok := s.deps.Accounts.Get(treasury.AccountID)
	if !ok || cash.Type != model.AccountTypeAsset || !s.deps.Accounts.IsLeaf(cash.ID) {
		return model.Receipt{}, ledgererr.Newf(ledgererr.KindValidation, ledgererr.ErrInvalidAccountReference.Code, entity, "",
			"treasury %s must map to an asset leaf, got %s", treasury.ID, treasury.AccountID)
	}
	arID, err := s.deps.Accounts.EnsureSystemAccount(model.TagStudentAR)
	if err != nil {
		return model.Receipt{}, ledgererr.Wrap(err, ledgererr.KindReferential, ledgererr.ErrMissingAccount.Code, entity, "", "student receivable account cannot be resolved")
	}

	dist := Distribute(s.Outstanding(p.StudentID), p.Amount)
	r := model.Receipt{
		ID:                uuid.NewString(),
		Number:            s.NextNumber(),
		StudentID:         p.StudentID,
		Date:              p.Date,
		Amount:            p.Amount,
		TreasuryAccountID: treasury.ID,
		Reference:         p.Reference,
		CreatedBy:         p.Actor,
		CreatedAt:         s.now(),
	}
	for _, a := range dist.Allocations {
		r.Lines = append(r.Lines, model.ReceiptLine{
			Kind:          model.ReceiptLineAllocation,
			InvoiceID:     a.InvoiceID,
			InvoiceSerial: a.InvoiceSerial,
			FeeHeadID:     a.FeeHeadID,
			Amount:        a.Amount,
		})
	}
	if dist.Credit.IsPositive() {
		r.Lines = append(r.Lines, model.ReceiptLine{Kind: model.ReceiptLineCredit, Amount: dist.Credit})
	}

	number := DisplayNumber(r)
	entry, err := s.deps.Journal.Add(journal.AddParams{
		Date:        p.Date,
		Description: fmt.Sprintf("Receipt %s from student %s", number, p.StudentID),
		Source:      model.SourceReceipts,
		Reference:   "receipt:" + number,
		CreatedBy:   p.Actor,
		Lines: []model.JournalLine{
			model.NewLine(cash.ID, p.Amount, decimal.Zero, treasury.Name),
			model.NewLine(arID, decimal.Zero, p.Amount, "student receivables"),
		},
	})
	if err != nil {
		return model.Receipt{}, fmt.Errorf("posting receipt %s: %w", number, err)
	}
	r.JournalEntryID = entry.ID

	s.receipts = append(s.receipts, r)
	s.log.Info("payment distributed",
		zap.String("receipt", number),
		zap.String("student_id", p.StudentID),
		zap.String("amount", p.Amount.StringFixed(2)),
		zap.String("credit", dist.Credit.StringFixed(2)),
		zap.Int("allocations", len(dist.Allocations)),
	)
	return cloneReceipt(r), nil
}

// AllocatedTo sums every receipt allocation applied to an invoice.
func (s *Service) AllocatedTo(invoiceID string) decimal.Decimal {
	return s.allocated(invoiceID, "")
}

func (s *Service) allocated(invoiceID, feeHeadID string) decimal.Decimal {
	total := decimal.Zero
	for _, r := range s.receipts {
		for _, l := range r.Lines {
			if l.Kind == model.ReceiptLineAllocation && l.InvoiceID == invoiceID && (feeHeadID == "" || l.FeeHeadID == feeHeadID) {
				total = total.Add(l.Amount)
			}
		}
	}
	return total
}

// Receipts returns every receipt ordered by number.
func (s *Service) Receipts() []model.Receipt {
	return s.filter(func(model.Receipt) bool { return true })
}

// ReceiptsFor returns a student's receipts ordered by number.
func (s *Service) ReceiptsFor(studentID string) []model.Receipt {
	return s.filter(func(r model.Receipt) bool { return r.StudentID == studentID })
}

// NextNumber returns the number the next receipt will get.
func (s *Service) NextNumber() int {
	maxNumber := 0
	for _, r := range s.receipts {
		if r.Number > maxNumber {
			maxNumber = r.Number
		}
	}
	return maxNumber + 1
}

// Balance is what a student owes. A negative Balance is prepaid credit.
type Balance struct {
	StudentID string
	Invoiced  decimal.Decimal
	Paid      decimal.Decimal
	Balance   decimal.Decimal
}

// StudentBalance returns active invoice totals minus receipts for a student.
func (s *Service) StudentBalance(studentID string) decimal.Decimal {
	for _, b := range s.Balances() {
		if b.StudentID == studentID {
			return b.Balance
		}
	}
	return decimal.Zero
}

// Balances returns the balance of every student with an invoice or a
// receipt, ordered by student ID.
func (s *Service) Balances() []Balance {
	byStudent := make(map[string]*Balance)
	get := func(studentID string) *Balance {
		b, ok := byStudent[studentID]
		if !ok {
			b = &Balance{StudentID: studentID, Invoiced: decimal.Zero, Paid: decimal.Zero}
			byStudent[studentID] = b
		}
		return b
	}
	for _, inv := range s.deps.Invoices.All() {
		if inv.Posted() {
			b := get(inv.StudentID)
			b.Invoiced = b.Invoiced.Add(inv.Total)
		}
	}
	for _, r := range s.receipts {
		b := get(r.StudentID)
		b.Paid = b.Paid.Add(r.Amount)
	}

	out := make([]Balance, 0, len(byStudent))
	for _, b := range byStudent {
		b.Balance = b.Invoiced.Sub(b.Paid)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out
}

// DisplayNumber formats a receipt number like "RCT-000001".
func DisplayNumber(r model.Receipt) string {
	return id.FormatSerial(id.PrefixReceipt, r.Number)
}

func (s *Service) filter(keep func(model.Receipt) bool) []model.Receipt {
	var out []model.Receipt
	for _, r := range s.receipts {
		if keep(r) {
			out = append(out, cloneReceipt(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		return ledgererr.Newf(ledgererr.KindValidation, ledgererr.ErrInvalidAmount.Code, entity, "", "amount must be positive with at most two decimals, got %s", amount)
	}
	return nil
}

func unknownStudent(studentID string) error {
	return ledgererr.Newf(ledgererr.KindReferential, ledgererr.ErrUnknownStudent.Code, entity, "", "unknown student %s", studentID)
}

func cloneReceipt(r model.Receipt) model.Receipt {
	r.Lines = append([]model.ReceiptLine(nil), r.Lines...)
	return r
}

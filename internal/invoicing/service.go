// Package invoicing turns grade fee structures into posted student invoices
// and voids them with compensating journal entries.
package invoicing

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/bursar/internal/id"
	"github.com/cleared-dev/bursar/internal/journal"
	"github.com/cleared-dev/bursar/internal/ledgererr"
	"github.com/cleared-dev/bursar/internal/model"
)

const entity = "invoice"

// AccountProvider resolves and provisions ledger accounts.
type AccountProvider interface {
	Get(id string) (model.Account, bool)
	IsLeaf(id string) bool
	EnsureSystemAccount(tag model.SystemTag) (string, error)
}

// FeeCatalog exposes fee heads and grade structures.
type FeeCatalog interface {
	Head(id string) (model.FeeHead, bool)
	Structure(yearID, gradeID string) (model.GradeFeeStructure, bool)
	RevenueAccount(item model.FeeItem) string
}

// StudentDirectory is the roster as seen by invoicing.
type StudentDirectory interface {
	Student(id string) (model.Student, bool)
	Students(yearID, gradeID string) []model.Student
}

// Poster records journal entries.
type Poster interface {
	Add(p journal.AddParams) (model.JournalEntry, error)
}

// Deps are the collaborators of the invoicing Service.
type Deps struct {
	Accounts AccountProvider
	Fees     FeeCatalog
	Students StudentDirectory
	Journal  Poster
}

// Data is the persisted invoice register.
type Data struct {
	Invoices []model.Invoice `yaml:"invoices"`
}

// Service owns the invoice register of a period. It is not safe for
// concurrent use.
type Service struct {
	invoices  []model.Invoice
	deps      Deps
	allocated func(invoiceID string) decimal.Decimal
	log       *zap.Logger
	now       func() time.Time
}

// NewService creates a Service over loaded invoices.
func NewService(data Data, deps Deps, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{deps: deps, log: logger, now: time.Now}
	for _, inv := range data.Invoices {
		s.invoices = append(s.invoices, cloneInvoice(inv))
	}
	return s
}

// SetAllocationLookup lets Void warn about receipts already applied to an
// invoice.
func (s *Service) SetAllocationLookup(fn func(invoiceID string) decimal.Decimal) {
	s.allocated = fn
}

// Data returns a copy of the register for persistence.
func (s *Service) Data() Data {
	return Data{Invoices: s.All()}
}

// Get returns an invoice by ID.
func (s *Service) Get(invoiceID string) (model.Invoice, bool) {
	for _, inv := range s.invoices {
		if inv.ID == invoiceID {
			return cloneInvoice(inv), true
		}
	}
	return model.Invoice{}, false
}

// GetBySerial returns an invoice by serial number.
func (s *Service) GetBySerial(serial int) (model.Invoice, bool) {
	for _, inv := range s.invoices {
		if inv.Serial == serial {
			return cloneInvoice(inv), true
		}
	}
	return model.Invoice{}, false
}

// All returns every invoice ordered by serial.
func (s *Service) All() []model.Invoice {
	return s.filter(func(model.Invoice) bool { return true })
}

// ByStudent returns a student's invoices ordered by serial.
func (s *Service) ByStudent(studentID string) []model.Invoice {
	return s.filter(func(inv model.Invoice) bool { return inv.StudentID == studentID })
}

// ByGrade returns the invoices of a grade in a year ordered by serial.
func (s *Service) ByGrade(yearID, gradeID string) []model.Invoice {
	return s.filter(func(inv model.Invoice) bool { return inv.YearID == yearID && inv.GradeID == gradeID })
}

// ByYear returns the invoices of a year ordered by serial.
func (s *Service) ByYear(yearID string) []model.Invoice {
	return s.filter(func(inv model.Invoice) bool { return inv.YearID == yearID })
}

// Active returns every posted, non-voided invoice.
func (s *Service) Active() []model.Invoice {
	return s.filter(model.Invoice.Posted)
}

// Totals summarises the register.
type Totals struct {
	Count     int
	Voided    int
	Gross     decimal.Decimal
	Discounts decimal.Decimal
	Net       decimal.Decimal
}

// Totals sums gross, discounts and net over active invoices.
func (s *Service) Totals() Totals {
	t := Totals{Gross: decimal.Zero, Discounts: decimal.Zero, Net: decimal.Zero}
	for _, inv := range s.invoices {
		if inv.Voided() {
			t.Voided++
			continue
		}
		t.Count++
		for _, it := range inv.Items {
			t.Gross = t.Gross.Add(it.Amount)
			t.Discounts = t.Discounts.Add(it.DiscountTotal())
		}
		t.Net = t.Net.Add(inv.Total)
	}
	return t
}

// NextSerial returns the serial the next invoice will get.
func (s *Service) NextSerial() int {
	maxSerial := 0
	for _, inv := range s.invoices {
		if inv.Serial > maxSerial {
			maxSerial = inv.Serial
		}
	}
	return maxSerial + 1
}

// EditParams lists the non-financial fields Edit may change.
type EditParams struct {
	DueDate *time.Time
	Notes   *string
}

// Edit changes non-financial fields of an active invoice.
func (s *Service) Edit(invoiceID string, p EditParams) (model.Invoice, error) {
	i, err := s.find(invoiceID)
	if err != nil {
		return model.Invoice{}, err
	}
	inv := &s.invoices[i]
	if inv.Voided() {
		return model.Invoice{}, ledgererr.New(ledgererr.KindStateConflict, ledgererr.ErrAlreadyVoided.Code, entity, invoiceID, "voided invoices cannot be edited")
	}
	if p.DueDate != nil {
		inv.DueDate = *p.DueDate
	}
	if p.Notes != nil {
		inv.Notes = *p.Notes
	}
	return cloneInvoice(*inv), nil
}

// Covering returns the non-voided invoice of a student that already bills
// feeHeadID for term.
func (s *Service) Covering(studentID, feeHeadID string, term int) (model.Invoice, bool) {
	for _, inv := range s.invoices {
		if inv.StudentID == studentID && !inv.Voided() && inv.Covers(feeHeadID, term) {
			return inv, true
		}
	}
	return model.Invoice{}, false
}

// DisplaySerial formats an invoice serial like "INV-000042".
func DisplaySerial(inv model.Invoice) string {
	return id.FormatSerial(id.PrefixInvoice, inv.Serial)
}

func (s *Service) filter(keep func(model.Invoice) bool) []model.Invoice {
	var out []model.Invoice
	for _, inv := range s.invoices {
		if keep(inv) {
			out = append(out, cloneInvoice(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Serial < out[j].Serial })
	return out
}

func (s *Service) find(invoiceID string) (int, error) {
	for i, inv := range s.invoices {
		if inv.ID == invoiceID {
			return i, nil
		}
	}
	return 0, ledgererr.Newf(ledgererr.KindNotFound, ledgererr.ErrNotFound.Code, entity, invoiceID, "invoice %s not found", invoiceID)
}

func (s *Service) newInvoiceID() string {
	return uuid.NewString()
}

func cloneInvoice(inv model.Invoice) model.Invoice {
	items := make([]model.InvoiceItem, len(inv.Items))
	for i, it := range inv.Items {
		it.Discounts = append([]model.AppliedDiscount(nil), it.Discounts...)
		items[i] = it
	}
	inv.Items = items
	if inv.VoidedAt != nil {
		t := *inv.VoidedAt
		inv.VoidedAt = &t
	}
	return inv
}

func serialList(invs []model.Invoice) string {
	names := make([]string, len(invs))
	for i, inv := range invs {
		names[i] = DisplaySerial(inv)
	}
	return strings.Join(names, ", ")
}

func missingAccount(entityID, accountID string, tag model.SystemTag) error {
	msg := fmt.Sprintf("account %s is missing or not postable", accountID)
	if tag != "" {
		msg = fmt.Sprintf("%s account cannot be resolved", tag)
	}
	return ledgererr.New(ledgererr.KindReferential, ledgererr.ErrMissingAccount.Code, entity, entityID, msg)
}

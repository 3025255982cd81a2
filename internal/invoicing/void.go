package invoicing

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/bursar/internal/journal"
	"github.com/cleared-dev/bursar/internal/ledgererr"
	"github.com/cleared-dev/bursar/internal/model"
)

// VoidParams carries who voids and why.
type VoidParams struct {
	Reason string
	Actor  string
	Date   time.Time
}

// VoidResult is the voided invoice plus any warning for the operator.
type VoidResult struct {
	Invoice model.Invoice
	Warning string
}

// Void cancels an invoice and posts the equal-and-opposite journal entry:
// each revenue account debited with its net, the receivable credited with
// the total. Receipts already allocated to the invoice are left in place and
// reported as a warning; they become the student's credit.
func (s *Service) Void(invoiceID string, p VoidParams) (VoidResult, error) {
	i, err := s.find(invoiceID)
	if err != nil {
		return VoidResult{}, err
	}
	inv := s.invoices[i]
	if err := s.checkVoidable(inv, p); err != nil {
		return VoidResult{}, err
	}
	if p.Date.IsZero() {
		p.Date = s.now()
	}

	var reversalID string
	if inv.JournalEntryID != "" && inv.Total.IsPositive() {
		lines, err := s.reversalLines(inv)
		if err != nil {
			return VoidResult{}, err
		}
		entry, err := s.deps.Journal.Add(journal.AddParams{
			Date:        p.Date,
			Description: fmt.Sprintf("Void %s: %s", DisplaySerial(inv), p.Reason),
			Source:      model.SourceInvoices,
			Reference:   "void:" + DisplaySerial(inv),
			CreatedBy:   p.Actor,
			Lines:       lines,
		})
		if err != nil {
			return VoidResult{}, fmt.Errorf("posting void of %s: %w", DisplaySerial(inv), err)
		}
		reversalID = entry.ID
	}

	at := p.Date
	cur := &s.invoices[i]
	cur.State = model.StateVoided
	cur.VoidReason = p.Reason
	cur.VoidedAt = &at
	cur.VoidedBy = p.Actor
	cur.ReversalEntryID = reversalID

	res := VoidResult{Invoice: cloneInvoice(*cur)}
	if s.allocated != nil {
		if paid := s.allocated(inv.ID); paid.IsPositive() {
			res.Warning = fmt.Sprintf("%s of receipts were allocated to %s and now count as student credit", paid.StringFixed(2), DisplaySerial(inv))
		}
	}
	s.log.Info("invoice voided", zap.String("invoice_id", inv.ID), zap.Int("serial", inv.Serial), zap.String("reversal_id", reversalID))
	return res, nil
}

func (s *Service) checkVoidable(inv model.Invoice, p VoidParams) error {
	if inv.Voided() {
		return ledgererr.Newf(ledgererr.KindStateConflict, ledgererr.ErrAlreadyVoided.Code, entity, inv.ID, "%s is already voided", DisplaySerial(inv))
	}
	if !model.CanTransition(inv.State, model.StateVoided) {
		return ledgererr.Newf(ledgererr.KindStateConflict, ledgererr.ErrInvalidTransition.Code, entity, inv.ID, "cannot void from %s", inv.State)
	}
	if strings.TrimSpace(p.Reason) == "" || strings.TrimSpace(p.Actor) == "" {
		return ledgererr.New(ledgererr.KindValidation, ledgererr.ErrInvalidInput.Code, entity, inv.ID, "voiding requires an actor and a reason")
	}
	return nil
}

func (s *Service) reversalLines(inv model.Invoice) ([]model.JournalLine, error) {
	arID, err := s.deps.Accounts.EnsureSystemAccount(model.TagStudentAR)
	if err != nil {
		return nil, missingAccount(inv.ID, "", model.TagStudentAR)
	}
	debits := make(map[string]decimal.Decimal)
	for _, it := range inv.Items {
		if !it.Net.IsPositive() {
			continue
		}
		if _, ok := s.deps.Accounts.Get(it.RevenueAccountID); !ok || !s.deps.Accounts.IsLeaf(it.RevenueAccountID) {
			return nil, missingAccount(inv.ID, it.RevenueAccountID, "")
		}
		debits[it.RevenueAccountID] = debits[it.RevenueAccountID].Add(it.Net)
	}
	var lines []model.JournalLine
	for _, acct := range sortedKeys(debits) {
		lines = append(lines, model.NewLine(acct, debits[acct], decimal.Zero, "fee revenue reversed"))
	}
	lines = append(lines, model.NewLine(arID, decimal.Zero, inv.Total, "student receivables reversed"))
	return lines, nil
}

// ReissueParams adjusts what replaces the voided invoices.
type ReissueParams struct {
	Percentage decimal.Decimal
	DueDate    time.Time
}

// ReissueResult reports both halves of a void-and-reissue.
type ReissueResult struct {
	Voided    []model.Invoice
	Generated GenerateResult
	Warnings  []string
}

// VoidAndReissue voids every listed invoice, then re-bills each one's student
// for that invoice's fee heads and term at the adjusted percentage. All invoices
// are checked before any is voided. If re-billing fails, the error is
// ReissueIncomplete and names the invoices that were voided without a
// replacement.
func (s *Service) VoidAndReissue(invoiceIDs []string, void VoidParams, p ReissueParams) (ReissueResult, error) {
	var res ReissueResult
	if len(invoiceIDs) == 0 {
		return res, ledgererr.New(ledgererr.KindValidation, ledgererr.ErrInvalidInput.Code, entity, "", "no invoices given")
	}
	if void.Date.IsZero() {
		void.Date = s.now()
	}
	targets := make([]model.Invoice, 0, len(invoiceIDs))
	for _, invoiceID := range invoiceIDs {
		inv, ok := s.Get(invoiceID)
		if !ok {
			return res, ledgererr.Newf(ledgererr.KindNotFound, ledgererr.ErrNotFound.Code, entity, invoiceID, "invoice %s not found", invoiceID)
		}
		if err := s.checkVoidable(inv, void); err != nil {
			return res, err
		}
		targets = append(targets, inv)
	}

	for _, inv := range targets {
		vr, err := s.Void(inv.ID, void)
		if err != nil {
			if len(res.Voided) == 0 {
				return res, err
			}
			return res, s.incomplete(res.Voided, err)
		}
		res.Voided = append(res.Voided, vr.Invoice)
		if vr.Warning != "" {
			res.Warnings = append(res.Warnings, vr.Warning)
		}
	}

	// Each voided invoice is re-billed on its own so a student only gets back
	// the fee heads that invoice carried.
	for _, inv := range res.Voided {
		pp := PreviewParams{
			YearID:     inv.YearID,
			GradeID:    inv.GradeID,
			Term:       inv.Term,
			Percentage: p.Percentage,
			DueDate:    p.DueDate,
			StudentIDs: []string{inv.StudentID},
		}
		for _, it := range inv.Items {
			pp.FeeHeadIDs = appendUnique(pp.FeeHeadIDs, it.FeeHeadID)
		}
		if pp.DueDate.IsZero() {
			pp.DueDate = inv.DueDate
		}
		rows, err := s.Preview(pp)
		if err != nil {
			return res, s.incomplete(s.unreplaced(res), err)
		}
		gen, err := s.Generate(rows, GenerateParams{Actor: void.Actor, Date: void.Date, Notes: "reissue: " + void.Reason})
		if err != nil {
			return res, s.incomplete(s.unreplaced(res), err)
		}
		res.Generated.Invoices = append(res.Generated.Invoices, gen.Invoices...)
		res.Generated.Skipped = append(res.Generated.Skipped, gen.Skipped...)
		res.Generated.Failures = append(res.Generated.Failures, gen.Failures...)
		if gen.JournalEntryID != "" {
			res.Generated.JournalEntryID = gen.JournalEntryID
		}
	}

	if missing := s.unreplaced(res); len(missing) > 0 {
		return res, s.incomplete(missing, nil)
	}
	return res, nil
}

// unreplaced returns voided invoices whose student got no new invoice.
func (s *Service) unreplaced(res ReissueResult) []model.Invoice {
	reissued := make(map[string]bool)
	for _, inv := range res.Generated.Invoices {
		reissued[inv.StudentID] = true
	}
	var out []model.Invoice
	for _, inv := range res.Voided {
		if !reissued[inv.StudentID] {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Serial < out[j].Serial })
	return out
}

func (s *Service) incomplete(voided []model.Invoice, cause error) error {
	msg := "voided but not reissued: " + serialList(voided)
	s.log.Warn("reissue incomplete", zap.String("invoices", serialList(voided)), zap.Error(cause))
	if cause == nil {
		return ledgererr.New(ledgererr.KindStateConflict, ledgererr.ErrReissueIncomplete.Code, entity, "", msg)
	}
	return ledgererr.Wrap(cause, ledgererr.KindStateConflict, ledgererr.ErrReissueIncomplete.Code, entity, "", msg)
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

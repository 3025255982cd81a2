package invoicing

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/bursar/internal/discount"
	"github.com/cleared-dev/bursar/internal/journal"
	"github.com/cleared-dev/bursar/internal/ledgererr"
	"github.com/cleared-dev/bursar/internal/model"
	"github.com/cleared-dev/bursar/internal/validation"
)

var hundred = decimal.NewFromInt(100)

// PreviewParams selects what a batch bills.
type PreviewParams struct {
	YearID     string `yaml:"year_id" validate:"required"`
	GradeID    string `yaml:"grade_id" validate:"required"`
	Term       int    `yaml:"term" validate:"gte=0,lte=2"`
	Percentage decimal.Decimal
	DueDate    time.Time
	StudentIDs []string // empty = every enrolled student of the grade
	FeeHeadIDs []string // empty = every active item of the structure
}

// PreviewRow is what one student would be invoiced.
type PreviewRow struct {
	StudentID   string
	StudentName string
	YearID      string
	GradeID     string
	Term        int
	Percentage  decimal.Decimal
	DueDate     time.Time
	Items       []model.InvoiceItem
	Total       decimal.Decimal
	Skipped     bool
	SkipReason  string
}

// Preview computes a batch without changing anything. Rows are ordered by
// student ID; a row is skipped when the student is not enrolled, has nothing
// to bill, or already has a live invoice for any of the fee heads and term.
func (s *Service) Preview(p PreviewParams) ([]PreviewRow, error) {
	if err := validation.Struct(entity, p); err != nil {
		return nil, err
	}
	if p.Percentage.IsZero() {
		p.Percentage = hundred
	}
	if p.Percentage.IsNegative() || p.Percentage.GreaterThan(hundred) {
		return nil, ledgererr.Newf(ledgererr.KindValidation, ledgererr.ErrInvalidInput.Code, entity, "", "percentage %s must be within (0, 100]", p.Percentage)
	}
	structure, ok := s.deps.Fees.Structure(p.YearID, p.GradeID)
	if !ok {
		return nil, ledgererr.Newf(ledgererr.KindStateConflict, ledgererr.ErrStructureNotSeeded.Code, entity, "", "no fee structure for grade %s in %s", p.GradeID, p.YearID)
	}

	students, err := s.selectStudents(p)
	if err != nil {
		return nil, err
	}

	rows := make([]PreviewRow, 0, len(students))
	for _, student := range students {
		rows = append(rows, s.previewRow(p, structure, student))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].StudentID < rows[j].StudentID })
	return rows, nil
}

func (s *Service) selectStudents(p PreviewParams) ([]model.Student, error) {
	if len(p.StudentIDs) == 0 {
		var out []model.Student
		for _, st := range s.deps.Students.Students(p.YearID, p.GradeID) {
			if st.Enrolled() {
				out = append(out, st)
			}
		}
		return out, nil
	}
	out := make([]model.Student, 0, len(p.StudentIDs))
	for _, sid := range p.StudentIDs {
		st, ok := s.deps.Students.Student(sid)
		if !ok {
			return nil, ledgererr.Newf(ledgererr.KindReferential, ledgererr.ErrUnknownStudent.Code, entity, "", "unknown student %s", sid)
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *Service) previewRow(p PreviewParams, st model.GradeFeeStructure, student model.Student) PreviewRow {
	row := PreviewRow{
		StudentID:   student.ID,
		StudentName: student.Name,
		YearID:      p.YearID,
		GradeID:     p.GradeID,
		Term:        p.Term,
		Percentage:  p.Percentage,
		DueDate:     p.DueDate,
		Total:       decimal.Zero,
	}
	if !student.Enrolled() {
		row.Skipped, row.SkipReason = true, fmt.Sprintf("student is %s", student.Status)
		return row
	}

	wanted := make(map[string]bool, len(p.FeeHeadIDs))
	for _, h := range p.FeeHeadIDs {
		wanted[h] = true
	}
	for _, item := range st.Items {
		if len(wanted) > 0 && !wanted[item.FeeHeadID] {
			continue
		}
		head, ok := s.deps.Fees.Head(item.FeeHeadID)
		if !ok || head.State != model.StateActive {
			continue
		}
		gross := item.Amount.Mul(item.TermShare(p.Term)).Mul(p.Percentage).Div(hundred).Round(2)
		if !gross.IsPositive() {
			continue
		}
		res := discount.Apply(gross, discount.ForFeeHead(student.Discounts, item.FeeHeadID))
		row.Items = append(row.Items, model.InvoiceItem{
			FeeHeadID:        head.ID,
			FeeHeadName:      head.Name,
			Priority:         head.Priority,
			Amount:           res.Gross,
			RevenueAccountID: s.deps.Fees.RevenueAccount(item),
			Discounts:        res.Applied,
			Net:              res.Net,
		})
		row.Total = row.Total.Add(res.Net)
	}
	sort.SliceStable(row.Items, func(i, j int) bool {
		if row.Items[i].Priority != row.Items[j].Priority {
			return row.Items[i].Priority < row.Items[j].Priority
		}
		return row.Items[i].FeeHeadID < row.Items[j].FeeHeadID
	})

	if len(row.Items) == 0 {
		row.Skipped, row.SkipReason = true, "nothing to invoice"
		return row
	}
	if reason, covered := s.coverage(student.ID, row.Items, p.Term); covered {
		row.Skipped, row.SkipReason = true, reason
	}
	return row
}

func (s *Service) coverage(studentID string, items []model.InvoiceItem, term int) (string, bool) {
	for _, it := range items {
		if inv, ok := s.Covering(studentID, it.FeeHeadID, term); ok {
			return fmt.Sprintf("%s already invoiced on %s", it.FeeHeadName, DisplaySerial(inv)), true
		}
	}
	return "", false
}

// Failure names a student that was left out of a batch.
type Failure struct {
	StudentID string
	Reason    string
}

// GenerateResult reports what a batch produced.
type GenerateResult struct {
	Invoices       []model.Invoice
	JournalEntryID string
	Skipped        []PreviewRow
	Failures       []Failure
}

// Total is the sum of generated invoice totals.
func (r GenerateResult) Total() decimal.Decimal {
	total := decimal.Zero
	for _, inv := range r.Invoices {
		total = total.Add(inv.Total)
	}
	return total
}

// GenerateParams carries the batch metadata.
type GenerateParams struct {
	Actor string    `validate:"required"`
	Date  time.Time `validate:"required"`
	Notes string
}

// Generate invoices the non-skipped rows of a preview and posts one
// consolidated journal entry: receivable debited with the batch total, each
// revenue account credited with its share. Invoices are recorded only after
// the entry is posted. Coverage is re-checked, so generating the same batch
// twice yields no duplicates.
func (s *Service) Generate(rows []PreviewRow, p GenerateParams) (GenerateResult, error) {
	var res GenerateResult
	if err := validation.Struct(entity, p); err != nil {
		return res, err
	}

	var pending []PreviewRow
	seen := make(map[string]bool)
	for _, row := range rows {
		if row.Skipped {
			res.Skipped = append(res.Skipped, row)
			continue
		}
		if reason, covered := s.coverage(row.StudentID, row.Items, row.Term); covered || seen[row.StudentID] {
			if !covered {
				reason = "student appears twice in batch"
			}
			row.Skipped, row.SkipReason = true, reason
			res.Skipped = append(res.Skipped, row)
			continue
		}
		seen[row.StudentID] = true
		pending = append(pending, row)
	}
	if len(pending) == 0 {
		s.log.Info("invoice batch had nothing to generate", zap.Int("skipped", len(res.Skipped)))
		return res, nil
	}

	arID, err := s.deps.Accounts.EnsureSystemAccount(model.TagStudentAR)
	if err != nil {
		return res, ledgererr.Wrap(err, ledgererr.KindReferential, ledgererr.ErrMissingAccount.Code, entity, "", "student receivable account cannot be resolved")
	}

	serial := s.NextSerial()
	credits := make(map[string]decimal.Decimal)
	total := decimal.Zero
	for _, row := range pending {
		if reason := s.checkRevenueAccounts(row.Items); reason != "" {
			res.Failures = append(res.Failures, Failure{StudentID: row.StudentID, Reason: reason})
			continue
		}
		inv := model.Invoice{
			ID:          s.newInvoiceID(),
			Serial:      serial,
			StudentID:   row.StudentID,
			StudentName: row.StudentName,
			YearID:      row.YearID,
			GradeID:     row.GradeID,
			Term:        row.Term,
			Percentage:  row.Percentage,
			DueDate:     row.DueDate,
			IssuedAt:    p.Date,
			IssuedBy:    p.Actor,
			Items:       row.Items,
			State:       model.StateActive,
			Notes:       p.Notes,
		}
		inv = cloneInvoice(inv)
		inv.Recalculate()
		for _, it := range inv.Items {
			if it.Net.IsPositive() {
				credits[it.RevenueAccountID] = credits[it.RevenueAccountID].Add(it.Net)
			}
		}
		total = total.Add(inv.Total)
		res.Invoices = append(res.Invoices, inv)
		serial++
	}
	if len(res.Invoices) == 0 {
		return res, nil
	}

	if total.IsPositive() {
		lines := []model.JournalLine{model.NewLine(arID, total, decimal.Zero, "student receivables")}
		for _, acct := range sortedKeys(credits) {
			lines = append(lines, model.NewLine(acct, decimal.Zero, credits[acct], "fee revenue"))
		}
		first, last := res.Invoices[0], res.Invoices[len(res.Invoices)-1]
		entry, err := s.deps.Journal.Add(journal.AddParams{
			Date:        p.Date,
			Description: fmt.Sprintf("Invoices %s to %s", DisplaySerial(first), DisplaySerial(last)),
			Source:      model.SourceInvoices,
			Reference:   "invoices:" + DisplaySerial(first),
			CreatedBy:   p.Actor,
			Lines:       lines,
		})
		if err != nil {
			return GenerateResult{Skipped: res.Skipped, Failures: res.Failures}, fmt.Errorf("posting invoice batch: %w", err)
		}
		res.JournalEntryID = entry.ID
		for i := range res.Invoices {
			if res.Invoices[i].Total.IsPositive() {
				res.Invoices[i].JournalEntryID = entry.ID
			}
		}
	}

	for _, inv := range res.Invoices {
		s.invoices = append(s.invoices, cloneInvoice(inv))
	}
	s.log.Info("invoice batch generated",
		zap.Int("invoices", len(res.Invoices)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Int("failures", len(res.Failures)),
		zap.String("total", total.StringFixed(2)),
	)
	return res, nil
}

func (s *Service) checkRevenueAccounts(items []model.InvoiceItem) string {
	var bad []string
	for _, it := range items {
		if !it.Net.IsPositive() {
			continue
		}
		a, ok := s.deps.Accounts.Get(it.RevenueAccountID)
		if !ok || a.Type != model.AccountTypeRevenue || !s.deps.Accounts.IsLeaf(a.ID) {
			bad = append(bad, fmt.Sprintf("%s (%s)", it.FeeHeadName, it.RevenueAccountID))
		}
	}
	if len(bad) == 0 {
		return ""
	}
	return "revenue account cannot be resolved for " + strings.Join(bad, ", ")
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package journal

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cleared-dev/bursar/internal/accounts"
	"github.com/cleared-dev/bursar/internal/id"
	"github.com/cleared-dev/bursar/internal/ledgererr"
	"github.com/cleared-dev/bursar/internal/model"
	"github.com/cleared-dev/bursar/internal/validation"
)

const entity = "journal_entry"

// Chart is the part of the chart of accounts the journal posts to.
type Chart interface {
	AccountChecker
	PostTransactions(txns []accounts.Transaction) error
}

// Service provides business logic for journal entries of one period. It is
// not safe for concurrent use.
type Service struct {
	yearID  string
	entries []model.JournalEntry
	index   map[string]int
	chart   Chart
	log     *zap.Logger
	now     func() time.Time
}

// NewService creates a journal Service over already-loaded entries.
func NewService(yearID string, entries []model.JournalEntry, chart Chart, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		yearID:  yearID,
		entries: make([]model.JournalEntry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
		chart:   chart,
		log:     logger,
		now:     time.Now,
	}
	for _, e := range entries {
		e = e.Clone()
		e.Recalculate()
		s.index[e.ID] = len(s.entries)
		s.entries = append(s.entries, e)
	}
	return s
}

// AddParams holds parameters for creating a journal entry.
type AddParams struct {
	Date        time.Time `validate:"required"`
	Description string    `validate:"required,max=500"`
	Source      model.EntrySource
	Reference   string
	CreatedBy   string `validate:"required"`
	Lines       []model.JournalLine
}

// Add creates an entry. Manual entries start as DRAFT. Entries from any
// other source start POSTED and their balances are applied immediately.
func (s *Service) Add(p AddParams) (model.JournalEntry, error) {
	if err := validation.Struct(entity, p); err != nil {
		return model.JournalEntry{}, err
	}
	if !p.Source.IsValid() {
		return model.JournalEntry{}, ledgererr.Newf(ledgererr.KindValidation, ledgererr.ErrInvalidSource.Code, entity, "", "unknown source %q", p.Source)
	}

	e := model.JournalEntry{
		ID:          uuid.NewString(),
		Number:      s.NextNumber(),
		Date:        p.Date,
		Description: p.Description,
		Source:      p.Source,
		Reference:   p.Reference,
		Status:      p.Source.InitialStatus(),
		CreatedBy:   p.CreatedBy,
		CreatedAt:   s.now(),
		Lines:       append([]model.JournalLine(nil), p.Lines...),
	}
	e.Recalculate()
	if err := s.checkLines(e); err != nil {
		return model.JournalEntry{}, err
	}

	if e.Status == model.StatusPosted {
		if !e.IsBalanced {
			return model.JournalEntry{}, unbalanced(e)
		}
		if err := s.chart.PostTransactions(deltas(e, false)); err != nil {
			return model.JournalEntry{}, err
		}
		e.Applied = true
	}

	s.insert(e)
	s.log.Info("journal entry added",
		zap.String("entry_id", e.ID),
		zap.String("number", s.DisplayNumber(e)),
		zap.String("source", string(e.Source)),
		zap.String("status", string(e.Status)),
	)
	return e.Clone(), nil
}

// UpdateParams lists the fields of a draft that may change. Nil pointers and
// a nil Lines slice leave the current value alone.
type UpdateParams struct {
	Date        *time.Time
	Description *string
	Reference   *string
	Lines       []model.JournalLine
}

// Update edits a DRAFT entry.
func (s *Service) Update(entryID string, p UpdateParams) (model.JournalEntry, error) {
	i, err := s.find(entryID)
	if err != nil {
		return model.JournalEntry{}, err
	}
	cur := s.entries[i]
	if !cur.Status.CanEdit() {
		return model.JournalEntry{}, ledgererr.Newf(ledgererr.KindStateConflict, ledgererr.ErrCannotEditNonDraft.Code, entity, entryID, "entry is %s", cur.Status)
	}

	next := cur.Clone()
	if p.Date != nil {
		next.Date = *p.Date
	}
	if p.Description != nil {
		if strings.TrimSpace(*p.Description) == "" {
			return model.JournalEntry{}, ledgererr.New(ledgererr.KindValidation, ledgererr.ErrInvalidInput.Code, entity, entryID, "description is required")
		}
		next.Description = *p.Description
	}
	if p.Reference != nil {
		next.Reference = *p.Reference
	}
	if p.Lines != nil {
		next.Lines = append([]model.JournalLine(nil), p.Lines...)
	}
	next.Recalculate()
	if err := s.checkLines(next); err != nil {
		return model.JournalEntry{}, err
	}

	s.entries[i] = next
	return next.Clone(), nil
}

// Post submits a DRAFT entry for approval.
func (s *Service) Post(entryID string) (model.JournalEntry, error) {
	i, err := s.find(entryID)
	if err != nil {
		return model.JournalEntry{}, err
	}
	e := &s.entries[i]
	if !e.Status.CanPost() {
		return model.JournalEntry{}, ledgererr.Newf(ledgererr.KindStateConflict, ledgererr.ErrNotDraft.Code, entity, entryID, "entry is %s", e.Status)
	}
	e.Status = model.StatusPosted
	s.log.Info("journal entry posted", zap.String("entry_id", e.ID))
	return e.Clone(), nil
}

// Approve moves a POSTED entry to APPROVED and applies its balances unless
// they were applied when it was created.
func (s *Service) Approve(entryID, approvedBy string) (model.JournalEntry, error) {
	i, err := s.find(entryID)
	if err != nil {
		return model.JournalEntry{}, err
	}
	e := &s.entries[i]
	if !e.Status.CanDecide() {
		return model.JournalEntry{}, ledgererr.Newf(ledgererr.KindStateConflict, ledgererr.ErrNotPosted.Code, entity, entryID, "entry is %s", e.Status)
	}
	if strings.TrimSpace(approvedBy) == "" {
		return model.JournalEntry{}, ledgererr.New(ledgererr.KindValidation, ledgererr.ErrInvalidInput.Code, entity, entryID, "approver is required")
	}
	e.Recalculate()
	if !e.IsBalanced {
		return model.JournalEntry{}, unbalanced(*e)
	}
	for n, l := range e.Lines {
		if !s.chart.Exists(l.AccountID) {
			return model.JournalEntry{}, ledgererr.Newf(ledgererr.KindReferential, ledgererr.ErrUnknownAccount.Code, entity, entryID, "line %d: unknown account %s", n+1, l.AccountID)
		}
	}
	if !e.Applied {
		if err := s.chart.PostTransactions(deltas(*e, false)); err != nil {
			return model.JournalEntry{}, err
		}
		e.Applied = true
	}

	at := s.now()
	e.Status = model.StatusApproved
	e.ApprovedBy = approvedBy
	e.ApprovedAt = &at
	s.log.Info("journal entry approved", zap.String("entry_id", e.ID), zap.String("approved_by", approvedBy))
	return e.Clone(), nil
}

// Reject moves a POSTED entry to REJECTED. Balances applied at creation are
// reversed.
func (s *Service) Reject(entryID, rejectedBy, reason string) (model.JournalEntry, error) {
	i, err := s.find(entryID)
	if err != nil {
		return model.JournalEntry{}, err
	}
	e := &s.entries[i]
	if !e.Status.CanDecide() {
		return model.JournalEntry{}, ledgererr.Newf(ledgererr.KindStateConflict, ledgererr.ErrNotPosted.Code, entity, entryID, "entry is %s", e.Status)
	}
	if strings.TrimSpace(reason) == "" || strings.TrimSpace(rejectedBy) == "" {
		return model.JournalEntry{}, ledgererr.New(ledgererr.KindValidation, ledgererr.ErrInvalidInput.Code, entity, entryID, "rejecting requires an actor and a reason")
	}
	if e.Applied {
		if err := s.chart.PostTransactions(deltas(*e, true)); err != nil {
			return model.JournalEntry{}, err
		}
		e.Applied = false
	}

	at := s.now()
	e.Status = model.StatusRejected
	e.RejectedBy = rejectedBy
	e.RejectedAt = &at
	e.RejectReason = reason
	s.log.Info("journal entry rejected", zap.String("entry_id", e.ID), zap.String("rejected_by", rejectedBy))
	return e.Clone(), nil
}

// Delete never removes an entry. Mistakes are corrected with Reject or
// Reverse.
func (s *Service) Delete(entryID string) error {
	if _, err := s.find(entryID); err != nil {
		return err
	}
	return ledgererr.New(ledgererr.KindIrrecoverable, ledgererr.ErrNoDeletion.Code, entity, entryID, "journal entries cannot be deleted; reverse them instead")
}

// ReverseParams describes an offsetting entry.
type ReverseParams struct {
	Date        time.Time
	Description string
	Reference   string
	Actor       string
}

// Reverse posts an entry with every line's sides swapped. Only entries whose
// balances are applied (APPROVED, or POSTED by a system source) qualify.
func (s *Service) Reverse(entryID string, p ReverseParams) (model.JournalEntry, error) {
	i, err := s.find(entryID)
	if err != nil {
		return model.JournalEntry{}, err
	}
	orig := s.entries[i]
	if !orig.Applied || (orig.Status != model.StatusApproved && orig.Status != model.StatusPosted) {
		return model.JournalEntry{}, ledgererr.Newf(ledgererr.KindStateConflict, ledgererr.ErrNotApproved.Code, entity, entryID, "entry is %s and not applied", orig.Status)
	}
	if strings.TrimSpace(p.Actor) == "" {
		return model.JournalEntry{}, ledgererr.New(ledgererr.KindValidation, ledgererr.ErrInvalidInput.Code, entity, entryID, "actor is required")
	}
	if p.Date.IsZero() {
		p.Date = s.now()
	}
	if p.Description == "" {
		p.Description = "Reversal of " + s.DisplayNumber(orig)
	}
	if p.Reference == "" {
		p.Reference = orig.Reference
	}

	lines := make([]model.JournalLine, len(orig.Lines))
	for j, l := range orig.Lines {
		lines[j] = model.NewLine(l.AccountID, l.Credit, l.Debit, l.Note)
	}
	rev := model.JournalEntry{
		ID:          uuid.NewString(),
		Number:      s.NextNumber(),
		Date:        p.Date,
		Description: p.Description,
		Source:      orig.Source,
		Reference:   p.Reference,
		Status:      model.StatusPosted,
		CreatedBy:   p.Actor,
		CreatedAt:   s.now(),
		Lines:       lines,
	}
	rev.Recalculate()
	if err := s.chart.PostTransactions(deltas(rev, false)); err != nil {
		return model.JournalEntry{}, err
	}
	rev.Applied = true

	s.insert(rev)
	s.log.Info("journal entry reversed", zap.String("entry_id", orig.ID), zap.String("reversal_id", rev.ID))
	return rev.Clone(), nil
}

// Get returns an entry by ID.
func (s *Service) Get(entryID string) (model.JournalEntry, bool) {
	i, ok := s.index[entryID]
	if !ok {
		return model.JournalEntry{}, false
	}
	return s.entries[i].Clone(), true
}

// GetByNumber returns an entry by its sequence number.
func (s *Service) GetByNumber(n int) (model.JournalEntry, bool) {
	for _, e := range s.entries {
		if e.Number == n {
			return e.Clone(), true
		}
	}
	return model.JournalEntry{}, false
}

// All returns every entry ordered by number.
func (s *Service) All() []model.JournalEntry {
	return s.List(Filter{})
}

// Filter narrows List. Zero values match everything; From and To are
// inclusive dates.
type Filter struct {
	From      time.Time
	To        time.Time
	Status    model.EntryStatus
	Source    model.EntrySource
	AccountID string
	Reference string
	Text      string
}

func (f Filter) match(e model.JournalEntry) bool {
	if !f.From.IsZero() && e.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Date.After(f.To) {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.Source != "" && e.Source != f.Source {
		return false
	}
	if f.Reference != "" && e.Reference != f.Reference {
		return false
	}
	if f.AccountID != "" {
		found := false
		for _, l := range e.Lines {
			if l.AccountID == f.AccountID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Text != "" {
		text := strings.ToLower(f.Text)
		if !strings.Contains(strings.ToLower(e.Description), text) && !strings.Contains(strings.ToLower(e.Reference), text) {
			return false
		}
	}
	return true
}

// List returns the entries matching f ordered by number.
func (s *Service) List(f Filter) []model.JournalEntry {
	var out []model.JournalEntry
	for _, e := range s.entries {
		if f.match(e) {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Drafts returns every DRAFT entry.
func (s *Service) Drafts() []model.JournalEntry {
	return s.List(Filter{Status: model.StatusDraft})
}

// UnbalancedPosted returns POSTED entries whose debits and credits differ.
func (s *Service) UnbalancedPosted() []model.JournalEntry {
	var out []model.JournalEntry
	for _, e := range s.List(Filter{Status: model.StatusPosted}) {
		if !e.IsBalanced {
			out = append(out, e)
		}
	}
	return out
}

// Check runs ValidateJournal over the period.
func (s *Service) Check() []ValidationError {
	return ValidateJournal(s.entries, s.chart)
}

// NextNumber returns the next available sequence number.
func (s *Service) NextNumber() int {
	maxNum := 0
	for _, e := range s.entries {
		if e.Number > maxNum {
			maxNum = e.Number
		}
	}
	return maxNum + 1
}

// DisplayNumber formats an entry number like "JV-2025-0001".
func (s *Service) DisplayNumber(e model.JournalEntry) string {
	return id.FormatEntryNumber(s.yearID, e.Number)
}

// YearID returns the period this journal belongs to.
func (s *Service) YearID() string {
	return s.yearID
}

func (s *Service) insert(e model.JournalEntry) {
	s.index[e.ID] = len(s.entries)
	s.entries = append(s.entries, e)
}

func (s *Service) find(entryID string) (int, error) {
	i, ok := s.index[entryID]
	if !ok {
		return 0, ledgererr.Newf(ledgererr.KindNotFound, ledgererr.ErrNotFound.Code, entity, entryID, "entry %s not found", entryID)
	}
	return i, nil
}

// checkLines rejects empty entries, lines that miss a postable account and
// amounts that cannot be booked.
func (s *Service) checkLines(e model.JournalEntry) error {
	if len(e.Lines) == 0 {
		return ledgererr.New(ledgererr.KindValidation, ledgererr.ErrEmptyEntry.Code, entity, e.ID, "entry has no lines")
	}
	for i, l := range e.Lines {
		switch {
		case !s.chart.Exists(l.AccountID):
			return ledgererr.Newf(ledgererr.KindReferential, ledgererr.ErrUnknownAccount.Code, entity, e.ID, "line %d: unknown account %s", i+1, l.AccountID)
		case !s.chart.IsLeaf(l.AccountID):
			return ledgererr.Newf(ledgererr.KindValidation, ledgererr.ErrInvalidAccountReference.Code, entity, e.ID, "line %d: account %s is not a postable leaf", i+1, l.AccountID)
		case l.Debit.IsZero() && l.Credit.IsZero():
			return ledgererr.Newf(ledgererr.KindValidation, ledgererr.ErrInvalidAmount.Code, entity, e.ID, "line %d has no amount", i+1)
		case !twoDecimals(l.Debit) || !twoDecimals(l.Credit):
			return ledgererr.Newf(ledgererr.KindValidation, ledgererr.ErrInvalidAmount.Code, entity, e.ID, "line %d has more than 2 decimal places", i+1)
		}
	}
	return nil
}

func deltas(e model.JournalEntry, negate bool) []accounts.Transaction {
	txns := make([]accounts.Transaction, 0, len(e.Lines))
	for _, l := range e.Lines {
		d := l.Delta()
		if negate {
			d = d.Neg()
		}
		txns = append(txns, accounts.Transaction{AccountID: l.AccountID, Amount: d})
	}
	return txns
}

func unbalanced(e model.JournalEntry) error {
	return ledgererr.Newf(ledgererr.KindStateConflict, ledgererr.ErrUnbalanced.Code, entity, e.ID,
		"debits %s != credits %s", e.TotalDebit.StringFixed(2), e.TotalCredit.StringFixed(2))
}

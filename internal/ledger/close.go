package ledger

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/bursar/internal/accounts"
	"github.com/cleared-dev/bursar/internal/closing"
	"github.com/cleared-dev/bursar/internal/journal"
	"github.com/cleared-dev/bursar/internal/ledgererr"
	"github.com/cleared-dev/bursar/internal/model"
	"github.com/cleared-dev/bursar/internal/store"
	"github.com/cleared-dev/bursar/internal/validation"
)

// CloseParams controls a year-end close.
type CloseParams struct {
	Actor string `validate:"required"`
	// NextYearID defaults to the numeric year plus one.
	NextYearID string
	// Date stamps the close; defaults to now.
	Date time.Time
}

// CloseResult describes the period opened by a close.
type CloseResult struct {
	Closed       model.Period
	Next         model.Period
	OpeningEntry model.JournalEntry
	Plug         decimal.Decimal
}

// CheckClose reports what blocks closing the period. It changes nothing.
func (b *Book) CheckClose() closing.Report {
	return query(b, b.checkClose)
}

func (b *Book) checkClose() closing.Report {
	return closing.Validate(b.journal, b.invoices, b.accounts)
}

// Close ends the period: it provisions the system accounts, opens the next
// period with the same chart at zero balances, posts the opening entry
// there, and marks this period closed. Afterwards every mutation of this
// book fails with PeriodClosed.
func (b *Book) Close(p CloseParams) (CloseResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureOpen(); err != nil {
		return CloseResult{}, err
	}
	if err := validation.Struct("period", p); err != nil {
		return CloseResult{}, err
	}
	if p.Date.IsZero() {
		p.Date = time.Now()
	}
	if report := b.checkClose(); !report.Ready() {
		return CloseResult{}, report.Err()
	}
	nextYear, err := nextYearID(b.period.YearID, p.NextYearID)
	if err != nil {
		return CloseResult{}, err
	}
	nextKey := store.Key{Tenant: b.key.Tenant, Period: nextYear}
	if b.st.Exists(nextKey) {
		return CloseResult{}, ledgererr.Newf(ledgererr.KindStateConflict, ledgererr.ErrInvalidTransition.Code, "period", nextKey.String(), "period %s already exists", nextKey)
	}

	sys, err := b.provisionSystemAccounts()
	if err != nil {
		return CloseResult{}, err
	}
	studentBalances := make(map[string]decimal.Decimal)
	for _, bal := range b.payments.Balances() {
		studentBalances[bal.StudentID] = bal.Balance
	}
	opening := closing.BuildOpening(closing.OpeningParams{
		Accounts:        b.accounts.All(),
		StudentBalances: studentBalances,
		System:          sys,
		RollIncomeToPnL: b.opts.RollIncomeToPnL,
	})

	next := nextPeriod(b.period, nextYear, p.Date)
	nextAccounts := accounts.NewService(b.accounts.ZeroBalances(), b.log.Named("accounts"))
	nextJournal := journal.NewService(nextYear, nil, nextAccounts, b.log.Named("journal"))
	var entry model.JournalEntry
	if len(opening.Lines) > 0 {
		entry, err = nextJournal.Add(journal.AddParams{
			Date:        next.StartDate,
			Description: fmt.Sprintf("Opening balances brought forward from %s", b.period.YearID),
			Source:      model.SourceYearOpening,
			Reference:   "close:" + b.period.YearID,
			CreatedBy:   p.Actor,
			Lines:       opening.Lines,
		})
		if err != nil {
			return CloseResult{}, fmt.Errorf("posting opening entry: %w", err)
		}
		next.OpeningEntryID = entry.ID
	}

	if _, err := b.st.Save(nextKey, store.Snapshot{
		Period:   next,
		Accounts: nextAccounts.All(),
		Journal:  nextJournal.All(),
		Fees:     b.fees.Data(),
	}); err != nil {
		return CloseResult{}, fmt.Errorf("saving %s: %w", nextKey, err)
	}

	closedAt := p.Date
	b.period.Closed = true
	b.period.ClosedAt = &closedAt
	b.period.ClosedBy = p.Actor
	b.period.NextYearID = nextYear
	b.period.OpeningEntryID = entry.ID
	if err := b.persist(); err != nil {
		return CloseResult{}, err
	}

	b.log.Info("period closed",
		zap.String("next_period", nextYear),
		zap.String("opening_entry", entry.ID),
		zap.Int("opening_lines", len(opening.Lines)),
		zap.String("plug", opening.Plug.StringFixed(2)),
	)
	return CloseResult{Closed: b.period, Next: next, OpeningEntry: entry, Plug: opening.Plug}, nil
}

func (b *Book) provisionSystemAccounts() (closing.SystemAccounts, error) {
	ids := make(map[model.SystemTag]string)
	for _, tag := range model.RequiredSystemTags() {
		id, err := b.accounts.EnsureSystemAccount(tag)
		if err != nil {
			return closing.SystemAccounts{}, err
		}
		ids[tag] = id
	}
	return closing.SystemAccounts{
		Receivable:       ids[model.TagStudentAR],
		DeferredRevenue:  ids[model.TagDeferredRevenue],
		RetainedEarnings: ids[model.TagRetainedEarnings],
		CurrentYearPnL:   ids[model.TagCurrentYearPnL],
	}, nil
}

func nextYearID(current, requested string) (string, error) {
	if requested != "" {
		if requested == current {
			return "", ledgererr.New(ledgererr.KindValidation, ledgererr.ErrInvalidInput.Code, "period", current, "next year must differ from the closing year")
		}
		return requested, nil
	}
	n, err := strconv.Atoi(current)
	if err != nil {
		return "", ledgererr.Newf(ledgererr.KindValidation, ledgererr.ErrInvalidInput.Code, "period", current, "cannot derive the year after %q; name it explicitly", current)
	}
	return strconv.Itoa(n + 1), nil
}

func nextPeriod(cur model.Period, yearID string, closedAt time.Time) model.Period {
	start := closedAt
	if !cur.EndDate.IsZero() {
		start = cur.EndDate.AddDate(0, 0, 1)
	}
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	return model.Period{
		TenantID:  cur.TenantID,
		YearID:    yearID,
		StartDate: start,
		EndDate:   start.AddDate(1, 0, -1),
	}
}

// Package ledger ties the ledger services of one tenant's period together
// behind a single handle that serialises access and persists every change.
package ledger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

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

// Options configure a Book.
type Options struct {
	// Roster overrides the roster read from the store.
	Roster *roster.Roster
	// RollIncomeToPnL collapses revenue and expense balances into the
	// current-year P&L account when opening the next period.
	RollIncomeToPnL bool
	Logger          *zap.Logger
}

// Book is the ledger of one tenant for one period. All methods are safe for
// concurrent use; every successful mutation is saved before it returns.
type Book struct {
	mu sync.Mutex

	key    store.Key
	st     *store.FileStore
	roster *roster.Roster
	opts   Options
	log    *zap.Logger

	period   model.Period
	accounts *accounts.Service
	journal  *journal.Service
	fees     *fees.Service
	invoices *invoicing.Service
	payments *payments.Service

	lastKnown store.Files
}

// Create starts a new period with the given chart and saves it.
func Create(st *store.FileStore, period model.Period, chart []model.Account, opts Options) (*Book, error) {
	k := store.Key{Tenant: period.TenantID, Period: period.YearID}
	if k.Tenant == "" || k.Period == "" {
		return nil, ledgererr.New(ledgererr.KindValidation, ledgererr.ErrInvalidInput.Code, "period", "", "tenant and year are required")
	}
	if st.Exists(k) {
		return nil, ledgererr.Newf(ledgererr.KindValidation, ledgererr.ErrInvalidInput.Code, "period", k.String(), "period %s already exists", k)
	}
	b, err := newBook(st, k, store.Snapshot{Period: period, Accounts: chart}, opts)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.persist(); err != nil {
		return nil, err
	}
	b.log.Info("period created", zap.String("key", k.String()), zap.Int("accounts", len(chart)))
	return b, nil
}

// Open loads a saved period.
func Open(st *store.FileStore, k store.Key, opts Options) (*Book, error) {
	snap, files, err := st.Load(k)
	if err != nil {
		return nil, err
	}
	b, err := newBook(st, k, snap, opts)
	if err != nil {
		return nil, err
	}
	b.lastKnown = files
	return b, nil
}

func newBook(st *store.FileStore, k store.Key, snap store.Snapshot, opts Options) (*Book, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := opts.Roster
	if r == nil {
		var err error
		if r, err = roster.Load(st.RosterDir(k.Tenant)); err != nil {
			return nil, fmt.Errorf("loading roster: %w", err)
		}
	}
	b := &Book{
		key:    k,
		st:     st,
		roster: r,
		opts:   opts,
		log:    logger.With(zap.String("tenant", k.Tenant), zap.String("period", k.Period)),
	}
	b.wire(snap)
	return b, nil
}

// wire rebuilds every service from a snapshot.
func (b *Book) wire(snap store.Snapshot) {
	b.period = snap.Period
	b.accounts = accounts.NewService(snap.Accounts, b.log.Named("accounts"))
	b.journal = journal.NewService(snap.Period.YearID, snap.Journal, b.accounts, b.log.Named("journal"))
	b.fees = fees.NewService(snap.Fees, b.accounts, b.log.Named("fees"))
	b.invoices = invoicing.NewService(snap.Invoices, invoicing.Deps{
		Accounts: b.accounts,
		Fees:     b.fees,
		Students: b.roster,
		Journal:  b.journal,
	}, b.log.Named("invoicing"))
	b.payments = payments.NewService(snap.Receipts, payments.Deps{
		Accounts:  b.accounts,
		Invoices:  b.invoices,
		Directory: b.roster,
		Journal:   b.journal,
	}, b.log.Named("payments"))
	b.invoices.SetAllocationLookup(b.payments.AllocatedTo)
}

func (b *Book) snapshot() store.Snapshot {
	return store.Snapshot{
		Period:   b.period,
		Accounts: b.accounts.All(),
		Journal:  b.journal.All(),
		Fees:     b.fees.Data(),
		Invoices: b.invoices.Data(),
		Receipts: b.payments.Data(),
	}
}

// persist saves the current state unless it matches what was last saved.
func (b *Book) persist() error {
	snap := b.snapshot()
	files, err := store.Serialize(snap)
	if err != nil {
		return err
	}
	if files.Equal(b.lastKnown) {
		return nil
	}
	written, err := b.st.Save(b.key, snap)
	if err != nil {
		return fmt.Errorf("saving %s: %w", b.key, err)
	}
	b.lastKnown = written
	return nil
}

func (b *Book) ensureOpen() error {
	if b.period.Closed {
		return ledgererr.Newf(ledgererr.KindIrrecoverable, ledgererr.ErrPeriodClosed.Code, "period", b.key.String(), "period %s is closed", b.period.YearID)
	}
	return nil
}

// mutate runs fn under the lock on an open period and saves the result.
// State is saved even when fn fails, so partial progress that fn reports
// (such as invoices voided before a failed reissue) is never lost.
func mutate[T any](b *Book, fn func() (T, error)) (T, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureOpen(); err != nil {
		var zero T
		return zero, err
	}
	v, err := fn()
	if saveErr := b.persist(); saveErr != nil {
		if err != nil {
			b.log.Error("saving after failed operation", zap.Error(saveErr))
			return v, err
		}
		return v, saveErr
	}
	return v, err
}

func mutateErr(b *Book, fn func() error) error {
	_, err := mutate(b, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

func query[T any](b *Book, fn func() T) T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fn()
}

// Key returns the tenant and period of the book.
func (b *Book) Key() store.Key {
	return b.key
}

// Period returns the period record.
func (b *Book) Period() model.Period {
	return query(b, func() model.Period { return b.period })
}

// Closed reports whether the period has been closed.
func (b *Book) Closed() bool {
	return b.Period().Closed
}

// Roster returns the roster the book bills against.
func (b *Book) Roster() *roster.Roster {
	return b.roster
}

// Snapshot returns the current state.
func (b *Book) Snapshot() store.Snapshot {
	return query(b, b.snapshot)
}

// LastKnown returns the bytes last loaded from or saved to the store.
func (b *Book) LastKnown() store.Files {
	return query(b, func() store.Files { return b.lastKnown })
}

// Replace swaps in state read from the store. files becomes the last-known
// serialization.
func (b *Book) Replace(snap store.Snapshot, files store.Files) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wire(snap)
	b.lastKnown = files
}

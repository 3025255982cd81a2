package session

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bursar/internal/accounts"
	"github.com/cleared-dev/bursar/internal/fees"
	"github.com/cleared-dev/bursar/internal/journal"
	"github.com/cleared-dev/bursar/internal/ledger"
	"github.com/cleared-dev/bursar/internal/model"
	"github.com/cleared-dev/bursar/internal/roster"
	"github.com/cleared-dev/bursar/internal/store"
)

var key = store.Key{Tenant: "greenfield", Period: "2025"}

func open(t *testing.T, st *store.FileStore) *ledger.Book {
	t.Helper()
	b, err := ledger.Open(st, key, ledger.Options{Roster: roster.New(nil, nil, nil)})
	require.NoError(t, err)
	return b
}

func setup(t *testing.T, hub *store.Hub) (*store.FileStore, *ledger.Book, *ledger.Book) {
	t.Helper()
	st := store.NewFileStore(t.TempDir(), hub, nil)
	_, err := ledger.Create(st, model.Period{TenantID: key.Tenant, YearID: key.Period}, accounts.DefaultChart(), ledger.Options{Roster: roster.New(nil, nil, nil)})
	require.NoError(t, err)
	return st, open(t, st), open(t, st)
}

func TestReconcile_Unchanged(t *testing.T) {
	st, a, _ := setup(t, nil)
	s := New(a, st, nil)

	reloaded, err := s.Reconcile()
	require.NoError(t, err)
	assert.False(t, reloaded)
}

func TestReconcile_PicksUpOtherWriter(t *testing.T) {
	st, a, b := setup(t, nil)
	s := New(a, st, nil)

	_, err := b.AddFeeHead(fees.HeadParams{ID: "tuition", Name: "Tuition", AccountID: accounts.DefaultID("4101")})
	require.NoError(t, err)
	_, ok := a.FeeHead("tuition")
	require.False(t, ok)

	reloaded, err := s.Reconcile()
	require.NoError(t, err)
	assert.True(t, reloaded)
	_, ok = a.FeeHead("tuition")
	assert.True(t, ok)
	assert.True(t, a.LastKnown().Equal(b.LastKnown()))

	reloaded, err = s.Reconcile()
	require.NoError(t, err)
	assert.False(t, reloaded, "second pass sees nothing new")
}

func TestReconcile_MergesDuplicateAccounts(t *testing.T) {
	st, a, b := setup(t, nil)
	s := New(a, st, nil)

	// Both sessions provision the same code under the same parent.
	parent := accounts.DefaultID("41")
	_, err := a.AddAccount(model.Account{ID: "mine", Code: "4105", Name: "Exams", Type: model.AccountTypeRevenue, ParentID: parent})
	require.NoError(t, err)
	_, err = b.AddAccount(model.Account{ID: "theirs", Code: "4105", Name: "Exams", Type: model.AccountTypeRevenue, ParentID: parent})
	require.NoError(t, err)

	_, err = s.Reconcile()
	require.NoError(t, err)

	var exams []model.Account
	for _, acct := range a.Accounts() {
		if acct.Code == "4105" {
			exams = append(exams, acct)
		}
	}
	require.Len(t, exams, 1)
	assert.Equal(t, "theirs", exams[0].ID)
}

func TestReconcile_KeepsLargerLocalBalance(t *testing.T) {
	st, a, b := setup(t, nil)
	s := New(a, st, nil)
	cash, bank := accounts.DefaultID("1101"), accounts.DefaultID("1102")

	e, err := a.AddEntry(journal.AddParams{
		Date:        time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Description: "Cash float",
		Source:      model.SourceManual,
		CreatedBy:   "alice",
		Lines: []model.JournalLine{
			model.NewLine(cash, decimal.NewFromInt(500), decimal.Zero, ""),
			model.NewLine(bank, decimal.Zero, decimal.NewFromInt(500), ""),
		},
	})
	require.NoError(t, err)
	_, err = a.PostEntry(e.ID)
	require.NoError(t, err)
	_, err = a.ApproveEntry(e.ID, "bob")
	require.NoError(t, err)

	// b still holds the chart at zero balances and saves over a's write.
	_, err = b.AddFeeHead(fees.HeadParams{ID: "tuition", Name: "Tuition", AccountID: accounts.DefaultID("4101")})
	require.NoError(t, err)

	reloaded, err := s.Reconcile()
	require.NoError(t, err)
	require.True(t, reloaded)

	got, ok := a.Account(cash)
	require.True(t, ok)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(500)), "cash balance %s", got.Balance)
	got, ok = a.Account(bank)
	require.True(t, ok)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(-500)), "bank balance %s", got.Balance)
	_, ok = a.FeeHead("tuition")
	assert.True(t, ok)
}

func TestReconcile_KeepsLocalOnlyAccounts(t *testing.T) {
	st, a, b := setup(t, nil)
	s := New(a, st, nil)

	_, err := a.AddAccount(model.Account{ID: "local", Code: "4105", Name: "Exams", Type: model.AccountTypeRevenue, ParentID: accounts.DefaultID("41")})
	require.NoError(t, err)
	_, err = b.AddFeeHead(fees.HeadParams{ID: "tuition", Name: "Tuition", AccountID: accounts.DefaultID("4101")})
	require.NoError(t, err)

	_, err = s.Reconcile()
	require.NoError(t, err)
	_, ok := a.Account("local")
	assert.True(t, ok)
	_, ok = a.FeeHead("tuition")
	assert.True(t, ok)
}

func TestRun(t *testing.T) {
	hub := store.NewHub(nil)
	st, a, b := setup(t, hub)
	changes, cancelSub := hub.Subscribe(8)
	defer cancelSub()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(a, st, nil).Run(ctx, changes) }()

	_, err := b.AddFeeHead(fees.HeadParams{ID: "tuition", Name: "Tuition", AccountID: accounts.DefaultID("4101")})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := a.FeeHead("tuition")
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestRun_StopsWhenChannelCloses(t *testing.T) {
	st, a, _ := setup(t, nil)
	changes := make(chan store.Change)
	close(changes)
	assert.NoError(t, New(a, st, nil).Run(context.Background(), changes))
}

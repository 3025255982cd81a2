// Package session keeps an open Book in step with writes made by other
// sessions on the same period.
package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cleared-dev/bursar/internal/accounts"
	"github.com/cleared-dev/bursar/internal/ledger"
	"github.com/cleared-dev/bursar/internal/store"
)

// Session binds a Book to the store it was loaded from.
type Session struct {
	book *ledger.Book
	st   *store.FileStore
	log  *zap.Logger
}

// New creates a Session.
func New(book *ledger.Book, st *store.FileStore, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{book: book, st: st, log: logger.With(zap.String("key", book.Key().String()))}
}

// Book returns the reconciled book.
func (s *Session) Book() *ledger.Book {
	return s.book
}

// Reconcile reloads the period when its persisted bytes differ from the
// book's last-known serialization. Accounts are merged rather than replaced:
// records known only locally survive, and of two records sharing an ID or a
// code the one with the larger balance magnitude is kept. Duplicates are
// dropped silently. It reports whether anything was reloaded.
func (s *Session) Reconcile() (bool, error) {
	files, err := s.st.ReadFiles(s.book.Key())
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", s.book.Key(), err)
	}
	if files.Equal(s.book.LastKnown()) {
		return false, nil
	}
	remote, err := store.Decode(files)
	if err != nil {
		return false, fmt.Errorf("decoding %s: %w", s.book.Key(), err)
	}

	merged, dropped := accounts.Merge(s.book.Snapshot().Accounts, remote.Accounts)
	for _, d := range dropped {
		s.log.Debug("duplicate account dropped on merge", zap.String("account_id", d.ID), zap.String("code", d.Code))
	}
	remote.Accounts = merged
	s.book.Replace(remote, files)
	s.log.Info("reconciled with store", zap.Int("accounts", len(merged)), zap.Int("dropped", len(dropped)))
	return true, nil
}

// Run reconciles on every change to the session's period until ctx ends or
// changes is closed. Failed reconciliations are logged and retried on the
// next change.
func (s *Session) Run(ctx context.Context, changes <-chan store.Change) error {
	key := s.book.Key()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			if c.Key() != key {
				continue
			}
			if _, err := s.Reconcile(); err != nil {
				s.log.Warn("reconcile failed", zap.Error(err))
			}
		}
	}
}

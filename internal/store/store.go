// Package store persists a tenant's books, one directory per period.
//
// Layout under the root:
//
//	<tenant>/roster/{students,grades,treasury}.csv
//	<tenant>/<period>/accounts.csv
//	<tenant>/<period>/journal.csv
//	<tenant>/<period>/{fees,invoices,receipts,period}.yaml
package store

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/bursar/internal/accounts"
	"github.com/cleared-dev/bursar/internal/fees"
	"github.com/cleared-dev/bursar/internal/invoicing"
	"github.com/cleared-dev/bursar/internal/journal"
	"github.com/cleared-dev/bursar/internal/model"
	"github.com/cleared-dev/bursar/internal/payments"
)

// File names inside a period directory.
const (
	AccountsFile = "accounts.csv"
	JournalFile  = "journal.csv"
	FeesFile     = "fees.yaml"
	InvoicesFile = "invoices.yaml"
	ReceiptsFile = "receipts.yaml"
	PeriodFile   = "period.yaml"
)

// RosterDirName is the per-tenant directory holding roster CSVs.
const RosterDirName = "roster"

// ErrNoPeriod is returned when a period has never been saved.
var ErrNoPeriod = errors.New("period not found")

var periodFiles = []string{AccountsFile, JournalFile, FeesFile, InvoicesFile, ReceiptsFile, PeriodFile}

// Key names one period of one tenant.
type Key struct {
	Tenant string
	Period string
}

func (k Key) String() string {
	return k.Tenant + "/" + k.Period
}

// Snapshot is the full persisted state of a period.
type Snapshot struct {
	Period   model.Period
	Accounts []model.Account
	Journal  []model.JournalEntry
	Fees     fees.Data
	Invoices invoicing.Data
	Receipts payments.Data
}

// Files maps file names to their canonical contents.
type Files map[string][]byte

// Equal reports whether both sets hold the same files with the same bytes.
func (f Files) Equal(other Files) bool {
	if len(f) != len(other) {
		return false
	}
	for name, b := range f {
		o, ok := other[name]
		if !ok || !bytes.Equal(b, o) {
			return false
		}
	}
	return true
}

// Serialize renders a snapshot to the bytes written to disk.
func Serialize(s Snapshot) (Files, error) {
	files := make(Files, len(periodFiles))

	var buf bytes.Buffer
	if err := accounts.WriteAccounts(&buf, s.Accounts); err != nil {
		return nil, fmt.Errorf("serializing accounts: %w", err)
	}
	files[AccountsFile] = append([]byte(nil), buf.Bytes()...)

	buf.Reset()
	if err := journal.WriteEntries(&buf, s.Period.YearID, s.Journal); err != nil {
		return nil, fmt.Errorf("serializing journal: %w", err)
	}
	files[JournalFile] = append([]byte(nil), buf.Bytes()...)

	docs := []struct {
		name string
		v    any
	}{
		{FeesFile, s.Fees},
		{InvoicesFile, s.Invoices},
		{ReceiptsFile, s.Receipts},
		{PeriodFile, s.Period},
	}
	for _, d := range docs {
		b, err := yaml.Marshal(d.v)
		if err != nil {
			return nil, fmt.Errorf("serializing %s: %w", d.name, err)
		}
		files[d.name] = b
	}
	return files, nil
}

// Decode parses files produced by Serialize. Missing files decode to empty
// sections.
func Decode(files Files) (Snapshot, error) {
	var s Snapshot
	var err error
	if b, ok := files[AccountsFile]; ok {
		if s.Accounts, err = accounts.ReadAccounts(bytes.NewReader(b)); err != nil {
			return s, fmt.Errorf("decoding %s: %w", AccountsFile, err)
		}
	}
	if b, ok := files[JournalFile]; ok {
		if s.Journal, err = journal.ReadEntries(bytes.NewReader(b)); err != nil {
			return s, fmt.Errorf("decoding %s: %w", JournalFile, err)
		}
	}
	docs := []struct {
		name string
		v    any
	}{
		{FeesFile, &s.Fees},
		{InvoicesFile, &s.Invoices},
		{ReceiptsFile, &s.Receipts},
		{PeriodFile, &s.Period},
	}
	for _, d := range docs {
		b, ok := files[d.name]
		if !ok {
			continue
		}
		if err := yaml.Unmarshal(b, d.v); err != nil {
			return s, fmt.Errorf("decoding %s: %w", d.name, err)
		}
	}
	return s, nil
}

// FileStore keeps snapshots on the local filesystem.
type FileStore struct {
	root string
	hub  *Hub
	log  *zap.Logger
}

// NewFileStore creates a store rooted at root. hub may be nil.
func NewFileStore(root string, hub *Hub, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{root: root, hub: hub, log: logger}
}

// Root returns the store's root directory.
func (s *FileStore) Root() string {
	return s.root
}

// Dir returns the directory of a period.
func (s *FileStore) Dir(k Key) string {
	return filepath.Join(s.root, k.Tenant, k.Period)
}

// RosterDir returns the roster directory of a tenant.
func (s *FileStore) RosterDir(tenant string) string {
	return filepath.Join(s.root, tenant, RosterDirName)
}

// Exists reports whether a period has been saved.
func (s *FileStore) Exists(k Key) bool {
	_, err := os.Stat(filepath.Join(s.Dir(k), PeriodFile))
	return err == nil
}

// Periods lists the saved periods of a tenant in name order.
func (s *FileStore) Periods(tenant string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, tenant))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing periods: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && e.Name() != RosterDirName && s.Exists(Key{Tenant: tenant, Period: e.Name()}) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// ReadFiles returns the raw bytes of a period without parsing them.
func (s *FileStore) ReadFiles(k Key) (Files, error) {
	if !s.Exists(k) {
		return nil, fmt.Errorf("%s: %w", k, ErrNoPeriod)
	}
	files := make(Files, len(periodFiles))
	for _, name := range periodFiles {
		b, err := os.ReadFile(filepath.Join(s.Dir(k), name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		files[name] = b
	}
	return files, nil
}

// Load reads and decodes a period.
func (s *FileStore) Load(k Key) (Snapshot, Files, error) {
	files, err := s.ReadFiles(k)
	if err != nil {
		return Snapshot{}, nil, err
	}
	snap, err := Decode(files)
	if err != nil {
		return Snapshot{}, nil, fmt.Errorf("loading %s: %w", k, err)
	}
	return snap, files, nil
}

// Save writes a snapshot and notifies subscribers. Each file is written to a
// temporary file and renamed into place.
func (s *FileStore) Save(k Key, snap Snapshot) (Files, error) {
	files, err := Serialize(snap)
	if err != nil {
		return nil, err
	}
	dir := s.Dir(k)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writeAtomic(dir, name, files[name]); err != nil {
			return nil, err
		}
	}
	s.log.Debug("period saved", zap.String("key", k.String()), zap.String("dir", dir))
	if s.hub != nil {
		s.hub.Publish(Change{Tenant: k.Tenant, Period: k.Period})
	}
	return files, nil
}

func writeAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("renaming %s: %w", name, err)
	}
	return nil
}

// Package importer reads bank deposit exports and turns each deposit into a
// distributed student payment.
package importer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cleared-dev/bursar/internal/model"
	"github.com/cleared-dev/bursar/internal/payments"
)

// Parser converts a deposit CSV file into BankDeposits.
type Parser interface {
	Parse(r io.Reader) ([]model.BankDeposit, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes a CSV file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// DefaultRegistry returns a registry with the built-in parsers. Chase
// exports are booked against treasuryID.
func DefaultRegistry(treasuryID string) *Registry {
	r := NewRegistry()
	r.Register(&DepositParser{})
	r.Register(NewChaseParser(treasuryID))
	return r
}

// importDir is the subdirectory for import CSVs.
const importDir = "import"

// processedDir is the subdirectory for processed CSVs.
const processedDir = "import/processed"

// Scan returns CSV files in <baseDir>/import/.
func Scan(baseDir string) ([]FileInfo, error) {
	dir := filepath.Join(baseDir, importDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(baseDir, fileName string) error {
	src := filepath.Join(baseDir, importDir, fileName)
	dstDir := filepath.Join(baseDir, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}

// Payer is the part of the ledger an import books payments into.
type Payer interface {
	DistributePayment(p payments.PaymentParams) (model.Receipt, error)
	Receipts() []model.Receipt
}

// Rejected is a deposit that could not be booked.
type Rejected struct {
	Deposit model.BankDeposit
	Reason  string
}

// Result reports what an import booked.
type Result struct {
	Receipts   []model.Receipt
	Duplicates []model.BankDeposit
	Rejected   []Rejected
}

// Apply books each deposit as a distributed payment. A deposit whose
// reference already appears on a receipt is a duplicate and is skipped, so
// importing the same file twice books nothing new. Deposits that fail are
// collected; the rest are still booked.
func Apply(payer Payer, deposits []model.BankDeposit, actor string, logger *zap.Logger) Result {
	if logger == nil {
		logger = zap.NewNop()
	}
	seen := make(map[string]bool)
	for _, r := range payer.Receipts() {
		if r.Reference != "" {
			seen[r.Reference] = true
		}
	}

	var res Result
	for _, d := range deposits {
		if d.Reference != "" && seen[d.Reference] {
			res.Duplicates = append(res.Duplicates, d)
			continue
		}
		if d.StudentID == "" {
			res.Rejected = append(res.Rejected, Rejected{Deposit: d, Reason: "no student reference"})
			continue
		}
		rcpt, err := payer.DistributePayment(payments.PaymentParams{
			StudentID:  d.StudentID,
			TreasuryID: d.TreasuryID,
			Date:       d.Date,
			Reference:  d.Reference,
			Actor:      actor,
			Amount:     d.Amount,
		})
		if err != nil {
			res.Rejected = append(res.Rejected, Rejected{Deposit: d, Reason: err.Error()})
			continue
		}
		seen[d.Reference] = true
		res.Receipts = append(res.Receipts, rcpt)
	}
	logger.Info("deposits imported",
		zap.Int("receipts", len(res.Receipts)),
		zap.Int("duplicates", len(res.Duplicates)),
		zap.Int("rejected", len(res.Rejected)),
	)
	return res
}

func parseDate(s string, layouts ...string) (time.Time, error) {
	var err error
	for _, layout := range layouts {
		var t time.Time
		if t, err = time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

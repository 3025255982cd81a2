// Package audit keeps the append-only trail of ledger commands, one CSV per
// tenant.
package audit

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Entry is one row in the audit trail.
type Entry struct {
	Timestamp  time.Time
	Actor      string
	Period     string
	Action     string
	Details    string
	EntityID   string
	CommitHash string
}

// Header is the CSV header for audit.csv.
const Header = "timestamp,actor,period,action,details,entity_id,commit_hash"

// FileName is the audit trail inside a tenant directory.
const FileName = "audit.csv"

const (
	numFields     = 7
	colTimestamp  = 0
	colActor      = 1
	colPeriod     = 2
	colAction     = 3
	colDetails    = 4
	colEntityID   = 5
	colCommitHash = 6
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colActor] = e.Actor
	row[colPeriod] = e.Period
	row[colAction] = e.Action
	row[colDetails] = e.Details
	row[colEntityID] = e.EntityID
	row[colCommitHash] = e.CommitHash
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	return Entry{
		Timestamp:  ts,
		Actor:      record[colActor],
		Period:     record[colPeriod],
		Action:     record[colAction],
		Details:    record[colDetails],
		EntityID:   record[colEntityID],
		CommitHash: record[colCommitHash],
	}, nil
}

// Append writes entries to <tenantDir>/audit.csv, creating the file and
// header if needed.
func Append(tenantDir string, entries []Entry) error {
	if err := os.MkdirAll(tenantDir, 0o755); err != nil {
		return fmt.Errorf("creating tenant dir: %w", err)
	}

	path := filepath.Join(tenantDir, FileName)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit trail: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	return cw.Error()
}

// Read returns all entries of <tenantDir>/audit.csv, or nil if there is no
// trail yet.
func Read(tenantDir string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(tenantDir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit trail: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

// ByPeriod keeps the entries recorded against one period.
func ByPeriod(entries []Entry, period string) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Period == period {
			out = append(out, e)
		}
	}
	return out
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

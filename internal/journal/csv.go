package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bursar/internal/id"
	"github.com/cleared-dev/bursar/internal/model"
)

// Header is the CSV header for journal.csv. Each row is one line of an
// entry; the entry header fields repeat on every line.
const Header = "line_id,entry_id,number,date,source,reference,status,description,account_id,debit,credit,note,created_by,created_at,approved_by,approved_at,rejected_by,rejected_at,reject_reason,applied"

const (
	numFields      = 20
	dateFormat     = "2006-01-02"
	colLineID      = 0
	colEntryID     = 1
	colNumber      = 2
	colDate        = 3
	colSource      = 4
	colRef         = 5
	colStatus      = 6
	colDesc        = 7
	colAcctID      = 8
	colDebit       = 9
	colCredit      = 10
	colNote        = 11
	colCreatedBy   = 12
	colCreatedAt   = 13
	colApprovedBy  = 14
	colApprovedAt  = 15
	colRejectedBy  = 16
	colRejectedAt  = 17
	colRejectReasn = 18
	colApplied     = 19
)

// ReadEntries reads journal.csv, grouping lines back into entries in file
// order.
func ReadEntries(r io.Reader) ([]model.JournalEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading journal CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var entries []model.JournalEntry
	pos := make(map[string]int)
	for i, rec := range records[1:] {
		e, line, err := UnmarshalLine(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		j, ok := pos[e.ID]
		if !ok {
			pos[e.ID] = len(entries)
			entries = append(entries, e)
			j = len(entries) - 1
		}
		entries[j].Lines = append(entries[j].Lines, line)
	}
	for i := range entries {
		entries[i].Recalculate()
	}
	return entries, nil
}

// WriteEntries writes journal.csv (including header).
func WriteEntries(w io.Writer, yearID string, entries []model.JournalEntry) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	row := 1
	for _, e := range entries {
		number := id.FormatEntryNumber(yearID, e.Number)
		for i, l := range e.Lines {
			row++
			if err := cw.Write(MarshalLine(e, l, id.FormatLineID(number, i))); err != nil {
				return fmt.Errorf("writing row %d: %w", row, err)
			}
		}
	}
	return cw.Error()
}

// MarshalLine converts one line of an entry to a CSV row.
func MarshalLine(e model.JournalEntry, l model.JournalLine, lineID string) []string {
	row := make([]string, numFields)
	row[colLineID] = lineID
	row[colEntryID] = e.ID
	row[colNumber] = strconv.Itoa(e.Number)
	row[colDate] = e.Date.Format(dateFormat)
	row[colSource] = string(e.Source)
	row[colRef] = e.Reference
	row[colStatus] = string(e.Status)
	row[colDesc] = e.Description
	row[colAcctID] = l.AccountID
	if !l.Debit.IsZero() {
		row[colDebit] = l.Debit.StringFixed(2)
	}
	if !l.Credit.IsZero() {
		row[colCredit] = l.Credit.StringFixed(2)
	}
	row[colNote] = l.Note
	row[colCreatedBy] = e.CreatedBy
	row[colCreatedAt] = formatTime(&e.CreatedAt)
	row[colApprovedBy] = e.ApprovedBy
	row[colApprovedAt] = formatTime(e.ApprovedAt)
	row[colRejectedBy] = e.RejectedBy
	row[colRejectedAt] = formatTime(e.RejectedAt)
	row[colRejectReasn] = e.RejectReason
	row[colApplied] = strconv.FormatBool(e.Applied)
	return row
}

// UnmarshalLine converts a CSV row to the entry header it belongs to and the
// line it carries. The returned entry has no lines.
func UnmarshalLine(record []string) (model.JournalEntry, model.JournalLine, error) {
	var e model.JournalEntry
	var l model.JournalLine
	if len(record) != numFields {
		return e, l, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	number, err := strconv.Atoi(record[colNumber])
	if err != nil {
		return e, l, fmt.Errorf("parsing number %q: %w", record[colNumber], err)
	}
	date, err := time.Parse(dateFormat, record[colDate])
	if err != nil {
		return e, l, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}

	var debit, credit decimal.Decimal
	if record[colDebit] != "" {
		if debit, err = decimal.NewFromString(record[colDebit]); err != nil {
			return e, l, fmt.Errorf("parsing debit %q: %w", record[colDebit], err)
		}
	}
	if record[colCredit] != "" {
		if credit, err = decimal.NewFromString(record[colCredit]); err != nil {
			return e, l, fmt.Errorf("parsing credit %q: %w", record[colCredit], err)
		}
	}

	createdAt, err := parseTime(record[colCreatedAt])
	if err != nil {
		return e, l, fmt.Errorf("parsing created_at: %w", err)
	}
	approvedAt, err := parseTime(record[colApprovedAt])
	if err != nil {
		return e, l, fmt.Errorf("parsing approved_at: %w", err)
	}
	rejectedAt, err := parseTime(record[colRejectedAt])
	if err != nil {
		return e, l, fmt.Errorf("parsing rejected_at: %w", err)
	}
	applied := false
	if record[colApplied] != "" {
		if applied, err = strconv.ParseBool(record[colApplied]); err != nil {
			return e, l, fmt.Errorf("parsing applied: %w", err)
		}
	}

	e = model.JournalEntry{
		ID:           record[colEntryID],
		Number:       number,
		Date:         date,
		Description:  record[colDesc],
		Source:       model.EntrySource(record[colSource]),
		Reference:    record[colRef],
		Status:       model.EntryStatus(record[colStatus]),
		CreatedBy:    record[colCreatedBy],
		ApprovedBy:   record[colApprovedBy],
		ApprovedAt:   approvedAt,
		RejectedBy:   record[colRejectedBy],
		RejectedAt:   rejectedAt,
		RejectReason: record[colRejectReasn],
		Applied:      applied,
	}
	if createdAt != nil {
		e.CreatedAt = *createdAt
	}
	l = model.JournalLine{
		AccountID: record[colAcctID],
		Debit:     debit,
		Credit:    credit,
		Note:      record[colNote],
	}
	return e, l, nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

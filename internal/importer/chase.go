package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bursar/internal/model"
)

// studentRef finds a student ID like "STU-0042" or "stu0042" in a bank
// description.
var studentRef = regexp.MustCompile(`(?i)\bSTU-?([0-9]+)\b`)

// maxRefDesc caps the description part of a generated reference.
const maxRefDesc = 32

// ChaseParser parses Chase checking CSV exports. Only credits are kept;
// the student is taken from the transaction description.
type ChaseParser struct {
	TreasuryID string
}

// NewChaseParser returns a parser booking every deposit to treasuryID.
func NewChaseParser(treasuryID string) *ChaseParser {
	return &ChaseParser{TreasuryID: treasuryID}
}

const (
	chaseDateFormat = "01/02/2006"
	chaseNumFields  = 7
	chaseColDate    = 1
	chaseColDesc    = 2
	chaseColAmount  = 3
)

// Format returns the parser name.
func (p *ChaseParser) Format() string { return "chase" }

// Parse reads a Chase CSV and returns the deposits in it.
func (p *ChaseParser) Parse(r io.Reader) ([]model.BankDeposit, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = chaseNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading chase CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var deposits []model.BankDeposit
	for i, rec := range records[1:] {
		d, ok, err := p.parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if ok {
			deposits = append(deposits, d)
		}
	}
	return deposits, nil
}

func (p *ChaseParser) parseRow(rec []string) (model.BankDeposit, bool, error) {
	date, err := time.Parse(chaseDateFormat, rec[chaseColDate])
	if err != nil {
		return model.BankDeposit{}, false, fmt.Errorf("parsing date %q: %w", rec[chaseColDate], err)
	}

	amount, err := decimal.NewFromString(rec[chaseColAmount])
	if err != nil {
		return model.BankDeposit{}, false, fmt.Errorf("parsing amount %q: %w", rec[chaseColAmount], err)
	}
	if !amount.IsPositive() {
		return model.BankDeposit{}, false, nil
	}

	desc := rec[chaseColDesc]
	return model.BankDeposit{
		Date:       date,
		StudentID:  findStudent(desc),
		Amount:     amount,
		TreasuryID: p.TreasuryID,
		Reference:  makeChaseRef(date, desc, amount),
	}, true, nil
}

// findStudent returns the student ID in desc in roster form ("STU-0042"),
// or "" when there is none.
func findStudent(desc string) string {
	m := studentRef.FindStringSubmatch(desc)
	if m == nil {
		return ""
	}
	return "STU-" + m[1]
}

// makeChaseRef creates a reference like
// chase_20250103_TUITIONSTU0001TERM1_3000.00. The same export row always
// yields the same reference.
func makeChaseRef(date time.Time, desc string, amount decimal.Decimal) string {
	clean := strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, strings.ToUpper(desc))
	if len(clean) > maxRefDesc {
		clean = clean[:maxRefDesc]
	}
	return fmt.Sprintf("chase_%s_%s_%s", date.Format("20060102"), clean, amount.StringFixed(2))
}

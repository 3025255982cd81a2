package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bursar/internal/model"
)

// DepositHeader is the header of the native deposit CSV format.
const DepositHeader = "date,student_id,amount,treasury_id,reference"

const (
	depositNumFields    = 5
	depositColDate      = 0
	depositColStudent   = 1
	depositColAmount    = 2
	depositColTreasury  = 3
	depositColReference = 4
)

// DepositParser parses the native deposit format, one payment per row.
type DepositParser struct{}

// Format returns the parser name.
func (p *DepositParser) Format() string { return "deposits" }

// Parse reads a deposit CSV and returns BankDeposits.
func (p *DepositParser) Parse(r io.Reader) ([]model.BankDeposit, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = depositNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading deposit CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}
	if got := strings.Join(records[0], ","); got != DepositHeader {
		return nil, fmt.Errorf("unexpected header %q", got)
	}

	var out []model.BankDeposit
	for i, rec := range records[1:] {
		d, err := parseDepositRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func parseDepositRow(rec []string) (model.BankDeposit, error) {
	date, err := parseDate(rec[depositColDate], "2006-01-02", "2006/01/02")
	if err != nil {
		return model.BankDeposit{}, fmt.Errorf("parsing date %q: %w", rec[depositColDate], err)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(rec[depositColAmount]))
	if err != nil {
		return model.BankDeposit{}, fmt.Errorf("parsing amount %q: %w", rec[depositColAmount], err)
	}
	return model.BankDeposit{
		Date:       date,
		StudentID:  strings.TrimSpace(rec[depositColStudent]),
		Amount:     amount,
		TreasuryID: strings.TrimSpace(rec[depositColTreasury]),
		Reference:  strings.TrimSpace(rec[depositColReference]),
	}, nil
}

package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bursar/internal/model"
)

// Header is the CSV header for accounts.csv.
const Header = "account_id,code,name,type,level,parent_id,is_main,balance,is_system,system_tag,locked,description"

const (
	numFields    = 12
	colID        = 0
	colCode      = 1
	colName      = 2
	colType      = 3
	colLevel     = 4
	colParent    = 5
	colIsMain    = 6
	colBalance   = 7
	colIsSystem  = 8
	colSystemTag = 9
	colLocked    = 10
	colDesc      = 11
)

// ReadAccounts reads accounts.csv.
func ReadAccounts(r io.Reader) ([]model.Account, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var accounts []model.Account
	for i, rec := range records[1:] {
		acct, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// WriteAccounts writes accounts.csv.
func WriteAccounts(w io.Writer, accounts []model.Account) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, acct := range accounts {
		if err := cw.Write(MarshalAccount(acct)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// MarshalAccount converts an Account to a CSV row.
func MarshalAccount(acct model.Account) []string {
	row := make([]string, numFields)
	row[colID] = acct.ID
	row[colCode] = acct.Code
	row[colName] = acct.Name
	row[colType] = string(acct.Type)
	row[colLevel] = strconv.Itoa(acct.Level)
	row[colParent] = acct.ParentID
	row[colIsMain] = formatBool(acct.IsMain)
	row[colBalance] = acct.Balance.StringFixed(2)
	row[colIsSystem] = formatBool(acct.IsSystem)
	row[colSystemTag] = string(acct.SystemTag)
	row[colLocked] = formatBool(acct.Locked)
	row[colDesc] = acct.Description
	return row
}

// UnmarshalAccount converts a CSV row to an Account.
func UnmarshalAccount(record []string) (model.Account, error) {
	if len(record) != numFields {
		return model.Account{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	level, err := strconv.Atoi(record[colLevel])
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing level %q: %w", record[colLevel], err)
	}

	balance := decimal.Zero
	if record[colBalance] != "" {
		balance, err = decimal.NewFromString(record[colBalance])
		if err != nil {
			return model.Account{}, fmt.Errorf("parsing balance %q: %w", record[colBalance], err)
		}
	}

	isMain, err := parseBool(record[colIsMain])
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing is_main: %w", err)
	}
	isSystem, err := parseBool(record[colIsSystem])
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing is_system: %w", err)
	}
	locked, err := parseBool(record[colLocked])
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing locked: %w", err)
	}

	return model.Account{
		ID:          record[colID],
		Code:        record[colCode],
		Name:        record[colName],
		Type:        model.AccountType(record[colType]),
		Level:       level,
		ParentID:    record[colParent],
		IsMain:      isMain,
		Balance:     balance,
		IsSystem:    isSystem,
		SystemTag:   model.SystemTag(record[colSystemTag]),
		Locked:      locked,
		Description: record[colDesc],
	}, nil
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

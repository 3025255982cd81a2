package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bursar/internal/model"
)

// CSV headers of the roster files.
const (
	StudentsHeader = "student_id,name,grade_id,class_id,status,year_id,discounts"
	GradesHeader   = "grade_id,name,stage_id,order"
	TreasuryHeader = "treasury_id,name,account_id"
)

// File names inside a roster directory.
const (
	StudentsFile = "students.csv"
	GradesFile   = "grades.csv"
	TreasuryFile = "treasury.csv"
)

// Load reads the roster files from dir. Missing files yield empty lists.
func Load(dir string) (*Roster, error) {
	var students []model.Student
	var grades []model.Grade
	var treasury []model.TreasuryAccount

	if err := readFile(filepath.Join(dir, StudentsFile), func(r io.Reader) (err error) {
		students, err = ReadStudents(r)
		return err
	}); err != nil {
		return nil, err
	}
	if err := readFile(filepath.Join(dir, GradesFile), func(r io.Reader) (err error) {
		grades, err = ReadGrades(r)
		return err
	}); err != nil {
		return nil, err
	}
	if err := readFile(filepath.Join(dir, TreasuryFile), func(r io.Reader) (err error) {
		treasury, err = ReadTreasury(r)
		return err
	}); err != nil {
		return nil, err
	}
	return New(students, grades, treasury), nil
}

// Save writes the roster files into dir.
func Save(dir string, r *Roster) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating roster dir: %w", err)
	}
	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{StudentsFile, func(w io.Writer) error { return WriteStudents(w, r.AllStudents()) }},
		{GradesFile, func(w io.Writer) error { return WriteGrades(w, r.Grades()) }},
		{TreasuryFile, func(w io.Writer) error { return WriteTreasury(w, r.TreasuryAccounts()) }},
	}
	for _, f := range files {
		out, err := os.Create(filepath.Join(dir, f.name))
		if err != nil {
			return fmt.Errorf("creating %s: %w", f.name, err)
		}
		if err := f.write(out); err != nil {
			out.Close()
			return fmt.Errorf("writing %s: %w", f.name, err)
		}
		if err := out.Close(); err != nil {
			return fmt.Errorf("closing %s: %w", f.name, err)
		}
	}
	return nil
}

func readFile(path string, read func(io.Reader) error) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	if err := read(f); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

func readRecords(r io.Reader, header string) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(strings.Split(header, ","))
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[1:], nil
}

func writeRecords(w io.Writer, header string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing rows: %w", err)
	}
	return nil
}

// ReadStudents reads students.csv.
func ReadStudents(r io.Reader) ([]model.Student, error) {
	records, err := readRecords(r, StudentsHeader)
	if err != nil {
		return nil, fmt.Errorf("reading students CSV: %w", err)
	}
	var out []model.Student
	for i, rec := range records {
		discounts, err := ParseDiscounts(rec[6])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		status := model.EnrollmentStatus(rec[4])
		if status == "" {
			status = model.EnrollmentEnrolled
		}
		out = append(out, model.Student{
			ID:        rec[0],
			Name:      rec[1],
			GradeID:   rec[2],
			ClassID:   rec[3],
			Status:    status,
			YearID:    rec[5],
			Discounts: discounts,
		})
	}
	return out, nil
}

// WriteStudents writes students.csv.
func WriteStudents(w io.Writer, students []model.Student) error {
	rows := make([][]string, len(students))
	for i, s := range students {
		rows[i] = []string{s.ID, s.Name, s.GradeID, s.ClassID, string(s.Status), s.YearID, FormatDiscounts(s.Discounts)}
	}
	return writeRecords(w, StudentsHeader, rows)
}

// ReadGrades reads grades.csv.
func ReadGrades(r io.Reader) ([]model.Grade, error) {
	records, err := readRecords(r, GradesHeader)
	if err != nil {
		return nil, fmt.Errorf("reading grades CSV: %w", err)
	}
	var out []model.Grade
	for i, rec := range records {
		order := 0
		if rec[3] != "" {
			if order, err = strconv.Atoi(rec[3]); err != nil {
				return nil, fmt.Errorf("row %d: parsing order %q: %w", i+2, rec[3], err)
			}
		}
		out = append(out, model.Grade{ID: rec[0], Name: rec[1], StageID: rec[2], Order: order})
	}
	return out, nil
}

// WriteGrades writes grades.csv.
func WriteGrades(w io.Writer, grades []model.Grade) error {
	rows := make([][]string, len(grades))
	for i, g := range grades {
		rows[i] = []string{g.ID, g.Name, g.StageID, strconv.Itoa(g.Order)}
	}
	return writeRecords(w, GradesHeader, rows)
}

// ReadTreasury reads treasury.csv.
func ReadTreasury(r io.Reader) ([]model.TreasuryAccount, error) {
	records, err := readRecords(r, TreasuryHeader)
	if err != nil {
		return nil, fmt.Errorf("reading treasury CSV: %w", err)
	}
	var out []model.TreasuryAccount
	for _, rec := range records {
		out = append(out, model.TreasuryAccount{ID: rec[0], Name: rec[1], AccountID: rec[2]})
	}
	return out, nil
}

// WriteTreasury writes treasury.csv.
func WriteTreasury(w io.Writer, accounts []model.TreasuryAccount) error {
	rows := make([][]string, len(accounts))
	for i, t := range accounts {
		rows[i] = []string{t.ID, t.Name, t.AccountID}
	}
	return writeRecords(w, TreasuryHeader, rows)
}

// ParseDiscounts decodes "category:type:value[:fee_head]" items separated
// by semicolons, e.g. "siblings:percentage:10;staff:fixed:500:books".
func ParseDiscounts(s string) ([]model.Discount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []model.Discount
	for _, part := range strings.Split(s, ";") {
		fields := strings.Split(strings.TrimSpace(part), ":")
		if len(fields) < 3 || len(fields) > 4 {
			return nil, fmt.Errorf("discount %q: want category:type:value[:fee_head]", part)
		}
		value, err := decimal.NewFromString(fields[2])
		if err != nil {
			return nil, fmt.Errorf("discount %q: parsing value: %w", part, err)
		}
		d := model.Discount{
			Category: model.DiscountCategory(fields[0]),
			Type:     model.DiscountType(fields[1]),
			Value:    value,
		}
		switch d.Type {
		case model.DiscountPercentage, model.DiscountFixed:
		default:
			return nil, fmt.Errorf("discount %q: unknown type %q", part, d.Type)
		}
		if len(fields) == 4 {
			d.FeeHeadID = fields[3]
		}
		out = append(out, d)
	}
	return out, nil
}

// FormatDiscounts is the inverse of ParseDiscounts.
func FormatDiscounts(ds []model.Discount) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		p := fmt.Sprintf("%s:%s:%s", d.Category, d.Type, d.Value.String())
		if d.FeeHeadID != "" {
			p += ":" + d.FeeHeadID
		}
		parts[i] = p
	}
	return strings.Join(parts, ";")
}

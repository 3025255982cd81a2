// Package roster holds the student, grade and treasury data the ledger reads
// but never edits.
package roster

import (
	"sort"

	"github.com/cleared-dev/bursar/internal/model"
)

// Roster is an in-memory view of the school's external records.
type Roster struct {
	students []model.Student
	grades   []model.Grade
	treasury []model.TreasuryAccount
}

// New creates a Roster.
func New(students []model.Student, grades []model.Grade, treasury []model.TreasuryAccount) *Roster {
	return &Roster{
		students: append([]model.Student(nil), students...),
		grades:   append([]model.Grade(nil), grades...),
		treasury: append([]model.TreasuryAccount(nil), treasury...),
	}
}

// Student returns a student by ID.
func (r *Roster) Student(id string) (model.Student, bool) {
	for _, s := range r.students {
		if s.ID == id {
			return s, true
		}
	}
	return model.Student{}, false
}

// Students returns the students of a grade in a year ordered by ID. An empty
// yearID matches every year.
func (r *Roster) Students(yearID, gradeID string) []model.Student {
	var out []model.Student
	for _, s := range r.students {
		if s.GradeID == gradeID && (yearID == "" || s.YearID == "" || s.YearID == yearID) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllStudents returns every student ordered by ID.
func (r *Roster) AllStudents() []model.Student {
	out := append([]model.Student(nil), r.students...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Grades returns every grade in school order.
func (r *Roster) Grades() []model.Grade {
	out := append([]model.Grade(nil), r.grades...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Grade returns a grade by ID.
func (r *Roster) Grade(id string) (model.Grade, bool) {
	for _, g := range r.grades {
		if g.ID == id {
			return g, true
		}
	}
	return model.Grade{}, false
}

// Treasury returns a treasury account by ID.
func (r *Roster) Treasury(id string) (model.TreasuryAccount, bool) {
	for _, t := range r.treasury {
		if t.ID == id {
			return t, true
		}
	}
	return model.TreasuryAccount{}, false
}

// TreasuryAccounts returns every treasury account.
func (r *Roster) TreasuryAccounts() []model.TreasuryAccount {
	return append([]model.TreasuryAccount(nil), r.treasury...)
}

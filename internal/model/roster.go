package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EnrollmentStatus of a student in the roster.
type EnrollmentStatus string

const (
	EnrollmentEnrolled  EnrollmentStatus = "enrolled"
	EnrollmentWithdrawn EnrollmentStatus = "withdrawn"
	EnrollmentGraduated EnrollmentStatus = "graduated"
)

// Student is supplied by the roster; the ledger never edits it.
type Student struct {
	ID        string
	Name      string
	GradeID   string
	ClassID   string
	Status    EnrollmentStatus
	YearID    string
	Discounts []Discount
}

// Enrolled reports whether the student is billable.
func (s Student) Enrolled() bool {
	return s.Status == EnrollmentEnrolled
}

// Grade is one level in the school (e.g. "G1").
type Grade struct {
	ID      string
	Name    string
	StageID string
	Order   int
}

// TreasuryAccount maps a cash box or bank account to a ledger account.
type TreasuryAccount struct {
	ID        string
	Name      string
	AccountID string
}

// BankDeposit is a parsed row from a bank deposit export.
type BankDeposit struct {
	Date       time.Time
	StudentID  string
	Amount     decimal.Decimal
	TreasuryID string
	Reference  string
}

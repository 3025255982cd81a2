package model

import "time"

// Period is one academic/fiscal year of one tenant.
type Period struct {
	TenantID       string     `yaml:"tenant_id"`
	YearID         string     `yaml:"year_id"`
	StartDate      time.Time  `yaml:"start_date"`
	EndDate        time.Time  `yaml:"end_date"`
	Closed         bool       `yaml:"closed"`
	ClosedAt       *time.Time `yaml:"closed_at,omitempty"`
	ClosedBy       string     `yaml:"closed_by,omitempty"`
	NextYearID     string     `yaml:"next_year_id,omitempty"`
	OpeningEntryID string     `yaml:"opening_entry_id,omitempty"`
}

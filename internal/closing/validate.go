// Package closing decides whether a period may be closed and builds the
// opening entry of the next one.
package closing

import (
	"fmt"
	"strings"

	"github.com/cleared-dev/bursar/internal/ledgererr"
	"github.com/cleared-dev/bursar/internal/model"
)

// IssueKind classifies a reason the period cannot close.
type IssueKind string

const (
	IssueDraftEntry       IssueKind = "draft_entry"
	IssueUnbalancedEntry  IssueKind = "unbalanced_entry"
	IssueAmbiguousInvoice IssueKind = "ambiguous_invoice"
	IssueSystemAccount    IssueKind = "system_account"
)

// Issue is one blocker found by Validate.
type Issue struct {
	Kind        IssueKind
	EntityID    string
	Description string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s %s: %s", i.Kind, i.EntityID, i.Description)
}

// Report is the outcome of Validate.
type Report struct {
	Issues []Issue
}

// Ready reports whether nothing blocks the close.
func (r Report) Ready() bool {
	return len(r.Issues) == 0
}

// Err returns a CloseNotReady error listing the issues, or nil.
func (r Report) Err() error {
	if r.Ready() {
		return nil
	}
	lines := make([]string, len(r.Issues))
	for i, is := range r.Issues {
		lines[i] = is.String()
	}
	return ledgererr.Newf(ledgererr.KindStateConflict, ledgererr.ErrCloseNotReady.Code, "period", "",
		"%d issue(s): %s", len(r.Issues), strings.Join(lines, "; "))
}

// Journal is the part of the journal the readiness check reads.
type Journal interface {
	Drafts() []model.JournalEntry
	UnbalancedPosted() []model.JournalEntry
	DisplayNumber(e model.JournalEntry) string
}

// Invoices lists every invoice of the period.
type Invoices interface {
	All() []model.Invoice
}

// Provisioner reports whether a system account can be resolved.
type Provisioner interface {
	CanProvision(tag model.SystemTag) error
}

// Validate checks that the period can be closed. It never mutates anything.
//
// A period is ready when it has no draft entries, no posted entries that
// fail to balance, no invoices whose ledger state is ambiguous, and every
// required system account exists or can be created.
func Validate(j Journal, inv Invoices, chart Provisioner) Report {
	var r Report
	for _, e := range j.Drafts() {
		r.Issues = append(r.Issues, Issue{IssueDraftEntry, j.DisplayNumber(e), "entry is still a draft"})
	}
	for _, e := range j.UnbalancedPosted() {
		r.Issues = append(r.Issues, Issue{IssueUnbalancedEntry, j.DisplayNumber(e),
			fmt.Sprintf("debits %s do not equal credits %s", e.TotalDebit.StringFixed(2), e.TotalCredit.StringFixed(2))})
	}
	for _, i := range inv.All() {
		if reason := ambiguity(i); reason != "" {
			r.Issues = append(r.Issues, Issue{IssueAmbiguousInvoice, i.ID, reason})
		}
	}
	for _, tag := range model.RequiredSystemTags() {
		if err := chart.CanProvision(tag); err != nil {
			r.Issues = append(r.Issues, Issue{IssueSystemAccount, string(tag), err.Error()})
		}
	}
	return r
}

func ambiguity(inv model.Invoice) string {
	switch inv.State {
	case model.StateActive:
		if !inv.Total.IsZero() && inv.JournalEntryID == "" {
			return "active invoice was never posted to the journal"
		}
	case model.StateVoided:
		if inv.JournalEntryID != "" && inv.ReversalEntryID == "" {
			return "voided invoice has no reversal entry"
		}
	default:
		return fmt.Sprintf("unknown invoice state %q", inv.State)
	}
	return ""
}

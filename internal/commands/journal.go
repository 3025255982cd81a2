package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/bursar/internal/id"
	"github.com/cleared-dev/bursar/internal/journal"
	"github.com/cleared-dev/bursar/internal/ledger"
	"github.com/cleared-dev/bursar/internal/model"
)

func newJournalCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Journal entries",
	}
	cmd.AddCommand(
		newJournalAddCommand(g),
		newJournalPostCommand(g),
		newJournalApproveCommand(g),
		newJournalRejectCommand(g),
		newJournalListCommand(g),
	)
	return cmd
}

type journalAddOptions struct {
	date        string
	description string
	reference   string
	debits      []string
	credits     []string
	post        bool
}

func newJournalAddCommand(g *globalFlags) *cobra.Command {
	var opts journalAddOptions
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a manual entry as a draft",
		Example: `  bursar journal add --description "March salaries" \
    --debit 5101=12000 --credit 1102=12000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalAdd(cmd, g, opts)
		},
	}
	cmd.Flags().StringVar(&opts.date, "date", "", "entry date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&opts.description, "description", "", "description (required)")
	cmd.Flags().StringVar(&opts.reference, "reference", "", "originating document")
	cmd.Flags().StringArrayVar(&opts.debits, "debit", nil, "debit line as CODE=AMOUNT (repeatable)")
	cmd.Flags().StringArrayVar(&opts.credits, "credit", nil, "credit line as CODE=AMOUNT (repeatable)")
	cmd.Flags().BoolVar(&opts.post, "post", false, "post the entry right away")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func runJournalAdd(cmd *cobra.Command, g *globalFlags, opts journalAddOptions) error {
	a, err := loadApp(cmd, g)
	if err != nil {
		return err
	}
	b, err := a.openBook()
	if err != nil {
		return err
	}
	date, err := parseDate(opts.date)
	if err != nil {
		return err
	}

	var lines []model.JournalLine
	for _, spec := range opts.debits {
		l, err := parseLine(b, spec, true)
		if err != nil {
			return err
		}
		lines = append(lines, l)
	}
	for _, spec := range opts.credits {
		l, err := parseLine(b, spec, false)
		if err != nil {
			return err
		}
		lines = append(lines, l)
	}

	e, err := b.AddEntry(journal.AddParams{
		Date:        date,
		Description: opts.description,
		Source:      model.SourceManual,
		Reference:   opts.reference,
		CreatedBy:   a.actor,
		Lines:       lines,
	})
	if err != nil {
		return err
	}
	if opts.post {
		if e, err = b.PostEntry(e.ID); err != nil {
			return err
		}
	}
	number := b.EntryNumber(e)
	a.record("journal.add", fmt.Sprintf("%s %s", number, e.Description), e.ID)
	a.printf("%s %s (%s)\n", number, e.Status, a.money(e.TotalDebit))
	return nil
}

// parseLine reads "CODE=AMOUNT" into a journal line on the given side.
func parseLine(b *ledger.Book, spec string, debit bool) (model.JournalLine, error) {
	code, amount, ok := strings.Cut(spec, "=")
	if !ok {
		return model.JournalLine{}, fmt.Errorf("line %q must be CODE=AMOUNT", spec)
	}
	acct, err := accountByCode(b, strings.TrimSpace(code))
	if err != nil {
		return model.JournalLine{}, err
	}
	d, err := parseAmount(strings.TrimSpace(amount))
	if err != nil {
		return model.JournalLine{}, err
	}
	if debit {
		return model.NewLine(acct.ID, d, decimal.Zero, ""), nil
	}
	return model.NewLine(acct.ID, decimal.Zero, d, ""), nil
}

// findEntry accepts "JV-2025-0003" or a bare sequence number.
func findEntry(b *ledger.Book, ref string) (model.JournalEntry, error) {
	seq, err := strconv.Atoi(ref)
	if err != nil {
		var year string
		if year, seq, err = id.ParseEntryNumber(ref); err != nil {
			return model.JournalEntry{}, err
		}
		if year != b.Key().Period {
			return model.JournalEntry{}, fmt.Errorf("%s belongs to %s, not %s", ref, year, b.Key().Period)
		}
	}
	e, ok := b.EntryByNumber(seq)
	if !ok {
		return model.JournalEntry{}, fmt.Errorf("entry %s not found", ref)
	}
	return e, nil
}

func newJournalPostCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "post <number>",
		Short: "Submit a draft for approval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalTransition(cmd, g, args[0], "journal.post", func(b *ledger.Book, e model.JournalEntry, actor string) (model.JournalEntry, error) {
				return b.PostEntry(e.ID)
			})
		},
	}
}

func newJournalApproveCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <number>",
		Short: "Approve a posted entry and apply its balances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalTransition(cmd, g, args[0], "journal.approve", func(b *ledger.Book, e model.JournalEntry, actor string) (model.JournalEntry, error) {
				return b.ApproveEntry(e.ID, actor)
			})
		},
	}
}

func newJournalRejectCommand(g *globalFlags) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <number>",
		Short: "Reject a posted entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalTransition(cmd, g, args[0], "journal.reject", func(b *ledger.Book, e model.JournalEntry, actor string) (model.JournalEntry, error) {
				return b.RejectEntry(e.ID, actor, reason)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the entry is rejected (required)")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func runJournalTransition(cmd *cobra.Command, g *globalFlags, ref, action string, fn func(*ledger.Book, model.JournalEntry, string) (model.JournalEntry, error)) error {
	a, err := loadApp(cmd, g)
	if err != nil {
		return err
	}
	b, err := a.openBook()
	if err != nil {
		return err
	}
	e, err := findEntry(b, ref)
	if err != nil {
		return err
	}
	e, err = fn(b, e, a.actor)
	if err != nil {
		return err
	}
	number := b.EntryNumber(e)
	a.record(action, number, e.ID)
	a.printf("%s %s\n", number, e.Status)
	return nil
}

type journalListOptions struct {
	status  string
	source  string
	account string
	from    string
	to      string
	text    string
	lines   bool
}

func newJournalListCommand(g *globalFlags) *cobra.Command {
	var opts journalListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journal entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalList(cmd, g, opts)
		},
	}
	cmd.Flags().StringVar(&opts.status, "status", "", "DRAFT, POSTED, APPROVED or REJECTED")
	cmd.Flags().StringVar(&opts.source, "source", "", "entry source, e.g. invoices")
	cmd.Flags().StringVar(&opts.account, "account", "", "only entries touching this account code")
	cmd.Flags().StringVar(&opts.from, "from", "", "first date YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.to, "to", "", "last date YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.text, "search", "", "text in description or reference")
	cmd.Flags().BoolVar(&opts.lines, "lines", false, "show entry lines")
	return cmd
}

func runJournalList(cmd *cobra.Command, g *globalFlags, opts journalListOptions) error {
	a, err := loadApp(cmd, g)
	if err != nil {
		return err
	}
	b, err := a.openBook()
	if err != nil {
		return err
	}

	f := journal.Filter{
		Status: model.EntryStatus(strings.ToUpper(opts.status)),
		Source: model.EntrySource(opts.source),
		Text:   opts.text,
	}
	if opts.account != "" {
		acct, err := accountByCode(b, opts.account)
		if err != nil {
			return err
		}
		f.AccountID = acct.ID
	}
	if opts.from != "" {
		if f.From, err = parseDate(opts.from); err != nil {
			return err
		}
	}
	if opts.to != "" {
		if f.To, err = parseDate(opts.to); err != nil {
			return err
		}
	}

	tw := a.table()
	fmt.Fprintln(tw, "NUMBER\tDATE\tSTATUS\tSOURCE\tAMOUNT\tDESCRIPTION")
	for _, e := range b.Entries(f) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", b.EntryNumber(e), e.Date.Format(dateLayout), e.Status, e.Source, a.money(e.TotalDebit), e.Description)
		if !opts.lines {
			continue
		}
		for _, l := range e.Lines {
			acct, _ := b.Account(l.AccountID)
			fmt.Fprintf(tw, "\t\t\t  %s %s\t%s\t%s\n", acct.Code, acct.Name, signed(a, l), l.Note)
		}
	}
	return tw.Flush()
}

func signed(a *app, l model.JournalLine) string {
	if l.Debit.IsPositive() {
		return "Dr " + a.money(l.Debit)
	}
	return "Cr " + a.money(l.Credit)
}

package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/bursar/internal/id"
	"github.com/cleared-dev/bursar/internal/invoicing"
	"github.com/cleared-dev/bursar/internal/ledger"
	"github.com/cleared-dev/bursar/internal/model"
)

func newInvoiceCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoice",
		Short: "Student invoices",
	}
	cmd.AddCommand(
		newInvoicePreviewCommand(g),
		newInvoiceGenerateCommand(g),
		newInvoiceVoidCommand(g),
		newInvoiceReissueCommand(g),
		newInvoiceListCommand(g),
	)
	return cmd
}

type batchOptions struct {
	grade      string
	term       int
	percentage string
	due        string
	date       string
	notes      string
	students   []string
	heads      []string
}

func (o *batchOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.grade, "grade", "", "grade ID (required)")
	cmd.Flags().IntVar(&o.term, "term", 0, "term 1 or 2; 0 bills the whole year")
	cmd.Flags().StringVar(&o.percentage, "percentage", "", "percent of the term amount to bill (default 100)")
	cmd.Flags().StringVar(&o.due, "due", "", "due date YYYY-MM-DD (default invoicing.due_days after --date)")
	cmd.Flags().StringVar(&o.date, "date", "", "issue date YYYY-MM-DD (default today)")
	cmd.Flags().StringArrayVar(&o.students, "student", nil, "bill only this student (repeatable)")
	cmd.Flags().StringArrayVar(&o.heads, "head", nil, "bill only this fee head (repeatable)")
	_ = cmd.MarkFlagRequired("grade")
}

func (o *batchOptions) params(a *app) (invoicing.PreviewParams, time.Time, error) {
	date, err := parseDate(o.date)
	if err != nil {
		return invoicing.PreviewParams{}, date, err
	}
	p := invoicing.PreviewParams{
		YearID:     a.key.Period,
		GradeID:    o.grade,
		Term:       o.term,
		DueDate:    date.AddDate(0, 0, a.cfg.Invoicing.DueDays),
		StudentIDs: o.students,
		FeeHeadIDs: o.heads,
	}
	if p.Percentage, err = optionalAmount(o.percentage); err != nil {
		return p, date, err
	}
	if o.due != "" {
		if p.DueDate, err = parseDate(o.due); err != nil {
			return p, date, err
		}
	}
	return p, date, nil
}

func newInvoicePreviewCommand(g *globalFlags) *cobra.Command {
	var opts batchOptions
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show what a batch would bill without changing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, g)
			if err != nil {
				return err
			}
			b, err := a.openBook()
			if err != nil {
				return err
			}
			p, _, err := opts.params(a)
			if err != nil {
				return err
			}
			rows, err := b.PreviewInvoices(p)
			if err != nil {
				return err
			}
			return printPreview(a, rows)
		},
	}
	opts.register(cmd)
	return cmd
}

func printPreview(a *app, rows []invoicing.PreviewRow) error {
	tw := a.table()
	fmt.Fprintln(tw, "STUDENT\tNAME\tGROSS\tDISCOUNT\tNET\tNOTE")
	for _, r := range rows {
		gross, disc := decimal.Zero, decimal.Zero
		for _, it := range r.Items {
			gross = gross.Add(it.Amount)
			disc = disc.Add(it.DiscountTotal())
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.StudentID, r.StudentName, a.money(gross), a.money(disc), a.money(r.Total), r.SkipReason)
	}
	return tw.Flush()
}

func newInvoiceGenerateCommand(g *globalFlags) *cobra.Command {
	var opts batchOptions
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Invoice a grade and post the batch to the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoiceGenerate(cmd, g, opts)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&opts.notes, "notes", "", "notes printed on every invoice")
	return cmd
}

func runInvoiceGenerate(cmd *cobra.Command, g *globalFlags, opts batchOptions) error {
	a, err := loadApp(cmd, g)
	if err != nil {
		return err
	}
	b, err := a.openBook()
	if err != nil {
		return err
	}
	p, date, err := opts.params(a)
	if err != nil {
		return err
	}
	rows, err := b.PreviewInvoices(p)
	if err != nil {
		return err
	}
	res, err := b.GenerateInvoices(rows, invoicing.GenerateParams{Actor: a.actor, Date: date, Notes: opts.notes})
	if err != nil {
		return err
	}

	for _, inv := range res.Invoices {
		a.printf("%s  %-10s %s\n", invoicing.DisplaySerial(inv), inv.StudentID, a.money(inv.Total))
	}
	for _, r := range res.Skipped {
		a.printf("skipped %s: %s\n", r.StudentID, r.SkipReason)
	}
	for _, f := range res.Failures {
		a.printf("failed %s: %s\n", f.StudentID, f.Reason)
	}
	a.printf("%d invoices, total %s\n", len(res.Invoices), a.money(res.Total()))
	if len(res.Invoices) > 0 {
		a.record("invoice.generate", fmt.Sprintf("%s term %d: %d invoices, %s", p.GradeID, p.Term, len(res.Invoices), res.Total().StringFixed(2)), res.JournalEntryID)
	}
	if len(res.Failures) > 0 {
		return fmt.Errorf("%d students could not be invoiced", len(res.Failures))
	}
	return nil
}

// findInvoice accepts "INV-000042" or a bare serial.
func findInvoice(b *ledger.Book, ref string) (model.Invoice, error) {
	serial, err := strconv.Atoi(ref)
	if err != nil {
		if serial, err = id.ParseSerial(id.PrefixInvoice, strings.ToUpper(ref)); err != nil {
			return model.Invoice{}, err
		}
	}
	inv, ok := b.InvoiceBySerial(serial)
	if !ok {
		return model.Invoice{}, fmt.Errorf("invoice %s not found", ref)
	}
	return inv, nil
}

func newInvoiceVoidCommand(g *globalFlags) *cobra.Command {
	var reason, date string
	cmd := &cobra.Command{
		Use:   "void <serial>",
		Short: "Void an invoice and reverse its journal entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, g)
			if err != nil {
				return err
			}
			b, err := a.openBook()
			if err != nil {
				return err
			}
			inv, err := findInvoice(b, args[0])
			if err != nil {
				return err
			}
			d, err := parseDate(date)
			if err != nil {
				return err
			}
			res, err := b.VoidInvoice(inv.ID, invoicing.VoidParams{Reason: reason, Actor: a.actor, Date: d})
			if err != nil {
				return err
			}
			serial := invoicing.DisplaySerial(res.Invoice)
			a.record("invoice.void", serial+": "+reason, inv.ID)
			a.printf("Voided %s\n", serial)
			if res.Warning != "" {
				a.printf("warning: %s\n", res.Warning)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the invoice is voided (required)")
	cmd.Flags().StringVar(&date, "date", "", "void date YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newInvoiceReissueCommand(g *globalFlags) *cobra.Command {
	var reason, percentage, due string
	cmd := &cobra.Command{
		Use:   "reissue <serial>...",
		Short: "Void invoices and bill the same students again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, g)
			if err != nil {
				return err
			}
			b, err := a.openBook()
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(args))
			for _, ref := range args {
				inv, err := findInvoice(b, ref)
				if err != nil {
					return err
				}
				ids = append(ids, inv.ID)
			}
			var p invoicing.ReissueParams
			if p.Percentage, err = optionalAmount(percentage); err != nil {
				return err
			}
			if due != "" {
				if p.DueDate, err = parseDate(due); err != nil {
					return err
				}
			}

			res, err := b.VoidAndReissue(ids, invoicing.VoidParams{Reason: reason, Actor: a.actor}, p)
			for _, inv := range res.Voided {
				a.printf("voided  %s\n", invoicing.DisplaySerial(inv))
			}
			for _, inv := range res.Generated.Invoices {
				a.printf("issued  %s  %-10s %s\n", invoicing.DisplaySerial(inv), inv.StudentID, a.money(inv.Total))
			}
			for _, w := range res.Warnings {
				a.printf("warning: %s\n", w)
			}
			if len(res.Voided) > 0 {
				a.record("invoice.reissue", fmt.Sprintf("%d voided, %d issued: %s", len(res.Voided), len(res.Generated.Invoices), reason), "")
			}
			return err
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the invoices are replaced (required)")
	cmd.Flags().StringVar(&percentage, "percentage", "", "percent to bill on the new invoices (default 100)")
	cmd.Flags().StringVar(&due, "due", "", "due date of the new invoices (default the old due date)")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newInvoiceListCommand(g *globalFlags) *cobra.Command {
	var student, grade string
	var voided bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invoices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, g)
			if err != nil {
				return err
			}
			b, err := a.openBook()
			if err != nil {
				return err
			}
			var invs []model.Invoice
			switch {
			case student != "":
				invs = b.InvoicesByStudent(student)
			case grade != "":
				invs = b.InvoicesByGrade(a.key.Period, grade)
			default:
				invs = b.Invoices()
			}

			tw := a.table()
			fmt.Fprintln(tw, "SERIAL\tSTUDENT\tGRADE\tTERM\tDUE\tTOTAL\tSTATE")
			for _, inv := range invs {
				if inv.Voided() && !voided {
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n", invoicing.DisplaySerial(inv), inv.StudentID, inv.GradeID, inv.Term, inv.DueDate.Format(dateLayout), a.money(inv.Total), inv.State)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			t := b.InvoiceTotals()
			a.printf("%d active (%d voided): gross %s, discounts %s, net %s\n", t.Count, t.Voided, a.money(t.Gross), a.money(t.Discounts), a.money(t.Net))
			return nil
		},
	}
	cmd.Flags().StringVar(&student, "student", "", "only this student's invoices")
	cmd.Flags().StringVar(&grade, "grade", "", "only this grade's invoices")
	cmd.Flags().BoolVar(&voided, "voided", false, "include voided invoices")
	return cmd
}

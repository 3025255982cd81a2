package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bursar/internal/id"
	"github.com/cleared-dev/bursar/internal/importer"
	"github.com/cleared-dev/bursar/internal/model"
	"github.com/cleared-dev/bursar/internal/payments"
)

func newPayCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Student payments",
	}
	cmd.AddCommand(newPayDistributeCommand(g), newPayImportCommand(g))
	return cmd
}

type payOptions struct {
	student   string
	amount    string
	treasury  string
	date      string
	reference string
	preview   bool
}

func newPayDistributeCommand(g *globalFlags) *cobra.Command {
	var opts payOptions
	cmd := &cobra.Command{
		Use:   "distribute",
		Short: "Record a payment and allocate it across outstanding fees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPayDistribute(cmd, g, opts)
		},
	}
	cmd.Flags().StringVar(&opts.student, "student", "", "student ID (required)")
	cmd.Flags().StringVar(&opts.amount, "amount", "", "amount received (required)")
	cmd.Flags().StringVar(&opts.treasury, "treasury", "cash", "treasury account ID from the roster")
	cmd.Flags().StringVar(&opts.date, "date", "", "payment date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&opts.reference, "reference", "", "bank or teller reference")
	cmd.Flags().BoolVar(&opts.preview, "preview", false, "show the allocation without recording it")
	_ = cmd.MarkFlagRequired("student")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func runPayDistribute(cmd *cobra.Command, g *globalFlags, opts payOptions) error {
	a, err := loadApp(cmd, g)
	if err != nil {
		return err
	}
	b, err := a.openBook()
	if err != nil {
		return err
	}
	amount, err := parseAmount(opts.amount)
	if err != nil {
		return err
	}

	if opts.preview {
		dist, err := b.PreviewPayment(opts.student, amount)
		if err != nil {
			return err
		}
		return printDistribution(a, dist)
	}

	date, err := parseDate(opts.date)
	if err != nil {
		return err
	}
	r, err := b.DistributePayment(payments.PaymentParams{
		StudentID:  opts.student,
		TreasuryID: opts.treasury,
		Date:       date,
		Reference:  opts.reference,
		Actor:      a.actor,
		Amount:     amount,
	})
	if err != nil {
		return err
	}
	printReceipt(a, r)
	a.record("pay.distribute", fmt.Sprintf("%s %s %s", payments.DisplayNumber(r), r.StudentID, r.Amount.StringFixed(2)), r.ID)
	return nil
}

func printDistribution(a *app, d payments.Distribution) error {
	tw := a.table()
	fmt.Fprintln(tw, "INVOICE\tFEE\tAPPLIED\tREMAINING")
	for _, al := range d.Allocations {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id.FormatSerial(id.PrefixInvoice, al.InvoiceSerial), al.FeeHeadName, a.money(al.Amount), a.money(al.Remaining))
	}
	if d.Credit.IsPositive() {
		fmt.Fprintf(tw, "\tcredit\t%s\t\n", a.money(d.Credit))
	}
	return tw.Flush()
}

func printReceipt(a *app, r model.Receipt) {
	a.printf("%s  %s  %s\n", payments.DisplayNumber(r), r.StudentID, a.money(r.Amount))
	for _, l := range r.Lines {
		if l.Kind == model.ReceiptLineCredit {
			a.printf("  credit            %s\n", a.money(l.Amount))
			continue
		}
		a.printf("  %s %-8s %s\n", id.FormatSerial(id.PrefixInvoice, l.InvoiceSerial), l.FeeHeadID, a.money(l.Amount))
	}
}

func newPayImportCommand(g *globalFlags) *cobra.Command {
	var format, treasury string
	var keep bool
	cmd := &cobra.Command{
		Use:   "import [file...]",
		Short: "Book bank deposits as payments",
		Long: "Book bank deposits as payments. Without file arguments every CSV in the tenant's " +
			"import/ directory is read and moved to import/processed/ once booked.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPayImport(cmd, g, args, format, treasury, keep)
		},
	}
	cmd.Flags().StringVar(&format, "format", "deposits", "file format: deposits or chase")
	cmd.Flags().StringVar(&treasury, "treasury", "bank", "treasury account for formats without one")
	cmd.Flags().BoolVar(&keep, "keep", false, "leave scanned files in import/")
	return cmd
}

func runPayImport(cmd *cobra.Command, g *globalFlags, files []string, format, treasury string, keep bool) error {
	a, err := loadApp(cmd, g)
	if err != nil {
		return err
	}
	parser := importer.DefaultRegistry(treasury).Get(format)
	if parser == nil {
		return fmt.Errorf("unknown import format %q", format)
	}
	b, err := a.openBook()
	if err != nil {
		return err
	}

	scanned := len(files) == 0
	if scanned {
		found, err := importer.Scan(a.tenantDir())
		if err != nil {
			return err
		}
		for _, f := range found {
			files = append(files, f.Path)
		}
	}
	if len(files) == 0 {
		a.printf("Nothing to import\n")
		return nil
	}

	rejected := 0
	for _, path := range files {
		deposits, err := parseFile(parser, path)
		if err != nil {
			return err
		}
		res := importer.Apply(b, deposits, a.actor, a.log.Named("importer"))
		for _, r := range res.Receipts {
			printReceipt(a, r)
		}
		for _, rj := range res.Rejected {
			a.printf("rejected %s %s: %s\n", rj.Deposit.Reference, a.money(rj.Deposit.Amount), rj.Reason)
		}
		a.printf("%s: %d booked, %d duplicates, %d rejected\n", filepath.Base(path), len(res.Receipts), len(res.Duplicates), len(res.Rejected))
		rejected += len(res.Rejected)

		if scanned && !keep {
			if err := importer.MarkProcessed(a.tenantDir(), filepath.Base(path)); err != nil {
				return err
			}
		}
		a.record("pay.import", fmt.Sprintf("%s: %d receipts", filepath.Base(path), len(res.Receipts)), "")
	}
	if rejected > 0 {
		return fmt.Errorf("%d deposits were not booked", rejected)
	}
	return nil
}

func parseFile(p importer.Parser, path string) ([]model.BankDeposit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	deps, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return deps, nil
}

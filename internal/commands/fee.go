package commands

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/bursar/internal/fees"
	"github.com/cleared-dev/bursar/internal/model"
)

func newFeeCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fee",
		Short: "Fee heads and grade fee structures",
	}
	cmd.AddCommand(
		newFeeHeadAddCommand(g),
		newFeeInitYearCommand(g),
		newFeeItemAddCommand(g),
		newFeeListCommand(g),
	)
	return cmd
}

type feeHeadOptions struct {
	id        string
	name      string
	account   string
	feeType   string
	priority  int
	recurring bool
}

func newFeeHeadAddCommand(g *globalFlags) *cobra.Command {
	var opts feeHeadOptions
	cmd := &cobra.Command{
		Use:   "head-add",
		Short: "Add a fee head bound to a revenue account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeeHeadAdd(cmd, g, opts)
		},
	}
	cmd.Flags().StringVar(&opts.id, "id", "", "fee head ID, e.g. tuition (default generated)")
	cmd.Flags().StringVar(&opts.name, "name", "", "fee head name (required)")
	cmd.Flags().StringVar(&opts.account, "account", "", "revenue account code (required)")
	cmd.Flags().StringVar(&opts.feeType, "type", string(model.FeeTypeMandatory), "MANDATORY or OPTIONAL")
	cmd.Flags().IntVar(&opts.priority, "priority", 1, "payment priority; lower is paid first")
	cmd.Flags().BoolVar(&opts.recurring, "recurring", true, "billed every term")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func runFeeHeadAdd(cmd *cobra.Command, g *globalFlags, opts feeHeadOptions) error {
	a, err := loadApp(cmd, g)
	if err != nil {
		return err
	}
	b, err := a.openBook()
	if err != nil {
		return err
	}
	acct, err := accountByCode(b, opts.account)
	if err != nil {
		return err
	}
	h, err := b.AddFeeHead(fees.HeadParams{
		ID:        opts.id,
		Name:      opts.name,
		AccountID: acct.ID,
		Type:      model.FeeType(strings.ToUpper(opts.feeType)),
		Recurring: opts.recurring,
		Priority:  opts.priority,
	})
	if err != nil {
		return err
	}
	a.record("fee.head-add", h.Name, h.ID)
	a.printf("Added fee head %s (%s) on %s\n", h.Name, h.ID, acct.Code)
	return nil
}

func newFeeInitYearCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init-year",
		Short: "Create an empty fee structure for every grade in the roster",
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
			created, err := b.InitYear(a.key.Period)
			if err != nil {
				return err
			}
			a.record("fee.init-year", fmt.Sprintf("%d structures", len(created)), a.key.Period)
			a.printf("Initialised %d grade fee structures for %s\n", len(created), a.key.Period)
			return nil
		},
	}
}

type feeItemOptions struct {
	grade   string
	head    string
	amount  string
	term1   string
	term2   string
	revenue string
}

func newFeeItemAddCommand(g *globalFlags) *cobra.Command {
	var opts feeItemOptions
	cmd := &cobra.Command{
		Use:   "item-add",
		Short: "Add a fee head's amount to a grade structure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeeItemAdd(cmd, g, opts)
		},
	}
	cmd.Flags().StringVar(&opts.grade, "grade", "", "grade ID (required)")
	cmd.Flags().StringVar(&opts.head, "head", "", "fee head ID (required)")
	cmd.Flags().StringVar(&opts.amount, "amount", "", "yearly amount (required)")
	cmd.Flags().StringVar(&opts.term1, "term1", "", "percent billed in term 1 (default 50)")
	cmd.Flags().StringVar(&opts.term2, "term2", "", "percent billed in term 2 (default 50)")
	cmd.Flags().StringVar(&opts.revenue, "revenue-account", "", "revenue account code overriding the head's")
	for _, f := range []string{"grade", "head", "amount"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func runFeeItemAdd(cmd *cobra.Command, g *globalFlags, opts feeItemOptions) error {
	a, err := loadApp(cmd, g)
	if err != nil {
		return err
	}
	b, err := a.openBook()
	if err != nil {
		return err
	}
	item := model.FeeItem{FeeHeadID: opts.head}
	if item.Amount, err = parseAmount(opts.amount); err != nil {
		return err
	}
	if item.Term1Pct, err = optionalAmount(opts.term1); err != nil {
		return err
	}
	if item.Term2Pct, err = optionalAmount(opts.term2); err != nil {
		return err
	}
	if opts.revenue != "" {
		acct, err := accountByCode(b, opts.revenue)
		if err != nil {
			return err
		}
		item.RevenueAccountID = acct.ID
	}

	st, err := b.AddGradeFeeItem(a.key.Period, opts.grade, item)
	if err != nil {
		return err
	}
	a.record("fee.item-add", fmt.Sprintf("%s %s %s", opts.grade, opts.head, item.Amount.StringFixed(2)), st.ID)
	a.printf("Grade %s now totals %s\n", st.GradeID, a.money(st.Total))
	return nil
}

func optionalAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return parseAmount(s)
}

func newFeeListCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List fee heads and the year's grade structures",
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

			tw := a.table()
			fmt.Fprintln(tw, "HEAD\tNAME\tACCOUNT\tTYPE\tPRIORITY\tSTATE")
			for _, h := range b.FeeHeads() {
				acct, _ := b.Account(h.AccountID)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", h.ID, h.Name, acct.Code, h.Type, h.Priority, h.State)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			structures := b.FeeStructures(a.key.Period)
			if len(structures) == 0 {
				return nil
			}
			a.printf("\n")
			tw = a.table()
			fmt.Fprintln(tw, "GRADE\tHEAD\tAMOUNT\tTERM 1 %\tTERM 2 %")
			for _, st := range structures {
				for _, it := range st.Items {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", st.GradeID, it.FeeHeadID, a.money(it.Amount), it.Term1Pct.String(), it.Term2Pct.String())
				}
				fmt.Fprintf(tw, "%s\tTOTAL\t%s\t\t\n", st.GradeID, a.money(st.Total))
			}
			return tw.Flush()
		},
	}
}

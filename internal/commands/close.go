package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bursar/internal/config"
	"github.com/cleared-dev/bursar/internal/gitops"
	"github.com/cleared-dev/bursar/internal/id"
	"github.com/cleared-dev/bursar/internal/ledger"
)

func newCloseCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close",
		Short: "Year-end close",
	}
	cmd.AddCommand(newCloseCheckCommand(g), newCloseRunCommand(g))
	return cmd
}

func newCloseCheckCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "List what blocks closing the year",
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
			if b.Closed() {
				a.printf("%s is already closed\n", a.key.Period)
				return nil
			}
			report := b.CheckClose()
			if report.Ready() {
				a.printf("%s is ready to close\n", a.key.Period)
				return nil
			}
			tw := a.table()
			fmt.Fprintln(tw, "ISSUE\tENTITY\tDESCRIPTION")
			for _, is := range report.Issues {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", is.Kind, is.EntityID, is.Description)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			return report.Err()
		},
	}
}

func newCloseRunCommand(g *globalFlags) *cobra.Command {
	var next, date string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Close the year and open the next one",
		Long: "Close the year and open the next one. Closing cannot be undone: the closed " +
			"period rejects every further change.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCloseRun(cmd, g, next, date)
		},
	}
	cmd.Flags().StringVar(&next, "next-year", "", "ID of the next year (default year + 1)")
	cmd.Flags().StringVar(&date, "date", "", "close date YYYY-MM-DD (default today)")
	return cmd
}

func runCloseRun(cmd *cobra.Command, g *globalFlags, next, date string) error {
	a, err := loadApp(cmd, g)
	if err != nil {
		return err
	}
	b, err := a.openBook()
	if err != nil {
		return err
	}
	p := ledger.CloseParams{Actor: a.actor, NextYearID: next}
	if date != "" {
		if p.Date, err = parseDate(date); err != nil {
			return err
		}
	}
	res, err := b.Close(p)
	if err != nil {
		return err
	}

	a.printf("Closed %s; opened %s (%s to %s)\n", res.Closed.YearID, res.Next.YearID,
		res.Next.StartDate.Format(dateLayout), res.Next.EndDate.Format(dateLayout))
	if res.OpeningEntry.ID != "" {
		a.printf("Opening entry %s, %d lines, total %s\n", id.FormatEntryNumber(res.Next.YearID, res.OpeningEntry.Number), len(res.OpeningEntry.Lines), a.money(res.OpeningEntry.TotalDebit))
	}
	if !res.Plug.IsZero() {
		a.printf("Retained earnings absorbed %s\n", a.money(res.Plug))
	}

	hash := a.record("close.run", fmt.Sprintf("%s closed, %s opened", res.Closed.YearID, res.Next.YearID), res.Closed.YearID)
	if hash != "" {
		tag := fmt.Sprintf("%s-%s-closed", a.key.Tenant, res.Closed.YearID)
		if err := gitops.Tag(a.baseDir, tag, "Year-end close of "+res.Closed.YearID, a.author()); err != nil {
			return err
		}
		a.printf("Tagged %s at %s\n", tag, hash)
	}
	a.printf("Set fiscal.year to %s in %s to work in the new year\n", res.Next.YearID, config.FileName)
	return nil
}

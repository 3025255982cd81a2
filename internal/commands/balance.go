package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bursar/internal/id"
	"github.com/cleared-dev/bursar/internal/ledger"
)

func newBalanceCommand(g *globalFlags) *cobra.Command {
	var student string
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show what students owe",
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
			if student != "" {
				return printStudentBalance(a, b, student)
			}

			tw := a.table()
			fmt.Fprintln(tw, "STUDENT\tNAME\tINVOICED\tPAID\tBALANCE")
			for _, bal := range b.Balances() {
				name := ""
				if s, ok := b.Roster().Student(bal.StudentID); ok {
					name = s.Name
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", bal.StudentID, name, a.money(bal.Invoiced), a.money(bal.Paid), a.money(bal.Balance))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&student, "student", "", "show one student's outstanding fees")
	return cmd
}

func printStudentBalance(a *app, b *ledger.Book, studentID string) error {
	tw := a.table()
	fmt.Fprintln(tw, "INVOICE\tFEE\tPRIORITY\tOUTSTANDING")
	for _, o := range b.Outstanding(studentID) {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", id.FormatSerial(id.PrefixInvoice, o.InvoiceSerial), o.FeeHeadName, o.Priority, a.money(o.Balance))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	bal := b.StudentBalance(studentID)
	if bal.IsNegative() {
		a.printf("%s has a credit of %s\n", studentID, a.money(bal.Neg()))
		return nil
	}
	a.printf("%s owes %s\n", studentID, a.money(bal))
	return nil
}

package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bursar/internal/model"
)

func newAccountCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Chart of accounts",
	}
	cmd.AddCommand(
		newAccountListCommand(g),
		newAccountAddCommand(g),
		newAccountLockCommand(g),
		newAccountNextCodeCommand(g),
	)
	return cmd
}

func newAccountListCommand(g *globalFlags) *cobra.Command {
	var accountType string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts as a tree with balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccountList(cmd, g, model.AccountType(accountType))
		},
	}
	cmd.Flags().StringVar(&accountType, "type", "", "only accounts of this type")
	return cmd
}

func runAccountList(cmd *cobra.Command, g *globalFlags, accountType model.AccountType) error {
	a, err := loadApp(cmd, g)
	if err != nil {
		return err
	}
	b, err := a.openBook()
	if err != nil {
		return err
	}

	tw := a.table()
	fmt.Fprintln(tw, "CODE\tNAME\tTYPE\tBALANCE\tFLAGS")
	for _, acct := range b.Accounts() {
		if accountType != "" && acct.Type != accountType {
			continue
		}
		var flags []string
		if acct.IsMain {
			flags = append(flags, "main")
		}
		if acct.SystemTag != "" {
			flags = append(flags, string(acct.SystemTag))
		}
		if acct.Locked {
			flags = append(flags, "locked")
		}
		indent := strings.Repeat("  ", acct.Level-1)
		fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\t%s\n", indent, acct.Code, acct.Name, acct.Type, a.money(acct.Balance), strings.Join(flags, ","))
	}
	return tw.Flush()
}

type accountAddOptions struct {
	code        string
	name        string
	accountType string
	parent      string
	description string
}

func newAccountAddCommand(g *globalFlags) *cobra.Command {
	var opts accountAddOptions
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccountAdd(cmd, g, opts)
		},
	}
	cmd.Flags().StringVar(&opts.code, "code", "", "account code; defaults to the next free code under --parent")
	cmd.Flags().StringVar(&opts.name, "name", "", "account name (required)")
	cmd.Flags().StringVar(&opts.accountType, "type", "", "account type; defaults to the parent's type")
	cmd.Flags().StringVar(&opts.parent, "parent", "", "parent account code")
	cmd.Flags().StringVar(&opts.description, "description", "", "description")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func runAccountAdd(cmd *cobra.Command, g *globalFlags, opts accountAddOptions) error {
	a, err := loadApp(cmd, g)
	if err != nil {
		return err
	}
	b, err := a.openBook()
	if err != nil {
		return err
	}

	acct := model.Account{
		Code:        opts.code,
		Name:        opts.name,
		Type:        model.AccountType(opts.accountType),
		Description: opts.description,
	}
	if opts.parent != "" {
		parent, err := accountByCode(b, opts.parent)
		if err != nil {
			return err
		}
		acct.ParentID = parent.ID
		if acct.Type == "" {
			acct.Type = parent.Type
		}
	}
	if acct.Code == "" {
		if acct.ParentID == "" {
			return fmt.Errorf("--code is required for a root account")
		}
		if acct.Code, err = b.NextCode(acct.ParentID); err != nil {
			return err
		}
	}

	added, err := b.AddAccount(acct)
	if err != nil {
		return err
	}
	a.record("account.add", fmt.Sprintf("%s %s", added.Code, added.Name), added.ID)
	a.printf("Added account %s %s (%s)\n", added.Code, added.Name, added.Type)
	return nil
}

func newAccountLockCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "lock <code>",
		Short: "Lock an account's code, parent and type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccountLock(cmd, g, args[0])
		},
	}
}

func runAccountLock(cmd *cobra.Command, g *globalFlags, code string) error {
	a, err := loadApp(cmd, g)
	if err != nil {
		return err
	}
	b, err := a.openBook()
	if err != nil {
		return err
	}
	acct, err := accountByCode(b, code)
	if err != nil {
		return err
	}
	if err := b.LockAccount(acct.ID); err != nil {
		return err
	}
	a.record("account.lock", acct.Code, acct.ID)
	a.printf("Locked account %s %s\n", acct.Code, acct.Name)
	return nil
}

func newAccountNextCodeCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "next-code <parent-code>",
		Short: "Print the next free child code under a parent",
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
			parent, err := accountByCode(b, args[0])
			if err != nil {
				return err
			}
			code, err := b.NextCode(parent.ID)
			if err != nil {
				return err
			}
			a.printf("%s\n", code)
			return nil
		},
	}
}

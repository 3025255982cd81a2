// Package commands implements the bursar command line.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bursar/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:     "bursar",
		Short:   "School fee ledger",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "bursar.yaml", "path to bursar.yaml")
	pf.StringVar(&g.root, "root", "", "books directory (overrides store.root)")
	pf.StringVar(&g.tenant, "tenant", "", "tenant ID (overrides tenant.id)")
	pf.StringVar(&g.year, "year", "", "fiscal year (overrides fiscal.year)")
	pf.StringVar(&g.actor, "actor", "", "who is running the command (defaults to the OS user)")
	pf.StringVar(&g.logLevel, "log-level", "", "log level (overrides log.level)")

	rootCmd.AddCommand(
		newInitCommand(g),
		newAccountCommand(g),
		newJournalCommand(g),
		newFeeCommand(g),
		newInvoiceCommand(g),
		newPayCommand(g),
		newBalanceCommand(g),
		newCloseCommand(g),
		newWatchCommand(g),
	)

	return rootCmd
}

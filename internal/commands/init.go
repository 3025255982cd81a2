package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bursar/internal/accounts"
	"github.com/cleared-dev/bursar/internal/config"
	"github.com/cleared-dev/bursar/internal/gitops"
	"github.com/cleared-dev/bursar/internal/ledger"
	"github.com/cleared-dev/bursar/internal/logger"
	"github.com/cleared-dev/bursar/internal/model"
	"github.com/cleared-dev/bursar/internal/roster"
	"github.com/cleared-dev/bursar/internal/store"
)

type initOptions struct {
	tenant    string
	name      string
	year      string
	yearStart string
	noGit     bool
}

func newInitCommand(g *globalFlags) *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize books for a school",
		Long:  "Initialize books for a school. --tenant and --year name the tenant and its first fiscal year.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			opts.tenant, opts.year = g.tenant, g.year
			return runInit(cmd, absDir, opts)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "school name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&opts.yearStart, "year-start", "01-01", "first day of the fiscal year as MM-DD")
	cmd.Flags().BoolVar(&opts.noGit, "no-git", false, "do not create a git repository")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, opts initOptions) error {
	cfg := config.Default(opts.tenant, opts.name, opts.year)
	cfg.Fiscal.YearStart = opts.yearStart
	cfg.Git.AutoCommit = !opts.noGit
	if err := cfg.Validate(); err != nil {
		return err
	}
	start, end, err := cfg.YearBounds(opts.year)
	if err != nil {
		return err
	}

	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	st := store.NewFileStore(filepath.Join(dir, cfg.Store.Root), nil, log.Named("store"))

	// Starter roster: the two treasury accounts of the default chart.
	r := roster.New(nil, nil, []model.TreasuryAccount{
		{ID: "cash", Name: "Cash on Hand", AccountID: accounts.DefaultID("1101")},
		{ID: "bank", Name: "Bank", AccountID: accounts.DefaultID("1102")},
	})
	if err := roster.Save(st.RosterDir(opts.tenant), r); err != nil {
		return fmt.Errorf("writing roster: %w", err)
	}

	period := model.Period{TenantID: opts.tenant, YearID: opts.year, StartDate: start, EndDate: end}
	if _, err := ledger.Create(st, period, accounts.DefaultChart(), ledger.Options{Roster: r, Logger: log}); err != nil {
		return fmt.Errorf("creating period: %w", err)
	}

	importDir := filepath.Join(st.Root(), opts.tenant, "import")
	if err := os.MkdirAll(filepath.Join(importDir, "processed"), 0o755); err != nil {
		return fmt.Errorf("creating import dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(importDir, ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}

	hash := ""
	if !opts.noGit {
		if err := gitops.Init(dir); err != nil {
			return err
		}
		author := gitops.Author{Name: cfg.Git.AuthorName, Email: cfg.Git.AuthorEmail}
		if hash, err = gitops.CommitAll(dir, "init: "+opts.name+" "+opts.year, author); err != nil {
			return fmt.Errorf("initial commit: %w", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized books for %s (%s) at %s", opts.name, opts.year, dir)
	if hash != "" {
		fmt.Fprintf(cmd.OutOrStdout(), " (%s)", hash)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}

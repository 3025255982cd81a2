package commands

import (
	"fmt"
	"io"
	"os/user"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/cleared-dev/bursar/internal/audit"
	"github.com/cleared-dev/bursar/internal/config"
	"github.com/cleared-dev/bursar/internal/gitops"
	"github.com/cleared-dev/bursar/internal/ledger"
	"github.com/cleared-dev/bursar/internal/logger"
	"github.com/cleared-dev/bursar/internal/model"
	"github.com/cleared-dev/bursar/internal/store"
)

const dateLayout = "2006-01-02"

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	root       string
	tenant     string
	year       string
	actor      string
	logLevel   string
}

// app is what a command needs once bursar.yaml is loaded.
type app struct {
	cfg     *config.Config
	baseDir string
	log     *zap.Logger
	store   *store.FileStore
	key     store.Key
	actor   string
	out     io.Writer
	p       *message.Printer
}

func loadApp(cmd *cobra.Command, g *globalFlags) (*app, error) {
	cfgPath, err := filepath.Abs(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if g.tenant != "" {
		cfg.Tenant.ID = g.tenant
	}
	if g.year != "" {
		cfg.Fiscal.Year = g.year
	}
	if g.root != "" {
		cfg.Store.Root = g.root
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	baseDir := filepath.Dir(cfgPath)
	root := cfg.Store.Root
	if !filepath.IsAbs(root) {
		root = filepath.Join(baseDir, root)
	}

	return &app{
		cfg:     cfg,
		baseDir: baseDir,
		log:     log,
		store:   store.NewFileStore(root, nil, log.Named("store")),
		key:     store.Key{Tenant: cfg.Tenant.ID, Period: cfg.Fiscal.Year},
		actor:   resolveActor(g.actor),
		out:     cmd.OutOrStdout(),
		p:       message.NewPrinter(language.English),
	}, nil
}

func resolveActor(flag string) string {
	if flag != "" {
		return flag
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "bursar"
}

func (a *app) options() ledger.Options {
	return ledger.Options{RollIncomeToPnL: a.cfg.Closing.RollIncome, Logger: a.log}
}

func (a *app) openBook() (*ledger.Book, error) {
	b, err := ledger.Open(a.store, a.key, a.options())
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", a.key, err)
	}
	return b, nil
}

func (a *app) tenantDir() string {
	return filepath.Join(a.store.Root(), a.key.Tenant)
}

// record appends to the audit trail and, when git.auto_commit is set and the
// project is a repository, commits the books. A failure here is reported as
// a warning: the ledger change itself has already been saved.
func (a *app) record(action, details, entityID string) string {
	var hash string
	if a.cfg.Git.AutoCommit && gitops.IsRepo(a.baseDir) {
		var err error
		hash, err = gitops.CommitAll(a.baseDir, fmt.Sprintf("%s: %s", action, details), a.author())
		if err != nil {
			a.log.Warn("commit failed", zap.Error(err))
		}
	}
	entry := audit.Entry{
		Timestamp:  time.Now(),
		Actor:      a.actor,
		Period:     a.key.Period,
		Action:     action,
		Details:    details,
		EntityID:   entityID,
		CommitHash: hash,
	}
	if err := audit.Append(a.tenantDir(), []audit.Entry{entry}); err != nil {
		a.log.Warn("audit trail not written", zap.Error(err))
	}
	return hash
}

func (a *app) author() gitops.Author {
	return gitops.Author{Name: a.cfg.Git.AuthorName, Email: a.cfg.Git.AuthorEmail}
}

func (a *app) money(d decimal.Decimal) string {
	return a.p.Sprintf("%.2f", d.Round(2).InexactFloat64())
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD", s)
	}
	return t, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %q is not a number", s)
	}
	return d, nil
}

func accountByCode(b *ledger.Book, code string) (model.Account, error) {
	a, ok := b.AccountByCode(code)
	if !ok {
		return model.Account{}, fmt.Errorf("no account with code %s", code)
	}
	return a, nil
}

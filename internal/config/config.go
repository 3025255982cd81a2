// Package config reads and writes bursar.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/bursar/internal/logger"
)

// FileName is the config file created by `bursar init`.
const FileName = "bursar.yaml"

// EnvPrefix prefixes environment overrides, e.g. BURSAR_FISCAL_YEAR.
const EnvPrefix = "BURSAR"

// Config represents the top-level bursar.yaml configuration.
type Config struct {
	Tenant    TenantConfig    `yaml:"tenant"`
	Fiscal    FiscalConfig    `yaml:"fiscal"`
	Store     StoreConfig     `yaml:"store"`
	Invoicing InvoicingConfig `yaml:"invoicing"`
	Closing   ClosingConfig   `yaml:"closing"`
	Log       logger.Config   `yaml:"log"`
	Git       GitConfig       `yaml:"git"`
}

// TenantConfig identifies the school whose books these are.
type TenantConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// FiscalConfig defines the current year and where years begin.
type FiscalConfig struct {
	Year      string `yaml:"year"`
	YearStart string `yaml:"year_start"` // "MM-DD" format, e.g. "09-01"
}

// StoreConfig locates the books on disk. A relative root is resolved
// against the directory holding bursar.yaml.
type StoreConfig struct {
	Root string `yaml:"root"`
}

// InvoicingConfig holds defaults for invoice batches.
type InvoicingConfig struct {
	DueDays int `yaml:"due_days"`
}

// ClosingConfig controls year-end close.
type ClosingConfig struct {
	RollIncome bool `yaml:"roll_income"`
}

// GitConfig controls git integration.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Default returns a Config with sensible defaults for a new school.
func Default(tenantID, tenantName, year string) *Config {
	return &Config{
		Tenant: TenantConfig{ID: tenantID, Name: tenantName},
		Fiscal: FiscalConfig{Year: year, YearStart: "01-01"},
		Store:  StoreConfig{Root: "books"},
		Invoicing: InvoicingConfig{
			DueDays: 30,
		},
		Log: logger.DefaultConfig(),
		Git: GitConfig{
			AutoCommit:  true,
			AuthorName:  "Bursar",
			AuthorEmail: "bursar@localhost",
		},
	}
}

// Load reads a bursar.yaml file and applies BURSAR_* environment overrides.
// A missing file is an error wrapping os.ErrNotExist.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v, Default("", "", ""))
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Tenant: TenantConfig{
			ID:   v.GetString("tenant.id"),
			Name: v.GetString("tenant.name"),
		},
		Fiscal: FiscalConfig{
			Year:      v.GetString("fiscal.year"),
			YearStart: v.GetString("fiscal.year_start"),
		},
		Store: StoreConfig{
			Root: v.GetString("store.root"),
		},
		Invoicing: InvoicingConfig{
			DueDays: v.GetInt("invoicing.due_days"),
		},
		Closing: ClosingConfig{
			RollIncome: v.GetBool("closing.roll_income"),
		},
		Log: logger.Config{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Git: GitConfig{
			AutoCommit:  v.GetBool("git.auto_commit"),
			AuthorName:  v.GetString("git.author_name"),
			AuthorEmail: v.GetString("git.author_email"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("tenant.id", d.Tenant.ID)
	v.SetDefault("tenant.name", d.Tenant.Name)
	v.SetDefault("fiscal.year", d.Fiscal.Year)
	v.SetDefault("fiscal.year_start", d.Fiscal.YearStart)
	v.SetDefault("store.root", d.Store.Root)
	v.SetDefault("invoicing.due_days", d.Invoicing.DueDays)
	v.SetDefault("closing.roll_income", d.Closing.RollIncome)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output", d.Log.Output)
	v.SetDefault("git.auto_commit", d.Git.AutoCommit)
	v.SetDefault("git.author_name", d.Git.AuthorName)
	v.SetDefault("git.author_email", d.Git.AuthorEmail)
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate checks the fields every command depends on.
func (c *Config) Validate() error {
	var errs []error
	if c.Tenant.ID == "" {
		errs = append(errs, errors.New("tenant.id is required"))
	}
	if c.Fiscal.Year == "" {
		errs = append(errs, errors.New("fiscal.year is required"))
	}
	if _, err := time.Parse("01-02", c.Fiscal.YearStart); err != nil {
		errs = append(errs, fmt.Errorf("fiscal.year_start %q must be MM-DD", c.Fiscal.YearStart))
	}
	if c.Invoicing.DueDays < 0 {
		errs = append(errs, errors.New("invoicing.due_days must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// YearBounds returns the first and last day of a fiscal year named by its
// starting calendar year.
func (c *Config) YearBounds(year string) (time.Time, time.Time, error) {
	md, err := time.Parse("01-02", c.Fiscal.YearStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("fiscal.year_start %q must be MM-DD", c.Fiscal.YearStart)
	}
	y, err := time.Parse("2006", year)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("fiscal year %q must be a four digit year", year)
	}
	start := time.Date(y.Year(), md.Month(), md.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, -1), nil
}

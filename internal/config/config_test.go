package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default("greenfield", "Greenfield Academy", "2025")
	cfg.Fiscal.YearStart = "09-01"
	cfg.Closing.RollIncome = true
	cfg.Invoicing.DueDays = 14

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestDefaults(t *testing.T) {
	cfg := Default("greenfield", "Greenfield Academy", "2025")

	assert.Equal(t, "greenfield", cfg.Tenant.ID)
	assert.Equal(t, "Greenfield Academy", cfg.Tenant.Name)
	assert.Equal(t, "2025", cfg.Fiscal.Year)
	assert.Equal(t, "01-01", cfg.Fiscal.YearStart)
	assert.Equal(t, "books", cfg.Store.Root)
	assert.Equal(t, 30, cfg.Invoicing.DueDays)
	assert.False(t, cfg.Closing.RollIncome)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.Git.AutoCommit)
	assert.Equal(t, "Bursar", cfg.Git.AuthorName)
	assert.NoError(t, cfg.Validate())
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("tenant:\n  id: greenfield\nfiscal:\n  year: \"2025\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "01-01", cfg.Fiscal.YearStart)
	assert.Equal(t, "books", cfg.Store.Root)
	assert.Equal(t, 30, cfg.Invoicing.DueDays)
	assert.True(t, cfg.Git.AutoCommit)
}

func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, Default("greenfield", "", "2025")))

	t.Setenv("BURSAR_FISCAL_YEAR", "2026")
	t.Setenv("BURSAR_CLOSING_ROLL_INCOME", "true")
	t.Setenv("BURSAR_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "2026", cfg.Fiscal.Year)
	assert.True(t, cfg.Closing.RollIncome)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("fiscal:\n  year_start: spring\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tenant.id is required")
	assert.Contains(t, err.Error(), "fiscal.year is required")
	assert.Contains(t, err.Error(), "must be MM-DD")
}

func TestYAMLFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, Default("greenfield", "Greenfield Academy", "2025")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "id: greenfield")
	assert.Contains(t, contents, "name: Greenfield Academy")
	assert.Contains(t, contents, "year_start: 01-01")
	assert.Contains(t, contents, "roll_income: false")
	assert.Contains(t, contents, "auto_commit: true")
}

func TestYearBounds(t *testing.T) {
	cfg := Default("greenfield", "", "2025")
	cfg.Fiscal.YearStart = "09-01"

	start, end, err := cfg.YearBounds("2025")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), end)

	_, _, err = cfg.YearBounds("FY25")
	assert.Error(t, err)
}

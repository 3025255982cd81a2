package gitops

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAuthor = Author{Name: "Test Author", Email: "test@example.com"}

func gitOutput(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	require.NoError(t, err)
	return strings.TrimSpace(string(out))
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Init(dir))

	_, err := os.Stat(filepath.Join(dir, ".git"))
	require.NoError(t, err, ".git directory should exist")
}

func TestIsRepo(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, IsRepo(dir), "empty dir should not be a repo")

	require.NoError(t, Init(dir))
	assert.True(t, IsRepo(dir), "initialized dir should be a repo")
}

func TestCommitAll(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Init(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "accounts.csv"), []byte("id,code\n"), 0o644))

	hash, err := CommitAll(dir, "init: greenfield 2025", testAuthor)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	assert.Equal(t, "init: greenfield 2025", gitOutput(t, dir, "log", "--format=%s", "-1"))
	assert.Equal(t, "Test Author <test@example.com>", gitOutput(t, dir, "log", "--format=%an <%ae>", "-1"))

	dirty, err := Dirty(dir)
	require.NoError(t, err)
	assert.False(t, dirty)
}

func TestCommitAll_NothingToCommit(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Init(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	_, err := CommitAll(dir, "first", testAuthor)
	require.NoError(t, err)

	hash, err := CommitAll(dir, "second", testAuthor)
	require.NoError(t, err)
	assert.Empty(t, hash)
}

func TestTag(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Init(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "period.yaml"), []byte("closed: true\n"), 0o644))
	hash, err := CommitAll(dir, "close: 2025", testAuthor)
	require.NoError(t, err)

	require.NoError(t, Tag(dir, "greenfield-2025-closed", "year-end close", testAuthor))
	assert.Equal(t, hash, gitOutput(t, dir, "rev-parse", "--short", "greenfield-2025-closed^{commit}"))

	assert.Error(t, Tag(dir, "greenfield-2025-closed", "again", testAuthor), "tags are not overwritten")
}

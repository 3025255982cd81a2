// Package gitops snapshots the books directory in git.
package gitops

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Author identifies who a commit or tag is recorded for.
type Author struct {
	Name  string
	Email string
}

func (a Author) env() []string {
	return append(os.Environ(),
		"GIT_AUTHOR_NAME="+a.Name,
		"GIT_AUTHOR_EMAIL="+a.Email,
		"GIT_COMMITTER_NAME="+a.Name,
		"GIT_COMMITTER_EMAIL="+a.Email,
	)
}

// Init initializes a new git repository at dir.
func Init(dir string) error {
	if _, err := run(dir, nil, "init", "--quiet"); err != nil {
		return fmt.Errorf("git init: %w", err)
	}
	return nil
}

// IsRepo reports whether dir is the root of a git repository.
func IsRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// Dirty reports whether dir has uncommitted changes.
func Dirty(dir string) (bool, error) {
	out, err := run(dir, nil, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("git status: %w", err)
	}
	return strings.TrimSpace(out) != "", nil
}

// CommitAll stages all files and creates a commit. Returns the short commit
// hash, or "" when there was nothing to commit.
func CommitAll(dir, message string, author Author) (string, error) {
	if _, err := run(dir, nil, "add", "-A"); err != nil {
		return "", fmt.Errorf("git add: %w", err)
	}
	dirty, err := Dirty(dir)
	if err != nil {
		return "", err
	}
	if !dirty {
		return "", nil
	}
	if _, err := run(dir, author.env(), "commit", "--quiet", "-m", message); err != nil {
		return "", fmt.Errorf("git commit: %w", err)
	}
	return Head(dir)
}

// Head returns the short hash of HEAD.
func Head(dir string) (string, error) {
	out, err := run(dir, nil, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Tag creates an annotated tag on HEAD.
func Tag(dir, name, message string, author Author) error {
	if _, err := run(dir, author.env(), "tag", "-a", name, "-m", message); err != nil {
		return fmt.Errorf("git tag %s: %w", name, err)
	}
	return nil
}

func run(dir string, env []string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if env != nil {
		cmd.Env = env
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s: %w", strings.TrimSpace(string(out)), err)
	}
	return string(out), nil
}

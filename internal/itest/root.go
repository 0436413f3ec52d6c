//go:build integration

package itest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// findRepoRoot walks up from the working directory to the module root, which
// is the directory holding both go.mod and the hlshorts command.
func findRepoRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for range 10 {
		if isRepoRoot(wd) {
			return wd, nil
		}
		parent := filepath.Dir(wd)
		if parent == wd {
			break
		}
		wd = parent
	}
	return "", errors.New("could not locate the hlshorts module root")
}

func isRepoRoot(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, "go.mod")); err != nil {
		return false
	}
	st, err := os.Stat(filepath.Join(dir, "cmd", "hlshorts"))
	return err == nil && st.IsDir()
}

func mustRepoRoot(t *testing.T) string {
	t.Helper()

	repoRoot, err := findRepoRoot()
	if err != nil {
		t.Fatalf("repo root: %v", err)
	}
	return repoRoot
}

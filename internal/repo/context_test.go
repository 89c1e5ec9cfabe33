package repo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNameFromURL(t *testing.T) {
	cases := map[string]string{
		"https://github.com/deploypilotorg/example-repo.git": "example-repo",
		"https://github.com/deploypilotorg/example-repo":     "example-repo",
		"https://github.com/deploypilotorg/example-repo/":    "example-repo",
	}
	for url, want := range cases {
		if got := NameFromURL(url); got != want {
			t.Fatalf("NameFromURL(%q) = %q, want %q", url, got, want)
		}
	}
}

func TestValidateEmpty(t *testing.T) {
	ctx := NewContext()
	if err := ctx.Validate(false); !errors.Is(err, ErrNoRepository) {
		t.Fatalf("expected ErrNoRepository, got %v", err)
	}
}

func TestValidateGitCheck(t *testing.T) {
	dir := t.TempDir()
	ctx := NewContext()
	ctx.Set(dir, "https://example.com/demo.git")

	if err := ctx.Validate(false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ctx.Validate(true); err == nil {
		t.Fatalf("expected git check to fail without .git")
	}
	if err := os.MkdirAll(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := ctx.Validate(true); err != nil {
		t.Fatalf("unexpected error after adding .git: %v", err)
	}
}

func TestClearRemovesDirectory(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "checkout")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	ctx := NewContext()
	ctx.Set(dir, "https://example.com/demo.git")
	ctx.Clear()

	if _, ok := ctx.Snapshot(); ok {
		t.Fatalf("expected empty context after Clear")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected checkout directory to be removed")
	}
}

package tools

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"deploypilot/internal/repo"
)

func seedCheckout(t *testing.T) (*repo.Context, string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "src", "main.py"), []byte("print('hi')\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx := repo.NewContext()
	ctx.Set(dir, "https://example.com/owner/demo.git")
	return ctx, dir
}

func TestRepositoryListFiles(t *testing.T) {
	rctx, _ := seedCheckout(t)
	tool := NewRepositoryTool(rctx)

	res, err := tool.Execute(context.Background(), map[string]any{"action": "list_files"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasPrefix(res.Content, "Files in repository demo:") {
		t.Fatalf("unexpected header: %q", res.Content)
	}
	for _, want := range []string{"📄 README.md", "📁 src", "📄 src/main.py"} {
		if !strings.Contains(res.Content, want) {
			t.Errorf("listing missing %q:\n%s", want, res.Content)
		}
	}

	again, err := tool.Execute(context.Background(), map[string]any{"action": "list_files"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if again.Content != res.Content {
		t.Error("repeated listing differs")
	}
}

func TestRepositoryReadFile(t *testing.T) {
	rctx, _ := seedCheckout(t)
	tool := NewRepositoryTool(rctx)

	res, err := tool.Execute(context.Background(), map[string]any{
		"action":    "read_file",
		"file_path": "README.md",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(res.Content, "Contents of README.md:") || !strings.Contains(res.Content, "hello") {
		t.Errorf("unexpected content: %q", res.Content)
	}

	missing, err := tool.Execute(context.Background(), map[string]any{
		"action":    "read_file",
		"file_path": "nope.txt",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if missing.Content != "Error: File nope.txt does not exist in the repository" {
		t.Errorf("Execute = %q", missing.Content)
	}
}

func TestRepositoryActionsWithoutClone(t *testing.T) {
	tool := NewRepositoryTool(repo.NewContext())
	for _, action := range []string{"list_files", "read_file", "get_repo_info"} {
		res, err := tool.Execute(context.Background(), map[string]any{"action": action, "file_path": "x"})
		if err != nil {
			t.Fatalf("Execute(%s): %v", action, err)
		}
		if res.Content != "Error: No repository is currently cloned" {
			t.Errorf("Execute(%s) = %q", action, res.Content)
		}
	}
}

func TestRepositoryUnknownAction(t *testing.T) {
	tool := NewRepositoryTool(repo.NewContext())
	res, err := tool.Execute(context.Background(), map[string]any{"action": "push"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(res.Content, "Unknown action 'push'") {
		t.Errorf("Execute = %q", res.Content)
	}
}

func TestRepositoryCloneLocal(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	origin := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = origin
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=t", "GIT_AUTHOR_EMAIL=t@t",
			"GIT_COMMITTER_NAME=t", "GIT_COMMITTER_EMAIL=t@t")
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	run("init", "-q")
	if err := os.WriteFile(filepath.Join(origin, "a.txt"), []byte("a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", ".")
	run("commit", "-q", "-m", "initial")

	rctx := repo.NewContext()
	tool := NewRepositoryTool(rctx)
	res, err := tool.Execute(context.Background(), map[string]any{
		"action":   "clone",
		"repo_url": origin,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasPrefix(res.Content, "Successfully cloned repository:") {
		t.Fatalf("clone failed: %q", res.Content)
	}
	snap, ok := rctx.Snapshot()
	if !ok {
		t.Fatal("context not set after clone")
	}
	t.Cleanup(rctx.Clear)
	if _, err := os.Stat(filepath.Join(snap.Path, "a.txt")); err != nil {
		t.Errorf("cloned file missing: %v", err)
	}

	info, err := tool.Execute(context.Background(), map[string]any{"action": "get_repo_info"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(info.Content, "file_count: 1") {
		t.Errorf("repo info missing file count: %q", info.Content)
	}
	if !strings.Contains(info.Content, "initial") {
		t.Errorf("repo info missing last commit: %q", info.Content)
	}
}

func TestRepositoryCloneFailureLeavesNoContext(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	rctx := repo.NewContext()
	tool := NewRepositoryTool(rctx)
	res, err := tool.Execute(context.Background(), map[string]any{
		"action":   "clone",
		"repo_url": filepath.Join(t.TempDir(), "does-not-exist"),
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasPrefix(res.Content, "Error: cloning repository:") {
		t.Fatalf("unexpected content: %q", res.Content)
	}
	if _, ok := rctx.Snapshot(); ok {
		t.Error("context set despite failed clone")
	}
}

package tools

import (
	"context"
	"strings"
	"testing"

	"deploypilot/internal/repo"
)

type stubTool struct {
	called bool
}

func (s *stubTool) Name() string           { return "stub" }
func (s *stubTool) Description() string    { return "stub tool" }
func (s *stubTool) Schema() map[string]any { return map[string]any{"type": "object"} }
func (s *stubTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	s.called = true
	return Result{Content: "ran"}, nil
}

func TestRequireRepoBlocksWithoutCheckout(t *testing.T) {
	inner := &stubTool{}
	guarded := RequireRepo(inner, repo.NewContext(), false)

	res, err := guarded.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if inner.called {
		t.Error("inner tool ran despite missing checkout")
	}
	if !strings.HasPrefix(res.Content, "Error:") || !strings.Contains(res.Content, "github_repo") {
		t.Errorf("Execute = %q", res.Content)
	}
}

func TestRequireRepoPassesThrough(t *testing.T) {
	rctx := repo.NewContext()
	rctx.Set(t.TempDir(), "https://example.com/demo")
	inner := &stubTool{}
	guarded := RequireRepo(inner, rctx, false)

	if guarded.Name() != "stub" || guarded.Description() != "stub tool" {
		t.Error("guard does not delegate metadata")
	}
	res, err := guarded.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !inner.called || res.Content != "ran" {
		t.Errorf("inner tool did not run: %q", res.Content)
	}
}

func TestRequireRepoNeedGit(t *testing.T) {
	rctx := repo.NewContext()
	rctx.Set(t.TempDir(), "https://example.com/demo")
	inner := &stubTool{}
	guarded := RequireRepo(inner, rctx, true)

	res, err := guarded.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if inner.called {
		t.Error("inner tool ran despite missing .git")
	}
	if !strings.Contains(res.Content, "not a git working tree") {
		t.Errorf("Execute = %q", res.Content)
	}
}

package tools

import (
	"context"

	"deploypilot/internal/repo"
)

// repoGuard wraps a tool that needs an active checkout and turns a
// missing or invalid repository context into a reported error before
// the underlying handler runs.
type repoGuard struct {
	inner   Tool
	ctx     *repo.Context
	needGit bool
}

// RequireRepo wraps t so its Execute first validates the shared
// repository context. needGit additionally requires a .git directory.
func RequireRepo(t Tool, ctx *repo.Context, needGit bool) Tool {
	return &repoGuard{inner: t, ctx: ctx, needGit: needGit}
}

func (g *repoGuard) Name() string           { return g.inner.Name() }
func (g *repoGuard) Description() string    { return g.inner.Description() }
func (g *repoGuard) Schema() map[string]any { return g.inner.Schema() }

func (g *repoGuard) Execute(ctx context.Context, args map[string]any) (Result, error) {
	if err := g.ctx.Validate(g.needGit); err != nil {
		return report("%v. Clone a repository first with github_repo.", err)
	}
	return g.inner.Execute(ctx, args)
}

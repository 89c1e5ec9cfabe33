package tools

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"deploypilot/internal/repo"
)

type repoAction string

const (
	repoClone    repoAction = "clone"
	repoList     repoAction = "list_files"
	repoRead     repoAction = "read_file"
	repoInfo     repoAction = "get_repo_info"
	repoActions             = "clone, list_files, read_file, get_repo_info"
)

// RepositoryTool clones repositories and answers questions about the
// active checkout. It is the only writer of the shared repo context.
type RepositoryTool struct {
	ctx *repo.Context
}

// NewRepositoryTool constructs the github_repo tool bound to the shared
// repository context.
func NewRepositoryTool(ctx *repo.Context) *RepositoryTool {
	return &RepositoryTool{ctx: ctx}
}

func (r *RepositoryTool) Name() string { return "github_repo" }

func (r *RepositoryTool) Description() string {
	return "Clone and interact with GitHub repositories"
}

func (r *RepositoryTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"description": "The action to perform (" + repoActions + ")",
				"enum":        []string{"clone", "list_files", "read_file", "get_repo_info"},
			},
			"repo_url": map[string]any{
				"type":        "string",
				"description": "The URL of the GitHub repository (required for 'clone' action)",
			},
			"path": map[string]any{
				"type":        "string",
				"description": "The path within the repository (for 'list_files' action)",
			},
			"file_path": map[string]any{
				"type":        "string",
				"description": "The path to the file to read (for 'read_file' action)",
			},
		},
		"required": []string{"action"},
	}
}

func (r *RepositoryTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	switch repoAction(stringArg(args, "action")) {
	case repoClone:
		return r.clone(ctx, stringArg(args, "repo_url"))
	case repoList:
		return r.listFiles(stringArg(args, "path"))
	case repoRead:
		return r.readFile(stringArg(args, "file_path"))
	case repoInfo:
		return r.repoInfo(ctx)
	default:
		return report("Unknown action '%s'. Available actions: %s", stringArg(args, "action"), repoActions)
	}
}

// clone removes the previous checkout, clones into a fresh temp dir and
// commits the context only after git exits cleanly. A failed clone
// leaves no checkout active.
func (r *RepositoryTool) clone(ctx context.Context, repoURL string) (Result, error) {
	if repoURL == "" {
		return report("Repository URL not provided")
	}

	r.ctx.Clear()

	dir, err := os.MkdirTemp("", "deploypilot-repo-")
	if err != nil {
		return report("creating checkout directory: %v", err)
	}

	cmd := exec.CommandContext(ctx, "git", "clone", repoURL, dir)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		_ = os.RemoveAll(dir)
		return report("cloning repository: %s", strings.TrimSpace(stderr.String()))
	}

	r.ctx.Set(dir, repoURL)
	return Result{Content: fmt.Sprintf("Successfully cloned repository: %s to %s", repoURL, dir)}, nil
}

func (r *RepositoryTool) listFiles(sub string) (Result, error) {
	snap, ok := r.ctx.Snapshot()
	if !ok {
		return report("No repository is currently cloned")
	}
	root := snap.Path
	if sub != "" {
		root = filepath.Join(snap.Path, sub)
	}
	if _, err := os.Stat(root); err != nil {
		return report("Path %s does not exist in the repository", sub)
	}

	var entries []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(snap.Path, path)
		if relErr != nil || rel == "." {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			entries = append(entries, "📁 "+rel)
			return nil
		}
		entries = append(entries, "📄 "+rel)
		return nil
	})
	if err != nil {
		return report("listing files: %v", err)
	}
	sort.Strings(entries)
	return Result{Content: fmt.Sprintf("Files in repository %s:\n\n%s", snap.Name, strings.Join(entries, "\n"))}, nil
}

func (r *RepositoryTool) readFile(filePath string) (Result, error) {
	snap, ok := r.ctx.Snapshot()
	if !ok {
		return report("No repository is currently cloned")
	}
	if filePath == "" {
		return report("File path not provided")
	}
	full := filepath.Join(snap.Path, filePath)
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return report("File %s does not exist in the repository", filePath)
	}
	content, err := os.ReadFile(full)
	if err != nil {
		return report("reading file: %v", err)
	}
	return Result{Content: fmt.Sprintf("Contents of %s:\n\n```\n%s\n```", filePath, content)}, nil
}

// repoInfo aggregates checkout size plus branch and last-commit details
// from git, run with an explicit working directory.
func (r *RepositoryTool) repoInfo(ctx context.Context) (Result, error) {
	snap, ok := r.ctx.Snapshot()
	if !ok {
		return report("No repository is currently cloned")
	}

	var fileCount int
	var totalSize int64
	_ = filepath.WalkDir(snap.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		fileCount++
		if info, err := d.Info(); err == nil {
			totalSize += info.Size()
		}
		return nil
	})
	sizeKB := float64(totalSize) / 1024
	sizeMB := sizeKB / 1024

	branch := gitOutput(ctx, snap.Path, "branch", "--show-current")
	lastCommit := gitOutput(ctx, snap.Path, "log", "-1", "--pretty=format:%h - %s (%cr)")

	var b strings.Builder
	b.WriteString("Repository Information:\n\n")
	fmt.Fprintf(&b, "name: %s\n", snap.Name)
	fmt.Fprintf(&b, "url: %s\n", snap.URL)
	fmt.Fprintf(&b, "branch: %s\n", branch)
	fmt.Fprintf(&b, "last_commit: %s\n", lastCommit)
	fmt.Fprintf(&b, "file_count: %d\n", fileCount)
	fmt.Fprintf(&b, "size: %.2f MB (%.2f KB)", sizeMB, sizeKB)
	return Result{Content: b.String()}, nil
}

func gitOutput(ctx context.Context, dir string, args ...string) string {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

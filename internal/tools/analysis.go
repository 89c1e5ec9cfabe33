package tools

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"deploypilot/internal/repo"
)

type analysisAction string

const (
	analysisSummarize analysisAction = "summarize_repo"
	analysisAnalyze   analysisAction = "analyze_code"
	analysisPatterns  analysisAction = "find_patterns"
	analysisDeps      analysisAction = "dependency_analysis"
	analysisActions                  = "summarize_repo, analyze_code, find_patterns, dependency_analysis"
)

// AnalysisTool runs read-only aggregations over the active checkout.
type AnalysisTool struct {
	ctx    *repo.Context
	rgPath string
}

// NewAnalysisTool constructs the code_analysis tool. It prefers ripgrep
// for pattern search and falls back to grep.
func NewAnalysisTool(ctx *repo.Context) *AnalysisTool {
	path, _ := exec.LookPath("rg")
	return &AnalysisTool{ctx: ctx, rgPath: path}
}

func (a *AnalysisTool) Name() string { return "code_analysis" }

func (a *AnalysisTool) Description() string {
	return "Analyze the cloned repository: structure, code metrics, patterns, dependencies"
}

func (a *AnalysisTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"description": "The action to perform (" + analysisActions + ")",
				"enum":        []string{"summarize_repo", "analyze_code", "find_patterns", "dependency_analysis"},
			},
			"file_path": map[string]any{
				"type":        "string",
				"description": "Repo-relative file to analyze (for 'analyze_code')",
			},
			"pattern": map[string]any{
				"type":        "string",
				"description": "Regex pattern to search for (for 'find_patterns')",
			},
		},
		"required": []string{"action"},
	}
}

func (a *AnalysisTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	switch analysisAction(stringArg(args, "action")) {
	case analysisSummarize:
		return a.summarize()
	case analysisAnalyze:
		return a.analyze(stringArg(args, "file_path"))
	case analysisPatterns:
		return a.findPatterns(ctx, stringArg(args, "pattern"))
	case analysisDeps:
		return a.dependencies()
	default:
		return report("Unknown action '%s'. Available actions: %s", stringArg(args, "action"), analysisActions)
	}
}

type fileStat struct {
	path string
	size int64
}

func (a *AnalysisTool) summarize() (Result, error) {
	snap, _ := a.ctx.Snapshot()
	extCount := map[string]int{}
	var files []fileStat
	var totalLines int

	_ = filepath.WalkDir(snap.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(d.Name())
		if ext == "" {
			ext = "(none)"
		}
		extCount[ext]++
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(snap.Path, path)
		files = append(files, fileStat{path: rel, size: info.Size()})
		totalLines += countLines(path)
		return nil
	})

	exts := make([]string, 0, len(extCount))
	for ext := range extCount {
		exts = append(exts, ext)
	}
	sort.Slice(exts, func(i, j int) bool {
		if extCount[exts[i]] != extCount[exts[j]] {
			return extCount[exts[i]] > extCount[exts[j]]
		}
		return exts[i] < exts[j]
	})
	sort.Slice(files, func(i, j int) bool { return files[i].size > files[j].size })

	var b strings.Builder
	fmt.Fprintf(&b, "Repository summary for %s:\n\n", snap.Name)
	fmt.Fprintf(&b, "Files: %d, total lines: %d\n\nBy extension:\n", len(files), totalLines)
	for _, ext := range exts {
		fmt.Fprintf(&b, "- %s: %d\n", ext, extCount[ext])
	}
	b.WriteString("\nLargest files:\n")
	top := 5
	if len(files) < top {
		top = len(files)
	}
	for _, f := range files[:top] {
		fmt.Fprintf(&b, "- %s (%d bytes)\n", f.path, f.size)
	}
	return Result{Content: strings.TrimRight(b.String(), "\n")}, nil
}

func (a *AnalysisTool) analyze(filePath string) (Result, error) {
	if filePath == "" {
		return report("file_path is required")
	}
	snap, _ := a.ctx.Snapshot()
	full := filepath.Join(snap.Path, filePath)
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return report("File %s does not exist in the repository", filePath)
	}

	file, err := os.Open(full)
	if err != nil {
		return report("reading file: %v", err)
	}
	defer file.Close()

	commentPrefixes := commentMarkers(filepath.Ext(filePath))
	var lines, blank, comments, imports int
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			blank++
			continue
		}
		for _, prefix := range commentPrefixes {
			if strings.HasPrefix(text, prefix) {
				comments++
				break
			}
		}
		if strings.HasPrefix(text, "import ") || strings.HasPrefix(text, "from ") ||
			strings.HasPrefix(text, "require(") || strings.Contains(text, "require(") && strings.HasPrefix(text, "const ") {
			imports++
		}
	}

	return Result{Content: fmt.Sprintf(
		"Analysis of %s:\n\nlines: %d\nblank: %d\ncomment lines: %d\nimport statements: %d\nsize: %d bytes",
		filePath, lines, blank, comments, imports, info.Size())}, nil
}

func commentMarkers(ext string) []string {
	switch ext {
	case ".py", ".sh", ".yml", ".yaml", ".toml":
		return []string{"#"}
	case ".go", ".js", ".ts", ".jsx", ".tsx", ".java", ".c", ".cpp":
		return []string{"//", "/*", "*"}
	case ".html", ".xml", ".md":
		return []string{"<!--"}
	default:
		return []string{"#", "//"}
	}
}

// findPatterns delegates to the text-search executable. Exit status 1
// means no matches and is success with an empty result, not a failure.
func (a *AnalysisTool) findPatterns(ctx context.Context, pattern string) (Result, error) {
	if pattern == "" {
		return report("pattern is required")
	}
	snap, _ := a.ctx.Snapshot()

	var cmd *exec.Cmd
	if a.rgPath != "" {
		cmd = exec.CommandContext(ctx, a.rgPath, "--no-heading", "--line-number", pattern, ".")
	} else {
		cmd = exec.CommandContext(ctx, "grep", "-rn", "--exclude-dir=.git", pattern, ".")
	}
	cmd.Dir = snap.Path
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitErr := &exec.ExitError{}
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return Result{Content: fmt.Sprintf("No matches for pattern %q", pattern)}, nil
		}
		return report("pattern search failed: %s", strings.TrimSpace(stderr.String()))
	}

	matches := strings.TrimRight(stdout.String(), "\n")
	count := strings.Count(matches, "\n") + 1
	return Result{Content: fmt.Sprintf("Found %d match(es) for %q:\n\n%s", count, pattern, matches)}, nil
}

func (a *AnalysisTool) dependencies() (Result, error) {
	snap, _ := a.ctx.Snapshot()
	var b strings.Builder
	fmt.Fprintf(&b, "Dependency analysis for %s:\n", snap.Name)
	found := false

	if m, err := readPackageManifest(filepath.Join(snap.Path, "package.json")); err == nil {
		found = true
		b.WriteString("\npackage.json dependencies:\n")
		for _, name := range sortedKeys(m.Dependencies) {
			fmt.Fprintf(&b, "- %s %s\n", name, m.Dependencies[name])
		}
		if len(m.DevDependencies) > 0 {
			b.WriteString("\npackage.json devDependencies:\n")
			for _, name := range sortedKeys(m.DevDependencies) {
				fmt.Fprintf(&b, "- %s %s\n", name, m.DevDependencies[name])
			}
		}
	}
	if reqs := readRequirements(filepath.Join(snap.Path, "requirements.txt")); len(reqs) > 0 {
		found = true
		b.WriteString("\nrequirements.txt packages:\n")
		for _, name := range reqs {
			fmt.Fprintf(&b, "- %s\n", name)
		}
	}
	if !found {
		b.WriteString("\nNo dependency manifests (package.json, requirements.txt) found.")
	}
	return Result{Content: strings.TrimRight(b.String(), "\n")}, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func countLines(path string) int {
	file, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer file.Close()
	count := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		count++
	}
	return count
}

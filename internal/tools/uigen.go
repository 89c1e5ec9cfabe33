package tools

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"deploypilot/internal/proc"
	"deploypilot/internal/repo"
	"deploypilot/internal/util"
)

type uiAction string

const (
	uiScan    uiAction = "scan_apps"
	uiStart   uiAction = "generate_ui"
	uiStop    uiAction = "stop_ui"
	uiActions          = "scan_apps, generate_ui, stop_ui"
)

// UIGenTool launches preview servers for apps found in the checkout and
// tracks them through the supervisor.
type UIGenTool struct {
	ctx       *repo.Context
	sup       *proc.Supervisor
	logger    *zap.Logger
	probe     *retryablehttp.Client
	grace     time.Duration
	stopGrace time.Duration
}

// NewUIGenTool constructs the ui_generator tool. grace is the wait
// after spawn before the liveness check; stopGrace bounds graceful
// termination in stop_ui.
func NewUIGenTool(ctx *repo.Context, sup *proc.Supervisor, logger *zap.Logger, grace, stopGrace time.Duration) *UIGenTool {
	probe := retryablehttp.NewClient()
	probe.RetryMax = 2
	probe.RetryWaitMin = 200 * time.Millisecond
	probe.RetryWaitMax = time.Second
	probe.HTTPClient.Timeout = 2 * time.Second
	probe.Logger = nil
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UIGenTool{ctx: ctx, sup: sup, logger: logger, probe: probe, grace: grace, stopGrace: stopGrace}
}

func (u *UIGenTool) Name() string { return "ui_generator" }

func (u *UIGenTool) Description() string {
	return "Scan the repository for runnable apps and launch preview UIs"
}

func (u *UIGenTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"description": "The action to perform (" + uiActions + ")",
				"enum":        []string{"scan_apps", "generate_ui", "stop_ui"},
			},
			"app_path": map[string]any{
				"type":        "string",
				"description": "Repo-relative path of the app to launch (for 'generate_ui')",
			},
			"session_id": map[string]any{
				"type":        "string",
				"description": "Session id of a running UI (for 'stop_ui')",
			},
		},
		"required": []string{"action"},
	}
}

func (u *UIGenTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	switch uiAction(stringArg(args, "action")) {
	case uiScan:
		return u.scanApps()
	case uiStart:
		return u.generateUI(stringArg(args, "app_path"))
	case uiStop:
		return u.stopUI(stringArg(args, "session_id"))
	default:
		return report("Unknown action '%s'. Available actions: %s", stringArg(args, "action"), uiActions)
	}
}

var entryPointNames = map[string]bool{
	"app.py": true, "main.py": true, "streamlit_app.py": true, "run.py": true,
	"app.js": true, "server.js": true, "index.js": true,
	"index.html": true,
}

type appCandidate struct {
	path        string
	framework   string
	description string
}

func (u *UIGenTool) scanApps() (Result, error) {
	snap, _ := u.ctx.Snapshot()
	var found []appCandidate
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
		if !entryPointNames[d.Name()] {
			return nil
		}
		rel, _ := filepath.Rel(snap.Path, path)
		content, _ := os.ReadFile(path)
		found = append(found, appCandidate{
			path:        rel,
			framework:   classifyApp(d.Name(), string(content)),
			description: leadingDescription(string(content)),
		})
		return nil
	})
	if len(found) == 0 {
		return Result{Content: "No runnable apps found in the repository."}, nil
	}
	sort.Slice(found, func(i, j int) bool { return found[i].path < found[j].path })

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d candidate app(s):\n\n", len(found))
	for _, app := range found {
		fmt.Fprintf(&b, "- %s (%s)", app.path, app.framework)
		if app.description != "" {
			fmt.Fprintf(&b, ": %s", app.description)
		}
		b.WriteString("\n")
	}
	return Result{Content: strings.TrimRight(b.String(), "\n")}, nil
}

// classifyApp does lightweight content sniffing for known framework
// names.
func classifyApp(name, content string) string {
	lower := strings.ToLower(content)
	switch {
	case strings.Contains(lower, "streamlit"):
		return "streamlit"
	case strings.Contains(lower, "fastapi"):
		return "fastapi"
	case strings.Contains(lower, "flask"):
		return "flask"
	case strings.Contains(lower, "django"):
		return "django"
	case strings.Contains(lower, "express"):
		return "express"
	case strings.Contains(lower, "next"):
		return "next"
	case strings.Contains(lower, "react"):
		return "react"
	}
	switch filepath.Ext(name) {
	case ".py":
		return "python script"
	case ".js":
		return "node script"
	case ".html":
		return "static page"
	}
	return "unknown"
}

// leadingDescription extracts a best-effort description from leading
// comment or doc text.
func leadingDescription(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, marker := range []string{"#", "//", "/*", "<!--", `"""`, "'''"} {
			if strings.HasPrefix(line, marker) {
				text := strings.TrimSpace(strings.TrimPrefix(line, marker))
				text = strings.TrimSuffix(text, "-->")
				text = strings.TrimSuffix(text, "*/")
				text = strings.TrimSuffix(text, `"""`)
				text = strings.TrimSuffix(text, "'''")
				return strings.TrimSpace(text)
			}
		}
		return ""
	}
	return ""
}

func (u *UIGenTool) generateUI(appPath string) (Result, error) {
	if appPath == "" {
		return report("app_path is required")
	}
	snap, _ := u.ctx.Snapshot()
	full := filepath.Join(snap.Path, appPath)
	if _, err := os.Stat(full); err != nil {
		return report("App %s does not exist in the repository", appPath)
	}

	port, err := proc.FreePort()
	if err != nil {
		return report("allocating port: %v", err)
	}

	var cmd *exec.Cmd
	switch filepath.Ext(full) {
	case ".py":
		cmd, err = u.pythonCommand(snap.Path, full, port)
	case ".js":
		cmd, err = u.nodeCommand(snap.Path, full, port)
	case ".html":
		cmd = exec.Command("python3", "-m", "http.server", fmt.Sprint(port), "--directory", filepath.Dir(full))
	default:
		return report("Unsupported app type %s; expected .py, .js, or .html", filepath.Ext(full))
	}
	if err != nil {
		return report("preparing launch: %v", err)
	}

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if cmd.Dir == "" {
		cmd.Dir = snap.Path
	}
	if err := cmd.Start(); err != nil {
		return report("starting %s: %v", appPath, err)
	}

	sessionID := proc.NewSessionID("ui")
	url := fmt.Sprintf("http://localhost:%d", port)
	sess := &proc.Session{ID: sessionID, Kind: "ui", AppPath: appPath, Dir: cmd.Dir, URL: url, Port: port, Cmd: cmd}
	u.sup.Track(sess)

	time.Sleep(u.grace)
	if !sess.Alive() {
		u.sup.Remove(sessionID)
		return report("App %s exited during startup.\n\nOutput:\n%s",
			appPath, util.ClampOutput(output.String(), 8*1024))
	}

	note := ""
	if !u.probeURL(url) {
		note = "\nNote: the server has not responded to HTTP yet; it may still be warming up."
	}
	return Result{Content: fmt.Sprintf("UI started for %s\nSession: %s\nURL: %s%s", appPath, sessionID, url, note)}, nil
}

// pythonCommand builds a framework-specific launch, installing declared
// dependencies first when a requirements manifest is present.
func (u *UIGenTool) pythonCommand(root, app string, port int) (*exec.Cmd, error) {
	if _, err := os.Stat(filepath.Join(root, "requirements.txt")); err == nil {
		install := exec.Command("python3", "-m", "pip", "install", "-q", "-r", "requirements.txt")
		install.Dir = root
		if out, err := install.CombinedOutput(); err != nil {
			return nil, fmt.Errorf("pip install failed: %s", strings.TrimSpace(string(out)))
		}
	}
	content, _ := os.ReadFile(app)
	var cmd *exec.Cmd
	switch classifyApp(filepath.Base(app), string(content)) {
	case "streamlit":
		cmd = exec.Command("python3", "-m", "streamlit", "run", app,
			"--server.port", fmt.Sprint(port), "--server.headless", "true")
	case "flask":
		cmd = exec.Command("python3", "-m", "flask", "--app", app, "run", "--port", fmt.Sprint(port))
	default:
		cmd = exec.Command("python3", app)
		cmd.Env = append(os.Environ(), fmt.Sprintf("PORT=%d", port))
	}
	return cmd, nil
}

// nodeCommand installs manifest dependencies and prefers the start
// script when one is declared.
func (u *UIGenTool) nodeCommand(root, app string, port int) (*exec.Cmd, error) {
	manifest := filepath.Join(root, "package.json")
	hasManifest := false
	if _, err := os.Stat(manifest); err == nil {
		hasManifest = true
		install := exec.Command("npm", "install", "--no-audit", "--no-fund")
		install.Dir = root
		if out, err := install.CombinedOutput(); err != nil {
			return nil, fmt.Errorf("npm install failed: %s", strings.TrimSpace(string(out)))
		}
	}
	var cmd *exec.Cmd
	if hasManifest && manifestHasStartScript(manifest) {
		cmd = exec.Command("npm", "start")
	} else {
		cmd = exec.Command("node", app)
	}
	cmd.Env = append(os.Environ(), fmt.Sprintf("PORT=%d", port))
	return cmd, nil
}

func (u *UIGenTool) probeURL(url string) bool {
	req, err := retryablehttp.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := u.probe.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

func (u *UIGenTool) stopUI(sessionID string) (Result, error) {
	if sessionID == "" {
		return report("session_id is required")
	}
	if err := u.sup.Stop(sessionID, u.stopGrace); err != nil {
		return report("%v", err)
	}
	return Result{Content: fmt.Sprintf("Stopped UI session %s", sessionID)}, nil
}

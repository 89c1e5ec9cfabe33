package tools

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"deploypilot/internal/proc"
	"deploypilot/internal/repo"
	"deploypilot/internal/util"
)

type deployAction string

const (
	deployAuto     deployAction = "autodeploy"
	deployGenerate deployAction = "generate_deployment_files"
	deployUp       deployAction = "deploy"
	deployDown     deployAction = "stop"
	deployActions               = "autodeploy, generate_deployment_files, deploy, stop"
)

// appProfile is the detected shape of the repository's application.
type appProfile struct {
	kind      string // node, python, static
	framework string
	entry     string
	port      int
}

// DeployTool synthesizes container build files from per-framework
// templates and drives the docker compose toolchain. Deployments are
// tracked through the supervisor as detached sessions.
type DeployTool struct {
	ctx    *repo.Context
	sup    *proc.Supervisor
	logger *zap.Logger
}

// NewDeployTool constructs the auto_deploy tool.
func NewDeployTool(ctx *repo.Context, sup *proc.Supervisor, logger *zap.Logger) *DeployTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeployTool{ctx: ctx, sup: sup, logger: logger}
}

func (d *DeployTool) Name() string { return "auto_deploy" }

func (d *DeployTool) Description() string {
	return "Detect the app type, generate Dockerfile/docker-compose files, and deploy with Docker"
}

func (d *DeployTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"description": "The action to perform (" + deployActions + ")",
				"enum":        []string{"autodeploy", "generate_deployment_files", "deploy", "stop"},
			},
			"deployment_id": map[string]any{
				"type":        "string",
				"description": "Deployment id to stop (for 'stop')",
			},
		},
		"required": []string{"action"},
	}
}

func (d *DeployTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	switch deployAction(stringArg(args, "action")) {
	case deployAuto:
		return d.autodeploy(ctx)
	case deployGenerate:
		return d.generateFiles()
	case deployUp:
		return d.deploy(ctx)
	case deployDown:
		return d.stop(ctx, stringArg(args, "deployment_id"))
	default:
		return report("Unknown action '%s'. Available actions: %s", stringArg(args, "action"), deployActions)
	}
}

func (d *DeployTool) autodeploy(ctx context.Context) (Result, error) {
	genRes, err := d.generateFiles()
	if err != nil || strings.HasPrefix(genRes.Content, "Error:") {
		return genRes, err
	}
	depRes, err := d.deploy(ctx)
	if err != nil {
		return depRes, err
	}
	return Result{Content: genRes.Content + "\n\n" + depRes.Content}, nil
}

// detectApp classifies the checkout by its manifests: a package.json
// means node, a requirements.txt means python, a root index page means
// a static site.
func (d *DeployTool) detectApp() (appProfile, error) {
	snap, _ := d.ctx.Snapshot()
	root := snap.Path

	if m, err := readPackageManifest(filepath.Join(root, "package.json")); err == nil {
		profile := appProfile{kind: "node", framework: "node", entry: m.Main, port: 3000}
		if profile.entry == "" {
			profile.entry = "index.js"
		}
		deps := m.Dependencies
		switch {
		case deps["next"] != "":
			profile.framework = "next"
		case deps["react"] != "":
			profile.framework = "react"
		case deps["express"] != "":
			profile.framework = "express"
		}
		return profile, nil
	}

	if reqs := readRequirements(filepath.Join(root, "requirements.txt")); len(reqs) > 0 {
		profile := appProfile{kind: "python", framework: "python", port: 8000}
		for _, name := range reqs {
			switch strings.ToLower(name) {
			case "streamlit":
				profile.framework = "streamlit"
				profile.port = 8501
			case "flask":
				profile.framework = "flask"
				profile.port = 5000
			case "fastapi":
				profile.framework = "fastapi"
				profile.port = 8000
			}
		}
		for _, candidate := range []string{"app.py", "main.py", "streamlit_app.py"} {
			if _, err := os.Stat(filepath.Join(root, candidate)); err == nil {
				profile.entry = candidate
				break
			}
		}
		if profile.entry == "" {
			profile.entry = "app.py"
		}
		return profile, nil
	}

	if _, err := os.Stat(filepath.Join(root, "index.html")); err == nil {
		return appProfile{kind: "static", framework: "static", entry: "index.html", port: 80}, nil
	}

	return appProfile{}, fmt.Errorf("could not detect application type: no package.json, requirements.txt, or index.html")
}

func (d *DeployTool) generateFiles() (Result, error) {
	profile, err := d.detectApp()
	if err != nil {
		return report("%v", err)
	}
	snap, _ := d.ctx.Snapshot()

	dockerfile := renderDockerfile(profile)
	compose := renderCompose(snap.Name, profile)
	if err := os.WriteFile(filepath.Join(snap.Path, "Dockerfile"), []byte(dockerfile), 0o644); err != nil {
		return report("writing Dockerfile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(snap.Path, "docker-compose.yml"), []byte(compose), 0o644); err != nil {
		return report("writing docker-compose.yml: %v", err)
	}
	return Result{Content: fmt.Sprintf(
		"Generated deployment files for a %s app (framework: %s, entry: %s, port: %d):\n\nDockerfile:\n%s\ndocker-compose.yml:\n%s",
		profile.kind, profile.framework, profile.entry, profile.port, dockerfile, compose)}, nil
}

func renderDockerfile(p appProfile) string {
	switch p.framework {
	case "streamlit":
		return fmt.Sprintf(`FROM python:3.11-slim
WORKDIR /app
COPY requirements.txt .
RUN pip install --no-cache-dir -r requirements.txt
COPY . .
EXPOSE %d
CMD ["streamlit", "run", "%s", "--server.port=%d", "--server.address=0.0.0.0"]
`, p.port, p.entry, p.port)
	case "flask":
		return fmt.Sprintf(`FROM python:3.11-slim
WORKDIR /app
COPY requirements.txt .
RUN pip install --no-cache-dir -r requirements.txt
COPY . .
EXPOSE %d
CMD ["flask", "--app", "%s", "run", "--host=0.0.0.0", "--port=%d"]
`, p.port, p.entry, p.port)
	case "fastapi":
		entry := strings.TrimSuffix(p.entry, ".py")
		return fmt.Sprintf(`FROM python:3.11-slim
WORKDIR /app
COPY requirements.txt .
RUN pip install --no-cache-dir -r requirements.txt
COPY . .
EXPOSE %d
CMD ["uvicorn", "%s:app", "--host", "0.0.0.0", "--port", "%d"]
`, p.port, entry, p.port)
	case "python":
		return fmt.Sprintf(`FROM python:3.11-slim
WORKDIR /app
COPY requirements.txt .
RUN pip install --no-cache-dir -r requirements.txt
COPY . .
EXPOSE %d
CMD ["python", "%s"]
`, p.port, p.entry)
	case "static":
		return `FROM nginx:alpine
COPY . /usr/share/nginx/html
EXPOSE 80
`
	default: // node frameworks
		return fmt.Sprintf(`FROM node:20-alpine
WORKDIR /app
COPY package*.json ./
RUN npm install
COPY . .
EXPOSE %d
CMD ["npm", "start"]
`, p.port)
	}
}

func renderCompose(name string, p appProfile) string {
	service := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
	if service == "" {
		service = "app"
	}
	return fmt.Sprintf(`services:
  %s:
    build: .
    ports:
      - "%d:%d"
    restart: unless-stopped
`, service, p.port, p.port)
}

// deploy drives the container toolchain; combined output is surfaced
// verbatim on failure.
func (d *DeployTool) deploy(ctx context.Context) (Result, error) {
	snap, _ := d.ctx.Snapshot()
	if _, err := os.Stat(filepath.Join(snap.Path, "docker-compose.yml")); err != nil {
		return report("no docker-compose.yml present; run generate_deployment_files first")
	}
	profile, err := d.detectApp()
	if err != nil {
		return report("%v", err)
	}

	cmd := exec.CommandContext(ctx, "docker", "compose", "up", "-d", "--build")
	cmd.Dir = snap.Path
	if out, err := cmd.CombinedOutput(); err != nil {
		return report("docker compose up failed:\n%s", util.ClampOutput(string(out), 8*1024))
	}

	deploymentID := proc.NewSessionID("deploy")
	url := fmt.Sprintf("http://localhost:%d", profile.port)
	d.sup.Track(&proc.Session{
		ID:      deploymentID,
		Kind:    "deployment",
		AppPath: profile.entry,
		Dir:     snap.Path,
		URL:     url,
		Port:    profile.port,
	})
	return Result{Content: fmt.Sprintf("Deployment started.\nDeployment: %s\nURL: %s", deploymentID, url)}, nil
}

func (d *DeployTool) stop(ctx context.Context, deploymentID string) (Result, error) {
	if deploymentID == "" {
		return report("deployment_id is required")
	}
	sess, ok := d.sup.Get(deploymentID)
	if !ok {
		return report("no active deployment with id %s", deploymentID)
	}

	cmd := exec.CommandContext(ctx, "docker", "compose", "down")
	cmd.Dir = sess.Dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return report("docker compose down failed:\n%s", util.ClampOutput(string(out), 8*1024))
	}
	d.sup.Remove(deploymentID)
	d.logger.Info("deployment stopped", zap.String("deployment_id", deploymentID))
	return Result{Content: fmt.Sprintf("Stopped deployment %s", deploymentID)}, nil
}

package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"deploypilot/internal/proc"
	"deploypilot/internal/repo"
)

func newDeployTool(t *testing.T, rctx *repo.Context) *DeployTool {
	t.Helper()
	sup := proc.NewSupervisor(zap.NewNop())
	t.Cleanup(func() { sup.StopAll(time.Second) })
	return NewDeployTool(rctx, sup, zap.NewNop())
}

func seedDeployRepo(t *testing.T, files map[string]string) *repo.Context {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	rctx := repo.NewContext()
	rctx.Set(dir, "https://example.com/owner/My App.git")
	return rctx
}

func TestGenerateFilesStreamlit(t *testing.T) {
	rctx := seedDeployRepo(t, map[string]string{
		"requirements.txt": "streamlit==1.30.0\npandas\n",
		"app.py":           "import streamlit as st\n",
	})
	res, err := newDeployTool(t, rctx).Execute(context.Background(), map[string]any{
		"action": "generate_deployment_files",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(res.Content, "framework: streamlit") || !strings.Contains(res.Content, "port: 8501") {
		t.Fatalf("wrong profile: %q", res.Content)
	}

	snap, _ := rctx.Snapshot()
	dockerfile, err := os.ReadFile(filepath.Join(snap.Path, "Dockerfile"))
	if err != nil {
		t.Fatalf("Dockerfile not written: %v", err)
	}
	for _, want := range []string{"FROM python:3.11-slim", `"streamlit", "run", "app.py"`, "EXPOSE 8501"} {
		if !strings.Contains(string(dockerfile), want) {
			t.Errorf("Dockerfile missing %q:\n%s", want, dockerfile)
		}
	}
	compose, err := os.ReadFile(filepath.Join(snap.Path, "docker-compose.yml"))
	if err != nil {
		t.Fatalf("docker-compose.yml not written: %v", err)
	}
	if !strings.Contains(string(compose), "my-app:") {
		t.Errorf("service name not derived from repo name:\n%s", compose)
	}
	if !strings.Contains(string(compose), `"8501:8501"`) {
		t.Errorf("port mapping missing:\n%s", compose)
	}
}

func TestGenerateFilesNode(t *testing.T) {
	rctx := seedDeployRepo(t, map[string]string{
		"package.json": `{"name":"api","main":"server.js","dependencies":{"express":"^4.18.0"}}`,
	})
	res, err := newDeployTool(t, rctx).Execute(context.Background(), map[string]any{
		"action": "generate_deployment_files",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(res.Content, "framework: express") || !strings.Contains(res.Content, "port: 3000") {
		t.Fatalf("wrong profile: %q", res.Content)
	}
	snap, _ := rctx.Snapshot()
	dockerfile, err := os.ReadFile(filepath.Join(snap.Path, "Dockerfile"))
	if err != nil {
		t.Fatalf("Dockerfile not written: %v", err)
	}
	if !strings.Contains(string(dockerfile), "FROM node:20-alpine") {
		t.Errorf("wrong base image:\n%s", dockerfile)
	}
}

func TestGenerateFilesStatic(t *testing.T) {
	rctx := seedDeployRepo(t, map[string]string{
		"index.html": "<html></html>",
	})
	res, err := newDeployTool(t, rctx).Execute(context.Background(), map[string]any{
		"action": "generate_deployment_files",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(res.Content, "framework: static") || !strings.Contains(res.Content, "port: 80") {
		t.Fatalf("wrong profile: %q", res.Content)
	}
	snap, _ := rctx.Snapshot()
	dockerfile, _ := os.ReadFile(filepath.Join(snap.Path, "Dockerfile"))
	if !strings.Contains(string(dockerfile), "FROM nginx:alpine") {
		t.Errorf("wrong base image:\n%s", dockerfile)
	}
}

func TestGenerateFilesUndetectable(t *testing.T) {
	rctx := seedDeployRepo(t, map[string]string{"README.md": "nothing runnable\n"})
	res, err := newDeployTool(t, rctx).Execute(context.Background(), map[string]any{
		"action": "generate_deployment_files",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(res.Content, "could not detect application type") {
		t.Errorf("Execute = %q", res.Content)
	}
}

func TestDeployRequiresComposeFile(t *testing.T) {
	rctx := seedDeployRepo(t, map[string]string{"index.html": "<html></html>"})
	res, err := newDeployTool(t, rctx).Execute(context.Background(), map[string]any{
		"action": "deploy",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(res.Content, "no docker-compose.yml present") {
		t.Errorf("Execute = %q", res.Content)
	}
}

func TestStopRequiresKnownDeployment(t *testing.T) {
	rctx := seedDeployRepo(t, map[string]string{"index.html": "<html></html>"})
	tool := newDeployTool(t, rctx)

	res, err := tool.Execute(context.Background(), map[string]any{"action": "stop"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Content != "Error: deployment_id is required" {
		t.Errorf("Execute = %q", res.Content)
	}

	res, err = tool.Execute(context.Background(), map[string]any{
		"action":        "stop",
		"deployment_id": "deploy-0-cafebabe",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(res.Content, "no active deployment with id deploy-0-cafebabe") {
		t.Errorf("Execute = %q", res.Content)
	}
}

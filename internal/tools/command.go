package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"deploypilot/internal/util"
)

// DefaultCommandTimeout bounds execute_command when the caller does not
// pass one.
const DefaultCommandTimeout = 30 * time.Second

// CommandTool runs an arbitrary shell command. This is an intentional
// trust boundary: the command runs with the privileges of the server
// process and is not restricted beyond the wall-clock timeout.
type CommandTool struct {
	maxOutputBytes int
}

// NewCommandTool constructs the execute_command tool. maxOutputBytes
// clamps each captured stream; <=0 disables clamping.
func NewCommandTool(maxOutputBytes int) *CommandTool {
	return &CommandTool{maxOutputBytes: maxOutputBytes}
}

func (c *CommandTool) Name() string { return "execute_command" }

func (c *CommandTool) Description() string {
	return "Execute a shell command and return its output"
}

func (c *CommandTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The shell command to execute",
			},
			"working_dir": map[string]any{
				"type":        "string",
				"description": "Working directory for the command (optional)",
			},
			"timeout": map[string]any{
				"type":        "integer",
				"description": "Timeout in seconds (default 30)",
			},
		},
		"required": []string{"command"},
	}
}

func (c *CommandTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	command := stringArg(args, "command")
	if strings.TrimSpace(command) == "" {
		return report("command is required")
	}
	timeout := DefaultCommandTimeout
	if secs := numberArg(args, "timeout", 0); secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	// Compound commands spawn grandchildren that inherit the output
	// pipes; killing only the shell would leave them running and block
	// Run until they exit. The whole process group goes down together.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = time.Second
	if dir := stringArg(args, "working_dir"); dir != "" {
		cmd.Dir = dir
	}
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	outStr := c.clean(stdout.String())
	errStr := c.clean(stderr.String())

	if ctx.Err() == context.DeadlineExceeded {
		return Result{Content: fmt.Sprintf("Error: Command timed out after %s and was killed.\n\nPartial STDOUT:\n%s\n\nPartial STDERR:\n%s",
			timeout, outStr, errStr)}, nil
	}
	if err != nil {
		exitErr := &exec.ExitError{}
		if errors.As(err, &exitErr) {
			return Result{Content: fmt.Sprintf("Command failed with exit code %d.\n\nSTDOUT:\n%s\n\nSTDERR:\n%s",
				exitErr.ExitCode(), outStr, errStr)}, nil
		}
		return report("running command: %v", err)
	}
	return Result{Content: fmt.Sprintf("Command completed successfully.\n\nSTDOUT:\n%s\n\nSTDERR:\n%s", outStr, errStr)}, nil
}

func (c *CommandTool) clean(s string) string {
	out := util.RedactSecrets(s)
	if c.maxOutputBytes > 0 {
		out = util.ClampOutput(out, c.maxOutputBytes)
	}
	return strings.TrimRight(out, "\n")
}

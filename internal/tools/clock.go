package tools

import (
	"context"
	"time"
)

// ClockTool reports the current local time.
type ClockTool struct {
	now func() time.Time
}

// NewClockTool constructs the get_time tool.
func NewClockTool() *ClockTool {
	return &ClockTool{now: time.Now}
}

func (c *ClockTool) Name() string { return "get_time" }

func (c *ClockTool) Description() string { return "Get the current time" }

func (c *ClockTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
		"required":   []string{},
	}
}

func (c *ClockTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	return Result{Content: c.now().Format("2006-01-02 15:04:05")}, nil
}

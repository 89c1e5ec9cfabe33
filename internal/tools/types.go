// Package tools defines the tool contract shared by every handler and
// the ordered registry the dispatcher resolves against.
package tools

import (
	"context"
	"fmt"
)

// Result is the textual payload a tool returns. Handlers encode
// structured information as formatted text; failures are reported here
// rather than raised so the channel stays alive and the calling loop
// can react in-band.
type Result struct {
	Content string
}

// Tool describes a callable tool.
type Tool interface {
	Name() string
	Description() string
	Schema() map[string]any
	Execute(ctx context.Context, args map[string]any) (Result, error)
}

// Summary is the descriptor shape advertised to callers. It never
// exposes the handler.
type Summary struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func report(format string, a ...any) (Result, error) {
	return Result{Content: fmt.Sprintf("Error: "+format, a...)}, nil
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func numberArg(args map[string]any, key string, fallback float64) float64 {
	v, ok := args[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return fallback
	}
}

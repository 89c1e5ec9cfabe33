package tools

import (
	"errors"
	"fmt"
)

// ErrDuplicateTool is returned when a name is registered twice.
var ErrDuplicateTool = errors.New("duplicate tool name")

// Registry stores tools in registration order. The order is the order
// advertised to callers, so it is part of the contract.
type Registry struct {
	ordered []Tool
	index   map[string]Tool
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{index: map[string]Tool{}}
}

// NewRegistry builds a registry from tools, failing on duplicates.
func NewRegistry(items ...Tool) (*Registry, error) {
	reg := New()
	for _, item := range items {
		if err := reg.Register(item); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Register adds a tool.
func (r *Registry) Register(tool Tool) error {
	if _, exists := r.index[tool.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, tool.Name())
	}
	r.index[tool.Name()] = tool
	r.ordered = append(r.ordered, tool)
	return nil
}

// Resolve returns a tool by name.
func (r *Registry) Resolve(name string) (Tool, bool) {
	tool, ok := r.index[name]
	return tool, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ordered))
	for _, tool := range r.ordered {
		names = append(names, tool.Name())
	}
	return names
}

// Describe returns descriptor summaries in registration order for the
// handshake and listing responses.
func (r *Registry) Describe() []Summary {
	out := make([]Summary, 0, len(r.ordered))
	for _, tool := range r.ordered {
		out = append(out, Summary{
			Name:        tool.Name(),
			Description: tool.Description(),
			InputSchema: tool.Schema(),
		})
	}
	return out
}

package llm

import (
	"context"
	"fmt"
)

// MockClient replays a fixed script of responses. It backs offline
// runs and tests of the converse loop.
type MockClient struct {
	script []Response
	step   int

	// Requests records every request for assertions.
	Requests []Request
}

// NewMockClient builds a client that returns the given responses in
// order.
func NewMockClient(script ...Response) *MockClient {
	return &MockClient{script: script}
}

// NewCalculatorScript returns a mock that asks for one calculate call
// and then produces a final answer. Useful as a default offline script.
func NewCalculatorScript() *MockClient {
	return NewMockClient(
		Response{ToolCalls: []ToolCall{{
			ID:        "call_1",
			Name:      "calculate",
			Arguments: []byte(`{"expression":"add(3, 4)"}`),
		}}},
		Response{Content: "The result is 7."},
	)
}

func (m *MockClient) Create(ctx context.Context, req Request) (Response, error) {
	m.Requests = append(m.Requests, req)
	if m.step >= len(m.script) {
		return Response{}, fmt.Errorf("mock script exhausted after %d responses", len(m.script))
	}
	resp := m.script[m.step]
	m.step++
	return resp, nil
}

// Package llm abstracts the chat-completion backend used by the
// conversational front-end.
package llm

import (
	"context"
	"encoding/json"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared"

	"deploypilot/internal/tools"
)

// ToolCall represents a model tool call.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Response represents a model response.
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// Request is a simplified chat completion request.
type Request struct {
	Model      string
	Messages   []openai.ChatCompletionMessageParamUnion
	Tools      []openai.ChatCompletionToolUnionParam
	ToolChoice openai.ChatCompletionToolChoiceOptionUnionParam
}

// Client is an LLM client interface.
type Client interface {
	Create(ctx context.Context, req Request) (Response, error)
}

// ToolParams converts advertised tool descriptors into the chat
// completion tool schema. The front-end only holds descriptors from
// the handshake, never the handlers themselves.
func ToolParams(summaries []tools.Summary) []openai.ChatCompletionToolUnionParam {
	var defs []openai.ChatCompletionToolUnionParam
	for _, s := range summaries {
		defs = append(defs, openai.ChatCompletionToolUnionParam{
			OfFunction: &openai.ChatCompletionFunctionToolParam{
				Function: shared.FunctionDefinitionParam{
					Name:        s.Name,
					Description: param.NewOpt(s.Description),
					Parameters:  s.InputSchema,
				},
			},
		})
	}
	return defs
}

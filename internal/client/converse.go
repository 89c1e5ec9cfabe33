package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared/constant"
	"go.uber.org/zap"

	"deploypilot/internal/llm"
)

// ErrMaxSteps is returned when the model keeps requesting tools past
// the step budget.
var ErrMaxSteps = errors.New("max steps reached")

// Converser runs the model/tool loop against a connected session. It
// owns the conversation history, so follow-up questions in the same
// process keep their context.
type Converser struct {
	session  *Session
	client   llm.Client
	logger   *zap.Logger
	history  []openai.ChatCompletionMessageParamUnion
	Model    string
	MaxSteps int
}

// NewConverser wires the loop. MaxSteps bounds the number of model
// round trips.
func NewConverser(session *Session, client llm.Client, logger *zap.Logger, model string, maxSteps int) *Converser {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxSteps <= 0 {
		maxSteps = 10
	}
	return &Converser{session: session, client: client, logger: logger, Model: model, MaxSteps: maxSteps}
}

func systemPrompt() string {
	return "You are a deployment assistant. You can inspect repositories, run commands, " +
		"launch preview UIs, and deploy applications using the available tools. " +
		"Use tools when they help; answer directly when they do not."
}

// Converse sends the question through the tool-use loop and returns
// the model's answer: every textual block the model produced, across
// all rounds, joined in order. Text that arrives alongside tool calls
// is kept, both in the answer and in the assistant message the
// follow-up completion sees. Every requested tool call is executed
// against the session and its output fed back as a tool message.
func (c *Converser) Converse(ctx context.Context, question string) (string, error) {
	if len(c.history) == 0 {
		c.history = append(c.history, openai.SystemMessage(systemPrompt()))
	}
	c.history = append(c.history, openai.UserMessage(question))
	messages := c.history

	var answer strings.Builder

	toolDefs := llm.ToolParams(c.session.Tools())
	toolChoice := openai.ChatCompletionToolChoiceOptionUnionParam{}
	if len(toolDefs) > 0 {
		toolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: param.NewOpt("auto")}
	}

	for step := 0; step < c.MaxSteps; step++ {
		response, err := c.client.Create(ctx, llm.Request{
			Model:      c.Model,
			Messages:   messages,
			Tools:      toolDefs,
			ToolChoice: toolChoice,
		})
		if err != nil {
			return "", fmt.Errorf("model request failed: %w", err)
		}

		if text := strings.TrimSpace(response.Content); text != "" {
			if answer.Len() > 0 {
				answer.WriteString("\n")
			}
			answer.WriteString(text)
		}

		if len(response.ToolCalls) == 0 {
			messages = append(messages, openai.AssistantMessage(strings.TrimSpace(response.Content)))
			c.history = messages
			return answer.String(), nil
		}

		toolCallParams := make([]openai.ChatCompletionMessageToolCallUnionParam, 0, len(response.ToolCalls))
		for _, call := range response.ToolCalls {
			toolCallParams = append(toolCallParams, openai.ChatCompletionMessageToolCallUnionParam{
				OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
					ID: call.ID,
					Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
						Name:      call.Name,
						Arguments: string(call.Arguments),
					},
					Type: constant.Function("function"),
				},
			})
		}
		assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: toolCallParams}
		if text := strings.TrimSpace(response.Content); text != "" {
			assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{OfString: param.NewOpt(text)}
		}
		messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})

		for _, call := range response.ToolCalls {
			args := map[string]any{}
			if len(call.Arguments) > 0 {
				if err := json.Unmarshal(call.Arguments, &args); err != nil {
					messages = append(messages, openai.ToolMessage(
						fmt.Sprintf("Error: invalid tool arguments: %v", err), call.ID))
					continue
				}
			}
			c.logger.Info("model requested tool", zap.String("tool", call.Name))
			output, err := c.session.Call(call.Name, args)
			if err != nil {
				messages = append(messages, openai.ToolMessage("Error: "+err.Error(), call.ID))
				continue
			}
			messages = append(messages, openai.ToolMessage(output, call.ID))
		}
	}
	c.history = messages
	return "", ErrMaxSteps
}

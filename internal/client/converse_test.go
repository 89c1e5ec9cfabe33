package client

import (
	"context"
	"strings"
	"testing"

	"deploypilot/internal/llm"
)

func TestConverseRunsToolLoop(t *testing.T) {
	sess := pipeSession(t)
	if err := sess.Handshake(); err != nil {
		t.Fatalf("Handshake: %v", err)
	}

	mock := llm.NewCalculatorScript()
	conv := NewConverser(sess, mock, nil, "test-model", 5)
	answer, err := conv.Converse(context.Background(), "What is 3 + 4?")
	if err != nil {
		t.Fatalf("Converse: %v", err)
	}
	if answer != "The result is 7." {
		t.Errorf("Converse = %q", answer)
	}

	if len(mock.Requests) != 2 {
		t.Fatalf("model called %d times, want 2", len(mock.Requests))
	}
	// the second request must carry the tool result back to the model
	last := mock.Requests[1]
	if len(last.Messages) < 4 {
		t.Fatalf("second request has %d messages", len(last.Messages))
	}
	if len(last.Tools) == 0 {
		t.Error("tool definitions not forwarded to the model")
	}
}

func TestConverseDirectAnswer(t *testing.T) {
	sess := pipeSession(t)
	if err := sess.Handshake(); err != nil {
		t.Fatalf("Handshake: %v", err)
	}

	mock := llm.NewMockClient(llm.Response{Content: "  Just an answer.  "})
	conv := NewConverser(sess, mock, nil, "test-model", 5)
	answer, err := conv.Converse(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Converse: %v", err)
	}
	if answer != "Just an answer." {
		t.Errorf("Converse = %q", answer)
	}
}

func TestConverseAccumulatesTextAcrossRounds(t *testing.T) {
	sess := pipeSession(t)
	if err := sess.Handshake(); err != nil {
		t.Fatalf("Handshake: %v", err)
	}

	mock := llm.NewMockClient(
		llm.Response{
			Content: "Let me compute that.",
			ToolCalls: []llm.ToolCall{{
				ID:        "call_1",
				Name:      "calculate",
				Arguments: []byte(`{"expression":"add(3, 4)"}`),
			}},
		},
		llm.Response{Content: "The result is 7."},
	)
	conv := NewConverser(sess, mock, nil, "test-model", 5)
	answer, err := conv.Converse(context.Background(), "What is 3 + 4?")
	if err != nil {
		t.Fatalf("Converse: %v", err)
	}
	if answer != "Let me compute that.\nThe result is 7." {
		t.Errorf("Converse = %q, want both text blocks joined in order", answer)
	}

	// the text sent alongside the tool call must also reach the model
	// on the follow-up round, inside the assistant message
	second := mock.Requests[1]
	if len(second.Messages) < 4 {
		t.Fatalf("second request has %d messages", len(second.Messages))
	}
	assistant := second.Messages[2].OfAssistant
	if assistant == nil {
		t.Fatal("third message is not an assistant message")
	}
	if got := assistant.Content.OfString.Or(""); got != "Let me compute that." {
		t.Errorf("assistant content = %q, want the intermediate text", got)
	}
}

func TestConverseKeepsHistoryAcrossTurns(t *testing.T) {
	sess := pipeSession(t)
	if err := sess.Handshake(); err != nil {
		t.Fatalf("Handshake: %v", err)
	}

	mock := llm.NewMockClient(
		llm.Response{Content: "First answer."},
		llm.Response{Content: "Second answer."},
	)
	conv := NewConverser(sess, mock, nil, "test-model", 5)
	if _, err := conv.Converse(context.Background(), "first"); err != nil {
		t.Fatalf("Converse: %v", err)
	}
	if _, err := conv.Converse(context.Background(), "second"); err != nil {
		t.Fatalf("Converse: %v", err)
	}
	// system + user + assistant + user on the second round trip
	if got := len(mock.Requests[1].Messages); got != 4 {
		t.Errorf("second request carried %d messages, want 4", got)
	}
}

func TestConverseBoundedByMaxSteps(t *testing.T) {
	sess := pipeSession(t)
	if err := sess.Handshake(); err != nil {
		t.Fatalf("Handshake: %v", err)
	}

	loop := llm.Response{ToolCalls: []llm.ToolCall{{
		ID:        "call_x",
		Name:      "get_time",
		Arguments: []byte(`{}`),
	}}}
	mock := llm.NewMockClient(loop, loop, loop, loop, loop)
	conv := NewConverser(sess, mock, nil, "test-model", 3)
	_, err := conv.Converse(context.Background(), "loop forever")
	if err != ErrMaxSteps {
		t.Fatalf("Converse error = %v, want ErrMaxSteps", err)
	}
	if len(mock.Requests) != 3 {
		t.Errorf("model called %d times, want 3", len(mock.Requests))
	}
}

func TestConverseSurvivesServerError(t *testing.T) {
	sess := pipeSession(t)
	if err := sess.Handshake(); err != nil {
		t.Fatalf("Handshake: %v", err)
	}

	mock := llm.NewMockClient(
		llm.Response{ToolCalls: []llm.ToolCall{{
			ID:        "call_1",
			Name:      "nonexistent",
			Arguments: []byte(`{}`),
		}}},
		llm.Response{Content: "Could not use that tool."},
	)
	conv := NewConverser(sess, mock, nil, "test-model", 5)
	answer, err := conv.Converse(context.Background(), "use a broken tool")
	if err != nil {
		t.Fatalf("Converse: %v", err)
	}
	if !strings.Contains(answer, "Could not use that tool.") {
		t.Errorf("Converse = %q", answer)
	}
}

package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/localbrain/localbrain/modelclient"
)

// scriptedModel returns each queued response in order; after the queue
// drains it keeps returning the last one.
type scriptedModel struct {
	responses []*modelclient.Response
	requests  []modelclient.Request
	err       error
}

func (m *scriptedModel) Complete(ctx context.Context, req modelclient.Request) (*modelclient.Response, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return &modelclient.Response{ID: "empty", Text: "done"}, nil
	}
	resp := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return resp, nil
}

func textResponse(id, text string) *modelclient.Response {
	return &modelclient.Response{ID: id, Text: text, FinishReason: "stop"}
}

func toolCallResponse(id, tool string, args string) *modelclient.Response {
	return &modelclient.Response{
		ID:           id,
		FinishReason: "tool_calls",
		ToolCalls: []modelclient.ToolCall{
			{ID: "call_" + id, Name: tool, Arguments: json.RawMessage(args)},
		},
	}
}

func newSessionRegistry(t *testing.T) *ToolRegistry {
	t.Helper()
	reg := NewToolRegistry()
	err := reg.Register(ToolDefinition{
		Name: "read_file",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{"type": "string"},
			},
			"required": []any{"path"},
		},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		return fmt.Sprintf("contents of %v", args["path"]), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func TestSessionFinalAnswerWithoutInvocations(t *testing.T) {
	model := &scriptedModel{responses: []*modelclient.Response{
		textResponse("r1", "The project is a web server."),
	}}
	session := NewSession(model, newSessionRegistry(t), DefaultSessionConfig(), nil)
	go drainSessionEvents(session)

	outcome := session.Run(context.Background(), "What is this project?")
	if outcome.Kind != OutcomeFinal {
		t.Fatalf("expected final outcome, got %s (%v)", outcome.Kind, outcome.Err)
	}
	if outcome.Answer != "The project is a web server." {
		t.Errorf("unexpected answer: %q", outcome.Answer)
	}
	if outcome.Turns != 1 {
		t.Errorf("expected 1 turn, got %d", outcome.Turns)
	}
	if session.State() != StateTerminal {
		t.Errorf("expected terminal state, got %s", session.State())
	}
}

func TestSessionToolRoundTrip(t *testing.T) {
	model := &scriptedModel{responses: []*modelclient.Response{
		toolCallResponse("r1", "read_file", `{"path":"main.go"}`),
		textResponse("r2", "main.go starts the server."),
	}}
	session := NewSession(model, newSessionRegistry(t), DefaultSessionConfig(), nil)
	go drainSessionEvents(session)

	outcome := session.Run(context.Background(), "What does main.go do?")
	if outcome.Kind != OutcomeFinal {
		t.Fatalf("expected final outcome, got %s (%v)", outcome.Kind, outcome.Err)
	}
	if outcome.Turns != 2 {
		t.Errorf("expected 2 turns, got %d", outcome.Turns)
	}

	// The second request must carry the tool result back to the model.
	if len(model.requests) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(model.requests))
	}
	second := model.requests[1]
	found := false
	for _, msg := range second.Messages {
		if msg.Role == modelclient.RoleTool && strings.Contains(msg.Content, "contents of main.go") {
			found = true
		}
	}
	if !found {
		t.Error("tool result missing from second request")
	}
}

func TestSessionTurnLimitKeepsHistory(t *testing.T) {
	// The model never stops asking for tools.
	model := &scriptedModel{responses: []*modelclient.Response{
		toolCallResponse("r", "read_file", `{"path":"main.go"}`),
	}}
	cfg := DefaultSessionConfig()
	cfg.MaxTurns = 3
	session := NewSession(model, newSessionRegistry(t), cfg, nil)
	go drainSessionEvents(session)

	outcome := session.Run(context.Background(), "loop forever")
	if outcome.Kind != OutcomeTurnLimit {
		t.Fatalf("expected turn limit outcome, got %s", outcome.Kind)
	}
	if outcome.Turns != 3 {
		t.Errorf("expected 3 turns, got %d", outcome.Turns)
	}
	// 1 user + 3x (assistant + results)
	if len(outcome.History) != 7 {
		t.Errorf("expected 7 history entries, got %d", len(outcome.History))
	}
}

func TestSessionUnknownToolFlowsBackAsError(t *testing.T) {
	model := &scriptedModel{responses: []*modelclient.Response{
		toolCallResponse("r1", "delete_everything", `{}`),
		textResponse("r2", "I cannot do that."),
	}}
	session := NewSession(model, newSessionRegistry(t), DefaultSessionConfig(), nil)
	go drainSessionEvents(session)

	outcome := session.Run(context.Background(), "wipe the disk")
	if outcome.Kind != OutcomeFinal {
		t.Fatalf("expected final outcome, got %s", outcome.Kind)
	}

	second := model.requests[1]
	found := false
	for _, msg := range second.Messages {
		if msg.Role == modelclient.RoleTool && msg.IsError && strings.Contains(msg.Content, "delete_everything") {
			found = true
		}
	}
	if !found {
		t.Error("denial result missing from second request")
	}
}

func TestSessionMalformedArgumentsFlowBack(t *testing.T) {
	model := &scriptedModel{responses: []*modelclient.Response{
		toolCallResponse("r1", "read_file", `{not json`),
		textResponse("r2", "sorry"),
	}}
	session := NewSession(model, newSessionRegistry(t), DefaultSessionConfig(), nil)
	go drainSessionEvents(session)

	outcome := session.Run(context.Background(), "read something")
	if outcome.Kind != OutcomeFinal {
		t.Fatalf("expected final outcome, got %s (%v)", outcome.Kind, outcome.Err)
	}

	second := model.requests[1]
	found := false
	for _, msg := range second.Messages {
		if msg.Role == modelclient.RoleTool && msg.IsError {
			found = true
		}
	}
	if !found {
		t.Error("malformed invocation should produce an error result for the model")
	}
}

func TestSessionModelErrorIsFatalWithHistory(t *testing.T) {
	model := &scriptedModel{err: errors.New("connection refused")}
	session := NewSession(model, newSessionRegistry(t), DefaultSessionConfig(), nil)
	go drainSessionEvents(session)

	outcome := session.Run(context.Background(), "hello")
	if outcome.Kind != OutcomeFatal {
		t.Fatalf("expected fatal outcome, got %s", outcome.Kind)
	}
	if outcome.Err == nil {
		t.Error("fatal outcome must carry the error")
	}
	if len(outcome.History) != 1 {
		t.Errorf("history up to the failure must be preserved, got %d entries", len(outcome.History))
	}
}

func TestSessionCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	model := &scriptedModel{responses: []*modelclient.Response{textResponse("r1", "x")}}
	session := NewSession(model, newSessionRegistry(t), DefaultSessionConfig(), nil)
	go drainSessionEvents(session)

	outcome := session.Run(ctx, "hello")
	if outcome.Kind != OutcomeCancelled {
		t.Fatalf("expected cancelled outcome, got %s", outcome.Kind)
	}
}

func TestSessionScriptBlockResponse(t *testing.T) {
	model := &scriptedModel{responses: []*modelclient.Response{
		textResponse("r1", "Let me check.\n```tool\nprint(read_file(path=\"main.go\"))\n```"),
		textResponse("r2", "It is the entry point."),
	}}
	session := NewSession(model, newSessionRegistry(t), DefaultSessionConfig(), nil)
	go drainSessionEvents(session)

	outcome := session.Run(context.Background(), "inspect main.go")
	if outcome.Kind != OutcomeFinal {
		t.Fatalf("expected final outcome, got %s (%v)", outcome.Kind, outcome.Err)
	}

	second := model.requests[1]
	found := false
	for _, msg := range second.Messages {
		if msg.Role == modelclient.RoleTool && strings.Contains(msg.Content, "contents of main.go") {
			found = true
		}
	}
	if !found {
		t.Error("script output missing from second request")
	}
}

func TestExtractInvocationsPrecedence(t *testing.T) {
	// Structured calls win over a fenced block in the same response.
	resp := &modelclient.Response{
		ID:   "r",
		Text: "```tool\nprint(1)\n```",
		ToolCalls: []modelclient.ToolCall{
			{ID: "c1", Name: "read_file", Arguments: json.RawMessage(`{"path":"x"}`)},
		},
	}
	invs, malformed := ExtractInvocations(resp)
	if malformed != nil {
		t.Fatalf("unexpected malformed result: %+v", malformed)
	}
	if len(invs) != 1 || invs[0].Name != "read_file" || invs[0].Code != "" {
		t.Errorf("unexpected invocations: %+v", invs)
	}
}

func drainSessionEvents(s *Session) {
	for range s.Events() {
	}
}

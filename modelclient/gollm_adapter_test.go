package modelclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/teilomillet/gollm"
	"github.com/teilomillet/gollm/llm"
)

func testAdapter() *GollmAdapter {
	return &GollmAdapter{provider: "ollama", model: "llama3.1:8b"}
}

func TestParseToolCallsArrayForm(t *testing.T) {
	a := testAdapter()
	text := `I will read the file.
[{"name": "read_file", "arguments": {"path": "main.go"}}]`

	calls := a.parseToolCalls(text)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].Name != "read_file" {
		t.Errorf("unexpected name: %s", calls[0].Name)
	}
	var args map[string]any
	if err := json.Unmarshal(calls[0].Arguments, &args); err != nil {
		t.Fatalf("arguments not valid JSON: %v", err)
	}
	if args["path"] != "main.go" {
		t.Errorf("unexpected arguments: %v", args)
	}
	if calls[0].ID == "" {
		t.Error("calls must get generated IDs")
	}
}

func TestParseToolCallsWrapperForm(t *testing.T) {
	a := testAdapter()
	text := `{"tool_calls": [{"name": "git_status", "arguments": {}}, {"name": "git_log", "arguments": {"count": 5}}]}`

	calls := a.parseToolCalls(text)
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].Name != "git_status" || calls[1].Name != "git_log" {
		t.Errorf("unexpected calls: %+v", calls)
	}
}

func TestParseToolCallsPlainText(t *testing.T) {
	a := testAdapter()
	if calls := a.parseToolCalls("just a normal answer"); calls != nil {
		t.Errorf("expected no calls, got %+v", calls)
	}
}

func TestParseToolCallsMalformedJSON(t *testing.T) {
	a := testAdapter()
	if calls := a.parseToolCalls(`[{"name": "broken`); calls != nil {
		t.Errorf("malformed JSON must yield no calls, got %+v", calls)
	}
}

func TestBuildResponseWithToolCalls(t *testing.T) {
	a := testAdapter()
	text := `Checking the status.
[{"name": "git_status", "arguments": {}}]`

	resp := a.buildResponse(Request{Model: "llama3.1:8b"}, text)
	if resp.FinishReason != "tool_calls" {
		t.Errorf("expected tool_calls finish reason, got %s", resp.FinishReason)
	}
	if resp.Text != "Checking the status." {
		t.Errorf("embedded JSON should be stripped: %q", resp.Text)
	}
	if len(resp.ToolCalls) != 1 {
		t.Errorf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	if resp.Provider != "ollama" {
		t.Errorf("unexpected provider: %s", resp.Provider)
	}
}

func TestBuildResponsePlainAnswer(t *testing.T) {
	a := testAdapter()
	resp := a.buildResponse(Request{}, "the answer")
	if resp.FinishReason != "stop" {
		t.Errorf("expected stop, got %s", resp.FinishReason)
	}
	if resp.Text != "the answer" {
		t.Errorf("text must pass through: %q", resp.Text)
	}
	if resp.Model != "llama3.1:8b" {
		t.Errorf("model must fall back to the adapter default: %s", resp.Model)
	}
}

// sharedOptionLLM echoes the model set via SetOption back as the generated
// text, so interleaved option writes from another request show up as a
// wrong echo.
type sharedOptionLLM struct {
	gollm.LLM
	model string
}

func (f *sharedOptionLLM) SetOption(key string, value any) {
	if key == "model" {
		f.model, _ = value.(string)
	}
}

func (f *sharedOptionLLM) Generate(ctx context.Context, prompt *gollm.Prompt, opts ...llm.GenerateOption) (string, error) {
	time.Sleep(time.Millisecond)
	return f.model, nil
}

func TestCompleteSerializesSharedModelOptions(t *testing.T) {
	a := NewGollmAdapterFromLLM("ollama", &sharedOptionLLM{})

	models := []string{"model-a", "model-b", "model-c", "model-d"}
	errs := make(chan error, len(models)*4)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		for _, m := range models {
			wg.Add(1)
			go func(m string) {
				defer wg.Done()
				resp, err := a.Complete(context.Background(), Request{
					Model:    m,
					Messages: []Message{UserMessage("hello")},
				})
				if err != nil {
					errs <- err
					return
				}
				if resp.Text != m {
					errs <- fmt.Errorf("request for %s generated with model %s", m, resp.Text)
				}
			}(m)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

package model

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func collect(t *testing.T, respCh <-chan Response, errCh <-chan error) ([]Response, error) {
	t.Helper()
	var out []Response
	var firstErr error
	for respCh != nil || errCh != nil {
		select {
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			out = append(out, r)
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return out, firstErr
}

func TestMockModel_CannedResponse(t *testing.T) {
	m := NewMockModel("test-model", "mock")
	m.AddResponse("How do you feel about the product?", "I like it a lot.")

	respCh, errCh := m.Generate(context.Background(), Request{
		Messages: []Message{{Role: "user", Text: "How do you feel about the product?"}},
	})
	responses, err := collect(t, respCh, errCh)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}
	if responses[0].Text != "I like it a lot." {
		t.Errorf("unexpected text %q", responses[0].Text)
	}
	if responses[0].FinishReason != "stop" {
		t.Errorf("unexpected finish reason %q", responses[0].FinishReason)
	}
}

func TestMockModel_DefaultResponse(t *testing.T) {
	m := NewMockModel("test-model", "mock")

	respCh, errCh := m.Generate(context.Background(), Request{
		Messages: []Message{{Role: "user", Text: "hello"}},
	})
	responses, err := collect(t, respCh, errCh)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := responses[len(responses)-1].Text; got != "Mock response to: hello" {
		t.Errorf("unexpected default text %q", got)
	}
}

func TestMockModel_StreamingChunksRebuildFinalText(t *testing.T) {
	m := NewMockModel("test-model", "mock")
	m.AddResponse("prompt", "chunked reply")

	respCh, errCh := m.Generate(context.Background(), Request{
		Messages: []Message{{Role: "user", Text: "prompt"}},
		Stream:   true,
	})
	responses, err := collect(t, respCh, errCh)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sb strings.Builder
	var final *Response
	for i := range responses {
		if responses[i].Partial {
			sb.WriteString(responses[i].Text)
			continue
		}
		final = &responses[i]
	}
	if final == nil {
		t.Fatal("no final response emitted")
	}
	if sb.String() != final.Text {
		t.Errorf("streamed chunks %q do not rebuild final text %q", sb.String(), final.Text)
	}
}

func TestMockModel_ToolResponse(t *testing.T) {
	m := NewMockModel("test-model", "mock")
	m.AddToolResponse("extract findings", json.RawMessage(`{"sentiment":"positive"}`))

	respCh, errCh := m.Generate(context.Background(), Request{
		Messages: []Message{{Role: "user", Text: "extract findings"}},
		Tools: []ToolDefinition{{
			Type:     "function",
			Function: FunctionDefinition{Name: "record_findings"},
		}},
	})
	responses, err := collect(t, respCh, errCh)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(responses) != 1 || len(responses[0].ToolCalls) != 1 {
		t.Fatalf("expected a single tool call response, got %+v", responses)
	}
	call := responses[0].ToolCalls[0]
	if call.Function.Name != "record_findings" {
		t.Errorf("unexpected tool name %q", call.Function.Name)
	}
	var args map[string]any
	if err := json.Unmarshal(call.Function.Arguments, &args); err != nil {
		t.Fatalf("arguments not valid JSON: %v", err)
	}
	if args["sentiment"] != "positive" {
		t.Errorf("unexpected arguments %v", args)
	}
	if responses[0].FinishReason != "tool_calls" {
		t.Errorf("unexpected finish reason %q", responses[0].FinishReason)
	}
}

func TestMockModel_NoMessages(t *testing.T) {
	m := NewMockModel("test-model", "mock")

	respCh, errCh := m.Generate(context.Background(), Request{})
	_, err := collect(t, respCh, errCh)
	if err == nil {
		t.Fatal("expected error for empty messages")
	}
}

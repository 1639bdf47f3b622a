package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
)

func testRegistrations() []ToolRegistration {
	return []ToolRegistration{
		{
			ToolName:    "docs",
			Title:       "Docs",
			Description: "Project documentation",
			Invoke: func(_ context.Context, prompt string) (string, error) {
				return "docs: " + prompt, nil
			},
		},
		{
			ToolName:    "broken",
			Title:       "Broken",
			Description: "Always fails",
			Invoke: func(context.Context, string) (string, error) {
				return "", errors.New("provider unavailable")
			},
		},
	}
}

func dispatch(t *testing.T, s *Server, request string) string {
	t.Helper()
	resp := s.MCPServer().HandleMessage(context.Background(), json.RawMessage(request))
	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return string(raw)
}

func TestServer_ListsOneToolPerRegistration(t *testing.T) {
	s := NewServer("test", testRegistrations(), nil)
	out := dispatch(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)

	for _, want := range []string{`"name":"docs"`, `"name":"broken"`, `"title":"Docs"`, `"description":"Project documentation"`, `"prompt"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("tools/list missing %s: %s", want, out)
		}
	}
}

func TestServer_CallDispatchesByName(t *testing.T) {
	s := NewServer("test", testRegistrations(), nil)
	out := dispatch(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"docs","arguments":{"prompt":"how?"}}}`)
	if !strings.Contains(out, "docs: how?") {
		t.Fatalf("unexpected call result: %s", out)
	}
	if strings.Contains(out, `"isError":true`) {
		t.Fatalf("successful call marked as error: %s", out)
	}
}

func TestServer_UnknownToolIsRejected(t *testing.T) {
	s := NewServer("test", testRegistrations(), nil)
	out := dispatch(t, s, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"ghost","arguments":{"prompt":"x"}}}`)
	if !strings.Contains(out, `"error"`) {
		t.Fatalf("expected JSON-RPC error for unknown tool: %s", out)
	}
}

func TestToolHandler_ErrorsBecomeToolResults(t *testing.T) {
	regs := testRegistrations()
	handler := newToolHandler(regs[1], nil)

	req := mcpgo.CallToolRequest{}
	req.Params.Name = "broken"
	req.Params.Arguments = map[string]any{"prompt": "x"}
	res, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("handler must not return a protocol error, got %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected error result, got %#v", res)
	}

	missing := mcpgo.CallToolRequest{}
	missing.Params.Name = "docs"
	missing.Params.Arguments = map[string]any{}
	res, err = newToolHandler(regs[0], nil)(context.Background(), missing)
	if err != nil || !res.IsError {
		t.Fatalf("missing prompt must be an error result, got res=%#v err=%v", res, err)
	}
}

package mcp

import (
	"encoding/json"
	"errors"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/polyglot-llm-wire/internal/api/openai"
	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
)

func TestToolFromMCP_NilSchema(t *testing.T) {
	def, err := ToolFromMCP(&mcpsdk.Tool{Name: "ping", Description: "health check"})
	require.NoError(t, err)
	assert.Equal(t, "ping", def.Name)
	assert.JSONEq(t, `{"type":"object"}`, string(def.Parameters))
}

func TestToolFromMCP_MapSchema(t *testing.T) {
	def, err := ToolFromMCP(&mcpsdk.Tool{
		Name:        "echo",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{"text": map[string]any{"type": "string"}}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object","properties":{"text":{"type":"string"}}}`, string(def.Parameters))
}

func TestToolsRoundTrip(t *testing.T) {
	defs := []domain.ToolDefinition{
		{Name: "echo", Description: "repeat", Parameters: []byte(`{"type":"object","properties":{"text":{"type":"string"}}}`)},
		{Name: "ping"},
	}
	tools, err := ToolsToMCP(defs)
	require.NoError(t, err)
	require.Len(t, tools, 2)

	back, err := ToolsFromMCP(tools)
	require.NoError(t, err)
	assert.JSONEq(t, string(defs[0].Parameters), string(back[0].Parameters))
	assert.JSONEq(t, `{"type":"object"}`, string(back[1].Parameters))
}

func TestToolsFromMCP_DuplicateNames(t *testing.T) {
	_, err := ToolsFromMCP([]*mcpsdk.Tool{{Name: "a"}, {Name: "a"}})
	assert.True(t, errors.Is(err, domain.ErrDuplicateToolName), "err = %v", err)
}

func TestToolToMCP_NonObjectSchema(t *testing.T) {
	_, err := ToolToMCP(domain.ToolDefinition{Name: "x", Parameters: []byte(`"string"`)}, 3)
	var te *domain.TranscodeError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "tools[3].parameters", te.Path)
}

func TestMessageToCalls_SplitsCalls(t *testing.T) {
	msg := domain.Message{Role: domain.RoleAssistant, Parts: []domain.ContentPart{
		domain.TextPart("checking"),
		domain.ToolCallPart("c1", "weather", `{"city":"Paris"}`),
		domain.ToolCallPart("c2", "time", ``),
	}}
	calls, err := MessageToCalls(msg, 1)
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "weather", calls[0].Name)
	assert.Equal(t, "time", calls[1].Name)

	raw, err := json.Marshal(calls[1].Arguments)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw))

	back, err := CallsToMessage(calls, []string{"c1", "c2"})
	require.NoError(t, err)
	assert.Equal(t, msg.ToolCalls()[0], back.ToolCalls()[0])
	assert.Equal(t, "c2", back.ToolCalls()[1].ID)
}

func TestCallToMCP_NonObjectArguments(t *testing.T) {
	_, err := CallToMCP(domain.ToolCallPart("c", "f", `[1]`), "messages[0].parts[0]")
	assert.True(t, errors.Is(err, domain.ErrUnrepresentable), "err = %v", err)
}

func TestCallsToMessage_SynthesizesIDs(t *testing.T) {
	calls := []*mcpsdk.CallToolParams{
		{Name: "f", Arguments: map[string]any{"n": 1}},
		{Name: "f", Arguments: map[string]any{"n": 2}},
	}
	msg, err := CallsToMessage(calls, nil)
	require.NoError(t, err)
	got := msg.ToolCalls()
	assert.Equal(t, domain.SyntheticCallID("f", 0), got[0].ID)
	assert.Equal(t, domain.SyntheticCallID("f", 1), got[1].ID)
	assert.JSONEq(t, `{"n":2}`, got[1].Arguments)
}

func TestResultRoundTrip(t *testing.T) {
	result := domain.ToolResult{CallID: "c1", IsError: true, Content: []domain.ContentPart{
		domain.TextPart("failed"),
		domain.Image{MediaType: "image/png", Data: "iVBORw0KGgo="},
	}}
	out, err := ResultToMCP(result, "messages[2].parts[0]")
	require.NoError(t, err)
	assert.True(t, out.IsError)
	require.Len(t, out.Content, 2)
	assert.Equal(t, "failed", out.Content[0].(*mcpsdk.TextContent).Text)

	back, err := ResultFromMCP("c1", out)
	require.NoError(t, err)
	assert.Equal(t, result, back)
}

func TestResultToMCP_ImageURL(t *testing.T) {
	result := domain.ToolResult{CallID: "c1", Content: []domain.ContentPart{domain.Image{URL: "https://example.com/a.png"}}}
	_, err := ResultToMCP(result, "messages[2].parts[0]")
	var te *domain.TranscodeError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "messages[2].parts[0].content[0]", te.Path)
}

func TestResultFromMCP_StructuredContent(t *testing.T) {
	got, err := ResultFromMCP("c1", &mcpsdk.CallToolResult{StructuredContent: map[string]any{"ok": true}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, got.Text())
}

func TestOpenAIBoundary(t *testing.T) {
	tools, err := FromOpenAITools([]openai.Tool{{Function: openai.FunctionDefinition{Name: "echo"}}})
	require.NoError(t, err)
	require.Len(t, tools, 1)

	back, err := ToOpenAITools(tools)
	require.NoError(t, err)
	assert.Equal(t, "echo", back[0].Function.Name)

	invs, err := FromOpenAIToolCalls(openai.AssistantMessage{ToolCalls: []openai.ToolCall{
		{ID: "call_a", Function: openai.FunctionCall{Name: "echo", Arguments: `{"text":"a"}`}},
		{ID: "call_b", Function: openai.FunctionCall{Name: "echo", Arguments: `{"text":"b"}`}},
	}})
	require.NoError(t, err)
	require.Len(t, invs, 2)
	assert.Equal(t, "call_b", invs[1].CallID)

	msg, err := ToOpenAIToolMessage("call_a", &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "echo:a"}}})
	require.NoError(t, err)
	tm, ok := msg.(openai.ToolMessage)
	require.True(t, ok)
	assert.Equal(t, "call_a", tm.ToolCallID)
	assert.Equal(t, "echo:a", tm.Content.Text)

	_, err = ToOpenAIToolMessage("call_b", &mcpsdk.CallToolResult{IsError: true, Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "x"}}})
	assert.True(t, errors.Is(err, domain.ErrUnrepresentable), "err = %v", err)
}

package openai

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/polyglot-llm-wire/internal/api/wire"
	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
	"github.com/tjfontaine/polyglot-llm-wire/internal/pkg/codec"
)

func TestCodec_APIType(t *testing.T) {
	if got := New().APIType(); got != domain.APITypeOpenAI {
		t.Errorf("APIType() = %q, want %q", got, domain.APITypeOpenAI)
	}
}

func TestDecodeRequest_ToolConversation(t *testing.T) {
	body := `{"model":"gpt-4o","temperature":0.2,"max_completion_tokens":50,"max_tokens":10,"stop":"END",` +
		`"messages":[` +
		`{"role":"developer","content":"Be brief."},` +
		`{"role":"user","name":"ana","content":[{"type":"text","text":"Look"},{"type":"image_url","image_url":{"url":"https://x/a.png","detail":"low"}}]},` +
		`{"role":"assistant","content":null,"tool_calls":[{"id":"call_1","type":"function","function":{"name":"lookup","arguments":"{\"q\":1}"}}]},` +
		`{"role":"tool","tool_call_id":"call_1","content":"42"}],` +
		`"tools":[{"type":"function","function":{"name":"lookup","description":"Find","parameters":{"type":"object"}}}],` +
		`"tool_choice":{"type":"function","function":{"name":"lookup"}}}`

	req, err := New().DecodeRequest([]byte(body))
	require.NoError(t, err)
	require.NoError(t, req.Validate())

	assert.Equal(t, "gpt-4o", req.Model)
	assert.Equal(t, 50, *req.MaxTokens)
	assert.True(t, req.MaxCompletionTokens)
	assert.Equal(t, []string{"END"}, req.Stop)

	require.Len(t, req.Messages, 4)
	assert.Equal(t, domain.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, "ana", req.Messages[1].Name)
	img, ok := req.Messages[1].Parts[1].(domain.Image)
	require.True(t, ok)
	assert.Equal(t, "https://x/a.png", img.URL)
	assert.Equal(t, domain.ImageDetailLow, img.Detail)

	calls := req.Messages[2].ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, domain.ToolCall{ID: "call_1", Name: "lookup", Arguments: `{"q":1}`}, calls[0])

	result := req.Messages[3].Parts[0].(domain.ToolResult)
	assert.Equal(t, "call_1", result.CallID)
	assert.Equal(t, "42", result.Text())

	require.Len(t, req.Tools, 1)
	assert.Equal(t, "Find", req.Tools[0].Description)
	assert.Equal(t, domain.ToolChoice{Mode: domain.ToolChoiceFunction, Name: "lookup"}, *req.ToolChoice)
}

func TestDecodeRequest_UnknownRole(t *testing.T) {
	_, err := New().DecodeRequest([]byte(`{"model":"m","messages":[{"role":"narrator","content":"x"}]}`))
	require.Error(t, err)

	var schemaErr *domain.SchemaError
	require.True(t, errors.As(err, &schemaErr), "err = %v", err)
	assert.Equal(t, domain.SchemaUnknownVariant, schemaErr.Kind)
	assert.Equal(t, "narrator", schemaErr.Value)
}

func TestEncodeRequest_ToolMessagesSplit(t *testing.T) {
	req := &domain.Request{
		Model: "gpt-4o",
		Messages: []domain.Message{
			{Role: domain.RoleUser, Parts: []domain.ContentPart{domain.TextPart("go")}},
			{Role: domain.RoleAssistant, Parts: []domain.ContentPart{
				domain.ToolCallPart("a", "f", "{}"),
				domain.ToolCallPart("b", "g", "{}"),
			}},
			{Role: domain.RoleTool, Parts: []domain.ContentPart{
				domain.ToolResultPart("a", "1"),
				domain.ToolResultPart("b", "2"),
			}},
		},
	}
	out, err := New().EncodeRequest(req)
	require.NoError(t, err)

	var got struct {
		Messages []struct {
			Role       string `json:"role"`
			ToolCallID string `json:"tool_call_id"`
			Content    any    `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(out, &got))
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "tool", got.Messages[2].Role)
	assert.Equal(t, "a", got.Messages[2].ToolCallID)
	assert.Equal(t, "b", got.Messages[3].ToolCallID)
	assert.Nil(t, got.Messages[1].Content)
}

func TestEncodeRequest_TopKUnrepresentable(t *testing.T) {
	k := 5
	_, err := New().EncodeRequest(&domain.Request{Model: "m", TopK: &k})
	assert.True(t, errors.Is(err, domain.ErrUnrepresentable), "err = %v", err)
}

func TestResponseRoundTrip(t *testing.T) {
	body := `{"id":"chatcmpl-1","object":"chat.completion","created":1700000000,"model":"gpt-4o","system_fingerprint":"fp_1",` +
		`"choices":[{"index":0,"message":{"role":"assistant","content":"Hi","tool_calls":[{"id":"call_1","type":"function","function":{"name":"f","arguments":"{}"}}]},"finish_reason":"tool_calls"}],` +
		`"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`

	c := New()
	resp, err := c.DecodeResponse([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "fp_1", resp.SystemFingerprint)
	assert.Equal(t, domain.FinishToolCalls, resp.Choices[0].FinishReason.Kind)
	assert.Equal(t, "Hi", resp.Choices[0].Message.Text())
	assert.Equal(t, &domain.Usage{PromptTokens: 5, CompletionTokens: 2, TotalTokens: 7}, resp.Usage)

	out, err := c.EncodeResponse(resp)
	require.NoError(t, err)
	again, err := c.DecodeResponse(out)
	require.NoError(t, err)
	assert.Equal(t, resp, again)
}

func TestFinishReasons(t *testing.T) {
	tests := []struct {
		raw      string
		wantKind domain.FinishKind
		encodes  string
	}{
		{"stop", domain.FinishStop, "stop"},
		{"length", domain.FinishLength, "length"},
		{"tool_calls", domain.FinishToolCalls, "tool_calls"},
		{"content_filter", domain.FinishContentFilter, "content_filter"},
		{"function_call", domain.FinishToolCalls, "function_call"},
		{"mystery", domain.FinishOther, "mystery"},
	}
	for _, tt := range tests {
		fr := FinishReasons.Decode(tt.raw)
		if fr.Kind != tt.wantKind {
			t.Errorf("Decode(%q).Kind = %v, want %v", tt.raw, fr.Kind, tt.wantKind)
		}
		if got := FinishReasons.Encode(fr); got != tt.encodes {
			t.Errorf("Encode(Decode(%q)) = %q, want %q", tt.raw, got, tt.encodes)
		}
	}
}

func TestDecodeStreamChunk(t *testing.T) {
	c := New()

	events, err := c.DecodeStreamChunk([]byte(`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"role":"assistant","content":"Hi"},"finish_reason":null}]}`))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.StreamEventStart, events[0].Type)
	assert.Equal(t, domain.StreamEventText, events[1].Type)
	assert.Equal(t, "c1", events[1].ResponseID)

	events, err = c.DecodeStreamChunk([]byte(`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"function":{"arguments":"{}"}}]},"finish_reason":null}]}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, &domain.ToolCallDelta{Index: 1, ArgumentsDelta: "{}"}, events[0].ToolCall)

	events, err = c.DecodeStreamChunk([]byte(`[DONE]`))
	require.NoError(t, err)
	assert.Equal(t, []domain.StreamEvent{{Type: domain.StreamEventDone}}, events)

	_, err = c.DecodeStreamChunk([]byte(`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":1,"delta":{"content":"x"},"finish_reason":null}]}`))
	assert.True(t, errors.Is(err, domain.ErrInvalidField), "err = %v", err)
}

func TestEncodeStreamChunk(t *testing.T) {
	c := New()
	meta := &codec.StreamMetadata{ID: "resp-9", Model: "gpt-4o", Created: 5}

	out, err := c.EncodeStreamChunk(domain.StreamEvent{Type: domain.StreamEventText, Text: "yo"}, meta)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"resp-9","object":"chat.completion.chunk","created":5,"model":"gpt-4o","choices":[{"index":0,"delta":{"content":"yo"},"finish_reason":null}]}`, string(out))

	out, err = c.EncodeStreamChunk(domain.StreamEvent{Type: domain.StreamEventBlockStop}, meta)
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = c.EncodeStreamChunk(domain.StreamEvent{Type: domain.StreamEventDone}, meta)
	require.NoError(t, err)
	assert.Equal(t, "[DONE]", string(out))
}

func TestRequestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"max_tokens", `{"model":"gpt-4o","max_tokens":10,"messages":[{"role":"user","content":"hi"}]}`},
		{"max_completion_tokens", `{"model":"o1","max_completion_tokens":10,"messages":[{"role":"user","content":"hi"}]}`},
		{"refusal", `{"model":"gpt-4o","messages":[{"role":"user","content":"hi"},{"role":"assistant","refusal":"I can't"}]}`},
	}
	c := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := c.DecodeRequest([]byte(tt.body))
			require.NoError(t, err)
			out, err := c.EncodeRequest(req)
			require.NoError(t, err)
			assert.JSONEq(t, tt.body, string(out))

			again, err := c.DecodeRequest(out)
			require.NoError(t, err)
			assert.Equal(t, req, again)
		})
	}
}

func TestResponseRoundTrip_Refusal(t *testing.T) {
	body := `{"id":"chatcmpl-2","object":"chat.completion","created":1700000000,"model":"gpt-4o",` +
		`"choices":[{"index":0,"message":{"role":"assistant","content":null,"refusal":"I can't"},"finish_reason":"stop"}]}`

	c := New()
	resp, err := c.DecodeResponse([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, []domain.ContentPart{domain.Text{Text: "I can't", Refusal: true}}, resp.Choices[0].Message.Parts)

	out, err := c.EncodeResponse(resp)
	require.NoError(t, err)
	var wireResp struct {
		Choices []struct {
			Message map[string]any `json:"message"`
		} `json:"choices"`
	}
	require.NoError(t, json.Unmarshal(out, &wireResp))
	assert.Equal(t, "I can't", wireResp.Choices[0].Message["refusal"])
	assert.NotContains(t, wireResp.Choices[0].Message, "content")
}

func TestDecodeStreamChunk_Refusal(t *testing.T) {
	chunk := `{"id":"chatcmpl-2","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"refusal":"No."},"finish_reason":null}]}`
	events, err := New().DecodeStreamChunk([]byte(chunk))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Refusal)

	out, err := New().EncodeStreamChunk(events[0], &codec.StreamMetadata{ID: "chatcmpl-2", Model: "gpt-4o", Created: 1})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"refusal":"No."`)
	assert.NotContains(t, string(out), `"content"`)
}

func TestDecodeResponse_CollectAllKeepsGoodChoices(t *testing.T) {
	body := `{"id":"chatcmpl-3","object":"chat.completion","created":1,"model":"gpt-4o","choices":[` +
		`{"index":0,"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"},` +
		`{"index":1,"message":{"role":"narrator","content":"?"},"finish_reason":"stop"}]}`

	resp, err := New(codec.WithDecodeMode(wire.CollectAll)).DecodeResponse([]byte(body))
	require.Error(t, err)
	var batch domain.SchemaErrors
	require.True(t, errors.As(err, &batch))
	require.Len(t, batch, 1)
	require.NotNil(t, resp)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "ok", resp.Choices[0].Message.Text())

	resp, err = New().DecodeResponse([]byte(body))
	require.Error(t, err)
	assert.Nil(t, resp)
}

package anthropic

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/tjfontaine/polyglot-llm-wire/internal/api/wire"
	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
)

func assertJSONEqual(t *testing.T, got, want []byte) {
	t.Helper()
	var g, w any
	if err := json.Unmarshal(got, &g); err != nil {
		t.Fatalf("got is not JSON: %v\n%s", err, got)
	}
	if err := json.Unmarshal(want, &w); err != nil {
		t.Fatalf("want is not JSON: %v\n%s", err, want)
	}
	if !reflect.DeepEqual(g, w) {
		t.Errorf("JSON mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestRequestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "string system and content",
			body: `{"model":"claude-3-5-sonnet-20241022","max_tokens":1024,"system":"Be brief.","messages":[{"role":"user","content":"Hello"}]}`,
		},
		{
			name: "system blocks with cache control",
			body: `{"model":"m","max_tokens":10,"system":[{"type":"text","text":"A"},{"type":"text","text":"B","cache_control":{"type":"ephemeral"}}],"messages":[{"role":"user","content":[{"type":"text","text":"hi"}]}]}`,
		},
		{
			name: "tool round trip",
			body: `{"model":"m","max_tokens":10,"messages":[` +
				`{"role":"user","content":"weather?"},` +
				`{"role":"assistant","content":[{"type":"text","text":"checking"},{"type":"tool_use","id":"toolu_1","name":"get_weather","input":{"city":"Paris"}}]},` +
				`{"role":"user","content":[{"type":"tool_result","tool_use_id":"toolu_1","content":"sunny"},{"type":"text","text":"thanks"}]}],` +
				`"tools":[{"name":"get_weather","description":"Get weather","input_schema":{"type":"object"}},{"type":"custom","name":"other","input_schema":{"type":"object"}}],` +
				`"tool_choice":{"type":"tool","name":"get_weather","disable_parallel_tool_use":true}}`,
		},
		{
			name: "image and error result",
			body: `{"model":"m","max_tokens":10,"messages":[{"role":"user","content":[` +
				`{"type":"image","source":{"type":"base64","media_type":"image/png","data":"iVBORw0KGgo="}},` +
				`{"type":"tool_result","tool_use_id":"t","content":[{"type":"text","text":"boom"}],"is_error":true},` +
				`{"type":"tool_result","tool_use_id":"u"}]}]}`,
		},
		{
			name: "sampling",
			body: `{"model":"m","max_tokens":10,"messages":[],"temperature":0.5,"top_p":0.9,"top_k":40,"stream":true,"stop_sequences":["\n\nHuman:"],"metadata":{"user_id":"u-1"},"tool_choice":{"type":"any"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeRequest([]byte(tt.body), wire.Options{})
			if err != nil {
				t.Fatalf("DecodeRequest() error = %v", err)
			}
			out, err := json.Marshal(req)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			assertJSONEqual(t, out, []byte(tt.body))
		})
	}
}

func TestDecodeRequest_UnknownVariants(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		path  string
		tag   string
		value string
	}{
		{"system role", `{"model":"m","max_tokens":1,"messages":[{"role":"system","content":"x"}]}`, "messages[0]", "role", "system"},
		{"thinking block", `{"model":"m","max_tokens":1,"messages":[{"role":"assistant","content":[{"type":"thinking","thinking":"hmm"}]}]}`, "messages[0].content[0]", "type", "thinking"},
		{"tool_use from user", `{"model":"m","max_tokens":1,"messages":[{"role":"user","content":[{"type":"tool_use","id":"a","name":"b","input":{}}]}]}`, "messages[0].content[0]", "type", "tool_use"},
		{"url image source", `{"model":"m","max_tokens":1,"messages":[{"role":"user","content":[{"type":"image","source":{"type":"url","url":"https://x/y.png"}}]}]}`, "messages[0].content[0].source", "type", "url"},
		{"server tool", `{"model":"m","max_tokens":1,"messages":[],"tools":[{"type":"bash_20241022","name":"bash"}]}`, "tools[0]", "type", "bash_20241022"},
		{"tool choice", `{"model":"m","max_tokens":1,"messages":[],"tool_choice":{"type":"required"}}`, "tool_choice", "type", "required"},
		{"document in tool result", `{"model":"m","max_tokens":1,"messages":[{"role":"user","content":[{"type":"tool_result","tool_use_id":"t","content":[{"type":"document"}]}]}]}`, "messages[0].content[0].content[0]", "type", "document"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRequest([]byte(tt.body), wire.Options{})
			var se *domain.SchemaError
			if !errors.As(err, &se) || se.Kind != domain.SchemaUnknownVariant {
				t.Fatalf("error = %v, want UnknownVariant", err)
			}
			if se.Path != tt.path || se.Tag != tt.tag || se.Value != tt.value {
				t.Errorf("got (%q, %q, %q), want (%q, %q, %q)", se.Path, se.Tag, se.Value, tt.path, tt.tag, tt.value)
			}
		})
	}
}

func TestDecodeRequest_InvalidFields(t *testing.T) {
	tests := []struct {
		name string
		body string
		path string
	}{
		{"missing max_tokens", `{"model":"m","messages":[]}`, "max_tokens"},
		{"tool_use input not object", `{"model":"m","max_tokens":1,"messages":[{"role":"assistant","content":[{"type":"tool_use","id":"a","name":"b","input":"x"}]}]}`, "messages[0].content[0].input"},
		{"missing tool_use_id", `{"model":"m","max_tokens":1,"messages":[{"role":"user","content":[{"type":"tool_result"}]}]}`, "messages[0].content[0].tool_use_id"},
		{"missing media type", `{"model":"m","max_tokens":1,"messages":[{"role":"user","content":[{"type":"image","source":{"type":"base64","data":"x"}}]}]}`, "messages[0].content[0].source.media_type"},
		{"missing input schema", `{"model":"m","max_tokens":1,"messages":[],"tools":[{"name":"x"}]}`, "tools[0].input_schema"},
		{"named choice without name", `{"model":"m","max_tokens":1,"messages":[],"tool_choice":{"type":"tool"}}`, "tool_choice.name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRequest([]byte(tt.body), wire.Options{})
			var se *domain.SchemaError
			if !errors.As(err, &se) || se.Kind != domain.SchemaInvalidField {
				t.Fatalf("error = %v, want InvalidField", err)
			}
			if se.Path != tt.path {
				t.Errorf("Path = %q, want %q", se.Path, tt.path)
			}
		})
	}
}

func TestDecodeRequest_CollectAll(t *testing.T) {
	body := `{"model":"m","messages":[
		{"role":"system","content":"x"},
		{"role":"user","content":"ok"},
		{"role":"assistant","content":[{"type":"redacted_thinking"}]}
	]}`
	req, err := DecodeRequest([]byte(body), wire.Options{Mode: wire.CollectAll})
	var batch domain.SchemaErrors
	if !errors.As(err, &batch) {
		t.Fatalf("error = %v, want SchemaErrors", err)
	}
	want := []string{"max_tokens", "messages[0]", "messages[2].content[0]"}
	if len(batch) != len(want) {
		t.Fatalf("collected %d errors, want %d: %v", len(batch), len(want), batch)
	}
	for i, p := range want {
		if batch[i].Path != p {
			t.Errorf("errors[%d].Path = %q, want %q", i, batch[i].Path, p)
		}
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != RoleUser {
		t.Errorf("kept messages = %+v", req.Messages)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	body := `{"id":"msg_01","type":"message","role":"assistant","content":[{"type":"text","text":"Let me check."},{"type":"tool_use","id":"toolu_1","name":"get_weather","input":{"city":"Paris"}}],"model":"claude-3-5-sonnet-20241022","stop_reason":"tool_use","stop_sequence":null,"usage":{"input_tokens":20,"output_tokens":12,"cache_read_input_tokens":0}}`

	resp, err := DecodeMessagesResponse([]byte(body), wire.Options{})
	if err != nil {
		t.Fatalf("DecodeMessagesResponse() error = %v", err)
	}
	out, _ := json.Marshal(resp)
	assertJSONEqual(t, out, []byte(body))

	errBody := `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`
	if _, err := DecodeMessagesResponse([]byte(errBody), wire.Options{}); !errors.Is(err, domain.ErrUnknownVariant) {
		t.Errorf("DecodeMessagesResponse(error) = %v, want ErrUnknownVariant", err)
	}
	v, err := DecodeResponse([]byte(errBody))
	if err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	er, ok := v.(*ErrorResponse)
	if !ok || er.Error.Type != "overloaded_error" {
		t.Fatalf("DecodeResponse() = %#v", v)
	}
	out, _ = json.Marshal(er)
	assertJSONEqual(t, out, []byte(errBody))
}

func TestEventRoundTrip(t *testing.T) {
	events := []string{
		`{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"claude-3-haiku-20240307","stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":25,"output_tokens":1}}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		`{"type":"ping"}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"f","input":{}}}`,
		`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"a\":"}}`,
		`{"type":"message_delta","delta":{"stop_reason":"tool_use","stop_sequence":null},"usage":{"output_tokens":15}}`,
		`{"type":"message_stop"}`,
		`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`,
	}
	for _, e := range events {
		ev, err := DecodeEvent([]byte(e))
		if err != nil {
			t.Fatalf("DecodeEvent(%s) error = %v", e, err)
		}
		out, err := json.Marshal(ev)
		if err != nil {
			t.Fatalf("Marshal(%T) error = %v", ev, err)
		}
		assertJSONEqual(t, out, []byte(e))
	}
}

func TestDecodeEvent_Unknown(t *testing.T) {
	tests := []struct {
		body string
		path string
		val  string
	}{
		{`{"type":"message_finish"}`, "", "message_finish"},
		{`{"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"x"}}`, "delta", "thinking_delta"},
		{`{"type":"content_block_start","index":0,"content_block":{"type":"tool_result","tool_use_id":"x"}}`, "content_block", "tool_result"},
	}
	for _, tt := range tests {
		_, err := DecodeEvent([]byte(tt.body))
		var se *domain.SchemaError
		if !errors.As(err, &se) || se.Kind != domain.SchemaUnknownVariant {
			t.Fatalf("DecodeEvent(%s) error = %v, want UnknownVariant", tt.body, err)
		}
		if se.Path != tt.path || se.Value != tt.val {
			t.Errorf("got (%q, %q), want (%q, %q)", se.Path, se.Value, tt.path, tt.val)
		}
	}

	if _, err := DecodeEvent([]byte(`{"type":"content_block_stop"}`)); !errors.Is(err, domain.ErrInvalidField) {
		t.Errorf("missing index error = %v, want ErrInvalidField", err)
	}
}

func TestSystemJoined(t *testing.T) {
	sys, err := DecodeSystem(json.RawMessage(`[{"type":"text","text":"A"},{"type":"text","text":"B"}]`), "system")
	if err != nil {
		t.Fatal(err)
	}
	if got := sys.Joined(); got != "A\nB" {
		t.Errorf("Joined() = %q, want %q", got, "A\nB")
	}
}

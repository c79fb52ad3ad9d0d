package gemini

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/polyglot-llm-wire/internal/api/wire"
	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
)

func TestRequestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "chat with config",
			body: `{"contents":[{"role":"user","parts":[{"text":"Hello!"}]},{"role":"model","parts":[{"text":"Argh!"}]},{"role":"user","parts":[{"text":"Wow"}]}],` +
				`"safetySettings":[{"category":"HARM_CATEGORY_SEXUALLY_EXPLICIT","threshold":"BLOCK_LOW_AND_ABOVE"}],` +
				`"generationConfig":{"temperature":0.2,"topP":0.8,"topK":40,"maxOutputTokens":200,"stopSequences":["x"]}}`,
		},
		{
			name: "multimodal",
			body: `{"contents":[{"role":"user","parts":[{"fileData":{"mimeType":"image/jpeg","fileUri":"gs://bucket/daisy.jpg"}},{"inlineData":{"mimeType":"image/png","data":"iVBORw0KGgo="}},{"text":"Describe this picture."}]}]}`,
		},
		{
			name: "function calling",
			body: `{"contents":[` +
				`{"role":"user","parts":[{"text":"Which theaters show Barbie?"}]},` +
				`{"role":"model","parts":[{"functionCall":{"name":"find_theaters","args":{"movie":"Barbie"}}}]},` +
				`{"role":"user","parts":[{"functionResponse":{"id":"c1","name":"find_theaters","response":{"theaters":["AMC"]}}}]}],` +
				`"systemInstruction":{"parts":[{"text":"Be brief."}]},` +
				`"tools":[{"functionDeclarations":[{"name":"find_theaters","description":"find theaters","parameters":{"type":"object","properties":{"movie":{"type":"string"}}}}]}],` +
				`"toolConfig":{"functionCallingConfig":{"mode":"ANY","allowedFunctionNames":["find_theaters"]}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeRequest([]byte(tt.body), wire.Options{})
			require.NoError(t, err)
			out, err := json.Marshal(req)
			require.NoError(t, err)
			assert.JSONEq(t, tt.body, string(out))
		})
	}
}

func TestDecodeRequest_ObjectFormsAndCase(t *testing.T) {
	body := `{"contents":{"role":"USER","parts":{"text":"Give me a recipe for banana bread."}},` +
		`"safetySettings":{"category":"HARM_CATEGORY_HARASSMENT","threshold":"BLOCK_ONLY_HIGH"}}`
	req, err := DecodeRequest([]byte(body), wire.Options{})
	require.NoError(t, err)

	require.Len(t, req.Contents, 1)
	assert.Equal(t, RoleUser, req.Contents[0].Role)
	assert.Equal(t, []Part{TextPart{Text: "Give me a recipe for banana bread."}}, req.Contents[0].Parts)
	assert.Equal(t, []SafetySetting{{Category: HarmHarassment, Threshold: BlockOnlyHigh}}, req.SafetySettings)

	out, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"contents":[{"role":"user","parts":[{"text":"Give me a recipe for banana bread."}]}],"safetySettings":[{"category":"HARM_CATEGORY_HARASSMENT","threshold":"BLOCK_ONLY_HIGH"}]}`, string(out))
}

func TestDecodeRequest_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		kind  domain.SchemaErrorKind
		path  string
		value string
	}{
		{"unknown part key", `{"contents":[{"role":"user","parts":[{"executableCode":{"code":"1"}}]}]}`, domain.SchemaUnknownVariant, "contents[0].parts[0]", "executableCode"},
		{"unknown role", `{"contents":[{"role":"system","parts":[{"text":"x"}]}]}`, domain.SchemaUnknownVariant, "contents[0]", "system"},
		{"unknown tool", `{"contents":[],"tools":[{"googleSearch":{}}]}`, domain.SchemaUnknownVariant, "tools[0]", "googleSearch"},
		{"unknown mode", `{"contents":[],"toolConfig":{"functionCallingConfig":{"mode":"SOMETIMES"}}}`, domain.SchemaUnknownVariant, "toolConfig.functionCallingConfig.mode", "SOMETIMES"},
		{"unknown category", `{"contents":[],"safetySettings":[{"category":"HARM_CATEGORY_X","threshold":"BLOCK_NONE"}]}`, domain.SchemaUnknownVariant, "safetySettings[0]", "HARM_CATEGORY_X"},
		{"two part keys", `{"contents":[{"role":"user","parts":[{"text":"a","inlineData":{"mimeType":"image/png","data":"x"}}]}]}`, domain.SchemaInvalidField, "contents[0].parts[0]", ""},
		{"missing role", `{"contents":[{"parts":[{"text":"a"}]}]}`, domain.SchemaInvalidField, "contents[0].role", ""},
		{"args not object", `{"contents":[{"role":"model","parts":[{"functionCall":{"name":"f","args":[1]}}]}]}`, domain.SchemaInvalidField, "contents[0].parts[0].functionCall.args", ""},
		{"missing response", `{"contents":[{"role":"user","parts":[{"functionResponse":{"name":"f"}}]}]}`, domain.SchemaInvalidField, "contents[0].parts[0].functionResponse.response", ""},
		{"missing contents", `{}`, domain.SchemaInvalidField, "contents", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRequest([]byte(tt.body), wire.Options{})
			var se *domain.SchemaError
			require.True(t, errors.As(err, &se), "error = %v", err)
			assert.Equal(t, tt.kind, se.Kind)
			assert.Equal(t, tt.path, se.Path)
			assert.Equal(t, tt.value, se.Value)
		})
	}
}

func TestDecodeRequest_CollectAll(t *testing.T) {
	body := `{"contents":[
		{"role":"user","parts":[{"text":"a"}]},
		{"role":"robot","parts":[{"text":"b"}]},
		{"role":"model","parts":[{"codeExecutionResult":{}}]},
		{"role":"user","parts":[{"text":"c"}]}
	]}`
	req, err := DecodeRequest([]byte(body), wire.Options{Mode: wire.CollectAll})
	var batch domain.SchemaErrors
	require.ErrorAs(t, err, &batch)
	require.Len(t, batch, 2)
	assert.Equal(t, "contents[1]", batch[0].Path)
	assert.Equal(t, "contents[2].parts[0]", batch[1].Path)
	require.Len(t, req.Contents, 2)
	assert.ErrorIs(t, err, domain.ErrUnknownVariant)
}

func TestResponseAndChunk(t *testing.T) {
	complete := `{"candidates":[{"content":{"role":"model","parts":[{"text":"Once upon a time"}]},"finishReason":"STOP","index":0,` +
		`"safetyRatings":[{"category":"HARM_CATEGORY_HATE_SPEECH","probability":"NEGLIGIBLE"}]}],` +
		`"usageMetadata":{"promptTokenCount":8,"candidatesTokenCount":4,"totalTokenCount":12},"modelVersion":"gemini-1.5-pro"}`

	resp, err := DecodeResponse([]byte(complete), wire.Options{})
	require.NoError(t, err)
	out, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, complete, string(out))

	partial := `{"candidates":[{"content":{"role":"model","parts":[{"text":"Once"}]},"index":0}]}`
	_, err = DecodeResponse([]byte(partial), wire.Options{})
	assert.ErrorIs(t, err, domain.ErrInvalidField)

	chunk, err := DecodeChunk([]byte(partial))
	require.NoError(t, err)
	out, err = json.Marshal(chunk)
	require.NoError(t, err)
	assert.JSONEq(t, partial, string(out))

	usageOnly := `{"usageMetadata":{"promptTokenCount":1,"candidatesTokenCount":2,"totalTokenCount":3}}`
	_, err = DecodeChunk([]byte(usageOnly))
	require.NoError(t, err)
	_, err = DecodeResponse([]byte(usageOnly), wire.Options{})
	assert.ErrorIs(t, err, domain.ErrInvalidField)

	blocked := `{"promptFeedback":{"blockReason":"SAFETY"}}`
	resp, err = DecodeResponse([]byte(blocked), wire.Options{})
	require.NoError(t, err)
	assert.Empty(t, resp.Candidates)

	userCandidate := `{"candidates":[{"content":{"role":"user","parts":[{"text":"x"}]},"finishReason":"STOP"}]}`
	_, err = DecodeResponse([]byte(userCandidate), wire.Options{})
	assert.ErrorIs(t, err, domain.ErrUnknownVariant)
}

func TestDecodeErrorResponse(t *testing.T) {
	body := `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`
	resp, err := DecodeErrorResponse([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.Error.Code)
	assert.Equal(t, "INVALID_ARGUMENT: API key not valid", resp.Error.Error())

	out, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, body, string(out))
}

func TestNormalizeContents(t *testing.T) {
	text := func(s string) []Part { return []Part{TextPart{Text: s}} }

	tests := []struct {
		name string
		in   []Content
		want []Content
	}{
		{"empty", nil, []Content{}},
		{
			name: "merges same role",
			in:   []Content{{RoleUser, text("a")}, {RoleUser, text("b")}},
			want: []Content{{RoleUser, []Part{TextPart{Text: "a"}, TextPart{Text: "b"}}}},
		},
		{
			name: "model first and last",
			in:   []Content{{RoleModel, text("hi")}},
			want: []Content{{RoleUser, text(OpeningTurnText)}, {RoleModel, text("hi")}, {RoleUser, text(ContinueTurnText)}},
		},
		{
			name: "alternating untouched",
			in:   []Content{{RoleUser, text("q")}, {RoleModel, text("a")}, {RoleUser, text("q2")}},
			want: []Content{{RoleUser, text("q")}, {RoleModel, text("a")}, {RoleUser, text("q2")}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeContents(tt.in))
		})
	}

	in := []Content{{RoleUser, text("a")}, {RoleUser, text("b")}}
	NormalizeContents(in)
	assert.Len(t, in[0].Parts, 1, "input must not be modified")
}

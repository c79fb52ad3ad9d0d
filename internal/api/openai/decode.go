package openai

import (
	"bytes"
	"encoding/json"

	"github.com/tjfontaine/polyglot-llm-wire/internal/api/wire"
	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
)

// objectVariants is the "object" tag table for top-level responses.
var objectVariants = map[string]wire.VariantDecoder[any]{
	ObjectChatCompletion: func(raw json.RawMessage, _ string) (any, error) {
		return DecodeCompletion(raw, wire.Options{})
	},
	ObjectChatCompletionChunk: func(raw json.RawMessage, _ string) (any, error) {
		return DecodeChunk(raw)
	},
}

// DecodeRequest decodes a chat-completion request. In CollectAll mode a bad
// message or tool is skipped and the remaining ones are still decoded; the
// partial request is returned together with the collected errors.
func DecodeRequest(data []byte, opts wire.Options) (*ChatCompletionRequest, error) {
	var f struct {
		Model               *string         `json:"model"`
		Messages            json.RawMessage `json:"messages"`
		Tools               json.RawMessage `json:"tools"`
		ToolChoice          json.RawMessage `json:"tool_choice"`
		Temperature         *float64        `json:"temperature"`
		TopP                *float64        `json:"top_p"`
		N                   *int            `json:"n"`
		MaxTokens           *int            `json:"max_tokens"`
		MaxCompletionTokens *int            `json:"max_completion_tokens"`
		Stop                json.RawMessage `json:"stop"`
		Stream              bool            `json:"stream"`
		StreamOptions       *StreamOptions  `json:"stream_options"`
		User                string          `json:"user"`
	}
	if err := wire.Unmarshal(data, &f, ""); err != nil {
		return nil, err
	}

	d := wire.NewDecoder(opts)
	req := &ChatCompletionRequest{
		Temperature:         f.Temperature,
		TopP:                f.TopP,
		N:                   f.N,
		MaxTokens:           f.MaxTokens,
		MaxCompletionTokens: f.MaxCompletionTokens,
		Stream:              f.Stream,
		StreamOptions:       f.StreamOptions,
		User:                f.User,
	}

	if f.Model == nil {
		if d.Fail("model", wire.Required(false, "model")) {
			return nil, d.Err()
		}
	} else {
		req.Model = *f.Model
	}

	messages, err := wire.Array(f.Messages, "messages")
	if err != nil {
		if d.Fail("messages", err) {
			return nil, d.Err()
		}
	}
	req.Messages = make([]Message, 0, len(messages))
	for i, raw := range messages {
		msg, err := DecodeMessage(raw, wire.Index("messages", i))
		if err != nil {
			if d.Fail(wire.Index("messages", i), err) {
				return nil, d.Err()
			}
			continue
		}
		req.Messages = append(req.Messages, msg)
	}

	if !wire.IsNull(f.Tools) {
		tools, err := wire.Array(f.Tools, "tools")
		if err != nil && d.Fail("tools", err) {
			return nil, d.Err()
		}
		for i, raw := range tools {
			tool, err := wire.Dispatch(raw, wire.Index("tools", i), "type", toolVariants)
			if err != nil {
				if d.Fail(wire.Index("tools", i), err) {
					return nil, d.Err()
				}
				continue
			}
			req.Tools = append(req.Tools, tool)
		}
	}

	if !wire.IsNull(f.ToolChoice) {
		choice, err := DecodeToolChoice(f.ToolChoice, "tool_choice")
		if err != nil {
			if d.Fail("tool_choice", err) {
				return nil, d.Err()
			}
		} else {
			req.ToolChoice = &choice
		}
	}

	stop, err := DecodeStop(f.Stop, "stop")
	if err != nil && d.Fail("stop", err) {
		return nil, d.Err()
	}
	req.Stop = stop

	return req, d.Err()
}

// UnmarshalJSON decodes in fail-fast mode.
func (r *ChatCompletionRequest) UnmarshalJSON(data []byte) error {
	req, err := DecodeRequest(data, wire.Options{})
	if err != nil {
		return err
	}
	*r = *req
	return nil
}

// DecodeCompletion decodes a non-streaming response. A chunk payload is
// rejected by its "object" tag.
func DecodeCompletion(data []byte, opts wire.Options) (*ChatCompletion, error) {
	var f struct {
		ID                *string         `json:"id"`
		Object            *string         `json:"object"`
		Created           int64           `json:"created"`
		Model             string          `json:"model"`
		SystemFingerprint string          `json:"system_fingerprint"`
		Choices           json.RawMessage `json:"choices"`
		Usage             *Usage          `json:"usage"`
	}
	if err := wire.Unmarshal(data, &f, ""); err != nil {
		return nil, err
	}
	if err := checkObject(f.Object, ObjectChatCompletion, data); err != nil {
		return nil, err
	}
	if f.ID == nil {
		return nil, wire.Required(false, "id")
	}

	d := wire.NewDecoder(opts)
	resp := &ChatCompletion{
		ID:                *f.ID,
		Object:            ObjectChatCompletion,
		Created:           f.Created,
		Model:             f.Model,
		SystemFingerprint: f.SystemFingerprint,
		Usage:             f.Usage,
	}
	choices, err := wire.Array(f.Choices, "choices")
	if err != nil {
		return nil, err
	}
	resp.Choices = make([]Choice, 0, len(choices))
	for i, raw := range choices {
		choice, err := decodeChoice(raw, wire.Index("choices", i))
		if err != nil {
			if d.Fail(wire.Index("choices", i), err) {
				return nil, d.Err()
			}
			continue
		}
		resp.Choices = append(resp.Choices, choice)
	}
	return resp, d.Err()
}

// UnmarshalJSON decodes in fail-fast mode.
func (c *ChatCompletion) UnmarshalJSON(data []byte) error {
	resp, err := DecodeCompletion(data, wire.Options{})
	if err != nil {
		return err
	}
	*c = *resp
	return nil
}

func decodeChoice(raw json.RawMessage, path string) (Choice, error) {
	var f struct {
		Index        int             `json:"index"`
		Message      json.RawMessage `json:"message"`
		FinishReason *string         `json:"finish_reason"`
		Logprobs     json.RawMessage `json:"logprobs"`
	}
	if err := wire.Unmarshal(raw, &f, path); err != nil {
		return Choice{}, err
	}
	msgPath := wire.Field(path, "message")
	if wire.IsNull(f.Message) {
		return Choice{}, wire.Required(false, msgPath)
	}
	role, err := wire.PeekTag(f.Message, msgPath, "role")
	if err != nil {
		return Choice{}, err
	}
	if role != RoleAssistant {
		return Choice{}, domain.UnknownVariant(msgPath, "role", role, f.Message)
	}
	msg, err := decodeAssistantFields(f.Message, msgPath)
	if err != nil {
		return Choice{}, err
	}
	choice := Choice{Index: f.Index, Message: msg, FinishReason: f.FinishReason}
	if !wire.IsNull(f.Logprobs) {
		choice.Logprobs = f.Logprobs
	}
	return choice, nil
}

// DecodeChunk decodes one streaming chunk. A completion payload is rejected
// by its "object" tag.
func DecodeChunk(data []byte) (*ChatCompletionChunk, error) {
	var f struct {
		ID                *string         `json:"id"`
		Object            *string         `json:"object"`
		Created           int64           `json:"created"`
		Model             string          `json:"model"`
		SystemFingerprint string          `json:"system_fingerprint"`
		Choices           json.RawMessage `json:"choices"`
		Usage             *Usage          `json:"usage"`
	}
	if err := wire.Unmarshal(data, &f, ""); err != nil {
		return nil, err
	}
	if err := checkObject(f.Object, ObjectChatCompletionChunk, data); err != nil {
		return nil, err
	}
	if f.ID == nil {
		return nil, wire.Required(false, "id")
	}
	chunk := &ChatCompletionChunk{
		ID:                *f.ID,
		Object:            ObjectChatCompletionChunk,
		Created:           f.Created,
		Model:             f.Model,
		SystemFingerprint: f.SystemFingerprint,
		Usage:             f.Usage,
	}
	choices, err := wire.Array(f.Choices, "choices")
	if err != nil {
		return nil, err
	}
	chunk.Choices = make([]ChunkChoice, 0, len(choices))
	for i, raw := range choices {
		choice, err := decodeChunkChoice(raw, wire.Index("choices", i))
		if err != nil {
			return nil, err
		}
		chunk.Choices = append(chunk.Choices, choice)
	}
	return chunk, nil
}

// UnmarshalJSON delegates to DecodeChunk.
func (c *ChatCompletionChunk) UnmarshalJSON(data []byte) error {
	chunk, err := DecodeChunk(data)
	if err != nil {
		return err
	}
	*c = *chunk
	return nil
}

func decodeChunkChoice(raw json.RawMessage, path string) (ChunkChoice, error) {
	var f struct {
		Index        int             `json:"index"`
		Delta        json.RawMessage `json:"delta"`
		FinishReason *string         `json:"finish_reason"`
		Logprobs     json.RawMessage `json:"logprobs"`
	}
	if err := wire.Unmarshal(raw, &f, path); err != nil {
		return ChunkChoice{}, err
	}
	deltaPath := wire.Field(path, "delta")
	if wire.IsNull(f.Delta) {
		return ChunkChoice{}, wire.Required(false, deltaPath)
	}
	var delta Delta
	if err := wire.Unmarshal(f.Delta, &delta, deltaPath); err != nil {
		return ChunkChoice{}, err
	}
	if delta.Role != "" && delta.Role != RoleAssistant {
		return ChunkChoice{}, domain.UnknownVariant(deltaPath, "role", delta.Role, f.Delta)
	}
	for i, tc := range delta.ToolCalls {
		if tc.Type != "" && tc.Type != ToolTypeFunction {
			callPath := wire.Index(wire.Field(deltaPath, "tool_calls"), i)
			return ChunkChoice{}, domain.UnknownVariant(callPath, "type", tc.Type, f.Delta)
		}
	}
	choice := ChunkChoice{Index: f.Index, Delta: delta, FinishReason: f.FinishReason}
	if !wire.IsNull(f.Logprobs) {
		choice.Logprobs = f.Logprobs
	}
	return choice, nil
}

// DecodeStreamData decodes one SSE data payload.
func DecodeStreamData(data []byte) (StreamData, error) {
	if string(bytes.TrimSpace(data)) == DoneSentinel {
		return StreamData{Done: true}, nil
	}
	chunk, err := DecodeChunk(data)
	if err != nil {
		return StreamData{}, err
	}
	return StreamData{Chunk: chunk}, nil
}

// DecodeObject decodes either response variant by its "object" tag, returning
// *ChatCompletion or *ChatCompletionChunk.
func DecodeObject(data []byte) (any, error) {
	return wire.Dispatch(data, "", "object", objectVariants)
}

func checkObject(object *string, want string, raw []byte) error {
	if object == nil {
		return wire.Required(false, "object")
	}
	if *object != want {
		return domain.UnknownVariant("", "object", *object, raw)
	}
	return nil
}

// DecodeErrorResponse decodes the {"error":{...}} envelope. code may be a
// string or a number on the wire; numbers are kept as their text.
func DecodeErrorResponse(data []byte) (*ErrorResponse, error) {
	var f struct {
		Error *struct {
			Message *string         `json:"message"`
			Type    string          `json:"type"`
			Param   *string         `json:"param"`
			Code    json.RawMessage `json:"code"`
		} `json:"error"`
	}
	if err := wire.Unmarshal(data, &f, ""); err != nil {
		return nil, err
	}
	if f.Error == nil {
		return nil, wire.Required(false, "error")
	}
	if f.Error.Message == nil {
		return nil, wire.Required(false, "error.message")
	}
	apiErr := &APIError{Message: *f.Error.Message, Type: f.Error.Type}
	if f.Error.Param != nil {
		apiErr.Param = *f.Error.Param
	}
	switch {
	case wire.IsNull(f.Error.Code):
	case wire.IsString(f.Error.Code):
		if err := wire.Unmarshal(f.Error.Code, &apiErr.Code, "error.code"); err != nil {
			return nil, err
		}
	default:
		apiErr.Code = string(bytes.TrimSpace(f.Error.Code))
	}
	return &ErrorResponse{Error: apiErr}, nil
}

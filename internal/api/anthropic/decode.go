package anthropic

import (
	"encoding/json"

	"github.com/tjfontaine/polyglot-llm-wire/internal/api/wire"
	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
)

// responseVariants is the "type" tag table for top-level responses.
var responseVariants = map[string]wire.VariantDecoder[any]{
	TypeMessage: func(raw json.RawMessage, path string) (any, error) {
		return decodeMessageBody(raw, path, wire.Options{})
	},
	TypeError: func(raw json.RawMessage, path string) (any, error) {
		return decodeErrorResponse(raw, path)
	},
}

// eventVariants is the "type" tag table for stream events.
var eventVariants = map[string]wire.VariantDecoder[StreamEvent]{
	EventMessageStart:      decodeMessageStart,
	EventContentBlockStart: decodeContentBlockStart,
	EventContentBlockDelta: decodeContentBlockDelta,
	EventContentBlockStop:  decodeContentBlockStop,
	EventMessageDelta:      decodeMessageDelta,
	EventMessageStop: func(json.RawMessage, string) (StreamEvent, error) {
		return MessageStopEvent{}, nil
	},
	EventPing: func(json.RawMessage, string) (StreamEvent, error) {
		return PingEvent{}, nil
	},
	EventError: decodeErrorEvent,
}

// DecodeRequest decodes a Messages API request. In CollectAll mode bad
// messages and tools are skipped and reported together.
func DecodeRequest(data []byte, opts wire.Options) (*MessagesRequest, error) {
	var f struct {
		Model         *string         `json:"model"`
		Messages      json.RawMessage `json:"messages"`
		MaxTokens     *int            `json:"max_tokens"`
		System        json.RawMessage `json:"system"`
		Temperature   *float64        `json:"temperature"`
		TopP          *float64        `json:"top_p"`
		TopK          *int            `json:"top_k"`
		Stream        bool            `json:"stream"`
		StopSequences []string        `json:"stop_sequences"`
		Tools         json.RawMessage `json:"tools"`
		ToolChoice    json.RawMessage `json:"tool_choice"`
		Metadata      *Metadata       `json:"metadata"`
	}
	if err := wire.Unmarshal(data, &f, ""); err != nil {
		return nil, err
	}

	d := wire.NewDecoder(opts)
	req := &MessagesRequest{
		Temperature:   f.Temperature,
		TopP:          f.TopP,
		TopK:          f.TopK,
		Stream:        f.Stream,
		StopSequences: f.StopSequences,
		Metadata:      f.Metadata,
	}
	if f.Model == nil {
		if d.Fail("model", wire.Required(false, "model")) {
			return nil, d.Err()
		}
	} else {
		req.Model = *f.Model
	}
	if f.MaxTokens == nil {
		if d.Fail("max_tokens", wire.Required(false, "max_tokens")) {
			return nil, d.Err()
		}
	} else {
		req.MaxTokens = *f.MaxTokens
	}

	system, err := DecodeSystem(f.System, "system")
	if err != nil && d.Fail("system", err) {
		return nil, d.Err()
	}
	req.System = system

	messages, err := wire.Array(f.Messages, "messages")
	if err != nil && d.Fail("messages", err) {
		return nil, d.Err()
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
			tool, err := DecodeTool(raw, wire.Index("tools", i))
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

	return req, d.Err()
}

// UnmarshalJSON decodes in fail-fast mode.
func (r *MessagesRequest) UnmarshalJSON(data []byte) error {
	req, err := DecodeRequest(data, wire.Options{})
	if err != nil {
		return err
	}
	*r = *req
	return nil
}

// DecodeMessagesResponse decodes a {"type":"message"} response. An error
// envelope or any other type is rejected with UnknownVariant.
func DecodeMessagesResponse(data []byte, opts wire.Options) (*MessagesResponse, error) {
	tag, err := wire.PeekTag(data, "", "type")
	if err != nil {
		return nil, err
	}
	if tag != TypeMessage {
		return nil, domain.UnknownVariant("", "type", tag, data)
	}
	return decodeMessageBody(data, "", opts)
}

// UnmarshalJSON decodes in fail-fast mode.
func (r *MessagesResponse) UnmarshalJSON(data []byte) error {
	resp, err := DecodeMessagesResponse(data, wire.Options{})
	if err != nil {
		return err
	}
	*r = *resp
	return nil
}

// DecodeResponse decodes either top-level response by its "type" tag,
// returning *MessagesResponse or *ErrorResponse.
func DecodeResponse(data []byte) (any, error) {
	return wire.Dispatch(data, "", "type", responseVariants)
}

func decodeMessageBody(raw json.RawMessage, path string, opts wire.Options) (*MessagesResponse, error) {
	var f struct {
		ID           *string         `json:"id"`
		Role         *string         `json:"role"`
		Content      json.RawMessage `json:"content"`
		Model        string          `json:"model"`
		StopReason   *string         `json:"stop_reason"`
		StopSequence *string         `json:"stop_sequence"`
		Usage        *Usage          `json:"usage"`
	}
	if err := wire.Unmarshal(raw, &f, path); err != nil {
		return nil, err
	}
	if f.ID == nil {
		return nil, wire.Required(false, wire.Field(path, "id"))
	}
	if f.Role == nil {
		return nil, wire.Required(false, wire.Field(path, "role"))
	}
	if *f.Role != RoleAssistant {
		return nil, domain.UnknownVariant(path, "role", *f.Role, raw)
	}
	resp := &MessagesResponse{
		ID:           *f.ID,
		Role:         *f.Role,
		Model:        f.Model,
		StopReason:   f.StopReason,
		StopSequence: f.StopSequence,
	}
	if f.Usage != nil {
		resp.Usage = *f.Usage
	}

	contentPath := wire.Field(path, "content")
	items, err := wire.Array(f.Content, contentPath)
	if err != nil {
		return nil, err
	}
	d := wire.NewDecoder(opts)
	resp.Content = make([]ContentBlock, 0, len(items))
	for i, item := range items {
		block, err := wire.Dispatch(item, wire.Index(contentPath, i), "type", assistantBlockVariants)
		if err != nil {
			if d.Fail(wire.Index(contentPath, i), err) {
				return nil, d.Err()
			}
			continue
		}
		resp.Content = append(resp.Content, block)
	}
	return resp, d.Err()
}

// DecodeErrorResponse decodes a {"type":"error"} envelope.
func DecodeErrorResponse(data []byte) (*ErrorResponse, error) {
	tag, err := wire.PeekTag(data, "", "type")
	if err != nil {
		return nil, err
	}
	if tag != TypeError {
		return nil, domain.UnknownVariant("", "type", tag, data)
	}
	return decodeErrorResponse(data, "")
}

func decodeErrorResponse(raw json.RawMessage, path string) (*ErrorResponse, error) {
	obj, err := wire.Object(raw, path)
	if err != nil {
		return nil, err
	}
	errRaw, ok := obj["error"]
	if !ok || wire.IsNull(errRaw) {
		return nil, wire.Required(false, wire.Field(path, "error"))
	}
	apiErr, err := decodeAPIError(errRaw, wire.Field(path, "error"))
	if err != nil {
		return nil, err
	}
	return &ErrorResponse{Error: apiErr}, nil
}

// DecodeEvent decodes one stream event payload by its "type" tag.
func DecodeEvent(data []byte) (StreamEvent, error) {
	return wire.Dispatch(data, "", "type", eventVariants)
}

func decodeMessageStart(raw json.RawMessage, path string) (StreamEvent, error) {
	obj, err := wire.Object(raw, path)
	if err != nil {
		return nil, err
	}
	msgPath := wire.Field(path, "message")
	msgRaw, ok := obj["message"]
	if !ok || wire.IsNull(msgRaw) {
		return nil, wire.Required(false, msgPath)
	}
	msg, err := decodeMessageBody(msgRaw, msgPath, wire.Options{})
	if err != nil {
		return nil, err
	}
	return MessageStartEvent{Message: *msg}, nil
}

func decodeContentBlockStart(raw json.RawMessage, path string) (StreamEvent, error) {
	var f struct {
		Index        *int            `json:"index"`
		ContentBlock json.RawMessage `json:"content_block"`
	}
	if err := wire.Unmarshal(raw, &f, path); err != nil {
		return nil, err
	}
	idx, err := requireIndex(f.Index, path)
	if err != nil {
		return nil, err
	}
	blockPath := wire.Field(path, "content_block")
	if wire.IsNull(f.ContentBlock) {
		return nil, wire.Required(false, blockPath)
	}
	block, err := wire.Dispatch(f.ContentBlock, blockPath, "type", startBlockVariants)
	if err != nil {
		return nil, err
	}
	return ContentBlockStartEvent{Index: idx, ContentBlock: block}, nil
}

func decodeContentBlockDelta(raw json.RawMessage, path string) (StreamEvent, error) {
	var f struct {
		Index *int            `json:"index"`
		Delta json.RawMessage `json:"delta"`
	}
	if err := wire.Unmarshal(raw, &f, path); err != nil {
		return nil, err
	}
	idx, err := requireIndex(f.Index, path)
	if err != nil {
		return nil, err
	}
	deltaPath := wire.Field(path, "delta")
	if wire.IsNull(f.Delta) {
		return nil, wire.Required(false, deltaPath)
	}
	delta, err := wire.Dispatch(f.Delta, deltaPath, "type", blockDeltaVariants)
	if err != nil {
		return nil, err
	}
	return ContentBlockDeltaEvent{Index: idx, Delta: delta}, nil
}

func decodeContentBlockStop(raw json.RawMessage, path string) (StreamEvent, error) {
	var f struct {
		Index *int `json:"index"`
	}
	if err := wire.Unmarshal(raw, &f, path); err != nil {
		return nil, err
	}
	idx, err := requireIndex(f.Index, path)
	if err != nil {
		return nil, err
	}
	return ContentBlockStopEvent{Index: idx}, nil
}

func decodeMessageDelta(raw json.RawMessage, path string) (StreamEvent, error) {
	var f struct {
		Delta *MessageDelta `json:"delta"`
		Usage *DeltaUsage   `json:"usage"`
	}
	if err := wire.Unmarshal(raw, &f, path); err != nil {
		return nil, err
	}
	if f.Delta == nil {
		return nil, wire.Required(false, wire.Field(path, "delta"))
	}
	return MessageDeltaEvent{Delta: *f.Delta, Usage: f.Usage}, nil
}

func decodeErrorEvent(raw json.RawMessage, path string) (StreamEvent, error) {
	resp, err := decodeErrorResponse(raw, path)
	if err != nil {
		return nil, err
	}
	return ErrorEvent{Error: resp.Error}, nil
}

// Package anthropic models the Anthropic Messages API wire shapes: the
// request, the message response and the server-sent stream events. Every
// union is a closed set of Go variants decoded through the tag tables in
// tags.go.
package anthropic

import (
	"encoding/json"
)

// Discriminator values.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	BlockTypeText       = "text"
	BlockTypeImage      = "image"
	BlockTypeToolUse    = "tool_use"
	BlockTypeToolResult = "tool_result"

	SourceTypeBase64 = "base64"

	ToolTypeCustom = "custom"

	ToolChoiceAuto = "auto"
	ToolChoiceAny  = "any"
	ToolChoiceTool = "tool"
	ToolChoiceNone = "none"

	TypeMessage = "message"
	TypeError   = "error"
)

// Stop reasons.
const (
	StopEndTurn   = "end_turn"
	StopMaxTokens = "max_tokens"
	StopSequence  = "stop_sequence"
	StopToolUse   = "tool_use"
	StopPauseTurn = "pause_turn"
	StopRefusal   = "refusal"
)

// SupportedMediaTypes lists the image media types accepted in base64 sources.
var SupportedMediaTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// MessagesRequest is the body of POST /v1/messages.
type MessagesRequest struct {
	Model         string      `json:"model"`
	Messages      []Message   `json:"messages"`
	MaxTokens     int         `json:"max_tokens"`
	System        *System     `json:"system,omitempty"`
	Temperature   *float64    `json:"temperature,omitempty"`
	TopP          *float64    `json:"top_p,omitempty"`
	TopK          *int        `json:"top_k,omitempty"`
	Stream        bool        `json:"stream,omitempty"`
	StopSequences []string    `json:"stop_sequences,omitempty"`
	Tools         []Tool      `json:"tools,omitempty"`
	ToolChoice    *ToolChoice `json:"tool_choice,omitempty"`
	Metadata      *Metadata   `json:"metadata,omitempty"`
}

// Message is one conversation turn. Claude has no system or tool roles:
// the system prompt is a top-level field and tool results travel as
// tool_result blocks inside a user message.
type Message struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// Content is a string or an array of blocks.
type Content struct {
	Text   string
	Blocks []ContentBlock
	// Array selects the array form even for a single text block.
	Array bool
}

// TextContent builds string-form content.
func TextContent(s string) Content { return Content{Text: s} }

// BlocksContent builds array-form content.
func BlocksContent(blocks ...ContentBlock) Content { return Content{Blocks: blocks, Array: true} }

func (c Content) MarshalJSON() ([]byte, error) {
	if c.Array {
		if c.Blocks == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(c.Blocks)
	}
	return json.Marshal(c.Text)
}

// ContentBlock is TextBlock, ImageBlock, ToolUseBlock or ToolResultBlock,
// selected on the wire by "type".
type ContentBlock interface {
	BlockType() string
}

// TextBlock is {"type":"text","text":...}.
type TextBlock struct {
	Text         string
	CacheControl *CacheControl
}

func (TextBlock) BlockType() string { return BlockTypeText }

func (b TextBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type         string        `json:"type"`
		Text         string        `json:"text"`
		CacheControl *CacheControl `json:"cache_control,omitempty"`
	}{BlockTypeText, b.Text, b.CacheControl})
}

// CacheControl marks a prompt-caching breakpoint.
type CacheControl struct {
	Type string `json:"type"`
}

// ImageBlock is {"type":"image","source":{...}}.
type ImageBlock struct {
	Source ImageSource
}

func (ImageBlock) BlockType() string { return BlockTypeImage }

func (b ImageBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   string      `json:"type"`
		Source ImageSource `json:"source"`
	}{BlockTypeImage, b.Source})
}

// ImageSource is an inline base64 image.
type ImageSource struct {
	MediaType string
	Data      string
}

func (s ImageSource) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      string `json:"type"`
		MediaType string `json:"media_type"`
		Data      string `json:"data"`
	}{SourceTypeBase64, s.MediaType, s.Data})
}

// ToolUseBlock is an assistant tool invocation. Input is a JSON object.
type ToolUseBlock struct {
	ID    string
	Name  string
	Input json.RawMessage
}

func (ToolUseBlock) BlockType() string { return BlockTypeToolUse }

func (b ToolUseBlock) MarshalJSON() ([]byte, error) {
	input := b.Input
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	return json.Marshal(struct {
		Type  string          `json:"type"`
		ID    string          `json:"id"`
		Name  string          `json:"name"`
		Input json.RawMessage `json:"input"`
	}{BlockTypeToolUse, b.ID, b.Name, input})
}

// ToolResultBlock answers a tool_use block by id.
type ToolResultBlock struct {
	ToolUseID string
	// Content is nil when the result carries no content at all.
	Content *Content
	IsError bool
}

func (ToolResultBlock) BlockType() string { return BlockTypeToolResult }

func (b ToolResultBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      string   `json:"type"`
		ToolUseID string   `json:"tool_use_id"`
		Content   *Content `json:"content,omitempty"`
		IsError   bool     `json:"is_error,omitempty"`
	}{BlockTypeToolResult, b.ToolUseID, b.Content, b.IsError})
}

// System is the top-level system prompt: a string or text blocks.
type System struct {
	Text   string
	Blocks []TextBlock
	Array  bool
}

// Joined returns the prompt text, joining blocks with a newline.
func (s System) Joined() string {
	if !s.Array {
		return s.Text
	}
	out := ""
	for i, b := range s.Blocks {
		if i > 0 {
			out += "\n"
		}
		out += b.Text
	}
	return out
}

func (s System) MarshalJSON() ([]byte, error) {
	if s.Array {
		if s.Blocks == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(s.Blocks)
	}
	return json.Marshal(s.Text)
}

// Tool is a client tool. Type is empty or "custom"; the field is kept so
// an explicit tag survives a round trip.
type Tool struct {
	Type         string
	Name         string
	Description  string
	InputSchema  json.RawMessage
	CacheControl *CacheControl
}

func (t Tool) MarshalJSON() ([]byte, error) {
	schema := t.InputSchema
	if len(schema) == 0 {
		schema = json.RawMessage(`{"type":"object"}`)
	}
	return json.Marshal(struct {
		Type         string          `json:"type,omitempty"`
		Name         string          `json:"name"`
		Description  string          `json:"description,omitempty"`
		InputSchema  json.RawMessage `json:"input_schema"`
		CacheControl *CacheControl   `json:"cache_control,omitempty"`
	}{t.Type, t.Name, t.Description, schema, t.CacheControl})
}

// ToolChoice is {"type":"auto"|"any"|"none"} or {"type":"tool","name":...}.
type ToolChoice struct {
	Type                   string `json:"type"`
	Name                   string `json:"name,omitempty"`
	DisableParallelToolUse *bool  `json:"disable_parallel_tool_use,omitempty"`
}

// Metadata carries the end-user id.
type Metadata struct {
	UserID string `json:"user_id,omitempty"`
}

// ErrorResponse is the Claude error envelope, {"type":"error","error":{...}}.
type ErrorResponse struct {
	Error APIError
}

func (r ErrorResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  string   `json:"type"`
		Error APIError `json:"error"`
	}{TypeError, r.Error})
}

// APIError contains error details.
type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Type + ": " + e.Message
}

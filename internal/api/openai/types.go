// Package openai models the OpenAI chat-completions wire shapes. Unions are
// explicit Go variants with hand-written tag tables (see tags.go), so the
// discriminator strings on the wire are a reviewable list rather than a
// by-product of reflection.
package openai

import (
	"encoding/json"
)

// Discriminator values.
const (
	RoleSystem    = "system"
	RoleDeveloper = "developer"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"

	PartTypeText     = "text"
	PartTypeImageURL = "image_url"

	ToolTypeFunction = "function"

	ToolChoiceNone     = "none"
	ToolChoiceAuto     = "auto"
	ToolChoiceRequired = "required"

	ObjectChatCompletion      = "chat.completion"
	ObjectChatCompletionChunk = "chat.completion.chunk"

	// DoneSentinel is the data payload that ends a stream.
	DoneSentinel = "[DONE]"
)

// Finish reasons.
const (
	FinishStop          = "stop"
	FinishLength        = "length"
	FinishToolCalls     = "tool_calls"
	FinishContentFilter = "content_filter"
	// FinishFunctionCall is the legacy name for tool_calls.
	FinishFunctionCall = "function_call"
)

// Image detail values.
const (
	DetailAuto = "auto"
	DetailLow  = "low"
	DetailHigh = "high"
)

// ChatCompletionRequest is the body of POST /v1/chat/completions.
type ChatCompletionRequest struct {
	Model               string         `json:"model"`
	Messages            []Message      `json:"messages"`
	Tools               []Tool         `json:"tools,omitempty"`
	ToolChoice          *ToolChoice    `json:"tool_choice,omitempty"`
	Temperature         *float64       `json:"temperature,omitempty"`
	TopP                *float64       `json:"top_p,omitempty"`
	N                   *int           `json:"n,omitempty"`
	MaxTokens           *int           `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int           `json:"max_completion_tokens,omitempty"`
	Stop                *Stop          `json:"stop,omitempty"`
	Stream              bool           `json:"stream,omitempty"`
	StreamOptions       *StreamOptions `json:"stream_options,omitempty"`
	User                string         `json:"user,omitempty"`
}

// StreamOptions configures streaming behavior.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage,omitempty"`
}

// Message is one of SystemMessage, UserMessage, AssistantMessage or
// ToolMessage, selected on the wire by "role".
type Message interface {
	MessageRole() string
}

// SystemMessage carries instructions. Developer selects the "developer" role
// tag, which newer models use in place of "system".
type SystemMessage struct {
	Content   Content
	Name      string
	Developer bool
}

func (m SystemMessage) MessageRole() string {
	if m.Developer {
		return RoleDeveloper
	}
	return RoleSystem
}

func (m SystemMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Role    string  `json:"role"`
		Content Content `json:"content"`
		Name    string  `json:"name,omitempty"`
	}{m.MessageRole(), m.Content, m.Name})
}

// UserMessage carries text and image parts.
type UserMessage struct {
	Content Content
	Name    string
}

func (UserMessage) MessageRole() string { return RoleUser }

func (m UserMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Role    string  `json:"role"`
		Content Content `json:"content"`
		Name    string  `json:"name,omitempty"`
	}{RoleUser, m.Content, m.Name})
}

// AssistantMessage carries optional content and tool calls.
type AssistantMessage struct {
	Content   *Content
	Refusal   *string
	Name      string
	ToolCalls []ToolCall
}

func (AssistantMessage) MessageRole() string { return RoleAssistant }

func (m AssistantMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Role      string     `json:"role"`
		Content   *Content   `json:"content,omitempty"`
		Refusal   *string    `json:"refusal,omitempty"`
		Name      string     `json:"name,omitempty"`
		ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	}{RoleAssistant, m.Content, m.Refusal, m.Name, m.ToolCalls})
}

// ToolMessage answers a tool call.
type ToolMessage struct {
	Content    Content
	ToolCallID string
}

func (ToolMessage) MessageRole() string { return RoleTool }

func (m ToolMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Role       string  `json:"role"`
		Content    Content `json:"content"`
		ToolCallID string  `json:"tool_call_id"`
	}{RoleTool, m.Content, m.ToolCallID})
}

// Content is a string or an array of content parts.
type Content struct {
	Text  string
	Parts []ContentPart
	// Array selects the array form even for a single part.
	Array bool
}

// TextContent builds string-form content.
func TextContent(s string) Content { return Content{Text: s} }

// PartsContent builds array-form content.
func PartsContent(parts ...ContentPart) Content { return Content{Parts: parts, Array: true} }

func (c Content) MarshalJSON() ([]byte, error) {
	if c.Array {
		if c.Parts == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// ContentPart is TextPart or ImagePart, selected on the wire by "type".
type ContentPart interface {
	PartType() string
}

// TextPart is {"type":"text","text":...}.
type TextPart struct {
	Text string
}

func (TextPart) PartType() string { return PartTypeText }

func (p TextPart) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{PartTypeText, p.Text})
}

// ImagePart is {"type":"image_url","image_url":{...}}.
type ImagePart struct {
	ImageURL ImageURL
}

func (ImagePart) PartType() string { return PartTypeImageURL }

func (p ImagePart) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string   `json:"type"`
		ImageURL ImageURL `json:"image_url"`
	}{PartTypeImageURL, p.ImageURL})
}

// ImageURL references an image by http(s) or data URL.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// Tool is {"type":"function","function":{...}}.
type Tool struct {
	Function FunctionDefinition
}

func (t Tool) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string             `json:"type"`
		Function FunctionDefinition `json:"function"`
	}{ToolTypeFunction, t.Function})
}

// FunctionDefinition describes a callable function.
type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	Strict      *bool           `json:"strict,omitempty"`
}

// ToolCall is {"id":...,"type":"function","function":{...}}.
type ToolCall struct {
	ID       string
	Function FunctionCall
}

func (c ToolCall) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID       string       `json:"id"`
		Type     string       `json:"type"`
		Function FunctionCall `json:"function"`
	}{c.ID, ToolTypeFunction, c.Function})
}

// FunctionCall carries arguments as a JSON-encoded string.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolChoice is "none", "auto", "required" or a named function.
type ToolChoice struct {
	Mode string
	// Function is set when the choice names a function; Mode is empty then.
	Function string
}

func (c ToolChoice) MarshalJSON() ([]byte, error) {
	if c.Function != "" {
		return json.Marshal(struct {
			Type     string `json:"type"`
			Function struct {
				Name string `json:"name"`
			} `json:"function"`
		}{Type: ToolTypeFunction, Function: struct {
			Name string `json:"name"`
		}{c.Function}})
	}
	return json.Marshal(c.Mode)
}

// Stop is a single stop string or a list of them.
type Stop struct {
	Values []string
	// Single selects the string form.
	Single bool
}

func (s Stop) MarshalJSON() ([]byte, error) {
	if s.Single && len(s.Values) == 1 {
		return json.Marshal(s.Values[0])
	}
	return json.Marshal(s.Values)
}

// ErrorResponse is the OpenAI error envelope.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// APIError contains error details.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

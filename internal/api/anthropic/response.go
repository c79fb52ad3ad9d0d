package anthropic

import "encoding/json"

// Stream event types.
const (
	EventMessageStart      = "message_start"
	EventContentBlockStart = "content_block_start"
	EventContentBlockDelta = "content_block_delta"
	EventContentBlockStop  = "content_block_stop"
	EventMessageDelta      = "message_delta"
	EventMessageStop       = "message_stop"
	EventPing              = "ping"
	EventError             = "error"

	DeltaTypeText      = "text_delta"
	DeltaTypeInputJSON = "input_json_delta"
)

// MessagesResponse is a complete message, {"type":"message",...}. Content
// holds only text and tool_use blocks.
type MessagesResponse struct {
	ID           string
	Role         string
	Content      []ContentBlock
	Model        string
	StopReason   *string
	StopSequence *string
	Usage        Usage
}

func (r MessagesResponse) MarshalJSON() ([]byte, error) {
	content := r.Content
	if content == nil {
		content = []ContentBlock{}
	}
	role := r.Role
	if role == "" {
		role = RoleAssistant
	}
	return json.Marshal(struct {
		ID           string         `json:"id"`
		Type         string         `json:"type"`
		Role         string         `json:"role"`
		Content      []ContentBlock `json:"content"`
		Model        string         `json:"model"`
		StopReason   *string        `json:"stop_reason"`
		StopSequence *string        `json:"stop_sequence"`
		Usage        Usage          `json:"usage"`
	}{r.ID, TypeMessage, role, content, r.Model, r.StopReason, r.StopSequence, r.Usage})
}

// Usage reports token consumption. The cache counters are pointers so their
// presence round-trips.
type Usage struct {
	InputTokens              int  `json:"input_tokens"`
	OutputTokens             int  `json:"output_tokens"`
	CacheCreationInputTokens *int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     *int `json:"cache_read_input_tokens,omitempty"`
}

// StreamEvent is one server-sent event payload, selected by "type".
type StreamEvent interface {
	EventType() string
}

// MessageStartEvent opens the stream with an empty message shell.
type MessageStartEvent struct {
	Message MessagesResponse
}

func (MessageStartEvent) EventType() string { return EventMessageStart }

func (e MessageStartEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string           `json:"type"`
		Message MessagesResponse `json:"message"`
	}{EventMessageStart, e.Message})
}

// ContentBlockStartEvent opens block Index. ContentBlock is a TextBlock or a
// ToolUseBlock with empty input.
type ContentBlockStartEvent struct {
	Index        int
	ContentBlock ContentBlock
}

func (ContentBlockStartEvent) EventType() string { return EventContentBlockStart }

func (e ContentBlockStartEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type         string       `json:"type"`
		Index        int          `json:"index"`
		ContentBlock ContentBlock `json:"content_block"`
	}{EventContentBlockStart, e.Index, e.ContentBlock})
}

// ContentBlockDeltaEvent extends block Index.
type ContentBlockDeltaEvent struct {
	Index int
	Delta BlockDelta
}

func (ContentBlockDeltaEvent) EventType() string { return EventContentBlockDelta }

func (e ContentBlockDeltaEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  string     `json:"type"`
		Index int        `json:"index"`
		Delta BlockDelta `json:"delta"`
	}{EventContentBlockDelta, e.Index, e.Delta})
}

// BlockDelta is TextDelta or InputJSONDelta.
type BlockDelta interface {
	DeltaType() string
}

// TextDelta appends text to a text block.
type TextDelta struct {
	Text string
}

func (TextDelta) DeltaType() string { return DeltaTypeText }

func (d TextDelta) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{DeltaTypeText, d.Text})
}

// InputJSONDelta appends a fragment of a tool_use block's input JSON.
type InputJSONDelta struct {
	PartialJSON string
}

func (InputJSONDelta) DeltaType() string { return DeltaTypeInputJSON }

func (d InputJSONDelta) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type        string `json:"type"`
		PartialJSON string `json:"partial_json"`
	}{DeltaTypeInputJSON, d.PartialJSON})
}

// ContentBlockStopEvent closes block Index.
type ContentBlockStopEvent struct {
	Index int
}

func (ContentBlockStopEvent) EventType() string { return EventContentBlockStop }

func (e ContentBlockStopEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  string `json:"type"`
		Index int    `json:"index"`
	}{EventContentBlockStop, e.Index})
}

// MessageDeltaEvent carries the stop reason and the final output count.
type MessageDeltaEvent struct {
	Delta MessageDelta
	Usage *DeltaUsage
}

func (MessageDeltaEvent) EventType() string { return EventMessageDelta }

func (e MessageDeltaEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  string       `json:"type"`
		Delta MessageDelta `json:"delta"`
		Usage *DeltaUsage  `json:"usage,omitempty"`
	}{EventMessageDelta, e.Delta, e.Usage})
}

// MessageDelta holds message-level changes.
type MessageDelta struct {
	StopReason   *string `json:"stop_reason"`
	StopSequence *string `json:"stop_sequence"`
}

// DeltaUsage is the cumulative output token count.
type DeltaUsage struct {
	OutputTokens int `json:"output_tokens"`
}

// MessageStopEvent ends the stream.
type MessageStopEvent struct{}

func (MessageStopEvent) EventType() string { return EventMessageStop }

func (MessageStopEvent) MarshalJSON() ([]byte, error) {
	return []byte(`{"type":"message_stop"}`), nil
}

// PingEvent keeps the connection alive.
type PingEvent struct{}

func (PingEvent) EventType() string { return EventPing }

func (PingEvent) MarshalJSON() ([]byte, error) {
	return []byte(`{"type":"ping"}`), nil
}

// ErrorEvent reports an error mid-stream.
type ErrorEvent struct {
	Error APIError
}

func (ErrorEvent) EventType() string { return EventError }

func (e ErrorEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  string   `json:"type"`
		Error APIError `json:"error"`
	}{EventError, e.Error})
}

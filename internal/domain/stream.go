package domain

// StreamEventType enumerates canonical streaming deltas.
type StreamEventType string

const (
	// StreamEventStart opens a response and may carry id, model and role.
	StreamEventStart StreamEventType = "start"
	// StreamEventText appends text to the content block at Index.
	StreamEventText StreamEventType = "text"
	// StreamEventToolCall appends to the tool call at ToolCall.Index.
	StreamEventToolCall StreamEventType = "tool_call"
	// StreamEventBlockStop seals the content block at Index.
	StreamEventBlockStop StreamEventType = "block_stop"
	StreamEventUsage     StreamEventType = "usage"
	StreamEventFinish    StreamEventType = "finish"
	// StreamEventDone is terminal.
	StreamEventDone StreamEventType = "done"
	// StreamEventPing carries nothing.
	StreamEventPing StreamEventType = "ping"
)

// ToolCallDelta is a fragment of a tool call addressed by index.
type ToolCallDelta struct {
	Index          int
	ID             string
	Name           string
	ArgumentsDelta string
}

// StreamEvent is one canonical delta. Which fields are set depends on Type.
// Usage may ride on start and finish events as well as on usage events.
type StreamEvent struct {
	Type         StreamEventType
	ResponseID   string
	Model        string
	Created      int64
	Role         Role
	Index        int
	Text         string
	Refusal      bool
	ToolCall     *ToolCallDelta
	FinishReason *FinishReason
	Usage        *Usage
}

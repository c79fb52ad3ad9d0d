// Package domain holds the provider-neutral chat model every codec reads from
// and writes to, together with the error taxonomy shared by the wire,
// transcoding and streaming layers.
package domain

// APIType identifies a wire shape.
type APIType string

const (
	APITypeOpenAI    APIType = "openai"
	APITypeAnthropic APIType = "anthropic"
	APITypeGemini    APIType = "gemini"
	APITypeMCP       APIType = "mcp"
)

// ParseAPIType accepts the canonical names plus a few common aliases.
func ParseAPIType(s string) (APIType, bool) {
	switch s {
	case "openai", "oai":
		return APITypeOpenAI, true
	case "anthropic", "claude":
		return APITypeAnthropic, true
	case "gemini", "google":
		return APITypeGemini, true
	case "mcp":
		return APITypeMCP, true
	}
	return "", false
}

// Role is the speaker of a message. The set is closed.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Message is one turn of a conversation. Parts are in rendering order.
// Treat values as immutable; use the constructors and With* helpers to derive
// new messages.
type Message struct {
	Role  Role
	Parts []ContentPart
	// Name disambiguates participants sharing a role.
	Name string
}

// Text concatenates the text parts of the message.
func (m Message) Text() string {
	var n int
	for _, p := range m.Parts {
		if t, ok := p.(Text); ok {
			n += len(t.Text)
		}
	}
	buf := make([]byte, 0, n)
	for _, p := range m.Parts {
		if t, ok := p.(Text); ok {
			buf = append(buf, t.Text...)
		}
	}
	return string(buf)
}

// ToolCalls returns the tool-call parts in order.
func (m Message) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, p := range m.Parts {
		if c, ok := p.(ToolCall); ok {
			calls = append(calls, c)
		}
	}
	return calls
}

// Clone returns a deep copy so callers can derive a new message.
func (m Message) Clone() Message {
	return Message{Role: m.Role, Parts: cloneParts(m.Parts), Name: m.Name}
}

// ToolDefinition describes a function the model may call.
type ToolDefinition struct {
	Name        string
	Description string
	// Parameters is a JSON schema document, kept opaque.
	Parameters []byte
}

// ToolChoiceMode controls whether and how the model calls tools.
type ToolChoiceMode string

const (
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceNone     ToolChoiceMode = "none"
	ToolChoiceRequired ToolChoiceMode = "required"
	ToolChoiceFunction ToolChoiceMode = "function"
)

// ToolChoice is set when the request constrains tool use.
type ToolChoice struct {
	Mode ToolChoiceMode
	// Name is set only for ToolChoiceFunction.
	Name string
}

// Request is a canonical chat-completion request.
type Request struct {
	Model       string
	Messages    []Message
	Tools       []ToolDefinition
	ToolChoice  *ToolChoice
	Temperature *float64
	TopP        *float64
	TopK        *int
	MaxTokens   *int
	// MaxCompletionTokens records that MaxTokens arrived as OpenAI's
	// max_completion_tokens.
	MaxCompletionTokens bool
	Stop                []string
	Stream              bool
	// Candidates is the number of alternatives requested (OpenAI "n").
	Candidates *int
	// User is an opaque end-user identifier.
	User string
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Choice is one generated alternative.
type Choice struct {
	Index        int
	Message      Message
	FinishReason *FinishReason
}

// Response is a canonical, non-streaming completion.
type Response struct {
	ID                string
	Model             string
	Created           int64
	Choices           []Choice
	Usage             *Usage
	SystemFingerprint string
}

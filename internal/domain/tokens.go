package domain

import "context"

// TokenView is the immutable snapshot of a request handed to token counters.
// Every field is populated before handoff; counters must not modify it.
type TokenView struct {
	Model    string
	Messages []Message
	Tools    []ToolDefinition
}

// NewTokenView copies the parts of req a counter needs.
func NewTokenView(req *Request) TokenView {
	v := TokenView{Model: req.Model}
	for _, m := range req.Messages {
		v.Messages = append(v.Messages, m.Clone())
	}
	v.Tools = append(v.Tools, req.Tools...)
	return v
}

// TokenCount is the result of counting a view.
type TokenCount struct {
	Model string `json:"model"`
	// PerMessage holds the count attributed to each message, in order.
	PerMessage []int `json:"per_message"`
	// Tools is the count attributed to tool definitions.
	Tools int `json:"tools,omitempty"`
	// Total includes per-message overhead and reply priming.
	Total int `json:"total"`
	// Estimated is set when no exact tokenizer covered the model.
	Estimated bool `json:"estimated,omitempty"`
}

// TokenCounter counts tokens over the canonical view.
type TokenCounter interface {
	CountTokens(ctx context.Context, view TokenView) (*TokenCount, error)
	SupportsModel(model string) bool
}

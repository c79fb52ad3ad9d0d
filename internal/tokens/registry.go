// Package tokens provides token counting over the canonical request view.
package tokens

import (
	"context"
	"fmt"
	"strings"

	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
)

// Registry manages token counters for different models.
// It supports:
// 1. Registered domain.TokenCounter implementations (like tiktoken for OpenAI)
// 2. A fallback estimator for unknown models
type Registry struct {
	counters []domain.TokenCounter
	fallback domain.TokenCounter
}

// NewRegistry creates a new token counter registry.
func NewRegistry() *Registry {
	return &Registry{
		fallback: NewEstimator(), // Default fallback estimator
	}
}

// NewDefaultRegistry registers the tiktoken counter ahead of the fallback.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewOpenAICounter())
	return r
}

// Register adds a token counter to the registry.
func (r *Registry) Register(counter domain.TokenCounter) {
	r.counters = append(r.counters, counter)
}

// SetFallback sets the fallback counter for unsupported models.
func (r *Registry) SetFallback(counter domain.TokenCounter) {
	r.fallback = counter
}

// CountTokens counts tokens using the appropriate counter for the model.
// Priority order:
// 1. Use registered counters that support the model
// 2. Use the fallback estimator
func (r *Registry) CountTokens(ctx context.Context, view domain.TokenView) (*domain.TokenCount, error) {
	// Find a registered counter that supports this model
	for _, counter := range r.counters {
		if counter.SupportsModel(view.Model) {
			return counter.CountTokens(ctx, view)
		}
	}

	// Use fallback
	if r.fallback != nil {
		return r.fallback.CountTokens(ctx, view)
	}

	return nil, fmt.Errorf("no token counter available for model: %s", view.Model)
}

// GetCounter returns the appropriate counter for a model.
func (r *Registry) GetCounter(model string) domain.TokenCounter {
	for _, counter := range r.counters {
		if counter.SupportsModel(model) {
			return counter
		}
	}
	return r.fallback
}

// Estimator provides token count estimation based on character analysis.
// This is a fallback for models without a local tokenizer.
type Estimator struct {
	// CharsPerToken is the average characters per token (default: 4)
	CharsPerToken float64
}

// NewEstimator creates a new token estimator.
func NewEstimator() *Estimator {
	return &Estimator{
		CharsPerToken: 4.0, // Reasonable default for most models
	}
}

// CountTokens estimates the token count.
func (e *Estimator) CountTokens(ctx context.Context, view domain.TokenView) (*domain.TokenCount, error) {
	count := &domain.TokenCount{
		Model:      view.Model,
		PerMessage: make([]int, len(view.Messages)),
		Estimated:  true,
	}

	for i, msg := range view.Messages {
		chars := len(msg.Role) + len(msg.Name)
		// Add overhead for message formatting (approximately)
		chars += 4 // role tokens + separators
		tokens := 0
		for _, p := range msg.Parts {
			c, images := partChars(p)
			chars += c
			tokens += images * BaseImageTokens
		}
		count.PerMessage[i] = e.tokens(chars) + tokens
		count.Total += count.PerMessage[i]
	}

	toolChars := 0
	for _, tool := range view.Tools {
		toolChars += len(tool.Name)
		toolChars += len(tool.Description)
		toolChars += len(tool.Parameters)
	}
	count.Tools = e.tokens(toolChars)
	count.Total += count.Tools

	return count, nil
}

func (e *Estimator) tokens(chars int) int {
	return int(float64(chars) / e.CharsPerToken)
}

// partChars measures the text of a part and counts its images.
func partChars(p domain.ContentPart) (chars, images int) {
	switch p := p.(type) {
	case domain.Text:
		return len(p.Text), 0
	case domain.Image:
		return 0, 1
	case domain.ToolCall:
		return len(p.Name) + len(p.Arguments), 0
	case domain.ToolResult:
		for _, c := range p.Content {
			ch, im := partChars(c)
			chars += ch
			images += im
		}
	}
	return chars, images
}

// SupportsModel returns true - estimator supports all models as a fallback.
func (e *Estimator) SupportsModel(model string) bool {
	return true
}

// ModelMatcher helps match model names to provider patterns.
type ModelMatcher struct {
	prefixes []string
	exact    []string
}

// NewModelMatcher creates a new model matcher.
func NewModelMatcher(prefixes, exact []string) *ModelMatcher {
	return &ModelMatcher{
		prefixes: prefixes,
		exact:    exact,
	}
}

// Matches returns true if the model matches any pattern.
func (m *ModelMatcher) Matches(model string) bool {
	// Check exact matches first
	for _, e := range m.exact {
		if model == e {
			return true
		}
	}

	// Check prefix matches
	for _, p := range m.prefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}

	return false
}

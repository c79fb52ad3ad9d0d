package tokens

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
)

// OpenAICounter provides accurate token counts for OpenAI models using tiktoken.
type OpenAICounter struct {
	matcher *ModelMatcher
	// codecCache caches tokenizer codecs by encoding name
	codecCache map[tokenizer.Encoding]tokenizer.Codec
	cacheMu    sync.RWMutex
}

// NewOpenAICounter creates a new OpenAI token counter.
func NewOpenAICounter() *OpenAICounter {
	return &OpenAICounter{
		matcher: NewModelMatcher(
			// Prefixes for OpenAI models (including future gpt-5.x, gpt-6, etc.)
			// Note: "o" prefix matches o1, o3, o4, o5, etc. reasoning models
			[]string{"gpt-", "o1", "o2", "o3", "o4", "o5", "o6", "text-embedding", "text-davinci"},
			// Exact matches for legacy models
			[]string{"davinci", "curie", "babbage", "ada"},
		),
		codecCache: make(map[tokenizer.Encoding]tokenizer.Codec),
	}
}

// getCodec returns the tokenizer codec for a model.
func (c *OpenAICounter) getCodec(model string) (tokenizer.Codec, error) {
	// Map model name to tokenizer.Model
	tmodel := mapModelName(model)

	// Try to get codec for the specific model
	codec, err := tokenizer.ForModel(tmodel)
	if err == nil {
		return codec, nil
	}

	// Fall back to encoding based on model prefix
	encoding := modelToEncoding(model)

	// Check cache
	c.cacheMu.RLock()
	if cached, ok := c.codecCache[encoding]; ok {
		c.cacheMu.RUnlock()
		return cached, nil
	}
	c.cacheMu.RUnlock()

	// Get encoding
	codec, err = tokenizer.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}

	// Cache it
	c.cacheMu.Lock()
	c.codecCache[encoding] = codec
	c.cacheMu.Unlock()

	return codec, nil
}

// mapModelName maps a model string to tokenizer.Model
func mapModelName(model string) tokenizer.Model {
	// Normalize model name
	model = strings.ToLower(model)

	// Direct mappings for known models
	switch {
	// GPT-5 family (exact matches for known variants)
	case model == "gpt-5":
		return tokenizer.GPT5
	case model == "gpt-5-mini" || strings.HasPrefix(model, "gpt-5-mini-"):
		return tokenizer.GPT5Mini
	case model == "gpt-5-nano" || strings.HasPrefix(model, "gpt-5-nano-"):
		return tokenizer.GPT5Nano
	// GPT-5.x and other gpt-5 variants (gpt-5-turbo, gpt-5.1, etc.) use GPT5 encoding
	case strings.HasPrefix(model, "gpt-5"):
		return tokenizer.GPT5

	// GPT-4.1 family
	case strings.HasPrefix(model, "gpt-4.1") || strings.HasPrefix(model, "gpt-41"):
		return tokenizer.GPT41

	// GPT-4o family
	case strings.HasPrefix(model, "gpt-4o"):
		return tokenizer.GPT4o

	// O-series reasoning models
	case model == "o1" || model == "o1-preview" || strings.HasPrefix(model, "o1-"):
		if strings.Contains(model, "mini") {
			return tokenizer.O1Mini
		}
		if strings.Contains(model, "preview") {
			return tokenizer.O1Preview
		}
		return tokenizer.O1
	case model == "o3" || strings.HasPrefix(model, "o3-"):
		if strings.Contains(model, "mini") {
			return tokenizer.O3Mini
		}
		return tokenizer.O3
	case model == "o4-mini" || strings.HasPrefix(model, "o4-mini"):
		return tokenizer.O4Mini
	// Future O-series models (o4, o5, o6, etc.) - use O4Mini as closest match
	case strings.HasPrefix(model, "o4"), strings.HasPrefix(model, "o5"), strings.HasPrefix(model, "o6"):
		return tokenizer.O4Mini

	// GPT-4 family
	case strings.HasPrefix(model, "gpt-4"):
		return tokenizer.GPT4

	// GPT-3.5 family
	case strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.GPT35Turbo

	// Future GPT models (gpt-6+) - use GPT5 encoding (o200k_base)
	case strings.HasPrefix(model, "gpt-6"), strings.HasPrefix(model, "gpt-7"):
		return tokenizer.GPT5

	// Text embedding
	case strings.HasPrefix(model, "text-embedding"):
		return tokenizer.TextEmbeddingAda002

	// Legacy models
	case strings.HasPrefix(model, "text-davinci-003"):
		return tokenizer.TextDavinci003
	case strings.HasPrefix(model, "text-davinci-002"):
		return tokenizer.TextDavinci002
	case strings.HasPrefix(model, "text-davinci"):
		return tokenizer.TextDavinci001
	case model == "davinci":
		return tokenizer.Davinci
	case model == "curie":
		return tokenizer.Curie
	case model == "babbage":
		return tokenizer.Babbage
	case model == "ada":
		return tokenizer.Ada

	default:
		// Return as Model type - tokenizer.ForModel will handle unknown models
		return tokenizer.Model(model)
	}
}

// modelToEncoding maps model names to encoding names for fallback.
//
// Encoding reference:
// - O200kBase: GPT-5, GPT-4.1, GPT-4o, O1, O3, O4-mini and newer models
// - Cl100kBase: GPT-4, GPT-3.5-turbo, text-embedding-ada-002
// - P50kBase: text-davinci-003, text-davinci-002
// - R50kBase: davinci, curie, babbage, ada (legacy)
func modelToEncoding(model string) tokenizer.Encoding {
	model = strings.ToLower(model)

	switch {
	// Newer models use O200k_base
	case strings.HasPrefix(model, "gpt-5"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4.1"), strings.HasPrefix(model, "gpt-41"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4o"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase

	// GPT-4 and GPT-3.5 use cl100k_base
	case strings.HasPrefix(model, "gpt-4"):
		return tokenizer.Cl100kBase
	case strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.Cl100kBase

	// Embedding models
	case strings.HasPrefix(model, "text-embedding"):
		return tokenizer.Cl100kBase

	// Legacy text-davinci models
	case strings.HasPrefix(model, "text-davinci-003"), strings.HasPrefix(model, "text-davinci-002"):
		return tokenizer.P50kBase
	case strings.HasPrefix(model, "text-davinci"):
		return tokenizer.P50kBase

	// Legacy completion models
	case model == "davinci" || model == "curie" || model == "babbage" || model == "ada":
		return tokenizer.R50kBase

	default:
		// Default to O200k_base for unknown/future models (most likely encoding)
		return tokenizer.O200kBase
	}
}

// Chat framing overhead. Every message costs a fixed number of tokens
// around its content, a name adjusts that cost, and the reply is primed
// with three more tokens.
const (
	replyPriming         = 3
	toolCallOverhead     = 3
	toolResultOverhead   = 2
	toolDefinitionTokens = 7
)

// messageOverhead returns the per-message and per-name costs for a model.
// gpt-3.5 models frame messages as <|start|>{role/name}\n{content}<|end|>\n
// and drop the role when a name is present.
func messageOverhead(model string) (perMessage, perName int) {
	if strings.HasPrefix(strings.ToLower(model), "gpt-3.5") {
		return 4, -1
	}
	return 3, 1
}

// CountTokens counts tokens for OpenAI models using tiktoken.
func (c *OpenAICounter) CountTokens(ctx context.Context, view domain.TokenView) (*domain.TokenCount, error) {
	perMessage, estimated, err := c.CountMessages(view.Model, view.Messages)
	if err != nil {
		return nil, err
	}

	count := &domain.TokenCount{
		Model:      view.Model,
		PerMessage: perMessage,
		Estimated:  estimated,
	}
	for _, n := range perMessage {
		count.Total += n
	}

	codec, err := c.getCodec(view.Model)
	if err != nil {
		return nil, err
	}
	for _, tool := range view.Tools {
		count.Tools += encodedLen(codec, tool.Name)
		count.Tools += encodedLen(codec, tool.Description)
		if len(tool.Parameters) > 0 {
			count.Tools += encodedLen(codec, string(tool.Parameters))
		}
		count.Tools += toolDefinitionTokens
	}
	count.Total += count.Tools

	// Add final assistant prompt tokens
	count.Total += replyPriming

	return count, nil
}

// CountMessages returns the token count of each message including its
// framing overhead. estimated is set when an image could not be sized and
// was charged at the base rate.
func (c *OpenAICounter) CountMessages(model string, messages []domain.Message) (perMessage []int, estimated bool, err error) {
	codec, err := c.getCodec(model)
	if err != nil {
		return nil, false, err
	}
	tokensPerMessage, tokensPerName := messageOverhead(model)

	perMessage = make([]int, len(messages))
	for i, msg := range messages {
		n := tokensPerMessage
		if msg.Name != "" {
			n += tokensPerName + encodedLen(codec, msg.Name)
		}
		for _, part := range msg.Parts {
			pn, exact := partTokens(codec, part)
			n += pn
			if !exact {
				estimated = true
			}
		}
		perMessage[i] = n
	}
	return perMessage, estimated, nil
}

func partTokens(codec tokenizer.Codec, part domain.ContentPart) (n int, exact bool) {
	switch p := part.(type) {
	case domain.Text:
		return encodedLen(codec, p.Text), true
	case domain.Image:
		w, h, ok := ImageSize(p)
		if !ok {
			if p.Detail == domain.ImageDetailLow {
				return BaseImageTokens, true
			}
			return BaseImageTokens, false
		}
		return ImageTokens(w, h, p.Detail), true
	case domain.ToolCall:
		n = encodedLen(codec, p.Name) + encodedLen(codec, p.Arguments)
		return n + toolCallOverhead, true
	case domain.ToolResult:
		exact = true
		for _, inner := range p.Content {
			in, ok := partTokens(codec, inner)
			n += in
			exact = exact && ok
		}
		return n + toolResultOverhead, exact
	}
	return 0, true
}

func encodedLen(codec tokenizer.Codec, text string) int {
	if text == "" {
		return 0
	}
	ids, _, _ := codec.Encode(text)
	return len(ids)
}

// SupportsModel returns true for OpenAI models.
func (c *OpenAICounter) SupportsModel(model string) bool {
	return c.matcher.Matches(model)
}

// CountText counts tokens for a plain text string.
func (c *OpenAICounter) CountText(model, text string) (int, error) {
	codec, err := c.getCodec(model)
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

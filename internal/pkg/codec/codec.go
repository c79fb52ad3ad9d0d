// Package codec defines the contract between a provider's wire shape and the
// canonical model.
//
// Every provider codec is a pair of pure mappings:
//   - wire request  → Codec.DecodeRequest()  → domain.Request
//   - domain.Request → Codec.EncodeRequest() → wire request
//   - wire response → Codec.DecodeResponse() → domain.Response
//   - domain.Response → Codec.EncodeResponse() → wire response
//
// Streaming payloads decode into zero or more canonical events, one SSE data
// payload (or NDJSON line) at a time.
package codec

import (
	"github.com/tjfontaine/polyglot-llm-wire/internal/api/wire"
	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
)

// DefaultMaxTokens is used when a target requires max_tokens and the request
// leaves it unset.
const DefaultMaxTokens = 4000

// Codec handles bidirectional conversion between one wire shape and the
// canonical model. Implementations hold no mutable state.
type Codec interface {
	// APIType returns the wire shape this codec speaks.
	APIType() domain.APIType

	// DecodeRequest returns a partial request together with a
	// domain.SchemaErrors batch when decoding in collect-all mode.
	DecodeRequest(data []byte) (*domain.Request, error)
	// EncodeRequest fails with a *domain.TranscodeError when the request uses
	// a construct the wire shape cannot express.
	EncodeRequest(req *domain.Request) ([]byte, error)

	DecodeResponse(data []byte) (*domain.Response, error)
	EncodeResponse(resp *domain.Response) ([]byte, error)

	// DecodeStreamChunk maps one streaming payload onto canonical events.
	DecodeStreamChunk(data []byte) ([]domain.StreamEvent, error)
	// EncodeStreamChunk renders one event as a streaming payload. A nil
	// result with a nil error means the event has no encoding in this shape.
	EncodeStreamChunk(event domain.StreamEvent, metadata *StreamMetadata) ([]byte, error)
}

// StreamMetadata contains metadata needed for encoding stream chunks
type StreamMetadata struct {
	ID      string
	Model   string
	Created int64
}

// RequestCodec provides only request encoding/decoding.
type RequestCodec interface {
	DecodeRequest(data []byte) (*domain.Request, error)
	EncodeRequest(req *domain.Request) ([]byte, error)
}

// ResponseCodec provides only response encoding/decoding.
type ResponseCodec interface {
	DecodeResponse(data []byte) (*domain.Response, error)
	EncodeResponse(resp *domain.Response) ([]byte, error)
}

// StreamCodec provides streaming chunk encoding/decoding.
type StreamCodec interface {
	DecodeStreamChunk(data []byte) ([]domain.StreamEvent, error)
	EncodeStreamChunk(event domain.StreamEvent, metadata *StreamMetadata) ([]byte, error)
}

// Options configures a codec.
type Options struct {
	Decode wire.Options
	// DefaultMaxTokens fills max_tokens for shapes that require it.
	DefaultMaxTokens int
	// NormalizeTurns reshapes Gemini contents into strictly alternating
	// turns on encode.
	NormalizeTurns bool
}

// Option mutates Options.
type Option func(*Options)

// WithDecodeMode selects fail-fast or collect-all decoding.
func WithDecodeMode(mode wire.Mode) Option {
	return func(o *Options) { o.Decode.Mode = mode }
}

// WithDefaultMaxTokens overrides DefaultMaxTokens.
func WithDefaultMaxTokens(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.DefaultMaxTokens = n
		}
	}
}

// WithNormalizeTurns enables Gemini turn normalization.
func WithNormalizeTurns(enabled bool) Option {
	return func(o *Options) { o.NormalizeTurns = enabled }
}

// ApplyOptions folds opts over the defaults.
func ApplyOptions(opts ...Option) Options {
	o := Options{DefaultMaxTokens: DefaultMaxTokens}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

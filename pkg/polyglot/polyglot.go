// Package polyglot is the public API for embedding the wire transcoder.
// This is the stable API for external consumers.
package polyglot

import (
	"github.com/tjfontaine/polyglot-llm-wire/internal/codec"
	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
	"github.com/tjfontaine/polyglot-llm-wire/internal/runtime"
	"github.com/tjfontaine/polyglot-llm-wire/internal/stream"
)

// Engine transcodes payloads, assembles streams and counts tokens.
// See internal/runtime.Engine for full documentation.
type Engine = runtime.Engine

// Option is a functional option for configuring an Engine.
type Option = runtime.Option

// New creates a new Engine with the given options.
// Example:
//
//	eng, err := polyglot.New(
//	    polyglot.WithDecodeMode(wire.CollectAll),
//	    polyglot.WithImageInlining(true),
//	)
//	out, err := eng.Transcode(ctx, polyglot.OpenAI, polyglot.Anthropic, polyglot.KindRequest, body)
var New = runtime.New

// NewFromConfig creates an Engine from a loaded config.
var NewFromConfig = runtime.NewFromConfig

// Configuration options
var (
	WithConfig       = runtime.WithConfig
	WithDecodeMode   = runtime.WithDecodeMode
	WithCodecOptions = runtime.WithCodecOptions

	// Images
	WithImageInlining = runtime.WithImageInlining
	WithImageFetcher  = runtime.WithImageFetcher

	// Tokens and pricing
	WithTokenCounter = runtime.WithTokenCounter
	WithPrices       = runtime.WithPrices

	WithLogger = runtime.WithLogger
)

// Canonical model types.
type (
	APIType    = domain.APIType
	Request    = domain.Request
	Response   = domain.Response
	Message    = domain.Message
	Usage      = domain.Usage
	TokenCount = domain.TokenCount
	Kind       = codec.Kind
	Format     = stream.Format
)

// Wire shapes.
const (
	OpenAI    = domain.APITypeOpenAI
	Anthropic = domain.APITypeAnthropic
	Gemini    = domain.APITypeGemini
	MCP       = domain.APITypeMCP
)

// Payload kinds.
const (
	KindRequest  = codec.KindRequest
	KindResponse = codec.KindResponse
)

// Stream framings.
const (
	SSE       = stream.FormatSSE
	NDJSON    = stream.FormatNDJSON
	JSONArray = stream.FormatJSONArray
)

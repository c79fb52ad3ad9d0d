// Package codec ties the provider codecs together: a capability table of
// transcoders keyed by source and target wire shape, the error envelope
// dispatcher, and the image resolution pass that makes URL images
// representable for providers that only accept inline data.
package codec

import (
	"fmt"
	"sort"

	"github.com/tjfontaine/polyglot-llm-wire/internal/codec/anthropic"
	"github.com/tjfontaine/polyglot-llm-wire/internal/codec/gemini"
	"github.com/tjfontaine/polyglot-llm-wire/internal/codec/openai"
	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
	wirecodec "github.com/tjfontaine/polyglot-llm-wire/internal/pkg/codec"
)

// Kind selects which payload a transcoder converts.
type Kind string

const (
	KindRequest  Kind = "request"
	KindResponse Kind = "response"
)

// ParseKind accepts "request" and "response".
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindRequest, KindResponse:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown transcode kind %q", s)
}

// Transcoder converts payloads from one wire shape to another through the
// canonical model. It is pure and safe for concurrent use.
type Transcoder struct {
	From wirecodec.Codec
	To   wirecodec.Codec
}

// Request decodes a request in the source shape and encodes it in the
// target shape. Decode errors are returned as-is, so a collect-all decode
// reports every schema error and nothing is encoded.
func (t Transcoder) Request(data []byte) ([]byte, error) {
	req, err := t.From.DecodeRequest(data)
	if err != nil {
		return nil, err
	}
	return t.To.EncodeRequest(req)
}

// Response converts a complete, non-streaming response.
func (t Transcoder) Response(data []byte) ([]byte, error) {
	resp, err := t.From.DecodeResponse(data)
	if err != nil {
		return nil, err
	}
	return t.To.EncodeResponse(resp)
}

// Convert dispatches on kind.
func (t Transcoder) Convert(kind Kind, data []byte) ([]byte, error) {
	switch kind {
	case KindRequest:
		return t.Request(data)
	case KindResponse:
		return t.Response(data)
	}
	return nil, fmt.Errorf("unknown transcode kind %q", kind)
}

type pair struct {
	from, to domain.APIType
}

// Table is the capability table. It is built once by NewTable and is
// read-only afterwards.
type Table struct {
	codecs map[domain.APIType]wirecodec.Codec
	pairs  map[pair]Transcoder
}

// DefaultPairs are the registered source/target combinations. MCP carries
// tools and invocations only and is served by the mcp package.
var DefaultPairs = [][2]domain.APIType{
	{domain.APITypeOpenAI, domain.APITypeAnthropic},
	{domain.APITypeAnthropic, domain.APITypeOpenAI},
	{domain.APITypeOpenAI, domain.APITypeGemini},
	{domain.APITypeGemini, domain.APITypeOpenAI},
	{domain.APITypeAnthropic, domain.APITypeGemini},
	{domain.APITypeGemini, domain.APITypeAnthropic},
}

// NewCodecs builds one codec per chat wire shape with shared options.
func NewCodecs(opts ...wirecodec.Option) map[domain.APIType]wirecodec.Codec {
	return map[domain.APIType]wirecodec.Codec{
		domain.APITypeOpenAI:    openai.New(opts...),
		domain.APITypeAnthropic: anthropic.New(opts...),
		domain.APITypeGemini:    gemini.New(opts...),
	}
}

// NewTable registers DefaultPairs over codecs built with opts.
func NewTable(opts ...wirecodec.Option) *Table {
	return NewTableFor(NewCodecs(opts...), DefaultPairs)
}

// NewTableFor registers the given pairs over the given codecs. Pairs naming
// a missing codec are skipped.
func NewTableFor(codecs map[domain.APIType]wirecodec.Codec, pairs [][2]domain.APIType) *Table {
	t := &Table{codecs: codecs, pairs: make(map[pair]Transcoder, len(pairs))}
	for _, p := range pairs {
		from, ok := codecs[p[0]]
		if !ok {
			continue
		}
		to, ok := codecs[p[1]]
		if !ok {
			continue
		}
		t.pairs[pair{p[0], p[1]}] = Transcoder{From: from, To: to}
	}
	return t
}

// Codec returns the codec for one wire shape.
func (t *Table) Codec(api domain.APIType) (wirecodec.Codec, bool) {
	c, ok := t.codecs[api]
	return c, ok
}

// Lookup returns the transcoder for a pair. Converting a shape to itself
// is always supported and normalizes through the canonical model.
func (t *Table) Lookup(from, to domain.APIType) (Transcoder, error) {
	if tr, ok := t.pairs[pair{from, to}]; ok {
		return tr, nil
	}
	if from == to {
		if c, ok := t.codecs[from]; ok {
			return Transcoder{From: c, To: c}, nil
		}
	}
	return Transcoder{}, domain.UnsupportedPair(from, to, "transcoder")
}

// Transcode converts one payload.
func (t *Table) Transcode(from, to domain.APIType, kind Kind, data []byte) ([]byte, error) {
	tr, err := t.Lookup(from, to)
	if err != nil {
		return nil, err
	}
	return tr.Convert(kind, data)
}

// Pairs lists the registered pairs, sorted.
func (t *Table) Pairs() [][2]domain.APIType {
	out := make([][2]domain.APIType, 0, len(t.pairs))
	for p := range t.pairs {
		out = append(out, [2]domain.APIType{p.from, p.to})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

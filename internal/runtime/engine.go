// Package runtime provides the Engine that ties the codecs, the stream
// assembler and the token counters together.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tjfontaine/polyglot-llm-wire/internal/codec"
	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
	wirecodec "github.com/tjfontaine/polyglot-llm-wire/internal/pkg/codec"
	"github.com/tjfontaine/polyglot-llm-wire/internal/pkg/config"
	"github.com/tjfontaine/polyglot-llm-wire/internal/stream"
	"github.com/tjfontaine/polyglot-llm-wire/internal/telemetry"
	"github.com/tjfontaine/polyglot-llm-wire/internal/tokens"
)

// Engine runs transcodes, stream assembly and token counting. Aside from
// the optional image fetch it performs no I/O, and it is safe for
// concurrent use.
type Engine struct {
	codecOpts     []wirecodec.Option
	table         *codec.Table
	fetcher       *codec.ImageFetcher
	inlineImages  bool
	counters      *tokens.Registry
	extraCounters []domain.TokenCounter
	prices        tokens.PriceTable
	logger        *slog.Logger
}

// New creates an Engine with the given options.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.Default(),
		prices: tokens.DefaultPrices,
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	e.table = codec.NewTable(e.codecOpts...)
	e.counters = tokens.NewRegistry()
	for _, c := range e.extraCounters {
		e.counters.Register(c)
	}
	e.counters.Register(tokens.NewOpenAICounter())
	if e.inlineImages && e.fetcher == nil {
		e.fetcher = codec.NewImageFetcher()
	}
	return e, nil
}

// NewFromConfig creates an Engine configured from cfg, followed by opts.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Engine, error) {
	return New(append([]Option{WithConfig(cfg)}, opts...)...)
}

// Logger returns the engine's logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Codec returns the codec for a wire shape.
func (e *Engine) Codec(api domain.APIType) (wirecodec.Codec, error) {
	c, ok := e.table.Codec(api)
	if !ok {
		return nil, domain.UnsupportedPair(api, api, "codec")
	}
	return c, nil
}

// Pairs lists the registered transcoder pairs.
func (e *Engine) Pairs() [][2]domain.APIType { return e.table.Pairs() }

// Transcode converts one request or response payload between wire shapes.
// With image inlining enabled, URL images in requests are fetched and
// embedded before encoding.
func (e *Engine) Transcode(ctx context.Context, from, to domain.APIType, kind codec.Kind, data []byte) (out []byte, err error) {
	ctx, span := telemetry.StartSpan(ctx, "polyglot.transcode",
		attribute.String("polyglot.from", string(from)),
		attribute.String("polyglot.to", string(to)),
		attribute.String("polyglot.kind", string(kind)),
		attribute.Int("polyglot.bytes_in", len(data)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	tr, err := e.table.Lookup(from, to)
	if err != nil {
		return nil, err
	}

	if kind != codec.KindRequest || !e.inlineImages {
		out, err = tr.Convert(kind, data)
	} else {
		out, err = e.transcodeInlining(ctx, tr, data)
	}
	if err != nil {
		e.logger.DebugContext(ctx, "transcode failed",
			slog.String("from", string(from)),
			slog.String("to", string(to)),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return out, nil
}

func (e *Engine) transcodeInlining(ctx context.Context, tr codec.Transcoder, data []byte) ([]byte, error) {
	req, err := tr.From.DecodeRequest(data)
	if err != nil {
		return nil, err
	}
	req, err = e.fetcher.ResolveImages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("inline images: %w", err)
	}
	return tr.To.EncodeRequest(req)
}

// Assemble folds a complete streamed body into a response.
func (e *Engine) Assemble(ctx context.Context, api domain.APIType, r io.Reader, format stream.Format) (resp *domain.Response, err error) {
	_, span := telemetry.StartSpan(ctx, "polyglot.assemble",
		attribute.String("polyglot.provider", string(api)),
		attribute.String("polyglot.format", format.String()),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	c, err := e.Codec(api)
	if err != nil {
		return nil, err
	}
	resp, err = stream.Assemble(r, format, c)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("polyglot.response_id", resp.ID))
	return resp, nil
}

// AssembleTo folds a streamed body and encodes the result in the to shape.
func (e *Engine) AssembleTo(ctx context.Context, from, to domain.APIType, r io.Reader, format stream.Format) ([]byte, error) {
	resp, err := e.Assemble(ctx, from, r, format)
	if err != nil {
		return nil, err
	}
	target, err := e.Codec(to)
	if err != nil {
		return nil, err
	}
	return target.EncodeResponse(resp)
}

// Relay re-encodes a streamed body chunk by chunk from one wire shape to
// another, calling emit with every produced payload. It returns the
// response assembled from the source stream.
func (e *Engine) Relay(ctx context.Context, from, to domain.APIType, r io.Reader, format stream.Format, emit func([]byte) error) (resp *domain.Response, err error) {
	ctx, span := telemetry.StartSpan(ctx, "polyglot.relay",
		attribute.String("polyglot.from", string(from)),
		attribute.String("polyglot.to", string(to)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	src, err := e.Codec(from)
	if err != nil {
		return nil, err
	}
	dst, err := e.Codec(to)
	if err != nil {
		return nil, err
	}

	relay := stream.NewRelay(src, dst)
	reader := stream.NewReader(r, format)
	for {
		if err := ctx.Err(); err != nil {
			relay.Session().Abandon()
			return nil, err
		}
		payload, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			relay.Session().Abandon()
			return nil, err
		}
		out, err := relay.Feed(payload)
		if err != nil {
			relay.Session().Abandon()
			return nil, err
		}
		for _, p := range out {
			if err := emit(p); err != nil {
				relay.Session().Abandon()
				return nil, err
			}
		}
	}
	return relay.Result()
}

// CountTokens decodes a request in the api shape and counts its tokens.
func (e *Engine) CountTokens(ctx context.Context, api domain.APIType, data []byte) (count *domain.TokenCount, err error) {
	ctx, span := telemetry.StartSpan(ctx, "polyglot.tokens", attribute.String("polyglot.provider", string(api)))
	defer func() { telemetry.EndSpan(span, err) }()

	c, err := e.Codec(api)
	if err != nil {
		return nil, err
	}
	req, err := c.DecodeRequest(data)
	if err != nil {
		return nil, err
	}
	return e.Count(ctx, domain.NewTokenView(req))
}

// Count counts tokens over a canonical view.
func (e *Engine) Count(ctx context.Context, view domain.TokenView) (*domain.TokenCount, error) {
	return e.counters.CountTokens(ctx, view)
}

// Price returns the USD cost of usage on model, or zero for unknown models.
func (e *Engine) Price(model string, usage domain.Usage) float64 {
	return e.prices.Cost(model, usage)
}

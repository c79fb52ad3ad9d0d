package runtime

import (
	"fmt"
	"log/slog"

	"github.com/tjfontaine/polyglot-llm-wire/internal/api/wire"
	"github.com/tjfontaine/polyglot-llm-wire/internal/codec"
	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
	wirecodec "github.com/tjfontaine/polyglot-llm-wire/internal/pkg/codec"
	"github.com/tjfontaine/polyglot-llm-wire/internal/pkg/config"
	"github.com/tjfontaine/polyglot-llm-wire/internal/tokens"
)

// Option is a functional option for configuring an Engine.
type Option func(*Engine) error

// WithConfig applies decode, codec and image settings from cfg.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) error {
		if cfg == nil {
			return fmt.Errorf("config required")
		}
		mode, err := cfg.DecodeMode()
		if err != nil {
			return err
		}
		e.codecOpts = append(e.codecOpts,
			wirecodec.WithDecodeMode(mode),
			wirecodec.WithDefaultMaxTokens(cfg.Anthropic.DefaultMaxTokens),
			wirecodec.WithNormalizeTurns(cfg.Gemini.NormalizeTurns),
		)
		e.inlineImages = cfg.Images.Inline
		e.fetcher = codec.NewImageFetcher(
			codec.WithMaxSize(cfg.Images.MaxBytes),
			codec.WithFetchTimeout(cfg.Images.Timeout),
			codec.WithAllowPrivate(cfg.Images.AllowPrivate),
		)
		return nil
	}
}

// WithDecodeMode selects fail-fast or collect-all decoding.
func WithDecodeMode(mode wire.Mode) Option {
	return func(e *Engine) error {
		e.codecOpts = append(e.codecOpts, wirecodec.WithDecodeMode(mode))
		return nil
	}
}

// WithCodecOptions passes options through to every provider codec.
func WithCodecOptions(opts ...wirecodec.Option) Option {
	return func(e *Engine) error {
		e.codecOpts = append(e.codecOpts, opts...)
		return nil
	}
}

// WithImageInlining fetches URL images and embeds them before a request is
// encoded, which lets requests with remote images target Claude.
func WithImageInlining(enabled bool) Option {
	return func(e *Engine) error {
		e.inlineImages = enabled
		return nil
	}
}

// WithImageFetcher sets the fetcher used for image inlining.
func WithImageFetcher(f *codec.ImageFetcher) Option {
	return func(e *Engine) error {
		e.fetcher = f
		return nil
	}
}

// WithTokenCounter registers a counter consulted before the built-in
// tiktoken counter and the estimator fallback.
func WithTokenCounter(counter domain.TokenCounter) Option {
	return func(e *Engine) error {
		e.extraCounters = append(e.extraCounters, counter)
		return nil
	}
}

// WithPrices replaces the price table.
func WithPrices(prices tokens.PriceTable) Option {
	return func(e *Engine) error {
		e.prices = prices
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			return fmt.Errorf("logger required")
		}
		e.logger = logger
		return nil
	}
}

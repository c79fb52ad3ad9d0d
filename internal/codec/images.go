package codec

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
	wirecodec "github.com/tjfontaine/polyglot-llm-wire/internal/pkg/codec"
	"github.com/tjfontaine/polyglot-llm-wire/internal/pkg/safehttp"
)

// DefaultMaxImageBytes bounds a fetched image.
const DefaultMaxImageBytes = 20 * 1024 * 1024

// ImageFetcher resolves image URLs into inline base64 data. It is the only
// part of this package that performs I/O; transcoders never call it.
type ImageFetcher struct {
	client       *http.Client
	maxSize      int64
	timeout      time.Duration
	allowPrivate bool
}

// ImageFetcherOption configures the image fetcher.
type ImageFetcherOption func(*ImageFetcher)

// WithImageHTTPClient sets a custom HTTP client for the fetcher. The client
// is used as-is, so its transport decides whether private addresses are
// reachable.
func WithImageHTTPClient(client *http.Client) ImageFetcherOption {
	return func(f *ImageFetcher) {
		f.client = client
	}
}

// WithMaxSize sets the maximum allowed image size.
func WithMaxSize(maxSize int64) ImageFetcherOption {
	return func(f *ImageFetcher) {
		if maxSize > 0 {
			f.maxSize = maxSize
		}
	}
}

// WithFetchTimeout sets the per-image timeout of the default client.
func WithFetchTimeout(d time.Duration) ImageFetcherOption {
	return func(f *ImageFetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithAllowPrivate lets the default client reach loopback and private
// addresses.
func WithAllowPrivate(allow bool) ImageFetcherOption {
	return func(f *ImageFetcher) {
		f.allowPrivate = allow
	}
}

// NewImageFetcher creates a new image fetcher. Unless a client is supplied,
// it dials through a safehttp transport that refuses non-public addresses.
func NewImageFetcher(opts ...ImageFetcherOption) *ImageFetcher {
	f := &ImageFetcher{
		maxSize: DefaultMaxImageBytes,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: f.timeout}
		if !f.allowPrivate {
			f.client.Transport = safehttp.NewTransport(safehttp.DefaultDialTimeout)
		}
	}
	return f
}

// Fetch returns the image at url as inline data. Data URLs are decoded
// without I/O.
func (f *ImageFetcher) Fetch(ctx context.Context, url string) (domain.Image, error) {
	if strings.HasPrefix(url, "data:") {
		return parseDataURL(url)
	}

	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return domain.Image{}, fmt.Errorf("unsupported URL scheme: must be http:// or https://")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Image{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.Image{}, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Image{}, fmt.Errorf("failed to fetch image: status %d", resp.StatusCode)
	}

	if resp.ContentLength > f.maxSize {
		return domain.Image{}, fmt.Errorf("image too large: %d bytes (max %d)", resp.ContentLength, f.maxSize)
	}

	mediaType := resp.Header.Get("Content-Type")
	if mediaType == "" {
		mediaType = inferMediaType(url)
	}
	if !isSupportedMediaType(mediaType) {
		return domain.Image{}, fmt.Errorf("unsupported media type: %s", mediaType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return domain.Image{}, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > f.maxSize {
		return domain.Image{}, fmt.Errorf("image too large: exceeds %d bytes", f.maxSize)
	}

	return domain.Image{
		MediaType: normalizeMediaType(mediaType),
		Data:      base64.StdEncoding.EncodeToString(data),
	}, nil
}

// parseDataURL accepts only base64 data URLs of supported image types.
func parseDataURL(url string) (domain.Image, error) {
	mediaType, data, ok := domain.ParseDataURL(url)
	if !ok {
		return domain.Image{}, fmt.Errorf("invalid data URL: must be base64 encoded")
	}
	if !isSupportedMediaType(mediaType) {
		return domain.Image{}, fmt.Errorf("unsupported media type: %s", mediaType)
	}
	return domain.Image{MediaType: normalizeMediaType(mediaType), Data: data}, nil
}

// ResolveImages returns a copy of req with every URL image, including those
// inside tool results, replaced by inline data. The input is not modified.
func (f *ImageFetcher) ResolveImages(ctx context.Context, req *domain.Request) (*domain.Request, error) {
	out := *req
	out.Messages = make([]domain.Message, len(req.Messages))
	for i, m := range req.Messages {
		m = m.Clone()
		for j, p := range m.Parts {
			resolved, err := f.resolvePart(ctx, p)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", wirecodec.PartPath(i, j), err)
			}
			m.Parts[j] = resolved
		}
		out.Messages[i] = m
	}
	return &out, nil
}

func (f *ImageFetcher) resolvePart(ctx context.Context, p domain.ContentPart) (domain.ContentPart, error) {
	switch p := p.(type) {
	case domain.Image:
		if p.Inline() {
			return p, nil
		}
		img, err := f.Fetch(ctx, p.URL)
		if err != nil {
			return nil, err
		}
		img.Detail = p.Detail
		return img, nil
	case domain.ToolResult:
		for k, c := range p.Content {
			resolved, err := f.resolvePart(ctx, c)
			if err != nil {
				return nil, fmt.Errorf("content[%d]: %w", k, err)
			}
			p.Content[k] = resolved
		}
		return p, nil
	}
	return p, nil
}

// inferMediaType attempts to infer the media type from a URL.
func inferMediaType(url string) string {
	urlLower := strings.ToLower(url)
	if i := strings.IndexAny(urlLower, "?#"); i >= 0 {
		urlLower = urlLower[:i]
	}

	switch {
	case strings.HasSuffix(urlLower, ".jpg") || strings.HasSuffix(urlLower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(urlLower, ".png"):
		return "image/png"
	case strings.HasSuffix(urlLower, ".gif"):
		return "image/gif"
	case strings.HasSuffix(urlLower, ".webp"):
		return "image/webp"
	default:
		return "image/jpeg" // Default assumption
	}
}

// isSupportedMediaType reports whether every provider accepts the type
// inline.
func isSupportedMediaType(mediaType string) bool {
	switch normalizeMediaType(mediaType) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

// normalizeMediaType drops parameters and maps image/jpg to image/jpeg.
func normalizeMediaType(mediaType string) string {
	mainType := strings.Split(mediaType, ";")[0]
	mainType = strings.TrimSpace(strings.ToLower(mainType))

	if mainType == "image/jpg" {
		return "image/jpeg"
	}
	return mainType
}

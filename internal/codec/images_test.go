package codec

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
	"github.com/tjfontaine/polyglot-llm-wire/internal/pkg/safehttp"
	"github.com/tjfontaine/polyglot-llm-wire/internal/testutil"
)

// newLocalFetcher reaches httptest servers, which listen on loopback.
func newLocalFetcher(opts ...ImageFetcherOption) *ImageFetcher {
	return NewImageFetcher(append(opts, WithAllowPrivate(true))...)
}

func TestImageFetcher_Fetch_HTTPUrl(t *testing.T) {
	imageData := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A} // PNG header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(imageData)
	}))
	defer ts.Close()

	img, err := newLocalFetcher().Fetch(context.Background(), ts.URL+"/test.png")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if !img.Inline() {
		t.Error("Expected inline image")
	}
	if img.MediaType != "image/png" {
		t.Errorf("MediaType = %q, want %q", img.MediaType, "image/png")
	}

	decoded, err := base64.StdEncoding.DecodeString(img.Data)
	if err != nil {
		t.Fatalf("Failed to decode base64: %v", err)
	}
	if len(decoded) != len(imageData) {
		t.Errorf("Decoded data length mismatch: got %d, want %d", len(decoded), len(imageData))
	}
}

func TestImageFetcher_Fetch_PrivateAddressRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png"))
	}))
	defer ts.Close()

	_, err := NewImageFetcher().Fetch(context.Background(), ts.URL+"/test.png")
	if err == nil {
		t.Fatal("Expected error fetching from loopback")
	}
	if !errors.Is(err, safehttp.ErrBlockedAddress) {
		t.Errorf("Expected blocked address error, got: %v", err)
	}
}

func TestImageFetcher_Fetch_DataURL(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("test image data"))

	img, err := NewImageFetcher().Fetch(context.Background(), "data:image/jpg;base64,"+encoded)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if img.MediaType != "image/jpeg" {
		t.Errorf("MediaType = %q, want %q", img.MediaType, "image/jpeg")
	}
	if img.Data != encoded {
		t.Errorf("Data mismatch")
	}
}

func TestImageFetcher_Fetch_Errors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/notfound.png":
			w.WriteHeader(http.StatusNotFound)
		case "/large.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(make([]byte, 1024*1024))
		case "/file.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			w.Write([]byte("not an image"))
		}
	}))
	defer ts.Close()

	tests := []struct {
		name    string
		url     string
		opts    []ImageFetcherOption
		wantErr string
	}{
		{name: "invalid scheme", url: "ftp://example.com/image.png", wantErr: "unsupported URL scheme"},
		{name: "http error", url: ts.URL + "/notfound.png", wantErr: "status 404"},
		{name: "too large", url: ts.URL + "/large.png", opts: []ImageFetcherOption{WithMaxSize(1024)}, wantErr: "too large"},
		{name: "unsupported media type", url: ts.URL + "/file.pdf", wantErr: "unsupported media type"},
		{name: "data url without base64", url: "data:image/jpeg,/9j/4AAQSkZ", wantErr: "invalid data URL"},
		{name: "data url of svg", url: "data:image/svg+xml;base64,PHN2Zz4=", wantErr: "unsupported media type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newLocalFetcher(tt.opts...).Fetch(context.Background(), tt.url)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestImageFetcher_Fetch_Cassette(t *testing.T) {
	r := testutil.NewVCRRecorder(t, "image_fetch")

	fetcher := NewImageFetcher(WithImageHTTPClient(testutil.VCRHTTPClient(r)))
	img, err := fetcher.Fetch(context.Background(), "https://images.example.com/pixel.gif")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if img.MediaType != "image/gif" {
		t.Errorf("MediaType = %q, want %q", img.MediaType, "image/gif")
	}
	if img.Data != base64.StdEncoding.EncodeToString([]byte("GIF89a")) {
		t.Errorf("Data = %q", img.Data)
	}
}

func TestImageFetcher_ResolveImages(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpegbytes"))
	}))
	defer ts.Close()

	url := ts.URL + "/photo.jpeg"
	req := &domain.Request{Messages: []domain.Message{
		{Role: domain.RoleUser, Parts: []domain.ContentPart{
			domain.TextPart("look"),
			domain.Image{URL: url, Detail: domain.ImageDetailHigh},
		}},
		{Role: domain.RoleAssistant, Parts: []domain.ContentPart{domain.ToolCallPart("c1", "snap", "{}")}},
		{Role: domain.RoleTool, Parts: []domain.ContentPart{
			domain.ToolResult{CallID: "c1", Content: []domain.ContentPart{domain.Image{URL: url}}},
		}},
	}}

	out, err := newLocalFetcher().ResolveImages(context.Background(), req)
	if err != nil {
		t.Fatalf("ResolveImages returned error: %v", err)
	}

	img := out.Messages[0].Parts[1].(domain.Image)
	if !img.Inline() || img.MediaType != "image/jpeg" || img.Detail != domain.ImageDetailHigh {
		t.Errorf("resolved image = %+v", img)
	}
	nested := out.Messages[2].Parts[0].(domain.ToolResult).Content[0].(domain.Image)
	if !nested.Inline() {
		t.Error("Expected tool result image to be inlined")
	}

	if orig := req.Messages[2].Parts[0].(domain.ToolResult).Content[0].(domain.Image); orig.Inline() {
		t.Error("ResolveImages modified its input")
	}
}

func TestInferMediaType(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"http://example.com/image.jpg", "image/jpeg"},
		{"http://example.com/image.JPEG", "image/jpeg"},
		{"http://example.com/image.png", "image/png"},
		{"http://example.com/image.png?w=10", "image/png"},
		{"http://example.com/image.gif", "image/gif"},
		{"http://example.com/image.webp", "image/webp"},
		{"http://example.com/image.unknown", "image/jpeg"}, // default
		{"http://example.com/image", "image/jpeg"},         // no extension
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			result := inferMediaType(tt.url)
			if result != tt.expected {
				t.Errorf("inferMediaType(%q) = %q, want %q", tt.url, result, tt.expected)
			}
		})
	}
}

func TestIsSupportedMediaType(t *testing.T) {
	tests := []struct {
		mediaType string
		supported bool
	}{
		{"image/jpeg", true},
		{"image/jpg", true},
		{"image/png", true},
		{"image/gif", true},
		{"image/webp", true},
		{"IMAGE/JPEG", true},
		{"image/jpeg; charset=utf-8", true},
		{"application/pdf", false},
		{"text/html", false},
		{"image/svg+xml", false},
	}

	for _, tt := range tests {
		t.Run(tt.mediaType, func(t *testing.T) {
			result := isSupportedMediaType(tt.mediaType)
			if result != tt.supported {
				t.Errorf("isSupportedMediaType(%q) = %v, want %v", tt.mediaType, result, tt.supported)
			}
		})
	}
}

func TestNormalizeMediaType(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"image/jpeg", "image/jpeg"},
		{"image/jpg", "image/jpeg"},
		{"IMAGE/JPG", "image/jpeg"},
		{"image/png", "image/png"},
		{"image/jpeg; charset=utf-8", "image/jpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := normalizeMediaType(tt.input)
			if result != tt.expected {
				t.Errorf("normalizeMediaType(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

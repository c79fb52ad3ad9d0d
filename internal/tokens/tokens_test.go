package tokens

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"math"
	"testing"

	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
)

func msg(role domain.Role, text string) domain.Message {
	return domain.Message{Role: role, Parts: []domain.ContentPart{domain.TextPart(text)}}
}

func pngImage(t testing.TB, w, h int, detail domain.ImageDetail) domain.Image {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return domain.Image{
		MediaType: "image/png",
		Data:      base64.StdEncoding.EncodeToString(buf.Bytes()),
		Detail:    detail,
	}
}

func TestEstimator_CountTokens(t *testing.T) {
	e := NewEstimator()

	tests := []struct {
		name      string
		view      domain.TokenView
		minTokens int
		maxTokens int
	}{
		{
			name: "simple message",
			view: domain.TokenView{
				Model:    "test-model",
				Messages: []domain.Message{msg(domain.RoleUser, "Hello, how are you?")},
			},
			minTokens: 5,
			maxTokens: 15,
		},
		{
			name: "multiple messages",
			view: domain.TokenView{
				Model: "test-model",
				Messages: []domain.Message{
					msg(domain.RoleUser, "What is 2+2?"),
					msg(domain.RoleAssistant, "2+2 equals 4."),
					msg(domain.RoleUser, "Thanks!"),
				},
			},
			minTokens: 10,
			maxTokens: 30,
		},
		{
			name: "with tools",
			view: domain.TokenView{
				Model:    "test-model",
				Messages: []domain.Message{msg(domain.RoleUser, "Calculate something")},
				Tools: []domain.ToolDefinition{
					{Name: "calculator", Description: "A simple calculator", Parameters: []byte(`{"type":"object"}`)},
				},
			},
			minTokens: 10,
			maxTokens: 40,
		},
		{
			name:      "empty request",
			view:      domain.TokenView{Model: "test-model"},
			minTokens: 0,
			maxTokens: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := e.CountTokens(context.Background(), tt.view)
			if err != nil {
				t.Fatalf("CountTokens() error = %v", err)
			}

			if !resp.Estimated {
				t.Error("expected Estimated to be true for estimator")
			}
			if len(resp.PerMessage) != len(tt.view.Messages) {
				t.Errorf("len(PerMessage) = %d, want %d", len(resp.PerMessage), len(tt.view.Messages))
			}
			if resp.Total < tt.minTokens || resp.Total > tt.maxTokens {
				t.Errorf("CountTokens() = %d, want between %d and %d",
					resp.Total, tt.minTokens, tt.maxTokens)
			}
		})
	}
}

func TestEstimator_SupportsModel(t *testing.T) {
	e := NewEstimator()

	// Estimator should support all models as a fallback
	models := []string{"gpt-4", "claude-3", "unknown-model", ""}
	for _, model := range models {
		if !e.SupportsModel(model) {
			t.Errorf("SupportsModel(%q) = false, want true", model)
		}
	}
}

func TestOpenAICounter_ChatFraming(t *testing.T) {
	c := NewOpenAICounter()
	view := domain.TokenView{
		Model: "gpt-3.5-turbo-1106",
		Messages: []domain.Message{
			msg(domain.RoleSystem, "You are a helpful assistant."),
			msg(domain.RoleUser, "hi, how are you"),
		},
	}

	resp, err := c.CountTokens(context.Background(), view)
	if err != nil {
		t.Fatalf("CountTokens() error = %v", err)
	}
	if resp.Total != 22 {
		t.Errorf("Total = %d, want 22", resp.Total)
	}
	if len(resp.PerMessage) != 2 || resp.PerMessage[0] != 10 || resp.PerMessage[1] != 9 {
		t.Errorf("PerMessage = %v, want [10 9]", resp.PerMessage)
	}
	if resp.Estimated {
		t.Error("expected an exact count")
	}
}

func TestOpenAICounter_Name(t *testing.T) {
	c := NewOpenAICounter()

	tests := []struct {
		model   string
		perName int
	}{
		{"gpt-4o", 1},
		{"gpt-3.5-turbo", -1},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			nameTokens, err := c.CountText(tt.model, "example_user")
			if err != nil {
				t.Fatalf("CountText() error = %v", err)
			}
			plain := msg(domain.RoleUser, "New synergies will help drive top-line growth.")
			named := plain
			named.Name = "example_user"

			without, _, err := c.CountMessages(tt.model, []domain.Message{plain})
			if err != nil {
				t.Fatalf("CountMessages() error = %v", err)
			}
			with, _, err := c.CountMessages(tt.model, []domain.Message{named})
			if err != nil {
				t.Fatalf("CountMessages() error = %v", err)
			}
			if got, want := with[0]-without[0], tt.perName+nameTokens; got != want {
				t.Errorf("name cost = %d, want %d", got, want)
			}
		})
	}
}

func TestOpenAICounter_Images(t *testing.T) {
	c := NewOpenAICounter()

	tests := []struct {
		name          string
		img           domain.Image
		want          int
		wantEstimated bool
	}{
		{"inline auto", pngImage(t, 1000, 500, domain.ImageDetailAuto), 425, false},
		{"inline high", pngImage(t, 1024, 1024, domain.ImageDetailHigh), 765, false},
		{"url low", domain.ImageFromURL("https://example.com/a.png", domain.ImageDetailLow), BaseImageTokens, false},
		{"url auto", domain.ImageFromURL("https://example.com/a.png", domain.ImageDetailAuto), BaseImageTokens, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := domain.Message{Role: domain.RoleUser, Parts: []domain.ContentPart{tt.img}}
			per, estimated, err := c.CountMessages("gpt-4o", []domain.Message{m})
			if err != nil {
				t.Fatalf("CountMessages() error = %v", err)
			}
			if got := per[0] - 3; got != tt.want {
				t.Errorf("image tokens = %d, want %d", got, tt.want)
			}
			if estimated != tt.wantEstimated {
				t.Errorf("estimated = %v, want %v", estimated, tt.wantEstimated)
			}
		})
	}
}

func TestOpenAICounter_ToolsAndCalls(t *testing.T) {
	c := NewOpenAICounter()
	view := domain.TokenView{
		Model: "gpt-4o",
		Messages: []domain.Message{
			msg(domain.RoleUser, "Weather in Paris?"),
			{Role: domain.RoleAssistant, Parts: []domain.ContentPart{
				domain.ToolCallPart("call_1", "get_weather", `{"city":"Paris"}`),
			}},
			{Role: domain.RoleTool, Parts: []domain.ContentPart{
				domain.ToolResultPart("call_1", "sunny"),
			}},
		},
		Tools: []domain.ToolDefinition{
			{Name: "get_weather", Description: "Look up the weather", Parameters: []byte(`{"type":"object","properties":{"city":{"type":"string"}}}`)},
		},
	}

	resp, err := c.CountTokens(context.Background(), view)
	if err != nil {
		t.Fatalf("CountTokens() error = %v", err)
	}
	if resp.Tools <= toolDefinitionTokens {
		t.Errorf("Tools = %d, want more than %d", resp.Tools, toolDefinitionTokens)
	}
	sum := resp.Tools + replyPriming
	for _, n := range resp.PerMessage {
		sum += n
	}
	if resp.Total != sum {
		t.Errorf("Total = %d, want %d", resp.Total, sum)
	}
	if resp.PerMessage[1] <= 3+toolCallOverhead {
		t.Errorf("tool call message = %d, want arguments counted", resp.PerMessage[1])
	}
}

func TestOpenAICounter_SupportsModel(t *testing.T) {
	c := NewOpenAICounter()

	tests := []struct {
		model    string
		expected bool
	}{
		{"gpt-4o", true},
		{"gpt-4-turbo", true},
		{"gpt-3.5-turbo", true},
		{"o1-preview", true},
		{"o3-mini", true},
		{"text-embedding-ada-002", true},
		{"claude-3-sonnet", false},
		{"gemini-1.5-pro", false},
		{"unknown-model", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := c.SupportsModel(tt.model); got != tt.expected {
				t.Errorf("SupportsModel(%q) = %v, want %v", tt.model, got, tt.expected)
			}
		})
	}
}

func TestImageTokens(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		detail domain.ImageDetail
		want   int
	}{
		{"512-auto", 512, 512, domain.ImageDetailAuto, 255},
		{"512-none", 512, 512, "", 255},
		{"512-low", 512, 512, domain.ImageDetailLow, 85},
		{"4096-low", 4096, 8192, domain.ImageDetailLow, 85},
		{"1024-high", 1024, 1024, domain.ImageDetailHigh, 765},
		{"2048-high", 2048, 4096, domain.ImageDetailHigh, 1105},
		{"150-auto", 150, 150, domain.ImageDetailAuto, 255},
		{"1024-auto", 1024, 1024, domain.ImageDetailAuto, 765},
		{"1000-auto", 1000, 500, domain.ImageDetailAuto, 425},
		{"2048-auto", 2048, 1024, domain.ImageDetailAuto, 1105},
		{"4096-auto", 4096, 5801, domain.ImageDetailAuto, 1105},
		{"zero", 0, 100, domain.ImageDetailHigh, 85},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ImageTokens(tt.w, tt.h, tt.detail); got != tt.want {
				t.Errorf("ImageTokens(%d, %d, %q) = %d, want %d", tt.w, tt.h, tt.detail, got, tt.want)
			}
		})
	}
}

func TestImageSize(t *testing.T) {
	w, h, ok := ImageSize(pngImage(t, 300, 200, ""))
	if !ok || w != 300 || h != 200 {
		t.Errorf("ImageSize() = %d, %d, %v, want 300, 200, true", w, h, ok)
	}

	if _, _, ok := ImageSize(domain.Image{MediaType: "image/png", Data: "bm90IGFuIGltYWdl"}); ok {
		t.Error("ImageSize() of garbage reported ok")
	}
	if _, _, ok := ImageSize(domain.ImageFromURL("https://example.com/a.png", "")); ok {
		t.Error("ImageSize() of a URL reported ok")
	}
}

func TestPrice(t *testing.T) {
	tests := []struct {
		model string
		usage domain.Usage
		want  float64
	}{
		{"gpt-4o", domain.Usage{PromptTokens: 1000, CompletionTokens: 1000}, 0.02},
		{"gpt-3.5-turbo", domain.Usage{PromptTokens: 2000, CompletionTokens: 0}, 0.001},
		{"claude-3-haiku-20240307", domain.Usage{PromptTokens: 4000, CompletionTokens: 800}, 0.002},
		{"unknown-model", domain.Usage{PromptTokens: 1000, CompletionTokens: 1000}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := Price(tt.model, tt.usage); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Price(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestRegistry_CountTokens(t *testing.T) {
	// Create registry with OpenAI counter and fallback estimator
	registry := NewDefaultRegistry()

	tests := []struct {
		name          string
		model         string
		wantEstimated bool
	}{
		{"gpt model uses OpenAI counter", "gpt-4o", false},
		{"unknown model uses fallback", "unknown-model", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := domain.TokenView{
				Model:    tt.model,
				Messages: []domain.Message{msg(domain.RoleUser, "Hello")},
			}

			resp, err := registry.CountTokens(context.Background(), view)
			if err != nil {
				t.Fatalf("CountTokens() error = %v", err)
			}
			if resp.Estimated != tt.wantEstimated {
				t.Errorf("Estimated = %v, want %v", resp.Estimated, tt.wantEstimated)
			}
			if resp.Total <= 0 {
				t.Error("expected positive token count")
			}
		})
	}
}

func TestRegistry_NoFallback(t *testing.T) {
	registry := NewRegistry()
	registry.SetFallback(nil)
	if _, err := registry.CountTokens(context.Background(), domain.TokenView{Model: "x"}); err == nil {
		t.Error("expected error without a counter")
	}
}

func TestRegistry_GetCounter(t *testing.T) {
	registry := NewRegistry()
	openaiCounter := NewOpenAICounter()
	registry.Register(openaiCounter)

	// GPT model should get OpenAI counter
	counter := registry.GetCounter("gpt-4o")
	if _, ok := counter.(*OpenAICounter); !ok {
		t.Error("expected OpenAI counter for gpt-4o")
	}

	// Unknown model should get fallback (Estimator)
	counter = registry.GetCounter("unknown-model")
	if _, ok := counter.(*Estimator); !ok {
		t.Error("expected Estimator fallback for unknown model")
	}
}

func TestModelMatcher(t *testing.T) {
	matcher := NewModelMatcher(
		[]string{"gpt-", "claude-"},
		[]string{"davinci", "curie"},
	)

	tests := []struct {
		model    string
		expected bool
	}{
		{"gpt-4", true},
		{"gpt-3.5-turbo", true},
		{"claude-3-opus", true},
		{"davinci", true},
		{"curie", true},
		{"text-davinci-003", false}, // not exact match
		{"llama-2", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := matcher.Matches(tt.model); got != tt.expected {
				t.Errorf("Matches(%q) = %v, want %v", tt.model, got, tt.expected)
			}
		})
	}
}

func BenchmarkOpenAICounter_CountTokens(b *testing.B) {
	c := NewOpenAICounter()
	view := domain.TokenView{
		Model: "gpt-4o",
		Messages: []domain.Message{
			msg(domain.RoleSystem, "You are a helpful assistant that provides detailed answers."),
			msg(domain.RoleUser, "Can you explain quantum computing in simple terms? I'd like to understand the basics of qubits, superposition, and entanglement."),
		},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.CountTokens(context.Background(), view)
	}
}

func BenchmarkEstimator_CountTokens(b *testing.B) {
	e := NewEstimator()
	view := domain.TokenView{
		Model: "test-model",
		Messages: []domain.Message{
			msg(domain.RoleSystem, "You are a helpful assistant that provides detailed answers."),
			msg(domain.RoleUser, "Can you explain quantum computing in simple terms? I'd like to understand the basics of qubits, superposition, and entanglement."),
		},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.CountTokens(context.Background(), view)
	}
}

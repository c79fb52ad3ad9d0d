package codec

import (
	"fmt"
	"net/http"

	"github.com/tjfontaine/polyglot-llm-wire/internal/codec/anthropic"
	"github.com/tjfontaine/polyglot-llm-wire/internal/codec/gemini"
	"github.com/tjfontaine/polyglot-llm-wire/internal/codec/openai"
	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
)

// ErrorResponse is an error envelope rendered for one wire shape.
type ErrorResponse struct {
	StatusCode int
	Body       []byte
}

// ToCanonicalError converts any error to a domain.APIError, classifying
// decode, transcode and stream errors.
func ToCanonicalError(err error) *domain.APIError {
	return domain.AsAPIError(err)
}

// FormatError renders err in the error envelope of apiType. Unknown
// shapes, including MCP, fall back to the OpenAI envelope.
func FormatError(apiType domain.APIType, err error) *ErrorResponse {
	apiErr := ToCanonicalError(err)

	var body []byte
	var ferr error
	switch apiType {
	case domain.APITypeAnthropic:
		body, ferr = anthropic.FormatError(apiErr)
	case domain.APITypeGemini:
		body, ferr = gemini.FormatError(apiErr)
	default:
		body, ferr = openai.FormatError(apiErr)
	}
	if ferr != nil {
		body = []byte(`{"error":{"message":"internal error","type":"server_error"}}`)
		return &ErrorResponse{StatusCode: http.StatusInternalServerError, Body: body}
	}
	return &ErrorResponse{StatusCode: apiErr.HTTPStatusCode(), Body: body}
}

// ParseError decodes a provider error envelope. status is the HTTP status
// the body arrived with, or zero.
func ParseError(apiType domain.APIType, body []byte, status int) (*domain.APIError, error) {
	switch apiType {
	case domain.APITypeOpenAI:
		return openai.ParseError(body, status)
	case domain.APITypeAnthropic:
		return anthropic.ParseError(body, status)
	case domain.APITypeGemini:
		return gemini.ParseError(body, status)
	}
	return nil, fmt.Errorf("parse error envelope: unknown api type %q", apiType)
}

// TranscodeError converts an error envelope between wire shapes, keeping
// the provider's own error type when the target understands it.
func TranscodeError(from, to domain.APIType, body []byte, status int) (*ErrorResponse, error) {
	apiErr, err := ParseError(from, body, status)
	if err != nil {
		return nil, err
	}
	return FormatError(to, apiErr), nil
}

// WriteError writes an error response using the envelope of apiType.
func WriteError(w http.ResponseWriter, err error, apiType domain.APIType) {
	resp := FormatError(apiType, err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}

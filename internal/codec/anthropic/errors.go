package anthropic

import (
	"encoding/json"
	"net/http"

	"github.com/tjfontaine/polyglot-llm-wire/internal/api/anthropic"
	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
)

// APIErrorToDomain converts a Claude error object.
func APIErrorToDomain(e anthropic.APIError) *domain.APIError {
	out := &domain.APIError{
		Message:      e.Message,
		SourceAPI:    target,
		ProviderType: e.Type,
	}
	switch e.Type {
	case "invalid_request_error":
		out.Type = domain.ErrorTypeInvalidRequest
	case "request_too_large":
		out.Type = domain.ErrorTypeInvalidRequest
		out.StatusCode = http.StatusRequestEntityTooLarge
	case "authentication_error":
		out.Type = domain.ErrorTypeAuthentication
	case "permission_error":
		out.Type = domain.ErrorTypePermission
	case "not_found_error":
		out.Type = domain.ErrorTypeNotFound
	case "rate_limit_error":
		out.Type = domain.ErrorTypeRateLimit
	case "overloaded_error":
		out.Type = domain.ErrorTypeOverloaded
	default:
		out.Type = domain.ErrorTypeServer
	}
	return out
}

// DomainErrorType maps a canonical error type onto Claude's vocabulary.
func DomainErrorType(t domain.ErrorType) string {
	switch t {
	case domain.ErrorTypeInvalidRequest, domain.ErrorTypeUnprocessable, domain.ErrorTypeConflict:
		return "invalid_request_error"
	case domain.ErrorTypeAuthentication:
		return "authentication_error"
	case domain.ErrorTypePermission:
		return "permission_error"
	case domain.ErrorTypeNotFound:
		return "not_found_error"
	case domain.ErrorTypeRateLimit:
		return "rate_limit_error"
	case domain.ErrorTypeOverloaded:
		return "overloaded_error"
	default:
		return "api_error"
	}
}

// FormatError renders {"type":"error","error":{...}}.
func FormatError(apiErr *domain.APIError) ([]byte, error) {
	errType := apiErr.ProviderType
	if apiErr.SourceAPI != target || errType == "" {
		errType = DomainErrorType(apiErr.Type)
	}
	return json.Marshal(anthropic.ErrorResponse{Error: anthropic.APIError{Type: errType, Message: apiErr.Message}})
}

// ParseError decodes an error envelope. status is the HTTP status it
// arrived with, or zero.
func ParseError(body []byte, status int) (*domain.APIError, error) {
	resp, err := anthropic.DecodeErrorResponse(body)
	if err != nil {
		return nil, err
	}
	out := APIErrorToDomain(resp.Error)
	if status != 0 {
		out.StatusCode = status
	}
	return out, nil
}

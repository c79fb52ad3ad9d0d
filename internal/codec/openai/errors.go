package openai

import (
	"encoding/json"

	"github.com/tjfontaine/polyglot-llm-wire/internal/api/openai"
	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
)

// APIErrorToDomain converts an OpenAI error object.
func APIErrorToDomain(e *openai.APIError) *domain.APIError {
	out := &domain.APIError{
		Message:      e.Message,
		Param:        e.Param,
		Code:         domain.ErrorCode(e.Code),
		SourceAPI:    target,
		ProviderType: e.Type,
	}
	switch e.Type {
	case "invalid_request_error":
		out.Type = domain.ErrorTypeInvalidRequest
	case "authentication_error":
		out.Type = domain.ErrorTypeAuthentication
	case "permission_denied", "permission_error":
		out.Type = domain.ErrorTypePermission
	case "not_found", "not_found_error":
		out.Type = domain.ErrorTypeNotFound
	case "rate_limit_error", "insufficient_quota":
		out.Type = domain.ErrorTypeRateLimit
	case "service_unavailable":
		out.Type = domain.ErrorTypeOverloaded
	default:
		out.Type = domain.ErrorTypeServer
	}
	return out
}

// DomainErrorType maps a canonical error type onto OpenAI's vocabulary.
func DomainErrorType(t domain.ErrorType) string {
	switch t {
	case domain.ErrorTypeInvalidRequest, domain.ErrorTypeUnprocessable, domain.ErrorTypeConflict:
		return "invalid_request_error"
	case domain.ErrorTypeAuthentication:
		return "authentication_error"
	case domain.ErrorTypePermission:
		return "permission_denied"
	case domain.ErrorTypeNotFound:
		return "not_found"
	case domain.ErrorTypeRateLimit:
		return "rate_limit_error"
	case domain.ErrorTypeOverloaded:
		return "service_unavailable"
	default:
		return "server_error"
	}
}

// FormatError renders {"error":{...}}.
func FormatError(apiErr *domain.APIError) ([]byte, error) {
	errType := apiErr.ProviderType
	if apiErr.SourceAPI != target || errType == "" {
		errType = DomainErrorType(apiErr.Type)
	}
	return json.Marshal(openai.ErrorResponse{Error: &openai.APIError{
		Message: apiErr.Message,
		Type:    errType,
		Param:   apiErr.Param,
		Code:    string(apiErr.Code),
	}})
}

// ParseError decodes an error envelope. status is the HTTP status it
// arrived with, or zero.
func ParseError(body []byte, status int) (*domain.APIError, error) {
	resp, err := openai.DecodeErrorResponse(body)
	if err != nil {
		return nil, err
	}
	out := APIErrorToDomain(resp.Error)
	if status != 0 {
		out.StatusCode = status
	}
	return out, nil
}

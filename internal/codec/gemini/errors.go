package gemini

import (
	"encoding/json"

	"github.com/tjfontaine/polyglot-llm-wire/internal/api/gemini"
	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
)

// APIErrorToDomain converts a Gemini error object, which carries a gRPC
// status name.
func APIErrorToDomain(e *gemini.APIError) *domain.APIError {
	out := &domain.APIError{
		Message:      e.Message,
		StatusCode:   e.Code,
		SourceAPI:    target,
		ProviderType: e.Status,
	}
	switch e.Status {
	case "INVALID_ARGUMENT", "FAILED_PRECONDITION", "OUT_OF_RANGE":
		out.Type = domain.ErrorTypeInvalidRequest
	case "UNAUTHENTICATED":
		out.Type = domain.ErrorTypeAuthentication
	case "PERMISSION_DENIED":
		out.Type = domain.ErrorTypePermission
	case "NOT_FOUND":
		out.Type = domain.ErrorTypeNotFound
	case "RESOURCE_EXHAUSTED":
		out.Type = domain.ErrorTypeRateLimit
	case "UNAVAILABLE", "DEADLINE_EXCEEDED":
		out.Type = domain.ErrorTypeOverloaded
	case "ALREADY_EXISTS", "ABORTED":
		out.Type = domain.ErrorTypeConflict
	default:
		out.Type = domain.ErrorTypeServer
	}
	return out
}

// DomainErrorType maps a canonical error type onto a gRPC status name.
func DomainErrorType(t domain.ErrorType) string {
	switch t {
	case domain.ErrorTypeInvalidRequest, domain.ErrorTypeUnprocessable:
		return "INVALID_ARGUMENT"
	case domain.ErrorTypeConflict:
		return "ALREADY_EXISTS"
	case domain.ErrorTypeAuthentication:
		return "UNAUTHENTICATED"
	case domain.ErrorTypePermission:
		return "PERMISSION_DENIED"
	case domain.ErrorTypeNotFound:
		return "NOT_FOUND"
	case domain.ErrorTypeRateLimit:
		return "RESOURCE_EXHAUSTED"
	case domain.ErrorTypeOverloaded:
		return "UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}

// FormatError renders {"error":{"code":...,"message":...,"status":...}}.
func FormatError(apiErr *domain.APIError) ([]byte, error) {
	status := apiErr.ProviderType
	if apiErr.SourceAPI != target || status == "" {
		status = DomainErrorType(apiErr.Type)
	}
	return json.Marshal(gemini.ErrorResponse{Error: &gemini.APIError{
		Code:    apiErr.HTTPStatusCode(),
		Message: apiErr.Message,
		Status:  status,
	}})
}

// ParseError decodes an error envelope. status overrides the embedded
// code when non-zero.
func ParseError(body []byte, status int) (*domain.APIError, error) {
	resp, err := gemini.DecodeErrorResponse(body)
	if err != nil {
		return nil, err
	}
	out := APIErrorToDomain(resp.Error)
	if status != 0 {
		out.StatusCode = status
	}
	return out, nil
}

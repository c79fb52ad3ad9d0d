package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinels for errors.Is. Each structured error below matches the sentinel
// for its kind.
var (
	ErrUnknownVariant     = errors.New("unknown variant")
	ErrInvalidField       = errors.New("invalid field")
	ErrUnrepresentable    = errors.New("unrepresentable construct")
	ErrUnsupportedPair    = errors.New("unsupported transcoder pair")
	ErrAlreadyClosed      = errors.New("stream already closed")
	ErrAbandoned          = errors.New("stream abandoned")
	ErrNotClosed          = errors.New("stream not closed")
	ErrDuplicateToolName  = errors.New("duplicate tool name")
	ErrRoleContent        = errors.New("content not allowed for role")
	ErrDanglingToolResult = errors.New("tool result without matching call")
)

// SchemaErrorKind distinguishes unknown discriminators from bad fields.
type SchemaErrorKind string

const (
	SchemaUnknownVariant SchemaErrorKind = "unknown_variant"
	SchemaInvalidField   SchemaErrorKind = "invalid_field"
)

// SchemaError reports a malformed or unrecognized wire payload.
type SchemaError struct {
	Kind SchemaErrorKind
	// Path locates the offending value, e.g. "messages[2].content[0]".
	Path string
	// Tag is the discriminator field name and Value the value found there.
	Tag   string
	Value string
	// Raw is the payload that failed to decode.
	Raw json.RawMessage
	Err error
}

// UnknownVariant reports a discriminator value absent from the tag table.
func UnknownVariant(path, tag, value string, raw []byte) *SchemaError {
	return &SchemaError{
		Kind:  SchemaUnknownVariant,
		Path:  path,
		Tag:   tag,
		Value: value,
		Raw:   append(json.RawMessage(nil), raw...),
	}
}

// InvalidField reports a missing or ill-typed field at path.
func InvalidField(path string, err error) *SchemaError {
	return &SchemaError{Kind: SchemaInvalidField, Path: path, Err: err}
}

func (e *SchemaError) Error() string {
	switch e.Kind {
	case SchemaUnknownVariant:
		return fmt.Sprintf("%s: unknown variant %s=%q", e.location(), e.Tag, e.Value)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: invalid field: %v", e.location(), e.Err)
		}
		return fmt.Sprintf("%s: invalid field", e.location())
	}
}

func (e *SchemaError) location() string {
	if e.Path == "" {
		return "$"
	}
	return e.Path
}

func (e *SchemaError) Unwrap() error { return e.Err }

func (e *SchemaError) Is(target error) bool {
	switch target {
	case ErrUnknownVariant:
		return e.Kind == SchemaUnknownVariant
	case ErrInvalidField:
		return e.Kind == SchemaInvalidField
	}
	return false
}

// SchemaErrors is the batch result of a collect-all decode.
type SchemaErrors []*SchemaError

func (es SchemaErrors) Error() string {
	switch len(es) {
	case 0:
		return "no schema errors"
	case 1:
		return es[0].Error()
	}
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d schema errors: %s", len(es), strings.Join(msgs, "; "))
}

// Unwrap exposes each error to errors.Is and errors.As.
func (es SchemaErrors) Unwrap() []error {
	out := make([]error, len(es))
	for i, e := range es {
		out[i] = e
	}
	return out
}

// TranscodeErrorKind classifies transcoding failures.
type TranscodeErrorKind string

const (
	TranscodeUnrepresentable TranscodeErrorKind = "unrepresentable"
	TranscodeUnsupportedPair TranscodeErrorKind = "unsupported_pair"
)

// TranscodeError reports a construct the target shape cannot express.
type TranscodeError struct {
	Kind TranscodeErrorKind
	// Construct names what could not be mapped, e.g. "image_url".
	Construct string
	Reason    string
	// Path locates the construct in the canonical value, e.g. "messages[1].parts[0]".
	Path   string
	Target APIType
	Source APIType
}

// Unrepresentable builds a TranscodeError for target.
func Unrepresentable(target APIType, path, construct, reason string) *TranscodeError {
	return &TranscodeError{
		Kind:      TranscodeUnrepresentable,
		Construct: construct,
		Reason:    reason,
		Path:      path,
		Target:    target,
	}
}

// UnsupportedPair reports a missing entry in the transcoder table.
func UnsupportedPair(from, to APIType, what string) *TranscodeError {
	return &TranscodeError{
		Kind:      TranscodeUnsupportedPair,
		Construct: what,
		Reason:    fmt.Sprintf("no %s transcoder from %s to %s", what, from, to),
		Source:    from,
		Target:    to,
	}
}

func (e *TranscodeError) Error() string {
	if e.Kind == TranscodeUnsupportedPair {
		return e.Reason
	}
	loc := ""
	if e.Path != "" {
		loc = " at " + e.Path
	}
	return fmt.Sprintf("%s cannot represent %s%s: %s", e.Target, e.Construct, loc, e.Reason)
}

func (e *TranscodeError) Is(target error) bool {
	switch target {
	case ErrUnrepresentable:
		return e.Kind == TranscodeUnrepresentable
	case ErrUnsupportedPair:
		return e.Kind == TranscodeUnsupportedPair
	}
	return false
}

// StreamErrorKind classifies chunk-delivery protocol violations.
type StreamErrorKind string

const (
	StreamAlreadyClosed StreamErrorKind = "already_closed"
	StreamAbandoned     StreamErrorKind = "abandoned"
	StreamNotClosed     StreamErrorKind = "not_closed"
)

// StreamError reports chunk delivery that violates the stream lifecycle.
type StreamError struct {
	Kind       StreamErrorKind
	ResponseID string
	// Event is the type of the rejected event, if any.
	Event StreamEventType
}

func (e *StreamError) Error() string {
	switch e.Kind {
	case StreamAlreadyClosed:
		return fmt.Sprintf("stream %q: %s event after close", e.ResponseID, e.Event)
	case StreamAbandoned:
		return fmt.Sprintf("stream %q: %s event after abandon", e.ResponseID, e.Event)
	default:
		return fmt.Sprintf("stream %q: not closed", e.ResponseID)
	}
}

func (e *StreamError) Is(target error) bool {
	switch target {
	case ErrAlreadyClosed:
		return e.Kind == StreamAlreadyClosed
	case ErrAbandoned:
		return e.Kind == StreamAbandoned
	case ErrNotClosed:
		return e.Kind == StreamNotClosed
	}
	return false
}

// ConstructionErrorKind classifies invalid canonical values.
type ConstructionErrorKind string

const (
	ConstructionDuplicateToolName  ConstructionErrorKind = "duplicate_tool_name"
	ConstructionRoleContent        ConstructionErrorKind = "role_content"
	ConstructionDanglingToolResult ConstructionErrorKind = "dangling_tool_result"
)

// ConstructionError is returned by the canonical constructors and validators.
type ConstructionError struct {
	Kind   ConstructionErrorKind
	Path   string
	Detail string
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Detail)
}

func (e *ConstructionError) Is(target error) bool {
	switch target {
	case ErrDuplicateToolName:
		return e.Kind == ConstructionDuplicateToolName
	case ErrRoleContent:
		return e.Kind == ConstructionRoleContent
	case ErrDanglingToolResult:
		return e.Kind == ConstructionDanglingToolResult
	}
	return false
}

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypePermission     ErrorType = "permission"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeOverloaded     ErrorType = "overloaded"
	ErrorTypeServer         ErrorType = "server"
	// ErrorTypeUnprocessable marks a well-formed payload that cannot be
	// mapped onto the requested target.
	ErrorTypeUnprocessable ErrorType = "unprocessable"
	// ErrorTypeConflict marks stream lifecycle violations.
	ErrorTypeConflict ErrorType = "conflict"
)

// ErrorCode provides additional specificity beyond the error type.
type ErrorCode string

const (
	ErrorCodeUnknownVariant  ErrorCode = "unknown_variant"
	ErrorCodeInvalidField    ErrorCode = "invalid_field"
	ErrorCodeUnrepresentable ErrorCode = "unrepresentable"
	ErrorCodeUnsupportedPair ErrorCode = "unsupported_pair"
	ErrorCodeStreamClosed    ErrorCode = "stream_closed"
)

// APIError is the HTTP-facing error rendered into a provider's error
// envelope, and what decoding a provider's error envelope produces.
type APIError struct {
	Type       ErrorType `json:"type"`
	Code       ErrorCode `json:"code,omitempty"`
	Message    string    `json:"message"`
	Param      string    `json:"param,omitempty"`
	StatusCode int       `json:"-"`
	// SourceAPI is the wire shape the error was decoded from, if any.
	SourceAPI APIType `json:"-"`
	// ProviderType keeps the provider's own error type string.
	ProviderType string `json:"-"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *APIError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypePermission:
		return http.StatusForbidden
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeOverloaded:
		return http.StatusServiceUnavailable
	case ErrorTypeUnprocessable:
		return http.StatusUnprocessableEntity
	case ErrorTypeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// NewAPIError creates a new API error.
func NewAPIError(errType ErrorType, message string) *APIError {
	return &APIError{Type: errType, Message: message}
}

func (e *APIError) WithCode(code ErrorCode) *APIError {
	e.Code = code
	return e
}

func (e *APIError) WithParam(param string) *APIError {
	e.Param = param
	return e
}

func (e *APIError) WithStatusCode(code int) *APIError {
	e.StatusCode = code
	return e
}

func (e *APIError) WithSourceAPI(api APIType) *APIError {
	e.SourceAPI = api
	return e
}

// ErrInvalidRequest creates an invalid request error.
func ErrInvalidRequest(message string) *APIError {
	return NewAPIError(ErrorTypeInvalidRequest, message)
}

// ErrNotFound creates a not found error.
func ErrNotFound(message string) *APIError {
	return NewAPIError(ErrorTypeNotFound, message)
}

// ErrServer creates a server error.
func ErrServer(message string) *APIError {
	return NewAPIError(ErrorTypeServer, message)
}

// AsAPIError maps any error onto an APIError, classifying the core error
// taxonomy so callers get a sensible status and code.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		code := ErrorCodeInvalidField
		if schemaErr.Kind == SchemaUnknownVariant {
			code = ErrorCodeUnknownVariant
		}
		return ErrInvalidRequest(err.Error()).WithCode(code).WithParam(schemaErr.Path)
	}

	var transErr *TranscodeError
	if errors.As(err, &transErr) {
		code := ErrorCodeUnrepresentable
		if transErr.Kind == TranscodeUnsupportedPair {
			code = ErrorCodeUnsupportedPair
		}
		return NewAPIError(ErrorTypeUnprocessable, err.Error()).WithCode(code).WithParam(transErr.Path)
	}

	var streamErr *StreamError
	if errors.As(err, &streamErr) {
		return NewAPIError(ErrorTypeConflict, err.Error()).WithCode(ErrorCodeStreamClosed)
	}

	var consErr *ConstructionError
	if errors.As(err, &consErr) {
		return ErrInvalidRequest(err.Error()).WithParam(consErr.Path)
	}

	return ErrServer(err.Error())
}

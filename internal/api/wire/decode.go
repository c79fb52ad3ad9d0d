// Package wire holds the decode plumbing shared by the provider schema
// packages: decode modes, discriminator peeking and JSON-path error
// reporting.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
)

// Mode selects how a decoder reacts to a bad element.
type Mode int

const (
	// FailFast stops at the first schema error.
	FailFast Mode = iota
	// CollectAll skips bad elements, keeps decoding siblings and reports
	// every error at the end.
	CollectAll
)

// ParseMode maps a config string onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "fail_fast", "fail-fast":
		return FailFast, nil
	case "collect_all", "collect-all":
		return CollectAll, nil
	}
	return FailFast, fmt.Errorf("unknown decode mode %q", s)
}

func (m Mode) String() string {
	if m == CollectAll {
		return "collect_all"
	}
	return "fail_fast"
}

// Options configures a decode call.
type Options struct {
	Mode Mode
}

// Decoder accumulates schema errors according to its mode.
type Decoder struct {
	mode Mode
	errs domain.SchemaErrors
}

// NewDecoder returns a decoder for opts.
func NewDecoder(opts Options) *Decoder {
	return &Decoder{mode: opts.Mode}
}

// Fail records err and reports whether decoding must stop. Errors that are
// not schema errors are recorded as InvalidField at path.
func (d *Decoder) Fail(path string, err error) bool {
	var batch domain.SchemaErrors
	var se *domain.SchemaError
	switch {
	case errors.As(err, &batch):
		d.errs = append(d.errs, batch...)
	case errors.As(err, &se):
		d.errs = append(d.errs, se)
	default:
		d.errs = append(d.errs, domain.InvalidField(path, err))
	}
	return d.mode == FailFast
}

// Err returns nil, the single error in fail-fast mode, or the batch.
func (d *Decoder) Err() error {
	if len(d.errs) == 0 {
		return nil
	}
	if d.mode == FailFast {
		return d.errs[0]
	}
	return d.errs
}

// Errors exposes what has been collected so far.
func (d *Decoder) Errors() domain.SchemaErrors { return d.errs }

// Field joins a JSON path with an object key.
func Field(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// Index joins a JSON path with an array index.
func Index(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}

// Kind reports the JSON kind of raw by its first significant byte.
func Kind(raw json.RawMessage) byte {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return 0
	}
	switch c := trimmed[0]; c {
	case '{', '[', '"':
		return c
	case 'n':
		return 'n'
	default:
		return '0'
	}
}

// IsString reports whether raw is a JSON string.
func IsString(raw json.RawMessage) bool { return Kind(raw) == '"' }

// IsArray reports whether raw is a JSON array.
func IsArray(raw json.RawMessage) bool { return Kind(raw) == '[' }

// IsNull reports whether raw is absent or JSON null.
func IsNull(raw json.RawMessage) bool {
	k := Kind(raw)
	return k == 0 || k == 'n'
}

// Unmarshal decodes raw into v, turning encoding errors into InvalidField
// errors that name the offending path.
func Unmarshal(raw json.RawMessage, v any, path string) error {
	if err := json.Unmarshal(raw, v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return domain.InvalidField(Field(path, typeErr.Field), fmt.Errorf("expected %s, got %s", typeErr.Type, typeErr.Value))
		}
		return domain.InvalidField(path, err)
	}
	return nil
}

// Object decodes raw as a JSON object into its raw members.
func Object(raw json.RawMessage, path string) (map[string]json.RawMessage, error) {
	if Kind(raw) != '{' {
		return nil, domain.InvalidField(path, errors.New("expected object"))
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, domain.InvalidField(path, err)
	}
	return obj, nil
}

// Array decodes raw as a JSON array of raw elements.
func Array(raw json.RawMessage, path string) ([]json.RawMessage, error) {
	if Kind(raw) != '[' {
		return nil, domain.InvalidField(path, errors.New("expected array"))
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, domain.InvalidField(path, err)
	}
	return arr, nil
}

// PeekTag reads the string discriminator named field from an object.
func PeekTag(raw json.RawMessage, path, field string) (string, error) {
	obj, err := Object(raw, path)
	if err != nil {
		return "", err
	}
	tagRaw, ok := obj[field]
	if !ok {
		return "", domain.InvalidField(Field(path, field), errors.New("missing discriminator"))
	}
	var tag string
	if err := json.Unmarshal(tagRaw, &tag); err != nil {
		return "", domain.InvalidField(Field(path, field), errors.New("discriminator must be a string"))
	}
	return tag, nil
}

// PeekKeys returns the sorted member names of an object, for externally
// tagged unions whose variant is chosen by which key is present.
func PeekKeys(raw json.RawMessage, path string) ([]string, map[string]json.RawMessage, error) {
	obj, err := Object(raw, path)
	if err != nil {
		return nil, nil, err
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, obj, nil
}

// String decodes a required string member.
func String(obj map[string]json.RawMessage, key, path string) (string, error) {
	raw, ok := obj[key]
	if !ok || IsNull(raw) {
		return "", domain.InvalidField(Field(path, key), errors.New("required"))
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", domain.InvalidField(Field(path, key), errors.New("expected string"))
	}
	return s, nil
}

// OptString decodes an optional string member.
func OptString(obj map[string]json.RawMessage, key, path string) (string, error) {
	raw, ok := obj[key]
	if !ok || IsNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", domain.InvalidField(Field(path, key), errors.New("expected string"))
	}
	return s, nil
}

// Required returns InvalidField unless present.
func Required(present bool, path string) error {
	if present {
		return nil
	}
	return domain.InvalidField(path, errors.New("required"))
}

// VariantDecoder decodes one variant of a tagged union.
type VariantDecoder[T any] func(raw json.RawMessage, path string) (T, error)

// Dispatch peeks the discriminator named field and hands raw to the decoder
// registered for its value in table. Values absent from the table are
// UnknownVariant errors; nothing falls back to a default variant.
func Dispatch[T any](raw json.RawMessage, path, field string, table map[string]VariantDecoder[T]) (T, error) {
	var zero T
	tag, err := PeekTag(raw, path, field)
	if err != nil {
		return zero, err
	}
	decode, ok := table[tag]
	if !ok {
		return zero, domain.UnknownVariant(path, field, tag, raw)
	}
	return decode(raw, path)
}

// DispatchKey decodes an externally tagged union, where the member name
// selects the variant and its value is the payload. Members outside table are
// ignored unless no member matches. tag names the union in errors.
func DispatchKey[T any](raw json.RawMessage, path, tag string, table map[string]VariantDecoder[T]) (T, error) {
	var zero T
	keys, obj, err := PeekKeys(raw, path)
	if err != nil {
		return zero, err
	}
	found := ""
	for _, k := range keys {
		if _, ok := table[k]; !ok {
			continue
		}
		if found != "" {
			return zero, domain.InvalidField(path, fmt.Errorf("%s carries both %q and %q", tag, found, k))
		}
		found = k
	}
	if found == "" {
		if len(keys) == 0 {
			return zero, domain.InvalidField(path, fmt.Errorf("empty %s", tag))
		}
		return zero, domain.UnknownVariant(path, tag, keys[0], raw)
	}
	return table[found](obj[found], Field(path, found))
}

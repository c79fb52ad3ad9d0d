// Package tools builds function tool definitions from Go types.
//
// Schemas are reflected once, when the definition is built. Encoders only
// ever see the resulting bytes.
package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
)

// ErrNotObject is returned when a parameter type does not reflect to an
// object schema.
var ErrNotObject = errors.New("tool parameters must be a JSON object schema")

// stripped are root keywords providers reject or ignore.
var stripped = []string{"$schema", "title", "$defs", "definitions", "$id"}

// Schema reflects the JSON schema of T and normalizes it for use as tool
// parameters.
func Schema[T any]() ([]byte, error) {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("reflect schema: %w", err)
	}
	return normalize(s)
}

func normalize(s *jsonschema.Schema) ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var root map[string]any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	if root["type"] != "object" {
		return nil, fmt.Errorf("%w: got type %v", ErrNotObject, root["type"])
	}
	for _, k := range stripped {
		delete(root, k)
	}
	return json.Marshal(root)
}

// Definition builds a tool definition whose parameters are the schema of T.
func Definition[T any](name, description string) (domain.ToolDefinition, error) {
	params, err := Schema[T]()
	if err != nil {
		return domain.ToolDefinition{}, fmt.Errorf("tool %q: %w", name, err)
	}
	return domain.ToolDefinition{Name: name, Description: description, Parameters: params}, nil
}

// Once returns a function that builds the definition on first call and
// returns the same result afterwards.
func Once[T any](name, description string) func() (domain.ToolDefinition, error) {
	return sync.OnceValues(func() (domain.ToolDefinition, error) {
		return Definition[T](name, description)
	})
}

// Validator checks tool-call arguments against a definition's schema.
type Validator struct {
	name     string
	resolved *jsonschema.Resolved
}

// NewValidator resolves the schema of def. A definition without parameters
// accepts any object.
func NewValidator(def domain.ToolDefinition) (*Validator, error) {
	s := &jsonschema.Schema{Type: "object"}
	if len(def.Parameters) > 0 {
		s = new(jsonschema.Schema)
		if err := json.Unmarshal(def.Parameters, s); err != nil {
			return nil, fmt.Errorf("tool %q: parse schema: %w", def.Name, err)
		}
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("tool %q: resolve schema: %w", def.Name, err)
	}
	return &Validator{name: def.Name, resolved: resolved}, nil
}

// Validate checks the JSON text of a tool call's arguments.
func (v *Validator) Validate(arguments string) error {
	if arguments == "" {
		arguments = "{}"
	}
	var instance any
	if err := json.Unmarshal([]byte(arguments), &instance); err != nil {
		return domain.InvalidField("arguments", fmt.Errorf("tool %q: %w", v.name, err))
	}
	if err := v.resolved.Validate(instance); err != nil {
		return domain.InvalidField("arguments", fmt.Errorf("tool %q: %w", v.name, err))
	}
	return nil
}

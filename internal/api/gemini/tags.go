package gemini

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/tjfontaine/polyglot-llm-wire/internal/api/wire"
	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
)

// partVariants is the member-name tag table for parts.
var partVariants = map[string]wire.VariantDecoder[Part]{
	PartText:             decodeTextPart,
	PartInlineData:       decodeInlineDataPart,
	PartFileData:         decodeFileDataPart,
	PartFunctionCall:     decodeFunctionCallPart,
	PartFunctionResponse: decodeFunctionResponsePart,
}

// toolVariants is the member-name tag table for tools.
var toolVariants = map[string]wire.VariantDecoder[Tool]{
	"functionDeclarations": decodeFunctionDeclarations,
}

// roles maps lowercased role values onto their encoded form.
var roles = map[string]string{
	RoleUser:     RoleUser,
	RoleModel:    RoleModel,
	RoleFunction: RoleFunction,
}

var functionCallingModes = map[string]bool{
	ModeAuto: true,
	ModeAny:  true,
	ModeNone: true,
}

var harmCategories = map[string]bool{
	HarmSexuallyExplicit: true,
	HarmHateSpeech:       true,
	HarmHarassment:       true,
	HarmDangerousContent: true,
	HarmCivicIntegrity:   true,
}

var blockThresholds = map[string]bool{
	BlockUnspecified:    true,
	BlockNone:           true,
	BlockLowAndAbove:    true,
	BlockMediumAndAbove: true,
	BlockOnlyHigh:       true,
}

// DecodePart decodes one part by the member it carries.
func DecodePart(raw json.RawMessage, path string) (Part, error) {
	return wire.DispatchKey(raw, path, "part", partVariants)
}

func decodeTextPart(raw json.RawMessage, path string) (Part, error) {
	if !wire.IsString(raw) {
		return nil, domain.InvalidField(path, errors.New("expected string"))
	}
	var s string
	if err := wire.Unmarshal(raw, &s, path); err != nil {
		return nil, err
	}
	return TextPart{Text: s}, nil
}

func decodeInlineDataPart(raw json.RawMessage, path string) (Part, error) {
	obj, err := wire.Object(raw, path)
	if err != nil {
		return nil, err
	}
	mime, err := wire.String(obj, "mimeType", path)
	if err != nil {
		return nil, err
	}
	data, err := wire.String(obj, "data", path)
	if err != nil {
		return nil, err
	}
	return InlineDataPart{MimeType: mime, Data: data}, nil
}

func decodeFileDataPart(raw json.RawMessage, path string) (Part, error) {
	obj, err := wire.Object(raw, path)
	if err != nil {
		return nil, err
	}
	mime, err := wire.String(obj, "mimeType", path)
	if err != nil {
		return nil, err
	}
	uri, err := wire.String(obj, "fileUri", path)
	if err != nil {
		return nil, err
	}
	return FileDataPart{MimeType: mime, FileURI: uri}, nil
}

func decodeFunctionCallPart(raw json.RawMessage, path string) (Part, error) {
	obj, err := wire.Object(raw, path)
	if err != nil {
		return nil, err
	}
	name, err := wire.String(obj, "name", path)
	if err != nil {
		return nil, err
	}
	id, err := wire.OptString(obj, "id", path)
	if err != nil {
		return nil, err
	}
	part := FunctionCallPart{ID: id, Name: name}
	if args, ok := obj["args"]; ok && !wire.IsNull(args) {
		if wire.Kind(args) != '{' {
			return nil, domain.InvalidField(wire.Field(path, "args"), errors.New("expected object"))
		}
		part.Args = append(json.RawMessage(nil), args...)
	}
	return part, nil
}

func decodeFunctionResponsePart(raw json.RawMessage, path string) (Part, error) {
	obj, err := wire.Object(raw, path)
	if err != nil {
		return nil, err
	}
	name, err := wire.String(obj, "name", path)
	if err != nil {
		return nil, err
	}
	id, err := wire.OptString(obj, "id", path)
	if err != nil {
		return nil, err
	}
	resp, ok := obj["response"]
	if !ok || wire.IsNull(resp) {
		return nil, wire.Required(false, wire.Field(path, "response"))
	}
	if wire.Kind(resp) != '{' {
		return nil, domain.InvalidField(wire.Field(path, "response"), errors.New("expected object"))
	}
	return FunctionResponsePart{ID: id, Name: name, Response: append(json.RawMessage(nil), resp...)}, nil
}

// DecodeContent decodes one turn. Roles are matched case-insensitively;
// roleRequired is false for systemInstruction.
func DecodeContent(raw json.RawMessage, path string, roleRequired bool) (Content, error) {
	var f struct {
		Role  *string         `json:"role"`
		Parts json.RawMessage `json:"parts"`
	}
	if err := wire.Unmarshal(raw, &f, path); err != nil {
		return Content{}, err
	}
	var c Content
	switch {
	case f.Role != nil:
		role, ok := roles[strings.ToLower(*f.Role)]
		if !ok {
			return Content{}, domain.UnknownVariant(path, "role", *f.Role, raw)
		}
		c.Role = role
	case roleRequired:
		return Content{}, wire.Required(false, wire.Field(path, "role"))
	}

	partsPath := wire.Field(path, "parts")
	items, err := objectOrArray(f.Parts, partsPath)
	if err != nil {
		return Content{}, err
	}
	c.Parts = make([]Part, 0, len(items))
	for i, item := range items {
		part, err := DecodePart(item, wire.Index(partsPath, i))
		if err != nil {
			return Content{}, err
		}
		c.Parts = append(c.Parts, part)
	}
	return c, nil
}

// objectOrArray accepts a single object where the schema says array, which
// the Gemini API tolerates for contents, parts and safetySettings.
func objectOrArray(raw json.RawMessage, path string) ([]json.RawMessage, error) {
	switch wire.Kind(raw) {
	case '{':
		return []json.RawMessage{raw}, nil
	case '[':
		return wire.Array(raw, path)
	case 0, 'n':
		return nil, wire.Required(false, path)
	}
	return nil, domain.InvalidField(path, errors.New("expected object or array"))
}

func decodeFunctionDeclarations(raw json.RawMessage, path string) (Tool, error) {
	items, err := wire.Array(raw, path)
	if err != nil {
		return Tool{}, err
	}
	tool := Tool{FunctionDeclarations: make([]FunctionDeclaration, 0, len(items))}
	for i, item := range items {
		itemPath := wire.Index(path, i)
		var f struct {
			Name        *string         `json:"name"`
			Description string          `json:"description"`
			Parameters  json.RawMessage `json:"parameters"`
		}
		if err := wire.Unmarshal(item, &f, itemPath); err != nil {
			return Tool{}, err
		}
		if f.Name == nil {
			return Tool{}, wire.Required(false, wire.Field(itemPath, "name"))
		}
		decl := FunctionDeclaration{Name: *f.Name, Description: f.Description}
		if !wire.IsNull(f.Parameters) {
			decl.Parameters = f.Parameters
		}
		tool.FunctionDeclarations = append(tool.FunctionDeclarations, decl)
	}
	return tool, nil
}

// DecodeTool decodes one tool entry by the member it carries.
func DecodeTool(raw json.RawMessage, path string) (Tool, error) {
	return wire.DispatchKey(raw, path, "tool", toolVariants)
}

// DecodeToolConfig decodes toolConfig, checking the calling mode.
func DecodeToolConfig(raw json.RawMessage, path string) (*ToolConfig, error) {
	var cfg ToolConfig
	if err := wire.Unmarshal(raw, &cfg, path); err != nil {
		return nil, err
	}
	if fc := cfg.FunctionCallingConfig; fc != nil && !functionCallingModes[fc.Mode] {
		return nil, domain.UnknownVariant(wire.Field(path, "functionCallingConfig.mode"), "mode", fc.Mode, raw)
	}
	return &cfg, nil
}

func decodeSafetySetting(raw json.RawMessage, path string) (SafetySetting, error) {
	obj, err := wire.Object(raw, path)
	if err != nil {
		return SafetySetting{}, err
	}
	category, err := wire.String(obj, "category", path)
	if err != nil {
		return SafetySetting{}, err
	}
	if !harmCategories[category] {
		return SafetySetting{}, domain.UnknownVariant(path, "category", category, raw)
	}
	threshold, err := wire.String(obj, "threshold", path)
	if err != nil {
		return SafetySetting{}, err
	}
	if !blockThresholds[threshold] {
		return SafetySetting{}, domain.UnknownVariant(path, "threshold", threshold, raw)
	}
	return SafetySetting{Category: category, Threshold: threshold}, nil
}

package openai

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tjfontaine/polyglot-llm-wire/internal/api/wire"
	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
)

// messageVariants is the "role" tag table for request messages.
var messageVariants = map[string]wire.VariantDecoder[Message]{
	RoleSystem:    decodeSystemMessage,
	RoleDeveloper: decodeSystemMessage,
	RoleUser:      decodeUserMessage,
	RoleAssistant: decodeAssistantMessage,
	RoleTool:      decodeToolMessage,
}

// userPartVariants is the "type" tag table for user content parts.
var userPartVariants = map[string]wire.VariantDecoder[ContentPart]{
	PartTypeText:     decodeTextPart,
	PartTypeImageURL: decodeImagePart,
}

// textPartVariants is the "type" tag table for system, assistant and tool
// content parts, which only admit text.
var textPartVariants = map[string]wire.VariantDecoder[ContentPart]{
	PartTypeText: decodeTextPart,
}

// toolVariants is the "type" tag table for tools.
var toolVariants = map[string]wire.VariantDecoder[Tool]{
	ToolTypeFunction: decodeFunctionTool,
}

// toolCallVariants is the "type" tag table for tool calls.
var toolCallVariants = map[string]wire.VariantDecoder[ToolCall]{
	ToolTypeFunction: decodeFunctionToolCall,
}

// toolChoiceModes lists the string forms of tool_choice.
var toolChoiceModes = map[string]bool{
	ToolChoiceNone:     true,
	ToolChoiceAuto:     true,
	ToolChoiceRequired: true,
}

// toolChoiceVariants is the "type" tag table for the object form of tool_choice.
var toolChoiceVariants = map[string]wire.VariantDecoder[ToolChoice]{
	ToolTypeFunction: decodeFunctionToolChoice,
}

var imageDetails = map[string]bool{
	DetailAuto: true,
	DetailLow:  true,
	DetailHigh: true,
}

// DecodeMessage decodes one request message by its "role" tag.
func DecodeMessage(raw json.RawMessage, path string) (Message, error) {
	return wire.Dispatch(raw, path, "role", messageVariants)
}

func decodeSystemMessage(raw json.RawMessage, path string) (Message, error) {
	var f struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
		Name    string          `json:"name"`
	}
	if err := wire.Unmarshal(raw, &f, path); err != nil {
		return nil, err
	}
	content, err := decodeContent(f.Content, wire.Field(path, "content"), textPartVariants, true)
	if err != nil {
		return nil, err
	}
	return SystemMessage{Content: content, Name: f.Name, Developer: f.Role == RoleDeveloper}, nil
}

func decodeUserMessage(raw json.RawMessage, path string) (Message, error) {
	var f struct {
		Content json.RawMessage `json:"content"`
		Name    string          `json:"name"`
	}
	if err := wire.Unmarshal(raw, &f, path); err != nil {
		return nil, err
	}
	content, err := decodeContent(f.Content, wire.Field(path, "content"), userPartVariants, true)
	if err != nil {
		return nil, err
	}
	return UserMessage{Content: content, Name: f.Name}, nil
}

func decodeAssistantMessage(raw json.RawMessage, path string) (Message, error) {
	m, err := decodeAssistantFields(raw, path)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func decodeAssistantFields(raw json.RawMessage, path string) (AssistantMessage, error) {
	var f struct {
		Content   json.RawMessage `json:"content"`
		Refusal   *string         `json:"refusal"`
		Name      string          `json:"name"`
		ToolCalls json.RawMessage `json:"tool_calls"`
	}
	if err := wire.Unmarshal(raw, &f, path); err != nil {
		return AssistantMessage{}, err
	}
	m := AssistantMessage{Refusal: f.Refusal, Name: f.Name}
	if !wire.IsNull(f.Content) {
		content, err := decodeContent(f.Content, wire.Field(path, "content"), textPartVariants, false)
		if err != nil {
			return AssistantMessage{}, err
		}
		m.Content = &content
	}
	if !wire.IsNull(f.ToolCalls) {
		callsPath := wire.Field(path, "tool_calls")
		items, err := wire.Array(f.ToolCalls, callsPath)
		if err != nil {
			return AssistantMessage{}, err
		}
		m.ToolCalls = make([]ToolCall, 0, len(items))
		for i, item := range items {
			call, err := wire.Dispatch(item, wire.Index(callsPath, i), "type", toolCallVariants)
			if err != nil {
				return AssistantMessage{}, err
			}
			m.ToolCalls = append(m.ToolCalls, call)
		}
	}
	return m, nil
}

func decodeToolMessage(raw json.RawMessage, path string) (Message, error) {
	var f struct {
		Content    json.RawMessage `json:"content"`
		ToolCallID *string         `json:"tool_call_id"`
	}
	if err := wire.Unmarshal(raw, &f, path); err != nil {
		return nil, err
	}
	if err := wire.Required(f.ToolCallID != nil, wire.Field(path, "tool_call_id")); err != nil {
		return nil, err
	}
	content, err := decodeContent(f.Content, wire.Field(path, "content"), textPartVariants, true)
	if err != nil {
		return nil, err
	}
	return ToolMessage{Content: content, ToolCallID: *f.ToolCallID}, nil
}

// decodeContent reads the string-or-array content form.
func decodeContent(raw json.RawMessage, path string, parts map[string]wire.VariantDecoder[ContentPart], required bool) (Content, error) {
	switch {
	case wire.IsNull(raw):
		if required {
			return Content{}, wire.Required(false, path)
		}
		return Content{}, nil
	case wire.IsString(raw):
		var s string
		if err := wire.Unmarshal(raw, &s, path); err != nil {
			return Content{}, err
		}
		return TextContent(s), nil
	case wire.IsArray(raw):
		items, err := wire.Array(raw, path)
		if err != nil {
			return Content{}, err
		}
		out := Content{Array: true, Parts: make([]ContentPart, 0, len(items))}
		for i, item := range items {
			part, err := wire.Dispatch(item, wire.Index(path, i), "type", parts)
			if err != nil {
				return Content{}, err
			}
			out.Parts = append(out.Parts, part)
		}
		return out, nil
	}
	return Content{}, domain.InvalidField(path, errors.New("expected string or array"))
}

func decodeTextPart(raw json.RawMessage, path string) (ContentPart, error) {
	obj, err := wire.Object(raw, path)
	if err != nil {
		return nil, err
	}
	text, err := wire.String(obj, "text", path)
	if err != nil {
		return nil, err
	}
	return TextPart{Text: text}, nil
}

func decodeImagePart(raw json.RawMessage, path string) (ContentPart, error) {
	var f struct {
		ImageURL *struct {
			URL    *string `json:"url"`
			Detail string  `json:"detail"`
		} `json:"image_url"`
	}
	if err := wire.Unmarshal(raw, &f, path); err != nil {
		return nil, err
	}
	imgPath := wire.Field(path, "image_url")
	if f.ImageURL == nil {
		return nil, wire.Required(false, imgPath)
	}
	if f.ImageURL.URL == nil {
		return nil, wire.Required(false, wire.Field(imgPath, "url"))
	}
	if f.ImageURL.Detail != "" && !imageDetails[f.ImageURL.Detail] {
		return nil, domain.InvalidField(wire.Field(imgPath, "detail"), fmt.Errorf("unknown detail %q", f.ImageURL.Detail))
	}
	return ImagePart{ImageURL: ImageURL{URL: *f.ImageURL.URL, Detail: f.ImageURL.Detail}}, nil
}

func decodeFunctionTool(raw json.RawMessage, path string) (Tool, error) {
	var f struct {
		Function *struct {
			Name        *string         `json:"name"`
			Description string          `json:"description"`
			Parameters  json.RawMessage `json:"parameters"`
			Strict      *bool           `json:"strict"`
		} `json:"function"`
	}
	if err := wire.Unmarshal(raw, &f, path); err != nil {
		return Tool{}, err
	}
	fnPath := wire.Field(path, "function")
	if f.Function == nil {
		return Tool{}, wire.Required(false, fnPath)
	}
	if f.Function.Name == nil {
		return Tool{}, wire.Required(false, wire.Field(fnPath, "name"))
	}
	def := FunctionDefinition{
		Name:        *f.Function.Name,
		Description: f.Function.Description,
		Strict:      f.Function.Strict,
	}
	if !wire.IsNull(f.Function.Parameters) {
		def.Parameters = f.Function.Parameters
	}
	return Tool{Function: def}, nil
}

func decodeFunctionToolCall(raw json.RawMessage, path string) (ToolCall, error) {
	var f struct {
		ID       *string `json:"id"`
		Function *struct {
			Name      *string `json:"name"`
			Arguments *string `json:"arguments"`
		} `json:"function"`
	}
	if err := wire.Unmarshal(raw, &f, path); err != nil {
		return ToolCall{}, err
	}
	if f.ID == nil {
		return ToolCall{}, wire.Required(false, wire.Field(path, "id"))
	}
	fnPath := wire.Field(path, "function")
	if f.Function == nil {
		return ToolCall{}, wire.Required(false, fnPath)
	}
	if f.Function.Name == nil {
		return ToolCall{}, wire.Required(false, wire.Field(fnPath, "name"))
	}
	if f.Function.Arguments == nil {
		return ToolCall{}, wire.Required(false, wire.Field(fnPath, "arguments"))
	}
	return ToolCall{ID: *f.ID, Function: FunctionCall{Name: *f.Function.Name, Arguments: *f.Function.Arguments}}, nil
}

// DecodeToolChoice reads the string or object form of tool_choice.
func DecodeToolChoice(raw json.RawMessage, path string) (ToolChoice, error) {
	if wire.IsString(raw) {
		var mode string
		if err := wire.Unmarshal(raw, &mode, path); err != nil {
			return ToolChoice{}, err
		}
		if !toolChoiceModes[mode] {
			return ToolChoice{}, domain.UnknownVariant(path, "tool_choice", mode, raw)
		}
		return ToolChoice{Mode: mode}, nil
	}
	return wire.Dispatch(raw, path, "type", toolChoiceVariants)
}

func decodeFunctionToolChoice(raw json.RawMessage, path string) (ToolChoice, error) {
	var f struct {
		Function *struct {
			Name *string `json:"name"`
		} `json:"function"`
	}
	if err := wire.Unmarshal(raw, &f, path); err != nil {
		return ToolChoice{}, err
	}
	if f.Function == nil || f.Function.Name == nil {
		return ToolChoice{}, wire.Required(false, wire.Field(path, "function.name"))
	}
	return ToolChoice{Function: *f.Function.Name}, nil
}

// DecodeStop reads the string-or-array stop field.
func DecodeStop(raw json.RawMessage, path string) (*Stop, error) {
	if wire.IsNull(raw) {
		return nil, nil
	}
	if wire.IsString(raw) {
		var s string
		if err := wire.Unmarshal(raw, &s, path); err != nil {
			return nil, err
		}
		return &Stop{Values: []string{s}, Single: true}, nil
	}
	var values []string
	if err := wire.Unmarshal(raw, &values, path); err != nil {
		return nil, err
	}
	return &Stop{Values: values}, nil
}

package anthropic

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tjfontaine/polyglot-llm-wire/internal/api/wire"
	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
)

// roleBlockVariants maps each message role to the "type" tag table of the
// blocks it may carry.
var roleBlockVariants = map[string]map[string]wire.VariantDecoder[ContentBlock]{
	RoleUser:      userBlockVariants,
	RoleAssistant: assistantBlockVariants,
}

var userBlockVariants = map[string]wire.VariantDecoder[ContentBlock]{
	BlockTypeText:       decodeTextBlock,
	BlockTypeImage:      decodeImageBlock,
	BlockTypeToolResult: decodeToolResultBlock,
}

var assistantBlockVariants = map[string]wire.VariantDecoder[ContentBlock]{
	BlockTypeText:    decodeTextBlock,
	BlockTypeToolUse: decodeToolUseBlock,
}

// toolResultBlockVariants is the tag table for tool_result content.
var toolResultBlockVariants = map[string]wire.VariantDecoder[ContentBlock]{
	BlockTypeText:  decodeTextBlock,
	BlockTypeImage: decodeImageBlock,
}

// imageSourceVariants is the "type" tag table for image sources.
var imageSourceVariants = map[string]wire.VariantDecoder[ImageSource]{
	SourceTypeBase64: decodeBase64Source,
}

// toolVariants is the "type" tag table for tools. A missing type means a
// custom tool and is handled before dispatch.
var toolVariants = map[string]wire.VariantDecoder[Tool]{
	ToolTypeCustom: decodeCustomTool,
}

// toolChoiceVariants is the "type" tag table for tool_choice.
var toolChoiceVariants = map[string]wire.VariantDecoder[ToolChoice]{
	ToolChoiceAuto: decodeModeToolChoice(ToolChoiceAuto),
	ToolChoiceAny:  decodeModeToolChoice(ToolChoiceAny),
	ToolChoiceNone: decodeModeToolChoice(ToolChoiceNone),
	ToolChoiceTool: decodeNamedToolChoice,
}

// startBlockVariants is the tag table for content_block_start blocks.
var startBlockVariants = assistantBlockVariants

// blockDeltaVariants is the "type" tag table for content_block_delta.
var blockDeltaVariants = map[string]wire.VariantDecoder[BlockDelta]{
	DeltaTypeText:      decodeTextDelta,
	DeltaTypeInputJSON: decodeInputJSONDelta,
}

// DecodeMessage decodes one request message. The role selects which block
// types are allowed in its content.
func DecodeMessage(raw json.RawMessage, path string) (Message, error) {
	role, err := wire.PeekTag(raw, path, "role")
	if err != nil {
		return Message{}, err
	}
	blocks, ok := roleBlockVariants[role]
	if !ok {
		return Message{}, domain.UnknownVariant(path, "role", role, raw)
	}
	var f struct {
		Content json.RawMessage `json:"content"`
	}
	if err := wire.Unmarshal(raw, &f, path); err != nil {
		return Message{}, err
	}
	content, err := decodeContent(f.Content, wire.Field(path, "content"), blocks)
	if err != nil {
		return Message{}, err
	}
	return Message{Role: role, Content: content}, nil
}

func decodeContent(raw json.RawMessage, path string, table map[string]wire.VariantDecoder[ContentBlock]) (Content, error) {
	switch {
	case wire.IsNull(raw):
		return Content{}, wire.Required(false, path)
	case wire.IsString(raw):
		var s string
		if err := wire.Unmarshal(raw, &s, path); err != nil {
			return Content{}, err
		}
		return TextContent(s), nil
	case wire.IsArray(raw):
		blocks, err := decodeBlocks(raw, path, table)
		if err != nil {
			return Content{}, err
		}
		return Content{Blocks: blocks, Array: true}, nil
	}
	return Content{}, domain.InvalidField(path, errors.New("expected string or array"))
}

func decodeBlocks(raw json.RawMessage, path string, table map[string]wire.VariantDecoder[ContentBlock]) ([]ContentBlock, error) {
	items, err := wire.Array(raw, path)
	if err != nil {
		return nil, err
	}
	out := make([]ContentBlock, 0, len(items))
	for i, item := range items {
		block, err := wire.Dispatch(item, wire.Index(path, i), "type", table)
		if err != nil {
			return nil, err
		}
		out = append(out, block)
	}
	return out, nil
}

func decodeTextBlock(raw json.RawMessage, path string) (ContentBlock, error) {
	var f struct {
		Text         *string       `json:"text"`
		CacheControl *CacheControl `json:"cache_control"`
	}
	if err := wire.Unmarshal(raw, &f, path); err != nil {
		return nil, err
	}
	if f.Text == nil {
		return nil, wire.Required(false, wire.Field(path, "text"))
	}
	return TextBlock{Text: *f.Text, CacheControl: f.CacheControl}, nil
}

func decodeImageBlock(raw json.RawMessage, path string) (ContentBlock, error) {
	obj, err := wire.Object(raw, path)
	if err != nil {
		return nil, err
	}
	srcPath := wire.Field(path, "source")
	src, ok := obj["source"]
	if !ok || wire.IsNull(src) {
		return nil, wire.Required(false, srcPath)
	}
	source, err := wire.Dispatch(src, srcPath, "type", imageSourceVariants)
	if err != nil {
		return nil, err
	}
	return ImageBlock{Source: source}, nil
}

func decodeBase64Source(raw json.RawMessage, path string) (ImageSource, error) {
	obj, err := wire.Object(raw, path)
	if err != nil {
		return ImageSource{}, err
	}
	mediaType, err := wire.String(obj, "media_type", path)
	if err != nil {
		return ImageSource{}, err
	}
	data, err := wire.String(obj, "data", path)
	if err != nil {
		return ImageSource{}, err
	}
	return ImageSource{MediaType: mediaType, Data: data}, nil
}

func decodeToolUseBlock(raw json.RawMessage, path string) (ContentBlock, error) {
	obj, err := wire.Object(raw, path)
	if err != nil {
		return nil, err
	}
	id, err := wire.String(obj, "id", path)
	if err != nil {
		return nil, err
	}
	name, err := wire.String(obj, "name", path)
	if err != nil {
		return nil, err
	}
	input, ok := obj["input"]
	if !ok {
		return nil, wire.Required(false, wire.Field(path, "input"))
	}
	if wire.Kind(input) != '{' {
		return nil, domain.InvalidField(wire.Field(path, "input"), errors.New("expected object"))
	}
	return ToolUseBlock{ID: id, Name: name, Input: append(json.RawMessage(nil), input...)}, nil
}

func decodeToolResultBlock(raw json.RawMessage, path string) (ContentBlock, error) {
	var f struct {
		ToolUseID *string         `json:"tool_use_id"`
		Content   json.RawMessage `json:"content"`
		IsError   bool            `json:"is_error"`
	}
	if err := wire.Unmarshal(raw, &f, path); err != nil {
		return nil, err
	}
	if f.ToolUseID == nil {
		return nil, wire.Required(false, wire.Field(path, "tool_use_id"))
	}
	block := ToolResultBlock{ToolUseID: *f.ToolUseID, IsError: f.IsError}
	if !wire.IsNull(f.Content) {
		content, err := decodeContent(f.Content, wire.Field(path, "content"), toolResultBlockVariants)
		if err != nil {
			return nil, err
		}
		block.Content = &content
	}
	return block, nil
}

// DecodeSystem reads the string-or-text-blocks system field.
func DecodeSystem(raw json.RawMessage, path string) (*System, error) {
	if wire.IsNull(raw) {
		return nil, nil
	}
	if wire.IsString(raw) {
		var s string
		if err := wire.Unmarshal(raw, &s, path); err != nil {
			return nil, err
		}
		return &System{Text: s}, nil
	}
	blocks, err := decodeBlocks(raw, path, map[string]wire.VariantDecoder[ContentBlock]{BlockTypeText: decodeTextBlock})
	if err != nil {
		return nil, err
	}
	sys := &System{Array: true, Blocks: make([]TextBlock, 0, len(blocks))}
	for _, b := range blocks {
		sys.Blocks = append(sys.Blocks, b.(TextBlock))
	}
	return sys, nil
}

// DecodeTool decodes one tool definition.
func DecodeTool(raw json.RawMessage, path string) (Tool, error) {
	obj, err := wire.Object(raw, path)
	if err != nil {
		return Tool{}, err
	}
	if _, tagged := obj["type"]; !tagged {
		return decodeCustomTool(raw, path)
	}
	return wire.Dispatch(raw, path, "type", toolVariants)
}

func decodeCustomTool(raw json.RawMessage, path string) (Tool, error) {
	var f struct {
		Type         string          `json:"type"`
		Name         *string         `json:"name"`
		Description  string          `json:"description"`
		InputSchema  json.RawMessage `json:"input_schema"`
		CacheControl *CacheControl   `json:"cache_control"`
	}
	if err := wire.Unmarshal(raw, &f, path); err != nil {
		return Tool{}, err
	}
	if f.Name == nil {
		return Tool{}, wire.Required(false, wire.Field(path, "name"))
	}
	if wire.IsNull(f.InputSchema) {
		return Tool{}, wire.Required(false, wire.Field(path, "input_schema"))
	}
	return Tool{
		Type:         f.Type,
		Name:         *f.Name,
		Description:  f.Description,
		InputSchema:  f.InputSchema,
		CacheControl: f.CacheControl,
	}, nil
}

// DecodeToolChoice decodes tool_choice by its "type" tag.
func DecodeToolChoice(raw json.RawMessage, path string) (ToolChoice, error) {
	return wire.Dispatch(raw, path, "type", toolChoiceVariants)
}

func decodeModeToolChoice(mode string) wire.VariantDecoder[ToolChoice] {
	return func(raw json.RawMessage, path string) (ToolChoice, error) {
		var f struct {
			DisableParallelToolUse *bool `json:"disable_parallel_tool_use"`
		}
		if err := wire.Unmarshal(raw, &f, path); err != nil {
			return ToolChoice{}, err
		}
		return ToolChoice{Type: mode, DisableParallelToolUse: f.DisableParallelToolUse}, nil
	}
}

func decodeNamedToolChoice(raw json.RawMessage, path string) (ToolChoice, error) {
	var f struct {
		Name                   *string `json:"name"`
		DisableParallelToolUse *bool   `json:"disable_parallel_tool_use"`
	}
	if err := wire.Unmarshal(raw, &f, path); err != nil {
		return ToolChoice{}, err
	}
	if f.Name == nil {
		return ToolChoice{}, wire.Required(false, wire.Field(path, "name"))
	}
	return ToolChoice{Type: ToolChoiceTool, Name: *f.Name, DisableParallelToolUse: f.DisableParallelToolUse}, nil
}

func decodeTextDelta(raw json.RawMessage, path string) (BlockDelta, error) {
	obj, err := wire.Object(raw, path)
	if err != nil {
		return nil, err
	}
	text, err := wire.String(obj, "text", path)
	if err != nil {
		return nil, err
	}
	return TextDelta{Text: text}, nil
}

func decodeInputJSONDelta(raw json.RawMessage, path string) (BlockDelta, error) {
	obj, err := wire.Object(raw, path)
	if err != nil {
		return nil, err
	}
	partial, err := wire.String(obj, "partial_json", path)
	if err != nil {
		return nil, err
	}
	return InputJSONDelta{PartialJSON: partial}, nil
}

func decodeAPIError(raw json.RawMessage, path string) (APIError, error) {
	var f struct {
		Type    *string `json:"type"`
		Message string  `json:"message"`
	}
	if err := wire.Unmarshal(raw, &f, path); err != nil {
		return APIError{}, err
	}
	if f.Type == nil {
		return APIError{}, wire.Required(false, wire.Field(path, "type"))
	}
	return APIError{Type: *f.Type, Message: f.Message}, nil
}

func requireIndex(idx *int, path string) (int, error) {
	if idx == nil {
		return 0, wire.Required(false, wire.Field(path, "index"))
	}
	if *idx < 0 {
		return 0, domain.InvalidField(wire.Field(path, "index"), fmt.Errorf("negative index %d", *idx))
	}
	return *idx, nil
}

// Package mcp maps canonical tool definitions, calls and results to and from
// the Model Context Protocol types of the official Go SDK. MCP carries one
// invocation per request and no call ids, so a message holding N calls
// becomes N CallToolParams and ids are re-attached by the caller.
package mcp

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
	"github.com/tjfontaine/polyglot-llm-wire/internal/pkg/codec"
)

const target = domain.APITypeMCP

// emptyObjectSchema is the input schema of a tool that declares none.
var emptyObjectSchema = json.RawMessage(`{"type":"object"}`)

// ToolToMCP converts a tool definition. The parameters schema must be a
// JSON object; a missing schema becomes {"type":"object"}.
func ToolToMCP(t domain.ToolDefinition, index int) (*mcpsdk.Tool, error) {
	schema := emptyObjectSchema
	if len(bytes.TrimSpace(t.Parameters)) > 0 {
		if !isObject(t.Parameters) {
			return nil, domain.Unrepresentable(target, fmt.Sprintf("tools[%d].parameters", index), "tool.parameters", "inputSchema must be a JSON object")
		}
		schema = json.RawMessage(t.Parameters)
	}
	return &mcpsdk.Tool{Name: t.Name, Description: t.Description, InputSchema: schema}, nil
}

// ToolsToMCP converts every definition in order.
func ToolsToMCP(tools []domain.ToolDefinition) ([]*mcpsdk.Tool, error) {
	out := make([]*mcpsdk.Tool, 0, len(tools))
	for i, t := range tools {
		mt, err := ToolToMCP(t, i)
		if err != nil {
			return nil, err
		}
		out = append(out, mt)
	}
	return out, nil
}

// ToolFromMCP converts an MCP tool. InputSchema may be any JSON-marshalable
// value; nil becomes {"type":"object"}.
func ToolFromMCP(t *mcpsdk.Tool) (domain.ToolDefinition, error) {
	def := domain.ToolDefinition{Name: t.Name, Description: t.Description, Parameters: []byte(emptyObjectSchema)}
	if t.InputSchema == nil {
		return def, nil
	}
	raw, err := json.Marshal(t.InputSchema)
	if err != nil {
		return domain.ToolDefinition{}, domain.InvalidField("inputSchema", err)
	}
	if string(raw) != "null" {
		def.Parameters = raw
	}
	return def, nil
}

// ToolsFromMCP converts a tool list, rejecting repeated names.
func ToolsFromMCP(tools []*mcpsdk.Tool) ([]domain.ToolDefinition, error) {
	out := make([]domain.ToolDefinition, 0, len(tools))
	for i, t := range tools {
		def, err := ToolFromMCP(t)
		if err != nil {
			if se, ok := err.(*domain.SchemaError); ok {
				se.Path = fmt.Sprintf("tools[%d].%s", i, se.Path)
			}
			return nil, err
		}
		out = append(out, def)
	}
	err := codec.CheckToolNames(out, func(i int) string { return fmt.Sprintf("tools[%d].name", i) })
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CallToMCP converts one tool call. Arguments must be a JSON object; empty
// arguments become {}.
func CallToMCP(call domain.ToolCall, path string) (*mcpsdk.CallToolParams, error) {
	args := bytes.TrimSpace([]byte(call.Arguments))
	if len(args) == 0 {
		args = []byte("{}")
	}
	if !isObject(args) {
		return nil, domain.Unrepresentable(target, path, "tool_call.arguments", "arguments must be a JSON object")
	}
	return &mcpsdk.CallToolParams{Name: call.Name, Arguments: json.RawMessage(args)}, nil
}

// MessageToCalls splits an assistant message into one invocation per tool
// call, in order. Text parts are skipped.
func MessageToCalls(m domain.Message, index int) ([]*mcpsdk.CallToolParams, error) {
	var out []*mcpsdk.CallToolParams
	for j, p := range m.Parts {
		call, ok := p.(domain.ToolCall)
		if !ok {
			continue
		}
		params, err := CallToMCP(call, codec.PartPath(index, j))
		if err != nil {
			return nil, err
		}
		out = append(out, params)
	}
	return out, nil
}

// CallFromMCP converts one invocation. An empty id is replaced with the
// deterministic id for the tool name and ordinal.
func CallFromMCP(params *mcpsdk.CallToolParams, id string, ordinal int) (domain.ToolCall, error) {
	if id == "" {
		id = domain.SyntheticCallID(params.Name, ordinal)
	}
	args := "{}"
	if params.Arguments != nil {
		raw, err := json.Marshal(params.Arguments)
		if err != nil {
			return domain.ToolCall{}, domain.InvalidField("arguments", err)
		}
		if string(raw) != "null" {
			if !isObject(raw) {
				return domain.ToolCall{}, domain.InvalidField("arguments", fmt.Errorf("want a JSON object, got %s", raw))
			}
			args = string(raw)
		}
	}
	return domain.ToolCallPart(id, params.Name, args), nil
}

// CallsToMessage joins a sequence of invocations into one assistant
// message. ids may be shorter than calls; missing ids are synthesized.
func CallsToMessage(calls []*mcpsdk.CallToolParams, ids []string) (domain.Message, error) {
	msg := domain.Message{Role: domain.RoleAssistant, Parts: make([]domain.ContentPart, 0, len(calls))}
	ordinals := make(map[string]int)
	for i, params := range calls {
		var id string
		if i < len(ids) {
			id = ids[i]
		}
		call, err := CallFromMCP(params, id, ordinals[params.Name])
		if err != nil {
			if se, ok := err.(*domain.SchemaError); ok {
				se.Path = fmt.Sprintf("calls[%d].%s", i, se.Path)
			}
			return domain.Message{}, err
		}
		ordinals[params.Name]++
		msg.Parts = append(msg.Parts, call)
	}
	return msg, nil
}

// ResultToMCP converts a tool result. Inline images become image content;
// images referenced by URL have no MCP form.
func ResultToMCP(result domain.ToolResult, path string) (*mcpsdk.CallToolResult, error) {
	out := &mcpsdk.CallToolResult{IsError: result.IsError, Content: make([]mcpsdk.Content, 0, len(result.Content))}
	for k, p := range result.Content {
		switch p := p.(type) {
		case domain.Text:
			out.Content = append(out.Content, &mcpsdk.TextContent{Text: p.Text})
		case domain.Image:
			at := fmt.Sprintf("%s.content[%d]", path, k)
			if !p.Inline() {
				return nil, domain.Unrepresentable(target, at, "image_url", "image content must carry its data")
			}
			data, err := base64.StdEncoding.DecodeString(p.Data)
			if err != nil {
				return nil, domain.Unrepresentable(target, at, "image", "image data is not valid base64")
			}
			out.Content = append(out.Content, &mcpsdk.ImageContent{Data: data, MIMEType: p.MediaType})
		default:
			return nil, domain.Unrepresentable(target, fmt.Sprintf("%s.content[%d]", path, k), string(p.Kind()), "not allowed in a tool result")
		}
	}
	return out, nil
}

// ResultFromMCP converts a tool result for the call with the given id.
// Audio, resource links and embedded resources have no canonical form.
func ResultFromMCP(callID string, result *mcpsdk.CallToolResult) (domain.ToolResult, error) {
	out := domain.ToolResult{CallID: callID, IsError: result.IsError}
	for k, c := range result.Content {
		switch c := c.(type) {
		case *mcpsdk.TextContent:
			out.Content = append(out.Content, domain.TextPart(c.Text))
		case *mcpsdk.ImageContent:
			out.Content = append(out.Content, domain.Image{
				MediaType: c.MIMEType,
				Data:      base64.StdEncoding.EncodeToString(c.Data),
			})
		default:
			return domain.ToolResult{}, domain.Unrepresentable(target, fmt.Sprintf("content[%d]", k), fmt.Sprintf("%T", c), "only text and image content map to a tool result")
		}
	}
	if len(out.Content) == 0 && result.StructuredContent != nil {
		raw, err := json.Marshal(result.StructuredContent)
		if err != nil {
			return domain.ToolResult{}, domain.InvalidField("structuredContent", err)
		}
		out.Content = []domain.ContentPart{domain.TextPart(string(raw))}
	}
	return out, nil
}

func isObject(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{' && json.Valid(raw)
}

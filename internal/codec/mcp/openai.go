package mcp

import (
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tjfontaine/polyglot-llm-wire/internal/api/openai"
	openaicodec "github.com/tjfontaine/polyglot-llm-wire/internal/codec/openai"
	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
)

// Invocation is one MCP tool call together with the OpenAI id it answers to.
type Invocation struct {
	CallID string
	Params *mcpsdk.CallToolParams
}

// FromOpenAITools converts OpenAI function tools to MCP tools.
func FromOpenAITools(tools []openai.Tool) ([]*mcpsdk.Tool, error) {
	defs := make([]domain.ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = domain.ToolDefinition{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  []byte(t.Function.Parameters),
		}
	}
	return ToolsToMCP(defs)
}

// ToOpenAITools converts MCP tools to OpenAI function tools.
func ToOpenAITools(tools []*mcpsdk.Tool) ([]openai.Tool, error) {
	defs, err := ToolsFromMCP(tools)
	if err != nil {
		return nil, err
	}
	out := make([]openai.Tool, len(defs))
	for i, d := range defs {
		out[i] = openai.Tool{Function: openai.FunctionDefinition{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		}}
	}
	return out, nil
}

// FromOpenAIToolCalls splits an assistant message's tool_calls into one
// invocation per call.
func FromOpenAIToolCalls(m openai.AssistantMessage) ([]Invocation, error) {
	msg := openaicodec.APIMessageToCanonical(m)
	out := make([]Invocation, 0, len(m.ToolCalls))
	for _, p := range msg.Parts {
		call, ok := p.(domain.ToolCall)
		if !ok {
			continue
		}
		params, err := CallToMCP(call, fmt.Sprintf("tool_calls[%d]", len(out)))
		if err != nil {
			return nil, err
		}
		out = append(out, Invocation{CallID: call.ID, Params: params})
	}
	return out, nil
}

// ToOpenAIToolMessage converts an MCP result into the OpenAI tool message
// answering callID. Error results and image content have no OpenAI form.
func ToOpenAIToolMessage(callID string, result *mcpsdk.CallToolResult) (openai.Message, error) {
	tr, err := ResultFromMCP(callID, result)
	if err != nil {
		return nil, err
	}
	msgs, err := openaicodec.CanonicalToAPIMessages(domain.Message{Role: domain.RoleTool, Parts: []domain.ContentPart{tr}}, 0)
	if err != nil {
		return nil, err
	}
	return msgs[0], nil
}

// Package openai provides a codec for converting between the OpenAI
// chat-completions shape and the canonical model.
package openai

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tjfontaine/polyglot-llm-wire/internal/api/openai"
	"github.com/tjfontaine/polyglot-llm-wire/internal/api/wire"
	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
	"github.com/tjfontaine/polyglot-llm-wire/internal/pkg/codec"
)

const target = domain.APITypeOpenAI

// FinishReasons maps OpenAI finish_reason strings. The legacy function_call
// value decodes to tool calls and is re-emitted as-is.
var FinishReasons = domain.NewFinishTable([]domain.FinishMapping{
	{Raw: openai.FinishStop, Kind: domain.FinishStop},
	{Raw: openai.FinishLength, Kind: domain.FinishLength},
	{Raw: openai.FinishToolCalls, Kind: domain.FinishToolCalls},
	{Raw: openai.FinishContentFilter, Kind: domain.FinishContentFilter},
	{Raw: openai.FinishFunctionCall, Kind: domain.FinishToolCalls},
}...)

// Codec implements codec.Codec for the OpenAI chat-completions format.
type Codec struct {
	opts codec.Options
}

// New creates a new OpenAI codec.
func New(opts ...codec.Option) *Codec {
	return &Codec{opts: codec.ApplyOptions(opts...)}
}

// APIType returns domain.APITypeOpenAI.
func (c *Codec) APIType() domain.APIType {
	return target
}

// DecodeRequest converts OpenAI request JSON to canonical format.
func (c *Codec) DecodeRequest(data []byte) (*domain.Request, error) {
	apiReq, err := openai.DecodeRequest(data, c.opts.Decode)
	if apiReq == nil {
		return nil, fmt.Errorf("decode openai request: %w", err)
	}
	req, convErr := APIRequestToCanonical(apiReq)
	if convErr != nil {
		return nil, fmt.Errorf("decode openai request: %w", convErr)
	}
	if err != nil {
		return req, fmt.Errorf("decode openai request: %w", err)
	}
	return req, nil
}

// EncodeRequest converts a canonical request to OpenAI request JSON.
func (c *Codec) EncodeRequest(req *domain.Request) ([]byte, error) {
	apiReq, err := CanonicalToAPIRequest(req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(apiReq)
}

// DecodeResponse converts OpenAI chat.completion JSON to canonical format.
func (c *Codec) DecodeResponse(data []byte) (*domain.Response, error) {
	apiResp, err := openai.DecodeCompletion(data, c.opts.Decode)
	if apiResp == nil {
		return nil, fmt.Errorf("decode openai response: %w", err)
	}
	resp := APIResponseToCanonical(apiResp)
	if err != nil {
		return resp, fmt.Errorf("decode openai response: %w", err)
	}
	return resp, nil
}

// EncodeResponse converts a canonical response to chat.completion JSON.
func (c *Codec) EncodeResponse(resp *domain.Response) ([]byte, error) {
	apiResp, err := CanonicalToAPIResponse(resp)
	if err != nil {
		return nil, err
	}
	return json.Marshal(apiResp)
}

// DecodeStreamChunk converts one SSE data payload, including the [DONE]
// sentinel, to canonical events.
func (c *Codec) DecodeStreamChunk(data []byte) ([]domain.StreamEvent, error) {
	sd, err := openai.DecodeStreamData(data)
	if err != nil {
		return nil, fmt.Errorf("decode openai chunk: %w", err)
	}
	return APIChunkToCanonical(sd)
}

// EncodeStreamChunk converts a canonical event to an SSE data payload.
// Block stops and pings have no OpenAI form.
func (c *Codec) EncodeStreamChunk(event domain.StreamEvent, metadata *codec.StreamMetadata) ([]byte, error) {
	sd, ok := CanonicalToAPIChunk(event, metadata)
	if !ok {
		return nil, nil
	}
	return sd.Encode()
}

// APIRequestToCanonical converts an OpenAI request to canonical format.
func APIRequestToCanonical(apiReq *openai.ChatCompletionRequest) (*domain.Request, error) {
	req := &domain.Request{
		Model:       apiReq.Model,
		Temperature: apiReq.Temperature,
		TopP:        apiReq.TopP,
		Candidates:  apiReq.N,
		Stream:      apiReq.Stream,
		User:        apiReq.User,
	}

	// Prefer max_completion_tokens over max_tokens
	if apiReq.MaxCompletionTokens != nil {
		req.MaxTokens = apiReq.MaxCompletionTokens
		req.MaxCompletionTokens = true
	} else {
		req.MaxTokens = apiReq.MaxTokens
	}
	if apiReq.Stop != nil {
		req.Stop = append([]string(nil), apiReq.Stop.Values...)
	}

	req.Messages = make([]domain.Message, 0, len(apiReq.Messages))
	for _, m := range apiReq.Messages {
		req.Messages = append(req.Messages, APIMessageToCanonical(m))
	}

	if len(apiReq.Tools) > 0 {
		req.Tools = make([]domain.ToolDefinition, len(apiReq.Tools))
		for i, t := range apiReq.Tools {
			req.Tools[i] = domain.ToolDefinition{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  []byte(t.Function.Parameters),
			}
		}
		err := codec.CheckToolNames(req.Tools, func(i int) string {
			return wire.Field(wire.Index("tools", i), "function.name")
		})
		if err != nil {
			return nil, err
		}
	}

	if tc := apiReq.ToolChoice; tc != nil {
		if tc.Function != "" {
			req.ToolChoice = &domain.ToolChoice{Mode: domain.ToolChoiceFunction, Name: tc.Function}
		} else {
			req.ToolChoice = &domain.ToolChoice{Mode: domain.ToolChoiceMode(tc.Mode)}
		}
	}

	return req, nil
}

// APIMessageToCanonical converts one request message. Developer messages
// become system messages.
func APIMessageToCanonical(m openai.Message) domain.Message {
	switch m := m.(type) {
	case openai.SystemMessage:
		return domain.Message{Role: domain.RoleSystem, Name: m.Name, Parts: contentToParts(m.Content)}
	case openai.UserMessage:
		return domain.Message{Role: domain.RoleUser, Name: m.Name, Parts: contentToParts(m.Content)}
	case openai.AssistantMessage:
		return assistantToCanonical(m)
	case openai.ToolMessage:
		result := domain.ToolResult{CallID: m.ToolCallID, Content: contentToParts(m.Content)}
		return domain.Message{Role: domain.RoleTool, Parts: []domain.ContentPart{result}}
	}
	panic(fmt.Sprintf("openai: unhandled message variant %T", m))
}

func assistantToCanonical(m openai.AssistantMessage) domain.Message {
	msg := domain.Message{Role: domain.RoleAssistant, Name: m.Name}
	if m.Content != nil {
		msg.Parts = append(msg.Parts, contentToParts(*m.Content)...)
	}
	if m.Refusal != nil {
		msg.Parts = append(msg.Parts, domain.Text{Text: *m.Refusal, Refusal: true})
	}
	for _, tc := range m.ToolCalls {
		msg.Parts = append(msg.Parts, domain.ToolCallPart(tc.ID, tc.Function.Name, tc.Function.Arguments))
	}
	return msg
}

func contentToParts(c openai.Content) []domain.ContentPart {
	if !c.Array {
		return []domain.ContentPart{domain.TextPart(c.Text)}
	}
	if len(c.Parts) == 0 {
		return nil
	}
	parts := make([]domain.ContentPart, 0, len(c.Parts))
	for _, p := range c.Parts {
		switch p := p.(type) {
		case openai.TextPart:
			parts = append(parts, domain.TextPart(p.Text))
		case openai.ImagePart:
			parts = append(parts, domain.ImageFromURL(p.ImageURL.URL, domain.ImageDetail(p.ImageURL.Detail)))
		}
	}
	return parts
}

// CanonicalToAPIRequest converts a canonical request to OpenAI format.
func CanonicalToAPIRequest(req *domain.Request) (*openai.ChatCompletionRequest, error) {
	if req.TopK != nil {
		return nil, domain.Unrepresentable(target, "top_k", "top_k", "no top-k sampling parameter")
	}

	apiReq := &openai.ChatCompletionRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		N:           req.Candidates,
		Stream:      req.Stream,
		User:        req.User,
	}
	if req.MaxCompletionTokens {
		apiReq.MaxCompletionTokens = req.MaxTokens
	} else {
		apiReq.MaxTokens = req.MaxTokens
	}
	if len(req.Stop) > 0 {
		apiReq.Stop = &openai.Stop{Values: append([]string(nil), req.Stop...), Single: len(req.Stop) == 1}
	}

	apiReq.Messages = make([]openai.Message, 0, len(req.Messages))
	for i, m := range req.Messages {
		msgs, err := CanonicalToAPIMessages(m, i)
		if err != nil {
			return nil, err
		}
		apiReq.Messages = append(apiReq.Messages, msgs...)
	}

	for _, t := range req.Tools {
		def := openai.FunctionDefinition{Name: t.Name, Description: t.Description}
		if len(t.Parameters) > 0 {
			def.Parameters = json.RawMessage(t.Parameters)
		}
		apiReq.Tools = append(apiReq.Tools, openai.Tool{Function: def})
	}

	if tc := req.ToolChoice; tc != nil {
		if tc.Mode == domain.ToolChoiceFunction {
			apiReq.ToolChoice = &openai.ToolChoice{Function: tc.Name}
		} else {
			apiReq.ToolChoice = &openai.ToolChoice{Mode: string(tc.Mode)}
		}
	}

	return apiReq, nil
}

// CanonicalToAPIMessages converts one canonical message. A tool message
// becomes one OpenAI tool message per result.
func CanonicalToAPIMessages(m domain.Message, index int) ([]openai.Message, error) {
	switch m.Role {
	case domain.RoleSystem:
		content, err := textContent(m.Parts, index)
		if err != nil {
			return nil, err
		}
		return []openai.Message{openai.SystemMessage{Content: content, Name: m.Name}}, nil

	case domain.RoleUser:
		content, err := userContent(m.Parts, index)
		if err != nil {
			return nil, err
		}
		return []openai.Message{openai.UserMessage{Content: content, Name: m.Name}}, nil

	case domain.RoleAssistant:
		msg, err := assistantMessage(m, func(j int) string { return codec.PartPath(index, j) })
		if err != nil {
			return nil, err
		}
		return []openai.Message{msg}, nil

	case domain.RoleTool:
		out := make([]openai.Message, 0, len(m.Parts))
		for j, p := range m.Parts {
			path := codec.PartPath(index, j)
			result, ok := p.(domain.ToolResult)
			if !ok {
				return nil, domain.Unrepresentable(target, path, string(p.Kind()), "tool messages carry only tool results")
			}
			if result.IsError {
				return nil, domain.Unrepresentable(target, path, "tool_result.is_error", "tool messages have no error flag")
			}
			content, err := textContent(result.Content, index)
			if err != nil {
				return nil, domain.Unrepresentable(target, path, "image", "tool message content is text only")
			}
			out = append(out, openai.ToolMessage{Content: content, ToolCallID: result.CallID})
		}
		return out, nil
	}
	return nil, domain.Unrepresentable(target, codec.MessagePath(index), "role", fmt.Sprintf("unknown role %q", m.Role))
}

var errNotText = errors.New("non-text part")

// textContent uses the string form for exactly one text part.
func textContent(parts []domain.ContentPart, index int) (openai.Content, error) {
	if len(parts) == 1 {
		if t, ok := parts[0].(domain.Text); ok {
			return openai.TextContent(t.Text), nil
		}
	}
	out := make([]openai.ContentPart, 0, len(parts))
	for j, p := range parts {
		t, ok := p.(domain.Text)
		if !ok {
			return openai.Content{}, fmt.Errorf("%s: %w", codec.PartPath(index, j), errNotText)
		}
		out = append(out, openai.TextPart{Text: t.Text})
	}
	return openai.PartsContent(out...), nil
}

func userContent(parts []domain.ContentPart, index int) (openai.Content, error) {
	if len(parts) == 1 {
		if t, ok := parts[0].(domain.Text); ok {
			return openai.TextContent(t.Text), nil
		}
	}
	out := make([]openai.ContentPart, 0, len(parts))
	for j, p := range parts {
		switch p := p.(type) {
		case domain.Text:
			out = append(out, openai.TextPart{Text: p.Text})
		case domain.Image:
			out = append(out, openai.ImagePart{ImageURL: openai.ImageURL{URL: p.DataURL(), Detail: string(p.Detail)}})
		default:
			return openai.Content{}, domain.Unrepresentable(target, codec.PartPath(index, j), string(p.Kind()), "not allowed in user content")
		}
	}
	return openai.PartsContent(out...), nil
}

// assistantMessage keeps text ahead of tool calls; OpenAI has no way to
// order text after a call. Refusal text goes to the refusal field.
func assistantMessage(m domain.Message, pathOf func(int) string) (openai.AssistantMessage, error) {
	msg := openai.AssistantMessage{Name: m.Name}
	var texts []openai.ContentPart
	for j, p := range m.Parts {
		switch p := p.(type) {
		case domain.Text:
			if len(msg.ToolCalls) > 0 {
				return openai.AssistantMessage{}, domain.Unrepresentable(target, pathOf(j), "text", "text after a tool call")
			}
			if p.Refusal {
				refusal := p.Text
				if msg.Refusal != nil {
					refusal = *msg.Refusal + refusal
				}
				msg.Refusal = &refusal
				continue
			}
			if msg.Refusal != nil {
				return openai.AssistantMessage{}, domain.Unrepresentable(target, pathOf(j), "text", "content after a refusal")
			}
			texts = append(texts, openai.TextPart{Text: p.Text})
		case domain.ToolCall:
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:       p.ID,
				Function: openai.FunctionCall{Name: p.Name, Arguments: p.Arguments},
			})
		default:
			return openai.AssistantMessage{}, domain.Unrepresentable(target, pathOf(j), string(p.Kind()), "not allowed in assistant messages")
		}
	}
	switch len(texts) {
	case 0:
	case 1:
		content := openai.TextContent(texts[0].(openai.TextPart).Text)
		msg.Content = &content
	default:
		content := openai.PartsContent(texts...)
		msg.Content = &content
	}
	return msg, nil
}

// APIResponseToCanonical converts a chat.completion to canonical format.
func APIResponseToCanonical(apiResp *openai.ChatCompletion) *domain.Response {
	resp := &domain.Response{
		ID:                apiResp.ID,
		Model:             apiResp.Model,
		Created:           apiResp.Created,
		SystemFingerprint: apiResp.SystemFingerprint,
		Choices:           make([]domain.Choice, len(apiResp.Choices)),
	}
	for i, c := range apiResp.Choices {
		resp.Choices[i] = domain.Choice{Index: c.Index, Message: assistantToCanonical(c.Message)}
		if c.FinishReason != nil {
			resp.Choices[i].FinishReason = FinishReasons.Decode(*c.FinishReason)
		}
	}
	if u := apiResp.Usage; u != nil {
		resp.Usage = &domain.Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	return resp
}

// CanonicalToAPIResponse converts a canonical response to a chat.completion.
func CanonicalToAPIResponse(resp *domain.Response) (*openai.ChatCompletion, error) {
	apiResp := &openai.ChatCompletion{
		ID:                resp.ID,
		Object:            openai.ObjectChatCompletion,
		Created:           resp.Created,
		Model:             resp.Model,
		SystemFingerprint: resp.SystemFingerprint,
		Choices:           make([]openai.Choice, len(resp.Choices)),
	}
	for i, c := range resp.Choices {
		if c.Message.Role != domain.RoleAssistant {
			return nil, domain.Unrepresentable(target, fmt.Sprintf("choices[%d].message.role", i), "role", "choices carry assistant messages")
		}
		msg, err := assistantMessage(c.Message, func(j int) string { return codec.ChoicePath(i, j) })
		if err != nil {
			return nil, err
		}
		choice := openai.Choice{Index: c.Index, Message: msg}
		if c.FinishReason != nil {
			raw := FinishReasons.Encode(c.FinishReason)
			choice.FinishReason = &raw
		}
		apiResp.Choices[i] = choice
	}
	if u := resp.Usage; u != nil {
		apiResp.Usage = &openai.Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	return apiResp, nil
}

// APIChunkToCanonical converts one stream payload to events. Only choice 0
// is streamed; the assembler folds a single message per response.
func APIChunkToCanonical(sd openai.StreamData) ([]domain.StreamEvent, error) {
	if sd.Done {
		return []domain.StreamEvent{{Type: domain.StreamEventDone}}, nil
	}
	chunk := sd.Chunk
	base := domain.StreamEvent{ResponseID: chunk.ID, Model: chunk.Model, Created: chunk.Created}
	var events []domain.StreamEvent
	emit := func(ev domain.StreamEvent) {
		ev.ResponseID, ev.Model, ev.Created = base.ResponseID, base.Model, base.Created
		events = append(events, ev)
	}

	for i, choice := range chunk.Choices {
		if choice.Index != 0 {
			return nil, domain.InvalidField(wire.Field(wire.Index("choices", i), "index"), fmt.Errorf("streaming choice %d: only one choice can be assembled", choice.Index))
		}
		d := choice.Delta
		if d.Role != "" {
			emit(domain.StreamEvent{Type: domain.StreamEventStart, Role: domain.RoleAssistant})
		}
		if d.Content != nil && *d.Content != "" {
			emit(domain.StreamEvent{Type: domain.StreamEventText, Text: *d.Content})
		}
		if d.Refusal != nil && *d.Refusal != "" {
			emit(domain.StreamEvent{Type: domain.StreamEventText, Text: *d.Refusal, Refusal: true})
		}
		for _, tc := range d.ToolCalls {
			delta := &domain.ToolCallDelta{Index: tc.Index, ID: tc.ID}
			if tc.Function != nil {
				delta.Name = tc.Function.Name
				delta.ArgumentsDelta = tc.Function.Arguments
			}
			emit(domain.StreamEvent{Type: domain.StreamEventToolCall, ToolCall: delta})
		}
		if choice.FinishReason != nil {
			emit(domain.StreamEvent{Type: domain.StreamEventFinish, FinishReason: FinishReasons.Decode(*choice.FinishReason)})
		}
	}

	if u := chunk.Usage; u != nil {
		emit(domain.StreamEvent{Type: domain.StreamEventUsage, Usage: &domain.Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}})
	}
	return events, nil
}

// CanonicalToAPIChunk converts a canonical event to a stream payload. ok is
// false for events OpenAI does not stream.
func CanonicalToAPIChunk(event domain.StreamEvent, metadata *codec.StreamMetadata) (sd openai.StreamData, ok bool) {
	if event.Type == domain.StreamEventDone {
		return openai.StreamData{Done: true}, true
	}

	chunk := &openai.ChatCompletionChunk{
		ID:      event.ResponseID,
		Object:  openai.ObjectChatCompletionChunk,
		Created: event.Created,
		Model:   event.Model,
	}
	if metadata != nil {
		chunk.ID, chunk.Model, chunk.Created = metadata.ID, metadata.Model, metadata.Created
	}

	choice := openai.ChunkChoice{}
	switch event.Type {
	case domain.StreamEventStart:
		empty := ""
		choice.Delta = openai.Delta{Role: openai.RoleAssistant, Content: &empty}
	case domain.StreamEventText:
		text := event.Text
		if event.Refusal {
			choice.Delta = openai.Delta{Refusal: &text}
		} else {
			choice.Delta = openai.Delta{Content: &text}
		}
	case domain.StreamEventToolCall:
		tc := event.ToolCall
		delta := openai.ToolCallDelta{Index: tc.Index, ID: tc.ID, Function: &openai.FunctionCallDelta{Name: tc.Name, Arguments: tc.ArgumentsDelta}}
		if tc.ID != "" {
			delta.Type = openai.ToolTypeFunction
		}
		choice.Delta = openai.Delta{ToolCalls: []openai.ToolCallDelta{delta}}
	case domain.StreamEventFinish:
		raw := FinishReasons.Encode(event.FinishReason)
		choice.FinishReason = &raw
	case domain.StreamEventUsage:
		u := event.Usage
		chunk.Choices = []openai.ChunkChoice{}
		chunk.Usage = &openai.Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
		return openai.StreamData{Chunk: chunk}, true
	default:
		return openai.StreamData{}, false
	}
	chunk.Choices = []openai.ChunkChoice{choice}
	return openai.StreamData{Chunk: chunk}, true
}

var _ codec.Codec = (*Codec)(nil)

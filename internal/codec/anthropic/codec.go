// Package anthropic provides a codec for converting between the Anthropic
// Messages format and the canonical model.
package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tjfontaine/polyglot-llm-wire/internal/api/anthropic"
	"github.com/tjfontaine/polyglot-llm-wire/internal/api/wire"
	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
	"github.com/tjfontaine/polyglot-llm-wire/internal/pkg/codec"
)

const target = domain.APITypeAnthropic

// FinishReasons maps Claude stop reasons. end_turn is the default for a
// natural stop; stop_sequence keeps its raw string.
var FinishReasons = domain.NewFinishTable([]domain.FinishMapping{
	{Raw: anthropic.StopEndTurn, Kind: domain.FinishStop},
	{Raw: anthropic.StopSequence, Kind: domain.FinishStop},
	{Raw: anthropic.StopMaxTokens, Kind: domain.FinishLength},
	{Raw: anthropic.StopToolUse, Kind: domain.FinishToolCalls},
	{Raw: anthropic.StopRefusal, Kind: domain.FinishContentFilter},
}...)

// Codec implements codec.Codec for the Anthropic Messages format.
type Codec struct {
	opts codec.Options
}

// New creates a new Anthropic codec.
func New(opts ...codec.Option) *Codec {
	return &Codec{opts: codec.ApplyOptions(opts...)}
}

// APIType returns domain.APITypeAnthropic.
func (c *Codec) APIType() domain.APIType {
	return target
}

// DecodeRequest converts Messages API request JSON to canonical format.
func (c *Codec) DecodeRequest(data []byte) (*domain.Request, error) {
	apiReq, err := anthropic.DecodeRequest(data, c.opts.Decode)
	if apiReq == nil {
		return nil, fmt.Errorf("decode anthropic request: %w", err)
	}
	req, convErr := APIRequestToCanonical(apiReq)
	if convErr != nil {
		return nil, fmt.Errorf("decode anthropic request: %w", convErr)
	}
	if err != nil {
		return req, fmt.Errorf("decode anthropic request: %w", err)
	}
	return req, nil
}

// EncodeRequest converts a canonical request to Messages API request JSON.
func (c *Codec) EncodeRequest(req *domain.Request) ([]byte, error) {
	apiReq, err := CanonicalToAPIRequest(req, c.opts)
	if err != nil {
		return nil, err
	}
	return json.Marshal(apiReq)
}

// DecodeResponse converts a {"type":"message"} response to canonical format.
func (c *Codec) DecodeResponse(data []byte) (*domain.Response, error) {
	apiResp, err := anthropic.DecodeMessagesResponse(data, c.opts.Decode)
	if apiResp == nil {
		return nil, fmt.Errorf("decode anthropic response: %w", err)
	}
	resp := APIResponseToCanonical(apiResp)
	if err != nil {
		return resp, fmt.Errorf("decode anthropic response: %w", err)
	}
	return resp, nil
}

// EncodeResponse converts a canonical response to a {"type":"message"} body.
func (c *Codec) EncodeResponse(resp *domain.Response) ([]byte, error) {
	apiResp, err := CanonicalToAPIResponse(resp)
	if err != nil {
		return nil, err
	}
	return json.Marshal(apiResp)
}

// DecodeStreamChunk converts one SSE event payload to canonical events. An
// error event is returned as a *domain.APIError.
func (c *Codec) DecodeStreamChunk(data []byte) ([]domain.StreamEvent, error) {
	ev, err := anthropic.DecodeEvent(data)
	if err != nil {
		return nil, fmt.Errorf("decode anthropic event: %w", err)
	}
	return APIEventToCanonical(ev)
}

// EncodeStreamChunk converts a canonical event to an SSE event payload.
func (c *Codec) EncodeStreamChunk(event domain.StreamEvent, metadata *codec.StreamMetadata) ([]byte, error) {
	ev := CanonicalToAPIEvent(event, metadata)
	if ev == nil {
		return nil, nil
	}
	return json.Marshal(ev)
}

// APIRequestToCanonical converts a Messages API request to canonical format.
// The system prompt becomes a leading system message, and tool_result blocks
// become tool messages ahead of the user text they travelled with.
func APIRequestToCanonical(apiReq *anthropic.MessagesRequest) (*domain.Request, error) {
	maxTokens := apiReq.MaxTokens
	req := &domain.Request{
		Model:       apiReq.Model,
		Temperature: apiReq.Temperature,
		TopP:        apiReq.TopP,
		TopK:        apiReq.TopK,
		MaxTokens:   &maxTokens,
		Stream:      apiReq.Stream,
	}
	if len(apiReq.StopSequences) > 0 {
		req.Stop = append([]string(nil), apiReq.StopSequences...)
	}
	if apiReq.Metadata != nil {
		req.User = apiReq.Metadata.UserID
	}

	req.Messages = make([]domain.Message, 0, len(apiReq.Messages)+1)
	if apiReq.System != nil {
		req.Messages = append(req.Messages, domain.Message{
			Role:  domain.RoleSystem,
			Parts: []domain.ContentPart{domain.TextPart(apiReq.System.Joined())},
		})
	}
	for _, m := range apiReq.Messages {
		req.Messages = append(req.Messages, APIMessageToCanonical(m)...)
	}

	if len(apiReq.Tools) > 0 {
		req.Tools = make([]domain.ToolDefinition, len(apiReq.Tools))
		for i, t := range apiReq.Tools {
			req.Tools[i] = domain.ToolDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  []byte(t.InputSchema),
			}
		}
		err := codec.CheckToolNames(req.Tools, func(i int) string {
			return wire.Field(wire.Index("tools", i), "name")
		})
		if err != nil {
			return nil, err
		}
	}

	if tc := apiReq.ToolChoice; tc != nil {
		req.ToolChoice = toolChoiceToCanonical(*tc)
	}
	return req, nil
}

func toolChoiceToCanonical(tc anthropic.ToolChoice) *domain.ToolChoice {
	switch tc.Type {
	case anthropic.ToolChoiceAny:
		return &domain.ToolChoice{Mode: domain.ToolChoiceRequired}
	case anthropic.ToolChoiceTool:
		return &domain.ToolChoice{Mode: domain.ToolChoiceFunction, Name: tc.Name}
	case anthropic.ToolChoiceNone:
		return &domain.ToolChoice{Mode: domain.ToolChoiceNone}
	}
	return &domain.ToolChoice{Mode: domain.ToolChoiceAuto}
}

// APIMessageToCanonical converts one Claude message into one or more
// canonical messages: each tool_result block becomes its own tool message,
// and runs of other blocks become a user or assistant message.
func APIMessageToCanonical(m anthropic.Message) []domain.Message {
	role := domain.RoleUser
	if m.Role == anthropic.RoleAssistant {
		role = domain.RoleAssistant
	}
	if !m.Content.Array {
		return []domain.Message{{Role: role, Parts: []domain.ContentPart{domain.TextPart(m.Content.Text)}}}
	}

	var out []domain.Message
	var run []domain.ContentPart
	flush := func() {
		if run != nil {
			out = append(out, domain.Message{Role: role, Parts: run})
			run = nil
		}
	}
	for _, b := range m.Content.Blocks {
		if tr, ok := b.(anthropic.ToolResultBlock); ok {
			flush()
			out = append(out, domain.Message{Role: domain.RoleTool, Parts: []domain.ContentPart{toolResultToCanonical(tr)}})
			continue
		}
		run = append(run, blockToCanonical(b))
	}
	flush()
	if out == nil {
		out = []domain.Message{{Role: role}}
	}
	return out
}

func blockToCanonical(b anthropic.ContentBlock) domain.ContentPart {
	switch b := b.(type) {
	case anthropic.TextBlock:
		return domain.TextPart(b.Text)
	case anthropic.ImageBlock:
		return domain.Image{MediaType: b.Source.MediaType, Data: b.Source.Data}
	case anthropic.ToolUseBlock:
		return domain.ToolCallPart(b.ID, b.Name, string(b.Input))
	}
	panic(fmt.Sprintf("anthropic: unhandled block variant %T", b))
}

func toolResultToCanonical(tr anthropic.ToolResultBlock) domain.ToolResult {
	result := domain.ToolResult{CallID: tr.ToolUseID, IsError: tr.IsError}
	if tr.Content == nil {
		return result
	}
	if !tr.Content.Array {
		result.Content = []domain.ContentPart{domain.TextPart(tr.Content.Text)}
		return result
	}
	for _, b := range tr.Content.Blocks {
		result.Content = append(result.Content, blockToCanonical(b))
	}
	return result
}

// CanonicalToAPIRequest converts a canonical request to Messages API format.
// System messages are hoisted into the system field joined by newlines, and
// tool messages merge with the user message that follows them.
func CanonicalToAPIRequest(req *domain.Request, opts codec.Options) (*anthropic.MessagesRequest, error) {
	if req.Candidates != nil && *req.Candidates > 1 {
		return nil, domain.Unrepresentable(target, "candidates", "n", "only one candidate per request")
	}

	apiReq := &anthropic.MessagesRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		TopK:        req.TopK,
		Stream:      req.Stream,
		MaxTokens:   opts.DefaultMaxTokens,
	}
	if apiReq.MaxTokens <= 0 {
		apiReq.MaxTokens = codec.DefaultMaxTokens
	}
	if req.MaxTokens != nil {
		apiReq.MaxTokens = *req.MaxTokens
	}
	if len(req.Stop) > 0 {
		apiReq.StopSequences = append([]string(nil), req.Stop...)
	}
	if req.User != "" {
		apiReq.Metadata = &anthropic.Metadata{UserID: req.User}
	}

	var system []string
	apiReq.Messages = make([]anthropic.Message, 0, len(req.Messages))
	// pending holds tool_result blocks waiting for the next user message.
	var pending []anthropic.ContentBlock
	flush := func() {
		if pending != nil {
			apiReq.Messages = append(apiReq.Messages, anthropic.Message{Role: anthropic.RoleUser, Content: anthropic.BlocksContent(pending...)})
			pending = nil
		}
	}

	for i, m := range req.Messages {
		switch m.Role {
		case domain.RoleSystem:
			text, err := systemText(m, i)
			if err != nil {
				return nil, err
			}
			system = append(system, text)

		case domain.RoleTool:
			for j, p := range m.Parts {
				result, ok := p.(domain.ToolResult)
				if !ok {
					return nil, domain.Unrepresentable(target, codec.PartPath(i, j), string(p.Kind()), "tool messages carry only tool results")
				}
				block, err := toolResultBlock(result, codec.PartPath(i, j))
				if err != nil {
					return nil, err
				}
				pending = append(pending, block)
			}

		case domain.RoleUser:
			blocks, err := userBlocks(m.Parts, func(j int) string { return codec.PartPath(i, j) })
			if err != nil {
				return nil, err
			}
			if pending != nil {
				apiReq.Messages = append(apiReq.Messages, anthropic.Message{
					Role:    anthropic.RoleUser,
					Content: anthropic.BlocksContent(append(pending, blocks...)...),
				})
				pending = nil
				continue
			}
			apiReq.Messages = append(apiReq.Messages, anthropic.Message{Role: anthropic.RoleUser, Content: contentFromBlocks(blocks)})

		case domain.RoleAssistant:
			flush()
			blocks, err := assistantBlocks(m.Parts, func(j int) string { return codec.PartPath(i, j) })
			if err != nil {
				return nil, err
			}
			apiReq.Messages = append(apiReq.Messages, anthropic.Message{Role: anthropic.RoleAssistant, Content: contentFromBlocks(blocks)})

		default:
			return nil, domain.Unrepresentable(target, codec.MessagePath(i), "role", fmt.Sprintf("unknown role %q", m.Role))
		}
	}
	flush()

	if len(system) > 0 {
		apiReq.System = &anthropic.System{Text: strings.Join(system, "\n")}
	}

	for _, t := range req.Tools {
		apiReq.Tools = append(apiReq.Tools, anthropic.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: json.RawMessage(t.Parameters),
		})
	}

	if tc := req.ToolChoice; tc != nil {
		apiReq.ToolChoice = toolChoiceToAPI(*tc)
	}
	return apiReq, nil
}

func toolChoiceToAPI(tc domain.ToolChoice) *anthropic.ToolChoice {
	switch tc.Mode {
	case domain.ToolChoiceRequired:
		return &anthropic.ToolChoice{Type: anthropic.ToolChoiceAny}
	case domain.ToolChoiceFunction:
		return &anthropic.ToolChoice{Type: anthropic.ToolChoiceTool, Name: tc.Name}
	case domain.ToolChoiceNone:
		return &anthropic.ToolChoice{Type: anthropic.ToolChoiceNone}
	}
	return &anthropic.ToolChoice{Type: anthropic.ToolChoiceAuto}
}

// systemText joins the text parts of one system message with newlines, as
// separate system messages are joined.
func systemText(m domain.Message, index int) (string, error) {
	texts := make([]string, 0, len(m.Parts))
	for j, p := range m.Parts {
		t, ok := p.(domain.Text)
		if !ok {
			return "", domain.Unrepresentable(target, codec.PartPath(index, j), string(p.Kind()), "the system prompt is text only")
		}
		texts = append(texts, t.Text)
	}
	return strings.Join(texts, "\n"), nil
}

// contentFromBlocks uses the string form for a lone text block.
func contentFromBlocks(blocks []anthropic.ContentBlock) anthropic.Content {
	if len(blocks) == 1 {
		if t, ok := blocks[0].(anthropic.TextBlock); ok && t.CacheControl == nil {
			return anthropic.TextContent(t.Text)
		}
	}
	return anthropic.BlocksContent(blocks...)
}

func userBlocks(parts []domain.ContentPart, pathOf func(int) string) ([]anthropic.ContentBlock, error) {
	blocks := make([]anthropic.ContentBlock, 0, len(parts))
	for j, p := range parts {
		switch p := p.(type) {
		case domain.Text:
			blocks = append(blocks, anthropic.TextBlock{Text: p.Text})
		case domain.Image:
			block, err := imageBlock(p, pathOf(j))
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, block)
		default:
			return nil, domain.Unrepresentable(target, pathOf(j), string(p.Kind()), "not allowed in user content")
		}
	}
	return blocks, nil
}

func assistantBlocks(parts []domain.ContentPart, pathOf func(int) string) ([]anthropic.ContentBlock, error) {
	blocks := make([]anthropic.ContentBlock, 0, len(parts))
	for j, p := range parts {
		switch p := p.(type) {
		case domain.Text:
			blocks = append(blocks, anthropic.TextBlock{Text: p.Text})
		case domain.ToolCall:
			input, err := toolInput(p.Arguments, pathOf(j))
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, anthropic.ToolUseBlock{ID: p.ID, Name: p.Name, Input: input})
		default:
			return nil, domain.Unrepresentable(target, pathOf(j), string(p.Kind()), "not allowed in assistant messages")
		}
	}
	return blocks, nil
}

// toolInput requires a JSON object; empty arguments become {}.
func toolInput(args, path string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(args)
	if trimmed == "" {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid([]byte(trimmed)) || trimmed[0] != '{' {
		return nil, domain.Unrepresentable(target, path, "tool_call.arguments", "tool_use input must be a JSON object")
	}
	return json.RawMessage(trimmed), nil
}

func imageBlock(img domain.Image, path string) (anthropic.ContentBlock, error) {
	if !img.Inline() {
		return nil, domain.Unrepresentable(target, path, "image_url", "only base64 image sources are accepted; resolve URL images first")
	}
	if !anthropic.SupportedMediaTypes[img.MediaType] {
		return nil, domain.Unrepresentable(target, path, "image", fmt.Sprintf("unsupported media type %q", img.MediaType))
	}
	return anthropic.ImageBlock{Source: anthropic.ImageSource{MediaType: img.MediaType, Data: img.Data}}, nil
}

func toolResultBlock(result domain.ToolResult, path string) (anthropic.ContentBlock, error) {
	block := anthropic.ToolResultBlock{ToolUseID: result.CallID, IsError: result.IsError}
	if len(result.Content) == 0 {
		return block, nil
	}
	blocks, err := userBlocks(result.Content, func(k int) string { return fmt.Sprintf("%s.content[%d]", path, k) })
	if err != nil {
		return nil, err
	}
	content := contentFromBlocks(blocks)
	block.Content = &content
	return block, nil
}

// APIResponseToCanonical converts a Claude message to a single-choice response.
func APIResponseToCanonical(apiResp *anthropic.MessagesResponse) *domain.Response {
	msg := domain.Message{Role: domain.RoleAssistant}
	for _, b := range apiResp.Content {
		msg.Parts = append(msg.Parts, blockToCanonical(b))
	}
	choice := domain.Choice{Message: msg}
	if apiResp.StopReason != nil {
		choice.FinishReason = FinishReasons.Decode(*apiResp.StopReason)
	}
	return &domain.Response{
		ID:      apiResp.ID,
		Model:   apiResp.Model,
		Choices: []domain.Choice{choice},
		Usage: &domain.Usage{
			PromptTokens:     apiResp.Usage.InputTokens,
			CompletionTokens: apiResp.Usage.OutputTokens,
			TotalTokens:      apiResp.Usage.InputTokens + apiResp.Usage.OutputTokens,
		},
	}
}

// CanonicalToAPIResponse converts a single-choice response to a Claude message.
func CanonicalToAPIResponse(resp *domain.Response) (*anthropic.MessagesResponse, error) {
	if len(resp.Choices) > 1 {
		return nil, domain.Unrepresentable(target, "choices", "choices", fmt.Sprintf("a message holds one choice, got %d", len(resp.Choices)))
	}
	apiResp := &anthropic.MessagesResponse{
		ID:    resp.ID,
		Role:  anthropic.RoleAssistant,
		Model: resp.Model,
	}
	if len(resp.Choices) == 1 {
		c := resp.Choices[0]
		if c.Message.Role != domain.RoleAssistant {
			return nil, domain.Unrepresentable(target, "choices[0].message.role", "role", "choices carry assistant messages")
		}
		blocks, err := assistantBlocks(c.Message.Parts, func(j int) string { return codec.ChoicePath(0, j) })
		if err != nil {
			return nil, err
		}
		apiResp.Content = blocks
		if c.FinishReason != nil {
			raw := FinishReasons.Encode(c.FinishReason)
			apiResp.StopReason = &raw
		}
	}
	if u := resp.Usage; u != nil {
		apiResp.Usage = anthropic.Usage{InputTokens: u.PromptTokens, OutputTokens: u.CompletionTokens}
	}
	return apiResp, nil
}

// APIEventToCanonical converts one stream event. Content block indices are
// carried through unchanged: text events use Index, tool-call events use
// both Index and ToolCall.Index. Events other than message_start carry no
// response id; stream.Session supplies it.
func APIEventToCanonical(ev anthropic.StreamEvent) ([]domain.StreamEvent, error) {
	switch ev := ev.(type) {
	case anthropic.MessageStartEvent:
		u := ev.Message.Usage
		return []domain.StreamEvent{{
			Type:       domain.StreamEventStart,
			ResponseID: ev.Message.ID,
			Model:      ev.Message.Model,
			Role:       domain.RoleAssistant,
			Usage:      &domain.Usage{PromptTokens: u.InputTokens, CompletionTokens: u.OutputTokens},
		}}, nil

	case anthropic.ContentBlockStartEvent:
		switch b := ev.ContentBlock.(type) {
		case anthropic.TextBlock:
			events := []domain.StreamEvent{{Type: domain.StreamEventText, Index: ev.Index}}
			if b.Text != "" {
				events = append(events, domain.StreamEvent{Type: domain.StreamEventText, Index: ev.Index, Text: b.Text})
			}
			return events, nil
		case anthropic.ToolUseBlock:
			events := []domain.StreamEvent{{
				Type:     domain.StreamEventToolCall,
				Index:    ev.Index,
				ToolCall: &domain.ToolCallDelta{Index: ev.Index, ID: b.ID, Name: b.Name},
			}}
			if input := strings.TrimSpace(string(b.Input)); input != "" && input != "{}" {
				events = append(events, domain.StreamEvent{
					Type:     domain.StreamEventToolCall,
					Index:    ev.Index,
					ToolCall: &domain.ToolCallDelta{Index: ev.Index, ArgumentsDelta: input},
				})
			}
			return events, nil
		}
		return nil, domain.InvalidField("content_block", fmt.Errorf("unexpected %s block", ev.ContentBlock.BlockType()))

	case anthropic.ContentBlockDeltaEvent:
		switch d := ev.Delta.(type) {
		case anthropic.TextDelta:
			return []domain.StreamEvent{{Type: domain.StreamEventText, Index: ev.Index, Text: d.Text}}, nil
		case anthropic.InputJSONDelta:
			return []domain.StreamEvent{{
				Type:     domain.StreamEventToolCall,
				Index:    ev.Index,
				ToolCall: &domain.ToolCallDelta{Index: ev.Index, ArgumentsDelta: d.PartialJSON},
			}}, nil
		}
		return nil, domain.InvalidField("delta", fmt.Errorf("unexpected %s delta", ev.Delta.DeltaType()))

	case anthropic.ContentBlockStopEvent:
		return []domain.StreamEvent{{Type: domain.StreamEventBlockStop, Index: ev.Index}}, nil

	case anthropic.MessageDeltaEvent:
		out := domain.StreamEvent{Type: domain.StreamEventUsage}
		if ev.Delta.StopReason != nil {
			out.Type = domain.StreamEventFinish
			out.FinishReason = FinishReasons.Decode(*ev.Delta.StopReason)
		}
		if ev.Usage != nil {
			out.Usage = &domain.Usage{CompletionTokens: ev.Usage.OutputTokens}
		}
		if out.Type == domain.StreamEventUsage && out.Usage == nil {
			return nil, nil
		}
		return []domain.StreamEvent{out}, nil

	case anthropic.MessageStopEvent:
		return []domain.StreamEvent{{Type: domain.StreamEventDone}}, nil

	case anthropic.PingEvent:
		return []domain.StreamEvent{{Type: domain.StreamEventPing}}, nil

	case anthropic.ErrorEvent:
		return nil, APIErrorToDomain(ev.Error)
	}
	return nil, fmt.Errorf("anthropic: unhandled event variant %T", ev)
}

// CanonicalToAPIEvent converts a canonical event to a Claude stream event.
// A text event with empty text opens a text block and a tool-call event
// carrying an id opens a tool_use block; stream.Relay produces events in
// that form. Usage rides on message_start and message_delta.
func CanonicalToAPIEvent(event domain.StreamEvent, metadata *codec.StreamMetadata) anthropic.StreamEvent {
	switch event.Type {
	case domain.StreamEventStart:
		msg := anthropic.MessagesResponse{ID: event.ResponseID, Role: anthropic.RoleAssistant, Model: event.Model}
		if metadata != nil {
			msg.ID, msg.Model = metadata.ID, metadata.Model
		}
		if u := event.Usage; u != nil {
			msg.Usage = anthropic.Usage{InputTokens: u.PromptTokens, OutputTokens: u.CompletionTokens}
		}
		return anthropic.MessageStartEvent{Message: msg}

	case domain.StreamEventText:
		if event.Text == "" {
			return anthropic.ContentBlockStartEvent{Index: event.Index, ContentBlock: anthropic.TextBlock{}}
		}
		return anthropic.ContentBlockDeltaEvent{Index: event.Index, Delta: anthropic.TextDelta{Text: event.Text}}

	case domain.StreamEventToolCall:
		tc := event.ToolCall
		if tc.ID != "" {
			return anthropic.ContentBlockStartEvent{
				Index:        event.Index,
				ContentBlock: anthropic.ToolUseBlock{ID: tc.ID, Name: tc.Name, Input: json.RawMessage("{}")},
			}
		}
		return anthropic.ContentBlockDeltaEvent{Index: event.Index, Delta: anthropic.InputJSONDelta{PartialJSON: tc.ArgumentsDelta}}

	case domain.StreamEventBlockStop:
		return anthropic.ContentBlockStopEvent{Index: event.Index}

	case domain.StreamEventFinish, domain.StreamEventUsage:
		ev := anthropic.MessageDeltaEvent{}
		if event.FinishReason != nil {
			raw := FinishReasons.Encode(event.FinishReason)
			ev.Delta.StopReason = &raw
		}
		if u := event.Usage; u != nil {
			ev.Usage = &anthropic.DeltaUsage{OutputTokens: u.CompletionTokens}
		}
		return ev

	case domain.StreamEventDone:
		return anthropic.MessageStopEvent{}

	case domain.StreamEventPing:
		return anthropic.PingEvent{}
	}
	return nil
}

var _ codec.Codec = (*Codec)(nil)

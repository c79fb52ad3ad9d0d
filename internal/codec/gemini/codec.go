// Package gemini provides a codec for converting between the Gemini
// generateContent format and the canonical model.
package gemini

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/tjfontaine/polyglot-llm-wire/internal/api/gemini"
	"github.com/tjfontaine/polyglot-llm-wire/internal/api/wire"
	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
	"github.com/tjfontaine/polyglot-llm-wire/internal/pkg/codec"
)

const target = domain.APITypeGemini

// FinishReasons maps Gemini finish reasons. Gemini reports STOP after a
// function call, so STOP is also the encoding for tool calls.
var FinishReasons = domain.NewFinishTable([]domain.FinishMapping{
	{Raw: gemini.FinishStop, Kind: domain.FinishStop},
	{Raw: gemini.FinishMaxTokens, Kind: domain.FinishLength},
	{Raw: gemini.FinishSafety, Kind: domain.FinishContentFilter},
	{Raw: gemini.FinishRecitation, Kind: domain.FinishContentFilter},
	{Raw: "BLOCKLIST", Kind: domain.FinishContentFilter},
	{Raw: "PROHIBITED_CONTENT", Kind: domain.FinishContentFilter},
	{Raw: "SPII", Kind: domain.FinishContentFilter},
	{Raw: gemini.FinishStop, Kind: domain.FinishToolCalls},
}...)

// Keys of the object a text tool result is wrapped in.
const (
	resultKey      = "content"
	errorResultKey = "error"
)

// Codec implements codec.Codec for the Gemini generateContent format.
type Codec struct {
	opts codec.Options
}

// New creates a new Gemini codec.
func New(opts ...codec.Option) *Codec {
	return &Codec{opts: codec.ApplyOptions(opts...)}
}

// APIType returns domain.APITypeGemini.
func (c *Codec) APIType() domain.APIType {
	return target
}

// DecodeRequest converts generateContent request JSON to canonical format.
// The model travels in the URL, so the canonical Model is left empty.
func (c *Codec) DecodeRequest(data []byte) (*domain.Request, error) {
	apiReq, err := gemini.DecodeRequest(data, c.opts.Decode)
	if apiReq == nil {
		return nil, fmt.Errorf("decode gemini request: %w", err)
	}
	req, convErr := APIRequestToCanonical(apiReq)
	if convErr != nil {
		return nil, fmt.Errorf("decode gemini request: %w", convErr)
	}
	if err != nil {
		return req, fmt.Errorf("decode gemini request: %w", err)
	}
	return req, nil
}

// EncodeRequest converts a canonical request to generateContent JSON.
func (c *Codec) EncodeRequest(req *domain.Request) ([]byte, error) {
	apiReq, err := CanonicalToAPIRequest(req)
	if err != nil {
		return nil, err
	}
	if c.opts.NormalizeTurns {
		apiReq.Contents = gemini.NormalizeContents(apiReq.Contents)
	}
	return json.Marshal(apiReq)
}

// DecodeResponse converts a complete generateContent response.
func (c *Codec) DecodeResponse(data []byte) (*domain.Response, error) {
	apiResp, err := gemini.DecodeResponse(data, c.opts.Decode)
	if apiResp == nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}
	resp := APIResponseToCanonical(apiResp)
	if err != nil {
		return resp, fmt.Errorf("decode gemini response: %w", err)
	}
	return resp, nil
}

// EncodeResponse converts a canonical response to generateContent JSON.
func (c *Codec) EncodeResponse(resp *domain.Response) ([]byte, error) {
	apiResp, err := CanonicalToAPIResponse(resp)
	if err != nil {
		return nil, err
	}
	return json.Marshal(apiResp)
}

// DecodeStreamChunk converts one streamGenerateContent element.
func (c *Codec) DecodeStreamChunk(data []byte) ([]domain.StreamEvent, error) {
	chunk, err := gemini.DecodeChunk(data)
	if err != nil {
		return nil, fmt.Errorf("decode gemini chunk: %w", err)
	}
	return APIChunkToCanonical(chunk)
}

// EncodeStreamChunk converts a canonical event to a streamGenerateContent
// element. Tool-call events must carry complete arguments.
func (c *Codec) EncodeStreamChunk(event domain.StreamEvent, metadata *codec.StreamMetadata) ([]byte, error) {
	chunk, err := CanonicalToAPIChunk(event, metadata)
	if err != nil || chunk == nil {
		return nil, err
	}
	return json.Marshal(chunk)
}

// callLedger pairs function responses with earlier calls by name, oldest
// first, and numbers id-less calls per name.
type callLedger struct {
	pending map[string][]string
	seen    map[string]int
	names   map[string]string
}

func newCallLedger() *callLedger {
	return &callLedger{pending: map[string][]string{}, seen: map[string]int{}, names: map[string]string{}}
}

func (l *callLedger) call(id, name string) string {
	if id == "" {
		id = domain.SyntheticCallID(name, l.seen[name])
	}
	l.seen[name]++
	l.pending[name] = append(l.pending[name], id)
	l.names[id] = name
	return id
}

func (l *callLedger) respond(id, name string) (string, bool) {
	queue := l.pending[name]
	if id == "" {
		if len(queue) == 0 {
			return "", false
		}
		l.pending[name] = queue[1:]
		return queue[0], true
	}
	for i, pid := range queue {
		if pid == id {
			l.pending[name] = append(queue[:i:i], queue[i+1:]...)
			break
		}
	}
	return id, true
}

// APIRequestToCanonical converts a generateContent request. The system
// instruction becomes a leading system message; function responses become
// tool messages linked to the oldest pending call of the same name.
func APIRequestToCanonical(apiReq *gemini.GenerateContentRequest) (*domain.Request, error) {
	req := &domain.Request{}
	if g := apiReq.GenerationConfig; g != nil {
		req.Temperature = g.Temperature
		req.TopP = g.TopP
		req.TopK = g.TopK
		req.Candidates = g.CandidateCount
		req.MaxTokens = g.MaxOutputTokens
		if len(g.StopSequences) > 0 {
			req.Stop = append([]string(nil), g.StopSequences...)
		}
	}

	req.Messages = make([]domain.Message, 0, len(apiReq.Contents)+1)
	if sys := apiReq.SystemInstruction; sys != nil {
		texts := make([]string, 0, len(sys.Parts))
		for j, p := range sys.Parts {
			t, ok := p.(gemini.TextPart)
			if !ok {
				return nil, domain.InvalidField(wire.Index("systemInstruction.parts", j), fmt.Errorf("%s part in system instruction", p.PartKey()))
			}
			texts = append(texts, t.Text)
		}
		req.Messages = append(req.Messages, domain.Message{
			Role:  domain.RoleSystem,
			Parts: []domain.ContentPart{domain.TextPart(strings.Join(texts, "\n"))},
		})
	}

	ledger := newCallLedger()
	for i, c := range apiReq.Contents {
		msgs, err := contentToCanonical(c, wire.Index("contents", i), ledger)
		if err != nil {
			return nil, err
		}
		req.Messages = append(req.Messages, msgs...)
	}

	var n int
	for _, t := range apiReq.Tools {
		for _, fd := range t.FunctionDeclarations {
			req.Tools = append(req.Tools, domain.ToolDefinition{
				Name:        fd.Name,
				Description: fd.Description,
				Parameters:  []byte(fd.Parameters),
			})
			n++
		}
	}
	if n > 0 {
		err := codec.CheckToolNames(req.Tools, func(i int) string {
			return toolPath(apiReq.Tools, i)
		})
		if err != nil {
			return nil, err
		}
	}

	if tc := apiReq.ToolConfig; tc != nil && tc.FunctionCallingConfig != nil {
		req.ToolChoice = toolChoiceToCanonical(*tc.FunctionCallingConfig)
	}
	return req, nil
}

// toolPath locates the i-th flattened declaration.
func toolPath(tools []gemini.Tool, i int) string {
	for t, tool := range tools {
		if i < len(tool.FunctionDeclarations) {
			return wire.Field(wire.Index(wire.Field(wire.Index("tools", t), "functionDeclarations"), i), "name")
		}
		i -= len(tool.FunctionDeclarations)
	}
	return "tools"
}

func toolChoiceToCanonical(fc gemini.FunctionCallingConfig) *domain.ToolChoice {
	switch fc.Mode {
	case gemini.ModeAny:
		if len(fc.AllowedFunctionNames) == 1 {
			return &domain.ToolChoice{Mode: domain.ToolChoiceFunction, Name: fc.AllowedFunctionNames[0]}
		}
		return &domain.ToolChoice{Mode: domain.ToolChoiceRequired}
	case gemini.ModeNone:
		return &domain.ToolChoice{Mode: domain.ToolChoiceNone}
	}
	return &domain.ToolChoice{Mode: domain.ToolChoiceAuto}
}

// contentToCanonical splits one turn: each functionResponse becomes a tool
// message and runs of other parts become a user or assistant message.
func contentToCanonical(c gemini.Content, p string, ledger *callLedger) ([]domain.Message, error) {
	role := domain.RoleUser
	if c.Role == gemini.RoleModel {
		role = domain.RoleAssistant
	}

	var out []domain.Message
	var run []domain.ContentPart
	flush := func() {
		if run != nil {
			out = append(out, domain.Message{Role: role, Parts: run})
			run = nil
		}
	}
	for j, part := range c.Parts {
		partPath := wire.Index(wire.Field(p, "parts"), j)
		switch part := part.(type) {
		case gemini.TextPart:
			run = append(run, domain.TextPart(part.Text))
		case gemini.InlineDataPart:
			run = append(run, domain.Image{MediaType: part.MimeType, Data: part.Data})
		case gemini.FileDataPart:
			run = append(run, domain.Image{URL: part.FileURI, MediaType: part.MimeType})
		case gemini.FunctionCallPart:
			id := ledger.call(part.ID, part.Name)
			run = append(run, domain.ToolCallPart(id, part.Name, argsText(part.Args)))
		case gemini.FunctionResponsePart:
			id, ok := ledger.respond(part.ID, part.Name)
			if !ok {
				return nil, domain.InvalidField(wire.Field(partPath, "functionResponse"), fmt.Errorf("no pending functionCall named %q", part.Name))
			}
			flush()
			out = append(out, domain.Message{Role: domain.RoleTool, Parts: []domain.ContentPart{responseToResult(id, part.Response)}})
		}
	}
	flush()
	if out == nil {
		out = []domain.Message{{Role: role}}
	}
	return out, nil
}

func argsText(args json.RawMessage) string {
	if len(args) == 0 {
		return "{}"
	}
	return string(args)
}

// responseToResult unwraps {"content": text} and {"error": text}; any other
// object is kept as JSON text.
func responseToResult(id string, resp json.RawMessage) domain.ToolResult {
	result := domain.ToolResult{CallID: id}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(resp, &obj); err == nil && len(obj) == 1 {
		for key, raw := range obj {
			var s string
			if (key == resultKey || key == errorResultKey) && json.Unmarshal(raw, &s) == nil {
				result.Content = []domain.ContentPart{domain.TextPart(s)}
				result.IsError = key == errorResultKey
				return result
			}
		}
	}
	result.Content = []domain.ContentPart{domain.TextPart(string(resp))}
	return result
}

// CanonicalToAPIRequest converts a canonical request to generateContent
// format. System messages are hoisted into systemInstruction joined by
// newlines. Request-level fields Gemini carries elsewhere (model, stream,
// user) are not encoded.
func CanonicalToAPIRequest(req *domain.Request) (*gemini.GenerateContentRequest, error) {
	apiReq := &gemini.GenerateContentRequest{Contents: make([]gemini.Content, 0, len(req.Messages))}

	if req.Temperature != nil || req.TopP != nil || req.TopK != nil || req.Candidates != nil || req.MaxTokens != nil || len(req.Stop) > 0 {
		apiReq.GenerationConfig = &gemini.GenerationConfig{
			Temperature:     req.Temperature,
			TopP:            req.TopP,
			TopK:            req.TopK,
			CandidateCount:  req.Candidates,
			MaxOutputTokens: req.MaxTokens,
		}
		if len(req.Stop) > 0 {
			apiReq.GenerationConfig.StopSequences = append([]string(nil), req.Stop...)
		}
	}

	var system []string
	names := make(map[string]string)
	for i, m := range req.Messages {
		switch m.Role {
		case domain.RoleSystem:
			for j, p := range m.Parts {
				t, ok := p.(domain.Text)
				if !ok {
					return nil, domain.Unrepresentable(target, codec.PartPath(i, j), string(p.Kind()), "systemInstruction is text only")
				}
				system = append(system, t.Text)
			}

		case domain.RoleUser:
			parts, err := userParts(m.Parts, i)
			if err != nil {
				return nil, err
			}
			apiReq.Contents = append(apiReq.Contents, gemini.Content{Role: gemini.RoleUser, Parts: parts})

		case domain.RoleAssistant:
			parts, err := modelParts(m.Parts, func(j int) string { return codec.PartPath(i, j) })
			if err != nil {
				return nil, err
			}
			for _, p := range m.Parts {
				if call, ok := p.(domain.ToolCall); ok {
					names[call.ID] = call.Name
				}
			}
			apiReq.Contents = append(apiReq.Contents, gemini.Content{Role: gemini.RoleModel, Parts: parts})

		case domain.RoleTool:
			parts := make([]gemini.Part, 0, len(m.Parts))
			for j, p := range m.Parts {
				part, err := functionResponse(p, names, codec.PartPath(i, j))
				if err != nil {
					return nil, err
				}
				parts = append(parts, part)
			}
			apiReq.Contents = append(apiReq.Contents, gemini.Content{Role: gemini.RoleUser, Parts: parts})

		default:
			return nil, domain.Unrepresentable(target, codec.MessagePath(i), "role", fmt.Sprintf("unknown role %q", m.Role))
		}
	}

	if len(system) > 0 {
		apiReq.SystemInstruction = &gemini.Content{Parts: []gemini.Part{gemini.TextPart{Text: strings.Join(system, "\n")}}}
	}

	if len(req.Tools) > 0 {
		decls := make([]gemini.FunctionDeclaration, len(req.Tools))
		for i, t := range req.Tools {
			decls[i] = gemini.FunctionDeclaration{Name: t.Name, Description: t.Description}
			if len(t.Parameters) > 0 {
				decls[i].Parameters = json.RawMessage(t.Parameters)
			}
		}
		apiReq.Tools = []gemini.Tool{{FunctionDeclarations: decls}}
	}

	if tc := req.ToolChoice; tc != nil {
		fc := &gemini.FunctionCallingConfig{Mode: gemini.ModeAuto}
		switch tc.Mode {
		case domain.ToolChoiceRequired:
			fc.Mode = gemini.ModeAny
		case domain.ToolChoiceNone:
			fc.Mode = gemini.ModeNone
		case domain.ToolChoiceFunction:
			fc.Mode = gemini.ModeAny
			fc.AllowedFunctionNames = []string{tc.Name}
		}
		apiReq.ToolConfig = &gemini.ToolConfig{FunctionCallingConfig: fc}
	}
	return apiReq, nil
}

func userParts(parts []domain.ContentPart, index int) ([]gemini.Part, error) {
	out := make([]gemini.Part, 0, len(parts))
	for j, p := range parts {
		switch p := p.(type) {
		case domain.Text:
			out = append(out, gemini.TextPart{Text: p.Text})
		case domain.Image:
			part, err := imagePart(p, codec.PartPath(index, j))
			if err != nil {
				return nil, err
			}
			out = append(out, part)
		default:
			return nil, domain.Unrepresentable(target, codec.PartPath(index, j), string(p.Kind()), "not allowed in user content")
		}
	}
	return out, nil
}

// imagePart inlines data and references URLs through fileData, which needs
// a mime type; one is derived from the URL's extension when missing.
func imagePart(img domain.Image, p string) (gemini.Part, error) {
	if img.Inline() {
		return gemini.InlineDataPart{MimeType: img.MediaType, Data: img.Data}, nil
	}
	mimeType := img.MediaType
	if mimeType == "" {
		mimeType = MimeTypeFromURL(img.URL)
	}
	if mimeType == "" {
		return nil, domain.Unrepresentable(target, p, "image_url", "fileData needs a mime type and none can be derived from the URL")
	}
	return gemini.FileDataPart{MimeType: mimeType, FileURI: img.URL}, nil
}

// MimeTypeFromURL guesses a media type from the URL path's extension.
func MimeTypeFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" {
		return ""
	}
	t := mime.TypeByExtension(ext)
	if t == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(t)
	if err != nil {
		return ""
	}
	return mediaType
}

func modelParts(parts []domain.ContentPart, pathOf func(int) string) ([]gemini.Part, error) {
	out := make([]gemini.Part, 0, len(parts))
	for j, p := range parts {
		switch p := p.(type) {
		case domain.Text:
			out = append(out, gemini.TextPart{Text: p.Text})
		case domain.ToolCall:
			args, err := callArgs(p.Arguments, pathOf(j))
			if err != nil {
				return nil, err
			}
			out = append(out, gemini.FunctionCallPart{ID: p.ID, Name: p.Name, Args: args})
		default:
			return nil, domain.Unrepresentable(target, pathOf(j), string(p.Kind()), "not allowed in model content")
		}
	}
	return out, nil
}

func callArgs(args, p string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(args)
	if trimmed == "" {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid([]byte(trimmed)) || trimmed[0] != '{' {
		return nil, domain.Unrepresentable(target, p, "tool_call.arguments", "functionCall args must be a JSON object")
	}
	return json.RawMessage(trimmed), nil
}

// functionResponse wraps a text result as {"content": text}, or as
// {"error": text} for an error result, unless the text is already a JSON
// object.
func functionResponse(p domain.ContentPart, names map[string]string, at string) (gemini.Part, error) {
	result, ok := p.(domain.ToolResult)
	if !ok {
		return nil, domain.Unrepresentable(target, at, string(p.Kind()), "tool messages carry only tool results")
	}
	name, ok := names[result.CallID]
	if !ok {
		return nil, domain.Unrepresentable(target, at, "tool_result", fmt.Sprintf("functionResponse needs the function name and no earlier call has id %q", result.CallID))
	}
	for k, c := range result.Content {
		if _, isText := c.(domain.Text); !isText {
			return nil, domain.Unrepresentable(target, fmt.Sprintf("%s.content[%d]", at, k), string(c.Kind()), "functionResponse carries JSON only")
		}
	}

	text := result.Text()
	var resp json.RawMessage
	trimmed := bytes.TrimSpace([]byte(text))
	if !result.IsError && len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed) {
		resp = json.RawMessage(trimmed)
	} else {
		key := resultKey
		if result.IsError {
			key = errorResultKey
		}
		b, err := json.Marshal(map[string]string{key: text})
		if err != nil {
			return nil, err
		}
		resp = b
	}
	return gemini.FunctionResponsePart{ID: result.CallID, Name: name, Response: resp}, nil
}

// APIResponseToCanonical converts a complete response. STOP on a candidate
// that called functions decodes as a tool-calls finish.
func APIResponseToCanonical(apiResp *gemini.GenerateContentResponse) *domain.Response {
	resp := &domain.Response{
		ID:      apiResp.ResponseID,
		Model:   apiResp.ModelVersion,
		Choices: make([]domain.Choice, 0, len(apiResp.Candidates)),
	}
	for i, c := range apiResp.Candidates {
		choice := domain.Choice{Index: i, Message: candidateMessage(c)}
		if c.Index != nil {
			choice.Index = *c.Index
		}
		if c.FinishReason != "" {
			choice.FinishReason = finishReason(c.FinishReason, choice.Message)
		}
		resp.Choices = append(resp.Choices, choice)
	}
	if u := apiResp.UsageMetadata; u != nil {
		resp.Usage = &domain.Usage{
			PromptTokens:     u.PromptTokenCount,
			CompletionTokens: u.CandidatesTokenCount,
			TotalTokens:      u.TotalTokenCount,
		}
	}
	return resp
}

func finishReason(raw string, msg domain.Message) *domain.FinishReason {
	fr := FinishReasons.Decode(raw)
	if fr.Kind == domain.FinishStop && len(msg.ToolCalls()) > 0 {
		return domain.NewFinishReason(domain.FinishToolCalls)
	}
	return fr
}

// candidateMessage numbers id-less calls within the message.
func candidateMessage(c gemini.Candidate) domain.Message {
	msg := domain.Message{Role: domain.RoleAssistant}
	if c.Content == nil {
		return msg
	}
	ledger := newCallLedger()
	for _, p := range c.Content.Parts {
		switch p := p.(type) {
		case gemini.TextPart:
			msg.Parts = append(msg.Parts, domain.TextPart(p.Text))
		case gemini.FunctionCallPart:
			id := ledger.call(p.ID, p.Name)
			msg.Parts = append(msg.Parts, domain.ToolCallPart(id, p.Name, argsText(p.Args)))
		}
	}
	return msg
}

// CanonicalToAPIResponse converts a canonical response. A response without
// choices is reported as a blocked prompt.
func CanonicalToAPIResponse(resp *domain.Response) (*gemini.GenerateContentResponse, error) {
	apiResp := &gemini.GenerateContentResponse{
		ResponseID:   resp.ID,
		ModelVersion: resp.Model,
	}
	for i, c := range resp.Choices {
		if c.Message.Role != domain.RoleAssistant {
			return nil, domain.Unrepresentable(target, fmt.Sprintf("choices[%d].message.role", i), "role", "candidates carry model content")
		}
		parts, err := modelParts(c.Message.Parts, func(j int) string { return codec.ChoicePath(i, j) })
		if err != nil {
			return nil, err
		}
		index := c.Index
		cand := gemini.Candidate{
			Content:      &gemini.Content{Role: gemini.RoleModel, Parts: parts},
			FinishReason: gemini.FinishUnspecified,
			Index:        &index,
		}
		if c.FinishReason != nil {
			cand.FinishReason = FinishReasons.Encode(c.FinishReason)
		}
		apiResp.Candidates = append(apiResp.Candidates, cand)
	}
	if len(apiResp.Candidates) == 0 {
		apiResp.PromptFeedback = &gemini.PromptFeedback{BlockReason: gemini.FinishOther}
	}
	if u := resp.Usage; u != nil {
		apiResp.UsageMetadata = &gemini.UsageMetadata{
			PromptTokenCount:     u.PromptTokens,
			CandidatesTokenCount: u.CompletionTokens,
			TotalTokenCount:      u.TotalTokens,
		}
	}
	return apiResp, nil
}

// APIChunkToCanonical converts one stream element. Gemini sends each
// function call whole, so a tool-call event carries complete arguments and
// its index only orders calls within the chunk. The element carrying a
// finish reason is the last one, so it also yields the terminal event.
func APIChunkToCanonical(chunk *gemini.StreamChunk) ([]domain.StreamEvent, error) {
	var events []domain.StreamEvent
	emit := func(ev domain.StreamEvent) {
		ev.ResponseID, ev.Model = chunk.ResponseID, chunk.ModelVersion
		events = append(events, ev)
	}

	var done bool
	for i, c := range chunk.Candidates {
		if c.Index != nil && *c.Index != 0 {
			return nil, domain.InvalidField(wire.Field(wire.Index("candidates", i), "index"), fmt.Errorf("streaming candidate %d: only one candidate can be assembled", *c.Index))
		}
		var calls int
		if c.Content != nil {
			for _, p := range c.Content.Parts {
				switch p := p.(type) {
				case gemini.TextPart:
					emit(domain.StreamEvent{Type: domain.StreamEventText, Text: p.Text})
				case gemini.FunctionCallPart:
					emit(domain.StreamEvent{Type: domain.StreamEventToolCall, ToolCall: &domain.ToolCallDelta{
						Index:          calls,
						ID:             p.ID,
						Name:           p.Name,
						ArgumentsDelta: argsText(p.Args),
					}})
					calls++
				}
			}
		}
		if c.FinishReason != "" {
			emit(domain.StreamEvent{Type: domain.StreamEventFinish, FinishReason: FinishReasons.Decode(c.FinishReason)})
			done = true
		}
	}
	if u := chunk.UsageMetadata; u != nil {
		emit(domain.StreamEvent{Type: domain.StreamEventUsage, Usage: &domain.Usage{
			PromptTokens:     u.PromptTokenCount,
			CompletionTokens: u.CandidatesTokenCount,
			TotalTokens:      u.TotalTokenCount,
		}})
	}
	if done {
		emit(domain.StreamEvent{Type: domain.StreamEventDone})
	}
	return events, nil
}

// CanonicalToAPIChunk converts a canonical event. Start, block-stop, ping
// and done events have no Gemini form and yield nil.
func CanonicalToAPIChunk(event domain.StreamEvent, metadata *codec.StreamMetadata) (*gemini.StreamChunk, error) {
	chunk := &gemini.StreamChunk{ResponseID: event.ResponseID, ModelVersion: event.Model}
	if metadata != nil {
		chunk.ResponseID, chunk.ModelVersion = metadata.ID, metadata.Model
	}
	zero := 0
	switch event.Type {
	case domain.StreamEventText:
		chunk.Candidates = []gemini.Candidate{{
			Content: &gemini.Content{Role: gemini.RoleModel, Parts: []gemini.Part{gemini.TextPart{Text: event.Text}}},
			Index:   &zero,
		}}
	case domain.StreamEventToolCall:
		tc := event.ToolCall
		args, err := callArgs(tc.ArgumentsDelta, fmt.Sprintf("tool_calls[%d]", tc.Index))
		if err != nil {
			return nil, err
		}
		chunk.Candidates = []gemini.Candidate{{
			Content: &gemini.Content{Role: gemini.RoleModel, Parts: []gemini.Part{gemini.FunctionCallPart{ID: tc.ID, Name: tc.Name, Args: args}}},
			Index:   &zero,
		}}
	case domain.StreamEventFinish:
		chunk.Candidates = []gemini.Candidate{{FinishReason: FinishReasons.Encode(event.FinishReason), Index: &zero}}
		if u := event.Usage; u != nil {
			chunk.UsageMetadata = usageMetadata(u)
		}
	case domain.StreamEventUsage:
		chunk.UsageMetadata = usageMetadata(event.Usage)
	default:
		return nil, nil
	}
	return chunk, nil
}

func usageMetadata(u *domain.Usage) *gemini.UsageMetadata {
	total := u.TotalTokens
	if total == 0 {
		total = u.PromptTokens + u.CompletionTokens
	}
	return &gemini.UsageMetadata{
		PromptTokenCount:     u.PromptTokens,
		CandidatesTokenCount: u.CompletionTokens,
		TotalTokenCount:      total,
	}
}

var _ codec.Codec = (*Codec)(nil)

package gemini

import (
	"encoding/json"
	"errors"

	"github.com/tjfontaine/polyglot-llm-wire/internal/api/wire"
	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
)

// DecodeRequest decodes a generateContent request body. In CollectAll mode
// bad contents, tools and safety settings are skipped and reported together.
func DecodeRequest(data []byte, opts wire.Options) (*GenerateContentRequest, error) {
	var f struct {
		Contents          json.RawMessage   `json:"contents"`
		SystemInstruction json.RawMessage   `json:"systemInstruction"`
		Tools             json.RawMessage   `json:"tools"`
		ToolConfig        json.RawMessage   `json:"toolConfig"`
		SafetySettings    json.RawMessage   `json:"safetySettings"`
		GenerationConfig  *GenerationConfig `json:"generationConfig"`
	}
	if err := wire.Unmarshal(data, &f, ""); err != nil {
		return nil, err
	}

	d := wire.NewDecoder(opts)
	req := &GenerateContentRequest{GenerationConfig: f.GenerationConfig}

	contents, err := objectOrArray(f.Contents, "contents")
	if err != nil && d.Fail("contents", err) {
		return nil, d.Err()
	}
	req.Contents = make([]Content, 0, len(contents))
	for i, raw := range contents {
		c, err := DecodeContent(raw, wire.Index("contents", i), true)
		if err != nil {
			if d.Fail(wire.Index("contents", i), err) {
				return nil, d.Err()
			}
			continue
		}
		req.Contents = append(req.Contents, c)
	}

	if !wire.IsNull(f.SystemInstruction) {
		sys, err := DecodeContent(f.SystemInstruction, "systemInstruction", false)
		if err != nil {
			if d.Fail("systemInstruction", err) {
				return nil, d.Err()
			}
		} else {
			req.SystemInstruction = &sys
		}
	}

	if !wire.IsNull(f.Tools) {
		tools, err := wire.Array(f.Tools, "tools")
		if err != nil && d.Fail("tools", err) {
			return nil, d.Err()
		}
		for i, raw := range tools {
			tool, err := DecodeTool(raw, wire.Index("tools", i))
			if err != nil {
				if d.Fail(wire.Index("tools", i), err) {
					return nil, d.Err()
				}
				continue
			}
			req.Tools = append(req.Tools, tool)
		}
	}

	if !wire.IsNull(f.ToolConfig) {
		cfg, err := DecodeToolConfig(f.ToolConfig, "toolConfig")
		if err != nil && d.Fail("toolConfig", err) {
			return nil, d.Err()
		}
		req.ToolConfig = cfg
	}

	if !wire.IsNull(f.SafetySettings) {
		settings, err := objectOrArray(f.SafetySettings, "safetySettings")
		if err != nil && d.Fail("safetySettings", err) {
			return nil, d.Err()
		}
		for i, raw := range settings {
			s, err := decodeSafetySetting(raw, wire.Index("safetySettings", i))
			if err != nil {
				if d.Fail(wire.Index("safetySettings", i), err) {
					return nil, d.Err()
				}
				continue
			}
			req.SafetySettings = append(req.SafetySettings, s)
		}
	}

	return req, d.Err()
}

// UnmarshalJSON decodes in fail-fast mode.
func (r *GenerateContentRequest) UnmarshalJSON(data []byte) error {
	req, err := DecodeRequest(data, wire.Options{})
	if err != nil {
		return err
	}
	*r = *req
	return nil
}

type responseFields struct {
	Candidates     json.RawMessage `json:"candidates"`
	PromptFeedback *PromptFeedback `json:"promptFeedback"`
	UsageMetadata  *UsageMetadata  `json:"usageMetadata"`
	ModelVersion   string          `json:"modelVersion"`
	ResponseID     string          `json:"responseId"`
}

// DecodeResponse decodes a complete response. Each candidate must carry a
// finishReason, and a response without candidates must explain itself with
// promptFeedback.blockReason.
func DecodeResponse(data []byte, opts wire.Options) (*GenerateContentResponse, error) {
	var f responseFields
	if err := wire.Unmarshal(data, &f, ""); err != nil {
		return nil, err
	}
	candidates, err := decodeCandidates(f.Candidates, opts, true)
	if err != nil && candidates == nil {
		return nil, err
	}
	if err == nil && len(candidates) == 0 && (f.PromptFeedback == nil || f.PromptFeedback.BlockReason == "") {
		return nil, domain.InvalidField("candidates", errors.New("required unless promptFeedback.blockReason is set"))
	}
	return &GenerateContentResponse{
		Candidates:     candidates,
		PromptFeedback: f.PromptFeedback,
		UsageMetadata:  f.UsageMetadata,
		ModelVersion:   f.ModelVersion,
		ResponseID:     f.ResponseID,
	}, err
}

// UnmarshalJSON decodes in fail-fast mode.
func (r *GenerateContentResponse) UnmarshalJSON(data []byte) error {
	resp, err := DecodeResponse(data, wire.Options{})
	if err != nil {
		return err
	}
	*r = *resp
	return nil
}

// DecodeChunk decodes one streaming element. Candidates may omit their
// finish reason, and a usage-only chunk is valid.
func DecodeChunk(data []byte) (*StreamChunk, error) {
	var f responseFields
	if err := wire.Unmarshal(data, &f, ""); err != nil {
		return nil, err
	}
	candidates, err := decodeCandidates(f.Candidates, wire.Options{}, false)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		candidates = nil
	}
	return &StreamChunk{
		Candidates:     candidates,
		PromptFeedback: f.PromptFeedback,
		UsageMetadata:  f.UsageMetadata,
		ModelVersion:   f.ModelVersion,
		ResponseID:     f.ResponseID,
	}, nil
}

// UnmarshalJSON delegates to DecodeChunk.
func (c *StreamChunk) UnmarshalJSON(data []byte) error {
	chunk, err := DecodeChunk(data)
	if err != nil {
		return err
	}
	*c = *chunk
	return nil
}

// decodeCandidates returns the good candidates even when err is a
// collect-all batch.
func decodeCandidates(raw json.RawMessage, opts wire.Options, complete bool) ([]Candidate, error) {
	if wire.IsNull(raw) {
		return []Candidate{}, nil
	}
	items, err := wire.Array(raw, "candidates")
	if err != nil {
		return nil, err
	}
	d := wire.NewDecoder(opts)
	out := make([]Candidate, 0, len(items))
	for i, item := range items {
		c, err := decodeCandidate(item, wire.Index("candidates", i), complete)
		if err != nil {
			if d.Fail(wire.Index("candidates", i), err) {
				return nil, d.Err()
			}
			continue
		}
		out = append(out, c)
	}
	return out, d.Err()
}

func decodeCandidate(raw json.RawMessage, path string, complete bool) (Candidate, error) {
	var f struct {
		Content          json.RawMessage   `json:"content"`
		FinishReason     string            `json:"finishReason"`
		SafetyRatings    []SafetyRating    `json:"safetyRatings"`
		CitationMetadata *CitationMetadata `json:"citationMetadata"`
		Index            *int              `json:"index"`
	}
	if err := wire.Unmarshal(raw, &f, path); err != nil {
		return Candidate{}, err
	}
	if complete && f.FinishReason == "" {
		return Candidate{}, wire.Required(false, wire.Field(path, "finishReason"))
	}
	c := Candidate{
		FinishReason:     f.FinishReason,
		SafetyRatings:    f.SafetyRatings,
		CitationMetadata: f.CitationMetadata,
		Index:            f.Index,
	}
	if !wire.IsNull(f.Content) {
		contentPath := wire.Field(path, "content")
		content, err := DecodeContent(f.Content, contentPath, false)
		if err != nil {
			return Candidate{}, err
		}
		if content.Role != "" && content.Role != RoleModel {
			return Candidate{}, domain.UnknownVariant(contentPath, "role", content.Role, f.Content)
		}
		c.Content = &content
	}
	return c, nil
}

// DecodeErrorResponse decodes the {"error":{code,message,status}} envelope.
func DecodeErrorResponse(data []byte) (*ErrorResponse, error) {
	var f struct {
		Error *struct {
			Code    *int   `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := wire.Unmarshal(data, &f, ""); err != nil {
		return nil, err
	}
	if f.Error == nil {
		return nil, wire.Required(false, "error")
	}
	if f.Error.Code == nil {
		return nil, wire.Required(false, "error.code")
	}
	return &ErrorResponse{Error: &APIError{Code: *f.Error.Code, Message: f.Error.Message, Status: f.Error.Status}}, nil
}

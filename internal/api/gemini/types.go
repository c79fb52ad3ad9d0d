// Package gemini models the Gemini generateContent wire shapes. Parts and
// tools are externally tagged: the single member name present on the object
// selects the variant.
package gemini

import (
	"encoding/json"
)

// Content roles. Decoding is case-insensitive; encoding is lowercase.
const (
	RoleUser     = "user"
	RoleModel    = "model"
	RoleFunction = "function"
)

// Part member names.
const (
	PartText             = "text"
	PartInlineData       = "inlineData"
	PartFileData         = "fileData"
	PartFunctionCall     = "functionCall"
	PartFunctionResponse = "functionResponse"
)

// Function calling modes.
const (
	ModeAuto = "AUTO"
	ModeAny  = "ANY"
	ModeNone = "NONE"
)

// Finish reasons.
const (
	FinishUnspecified = "FINISH_REASON_UNSPECIFIED"
	FinishStop        = "STOP"
	FinishMaxTokens   = "MAX_TOKENS"
	FinishSafety      = "SAFETY"
	FinishRecitation  = "RECITATION"
	FinishOther       = "OTHER"
)

// Harm categories.
const (
	HarmSexuallyExplicit = "HARM_CATEGORY_SEXUALLY_EXPLICIT"
	HarmHateSpeech       = "HARM_CATEGORY_HATE_SPEECH"
	HarmHarassment       = "HARM_CATEGORY_HARASSMENT"
	HarmDangerousContent = "HARM_CATEGORY_DANGEROUS_CONTENT"
	HarmCivicIntegrity   = "HARM_CATEGORY_CIVIC_INTEGRITY"
)

// Block thresholds.
const (
	BlockUnspecified    = "HARM_BLOCK_THRESHOLD_UNSPECIFIED"
	BlockNone           = "BLOCK_NONE"
	BlockLowAndAbove    = "BLOCK_LOW_AND_ABOVE"
	BlockMediumAndAbove = "BLOCK_MEDIUM_AND_ABOVE"
	BlockOnlyHigh       = "BLOCK_ONLY_HIGH"
)

// GenerateContentRequest is the body of models/{model}:generateContent.
// The model travels in the URL, not the body.
type GenerateContentRequest struct {
	Contents          []Content         `json:"contents"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	Tools             []Tool            `json:"tools,omitempty"`
	ToolConfig        *ToolConfig       `json:"toolConfig,omitempty"`
	SafetySettings    []SafetySetting   `json:"safetySettings,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

// Content is one turn. Role is empty only on systemInstruction.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is TextPart, InlineDataPart, FileDataPart, FunctionCallPart or
// FunctionResponsePart.
type Part interface {
	PartKey() string
}

// TextPart is {"text":...}.
type TextPart struct {
	Text string
}

func (TextPart) PartKey() string { return PartText }

func (p TextPart) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Text string `json:"text"`
	}{p.Text})
}

// InlineDataPart is {"inlineData":{"mimeType":...,"data":base64}}.
type InlineDataPart struct {
	MimeType string
	Data     string
}

func (InlineDataPart) PartKey() string { return PartInlineData }

func (p InlineDataPart) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		InlineData blob `json:"inlineData"`
	}{blob{MimeType: p.MimeType, Data: p.Data}})
}

type blob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// FileDataPart is {"fileData":{"mimeType":...,"fileUri":...}}.
type FileDataPart struct {
	MimeType string
	FileURI  string
}

func (FileDataPart) PartKey() string { return PartFileData }

func (p FileDataPart) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		FileData fileData `json:"fileData"`
	}{fileData{MimeType: p.MimeType, FileURI: p.FileURI}})
}

type fileData struct {
	MimeType string `json:"mimeType"`
	FileURI  string `json:"fileUri"`
}

// FunctionCallPart is a model-issued call. ID is optional on the wire.
type FunctionCallPart struct {
	ID   string
	Name string
	Args json.RawMessage
}

func (FunctionCallPart) PartKey() string { return PartFunctionCall }

func (p FunctionCallPart) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		FunctionCall functionCall `json:"functionCall"`
	}{functionCall{ID: p.ID, Name: p.Name, Args: p.Args}})
}

type functionCall struct {
	ID   string          `json:"id,omitempty"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// FunctionResponsePart returns a call's result as a JSON object.
type FunctionResponsePart struct {
	ID       string
	Name     string
	Response json.RawMessage
}

func (FunctionResponsePart) PartKey() string { return PartFunctionResponse }

func (p FunctionResponsePart) MarshalJSON() ([]byte, error) {
	resp := p.Response
	if len(resp) == 0 {
		resp = json.RawMessage("{}")
	}
	return json.Marshal(struct {
		FunctionResponse functionResponse `json:"functionResponse"`
	}{functionResponse{ID: p.ID, Name: p.Name, Response: resp}})
}

type functionResponse struct {
	ID       string          `json:"id,omitempty"`
	Name     string          `json:"name"`
	Response json.RawMessage `json:"response"`
}

// Tool groups function declarations.
type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations"`
}

// FunctionDeclaration describes a callable function. Parameters is an
// OpenAPI-style schema.
type FunctionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ToolConfig configures function calling.
type ToolConfig struct {
	FunctionCallingConfig *FunctionCallingConfig `json:"functionCallingConfig,omitempty"`
}

// FunctionCallingConfig selects a mode and optionally restricts names.
type FunctionCallingConfig struct {
	Mode                 string   `json:"mode"`
	AllowedFunctionNames []string `json:"allowedFunctionNames,omitempty"`
}

// SafetySetting sets a block threshold for one harm category.
type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// GenerationConfig holds sampling parameters.
type GenerationConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"topP,omitempty"`
	TopK             *int     `json:"topK,omitempty"`
	CandidateCount   *int     `json:"candidateCount,omitempty"`
	MaxOutputTokens  *int     `json:"maxOutputTokens,omitempty"`
	StopSequences    []string `json:"stopSequences,omitempty"`
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
}

// ErrorResponse is the Google API error envelope.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// APIError contains error details. Status is the canonical gRPC code name.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return e.Status + ": " + e.Message
	}
	return e.Message
}

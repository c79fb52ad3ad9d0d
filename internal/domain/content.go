package domain

import (
	"fmt"
	"strings"
)

// PartKind names a ContentPart variant.
type PartKind string

const (
	PartText       PartKind = "text"
	PartImage      PartKind = "image"
	PartToolCall   PartKind = "tool_call"
	PartToolResult PartKind = "tool_result"
)

// ContentPart is one of Text, Image, ToolCall or ToolResult. The set is
// sealed; switch on the concrete type.
type ContentPart interface {
	Kind() PartKind
	isContentPart()
}

// Text is plain text content. Refusal marks text the model returned in
// place of an answer; shapes without a refusal field render it as text.
type Text struct {
	Text    string
	Refusal bool
}

func (Text) Kind() PartKind   { return PartText }
func (Text) isContentPart()   {}
func (t Text) String() string { return t.Text }

// ImageDetail is a rendering hint for image inputs.
type ImageDetail string

const (
	ImageDetailAuto ImageDetail = "auto"
	ImageDetailLow  ImageDetail = "low"
	ImageDetailHigh ImageDetail = "high"
)

// Image references an image either by URL or inline as base64 data.
// Exactly one of URL or Data is set.
type Image struct {
	URL       string
	MediaType string
	Data      string
	Detail    ImageDetail
}

func (Image) Kind() PartKind { return PartImage }
func (Image) isContentPart() {}

// Inline reports whether the image carries its bytes.
func (i Image) Inline() bool { return i.Data != "" }

// DataURL renders an inline image as a data URL.
func (i Image) DataURL() string {
	if !i.Inline() {
		return i.URL
	}
	return "data:" + i.MediaType + ";base64," + i.Data
}

// ParseDataURL splits a base64 data URL into its media type and payload.
func ParseDataURL(url string) (mediaType, data string, ok bool) {
	rest, found := strings.CutPrefix(url, "data:")
	if !found {
		return "", "", false
	}
	header, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", "", false
	}
	mediaType, found = strings.CutSuffix(header, ";base64")
	if !found || mediaType == "" {
		return "", "", false
	}
	return mediaType, payload, true
}

// ImageFromURL builds an Image, inlining data URLs.
func ImageFromURL(url string, detail ImageDetail) Image {
	if mt, data, ok := ParseDataURL(url); ok {
		return Image{MediaType: mt, Data: data, Detail: detail}
	}
	return Image{URL: url, Detail: detail}
}

// ToolCall is a model-issued request to invoke a function.
type ToolCall struct {
	ID   string
	Name string
	// Arguments is the JSON text of the arguments, possibly partial while
	// streaming.
	Arguments string
}

func (ToolCall) Kind() PartKind { return PartToolCall }
func (ToolCall) isContentPart() {}

// ToolResult is the output of a tool call, linked by CallID.
type ToolResult struct {
	CallID string
	// Content holds Text and Image parts.
	Content []ContentPart
	IsError bool
}

func (ToolResult) Kind() PartKind { return PartToolResult }
func (ToolResult) isContentPart() {}

// Text concatenates the text parts of the result.
func (r ToolResult) Text() string {
	var sb strings.Builder
	for _, p := range r.Content {
		if t, ok := p.(Text); ok {
			sb.WriteString(t.Text)
		}
	}
	return sb.String()
}

// TextPart creates a text content part.
func TextPart(text string) Text {
	return Text{Text: text}
}

// ToolCallPart creates a tool-call content part.
func ToolCallPart(id, name, arguments string) ToolCall {
	return ToolCall{ID: id, Name: name, Arguments: arguments}
}

// ToolResultPart creates a tool result carrying a single text part.
func ToolResultPart(callID, content string) ToolResult {
	return ToolResult{CallID: callID, Content: []ContentPart{Text{Text: content}}}
}

func cloneParts(parts []ContentPart) []ContentPart {
	if parts == nil {
		return nil
	}
	out := make([]ContentPart, len(parts))
	for i, p := range parts {
		if r, ok := p.(ToolResult); ok {
			r.Content = cloneParts(r.Content)
			p = r
		}
		out[i] = p
	}
	return out
}

// describePart is used in error messages.
func describePart(p ContentPart) string {
	switch v := p.(type) {
	case ToolCall:
		return fmt.Sprintf("tool_call(%s)", v.ID)
	case ToolResult:
		return fmt.Sprintf("tool_result(%s)", v.CallID)
	default:
		return string(p.Kind())
	}
}

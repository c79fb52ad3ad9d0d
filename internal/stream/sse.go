package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tjfontaine/polyglot-llm-wire/internal/api/wire"
	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
	"github.com/tjfontaine/polyglot-llm-wire/internal/pkg/codec"
)

// Format is the framing of a streamed body.
type Format int

const (
	// FormatSSE is text/event-stream with one payload per data line.
	FormatSSE Format = iota
	// FormatNDJSON is one JSON payload per line.
	FormatNDJSON
	// FormatJSONArray is Gemini's non-SSE stream: one JSON array of chunks.
	FormatJSONArray
)

// ParseFormat accepts "sse", "ndjson" and "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "sse":
		return FormatSSE, nil
	case "ndjson", "jsonl":
		return FormatNDJSON, nil
	case "json", "array":
		return FormatJSONArray, nil
	}
	return 0, fmt.Errorf("unknown stream format %q", s)
}

func (f Format) String() string {
	switch f {
	case FormatSSE:
		return "sse"
	case FormatNDJSON:
		return "ndjson"
	case FormatJSONArray:
		return "json"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// FormatForContentType picks a framing from a Content-Type header.
func FormatForContentType(ct string) Format {
	ct = strings.ToLower(ct)
	switch {
	case strings.Contains(ct, "ndjson"), strings.Contains(ct, "jsonl"):
		return FormatNDJSON
	case strings.Contains(ct, "application/json"):
		return FormatJSONArray
	}
	return FormatSSE
}

const maxLine = 1024 * 1024

// Reader splits a streamed body into payloads.
type Reader struct {
	format  Format
	scanner *bufio.Scanner
	dec     *json.Decoder
	opened  bool
}

// NewReader frames r according to format.
func NewReader(r io.Reader, format Format) *Reader {
	sr := &Reader{format: format}
	if format == FormatJSONArray {
		sr.dec = json.NewDecoder(r)
		return sr
	}
	scanner := bufio.NewScanner(r)
	// Increase buffer size for potentially large chunks
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxLine)
	sr.scanner = scanner
	return sr
}

// Next returns the next payload, or io.EOF when the body is exhausted.
func (r *Reader) Next() ([]byte, error) {
	if r.format == FormatJSONArray {
		return r.nextElement()
	}
	for r.scanner.Scan() {
		line := strings.TrimRight(r.scanner.Text(), "\r")
		if line == "" {
			continue
		}
		switch r.format {
		case FormatNDJSON:
			return []byte(line), nil
		default:
			// event:, id:, retry: and comment lines carry nothing the
			// payload does not already hold.
			if data, ok := strings.CutPrefix(line, "data:"); ok {
				return []byte(strings.TrimPrefix(data, " ")), nil
			}
		}
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("stream read error: %w", err)
	}
	return nil, io.EOF
}

func (r *Reader) nextElement() ([]byte, error) {
	if !r.opened {
		tok, err := r.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("stream read error: %w", err)
		}
		if d, ok := tok.(json.Delim); !ok || d != '[' {
			return nil, domain.InvalidField("", fmt.Errorf("stream body is not a JSON array"))
		}
		r.opened = true
	}
	if !r.dec.More() {
		return nil, io.EOF
	}
	var raw json.RawMessage
	if err := r.dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("stream read error: %w", err)
	}
	return raw, nil
}

// Assemble reads a whole streamed body and returns the assembled response.
// A body that ends before its terminal event is a StreamError of kind
// NotClosed.
func Assemble(r io.Reader, format Format, c codec.Codec) (*domain.Response, error) {
	s := NewSession(c, "")
	reader := NewReader(r, format)
	for {
		payload, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.Abandon()
			return nil, err
		}
		if _, err := s.Feed(payload); err != nil {
			s.Abandon()
			return nil, err
		}
	}
	return s.Result()
}

// WriteSSE frames one payload as a server-sent event. Claude payloads are
// named after their type field; other shapes send bare data lines.
func WriteSSE(w io.Writer, api domain.APIType, payload []byte) error {
	var buf bytes.Buffer
	if api == domain.APITypeAnthropic {
		if name, err := wire.PeekTag(payload, "", "type"); err == nil {
			buf.WriteString("event: ")
			buf.WriteString(name)
			buf.WriteByte('\n')
		}
	}
	buf.WriteString("data: ")
	buf.Write(payload)
	buf.WriteString("\n\n")
	_, err := w.Write(buf.Bytes())
	return err
}

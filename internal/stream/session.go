package stream

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
	"github.com/tjfontaine/polyglot-llm-wire/internal/pkg/codec"
)

// Session binds one provider codec to one response so raw payloads can be
// fed as they arrive. Claude events after message_start carry no id and the
// OpenAI [DONE] sentinel carries nothing; the session supplies the key.
type Session struct {
	codec codec.Codec
	asm   *Assembler
	key   string
}

// NewSession starts a session with its own assembler. An empty key is
// replaced by a random one.
func NewSession(c codec.Codec, key string) *Session {
	return NewSessionOn(NewAssembler(c.APIType()), c, key)
}

// NewSessionOn starts a session on a shared assembler.
func NewSessionOn(asm *Assembler, c codec.Codec, key string) *Session {
	if key == "" {
		key = uuid.NewString()
	}
	return &Session{codec: c, asm: asm, key: key}
}

// Key is the assembler key of this session.
func (s *Session) Key() string { return s.key }

// APIType is the wire shape the session decodes.
func (s *Session) APIType() domain.APIType { return s.codec.APIType() }

// Feed decodes one payload and folds its events. The decoded events are
// returned even when folding fails, so callers can report what was
// rejected.
func (s *Session) Feed(data []byte) ([]domain.StreamEvent, error) {
	events, err := s.codec.DecodeStreamChunk(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s stream payload: %w", s.codec.APIType(), err)
	}
	if err := s.asm.Apply(s.key, events...); err != nil {
		return events, err
	}
	return events, nil
}

// Apply folds already decoded events.
func (s *Session) Apply(events ...domain.StreamEvent) error {
	return s.asm.Apply(s.key, events...)
}

// State reports the lifecycle state; a session that has seen nothing is Open.
func (s *Session) State() State {
	if acc, ok := s.asm.Accumulator(s.key); ok {
		return acc.State()
	}
	return Open
}

// Accumulator exposes the in-progress response, if any event arrived.
func (s *Session) Accumulator() (*Accumulator, bool) {
	return s.asm.Accumulator(s.key)
}

// Abandon gives up on the response.
func (s *Session) Abandon() { s.asm.Abandon(s.key) }

// Result returns the assembled response once the stream is closed. A
// response that never reported an id takes the session key.
func (s *Session) Result() (*domain.Response, error) {
	resp, err := s.asm.Result(s.key)
	if err != nil {
		return nil, err
	}
	if resp.ID == "" {
		resp.ID = s.key
	}
	return resp, nil
}

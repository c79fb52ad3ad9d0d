package stream

import (
	"fmt"

	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
	"github.com/tjfontaine/polyglot-llm-wire/internal/pkg/codec"
)

// Relay re-encodes one provider's stream in another provider's chunk shape
// while assembling it. Events are reshaped for the target: Claude gets
// explicit block starts and stops, OpenAI gets dense tool-call indices and
// Gemini gets complete function calls. Usage is gathered as it arrives and
// sent once, on the finish event for shapes that carry it there and before
// the terminal event otherwise.
type Relay struct {
	session *Session
	to      codec.Codec
	source  IndexPolicy
	target  domain.APIType

	started bool
	// openBlock is the Claude block being written, or -1.
	openBlock int
	openText  bool
	nextBlock int
	// calls maps a source tool-call key to its target index.
	calls    map[int]int
	nextCall int
	ordinals map[string]int
	appended int
	// pending holds Gemini-bound calls until they are complete.
	pending    map[int]*pendingCall
	pendingSeq []int
	emitted    int
	sentUsage  *domain.Usage
}

type pendingCall struct {
	id, name string
	args     []byte
}

// NewRelay relays a from-shaped stream into to's shape.
func NewRelay(from, to codec.Codec) *Relay {
	return NewRelayFor(NewSession(from, ""), to)
}

// NewRelayFor relays the payloads of an existing session.
func NewRelayFor(s *Session, to codec.Codec) *Relay {
	return &Relay{
		session:   s,
		to:        to,
		source:    PolicyFor(s.APIType()),
		target:    to.APIType(),
		openBlock: -1,
		calls:     make(map[int]int),
		ordinals:  make(map[string]int),
		pending:   make(map[int]*pendingCall),
	}
}

// Session returns the assembling session.
func (r *Relay) Session() *Session { return r.session }

// Feed decodes one source payload and returns zero or more target payloads.
func (r *Relay) Feed(data []byte) ([][]byte, error) {
	events, err := r.session.Feed(data)
	if err != nil {
		return nil, err
	}
	return r.encode(events)
}

// Result returns the assembled response once the source stream closed.
func (r *Relay) Result() (*domain.Response, error) {
	return r.session.Result()
}

func (r *Relay) encode(events []domain.StreamEvent) ([][]byte, error) {
	var out [][]byte
	for _, ev := range events {
		translated, err := r.translate(ev)
		if err != nil {
			return out, err
		}
		meta := r.metadata()
		for _, t := range translated {
			payload, err := r.to.EncodeStreamChunk(t, meta)
			if err != nil {
				return out, fmt.Errorf("encode %s stream payload: %w", r.target, err)
			}
			if payload != nil {
				out = append(out, payload)
			}
		}
	}
	return out, nil
}

func (r *Relay) metadata() *codec.StreamMetadata {
	meta := &codec.StreamMetadata{ID: r.session.Key()}
	if acc, ok := r.session.Accumulator(); ok {
		if acc.ID != "" {
			meta.ID = acc.ID
		}
		meta.Model, meta.Created = acc.Model, acc.Created
	}
	return meta
}

func (r *Relay) usage() *domain.Usage {
	if acc, ok := r.session.Accumulator(); ok {
		return acc.Usage()
	}
	return nil
}

// finishCarriesUsage reports whether the target's finish payload has room
// for usage.
func (r *Relay) finishCarriesUsage() bool {
	return r.target == domain.APITypeAnthropic || r.target == domain.APITypeGemini
}

func (r *Relay) translate(ev domain.StreamEvent) ([]domain.StreamEvent, error) {
	var out []domain.StreamEvent
	if ev.Type != domain.StreamEventPing && ev.Type != domain.StreamEventUsage && !r.started {
		r.started = true
		out = append(out, domain.StreamEvent{Type: domain.StreamEventStart, Role: domain.RoleAssistant, Usage: r.usage()})
		if ev.Type == domain.StreamEventStart {
			return out, nil
		}
	}

	switch ev.Type {
	case domain.StreamEventStart:
		// Repeated starts are merged by the assembler.
	case domain.StreamEventText:
		if ev.Text == "" {
			break
		}
		if r.target == domain.APITypeAnthropic {
			if r.openBlock < 0 || !r.openText {
				out = r.closeBlock(out)
				r.openBlock, r.openText = r.nextBlock, true
				r.nextBlock++
				out = append(out, domain.StreamEvent{Type: domain.StreamEventText, Index: r.openBlock})
			}
			out = append(out, domain.StreamEvent{Type: domain.StreamEventText, Index: r.openBlock, Text: ev.Text})
			break
		}
		out = append(out, domain.StreamEvent{Type: domain.StreamEventText, Text: ev.Text, Refusal: ev.Refusal})
	case domain.StreamEventToolCall:
		return r.toolCall(out, ev)
	case domain.StreamEventBlockStop:
		switch r.target {
		case domain.APITypeAnthropic:
			out = r.closeBlock(out)
		case domain.APITypeGemini:
			out = r.flushCall(out, ev.Index)
		}
	case domain.StreamEventUsage:
		// Sent with the finish event or before done.
	case domain.StreamEventFinish:
		out = r.closeBlock(out)
		out = r.flushCalls(out)
		finish := ev.FinishReason
		if r.source == AppendCalls && finish != nil && finish.Kind == domain.FinishStop && r.emitted > 0 {
			finish = domain.NewFinishReason(domain.FinishToolCalls)
		}
		fin := domain.StreamEvent{Type: domain.StreamEventFinish, FinishReason: finish}
		if r.finishCarriesUsage() {
			fin.Usage = r.usage()
			r.sentUsage = fin.Usage
		}
		out = append(out, fin)
	case domain.StreamEventDone:
		out = r.closeBlock(out)
		out = r.flushCalls(out)
		if u := r.usage(); u != nil && (r.sentUsage == nil || *u != *r.sentUsage) {
			out = append(out, domain.StreamEvent{Type: domain.StreamEventUsage, Usage: u})
			r.sentUsage = u
		}
		out = append(out, domain.StreamEvent{Type: domain.StreamEventDone})
	case domain.StreamEventPing:
		out = append(out, ev)
	}
	return out, nil
}

// callKey identifies a source tool call across its deltas.
func (r *Relay) callKey(ev domain.StreamEvent) int {
	switch r.source {
	case SharedBlocks:
		return ev.Index
	case AppendCalls:
		r.appended++
		return r.appended - 1
	}
	return ev.ToolCall.Index
}

func (r *Relay) callID(id, name string) string {
	if id == "" {
		id = domain.SyntheticCallID(name, r.ordinals[name])
	}
	r.ordinals[name]++
	return id
}

func (r *Relay) toolCall(out []domain.StreamEvent, ev domain.StreamEvent) ([]domain.StreamEvent, error) {
	tc := ev.ToolCall
	key := r.callKey(ev)
	idx, known := r.calls[key]

	switch r.target {
	case domain.APITypeGemini:
		p := r.pending[key]
		if p == nil {
			p = &pendingCall{}
			r.pending[key] = p
			r.pendingSeq = append(r.pendingSeq, key)
		}
		if p.id == "" {
			p.id = tc.ID
		}
		if p.name == "" {
			p.name = tc.Name
		}
		p.args = append(p.args, tc.ArgumentsDelta...)
		if r.source == AppendCalls {
			out = r.flushCall(out, key)
		}
		return out, nil

	case domain.APITypeAnthropic:
		if known {
			if idx != r.openBlock {
				return out, domain.Unrepresentable(r.target, fmt.Sprintf("tool_calls[%d]", tc.Index), "tool call delta",
					"content block was already stopped")
			}
		} else {
			out = r.closeBlock(out)
			idx = r.nextBlock
			r.nextBlock++
			r.calls[key] = idx
			r.openBlock, r.openText = idx, false
			r.emitted++
			out = append(out, domain.StreamEvent{Type: domain.StreamEventToolCall, Index: idx, ToolCall: &domain.ToolCallDelta{
				Index: idx,
				ID:    r.callID(tc.ID, tc.Name),
				Name:  tc.Name,
			}})
		}
		if tc.ArgumentsDelta != "" {
			out = append(out, domain.StreamEvent{Type: domain.StreamEventToolCall, Index: idx, ToolCall: &domain.ToolCallDelta{
				Index:          idx,
				ArgumentsDelta: tc.ArgumentsDelta,
			}})
		}
		return out, nil
	}

	delta := &domain.ToolCallDelta{ArgumentsDelta: tc.ArgumentsDelta}
	if !known {
		idx = r.nextCall
		r.nextCall++
		r.calls[key] = idx
		r.emitted++
		delta.ID, delta.Name = r.callID(tc.ID, tc.Name), tc.Name
	}
	delta.Index = idx
	return append(out, domain.StreamEvent{Type: domain.StreamEventToolCall, ToolCall: delta}), nil
}

func (r *Relay) closeBlock(out []domain.StreamEvent) []domain.StreamEvent {
	if r.target != domain.APITypeAnthropic || r.openBlock < 0 {
		return out
	}
	out = append(out, domain.StreamEvent{Type: domain.StreamEventBlockStop, Index: r.openBlock})
	r.openBlock = -1
	return out
}

func (r *Relay) flushCall(out []domain.StreamEvent, key int) []domain.StreamEvent {
	p := r.pending[key]
	if p == nil {
		return out
	}
	delete(r.pending, key)
	args := string(p.args)
	if args == "" {
		args = "{}"
	}
	idx := r.nextCall
	r.nextCall++
	r.emitted++
	return append(out, domain.StreamEvent{Type: domain.StreamEventToolCall, ToolCall: &domain.ToolCallDelta{
		Index:          idx,
		ID:             r.callID(p.id, p.name),
		Name:           p.name,
		ArgumentsDelta: args,
	}})
}

func (r *Relay) flushCalls(out []domain.StreamEvent) []domain.StreamEvent {
	for _, key := range r.pendingSeq {
		out = r.flushCall(out, key)
	}
	r.pendingSeq = r.pendingSeq[:0]
	return out
}

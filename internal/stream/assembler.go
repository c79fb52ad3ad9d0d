// Package stream folds canonical streaming events into complete responses.
//
// An Assembler is a table of accumulators keyed by response id. Each
// accumulator moves through Open, Closed and Abandoned; events are only
// accepted while Open. The assembler has no timers and no locks: callers
// deliver the events of one response from a single goroutine.
package stream

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
)

// State is the lifecycle of one accumulator.
type State int

const (
	Open State = iota
	Closed
	Abandoned
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Closed:
		return "closed"
	case Abandoned:
		return "abandoned"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// IndexPolicy decides how event indices address content.
type IndexPolicy int

const (
	// SharedBlocks numbers text and tool calls in one block space. A block
	// is sealed by a block stop and never reopened (Claude).
	SharedBlocks IndexPolicy = iota
	// SplitIndices keeps text at one position and numbers tool calls on
	// their own. A tool-call index that reappears appends (OpenAI).
	SplitIndices
	// AppendCalls treats every tool-call event as a complete new call
	// (Gemini).
	AppendCalls
)

// PolicyFor returns the index policy of a wire shape.
func PolicyFor(api domain.APIType) IndexPolicy {
	switch api {
	case domain.APITypeAnthropic:
		return SharedBlocks
	case domain.APITypeGemini:
		return AppendCalls
	}
	return SplitIndices
}

type blockKind int

const (
	textBlock blockKind = iota
	callBlock
)

type block struct {
	kind    blockKind
	refusal bool
	text    strings.Builder
	id      string
	name    string
	args    strings.Builder
}

// Accumulator holds one in-progress response.
type Accumulator struct {
	ID      string
	Model   string
	Created int64

	state  State
	policy IndexPolicy

	// blocks is rendering order. For SharedBlocks the slice position is the
	// wire index.
	blocks  []*block
	text    *block
	refusal *block
	// calls maps tool-call index to block for SplitIndices.
	calls  map[int]*block
	sealed map[int]bool
	finish *domain.FinishReason
	usage  *domain.Usage
}

func newAccumulator(policy IndexPolicy) *Accumulator {
	return &Accumulator{
		policy: policy,
		calls:  make(map[int]*block),
		sealed: make(map[int]bool),
	}
}

// State reports the lifecycle state.
func (a *Accumulator) State() State { return a.state }

// Usage returns the usage merged so far, with the total filled in.
func (a *Accumulator) Usage() *domain.Usage {
	if a.usage == nil {
		return nil
	}
	u := *a.usage
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return &u
}

// FinishReason returns the last finish reason seen.
func (a *Accumulator) FinishReason() *domain.FinishReason { return a.finish }

func (a *Accumulator) apply(ev domain.StreamEvent) error {
	if ev.Usage != nil {
		a.mergeUsage(ev.Usage)
	}
	// The wire id comes from the start event, or from the first chunk that
	// carries one in shapes without a start event.
	if ev.ResponseID != "" && (a.ID == "" || ev.Type == domain.StreamEventStart) {
		a.ID = ev.ResponseID
	}
	if ev.Model != "" && (a.Model == "" || ev.Type == domain.StreamEventStart) {
		a.Model = ev.Model
	}
	if a.Created == 0 {
		a.Created = ev.Created
	}
	switch ev.Type {
	case domain.StreamEventStart:
	case domain.StreamEventText:
		return a.applyText(ev)
	case domain.StreamEventToolCall:
		if ev.ToolCall == nil {
			return domain.InvalidField("tool_call", fmt.Errorf("tool_call event without delta"))
		}
		return a.applyToolCall(ev)
	case domain.StreamEventBlockStop:
		if a.policy == SharedBlocks {
			if ev.Index >= len(a.blocks) {
				return domain.InvalidField(fmt.Sprintf("content[%d].index", ev.Index), fmt.Errorf("block stop for unopened block %d", ev.Index))
			}
			a.sealed[ev.Index] = true
		}
	case domain.StreamEventFinish:
		if ev.FinishReason != nil {
			a.finish = ev.FinishReason
		}
	case domain.StreamEventDone:
		a.state = Closed
	case domain.StreamEventUsage, domain.StreamEventPing:
	default:
		return domain.UnknownVariant("", "type", string(ev.Type), nil)
	}
	return nil
}

// mergeUsage overwrites with every non-zero count.
func (a *Accumulator) mergeUsage(u *domain.Usage) {
	if a.usage == nil {
		a.usage = &domain.Usage{}
	}
	if u.PromptTokens != 0 {
		a.usage.PromptTokens = u.PromptTokens
	}
	if u.CompletionTokens != 0 {
		a.usage.CompletionTokens = u.CompletionTokens
	}
	if u.TotalTokens != 0 {
		a.usage.TotalTokens = u.TotalTokens
	}
}

func (a *Accumulator) applyText(ev domain.StreamEvent) error {
	switch a.policy {
	case SharedBlocks:
		b, err := a.sharedBlock(ev.Index, textBlock, fmt.Sprintf("content[%d].index", ev.Index))
		if err != nil {
			return err
		}
		b.text.WriteString(ev.Text)
	case SplitIndices:
		slot := &a.text
		if ev.Refusal {
			slot = &a.refusal
		}
		if *slot == nil {
			if ev.Text == "" {
				return nil
			}
			*slot = &block{kind: textBlock, refusal: ev.Refusal}
			a.blocks = append(a.blocks, *slot)
		}
		(*slot).text.WriteString(ev.Text)
	case AppendCalls:
		if ev.Text == "" {
			return nil
		}
		if n := len(a.blocks); n == 0 || a.blocks[n-1].kind != textBlock {
			a.blocks = append(a.blocks, &block{kind: textBlock})
		}
		a.blocks[len(a.blocks)-1].text.WriteString(ev.Text)
	}
	return nil
}

func (a *Accumulator) applyToolCall(ev domain.StreamEvent) error {
	tc := ev.ToolCall
	path := fmt.Sprintf("tool_calls[%d].index", tc.Index)
	var b *block
	switch a.policy {
	case SharedBlocks:
		var err error
		if b, err = a.sharedBlock(ev.Index, callBlock, path); err != nil {
			return err
		}
	case SplitIndices:
		b = a.calls[tc.Index]
		if b == nil {
			if tc.Index != len(a.calls) {
				return domain.InvalidField(path, fmt.Errorf("tool call index %d skips ahead of %d", tc.Index, len(a.calls)))
			}
			b = &block{kind: callBlock}
			a.calls[tc.Index] = b
			a.blocks = append(a.blocks, b)
		}
	case AppendCalls:
		b = &block{kind: callBlock}
		a.blocks = append(a.blocks, b)
	}
	if b.id == "" {
		b.id = tc.ID
	}
	if b.name == "" {
		b.name = tc.Name
	}
	b.args.WriteString(tc.ArgumentsDelta)
	return nil
}

// sharedBlock returns the block at index, opening it when index is the next
// free position.
func (a *Accumulator) sharedBlock(index int, kind blockKind, path string) (*block, error) {
	switch {
	case index < len(a.blocks):
		if a.sealed[index] {
			return nil, domain.InvalidField(path, fmt.Errorf("block %d is already stopped", index))
		}
		b := a.blocks[index]
		if b.kind != kind {
			return nil, domain.InvalidField(path, fmt.Errorf("block %d changes kind", index))
		}
		return b, nil
	case index == len(a.blocks):
		b := &block{kind: kind}
		a.blocks = append(a.blocks, b)
		return b, nil
	}
	return nil, domain.InvalidField(path, fmt.Errorf("block index %d skips ahead of %d", index, len(a.blocks)))
}

// Message renders the assembled assistant message.
func (a *Accumulator) Message() domain.Message {
	msg := domain.Message{Role: domain.RoleAssistant}
	ordinals := make(map[string]int)
	for _, b := range a.orderedBlocks() {
		switch b.kind {
		case textBlock:
			if b.text.Len() == 0 {
				continue
			}
			msg.Parts = append(msg.Parts, domain.Text{Text: b.text.String(), Refusal: b.refusal})
		case callBlock:
			id, args := b.id, b.args.String()
			if id == "" && a.policy == AppendCalls {
				id = domain.SyntheticCallID(b.name, ordinals[b.name])
			}
			ordinals[b.name]++
			if args == "" && a.policy != SplitIndices {
				args = "{}"
			}
			msg.Parts = append(msg.Parts, domain.ToolCallPart(id, b.name, args))
		}
	}
	return msg
}

// orderedBlocks puts OpenAI content, then refusal, ahead of tool calls, which
// are ordered by index, matching how a complete OpenAI message decodes.
func (a *Accumulator) orderedBlocks() []*block {
	if a.policy != SplitIndices {
		return a.blocks
	}
	out := make([]*block, 0, len(a.blocks))
	if a.text != nil {
		out = append(out, a.text)
	}
	if a.refusal != nil {
		out = append(out, a.refusal)
	}
	idx := make([]int, 0, len(a.calls))
	for i := range a.calls {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	for _, i := range idx {
		out = append(out, a.calls[i])
	}
	return out
}

// Response renders the assembled response regardless of state.
func (a *Accumulator) Response() *domain.Response {
	msg := a.Message()
	finish := a.finish
	if a.policy == AppendCalls && finish != nil && finish.Kind == domain.FinishStop && len(msg.ToolCalls()) > 0 {
		finish = domain.NewFinishReason(domain.FinishToolCalls)
	}
	return &domain.Response{
		ID:      a.ID,
		Model:   a.Model,
		Created: a.Created,
		Choices: []domain.Choice{{Index: 0, Message: msg, FinishReason: finish}},
		Usage:   a.Usage(),
	}
}

// Assembler is a caller-owned table of accumulators.
type Assembler struct {
	policy  IndexPolicy
	streams map[string]*Accumulator
}

// NewAssembler returns an assembler for streams of one wire shape.
func NewAssembler(api domain.APIType) *Assembler {
	return NewAssemblerWithPolicy(PolicyFor(api))
}

// NewAssemblerWithPolicy returns an assembler with an explicit index policy.
func NewAssemblerWithPolicy(policy IndexPolicy) *Assembler {
	return &Assembler{policy: policy, streams: make(map[string]*Accumulator)}
}

// Apply folds events into the accumulator for id, creating it on first use.
// Events after close or abandon are rejected with a *domain.StreamError.
// Processing stops at the first rejected event; earlier events stay applied.
func (a *Assembler) Apply(id string, events ...domain.StreamEvent) error {
	acc := a.streams[id]
	if acc == nil {
		acc = newAccumulator(a.policy)
		a.streams[id] = acc
	}
	for _, ev := range events {
		switch acc.state {
		case Closed:
			return &domain.StreamError{Kind: domain.StreamAlreadyClosed, ResponseID: id, Event: ev.Type}
		case Abandoned:
			return &domain.StreamError{Kind: domain.StreamAbandoned, ResponseID: id, Event: ev.Type}
		}
		if err := acc.apply(ev); err != nil {
			return err
		}
	}
	return nil
}

// Abandon marks id abandoned. Abandoning an unknown id reserves it so later
// events are rejected too.
func (a *Assembler) Abandon(id string) {
	acc := a.streams[id]
	if acc == nil {
		acc = newAccumulator(a.policy)
		a.streams[id] = acc
	}
	acc.state = Abandoned
}

// Accumulator returns the accumulator for id, if any.
func (a *Assembler) Accumulator(id string) (*Accumulator, bool) {
	acc, ok := a.streams[id]
	return acc, ok
}

// Result returns the finalized response once id is closed. The response
// carries the wire id; id is used only when the stream never named one.
func (a *Assembler) Result(id string) (*domain.Response, error) {
	acc := a.streams[id]
	if acc == nil {
		return nil, &domain.StreamError{Kind: domain.StreamNotClosed, ResponseID: id}
	}
	switch acc.state {
	case Abandoned:
		return nil, &domain.StreamError{Kind: domain.StreamAbandoned, ResponseID: id}
	case Open:
		return nil, &domain.StreamError{Kind: domain.StreamNotClosed, ResponseID: id}
	}
	resp := acc.Response()
	if resp.ID == "" {
		resp.ID = id
	}
	return resp, nil
}

// Remove drops id from the table.
func (a *Assembler) Remove(id string) {
	delete(a.streams, id)
}

// Len reports how many streams are tracked.
func (a *Assembler) Len() int { return len(a.streams) }

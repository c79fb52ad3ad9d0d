package domain

// FinishKind is the provider-neutral reason generation stopped.
type FinishKind string

const (
	FinishStop          FinishKind = "stop"
	FinishLength        FinishKind = "length"
	FinishToolCalls     FinishKind = "tool_calls"
	FinishContentFilter FinishKind = "content_filter"
	FinishOther         FinishKind = "other"
)

// FinishReason pairs the neutral kind with the provider's raw string. Raw is
// kept so a value decoded from one provider re-encodes to the same string.
type FinishReason struct {
	Kind FinishKind
	Raw  string
}

// NewFinishReason builds a reason without provider-specific raw text.
func NewFinishReason(kind FinishKind) *FinishReason {
	return &FinishReason{Kind: kind}
}

// OtherFinishReason wraps a reason string no table recognized.
func OtherFinishReason(raw string) *FinishReason {
	return &FinishReason{Kind: FinishOther, Raw: raw}
}

// FinishTable maps one provider's raw reason strings to kinds. The first
// entry listed for a kind is what Encode emits when no raw string applies.
type FinishTable struct {
	entries []FinishMapping
}

// FinishMapping is one row of a FinishTable.
type FinishMapping struct {
	Raw  string
	Kind FinishKind
}

// NewFinishTable builds a table from rows in priority order.
func NewFinishTable(rows ...FinishMapping) FinishTable {
	return FinishTable{entries: rows}
}

// Decode never fails: unknown strings become FinishOther. Raw is only kept
// when it differs from the table's default for the kind.
func (t FinishTable) Decode(raw string) *FinishReason {
	for _, e := range t.entries {
		if e.Raw != raw {
			continue
		}
		if t.defaultFor(e.Kind) == raw {
			return &FinishReason{Kind: e.Kind}
		}
		return &FinishReason{Kind: e.Kind, Raw: raw}
	}
	return OtherFinishReason(raw)
}

func (t FinishTable) defaultFor(kind FinishKind) string {
	for _, e := range t.entries {
		if e.Kind == kind {
			return e.Raw
		}
	}
	return ""
}

// Encode prefers the raw string when it belongs to this table and agrees with
// the kind; otherwise it uses the table's default for the kind. FinishOther
// passes its raw string through.
func (t FinishTable) Encode(fr *FinishReason) string {
	if fr == nil {
		return ""
	}
	for _, e := range t.entries {
		if e.Raw == fr.Raw && e.Kind == fr.Kind {
			return e.Raw
		}
	}
	if fr.Kind == FinishOther {
		return fr.Raw
	}
	if raw := t.defaultFor(fr.Kind); raw != "" {
		return raw
	}
	return fr.Raw
}

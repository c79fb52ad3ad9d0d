package gemini

// Filler turns inserted by NormalizeContents.
const (
	OpeningTurnText  = "Starting the conversation..."
	ContinueTurnText = "continue"
)

// NormalizeContents reshapes a turn list into what the API accepts: it
// must open with a user turn, alternate roles, and end on a user turn.
// Consecutive same-role turns are merged, a user opener is prepended when
// the model speaks first, and a user "continue" is appended when the model
// speaks last. The input is not modified.
func NormalizeContents(contents []Content) []Content {
	out := make([]Content, 0, len(contents)+2)
	for _, c := range contents {
		if n := len(out); n > 0 && out[n-1].Role == c.Role {
			out[n-1].Parts = append(out[n-1].Parts, c.Parts...)
			continue
		}
		out = append(out, Content{Role: c.Role, Parts: append([]Part(nil), c.Parts...)})
	}
	if len(out) == 0 {
		return out
	}
	if out[0].Role == RoleModel {
		out = append([]Content{{Role: RoleUser, Parts: []Part{TextPart{Text: OpeningTurnText}}}}, out...)
	}
	if out[len(out)-1].Role == RoleModel {
		out = append(out, Content{Role: RoleUser, Parts: []Part{TextPart{Text: ContinueTurnText}}})
	}
	return out
}

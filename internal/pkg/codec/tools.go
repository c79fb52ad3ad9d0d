package codec

import (
	"fmt"

	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
)

// CheckToolNames reports a repeated tool name as a decode error located at
// the wire path of the second definition.
func CheckToolNames(tools []domain.ToolDefinition, pathOf func(i int) string) error {
	seen := make(map[string]bool, len(tools))
	for i, t := range tools {
		if seen[t.Name] {
			return domain.InvalidField(pathOf(i), fmt.Errorf("%w: %q", domain.ErrDuplicateToolName, t.Name))
		}
		seen[t.Name] = true
	}
	return nil
}

// PartPath formats the canonical location used in transcode errors.
func PartPath(msg, part int) string {
	return fmt.Sprintf("messages[%d].parts[%d]", msg, part)
}

// MessagePath formats the canonical location of a message.
func MessagePath(msg int) string {
	return fmt.Sprintf("messages[%d]", msg)
}

// ChoicePath formats the canonical location of a part inside a response choice.
func ChoicePath(choice, part int) string {
	return fmt.Sprintf("choices[%d].message.parts[%d]", choice, part)
}

package domain

import "fmt"

// NewMessage builds a message after checking the parts are allowed for role.
// The parts slice is copied.
func NewMessage(role Role, parts ...ContentPart) (Message, error) {
	m := Message{Role: role, Parts: cloneParts(parts)}
	if err := ValidateMessage(m, "message"); err != nil {
		return Message{}, err
	}
	return m, nil
}

// NewNamedMessage is NewMessage with a participant name.
func NewNamedMessage(role Role, name string, parts ...ContentPart) (Message, error) {
	m, err := NewMessage(role, parts...)
	if err != nil {
		return Message{}, err
	}
	m.Name = name
	return m, nil
}

// NewRequest builds a request, validating every message, tool-name
// uniqueness and tool-result linkage.
func NewRequest(model string, messages []Message, tools ...ToolDefinition) (*Request, error) {
	req := &Request{Model: model}
	for _, m := range messages {
		req.Messages = append(req.Messages, m.Clone())
	}
	for _, t := range tools {
		t.Parameters = append([]byte(nil), t.Parameters...)
		req.Tools = append(req.Tools, t)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// Validate runs every construction check on the request.
func (r *Request) Validate() error {
	for i, m := range r.Messages {
		if err := ValidateMessage(m, fmt.Sprintf("messages[%d]", i)); err != nil {
			return err
		}
	}
	if err := ValidateTools(r.Tools); err != nil {
		return err
	}
	return ValidateConversation(r.Messages)
}

// ValidateTools rejects duplicate tool names.
func ValidateTools(tools []ToolDefinition) error {
	seen := make(map[string]int, len(tools))
	for i, t := range tools {
		if j, ok := seen[t.Name]; ok {
			return &ConstructionError{
				Kind:   ConstructionDuplicateToolName,
				Path:   fmt.Sprintf("tools[%d].name", i),
				Detail: fmt.Sprintf("tool %q already defined at tools[%d]", t.Name, j),
			}
		}
		seen[t.Name] = i
	}
	return nil
}

// ValidateMessage checks role/content compatibility.
func ValidateMessage(m Message, path string) error {
	if !m.Role.Valid() {
		return &ConstructionError{
			Kind:   ConstructionRoleContent,
			Path:   path + ".role",
			Detail: fmt.Sprintf("unknown role %q", m.Role),
		}
	}
	if m.Role == RoleTool && len(m.Parts) != 1 {
		return &ConstructionError{
			Kind:   ConstructionRoleContent,
			Path:   path + ".parts",
			Detail: fmt.Sprintf("tool message must carry exactly one tool_result, got %d parts", len(m.Parts)),
		}
	}
	for i, p := range m.Parts {
		if !partAllowed(m.Role, p) {
			return &ConstructionError{
				Kind:   ConstructionRoleContent,
				Path:   fmt.Sprintf("%s.parts[%d]", path, i),
				Detail: fmt.Sprintf("%s not allowed in %s message", describePart(p), m.Role),
			}
		}
		if r, ok := p.(ToolResult); ok {
			for j, c := range r.Content {
				switch c.(type) {
				case Text, Image:
				default:
					return &ConstructionError{
						Kind:   ConstructionRoleContent,
						Path:   fmt.Sprintf("%s.parts[%d].content[%d]", path, i, j),
						Detail: fmt.Sprintf("%s not allowed in tool result content", describePart(c)),
					}
				}
			}
		}
	}
	return nil
}

func partAllowed(role Role, p ContentPart) bool {
	switch p.(type) {
	case Text:
		return role != RoleTool
	case Image:
		return role == RoleUser
	case ToolCall:
		return role == RoleAssistant
	case ToolResult:
		return role == RoleTool
	}
	return false
}

// ValidateConversation checks that every tool result answers a tool call
// issued earlier in the conversation.
func ValidateConversation(messages []Message) error {
	issued := make(map[string]bool)
	for i, m := range messages {
		for j, p := range m.Parts {
			switch v := p.(type) {
			case ToolCall:
				issued[v.ID] = true
			case ToolResult:
				if !issued[v.CallID] {
					return &ConstructionError{
						Kind:   ConstructionDanglingToolResult,
						Path:   fmt.Sprintf("messages[%d].parts[%d]", i, j),
						Detail: fmt.Sprintf("tool result references unknown call %q", v.CallID),
					}
				}
			}
		}
	}
	return nil
}

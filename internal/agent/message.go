package agent

import "strings"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

const (
	PartTypeText     = "text"
	PartTypeImageURL = "image_url"
)

type MessagePart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Message is one entry of the ordered list sent to the model client. Parts
// carry multi-part content (text plus resolved image URLs); ToolCalls carries
// the assistant's requested calls; ToolCallID/ToolName pair a tool-result
// message with the call it answers.
type Message struct {
	Role       Role          `json:"role"`
	Parts      []MessagePart `json:"parts,omitempty"`
	ToolCalls  []ToolCall    `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
	ToolName   string        `json:"tool_name,omitempty"`
}

func TextMessage(role Role, text string) Message {
	return Message{
		Role:  role,
		Parts: []MessagePart{{Type: PartTypeText, Text: text}},
	}
}

func ImageMessage(role Role, text string, urls []string) Message {
	parts := make([]MessagePart, 0, len(urls)+1)
	if strings.TrimSpace(text) != "" {
		parts = append(parts, MessagePart{Type: PartTypeText, Text: text})
	}
	for _, u := range urls {
		if strings.TrimSpace(u) == "" {
			continue
		}
		parts = append(parts, MessagePart{Type: PartTypeImageURL, ImageURL: u})
	}
	return Message{Role: role, Parts: parts}
}

// Text concatenates the text parts of a message.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartTypeText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

func (m Message) ImageURLs() []string {
	var out []string
	for _, p := range m.Parts {
		if p.Type == PartTypeImageURL && p.ImageURL != "" {
			out = append(out, p.ImageURL)
		}
	}
	return out
}

package agent

import "context"

// ToolCall is a structured, uniquely identified request from the model for a
// named side-effecting operation with JSON arguments. A given call id is
// surfaced to the caller exactly once even when the model streams it across
// multiple partial chunks.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCallDelta is one partial tool-call fragment from the model stream. The
// id and name arrive with the first fragment; ArgsFragment accumulates across
// fragments sharing the same id.
type ToolCallDelta struct {
	ID           string
	Name         string
	ArgsFragment string
}

// Chunk is one unit of the model's streaming response: a text delta, a
// partial tool-call fragment, or both empty (ignored).
type Chunk struct {
	TextDelta     string
	ToolCallDelta *ToolCallDelta
}

// ModelStream yields chunks until io.EOF.
type ModelStream interface {
	Recv() (Chunk, error)
	Close() error
}

// BoundClient is a model client bound to a fixed tool set for the duration of
// a loop execution.
type BoundClient interface {
	Invoke(ctx context.Context, messages []Message) (ModelStream, error)
}

// ModelClient produces streaming text / tool-call generation for a bound set
// of tools.
type ModelClient interface {
	BindTools(tools []ToolDefinition) BoundClient
}

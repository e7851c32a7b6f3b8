package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/nestplan/nestplan-backend/internal/agent"
	"github.com/nestplan/nestplan-backend/internal/sse"
)

// ChatNotifier fans engine events out to the thread owner's SSE channel. All
// methods are fire-and-forget; delivery is best-effort by design of the hub.
type ChatNotifier interface {
	Token(userID, threadID uuid.UUID, delta string)
	ToolCall(userID, threadID uuid.UUID, name, argsPreview string)
	ToolResult(userID, threadID uuid.UUID, name, resultPreview string)
	Complete(userID, threadID uuid.UUID, fullText string)
	Error(userID, threadID uuid.UUID, errMsg string)
}

type chatNotifier struct {
	emit SSEEmitter
}

func NewChatNotifier(emit SSEEmitter) ChatNotifier {
	return &chatNotifier{emit: emit}
}

func (n *chatNotifier) Token(userID, threadID uuid.UUID, delta string) {
	if n == nil || n.emit == nil || userID == uuid.Nil || delta == "" {
		return
	}
	n.emit.Emit(context.Background(), sse.SSEMessage{
		Channel: userID.String(),
		Event:   sse.SSEEventChatToken,
		Data:    map[string]any{"thread_id": threadID, "delta": delta},
	})
}

func (n *chatNotifier) ToolCall(userID, threadID uuid.UUID, name, argsPreview string) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), sse.SSEMessage{
		Channel: userID.String(),
		Event:   sse.SSEEventChatToolCall,
		Data:    map[string]any{"thread_id": threadID, "tool": name, "args": argsPreview},
	})
}

func (n *chatNotifier) ToolResult(userID, threadID uuid.UUID, name, resultPreview string) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), sse.SSEMessage{
		Channel: userID.String(),
		Event:   sse.SSEEventChatToolResult,
		Data:    map[string]any{"thread_id": threadID, "tool": name, "result": resultPreview},
	})
}

func (n *chatNotifier) Complete(userID, threadID uuid.UUID, fullText string) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), sse.SSEMessage{
		Channel: userID.String(),
		Event:   sse.SSEEventChatComplete,
		Data:    map[string]any{"thread_id": threadID, "text": fullText},
	})
}

func (n *chatNotifier) Error(userID, threadID uuid.UUID, errMsg string) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), sse.SSEMessage{
		Channel: userID.String(),
		Event:   sse.SSEEventChatError,
		Data:    map[string]any{"thread_id": threadID, "error": errMsg},
	})
}

// EngineCallbacks binds a notifier to one thread's event stream in the shape
// the engine expects.
func EngineCallbacks(n ChatNotifier, userID, threadID uuid.UUID) agent.Callbacks {
	return agent.Callbacks{
		OnToken: func(delta string) {
			n.Token(userID, threadID, delta)
		},
		OnComplete: func(fullText string) {
			n.Complete(userID, threadID, fullText)
		},
		OnError: func(err error) {
			n.Error(userID, threadID, err.Error())
		},
		OnToolCall: func(name, argsPreview string) {
			n.ToolCall(userID, threadID, name, argsPreview)
		},
		OnToolResult: func(name, resultPreview string) {
			n.ToolResult(userID, threadID, name, resultPreview)
		},
	}
}

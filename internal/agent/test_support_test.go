package agent

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/nestplan/nestplan-backend/internal/logger"
)

func testLogger(t interface{ Fatalf(string, ...any) }) *logger.Logger {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

// --- scripted model client ---

type scriptedStream struct {
	chunks []Chunk
	pos    int
	err    error
}

func (s *scriptedStream) Recv() (Chunk, error) {
	if s.pos < len(s.chunks) {
		c := s.chunks[s.pos]
		s.pos++
		return c, nil
	}
	if s.err != nil {
		return Chunk{}, s.err
	}
	return Chunk{}, io.EOF
}

func (s *scriptedStream) Close() error { return nil }

type scriptedResponse struct {
	chunks    []Chunk
	invokeErr error
	streamErr error
}

// scriptedModel replays a fixed sequence of responses, one per Invoke. When
// the script runs out it repeats the last response, which lets ceiling tests
// script a single looping tool call.
type scriptedModel struct {
	mu        sync.Mutex
	responses []scriptedResponse
	calls     [][]Message
	bound     []ToolDefinition
}

func (m *scriptedModel) BindTools(tools []ToolDefinition) BoundClient {
	m.bound = tools
	return &scriptedBound{model: m}
}

type scriptedBound struct {
	model *scriptedModel
}

func (b *scriptedBound) Invoke(_ context.Context, messages []Message) (ModelStream, error) {
	m := b.model
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := len(m.calls)
	m.calls = append(m.calls, messages)
	if len(m.responses) == 0 {
		return nil, fmt.Errorf("scripted model: no responses")
	}
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	r := m.responses[idx]
	if r.invokeErr != nil {
		return nil, r.invokeErr
	}
	return &scriptedStream{chunks: r.chunks, err: r.streamErr}, nil
}

func textChunks(parts ...string) []Chunk {
	out := make([]Chunk, 0, len(parts))
	for _, p := range parts {
		out = append(out, Chunk{TextDelta: p})
	}
	return out
}

// --- in-memory turn store ---

type memTurnStore struct {
	mu        sync.Mutex
	turns     []Turn
	failNext  bool
	failFrom  int // when > 0, every Append after failFrom stored turns fails
	failCount int
}

func (s *memTurnStore) Append(_ context.Context, t Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext || (s.failFrom > 0 && len(s.turns) >= s.failFrom) {
		s.failNext = false
		s.failCount++
		return fmt.Errorf("injected turn write failure")
	}
	s.turns = append(s.turns, t)
	return nil
}

func (s *memTurnStore) ListRecent(_ context.Context, threadID uuid.UUID, limit int) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Turn
	for _, t := range s.turns {
		if t.ThreadID == threadID {
			out = append(out, t)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *memTurnStore) all() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn{}, s.turns...)
}

// --- fakes for phase lookup and attachment resolution ---

type fixedPhase struct {
	phase string
	err   error
}

func (p fixedPhase) GetPhase(context.Context, uuid.UUID) (string, error) {
	return p.phase, p.err
}

type mapResolver struct {
	urls map[string]string
}

func (r mapResolver) Resolve(_ context.Context, assetID string) (string, error) {
	if url, ok := r.urls[assetID]; ok {
		return url, nil
	}
	return "", fmt.Errorf("asset %q not found", assetID)
}

// --- event recorder ---

type eventRecorder struct {
	mu          sync.Mutex
	tokens      []string
	toolCalls   []string
	toolResults []string
	completes   []string
	errs        []error
	sequence    []string
}

func (r *eventRecorder) callbacks() Callbacks {
	return Callbacks{
		OnToken: func(text string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.tokens = append(r.tokens, text)
			r.sequence = append(r.sequence, "token")
		},
		OnComplete: func(full string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.completes = append(r.completes, full)
			r.sequence = append(r.sequence, "complete")
		},
		OnError: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
			r.sequence = append(r.sequence, "error")
		},
		OnToolCall: func(name, _ string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.toolCalls = append(r.toolCalls, name)
			r.sequence = append(r.sequence, "tool_call")
		},
		OnToolResult: func(name, _ string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.toolResults = append(r.toolResults, name)
			r.sequence = append(r.sequence, "tool_result")
		},
	}
}

func (r *eventRecorder) fullTokenText() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := ""
	for _, t := range r.tokens {
		out += t
	}
	return out
}

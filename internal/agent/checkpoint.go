package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// State is the serialized per-thread engine state: the accumulated message
// history plus the current step counter. It is written after every step and
// read once at the start of a new invocation for the thread.
type State struct {
	Messages []Message `json:"messages"`
	Step     int       `json:"step"`
}

// CheckpointStore persists per-thread engine state. Implementations are not
// safe for concurrent writers on the same thread id; the caller serializes
// invocations per thread (see services.ChatService).
type CheckpointStore interface {
	// Get returns the state for a thread, or nil if absent.
	Get(ctx context.Context, threadID uuid.UUID) (*State, error)
	Put(ctx context.Context, threadID uuid.UUID, state *State) error
	// Initialize performs one-time setup and is idempotent.
	Initialize(ctx context.Context) error
	// Reset tears down all stored state so the next access starts fresh.
	Reset(ctx context.Context) error
}

// MemoryCheckpointStore keeps state for the process lifetime only. States are
// stored serialized so callers never share slices with the store.
type MemoryCheckpointStore struct {
	mu     sync.RWMutex
	states map[uuid.UUID][]byte
}

func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{states: make(map[uuid.UUID][]byte)}
}

func (s *MemoryCheckpointStore) Get(_ context.Context, threadID uuid.UUID) (*State, error) {
	s.mu.RLock()
	raw, ok := s.states[threadID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode checkpoint for thread %s: %w", threadID, err)
	}
	return &state, nil
}

func (s *MemoryCheckpointStore) Put(_ context.Context, threadID uuid.UUID, state *State) error {
	if state == nil {
		return fmt.Errorf("put checkpoint: nil state")
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode checkpoint for thread %s: %w", threadID, err)
	}
	s.mu.Lock()
	s.states[threadID] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryCheckpointStore) Initialize(context.Context) error { return nil }

func (s *MemoryCheckpointStore) Reset(context.Context) error {
	s.mu.Lock()
	s.states = make(map[uuid.UUID][]byte)
	s.mu.Unlock()
	return nil
}

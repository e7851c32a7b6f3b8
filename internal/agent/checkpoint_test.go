package agent

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestMemoryCheckpointStoreRoundTrip(t *testing.T) {
	store := NewMemoryCheckpointStore()
	ctx := context.Background()
	threadID := uuid.New()

	got, err := store.Get(ctx, threadID)
	if err != nil || got != nil {
		t.Fatalf("Get on empty store = (%v, %v), want (nil, nil)", got, err)
	}

	state := &State{
		Messages: []Message{
			TextMessage(RoleUser, "hello"),
			TextMessage(RoleAssistant, "hi"),
		},
		Step: 2,
	}
	if err := store.Put(ctx, threadID, state); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err = store.Get(ctx, threadID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Step != 2 || len(got.Messages) != 2 {
		t.Fatalf("got = %+v", got)
	}
	if got.Messages[0].Text() != "hello" || got.Messages[1].Text() != "hi" {
		t.Fatalf("messages = %+v", got.Messages)
	}
}

func TestMemoryCheckpointStoreIsolation(t *testing.T) {
	// Mutating a retrieved state must not leak into the store.
	store := NewMemoryCheckpointStore()
	ctx := context.Background()
	threadID := uuid.New()

	if err := store.Put(ctx, threadID, &State{Messages: []Message{TextMessage(RoleUser, "a")}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	first, _ := store.Get(ctx, threadID)
	first.Messages = append(first.Messages, TextMessage(RoleUser, "b"))
	first.Step = 99

	second, _ := store.Get(ctx, threadID)
	if len(second.Messages) != 1 || second.Step != 0 {
		t.Fatalf("store state mutated through a returned pointer: %+v", second)
	}
}

func TestMemoryCheckpointStoreReset(t *testing.T) {
	store := NewMemoryCheckpointStore()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	_ = store.Put(ctx, a, &State{Step: 1})
	_ = store.Put(ctx, b, &State{Step: 2})
	if err := store.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}

	for _, id := range []uuid.UUID{a, b} {
		if got, err := store.Get(ctx, id); err != nil || got != nil {
			t.Fatalf("Get(%s) after reset = (%v, %v), want (nil, nil)", id, got, err)
		}
	}
}

func TestMemoryCheckpointStorePutNil(t *testing.T) {
	if err := NewMemoryCheckpointStore().Put(context.Background(), uuid.New(), nil); err == nil {
		t.Fatalf("put nil state must fail")
	}
}

func TestMemoryCheckpointStoreInitializeIdempotent(t *testing.T) {
	store := NewMemoryCheckpointStore()
	ctx := context.Background()
	threadID := uuid.New()
	_ = store.Put(ctx, threadID, &State{Step: 1})

	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("second initialize: %v", err)
	}
	if got, _ := store.Get(ctx, threadID); got == nil || got.Step != 1 {
		t.Fatalf("initialize must not clear state: %+v", got)
	}
}

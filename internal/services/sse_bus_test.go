package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nestplan/nestplan-backend/internal/sse"
)

func TestEventFamilyRouting(t *testing.T) {
	cases := []struct {
		ev   sse.SSEEvent
		want string
	}{
		{sse.SSEEventChatToken, "chat"},
		{sse.SSEEventChatToolCall, "chat"},
		{sse.SSEEventChatComplete, "chat"},
		{sse.SSEEventChatError, "chat"},
		{sse.SSEEventJobUpdated, "jobs"},
		{sse.SSEEventRenderReady, "jobs"},
	}
	for _, tc := range cases {
		if got := eventFamily(tc.ev); got != tc.want {
			t.Fatalf("eventFamily(%s) = %q, want %q", tc.ev, got, tc.want)
		}
	}
}

func TestBusEnvelopeRoundTrip(t *testing.T) {
	raw, err := json.Marshal(busEnvelope{
		V:      busSchemaVersion,
		SentAt: time.Now().UTC(),
		Message: sse.SSEMessage{
			Channel: "user-1",
			Event:   sse.SSEEventRenderReady,
			Data:    map[string]any{"job_id": "j1"},
		},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	env, err := decodeBusEnvelope(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Message.Channel != "user-1" || env.Message.Event != sse.SSEEventRenderReady {
		t.Fatalf("message mangled: %+v", env.Message)
	}
}

func TestBusEnvelopeRejectsUnknownVersion(t *testing.T) {
	raw, _ := json.Marshal(busEnvelope{V: busSchemaVersion + 1, SentAt: time.Now()})
	if _, err := decodeBusEnvelope(raw); err == nil {
		t.Fatalf("expected version error")
	}
	if _, err := decodeBusEnvelope([]byte("not json")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestStaleBusEnvelope(t *testing.T) {
	now := time.Now()
	fresh := busEnvelope{SentAt: now.Add(-10 * time.Second)}
	old := busEnvelope{SentAt: now.Add(-5 * time.Minute)}

	if staleBusEnvelope(fresh, time.Minute, now) {
		t.Fatalf("fresh envelope reported stale")
	}
	if !staleBusEnvelope(old, time.Minute, now) {
		t.Fatalf("old envelope not detected")
	}
	if staleBusEnvelope(old, 0, now) {
		t.Fatalf("zero max age must disable the cutoff")
	}
	if staleBusEnvelope(busEnvelope{}, time.Minute, now) {
		t.Fatalf("missing timestamp must not drop the event")
	}
}

package logger

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestScrubDropsCredentialKeys(t *testing.T) {
	cases := []struct {
		key string
		val interface{}
	}{
		{"password", "hunter2"},
		{"api_key", "sk-something"},
		{"authorization", "Bearer abc"},
		{"signed_url", "https://storage.googleapis.com/b/k?X-Goog-Signature=x"},
		{"refresh_token", "rt-123"},
	}
	for _, tc := range cases {
		if got := scrub(tc.key, tc.val); got != "[redacted]" {
			t.Fatalf("scrub(%q) = %v, want [redacted]", tc.key, got)
		}
	}
}

func TestScrubDigestsIdentifiers(t *testing.T) {
	id := uuid.New()
	first := scrub("user_id", id)
	second := scrub("thread_id", id)

	s, ok := first.(string)
	if !ok || !strings.HasPrefix(s, "sha:") {
		t.Fatalf("digest = %v, want sha: prefix", first)
	}
	if strings.Contains(s, id.String()) {
		t.Fatalf("digest leaks the raw id: %s", s)
	}
	// Same value digests identically regardless of which key carried it, so
	// API and worker log lines still correlate.
	if first != second {
		t.Fatalf("digest not deterministic: %v vs %v", first, second)
	}
	if got := scrub("email", "ana@example.com"); got == "ana@example.com" {
		t.Fatalf("email passed through unscrubbed")
	}
}

func TestScrubValueHeuristics(t *testing.T) {
	jwt := "eyJhbGciOi.eyJzdWIiOiIx.SflKxwRJSMeKKF2QT4"
	if got := scrub("note", jwt); got != "[redacted]" {
		t.Fatalf("jwt-shaped value passed through: %v", got)
	}
	signed := "https://storage.googleapis.com/bucket/key?X-Goog-Credential=c&X-Goog-Signature=s"
	if got := scrub("image", signed); got != "[redacted]" {
		t.Fatalf("signed url passed through: %v", got)
	}
	if got := scrub("note", "a plain sentence"); got != "a plain sentence" {
		t.Fatalf("ordinary string mangled: %v", got)
	}
	if got := scrub("count", 42); got != 42 {
		t.Fatalf("non-string mangled: %v", got)
	}
}

func TestScrubWalksNestedValues(t *testing.T) {
	out := scrub("payload", map[string]interface{}{
		"Password": "hunter2",
		"room":     map[string]interface{}{"name": "bedroom"},
		"urls":     []interface{}{"https://cdn.example.com/a.png"},
	})
	m, ok := out.(map[string]interface{})
	if !ok {
		t.Fatalf("scrub changed the container type: %T", out)
	}
	if m["Password"] != "[redacted]" {
		t.Fatalf("nested credential passed through: %v", m["Password"])
	}
	inner := m["room"].(map[string]interface{})
	if inner["name"] != "bedroom" {
		t.Fatalf("ordinary nested value mangled: %v", inner)
	}
	urls := m["urls"].([]interface{})
	if urls[0] != "https://cdn.example.com/a.png" {
		t.Fatalf("plain url mangled: %v", urls[0])
	}
}

func TestScrubPairsHandlesDanglingKey(t *testing.T) {
	out := scrubPairs([]interface{}{"user_id", uuid.New(), "dangling"})
	if len(out) != 3 {
		t.Fatalf("pairs = %v", out)
	}
	if out[2] != "dangling" {
		t.Fatalf("dangling key dropped: %v", out)
	}
}

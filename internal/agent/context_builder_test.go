package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/nestplan/nestplan-backend/internal/types"
)

func TestBuildSystemPromptPerPhase(t *testing.T) {
	cases := []struct {
		phase string
		want  string
	}{
		{types.PhaseIntake, "INTAKE"},
		{types.PhaseChecklist, "CHECKLIST"},
		{types.PhasePlan, "PLAN"},
		{types.PhaseRender, "RENDER"},
		{types.PhasePayment, "PAYMENT"},
		{"  plan  ", "PLAN"},
		{"BOGUS", "INTAKE"},
		{"", "INTAKE"},
	}
	b := NewContextBuilder(&memTurnStore{}, mapResolver{}, 0, testLogger(t))
	threadID := uuid.New()

	for _, tc := range cases {
		t.Run(tc.phase, func(t *testing.T) {
			built, err := b.Build(context.Background(), threadID, tc.phase, "hi", nil)
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			system := built.System.Text()
			if !strings.Contains(system, tc.want) {
				t.Fatalf("system prompt for %q missing %q:\n%s", tc.phase, tc.want, system)
			}
			if !strings.Contains(system, threadID.String()) {
				t.Fatalf("system prompt missing thread id")
			}
		})
	}
}

func TestBuildHistoryWindow(t *testing.T) {
	turns := &memTurnStore{}
	threadID := uuid.New()
	for i := 0; i < 30; i++ {
		role := types.TurnRoleUser
		if i%2 == 1 {
			role = types.TurnRoleAssistant
		}
		_ = turns.Append(context.Background(), Turn{
			ThreadID: threadID,
			Role:     role,
			Type:     types.TurnTypeText,
			Content:  fmt.Sprintf("turn %d", i),
		})
	}

	b := NewContextBuilder(turns, mapResolver{}, 0, testLogger(t))
	built, err := b.Build(context.Background(), threadID, types.PhasePlan, "latest", nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(built.History) != DefaultHistoryWindow {
		t.Fatalf("history length = %d, want window %d", len(built.History), DefaultHistoryWindow)
	}
	// The window keeps the most recent turns.
	if got := built.History[len(built.History)-1].Text(); got != "turn 29" {
		t.Fatalf("last history message = %q, want turn 29", got)
	}
	if got := built.History[0].Text(); got != "turn 10" {
		t.Fatalf("first history message = %q, want turn 10", got)
	}
}

func TestBuildSkipsToolTurns(t *testing.T) {
	turns := &memTurnStore{}
	threadID := uuid.New()
	_ = turns.Append(context.Background(), Turn{ThreadID: threadID, Role: types.TurnRoleUser, Type: types.TurnTypeText, Content: "find a rug"})
	_ = turns.Append(context.Background(), Turn{ThreadID: threadID, Role: types.TurnRoleAssistant, Type: types.TurnTypeToolCall, Content: `{"category":"rug"}`, ToolName: "search_products"})
	_ = turns.Append(context.Background(), Turn{ThreadID: threadID, Role: types.TurnRoleSystem, Type: types.TurnTypeToolResult, Content: `{"items":[]}`, ToolName: "search_products"})
	_ = turns.Append(context.Background(), Turn{ThreadID: threadID, Role: types.TurnRoleAssistant, Type: types.TurnTypeText, Content: "No rugs matched."})

	b := NewContextBuilder(turns, mapResolver{}, 0, testLogger(t))
	built, err := b.Build(context.Background(), threadID, types.PhasePlan, "try again", nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(built.History) != 2 {
		t.Fatalf("history = %d messages, want 2 (tool turns not replayed)", len(built.History))
	}
	if built.History[0].Text() != "find a rug" || built.History[1].Text() != "No rugs matched." {
		t.Fatalf("history = %+v", built.History)
	}
}

func TestBuildHistoryReadFailureDegrades(t *testing.T) {
	b := NewContextBuilder(failingListStore{}, mapResolver{}, 0, testLogger(t))
	built, err := b.Build(context.Background(), uuid.New(), types.PhaseIntake, "hello", nil)
	if err != nil {
		t.Fatalf("a failed history read must not abort the build: %v", err)
	}
	if len(built.History) != 0 {
		t.Fatalf("history = %+v, want empty", built.History)
	}
	if built.Current.Text() != "hello" {
		t.Fatalf("current = %+v", built.Current)
	}
}

func TestBuildAttachmentResolution(t *testing.T) {
	cases := []struct {
		name      string
		ids       []string
		urls      map[string]string
		wantType  string
		wantURLs  int
	}{
		{"no_attachments", nil, nil, types.TurnTypeText, 0},
		{"all_resolve", []string{"a", "b"}, map[string]string{"a": "u/a", "b": "u/b"}, types.TurnTypeImage, 2},
		{"partial_failure", []string{"a", "b", "c"}, map[string]string{"b": "u/b"}, types.TurnTypeImage, 1},
		{"all_fail", []string{"a", "b"}, map[string]string{}, types.TurnTypeText, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewContextBuilder(&memTurnStore{}, mapResolver{urls: tc.urls}, 0, testLogger(t))
			built, err := b.Build(context.Background(), uuid.New(), types.PhaseIntake, "photos", tc.ids)
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			if built.CurrentType != tc.wantType {
				t.Fatalf("current type = %q, want %q", built.CurrentType, tc.wantType)
			}
			if len(built.ImageURLs) != tc.wantURLs {
				t.Fatalf("urls = %v, want %d", built.ImageURLs, tc.wantURLs)
			}
			if got := len(built.Current.ImageURLs()); got != tc.wantURLs {
				t.Fatalf("current message carries %d urls, want %d", got, tc.wantURLs)
			}
		})
	}
}

func TestBuildPreservesAttachmentOrder(t *testing.T) {
	urls := map[string]string{"a": "u/a", "b": "u/b", "c": "u/c"}
	b := NewContextBuilder(&memTurnStore{}, mapResolver{urls: urls}, 0, testLogger(t))
	built, err := b.Build(context.Background(), uuid.New(), types.PhaseIntake, "photos", []string{"c", "a", "b"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := []string{"u/c", "u/a", "u/b"}
	for i, u := range built.ImageURLs {
		if u != want[i] {
			t.Fatalf("urls = %v, want %v", built.ImageURLs, want)
		}
	}
}

type failingListStore struct{}

func (failingListStore) Append(context.Context, Turn) error { return nil }

func (failingListStore) ListRecent(context.Context, uuid.UUID, int) ([]Turn, error) {
	return nil, fmt.Errorf("connection refused")
}

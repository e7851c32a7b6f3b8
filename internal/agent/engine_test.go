package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/nestplan/nestplan-backend/internal/types"
)

func newTestEngine(t *testing.T, model ModelClient, tools *Registry, turns TurnStore, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(
		testLogger(t),
		model,
		tools,
		NewMemoryCheckpointStore(),
		turns,
		fixedPhase{phase: types.PhaseIntake},
		mapResolver{},
		cfg,
	)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func echoTool(name string) Tool {
	return Tool{
		Name:        name,
		Description: "test tool",
		Schema:      map[string]any{"type": "object"},
		Execute: func(_ context.Context, args map[string]any) (any, error) {
			return map[string]any{"ok": true, "echo": args}, nil
		},
	}
}

func TestRunPlainTextCompletion(t *testing.T) {
	// Scenario: the model answers directly with no tool calls.
	model := &scriptedModel{responses: []scriptedResponse{
		{chunks: textChunks("Hi ", "there")},
	}}
	tools := NewRegistry()
	if err := tools.Register(echoTool("lookup_style")); err != nil {
		t.Fatalf("register: %v", err)
	}
	turns := &memTurnStore{}
	e := newTestEngine(t, model, tools, turns, Config{})

	rec := &eventRecorder{}
	res, err := e.Run(context.Background(), RunInput{
		ThreadID: uuid.New(),
		UserID:   uuid.New(),
		Text:     "Hello",
	}, rec.callbacks())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(rec.errs) != 0 {
		t.Fatalf("onError called: %v", rec.errs)
	}
	if len(rec.tokens) < 1 {
		t.Fatalf("expected at least one token event")
	}
	if len(rec.completes) != 1 || rec.completes[0] != "Hi there" {
		t.Fatalf("onComplete = %v, want [\"Hi there\"]", rec.completes)
	}
	if rec.fullTokenText() != "Hi there" {
		t.Fatalf("token concatenation = %q, want %q", rec.fullTokenText(), "Hi there")
	}
	if res.Text != "Hi there" {
		t.Fatalf("result text = %q", res.Text)
	}
	if len(model.calls) != 1 {
		t.Fatalf("model invoked %d times, want 1", len(model.calls))
	}

	all := turns.all()
	if len(all) != 2 {
		t.Fatalf("persisted %d turns, want 2: %+v", len(all), all)
	}
	if all[0].Role != types.TurnRoleUser || all[0].Content != "Hello" {
		t.Fatalf("first turn = %+v, want user Hello", all[0])
	}
	if all[1].Role != types.TurnRoleAssistant || all[1].Content != "Hi there" {
		t.Fatalf("second turn = %+v, want assistant Hi there", all[1])
	}
}

func TestCompleteIsAlwaysLast(t *testing.T) {
	model := &scriptedModel{responses: []scriptedResponse{
		{chunks: textChunks("a", "b", "c")},
	}}
	tools := NewRegistry()
	_ = tools.Register(echoTool("lookup_style"))
	e := newTestEngine(t, model, tools, &memTurnStore{}, Config{})

	rec := &eventRecorder{}
	if _, err := e.Run(context.Background(), RunInput{ThreadID: uuid.New(), UserID: uuid.New(), Text: "hi"}, rec.callbacks()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rec.sequence) == 0 || rec.sequence[len(rec.sequence)-1] != "complete" {
		t.Fatalf("event sequence %v does not end with complete", rec.sequence)
	}
	for _, ev := range rec.sequence[:len(rec.sequence)-1] {
		if ev == "complete" || ev == "error" {
			t.Fatalf("terminal event fired before end of sequence: %v", rec.sequence)
		}
	}
}

func TestToolCallDedupAcrossChunks(t *testing.T) {
	// The model streams the same call id across two partial chunks, then a
	// final text answer on the next step.
	model := &scriptedModel{responses: []scriptedResponse{
		{chunks: []Chunk{
			{ToolCallDelta: &ToolCallDelta{ID: "call_1", Name: "lookup_style", ArgsFragment: `{"name":"scan`}},
			{ToolCallDelta: &ToolCallDelta{ID: "call_1", ArgsFragment: `di"}`}},
		}},
		{chunks: textChunks("Scandinavian it is.")},
	}}
	tools := NewRegistry()
	_ = tools.Register(echoTool("lookup_style"))
	turns := &memTurnStore{}
	e := newTestEngine(t, model, tools, turns, Config{})

	rec := &eventRecorder{}
	if _, err := e.Run(context.Background(), RunInput{ThreadID: uuid.New(), UserID: uuid.New(), Text: "style?"}, rec.callbacks()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(rec.toolCalls) != 1 || rec.toolCalls[0] != "lookup_style" {
		t.Fatalf("onToolCall = %v, want exactly one lookup_style", rec.toolCalls)
	}
	if len(rec.toolResults) != 1 {
		t.Fatalf("onToolResult fired %d times, want 1", len(rec.toolResults))
	}
	if len(rec.errs) != 0 {
		t.Fatalf("onError called: %v", rec.errs)
	}

	var sawCall, sawResult, sawFinal bool
	for _, turn := range turns.all() {
		switch turn.Type {
		case types.TurnTypeToolCall:
			if sawFinal {
				t.Fatalf("tool_call persisted after final assistant turn")
			}
			if turn.ToolName != "lookup_style" {
				t.Fatalf("tool_call turn name = %q", turn.ToolName)
			}
			if turn.Content != `{"name":"scandi"}` {
				t.Fatalf("tool_call args = %q, fragments not accumulated", turn.Content)
			}
			sawCall = true
		case types.TurnTypeToolResult:
			if !sawCall {
				t.Fatalf("tool_result persisted before tool_call")
			}
			sawResult = true
		case types.TurnTypeText:
			if turn.Role == types.TurnRoleAssistant {
				sawFinal = true
			}
		}
	}
	if !sawCall || !sawResult || !sawFinal {
		t.Fatalf("missing turns: call=%v result=%v final=%v", sawCall, sawResult, sawFinal)
	}
}

func TestCeilingFallback(t *testing.T) {
	// The model requests the same tool forever; the harness must cut it off
	// after MaxSteps round trips and answer with the fallback text.
	loop := scriptedResponse{chunks: []Chunk{
		{ToolCallDelta: &ToolCallDelta{ID: "call_x", Name: "lookup_style", ArgsFragment: `{}`}},
	}}
	model := &scriptedModel{responses: []scriptedResponse{loop}}
	tools := NewRegistry()
	_ = tools.Register(echoTool("lookup_style"))
	turns := &memTurnStore{}
	e := newTestEngine(t, model, tools, turns, Config{MaxSteps: 10})

	rec := &eventRecorder{}
	res, err := e.Run(context.Background(), RunInput{ThreadID: uuid.New(), UserID: uuid.New(), Text: "loop"}, rec.callbacks())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(rec.errs) != 0 {
		t.Fatalf("onError must never fire on a ceiling breach: %v", rec.errs)
	}
	if len(rec.completes) != 1 || rec.completes[0] != FallbackText {
		t.Fatalf("onComplete = %v, want literal fallback", rec.completes)
	}
	if res.Text != FallbackText {
		t.Fatalf("result text = %q", res.Text)
	}
	if len(model.calls) != 10 {
		t.Fatalf("model invoked %d times, want exactly 10", len(model.calls))
	}

	all := turns.all()
	last := all[len(all)-1]
	if last.Role != types.TurnRoleAssistant || last.Type != types.TurnTypeText || last.Content != FallbackText {
		t.Fatalf("last persisted turn = %+v, want assistant/text fallback", last)
	}
}

func TestToolErrorFeedsBackAndLoopContinues(t *testing.T) {
	model := &scriptedModel{responses: []scriptedResponse{
		{chunks: []Chunk{
			{ToolCallDelta: &ToolCallDelta{ID: "call_1", Name: "search_products", ArgsFragment: `{"category":"sofa"}`}},
		}},
		{chunks: textChunks("The catalog is unavailable right now.")},
	}}
	tools := NewRegistry()
	_ = tools.Register(Tool{
		Name:   "search_products",
		Schema: map[string]any{"type": "object"},
		Execute: func(context.Context, map[string]any) (any, error) {
			return nil, fmt.Errorf("catalog timeout")
		},
	})
	turns := &memTurnStore{}
	e := newTestEngine(t, model, tools, turns, Config{})

	rec := &eventRecorder{}
	if _, err := e.Run(context.Background(), RunInput{ThreadID: uuid.New(), UserID: uuid.New(), Text: "find a sofa"}, rec.callbacks()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(rec.errs) != 0 {
		t.Fatalf("tool errors must not reach onError: %v", rec.errs)
	}
	if len(model.calls) != 2 {
		t.Fatalf("loop did not continue after tool error: %d model calls", len(model.calls))
	}

	var resultTurn *Turn
	for i := range turns.all() {
		turn := turns.all()[i]
		if turn.Type == types.TurnTypeToolResult {
			resultTurn = &turn
		}
	}
	if resultTurn == nil {
		t.Fatalf("no tool_result turn persisted")
	}
	var payload map[string]string
	if err := json.Unmarshal(resultTurn.ToolOutput, &payload); err != nil {
		t.Fatalf("tool_result payload not structured: %v", err)
	}
	if !strings.Contains(payload["error"], "catalog timeout") {
		t.Fatalf("tool_result error payload = %v", payload)
	}
}

func TestWhitelistDeniesUnknownTool(t *testing.T) {
	model := &scriptedModel{responses: []scriptedResponse{
		{chunks: []Chunk{
			{ToolCallDelta: &ToolCallDelta{ID: "call_1", Name: "drop_database", ArgsFragment: `{}`}},
		}},
		{chunks: textChunks("I can't do that.")},
	}}
	tools := NewRegistry()
	_ = tools.Register(echoTool("lookup_style"))
	turns := &memTurnStore{}
	e := newTestEngine(t, model, tools, turns, Config{AllowedTools: []string{"lookup_style"}})

	rec := &eventRecorder{}
	if _, err := e.Run(context.Background(), RunInput{ThreadID: uuid.New(), UserID: uuid.New(), Text: "do it"}, rec.callbacks()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rec.errs) != 0 {
		t.Fatalf("denied tools must not reach onError: %v", rec.errs)
	}
	if len(model.calls) != 2 {
		t.Fatalf("loop must continue after a denial: %d model calls", len(model.calls))
	}
	var found bool
	for _, turn := range turns.all() {
		if turn.Type == types.TurnTypeToolResult && strings.Contains(turn.Content, "not permitted") {
			found = true
		}
	}
	if !found {
		t.Fatalf("denial not surfaced as tool_result error payload")
	}
}

func TestModelErrorPropagates(t *testing.T) {
	wantErr := errors.New("upstream 503")
	model := &scriptedModel{responses: []scriptedResponse{{invokeErr: wantErr}}}
	tools := NewRegistry()
	_ = tools.Register(echoTool("lookup_style"))
	e := newTestEngine(t, model, tools, &memTurnStore{}, Config{})

	rec := &eventRecorder{}
	_, err := e.Run(context.Background(), RunInput{ThreadID: uuid.New(), UserID: uuid.New(), Text: "hi"}, rec.callbacks())
	if !errors.Is(err, wantErr) {
		t.Fatalf("run error = %v, want %v", err, wantErr)
	}
	if len(rec.errs) != 1 {
		t.Fatalf("onError fired %d times, want 1", len(rec.errs))
	}
	if len(rec.completes) != 0 {
		t.Fatalf("onComplete must not fire after onError")
	}
}

func TestMidStreamErrorPropagates(t *testing.T) {
	wantErr := errors.New("stream reset")
	model := &scriptedModel{responses: []scriptedResponse{
		{chunks: textChunks("partial "), streamErr: wantErr},
	}}
	tools := NewRegistry()
	_ = tools.Register(echoTool("lookup_style"))
	e := newTestEngine(t, model, tools, &memTurnStore{}, Config{})

	rec := &eventRecorder{}
	_, err := e.Run(context.Background(), RunInput{ThreadID: uuid.New(), UserID: uuid.New(), Text: "hi"}, rec.callbacks())
	if !errors.Is(err, wantErr) {
		t.Fatalf("run error = %v, want %v", err, wantErr)
	}
	if len(rec.completes) != 0 {
		t.Fatalf("onComplete fired after a mid-stream error")
	}
	if rec.sequence[len(rec.sequence)-1] != "error" {
		t.Fatalf("error is not the last event: %v", rec.sequence)
	}
}

func TestFirstUserTurnWriteIsFatal(t *testing.T) {
	model := &scriptedModel{responses: []scriptedResponse{{chunks: textChunks("hi")}}}
	tools := NewRegistry()
	_ = tools.Register(echoTool("lookup_style"))
	turns := &memTurnStore{failNext: true}
	e := newTestEngine(t, model, tools, turns, Config{})

	rec := &eventRecorder{}
	_, err := e.Run(context.Background(), RunInput{ThreadID: uuid.New(), UserID: uuid.New(), Text: "hi"}, rec.callbacks())
	if err == nil {
		t.Fatalf("expected error when the user turn cannot be persisted")
	}
	if len(model.calls) != 0 {
		t.Fatalf("model must not be invoked without a persisted user turn")
	}
	if len(rec.errs) != 1 {
		t.Fatalf("onError fired %d times, want 1", len(rec.errs))
	}
}

func TestIntermediateTurnWriteFailuresDoNotAbort(t *testing.T) {
	// Once the user turn is anchored, the trace is best-effort: the store
	// rejects every later write and the run must still finish normally.
	model := &scriptedModel{responses: []scriptedResponse{
		{chunks: []Chunk{
			{ToolCallDelta: &ToolCallDelta{ID: "c1", Name: "lookup_style", ArgsFragment: `{"name":"scandi"}`}},
		}},
		{chunks: textChunks("done anyway")},
	}}
	tools := NewRegistry()
	_ = tools.Register(echoTool("lookup_style"))
	turns := &memTurnStore{failFrom: 1}
	e := newTestEngine(t, model, tools, turns, Config{})

	rec := &eventRecorder{}
	res, err := e.Run(context.Background(), RunInput{ThreadID: uuid.New(), UserID: uuid.New(), Text: "go"}, rec.callbacks())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rec.errs) != 0 {
		t.Fatalf("persistence failures must not reach onError: %v", rec.errs)
	}
	if len(rec.completes) != 1 || rec.completes[0] != "done anyway" {
		t.Fatalf("onComplete = %v, want [done anyway]", rec.completes)
	}
	if res.Text != "done anyway" {
		t.Fatalf("result text = %q", res.Text)
	}
	if len(model.calls) != 2 {
		t.Fatalf("loop stopped early: %d model calls, want 2", len(model.calls))
	}
	if turns.failCount < 3 {
		// tool_call, tool_result and the final assistant turn all failed.
		t.Fatalf("injected failures hit %d writes, want at least 3", turns.failCount)
	}
	all := turns.all()
	if len(all) != 1 || all[0].Role != types.TurnRoleUser {
		t.Fatalf("stored turns = %+v, want only the user turn", all)
	}
}

func TestCheckpointAccumulatesAcrossInvocations(t *testing.T) {
	model := &scriptedModel{responses: []scriptedResponse{
		{chunks: textChunks("first answer")},
		{chunks: textChunks("second answer")},
	}}
	tools := NewRegistry()
	_ = tools.Register(echoTool("lookup_style"))
	turns := &memTurnStore{}
	store := NewMemoryCheckpointStore()
	e, err := NewEngine(testLogger(t), model, tools, store, turns, fixedPhase{phase: types.PhasePlan}, mapResolver{}, Config{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	threadID := uuid.New()
	userID := uuid.New()
	rec := &eventRecorder{}
	if _, err := e.Run(context.Background(), RunInput{ThreadID: threadID, UserID: userID, Text: "one"}, rec.callbacks()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := e.Run(context.Background(), RunInput{ThreadID: threadID, UserID: userID, Text: "two"}, rec.callbacks()); err != nil {
		t.Fatalf("second run: %v", err)
	}

	state, err := store.Get(context.Background(), threadID)
	if err != nil || state == nil {
		t.Fatalf("checkpoint missing after runs: %v", err)
	}
	// user "one", assistant, user "two", assistant.
	if len(state.Messages) != 4 {
		t.Fatalf("checkpoint holds %d messages, want 4", len(state.Messages))
	}
	// The second invocation's context must include the first exchange.
	secondCtx := model.calls[1]
	joined := ""
	for _, m := range secondCtx {
		joined += m.Text() + "\n"
	}
	if !strings.Contains(joined, "one") || !strings.Contains(joined, "first answer") {
		t.Fatalf("second invocation context missing prior exchange:\n%s", joined)
	}
}

func TestAttachmentDegrade(t *testing.T) {
	cases := []struct {
		name      string
		ids       []string
		urls      map[string]string
		wantType  string
		wantCount int
	}{
		{
			name:      "all_fail_degrades_to_text",
			ids:       []string{"a", "b"},
			urls:      map[string]string{},
			wantType:  types.TurnTypeText,
			wantCount: 0,
		},
		{
			name:      "partial_keeps_resolved_only",
			ids:       []string{"a", "b", "c"},
			urls:      map[string]string{"a": "https://cdn/a.jpg", "c": "https://cdn/c.jpg"},
			wantType:  types.TurnTypeImage,
			wantCount: 2,
		},
		{
			name:      "all_resolve",
			ids:       []string{"a"},
			urls:      map[string]string{"a": "https://cdn/a.jpg"},
			wantType:  types.TurnTypeImage,
			wantCount: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model := &scriptedModel{responses: []scriptedResponse{{chunks: textChunks("noted")}}}
			tools := NewRegistry()
			_ = tools.Register(echoTool("lookup_style"))
			turns := &memTurnStore{}
			e, err := NewEngine(testLogger(t), model, tools, NewMemoryCheckpointStore(), turns, fixedPhase{phase: types.PhaseIntake}, mapResolver{urls: tc.urls}, Config{})
			if err != nil {
				t.Fatalf("new engine: %v", err)
			}
			rec := &eventRecorder{}
			if _, err := e.Run(context.Background(), RunInput{
				ThreadID:      uuid.New(),
				UserID:        uuid.New(),
				Text:          "here are photos",
				AttachmentIDs: tc.ids,
			}, rec.callbacks()); err != nil {
				t.Fatalf("run: %v", err)
			}

			userTurn := turns.all()[0]
			if userTurn.Type != tc.wantType {
				t.Fatalf("user turn type = %q, want %q", userTurn.Type, tc.wantType)
			}
			if len(userTurn.ImageURLs) != tc.wantCount {
				t.Fatalf("user turn has %d urls, want %d", len(userTurn.ImageURLs), tc.wantCount)
			}
		})
	}
}

func TestExactlyOneUserTurnPerInvocation(t *testing.T) {
	model := &scriptedModel{responses: []scriptedResponse{
		{chunks: []Chunk{
			{ToolCallDelta: &ToolCallDelta{ID: "c1", Name: "lookup_style", ArgsFragment: `{}`}},
		}},
		{chunks: textChunks("done")},
	}}
	tools := NewRegistry()
	_ = tools.Register(echoTool("lookup_style"))
	turns := &memTurnStore{}
	e := newTestEngine(t, model, tools, turns, Config{})

	rec := &eventRecorder{}
	if _, err := e.Run(context.Background(), RunInput{ThreadID: uuid.New(), UserID: uuid.New(), Text: "go"}, rec.callbacks()); err != nil {
		t.Fatalf("run: %v", err)
	}
	users := 0
	for _, turn := range turns.all() {
		if turn.Role == types.TurnRoleUser {
			users++
		}
	}
	if users != 1 {
		t.Fatalf("persisted %d user turns, want exactly 1", users)
	}
}

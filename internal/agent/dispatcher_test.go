package agent

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestDispatcherTerminalLatch(t *testing.T) {
	rec := &eventRecorder{}
	d := newDispatcher(rec.callbacks())

	d.Token("a")
	d.Complete("a")
	d.Complete("b")
	d.Fail(errors.New("late"))
	d.Token("after")

	if len(rec.completes) != 1 || rec.completes[0] != "a" {
		t.Fatalf("completes = %v, want [a]", rec.completes)
	}
	if len(rec.errs) != 0 {
		t.Fatalf("error fired after complete: %v", rec.errs)
	}
	if len(rec.tokens) != 1 {
		t.Fatalf("token fired after terminal event: %v", rec.tokens)
	}
}

func TestDispatcherErrorLatch(t *testing.T) {
	rec := &eventRecorder{}
	d := newDispatcher(rec.callbacks())

	d.Fail(errors.New("boom"))
	d.Complete("too late")
	d.ToolCall("c1", "lookup_style", "{}")

	if len(rec.errs) != 1 {
		t.Fatalf("errs = %v, want exactly one", rec.errs)
	}
	if len(rec.completes) != 0 || len(rec.toolCalls) != 0 {
		t.Fatalf("events fired after error: completes=%v toolCalls=%v", rec.completes, rec.toolCalls)
	}
}

func TestDispatcherToolCallDedup(t *testing.T) {
	rec := &eventRecorder{}
	d := newDispatcher(rec.callbacks())

	d.ToolCall("c1", "lookup_style", `{"name":`)
	d.ToolCall("c1", "lookup_style", `{"name":"scandi"}`)
	d.ToolCall("c2", "search_products", `{}`)
	d.ToolCall("", "noid", `{}`)

	if len(rec.toolCalls) != 2 {
		t.Fatalf("toolCalls = %v, want one per unique id", rec.toolCalls)
	}
	if rec.toolCalls[0] != "lookup_style" || rec.toolCalls[1] != "search_products" {
		t.Fatalf("toolCalls order = %v", rec.toolCalls)
	}
}

func TestDispatcherDropsEmptyTokens(t *testing.T) {
	rec := &eventRecorder{}
	d := newDispatcher(rec.callbacks())

	d.Token("")
	d.Token("x")

	if len(rec.tokens) != 1 || rec.tokens[0] != "x" {
		t.Fatalf("tokens = %v", rec.tokens)
	}
}

func TestDispatcherNilCallbacks(t *testing.T) {
	// A caller that only cares about some events must not panic the loop.
	d := newDispatcher(Callbacks{})
	d.Token("a")
	d.ToolCall("c1", "lookup_style", "{}")
	d.ToolResult("lookup_style", "{}")
	d.Complete("done")
	d.Fail(errors.New("ignored"))
}

func TestPreviewTruncation(t *testing.T) {
	long := strings.Repeat("x", previewLimit+50)
	got := preview(long)
	if len(got) != previewLimit+3 || !strings.HasSuffix(got, "...") {
		t.Fatalf("preview length = %d", len(got))
	}
	if preview("  short  ") != "short" {
		t.Fatalf("preview did not trim whitespace")
	}
}

func TestPreviewKeepsRunesIntact(t *testing.T) {
	// Multi-byte args, e.g. a plan note in Japanese, must not be cut
	// mid-rune even when the limit lands inside one.
	long := strings.Repeat("部", previewLimit)
	got := preview(long)
	if !utf8.ValidString(got) {
		t.Fatalf("preview produced invalid UTF-8: %q", got[:12])
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("long preview missing ellipsis")
	}
	if len(got) > previewLimit+3 {
		t.Fatalf("preview length = %d, want <= %d", len(got), previewLimit+3)
	}
	for _, r := range strings.TrimSuffix(got, "...") {
		if r != '部' {
			t.Fatalf("preview mangled rune: %q", r)
		}
	}
}

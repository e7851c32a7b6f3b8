package agent

import (
	"strings"
	"unicode/utf8"
)

// Callbacks is the external event surface for one loop execution. Ordering
// contract: zero or more OnToken strictly before OnComplete; exactly one of
// OnComplete/OnError fires, always last; OnToolCall precedes OnToolResult for
// the same call; OnToolCall fires exactly once per unique call id.
type Callbacks struct {
	OnToken      func(text string)
	OnComplete   func(fullText string)
	OnError      func(err error)
	OnToolCall   func(name string, argsPreview string)
	OnToolResult func(name string, resultPreview string)
}

const previewLimit = 240

// dispatcher turns internal step events into the ordered external callback
// stream. It owns the per-invocation announced-id set used to dedupe
// tool-call fragments and the terminal latch that guarantees exactly one of
// Complete/Error.
type dispatcher struct {
	cb        Callbacks
	announced map[string]bool
	terminal  bool
}

func newDispatcher(cb Callbacks) *dispatcher {
	return &dispatcher{cb: cb, announced: make(map[string]bool)}
}

func (d *dispatcher) Token(text string) {
	if d.terminal || text == "" {
		return
	}
	if d.cb.OnToken != nil {
		d.cb.OnToken(text)
	}
}

// ToolCall announces a call id exactly once, no matter how many partial
// chunks the model streamed for it.
func (d *dispatcher) ToolCall(id, name, argsPreview string) {
	if d.terminal || id == "" || d.announced[id] {
		return
	}
	d.announced[id] = true
	if d.cb.OnToolCall != nil {
		d.cb.OnToolCall(name, preview(argsPreview))
	}
}

func (d *dispatcher) ToolResult(name, resultPreview string) {
	if d.terminal {
		return
	}
	if d.cb.OnToolResult != nil {
		d.cb.OnToolResult(name, preview(resultPreview))
	}
}

func (d *dispatcher) Complete(fullText string) {
	if d.terminal {
		return
	}
	d.terminal = true
	if d.cb.OnComplete != nil {
		d.cb.OnComplete(fullText)
	}
}

func (d *dispatcher) Fail(err error) {
	if d.terminal {
		return
	}
	d.terminal = true
	if d.cb.OnError != nil {
		d.cb.OnError(err)
	}
}

func preview(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= previewLimit {
		return s
	}
	// Back up to a rune boundary so the cut never splits a multi-byte rune.
	cut := previewLimit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

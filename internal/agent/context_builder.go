package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nestplan/nestplan-backend/internal/logger"
	"github.com/nestplan/nestplan-backend/internal/types"
)

const DefaultHistoryWindow = 20

// Phase-specific system instructions. The thread id is interpolated from the
// uuid value, never from user-supplied text, so user input cannot inject
// instructions here.
var phasePrompts = map[string]string{
	types.PhaseIntake: "You are Nestplan, a friendly room-planning assistant helping with conversation thread %s. " +
		"You are in the INTAKE phase: learn about the user's room, measurements, budget, and taste. " +
		"Ask one focused question at a time and use tools to look up styles and products when helpful.",
	types.PhaseChecklist: "You are Nestplan, a room-planning assistant working on thread %s. " +
		"You are in the CHECKLIST phase: turn what you know into a concrete checklist of decisions and items, " +
		"and keep it updated with the update_checklist tool.",
	types.PhasePlan: "You are Nestplan, a room-planning assistant working on thread %s. " +
		"You are in the PLAN phase: assemble a concrete room plan (layout, palette, product picks) and save it " +
		"with the save_room_plan tool before presenting it.",
	types.PhaseRender: "You are Nestplan, a room-planning assistant working on thread %s. " +
		"You are in the RENDER phase: the plan is agreed; offer photorealistic renders via the request_render tool " +
		"and explain that rendering runs in the background.",
	types.PhasePayment: "You are Nestplan, a room-planning assistant working on thread %s. " +
		"You are in the PAYMENT phase: summarize the final product list and total cost. Do not request renders.",
	types.PhaseComplete: "You are Nestplan, a room-planning assistant working on thread %s. " +
		"This plan is COMPLETE. Answer follow-up questions about the delivered plan.",
	types.PhaseIterate: "You are Nestplan, a room-planning assistant working on thread %s. " +
		"You are in the ITERATE phase: the user wants revisions to an existing plan. Identify what changes, " +
		"update the plan with save_room_plan, and offer a fresh render when the change is visual.",
}

// BuiltContext is the ordered message list for one invocation, split so the
// engine can persist and checkpoint the pieces separately.
type BuiltContext struct {
	System  Message
	History []Message
	Current Message

	// CurrentType is the persisted turn type for the current user message:
	// image when at least one attachment resolved, text otherwise.
	CurrentType string
	ImageURLs   []string
}

// ContextBuilder assembles the message list for one engine invocation:
// phase-tagged system prompt, a bounded window of prior turns, and the
// current user turn with any resolved attachments.
type ContextBuilder struct {
	turns    TurnStore
	resolver AttachmentResolver
	window   int
	log      *logger.Logger
}

func NewContextBuilder(turns TurnStore, resolver AttachmentResolver, window int, log *logger.Logger) *ContextBuilder {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	return &ContextBuilder{
		turns:    turns,
		resolver: resolver,
		window:   window,
		log:      log.With("component", "ContextBuilder"),
	}
}

func (b *ContextBuilder) Build(ctx context.Context, threadID uuid.UUID, phase, userText string, attachmentIDs []string) (BuiltContext, error) {
	out := BuiltContext{CurrentType: types.TurnTypeText}

	prompt, ok := phasePrompts[strings.ToUpper(strings.TrimSpace(phase))]
	if !ok {
		prompt = phasePrompts[types.PhaseIntake]
	}
	out.System = TextMessage(RoleSystem, fmt.Sprintf(prompt, threadID))

	history, err := b.turns.ListRecent(ctx, threadID, b.window)
	if err != nil {
		// History is a best-effort enrichment; a failed read degrades to a
		// context of system prompt + current turn.
		b.log.Warn("Failed to load turn history", "thread_id", threadID, "error", err)
	}
	out.History = rebuildHistory(history)

	urls := b.resolveAttachments(ctx, attachmentIDs)
	if len(urls) > 0 {
		out.CurrentType = types.TurnTypeImage
		out.ImageURLs = urls
		out.Current = ImageMessage(RoleUser, userText, urls)
	} else {
		out.Current = TextMessage(RoleUser, userText)
	}
	return out, nil
}

// rebuildHistory reconstructs prior text/image turns into role-tagged
// messages. Tool turns are not replayed across invocations; their effects are
// already reflected in the assistant turns that followed them.
func rebuildHistory(turns []Turn) []Message {
	out := make([]Message, 0, len(turns))
	for _, t := range turns {
		switch t.Type {
		case types.TurnTypeText:
			out = append(out, TextMessage(Role(t.Role), t.Content))
		case types.TurnTypeImage:
			out = append(out, ImageMessage(Role(t.Role), t.Content, t.ImageURLs))
		}
	}
	return out
}

// resolveAttachments resolves every reference in parallel with independent
// success/failure. A reference that fails is logged and omitted; no failure
// aborts the turn.
func (b *ContextBuilder) resolveAttachments(ctx context.Context, ids []string) []string {
	if len(ids) == 0 || b.resolver == nil {
		return nil
	}
	resolved := make([]string, len(ids))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			url, err := b.resolver.Resolve(gctx, id)
			if err != nil {
				b.log.Warn("Attachment failed to resolve, omitting", "asset_id", id, "error", err)
				return nil
			}
			mu.Lock()
			resolved[i] = url
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	out := make([]string, 0, len(ids))
	for _, u := range resolved {
		if strings.TrimSpace(u) != "" {
			out = append(out, u)
		}
	}
	return out
}

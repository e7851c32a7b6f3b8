package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/nestplan/nestplan-backend/internal/logger"
	"github.com/nestplan/nestplan-backend/internal/types"
)

// loopState is the explicit reason-act state machine. MODEL sends the
// accumulated message list to the model client; TOOL executes the requested
// calls and appends their results; DONE ends the invocation.
type loopState int

const (
	stateModel loopState = iota
	stateTool
	stateDone
)

type Config struct {
	// MaxSteps is the hard ceiling on MODEL+TOOL round trips per invocation.
	MaxSteps int
	// HistoryWindow bounds how many prior turns the context builder replays.
	HistoryWindow int
	// AllowedTools is the whitelist for this loop; empty defaults to every
	// registered tool.
	AllowedTools []string
}

type RunInput struct {
	ThreadID      uuid.UUID
	UserID        uuid.UUID
	Text          string
	AttachmentIDs []string
}

type RunResult struct {
	Text  string
	Steps int
}

// Engine drives one reason-act loop per inbound message: context assembly,
// alternating model inference and tool execution, guarded iteration, ordered
// event dispatch, and durable turn persistence. It assumes a single writer
// per thread id; serialization is the caller's responsibility.
type Engine struct {
	model       ModelClient
	tools       *Registry
	checkpoints CheckpointStore
	turns       TurnStore
	phases      PhaseLookup
	builder     *ContextBuilder
	guard       *Guard
	log         *logger.Logger
}

func NewEngine(
	log *logger.Logger,
	model ModelClient,
	tools *Registry,
	checkpoints CheckpointStore,
	turns TurnStore,
	phases PhaseLookup,
	resolver AttachmentResolver,
	cfg Config,
) (*Engine, error) {
	if log == nil {
		return nil, fmt.Errorf("new engine: missing logger")
	}
	if model == nil || tools == nil || checkpoints == nil || turns == nil {
		return nil, fmt.Errorf("new engine: missing deps")
	}
	allowed := cfg.AllowedTools
	if len(allowed) == 0 {
		allowed = tools.Names()
	}
	engineLog := log.With("component", "Engine")
	return &Engine{
		model:       model,
		tools:       tools,
		checkpoints: checkpoints,
		turns:       turns,
		phases:      phases,
		builder:     NewContextBuilder(turns, resolver, cfg.HistoryWindow, engineLog),
		guard:       NewGuard(cfg.MaxSteps, allowed, engineLog),
		log:         engineLog,
	}, nil
}

// Run executes one loop for an inbound user message, emitting ordered events
// through cb. It returns the final assistant text; a returned error has
// already been surfaced through OnError.
func (e *Engine) Run(ctx context.Context, in RunInput, cb Callbacks) (RunResult, error) {
	d := newDispatcher(cb)

	if in.ThreadID == uuid.Nil || strings.TrimSpace(in.Text) == "" {
		err := fmt.Errorf("engine run: missing thread id or text")
		d.Fail(err)
		return RunResult{}, err
	}

	phase := types.PhaseIntake
	if e.phases != nil {
		if p, err := e.phases.GetPhase(ctx, in.ThreadID); err != nil {
			e.log.Warn("Phase lookup failed, defaulting to INTAKE", "thread_id", in.ThreadID, "error", err)
		} else if strings.TrimSpace(p) != "" {
			phase = p
		}
	}

	built, err := e.builder.Build(ctx, in.ThreadID, phase, in.Text, in.AttachmentIDs)
	if err != nil {
		d.Fail(err)
		return RunResult{}, err
	}

	// The user turn anchors the invocation's trace; unlike intermediate
	// writes, a failure here is fatal.
	if err := e.turns.Append(ctx, Turn{
		ThreadID:  in.ThreadID,
		UserID:    in.UserID,
		Role:      types.TurnRoleUser,
		Type:      built.CurrentType,
		Content:   in.Text,
		ImageURLs: built.ImageURLs,
	}); err != nil {
		err = fmt.Errorf("persist user turn: %w", err)
		d.Fail(err)
		return RunResult{}, err
	}

	state, err := e.checkpoints.Get(ctx, in.ThreadID)
	if err != nil {
		e.log.Warn("Checkpoint read failed, rebuilding from turn history", "thread_id", in.ThreadID, "error", err)
		state = nil
	}
	if state == nil {
		state = &State{Messages: built.History}
	}
	state.Step = 0
	state.Messages = append(state.Messages, built.Current)
	e.saveCheckpoint(ctx, in.ThreadID, state)

	bound := e.model.BindTools(e.tools.Definitions())

	var (
		current      = stateModel
		pendingCalls []ToolCall
		finalText    string
	)

	for current != stateDone {
		switch current {
		case stateModel:
			if !e.guard.AllowModelStep(state.Step) {
				// Ceiling breach is not an error: deliver the fallback through
				// the normal token+completion channel.
				d.Token(FallbackText)
				e.persistAssistantText(ctx, in, FallbackText)
				state.Messages = append(state.Messages, TextMessage(RoleAssistant, FallbackText))
				e.saveCheckpoint(ctx, in.ThreadID, state)
				finalText = FallbackText
				d.Complete(FallbackText)
				current = stateDone
				continue
			}
			state.Step++

			stream, err := bound.Invoke(ctx, e.invocationMessages(built.System, state))
			if err != nil {
				d.Fail(err)
				return RunResult{Steps: state.Step}, err
			}
			text, calls, err := e.consumeStream(stream, d)
			if err != nil {
				d.Fail(err)
				return RunResult{Steps: state.Step}, err
			}

			if len(calls) == 0 {
				// Terminal: the model is answering the user.
				e.persistAssistantText(ctx, in, text)
				state.Messages = append(state.Messages, TextMessage(RoleAssistant, text))
				e.saveCheckpoint(ctx, in.ThreadID, state)
				finalText = text
				d.Complete(text)
				current = stateDone
				continue
			}

			// Non-terminal: any emitted text was pre-tool commentary and has
			// already been streamed.
			assistant := Message{Role: RoleAssistant, ToolCalls: calls}
			if strings.TrimSpace(text) != "" {
				assistant.Parts = []MessagePart{{Type: PartTypeText, Text: text}}
			}
			state.Messages = append(state.Messages, assistant)
			pendingCalls = calls
			current = stateTool

		case stateTool:
			for _, call := range pendingCalls {
				e.persistToolCall(ctx, in, call)

				resultText, resultJSON := e.executeCall(ctx, call)
				d.ToolResult(call.Name, resultText)
				e.persistToolResult(ctx, in, call, resultText, resultJSON)

				// The model never sees its own tool calls without their paired
				// results already in context.
				result := TextMessage(RoleTool, resultText)
				result.ToolCallID = call.ID
				result.ToolName = call.Name
				state.Messages = append(state.Messages, result)
			}
			pendingCalls = nil
			e.saveCheckpoint(ctx, in.ThreadID, state)
			current = stateModel
		}
	}

	return RunResult{Text: finalText, Steps: state.Step}, nil
}

func (e *Engine) invocationMessages(system Message, state *State) []Message {
	msgs := make([]Message, 0, len(state.Messages)+1)
	msgs = append(msgs, system)
	msgs = append(msgs, state.Messages...)
	return msgs
}

// consumeStream drains one model response, emitting token events and
// announcing tool calls as their ids become known. Partial tool-call
// fragments sharing an id are accumulated into one call.
func (e *Engine) consumeStream(stream ModelStream, d *dispatcher) (string, []ToolCall, error) {
	defer func() { _ = stream.Close() }()

	var text strings.Builder
	var order []string
	pending := map[string]*pendingToolCall{}

	for {
		chunk, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", nil, err
		}
		if chunk.TextDelta != "" {
			text.WriteString(chunk.TextDelta)
			d.Token(chunk.TextDelta)
		}
		if tc := chunk.ToolCallDelta; tc != nil && tc.ID != "" {
			pc, ok := pending[tc.ID]
			if !ok {
				pc = &pendingToolCall{id: tc.ID}
				pending[tc.ID] = pc
				order = append(order, tc.ID)
			}
			if tc.Name != "" && pc.name == "" {
				pc.name = tc.Name
			}
			pc.args.WriteString(tc.ArgsFragment)
			if pc.name != "" {
				d.ToolCall(pc.id, pc.name, pc.args.String())
			}
		}
	}

	calls := make([]ToolCall, 0, len(order))
	for _, id := range order {
		pc := pending[id]
		calls = append(calls, ToolCall{ID: pc.id, Name: pc.name, Arguments: pc.args.String()})
	}
	return text.String(), calls, nil
}

type pendingToolCall struct {
	id   string
	name string
	args strings.Builder
}

// executeCall runs one tool call through the guard and registry. Every
// outcome — denial, bad arguments, thrown error, success — comes back as a
// serialized result the model can react to; nothing here is fatal.
func (e *Engine) executeCall(ctx context.Context, call ToolCall) (string, json.RawMessage) {
	if err := e.guard.CheckTool(call.Name); err != nil {
		return errorPayload(err)
	}
	tool, ok := e.tools.Get(call.Name)
	if !ok {
		return errorPayload(fmt.Errorf("%w: %q", ErrToolDenied, call.Name))
	}

	args := map[string]any{}
	if strings.TrimSpace(call.Arguments) != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return errorPayload(fmt.Errorf("invalid arguments for tool %q: %w", call.Name, err))
		}
	}

	result, err := tool.Execute(ctx, args)
	if err != nil {
		e.log.Warn("Tool execution failed", "tool", call.Name, "error", err)
		return errorPayload(err)
	}

	raw, err := json.Marshal(result)
	if err != nil {
		// Unserializable results degrade to their string form; the structured
		// field stays empty.
		return fmt.Sprint(result), nil
	}
	return string(raw), json.RawMessage(raw)
}

func errorPayload(err error) (string, json.RawMessage) {
	raw, mErr := json.Marshal(map[string]string{"error": err.Error()})
	if mErr != nil {
		return err.Error(), nil
	}
	return string(raw), json.RawMessage(raw)
}

func (e *Engine) persistAssistantText(ctx context.Context, in RunInput, text string) {
	if err := e.turns.Append(ctx, Turn{
		ThreadID: in.ThreadID,
		UserID:   in.UserID,
		Role:     types.TurnRoleAssistant,
		Type:     types.TurnTypeText,
		Content:  text,
	}); err != nil {
		e.log.Error("Failed to persist assistant turn", "thread_id", in.ThreadID, "error", err)
	}
}

func (e *Engine) persistToolCall(ctx context.Context, in RunInput, call ToolCall) {
	if err := e.turns.Append(ctx, Turn{
		ThreadID: in.ThreadID,
		UserID:   in.UserID,
		Role:     types.TurnRoleAssistant,
		Type:     types.TurnTypeToolCall,
		Content:  call.Arguments,
		ToolName: call.Name,
	}); err != nil {
		e.log.Error("Failed to persist tool_call turn", "thread_id", in.ThreadID, "tool", call.Name, "error", err)
	}
}

func (e *Engine) persistToolResult(ctx context.Context, in RunInput, call ToolCall, resultText string, resultJSON json.RawMessage) {
	if err := e.turns.Append(ctx, Turn{
		ThreadID:   in.ThreadID,
		UserID:     in.UserID,
		Role:       types.TurnRoleSystem,
		Type:       types.TurnTypeToolResult,
		Content:    resultText,
		ToolName:   call.Name,
		ToolOutput: resultJSON,
	}); err != nil {
		e.log.Error("Failed to persist tool_result turn", "thread_id", in.ThreadID, "tool", call.Name, "error", err)
	}
}

// saveCheckpoint is best-effort: a failed write is logged and the loop
// continues, matching the durability posture of intermediate turn writes.
func (e *Engine) saveCheckpoint(ctx context.Context, threadID uuid.UUID, state *State) {
	if err := e.checkpoints.Put(ctx, threadID, state); err != nil {
		e.log.Error("Failed to write checkpoint", "thread_id", threadID, "error", err)
	}
}

func (e *Engine) MaxSteps() int { return e.guard.MaxSteps() }

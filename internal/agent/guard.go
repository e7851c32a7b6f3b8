package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nestplan/nestplan-backend/internal/logger"
)

const DefaultMaxSteps = 10

// FallbackText is the fixed, user-safe reply delivered when the iteration
// ceiling is hit. It flows through the normal token+completion channel and is
// persisted as a standard assistant text turn, never the error path.
const FallbackText = "I wasn't able to finish putting that together. Could you rephrase or simplify your request and I'll try again?"

var ErrToolDenied = errors.New("tool not permitted for this loop")

// Guard enforces the two safety nets around the reason-act loop: a hard
// iteration ceiling checked by the harness before every model step, and a
// soft tool whitelist checked before every tool execution.
type Guard struct {
	maxSteps int
	allowed  map[string]bool
	log      *logger.Logger
}

func NewGuard(maxSteps int, allowedTools []string, log *logger.Logger) *Guard {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	allowed := make(map[string]bool, len(allowedTools))
	for _, name := range allowedTools {
		name = strings.TrimSpace(name)
		if name != "" {
			allowed[name] = true
		}
	}
	return &Guard{
		maxSteps: maxSteps,
		allowed:  allowed,
		log:      log.With("component", "Guard"),
	}
}

// AllowModelStep reports whether another model round trip may start.
// completedSteps counts MODEL steps already taken this invocation.
func (g *Guard) AllowModelStep(completedSteps int) bool {
	if completedSteps < g.maxSteps {
		return true
	}
	g.log.Warn("Iteration ceiling reached, falling back", "max_steps", g.maxSteps)
	return false
}

// CheckTool returns ErrToolDenied for unknown or non-whitelisted tool names.
// The denial is surfaced to the model as a tool_result error so it can
// recover within the same loop.
func (g *Guard) CheckTool(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || !g.allowed[name] {
		g.log.Warn("Tool request denied", "tool", name)
		return fmt.Errorf("%w: %q", ErrToolDenied, name)
	}
	return nil
}

func (g *Guard) MaxSteps() int { return g.maxSteps }

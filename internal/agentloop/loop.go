// Package agentloop implements the agent loop: the
// per-turn state machine that alternates LLM streaming and tool execution,
// suspending at interrupt/pause points, enforcing a step-count quota,
// running compaction between turns, and terminating with one of a closed
// set of typed finish reasons.
//
// The loop owns nothing itself: control signals come from
// internal/control, history rewriting from internal/compaction, the
// permission posture from the bound internal/agent configuration, and
// the wire projection from internal/llm.ProjectMessages, which keeps
// tool-call/tool-result pairing valid for everything the model sees.
package agentloop

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolo-run/wolo/internal/agent"
	"github.com/wolo-run/wolo/internal/compaction"
	"github.com/wolo-run/wolo/internal/control"
	"github.com/wolo-run/wolo/internal/errs"
	"github.com/wolo-run/wolo/internal/event"
	"github.com/wolo-run/wolo/internal/llm"
	"github.com/wolo-run/wolo/internal/metrics"
	"github.com/wolo-run/wolo/internal/modes"
	"github.com/wolo-run/wolo/internal/pathguard"
	"github.com/wolo-run/wolo/internal/permission"
	"github.com/wolo-run/wolo/internal/session"
	"github.com/wolo-run/wolo/internal/tool"
	"github.com/wolo-run/wolo/internal/tracing"
	"github.com/wolo-run/wolo/pkg/types"
)

// Finish reasons, a closed set.
const (
	FinishStop                = "stop"
	FinishLength              = "length"
	FinishToolCalls           = "tool_calls"
	FinishInterrupted         = "interrupted"
	FinishMaxSteps            = "max_steps"
	FinishPathSafetyCancelled = "path_safety_cancelled"
)

// DefaultMaxSteps bounds a run absent an explicit override, preventing an unbounded tool-call loop from running
// forever on a misbehaving model.
const DefaultMaxSteps = 50

// defaultContextWindow is used when no model entry supplies one, so
// ShouldCompact still has a meaningful denominator.
const defaultContextWindow = 128000

// sessionTouchInterval is the minimum interval between coalesced
// session.UpdatedAt writes during a streaming turn.
const sessionTouchInterval = 500 * time.Millisecond

// Deps bundles every collaborator the loop needs for one session run. All
// fields except Store/ToolRegistry/Dispatcher/LLM/Agent/Endpoint are
// optional and default to a sensible no-op.
type Deps struct {
	Store        *session.Store
	ToolRegistry *tool.Registry
	Dispatcher   *tool.Dispatcher
	LLM          *llm.Client

	Control    *control.Manager
	Metrics    *metrics.Collector
	PathGuard  *pathguard.Guard
	Compaction compaction.Config

	// DoomLoop flags a tool call repeated DoomLoopThreshold times in a row
	// with identical input, per the active agent's doom_loop permission
	// action. Shared across a run's sub-agent loops too since it's keyed by
	// session ID, not by Loop instance. Defaults to a fresh detector.
	DoomLoop *permission.DoomLoopDetector

	// SessionTouch coalesces the UpdatedAt bump a streamed turn would
	// otherwise write once per token into at most one write per window,
	// always flushed before a terminal transition. Defaults to a
	// Store-backed saver at its 500ms minimum interval.
	SessionTouch *session.DebouncedSaver

	Mode    modes.Config
	Agent   *agent.Agent
	WorkDir string

	Endpoint    types.EndpointConfig
	ProjectID   string
	EnableThink bool

	ContextWindow               int
	CompactionThresholdFraction float64

	MaxSteps int

	// NewID generates message/part IDs; defaults to session.NewID.
	NewID func() string

	// Tracer records one span per loop step; defaults to the global
	// provider's tracer, a no-op unless internal/tracing was set up.
	Tracer trace.Tracer
}

func (d *Deps) normalize() {
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.NewID == nil {
		d.NewID = session.NewID
	}
	if d.MaxSteps <= 0 {
		d.MaxSteps = DefaultMaxSteps
	}
	if d.ContextWindow <= 0 {
		d.ContextWindow = defaultContextWindow
	}
	if d.CompactionThresholdFraction <= 0 {
		d.CompactionThresholdFraction = 0.8
	}
	if d.Compaction == (compaction.Config{}) {
		d.Compaction = compaction.DefaultConfig
	}
	if d.SessionTouch == nil && d.Store != nil {
		d.SessionTouch = session.NewDebouncedSaver(d.Store, sessionTouchInterval)
	}
	if d.DoomLoop == nil {
		d.DoomLoop = permission.NewDoomLoopDetector()
	}
	if d.Tracer == nil {
		d.Tracer = tracing.Tracer("agentloop")
	}
}

// Loop runs the Agent Loop for exactly one session.
type Loop struct {
	deps      Deps
	sessionID string

	cachedSession *types.Session
}

// New creates a Loop bound to sessionID.
func New(sessionID string, deps Deps) *Loop {
	deps.normalize()
	return &Loop{deps: deps, sessionID: sessionID}
}

// Result is what Run returns once the loop reaches a terminal condition.
type Result struct {
	FinishReason string
	StepCount    int
}

// Run executes the Agent Loop starting from whatever messages are already
// persisted for the session (the caller is responsible for appending and
// saving the triggering user message beforehand). Each turn:
//
//  1. Check interrupt/pause suspension points.
//  2. Project history to wire messages and stream one LLM turn.
//  3. Execute every tool call the model requested, in the order streamed.
//  4. Decide whether another turn is needed (finish_reason == tool_calls)
//     or the run is done.
//  5. Between turns, check the compaction trigger and run it if due.
//  6. Enforce the step-count quota.
//  7. Persist after every state transition.
func (l *Loop) Run(ctx context.Context) (*Result, error) {
	l.deps.Metrics.SessionStarted(l.sessionID)
	defer l.deps.Metrics.SessionEnded(l.sessionID)

	stepCount := 0

	for {
		if l.deps.Control != nil {
			if l.deps.Control.ShouldInterrupt() {
				return l.finish(FinishInterrupted, stepCount)
			}
			l.deps.Control.WaitIfPaused()
			if l.deps.Control.ShouldInterrupt() {
				return l.finish(FinishInterrupted, stepCount)
			}
		}

		if stepCount >= l.deps.MaxSteps {
			return l.finish(FinishMaxSteps, stepCount)
		}

		messages, err := l.deps.Store.ListMessages(l.sessionID)
		if err != nil {
			return nil, fmt.Errorf("agentloop: list messages: %w", err)
		}

		if err := l.maybeCompact(ctx, messages); err != nil {
			// Compaction failures are logged, not fatal: the run continues
			// against an uncompacted (larger) history rather than aborting
			// useful work over a second, lower-priority policy.
			log.Warn().Err(err).Str("session", l.sessionID).Msg("agentloop: compaction failed")
		}

		stepCount++
		stepCtx, span := l.deps.Tracer.Start(ctx, "agentloop.step",
			trace.WithAttributes(
				attribute.String("session.id", l.sessionID),
				attribute.Int("step", stepCount),
			))
		finishReason, err := l.runTurn(stepCtx)
		if err != nil {
			span.RecordError(err)
			span.End()
			return nil, err
		}
		span.SetAttributes(attribute.String("finish_reason", finishReason))
		span.End()

		switch finishReason {
		case FinishToolCalls:
			continue
		case FinishPathSafetyCancelled:
			return l.finish(FinishPathSafetyCancelled, stepCount)
		case FinishInterrupted:
			return l.finish(FinishInterrupted, stepCount)
		default:
			if pending := l.drainInterjection(); pending != "" {
				if err := l.appendUserMessage(pending); err != nil {
					return nil, err
				}
				continue
			}
			return l.finish(finishReason, stepCount)
		}
	}
}

// finish flushes any coalesced session touch, publishes the terminal event,
// and returns the Result. The flush guarantees the final UpdatedAt is durable
// before the run returns, even though intermediate touches during streaming
// were only coalesced writes.
func (l *Loop) finish(reason string, stepCount int) (*Result, error) {
	if l.deps.SessionTouch != nil {
		if err := l.deps.SessionTouch.Flush(l.sessionID); err != nil {
			log.Warn().Err(err).Str("session", l.sessionID).Msg("agentloop: session touch flush failed")
		}
	}
	event.Publish(event.Event{
		Type: event.Finish,
		Data: event.FinishData{
			SessionID:    l.sessionID,
			FinishReason: reason,
			StepCount:    stepCount,
		},
	})
	return &Result{FinishReason: reason, StepCount: stepCount}, nil
}

// touchActivity bumps the cached session's UpdatedAt and schedules a
// coalesced write, called once per streamed delta so a session's "last
// activity" timestamp (surfaced by `wolo session list`) stays live during a
// long turn without writing session.json on every token.
func (l *Loop) touchActivity() {
	if l.deps.SessionTouch == nil {
		return
	}
	if l.cachedSession == nil {
		sess, err := l.deps.Store.GetSession(l.sessionID)
		if err != nil {
			return
		}
		l.cachedSession = sess
	}
	l.cachedSession.UpdatedAt = time.Now().UnixMilli()
	l.deps.SessionTouch.Save(l.cachedSession)
}

// drainInterjection folds in a queued ^A user message between
// turns, so the loop continues immediately rather than reporting done.
func (l *Loop) drainInterjection() string {
	if l.deps.Control == nil {
		return ""
	}
	return l.deps.Control.PendingUserInput()
}

func (l *Loop) appendUserMessage(text string) error {
	msg := &types.Message{
		ID:        l.deps.NewID(),
		Role:      types.RoleUser,
		Timestamp: time.Now().UnixMilli(),
		Finished:  true,
		Parts:     []types.Part{&types.TextPart{ID: l.deps.NewID(), Type: "text", Text: text}},
	}
	return l.deps.Store.SaveMessage(l.sessionID, msg)
}

// maybeCompact runs the tool-output-pruning policy (and, if enabled, the
// summarization policy) when the estimated token count crosses the
// configured threshold. Both policies mutate messages that
// are then re-persisted through the store.
func (l *Loop) maybeCompact(ctx context.Context, messages []*types.Message) error {
	if !compaction.ShouldCompact(messages, l.deps.ContextWindow, l.deps.CompactionThresholdFraction) {
		return nil
	}

	record := compaction.PruneToolOutputs(l.sessionID, messages, l.deps.Compaction)
	if record != nil {
		sess, err := l.deps.Store.GetSession(l.sessionID)
		if err != nil {
			return err
		}
		sess.Compactions = append(sess.Compactions, *record)
		if err := l.deps.Store.SaveSession(sess); err != nil {
			return err
		}
		for _, m := range messages {
			if containsID(record.MessageIDs, m.ID) {
				if err := l.deps.Store.SaveMessage(l.sessionID, m); err != nil {
					return err
				}
			}
		}
	}

	if !l.deps.Compaction.EnableSummarization {
		return nil
	}

	llmCfg := llm.EndpointToConfig(l.deps.Endpoint, false, l.sessionID, l.deps.ProjectID)
	summaryMsg, summaryRecord, err := compaction.Summarize(ctx, l.sessionID, messages, l.deps.Compaction, llmCfg, l.deps.LLM, l.deps.NewID)
	if err != nil {
		return err
	}
	if summaryMsg == nil {
		return nil
	}

	if err := l.deps.Store.SaveMessage(l.sessionID, summaryMsg); err != nil {
		return err
	}
	for _, id := range summaryRecord.MessageIDs {
		if err := l.deps.Store.DeleteMessage(l.sessionID, id); err != nil {
			return err
		}
	}
	sess, err := l.deps.Store.GetSession(l.sessionID)
	if err != nil {
		return err
	}
	sess.Compactions = append(sess.Compactions, *summaryRecord)
	return l.deps.Store.SaveSession(sess)
}

func containsID(ids []string, id string) bool {
	for _, c := range ids {
		if c == id {
			return true
		}
	}
	return false
}

// ExitCode maps a run's terminal finish reason, or a returned error's
// errs.Kind, to the documented process exit code.
func ExitCode(res *Result, runErr error) int {
	if runErr != nil {
		if e, ok := errs.As(runErr); ok {
			return e.Kind.ExitCode()
		}
		return 1
	}
	if res == nil {
		return 1
	}
	switch res.FinishReason {
	case FinishInterrupted:
		return errs.KindInterrupted.ExitCode()
	case FinishPathSafetyCancelled:
		return errs.KindPathSafetyCancelled.ExitCode()
	case FinishMaxSteps:
		return errs.KindQuotaExceeded.ExitCode()
	default:
		return 0
	}
}

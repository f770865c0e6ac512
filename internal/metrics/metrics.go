// Package metrics implements the per-session metrics collector:
// per-session counters for prompt/completion/total tokens, per-tool
// invocation count and duration, sub-agent session IDs, and total wall
// time, exposed both as Prometheus series (for the admin HTTP surface)
// and as a plain map via ExportSession for benchmark JSON output.
// Nothing here is persisted; a fresh Collector is rebuilt per process.
//
// Prometheus counters cover fleet-level observation; the in-memory
// per-session ledger backs ExportSession(id), an accessor Prometheus
// alone can't serve cheaply.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector tracks runtime counters for every session in the process.
type Collector struct {
	tokensTotal    *prometheus.CounterVec
	toolCalls      *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec
	sessionsActive prometheus.Gauge

	mu       sync.Mutex
	sessions map[string]*sessionCounters
}

type sessionCounters struct {
	promptTokens     int
	completionTokens int
	toolCounts       map[string]int
	toolDurations    map[string]time.Duration
	subSessions      []string
	startedAt        time.Time
	endedAt          time.Time
	running          bool
}

// New creates a Collector and registers its Prometheus series with the
// default registry. Call once per process.
func New() *Collector {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a Collector registered against reg instead of
// the default registry, so tests can use an isolated prometheus.NewRegistry()
// rather than colliding with other Collectors in the same test binary.
func NewWithRegisterer(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wolo_tokens_total",
				Help: "Total tokens consumed, by session and token type (prompt|completion).",
			},
			[]string{"session_id", "type"},
		),
		toolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wolo_tool_calls_total",
				Help: "Total tool invocations, by session and tool name.",
			},
			[]string{"session_id", "tool_name"},
		),
		toolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wolo_tool_call_duration_seconds",
				Help:    "Tool call duration in seconds, by tool name.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"tool_name"},
		),
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "wolo_sessions_active",
			Help: "Number of sessions with an in-progress agent loop.",
		}),
		sessions: make(map[string]*sessionCounters),
	}
}

func (c *Collector) counters(sessionID string) *sessionCounters {
	sc, ok := c.sessions[sessionID]
	if !ok {
		sc = &sessionCounters{
			toolCounts:    make(map[string]int),
			toolDurations: make(map[string]time.Duration),
		}
		c.sessions[sessionID] = sc
	}
	return sc
}

// SessionStarted marks the beginning of wall-clock time tracking for a
// session's agent loop run.
func (c *Collector) SessionStarted(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sc := c.counters(sessionID)
	sc.startedAt = time.Now()
	sc.running = true
	c.sessionsActive.Inc()
}

// SessionEnded stops wall-clock tracking for a session.
func (c *Collector) SessionEnded(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sc := c.counters(sessionID)
	if !sc.running {
		return
	}
	sc.endedAt = time.Now()
	sc.running = false
	c.sessionsActive.Dec()
}

// RecordTokens accumulates prompt/completion token counts for a session,
// called once per LLM turn from the adapter's context-local counter.
func (c *Collector) RecordTokens(sessionID string, promptTokens, completionTokens int) {
	if promptTokens > 0 {
		c.tokensTotal.WithLabelValues(sessionID, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		c.tokensTotal.WithLabelValues(sessionID, "completion").Add(float64(completionTokens))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	sc := c.counters(sessionID)
	sc.promptTokens += promptTokens
	sc.completionTokens += completionTokens
}

// RecordToolCall records one completed tool invocation and its duration.
func (c *Collector) RecordToolCall(sessionID, toolName string, duration time.Duration) {
	c.toolCalls.WithLabelValues(sessionID, toolName).Inc()
	c.toolDuration.WithLabelValues(toolName).Observe(duration.Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()
	sc := c.counters(sessionID)
	sc.toolCounts[toolName]++
	sc.toolDurations[toolName] += duration
}

// RecordSubSession records the ID of a child session spawned by a `task`
// tool call from sessionID.
func (c *Collector) RecordSubSession(sessionID, childSessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sc := c.counters(sessionID)
	sc.subSessions = append(sc.subSessions, childSessionID)
}

// ExportSession returns the benchmark-JSON shape for one session:
// prompt/completion/total tokens, per-tool counts and durations,
// sub-session IDs, and total wall time. Returns nil if the session has
// no recorded activity.
func (c *Collector) ExportSession(sessionID string) map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	sc, ok := c.sessions[sessionID]
	if !ok {
		return nil
	}

	wall := time.Duration(0)
	switch {
	case sc.running:
		wall = time.Since(sc.startedAt)
	case !sc.endedAt.IsZero():
		wall = sc.endedAt.Sub(sc.startedAt)
	}

	toolCalls := make(map[string]any, len(sc.toolCounts))
	for name, count := range sc.toolCounts {
		toolCalls[name] = map[string]any{
			"count":            count,
			"duration_seconds": sc.toolDurations[name].Seconds(),
		}
	}

	subSessions := make([]string, len(sc.subSessions))
	copy(subSessions, sc.subSessions)

	return map[string]any{
		"session_id":        sessionID,
		"prompt_tokens":     sc.promptTokens,
		"completion_tokens": sc.completionTokens,
		"total_tokens":      sc.promptTokens + sc.completionTokens,
		"tool_calls":        toolCalls,
		"sub_sessions":      subSessions,
		"wall_time_seconds": wall.Seconds(),
		"running":           sc.running,
	}
}

// ActiveSessionCount reports how many sessions currently have a running
// agent loop, used by the admin health check.
func (c *Collector) ActiveSessionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, sc := range c.sessions {
		if sc.running {
			n++
		}
	}
	return n
}

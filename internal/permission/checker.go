package permission

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/wolo-run/wolo/internal/event"
)

// Checker turns ask-rules into blocking questions on the event bus and
// remembers "always" answers for the rest of the session.
type Checker struct {
	mu sync.RWMutex
	// blanket approvals: session -> permission type
	approved map[string]map[PermissionType]bool
	// fine-grained approvals: session -> bash/path pattern
	patterns map[string]map[string]bool
	// in-flight questions keyed by request ID
	pending map[string]chan Response
}

// NewChecker creates an empty checker.
func NewChecker() *Checker {
	return &Checker{
		approved: make(map[string]map[PermissionType]bool),
		patterns: make(map[string]map[string]bool),
		pending:  make(map[string]chan Response),
	}
}

// Check applies a resolved action: allow passes, deny returns the typed
// rejection, ask blocks on the user.
func (c *Checker) Check(ctx context.Context, req Request, action PermissionAction) error {
	switch action {
	case ActionDeny:
		return &RejectedError{
			SessionID: req.SessionID,
			Type:      req.Type,
			CallID:    req.CallID,
			Metadata:  req.Metadata,
			Message:   "Permission denied by configuration",
		}
	case ActionAsk:
		return c.Ask(ctx, req)
	default:
		return nil
	}
}

// Ask publishes a permission-required event and suspends until the user
// answers, the context ends, or a prior "always" answer covers the request.
func (c *Checker) Ask(ctx context.Context, req Request) error {
	if c.alreadyApproved(req) {
		return nil
	}

	if req.ID == "" {
		req.ID = ulid.Make().String()
	}

	respChan := make(chan Response, 1)
	c.mu.Lock()
	c.pending[req.ID] = respChan
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	event.Publish(event.Event{
		Type: event.PermissionRequired,
		Data: event.PermissionRequiredData{
			ID:             req.ID,
			SessionID:      req.SessionID,
			PermissionType: string(req.Type),
			Pattern:        req.Pattern,
			Title:          req.Title,
		},
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case resp := <-respChan:
		switch resp.Action {
		case "always":
			c.approve(req.SessionID, req.Type, req.Pattern)
			return nil
		case "reject":
			return &RejectedError{
				SessionID: req.SessionID,
				Type:      req.Type,
				CallID:    req.CallID,
				Metadata:  req.Metadata,
				Message:   "Permission rejected by user",
			}
		default: // "once"
			return nil
		}
	}
}

// alreadyApproved reports whether a blanket or full-pattern approval makes
// the question moot.
func (c *Checker) alreadyApproved(req Request) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.approved[req.SessionID][req.Type] {
		return true
	}
	if len(req.Pattern) == 0 {
		return false
	}
	granted := c.patterns[req.SessionID]
	for _, p := range req.Pattern {
		if !granted[p] {
			return false
		}
	}
	return true
}

// Respond delivers the user's answer to a pending request and announces
// the resolution.
func (c *Checker) Respond(requestID string, action string) {
	c.mu.RLock()
	ch, ok := c.pending[requestID]
	c.mu.RUnlock()
	if ok {
		ch <- Response{RequestID: requestID, Action: action}
	}

	event.Publish(event.Event{
		Type: event.PermissionResolved,
		Data: event.PermissionResolvedData{
			ID:      requestID,
			Granted: action != "reject",
		},
	})
}

func (c *Checker) approve(sessionID string, permType PermissionType, patterns []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.approved[sessionID] == nil {
		c.approved[sessionID] = make(map[PermissionType]bool)
	}
	c.approved[sessionID][permType] = true

	if len(patterns) > 0 && c.patterns[sessionID] == nil {
		c.patterns[sessionID] = make(map[string]bool)
	}
	for _, p := range patterns {
		c.patterns[sessionID][p] = true
	}
}

// IsApproved reports a blanket approval for a permission type.
func (c *Checker) IsApproved(sessionID string, permType PermissionType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.approved[sessionID][permType]
}

// IsPatternApproved reports a fine-grained pattern approval.
func (c *Checker) IsPatternApproved(sessionID string, pattern string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.patterns[sessionID][pattern]
}

// ApprovePattern grants one pattern without a question (used when the
// renderer collects approvals out of band).
func (c *Checker) ApprovePattern(sessionID string, pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.patterns[sessionID] == nil {
		c.patterns[sessionID] = make(map[string]bool)
	}
	c.patterns[sessionID][pattern] = true
}

// ClearSession drops every approval a session accumulated.
func (c *Checker) ClearSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.approved, sessionID)
	delete(c.patterns, sessionID)
}

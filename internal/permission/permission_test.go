package permission

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolo-run/wolo/internal/event"
)

func TestMatchBashPermission_SpecificityOrder(t *testing.T) {
	table := map[string]PermissionAction{
		"git commit *": ActionAllow,
		"git *":        ActionAsk,
		"rm":           ActionDeny,
		"*":            ActionDeny,
	}

	commit := BashCommand{Name: "git", Args: []string{"commit", "-m", "x"}, Subcommand: "commit"}
	assert.Equal(t, ActionAllow, MatchBashPermission(commit, table), "subcommand pattern wins")

	push := BashCommand{Name: "git", Args: []string{"push"}, Subcommand: "push"}
	assert.Equal(t, ActionAsk, MatchBashPermission(push, table), "falls back to command wildcard")

	rm := BashCommand{Name: "rm", Args: []string{"-rf", "x"}}
	assert.Equal(t, ActionDeny, MatchBashPermission(rm, table), "bare-name entry matches any args")

	other := BashCommand{Name: "curl", Args: []string{"https://x"}}
	assert.Equal(t, ActionDeny, MatchBashPermission(other, table), "global wildcard is the last resort")
}

func TestMatchBashPermission_EmptyTableAsks(t *testing.T) {
	cmd := BashCommand{Name: "make", Args: []string{"test"}}
	assert.Equal(t, ActionAsk, MatchBashPermission(cmd, nil))
	assert.Equal(t, ActionAsk, MatchBashPermission(cmd, map[string]PermissionAction{}))
}

func TestChecker_CheckAllowAndDeny(t *testing.T) {
	c := NewChecker()
	req := Request{Type: PermEdit, SessionID: "s1", CallID: "c1"}

	assert.NoError(t, c.Check(context.Background(), req, ActionAllow))

	err := c.Check(context.Background(), req, ActionDeny)
	require.Error(t, err)
	assert.True(t, IsRejectedError(err))

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "s1", rejected.SessionID)
	assert.Equal(t, PermEdit, rejected.Type)
}

// answer waits for the next permission-required event and responds.
func answer(t *testing.T, c *Checker, action string) (unsubscribe func()) {
	t.Helper()
	return event.Subscribe(event.PermissionRequired, func(e event.Event) {
		data, ok := e.Data.(event.PermissionRequiredData)
		if !ok {
			return
		}
		go c.Respond(data.ID, action)
	})
}

func TestChecker_AskOnce(t *testing.T) {
	c := NewChecker()
	defer answer(t, c, "once")()

	req := Request{Type: PermBash, SessionID: "s1", Pattern: []string{"make *"}, Title: "make test"}
	require.NoError(t, c.Ask(context.Background(), req))

	// "once" is not remembered.
	assert.False(t, c.IsApproved("s1", PermBash))
	assert.False(t, c.IsPatternApproved("s1", "make *"))
}

func TestChecker_AskAlwaysIsRemembered(t *testing.T) {
	c := NewChecker()
	unsub := answer(t, c, "always")

	req := Request{Type: PermBash, SessionID: "s1", Pattern: []string{"make *"}, Title: "make test"}
	require.NoError(t, c.Ask(context.Background(), req))
	unsub()

	assert.True(t, c.IsApproved("s1", PermBash))
	assert.True(t, c.IsPatternApproved("s1", "make *"))

	// The second identical ask resolves without publishing anything.
	done := make(chan error, 1)
	go func() { done <- c.Ask(context.Background(), req) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("second ask should not block")
	}
}

func TestChecker_AskReject(t *testing.T) {
	c := NewChecker()
	defer answer(t, c, "reject")()

	err := c.Ask(context.Background(), Request{Type: PermWebFetch, SessionID: "s1", Title: "fetch"})
	require.Error(t, err)
	assert.True(t, IsRejectedError(err))
}

func TestChecker_AskContextCancelled(t *testing.T) {
	c := NewChecker()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- c.Ask(ctx, Request{Type: PermEdit, SessionID: "s1", Title: "edit"})
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("ask must unblock on cancellation")
	}
}

func TestChecker_ApprovalsAreScopedPerSession(t *testing.T) {
	c := NewChecker()
	c.ApprovePattern("s1", "go test *")

	assert.True(t, c.IsPatternApproved("s1", "go test *"))
	assert.False(t, c.IsPatternApproved("s2", "go test *"))
}

func TestChecker_ClearSession(t *testing.T) {
	c := NewChecker()
	c.ApprovePattern("s1", "go test *")
	c.approve("s1", PermEdit, nil)

	c.ClearSession("s1")
	assert.False(t, c.IsPatternApproved("s1", "go test *"))
	assert.False(t, c.IsApproved("s1", PermEdit))
}

func TestChecker_RespondToUnknownRequestDoesNotBlock(t *testing.T) {
	c := NewChecker()
	done := make(chan struct{})
	go func() {
		c.Respond("no-such-request", "once")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Respond must not block on unknown IDs")
	}
}

func TestDoomLoop_TriggersOnThirdIdenticalCall(t *testing.T) {
	d := NewDoomLoopDetector()
	input := map[string]any{"command": "go test ./..."}

	assert.False(t, d.Check("s1", "bash", input))
	assert.False(t, d.Check("s1", "bash", input))
	assert.True(t, d.Check("s1", "bash", input), "third identical call is a loop")
}

func TestDoomLoop_DifferentInputBreaksTheRun(t *testing.T) {
	d := NewDoomLoopDetector()

	assert.False(t, d.Check("s1", "bash", map[string]any{"command": "a"}))
	assert.False(t, d.Check("s1", "bash", map[string]any{"command": "a"}))
	assert.False(t, d.Check("s1", "bash", map[string]any{"command": "b"}), "a different call resets the streak")
	assert.False(t, d.Check("s1", "bash", map[string]any{"command": "a"}))
}

func TestDoomLoop_SessionsAreIndependent(t *testing.T) {
	d := NewDoomLoopDetector()
	input := map[string]any{"x": 1}

	d.Check("s1", "read", input)
	d.Check("s1", "read", input)
	assert.False(t, d.Check("s2", "read", input), "another session starts fresh")
}

func TestDoomLoop_ResetAndClear(t *testing.T) {
	d := NewDoomLoopDetector()
	input := map[string]any{"x": 1}

	d.Check("s1", "read", input)
	d.Check("s1", "read", input)
	d.Reset("s1")
	assert.False(t, d.Check("s1", "read", input))

	d.Check("s1", "read", input)
	d.Clear("s1")
	assert.False(t, d.Check("s1", "read", input))
}

func TestDefaultAgentPermissions(t *testing.T) {
	p := DefaultAgentPermissions()
	assert.Equal(t, ActionAsk, p.Edit)
	assert.Equal(t, ActionAsk, p.WebFetch)
	assert.Equal(t, ActionAsk, p.ExternalDir)
	assert.Equal(t, ActionAsk, p.DoomLoop)
	assert.Empty(t, p.Bash)
}

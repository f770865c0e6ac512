package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestCollector() *Collector {
	return NewWithRegisterer(prometheus.NewRegistry())
}

func TestExportSession_NoActivity(t *testing.T) {
	c := newTestCollector()
	if got := c.ExportSession("nope"); got != nil {
		t.Fatalf("expected nil for a session with no activity, got %v", got)
	}
}

func TestRecordTokens_Accumulates(t *testing.T) {
	c := newTestCollector()
	c.RecordTokens("sess1", 100, 50)
	c.RecordTokens("sess1", 10, 5)

	got := c.ExportSession("sess1")
	if got["prompt_tokens"] != 110 {
		t.Fatalf("want prompt_tokens=110, got %v", got["prompt_tokens"])
	}
	if got["completion_tokens"] != 55 {
		t.Fatalf("want completion_tokens=55, got %v", got["completion_tokens"])
	}
	if got["total_tokens"] != 165 {
		t.Fatalf("want total_tokens=165, got %v", got["total_tokens"])
	}
}

func TestRecordToolCall_TracksCountAndDuration(t *testing.T) {
	c := newTestCollector()
	c.RecordToolCall("sess1", "bash", 2*time.Second)
	c.RecordToolCall("sess1", "bash", 1*time.Second)
	c.RecordToolCall("sess1", "read", 500*time.Millisecond)

	got := c.ExportSession("sess1")
	toolCalls := got["tool_calls"].(map[string]any)

	bash := toolCalls["bash"].(map[string]any)
	if bash["count"] != 2 {
		t.Fatalf("want bash count=2, got %v", bash["count"])
	}
	if bash["duration_seconds"] != 3.0 {
		t.Fatalf("want bash duration=3s, got %v", bash["duration_seconds"])
	}

	read := toolCalls["read"].(map[string]any)
	if read["count"] != 1 {
		t.Fatalf("want read count=1, got %v", read["count"])
	}
}

func TestRecordSubSession_Appends(t *testing.T) {
	c := newTestCollector()
	c.RecordSubSession("parent", "child1")
	c.RecordSubSession("parent", "child2")

	got := c.ExportSession("parent")
	subs := got["sub_sessions"].([]string)
	if len(subs) != 2 || subs[0] != "child1" || subs[1] != "child2" {
		t.Fatalf("want [child1 child2], got %v", subs)
	}
}

func TestSessionStartedEnded_TracksWallTimeAndActiveCount(t *testing.T) {
	c := newTestCollector()
	c.SessionStarted("sess1")
	if c.ActiveSessionCount() != 1 {
		t.Fatalf("want 1 active session, got %d", c.ActiveSessionCount())
	}

	got := c.ExportSession("sess1")
	if got["running"] != true {
		t.Fatalf("want running=true mid-session, got %v", got["running"])
	}

	time.Sleep(5 * time.Millisecond)
	c.SessionEnded("sess1")
	if c.ActiveSessionCount() != 0 {
		t.Fatalf("want 0 active sessions after end, got %d", c.ActiveSessionCount())
	}

	got = c.ExportSession("sess1")
	if got["running"] != false {
		t.Fatalf("want running=false after end, got %v", got["running"])
	}
	if got["wall_time_seconds"].(float64) <= 0 {
		t.Fatalf("want positive wall time, got %v", got["wall_time_seconds"])
	}
}

func TestSessionEnded_WithoutStart_IsNoop(t *testing.T) {
	c := newTestCollector()
	c.SessionEnded("never-started")
	if c.ActiveSessionCount() != 0 {
		t.Fatalf("want 0 active sessions, got %d", c.ActiveSessionCount())
	}
}

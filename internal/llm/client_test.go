package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintf(w, "data: %s\n\n", line)
			flusher.Flush()
		}
	}))
}

func drain(t *testing.T, ch <-chan Event, timeout time.Duration) []Event {
	t.Helper()
	var out []Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatal("timed out draining events")
		}
	}
}

func TestStream_TextDeltaAndFinish(t *testing.T) {
	srv := sseServer(t, []string{
		`{"choices":[{"delta":{"content":"hel"}}]}`,
		`{"choices":[{"delta":{"content":"lo"},"finish_reason":"stop"}]}`,
		`[DONE]`,
	})
	defer srv.Close()

	c := NewClient(nil)
	ch, err := c.Stream(context.Background(), Config{BaseURL: srv.URL, Model: "m"}, nil, nil)
	require.NoError(t, err)

	events := drain(t, ch, 2*time.Second)
	var text string
	var finished bool
	for _, ev := range events {
		if ev.Type == EventTextDelta {
			text += ev.Text
		}
		if ev.Type == EventFinish {
			finished = true
			assert.Equal(t, "stop", ev.FinishReason)
		}
	}
	assert.Equal(t, "hello", text)
	assert.True(t, finished)
}

func TestStream_ToolCallAssembledAcrossChunks(t *testing.T) {
	srv := sseServer(t, []string{
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"read","arguments":""}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"path\""}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":":\"a.go\"}"}}]}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		`[DONE]`,
	})
	defer srv.Close()

	c := NewClient(nil)
	ch, err := c.Stream(context.Background(), Config{BaseURL: srv.URL, Model: "m"}, nil, nil)
	require.NoError(t, err)

	events := drain(t, ch, 2*time.Second)
	var toolCalls int
	for _, ev := range events {
		if ev.Type == EventToolCall {
			toolCalls++
			assert.Equal(t, "call_1", ev.ToolID)
			assert.Equal(t, "read", ev.ToolName)
			assert.Equal(t, "a.go", ev.Input["path"])
		}
	}
	assert.Equal(t, 1, toolCalls, "tool-call must be emitted exactly once")
}

func TestStream_NonOKStatusClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("rate limited"))
	}))
	defer srv.Close()

	c := NewClient(nil)
	_, err := c.Stream(context.Background(), Config{BaseURL: srv.URL, Model: "m"}, nil, nil)
	require.Error(t, err)
}

func TestStream_CorrelationHeaders(t *testing.T) {
	var gotSession, gotProject, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSession = r.Header.Get("x-opencode-session")
		gotProject = r.Header.Get("x-opencode-project")
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewClient(nil)
	ch, err := c.Stream(context.Background(), Config{BaseURL: srv.URL, Model: "m", SessionID: "sess-1", ProjectID: "proj-1"}, nil, nil)
	require.NoError(t, err)
	drain(t, ch, 2*time.Second)

	assert.Equal(t, "sess-1", gotSession)
	assert.Equal(t, "proj-1", gotProject)
	assert.Contains(t, gotUA, "opencode/")
}

func TestRequestFileWritesSummary(t *testing.T) {
	dir := t.TempDir()
	sink := NewDebugSink("", dir)
	path := sink.requestFile("m", []byte(`{"model":"m"}`))
	require.NotEmpty(t, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "INPUT")
}

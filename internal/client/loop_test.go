package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenos/lumen/internal/domain"
	"github.com/lumenos/lumen/internal/tools"
)

func writeFrame(w http.ResponseWriter, event string, data any) {
	payload, _ := json.Marshal(data)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}

func listTool() tools.Tool {
	return &tools.Func{
		Desc: domain.ToolDescriptor{
			Name:        "file_browser_list_directory",
			Description: "list a directory",
			Parameters: domain.ObjectSchema(map[string]domain.PropertySchema{
				"path": {Type: "string"},
			}, "path"),
		},
		Run: func(_ context.Context, args map[string]any) (*domain.ToolResult, error) {
			return domain.OK([]string{"a.txt", "b.txt"}), nil
		},
	}
}

func newTestLoop(baseURL string, ts ...tools.Tool) *Loop {
	r := tools.NewRegistry()
	r.RegisterAll(ts)

	l := NewLoop(baseURL, r, nil)
	l.sleep = func(time.Duration) {}

	return l
}

func TestRunListDirectory(t *testing.T) {
	t.Parallel()

	var continues atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		switch r.URL.Path {
		case "/api/agent/start":
			writeFrame(w, "agent-start", map[string]any{"intent": "list /notes", "sessionId": "s1"})
			writeFrame(w, "tool-call", map[string]any{
				"toolName": "file_browser_list_directory",
				"args":     map[string]any{"path": "/notes"},
			})
		case "/api/agent/continue":
			continues.Add(1)

			var req continueRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "s1", req.SessionID)
			assert.Equal(t, "file_browser_list_directory", req.ToolName)
			assert.True(t, req.ToolResult.Success)

			writeFrame(w, "agent-complete", map[string]any{"message": "Done.", "iterations": 1})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	l := newTestLoop(srv.URL, listTool())

	rec, err := l.ExecuteIntent(context.Background(), "list /notes", Options{})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, rec.CurrentStatus())
	assert.Equal(t, int32(1), continues.Load())

	events := rec.Events()
	require.Len(t, events, 4)
	assert.Equal(t, domain.EventAgentStart, events[0].Type)
	assert.Equal(t, domain.EventToolCall, events[1].Type)
	assert.Equal(t, domain.EventToolResult, events[2].Type)
	require.NotNil(t, events[2].Result)
	assert.True(t, events[2].Result.Success)
	assert.Equal(t, domain.EventAgentComplete, events[3].Type)
	assert.Equal(t, "Done.", events[3].Message)
	assert.Equal(t, "s1", rec.sessionID())
}

func TestRunUnknownToolIsTerminal(t *testing.T) {
	t.Parallel()

	var continues atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		switch r.URL.Path {
		case "/api/agent/start":
			writeFrame(w, "agent-start", map[string]any{"sessionId": "s1"})
			writeFrame(w, "tool-call", map[string]any{"toolName": "missing_tool", "args": map[string]any{}})
		case "/api/agent/continue":
			continues.Add(1)
		}
	}))
	defer srv.Close()

	l := newTestLoop(srv.URL)

	rec, err := l.ExecuteIntent(context.Background(), "do something", Options{})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusError, rec.CurrentStatus())
	assert.Equal(t, int32(0), continues.Load(), "an unresolvable tool never reaches Continue")

	events := rec.Events()
	last := events[len(events)-1]
	assert.Equal(t, domain.EventError, last.Type)
	assert.Equal(t, "Tool not found: missing_tool", last.Message)
}

func TestRunRetriesContinueOnce(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/agent/start":
			w.Header().Set("Content-Type", "text/event-stream")
			writeFrame(w, "agent-start", map[string]any{"sessionId": "s1"})
			writeFrame(w, "tool-call", map[string]any{
				"toolName": "file_browser_list_directory",
				"args":     map[string]any{"path": "/notes"},
			})
		case "/api/agent/continue":
			if attempts.Add(1) == 1 {
				http.Error(w, `{"error":"upstream unavailable"}`, http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "text/event-stream")
			writeFrame(w, "agent-complete", map[string]any{"message": "Done.", "iterations": 1})
		}
	}))
	defer srv.Close()

	l := newTestLoop(srv.URL, listTool())

	rec, err := l.ExecuteIntent(context.Background(), "list /notes", Options{})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, rec.CurrentStatus())
	assert.Equal(t, int32(2), attempts.Load(), "exactly one retry")
}

func TestRunContinueFailsTwice(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/agent/start":
			w.Header().Set("Content-Type", "text/event-stream")
			writeFrame(w, "agent-start", map[string]any{"sessionId": "s1"})
			writeFrame(w, "tool-call", map[string]any{
				"toolName": "file_browser_list_directory",
				"args":     map[string]any{"path": "/notes"},
			})
		case "/api/agent/continue":
			attempts.Add(1)
			http.Error(w, `{"error":"upstream unavailable"}`, http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	l := newTestLoop(srv.URL, listTool())

	rec, err := l.ExecuteIntent(context.Background(), "list /notes", Options{})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusError, rec.CurrentStatus())
	assert.Equal(t, int32(2), attempts.Load(), "second failure is terminal")
}

func TestRunFollowUpFallsBackAfterExpiry(t *testing.T) {
	t.Parallel()

	var followUps, starts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/agent/start":
			starts.Add(1)
			w.Header().Set("Content-Type", "text/event-stream")
			writeFrame(w, "agent-start", map[string]any{"sessionId": fmt.Sprintf("s%d", starts.Load())})
			writeFrame(w, "agent-complete", map[string]any{"message": "Done.", "iterations": 1})
		case "/api/agent/follow-up":
			followUps.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":"session not found"}`)
		}
	}))
	defer srv.Close()

	l := newTestLoop(srv.URL)

	// First run establishes the active record and its server session id.
	rec, err := l.ExecuteIntent(context.Background(), "first", Options{})
	require.NoError(t, err)
	require.Equal(t, domain.RunStatusCompleted, rec.CurrentStatus())

	// The follow-up hits an expired session and must start fresh instead of
	// looping on the stale id.
	rec, err = l.ExecuteIntent(context.Background(), "second", Options{ContinueSession: true})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, rec.CurrentStatus())
	assert.Equal(t, int32(1), followUps.Load())
	assert.Equal(t, int32(2), starts.Load())
	assert.Equal(t, "s2", rec.sessionID())
}

func TestRunToolFailureResultIsFedBack(t *testing.T) {
	t.Parallel()

	failing := &tools.Func{
		Desc: domain.ToolDescriptor{
			Name:       "always_fails",
			Parameters: domain.ObjectSchema(nil),
		},
		Run: func(context.Context, map[string]any) (*domain.ToolResult, error) {
			return &domain.ToolResult{Success: false, Error: "disk full"}, nil
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		switch r.URL.Path {
		case "/api/agent/start":
			writeFrame(w, "agent-start", map[string]any{"sessionId": "s1"})
			writeFrame(w, "tool-call", map[string]any{"toolName": "always_fails", "args": map[string]any{}})
		case "/api/agent/continue":
			var req continueRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.False(t, req.ToolResult.Success)
			assert.Equal(t, "disk full", req.ToolResult.Error)

			writeFrame(w, "agent-complete", map[string]any{"message": "Understood.", "iterations": 1})
		}
	}))
	defer srv.Close()

	l := newTestLoop(srv.URL, failing)

	rec, err := l.ExecuteIntent(context.Background(), "try the thing", Options{})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, rec.CurrentStatus())
}

func TestRunStreamErrorEvent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeFrame(w, "agent-start", map[string]any{"sessionId": "s1"})
		writeFrame(w, "error", map[string]any{"message": "model call failed", "code": "invalid_api_key"})
	}))
	defer srv.Close()

	l := newTestLoop(srv.URL)

	rec, err := l.ExecuteIntent(context.Background(), "anything", Options{})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusError, rec.CurrentStatus())

	events := rec.Events()
	last := events[len(events)-1]
	assert.Equal(t, "invalid_api_key", last.Code)
}

func TestRunToleratesMalformedEventData(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeFrame(w, "agent-start", map[string]any{"sessionId": "s1"})
		// Broken payload on a terminal frame.
		fmt.Fprint(w, "event: agent-complete\ndata: {broken\n\n")
	}))
	defer srv.Close()

	l := newTestLoop(srv.URL)

	rec, err := l.ExecuteIntent(context.Background(), "anything", Options{})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, rec.CurrentStatus(),
		"a frame with undecodable data must survive, not be dropped")

	events := rec.Events()
	last := events[len(events)-1]
	assert.Equal(t, domain.EventAgentComplete, last.Type)
	assert.Equal(t, "{broken", last.Message, "raw data passes through as the message")
}

func TestRunEmptyIntentRejected(t *testing.T) {
	t.Parallel()

	l := newTestLoop("http://127.0.0.1:0")

	_, err := l.ExecuteIntent(context.Background(), "   ", Options{})
	assert.Error(t, err)
}

func TestRunTruncatesOversizedResult(t *testing.T) {
	t.Parallel()

	big := make([]string, 0, 2000)
	for i := 0; i < 2000; i++ {
		big = append(big, fmt.Sprintf("entry-%04d", i))
	}
	bigTool := &tools.Func{
		Desc: domain.ToolDescriptor{
			Name:       "big_output",
			Parameters: domain.ObjectSchema(nil),
		},
		Run: func(context.Context, map[string]any) (*domain.ToolResult, error) {
			return domain.OK(big), nil
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		switch r.URL.Path {
		case "/api/agent/start":
			writeFrame(w, "agent-start", map[string]any{"sessionId": "s1"})
			writeFrame(w, "tool-call", map[string]any{"toolName": "big_output", "args": map[string]any{}})
		case "/api/agent/continue":
			var req continueRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

			envelope, ok := req.ToolResult.Data.(map[string]any)
			assert.True(t, ok)
			if ok {
				assert.Equal(t, true, envelope["_truncated"])
				assert.NotZero(t, envelope["_originalLength"])
			}

			writeFrame(w, "agent-complete", map[string]any{"message": "Done.", "iterations": 1})
		}
	}))
	defer srv.Close()

	l := newTestLoop(srv.URL, bigTool)

	rec, err := l.ExecuteIntent(context.Background(), "dump it", Options{})
	require.NoError(t, err)
	require.Equal(t, domain.RunStatusCompleted, rec.CurrentStatus())

	// The local history keeps the untruncated result.
	events := rec.Events()
	require.Equal(t, domain.EventToolResult, events[2].Type)
	full, ok := events[2].Result.Data.([]string)
	require.True(t, ok)
	assert.Len(t, full, 2000)
}

// Package client drives agent runs against the streaming protocol: it opens
// the stream, dispatches tool calls against the local registry, feeds
// results back through Continue, and mirrors everything into durable
// session records.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lumenos/lumen/internal/domain"
	"github.com/lumenos/lumen/internal/sse"
	"github.com/lumenos/lumen/internal/tools"
	"github.com/lumenos/lumen/internal/ui"
)

// ErrSessionExpired reports a 404-equivalent from the server: the session id
// is unknown or past its TTL. The only recovery is to drop the stale id and
// start fresh.
var ErrSessionExpired = errors.New("client: server session expired")

var errEmptyBody = errors.New("client: empty response body")

const (
	startPath    = "/api/agent/start"
	continuePath = "/api/agent/continue"
	followUpPath = "/api/agent/follow-up"

	// One bounded retry on a transient Continue failure, then give up.
	retryBackoff = 800 * time.Millisecond
)

// serverError is a non-stream error response from the protocol endpoints.
type serverError struct {
	status  int
	message string
}

func (e *serverError) Error() string {
	return fmt.Sprintf("client: server returned %d: %s", e.status, e.message)
}

func retryable(err error) bool {
	var se *serverError
	if errors.As(err, &se) {
		return se.status >= 500
	}
	return errors.Is(err, errEmptyBody)
}

// Options tunes one ExecuteIntent call.
type Options struct {
	// ContinueSession reuses the previously active record's server session
	// id, preserving the model's conversational context, instead of
	// starting a fresh session.
	ContinueSession bool
	// Label names the session record; defaults to the intent text.
	Label string
	// AttachedFiles is extra file context included with the intent.
	AttachedFiles []domain.AttachedFile
}

// Loop is the conversation driver. One Loop serves many runs; each run is a
// single logical sequence with no internal fan-out.
type Loop struct {
	baseURL  string
	http     *http.Client
	registry *tools.Registry
	executor *ui.Executor
	records  *Records
	sleep    func(time.Duration)
}

func NewLoop(baseURL string, registry *tools.Registry, executor *ui.Executor) *Loop {
	return &Loop{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{},
		registry: registry,
		executor: executor,
		records:  NewRecords(DefaultRecordCap),
		sleep:    time.Sleep,
	}
}

// Records exposes the durable session records for inspection and resumption.
func (l *Loop) Records() *Records { return l.records }

type startRequest struct {
	Intent          string                  `json:"intent"`
	ToolDefinitions []domain.ToolDescriptor `json:"toolDefinitions"`
	SessionID       string                  `json:"sessionId,omitempty"`
	AttachedFiles   []domain.AttachedFile   `json:"attachedFiles,omitempty"`
}

type continueRequest struct {
	SessionID  string     `json:"sessionId"`
	ToolName   string     `json:"toolName"`
	ToolResult wireResult `json:"toolResult"`
}

type followUpRequest struct {
	SessionID     string                `json:"sessionId"`
	Intent        string                `json:"intent"`
	AttachedFiles []domain.AttachedFile `json:"attachedFiles,omitempty"`
}

// ExecuteIntent runs one intent to a terminal status. Run-level failures
// (tool errors, stream errors, exhausted retries) are recorded on the
// returned record as an error event, not returned as a Go error; the error
// return covers only unusable input.
func (l *Loop) ExecuteIntent(ctx context.Context, intent string, opts Options) (*Record, error) {
	intent = strings.TrimSpace(intent)
	if intent == "" {
		return nil, errors.New("client.Loop.ExecuteIntent: empty intent")
	}

	// Capture the resumable server session before this run becomes the
	// active record.
	prevSessionID := ""
	if opts.ContinueSession {
		if prev, ok := l.records.Active(); ok {
			prevSessionID = prev.sessionID()
		}
	}

	label := opts.Label
	if label == "" {
		label = intent
	}
	rec := l.records.Create(label, intent)

	frames, err := l.openRun(ctx, rec, intent, prevSessionID, opts.AttachedFiles)
	if err != nil {
		l.fail(rec, err.Error(), "")
		return rec, nil
	}

	for rec.Running() {
		next := l.processFrames(ctx, rec, frames)
		if next == nil {
			break
		}

		frames, err = l.postContinue(ctx, next)
		if err != nil {
			l.fail(rec, err.Error(), "")
			break
		}
	}

	if rec.Running() {
		// The stream ended without a terminal event; never leave the run
		// dangling.
		l.fail(rec, "stream ended without a terminal event", "")
	}

	return rec, nil
}

// openRun starts the stream, going through Follow-up when a prior session is
// being resumed and falling back to a fresh Start if that session has
// expired server-side.
func (l *Loop) openRun(ctx context.Context, rec *Record, intent, prevSessionID string, files []domain.AttachedFile) ([]sse.Frame, error) {
	if prevSessionID != "" {
		frames, err := l.postStream(ctx, followUpPath, followUpRequest{
			SessionID:     prevSessionID,
			Intent:        intent,
			AttachedFiles: files,
		})
		if err == nil {
			return frames, nil
		}
		if !errors.Is(err, ErrSessionExpired) {
			return nil, err
		}
		log.Warn().
			Str("session_id", prevSessionID).
			Msg("client: previous session expired, starting fresh")
	}

	return l.postStream(ctx, startPath, startRequest{
		Intent:          intent,
		ToolDefinitions: l.registry.Definitions(),
		AttachedFiles:   files,
	})
}

// processFrames walks one response's frames in order. It returns the next
// Continue request when a tool call was dispatched, or nil when the run
// reached a terminal state (or the response carried nothing actionable).
func (l *Loop) processFrames(ctx context.Context, rec *Record, frames []sse.Frame) *continueRequest {
	var pending *continueRequest

	for _, frame := range frames {
		ev := parseEvent(frame)

		switch ev.Type {
		case domain.EventAgentStart:
			if ev.SessionID != "" {
				rec.setSessionID(ev.SessionID)
			}
			rec.append(ev)

		case domain.EventToolCall:
			rec.append(ev)
			pending = l.dispatchToolCall(ctx, rec, ev)

		case domain.EventAgentComplete:
			rec.append(ev)
			l.finish(rec, domain.RunStatusCompleted)
			return nil

		case domain.EventAgentTimeout:
			rec.append(ev)
			l.finish(rec, domain.RunStatusTimeout)
			return nil

		case domain.EventError:
			rec.append(ev)
			l.finish(rec, domain.RunStatusError)
			return nil

		default:
			log.Debug().
				Str("event", frame.Event).
				Msg("client: ignoring unrecognized stream event")
		}

		if !rec.Running() {
			return nil
		}
	}

	return pending
}

// dispatchToolCall resolves and executes one tool call. An unknown tool name
// or a tool panic-equivalent (Go error) is terminal and never retried; a
// tool that reports failure through its result is an ordinary outcome fed
// back to the model.
func (l *Loop) dispatchToolCall(ctx context.Context, rec *Record, ev domain.AgentEvent) *continueRequest {
	tool, err := l.registry.Get(ev.ToolName)
	if err != nil {
		l.fail(rec, "Tool not found: "+ev.ToolName, "")
		return nil
	}

	var res *domain.ToolResult
	if verr := tools.ValidateArgs(tool.Descriptor(), ev.Args); verr != nil {
		res = domain.Fail(verr)
	} else {
		res, err = tool.Execute(ctx, ev.Args)
		if err != nil {
			log.Error().Err(err).Str("tool", ev.ToolName).Msg("client: tool execution failed")
			l.fail(rec, "Tool execution failed: "+ev.ToolName, "")
			return nil
		}
		if res == nil {
			res = domain.OK(nil)
		}
	}

	rec.append(domain.AgentEvent{
		Type:     domain.EventToolResult,
		ToolName: ev.ToolName,
		Args:     ev.Args,
		Result:   res,
	})
	l.playUpdates(res)

	return &continueRequest{
		SessionID:  rec.sessionID(),
		ToolName:   ev.ToolName,
		ToolResult: sanitizeResult(res),
	}
}

func (l *Loop) playUpdates(res *domain.ToolResult) {
	if l.executor == nil {
		return
	}
	if res.UIUpdate != nil {
		l.executor.Execute(*res.UIUpdate)
	}
	if len(res.MultipleUpdates) > 0 {
		l.executor.ExecuteMultiple(res.MultipleUpdates)
	}
}

// postContinue sends a tool result upstream, retrying exactly once after a
// fixed backoff on a transient failure.
func (l *Loop) postContinue(ctx context.Context, req *continueRequest) ([]sse.Frame, error) {
	frames, err := l.postStream(ctx, continuePath, req)
	if err != nil && retryable(err) {
		log.Warn().Err(err).Msg("client: continue failed, retrying once")
		l.sleep(retryBackoff)
		frames, err = l.postStream(ctx, continuePath, req)
	}
	return frames, err
}

// postStream POSTs a JSON body and reads the whole event-stream response.
// Each protocol call carries at most a handful of frames, so buffering the
// body before decoding keeps the retry-on-empty-body check trivial.
func (l *Loop) postStream(ctx context.Context, path string, body any) ([]sse.Frame, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("client: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("client: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := errorMessage(raw)
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrSessionExpired, msg)
		}
		return nil, &serverError{status: resp.StatusCode, message: msg}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errEmptyBody
	}

	var frames []sse.Frame
	dec := sse.NewDecoder(bytes.NewReader(raw))
	for {
		frame, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("client: decode stream: %w", err)
		}
		frames = append(frames, *frame)
	}
	if len(frames) == 0 {
		return nil, errEmptyBody
	}

	return frames, nil
}

// parseEvent decodes one frame into an event. Malformed JSON is tolerated:
// the raw data passes through as the message instead of dropping the event.
func parseEvent(frame sse.Frame) domain.AgentEvent {
	var ev domain.AgentEvent
	if err := json.Unmarshal([]byte(frame.Data), &ev); err != nil {
		ev = domain.AgentEvent{Message: frame.Data}
	}
	ev.Type = domain.EventType(frame.Event)

	return ev
}

func errorMessage(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}

func (l *Loop) fail(rec *Record, message, code string) {
	rec.append(domain.AgentEvent{Type: domain.EventError, Message: message, Code: code})
	l.finish(rec, domain.RunStatusError)
}

func (l *Loop) finish(rec *Record, status domain.RunStatus) {
	if rec.finish(status) {
		log.Debug().
			Str("record_id", rec.ID).
			Str("status", string(status)).
			Msg("client: run finished")
	}
}

// Package agent implements the streaming protocol endpoints: Start,
// Continue, and Follow-up. Each call performs exactly one model turn and
// streams the resulting events; multi-turn progress is a property of the
// overall protocol, driven by repeated client round-trips.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/lumenos/lumen/internal/config"
	"github.com/lumenos/lumen/internal/domain"
	"github.com/lumenos/lumen/internal/llm"
	"github.com/lumenos/lumen/internal/session"
	"github.com/lumenos/lumen/internal/sse"
)

// CodeInvalidCredential is the stable machine-readable code attached to
// error events caused by a rejected model credential, so UIs can route the
// user to remediation.
const CodeInvalidCredential = "invalid_api_key"

type Handler struct {
	sessions *session.Store
	provider llm.Provider
	cfg      config.AgentConfig
	sinks    []Sink
}

// NewHandler wires the protocol endpoints. provider may be nil when no
// credential is configured; every call then fails with a 500 before any
// streaming begins.
func NewHandler(sessions *session.Store, provider llm.Provider, cfg config.AgentConfig, sinks ...Sink) *Handler {
	return &Handler{sessions: sessions, provider: provider, cfg: cfg, sinks: sinks}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/start", h.Start)
	r.Post("/continue", h.Continue)
	r.Post("/follow-up", h.FollowUp)
}

type startRequest struct {
	Intent          string                  `json:"intent"`
	ToolDefinitions []domain.ToolDescriptor `json:"toolDefinitions"`
	SessionID       string                  `json:"sessionId"`
	AttachedFiles   []domain.AttachedFile   `json:"attachedFiles"`
}

type continueRequest struct {
	SessionID  string          `json:"sessionId"`
	ToolName   string          `json:"toolName"`
	ToolResult json.RawMessage `json:"toolResult"`
}

type followUpRequest struct {
	SessionID     string                `json:"sessionId"`
	Intent        string                `json:"intent"`
	AttachedFiles []domain.AttachedFile `json:"attachedFiles"`
}

// Start opens (or reuses) a session and issues the intent plus tool catalog
// as the opening turn.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	h.sessions.Sweep()

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	req.Intent = strings.TrimSpace(req.Intent)
	if req.Intent == "" {
		writeError(w, http.StatusBadRequest, "intent is required")
		return
	}
	if h.provider == nil {
		writeError(w, http.StatusInternalServerError, "model credential not configured")
		return
	}

	// A caller-supplied session id is reused while it is still alive;
	// otherwise a fresh conversation starts under a new id.
	var conv llm.Conversation
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID != "" {
		existing, err := h.sessions.Get(sessionID)
		if err != nil {
			sessionID = ""
		} else {
			conv = existing
			h.sessions.Touch(sessionID)
			h.sessions.BeginRun(sessionID)
		}
	}
	if conv == nil {
		conv = h.provider.NewConversation()
		sessionID = h.sessions.Create(conv)
	}

	sw, err := sse.NewWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	h.emit(ctx, sw, sessionID, domain.AgentEvent{
		Type:      domain.EventAgentStart,
		Intent:    req.Intent,
		SessionID: sessionID,
	})

	text := composeTurnText(req.Intent, req.AttachedFiles, h.cfg)
	h.modelTurn(ctx, sw, sessionID, func() (*llm.Turn, error) {
		return conv.SendIntent(ctx, text, req.ToolDefinitions)
	})
}

// Continue feeds a tool result back into the session's conversation as a
// function-response turn.
func (h *Handler) Continue(w http.ResponseWriter, r *http.Request) {
	h.sessions.Sweep()

	var req continueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.ToolName = strings.TrimSpace(req.ToolName)
	switch {
	case req.SessionID == "":
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	case req.ToolName == "":
		writeError(w, http.StatusBadRequest, "toolName is required")
		return
	case len(req.ToolResult) == 0:
		writeError(w, http.StatusBadRequest, "toolResult is required")
		return
	}
	if h.provider == nil {
		writeError(w, http.StatusInternalServerError, "model credential not configured")
		return
	}

	conv, err := h.sessions.Get(req.SessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	h.sessions.Touch(req.SessionID)

	sw, err := sse.NewWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	h.modelTurn(ctx, sw, req.SessionID, func() (*llm.Turn, error) {
		return conv.SendToolResult(ctx, req.ToolName, req.ToolResult)
	})
}

// FollowUp sends a new user turn into an existing conversation, preserving
// its context.
func (h *Handler) FollowUp(w http.ResponseWriter, r *http.Request) {
	h.sessions.Sweep()

	var req followUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.Intent = strings.TrimSpace(req.Intent)
	switch {
	case req.SessionID == "":
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	case req.Intent == "":
		writeError(w, http.StatusBadRequest, "intent is required")
		return
	}
	if h.provider == nil {
		writeError(w, http.StatusInternalServerError, "model credential not configured")
		return
	}

	conv, err := h.sessions.Get(req.SessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	h.sessions.Touch(req.SessionID)
	h.sessions.BeginRun(req.SessionID)

	sw, err := sse.NewWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	h.emit(ctx, sw, req.SessionID, domain.AgentEvent{
		Type:      domain.EventAgentStart,
		Intent:    req.Intent,
		SessionID: req.SessionID,
	})

	text := composeTurnText(req.Intent, req.AttachedFiles, h.cfg)
	h.modelTurn(ctx, sw, req.SessionID, func() (*llm.Turn, error) {
		return conv.SendText(ctx, text)
	})
}

// modelTurn burns one server-internal turn of the current run: it checks
// the iteration budget, invokes the model, and emits exactly one of
// tool-call, agent-complete, or agent-timeout. Model failures become error
// events; the stream itself always terminates normally.
func (h *Handler) modelTurn(ctx context.Context, sw *sse.Writer, sessionID string, call func() (*llm.Turn, error)) {
	n, err := h.sessions.NextTurn(sessionID)
	if err != nil {
		h.emit(ctx, sw, sessionID, domain.AgentEvent{
			Type:    domain.EventError,
			Message: "session expired mid-run",
		})
		return
	}
	if n > h.cfg.MaxIterations {
		h.emit(ctx, sw, sessionID, domain.AgentEvent{
			Type:    domain.EventAgentTimeout,
			Message: fmt.Sprintf("run exceeded the %d-turn budget", h.cfg.MaxIterations),
		})
		return
	}

	turn, err := call()
	if err != nil {
		ev := domain.AgentEvent{Type: domain.EventError, Message: "model call failed: " + err.Error()}
		if errors.Is(err, llm.ErrInvalidCredential) {
			ev.Message = "model service rejected the configured credential"
			ev.Code = CodeInvalidCredential
		}
		log.Error().Err(err).Str("session_id", sessionID).Msg("model turn failed")
		h.emit(ctx, sw, sessionID, ev)
		return
	}

	if turn.ToolCall != nil {
		h.emit(ctx, sw, sessionID, domain.AgentEvent{
			Type:     domain.EventToolCall,
			ToolName: turn.ToolCall.Name,
			Args:     turn.ToolCall.Args,
			Thinking: turn.ToolCall.Thinking,
		})
		return
	}

	// n counts this run's model turns including the opening one, so the
	// number of completed tool round-trips is one fewer.
	h.emit(ctx, sw, sessionID, domain.AgentEvent{
		Type:       domain.EventAgentComplete,
		Message:    turn.Text,
		Iterations: n - 1,
	})
}

func (h *Handler) emit(ctx context.Context, sw *sse.Writer, sessionID string, ev domain.AgentEvent) {
	ev.Timestamp = time.Now()

	if err := sw.Send(string(ev.Type), ev); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("stream write failed")
	}
	for _, s := range h.sinks {
		s.Record(ctx, sessionID, ev)
	}
}

// composeTurnText appends attached files to the intent as labeled blocks,
// capping count and per-file size.
func composeTurnText(intent string, files []domain.AttachedFile, cfg config.AgentConfig) string {
	if len(files) == 0 {
		return intent
	}
	if len(files) > cfg.MaxAttachments {
		files = files[:cfg.MaxAttachments]
	}

	var b strings.Builder
	b.WriteString(intent)
	for _, f := range files {
		content := f.Content
		if len(content) > cfg.MaxAttachChars {
			content = content[:cfg.MaxAttachChars] + "\n... [truncated]"
		}
		fmt.Fprintf(&b, "\n\nAttached file: %s\n---\n%s\n---", f.Path, content)
	}

	return b.String()
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

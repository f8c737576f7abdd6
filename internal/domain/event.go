package domain

import "time"

// EventType identifies one kind of agent event on the wire.
type EventType string

const (
	EventAgentStart    EventType = "agent-start"
	EventToolCall      EventType = "tool-call"
	EventToolResult    EventType = "tool-result"
	EventAgentComplete EventType = "agent-complete"
	EventAgentTimeout  EventType = "agent-timeout"
	EventError         EventType = "error"
)

// AgentEvent is one entry in a run's execution history. The Type field
// selects which payload fields are meaningful; unused fields are omitted
// from the wire encoding. tool-result events are constructed client-side
// only and never sent by the server.
type AgentEvent struct {
	Type EventType `json:"type"`

	// agent-start
	Intent    string `json:"intent,omitempty"`
	SessionID string `json:"sessionId,omitempty"`

	// tool-call / tool-result
	ToolName string         `json:"toolName,omitempty"`
	Args     map[string]any `json:"args,omitempty"`
	Thinking string         `json:"thinking,omitempty"`
	Result   *ToolResult    `json:"result,omitempty"`

	// agent-complete / agent-timeout / error
	Message    string `json:"message,omitempty"`
	Iterations int    `json:"iterations,omitempty"`
	Code       string `json:"code,omitempty"`

	Timestamp time.Time `json:"timestamp,omitzero"`
}

// RunStatus is the terminal (or in-flight) status of one client-driven run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusTimeout   RunStatus = "timeout"
	RunStatusError     RunStatus = "error"
)

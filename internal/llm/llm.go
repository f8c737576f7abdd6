package llm

import (
	"context"
	"errors"

	"github.com/lumenos/lumen/internal/domain"
)

// ErrInvalidCredential is returned when the model service rejects the
// configured API key. Callers surface it with a stable machine-readable
// code so UIs can route the user to remediation.
var ErrInvalidCredential = errors.New("llm: invalid or missing credential")

// ErrNoPendingCall is returned when a tool result arrives but the
// conversation has no outstanding tool call to attach it to.
var ErrNoPendingCall = errors.New("llm: no pending tool call")

// ToolCall is a model-issued request to invoke a named tool.
type ToolCall struct {
	ID       string
	Name     string
	Args     map[string]any
	Thinking string
}

// Turn is one model reply: natural-language text, or a tool call.
// Exactly one of Text / ToolCall is set.
type Turn struct {
	Text     string
	ToolCall *ToolCall
}

// Conversation is a stateful exchange with the model service. The message
// history is owned by the handle. Implementations are not safe for
// concurrent use; the protocol is single-flight per session by construction.
type Conversation interface {
	// SendIntent opens the conversation with the user's goal and the tool
	// catalog the model may draw on.
	SendIntent(ctx context.Context, intent string, tools []domain.ToolDescriptor) (*Turn, error)

	// SendToolResult feeds the outcome of the most recent tool call back as
	// a function-response turn.
	SendToolResult(ctx context.Context, toolName string, payload any) (*Turn, error)

	// SendText sends a follow-up free-text user turn into the same
	// conversation, preserving prior context.
	SendText(ctx context.Context, text string) (*Turn, error)
}

// Provider creates conversations against one model service.
type Provider interface {
	NewConversation() Conversation
}

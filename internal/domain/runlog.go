package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RunLogEntry is one archived agent event, kept for replay and audit.
type RunLogEntry struct {
	ID        uuid.UUID `json:"id"`
	SessionID string    `json:"session_id"`
	EventType string    `json:"event_type"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// RunLogRepository stores and retrieves ordered event entries per session.
type RunLogRepository interface {
	Append(ctx context.Context, entry *RunLogEntry) error
	ListBySession(ctx context.Context, sessionID string, limit, offset int) ([]*RunLogEntry, error)
	CountBySession(ctx context.Context, sessionID string) (int64, error)
}

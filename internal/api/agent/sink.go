package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/lumenos/lumen/internal/domain"
	redisstore "github.com/lumenos/lumen/internal/store/redis"
)

// Sink observes every event emitted on a stream. Sinks are best-effort:
// failures are logged, never surfaced to the caller, so the protocol keeps
// working when the archive or the mirror is down.
type Sink interface {
	Record(ctx context.Context, sessionID string, ev domain.AgentEvent)
}

// ArchiveSink appends events to the durable Postgres run log.
type ArchiveSink struct {
	repo domain.RunLogRepository
}

func NewArchiveSink(repo domain.RunLogRepository) *ArchiveSink {
	return &ArchiveSink{repo: repo}
}

func (s *ArchiveSink) Record(ctx context.Context, sessionID string, ev domain.AgentEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("archive: encode event")
		return
	}

	entry := &domain.RunLogEntry{
		ID:        uuid.New(),
		SessionID: sessionID,
		EventType: string(ev.Type),
		Payload:   string(payload),
		CreatedAt: time.Now(),
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("archive: append failed")
	}
}

// MirrorSink publishes events onto the session's Redis channel for live
// watchers.
type MirrorSink struct {
	ps *redisstore.PubSub
}

func NewMirrorSink(ps *redisstore.PubSub) *MirrorSink {
	return &MirrorSink{ps: ps}
}

func (s *MirrorSink) Record(ctx context.Context, sessionID string, ev domain.AgentEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("mirror: encode event")
		return
	}
	if err := s.ps.Publish(ctx, redisstore.RunChannel(sessionID), payload); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("mirror: publish failed")
	}
}

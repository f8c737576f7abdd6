package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumenos/lumen/internal/domain"
)

type RunLogRepo struct {
	pool *pgxpool.Pool
}

func NewRunLogRepo(pool *pgxpool.Pool) *RunLogRepo {
	return &RunLogRepo{pool: pool}
}

func (r *RunLogRepo) Append(ctx context.Context, entry *domain.RunLogEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO run_log_entries (id, session_id, event_type, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.SessionID, entry.EventType, entry.Payload, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("runLogRepo.Append: %w", err)
	}

	return nil
}

func (r *RunLogRepo) ListBySession(ctx context.Context, sessionID string, limit, offset int) ([]*domain.RunLogEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, event_type, payload, created_at
		 FROM run_log_entries WHERE session_id = $1
		 ORDER BY created_at ASC
		 LIMIT $2 OFFSET $3`,
		sessionID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("runLogRepo.ListBySession: %w", err)
	}
	defer rows.Close()

	var entries []*domain.RunLogEntry
	for rows.Next() {
		var e domain.RunLogEntry

		err = rows.Scan(&e.ID, &e.SessionID, &e.EventType, &e.Payload, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("runLogRepo.ListBySession: scan: %w", err)
		}
		entries = append(entries, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("runLogRepo.ListBySession: rows: %w", err)
	}

	return entries, nil
}

func (r *RunLogRepo) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	var count int64

	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM run_log_entries WHERE session_id = $1`,
		sessionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("runLogRepo.CountBySession: %w", err)
	}

	return count, nil
}

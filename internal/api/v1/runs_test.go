package v1_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/lumenos/lumen/internal/api/v1"
	"github.com/lumenos/lumen/internal/domain"
	"github.com/lumenos/lumen/internal/session"
)

type mockRunLogRepo struct {
	entries []*domain.RunLogEntry
	err     error
}

func (m *mockRunLogRepo) Append(_ context.Context, entry *domain.RunLogEntry) error {
	m.entries = append(m.entries, entry)
	return m.err
}

func (m *mockRunLogRepo) ListBySession(_ context.Context, sessionID string, limit, offset int) ([]*domain.RunLogEntry, error) {
	if m.err != nil {
		return nil, m.err
	}

	var out []*domain.RunLogEntry
	for _, e := range m.entries {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (m *mockRunLogRepo) CountBySession(_ context.Context, sessionID string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}

	var n int64
	for _, e := range m.entries {
		if e.SessionID == sessionID {
			n++
		}
	}

	return n, nil
}

func seedEntries(repo *mockRunLogRepo, sessionID string, n int) {
	for i := 0; i < n; i++ {
		repo.entries = append(repo.entries, &domain.RunLogEntry{
			ID:        uuid.New(),
			SessionID: sessionID,
			EventType: "tool-call",
			Payload:   fmt.Sprintf(`{"type":"tool-call","toolName":"t%d"}`, i),
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		})
	}
}

func TestListRunEvents(t *testing.T) {
	t.Parallel()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		repo := &mockRunLogRepo{}
		seedEntries(repo, "s1", 3)
		seedEntries(repo, "other", 2)
		v1.RegisterRunRoutes(api, repo)

		resp := api.Get("/runs/s1/events")
		require.Equal(t, http.StatusOK, resp.Code)

		var body struct {
			Events []*domain.RunLogEntry `json:"events"`
			Total  int64                 `json:"total"`
		}
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		assert.Len(t, body.Events, 3)
		assert.Equal(t, int64(3), body.Total)
	})

	t.Run("pagination", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		repo := &mockRunLogRepo{}
		seedEntries(repo, "s1", 5)
		v1.RegisterRunRoutes(api, repo)

		resp := api.Get("/runs/s1/events?limit=2&offset=4")
		require.Equal(t, http.StatusOK, resp.Code)

		var body struct {
			Events []*domain.RunLogEntry `json:"events"`
			Total  int64                 `json:"total"`
		}
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		assert.Len(t, body.Events, 1)
		assert.Equal(t, int64(5), body.Total)
	})

	t.Run("repo_failure", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		repo := &mockRunLogRepo{err: fmt.Errorf("connection refused")}
		v1.RegisterRunRoutes(api, repo)

		resp := api.Get("/runs/s1/events")
		assert.Equal(t, http.StatusInternalServerError, resp.Code)
	})
}

func TestListSessions(t *testing.T) {
	t.Parallel()

	_, api := humatest.New(t)
	store := session.NewStore(5 * time.Minute)
	v1.RegisterSessionRoutes(api, store)

	resp := api.Get("/agent/sessions")
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Sessions []session.Info `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Empty(t, body.Sessions)
}

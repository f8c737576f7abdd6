package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/lumenos/lumen/internal/llm"
)

// ErrNotFound is returned for unknown and expired session ids alike;
// callers must treat both as a 404-equivalent.
var ErrNotFound = errors.New("session: not found")

// Info is a read-only view of one live session, for inspection APIs.
type Info struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	LastTouched time.Time `json:"last_touched"`
	Turns       int       `json:"turns"`
}

type entry struct {
	conv        llm.Conversation
	createdAt   time.Time
	lastTouched time.Time
	turns       int
}

// Store maps opaque session ids to live model conversations, expiring
// entries that have not been touched within the TTL. Expiry is cooperative:
// Sweep runs at the start of every protocol operation, so no background
// timer is needed and expiry is always consistent with the last request
// that looked at the table. The store is in-memory and single-process;
// sessions are not durable across restarts.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
	now     func() time.Time
}

// NewStore creates a Store with the given idle TTL.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		entries: make(map[string]*entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Create registers a conversation handle and returns its new opaque id.
func (s *Store) Create(conv llm.Conversation) string {
	id := uuid.NewString()
	now := s.now()

	s.mu.Lock()
	s.entries[id] = &entry{conv: conv, createdAt: now, lastTouched: now}
	s.mu.Unlock()

	return id
}

// Get returns the conversation for id, or ErrNotFound if the id is unknown
// or has expired.
func (s *Store) Get(id string) (llm.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || s.now().Sub(e.lastTouched) > s.ttl {
		return nil, ErrNotFound
	}
	return e.conv, nil
}

// Touch refreshes id's expiry clock. Touching an unknown id is a no-op.
func (s *Store) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok {
		e.lastTouched = s.now()
	}
}

// BeginRun zeroes id's turn counter. The turn budget bounds one run, not
// the session's lifetime: Start and Follow-up open a new run with the full
// budget, while Continue keeps counting inside the current one. Unknown ids
// are a no-op.
func (s *Store) BeginRun(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok {
		e.turns = 0
	}
}

// NextTurn increments id's model turn counter for the current run and
// returns the new count, so callers can bound how many turns one run may
// burn.
func (s *Store) NextTurn(id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || s.now().Sub(e.lastTouched) > s.ttl {
		return 0, ErrNotFound
	}
	e.turns++

	return e.turns, nil
}

// Sweep deletes all entries older than the TTL and returns how many were
// removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for id, e := range s.entries {
		if e.lastTouched.Before(cutoff) {
			delete(s.entries, id)
			removed++
		}
	}

	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("session sweep")
	}
	return removed
}

// List returns info for all live sessions, newest first.
func (s *Store) List() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Info, 0, len(s.entries))
	for id, e := range s.entries {
		out = append(out, Info{ID: id, CreatedAt: e.createdAt, LastTouched: e.lastTouched, Turns: e.turns})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	return out
}

package client

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumenos/lumen/internal/domain"
)

// DefaultRecordCap bounds how many session records survive; the oldest by
// last access is pruned first.
const DefaultRecordCap = 20

// Record is the durable, user-visible counterpart of an ephemeral server
// session: the run's full event history plus enough metadata to resume it
// with a follow-up intent. It outlives the server session's TTL.
type Record struct {
	mu sync.Mutex

	ID              string
	Label           string
	Intent          string
	ServerSessionID string
	Status          domain.RunStatus
	History         []domain.AgentEvent
	CreatedAt       time.Time
	LastAccessed    time.Time

	done bool
}

func (r *Record) append(ev domain.AgentEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	r.mu.Lock()
	r.History = append(r.History, ev)
	r.LastAccessed = time.Now()
	r.mu.Unlock()
}

// finish moves the record to a terminal status. Every terminal code path
// funnels through here, and only the first caller wins, so a run can never
// end twice or stay marked running.
func (r *Record) finish(status domain.RunStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return false
	}
	r.done = true
	r.Status = status
	r.LastAccessed = time.Now()

	return true
}

// Running reports whether the run has not yet reached a terminal status.
func (r *Record) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.done
}

// Events returns a copy of the history safe to inspect while the run is
// still appending.
func (r *Record) Events() []domain.AgentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AgentEvent(nil), r.History...)
}

// CurrentStatus returns the run status under the record's lock.
func (r *Record) CurrentStatus() domain.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Status
}

func (r *Record) lastAccess() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.LastAccessed
}

func (r *Record) sessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ServerSessionID
}

func (r *Record) setSessionID(id string) {
	r.mu.Lock()
	r.ServerSessionID = id
	r.mu.Unlock()
}

// Records holds the client-side session records, capped by count.
type Records struct {
	mu      sync.Mutex
	cap     int
	entries map[string]*Record
	active  string
}

func NewRecords(capacity int) *Records {
	if capacity <= 0 {
		capacity = DefaultRecordCap
	}
	return &Records{cap: capacity, entries: make(map[string]*Record)}
}

// Create starts a new record and makes it the active one, pruning the
// oldest-by-access record if the cap is exceeded.
func (rs *Records) Create(label, intent string) *Record {
	now := time.Now()
	rec := &Record{
		ID:           uuid.NewString(),
		Label:        label,
		Intent:       intent,
		Status:       domain.RunStatusRunning,
		CreatedAt:    now,
		LastAccessed: now,
	}

	rs.mu.Lock()
	rs.entries[rec.ID] = rec
	rs.active = rec.ID
	rs.pruneLocked()
	rs.mu.Unlock()

	return rec
}

// Active returns the most recently started record, if any survives.
func (rs *Records) Active() (*Record, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rec, ok := rs.entries[rs.active]
	return rec, ok
}

// Get looks up a record by client-side id.
func (rs *Records) Get(id string) (*Record, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rec, ok := rs.entries[id]
	return rec, ok
}

// List returns records newest-access-first.
func (rs *Records) List() []*Record {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	out := make([]*Record, 0, len(rs.entries))
	for _, rec := range rs.entries {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].lastAccess().After(out[j].lastAccess())
	})

	return out
}

func (rs *Records) pruneLocked() {
	for len(rs.entries) > rs.cap {
		var oldest *Record
		for _, rec := range rs.entries {
			if oldest == nil || rec.lastAccess().Before(oldest.lastAccess()) {
				oldest = rec
			}
		}
		delete(rs.entries, oldest.ID)
	}
}

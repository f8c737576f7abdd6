package ui

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenos/lumen/internal/domain"
)

// recorder collects applied updates and the order they arrived in.
type recorder struct {
	mu      sync.Mutex
	applied []domain.UIUpdate
	inPlay  bool
	overlap bool
}

func (r *recorder) Apply(u domain.UIUpdate) error {
	r.mu.Lock()
	if r.inPlay {
		r.overlap = true
	}
	r.inPlay = true
	r.mu.Unlock()

	time.Sleep(time.Millisecond)

	r.mu.Lock()
	r.inPlay = false
	r.applied = append(r.applied, u)
	r.mu.Unlock()

	return nil
}

func (r *recorder) snapshot() []domain.UIUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.UIUpdate(nil), r.applied...)
}

func newTestExecutor() *Executor {
	return newExecutor(func(time.Duration) {})
}

func TestExecutorFIFO(t *testing.T) {
	t.Parallel()

	e := newTestExecutor()
	rec := &recorder{}
	e.RegisterSurface("panel", rec)

	updates := make([]domain.UIUpdate, 0, 10)
	for i := 0; i < 10; i++ {
		updates = append(updates, domain.UIUpdate{
			Type:     domain.UISetValue,
			TargetID: "panel",
			Key:      "step",
			Value:    i,
		})
	}
	e.ExecuteMultiple(updates)
	e.Close()

	got := rec.snapshot()
	require.Len(t, got, 10)
	for i, u := range got {
		assert.Equal(t, i, u.Value, "descriptor %d played out of order", i)
	}
	assert.False(t, rec.overlap, "two descriptors were in flight at once")
}

func TestExecutorHonorsDelay(t *testing.T) {
	t.Parallel()

	var slept []time.Duration
	e := newExecutor(func(d time.Duration) { slept = append(slept, d) })

	rec := &recorder{}
	e.RegisterSurface("panel", rec)

	e.Execute(domain.UIUpdate{Type: domain.UISetValue, TargetID: "panel", Delay: 250})
	e.Close()

	require.Len(t, rec.snapshot(), 1)
	require.Len(t, slept, 1)
	assert.Equal(t, 250*time.Millisecond, slept[0])
}

func TestExecutorUnknownTargetSkipped(t *testing.T) {
	t.Parallel()

	e := newTestExecutor()
	rec := &recorder{}
	e.RegisterSurface("known", rec)

	e.Execute(domain.UIUpdate{Type: domain.UISetValue, TargetID: "ghost"})
	e.Execute(domain.UIUpdate{Type: domain.UISetValue, TargetID: "known"})
	e.Close()

	got := rec.snapshot()
	require.Len(t, got, 1, "unknown target must be skipped, not fatal")
	assert.Equal(t, "known", got[0].TargetID)
}

func TestExecutorPrefersBridge(t *testing.T) {
	t.Parallel()

	e := newTestExecutor()

	rec := &recorder{}
	e.RegisterSurface("editor", rec)

	var bridged []domain.UIUpdate
	var mu sync.Mutex
	e.RegisterBridge("editor", BridgeFunc(func(u domain.UIUpdate) error {
		mu.Lock()
		bridged = append(bridged, u)
		mu.Unlock()
		return nil
	}), true)

	e.Execute(domain.UIUpdate{Type: domain.UISetContent, TargetID: "editor", Text: "body"})
	e.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bridged, 1)
	assert.Equal(t, "body", bridged[0].Text)
	assert.Empty(t, rec.snapshot(), "bridge must shadow the generic path")
}

func TestExecutorWaitsForLateBridge(t *testing.T) {
	t.Parallel()

	var bridged []domain.UIUpdate
	var mu sync.Mutex

	// Register the bridge only after a few poll intervals have passed.
	var e *Executor
	polls := 0
	e = newExecutor(func(time.Duration) {
		polls++
		if polls == 3 {
			e.RegisterBridge("editor", BridgeFunc(func(u domain.UIUpdate) error {
				mu.Lock()
				bridged = append(bridged, u)
				mu.Unlock()
				return nil
			}), true)
		}
	})

	e.Execute(domain.UIUpdate{Type: domain.UISetContent, TargetID: "editor", Text: "late"})
	e.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bridged, 1)
	assert.Equal(t, "late", bridged[0].Text)
}

func TestExecutorBridgeOnlySuppressesFallback(t *testing.T) {
	t.Parallel()

	e := newTestExecutor()

	rec := &recorder{}
	e.RegisterSurface("editor", rec)
	e.RegisterBridge("editor", BridgeFunc(func(domain.UIUpdate) error { return nil }), true)
	e.UnregisterBridge("editor")

	e.Execute(domain.UIUpdate{Type: domain.UISetContent, TargetID: "editor", Text: "x"})
	e.Close()

	assert.Empty(t, rec.snapshot(), "bridge-only target must drop, not fall back")
}

func TestExecutorSetContentFallsBackWhenAllowed(t *testing.T) {
	t.Parallel()

	e := newTestExecutor()

	rec := &recorder{}
	e.RegisterSurface("plain", rec)

	// No bridge ever appears; the target never opted out of the fallback.
	e.Execute(domain.UIUpdate{Type: domain.UISetContent, TargetID: "plain", Text: "x"})
	e.Close()

	require.Len(t, rec.snapshot(), 1)
}

func TestExecutorBeforeNextHook(t *testing.T) {
	t.Parallel()

	e := newTestExecutor()
	rec := &recorder{}
	e.RegisterSurface("panel", rec)

	var mu sync.Mutex
	var hooked []any
	e.SetBeforeNext(func(next domain.UIUpdate) {
		mu.Lock()
		hooked = append(hooked, next.Value)
		mu.Unlock()
	})

	e.ExecuteMultiple([]domain.UIUpdate{
		{Type: domain.UISetValue, TargetID: "panel", Value: 0},
		{Type: domain.UISetValue, TargetID: "panel", Value: 1},
		{Type: domain.UISetValue, TargetID: "panel", Value: 2},
	})
	e.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []any{1, 2}, hooked, "hook fires between descriptors only")
}

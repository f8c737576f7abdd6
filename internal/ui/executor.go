// Package ui plays visual-effect descriptors against named surfaces through
// one serialized queue, so concurrent tool results never interleave visually.
package ui

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lumenos/lumen/internal/domain"
)

// Surface is the generic attribute/text mutation path for a target.
type Surface interface {
	Apply(update domain.UIUpdate) error
}

// Bridge adapts a surface that cannot be mutated through the generic path.
// A structured editor, for example, must replace content via its own API or
// its internal state is corrupted.
type Bridge interface {
	Play(update domain.UIUpdate) error
}

// SurfaceFunc adapts a function to the Surface interface.
type SurfaceFunc func(update domain.UIUpdate) error

func (f SurfaceFunc) Apply(update domain.UIUpdate) error { return f(update) }

// BridgeFunc adapts a function to the Bridge interface.
type BridgeFunc func(update domain.UIUpdate) error

func (f BridgeFunc) Play(update domain.UIUpdate) error { return f(update) }

const (
	defaultQueueDepth  = 256
	bridgeWaitTimeout  = 2 * time.Second
	bridgeWaitInterval = 100 * time.Millisecond
)

// Executor owns the process-wide effect queue. One instance is wired at
// startup and shared by reference; a single consumer goroutine drains it, so
// at most one descriptor is ever in flight and delivery order is the enqueue
// order across all producers.
type Executor struct {
	queue chan domain.UIUpdate
	done  chan struct{}

	mu         sync.RWMutex
	surfaces   map[string]Surface
	bridges    map[string]Bridge
	bridgeOnly map[string]bool

	beforeNext func(next domain.UIUpdate)

	// Stubbed in tests to drain without real time passing.
	sleep func(time.Duration)
}

func NewExecutor() *Executor {
	return newExecutor(time.Sleep)
}

func newExecutor(sleep func(time.Duration)) *Executor {
	e := &Executor{
		queue:      make(chan domain.UIUpdate, defaultQueueDepth),
		done:       make(chan struct{}),
		surfaces:   make(map[string]Surface),
		bridges:    make(map[string]Bridge),
		bridgeOnly: make(map[string]bool),
		sleep:      sleep,
	}
	go e.drain()

	return e
}

// Execute enqueues one descriptor for playback.
func (e *Executor) Execute(update domain.UIUpdate) {
	e.queue <- update
}

// ExecuteMultiple enqueues a batch preserving its order. Because there is a
// single buffered channel, interleaving with concurrent producers keeps each
// batch internally ordered.
func (e *Executor) ExecuteMultiple(updates []domain.UIUpdate) {
	for _, u := range updates {
		e.queue <- u
	}
}

// RegisterSurface makes a target reachable through the generic path.
func (e *Executor) RegisterSurface(id string, s Surface) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.surfaces[id] = s
}

// UnregisterSurface removes a target.
func (e *Executor) UnregisterSurface(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.surfaces, id)
}

// RegisterBridge installs the adapter for a target that needs one.
// bridgeOnly suppresses the degraded generic fallback for that target: if
// the bridge is gone when an effect arrives, the effect is dropped rather
// than risk corrupting the surface.
func (e *Executor) RegisterBridge(id string, b Bridge, bridgeOnly bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bridges[id] = b
	if bridgeOnly {
		e.bridgeOnly[id] = true
	}
}

// UnregisterBridge removes a bridge. The bridgeOnly mark stays so queued
// effects for that target do not fall through to the generic path while the
// surface remounts.
func (e *Executor) UnregisterBridge(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.bridges, id)
}

// SetBeforeNext installs a hook invoked after each descriptor finishes and
// before the next one starts.
func (e *Executor) SetBeforeNext(hook func(next domain.UIUpdate)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.beforeNext = hook
}

// Close stops accepting descriptors and waits for queued ones to finish.
func (e *Executor) Close() {
	close(e.queue)
	<-e.done
}

func (e *Executor) drain() {
	defer close(e.done)

	first := true
	for update := range e.queue {
		e.mu.RLock()
		hook := e.beforeNext
		e.mu.RUnlock()

		// The hook fires between descriptors, never before the first.
		if hook != nil && !first {
			hook(update)
		}
		first = false

		e.play(update)
	}
}

func (e *Executor) play(update domain.UIUpdate) {
	if update.Delay > 0 {
		e.sleep(time.Duration(update.Delay) * time.Millisecond)
	}

	if b := e.bridge(update.TargetID); b != nil {
		e.playBridge(b, update)
		return
	}

	if e.isBridgeOnly(update.TargetID) || update.Type == domain.UISetContent {
		if b := e.waitForBridge(update.TargetID); b != nil {
			e.playBridge(b, update)
			return
		}
		if e.isBridgeOnly(update.TargetID) {
			log.Warn().
				Str("target_id", update.TargetID).
				Str("type", string(update.Type)).
				Msg("ui: bridge never registered, effect dropped")
			return
		}
	}

	e.mu.RLock()
	s := e.surfaces[update.TargetID]
	e.mu.RUnlock()

	if s == nil {
		log.Warn().
			Str("target_id", update.TargetID).
			Str("type", string(update.Type)).
			Msg("ui: unknown target, effect skipped")
		return
	}

	if err := s.Apply(update); err != nil {
		log.Error().Err(err).
			Str("target_id", update.TargetID).
			Str("type", string(update.Type)).
			Msg("ui: surface apply failed")
	}
}

func (e *Executor) playBridge(b Bridge, update domain.UIUpdate) {
	if err := b.Play(update); err != nil {
		log.Error().Err(err).
			Str("target_id", update.TargetID).
			Str("type", string(update.Type)).
			Msg("ui: bridge play failed")
	}
}

func (e *Executor) bridge(id string) Bridge {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bridges[id]
}

func (e *Executor) isBridgeOnly(id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bridgeOnly[id]
}

// waitForBridge polls while the surface is still mounting. The loop counts
// intervals rather than watching the wall clock so tests can stub sleep.
func (e *Executor) waitForBridge(id string) Bridge {
	for i := 0; i < int(bridgeWaitTimeout/bridgeWaitInterval); i++ {
		if b := e.bridge(id); b != nil {
			return b
		}
		e.sleep(bridgeWaitInterval)
	}
	return e.bridge(id)
}

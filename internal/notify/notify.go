package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/loykin/opsgate/internal/store"
)

// EventType is a fixed notification category. Unknown types default to
// enabled when queried.
type EventType string

const (
	EventVideoDone          EventType = "video_done"
	EventVideoFailed        EventType = "video_failed"
	EventQueueStalled       EventType = "queue_stalled"
	EventDualProcesses      EventType = "dual_processes"
	EventHighResources      EventType = "high_resources"
	EventContainerAction    EventType = "container_action"
	EventCommandExecuted    EventType = "command_executed"
	EventUncaughtException  EventType = "uncaught_exception"
	EventUnhandledRejection EventType = "unhandled_rejection"
	EventServerCrashed      EventType = "server_crashed"
)

// AllEventTypes lists every known event type in display order.
var AllEventTypes = []EventType{
	EventVideoDone,
	EventVideoFailed,
	EventQueueStalled,
	EventDualProcesses,
	EventHighResources,
	EventContainerAction,
	EventCommandExecuted,
	EventUncaughtException,
	EventUnhandledRejection,
	EventServerCrashed,
}

// criticalEvents can never be disabled.
var criticalEvents = map[EventType]bool{
	EventVideoFailed:        true,
	EventDualProcesses:      true,
	EventUncaughtException:  true,
	EventUnhandledRejection: true,
	EventServerCrashed:      true,
}

// CriticalError is returned when a caller tries to disable a critical event.
type CriticalError struct {
	Event EventType
}

func (e *CriticalError) Error() string {
	return fmt.Sprintf("notification type %q is critical and cannot be disabled", e.Event)
}

// IsCritical reports whether the event type belongs to the non-disableable set.
func IsCritical(t EventType) bool { return criticalEvents[t] }

// Gate holds per-event-type enable flags mirrored to a settings store. The
// read-modify-persist sequence is serialized under one mutex so concurrent
// mutations cannot lose updates.
type Gate struct {
	mu       sync.Mutex
	settings store.Settings
	st       store.Store
}

// NewGate loads persisted settings, merging any readable data over defaults.
// A load failure is non-fatal and falls back to defaults.
func NewGate(st store.Store) *Gate {
	g := &Gate{settings: defaults(), st: st}
	if st == nil {
		return g
	}
	loaded, err := st.Load(context.Background())
	if err != nil {
		slog.Warn("failed to load notification settings, using defaults", "error", err)
	}
	for name, enabled := range loaded {
		g.settings[name] = enabled
	}
	// Critical types stay enabled no matter what was persisted.
	for t := range criticalEvents {
		g.settings[string(t)] = true
	}
	return g
}

func defaults() store.Settings {
	s := make(store.Settings, len(AllEventTypes))
	for _, t := range AllEventTypes {
		s[string(t)] = true
	}
	return s
}

// IsEnabled reports whether the event type is enabled. Missing keys default
// to true.
func (g *Gate) IsEnabled(t EventType) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	enabled, ok := g.settings[string(t)]
	if !ok {
		return true
	}
	return enabled
}

// Enable turns an event type on and persists the snapshot.
func (g *Gate) Enable(t EventType) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.settings[string(t)] = true
	return g.persistLocked()
}

// Disable turns an event type off and persists the snapshot. Disabling a
// critical type fails without mutating state.
func (g *Gate) Disable(t EventType) error {
	if IsCritical(t) {
		return &CriticalError{Event: t}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.settings[string(t)] = false
	return g.persistLocked()
}

// Reset restores all defaults and persists the snapshot.
func (g *Gate) Reset() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.settings = defaults()
	return g.persistLocked()
}

// Snapshot returns a copy of the current settings keyed by event type.
func (g *Gate) Snapshot() map[EventType]bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[EventType]bool, len(g.settings))
	for name, enabled := range g.settings {
		out[EventType(name)] = enabled
	}
	return out
}

func (g *Gate) persistLocked() error {
	if g.st == nil {
		return nil
	}
	snap := make(store.Settings, len(g.settings))
	for k, v := range g.settings {
		snap[k] = v
	}
	if err := g.st.Save(context.Background(), snap); err != nil {
		return fmt.Errorf("failed to persist notification settings: %w", err)
	}
	return nil
}

package store

import "context"

// Settings is the persisted notification settings snapshot:
// event type name -> enabled flag.
type Settings map[string]bool

// Store is the persistence boundary for notification settings. Save writes
// the full snapshot; Load returns whatever is readable. A Load failure is
// non-fatal for callers (they fall back to defaults).
type Store interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
	Close() error
}

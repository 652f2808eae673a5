// Package control holds the remotely toggled run/mode state. Mutations
// persist immediately; reads are served from a short-lived cache so the
// scan loop does not hit storage on every decision.
package control

import (
	"context"
	"fmt"
	"sync"
	"time"

	"seoradar/internal/store"
)

// Storage persists the control record.
type Storage interface {
	LoadControl(ctx context.Context) (*store.ControlRecord, error)
	SaveControl(ctx context.Context, rec *store.ControlRecord) error
}

// State is the shared run/mode switch. A second process (or a crashed
// predecessor) may have written a newer record, so cached reads expire
// after the TTL and are re-read from storage.
type State struct {
	mu        sync.Mutex
	store     Storage
	ttl       time.Duration
	cached    store.ControlRecord
	fetchedAt time.Time

	now func() time.Time
}

// New creates the control state with the given read-cache TTL.
func New(s Storage, ttl time.Duration) *State {
	if ttl < 0 {
		ttl = 0
	}
	return &State{store: s, ttl: ttl, now: time.Now}
}

// Load reads the persisted state, defaulting to running when no record
// exists yet.
func (s *State) Load(ctx context.Context) error {
	rec, err := s.store.LoadControl(ctx)
	if err != nil {
		return fmt.Errorf("load control: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec == nil {
		s.cached = store.ControlRecord{
			Running:         true,
			LastCommand:     "start",
			LastCommandTime: s.now().UTC(),
		}
	} else {
		s.cached = *rec
	}
	s.fetchedAt = s.now()
	return nil
}

// ShouldRun reports whether scanning is enabled, stale by at most TTL.
func (s *State) ShouldRun(ctx context.Context) bool {
	return s.snapshot(ctx).Running
}

// LocaleOnly reports whether only locale-flagged items should alert.
func (s *State) LocaleOnly(ctx context.Context) bool {
	return s.snapshot(ctx).LocaleOnly
}

// Snapshot returns the current record, refreshing the cache if stale.
func (s *State) Snapshot(ctx context.Context) store.ControlRecord {
	return s.snapshot(ctx)
}

func (s *State) snapshot(ctx context.Context) store.ControlRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.now().Sub(s.fetchedAt) > s.ttl {
		if rec, err := s.store.LoadControl(ctx); err == nil && rec != nil {
			s.cached = *rec
		}
		s.fetchedAt = s.now()
	}
	return s.cached
}

// Start enables scanning.
func (s *State) Start(ctx context.Context) error {
	return s.mutate(ctx, "start", func(rec *store.ControlRecord) { rec.Running = true })
}

// Stop disables scanning.
func (s *State) Stop(ctx context.Context) error {
	return s.mutate(ctx, "stop", func(rec *store.ControlRecord) { rec.Running = false })
}

// SetLocaleOnly restricts alerts to locale-flagged items.
func (s *State) SetLocaleOnly(ctx context.Context) error {
	return s.mutate(ctx, "localeonly", func(rec *store.ControlRecord) { rec.LocaleOnly = true })
}

// SetGlobal lifts the locale-only restriction.
func (s *State) SetGlobal(ctx context.Context) error {
	return s.mutate(ctx, "global", func(rec *store.ControlRecord) { rec.LocaleOnly = false })
}

// mutate applies fn and persists before releasing the lock, so two
// racing commands resolve last-write-wins in arrival order.
func (s *State) mutate(ctx context.Context, command string, fn func(*store.ControlRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.cached
	fn(&rec)
	rec.LastCommand = command
	rec.LastCommandTime = s.now().UTC()

	if err := s.store.SaveControl(ctx, &rec); err != nil {
		return fmt.Errorf("persist %s: %w", command, err)
	}
	s.cached = rec
	s.fetchedAt = s.now()
	return nil
}

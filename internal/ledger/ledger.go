// Package ledger tracks which posts have already been alerted on, so
// the same post never produces two alerts within the retention window.
package ledger

import (
	"container/list"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Storage is the durable backing for the ledger.
type Storage interface {
	LoadSeen(ctx context.Context, cutoff time.Time) (map[string]time.Time, error)
	ReplaceSeen(ctx context.Context, entries map[string]time.Time) error
}

// Ledger is a bounded, time-windowed membership set. Marks refresh
// recency; when the capacity is exceeded the least-recently-marked entry
// is evicted. All mutations are serialized behind one mutex.
type Ledger struct {
	mu        sync.Mutex
	store     Storage
	capacity  int
	retention time.Duration
	entries   map[string]*list.Element
	lru       *list.List // front = most recently marked

	now func() time.Time
}

type entry struct {
	id     string
	seenAt time.Time
}

// New creates an empty ledger. Call Load to populate it from storage.
func New(s Storage, capacity int, retention time.Duration) *Ledger {
	if capacity <= 0 {
		capacity = 10000
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Ledger{
		store:     s,
		capacity:  capacity,
		retention: retention,
		entries:   make(map[string]*list.Element),
		lru:       list.New(),
		now:       time.Now,
	}
}

// Load populates the ledger from durable storage, discarding entries
// older than the retention window.
func (l *Ledger) Load(ctx context.Context) error {
	cutoff := l.now().Add(-l.retention)
	persisted, err := l.store.LoadSeen(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}

	type pair struct {
		id     string
		seenAt time.Time
	}
	pairs := make([]pair, 0, len(persisted))
	for id, seenAt := range persisted {
		if seenAt.Before(cutoff) {
			continue
		}
		pairs = append(pairs, pair{id, seenAt})
	}
	// Oldest first so LRU order survives the round trip.
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].seenAt.Before(pairs[j].seenAt) })

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]*list.Element, len(pairs))
	l.lru.Init()
	for _, p := range pairs {
		l.entries[p.id] = l.lru.PushFront(&entry{id: p.id, seenAt: p.seenAt})
	}
	return nil
}

// IsSeen reports whether id was marked within the retention window.
func (l *Ledger) IsSeen(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	el, ok := l.entries[id]
	if !ok {
		return false
	}
	if l.now().Sub(el.Value.(*entry).seenAt) > l.retention {
		return false
	}
	return true
}

// MarkSeen records id as seen now. Idempotent: re-marking refreshes the
// timestamp and recency. At capacity the least-recently-marked entry is
// evicted first.
func (l *Ledger) MarkSeen(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if el, ok := l.entries[id]; ok {
		el.Value.(*entry).seenAt = l.now()
		l.lru.MoveToFront(el)
		return
	}

	if l.lru.Len() >= l.capacity {
		oldest := l.lru.Back()
		if oldest != nil {
			l.lru.Remove(oldest)
			delete(l.entries, oldest.Value.(*entry).id)
		}
	}
	l.entries[id] = l.lru.PushFront(&entry{id: id, seenAt: l.now()})
}

// Len returns the current entry count.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lru.Len()
}

// Save persists a consistent snapshot. Marks arriving after the
// snapshot is taken are not included but never corrupt the write.
func (l *Ledger) Save(ctx context.Context) error {
	l.mu.Lock()
	snapshot := make(map[string]time.Time, len(l.entries))
	for id, el := range l.entries {
		snapshot[id] = el.Value.(*entry).seenAt
	}
	l.mu.Unlock()

	if err := l.store.ReplaceSeen(ctx, snapshot); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

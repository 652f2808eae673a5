package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	seen     map[string]time.Time
	saves    int
	loadErr  error
	replErr  error
	lastSave map[string]time.Time
}

func (f *fakeStorage) LoadSeen(_ context.Context, cutoff time.Time) (map[string]time.Time, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	out := make(map[string]time.Time)
	for id, at := range f.seen {
		if !at.Before(cutoff) {
			out[id] = at
		}
	}
	return out, nil
}

func (f *fakeStorage) ReplaceSeen(_ context.Context, entries map[string]time.Time) error {
	if f.replErr != nil {
		return f.replErr
	}
	f.saves++
	f.lastSave = entries
	return nil
}

func newTestLedger(capacity int) (*Ledger, *fakeStorage, *time.Time) {
	fs := &fakeStorage{seen: make(map[string]time.Time)}
	l := New(fs, capacity, 24*time.Hour)
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, fs, &now
}

func TestLedger_MarkAndCheck(t *testing.T) {
	l, _, _ := newTestLedger(100)

	assert.False(t, l.IsSeen("reddit_a"))
	l.MarkSeen("reddit_a")
	assert.True(t, l.IsSeen("reddit_a"))
	assert.Equal(t, 1, l.Len())
}

func TestLedger_MarkIsIdempotent(t *testing.T) {
	l, _, _ := newTestLedger(100)

	l.MarkSeen("reddit_a")
	l.MarkSeen("reddit_a")
	l.MarkSeen("reddit_a")
	assert.Equal(t, 1, l.Len())
}

func TestLedger_RetentionExpiry(t *testing.T) {
	l, _, now := newTestLedger(100)

	l.MarkSeen("reddit_old")
	*now = now.Add(25 * time.Hour)
	assert.False(t, l.IsSeen("reddit_old"), "entries age out after the retention window")

	// Re-marking revives it.
	l.MarkSeen("reddit_old")
	assert.True(t, l.IsSeen("reddit_old"))
}

func TestLedger_CapacityEviction(t *testing.T) {
	l, _, _ := newTestLedger(3)

	l.MarkSeen("a")
	l.MarkSeen("b")
	l.MarkSeen("c")
	// Refresh a so b is now the least recently marked.
	l.MarkSeen("a")

	l.MarkSeen("d")
	assert.Equal(t, 3, l.Len())
	assert.False(t, l.IsSeen("b"), "least-recently-marked entry is evicted")
	assert.True(t, l.IsSeen("a"))
	assert.True(t, l.IsSeen("c"))
	assert.True(t, l.IsSeen("d"))
}

func TestLedger_LoadPrunesOldEntries(t *testing.T) {
	l, fs, now := newTestLedger(100)
	fs.seen["fresh"] = now.Add(-time.Hour)
	fs.seen["stale"] = now.Add(-30 * time.Hour)

	require.NoError(t, l.Load(context.Background()))
	assert.True(t, l.IsSeen("fresh"))
	assert.False(t, l.IsSeen("stale"))
	assert.Equal(t, 1, l.Len())
}

func TestLedger_LoadPreservesRecencyOrder(t *testing.T) {
	l, fs, now := newTestLedger(3)
	fs.seen["oldest"] = now.Add(-3 * time.Hour)
	fs.seen["middle"] = now.Add(-2 * time.Hour)
	fs.seen["newest"] = now.Add(-1 * time.Hour)

	require.NoError(t, l.Load(context.Background()))

	// At capacity the next mark must evict the oldest entry.
	l.MarkSeen("extra")
	assert.False(t, l.IsSeen("oldest"))
	assert.True(t, l.IsSeen("middle"))
	assert.True(t, l.IsSeen("newest"))
}

func TestLedger_SaveSnapshot(t *testing.T) {
	l, fs, _ := newTestLedger(100)

	l.MarkSeen("a")
	l.MarkSeen("b")
	require.NoError(t, l.Save(context.Background()))

	assert.Equal(t, 1, fs.saves)
	assert.Len(t, fs.lastSave, 2)
	assert.Contains(t, fs.lastSave, "a")
	assert.Contains(t, fs.lastSave, "b")
}

func TestLedger_SaveError(t *testing.T) {
	l, fs, _ := newTestLedger(100)
	fs.replErr = fmt.Errorf("disk gone")

	l.MarkSeen("a")
	assert.Error(t, l.Save(context.Background()))
}

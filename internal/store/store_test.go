package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSeenRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	err := s.ReplaceSeen(ctx, map[string]time.Time{
		"reddit_a": now.Add(-time.Hour),
		"reddit_b": now.Add(-30 * time.Hour),
	})
	require.NoError(t, err)

	got, err := s.LoadSeen(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, "reddit_a", "entries past the cutoff are pruned on load")
}

func TestReplaceSeenOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.ReplaceSeen(ctx, map[string]time.Time{"old": now}))
	require.NoError(t, s.ReplaceSeen(ctx, map[string]time.Time{"new": now}))

	got, err := s.LoadSeen(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, "new")
}

func TestControlRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, err := s.LoadControl(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec, "no record before the first save")

	want := &ControlRecord{
		Running:         false,
		LocaleOnly:      true,
		LastCommand:     "stop",
		LastCommandTime: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.SaveControl(ctx, want))

	got, err := s.LoadControl(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Running, got.Running)
	assert.Equal(t, want.LocaleOnly, got.LocaleOnly)
	assert.Equal(t, want.LastCommand, got.LastCommand)

	// Upsert, not insert.
	want.Running = true
	want.LastCommand = "start"
	require.NoError(t, s.SaveControl(ctx, want))
	got, err = s.LoadControl(ctx)
	require.NoError(t, err)
	assert.True(t, got.Running)
	assert.Equal(t, "start", got.LastCommand)
}

func TestCursorRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cur, err := s.LoadCursor(ctx)
	require.NoError(t, err)
	assert.Nil(t, cur)

	want := &Cursor{LastUpdateID: 77, LastCommandTime: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, s.SaveCursor(ctx, want))

	got, err := s.LoadCursor(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(77), got.LastUpdateID)
}

func sampleOpportunity(postID, day string) *Opportunity {
	return &Opportunity{
		PostID:      postID,
		Title:       "Best bitcoin wallet in India?",
		Permalink:   "https://reddit.com/r/CryptoIndia/" + postID,
		Excerpt:     "looking for recommendations",
		Author:      "someone",
		Subreddit:   "CryptoIndia",
		Keywords:    []string{"bitcoin", "wallet"},
		Competitors: []string{"binance"},
		Priority:    "primary",
		LocaleFlag:  true,
		Score:       42,
		Comments:    7,
		PostedAt:    time.Now().UTC().Truncate(time.Second),
		FoundAt:     time.Now().UTC().Truncate(time.Second),
		Day:         day,
	}
}

func TestOpportunityRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddOpportunity(ctx, sampleOpportunity("reddit_1", "2026-08-28")))

	got, err := s.ListOpportunities(ctx, OpportunityListOpts{Day: "2026-08-28"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "reddit_1", got[0].PostID)
	assert.Equal(t, []string{"bitcoin", "wallet"}, got[0].Keywords)
	assert.Equal(t, []string{"binance"}, got[0].Competitors)
	assert.True(t, got[0].LocaleFlag)
}

func TestAddOpportunityIgnoresDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddOpportunity(ctx, sampleOpportunity("reddit_1", "2026-08-28")))
	require.NoError(t, s.AddOpportunity(ctx, sampleOpportunity("reddit_1", "2026-08-28")))

	got, err := s.ListOpportunities(ctx, OpportunityListOpts{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestDeleteOpportunitiesBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddOpportunity(ctx, sampleOpportunity("reddit_old", "2026-08-27")))
	require.NoError(t, s.AddOpportunity(ctx, sampleOpportunity("reddit_new", "2026-08-28")))

	deleted, err := s.DeleteOpportunitiesBefore(ctx, "2026-08-28")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	got, err := s.ListOpportunities(ctx, OpportunityListOpts{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "reddit_new", got[0].PostID)
}

func TestListOpportunitiesLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		opp := sampleOpportunity("reddit_"+string(rune('a'+i)), "2026-08-28")
		opp.FoundAt = time.Now().UTC().Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.AddOpportunity(ctx, opp))
	}

	got, err := s.ListOpportunities(ctx, OpportunityListOpts{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "reddit_e", got[0].PostID, "newest first")
}

package control

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seoradar/internal/store"
)

type fakeStorage struct {
	rec   *store.ControlRecord
	loads int
	saves int
}

func (f *fakeStorage) LoadControl(_ context.Context) (*store.ControlRecord, error) {
	f.loads++
	if f.rec == nil {
		return nil, nil
	}
	cp := *f.rec
	return &cp, nil
}

func (f *fakeStorage) SaveControl(_ context.Context, rec *store.ControlRecord) error {
	f.saves++
	cp := *rec
	f.rec = &cp
	return nil
}

func newTestState(ttl time.Duration) (*State, *fakeStorage, *time.Time) {
	fs := &fakeStorage{}
	s := New(fs, ttl)
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, fs, &now
}

func TestState_DefaultsToRunning(t *testing.T) {
	s, _, _ := newTestState(5 * time.Second)

	require.NoError(t, s.Load(context.Background()))
	assert.True(t, s.ShouldRun(context.Background()))
	assert.False(t, s.LocaleOnly(context.Background()))
}

func TestState_LoadExistingRecord(t *testing.T) {
	s, fs, _ := newTestState(5 * time.Second)
	fs.rec = &store.ControlRecord{Running: false, LocaleOnly: true, LastCommand: "stop"}

	require.NoError(t, s.Load(context.Background()))
	assert.False(t, s.ShouldRun(context.Background()))
	assert.True(t, s.LocaleOnly(context.Background()))
}

func TestState_StartStop(t *testing.T) {
	s, fs, _ := newTestState(5 * time.Second)
	require.NoError(t, s.Load(context.Background()))

	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.ShouldRun(context.Background()))
	assert.False(t, fs.rec.Running, "stop persists immediately")
	assert.Equal(t, "stop", fs.rec.LastCommand)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.ShouldRun(context.Background()))
	assert.True(t, fs.rec.Running)
}

func TestState_StopIsIdempotent(t *testing.T) {
	s, _, _ := newTestState(5 * time.Second)
	require.NoError(t, s.Load(context.Background()))

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.ShouldRun(context.Background()))
}

func TestState_ModeSwitch(t *testing.T) {
	s, fs, _ := newTestState(5 * time.Second)
	require.NoError(t, s.Load(context.Background()))

	require.NoError(t, s.SetLocaleOnly(context.Background()))
	assert.True(t, s.LocaleOnly(context.Background()))
	assert.True(t, fs.rec.Running, "mode switch leaves the run flag alone")

	require.NoError(t, s.SetGlobal(context.Background()))
	assert.False(t, s.LocaleOnly(context.Background()))
}

func TestState_CacheExpiry(t *testing.T) {
	s, fs, now := newTestState(5 * time.Second)
	require.NoError(t, s.Load(context.Background()))
	loadsAfterInit := fs.loads

	// Fresh cache: no storage reads.
	s.ShouldRun(context.Background())
	s.ShouldRun(context.Background())
	assert.Equal(t, loadsAfterInit, fs.loads)

	// An external writer flips the record; a stale cache picks it up.
	fs.rec = &store.ControlRecord{Running: false, LastCommand: "stop"}
	*now = now.Add(6 * time.Second)
	assert.False(t, s.ShouldRun(context.Background()))
	assert.Greater(t, fs.loads, loadsAfterInit)
}

func TestState_MutationRefreshesCache(t *testing.T) {
	s, _, now := newTestState(5 * time.Second)
	require.NoError(t, s.Load(context.Background()))

	*now = now.Add(time.Hour)
	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.ShouldRun(context.Background()),
		"a fresh mutation is authoritative without a storage round trip")
}

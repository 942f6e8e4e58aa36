package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/secfunded/stackd/internal/store"
)

func TestAppendAndRecent(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	require.NoError(t, db.EnsureSchema(ctx))
	// Schema creation is idempotent.
	require.NoError(t, db.EnsureSchema(ctx))

	events := []store.Event{
		{Service: "backend", Type: store.EventLaunch, PID: 100},
		{Service: "backend", Type: store.EventReady, PID: 100, Detail: "attempt 3"},
		{Service: "frontend", Type: store.EventLaunch, PID: 200},
		{Service: "frontend", Type: store.EventNotReady, PID: 200, Detail: "30 attempts"},
	}
	for _, evt := range events {
		require.NoError(t, db.Append(ctx, evt))
	}

	got, err := db.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Newest first.
	require.Equal(t, store.EventNotReady, got[0].Type)
	require.Equal(t, "frontend", got[0].Service)
	require.Equal(t, store.EventLaunch, got[1].Type)
	require.Equal(t, store.EventReady, got[2].Type)
	require.False(t, got[0].OccurredAt.IsZero())
}

func TestRecentDefaultLimit(t *testing.T) {
	db, err := New(":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	require.NoError(t, db.EnsureSchema(ctx))
	for i := 0; i < 60; i++ {
		require.NoError(t, db.Append(ctx, store.Event{
			Service:    "backend",
			Type:       store.EventExit,
			OccurredAt: time.Now().UTC(),
		}))
	}
	got, err := db.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 50)
}

func TestNewRejectsEmptyPath(t *testing.T) {
	_, err := New("  ")
	require.Error(t, err)
}

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	require.NoError(t, s.Save(ctx, Settings{"video_done": false, "high_resources": true}))
	loaded, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Settings{"video_done": false, "high_resources": true}, loaded)

	// Load hands out a copy
	loaded["video_done"] = true
	again, err := s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, again["video_done"])
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, Settings{"video_done": false, "queue_stalled": true}))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Settings{"video_done": false, "queue_stalled": true}, loaded)

	// save replaces the whole snapshot
	require.NoError(t, s.Save(ctx, Settings{"video_done": true}))
	loaded, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Settings{"video_done": true}, loaded)
}

func TestSQLiteStoreAcceptsPrefixedDSN(t *testing.T) {
	path := t.TempDir() + "/settings.db"
	s, err := NewSQLiteStore("sqlite://" + path)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), Settings{"video_done": false}))
	require.NoError(t, s.Close())

	// reopen and read back
	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Settings{"video_done": false}, loaded)
}

func TestNewFromConfig(t *testing.T) {
	s, err := NewFromConfig(Config{})
	require.NoError(t, err)
	_, ok := s.(*MemoryStore)
	assert.True(t, ok)

	s, err = NewFromConfig(Config{Type: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	_, ok = s.(*SQLiteStore)
	assert.True(t, ok)
	_ = s.Close()

	_, err = NewFromConfig(Config{Type: "mongodb"})
	assert.Error(t, err)
}

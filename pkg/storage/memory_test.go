package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("media")

	info, err := store.Stat(ctx, "events/e1/a.jpg")
	require.NoError(t, err)
	assert.False(t, info.Exists)

	store.Put("events/e1/a.jpg", 2048)
	info, err = store.Stat(ctx, "events/e1/a.jpg")
	require.NoError(t, err)
	assert.True(t, info.Exists)
	assert.Equal(t, int64(2048), info.Size)

	require.NoError(t, store.Delete(ctx, "events/e1/a.jpg"))
	require.NoError(t, store.Delete(ctx, "events/e1/a.jpg"), "deleting a missing key succeeds")
	assert.False(t, store.Has("events/e1/a.jpg"))
	assert.Equal(t, 2, store.DeleteCalls())
}

func TestMemoryStoreInjectedFailures(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("media")
	store.Put("x", 1)

	boom := errors.New("boom")
	store.FailDelete("x", boom)
	assert.ErrorIs(t, store.Delete(ctx, "x"), boom)
	assert.True(t, store.Has("x"))

	store.FailDelete("x", nil)
	assert.NoError(t, store.Delete(ctx, "x"))

	store.FailStat(boom)
	_, err := store.Stat(ctx, "x")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMemoryStorePresign(t *testing.T) {
	store := NewMemoryStore("media")
	u, err := store.PresignPut(context.Background(), "events/e1/a.jpg", "image/jpeg", 30*time.Minute)
	require.NoError(t, err)

	assert.Contains(t, u, "memory://media/events/e1/a.jpg?")
	assert.Contains(t, u, "method=PUT")
	assert.Contains(t, u, "expires=1800")
}

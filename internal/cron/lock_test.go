package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	values  map[string]string
	failSet error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}}
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if m.failSet != nil {
		return false, m.failSet
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryStore) ReleaseIfOwner(_ context.Context, key, token string) (bool, error) {
	if m.values[key] != token {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()

	first, err := NewRedisLock(store, "os:lock:cron-worker:test", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "os:lock:cron-worker:test", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	// a lock that never acquired cannot release the owner's key
	require.NoError(t, second.Release(ctx))
	require.Contains(t, store.values, "os:lock:cron-worker:test")

	require.NoError(t, first.Release(ctx))
	require.Empty(t, store.values)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisLockKeepsForeignOwner(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	lock, err := NewRedisLock(store, "key", 0)
	require.NoError(t, err)
	require.Equal(t, defaultLockTTL, lock.ttl)

	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// lock expired and was taken by another worker
	store.values["key"] = "someone-else"
	require.NoError(t, lock.Release(ctx))
	require.Equal(t, "someone-else", store.values["key"])
}

func TestRedisLockValidation(t *testing.T) {
	_, err := NewRedisLock(nil, "key", time.Minute)
	require.Error(t, err)
	_, err = NewRedisLock(newMemoryStore(), "", time.Minute)
	require.Error(t, err)

	store := newMemoryStore()
	store.failSet = errors.New("down")
	lock, err := NewRedisLock(store, "key", time.Minute)
	require.NoError(t, err)
	_, err = lock.Acquire(context.Background())
	require.ErrorContains(t, err, "down")
}

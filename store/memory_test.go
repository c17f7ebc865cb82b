package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryKVExpiry(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "instances:a", []byte("v"), 20*time.Millisecond))

	val, err := m.Get(ctx, "instances:a")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), val)

	time.Sleep(40 * time.Millisecond)

	_, err = m.Get(ctx, "instances:a")
	require.ErrorIs(t, err, ErrNotFound)

	keys, err := m.Keys(ctx, "instances:*")
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestMemoryKeysPattern(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "instances:a", []byte("1"), 0))
	require.NoError(t, m.Set(ctx, "instances:b", []byte("2"), 0))
	require.NoError(t, m.Set(ctx, "assignments:g", []byte("3"), 0))

	keys, err := m.Keys(ctx, "instances:*")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"instances:a", "instances:b"}, keys)
}

func TestMemorySets(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.SAdd(ctx, "ids", "a", "b"))
	require.NoError(t, m.SAdd(ctx, "ids", "b", "c"))

	members, err := m.SMembers(ctx, "ids")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b", "c"}, members)

	require.NoError(t, m.SRem(ctx, "ids", "b"))
	members, err = m.SMembers(ctx, "ids")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "c"}, members)

	members, err = m.SMembers(ctx, "missing")
	require.NoError(t, err)
	require.Empty(t, members)
}

func TestMemoryHashes(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.HSet(ctx, "stale", "g1", []byte("m1")))
	require.NoError(t, m.HSet(ctx, "stale", "g2", []byte("m2")))

	val, err := m.HGet(ctx, "stale", "g1")
	require.NoError(t, err)
	require.Equal(t, []byte("m1"), val)

	all, err := m.HGetAll(ctx, "stale")
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.NoError(t, m.HDel(ctx, "stale", "g1"))
	_, err = m.HGet(ctx, "stale", "g1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryPubSub(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := m.Subscribe(ctx, "events")
	require.NoError(t, err)

	require.NoError(t, m.Publish(ctx, "events", []byte("hello")))

	select {
	case msg := <-sub.Messages():
		require.Equal(t, "events", msg.Channel)
		require.Equal(t, []byte("hello"), msg.Data)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	require.NoError(t, sub.Close())
	_, open := <-sub.Messages()
	require.False(t, open)
}

func TestMemoryLockTokenSemantics(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()

	ok, err := m.AcquireLock(ctx, "locks:r", "tok-1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// Second acquisition is refused while held.
	ok, err = m.AcquireLock(ctx, "locks:r", "tok-2", time.Second)
	require.NoError(t, err)
	require.False(t, ok)

	// Wrong token cannot release or extend.
	ok, err = m.ReleaseLock(ctx, "locks:r", "tok-2")
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = m.ExtendLock(ctx, "locks:r", "tok-2", time.Second)
	require.NoError(t, err)
	require.False(t, ok)

	// Holder can extend and release.
	ok, err = m.ExtendLock(ctx, "locks:r", "tok-1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = m.ReleaseLock(ctx, "locks:r", "tok-1")
	require.NoError(t, err)
	require.True(t, ok)

	// Released lock is free again.
	ok, err = m.AcquireLock(ctx, "locks:r", "tok-2", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemoryLockExpiry(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()

	ok, err := m.AcquireLock(ctx, "locks:r", "tok-1", 20*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)

	// Expired lease no longer blocks acquisition, and the old token is gone.
	ok, err = m.ExtendLock(ctx, "locks:r", "tok-1", time.Second)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = m.AcquireLock(ctx, "locks:r", "tok-2", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
}

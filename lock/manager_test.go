package lock_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Lucascis/coord/lock"
	"github.com/Lucascis/coord/store"
)

func newManager(t *testing.T, opts ...lock.Option) *lock.Manager {
	t.Helper()

	m, err := lock.New([]lock.Node{store.NewMemory()}, opts...)
	require.NoError(t, err)

	return m
}

func TestNewRequiresNodes(t *testing.T) {
	t.Parallel()

	_, err := lock.New(nil)
	require.ErrorIs(t, err, lock.ErrNoNodes)
}

// TestMutualExclusion runs 25 concurrent holders of the same resource and
// verifies their critical sections never interleave: the shared log must be
// a sequence of adjacent enter/leave pairs.
func TestMutualExclusion(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	ctx := context.Background()

	const holders = 25

	var logMu sync.Mutex
	var log []string

	var wg sync.WaitGroup
	for i := 0; i < holders; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			for {
				err := m.Do(ctx, "shared", 500*time.Millisecond, func(context.Context) error {
					logMu.Lock()
					log = append(log, fmt.Sprintf("enter-%d", id))
					logMu.Unlock()

					time.Sleep(time.Millisecond)

					logMu.Lock()
					log = append(log, fmt.Sprintf("leave-%d", id))
					logMu.Unlock()

					return nil
				})
				if err == nil {
					return
				}
				require.ErrorIs(t, err, lock.ErrNotObtained)
			}
		}(i)
	}
	wg.Wait()

	require.Len(t, log, 2*holders)
	for i := 0; i < len(log); i += 2 {
		var id int
		_, err := fmt.Sscanf(log[i], "enter-%d", &id)
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("leave-%d", id), log[i+1],
			"critical sections interleaved at log position %d", i)
	}
}

// TestIndependentResources verifies that locks on different resources are
// held concurrently: both critical sections must be inside at the same time.
func TestIndependentResources(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	ctx := context.Background()

	aInside := make(chan struct{})
	bInside := make(chan struct{})
	deadline := time.After(5 * time.Second)

	var wg sync.WaitGroup
	wg.Add(2)
	errs := make(chan error, 2)

	go func() {
		defer wg.Done()
		errs <- m.Do(ctx, "resource-a", 2*time.Second, func(context.Context) error {
			close(aInside)
			select {
			case <-bInside:
				return nil
			case <-deadline:
				return errors.New("resource-b never entered while resource-a held")
			}
		})
	}()
	go func() {
		defer wg.Done()
		errs <- m.Do(ctx, "resource-b", 2*time.Second, func(context.Context) error {
			close(bInside)
			select {
			case <-aInside:
				return nil
			case <-deadline:
				return errors.New("resource-a never entered while resource-b held")
			}
		})
	}()
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
}

func TestTryAcquireContention(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	ctx := context.Background()

	l, err := m.TryAcquire(ctx, "res", time.Second)
	require.NoError(t, err)

	_, err = m.TryAcquire(ctx, "res", time.Second)
	require.ErrorIs(t, err, lock.ErrNotObtained)

	require.NoError(t, m.Release(ctx, l))

	l2, err := m.TryAcquire(ctx, "res", time.Second)
	require.NoError(t, err)
	require.NoError(t, m.Release(ctx, l2))
}

func TestExtendMovesValidity(t *testing.T) {
	t.Parallel()

	m := newManager(t, lock.WithAutoExtend(false))
	ctx := context.Background()

	l, err := m.TryAcquire(ctx, "res", time.Second)
	require.NoError(t, err)

	before := l.ValidUntil()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, m.Extend(ctx, l, time.Second))
	require.True(t, l.ValidUntil().After(before))

	require.NoError(t, m.Release(ctx, l))
	require.ErrorIs(t, m.Extend(ctx, l, time.Second), lock.ErrNotHeld)
}

func TestReleaseTwice(t *testing.T) {
	t.Parallel()

	m := newManager(t, lock.WithAutoExtend(false))
	ctx := context.Background()

	l, err := m.TryAcquire(ctx, "res", time.Second)
	require.NoError(t, err)

	require.NoError(t, m.Release(ctx, l))
	require.ErrorIs(t, m.Release(ctx, l), lock.ErrNotHeld)
}

// TestMajorityAcquisition verifies the quorum rule across three independent
// nodes: a held lease occupies a majority, and a competing acquisition fails.
func TestMajorityAcquisition(t *testing.T) {
	t.Parallel()

	nodes := []lock.Node{store.NewMemory(), store.NewMemory(), store.NewMemory()}
	m, err := lock.New(nodes, lock.WithAutoExtend(false))
	require.NoError(t, err)

	ctx := context.Background()
	l, err := m.TryAcquire(ctx, "res", time.Second)
	require.NoError(t, err)

	held := 0
	for _, node := range nodes {
		ok, err := node.AcquireLock(ctx, "res", "intruder", time.Second)
		require.NoError(t, err)
		if !ok {
			held++
		}
	}
	require.GreaterOrEqual(t, held, 2, "lease must occupy a majority of nodes")

	_, err = m.TryAcquire(ctx, "res", time.Second)
	require.ErrorIs(t, err, lock.ErrNotObtained)

	require.NoError(t, m.Release(ctx, l))
}

// TestDoReleasesOnError verifies the lease is released even when the
// critical section fails.
func TestDoReleasesOnError(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := m.Do(ctx, "res", time.Second, func(context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	l, err := m.TryAcquire(ctx, "res", time.Second)
	require.NoError(t, err)
	require.NoError(t, m.Release(ctx, l))
}

// TestDoContextCancelledOnParent verifies fn's context follows the parent.
func TestDoContextCancelledOnParent(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	ctx, cancel := context.WithCancel(context.Background())

	entered := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- m.Do(ctx, "res", time.Second, func(fnCtx context.Context) error {
			close(entered)
			select {
			case <-fnCtx.Done():
				return fnCtx.Err()
			case <-time.After(5 * time.Second):
				return errors.New("fn context never cancelled")
			}
		})
	}()

	<-entered
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

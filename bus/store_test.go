package bus_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Lucascis/coord/bus"
	"github.com/Lucascis/coord/store"
	"github.com/Lucascis/coord/types"
)

func waitEvent(t *testing.T, events <-chan types.Event) types.Event {
	t.Helper()

	select {
	case event, ok := <-events:
		require.True(t, ok, "event stream closed unexpectedly")

		return event
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")

		return types.Event{}
	}
}

func TestStoreBusRoundTrip(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	b := bus.NewStore(st, "", nil)
	defer b.Close()

	ctx := context.Background()
	events, err := b.Subscribe(ctx)
	require.NoError(t, err)

	sent := types.NewEvent(types.GuildAssigned{
		GuildID:     "guild-1",
		InstanceID:  "audio-1",
		ServiceType: types.ServiceAudio,
	})
	require.NoError(t, b.Publish(ctx, sent))

	got := waitEvent(t, events)
	require.Equal(t, types.EventGuildAssigned, got.Type)
	payload, ok := got.Payload.(*types.GuildAssigned)
	require.True(t, ok)
	require.Equal(t, "guild-1", payload.GuildID)
}

func TestStoreBusFanOut(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	b := bus.NewStore(st, "", nil)
	defer b.Close()

	ctx := context.Background()
	first, err := b.Subscribe(ctx)
	require.NoError(t, err)
	second, err := b.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, types.NewEvent(types.InstanceDied{
		InstanceID:  "audio-1",
		ServiceType: types.ServiceAudio,
	})))

	require.Equal(t, types.EventInstanceDied, waitEvent(t, first).Type)
	require.Equal(t, types.EventInstanceDied, waitEvent(t, second).Type)
}

func TestStoreBusDropsUndecodable(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	b := bus.NewStore(st, "", nil)
	defer b.Close()

	ctx := context.Background()
	events, err := b.Subscribe(ctx)
	require.NoError(t, err)

	// Garbage and unknown event types are dropped; the stream stays usable.
	require.NoError(t, st.Publish(ctx, bus.DefaultChannel, []byte("not json")))
	require.NoError(t, st.Publish(ctx, bus.DefaultChannel,
		[]byte(`{"type":"from_the_future","timestamp":"2026-01-01T00:00:00Z","payload":{}}`)))
	require.NoError(t, b.Publish(ctx, types.NewEvent(types.RebalanceTriggered{ServiceType: types.ServiceAudio})))

	require.Equal(t, types.EventRebalanceTriggered, waitEvent(t, events).Type)
}

func TestStoreBusCloseEndsStreams(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	b := bus.NewStore(st, "", nil)

	events, err := b.Subscribe(context.Background())
	require.NoError(t, err)

	require.NoError(t, b.Close())

	select {
	case _, ok := <-events:
		require.False(t, ok, "stream must close after bus Close")
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not close after bus Close")
	}

	_, err = b.Subscribe(context.Background())
	require.Error(t, err)
}

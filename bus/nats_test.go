package bus_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Lucascis/coord/bus"
	coordtest "github.com/Lucascis/coord/testing"
	"github.com/Lucascis/coord/types"
)

func TestNATSBusRoundTrip(t *testing.T) {
	t.Parallel()

	_, nc := coordtest.StartEmbeddedNATS(t)
	b := bus.NewNATS(nc, "", coordtest.NewTestLogger(t))
	defer b.Close()

	ctx := context.Background()
	events, err := b.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, nc.Flush())

	sent := types.NewEvent(types.MigrationStarted{
		Request: types.MigrationRequest{
			GuildID:        "guild-1",
			FromInstanceID: "audio-1",
			ToInstanceID:   "audio-2",
			Reason:         types.MigrationRebalance,
			Priority:       types.PriorityNormal,
		},
	})
	require.NoError(t, b.Publish(ctx, sent))

	got := waitEvent(t, events)
	require.Equal(t, types.EventMigrationStarted, got.Type)
	payload, ok := got.Payload.(*types.MigrationStarted)
	require.True(t, ok)
	require.Equal(t, "guild-1", payload.Request.GuildID)
}

func TestNATSBusSubjectIsolation(t *testing.T) {
	t.Parallel()

	_, nc := coordtest.StartEmbeddedNATS(t)
	a := bus.NewNATS(nc, "coord.cluster.a", coordtest.NewTestLogger(t))
	defer a.Close()
	b := bus.NewNATS(nc, "coord.cluster.b", coordtest.NewTestLogger(t))
	defer b.Close()

	ctx := context.Background()
	aEvents, err := a.Subscribe(ctx)
	require.NoError(t, err)
	bEvents, err := b.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, nc.Flush())

	require.NoError(t, a.Publish(ctx, types.NewEvent(types.RebalanceTriggered{
		ServiceType: types.ServiceAudio,
		Moves:       3,
	})))

	require.Equal(t, types.EventRebalanceTriggered, waitEvent(t, aEvents).Type)

	select {
	case event := <-bEvents:
		t.Fatalf("subject b received event %s published on subject a", event.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNATSBusCloseEndsStreams(t *testing.T) {
	t.Parallel()

	_, nc := coordtest.StartEmbeddedNATS(t)
	b := bus.NewNATS(nc, "", coordtest.NewTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := b.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, b.Close())
	cancel()

	select {
	case _, ok := <-events:
		require.False(t, ok, "stream must close after bus Close")
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not close after bus Close")
	}

	_, err = b.Subscribe(context.Background())
	require.Error(t, err)
}

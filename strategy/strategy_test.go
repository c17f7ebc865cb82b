package strategy_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Lucascis/coord/strategy"
	"github.com/Lucascis/coord/types"
)

func inst(id string, guilds int) *types.Instance {
	i := &types.Instance{ID: id, Status: types.StatusHealthy}
	for n := 0; n < guilds; n++ {
		i.AddGuild(fmt.Sprintf("%s-guild-%d", id, n))
	}

	return i
}

func TestLeastGuilds(t *testing.T) {
	t.Parallel()

	s := strategy.NewLeastGuilds()

	picked := s.Select("guild-1", []*types.Instance{inst("a", 5), inst("b", 2), inst("c", 9)})
	require.Equal(t, "b", picked.ID)

	// Ties break toward the smaller instance ID.
	picked = s.Select("guild-1", []*types.Instance{inst("z", 3), inst("a", 3)})
	require.Equal(t, "a", picked.ID)

	require.Nil(t, s.Select("guild-1", nil))
}

func TestLeastCPU(t *testing.T) {
	t.Parallel()

	s := strategy.NewLeastCPU()

	a := inst("a", 0)
	a.Resources.CPUPercent = 80
	b := inst("b", 0)
	b.Resources.CPUPercent = 15

	require.Equal(t, "b", s.Select("g", []*types.Instance{a, b}).ID)
}

func TestMostAvailableMemory(t *testing.T) {
	t.Parallel()

	s := strategy.NewMostAvailableMemory()

	a := inst("a", 0)
	a.Resources.AvailableMemoryMB = 512
	b := inst("b", 0)
	b.Resources.AvailableMemoryMB = 4096

	require.Equal(t, "b", s.Select("g", []*types.Instance{a, b}).ID)
}

// TestConsistentHashDeterministic verifies the core placement property: the
// same guild against the same candidate set lands on the same instance,
// regardless of candidate order.
func TestConsistentHashDeterministic(t *testing.T) {
	t.Parallel()

	s := strategy.NewConsistentHash()

	candidates := []*types.Instance{inst("audio-1", 0), inst("audio-2", 0), inst("audio-3", 0)}
	shuffled := []*types.Instance{candidates[2], candidates[0], candidates[1]}

	for i := 0; i < 50; i++ {
		guildID := fmt.Sprintf("guild-%d", i)
		a := s.Select(guildID, candidates)
		b := s.Select(guildID, shuffled)
		require.NotNil(t, a)
		require.Equal(t, a.ID, b.ID, "placement for %s depends on candidate order", guildID)
	}
}

func TestConsistentHashOptions(t *testing.T) {
	t.Parallel()

	s := strategy.NewConsistentHash(
		strategy.WithVirtualNodes(50),
		strategy.WithHashSeed(7),
	)

	candidates := []*types.Instance{inst("a", 0), inst("b", 0)}
	first := s.Select("guild-1", candidates)
	require.NotNil(t, first)
	require.Equal(t, first.ID, s.Select("guild-1", candidates).ID)
}

func TestFromName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{
		strategy.NameLeastGuilds,
		strategy.NameLeastCPU,
		strategy.NameMostAvailableMemory,
		strategy.NameRoundRobin,
		strategy.NameConsistentHash,
	} {
		s, err := strategy.FromName(name)
		require.NoError(t, err, "strategy %q", name)
		require.NotNil(t, s)
	}

	_, err := strategy.FromName("bogus")
	require.ErrorIs(t, err, types.ErrUnknownStrategy)
}

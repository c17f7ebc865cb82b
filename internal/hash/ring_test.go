package hash

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingDeterministic(t *testing.T) {
	t.Parallel()

	members := []string{"audio-1", "audio-2", "audio-3"}
	ring := NewRing(members, 150, 0)

	first := ring.GetNode("guild-42")
	for i := 0; i < 100; i++ {
		require.Equal(t, first, ring.GetNode("guild-42"))
	}
}

func TestRingOrderIndependent(t *testing.T) {
	t.Parallel()

	a := NewRing([]string{"a", "b", "c"}, 150, 0)
	b := NewRing([]string{"c", "a", "b"}, 150, 0)

	for _, key := range []string{"guild-1", "guild-2", "guild-3", "guild-99"} {
		require.Equal(t, a.GetNode(key), b.GetNode(key))
	}
}

func TestRingEmpty(t *testing.T) {
	t.Parallel()

	ring := NewRing(nil, 150, 0)
	require.Equal(t, "", ring.GetNode("guild-1"))
	require.Zero(t, ring.Size())
}

func TestRingDistribution(t *testing.T) {
	t.Parallel()

	members := []string{"a", "b", "c", "d"}
	ring := NewRing(members, 150, 0)

	counts := map[string]int{}
	for i := 0; i < 4000; i++ {
		counts[ring.GetNode(fmt.Sprintf("guild-%d", i))]++
	}

	// Virtual nodes should spread keys across all members.
	for _, m := range members {
		require.Greater(t, counts[m], 0, "member %s received no keys", m)
	}
}

func TestRingSeedChangesPlacement(t *testing.T) {
	t.Parallel()

	members := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	a := NewRing(members, 150, 0)
	b := NewRing(members, 150, 12345)

	diff := 0
	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("guild-%d", i)
		if a.GetNode(key) != b.GetNode(key) {
			diff++
		}
	}
	require.Greater(t, diff, 0, "different seeds should place at least some keys differently")
}

package strategy

import (
	"github.com/Lucascis/coord/internal/hash"
	"github.com/Lucascis/coord/types"
)

// ConsistentHash implements deterministic guild placement with a hash ring.
type ConsistentHash struct {
	virtualNodes int
	hashSeed     uint64
}

var _ types.SelectionStrategy = (*ConsistentHash)(nil)

// ConsistentHashOption configures a ConsistentHash strategy.
type ConsistentHashOption func(*ConsistentHash)

// NewConsistentHash creates a consistent-hash selection strategy.
//
// The strategy builds a hash ring with virtual nodes over the candidate
// instance IDs and places the guild on the nearest clockwise node. The pick
// is a pure function of the guild ID and the candidate set: the same ID and
// the same candidates (in any order) always select the same instance.
//
// Parameters:
//   - opts: Optional configuration (WithVirtualNodes, WithHashSeed)
//
// Returns:
//   - *ConsistentHash: Initialized strategy
//
// Example:
//
//	sel := strategy.NewConsistentHash(strategy.WithVirtualNodes(300))
func NewConsistentHash(opts ...ConsistentHashOption) *ConsistentHash {
	ch := &ConsistentHash{
		virtualNodes: 150, // default
		hashSeed:     0,
	}

	for _, opt := range opts {
		opt(ch)
	}

	return ch
}

// WithVirtualNodes sets the number of virtual nodes per instance.
//
// Higher values give better distribution at the cost of memory.
// Recommended range: 100-300 (default: 150).
func WithVirtualNodes(nodes int) ConsistentHashOption {
	return func(ch *ConsistentHash) {
		ch.virtualNodes = nodes
	}
}

// WithHashSeed sets a custom hash seed.
func WithHashSeed(seed uint64) ConsistentHashOption {
	return func(ch *ConsistentHash) {
		ch.hashSeed = seed
	}
}

// Select places the guild on a ring built from the candidate IDs.
func (ch *ConsistentHash) Select(guildID string, candidates []*types.Instance) *types.Instance {
	if len(candidates) == 0 {
		return nil
	}

	byID := make(map[string]*types.Instance, len(candidates))
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}

	ring := hash.NewRing(ids, ch.virtualNodes, ch.hashSeed)

	return byID[ring.GetNode(guildID)]
}

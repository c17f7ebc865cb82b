package strategy

import "github.com/Lucascis/coord/types"

// LeastGuilds picks the candidate owning the fewest guilds.
//
// Ties break toward the lexicographically smaller instance ID so the pick is
// stable for a given candidate set.
type LeastGuilds struct{}

var _ types.SelectionStrategy = (*LeastGuilds)(nil)

// NewLeastGuilds creates the least-assigned-count strategy.
//
// This is the default strategy and also backs the "round_robin"
// configuration value: always handing the next guild to the least-loaded
// instance approximates round-robin without per-caller cursor state.
//
// Returns:
//   - *LeastGuilds: Initialized strategy
func NewLeastGuilds() *LeastGuilds {
	return &LeastGuilds{}
}

// Select returns the candidate with the fewest assigned guilds.
func (*LeastGuilds) Select(_ string, candidates []*types.Instance) *types.Instance {
	var best *types.Instance
	for _, c := range candidates {
		if best == nil ||
			c.GuildCount() < best.GuildCount() ||
			(c.GuildCount() == best.GuildCount() && c.ID < best.ID) {
			best = c
		}
	}

	return best
}

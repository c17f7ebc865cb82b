package strategy

import (
	"fmt"

	"github.com/Lucascis/coord/types"
)

// Strategy names accepted in configuration.
const (
	NameLeastGuilds         = "least_guilds"
	NameLeastCPU            = "least_cpu"
	NameMostAvailableMemory = "most_available_memory"
	NameRoundRobin          = "round_robin"
	NameConsistentHash      = "consistent_hash"
)

// FromName resolves a configuration value to a strategy implementation.
//
// Parameters:
//   - name: One of the Name* constants
//
// Returns:
//   - types.SelectionStrategy: Resolved strategy
//   - error: types.ErrUnknownStrategy for unrecognized names
func FromName(name string) (types.SelectionStrategy, error) {
	switch name {
	case NameLeastGuilds, NameRoundRobin:
		// Round-robin is approximated by least-count: handing the next
		// guild to the least-loaded instance needs no shared cursor.
		return NewLeastGuilds(), nil
	case NameLeastCPU:
		return NewLeastCPU(), nil
	case NameMostAvailableMemory:
		return NewMostAvailableMemory(), nil
	case NameConsistentHash:
		return NewConsistentHash(), nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownStrategy, name)
	}
}

package strategy

import "github.com/Lucascis/coord/types"

// LeastCPU picks the candidate with the lowest reported CPU usage.
type LeastCPU struct{}

var _ types.SelectionStrategy = (*LeastCPU)(nil)

// NewLeastCPU creates the least-CPU strategy.
func NewLeastCPU() *LeastCPU {
	return &LeastCPU{}
}

// Select returns the candidate with the lowest CPU usage, breaking ties on
// instance ID.
func (*LeastCPU) Select(_ string, candidates []*types.Instance) *types.Instance {
	var best *types.Instance
	for _, c := range candidates {
		if best == nil ||
			c.Resources.CPUPercent < best.Resources.CPUPercent ||
			(c.Resources.CPUPercent == best.Resources.CPUPercent && c.ID < best.ID) {
			best = c
		}
	}

	return best
}

// MostAvailableMemory picks the candidate with the most free memory.
type MostAvailableMemory struct{}

var _ types.SelectionStrategy = (*MostAvailableMemory)(nil)

// NewMostAvailableMemory creates the most-available-memory strategy.
func NewMostAvailableMemory() *MostAvailableMemory {
	return &MostAvailableMemory{}
}

// Select returns the candidate with the most available memory, breaking ties
// on instance ID.
func (*MostAvailableMemory) Select(_ string, candidates []*types.Instance) *types.Instance {
	var best *types.Instance
	for _, c := range candidates {
		if best == nil ||
			c.Resources.AvailableMemoryMB > best.Resources.AvailableMemoryMB ||
			(c.Resources.AvailableMemoryMB == best.Resources.AvailableMemoryMB && c.ID < best.ID) {
			best = c
		}
	}

	return best
}

// Package strategy provides built-in instance-selection implementations.
//
// A selection strategy decides which eligible instance should own a guild.
// Candidates are pre-filtered by the coordinator (healthy instances of the
// right service type with spare capacity); strategies only express
// preference.
//
// # Strategy Selection Guide
//
// LeastGuilds:
//   - Default. Picks the instance owning the fewest guilds
//   - Also serves as the naive round-robin approximation
//
// LeastCPU:
//   - Picks the instance with the lowest reported CPU usage
//   - Use when guilds have very uneven per-guild cost
//
// MostAvailableMemory:
//   - Picks the instance with the most free memory
//   - Use for memory-bound workloads (e.g. audio transcoding pools)
//
// ConsistentHash:
//   - Deterministic: the same guild ID against the same candidate set picks
//     the same instance regardless of candidate order
//   - Use when downstream routing benefits from stable placement
//
// Custom strategies can be implemented by satisfying the
// types.SelectionStrategy interface.
package strategy

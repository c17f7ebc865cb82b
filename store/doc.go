// Package store defines the coordination store contract and its
// implementations.
//
// The coordination layer needs five primitives from its store: key/value
// records with expiry, set membership, hash maps, an atomic per-node lock
// primitive, and publish/subscribe channels. Store is the contract for those
// primitives; the rest of the module is agnostic to the concrete product
// behind it.
//
// Two implementations ship with the module:
//
//   - Redis: production implementation over go-redis. Several independent
//     Redis nodes can be combined by the lock manager into a majority lock.
//   - Memory: a single-process implementation used by tests and by
//     single-node deployments that do not need cross-process coordination.
package store

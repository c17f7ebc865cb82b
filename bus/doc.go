// Package bus provides cluster event transports.
//
// Two implementations of types.EventBus are available:
//
//   - Store: rides the coordination store's pub/sub channel. The default;
//     no extra infrastructure beyond the store itself.
//   - NATS: publishes events on a NATS subject, for deployments that
//     already run NATS and want cluster events on their existing fabric.
//
// Both transports are fire-and-forget. Events are observability and cache
// invalidation signals; authoritative state always lives in the store, so a
// dropped event costs freshness, never correctness.
package bus

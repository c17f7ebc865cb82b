// Package lock implements distributed mutual exclusion over one or more
// coordination-store nodes.
//
// The algorithm is the standard multi-node majority lock: a lease on a named
// resource counts as held only if it was written to a strict majority of
// independent store nodes within its TTL, discounted by a small clock-drift
// margin and by the time the acquisition itself took. With a single node the
// algorithm degenerates to a plain SET NX PX lock.
//
// Held leases are extended in the background while the holder is running, so
// a slow critical section does not silently lose exclusivity. If extension
// fails, the lease's context is cancelled: callers that thread that context
// through their store writes are fenced from writing after losing the lock.
//
// Contention is an expected, frequent condition. It surfaces as
// ErrNotObtained and a metric, never as an error log.
package lock

// Package testing provides test utilities for the coord library.
//
// This package offers helpers for setting up test environments: an embedded
// miniredis-backed store and an embedded NATS server for bus testing. It
// follows Go's convention of providing testing utilities in a dedicated
// package (similar to net/http/httptest).
//
// Key utilities:
//   - StartMiniredis: miniredis instance plus a ready store.Redis
//   - StartEmbeddedNATS: single in-process NATS server
//   - NewTestLogger: types.Logger writing through testing.T
//
// Example usage:
//
//	import (
//	    "testing"
//	    coordtest "github.com/Lucascis/coord/testing"
//	)
//
//	func TestMyComponent(t *testing.T) {
//	    mr, st := coordtest.StartMiniredis(t)
//	    // Use st for your tests; mr.FastForward drives TTL expiry
//	}
package testing

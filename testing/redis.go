package testing

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/Lucascis/coord/store"
)

// StartMiniredis starts an in-process Redis server and returns it together
// with a ready store.Redis over it.
//
// miniredis runs entirely in-process, so tests get real Redis semantics
// (SET NX PX, Lua compare-and-delete, sets, hashes) without Docker or an
// external daemon. TTL expiry does not advance on its own; drive it with
// mr.FastForward.
//
// Parameters:
//   - t: Testing context for cleanup
//
// Returns:
//   - *miniredis.Miniredis: The embedded server, for FastForward and inspection
//   - *store.Redis: Store connected to it, prefix "test"
//
// Example:
//
//	func TestExpiry(t *testing.T) {
//	    mr, st := coordtest.StartMiniredis(t)
//	    _ = st.Set(ctx, "k", []byte("v"), time.Second)
//	    mr.FastForward(2 * time.Second)
//	    // "k" is now expired
//	}
func StartMiniredis(t *testing.T) (*miniredis.Miniredis, *store.Redis) {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	return mr, store.NewRedis(client, "test")
}

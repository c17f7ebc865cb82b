// Package hash implements a consistent hash ring with virtual nodes.
package hash

import (
	"encoding/binary"
	"slices"

	"github.com/zeebo/xxh3"
)

// Ring maps guild IDs to instances using consistent hashing.
//
// The pick is a pure function of the guild ID and the member set: the same
// ID against the same members returns the same instance regardless of the
// order members were supplied in, and adding or removing one member only
// moves the keys adjacent to its virtual nodes.
type Ring struct {
	// nodes contains all virtual nodes on the ring, sorted by hash.
	nodes []virtualNode

	// members holds the unique instance IDs present on the ring.
	members []string

	// seed for the hash function (0 means unseeded).
	seed uint64
}

// virtualNode is one position on the ring.
type virtualNode struct {
	hash     uint64
	memberID string
}

// NewRing creates a ring over the given instance IDs.
//
// Parameters:
//   - members: Instance IDs to place on the ring (duplicates ignored)
//   - virtualNodes: Virtual nodes per member (higher = better distribution)
//   - seed: Hash seed (0 for unseeded, non-zero for a stable custom seed)
//
// Returns:
//   - *Ring: Initialized ring
func NewRing(members []string, virtualNodes int, seed uint64) *Ring {
	ring := &Ring{
		nodes:   make([]virtualNode, 0, len(members)*virtualNodes),
		members: make([]string, 0, len(members)),
		seed:    seed,
	}

	seen := make(map[string]struct{}, len(members))
	for _, id := range members {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ring.members = append(ring.members, id)
		ring.addMember(id, virtualNodes)
	}

	slices.SortFunc(ring.nodes, func(a, b virtualNode) int {
		switch {
		case a.hash < b.hash:
			return -1
		case a.hash > b.hash:
			return 1
		default:
			return 0
		}
	})

	return ring
}

// GetNode returns the instance responsible for a key, or "" on an empty
// ring.
//
// Uses binary search for the first virtual node whose hash is >= the key
// hash, wrapping to the first node past the end of the ring.
func (r *Ring) GetNode(key string) string {
	if len(r.nodes) == 0 {
		return ""
	}

	target := r.hash(key)
	idx, _ := slices.BinarySearchFunc(r.nodes, target, func(node virtualNode, t uint64) int {
		switch {
		case node.hash < t:
			return -1
		case node.hash > t:
			return 1
		default:
			return 0
		}
	})
	if idx >= len(r.nodes) {
		idx = 0
	}

	return r.nodes[idx].memberID
}

// Members returns a copy of the unique member IDs on the ring.
func (r *Ring) Members() []string {
	return append([]string(nil), r.members...)
}

// Size returns the total number of virtual nodes on the ring.
func (r *Ring) Size() int {
	return len(r.nodes)
}

// addMember places a member's virtual nodes on the ring.
func (r *Ring) addMember(memberID string, virtualNodes int) {
	for i := range virtualNodes {
		// Fold the member ID first, then the vnode index using the previous
		// hash as seed, avoiding an intermediate concatenated string.
		h := r.hash(memberID)

		var ib [8]byte
		binary.LittleEndian.PutUint64(ib[:], uint64(i)) //nolint:gosec
		h = xxh3.HashSeed(ib[:], h)

		r.nodes = append(r.nodes, virtualNode{hash: h, memberID: memberID})
	}
}

// hash computes a 64-bit XXH3 hash of the key.
func (r *Ring) hash(key string) uint64 {
	if r.seed != 0 {
		return xxh3.HashStringSeed(key, r.seed)
	}

	return xxh3.HashString(key)
}

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key or hash field does not exist.
var ErrNotFound = errors.New("store: key not found")

// Message is one pub/sub delivery.
type Message struct {
	Channel string
	Data    []byte
}

// Subscription is a live pub/sub subscription.
type Subscription interface {
	// Messages returns the delivery channel. It closes when the
	// subscription is closed or its context is cancelled.
	Messages() <-chan Message

	// Close terminates the subscription and closes the delivery channel.
	Close() error
}

// Store is the coordination store contract.
//
// All keys are namespaced by the implementation; callers use logical keys
// like "instances:gateway-1". Write operations with ttl <= 0 persist until
// explicitly deleted. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes key with an optional expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists keys matching a glob pattern (e.g. "instances:*").
	Keys(ctx context.Context, pattern string) ([]string, error)

	// SAdd adds members to a set.
	SAdd(ctx context.Context, key string, members ...string) error

	// SRem removes members from a set.
	SRem(ctx context.Context, key string, members ...string) error

	// SMembers returns all members of a set. A missing set is empty.
	SMembers(ctx context.Context, key string) ([]string, error)

	// HSet writes one field of a hash.
	HSet(ctx context.Context, key, field string, value []byte) error

	// HGet returns one field of a hash, or ErrNotFound.
	HGet(ctx context.Context, key, field string) ([]byte, error)

	// HGetAll returns all fields of a hash. A missing hash is empty.
	HGetAll(ctx context.Context, key string) (map[string][]byte, error)

	// HDel removes fields from a hash.
	HDel(ctx context.Context, key string, fields ...string) error

	// Publish broadcasts a payload on a channel.
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe opens a subscription on a channel. The subscription is
	// closed when ctx is cancelled or Close is called.
	Subscribe(ctx context.Context, channel string) (Subscription, error)

	// Close releases all resources held by the store client.
	Close() error
}

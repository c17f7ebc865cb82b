package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// Lua scripts for the atomic lock primitives. Release and extend must only
// succeed for the caller that still holds the token, so both are
// compare-and-mutate scripts rather than plain DEL/PEXPIRE.
var (
	releaseScript = redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		end
		return 0
	`)

	extendScript = redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		end
		return 0
	`)
)

// Redis implements Store over a go-redis universal client.
//
// All keys are namespaced under a prefix so multiple clusters can share one
// Redis deployment. Redis also provides the per-node atomic lock primitives
// (SET NX PX plus compare-and-mutate scripts) consumed by the lock manager.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis creates a Redis-backed store.
//
// Parameters:
//   - client: Connected go-redis universal client
//   - prefix: Key namespace prefix (e.g. "coord")
//
// Returns:
//   - *Redis: Store implementation over the client
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// NewRedisClient dials a single Redis node from a URL like
// "redis://localhost:6379/0".
//
// Parameters:
//   - rawURL: Redis connection URL
//
// Returns:
//   - redis.UniversalClient: Connected client
//   - error: URL parse or option error
func NewRedisClient(rawURL string) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return redis.NewClient(opts), nil
}

var _ Store = (*Redis)(nil)

func (r *Redis) key(k string) string {
	if r.prefix == "" {
		return k
	}

	return r.prefix + ":" + k
}

// Get returns the value for key, or ErrNotFound.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	return val, nil
}

// Set writes key with an optional expiry (ttl <= 0 means no expiry).
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

// Delete removes a key.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}

	return nil
}

// Keys lists logical keys matching a glob pattern.
func (r *Redis) Keys(ctx context.Context, pattern string) ([]string, error) {
	full, err := r.client.Keys(ctx, r.key(pattern)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis keys %s: %w", pattern, err)
	}

	if r.prefix == "" {
		return full, nil
	}

	trim := r.prefix + ":"
	keys := make([]string, 0, len(full))
	for _, k := range full {
		keys = append(keys, strings.TrimPrefix(k, trim))
	}

	return keys, nil
}

// SAdd adds members to a set.
func (r *Redis) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}

	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := r.client.SAdd(ctx, r.key(key), args...).Err(); err != nil {
		return fmt.Errorf("redis sadd %s: %w", key, err)
	}

	return nil
}

// SRem removes members from a set.
func (r *Redis) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}

	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := r.client.SRem(ctx, r.key(key), args...).Err(); err != nil {
		return fmt.Errorf("redis srem %s: %w", key, err)
	}

	return nil
}

// SMembers returns all members of a set.
func (r *Redis) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := r.client.SMembers(ctx, r.key(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers %s: %w", key, err)
	}

	return members, nil
}

// HSet writes one field of a hash.
func (r *Redis) HSet(ctx context.Context, key, field string, value []byte) error {
	if err := r.client.HSet(ctx, r.key(key), field, value).Err(); err != nil {
		return fmt.Errorf("redis hset %s.%s: %w", key, field, err)
	}

	return nil
}

// HGet returns one field of a hash, or ErrNotFound.
func (r *Redis) HGet(ctx context.Context, key, field string) ([]byte, error) {
	val, err := r.client.HGet(ctx, r.key(key), field).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("redis hget %s.%s: %w", key, field, err)
	}

	return val, nil
}

// HGetAll returns all fields of a hash.
func (r *Redis) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	vals, err := r.client.HGetAll(ctx, r.key(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", key, err)
	}

	out := make(map[string][]byte, len(vals))
	for f, v := range vals {
		out[f] = []byte(v)
	}

	return out, nil
}

// HDel removes fields from a hash.
func (r *Redis) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := r.client.HDel(ctx, r.key(key), fields...).Err(); err != nil {
		return fmt.Errorf("redis hdel %s: %w", key, err)
	}

	return nil
}

// Publish broadcasts a payload on a channel.
func (r *Redis) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := r.client.Publish(ctx, r.key(channel), payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}

	return nil
}

// Subscribe opens a pub/sub subscription on a channel.
func (r *Redis) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	pubsub := r.client.Subscribe(ctx, r.key(channel))

	// Wait for the subscription to be confirmed so publishes immediately
	// after Subscribe returns are not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", channel, err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		out:    make(chan Message, 64),
	}
	go sub.pump(ctx, r.prefix)

	return sub, nil
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// AcquireLock atomically acquires a lock key for token with a TTL.
//
// Returns:
//   - bool: true if the lock was acquired, false if held by someone else
//   - error: Store failure (not contention)
func (r *Redis) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(key), token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}

	return ok, nil
}

// ReleaseLock releases the lock key only if still held by token.
func (r *Redis) ReleaseLock(ctx context.Context, key, token string) (bool, error) {
	res, err := releaseScript.Run(ctx, r.client, []string{r.key(key)}, token).Int64()
	if err != nil {
		return false, fmt.Errorf("redis release %s: %w", key, err)
	}

	return res == 1, nil
}

// ExtendLock resets the TTL of the lock key only if still held by token.
func (r *Redis) ExtendLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	res, err := extendScript.Run(ctx, r.client, []string{r.key(key)}, token, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis extend %s: %w", key, err)
	}

	return res == 1, nil
}

// redisSubscription adapts a go-redis PubSub to the Subscription interface.
type redisSubscription struct {
	pubsub *redis.PubSub
	out    chan Message
}

func (s *redisSubscription) pump(ctx context.Context, prefix string) {
	defer close(s.out)

	trim := ""
	if prefix != "" {
		trim = prefix + ":"
	}

	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = s.pubsub.Close()
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			out := Message{
				Channel: strings.TrimPrefix(msg.Channel, trim),
				Data:    []byte(msg.Payload),
			}
			select {
			case s.out <- out:
			default:
				// Slow subscriber: drop rather than stall the pump.
			}
		}
	}
}

func (s *redisSubscription) Messages() <-chan Message { return s.out }

func (s *redisSubscription) Close() error { return s.pubsub.Close() }

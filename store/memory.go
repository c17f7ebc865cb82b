package store

import (
	"context"
	"path"
	"sync"
	"time"
)

// Memory is an in-process Store implementation.
//
// It honors the same TTL and lock semantics as the Redis implementation and
// is used as the substrate for package tests and for single-process
// deployments. Expiry is lazy: expired entries are dropped when read or
// listed.
type Memory struct {
	mu      sync.RWMutex
	kv      map[string]memEntry
	sets    map[string]map[string]struct{}
	hashes  map[string]map[string][]byte
	subs    map[string][]*memorySubscription
	closed  bool
	nextSub int
}

type memEntry struct {
	value    []byte
	deadline time.Time // zero means no expiry
}

func (e memEntry) expired(now time.Time) bool {
	return !e.deadline.IsZero() && now.After(e.deadline)
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		kv:     make(map[string]memEntry),
		sets:   make(map[string]map[string]struct{}),
		hashes: make(map[string]map[string][]byte),
		subs:   make(map[string][]*memorySubscription),
	}
}

var _ Store = (*Memory)(nil)

// Get returns the value for key, or ErrNotFound.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	entry, ok := m.kv[key]
	m.mu.RUnlock()

	if !ok || entry.expired(time.Now()) {
		return nil, ErrNotFound
	}

	return append([]byte(nil), entry.value...), nil
}

// Set writes key with an optional expiry.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.deadline = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.kv[key] = entry
	m.mu.Unlock()

	return nil
}

// Delete removes a key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.kv, key)
	m.mu.Unlock()

	return nil
}

// Keys lists keys matching a glob pattern.
func (m *Memory) Keys(_ context.Context, pattern string) ([]string, error) {
	now := time.Now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k, entry := range m.kv {
		if entry.expired(now) {
			continue
		}
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}

	return keys, nil
}

// SAdd adds members to a set.
func (m *Memory) SAdd(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]struct{})
		m.sets[key] = set
	}
	for _, member := range members {
		set[member] = struct{}{}
	}

	return nil
}

// SRem removes members from a set.
func (m *Memory) SRem(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.sets[key]
	if !ok {
		return nil
	}
	for _, member := range members {
		delete(set, member)
	}
	if len(set) == 0 {
		delete(m.sets, key)
	}

	return nil
}

// SMembers returns all members of a set.
func (m *Memory) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := m.sets[key]
	members := make([]string, 0, len(set))
	for member := range set {
		members = append(members, member)
	}

	return members, nil
}

// HSet writes one field of a hash.
func (m *Memory) HSet(_ context.Context, key, field string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	hash, ok := m.hashes[key]
	if !ok {
		hash = make(map[string][]byte)
		m.hashes[key] = hash
	}
	hash[field] = append([]byte(nil), value...)

	return nil
}

// HGet returns one field of a hash, or ErrNotFound.
func (m *Memory) HGet(_ context.Context, key, field string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hash, ok := m.hashes[key]
	if !ok {
		return nil, ErrNotFound
	}
	val, ok := hash[field]
	if !ok {
		return nil, ErrNotFound
	}

	return append([]byte(nil), val...), nil
}

// HGetAll returns all fields of a hash.
func (m *Memory) HGetAll(_ context.Context, key string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hash := m.hashes[key]
	out := make(map[string][]byte, len(hash))
	for f, v := range hash {
		out[f] = append([]byte(nil), v...)
	}

	return out, nil
}

// HDel removes fields from a hash.
func (m *Memory) HDel(_ context.Context, key string, fields ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	hash, ok := m.hashes[key]
	if !ok {
		return nil
	}
	for _, f := range fields {
		delete(hash, f)
	}
	if len(hash) == 0 {
		delete(m.hashes, key)
	}

	return nil
}

// Publish delivers a payload to all current subscribers of a channel.
func (m *Memory) Publish(_ context.Context, channel string, payload []byte) error {
	msg := Message{Channel: channel, Data: append([]byte(nil), payload...)}

	m.mu.RLock()
	subs := append([]*memorySubscription(nil), m.subs[channel]...)
	m.mu.RUnlock()

	for _, sub := range subs {
		sub.deliver(msg)
	}

	return nil
}

// Subscribe opens a subscription on a channel.
func (m *Memory) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	m.mu.Lock()
	m.nextSub++
	sub := &memorySubscription{
		store:   m,
		channel: channel,
		id:      m.nextSub,
		out:     make(chan Message, 64),
	}
	m.subs[channel] = append(m.subs[channel], sub)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = sub.Close()
	}()

	return sub, nil
}

// Close drops all subscriptions.
func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	var all []*memorySubscription
	for _, subs := range m.subs {
		all = append(all, subs...)
	}
	m.subs = make(map[string][]*memorySubscription)
	m.mu.Unlock()

	for _, sub := range all {
		sub.closeChan()
	}

	return nil
}

// AcquireLock atomically acquires a lock key for token with a TTL.
func (m *Memory) AcquireLock(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.kv[key]; ok && !entry.expired(now) {
		return false, nil
	}
	m.kv[key] = memEntry{value: []byte(token), deadline: now.Add(ttl)}

	return true, nil
}

// ReleaseLock releases the lock key only if still held by token.
func (m *Memory) ReleaseLock(_ context.Context, key, token string) (bool, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.kv[key]
	if !ok || entry.expired(now) || string(entry.value) != token {
		return false, nil
	}
	delete(m.kv, key)

	return true, nil
}

// ExtendLock resets the TTL of the lock key only if still held by token.
func (m *Memory) ExtendLock(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.kv[key]
	if !ok || entry.expired(now) || string(entry.value) != token {
		return false, nil
	}
	entry.deadline = now.Add(ttl)
	m.kv[key] = entry

	return true, nil
}

// memorySubscription is a channel-backed subscription on a Memory store.
type memorySubscription struct {
	store   *Memory
	channel string
	id      int
	out     chan Message

	closeOnce sync.Once
}

func (s *memorySubscription) deliver(msg Message) {
	defer func() {
		// Racing with Close: a send on a closed channel is abandoned.
		_ = recover()
	}()

	select {
	case s.out <- msg:
	default:
		// Slow subscriber: drop rather than stall the publisher.
	}
}

func (s *memorySubscription) Messages() <-chan Message { return s.out }

func (s *memorySubscription) Close() error {
	s.store.mu.Lock()
	subs := s.store.subs[s.channel]
	for i, sub := range subs {
		if sub.id == s.id {
			s.store.subs[s.channel] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	s.store.mu.Unlock()

	s.closeChan()

	return nil
}

func (s *memorySubscription) closeChan() {
	s.closeOnce.Do(func() { close(s.out) })
}

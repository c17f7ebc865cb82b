package bus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/Lucascis/coord/internal/logging"
	"github.com/Lucascis/coord/store"
	"github.com/Lucascis/coord/types"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "cluster-events"

// Store is an event bus over the coordination store's pub/sub channel.
type Store struct {
	store   store.Store
	channel string
	logger  types.Logger

	mu     sync.Mutex
	subs   []store.Subscription
	closed bool
}

var _ types.EventBus = (*Store)(nil)

// NewStore creates a store-backed event bus.
//
// Parameters:
//   - st: Coordination store providing pub/sub
//   - channel: Pub/sub channel name ("" for DefaultChannel)
//   - logger: Logger (nil for none)
//
// Returns:
//   - *Store: Initialized bus
func NewStore(st store.Store, channel string, logger types.Logger) *Store {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Store{store: st, channel: channel, logger: logger}
}

// Publish broadcasts one event on the bus channel.
func (b *Store) Publish(ctx context.Context, event types.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return b.store.Publish(ctx, b.channel, data)
}

// Subscribe opens a decoded event stream.
//
// The returned channel closes when ctx is cancelled or the bus is closed.
// Messages that fail to decode are dropped with a warning; unknown event
// types from newer peers are dropped silently.
func (b *Store) Subscribe(ctx context.Context) (<-chan types.Event, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()

		return nil, errors.New("bus: closed")
	}
	b.mu.Unlock()

	sub, err := b.store.Subscribe(ctx, b.channel)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	events := make(chan types.Event, 64)
	go func() {
		defer close(events)
		for msg := range sub.Messages() {
			var event types.Event
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				if !errors.Is(err, types.ErrUnknownEventType) {
					b.logger.Warn("dropping undecodable cluster event", "error", err)
				}

				continue
			}

			select {
			case events <- event:
			case <-ctx.Done():
				return
			default:
				// Slow subscriber; events are advisory, drop rather than
				// stall the pump.
				b.logger.Warn("dropping cluster event for slow subscriber", "type", event.Type)
			}
		}
	}()

	return events, nil
}

// Close terminates all subscriptions. The underlying store is caller-owned
// and stays open.
func (b *Store) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var firstErr error
	for _, sub := range b.subs {
		if err := sub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.subs = nil

	return firstErr
}

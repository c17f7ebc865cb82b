package bus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/Lucascis/coord/internal/logging"
	"github.com/Lucascis/coord/types"
)

// DefaultSubject is the NATS subject used when none is configured.
const DefaultSubject = "coord.cluster.events"

// NATS is an event bus over a core NATS subject.
//
// The connection is caller-owned: Close drops the bus's subscriptions but
// leaves the connection open for whatever else the process uses it for.
type NATS struct {
	conn    *nats.Conn
	subject string
	logger  types.Logger

	mu     sync.Mutex
	subs   []*nats.Subscription
	closed bool
}

var _ types.EventBus = (*NATS)(nil)

// NewNATS creates a NATS-backed event bus.
//
// Parameters:
//   - conn: Established NATS connection (caller-owned)
//   - subject: Subject for cluster events ("" for DefaultSubject)
//   - logger: Logger (nil for none)
//
// Returns:
//   - *NATS: Initialized bus
func NewNATS(conn *nats.Conn, subject string, logger types.Logger) *NATS {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &NATS{conn: conn, subject: subject, logger: logger}
}

// Publish broadcasts one event on the bus subject.
func (b *NATS) Publish(_ context.Context, event types.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return b.conn.Publish(b.subject, data)
}

// Subscribe opens a decoded event stream.
//
// The returned channel closes when ctx is cancelled or the bus is closed.
func (b *NATS) Subscribe(ctx context.Context) (<-chan types.Event, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()

		return nil, errors.New("bus: closed")
	}
	b.mu.Unlock()

	msgs := make(chan *nats.Msg, 64)
	sub, err := b.conn.ChanSubscribe(b.subject, msgs)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	events := make(chan types.Event, 64)
	go func() {
		defer close(events)
		defer func() {
			if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
				b.logger.Warn("failed to unsubscribe cluster events", "error", err)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}

				var event types.Event
				if err := json.Unmarshal(msg.Data, &event); err != nil {
					if !errors.Is(err, types.ErrUnknownEventType) {
						b.logger.Warn("dropping undecodable cluster event", "error", err)
					}

					continue
				}

				select {
				case events <- event:
				default:
					b.logger.Warn("dropping cluster event for slow subscriber", "type", event.Type)
				}
			}
		}
	}()

	return events, nil
}

// Close drops all subscriptions held by the bus.
func (b *NATS) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var firstErr error
	for _, sub := range b.subs {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) && firstErr == nil {
			firstErr = err
		}
	}
	b.subs = nil

	return firstErr
}

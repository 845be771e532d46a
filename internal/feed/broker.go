package feed

import (
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/brewline/brewline/internal/config"
)

// Module provides the broker and feed client to Fx.
var Module = fx.Options(
	fx.Provide(NewBroker),
	fx.Provide(NewClient),
)

// Broker fans change events out to subscribers. Delivery order matches
// publish order per subscriber, which preserves per-order commit ordering as
// long as publishers emit events in commit order.
type Broker struct {
	mu      sync.Mutex
	subs    map[uint64]*Subscription
	nextID  uint64
	bufSize int
	logger  *zap.Logger
}

// NewBroker constructs a Broker with the configured subscriber buffer size.
func NewBroker(cfg config.Config, logger *zap.Logger) *Broker {
	bufSize := cfg.Feed.BufferSize
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Broker{
		subs:    make(map[uint64]*Subscription),
		bufSize: bufSize,
		logger:  logger,
	}
}

// Publish delivers the event to every subscriber whose filter admits it. A
// subscriber that cannot keep up loses the event; a fresh snapshot on
// re-subscribe is the documented recovery path.
func (b *Broker) Publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if !sub.filter.Matches(event.Order) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			if b.logger != nil {
				b.logger.Warn("feed subscriber overflow; dropping event",
					zap.String("kind", string(event.Kind)),
					zap.String("order_id", event.Order.ID.String()),
				)
			}
		}
	}
}

// Subscribe registers a new subscriber. The caller must drain Events and call
// Unsubscribe when done.
func (b *Broker) Subscribe(filter Filter) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		id:     b.nextID,
		filter: filter,
		ch:     make(chan Event, b.bufSize),
		broker: b,
	}
	b.subs[sub.id] = sub
	return sub
}

// Subscribers reports the current subscriber count.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broker) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Subscription is one subscriber's handle on the broker.
type Subscription struct {
	id     uint64
	filter Filter
	ch     chan Event
	broker *Broker
	once   sync.Once
}

// Events returns the delivery channel. It is closed by Unsubscribe.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Unsubscribe stops delivery and is idempotent. Removal happens under the
// broker lock, so no event is delivered once Unsubscribe returns; the channel
// is closed afterwards to release range loops.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.broker.remove(s.id)
		close(s.ch)
	})
}

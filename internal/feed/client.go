package feed

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/brewline/brewline/internal/entity"
	"github.com/brewline/brewline/pkg/errorbank"
)

var clientTracer = otel.Tracer("github.com/brewline/brewline/feed")

// Snapshotter fetches the current order set for a filter, ordered by
// created_at descending. The order service implements it.
type Snapshotter interface {
	Snapshot(ctx context.Context, filter Filter) ([]entity.Order, error)
}

// Client couples a broker subscription with an initial snapshot fetch, the
// way the customer and admin views consume orders.
type Client struct {
	broker    *Broker
	snapshots Snapshotter
	logger    *zap.Logger
}

// NewClient constructs a feed Client.
func NewClient(broker *Broker, snapshots Snapshotter, logger *zap.Logger) *Client {
	return &Client{broker: broker, snapshots: snapshots, logger: logger}
}

// Feed is a live subscription together with its initial snapshot. When the
// snapshot fetch failed, Snapshot is empty and Err carries an unavailable
// error; the event stream still runs so the view can heal on refetch.
type Feed struct {
	Snapshot []entity.Order
	Err      error

	sub *Subscription
}

// Events returns the live event channel.
func (f *Feed) Events() <-chan Event {
	return f.sub.Events()
}

// Unsubscribe stops delivery. Idempotent; no events arrive after it returns.
func (f *Feed) Unsubscribe() {
	f.sub.Unsubscribe()
}

// Subscribe opens a subscription and fetches the initial snapshot. The
// subscription is registered before the fetch so no commit falls between the
// snapshot and the first event; consumers dedup via their store.
func (c *Client) Subscribe(ctx context.Context, filter Filter) *Feed {
	ctx, span := clientTracer.Start(ctx, "Feed.Subscribe")
	defer span.End()

	sub := c.broker.Subscribe(filter)
	feed := &Feed{sub: sub}

	snapshot, err := c.snapshots.Snapshot(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot fetch failed")
		if c.logger != nil {
			c.logger.Warn("order snapshot fetch failed", zap.Error(err))
		}
		feed.Err = errorbank.Unavailable("order snapshot unavailable", errorbank.WithCause(err))
		return feed
	}

	feed.Snapshot = snapshot
	return feed
}

package order

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/brewline/brewline/internal/cache"
	"github.com/brewline/brewline/internal/config"
	"github.com/brewline/brewline/internal/feed"
	"github.com/brewline/brewline/internal/messaging"
	ordersvc "github.com/brewline/brewline/internal/service/order"
	"github.com/brewline/brewline/internal/worker"
)

var workerTracer = otel.Tracer("github.com/brewline/brewline/worker/order")

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewChangeBridgeHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewChangeBridgeHandler bridges order change messages from the bus into the
// local feed broker and drops stale cache entries. This is what keeps feed
// subscribers on one instance current with writes made on another; the local
// publish on the writing instance means subscribers there may see the same
// event twice, which the store-side replay tolerates.
func NewChangeBridgeHandler(logger *zap.Logger, cfg config.Config, broker *feed.Broker, store cache.Store) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.bridge", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var change ordersvc.ChangeMessage
		if err := json.Unmarshal(msg.Value, &change); err != nil {
			logger.Error("failed to decode order change", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}

		broker.Publish(feed.Event{Kind: change.Type, Order: change.Order})

		if change.Type != feed.KindInsert {
			key := fmt.Sprintf("orders:%s", change.Order.ID)
			if err := store.Delete(ctx, key); err != nil {
				logger.Warn("failed to invalidate order cache", zap.String("key", key), zap.Error(err))
			}
		}

		logger.Info("order change bridged",
			zap.String("kind", string(change.Type)),
			zap.String("id", change.Order.ID.String()),
			zap.String("status", string(change.Order.Status)),
		)
		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}

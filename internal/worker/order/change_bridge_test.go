package order

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brewline/brewline/internal/cache"
	"github.com/brewline/brewline/internal/config"
	"github.com/brewline/brewline/internal/entity"
	"github.com/brewline/brewline/internal/feed"
	"github.com/brewline/brewline/internal/messaging"
	ordersvc "github.com/brewline/brewline/internal/service/order"
	"github.com/brewline/brewline/internal/status"
)

type fakeCache struct {
	deleted []string
}

func (f *fakeCache) Get(context.Context, string) ([]byte, error) { return nil, cache.ErrCacheMiss }

func (f *fakeCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (f *fakeCache) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func bridgeFixture(t *testing.T) (messaging.Handler, *feed.Broker, *fakeCache) {
	t.Helper()

	cfg := config.Config{}
	cfg.Messaging.Kafka.Topic = "orders.changes"
	cfg.Feed.BufferSize = 8

	broker := feed.NewBroker(cfg, zap.NewNop())
	store := &fakeCache{}
	reg := NewChangeBridgeHandler(zap.NewNop(), cfg, broker, store)
	require.Equal(t, "orders.changes", reg.Topic)
	return reg.Handler, broker, store
}

func TestChangeBridgeRepublishesUpdate(t *testing.T) {
	handler, broker, store := bridgeFixture(t)

	sub := broker.Subscribe(feed.Filter{})
	defer sub.Unsubscribe()

	orderID := uuid.New()
	payload, err := json.Marshal(ordersvc.ChangeMessage{
		Type:  feed.KindUpdate,
		Order: entity.Order{ID: orderID, Status: status.Preparing},
	})
	require.NoError(t, err)

	err = handler(context.Background(), messaging.Message{Topic: "orders.changes", Value: payload})
	require.NoError(t, err)

	select {
	case event := <-sub.Events():
		assert.Equal(t, feed.KindUpdate, event.Kind)
		assert.Equal(t, orderID, event.Order.ID)
		assert.Equal(t, status.Preparing, event.Order.Status)
	default:
		t.Fatal("expected a republished event")
	}

	require.Len(t, store.deleted, 1)
	assert.Equal(t, "orders:"+orderID.String(), store.deleted[0])
}

func TestChangeBridgeInsertSkipsCacheInvalidation(t *testing.T) {
	handler, broker, store := bridgeFixture(t)

	sub := broker.Subscribe(feed.Filter{})
	defer sub.Unsubscribe()

	payload, err := json.Marshal(ordersvc.ChangeMessage{
		Type:  feed.KindInsert,
		Order: entity.Order{ID: uuid.New(), Status: status.Pending},
	})
	require.NoError(t, err)

	err = handler(context.Background(), messaging.Message{Topic: "orders.changes", Value: payload})
	require.NoError(t, err)

	select {
	case event := <-sub.Events():
		assert.Equal(t, feed.KindInsert, event.Kind)
	default:
		t.Fatal("expected a republished event")
	}
	assert.Empty(t, store.deleted)
}

func TestChangeBridgeRejectsGarbage(t *testing.T) {
	handler, _, store := bridgeFixture(t)

	err := handler(context.Background(), messaging.Message{Topic: "orders.changes", Value: []byte("{not json")})
	require.Error(t, err)
	assert.Empty(t, store.deleted)
}

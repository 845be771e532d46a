package order

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brewline/brewline/internal/auth"
	"github.com/brewline/brewline/internal/config"
	"github.com/brewline/brewline/internal/dto"
	"github.com/brewline/brewline/internal/entity"
	"github.com/brewline/brewline/internal/feed"
	orderrepo "github.com/brewline/brewline/internal/repository/order"
	"github.com/brewline/brewline/internal/status"
	"github.com/brewline/brewline/pkg/errorbank"
)

type fakeOrders struct {
	byID       map[uuid.UUID]entity.Order
	created    []entity.Order
	casCalls   int
	casErr     error
	lastCAS    [2]status.Status
	lastTarget uuid.UUID
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{byID: make(map[uuid.UUID]entity.Order)}
}

func (f *fakeOrders) Create(_ context.Context, order *entity.Order) error {
	f.created = append(f.created, *order)
	f.byID[order.ID] = *order
	return nil
}

func (f *fakeOrders) GetByID(_ context.Context, id uuid.UUID) (*entity.Order, error) {
	order, ok := f.byID[id]
	if !ok {
		return nil, orderrepo.ErrNotFound
	}
	out := order
	return &out, nil
}

func (f *fakeOrders) List(_ context.Context, filter orderrepo.ListFilter) ([]entity.Order, error) {
	var out []entity.Order
	for _, order := range f.byID {
		if filter.UserID != nil && order.UserID != *filter.UserID {
			continue
		}
		if filter.OrderID != nil && order.ID != *filter.OrderID {
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

func (f *fakeOrders) UpdateStatusCAS(_ context.Context, id uuid.UUID, expected, target status.Status) error {
	f.casCalls++
	f.lastTarget = id
	f.lastCAS = [2]status.Status{expected, target}
	if f.casErr != nil {
		return f.casErr
	}
	order, ok := f.byID[id]
	if !ok || order.Status != expected {
		return orderrepo.ErrStatusConflict
	}
	order.Status = target
	f.byID[id] = order
	return nil
}

func (f *fakeOrders) UpdateCurrentLocation(_ context.Context, id uuid.UUID, point *entity.GeoPoint) error {
	order, ok := f.byID[id]
	if !ok || !order.ShareLocation {
		return orderrepo.ErrLocationDisabled
	}
	order.CurrentLocation = point
	f.byID[id] = order
	return nil
}

type fakeMenu struct {
	items map[uuid.UUID]entity.MenuItem
}

func (f fakeMenu) ActiveItems(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]entity.MenuItem, error) {
	out := make(map[uuid.UUID]entity.MenuItem)
	for _, id := range ids {
		if item, ok := f.items[id]; ok && item.IsActive {
			out[id] = item
		}
	}
	return out, nil
}

func newTestService(orders *fakeOrders, menu fakeMenu) (*Service, *feed.Broker) {
	cfg := config.Config{
		Feed:      config.Feed{BufferSize: 16},
		Messaging: config.Messaging{Enabled: false},
	}
	broker := feed.NewBroker(cfg, zap.NewNop())
	svc := NewService(Params{
		Orders: orders,
		Menu:   menu,
		Config: cfg,
		Logger: zap.NewNop(),
		Broker: broker,
	})
	return svc, broker
}

func authedCtx(userID uuid.UUID) context.Context {
	return auth.WithPrincipal(context.Background(), auth.Principal{UserID: userID})
}

func activeMenu() (fakeMenu, uuid.UUID) {
	id := uuid.New()
	return fakeMenu{items: map[uuid.UUID]entity.MenuItem{
		id: {ID: id, Name: "Flat White", Price: 4.5, IsActive: true},
	}}, id
}

func TestCreateHappyPath(t *testing.T) {
	orders := newFakeOrders()
	menu, itemID := activeMenu()
	svc, broker := newTestService(orders, menu)

	userID := uuid.New()
	sub := broker.Subscribe(feed.Filter{})
	defer sub.Unsubscribe()

	id, err := svc.Create(authedCtx(userID), dto.CreateOrderRequest{
		UserID:     userID,
		Items:      []dto.CreateOrderItem{{MenuItemID: itemID, Quantity: 2, Notes: "oat milk"}},
		PickupTime: time.Now().Add(15 * time.Minute),
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	require.Len(t, orders.created, 1)
	created := orders.created[0]
	assert.Equal(t, status.Pending, created.Status)
	assert.Equal(t, userID, created.UserID)
	assert.False(t, created.CreatedAt.IsZero())
	require.Len(t, created.Items, 1)
	assert.Equal(t, 4.5, created.Items[0].UnitPrice, "price is snapshotted server-side")
	assert.Equal(t, "oat milk", created.Items[0].Notes)

	event := <-sub.Events()
	assert.Equal(t, feed.KindInsert, event.Kind)
	assert.Equal(t, id, event.Order.ID)
}

func TestCreateRejectsInactiveMenuItem(t *testing.T) {
	orders := newFakeOrders()
	inactive := uuid.New()
	menu := fakeMenu{items: map[uuid.UUID]entity.MenuItem{
		inactive: {ID: inactive, Name: "Seasonal", Price: 5, IsActive: false},
	}}
	svc, _ := newTestService(orders, menu)

	userID := uuid.New()
	_, err := svc.Create(authedCtx(userID), dto.CreateOrderRequest{
		UserID:     userID,
		Items:      []dto.CreateOrderItem{{MenuItemID: inactive, Quantity: 1}},
		PickupTime: time.Now().Add(10 * time.Minute),
	})
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))
	assert.Empty(t, orders.created, "no insert on validation failure")
}

func TestCreateRejectsBadPayloads(t *testing.T) {
	orders := newFakeOrders()
	menu, itemID := activeMenu()
	svc, _ := newTestService(orders, menu)
	userID := uuid.New()
	pickup := time.Now().Add(10 * time.Minute)

	cases := map[string]dto.CreateOrderRequest{
		"empty items":       {UserID: userID, Items: nil, PickupTime: pickup},
		"zero quantity":     {UserID: userID, Items: []dto.CreateOrderItem{{MenuItemID: itemID, Quantity: 0}}, PickupTime: pickup},
		"negative quantity": {UserID: userID, Items: []dto.CreateOrderItem{{MenuItemID: itemID, Quantity: -2}}, PickupTime: pickup},
		"no pickup time":    {UserID: userID, Items: []dto.CreateOrderItem{{MenuItemID: itemID, Quantity: 1}}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(authedCtx(userID), req)
			require.Error(t, err)
			assert.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))
		})
	}
	assert.Empty(t, orders.created)
}

func TestCreateBindsPrincipalToUserID(t *testing.T) {
	orders := newFakeOrders()
	menu, itemID := activeMenu()
	svc, _ := newTestService(orders, menu)

	req := dto.CreateOrderRequest{
		UserID:     uuid.New(),
		Items:      []dto.CreateOrderItem{{MenuItemID: itemID, Quantity: 1}},
		PickupTime: time.Now().Add(10 * time.Minute),
	}

	_, err := svc.Create(authedCtx(uuid.New()), req)
	assert.True(t, errorbank.IsKind(err, errorbank.KindForbidden))

	_, err = svc.Create(context.Background(), req)
	assert.True(t, errorbank.IsKind(err, errorbank.KindUnauthorized))
	assert.Empty(t, orders.created)
}

func TestCreateDropsLocationWhenNotSharing(t *testing.T) {
	orders := newFakeOrders()
	menu, itemID := activeMenu()
	svc, _ := newTestService(orders, menu)
	userID := uuid.New()

	_, err := svc.Create(authedCtx(userID), dto.CreateOrderRequest{
		UserID:          userID,
		Items:           []dto.CreateOrderItem{{MenuItemID: itemID, Quantity: 1}},
		PickupTime:      time.Now().Add(10 * time.Minute),
		ShareLocation:   false,
		CurrentLocation: &entity.GeoPoint{Lat: 51.5, Lng: -0.12},
	})
	require.NoError(t, err)
	assert.Nil(t, orders.created[0].CurrentLocation)
}

func seedOrder(orders *fakeOrders, st status.Status) entity.Order {
	order := entity.Order{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		Items:      []entity.OrderItem{{MenuItemID: uuid.New(), Quantity: 1, UnitPrice: 3}},
		Status:     st,
		PickupTime: time.Now().Add(20 * time.Minute),
		CreatedAt:  time.Now(),
	}
	orders.byID[order.ID] = order
	return order
}

func TestUpdateStatusHappyPath(t *testing.T) {
	orders := newFakeOrders()
	svc, broker := newTestService(orders, fakeMenu{})
	seeded := seedOrder(orders, status.Pending)

	sub := broker.Subscribe(feed.Filter{})
	defer sub.Unsubscribe()

	updated, err := svc.UpdateStatus(context.Background(), seeded.ID, status.Preparing, "")
	require.NoError(t, err)
	assert.Equal(t, status.Preparing, updated.Status)
	assert.Equal(t, [2]status.Status{status.Pending, status.Preparing}, orders.lastCAS)

	event := <-sub.Events()
	assert.Equal(t, feed.KindUpdate, event.Kind)
	assert.Equal(t, status.Preparing, event.Order.Status)
}

func TestUpdateStatusRejectsInvalidTransitionBeforeWrite(t *testing.T) {
	orders := newFakeOrders()
	svc, _ := newTestService(orders, fakeMenu{})
	seeded := seedOrder(orders, status.Ready)

	_, err := svc.UpdateStatus(context.Background(), seeded.ID, status.Pending, "")
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidTransition))
	assert.Zero(t, orders.casCalls, "no write attempted for an illegal move")
}

func TestUpdateStatusConflictOnLostCAS(t *testing.T) {
	orders := newFakeOrders()
	svc, _ := newTestService(orders, fakeMenu{})
	seeded := seedOrder(orders, status.Preparing)

	// Caller acts on a stale view that still believes the order is pending.
	_, err := svc.UpdateStatus(context.Background(), seeded.ID, status.Preparing, status.Pending)
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindConflict))
}

func TestUpdateStatusNotFound(t *testing.T) {
	svc, _ := newTestService(newFakeOrders(), fakeMenu{})
	_, err := svc.UpdateStatus(context.Background(), uuid.New(), status.Preparing, "")
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
}

func TestUpdateLocationGuards(t *testing.T) {
	orders := newFakeOrders()
	svc, _ := newTestService(orders, fakeMenu{})

	seeded := seedOrder(orders, status.Preparing)
	point := entity.GeoPoint{Lat: 48.85, Lng: 2.35}

	_, err := svc.UpdateLocation(authedCtx(uuid.New()), seeded.ID, point)
	assert.True(t, errorbank.IsKind(err, errorbank.KindForbidden))

	_, err = svc.UpdateLocation(authedCtx(seeded.UserID), seeded.ID, point)
	assert.True(t, errorbank.IsKind(err, errorbank.KindUnprocessableEntity), "sharing disabled")

	sharing := seeded
	sharing.ShareLocation = true
	orders.byID[sharing.ID] = sharing
	updated, err := svc.UpdateLocation(authedCtx(seeded.UserID), seeded.ID, point)
	require.NoError(t, err)
	require.NotNil(t, updated.CurrentLocation)
	assert.Equal(t, point, *updated.CurrentLocation)
}

func TestSnapshotAppliesFeedFilter(t *testing.T) {
	orders := newFakeOrders()
	svc, _ := newTestService(orders, fakeMenu{})

	mine := seedOrder(orders, status.Pending)
	seedOrder(orders, status.Pending)

	snapshot, err := svc.Snapshot(context.Background(), feed.ForUser(mine.UserID))
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	assert.Equal(t, mine.ID, snapshot[0].ID)
}

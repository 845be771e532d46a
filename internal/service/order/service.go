package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/brewline/brewline/internal/auth"
	"github.com/brewline/brewline/internal/cache"
	"github.com/brewline/brewline/internal/config"
	"github.com/brewline/brewline/internal/dto"
	"github.com/brewline/brewline/internal/entity"
	"github.com/brewline/brewline/internal/feed"
	"github.com/brewline/brewline/internal/messaging"
	orderrepo "github.com/brewline/brewline/internal/repository/order"
	"github.com/brewline/brewline/internal/status"
	"github.com/brewline/brewline/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/brewline/brewline/service/order")

// Repository is the order persistence surface the service depends on.
// *orderrepo.Repository satisfies it; tests substitute fakes.
type Repository interface {
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Order, error)
	List(ctx context.Context, filter orderrepo.ListFilter) ([]entity.Order, error)
	UpdateStatusCAS(ctx context.Context, id uuid.UUID, expected, target status.Status) error
	UpdateCurrentLocation(ctx context.Context, id uuid.UUID, point *entity.GeoPoint) error
}

// MenuCatalog supplies the freshly-read active-items set used to validate
// and price incoming orders.
type MenuCatalog interface {
	ActiveItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]entity.MenuItem, error)
}

// ChangeMessage is the wire form of a change event on the message bus.
type ChangeMessage struct {
	Type  feed.Kind    `json:"type"`
	Order entity.Order `json:"order"`
}

// Service owns order ingest validation and the status mutation path, and is
// the snapshot source for the change feed.
type Service struct {
	orders    Repository
	menu      MenuCatalog
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	broker    *feed.Broker
	messaging messagingConfig
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Orders    Repository
	Menu      MenuCatalog
	Cache     cache.Store
	Config    config.Config
	Logger    *zap.Logger
	Publisher messaging.Client
	Broker    *feed.Broker
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		orders:    p.Orders,
		menu:      p.Menu,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    p.Logger,
		publisher: p.Publisher,
		broker:    p.Broker,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
	}
}

// Create validates a new-order request against the authenticated principal
// and the current menu, then performs the insert. Only the id is returned;
// callers observe the created order through the change feed. A menu item
// deactivated between the validation read and the insert is an accepted
// race.
func (s *Service) Create(ctx context.Context, req dto.CreateOrderRequest) (uuid.UUID, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(attribute.Int("order.items", len(req.Items))))
	defer span.End()

	principal, ok := auth.FromContext(ctx)
	if !ok {
		return uuid.Nil, errorbank.Unauthorized("no authenticated principal")
	}
	if principal.UserID != req.UserID {
		return uuid.Nil, errorbank.Forbidden("user_id mismatch")
	}

	if len(req.Items) == 0 {
		return uuid.Nil, errorbank.BadRequest("order must contain at least one item")
	}
	if req.PickupTime.IsZero() {
		return uuid.Nil, errorbank.BadRequest("pickup_time is required")
	}

	ids := make([]uuid.UUID, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return uuid.Nil, errorbank.BadRequest("item quantity must be positive",
				errorbank.WithDetail("menu_item_id", item.MenuItemID.String()))
		}
		ids = append(ids, item.MenuItemID)
	}

	active, err := s.menu.ActiveItems(ctx, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "menu read failed")
		return uuid.Nil, errorbank.Internal("failed to validate menu items", errorbank.WithCause(err))
	}

	// Prices come from the catalog read, never from the untrusted payload.
	items := make([]entity.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		menuItem, ok := active[item.MenuItemID]
		if !ok {
			return uuid.Nil, errorbank.BadRequest("inactive or unknown menu item",
				errorbank.WithDetail("menu_item_id", item.MenuItemID.String()))
		}
		items = append(items, entity.OrderItem{
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
			UnitPrice:  menuItem.Price,
			Notes:      item.Notes,
		})
	}

	order := &entity.Order{
		ID:            uuid.New(),
		UserID:        req.UserID,
		Items:         items,
		Status:        status.Initial,
		PickupTime:    req.PickupTime,
		ShareLocation: req.ShareLocation,
		CreatedAt:     time.Now().UTC(),
	}
	if req.ShareLocation {
		order.CurrentLocation = req.CurrentLocation
	}

	if err := s.orders.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return uuid.Nil, errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}

	s.cacheOrder(ctx, order)
	s.publishChange(ctx, feed.KindInsert, order)
	return order.ID, nil
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	if order, err := s.getFromCache(ctx, id); err == nil {
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		if s.logger != nil {
			s.logger.Warn("orders cache read failed", zap.String("id", id.String()), zap.Error(err))
		}
	}

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	s.cacheOrder(ctx, order)
	return order, nil
}

// List returns orders matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter orderrepo.ListFilter) ([]entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List")
	defer span.End()

	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, nil
}

// Snapshot implements feed.Snapshotter: the initial fetch for a new feed
// subscription, ordered by created_at descending.
func (s *Service) Snapshot(ctx context.Context, filter feed.Filter) ([]entity.Order, error) {
	return s.orders.List(ctx, orderrepo.ListFilter{UserID: filter.UserID, OrderID: filter.OrderID})
}

// UpdateStatus moves an order along the lifecycle with a compare-and-swap
// write. Empty expected means "the status the server currently holds". Zero
// rows affected surfaces as a conflict; the transition is validated before
// any write.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, target, expected status.Status) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.UpdateStatus", trace.WithAttributes(
		attribute.String("order.id", id.String()),
		attribute.String("order.target_status", string(target)),
	))
	defer span.End()

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	if expected == "" {
		expected = order.Status
	}
	if err := status.Transition(expected, target); err != nil {
		return nil, err
	}

	if err := s.orders.UpdateStatusCAS(ctx, id, expected, target); err != nil {
		if errors.Is(err, orderrepo.ErrStatusConflict) {
			span.SetStatus(codes.Error, "compare-and-swap lost")
			return nil, errorbank.Conflict("order was transitioned concurrently",
				errorbank.WithDetail("expected_status", string(expected)))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to update order status", errorbank.WithCause(err))
	}

	order.Status = target
	s.cacheOrder(ctx, order)
	s.publishChange(ctx, feed.KindUpdate, order)
	return order, nil
}

// UpdateLocation refreshes the live customer location for an order the
// principal owns while location sharing is enabled.
func (s *Service) UpdateLocation(ctx context.Context, id uuid.UUID, point entity.GeoPoint) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.UpdateLocation", trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	principal, ok := auth.FromContext(ctx)
	if !ok {
		return nil, errorbank.Unauthorized("no authenticated principal")
	}

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	if order.UserID != principal.UserID {
		return nil, errorbank.Forbidden("order belongs to another user")
	}
	if !order.ShareLocation {
		return nil, errorbank.Unprocessable("location sharing is disabled for this order")
	}

	if err := s.orders.UpdateCurrentLocation(ctx, id, &point); err != nil {
		if errors.Is(err, orderrepo.ErrLocationDisabled) {
			return nil, errorbank.Unprocessable("location sharing is disabled for this order")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to update location", errorbank.WithCause(err))
	}

	order.CurrentLocation = &point
	s.cacheOrder(ctx, order)
	s.publishChange(ctx, feed.KindUpdate, order)
	return order, nil
}

// publishChange emits the event to local feed subscribers and to the message
// bus for other instances. Consumers dedup, so double delivery in a combined
// api+worker deployment is harmless.
func (s *Service) publishChange(ctx context.Context, kind feed.Kind, order *entity.Order) {
	s.broker.Publish(feed.Event{Kind: kind, Order: *order})

	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	payload, err := json.Marshal(ChangeMessage{Type: kind, Order: *order})
	if err != nil {
		if s.logger != nil {
			s.logger.Error("marshal change event", zap.Error(err))
		}
		return
	}
	if err := s.publisher.Publish(ctx, []byte(order.ID.String()), payload); err != nil {
		if s.logger != nil {
			s.logger.Error("publish change event", zap.Error(err),
				zap.String("kind", string(kind)), zap.String("id", order.ID.String()))
		}
	}
}

func (s *Service) cacheKey(id uuid.UUID) string {
	return fmt.Sprintf("orders:%s", id)
}

func (s *Service) getFromCache(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) cacheOrder(ctx context.Context, order *entity.Order) {
	if s.cache == nil || order == nil {
		return
	}
	bytes, err := json.Marshal(order)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(order.ID), bytes, s.cacheTTL); err != nil {
		if s.logger != nil {
			s.logger.Warn("orders cache write failed", zap.String("id", order.ID.String()), zap.Error(err))
		}
	}
}

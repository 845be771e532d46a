package order

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/brewline/brewline/internal/database"
	"github.com/brewline/brewline/internal/entity"
	"github.com/brewline/brewline/internal/status"
)

var repoTracer = otel.Tracer("github.com/brewline/brewline/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// ErrStatusConflict is returned when a conditional status update matched
// zero rows: the stored status no longer equals the expected one.
var ErrStatusConflict = errors.New("order status changed concurrently")

// ErrLocationDisabled is returned when a location update targets an order
// that is not sharing its location.
var ErrLocationDisabled = errors.New("location sharing is disabled for this order")

// ListFilter restricts order listings. Zero value lists everything.
type ListFilter struct {
	UserID  *uuid.UUID
	OrderID *uuid.UUID
}

// Repository encapsulates read/write access for orders.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create persists a new order using the write connection.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.id", order.ID.String())))
	defer span.End()

	_, err := r.writer.NewInsert().Model(order).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches an order by primary key using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// List returns orders matching the filter, newest first with id as the
// deterministic tiebreak.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.List")
	defer span.End()

	var orders []entity.Order
	q := r.reader.NewSelect().Model(&orders).
		OrderExpr("created_at DESC").
		OrderExpr("id ASC")
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.OrderID != nil {
		q = q.Where("id = ?", *filter.OrderID)
	}

	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// UpdateStatusCAS performs the conditional status write: the row changes
// only if its stored status still equals expected. Zero rows affected means
// a concurrent transition won the race.
func (r *Repository) UpdateStatusCAS(ctx context.Context, id uuid.UUID, expected, target status.Status) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateStatusCAS", trace.WithAttributes(
		attribute.String("order.id", id.String()),
		attribute.String("order.expected_status", string(expected)),
		attribute.String("order.target_status", string(target)),
	))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.Order)(nil)).
		Set("status = ?", target).
		Where("id = ?", id).
		Where("status = ?", expected).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		span.SetStatus(codes.Error, "compare-and-swap lost")
		return ErrStatusConflict
	}
	return nil
}

// UpdateCurrentLocation refreshes the live location for an order that has
// location sharing enabled.
func (r *Repository) UpdateCurrentLocation(ctx context.Context, id uuid.UUID, point *entity.GeoPoint) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateCurrentLocation", trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.Order)(nil)).
		Set("current_location = ?", point).
		Where("id = ?", id).
		Where("share_location = TRUE").
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrLocationDisabled
	}
	return nil
}

package menu

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/brewline/brewline/internal/database"
	"github.com/brewline/brewline/internal/entity"
)

var repoTracer = otel.Tracer("github.com/brewline/brewline/repository/menu")

// Repository provides read access to the menu catalog. The order core never
// writes it; catalog management is a separate collaborator.
type Repository struct {
	reader *bun.DB
	writer *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		reader: conns.Reader,
		writer: conns.Writer,
	}
}

// List returns catalog entries, optionally restricted to active ones,
// ordered by category then name.
func (r *Repository) List(ctx context.Context, activeOnly bool) ([]entity.MenuItem, error) {
	ctx, span := repoTracer.Start(ctx, "MenuRepository.List", trace.WithAttributes(attribute.Bool("menu.active_only", activeOnly)))
	defer span.End()

	var items []entity.MenuItem
	q := r.reader.NewSelect().Model(&items).
		OrderExpr("category ASC").
		OrderExpr("name ASC")
	if activeOnly {
		q = q.Where("is_active = TRUE")
	}
	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return items, nil
}

// ActiveItems returns the active catalog entries among ids, keyed by id.
// Callers use it both for set-membership validation and server-side price
// snapshots. The read is fresh on every call; no cache sits in front of it.
func (r *Repository) ActiveItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]entity.MenuItem, error) {
	ctx, span := repoTracer.Start(ctx, "MenuRepository.ActiveItems", trace.WithAttributes(attribute.Int("menu.requested", len(ids))))
	defer span.End()

	if len(ids) == 0 {
		return map[uuid.UUID]entity.MenuItem{}, nil
	}

	var items []entity.MenuItem
	err := r.reader.NewSelect().Model(&items).
		Where("id IN (?)", bun.In(ids)).
		Where("is_active = TRUE").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}

	active := make(map[uuid.UUID]entity.MenuItem, len(items))
	for _, item := range items {
		active[item.ID] = item
	}
	return active, nil
}

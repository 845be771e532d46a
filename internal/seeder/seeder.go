package seeder

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/brewline/brewline/internal/database"
	"github.com/brewline/brewline/internal/entity"
)

// Module provides the Seeder to the Fx graph.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

// MenuItems seeds a small catalog if it is missing. Fixed ids keep the seed
// idempotent across runs.
func (s *Seeder) MenuItems(ctx context.Context) error {
	now := time.Now().UTC()
	samples := []entity.MenuItem{
		{
			ID:        uuid.MustParse("7b0fcf0e-0000-4000-8000-000000000001"),
			Name:      "Espresso",
			Category:  "coffee",
			Price:     3.00,
			IsActive:  true,
			CreatedAt: now,
		},
		{
			ID:        uuid.MustParse("7b0fcf0e-0000-4000-8000-000000000002"),
			Name:      "Flat White",
			Category:  "coffee",
			Price:     4.50,
			IsActive:  true,
			CreatedAt: now,
		},
		{
			ID:        uuid.MustParse("7b0fcf0e-0000-4000-8000-000000000003"),
			Name:      "Cold Brew",
			Category:  "coffee",
			Price:     5.00,
			IsActive:  true,
			CreatedAt: now,
		},
		{
			ID:        uuid.MustParse("7b0fcf0e-0000-4000-8000-000000000004"),
			Name:      "Almond Croissant",
			Category:  "pastry",
			Price:     4.00,
			IsActive:  true,
			CreatedAt: now,
		},
		{
			ID:          uuid.MustParse("7b0fcf0e-0000-4000-8000-000000000005"),
			Name:        "Seasonal Special",
			Category:    "coffee",
			Description: "rotates, currently off menu",
			Price:       5.50,
			IsActive:    false,
			CreatedAt:   now,
		},
	}

	for _, sample := range samples {
		item := sample
		_, err := s.db.NewInsert().Model(&item).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded menu items", zap.Int("count", len(samples)))
	}
	return nil
}

package menu

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/brewline/brewline/internal/cache"
	"github.com/brewline/brewline/internal/config"
	"github.com/brewline/brewline/internal/entity"
	menurepo "github.com/brewline/brewline/internal/repository/menu"
	"github.com/brewline/brewline/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/brewline/brewline/service/menu")

const listCacheKey = "menu:active"

// Service serves the read-mostly menu catalog.
type Service struct {
	repo     *menurepo.Repository
	cache    cache.Store
	cacheTTL time.Duration
	logger   *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *menurepo.Repository
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
}

// NewService wires a new menu Service.
func NewService(p Params) *Service {
	return &Service{
		repo:     p.Repository,
		cache:    p.Cache,
		cacheTTL: p.Config.Cache.DefaultTTL,
		logger:   p.Logger,
	}
}

// List returns the active menu, cache-aside. The full (inactive included)
// catalog always reads through.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]entity.MenuItem, error) {
	ctx, span := serviceTracer.Start(ctx, "MenuService.List", trace.WithAttributes(attribute.Bool("menu.active_only", activeOnly)))
	defer span.End()

	if activeOnly && s.cache != nil {
		if bytes, err := s.cache.Get(ctx, listCacheKey); err == nil {
			var items []entity.MenuItem
			if err := json.Unmarshal(bytes, &items); err == nil {
				return items, nil
			}
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			if s.logger != nil {
				s.logger.Warn("menu cache read failed", zap.Error(err))
			}
		}
	}

	items, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load menu", errorbank.WithCause(err))
	}

	if activeOnly && s.cache != nil {
		if bytes, err := json.Marshal(items); err == nil {
			if err := s.cache.Set(ctx, listCacheKey, bytes, s.cacheTTL); err != nil && s.logger != nil {
				s.logger.Warn("menu cache write failed", zap.Error(err))
			}
		}
	}
	return items, nil
}

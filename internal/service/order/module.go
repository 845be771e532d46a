package order

import (
	"go.uber.org/fx"

	"github.com/brewline/brewline/internal/feed"
	menurepo "github.com/brewline/brewline/internal/repository/menu"
	orderrepo "github.com/brewline/brewline/internal/repository/order"
)

// Module provides the order service and its interface bindings to Fx.
var Module = fx.Options(
	fx.Provide(func(r *orderrepo.Repository) Repository { return r }),
	fx.Provide(func(r *menurepo.Repository) MenuCatalog { return r }),
	fx.Provide(NewService),
	fx.Provide(func(s *Service) feed.Snapshotter { return s }),
)

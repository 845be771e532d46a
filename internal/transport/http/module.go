package http

import (
	"go.uber.org/fx"

	menutransport "github.com/brewline/brewline/internal/transport/http/menu"
	ordertransport "github.com/brewline/brewline/internal/transport/http/order"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ordertransport.Module,
	menutransport.Module,
)

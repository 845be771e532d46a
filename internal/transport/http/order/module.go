package order

import (
	"go.uber.org/fx"

	"github.com/labstack/echo/v4"

	"github.com/brewline/brewline/internal/auth"
)

// Module wires HTTP order handlers, including the SSE feed bridge.
var Module = fx.Options(
	fx.Provide(NewStreamer),
	fx.Provide(NewHandler),
	fx.Invoke(func(e *echo.Echo, h *Handler, verifier *auth.Verifier) {
		Register(e, h, verifier)
	}),
)

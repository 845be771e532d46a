package auth

import (
	echo "github.com/labstack/echo/v4"

	"github.com/brewline/brewline/internal/presentation/http/response"
	"github.com/brewline/brewline/pkg/errorbank"
)

// Middleware authenticates requests with the verifier and binds the
// principal to the request context. Missing or invalid credentials short
// circuit with 401.
func Middleware(verifier *Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return response.New(c).WithError(errorbank.Unauthorized("missing bearer token")).Build()
			}

			principal, err := verifier.Verify(raw)
			if err != nil {
				return response.New(c).WithError(err).Build()
			}

			ctx := WithPrincipal(c.Request().Context(), principal)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

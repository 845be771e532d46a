package menu

import (
	"strconv"

	echo "github.com/labstack/echo/v4"

	"github.com/brewline/brewline/internal/dto"
	"github.com/brewline/brewline/internal/presentation/http/response"
	service "github.com/brewline/brewline/internal/service/menu"
)

// Handler exposes the menu catalog over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a menu Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance. The menu is public.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/menu", h.list)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	activeOnly := true
	if raw := c.QueryParam("include_inactive"); raw != "" {
		if include, err := strconv.ParseBool(raw); err == nil && include {
			activeOnly = false
		}
	}

	items, err := h.svc.List(c.Request().Context(), activeOnly)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.MenuItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, dto.NewMenuItemResponse(item))
	}
	return b.WithData(out).WithMeta("count", len(out)).Build()
}

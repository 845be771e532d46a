package order

import (
	"net/http"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/brewline/brewline/internal/auth"
	"github.com/brewline/brewline/internal/dto"
	"github.com/brewline/brewline/internal/presentation/http/response"
	orderrepo "github.com/brewline/brewline/internal/repository/order"
	service "github.com/brewline/brewline/internal/service/order"
	"github.com/brewline/brewline/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/brewline/brewline/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc      *service.Service
	streamer *Streamer
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service, streamer *Streamer) *Handler {
	return &Handler{svc: svc, streamer: streamer}
}

// Register routes with the provided Echo instance. All order routes require
// an authenticated principal.
func Register(e *echo.Echo, h *Handler, verifier *auth.Verifier) {
	g := e.Group("/orders", auth.Middleware(verifier))
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/stream", h.streamer.Stream)
	g.GET("/:id", h.getByID)
	g.POST("/:id/status", h.updateStatus)
	g.PATCH("/:id/location", h.updateLocation)
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload dto.CreateOrderRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create", trace.WithAttributes(
		attribute.Int("order.items", len(payload.Items)),
	))
	defer span.End()

	id, err := h.svc.Create(ctx, payload)
	if err != nil {
		return b.WithError(err).Build()
	}

	// Only the id is echoed back; clients observe the created order via
	// the change feed.
	return b.WithData(dto.CreateOrderResponse{ID: id}).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	principal, ok := auth.FromContext(c.Request().Context())
	if !ok {
		return b.WithError(errorbank.Unauthorized("no authenticated principal")).Build()
	}

	filter := orderrepo.ListFilter{}
	switch raw := c.QueryParam("user_id"); raw {
	case "":
		// Admin board view: all orders.
	default:
		userID, err := uuid.Parse(raw)
		if err != nil {
			return b.WithError(errorbank.BadRequest("invalid user_id", errorbank.WithCause(err))).Build()
		}
		filter.UserID = &userID
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list", trace.WithAttributes(
		attribute.String("principal.id", principal.UserID.String()),
	))
	defer span.End()

	orders, err := h.svc.List(ctx, filter)
	if err != nil {
		return b.WithError(err).Build()
	}

	scope := c.QueryParam("scope")
	out := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		order := orders[i]
		if scope == "active" && !order.Status.IsActive() {
			continue
		}
		if scope == "past" && !order.Status.IsPast() {
			continue
		}
		out = append(out, dto.NewOrderResponse(&order))
	}

	return b.WithData(out).WithMeta("count", len(out)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	order, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) updateStatus(c echo.Context) error {
	b := response.New(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	var payload dto.UpdateStatusRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.Status == "" {
		return b.WithError(errorbank.BadRequest("status is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.updateStatus", trace.WithAttributes(
		attribute.String("order.id", id.String()),
		attribute.String("order.target_status", string(payload.Status)),
	))
	defer span.End()

	order, err := h.svc.UpdateStatus(ctx, id, payload.Status, payload.ExpectedStatus)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) updateLocation(c echo.Context) error {
	b := response.New(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	var payload dto.UpdateLocationRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.updateLocation", trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	order, err := h.svc.UpdateLocation(ctx, id, payload.CurrentLocation)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusOK).WithData(dto.NewOrderResponse(order)).Build()
}

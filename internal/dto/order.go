package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/brewline/brewline/internal/entity"
	"github.com/brewline/brewline/internal/status"
)

// CreateOrderItem is one requested line of a new order. Prices are not
// accepted from the client; the server re-derives them from the menu.
type CreateOrderItem struct {
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Quantity   int       `json:"quantity"`
	Notes      string    `json:"notes,omitempty"`
}

// CreateOrderRequest is the POST /orders payload.
type CreateOrderRequest struct {
	UserID          uuid.UUID         `json:"user_id"`
	Items           []CreateOrderItem `json:"items"`
	PickupTime      time.Time         `json:"pickup_time"`
	ShareLocation   bool              `json:"share_location"`
	CurrentLocation *entity.GeoPoint  `json:"current_location,omitempty"`
}

// CreateOrderResponse echoes only the new order id; callers observe the full
// order via the change feed.
type CreateOrderResponse struct {
	ID uuid.UUID `json:"id"`
}

// UpdateStatusRequest moves an order along the lifecycle. ExpectedStatus is
// the compare-and-swap token: the update succeeds only if the stored status
// still matches it. Empty means "whatever the server currently holds".
type UpdateStatusRequest struct {
	Status         status.Status `json:"status"`
	ExpectedStatus status.Status `json:"expected_status,omitempty"`
}

// UpdateLocationRequest refreshes the live customer location.
type UpdateLocationRequest struct {
	CurrentLocation entity.GeoPoint `json:"current_location"`
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID              uuid.UUID          `json:"id"`
	UserID          uuid.UUID          `json:"user_id"`
	Items           []entity.OrderItem `json:"items"`
	Status          status.Status      `json:"status"`
	NextActions     []status.Status    `json:"next_actions"`
	Total           float64            `json:"total"`
	PickupTime      time.Time          `json:"pickup_time"`
	ShareLocation   bool               `json:"share_location"`
	CurrentLocation *entity.GeoPoint   `json:"current_location,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

// NewOrderResponse maps a stored order onto its transport shape, including
// the legal next actions for presentation.
func NewOrderResponse(order *entity.Order) OrderResponse {
	return OrderResponse{
		ID:              order.ID,
		UserID:          order.UserID,
		Items:           order.Items,
		Status:          order.Status,
		NextActions:     status.NextActions(order.Status),
		Total:           order.Total(),
		PickupTime:      order.PickupTime,
		ShareLocation:   order.ShareLocation,
		CurrentLocation: order.CurrentLocation,
		CreatedAt:       order.CreatedAt,
	}
}

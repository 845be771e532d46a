package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/brewline/brewline/internal/status"
)

// GeoPoint is a customer location shared while an order is active.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// OrderItem is one line of an order. Lines are immutable after placement;
// UnitPrice is snapshotted from the menu at creation time, never taken from
// the client payload.
type OrderItem struct {
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Quantity   int       `json:"quantity"`
	UnitPrice  float64   `json:"unit_price"`
	Notes      string    `json:"notes,omitempty"`
}

// Order represents one placed order stored in the relational database. Only
// Status and CurrentLocation mutate after insert; everything else is fixed
// forever at creation.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID              uuid.UUID     `bun:"id,pk,type:uuid" json:"id"`
	UserID          uuid.UUID     `bun:"user_id,type:uuid,notnull" json:"user_id"`
	Items           []OrderItem   `bun:"items,type:jsonb" json:"items"`
	Status          status.Status `bun:"status,notnull" json:"status"`
	PickupTime      time.Time     `bun:"pickup_time,notnull" json:"pickup_time"`
	ShareLocation   bool          `bun:"share_location,notnull,default:false" json:"share_location"`
	CurrentLocation *GeoPoint     `bun:"current_location,type:jsonb,nullzero" json:"current_location,omitempty"`
	CreatedAt       time.Time     `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
}

// Total sums the snapshotted line prices.
func (o *Order) Total() float64 {
	var total float64
	for _, item := range o.Items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	return total
}

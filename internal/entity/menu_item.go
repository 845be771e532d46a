package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MenuItem is a read-mostly catalog entry. The order core consumes it for
// validation and price snapshots but never mutates it.
type MenuItem struct {
	bun.BaseModel `bun:"table:menu_items"`

	ID          uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Name        string    `bun:"name,notnull" json:"name"`
	Category    string    `bun:"category,notnull" json:"category"`
	Description string    `bun:"description,nullzero" json:"description,omitempty"`
	Price       float64   `bun:"price,notnull" json:"price"`
	ImageURL    string    `bun:"image_url,nullzero" json:"image_url,omitempty"`
	IsActive    bool      `bun:"is_active,notnull,default:true" json:"is_active"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
}

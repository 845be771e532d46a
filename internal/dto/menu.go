package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/brewline/brewline/internal/entity"
)

// MenuItemResponse represents a catalog entry as served to clients.
type MenuItemResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	ImageURL    string    `json:"image_url,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewMenuItemResponse maps a stored menu item onto its transport shape.
func NewMenuItemResponse(item entity.MenuItem) MenuItemResponse {
	return MenuItemResponse{
		ID:          item.ID,
		Name:        item.Name,
		Category:    item.Category,
		Description: item.Description,
		Price:       item.Price,
		ImageURL:    item.ImageURL,
		IsActive:    item.IsActive,
		CreatedAt:   item.CreatedAt,
	}
}

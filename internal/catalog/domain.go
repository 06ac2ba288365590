package catalog

import (
	"errors"
	"time"
)

// Product is a sellable item tracked by the stock ledger.
type Product struct {
	ID        int64     `json:"id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location is a physical place stock is held at.
type Location struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ListFilters narrows product listings.
type ListFilters struct {
	Search string
	Page   int
	Limit  int
}

// ErrNotFound indicates a missing product or location.
var ErrNotFound = errors.New("catalog: not found")

// ErrDuplicateSKU indicates a SKU collision on create.
var ErrDuplicateSKU = errors.New("catalog: sku already exists")

// Package store provides data storage interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/vyrodovalexey/simple-api/internal/model"
)

// Store errors.
var (
	ErrNotFound  = errors.New("item not found")
	ErrInvalidID = errors.New("invalid item ID")
	ErrNilItem   = errors.New("item cannot be nil")
)

// Store defines the interface for item storage operations.
// All returned items are snapshots independent of the stored values.
type Store interface {
	// List returns all items keyed by their ID.
	List(ctx context.Context) (map[string]model.Item, error)

	// Get retrieves an item by its ID.
	Get(ctx context.Context, id string) (*model.Item, error)

	// Create stores a new item under a freshly generated ID and returns it.
	// Any ID on the input is ignored.
	Create(ctx context.Context, item *model.Item) (*model.Item, error)

	// Update replaces an existing item wholesale and returns the new value.
	Update(ctx context.Context, id string, item *model.Item) (*model.Item, error)

	// Delete removes an item by its ID and returns the removed value.
	Delete(ctx context.Context, id string) (*model.Item, error)
}

package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vyrodovalexey/simple-api/internal/model"
)

// MemoryStore implements Store interface with in-memory storage.
type MemoryStore struct {
	mu          sync.RWMutex
	items       map[string]model.Item
	newID       func() string
	itemsStored prometheus.Gauge
}

// Option customizes a MemoryStore.
type Option func(*MemoryStore)

// WithMetrics registers an items_stored gauge for this store with reg.
// Registration panics if reg already holds a gauge of that name.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *MemoryStore) {
		s.itemsStored = promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "items_stored",
			Help: "Number of items currently held in the memory store",
		})
	}
}

// NewMemoryStore creates a new MemoryStore instance.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		items: make(map[string]model.Item),
		newID: func() string { return uuid.New().String() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// List returns a snapshot of all items keyed by ID.
func (s *MemoryStore) List(ctx context.Context) (map[string]model.Item, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("list items: %w", ctx.Err())
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make(map[string]model.Item, len(s.items))
	for id, item := range s.items {
		items[id] = item.Clone()
	}

	return items, nil
}

// Get retrieves an item by its ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*model.Item, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("get item: %w", ctx.Err())
	default:
	}

	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.items[id]
	if !exists {
		return nil, ErrNotFound
	}

	snapshot := item.Clone()
	return &snapshot, nil
}

// Create adds a new item to the store and returns the created item with generated ID.
func (s *MemoryStore) Create(ctx context.Context, item *model.Item) (*model.Item, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("create item: %w", ctx.Err())
	default:
	}

	if item == nil {
		return nil, fmt.Errorf("create item: %w", ErrNilItem)
	}

	newItem := item.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	newItem.ID = s.newID()
	for {
		if _, taken := s.items[newItem.ID]; !taken {
			break
		}
		newItem.ID = s.newID()
	}

	s.items[newItem.ID] = newItem
	s.recordSize()

	created := newItem.Clone()
	return &created, nil
}

// Update replaces an existing item. Nothing from the previous value is kept
// except its ID.
func (s *MemoryStore) Update(ctx context.Context, id string, item *model.Item) (*model.Item, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("update item: %w", ctx.Err())
	default:
	}

	if id == "" {
		return nil, ErrInvalidID
	}

	if item == nil {
		return nil, fmt.Errorf("update item: %w", ErrNilItem)
	}

	updatedItem := item.Clone()
	updatedItem.ID = id

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; !exists {
		return nil, ErrNotFound
	}

	s.items[id] = updatedItem

	updated := updatedItem.Clone()
	return &updated, nil
}

// Delete removes an item from the store by its ID and returns it.
func (s *MemoryStore) Delete(ctx context.Context, id string) (*model.Item, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("delete item: %w", ctx.Err())
	default:
	}

	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[id]
	if !exists {
		return nil, ErrNotFound
	}

	delete(s.items, id)
	s.recordSize()

	return &item, nil
}

// Len returns the number of stored items.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.items)
}

// recordSize updates the gauge. Callers hold s.mu.
func (s *MemoryStore) recordSize() {
	if s.itemsStored != nil {
		s.itemsStored.Set(float64(len(s.items)))
	}
}

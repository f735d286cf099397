package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/storeforge/scanapi/internal/models"
)

// Store is the subset of RedisClient the typed caches need.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// EnrichmentCache stores normalized barcode enrichment.
// Only positive results are cached so a product added upstream later is
// picked up on the next lookup.
type EnrichmentCache struct {
	store Store
	ttl   time.Duration
}

// NewEnrichmentCache creates a new EnrichmentCache.
func NewEnrichmentCache(store Store, ttl time.Duration) *EnrichmentCache {
	return &EnrichmentCache{store: store, ttl: ttl}
}

func (c *EnrichmentCache) key(barcode string) string {
	return fmt.Sprintf("enrichment:barcode:%s", barcode)
}

// Get returns the cached enrichment, or nil on a miss.
func (c *EnrichmentCache) Get(ctx context.Context, barcode string) (*models.Enrichment, error) {
	raw, err := c.store.Get(ctx, c.key(barcode))
	if errors.Is(err, ErrMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var e models.Enrichment
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		// Corrupt entries are dropped and treated as a miss.
		_ = c.store.Delete(ctx, c.key(barcode))
		return nil, nil
	}
	return &e, nil
}

// Set caches the enrichment.
func (c *EnrichmentCache) Set(ctx context.Context, e *models.Enrichment) error {
	if e == nil {
		return nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal enrichment: %w", err)
	}
	return c.store.Set(ctx, c.key(e.Barcode), string(data), c.ttl)
}

package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/storeforge/scanapi/internal/models"
	"github.com/storeforge/scanapi/pkg/openfoodfacts"
	"github.com/storeforge/scanapi/pkg/upcitemdb"
)

// Enricher resolves third-party product metadata for a barcode. A nil result
// with a nil error means no provider knows the barcode.
type Enricher interface {
	Enrich(ctx context.Context, barcode string) (*models.Enrichment, error)
}

// FoodFactsClient is the Open Food Facts lookup used by EnrichmentService.
type FoodFactsClient interface {
	GetProduct(ctx context.Context, barcode string) (*openfoodfacts.Product, error)
}

// UPCClient is the UPCitemdb lookup used by EnrichmentService.
type UPCClient interface {
	Lookup(ctx context.Context, code string) (*upcitemdb.Item, error)
}

// EnrichmentService checks the cache, then each provider in order. The first
// hit is normalized, matched to a catalog category and cached.
type EnrichmentService struct {
	cache      EnrichmentCacheStore
	foodFacts  FoodFactsClient
	upc        UPCClient
	categories CategoryStore
}

// NewEnrichmentService creates a new EnrichmentService. Any collaborator may
// be nil to disable it.
func NewEnrichmentService(cache EnrichmentCacheStore, foodFacts FoodFactsClient, upc UPCClient, categories CategoryStore) *EnrichmentService {
	return &EnrichmentService{cache: cache, foodFacts: foodFacts, upc: upc, categories: categories}
}

// Enrich implements Enricher.
func (s *EnrichmentService) Enrich(ctx context.Context, barcode string) (*models.Enrichment, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, barcode)
		if err != nil {
			log.Warn().Err(err).Str("barcode", barcode).Msg("Enrichment cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	var failures []error

	if s.foodFacts != nil {
		p, err := s.foodFacts.GetProduct(ctx, barcode)
		switch {
		case err == nil:
			return s.finish(ctx, fromOpenFoodFacts(barcode, p)), nil
		case errors.Is(err, openfoodfacts.ErrNotFound):
		default:
			log.Warn().Err(err).Str("barcode", barcode).Msg("Open Food Facts lookup failed")
			failures = append(failures, err)
		}
	}

	if s.upc != nil {
		item, err := s.upc.Lookup(ctx, barcode)
		switch {
		case err == nil:
			return s.finish(ctx, fromUPCItemDB(barcode, item)), nil
		case errors.Is(err, upcitemdb.ErrNotFound):
		default:
			log.Warn().Err(err).Str("barcode", barcode).Msg("UPCitemdb lookup failed")
			failures = append(failures, err)
		}
	}

	if len(failures) > 0 {
		return nil, errors.Join(failures...)
	}
	log.Debug().Str("barcode", barcode).Msg("No enrichment found")
	return nil, nil
}

func (s *EnrichmentService) finish(ctx context.Context, e *models.Enrichment) *models.Enrichment {
	s.suggestCategory(ctx, e)
	if s.cache != nil {
		if err := s.cache.Set(ctx, e); err != nil {
			log.Warn().Err(err).Str("barcode", e.Barcode).Msg("Enrichment cache write failed")
		}
	}
	return e
}

// suggestCategory picks the deepest entry of the category path that exists
// in the catalog.
func (s *EnrichmentService) suggestCategory(ctx context.Context, e *models.Enrichment) {
	if s.categories == nil || len(e.CategoryPath) == 0 {
		return
	}
	slugs := make([]string, 0, len(e.CategoryPath))
	for _, label := range e.CategoryPath {
		if slug := slugify(label); slug != "" {
			slugs = append(slugs, slug)
		}
	}
	if len(slugs) == 0 {
		return
	}

	found, err := s.categories.FindBySlugs(ctx, slugs)
	if err != nil {
		log.Warn().Err(err).Str("barcode", e.Barcode).Msg("Category match failed")
		return
	}
	bySlug := make(map[string]string, len(found))
	for _, c := range found {
		bySlug[c.Slug] = c.ID
	}
	for i := len(slugs) - 1; i >= 0; i-- {
		if id, ok := bySlug[slugs[i]]; ok {
			e.SuggestedCategoryID = &id
			return
		}
	}
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeforge/scanapi/internal/models"
	"github.com/storeforge/scanapi/pkg/openfoodfacts"
	"github.com/storeforge/scanapi/pkg/upcitemdb"
)

type fakeFoodFacts struct {
	products map[string]*openfoodfacts.Product
	err      error
	calls    int
}

func (f *fakeFoodFacts) GetProduct(_ context.Context, barcode string) (*openfoodfacts.Product, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.products[barcode]; ok {
		return p, nil
	}
	return nil, openfoodfacts.ErrNotFound
}

type fakeUPC struct {
	items map[string]*upcitemdb.Item
	err   error
	calls int
}

func (f *fakeUPC) Lookup(_ context.Context, code string) (*upcitemdb.Item, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if it, ok := f.items[code]; ok {
		return it, nil
	}
	return nil, upcitemdb.ErrNotFound
}

type memEnrichmentCache struct {
	data map[string]*models.Enrichment
}

func (m *memEnrichmentCache) Get(_ context.Context, barcode string) (*models.Enrichment, error) {
	return m.data[barcode], nil
}

func (m *memEnrichmentCache) Set(_ context.Context, e *models.Enrichment) error {
	m.data[e.Barcode] = e
	return nil
}

func rawNutriments(t *testing.T, values map[string]interface{}) map[string]json.RawMessage {
	t.Helper()
	out := map[string]json.RawMessage{}
	for k, v := range values {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		out[k] = b
	}
	return out
}

func TestEnrich_OpenFoodFactsHitIsCached(t *testing.T) {
	cache := &memEnrichmentCache{data: map[string]*models.Enrichment{}}
	off := &fakeFoodFacts{products: map[string]*openfoodfacts.Product{
		"3017620422003": {
			ProductName:         "Nutella",
			Brands:              "Ferrero, Nutella",
			CategoriesHierarchy: []string{"en:spreads", "en:sweet-spreads", "en:hazelnut-spreads"},
			ImageURL:            "https://off.example.com/front.jpg",
		},
	}}
	upc := &fakeUPC{}
	cats := &memCategories{bySlug: map[string]string{"spreads": "c-spreads", "sweet-spreads": "c-sweet"}}
	svc := NewEnrichmentService(cache, off, upc, cats)

	e, err := svc.Enrich(context.Background(), "3017620422003")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, models.EnrichmentSourceOpenFoodFacts, e.Source)
	assert.Equal(t, "Nutella", e.Name)
	assert.Equal(t, "Ferrero", e.Brand)
	assert.Equal(t, []string{"Spreads", "Sweet spreads", "Hazelnut spreads"}, e.CategoryPath)
	require.NotNil(t, e.SuggestedCategoryID)
	assert.Equal(t, "c-sweet", *e.SuggestedCategoryID)
	assert.Zero(t, upc.calls)

	_, err = svc.Enrich(context.Background(), "3017620422003")
	require.NoError(t, err)
	assert.Equal(t, 1, off.calls)
	assert.Contains(t, cache.data, "3017620422003")
}

func TestEnrich_FallsBackToUPC(t *testing.T) {
	cache := &memEnrichmentCache{data: map[string]*models.Enrichment{}}
	off := &fakeFoodFacts{}
	upc := &fakeUPC{items: map[string]*upcitemdb.Item{
		"0885909950805": {
			Title:    "Apple iPhone 6",
			Brand:    "Apple",
			Category: "Electronics > Communications > Mobile Phones",
			Images:   []string{"https://img/a.jpg", "", "https://img/b.jpg"},
		},
	}}
	svc := NewEnrichmentService(cache, off, upc, nil)

	e, err := svc.Enrich(context.Background(), "0885909950805")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, models.EnrichmentSourceUPCItemDB, e.Source)
	assert.Equal(t, []string{"Electronics", "Communications", "Mobile Phones"}, e.CategoryPath)
	assert.Equal(t, "https://img/a.jpg", e.Images.Main)
	assert.Equal(t, []string{"https://img/b.jpg"}, e.Images.Extra)
	assert.Nil(t, e.SuggestedCategoryID)
}

func TestEnrich_NotFoundIsNotCached(t *testing.T) {
	cache := &memEnrichmentCache{data: map[string]*models.Enrichment{}}
	svc := NewEnrichmentService(cache, &fakeFoodFacts{}, &fakeUPC{}, nil)

	e, err := svc.Enrich(context.Background(), "000")
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.Empty(t, cache.data)
}

func TestEnrich_ProviderErrorsSurfaceWhenNothingFound(t *testing.T) {
	svc := NewEnrichmentService(nil, &fakeFoodFacts{err: errors.New("timeout")}, &fakeUPC{err: upcitemdb.ErrRateLimited}, nil)

	e, err := svc.Enrich(context.Background(), "000")
	assert.Nil(t, e)
	require.Error(t, err)
	assert.ErrorIs(t, err, upcitemdb.ErrRateLimited)
}

func TestEnrich_ProviderErrorThenHit(t *testing.T) {
	upc := &fakeUPC{items: map[string]*upcitemdb.Item{"1": {Title: "Thing"}}}
	svc := NewEnrichmentService(nil, &fakeFoodFacts{err: errors.New("502")}, upc, nil)

	e, err := svc.Enrich(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "Thing", e.Name)
}

func TestFromOpenFoodFacts_Nutrition(t *testing.T) {
	p := &openfoodfacts.Product{
		ProductName: "Crackers",
		Nutriments: rawNutriments(t, map[string]interface{}{
			"energy_100g":   "1674",
			"fat_100g":      12.5,
			"sugars":        "3,2",
			"salt_100g":     1.25,
			"proteins_100g": "n/a",
		}),
		NutriscoreGrade: "C",
		ServingSize:     "30 g",
	}
	e := fromOpenFoodFacts("1", p)
	require.NotNil(t, e.Nutrition)
	n := e.Nutrition
	require.NotNil(t, n.EnergyKcal)
	assert.InDelta(t, 400.1, *n.EnergyKcal, 0.01)
	assert.Equal(t, 12.5, *n.Fat)
	assert.Equal(t, 3.2, *n.Sugars)
	assert.Nil(t, n.Protein)
	assert.Equal(t, 1.25, *n.Salt)
	require.NotNil(t, n.Sodium)
	assert.Equal(t, 0.5, *n.Sodium)
	assert.Equal(t, "c", n.Grade)
	assert.Equal(t, "30 g", n.ServingSize)
}

func TestFromOpenFoodFacts_SectionsAndAllergens(t *testing.T) {
	p := &openfoodfacts.Product{
		ProductName:     "Milk chocolate",
		GenericName:     "Chocolate bar",
		EcoscoreGrade:   "unknown",
		PackagingTags:   []string{"en:plastic", "en:plastic", "fr:carton"},
		OriginsTags:     []string{"en:belgium"},
		IngredientsText: "sugar, cocoa butter, milk",
		Ingredients:     []openfoodfacts.Ingredient{{Text: "sugar"}, {Text: "Sugar"}, {Text: " milk "}},
		AllergensTags:   []string{"en:milk", "en:soybeans", "fr:milk"},
	}
	e := fromOpenFoodFacts("1", p)
	assert.Equal(t, "Chocolate bar", e.Description)
	assert.Nil(t, e.Nutrition)
	require.NotNil(t, e.Environmental)
	assert.Empty(t, e.Environmental.EcoScoreGrade)
	assert.Equal(t, []string{"carton", "plastic"}, e.Environmental.Packaging)
	assert.Equal(t, []string{"belgium"}, e.Environmental.Origins)
	require.NotNil(t, e.Ingredients)
	assert.Equal(t, []string{"sugar", "milk"}, e.Ingredients.Items)
	assert.Equal(t, []string{"milk", "soybeans"}, e.Allergens)
}

func TestFromOpenFoodFacts_EmptySectionsAreNil(t *testing.T) {
	e := fromOpenFoodFacts("1", &openfoodfacts.Product{GenericName: "Water"})
	assert.Equal(t, "Water", e.Name)
	assert.Empty(t, e.Description)
	assert.Nil(t, e.Nutrition)
	assert.Nil(t, e.Environmental)
	assert.Nil(t, e.Ingredients)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Mobile Phones":      "mobile-phones",
		"Sweet spreads":      "sweet-spreads",
		"  Food & Drink  ":   "food-drink",
		"Beverages > Juices": "beverages-juices",
		"":                   "",
	}
	for in, want := range cases {
		assert.Equal(t, want, slugify(in), in)
	}
}

package service

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/storeforge/scanapi/internal/models"
	"github.com/storeforge/scanapi/pkg/openfoodfacts"
	"github.com/storeforge/scanapi/pkg/upcitemdb"
)

const (
	kjPerKcal      = 4.184
	saltPerSodium  = 2.5
	unknownGrade   = "unknown"
	notApplicable  = "not-applicable"
	taxonomyPrefix = ":"
)

// fromOpenFoodFacts normalizes an Open Food Facts product.
func fromOpenFoodFacts(barcode string, p *openfoodfacts.Product) *models.Enrichment {
	e := &models.Enrichment{
		Barcode: barcode,
		Source:  models.EnrichmentSourceOpenFoodFacts,
		Name:    strings.TrimSpace(p.ProductName),
	}
	generic := strings.TrimSpace(p.GenericName)
	if e.Name == "" {
		e.Name = generic
	} else if generic != "" && !strings.EqualFold(generic, e.Name) {
		e.Description = generic
	}
	if brands := splitCSV(p.Brands); len(brands) > 0 {
		e.Brand = brands[0]
	}

	tags := p.CategoriesHierarchy
	if len(tags) == 0 {
		tags = p.CategoriesTags
	}
	for _, t := range tags {
		if label := tagLabel(t); label != "" {
			e.CategoryPath = append(e.CategoryPath, label)
		}
	}

	e.Images = models.EnrichedImages{
		Main:        firstNonEmpty(p.ImageURL, p.ImageFrontURL),
		Front:       p.ImageFrontURL,
		Ingredients: p.ImageIngredientsURL,
		Nutrition:   p.ImageNutritionURL,
		Packaging:   p.ImagePackagingURL,
	}

	e.Nutrition = offNutrition(p)
	e.Environmental = offEnvironmental(p)

	ing := &models.Ingredients{Text: strings.TrimSpace(p.IngredientsText)}
	seen := map[string]bool{}
	for _, i := range p.Ingredients {
		text := strings.TrimSpace(i.Text)
		key := strings.ToLower(text)
		if text == "" || seen[key] {
			continue
		}
		seen[key] = true
		ing.Items = append(ing.Items, text)
	}
	if !ing.IsEmpty() {
		e.Ingredients = ing
	}

	e.Allergens = normalizeTags(p.AllergensTags)
	return e
}

// fromUPCItemDB normalizes a UPCitemdb item.
func fromUPCItemDB(barcode string, item *upcitemdb.Item) *models.Enrichment {
	e := &models.Enrichment{
		Barcode:     barcode,
		Source:      models.EnrichmentSourceUPCItemDB,
		Name:        strings.TrimSpace(item.Title),
		Brand:       strings.TrimSpace(item.Brand),
		Description: strings.TrimSpace(item.Description),
	}
	for _, part := range strings.Split(item.Category, ">") {
		if part = strings.TrimSpace(part); part != "" {
			e.CategoryPath = append(e.CategoryPath, part)
		}
	}
	for i, img := range item.Images {
		img = strings.TrimSpace(img)
		if img == "" {
			continue
		}
		if e.Images.Main == "" && i == 0 {
			e.Images.Main = img
			continue
		}
		e.Images.Extra = append(e.Images.Extra, img)
	}
	if e.Images.Main == "" && len(e.Images.Extra) > 0 {
		e.Images.Main, e.Images.Extra = e.Images.Extra[0], e.Images.Extra[1:]
	}
	return e
}

func offNutrition(p *openfoodfacts.Product) *models.Nutrition {
	n := &models.Nutrition{
		Fat:          nutriment(p.Nutriments, "fat"),
		SaturatedFat: nutriment(p.Nutriments, "saturated-fat"),
		Carbohydrate: nutriment(p.Nutriments, "carbohydrates"),
		Sugars:       nutriment(p.Nutriments, "sugars"),
		Fiber:        nutriment(p.Nutriments, "fiber"),
		Protein:      nutriment(p.Nutriments, "proteins"),
		Salt:         nutriment(p.Nutriments, "salt"),
		Sodium:       nutriment(p.Nutriments, "sodium"),
		ServingSize:  strings.TrimSpace(p.ServingSize),
		Grade:        grade(firstNonEmpty(p.NutriscoreGrade, p.NutritionGrades)),
	}

	n.EnergyKcal = nutriment(p.Nutriments, "energy-kcal")
	if n.EnergyKcal == nil {
		if kj := nutriment(p.Nutriments, "energy-kj"); kj != nil {
			n.EnergyKcal = round2(*kj / kjPerKcal)
		} else if kj := nutriment(p.Nutriments, "energy"); kj != nil {
			// Bare "energy" is reported in kJ.
			n.EnergyKcal = round2(*kj / kjPerKcal)
		}
	}

	switch {
	case n.Sodium == nil && n.Salt != nil:
		n.Sodium = round2(*n.Salt / saltPerSodium)
	case n.Salt == nil && n.Sodium != nil:
		n.Salt = round2(*n.Sodium * saltPerSodium)
	}

	if n.IsEmpty() {
		return nil
	}
	return n
}

func offEnvironmental(p *openfoodfacts.Product) *models.Environmental {
	env := &models.Environmental{
		EcoScoreGrade:       grade(p.EcoscoreGrade),
		Packaging:           normalizeTags(p.PackagingTags),
		Origins:             normalizeTags(p.OriginsTags),
		ManufacturingPlaces: normalizeTags(p.ManufacturingPlacesTags),
		CarbonFootprint100g: nutriment(p.Nutriments, "carbon-footprint-from-known-ingredients"),
	}
	if env.IsEmpty() {
		return nil
	}
	return env
}

// nutriment reads key_100g, falling back to the bare key. Values may be JSON
// numbers or numeric strings with either decimal separator.
func nutriment(m map[string]json.RawMessage, key string) *float64 {
	for _, k := range []string{key + "_100g", key} {
		raw, ok := m[k]
		if !ok {
			continue
		}
		if v, ok := parseNumber(raw); ok {
			return &v
		}
	}
	return nil
}

func parseNumber(raw json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func round2(v float64) *float64 {
	r := math.Round(v*100) / 100
	return &r
}

func grade(g string) string {
	g = strings.ToLower(strings.TrimSpace(g))
	if g == unknownGrade || g == notApplicable {
		return ""
	}
	return g
}

// normalizeTags strips language prefixes ("en:milk" -> "milk"), lowercases,
// de-duplicates and sorts.
func normalizeTags(tags []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range tags {
		if i := strings.Index(t, taxonomyPrefix); i >= 0 {
			t = t[i+1:]
		}
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// tagLabel turns "en:breakfast-cereals" into "Breakfast cereals".
func tagLabel(tag string) string {
	if i := strings.Index(tag, taxonomyPrefix); i >= 0 {
		tag = tag[i+1:]
	}
	tag = strings.TrimSpace(strings.ReplaceAll(tag, "-", " "))
	if tag == "" {
		return ""
	}
	return strings.ToUpper(tag[:1]) + tag[1:]
}

// slugify lowercases and joins alphanumeric runs with "-".
func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

package service

import (
	"net/url"
	"strings"

	"github.com/storeforge/scanapi/internal/models"
)

// BuildGallery orders an enrichment's images for an inventory item: the main
// image, then front, ingredients, nutrition and packaging shots, then provider
// extras. Only absolute http(s) URLs are kept, duplicates are dropped and the
// result holds at most limit entries.
func BuildGallery(e *models.Enrichment, limit int) []string {
	if e == nil || limit <= 0 {
		return nil
	}
	candidates := []string{
		e.Images.Main,
		e.Images.Front,
		e.Images.Ingredients,
		e.Images.Nutrition,
		e.Images.Packaging,
	}
	candidates = append(candidates, e.Images.Extra...)

	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if !isHTTPURL(c) || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out
}

func isHTTPURL(s string) bool {
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// BuildItemMetadata copies the structured enrichment sections onto the item.
func BuildItemMetadata(e *models.Enrichment, sessionID string) models.ItemMetadata {
	md := models.ItemMetadata{ScanSessionID: sessionID}
	if e == nil {
		return md
	}
	if !e.Nutrition.IsEmpty() {
		md.Nutrition = e.Nutrition
	}
	if !e.Environmental.IsEmpty() {
		md.Environmental = e.Environmental
	}
	if !e.Ingredients.IsEmpty() {
		md.Ingredients = e.Ingredients
	}
	md.Allergens = e.Allergens
	md.CategoryPath = e.CategoryPath
	return md
}

// galleryPhotos turns gallery URLs into photo rows; positions are assigned on
// insert.
func galleryPhotos(urls []string, name string) []models.PhotoAsset {
	photos := make([]models.PhotoAsset, 0, len(urls))
	for _, u := range urls {
		photos = append(photos, models.PhotoAsset{
			URL:         u,
			Alt:         name,
			ContentType: contentTypeFromURL(u),
		})
	}
	return photos
}

func contentTypeFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	p := strings.ToLower(u.Path)
	switch {
	case strings.HasSuffix(p, ".jpg"), strings.HasSuffix(p, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(p, ".png"):
		return "image/png"
	case strings.HasSuffix(p, ".webp"):
		return "image/webp"
	case strings.HasSuffix(p, ".gif"):
		return "image/gif"
	}
	return ""
}

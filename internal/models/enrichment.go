package models

import (
	"database/sql/driver"
	"encoding/json"
)

// Enrichment sources.
const (
	EnrichmentSourceOpenFoodFacts = "open_food_facts"
	EnrichmentSourceUPCItemDB     = "upcitemdb"
)

// Enrichment is third-party product metadata for a barcode. It is normalized
// once when the barcode is looked up, so consumers never see provider shapes.
type Enrichment struct {
	Barcode             string         `json:"barcode"`
	Source              string         `json:"source"`
	Name                string         `json:"name,omitempty"`
	Brand               string         `json:"brand,omitempty"`
	Description         string         `json:"description,omitempty"`
	CategoryPath        []string       `json:"categoryPath,omitempty"`
	SuggestedCategoryID *string        `json:"suggestedCategoryId,omitempty"`
	Images              EnrichedImages `json:"images"`
	Nutrition           *Nutrition     `json:"nutrition,omitempty"`
	Environmental       *Environmental `json:"environmental,omitempty"`
	Ingredients         *Ingredients   `json:"ingredients,omitempty"`
	Allergens           []string       `json:"allergens,omitempty"`
}

// EnrichedImages groups provider images by role. Main is the hero image.
type EnrichedImages struct {
	Main        string   `json:"main,omitempty"`
	Front       string   `json:"front,omitempty"`
	Ingredients string   `json:"ingredients,omitempty"`
	Nutrition   string   `json:"nutrition,omitempty"`
	Packaging   string   `json:"packaging,omitempty"`
	Extra       []string `json:"extra,omitempty"`
}

// Nutrition holds per-100g values. Nil fields were not reported upstream.
type Nutrition struct {
	EnergyKcal   *float64 `json:"energyKcal,omitempty"`
	Fat          *float64 `json:"fat,omitempty"`
	SaturatedFat *float64 `json:"saturatedFat,omitempty"`
	Carbohydrate *float64 `json:"carbohydrate,omitempty"`
	Sugars       *float64 `json:"sugars,omitempty"`
	Fiber        *float64 `json:"fiber,omitempty"`
	Protein      *float64 `json:"protein,omitempty"`
	Salt         *float64 `json:"salt,omitempty"`
	Sodium       *float64 `json:"sodium,omitempty"`
	ServingSize  string   `json:"servingSize,omitempty"`
	Grade        string   `json:"grade,omitempty"`
}

// IsEmpty reports whether no nutrition field was populated.
func (n *Nutrition) IsEmpty() bool {
	return n == nil || (n.EnergyKcal == nil && n.Fat == nil && n.SaturatedFat == nil &&
		n.Carbohydrate == nil && n.Sugars == nil && n.Fiber == nil && n.Protein == nil &&
		n.Salt == nil && n.Sodium == nil && n.ServingSize == "" && n.Grade == "")
}

// Environmental holds sourcing and impact data.
type Environmental struct {
	EcoScoreGrade       string   `json:"ecoScoreGrade,omitempty"`
	Packaging           []string `json:"packaging,omitempty"`
	Origins             []string `json:"origins,omitempty"`
	ManufacturingPlaces []string `json:"manufacturingPlaces,omitempty"`
	CarbonFootprint100g *float64 `json:"carbonFootprint100g,omitempty"`
}

// IsEmpty reports whether no environmental field was populated.
func (e *Environmental) IsEmpty() bool {
	return e == nil || (e.EcoScoreGrade == "" && len(e.Packaging) == 0 && len(e.Origins) == 0 &&
		len(e.ManufacturingPlaces) == 0 && e.CarbonFootprint100g == nil)
}

// Ingredients holds the ingredient statement.
type Ingredients struct {
	Text  string   `json:"text,omitempty"`
	Items []string `json:"items,omitempty"`
}

// IsEmpty reports whether no ingredient data was populated.
func (i *Ingredients) IsEmpty() bool {
	return i == nil || (i.Text == "" && len(i.Items) == 0)
}

// Value implements driver.Valuer.
func (e Enrichment) Value() (driver.Value, error) {
	return json.Marshal(e)
}

// Scan implements sql.Scanner.
func (e *Enrichment) Scan(src interface{}) error {
	b, err := jsonBytes(src)
	if err != nil || b == nil {
		return err
	}
	return json.Unmarshal(b, e)
}

package openfoodfacts

import "encoding/json"

// ProductResponse is the envelope returned by /api/v2/product/{code}.json.
// Status is 1 when the product was found.
type ProductResponse struct {
	Code          string   `json:"code"`
	Status        int      `json:"status"`
	StatusVerbose string   `json:"status_verbose"`
	Product       *Product `json:"product"`
}

// Product holds the subset of Open Food Facts fields the catalog uses.
// Nutriments values arrive as numbers or numeric strings depending on the
// contributor, so they are kept raw.
type Product struct {
	Code                    string                     `json:"code"`
	ProductName             string                     `json:"product_name"`
	GenericName             string                     `json:"generic_name"`
	Brands                  string                     `json:"brands"`
	Quantity                string                     `json:"quantity"`
	CategoriesTags          []string                   `json:"categories_tags"`
	CategoriesHierarchy     []string                   `json:"categories_hierarchy"`
	ImageURL                string                     `json:"image_url"`
	ImageFrontURL           string                     `json:"image_front_url"`
	ImageIngredientsURL     string                     `json:"image_ingredients_url"`
	ImageNutritionURL       string                     `json:"image_nutrition_url"`
	ImagePackagingURL       string                     `json:"image_packaging_url"`
	Nutriments              map[string]json.RawMessage `json:"nutriments"`
	NutriscoreGrade         string                     `json:"nutriscore_grade"`
	NutritionGrades         string                     `json:"nutrition_grades"`
	ServingSize             string                     `json:"serving_size"`
	EcoscoreGrade           string                     `json:"ecoscore_grade"`
	PackagingTags           []string                   `json:"packaging_tags"`
	OriginsTags             []string                   `json:"origins_tags"`
	ManufacturingPlacesTags []string                   `json:"manufacturing_places_tags"`
	IngredientsText         string                     `json:"ingredients_text"`
	Ingredients             []Ingredient               `json:"ingredients"`
	AllergensTags           []string                   `json:"allergens_tags"`
	TracesTags              []string                   `json:"traces_tags"`
}

// Ingredient is one parsed ingredient entry.
type Ingredient struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

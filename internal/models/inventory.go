package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Inventory item statuses. Trashed items are soft-deleted and may be restored.
const (
	ItemStatusActive  = "active"
	ItemStatusTrashed = "trashed"
)

// Visibility values for catalog items.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// ItemMetadata is the structured metadata stored with an inventory item.
type ItemMetadata struct {
	Nutrition     *Nutrition     `json:"nutrition,omitempty"`
	Environmental *Environmental `json:"environmental,omitempty"`
	Ingredients   *Ingredients   `json:"ingredients,omitempty"`
	Allergens     []string       `json:"allergens,omitempty"`
	CategoryPath  []string       `json:"categoryPath,omitempty"`
	ScanSessionID string         `json:"scanSessionId,omitempty"`
}

// Value implements driver.Valuer.
func (m ItemMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *ItemMetadata) Scan(src interface{}) error {
	b, err := jsonBytes(src)
	if err != nil || b == nil {
		return err
	}
	return json.Unmarshal(b, m)
}

// InventoryItem is the canonical catalog record, identified by (TenantID, SKU).
type InventoryItem struct {
	ID          string          `db:"id" json:"id"`
	TenantID    string          `db:"tenant_id" json:"tenantId"`
	SKU         string          `db:"sku" json:"sku"`
	Barcode     string          `db:"barcode" json:"barcode"`
	Name        string          `db:"name" json:"name"`
	Brand       string          `db:"brand" json:"brand"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Currency    string          `db:"currency" json:"currency"`
	Visibility  string          `db:"visibility" json:"visibility"`
	CategoryID  *string         `db:"category_id" json:"categoryId,omitempty"`
	Status      string          `db:"status" json:"status"`
	ImageURL    *string         `db:"image_url" json:"imageUrl,omitempty"`
	Metadata    ItemMetadata    `db:"metadata" json:"metadata"`
	Source      string          `db:"source" json:"source"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`

	Photos []PhotoAsset `db:"-" json:"photos,omitempty"`
}

// PhotoAsset is an image owned by an inventory item. Positions are 0-based
// and contiguous per item.
type PhotoAsset struct {
	ID              string    `db:"id" json:"id"`
	TenantID        string    `db:"tenant_id" json:"tenantId"`
	InventoryItemID string    `db:"inventory_item_id" json:"inventoryItemId"`
	URL             string    `db:"url" json:"url"`
	Position        int       `db:"position" json:"position"`
	Alt             string    `db:"alt" json:"alt"`
	Caption         string    `db:"caption" json:"caption"`
	ContentType     string    `db:"content_type" json:"contentType"`
	ExifRemoved     bool      `db:"exif_removed" json:"exifRemoved"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}

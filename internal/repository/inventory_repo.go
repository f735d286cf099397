package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/storeforge/scanapi/internal/database"
	"github.com/storeforge/scanapi/internal/models"
)

// InventoryRepository handles inventory_items and photo_assets.
type InventoryRepository struct {
	db *sqlx.DB
}

// NewInventoryRepository creates a new InventoryRepository.
func NewInventoryRepository(db *sqlx.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

const itemColumns = `id, tenant_id, sku, barcode, name, brand, description, price, currency, visibility,
	category_id, status, image_url, metadata, source, created_at, updated_at`

const photoColumns = `id, tenant_id, inventory_item_id, url, position, alt, caption, content_type, exif_removed, created_at`

// FindLiveBySKU returns the non-trashed item with the SKU, or nil.
func (r *InventoryRepository) FindLiveBySKU(ctx context.Context, tenantID, sku string) (*models.InventoryItem, error) {
	return r.getOne(ctx, r.db, `SELECT `+itemColumns+` FROM inventory_items
		WHERE tenant_id = $1 AND sku = $2 AND status <> 'trashed' LIMIT 1`, tenantID, sku)
}

// GetByID returns a tenant's item, or nil.
func (r *InventoryRepository) GetByID(ctx context.Context, tenantID, id string) (*models.InventoryItem, error) {
	return r.getOne(ctx, r.db, `SELECT `+itemColumns+` FROM inventory_items WHERE id = $1 AND tenant_id = $2`, id, tenantID)
}

// List returns a tenant's items, newest first.
func (r *InventoryRepository) List(ctx context.Context, tenantID, status string, limit, offset int) ([]models.InventoryItem, int, error) {
	where := ` WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if status != "" {
		where += ` AND status = $2`
		args = append(args, status)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM inventory_items`+where, args...); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + itemColumns + ` FROM inventory_items` + where +
		` ORDER BY created_at DESC LIMIT ` + itoa(limit) + ` OFFSET ` + itoa(offset)
	var out []models.InventoryItem
	if err := r.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListPhotos returns an item's photos ordered by position.
func (r *InventoryRepository) ListPhotos(ctx context.Context, itemID string) ([]models.PhotoAsset, error) {
	var out []models.PhotoAsset
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+photoColumns+` FROM photo_assets WHERE inventory_item_id = $1 ORDER BY position`, itemID)
	return out, err
}

// SetStatus flips an item between active and trashed. Restoring fails with a
// unique violation when a live item already uses the SKU.
func (r *InventoryRepository) SetStatus(ctx context.Context, tenantID, id, status string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE inventory_items SET status = $3, updated_at = NOW() WHERE id = $1 AND tenant_id = $2`, id, tenantID, status)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// IsSKUConflict reports whether err is the live-SKU uniqueness violation.
func IsSKUConflict(err error) bool {
	return isUniqueViolation(err)
}

// MaterializeResult describes what Materialize did.
type MaterializeResult struct {
	ItemID   string
	Restored bool
	Photos   []models.PhotoAsset
}

// Materialize writes a committed scan into the catalog in one transaction:
// a trashed item with the same (tenant, sku) is restored and overwritten,
// otherwise a new item is inserted. The item's photos are replaced by the
// given URLs at positions 0..n-1 and image_url points at the first one.
func (r *InventoryRepository) Materialize(ctx context.Context, item *models.InventoryItem, photos []models.PhotoAsset) (*MaterializeResult, error) {
	out := &MaterializeResult{}
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		trashed, err := r.getOne(ctx, tx, `SELECT `+itemColumns+` FROM inventory_items
			WHERE tenant_id = $1 AND sku = $2 AND status = 'trashed'
			ORDER BY updated_at DESC LIMIT 1 FOR UPDATE`, item.TenantID, item.SKU)
		if err != nil {
			return err
		}

		if trashed != nil {
			item.ID = trashed.ID
			out.Restored = true
			const upd = `
				UPDATE inventory_items SET
					barcode = $2, name = $3, brand = $4, description = $5, price = $6, currency = $7,
					visibility = $8, category_id = $9, status = 'active', metadata = $10, source = $11,
					image_url = NULL, updated_at = NOW()
				WHERE id = $1
				RETURNING created_at, updated_at`
			if err := tx.QueryRowxContext(ctx, upd, item.ID, item.Barcode, item.Name, item.Brand, item.Description,
				item.Price, item.Currency, item.Visibility, item.CategoryID, item.Metadata, item.Source).
				Scan(&item.CreatedAt, &item.UpdatedAt); err != nil {
				return err
			}
		} else {
			if item.ID == "" {
				item.ID = uuid.New().String()
			}
			const ins = `
				INSERT INTO inventory_items (id, tenant_id, sku, barcode, name, brand, description, price, currency,
					visibility, category_id, status, metadata, source, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'active', $12, $13, NOW(), NOW())
				RETURNING created_at, updated_at`
			if err := tx.QueryRowxContext(ctx, ins, item.ID, item.TenantID, item.SKU, item.Barcode, item.Name,
				item.Brand, item.Description, item.Price, item.Currency, item.Visibility, item.CategoryID,
				item.Metadata, item.Source).Scan(&item.CreatedAt, &item.UpdatedAt); err != nil {
				return err
			}
		}
		item.Status = models.ItemStatusActive
		out.ItemID = item.ID

		if _, err := tx.ExecContext(ctx, `DELETE FROM photo_assets WHERE inventory_item_id = $1`, item.ID); err != nil {
			return err
		}

		const insPhoto = `
			INSERT INTO photo_assets (id, tenant_id, inventory_item_id, url, position, alt, caption, content_type, exif_removed, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
			RETURNING created_at`
		for i := range photos {
			p := photos[i]
			p.ID = uuid.New().String()
			p.TenantID = item.TenantID
			p.InventoryItemID = item.ID
			p.Position = i
			if err := tx.QueryRowxContext(ctx, insPhoto, p.ID, p.TenantID, p.InventoryItemID, p.URL, p.Position,
				p.Alt, p.Caption, p.ContentType, p.ExifRemoved).Scan(&p.CreatedAt); err != nil {
				return err
			}
			out.Photos = append(out.Photos, p)
		}

		if len(out.Photos) > 0 {
			url := out.Photos[0].URL
			if _, err := tx.ExecContext(ctx,
				`UPDATE inventory_items SET image_url = $2 WHERE id = $1`, item.ID, url); err != nil {
				return err
			}
			item.ImageURL = &url
		} else {
			item.ImageURL = nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *InventoryRepository) getOne(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := sqlx.GetContext(ctx, q, &item, query, args...); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

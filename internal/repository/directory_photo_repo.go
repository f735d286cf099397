package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/storeforge/scanapi/internal/database"
	"github.com/storeforge/scanapi/internal/models"
)

// swapSentinel is the transient position used while two photos trade places.
// It only exists inside a transaction.
const swapSentinel = -1

// DirectoryPhotoRepository handles directory_photos persistence.
type DirectoryPhotoRepository struct {
	db *sqlx.DB
}

// NewDirectoryPhotoRepository creates a new DirectoryPhotoRepository.
func NewDirectoryPhotoRepository(db *sqlx.DB) *DirectoryPhotoRepository {
	return &DirectoryPhotoRepository{db: db}
}

const directoryPhotoColumns = `id, listing_id, tenant_id, url, storage_key, position, alt, caption, content_type,
	width, height, exif_removed, created_at, updated_at`

// GetListing returns the listing or nil.
func (r *DirectoryPhotoRepository) GetListing(ctx context.Context, listingID string) (*models.DirectoryListing, error) {
	var l models.DirectoryListing
	if err := r.db.GetContext(ctx, &l, `SELECT id, tenant_id, name FROM directory_listings WHERE id = $1`, listingID); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

// ListByListing returns a listing's photos ordered by position.
func (r *DirectoryPhotoRepository) ListByListing(ctx context.Context, listingID string) ([]models.DirectoryPhoto, error) {
	var out []models.DirectoryPhoto
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+directoryPhotoColumns+` FROM directory_photos WHERE listing_id = $1 ORDER BY position, created_at`, listingID)
	return out, err
}

// CountByListing returns the number of photos on a listing.
func (r *DirectoryPhotoRepository) CountByListing(ctx context.Context, listingID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM directory_photos WHERE listing_id = $1`, listingID)
	return n, err
}

// GetByID returns the photo or nil.
func (r *DirectoryPhotoRepository) GetByID(ctx context.Context, id string) (*models.DirectoryPhoto, error) {
	var p models.DirectoryPhoto
	if err := r.db.GetContext(ctx, &p, `SELECT `+directoryPhotoColumns+` FROM directory_photos WHERE id = $1`, id); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Append inserts a photo after the current last one (position max+1, or 0)
// unless the listing already holds maxPhotos. A per-listing advisory lock
// serializes concurrent appends so the cap cannot be overshot.
func (r *DirectoryPhotoRepository) Append(ctx context.Context, p *models.DirectoryPhoto, maxPhotos int) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "directory_photos:"+p.ListingID); err != nil {
			return err
		}

		var count int
		if err := tx.GetContext(ctx, &count,
			`SELECT COUNT(*) FROM directory_photos WHERE listing_id = $1`, p.ListingID); err != nil {
			return err
		}
		if count >= maxPhotos {
			return ErrPhotoLimitReached
		}

		const q = `
			INSERT INTO directory_photos (id, listing_id, tenant_id, url, storage_key, position, alt, caption,
				content_type, width, height, exif_removed, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5,
				(SELECT COALESCE(MAX(position) + 1, 0) FROM directory_photos WHERE listing_id = $2),
				$6, $7, $8, $9, $10, $11, NOW(), NOW())
			RETURNING position, created_at, updated_at`
		return tx.QueryRowxContext(ctx, q, p.ID, p.ListingID, p.TenantID, p.URL, p.StorageKey, p.Alt, p.Caption,
			p.ContentType, p.Width, p.Height, p.ExifRemoved).Scan(&p.Position, &p.CreatedAt, &p.UpdatedAt)
	})
}

// UpdateText updates alt text and caption.
func (r *DirectoryPhotoRepository) UpdateText(ctx context.Context, id string, alt, caption *string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE directory_photos
		SET alt = COALESCE($2, alt), caption = COALESCE($3, caption), updated_at = NOW()
		WHERE id = $1`, id, alt, caption)
	return err
}

// MoveTo moves a photo to newPosition. If another photo holds that position
// the two trade places through the sentinel, all in one transaction.
func (r *DirectoryPhotoRepository) MoveTo(ctx context.Context, photo *models.DirectoryPhoto, newPosition int) error {
	if photo.Position == newPosition {
		return nil
	}
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var occupantID string
		err := tx.GetContext(ctx, &occupantID,
			`SELECT id FROM directory_photos WHERE listing_id = $1 AND position = $2 FOR UPDATE`, photo.ListingID, newPosition)
		if err != nil && !isNoRows(err) {
			return err
		}

		const move = `UPDATE directory_photos SET position = $2, updated_at = NOW() WHERE id = $1`
		if occupantID == "" {
			_, err := tx.ExecContext(ctx, move, photo.ID, newPosition)
			return err
		}

		if _, err := tx.ExecContext(ctx, move, occupantID, swapSentinel); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, move, photo.ID, newPosition); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, move, occupantID, photo.Position)
		return err
	})
}

// DeleteAndRepack removes a photo and renumbers the remaining photos of the
// listing to 0..n-1 keeping their relative order.
func (r *DirectoryPhotoRepository) DeleteAndRepack(ctx context.Context, photo *models.DirectoryPhoto) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM directory_photos WHERE id = $1`, photo.ID); err != nil {
			return err
		}
		return repack(ctx, tx, photo.ListingID)
	})
}

// Reorder applies all position updates atomically. Every photo must belong to
// the listing, appear at most once, and the resulting positions must be
// exactly 0..n-1.
func (r *DirectoryPhotoRepository) Reorder(ctx context.Context, listingID string, updates []models.PositionUpdate) error {
	ids := make([]string, 0, len(updates))
	listed := make(map[string]bool, len(updates))
	for _, u := range updates {
		if listed[u.ID] {
			return ErrPositionConflict
		}
		listed[u.ID] = true
		ids = append(ids, u.ID)
	}

	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var rows []struct {
			ID       string `db:"id"`
			Position int    `db:"position"`
		}
		if err := tx.SelectContext(ctx, &rows,
			`SELECT id, position FROM directory_photos WHERE listing_id = $1 FOR UPDATE`, listingID); err != nil {
			return err
		}

		final := make(map[string]int, len(rows))
		for _, row := range rows {
			final[row.ID] = row.Position
		}
		for _, u := range updates {
			if _, ok := final[u.ID]; !ok {
				return ErrPhotoNotInListing
			}
			final[u.ID] = u.Position
		}
		seen := make(map[int]bool, len(final))
		for _, pos := range final {
			if pos < 0 || pos >= len(final) || seen[pos] {
				return ErrPositionConflict
			}
			seen[pos] = true
		}

		// Park the moving photos on distinct negative positions first so the
		// (listing_id, position) unique key holds after every statement.
		if _, err := tx.ExecContext(ctx, `
			UPDATE directory_photos SET position = -1 - position
			WHERE listing_id = $1 AND id = ANY($2)`, listingID, pq.Array(ids)); err != nil {
			return err
		}
		for _, u := range updates {
			if _, err := tx.ExecContext(ctx,
				`UPDATE directory_photos SET position = $2, updated_at = NOW() WHERE id = $1`, u.ID, u.Position); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListingsWithNegativePositions finds listings left with sentinel positions.
func (r *DirectoryPhotoRepository) ListingsWithNegativePositions(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `SELECT DISTINCT listing_id FROM directory_photos WHERE position < 0`)
	return ids, err
}

// Repack renumbers a listing's photos to 0..n-1. Photos on negative positions
// are placed after the others.
func (r *DirectoryPhotoRepository) Repack(ctx context.Context, listingID string) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return repack(ctx, tx, listingID)
	})
}

func repack(ctx context.Context, tx *sqlx.Tx, listingID string) error {
	var rows []struct {
		ID       string `db:"id"`
		Position int    `db:"position"`
	}
	if err := tx.SelectContext(ctx, &rows, `
		SELECT id, position FROM directory_photos WHERE listing_id = $1
		ORDER BY (position < 0), position, created_at FOR UPDATE`, listingID); err != nil {
		return err
	}

	// Walking in ascending order each target slot is already free. Negative
	// rows sort last and land after the others.
	for i, row := range rows {
		if row.Position == i {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE directory_photos SET position = $2, updated_at = NOW() WHERE id = $1`, row.ID, i); err != nil {
			return err
		}
	}
	return nil
}

package repository

import (
	"context"
	"strconv"

	"github.com/jmoiron/sqlx"

	"github.com/storeforge/scanapi/internal/database"
	"github.com/storeforge/scanapi/internal/models"
)

// ScanResultRepository handles scan_results persistence.
type ScanResultRepository struct {
	db *sqlx.DB
}

// NewScanResultRepository creates a new ScanResultRepository.
func NewScanResultRepository(db *sqlx.DB) *ScanResultRepository {
	return &ScanResultRepository{db: db}
}

const resultColumns = `id, session_id, tenant_id, barcode, sku, status, enrichment, duplicate_of, raw_payload, created_at`

// ExistsInSession reports whether the barcode was already recorded in the session.
func (r *ScanResultRepository) ExistsInSession(ctx context.Context, sessionID, barcode string) (bool, error) {
	var ok bool
	err := r.db.GetContext(ctx, &ok,
		`SELECT EXISTS (SELECT 1 FROM scan_results WHERE session_id = $1 AND barcode = $2)`, sessionID, barcode)
	return ok, err
}

// Record inserts a result and bumps the session counters in one transaction.
// The session must still be active. The (session_id, barcode) unique key
// turns a concurrent duplicate into ErrDuplicateBarcode.
func (r *ScanResultRepository) Record(ctx context.Context, res *models.ScanResult) (*models.ScanSessionCounts, error) {
	counts := &models.ScanSessionCounts{}
	dup := 0
	if res.Status == models.ScanResultDuplicate {
		dup = 1
	}

	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const bump = `
			UPDATE scan_sessions
			SET scanned_count = scanned_count + 1, duplicate_count = duplicate_count + $2, updated_at = NOW()
			WHERE id = $1 AND status = 'active'
			RETURNING scanned_count, duplicate_count`
		if err := tx.QueryRowxContext(ctx, bump, res.SessionID, dup).Scan(&counts.ScannedCount, &counts.DuplicateCount); err != nil {
			if isNoRows(err) {
				return ErrSessionNotActive
			}
			return err
		}

		var enrichment interface{}
		if res.Enrichment != nil {
			enrichment = *res.Enrichment
		}
		const ins = `
			INSERT INTO scan_results (id, session_id, tenant_id, barcode, sku, status, enrichment, duplicate_of, raw_payload, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
			RETURNING created_at`
		err := tx.QueryRowxContext(ctx, ins, res.ID, res.SessionID, res.TenantID, res.Barcode, res.SKU,
			res.Status, enrichment, res.DuplicateOf, res.RawPayload).Scan(&res.CreatedAt)
		if isUniqueViolation(err) {
			return ErrDuplicateBarcode
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// ListBySession returns all results of a session in scan order.
func (r *ScanResultRepository) ListBySession(ctx context.Context, sessionID string) ([]models.ScanResult, error) {
	var out []models.ScanResult
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+resultColumns+` FROM scan_results WHERE session_id = $1 ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a result from an active session and rolls back its counters.
// It returns false when the result does not exist in the session.
func (r *ScanResultRepository) Delete(ctx context.Context, sessionID, resultID string) (bool, error) {
	found := false
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var status models.ScanResultStatus
		err := tx.GetContext(ctx, &status,
			`DELETE FROM scan_results WHERE id = $1 AND session_id = $2 RETURNING status`, resultID, sessionID)
		if isNoRows(err) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true

		dup := 0
		if status == models.ScanResultDuplicate {
			dup = 1
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE scan_sessions
			SET scanned_count = GREATEST(scanned_count - 1, 0),
			    duplicate_count = GREATEST(duplicate_count - $2, 0),
			    updated_at = NOW()
			WHERE id = $1 AND status = 'active'`, sessionID, dup)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrSessionNotActive
		}
		return nil
	})
	return found, err
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

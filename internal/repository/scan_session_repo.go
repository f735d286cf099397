package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/storeforge/scanapi/internal/database"
	"github.com/storeforge/scanapi/internal/models"
)

// ScanSessionRepository handles scan_sessions persistence.
type ScanSessionRepository struct {
	db *sqlx.DB
}

// NewScanSessionRepository creates a new ScanSessionRepository.
func NewScanSessionRepository(db *sqlx.DB) *ScanSessionRepository {
	return &ScanSessionRepository{db: db}
}

const sessionColumns = `id, tenant_id, user_id, template_id, device_type, status, scanned_count,
	duplicate_count, committed_count, metadata, started_at, completed_at, updated_at`

// CreateWithinLimit inserts an active session unless the tenant already has
// maxActive active sessions. A per-tenant advisory lock serializes concurrent
// starts so the cap cannot be overshot.
func (r *ScanSessionRepository) CreateWithinLimit(ctx context.Context, s *models.ScanSession, maxActive int) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "scan_sessions:"+s.TenantID); err != nil {
			return err
		}

		var active int
		if err := tx.GetContext(ctx, &active,
			`SELECT COUNT(*) FROM scan_sessions WHERE tenant_id = $1 AND status = 'active'`, s.TenantID); err != nil {
			return err
		}
		if active >= maxActive {
			return ErrSessionLimitReached
		}

		const q = `
			INSERT INTO scan_sessions (id, tenant_id, user_id, template_id, device_type, status, metadata, started_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, 'active', $6, NOW(), NOW())
			RETURNING status, scanned_count, duplicate_count, committed_count, started_at, updated_at`
		return tx.QueryRowxContext(ctx, q, s.ID, s.TenantID, s.UserID, s.TemplateID, s.DeviceType, s.Metadata).
			Scan(&s.Status, &s.ScannedCount, &s.DuplicateCount, &s.CommittedCount, &s.StartedAt, &s.UpdatedAt)
	})
}

// GetByID returns the session, or nil when absent.
func (r *ScanSessionRepository) GetByID(ctx context.Context, id string) (*models.ScanSession, error) {
	var s models.ScanSession
	if err := r.db.GetContext(ctx, &s, `SELECT `+sessionColumns+` FROM scan_sessions WHERE id = $1`, id); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ListByTenant returns the newest sessions for a tenant, optionally filtered by status.
func (r *ScanSessionRepository) ListByTenant(ctx context.Context, tenantID string, status string, limit int) ([]models.ScanSession, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := `SELECT ` + sessionColumns + ` FROM scan_sessions WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if status != "" {
		q += ` AND status = $2`
		args = append(args, status)
	}
	q += ` ORDER BY started_at DESC LIMIT ` + itoa(limit)

	var out []models.ScanSession
	if err := r.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// Finish moves an active session to a terminal status. It returns false when
// the session was not active.
func (r *ScanSessionRepository) Finish(ctx context.Context, id string, status models.ScanSessionStatus, committed int) (bool, error) {
	const q = `
		UPDATE scan_sessions
		SET status = $2, committed_count = committed_count + $3, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'active'`
	res, err := r.db.ExecContext(ctx, q, id, status, committed)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CancelIdle cancels active sessions started before cutoff that have no scan
// result created at or after cutoff. It returns the cancelled session ids.
func (r *ScanSessionRepository) CancelIdle(ctx context.Context, cutoff time.Time) ([]string, error) {
	const q = `
		UPDATE scan_sessions s
		SET status = 'cancelled', completed_at = NOW(), updated_at = NOW(),
		    metadata = s.metadata || '{"cancelReason":"idle"}'::jsonb
		WHERE s.status = 'active'
		  AND s.started_at < $1
		  AND NOT EXISTS (
		      SELECT 1 FROM scan_results r
		      WHERE r.session_id = s.id AND r.created_at >= $1
		  )
		RETURNING s.id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, q, cutoff); err != nil {
		return nil, err
	}
	return ids, nil
}

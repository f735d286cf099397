package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/storeforge/scanapi/internal/models"
)

// ScanTemplateRepository reads scan templates.
type ScanTemplateRepository struct {
	db *sqlx.DB
}

// NewScanTemplateRepository creates a new ScanTemplateRepository.
func NewScanTemplateRepository(db *sqlx.DB) *ScanTemplateRepository {
	return &ScanTemplateRepository{db: db}
}

// GetByID returns the tenant's template, or nil when absent.
func (r *ScanTemplateRepository) GetByID(ctx context.Context, tenantID, id string) (*models.ScanTemplate, error) {
	const q = `
		SELECT id, tenant_id, name, default_price, currency, visibility, default_category_id, created_at
		FROM scan_templates WHERE id = $1 AND tenant_id = $2`
	var t models.ScanTemplate
	if err := r.db.GetContext(ctx, &t, q, id, tenantID); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

package service

import (
	"context"
	"time"

	"github.com/storeforge/scanapi/internal/models"
	"github.com/storeforge/scanapi/internal/repository"
)

// The interfaces below are the slices of the repositories each service uses.
// The sqlx repositories satisfy them; tests substitute in-memory fakes.

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	TouchLastLogin(ctx context.Context, id string) error
}

type TenantStore interface {
	GetByID(ctx context.Context, id string) (*models.Tenant, error)
	GetAssignment(ctx context.Context, userID, tenantID string) (*models.UserTenant, error)
}

type CategoryStore interface {
	FindBySlugs(ctx context.Context, slugs []string) ([]repository.Category, error)
	Exists(ctx context.Context, id string) (bool, error)
}

type TemplateStore interface {
	GetByID(ctx context.Context, tenantID, id string) (*models.ScanTemplate, error)
}

type SessionStore interface {
	CreateWithinLimit(ctx context.Context, s *models.ScanSession, maxActive int) error
	GetByID(ctx context.Context, id string) (*models.ScanSession, error)
	ListByTenant(ctx context.Context, tenantID, status string, limit int) ([]models.ScanSession, error)
	Finish(ctx context.Context, id string, status models.ScanSessionStatus, committed int) (bool, error)
	CancelIdle(ctx context.Context, cutoff time.Time) ([]string, error)
}

type ResultStore interface {
	ExistsInSession(ctx context.Context, sessionID, barcode string) (bool, error)
	Record(ctx context.Context, res *models.ScanResult) (*models.ScanSessionCounts, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.ScanResult, error)
	Delete(ctx context.Context, sessionID, resultID string) (bool, error)
}

type InventoryStore interface {
	FindLiveBySKU(ctx context.Context, tenantID, sku string) (*models.InventoryItem, error)
	GetByID(ctx context.Context, tenantID, id string) (*models.InventoryItem, error)
	List(ctx context.Context, tenantID, status string, limit, offset int) ([]models.InventoryItem, int, error)
	ListPhotos(ctx context.Context, itemID string) ([]models.PhotoAsset, error)
	SetStatus(ctx context.Context, tenantID, id, status string) (bool, error)
	Materialize(ctx context.Context, item *models.InventoryItem, photos []models.PhotoAsset) (*repository.MaterializeResult, error)
}

type DirectoryPhotoStore interface {
	GetListing(ctx context.Context, listingID string) (*models.DirectoryListing, error)
	ListByListing(ctx context.Context, listingID string) ([]models.DirectoryPhoto, error)
	CountByListing(ctx context.Context, listingID string) (int, error)
	GetByID(ctx context.Context, id string) (*models.DirectoryPhoto, error)
	Append(ctx context.Context, p *models.DirectoryPhoto, maxPhotos int) error
	UpdateText(ctx context.Context, id string, alt, caption *string) error
	MoveTo(ctx context.Context, photo *models.DirectoryPhoto, newPosition int) error
	DeleteAndRepack(ctx context.Context, photo *models.DirectoryPhoto) error
	Reorder(ctx context.Context, listingID string, updates []models.PositionUpdate) error
	ListingsWithNegativePositions(ctx context.Context) ([]string, error)
	Repack(ctx context.Context, listingID string) error
}

// EnrichmentCacheStore caches normalized enrichment by barcode.
type EnrichmentCacheStore interface {
	Get(ctx context.Context, barcode string) (*models.Enrichment, error)
	Set(ctx context.Context, e *models.Enrichment) error
}

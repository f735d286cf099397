package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/storeforge/scanapi/internal/models"
	"github.com/storeforge/scanapi/internal/repository"
	"github.com/storeforge/scanapi/internal/utils"
)

// InventoryService exposes the tenant catalog.
type InventoryService struct {
	access    *TenantAccessService
	inventory InventoryStore
}

// NewInventoryService creates a new InventoryService.
func NewInventoryService(access *TenantAccessService, inventory InventoryStore) *InventoryService {
	return &InventoryService{access: access, inventory: inventory}
}

// List returns a page of a tenant's items and the total count.
func (s *InventoryService) List(ctx context.Context, actor Actor, tenantID, status string, page, limit int) ([]models.InventoryItem, int, error) {
	if _, err := s.access.Authorize(ctx, actor, tenantID, false); err != nil {
		return nil, 0, err
	}
	switch status {
	case "", models.ItemStatusActive, models.ItemStatusTrashed:
	default:
		return nil, 0, utils.ValidationError("status must be active or trashed")
	}
	page, limit = utils.NormalizePage(page, limit)

	items, total, err := s.inventory.List(ctx, tenantID, status, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []models.InventoryItem{}
	}
	return items, total, nil
}

// Get returns an item with its photos.
func (s *InventoryService) Get(ctx context.Context, actor Actor, tenantID, itemID string) (*models.InventoryItem, error) {
	if _, err := s.access.Authorize(ctx, actor, tenantID, false); err != nil {
		return nil, err
	}
	item, err := s.find(ctx, tenantID, itemID)
	if err != nil {
		return nil, err
	}
	photos, err := s.inventory.ListPhotos(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	item.Photos = photos
	return item, nil
}

// Trash soft-deletes an item.
func (s *InventoryService) Trash(ctx context.Context, actor Actor, tenantID, itemID string) error {
	if _, err := s.access.AuthorizeWrite(ctx, actor, tenantID); err != nil {
		return err
	}
	if _, err := s.find(ctx, tenantID, itemID); err != nil {
		return err
	}
	if _, err := s.inventory.SetStatus(ctx, tenantID, itemID, models.ItemStatusTrashed); err != nil {
		return err
	}
	log.Info().Str("tenant_id", tenantID).Str("item_id", itemID).Msg("Inventory item trashed")
	return nil
}

// Restore brings a trashed item back unless its SKU is live again.
func (s *InventoryService) Restore(ctx context.Context, actor Actor, tenantID, itemID string) (*models.InventoryItem, error) {
	if _, err := s.access.AuthorizeWrite(ctx, actor, tenantID); err != nil {
		return nil, err
	}
	item, err := s.find(ctx, tenantID, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status != models.ItemStatusTrashed {
		return item, nil
	}
	if _, err := s.inventory.SetStatus(ctx, tenantID, itemID, models.ItemStatusActive); err != nil {
		if repository.IsSKUConflict(err) {
			return nil, utils.Conflict(utils.CodeConflict, "An active item already uses this SKU")
		}
		return nil, err
	}
	item.Status = models.ItemStatusActive
	log.Info().Str("tenant_id", tenantID).Str("item_id", itemID).Msg("Inventory item restored")
	return item, nil
}

func (s *InventoryService) find(ctx context.Context, tenantID, itemID string) (*models.InventoryItem, error) {
	item, err := s.inventory.GetByID(ctx, tenantID, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, utils.NotFound(utils.CodeItemNotFound, "Inventory item not found")
	}
	return item, nil
}

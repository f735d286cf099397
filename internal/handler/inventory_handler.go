package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/storeforge/scanapi/internal/models"
	"github.com/storeforge/scanapi/internal/service"
	"github.com/storeforge/scanapi/internal/utils"
)

// InventoryAPI is the catalog surface used by InventoryHandler.
type InventoryAPI interface {
	List(ctx context.Context, actor service.Actor, tenantID, status string, page, limit int) ([]models.InventoryItem, int, error)
	Get(ctx context.Context, actor service.Actor, tenantID, itemID string) (*models.InventoryItem, error)
	Trash(ctx context.Context, actor service.Actor, tenantID, itemID string) error
	Restore(ctx context.Context, actor service.Actor, tenantID, itemID string) (*models.InventoryItem, error)
}

// InventoryHandler handles inventory catalog endpoints. Every route is
// scoped by the tenantId query parameter.
type InventoryHandler struct {
	inventoryService InventoryAPI
}

// NewInventoryHandler constructs an InventoryHandler.
func NewInventoryHandler(inventoryService InventoryAPI) *InventoryHandler {
	return &InventoryHandler{inventoryService: inventoryService}
}

// List handles GET /api/inventory?tenantId=&status=&page=&limit=
func (h *InventoryHandler) List(c *gin.Context) {
	tenantID, ok := requireTenantID(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	page, limit = utils.NormalizePage(page, limit)

	items, total, err := h.inventoryService.List(c.Request.Context(), actorFrom(c), tenantID, c.Query("status"), page, limit)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessWithPagination(c, http.StatusOK, "Inventory retrieved", items, page, limit, total)
}

// Get handles GET /api/inventory/:id
func (h *InventoryHandler) Get(c *gin.Context) {
	tenantID, ok := requireTenantID(c)
	if !ok {
		return
	}

	item, err := h.inventoryService.Get(c.Request.Context(), actorFrom(c), tenantID, c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, http.StatusOK, "Inventory item retrieved", item)
}

// Trash handles DELETE /api/inventory/:id
func (h *InventoryHandler) Trash(c *gin.Context) {
	tenantID, ok := requireTenantID(c)
	if !ok {
		return
	}

	if err := h.inventoryService.Trash(c.Request.Context(), actorFrom(c), tenantID, c.Param("id")); err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, http.StatusOK, "Inventory item moved to trash", nil)
}

// Restore handles POST /api/inventory/:id/restore
func (h *InventoryHandler) Restore(c *gin.Context) {
	tenantID, ok := requireTenantID(c)
	if !ok {
		return
	}

	item, err := h.inventoryService.Restore(c.Request.Context(), actorFrom(c), tenantID, c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, http.StatusOK, "Inventory item restored", item)
}

func requireTenantID(c *gin.Context) (string, bool) {
	tenantID := c.Query("tenantId")
	if tenantID == "" {
		utils.Error(c, http.StatusBadRequest, utils.CodeInvalidRequest, "tenantId is required")
		return "", false
	}
	return tenantID, true
}

package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/storeforge/scanapi/internal/models"
	"github.com/storeforge/scanapi/internal/service"
	"github.com/storeforge/scanapi/internal/utils"
)

const defaultSessionListLimit = 50

// ScanAPI is the scan workflow used by ScanHandler.
type ScanAPI interface {
	StartSession(ctx context.Context, actor service.Actor, req models.StartSessionRequest) (*models.ScanSession, error)
	GetSession(ctx context.Context, actor service.Actor, sessionID string) (*service.ScanSessionDetail, error)
	ListSessions(ctx context.Context, actor service.Actor, tenantID, status string, limit int) ([]models.ScanSession, error)
	CancelSession(ctx context.Context, actor service.Actor, sessionID string) error
	LookupBarcode(ctx context.Context, actor service.Actor, sessionID string, req models.LookupBarcodeRequest) (*models.LookupBarcodeResponse, error)
	DeleteResult(ctx context.Context, actor service.Actor, sessionID, resultID string) error
	Validate(ctx context.Context, actor service.Actor, sessionID string) (*models.ValidationReport, error)
	Commit(ctx context.Context, actor service.Actor, sessionID string, req models.CommitRequest) (*models.CommitResult, error)
	CleanupIdleSessions(ctx context.Context) (int, error)
}

// ScanHandler handles scan session HTTP endpoints.
type ScanHandler struct {
	scanService ScanAPI
}

// NewScanHandler constructs a ScanHandler.
func NewScanHandler(scanService ScanAPI) *ScanHandler {
	return &ScanHandler{scanService: scanService}
}

// StartSession handles POST /api/scan/start
func (h *ScanHandler) StartSession(c *gin.Context) {
	var req models.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, utils.CodeInvalidRequest, "tenantId is required")
		return
	}

	session, err := h.scanService.StartSession(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, http.StatusCreated, "Scan session started", gin.H{"session": session})
}

// GetSession handles GET /api/scan/:id
func (h *ScanHandler) GetSession(c *gin.Context) {
	detail, err := h.scanService.GetSession(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, http.StatusOK, "Scan session retrieved", detail)
}

// ListSessions handles GET /api/scan/sessions?tenantId=&status=&limit=
func (h *ScanHandler) ListSessions(c *gin.Context) {
	tenantID := c.Query("tenantId")
	if tenantID == "" {
		utils.Error(c, http.StatusBadRequest, utils.CodeInvalidRequest, "tenantId is required")
		return
	}

	limit := defaultSessionListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 200 {
			utils.Error(c, http.StatusBadRequest, utils.CodeInvalidRequest, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	sessions, err := h.scanService.ListSessions(c.Request.Context(), actorFrom(c), tenantID, c.Query("status"), limit)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, http.StatusOK, "Scan sessions retrieved", gin.H{"sessions": sessions})
}

// CancelSession handles DELETE /api/scan/:id
func (h *ScanHandler) CancelSession(c *gin.Context) {
	if err := h.scanService.CancelSession(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, http.StatusOK, "Scan session cancelled", nil)
}

// LookupBarcode handles POST /api/scan/:id/lookup-barcode
func (h *ScanHandler) LookupBarcode(c *gin.Context) {
	var req models.LookupBarcodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, utils.CodeInvalidRequest, "barcode is required")
		return
	}

	resp, err := h.scanService.LookupBarcode(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	message := "Barcode recorded"
	if resp.Duplicate != nil {
		message = resp.Duplicate.Message
	}
	utils.Success(c, http.StatusCreated, message, resp)
}

// DeleteResult handles DELETE /api/scan/:id/results/:resultId
func (h *ScanHandler) DeleteResult(c *gin.Context) {
	if err := h.scanService.DeleteResult(c.Request.Context(), actorFrom(c), c.Param("id"), c.Param("resultId")); err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, http.StatusOK, "Scan result removed", nil)
}

// Validate handles POST /api/scan/:id/validate
func (h *ScanHandler) Validate(c *gin.Context) {
	report, err := h.scanService.Validate(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, http.StatusOK, "Validation complete", report)
}

// Commit handles POST /api/scan/:id/commit. An empty body means defaults.
func (h *ScanHandler) Commit(c *gin.Context) {
	var req models.CommitRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.Error(c, http.StatusBadRequest, utils.CodeInvalidRequest, "Invalid request body")
		return
	}

	result, err := h.scanService.Commit(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, http.StatusOK, "Scan session committed", result)
}

// Cleanup handles POST /api/scan/cleanup (platform admin only)
func (h *ScanHandler) Cleanup(c *gin.Context) {
	n, err := h.scanService.CleanupIdleSessions(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, http.StatusOK, "Idle sessions cleaned up", gin.H{"cancelled": n})
}

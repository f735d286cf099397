package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/storeforge/scanapi/internal/imaging"
	"github.com/storeforge/scanapi/internal/models"
	"github.com/storeforge/scanapi/internal/service"
	"github.com/storeforge/scanapi/internal/utils"
)

// multipart overhead allowed on top of the image cap
const uploadSlack = 1 << 20

// DirectoryPhotoAPI is the photo surface used by DirectoryPhotoHandler.
type DirectoryPhotoAPI interface {
	List(ctx context.Context, actor service.Actor, listingID string) ([]models.DirectoryPhoto, error)
	CreateFromURL(ctx context.Context, actor service.Actor, listingID string, req models.CreateDirectoryPhotoRequest) (*models.DirectoryPhoto, error)
	Upload(ctx context.Context, actor service.Actor, listingID string, file io.Reader, req models.CreateDirectoryPhotoRequest) (*models.DirectoryPhoto, error)
	Update(ctx context.Context, actor service.Actor, listingID, photoID string, req models.UpdateDirectoryPhotoRequest) (*models.DirectoryPhoto, error)
	Delete(ctx context.Context, actor service.Actor, listingID, photoID string) error
	Reorder(ctx context.Context, actor service.Actor, listingID string, updates []models.PositionUpdate) ([]models.DirectoryPhoto, error)
}

// DirectoryPhotoHandler handles directory listing photo endpoints.
type DirectoryPhotoHandler struct {
	photoService DirectoryPhotoAPI
}

// NewDirectoryPhotoHandler constructs a DirectoryPhotoHandler.
func NewDirectoryPhotoHandler(photoService DirectoryPhotoAPI) *DirectoryPhotoHandler {
	return &DirectoryPhotoHandler{photoService: photoService}
}

// List handles GET /api/directory/:listingId/photos
func (h *DirectoryPhotoHandler) List(c *gin.Context) {
	photos, err := h.photoService.List(c.Request.Context(), actorFrom(c), c.Param("listingId"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, http.StatusOK, "Photos retrieved", gin.H{"photos": photos})
}

// Create handles POST /api/directory/:listingId/photos. A multipart body
// with a "file" part is uploaded; a JSON body registers an external URL.
func (h *DirectoryPhotoHandler) Create(c *gin.Context) {
	listingID := c.Param("listingId")

	var (
		photo *models.DirectoryPhoto
		err   error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, imaging.MaxUploadBytes+uploadSlack)

		var req models.CreateDirectoryPhotoRequest
		if err := c.ShouldBind(&req); err != nil {
			utils.Error(c, http.StatusBadRequest, utils.CodeInvalidRequest, "Invalid form data")
			return
		}
		fileHeader, ferr := c.FormFile("file")
		if ferr != nil {
			utils.Error(c, http.StatusBadRequest, utils.CodeInvalidRequest, "file is required")
			return
		}
		file, ferr := fileHeader.Open()
		if ferr != nil {
			utils.Error(c, http.StatusBadRequest, utils.CodeInvalidRequest, "Could not read uploaded file")
			return
		}
		defer file.Close()

		photo, err = h.photoService.Upload(c.Request.Context(), actorFrom(c), listingID, file, req)
	} else {
		var req models.CreateDirectoryPhotoRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.Error(c, http.StatusBadRequest, utils.CodeInvalidRequest, "Invalid request body")
			return
		}
		photo, err = h.photoService.CreateFromURL(c.Request.Context(), actorFrom(c), listingID, req)
	}
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, http.StatusCreated, "Photo added", photo)
}

// Update handles PATCH /api/directory/:listingId/photos/:photoId
func (h *DirectoryPhotoHandler) Update(c *gin.Context) {
	var req models.UpdateDirectoryPhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, utils.CodeInvalidRequest, "Invalid request body")
		return
	}
	if req.Position == nil && req.Alt == nil && req.Caption == nil {
		utils.Error(c, http.StatusBadRequest, utils.CodeInvalidRequest, "Nothing to update")
		return
	}

	photo, err := h.photoService.Update(c.Request.Context(), actorFrom(c), c.Param("listingId"), c.Param("photoId"), req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, http.StatusOK, "Photo updated", photo)
}

// Delete handles DELETE /api/directory/:listingId/photos/:photoId
func (h *DirectoryPhotoHandler) Delete(c *gin.Context) {
	if err := h.photoService.Delete(c.Request.Context(), actorFrom(c), c.Param("listingId"), c.Param("photoId")); err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, http.StatusOK, "Photo deleted", nil)
}

// Reorder handles PUT /api/directory/:listingId/photos/reorder
func (h *DirectoryPhotoHandler) Reorder(c *gin.Context) {
	var req models.ReorderDirectoryPhotosRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, utils.CodeInvalidRequest, "updates must list at least one {id, position}")
		return
	}

	photos, err := h.photoService.Reorder(c.Request.Context(), actorFrom(c), c.Param("listingId"), req.Updates)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, http.StatusOK, "Photos reordered", gin.H{"photos": photos})
}

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/storeforge/scanapi/internal/imaging"
	"github.com/storeforge/scanapi/internal/metrics"
	"github.com/storeforge/scanapi/internal/models"
	"github.com/storeforge/scanapi/internal/repository"
	"github.com/storeforge/scanapi/internal/utils"
)

// DirectoryPhotoService manages listing photos and keeps their positions a
// contiguous 0-based sequence.
type DirectoryPhotoService struct {
	access    *TenantAccessService
	photos    DirectoryPhotoStore
	storage   BlobStorage
	labeler   PhotoLabeler
	metrics   *metrics.Metrics
	maxPhotos int
}

// NewDirectoryPhotoService creates a new DirectoryPhotoService. storage and
// labeler may be nil; uploads then fail and alt text is not generated.
func NewDirectoryPhotoService(
	access *TenantAccessService,
	photos DirectoryPhotoStore,
	storage BlobStorage,
	labeler PhotoLabeler,
	m *metrics.Metrics,
	maxPhotos int,
) *DirectoryPhotoService {
	return &DirectoryPhotoService{
		access:    access,
		photos:    photos,
		storage:   storage,
		labeler:   labeler,
		metrics:   m,
		maxPhotos: maxPhotos,
	}
}

// List returns a listing's photos in position order.
func (s *DirectoryPhotoService) List(ctx context.Context, actor Actor, listingID string) ([]models.DirectoryPhoto, error) {
	if _, err := s.loadListing(ctx, actor, listingID, false); err != nil {
		return nil, err
	}
	photos, err := s.photos.ListByListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if photos == nil {
		photos = []models.DirectoryPhoto{}
	}
	return photos, nil
}

// CreateFromURL appends a photo that is already hosted elsewhere.
func (s *DirectoryPhotoService) CreateFromURL(ctx context.Context, actor Actor, listingID string, req models.CreateDirectoryPhotoRequest) (*models.DirectoryPhoto, error) {
	url := strings.TrimSpace(req.URL)
	if !isHTTPURL(url) {
		return nil, utils.ValidationError("url must be an absolute http(s) URL")
	}
	listing, err := s.loadListing(ctx, actor, listingID, true)
	if err != nil {
		return nil, err
	}
	if err := s.checkLimit(ctx, listingID); err != nil {
		return nil, err
	}

	photo := &models.DirectoryPhoto{
		ID:          uuid.New().String(),
		ListingID:   listingID,
		TenantID:    listing.TenantID,
		URL:         url,
		Alt:         strings.TrimSpace(req.Alt),
		Caption:     strings.TrimSpace(req.Caption),
		ContentType: contentTypeFromURL(url),
	}
	if err := s.photos.Append(ctx, photo, s.maxPhotos); err != nil {
		return nil, s.appendError(err)
	}
	log.Info().Str("listing_id", listingID).Str("photo_id", photo.ID).Int("position", photo.Position).Msg("Directory photo added")
	return photo, nil
}

// Upload processes an image, stores it and appends it to the listing.
func (s *DirectoryPhotoService) Upload(ctx context.Context, actor Actor, listingID string, file io.Reader, req models.CreateDirectoryPhotoRequest) (*models.DirectoryPhoto, error) {
	listing, err := s.loadListing(ctx, actor, listingID, true)
	if err != nil {
		return nil, err
	}
	if err := s.checkLimit(ctx, listingID); err != nil {
		return nil, err
	}
	if s.storage == nil {
		return nil, utils.NewAppError(http.StatusServiceUnavailable, utils.CodeInternal, "Photo uploads are not configured")
	}

	img, err := imaging.Process(file)
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupportedFormat) || errors.Is(err, imaging.ErrTooLarge) {
			return nil, utils.ValidationError(err.Error())
		}
		return nil, utils.ValidationError("Could not read image")
	}

	alt := strings.TrimSpace(req.Alt)
	if alt == "" && s.labeler != nil {
		if alt, err = s.labeler.AltText(ctx, img.Data); err != nil {
			log.Warn().Err(err).Str("listing_id", listingID).Msg("Alt text generation failed")
			alt = ""
		}
	}

	id := uuid.New().String()
	key := fmt.Sprintf("directory/%s/%s.jpg", listingID, id)
	url, err := s.storage.Put(ctx, key, img.Data, img.ContentType)
	if err != nil {
		return nil, err
	}

	width, height := img.Width, img.Height
	photo := &models.DirectoryPhoto{
		ID:          id,
		ListingID:   listingID,
		TenantID:    listing.TenantID,
		URL:         url,
		StorageKey:  &key,
		Alt:         alt,
		Caption:     strings.TrimSpace(req.Caption),
		ContentType: img.ContentType,
		Width:       &width,
		Height:      &height,
		ExifRemoved: img.ExifRemoved,
	}
	if err := s.photos.Append(ctx, photo, s.maxPhotos); err != nil {
		s.removeBlob(ctx, key)
		return nil, s.appendError(err)
	}
	log.Info().Str("listing_id", listingID).Str("photo_id", id).Int("position", photo.Position).Msg("Directory photo uploaded")
	return photo, nil
}

// Update changes alt text, caption and position. A position held by another
// photo is swapped with it.
func (s *DirectoryPhotoService) Update(ctx context.Context, actor Actor, listingID, photoID string, req models.UpdateDirectoryPhotoRequest) (*models.DirectoryPhoto, error) {
	if _, err := s.loadListing(ctx, actor, listingID, true); err != nil {
		return nil, err
	}
	photo, err := s.loadPhoto(ctx, listingID, photoID)
	if err != nil {
		return nil, err
	}

	if req.Position != nil {
		count, err := s.photos.CountByListing(ctx, listingID)
		if err != nil {
			return nil, err
		}
		if *req.Position < 0 || *req.Position >= count {
			return nil, utils.ValidationError(fmt.Sprintf("position must be between 0 and %d", count-1))
		}
		if err := s.photos.MoveTo(ctx, photo, *req.Position); err != nil {
			return nil, err
		}
	}
	if req.Alt != nil || req.Caption != nil {
		if err := s.photos.UpdateText(ctx, photoID, trimPtr(req.Alt), trimPtr(req.Caption)); err != nil {
			return nil, err
		}
	}
	return s.photos.GetByID(ctx, photoID)
}

// Delete removes a photo, re-packs the remaining positions and removes the
// stored binary on a best-effort basis.
func (s *DirectoryPhotoService) Delete(ctx context.Context, actor Actor, listingID, photoID string) error {
	if _, err := s.loadListing(ctx, actor, listingID, true); err != nil {
		return err
	}
	photo, err := s.loadPhoto(ctx, listingID, photoID)
	if err != nil {
		return err
	}
	if err := s.photos.DeleteAndRepack(ctx, photo); err != nil {
		return err
	}
	if photo.StorageKey != nil && *photo.StorageKey != "" {
		s.removeBlob(ctx, *photo.StorageKey)
	}
	log.Info().Str("listing_id", listingID).Str("photo_id", photoID).Msg("Directory photo deleted")
	return nil
}

// Reorder applies all position updates atomically and returns the new order.
func (s *DirectoryPhotoService) Reorder(ctx context.Context, actor Actor, listingID string, updates []models.PositionUpdate) ([]models.DirectoryPhoto, error) {
	if _, err := s.loadListing(ctx, actor, listingID, true); err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return nil, utils.ValidationError("updates must not be empty")
	}

	err := s.photos.Reorder(ctx, listingID, updates)
	switch {
	case errors.Is(err, repository.ErrPhotoNotInListing):
		return nil, utils.ValidationError("All photos must belong to this listing")
	case errors.Is(err, repository.ErrPositionConflict):
		return nil, utils.ValidationError("Each photo may appear once and positions must run from 0 to n-1")
	case err != nil:
		return nil, err
	}
	return s.photos.ListByListing(ctx, listingID)
}

// RepairPositions re-packs every listing left with negative positions.
func (s *DirectoryPhotoService) RepairPositions(ctx context.Context) (int, error) {
	ids, err := s.photos.ListingsWithNegativePositions(ctx)
	if err != nil {
		return 0, err
	}
	repaired := 0
	for _, id := range ids {
		if err := s.photos.Repack(ctx, id); err != nil {
			log.Error().Err(err).Str("listing_id", id).Msg("Failed to repair photo positions")
			continue
		}
		repaired++
	}
	if repaired > 0 {
		s.metrics.PositionsRepaired(repaired)
		log.Warn().Int("count", repaired).Msg("Repaired directory photo positions")
	}
	return repaired, nil
}

func (s *DirectoryPhotoService) loadListing(ctx context.Context, actor Actor, listingID string, write bool) (*models.DirectoryListing, error) {
	listing, err := s.photos.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, utils.NotFound(utils.CodeNotFound, "Listing not found")
	}
	if _, err := s.access.Authorize(ctx, actor, listing.TenantID, write); err != nil {
		return nil, err
	}
	return listing, nil
}

func (s *DirectoryPhotoService) loadPhoto(ctx context.Context, listingID, photoID string) (*models.DirectoryPhoto, error) {
	photo, err := s.photos.GetByID(ctx, photoID)
	if err != nil {
		return nil, err
	}
	if photo == nil || photo.ListingID != listingID {
		return nil, utils.NotFound(utils.CodePhotoNotFound, "Photo not found")
	}
	return photo, nil
}

func (s *DirectoryPhotoService) checkLimit(ctx context.Context, listingID string) error {
	count, err := s.photos.CountByListing(ctx, listingID)
	if err != nil {
		return err
	}
	if count >= s.maxPhotos {
		return s.limitError()
	}
	return nil
}

func (s *DirectoryPhotoService) appendError(err error) error {
	if errors.Is(err, repository.ErrPhotoLimitReached) {
		return s.limitError()
	}
	return err
}

func (s *DirectoryPhotoService) limitError() error {
	return utils.BusinessRule(utils.CodePhotoLimitExceeded,
		fmt.Sprintf("A listing can have at most %d photos", s.maxPhotos))
}

func (s *DirectoryPhotoService) removeBlob(ctx context.Context, key string) {
	if s.storage == nil {
		return
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to delete stored photo")
	}
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

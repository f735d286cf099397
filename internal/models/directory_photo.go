package models

import "time"

// DirectoryPhoto is an image attached to a directory listing. Positions form
// a contiguous 0-based sequence per listing.
type DirectoryPhoto struct {
	ID          string    `db:"id" json:"id"`
	ListingID   string    `db:"listing_id" json:"listingId"`
	TenantID    string    `db:"tenant_id" json:"tenantId"`
	URL         string    `db:"url" json:"url"`
	StorageKey  *string   `db:"storage_key" json:"-"`
	Position    int       `db:"position" json:"position"`
	Alt         string    `db:"alt" json:"alt"`
	Caption     string    `db:"caption" json:"caption"`
	ContentType string    `db:"content_type" json:"contentType"`
	Width       *int      `db:"width" json:"width,omitempty"`
	Height      *int      `db:"height" json:"height,omitempty"`
	ExifRemoved bool      `db:"exif_removed" json:"exifRemoved"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// DirectoryListing is the minimal listing view needed for tenant scoping.
type DirectoryListing struct {
	ID       string `db:"id" json:"id"`
	TenantID string `db:"tenant_id" json:"tenantId"`
	Name     string `db:"name" json:"name"`
}

// CreateDirectoryPhotoRequest carries JSON photo creation by URL.
type CreateDirectoryPhotoRequest struct {
	URL     string `json:"url" form:"url"`
	Alt     string `json:"alt" form:"alt"`
	Caption string `json:"caption" form:"caption"`
}

// UpdateDirectoryPhotoRequest is the body of PATCH .../photos/:photoId.
type UpdateDirectoryPhotoRequest struct {
	Position *int    `json:"position"`
	Alt      *string `json:"alt"`
	Caption  *string `json:"caption"`
}

// PositionUpdate assigns a position to a photo in a reorder request.
type PositionUpdate struct {
	ID       string `json:"id" binding:"required"`
	Position int    `json:"position"`
}

// ReorderDirectoryPhotosRequest is the body of PUT .../photos/reorder.
type ReorderDirectoryPhotosRequest struct {
	Updates []PositionUpdate `json:"updates" binding:"required,min=1,dive"`
}

package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrSessionLimitReached is returned when a tenant already has the maximum
	// number of active scan sessions.
	ErrSessionLimitReached = errors.New("active scan session limit reached")
	// ErrSessionNotActive is returned when a write targets a session that has
	// left the active state.
	ErrSessionNotActive = errors.New("scan session is not active")
	// ErrDuplicateBarcode is returned when a barcode was already recorded in
	// the same session.
	ErrDuplicateBarcode = errors.New("barcode already scanned in this session")
	// ErrPhotoNotInListing is returned when a reorder references a photo that
	// belongs to another listing.
	ErrPhotoNotInListing = errors.New("photo does not belong to listing")
	// ErrPositionConflict is returned when a reorder lists a photo twice or
	// would leave positions that are not exactly 0..n-1.
	ErrPositionConflict = errors.New("photo positions conflict")
	// ErrPhotoLimitReached is returned when a listing already holds the
	// maximum number of photos.
	ErrPhotoLimitReached = errors.New("listing photo limit reached")
)

const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

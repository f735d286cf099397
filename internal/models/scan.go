package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ScanSessionStatus enumerates session lifecycle states. Only active sessions
// accept lookups and commits; the other two are terminal.
type ScanSessionStatus string

const (
	ScanSessionActive    ScanSessionStatus = "active"
	ScanSessionCompleted ScanSessionStatus = "completed"
	ScanSessionCancelled ScanSessionStatus = "cancelled"
)

// DeviceType identifies how barcodes are captured.
type DeviceType string

const (
	DeviceCamera DeviceType = "camera"
	DeviceUSB    DeviceType = "usb"
	DeviceManual DeviceType = "manual"
)

// Valid reports whether d is a known device type.
func (d DeviceType) Valid() bool {
	switch d {
	case DeviceCamera, DeviceUSB, DeviceManual:
		return true
	}
	return false
}

// ScanResultStatus distinguishes new catalog entries from ones that already exist.
type ScanResultStatus string

const (
	ScanResultNew       ScanResultStatus = "new"
	ScanResultDuplicate ScanResultStatus = "duplicate"
)

// JSONMap is a free-form JSONB column.
type JSONMap map[string]interface{}

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src interface{}) error {
	b, err := jsonBytes(src)
	if err != nil || b == nil {
		*m = nil
		return err
	}
	return json.Unmarshal(b, m)
}

func jsonBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, errors.New("unsupported JSON column type")
}

// ScanSession is a bounded unit of barcode scanning for one tenant and user.
type ScanSession struct {
	ID             string            `db:"id" json:"id"`
	TenantID       string            `db:"tenant_id" json:"tenantId"`
	UserID         string            `db:"user_id" json:"userId"`
	TemplateID     *string           `db:"template_id" json:"templateId,omitempty"`
	DeviceType     DeviceType        `db:"device_type" json:"deviceType"`
	Status         ScanSessionStatus `db:"status" json:"status"`
	ScannedCount   int               `db:"scanned_count" json:"scannedCount"`
	DuplicateCount int               `db:"duplicate_count" json:"duplicateCount"`
	CommittedCount int               `db:"committed_count" json:"committedCount"`
	Metadata       JSONMap           `db:"metadata" json:"metadata,omitempty"`
	StartedAt      time.Time         `db:"started_at" json:"startedAt"`
	CompletedAt    *time.Time        `db:"completed_at" json:"completedAt,omitempty"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updatedAt"`
}

// IsActive reports whether the session still accepts work.
func (s *ScanSession) IsActive() bool {
	return s.Status == ScanSessionActive
}

// ScanResult is one scanned barcode within a session.
type ScanResult struct {
	ID          string           `db:"id" json:"id"`
	SessionID   string           `db:"session_id" json:"sessionId"`
	TenantID    string           `db:"tenant_id" json:"tenantId"`
	Barcode     string           `db:"barcode" json:"barcode"`
	SKU         string           `db:"sku" json:"sku"`
	Status      ScanResultStatus `db:"status" json:"status"`
	Enrichment  *Enrichment      `db:"enrichment" json:"enrichment"`
	DuplicateOf *string          `db:"duplicate_of" json:"duplicateOf,omitempty"`
	RawPayload  JSONMap          `db:"raw_payload" json:"rawPayload,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"createdAt"`
}

// ScanTemplate supplies fallback values for items created by a commit.
type ScanTemplate struct {
	ID                string          `db:"id" json:"id"`
	TenantID          string          `db:"tenant_id" json:"tenantId"`
	Name              string          `db:"name" json:"name"`
	DefaultPrice      decimal.Decimal `db:"default_price" json:"defaultPrice"`
	Currency          string          `db:"currency" json:"currency"`
	Visibility        string          `db:"visibility" json:"visibility"`
	DefaultCategoryID *string         `db:"default_category_id" json:"defaultCategoryId,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
}

// StartSessionRequest is the body of POST /api/scan/start.
type StartSessionRequest struct {
	TenantID   string                 `json:"tenantId" binding:"required"`
	TemplateID *string                `json:"templateId"`
	DeviceType DeviceType             `json:"deviceType"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// LookupBarcodeRequest is the body of POST /api/scan/:id/lookup-barcode.
type LookupBarcodeRequest struct {
	Barcode string `json:"barcode" binding:"required"`
	SKU     string `json:"sku"`
}

// LookupBarcodeResponse reports the recorded result. Duplicate is set when an
// active catalog item already uses the SKU; the scan is still recorded.
type LookupBarcodeResponse struct {
	Result     *ScanResult        `json:"result"`
	Enrichment *Enrichment        `json:"enrichment"`
	Duplicate  *DuplicateWarning  `json:"duplicate,omitempty"`
	Session    *ScanSessionCounts `json:"session"`
}

// DuplicateWarning is the non-fatal "already in catalog" signal.
type DuplicateWarning struct {
	ItemID  string `json:"itemId"`
	SKU     string `json:"sku"`
	Message string `json:"message"`
}

// ScanSessionCounts are the running counters returned after each lookup.
type ScanSessionCounts struct {
	ScannedCount   int `json:"scannedCount"`
	DuplicateCount int `json:"duplicateCount"`
}

// CommitRequest is the body of POST /api/scan/:id/commit.
type CommitRequest struct {
	SkipValidation bool `json:"skipValidation"`
}

// ValidationIssue describes one missing field on one scan result.
type ValidationIssue struct {
	ResultID string `json:"resultId"`
	Barcode  string `json:"barcode"`
	Field    string `json:"field"`
	Message  string `json:"message"`
}

// ValidationReport is returned by validate and by a rejected commit.
type ValidationReport struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationIssue `json:"errors"`
}

// CommitFailure records a result that could not be materialized.
type CommitFailure struct {
	ResultID string `json:"resultId"`
	Barcode  string `json:"barcode"`
	Reason   string `json:"reason"`
}

// CommitResult summarizes a commit.
type CommitResult struct {
	Committed int             `json:"committed"`
	ItemIDs   []string        `json:"itemIds"`
	Failed    []CommitFailure `json:"failed"`
}

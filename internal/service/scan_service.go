package service

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/storeforge/scanapi/internal/metrics"
	"github.com/storeforge/scanapi/internal/models"
	"github.com/storeforge/scanapi/internal/repository"
	"github.com/storeforge/scanapi/internal/utils"
)

const (
	defaultCurrency = "USD"
	itemSourceScan  = "scan"
)

var barcodePattern = regexp.MustCompile(`^[0-9A-Za-z-]{1,64}$`)

// ScanOptions are the tunables of the scan workflow.
type ScanOptions struct {
	MaxActiveSessions int
	IdleAfter         time.Duration
	MaxGalleryPhotos  int
}

// ScanSessionDetail is a session with its results.
type ScanSessionDetail struct {
	Session *models.ScanSession `json:"session"`
	Results []models.ScanResult `json:"results"`
}

// ScanService runs the scan-to-inventory workflow: sessions, barcode
// lookups, validation and commit.
type ScanService struct {
	access    *TenantAccessService
	sessions  SessionStore
	results   ResultStore
	inventory InventoryStore
	templates TemplateStore
	enricher  Enricher
	metrics   *metrics.Metrics
	opts      ScanOptions
	now       func() time.Time
}

// NewScanService creates a new ScanService.
func NewScanService(
	access *TenantAccessService,
	sessions SessionStore,
	results ResultStore,
	inventory InventoryStore,
	templates TemplateStore,
	enricher Enricher,
	m *metrics.Metrics,
	opts ScanOptions,
) *ScanService {
	return &ScanService{
		access:    access,
		sessions:  sessions,
		results:   results,
		inventory: inventory,
		templates: templates,
		enricher:  enricher,
		metrics:   m,
		opts:      opts,
		now:       time.Now,
	}
}

// StartSession opens an active session unless the tenant is at its cap.
func (s *ScanService) StartSession(ctx context.Context, actor Actor, req models.StartSessionRequest) (*models.ScanSession, error) {
	if _, err := s.access.Authorize(ctx, actor, req.TenantID, true); err != nil {
		return nil, err
	}

	device := req.DeviceType
	if device == "" {
		device = models.DeviceCamera
	}
	if !device.Valid() {
		return nil, utils.ValidationError("deviceType must be one of camera, usb, manual")
	}

	if req.TemplateID != nil && *req.TemplateID != "" {
		tpl, err := s.templates.GetByID(ctx, req.TenantID, *req.TemplateID)
		if err != nil {
			return nil, err
		}
		if tpl == nil {
			return nil, utils.NotFound(utils.CodeNotFound, "Scan template not found")
		}
	} else {
		req.TemplateID = nil
	}

	session := &models.ScanSession{
		ID:         uuid.New().String(),
		TenantID:   req.TenantID,
		UserID:     actor.UserID,
		TemplateID: req.TemplateID,
		DeviceType: device,
		Metadata:   models.JSONMap(req.Metadata),
	}
	if err := s.sessions.CreateWithinLimit(ctx, session, s.opts.MaxActiveSessions); err != nil {
		if errors.Is(err, repository.ErrSessionLimitReached) {
			log.Warn().Str("tenant_id", req.TenantID).Int("limit", s.opts.MaxActiveSessions).Msg("Active scan session limit reached")
			return nil, utils.RateLimited("Too many active scan sessions for this tenant")
		}
		return nil, err
	}

	log.Info().
		Str("session_id", session.ID).
		Str("tenant_id", session.TenantID).
		Str("device_type", string(device)).
		Msg("Scan session started")
	return session, nil
}

// GetSession returns a session and its results.
func (s *ScanService) GetSession(ctx context.Context, actor Actor, sessionID string) (*ScanSessionDetail, error) {
	session, _, err := s.loadSession(ctx, actor, sessionID, false)
	if err != nil {
		return nil, err
	}
	results, err := s.results.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []models.ScanResult{}
	}
	return &ScanSessionDetail{Session: session, Results: results}, nil
}

// ListSessions returns a tenant's newest sessions.
func (s *ScanService) ListSessions(ctx context.Context, actor Actor, tenantID, status string, limit int) ([]models.ScanSession, error) {
	if _, err := s.access.Authorize(ctx, actor, tenantID, false); err != nil {
		return nil, err
	}
	switch models.ScanSessionStatus(status) {
	case "", models.ScanSessionActive, models.ScanSessionCompleted, models.ScanSessionCancelled:
	default:
		return nil, utils.ValidationError("status must be one of active, completed, cancelled")
	}
	sessions, err := s.sessions.ListByTenant(ctx, tenantID, status, limit)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []models.ScanSession{}
	}
	return sessions, nil
}

// CancelSession moves an active session to cancelled.
func (s *ScanService) CancelSession(ctx context.Context, actor Actor, sessionID string) error {
	session, _, err := s.loadSession(ctx, actor, sessionID, true)
	if err != nil {
		return err
	}
	if !session.IsActive() {
		return sessionNotActive()
	}

	ok, err := s.sessions.Finish(ctx, sessionID, models.ScanSessionCancelled, 0)
	if err != nil {
		return err
	}
	if !ok {
		return sessionNotActive()
	}
	log.Info().Str("session_id", sessionID).Str("user_id", actor.UserID).Msg("Scan session cancelled")
	return nil
}

// LookupBarcode records a scanned barcode in an active session. The same
// barcode twice in one session is rejected; a barcode whose SKU is already
// live in the catalog is recorded with status duplicate and a warning.
func (s *ScanService) LookupBarcode(ctx context.Context, actor Actor, sessionID string, req models.LookupBarcodeRequest) (*models.LookupBarcodeResponse, error) {
	barcode := strings.TrimSpace(req.Barcode)
	if !barcodePattern.MatchString(barcode) {
		return nil, utils.ValidationError("barcode must be 1-64 characters of letters, digits or '-'")
	}
	sku := strings.TrimSpace(req.SKU)
	if sku == "" {
		sku = barcode
	}

	session, tenant, err := s.loadSession(ctx, actor, sessionID, true)
	if err != nil {
		return nil, err
	}
	if err := s.access.RequireWritable(tenant); err != nil {
		return nil, err
	}
	if !session.IsActive() {
		return nil, sessionNotActive()
	}

	exists, err := s.results.ExistsInSession(ctx, sessionID, barcode)
	if err != nil {
		return nil, err
	}
	if exists {
		s.metrics.Lookup("rejected")
		return nil, duplicateBarcode(barcode)
	}

	result := &models.ScanResult{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		TenantID:   session.TenantID,
		Barcode:    barcode,
		SKU:        sku,
		Status:     models.ScanResultNew,
		RawPayload: models.JSONMap{"barcode": req.Barcode, "sku": req.SKU},
	}

	var warning *models.DuplicateWarning
	live, err := s.inventory.FindLiveBySKU(ctx, session.TenantID, sku)
	if err != nil {
		return nil, err
	}
	if live != nil {
		result.Status = models.ScanResultDuplicate
		result.DuplicateOf = &live.ID
		warning = &models.DuplicateWarning{
			ItemID:  live.ID,
			SKU:     sku,
			Message: "An active inventory item already uses this SKU; it will not be committed",
		}
	}

	enrichment, err := s.enricher.Enrich(ctx, barcode)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Str("barcode", barcode).Msg("Enrichment failed, recording scan without it")
		enrichment = nil
	}
	result.Enrichment = enrichment

	counts, err := s.results.Record(ctx, result)
	switch {
	case errors.Is(err, repository.ErrDuplicateBarcode):
		s.metrics.Lookup("rejected")
		return nil, duplicateBarcode(barcode)
	case errors.Is(err, repository.ErrSessionNotActive):
		return nil, sessionNotActive()
	case err != nil:
		return nil, err
	}

	s.metrics.Lookup(string(result.Status))
	log.Info().
		Str("session_id", sessionID).
		Str("barcode", barcode).
		Str("sku", sku).
		Str("status", string(result.Status)).
		Bool("enriched", enrichment != nil).
		Msg("Barcode recorded")

	return &models.LookupBarcodeResponse{
		Result:     result,
		Enrichment: enrichment,
		Duplicate:  warning,
		Session:    counts,
	}, nil
}

// DeleteResult removes a result from an active session.
func (s *ScanService) DeleteResult(ctx context.Context, actor Actor, sessionID, resultID string) error {
	session, _, err := s.loadSession(ctx, actor, sessionID, true)
	if err != nil {
		return err
	}
	if !session.IsActive() {
		return sessionNotActive()
	}
	found, err := s.results.Delete(ctx, sessionID, resultID)
	if errors.Is(err, repository.ErrSessionNotActive) {
		return sessionNotActive()
	}
	if err != nil {
		return err
	}
	if !found {
		return utils.NotFound(utils.CodeNotFound, "Scan result not found")
	}
	return nil
}

// Validate runs commit validation without committing.
func (s *ScanService) Validate(ctx context.Context, actor Actor, sessionID string) (*models.ValidationReport, error) {
	session, _, err := s.loadSession(ctx, actor, sessionID, false)
	if err != nil {
		return nil, err
	}
	eligible, err := s.eligibleResults(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	tpl, err := s.template(ctx, session)
	if err != nil {
		return nil, err
	}
	issues := validateResults(eligible, tpl)
	return &models.ValidationReport{Valid: len(issues) == 0, Errors: issues}, nil
}

// Commit validates the session's non-duplicate results and materializes each
// into an inventory item. Validation failure rejects the whole commit.
// Materialization failures are per item and reported in Failed; the session
// is completed either way, and the write phase is not cut short when the
// caller's context is cancelled.
func (s *ScanService) Commit(ctx context.Context, actor Actor, sessionID string, req models.CommitRequest) (*models.CommitResult, error) {
	session, tenant, err := s.loadSession(ctx, actor, sessionID, true)
	if err != nil {
		return nil, err
	}
	if err := s.access.RequireWritable(tenant); err != nil {
		return nil, err
	}
	if !session.IsActive() {
		return nil, sessionNotActive()
	}

	eligible, err := s.eligibleResults(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, utils.NewAppError(http.StatusBadRequest, utils.CodeNoItemsToCommit, "No scanned items to commit")
	}

	tpl, err := s.template(ctx, session)
	if err != nil {
		return nil, err
	}

	if !req.SkipValidation {
		if issues := validateResults(eligible, tpl); len(issues) > 0 {
			report := models.ValidationReport{Valid: false, Errors: issues}
			return nil, utils.BusinessRule(utils.CodeValidationFailed, "Scan results failed validation").
				WithDetails(map[string]interface{}{"validation": report})
		}
	}

	// Once items start landing the session must reach completed, even if the
	// client goes away mid-commit.
	ctx = context.WithoutCancel(ctx)

	out := &models.CommitResult{ItemIDs: []string{}, Failed: []models.CommitFailure{}}
	for i := range eligible {
		res := &eligible[i]
		itemID, err := s.materialize(ctx, session, tpl, res)
		if err != nil {
			log.Error().Err(err).
				Str("session_id", sessionID).
				Str("barcode", res.Barcode).
				Str("sku", res.SKU).
				Msg("Failed to commit scan result")
			out.Failed = append(out.Failed, models.CommitFailure{
				ResultID: res.ID,
				Barcode:  res.Barcode,
				Reason:   failureReason(err),
			})
			continue
		}
		out.ItemIDs = append(out.ItemIDs, itemID)
	}
	out.Committed = len(out.ItemIDs)

	ok, err := s.sessions.Finish(ctx, sessionID, models.ScanSessionCompleted, out.Committed)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Warn().Str("session_id", sessionID).Msg("Session left active state during commit")
	}

	s.metrics.Commit(out.Committed, len(out.Failed))
	log.Info().
		Str("session_id", sessionID).
		Int("committed", out.Committed).
		Int("failed", len(out.Failed)).
		Msg("Scan session committed")
	return out, nil
}

// CleanupIdleSessions cancels active sessions older than the idle threshold
// that have had no scan within it.
func (s *ScanService) CleanupIdleSessions(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.opts.IdleAfter)
	ids, err := s.sessions.CancelIdle(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(ids) > 0 {
		s.metrics.SessionsCleaned(len(ids))
		log.Info().Int("count", len(ids)).Strs("session_ids", ids).Msg("Cancelled idle scan sessions")
	}
	return len(ids), nil
}

func (s *ScanService) loadSession(ctx context.Context, actor Actor, sessionID string, write bool) (*models.ScanSession, *models.Tenant, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return nil, nil, utils.NotFound(utils.CodeSessionNotFound, "Scan session not found")
	}
	tenant, err := s.access.Authorize(ctx, actor, session.TenantID, write)
	if err != nil {
		return nil, nil, err
	}
	return session, tenant, nil
}

func (s *ScanService) eligibleResults(ctx context.Context, sessionID string) ([]models.ScanResult, error) {
	all, err := s.results.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	eligible := make([]models.ScanResult, 0, len(all))
	for _, r := range all {
		if r.Status != models.ScanResultDuplicate {
			eligible = append(eligible, r)
		}
	}
	return eligible, nil
}

func (s *ScanService) template(ctx context.Context, session *models.ScanSession) (*models.ScanTemplate, error) {
	if session.TemplateID == nil {
		return nil, nil
	}
	return s.templates.GetByID(ctx, session.TenantID, *session.TemplateID)
}

func (s *ScanService) materialize(ctx context.Context, session *models.ScanSession, tpl *models.ScanTemplate, res *models.ScanResult) (string, error) {
	e := res.Enrichment
	item := &models.InventoryItem{
		TenantID:   session.TenantID,
		SKU:        res.SKU,
		Barcode:    res.Barcode,
		Name:       res.SKU,
		Price:      decimal.Zero,
		Currency:   defaultCurrency,
		Visibility: models.VisibilityPrivate,
		CategoryID: resolveCategory(e, tpl),
		Metadata:   BuildItemMetadata(e, session.ID),
		Source:     itemSourceScan,
	}
	if e != nil {
		if name := strings.TrimSpace(e.Name); name != "" {
			item.Name = name
		}
		item.Brand = e.Brand
		item.Description = e.Description
	}
	if tpl != nil {
		item.Price = tpl.DefaultPrice
		if tpl.Currency != "" {
			item.Currency = tpl.Currency
		}
		if tpl.Visibility != "" {
			item.Visibility = tpl.Visibility
		}
	}

	photos := galleryPhotos(BuildGallery(e, s.opts.MaxGalleryPhotos), item.Name)
	out, err := s.inventory.Materialize(ctx, item, photos)
	if err != nil {
		return "", err
	}
	if out.Restored {
		log.Info().Str("item_id", out.ItemID).Str("sku", item.SKU).Msg("Restored trashed inventory item")
	}
	return out.ItemID, nil
}

// validateResults lists the fields each result is missing. A result needs a
// product name unless the template supplies a default category, and it must
// resolve to a category.
func validateResults(results []models.ScanResult, tpl *models.ScanTemplate) []models.ValidationIssue {
	templateCategory := tpl != nil && tpl.DefaultCategoryID != nil && *tpl.DefaultCategoryID != ""
	issues := []models.ValidationIssue{}
	for _, r := range results {
		hasName := r.Enrichment != nil && strings.TrimSpace(r.Enrichment.Name) != ""
		if !hasName && !templateCategory {
			issues = append(issues, models.ValidationIssue{
				ResultID: r.ID, Barcode: r.Barcode, Field: "name",
				Message: "Product name is missing and the template has no default category",
			})
		}
		if resolveCategory(r.Enrichment, tpl) == nil {
			issues = append(issues, models.ValidationIssue{
				ResultID: r.ID, Barcode: r.Barcode, Field: "category",
				Message: "No category could be resolved for this product",
			})
		}
	}
	return issues
}

func resolveCategory(e *models.Enrichment, tpl *models.ScanTemplate) *string {
	if e != nil && e.SuggestedCategoryID != nil && *e.SuggestedCategoryID != "" {
		return e.SuggestedCategoryID
	}
	if tpl != nil && tpl.DefaultCategoryID != nil && *tpl.DefaultCategoryID != "" {
		return tpl.DefaultCategoryID
	}
	return nil
}

func failureReason(err error) string {
	if repository.IsSKUConflict(err) {
		return "An active inventory item already uses this SKU"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "Request was cancelled before the item was saved"
	}
	return "Item could not be saved"
}

func sessionNotActive() error {
	return utils.Conflict(utils.CodeSessionNotActive, "Scan session is not active")
}

func duplicateBarcode(barcode string) error {
	return utils.Conflict(utils.CodeDuplicateBarcode, "Barcode already scanned in this session").
		WithDetails(map[string]string{"barcode": barcode})
}

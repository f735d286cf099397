package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeforge/scanapi/internal/models"
	"github.com/storeforge/scanapi/internal/utils"
)

type scanFixture struct {
	db       *memDB
	inv      memInventory
	enricher *fakeEnricher
	svc      *ScanService
	actor    Actor
}

func newScanFixture(t *testing.T) *scanFixture {
	t.Helper()
	db := newMemDB()
	db.addTenant("t1", "pro", "active")
	db.assign("u1", "t1", models.TenantRoleMember)

	enricher := &fakeEnricher{byBarcode: map[string]*models.Enrichment{}}
	access := NewTenantAccessService(memTenants{db})
	svc := NewScanService(access, memSessions{db}, memResults{db}, memInventory{db}, memTemplates{db}, enricher, nil,
		ScanOptions{MaxActiveSessions: 50, IdleAfter: time.Hour, MaxGalleryPhotos: 11})

	return &scanFixture{db: db, inv: memInventory{db}, enricher: enricher, svc: svc, actor: Actor{UserID: "u1", Role: models.UserRoleUser}}
}

func (f *scanFixture) start(t *testing.T) *models.ScanSession {
	t.Helper()
	s, err := f.svc.StartSession(context.Background(), f.actor, models.StartSessionRequest{TenantID: "t1", DeviceType: models.DeviceCamera})
	require.NoError(t, err)
	return s
}

func (f *scanFixture) lookup(t *testing.T, sessionID, barcode string) *models.LookupBarcodeResponse {
	t.Helper()
	resp, err := f.svc.LookupBarcode(context.Background(), f.actor, sessionID, models.LookupBarcodeRequest{Barcode: barcode})
	require.NoError(t, err)
	return resp
}

func requireAppError(t *testing.T, err error, status int, code string) *utils.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *utils.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	assert.Equal(t, status, appErr.Status)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

func namedEnrichment(barcode, name string, categoryID *string) *models.Enrichment {
	return &models.Enrichment{
		Barcode:             barcode,
		Source:              models.EnrichmentSourceOpenFoodFacts,
		Name:                name,
		SuggestedCategoryID: categoryID,
		Images:              models.EnrichedImages{Main: "https://img.example.com/" + barcode + ".jpg"},
	}
}

func TestStartSession_ActiveCapIsEnforced(t *testing.T) {
	f := newScanFixture(t)
	for i := 0; i < 50; i++ {
		f.start(t)
	}

	_, err := f.svc.StartSession(context.Background(), f.actor, models.StartSessionRequest{TenantID: "t1"})
	requireAppError(t, err, http.StatusTooManyRequests, utils.CodeRateLimitExceeded)

	active := 0
	for _, s := range f.db.sessions {
		if s.TenantID == "t1" && s.IsActive() {
			active++
		}
	}
	assert.Equal(t, 50, active)
}

func TestStartSession_DefaultsAndValidation(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()

	s, err := f.svc.StartSession(ctx, f.actor, models.StartSessionRequest{TenantID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, models.DeviceCamera, s.DeviceType)
	assert.Equal(t, models.ScanSessionActive, s.Status)
	assert.Equal(t, "u1", s.UserID)

	_, err = f.svc.StartSession(ctx, f.actor, models.StartSessionRequest{TenantID: "t1", DeviceType: "fax"})
	requireAppError(t, err, http.StatusBadRequest, utils.CodeInvalidRequest)

	_, err = f.svc.StartSession(ctx, f.actor, models.StartSessionRequest{TenantID: "t1", TemplateID: strPtr("missing")})
	requireAppError(t, err, http.StatusNotFound, utils.CodeNotFound)
}

func TestStartSession_TenantAccess(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()

	_, err := f.svc.StartSession(ctx, Actor{UserID: "stranger", Role: models.UserRoleUser}, models.StartSessionRequest{TenantID: "t1"})
	requireAppError(t, err, http.StatusForbidden, utils.CodeForbidden)

	_, err = f.svc.StartSession(ctx, Actor{UserID: "root", Role: models.UserRoleAdmin}, models.StartSessionRequest{TenantID: "t1"})
	require.NoError(t, err)

	_, err = f.svc.StartSession(ctx, f.actor, models.StartSessionRequest{TenantID: "nope"})
	requireAppError(t, err, http.StatusNotFound, utils.CodeTenantNotFound)
}

func TestLookupBarcode_SameBarcodeTwiceIsRejected(t *testing.T) {
	f := newScanFixture(t)
	s := f.start(t)

	first := f.lookup(t, s.ID, "0123")
	assert.Equal(t, models.ScanResultNew, first.Result.Status)
	assert.Equal(t, "0123", first.Result.SKU)
	assert.Equal(t, 1, first.Session.ScannedCount)

	_, err := f.svc.LookupBarcode(context.Background(), f.actor, s.ID, models.LookupBarcodeRequest{Barcode: " 0123 "})
	requireAppError(t, err, http.StatusConflict, utils.CodeDuplicateBarcode)
	assert.Len(t, f.db.results, 1)
}

func TestLookupBarcode_LiveCatalogItemIsSoftDuplicate(t *testing.T) {
	f := newScanFixture(t)
	s := f.start(t)
	existing := f.inv.addItem("t1", "SKU1", models.ItemStatusActive)

	resp, err := f.svc.LookupBarcode(context.Background(), f.actor, s.ID, models.LookupBarcodeRequest{Barcode: "999", SKU: "SKU1"})
	require.NoError(t, err)
	assert.Equal(t, models.ScanResultDuplicate, resp.Result.Status)
	require.NotNil(t, resp.Duplicate)
	assert.Equal(t, existing.ID, resp.Duplicate.ItemID)
	require.NotNil(t, resp.Result.DuplicateOf)
	assert.Equal(t, existing.ID, *resp.Result.DuplicateOf)
	assert.Equal(t, 1, resp.Session.DuplicateCount)
}

func TestLookupBarcode_TrashedItemIsNotDuplicate(t *testing.T) {
	f := newScanFixture(t)
	s := f.start(t)
	f.inv.addItem("t1", "0456", models.ItemStatusTrashed)

	resp := f.lookup(t, s.ID, "0456")
	assert.Equal(t, models.ScanResultNew, resp.Result.Status)
	assert.Nil(t, resp.Duplicate)
}

func TestLookupBarcode_EnrichmentFailureIsTolerated(t *testing.T) {
	f := newScanFixture(t)
	f.enricher.err = errors.New("upstream timeout")
	s := f.start(t)

	resp := f.lookup(t, s.ID, "0123")
	assert.Nil(t, resp.Enrichment)
	assert.Nil(t, resp.Result.Enrichment)
	assert.Len(t, f.db.results, 1)
}

func TestLookupBarcode_Gating(t *testing.T) {
	ctx := context.Background()

	t.Run("read only subscription", func(t *testing.T) {
		f := newScanFixture(t)
		s := f.start(t)
		f.db.tenants["t1"].SubscriptionStatus = "expired"

		_, err := f.svc.LookupBarcode(ctx, f.actor, s.ID, models.LookupBarcodeRequest{Barcode: "0123"})
		requireAppError(t, err, http.StatusForbidden, utils.CodeSubscriptionReadOnly)
		assert.Empty(t, f.db.results)
		assert.Zero(t, f.enricher.calls)
	})

	t.Run("viewer", func(t *testing.T) {
		f := newScanFixture(t)
		s := f.start(t)
		f.db.assign("u1", "t1", models.TenantRoleViewer)

		_, err := f.svc.LookupBarcode(ctx, f.actor, s.ID, models.LookupBarcodeRequest{Barcode: "0123"})
		requireAppError(t, err, http.StatusForbidden, utils.CodeForbidden)
	})

	t.Run("inactive session", func(t *testing.T) {
		f := newScanFixture(t)
		s := f.start(t)
		require.NoError(t, f.svc.CancelSession(ctx, f.actor, s.ID))

		_, err := f.svc.LookupBarcode(ctx, f.actor, s.ID, models.LookupBarcodeRequest{Barcode: "0123"})
		requireAppError(t, err, http.StatusConflict, utils.CodeSessionNotActive)
	})

	t.Run("unknown session", func(t *testing.T) {
		f := newScanFixture(t)
		_, err := f.svc.LookupBarcode(ctx, f.actor, "missing", models.LookupBarcodeRequest{Barcode: "0123"})
		requireAppError(t, err, http.StatusNotFound, utils.CodeSessionNotFound)
	})

	t.Run("malformed barcode", func(t *testing.T) {
		f := newScanFixture(t)
		s := f.start(t)
		for _, bc := range []string{"", "   ", "abc def", "01234567890123456789012345678901234567890123456789012345678901234"} {
			_, err := f.svc.LookupBarcode(ctx, f.actor, s.ID, models.LookupBarcodeRequest{Barcode: bc})
			requireAppError(t, err, http.StatusBadRequest, utils.CodeInvalidRequest)
		}
	})
}

func TestCommit_NoEligibleItems(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()
	s := f.start(t)
	f.inv.addItem("t1", "0123", models.ItemStatusActive)
	f.lookup(t, s.ID, "0123")

	_, err := f.svc.Commit(ctx, f.actor, s.ID, models.CommitRequest{})
	requireAppError(t, err, http.StatusBadRequest, utils.CodeNoItemsToCommit)
	assert.Equal(t, models.ScanSessionActive, f.db.sessions[s.ID].Status)

	empty := f.start(t)
	_, err = f.svc.Commit(ctx, f.actor, empty.ID, models.CommitRequest{})
	requireAppError(t, err, http.StatusBadRequest, utils.CodeNoItemsToCommit)
	assert.Equal(t, models.ScanSessionActive, f.db.sessions[empty.ID].Status)
}

func TestCommit_ValidationFailureRejectsEverything(t *testing.T) {
	f := newScanFixture(t)
	s := f.start(t)
	f.enricher.byBarcode["good"] = namedEnrichment("good", "Oat Milk", strPtr("cat-1"))
	good := f.lookup(t, s.ID, "good")
	bad := f.lookup(t, s.ID, "bad")

	_, err := f.svc.Commit(context.Background(), f.actor, s.ID, models.CommitRequest{})
	appErr := requireAppError(t, err, http.StatusUnprocessableEntity, utils.CodeValidationFailed)

	details, ok := appErr.Details.(map[string]interface{})
	require.True(t, ok)
	report, ok := details["validation"].(models.ValidationReport)
	require.True(t, ok)
	assert.False(t, report.Valid)

	ids := map[string]bool{}
	for _, issue := range report.Errors {
		ids[issue.ResultID] = true
	}
	assert.True(t, ids[bad.Result.ID])
	assert.False(t, ids[good.Result.ID])

	assert.Empty(t, f.db.items)
	assert.Equal(t, models.ScanSessionActive, f.db.sessions[s.ID].Status)
}

func TestCommit_TemplateDefaultCategorySatisfiesValidation(t *testing.T) {
	f := newScanFixture(t)
	f.db.templates["tpl"] = &models.ScanTemplate{
		ID: "tpl", TenantID: "t1", DefaultPrice: decimal.RequireFromString("4.99"),
		Currency: "EUR", Visibility: models.VisibilityPublic, DefaultCategoryID: strPtr("cat-default"),
	}
	s, err := f.svc.StartSession(context.Background(), f.actor, models.StartSessionRequest{TenantID: "t1", TemplateID: strPtr("tpl")})
	require.NoError(t, err)
	f.lookup(t, s.ID, "0777")

	report, err := f.svc.Validate(context.Background(), f.actor, s.ID)
	require.NoError(t, err)
	assert.True(t, report.Valid)

	out, err := f.svc.Commit(context.Background(), f.actor, s.ID, models.CommitRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, out.Committed)

	item := f.db.items[out.ItemIDs[0]]
	assert.Equal(t, "0777", item.Name)
	assert.Equal(t, "EUR", item.Currency)
	assert.Equal(t, models.VisibilityPublic, item.Visibility)
	assert.True(t, item.Price.Equal(decimal.RequireFromString("4.99")))
	require.NotNil(t, item.CategoryID)
	assert.Equal(t, "cat-default", *item.CategoryID)
}

func TestCommit_RestoresTrashedItemWithContiguousPhotos(t *testing.T) {
	f := newScanFixture(t)
	trashed := f.inv.addItem("t1", "SKU1", models.ItemStatusTrashed)
	f.db.photos[trashed.ID] = []models.PhotoAsset{{ID: "old", URL: "https://old.example.com/a.jpg", Position: 0}}

	e := namedEnrichment("0001", "Granola", strPtr("cat-1"))
	for i := 0; i < 14; i++ {
		e.Images.Extra = append(e.Images.Extra, fmt.Sprintf("https://img.example.com/extra-%d.jpg", i))
	}
	f.enricher.byBarcode["0001"] = e

	s := f.start(t)
	_, err := f.svc.LookupBarcode(context.Background(), f.actor, s.ID, models.LookupBarcodeRequest{Barcode: "0001", SKU: "SKU1"})
	require.NoError(t, err)

	out, err := f.svc.Commit(context.Background(), f.actor, s.ID, models.CommitRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Committed)
	assert.Equal(t, []string{trashed.ID}, out.ItemIDs)
	assert.Empty(t, out.Failed)

	live := f.inv.liveBySKU("t1", "SKU1")
	require.Len(t, live, 1)
	assert.Equal(t, "Granola", live[0].Name)

	photos := f.db.photos[trashed.ID]
	require.Len(t, photos, 11)
	for i, p := range photos {
		assert.Equal(t, i, p.Position)
	}
	assert.Equal(t, e.Images.Main, photos[0].URL)
	require.NotNil(t, live[0].ImageURL)
	assert.Equal(t, photos[0].URL, *live[0].ImageURL)

	session := f.db.sessions[s.ID]
	assert.Equal(t, models.ScanSessionCompleted, session.Status)
	assert.Equal(t, 1, session.CommittedCount)
	assert.NotNil(t, session.CompletedAt)
}

func TestCommit_PartialFailureIsReported(t *testing.T) {
	f := newScanFixture(t)
	f.db.failSKU["bad"] = errors.New("connection reset")
	s := f.start(t)
	f.lookup(t, s.ID, "good")
	failed := f.lookup(t, s.ID, "bad")

	out, err := f.svc.Commit(context.Background(), f.actor, s.ID, models.CommitRequest{SkipValidation: true})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Committed)
	assert.Len(t, out.ItemIDs, 1)
	require.Len(t, out.Failed, 1)
	assert.Equal(t, failed.Result.ID, out.Failed[0].ResultID)
	assert.Equal(t, "bad", out.Failed[0].Barcode)
	assert.NotContains(t, out.Failed[0].Reason, "connection reset")

	assert.Equal(t, models.ScanSessionCompleted, f.db.sessions[s.ID].Status)
	assert.Equal(t, 1, f.db.sessions[s.ID].CommittedCount)
}

func TestCommit_FinishesAfterClientDisconnect(t *testing.T) {
	f := newScanFixture(t)
	s := f.start(t)
	f.lookup(t, s.ID, "first")
	f.lookup(t, s.ID, "second")
	f.lookup(t, s.ID, "third")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.db.afterMaterialize = cancel

	out, err := f.svc.Commit(ctx, f.actor, s.ID, models.CommitRequest{SkipValidation: true})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Committed)
	assert.Empty(t, out.Failed)
	assert.Equal(t, models.ScanSessionCompleted, f.db.sessions[s.ID].Status)
	assert.Equal(t, 3, f.db.sessions[s.ID].CommittedCount)
}

func TestCommit_ExcludesDuplicates(t *testing.T) {
	f := newScanFixture(t)
	f.inv.addItem("t1", "live", models.ItemStatusActive)
	s := f.start(t)
	f.lookup(t, s.ID, "live")
	f.lookup(t, s.ID, "fresh")

	out, err := f.svc.Commit(context.Background(), f.actor, s.ID, models.CommitRequest{SkipValidation: true})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Committed)
	assert.Len(t, f.inv.liveBySKU("t1", "live"), 1)
	assert.Len(t, f.inv.liveBySKU("t1", "fresh"), 1)
}

func TestCommit_ReadOnlySubscription(t *testing.T) {
	f := newScanFixture(t)
	s := f.start(t)
	f.lookup(t, s.ID, "0123")
	f.db.tenants["t1"].SubscriptionTier = "google_only"

	_, err := f.svc.Commit(context.Background(), f.actor, s.ID, models.CommitRequest{SkipValidation: true})
	requireAppError(t, err, http.StatusForbidden, utils.CodeSubscriptionReadOnly)
	assert.Empty(t, f.db.items)
	assert.Equal(t, models.ScanSessionActive, f.db.sessions[s.ID].Status)
}

func TestCancelSession(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()
	s := f.start(t)

	err := f.svc.CancelSession(ctx, f.actor, "missing")
	requireAppError(t, err, http.StatusNotFound, utils.CodeSessionNotFound)

	err = f.svc.CancelSession(ctx, Actor{UserID: "stranger"}, s.ID)
	requireAppError(t, err, http.StatusForbidden, utils.CodeForbidden)

	require.NoError(t, f.svc.CancelSession(ctx, f.actor, s.ID))
	assert.Equal(t, models.ScanSessionCancelled, f.db.sessions[s.ID].Status)
	assert.NotNil(t, f.db.sessions[s.ID].CompletedAt)

	err = f.svc.CancelSession(ctx, f.actor, s.ID)
	requireAppError(t, err, http.StatusConflict, utils.CodeSessionNotActive)
}

func TestDeleteResult(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()
	s := f.start(t)
	resp := f.lookup(t, s.ID, "0123")

	require.NoError(t, f.svc.DeleteResult(ctx, f.actor, s.ID, resp.Result.ID))
	assert.Equal(t, 0, f.db.sessions[s.ID].ScannedCount)

	err := f.svc.DeleteResult(ctx, f.actor, s.ID, resp.Result.ID)
	requireAppError(t, err, http.StatusNotFound, utils.CodeNotFound)

	// The barcode can be scanned again after removal.
	f.lookup(t, s.ID, "0123")
}

func TestGetAndListSessions(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()
	s := f.start(t)
	f.lookup(t, s.ID, "0123")

	detail, err := f.svc.GetSession(ctx, f.actor, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, detail.Session.ID)
	assert.Len(t, detail.Results, 1)

	list, err := f.svc.ListSessions(ctx, f.actor, "t1", "active", 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.svc.ListSessions(ctx, f.actor, "t1", "bogus", 10)
	requireAppError(t, err, http.StatusBadRequest, utils.CodeInvalidRequest)
}

func TestCleanupIdleSessions(t *testing.T) {
	f := newScanFixture(t)
	now := time.Now()
	f.svc.now = func() time.Time { return now }

	idle := f.start(t)
	busy := f.start(t)
	fresh := f.start(t)
	f.lookup(t, busy.ID, "0123")

	f.db.sessions[idle.ID].StartedAt = now.Add(-2 * time.Hour)
	f.db.sessions[busy.ID].StartedAt = now.Add(-2 * time.Hour)

	n, err := f.svc.CleanupIdleSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.ScanSessionCancelled, f.db.sessions[idle.ID].Status)
	assert.Equal(t, models.ScanSessionActive, f.db.sessions[busy.ID].Status)
	assert.Equal(t, models.ScanSessionActive, f.db.sessions[fresh.ID].Status)
}

package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/storeforge/scanapi/internal/models"
	"github.com/storeforge/scanapi/internal/repository"
)

// memDB is an in-memory stand-in for the Postgres tables the services use.
type memDB struct {
	mu sync.Mutex

	tenants     map[string]*models.Tenant
	assignments map[string]*models.UserTenant
	templates   map[string]*models.ScanTemplate
	sessions    map[string]*models.ScanSession
	results     []*models.ScanResult
	items       map[string]*models.InventoryItem
	photos      map[string][]models.PhotoAsset
	failSKU     map[string]error

	// afterMaterialize runs once each item is written.
	afterMaterialize func()

	listings  map[string]*models.DirectoryListing
	dirPhotos map[string]*models.DirectoryPhoto
}

func newMemDB() *memDB {
	return &memDB{
		tenants:     map[string]*models.Tenant{},
		assignments: map[string]*models.UserTenant{},
		templates:   map[string]*models.ScanTemplate{},
		sessions:    map[string]*models.ScanSession{},
		items:       map[string]*models.InventoryItem{},
		photos:      map[string][]models.PhotoAsset{},
		failSKU:     map[string]error{},
		listings:    map[string]*models.DirectoryListing{},
		dirPhotos:   map[string]*models.DirectoryPhoto{},
	}
}

func (db *memDB) addTenant(id, tier, status string) {
	db.tenants[id] = &models.Tenant{ID: id, Name: id, SubscriptionTier: tier, SubscriptionStatus: status}
}

func (db *memDB) assign(userID, tenantID, role string) {
	db.assignments[userID+"/"+tenantID] = &models.UserTenant{UserID: userID, TenantID: tenantID, Role: role}
}

// tenants

type memTenants struct{ *memDB }

func (m memTenants) GetByID(_ context.Context, id string) (*models.Tenant, error) {
	return m.tenants[id], nil
}

func (m memTenants) GetAssignment(_ context.Context, userID, tenantID string) (*models.UserTenant, error) {
	return m.assignments[userID+"/"+tenantID], nil
}

// templates

type memTemplates struct{ *memDB }

func (m memTemplates) GetByID(_ context.Context, tenantID, id string) (*models.ScanTemplate, error) {
	t := m.templates[id]
	if t == nil || t.TenantID != tenantID {
		return nil, nil
	}
	return t, nil
}

// sessions

type memSessions struct{ *memDB }

func (m memSessions) CreateWithinLimit(_ context.Context, s *models.ScanSession, maxActive int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := 0
	for _, existing := range m.sessions {
		if existing.TenantID == s.TenantID && existing.IsActive() {
			active++
		}
	}
	if active >= maxActive {
		return repository.ErrSessionLimitReached
	}
	s.Status = models.ScanSessionActive
	s.StartedAt = time.Now()
	s.UpdatedAt = s.StartedAt
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m memSessions) GetByID(_ context.Context, id string) (*models.ScanSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[id]
	if s == nil {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m memSessions) ListByTenant(_ context.Context, tenantID, status string, limit int) ([]models.ScanSession, error) {
	var out []models.ScanSession
	for _, s := range m.sessions {
		if s.TenantID == tenantID && (status == "" || string(s.Status) == status) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m memSessions) Finish(ctx context.Context, id string, status models.ScanSessionStatus, committed int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[id]
	if s == nil || !s.IsActive() {
		return false, nil
	}
	now := time.Now()
	s.Status = status
	s.CommittedCount += committed
	s.CompletedAt = &now
	return true, nil
}

func (m memSessions) CancelIdle(_ context.Context, cutoff time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, s := range m.sessions {
		if !s.IsActive() || !s.StartedAt.Before(cutoff) {
			continue
		}
		recent := false
		for _, r := range m.results {
			if r.SessionID == s.ID && !r.CreatedAt.Before(cutoff) {
				recent = true
			}
		}
		if recent {
			continue
		}
		s.Status = models.ScanSessionCancelled
		ids = append(ids, s.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

// results

type memResults struct{ *memDB }

func (m memResults) ExistsInSession(_ context.Context, sessionID, barcode string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.results {
		if r.SessionID == sessionID && r.Barcode == barcode {
			return true, nil
		}
	}
	return false, nil
}

func (m memResults) Record(_ context.Context, res *models.ScanResult) (*models.ScanSessionCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[res.SessionID]
	if s == nil || !s.IsActive() {
		return nil, repository.ErrSessionNotActive
	}
	for _, r := range m.results {
		if r.SessionID == res.SessionID && r.Barcode == res.Barcode {
			return nil, repository.ErrDuplicateBarcode
		}
	}
	s.ScannedCount++
	if res.Status == models.ScanResultDuplicate {
		s.DuplicateCount++
	}
	res.CreatedAt = time.Now()
	cp := *res
	m.results = append(m.results, &cp)
	return &models.ScanSessionCounts{ScannedCount: s.ScannedCount, DuplicateCount: s.DuplicateCount}, nil
}

func (m memResults) ListBySession(_ context.Context, sessionID string) ([]models.ScanResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ScanResult
	for _, r := range m.results {
		if r.SessionID == sessionID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m memResults) Delete(_ context.Context, sessionID, resultID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.results {
		if r.ID == resultID && r.SessionID == sessionID {
			m.results = append(m.results[:i], m.results[i+1:]...)
			s := m.sessions[sessionID]
			s.ScannedCount--
			if r.Status == models.ScanResultDuplicate {
				s.DuplicateCount--
			}
			return true, nil
		}
	}
	return false, nil
}

// inventory

type memInventory struct{ *memDB }

func (m memInventory) addItem(tenantID, sku, status string) *models.InventoryItem {
	item := &models.InventoryItem{ID: uuid.New().String(), TenantID: tenantID, SKU: sku, Status: status, Name: sku}
	m.items[item.ID] = item
	return item
}

func (m memInventory) FindLiveBySKU(_ context.Context, tenantID, sku string) (*models.InventoryItem, error) {
	for _, it := range m.items {
		if it.TenantID == tenantID && it.SKU == sku && it.Status != models.ItemStatusTrashed {
			cp := *it
			return &cp, nil
		}
	}
	return nil, nil
}

func (m memInventory) GetByID(_ context.Context, tenantID, id string) (*models.InventoryItem, error) {
	it := m.items[id]
	if it == nil || it.TenantID != tenantID {
		return nil, nil
	}
	cp := *it
	return &cp, nil
}

func (m memInventory) List(_ context.Context, tenantID, status string, limit, offset int) ([]models.InventoryItem, int, error) {
	var out []models.InventoryItem
	for _, it := range m.items {
		if it.TenantID == tenantID && (status == "" || it.Status == status) {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (m memInventory) ListPhotos(_ context.Context, itemID string) ([]models.PhotoAsset, error) {
	return m.photos[itemID], nil
}

func (m memInventory) SetStatus(_ context.Context, tenantID, id, status string) (bool, error) {
	it := m.items[id]
	if it == nil || it.TenantID != tenantID {
		return false, nil
	}
	if status == models.ItemStatusActive {
		for _, other := range m.items {
			if other.ID != id && other.TenantID == tenantID && other.SKU == it.SKU && other.Status != models.ItemStatusTrashed {
				return false, &pq.Error{Code: "23505"}
			}
		}
	}
	it.Status = status
	return true, nil
}

func (m memInventory) Materialize(ctx context.Context, item *models.InventoryItem, photos []models.PhotoAsset) (*repository.MaterializeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.afterMaterialize != nil {
		defer m.afterMaterialize()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failSKU[item.SKU]; err != nil {
		return nil, err
	}

	out := &repository.MaterializeResult{}
	var target *models.InventoryItem
	for _, it := range m.items {
		if it.TenantID != item.TenantID || it.SKU != item.SKU {
			continue
		}
		if it.Status == models.ItemStatusTrashed {
			target = it
			out.Restored = true
			continue
		}
		return nil, &pq.Error{Code: "23505"}
	}
	if target == nil {
		item.ID = uuid.New().String()
	} else {
		item.ID = target.ID
	}
	item.Status = models.ItemStatusActive
	cp := *item
	m.items[item.ID] = &cp

	m.photos[item.ID] = nil
	for i, p := range photos {
		p.ID = uuid.New().String()
		p.InventoryItemID = item.ID
		p.TenantID = item.TenantID
		p.Position = i
		m.photos[item.ID] = append(m.photos[item.ID], p)
	}
	if len(photos) > 0 {
		url := photos[0].URL
		m.items[item.ID].ImageURL = &url
	}
	out.ItemID = item.ID
	out.Photos = m.photos[item.ID]
	return out, nil
}

func (m memInventory) liveBySKU(tenantID, sku string) []*models.InventoryItem {
	var out []*models.InventoryItem
	for _, it := range m.items {
		if it.TenantID == tenantID && it.SKU == sku && it.Status != models.ItemStatusTrashed {
			out = append(out, it)
		}
	}
	return out
}

// enrichment

type fakeEnricher struct {
	byBarcode map[string]*models.Enrichment
	err       error
	calls     int
}

func (f *fakeEnricher) Enrich(_ context.Context, barcode string) (*models.Enrichment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.byBarcode[barcode], nil
}

type memCategories struct {
	bySlug map[string]string
	calls  int
}

func (m *memCategories) FindBySlugs(_ context.Context, slugs []string) ([]repository.Category, error) {
	m.calls++
	var out []repository.Category
	for _, s := range slugs {
		if id, ok := m.bySlug[s]; ok {
			out = append(out, repository.Category{ID: id, Slug: s, Name: s})
		}
	}
	return out, nil
}

func (m *memCategories) Exists(_ context.Context, id string) (bool, error) {
	for _, v := range m.bySlug {
		if v == id {
			return true, nil
		}
	}
	return false, nil
}

func strPtr(s string) *string { return &s }

// directory photos

type memDirectory struct {
	*memDB
	negativeListings []string
	repacked         []string
}

func (m *memDirectory) addPhoto(listingID string, position int) *models.DirectoryPhoto {
	p := &models.DirectoryPhoto{
		ID:        uuid.New().String(),
		ListingID: listingID,
		TenantID:  m.listings[listingID].TenantID,
		URL:       "https://cdn.example.com/" + uuid.New().String() + ".jpg",
		Position:  position,
	}
	m.dirPhotos[p.ID] = p
	return p
}

func (m *memDirectory) positions(listingID string) map[string]int {
	out := map[string]int{}
	for _, p := range m.dirPhotos {
		if p.ListingID == listingID {
			out[p.ID] = p.Position
		}
	}
	return out
}

func (m *memDirectory) GetListing(_ context.Context, listingID string) (*models.DirectoryListing, error) {
	return m.listings[listingID], nil
}

func (m *memDirectory) ListByListing(_ context.Context, listingID string) ([]models.DirectoryPhoto, error) {
	var out []models.DirectoryPhoto
	for _, p := range m.dirPhotos {
		if p.ListingID == listingID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *memDirectory) CountByListing(_ context.Context, listingID string) (int, error) {
	return len(m.positions(listingID)), nil
}

func (m *memDirectory) GetByID(_ context.Context, id string) (*models.DirectoryPhoto, error) {
	p := m.dirPhotos[id]
	if p == nil {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memDirectory) Append(_ context.Context, p *models.DirectoryPhoto, maxPhotos int) error {
	if len(m.positions(p.ListingID)) >= maxPhotos {
		return repository.ErrPhotoLimitReached
	}
	next := 0
	for _, pos := range m.positions(p.ListingID) {
		if pos+1 > next {
			next = pos + 1
		}
	}
	p.Position = next
	cp := *p
	m.dirPhotos[p.ID] = &cp
	return nil
}

func (m *memDirectory) UpdateText(_ context.Context, id string, alt, caption *string) error {
	p := m.dirPhotos[id]
	if alt != nil {
		p.Alt = *alt
	}
	if caption != nil {
		p.Caption = *caption
	}
	return nil
}

func (m *memDirectory) MoveTo(_ context.Context, photo *models.DirectoryPhoto, newPosition int) error {
	for _, p := range m.dirPhotos {
		if p.ListingID == photo.ListingID && p.Position == newPosition && p.ID != photo.ID {
			p.Position = photo.Position
		}
	}
	m.dirPhotos[photo.ID].Position = newPosition
	return nil
}

func (m *memDirectory) DeleteAndRepack(ctx context.Context, photo *models.DirectoryPhoto) error {
	delete(m.dirPhotos, photo.ID)
	return m.Repack(ctx, photo.ListingID)
}

func (m *memDirectory) Reorder(_ context.Context, listingID string, updates []models.PositionUpdate) error {
	final := m.positions(listingID)
	listed := map[string]bool{}
	for _, u := range updates {
		if listed[u.ID] {
			return repository.ErrPositionConflict
		}
		listed[u.ID] = true
		if _, ok := final[u.ID]; !ok {
			return repository.ErrPhotoNotInListing
		}
		final[u.ID] = u.Position
	}
	seen := map[int]bool{}
	for _, pos := range final {
		if pos < 0 || pos >= len(final) || seen[pos] {
			return repository.ErrPositionConflict
		}
		seen[pos] = true
	}
	for id, pos := range final {
		m.dirPhotos[id].Position = pos
	}
	return nil
}

func (m *memDirectory) ListingsWithNegativePositions(_ context.Context) ([]string, error) {
	return m.negativeListings, nil
}

func (m *memDirectory) Repack(ctx context.Context, listingID string) error {
	m.repacked = append(m.repacked, listingID)
	photos, _ := m.ListByListing(ctx, listingID)
	sort.SliceStable(photos, func(i, j int) bool {
		ni, nj := photos[i].Position < 0, photos[j].Position < 0
		if ni != nj {
			return !ni
		}
		return photos[i].Position < photos[j].Position
	})
	for i, p := range photos {
		m.dirPhotos[p.ID].Position = i
	}
	return nil
}

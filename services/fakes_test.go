package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"propsync/models"
)

type memCache struct {
	mu      sync.Mutex
	records map[string]*models.RawRecord
	getErr  error
	putErr  error
	puts    int
}

func newMemCache() *memCache {
	return &memCache{records: make(map[string]*models.RawRecord)}
}

func cacheKey(agencyID int64, externalID string, p models.Provider) string {
	return fmt.Sprintf("%d/%s/%s", agencyID, externalID, p)
}

func (c *memCache) GetCached(ctx context.Context, agencyID int64, externalID string, p models.Provider) (*models.RawRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.records[cacheKey(agencyID, externalID, p)], nil
}

func (c *memCache) PutCached(ctx context.Context, rec *models.RawRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	if c.putErr != nil {
		return c.putErr
	}
	c.records[cacheKey(rec.AgencyID, rec.ExternalID, rec.Provider)] = rec
	return nil
}

func (c *memCache) get(agencyID int64, externalID string, p models.Provider) *models.RawRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records[cacheKey(agencyID, externalID, p)]
}

type stubFetcher struct {
	provider models.Provider
	tree     models.Tree
	err      error
	block    bool
	calls    int32
	lastID   atomic.Value
}

func (s *stubFetcher) Provider() models.Provider { return s.provider }

func (s *stubFetcher) Fetch(ctx context.Context, credential, externalID string) (models.Tree, error) {
	atomic.AddInt32(&s.calls, 1)
	s.lastID.Store(externalID)
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.tree, s.err
}

func (s *stubFetcher) callCount() int {
	return int(atomic.LoadInt32(&s.calls))
}

type memStore struct {
	mu          sync.Mutex
	agencies    map[int64]*models.Agency
	properties  map[int64][]models.Property
	mappings    []models.FieldMapping
	mappingsErr error
	countCalls  int
}

func newMemStore() *memStore {
	return &memStore{
		agencies:   make(map[int64]*models.Agency),
		properties: make(map[int64][]models.Property),
	}
}

func (m *memStore) GetAgency(ctx context.Context, id int64) (*models.Agency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.agencies[id], nil
}

func (m *memStore) ListAgencies(ctx context.Context) ([]models.Agency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Agency
	for id := int64(1); id <= int64(len(m.agencies)); id++ {
		if a := m.agencies[id]; a != nil {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memStore) UpdateAgencyPropertyCount(ctx context.Context, agencyID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.countCalls++
	if a := m.agencies[agencyID]; a != nil {
		a.TotalProperties = len(m.properties[agencyID])
	}
	return nil
}

func (m *memStore) GetProperty(ctx context.Context, agencyID int64, listReff string) (*models.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.properties[agencyID] {
		if p.ListReff == listReff {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListProperties(ctx context.Context, agencyID int64) ([]models.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Property(nil), m.properties[agencyID]...), nil
}

func (m *memStore) UpsertProperty(ctx context.Context, p *models.Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	props := m.properties[p.AgencyID]
	for i := range props {
		if props[i].ListReff == p.ListReff {
			p.ID = props[i].ID
			p.PrimarySource = props[i].PrimarySource
			props[i] = *p
			return nil
		}
	}
	p.ID = int64(len(props) + 1)
	p.UpdatedAt = time.Now()
	m.properties[p.AgencyID] = append(props, *p)
	return nil
}

func (m *memStore) ListFieldMappings(ctx context.Context) ([]models.FieldMapping, error) {
	if m.mappingsErr != nil {
		return nil, m.mappingsErr
	}
	return m.mappings, nil
}

type memFeed struct {
	items []models.Tree
	err   error
}

func (f *memFeed) ListAll(ctx context.Context, uniqueKey string) ([]models.Tree, error) {
	return f.items, f.err
}

type memRuns struct {
	mu       sync.Mutex
	created  []*models.SyncRun
	finished []*models.SyncRun
	logs     []string
}

func (r *memRuns) CreateSyncRun(ctx context.Context, run *models.SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, run)
	return nil
}

func (r *memRuns) FinishSyncRun(ctx context.Context, run *models.SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, run)
	return nil
}

func (r *memRuns) Log(runID string, level models.LogLevel, message, source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, fmt.Sprintf("[%s] %s", level, message))
	return nil
}

func strPtr(s string) *string { return &s }

func testAgency() *models.Agency {
	return &models.Agency{
		ID:                 1,
		UniqueKey:          "galway-homes",
		Name:               "Galway Homes",
		PrimarySource:      strPtr("daft,myhome"),
		AcquaintSitePrefix: "GAL",
		DaftAPIKey:         "daft-key",
		MyHomeAPIKey:       "mh-key",
	}
}

func testProperty() *models.Property {
	return &models.Property{
		ID:        10,
		AgencyID:  1,
		ListReff:  "GAL4521",
		Address:   "1 Main Street, Galway",
		Raw:       models.Tree{"ListReff": "GAL4521", "Price": "300000", "date": "2024-01-05T09:00:00Z"},
		UpdatedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

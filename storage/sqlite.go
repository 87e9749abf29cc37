package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"propsync/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agencies (
		id INTEGER PRIMARY KEY,
		unique_key TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		primary_source TEXT,
		acquaint_site_prefix TEXT NOT NULL DEFAULT '',
		daft_api_key TEXT NOT NULL DEFAULT '',
		myhome_api_key TEXT NOT NULL DEFAULT '',
		total_properties INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS properties (
		id INTEGER PRIMARY KEY,
		agency_id INTEGER NOT NULL,
		list_reff TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		primary_source TEXT,
		raw_data JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(agency_id, list_reff)
	);

	CREATE TABLE IF NOT EXISTS raw_records (
		agency_id INTEGER NOT NULL,
		external_id TEXT NOT NULL,
		provider TEXT NOT NULL,
		raw_data JSON NOT NULL,
		api_created_at DATETIME,
		api_modified_at DATETIME,
		last_fetched DATETIME NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (agency_id, external_id, provider)
	);

	CREATE TABLE IF NOT EXISTS sync_runs (
		id TEXT PRIMARY KEY,
		agency_id INTEGER,
		kind TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		synced INTEGER DEFAULT 0,
		errors INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS sync_logs (
		id INTEGER PRIMARY KEY,
		run_id TEXT,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		source TEXT
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS daft_sellers (
		daft_id TEXT PRIMARY KEY,
		name TEXT,
		phone TEXT,
		email TEXT,
		website TEXT,
		logo_url TEXT,
		last_scraped_at DATETIME,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS daft_listings (
		daft_id TEXT PRIMARY KEY,
		seller_id TEXT,
		title TEXT,
		price TEXT,
		address TEXT,
		property_type TEXT,
		bedrooms TEXT,
		bathrooms TEXT,
		ber_rating TEXT,
		image_urls JSON,
		latitude REAL,
		longitude REAL,
		published_date TEXT,
		location TEXT,
		fingerprint TEXT,
		raw_data JSON,
		last_scraped_at DATETIME,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS daft_scrape_log (
		id INTEGER PRIMARY KEY,
		scrape_type TEXT,
		sellers_scraped INTEGER,
		listings_scraped INTEGER,
		listings_added INTEGER,
		listings_updated INTEGER,
		duration_seconds INTEGER,
		error_count INTEGER,
		completed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_properties_agency ON properties(agency_id);
	CREATE INDEX IF NOT EXISTS idx_raw_records_fetched ON raw_records(provider, last_fetched);
	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_logs_run ON sync_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON sync_runs(status, started_at);
	CREATE INDEX IF NOT EXISTS idx_daft_listings_seller ON daft_listings(seller_id);
	CREATE INDEX IF NOT EXISTS idx_daft_sellers_scraped ON daft_sellers(last_scraped_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// Agencies and properties
// =============================================================================

const sqliteAgencyColumns = `id, unique_key, name, primary_source, acquaint_site_prefix,
	daft_api_key, myhome_api_key, total_properties, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteAgency(row rowScanner) (*models.Agency, error) {
	var a models.Agency
	var primary sql.NullString
	err := row.Scan(&a.ID, &a.UniqueKey, &a.Name, &primary, &a.AcquaintSitePrefix,
		&a.DaftAPIKey, &a.MyHomeAPIKey, &a.TotalProperties, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if primary.Valid {
		a.PrimarySource = &primary.String
	}
	return &a, nil
}

func (s *SQLiteStore) GetAgency(ctx context.Context, id int64) (*models.Agency, error) {
	a, err := scanSQLiteAgency(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteAgencyColumns+` FROM agencies WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agency %d: %w", id, err)
	}
	return a, nil
}

func (s *SQLiteStore) ListAgencies(ctx context.Context) ([]models.Agency, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteAgencyColumns+` FROM agencies ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agencies []models.Agency
	for rows.Next() {
		a, err := scanSQLiteAgency(rows)
		if err != nil {
			return nil, err
		}
		agencies = append(agencies, *a)
	}
	return agencies, rows.Err()
}

func (s *SQLiteStore) UpsertAgency(ctx context.Context, a *models.Agency) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agencies (unique_key, name, primary_source, acquaint_site_prefix, daft_api_key, myhome_api_key)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(unique_key) DO UPDATE SET
			name = excluded.name,
			primary_source = excluded.primary_source,
			acquaint_site_prefix = excluded.acquaint_site_prefix,
			daft_api_key = excluded.daft_api_key,
			myhome_api_key = excluded.myhome_api_key,
			updated_at = CURRENT_TIMESTAMP`,
		a.UniqueKey, a.Name, a.PrimarySource, a.AcquaintSitePrefix, a.DaftAPIKey, a.MyHomeAPIKey)
	if err != nil {
		return err
	}
	return s.db.QueryRowContext(ctx, `SELECT id, created_at, updated_at FROM agencies WHERE unique_key = ?`, a.UniqueKey).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

func (s *SQLiteStore) UpdateAgencyPropertyCount(ctx context.Context, agencyID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE agencies SET
			total_properties = (SELECT COUNT(*) FROM properties WHERE agency_id = ?),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, agencyID, agencyID)
	return err
}

const sqlitePropertyColumns = `id, agency_id, list_reff, address, primary_source, raw_data, created_at, updated_at`

func scanSQLiteProperty(row rowScanner) (*models.Property, error) {
	var p models.Property
	var primary, raw sql.NullString
	if err := row.Scan(&p.ID, &p.AgencyID, &p.ListReff, &p.Address, &primary, &raw, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if primary.Valid {
		p.PrimarySource = &primary.String
	}
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &p.Raw); err != nil {
			return nil, fmt.Errorf("decode property %s: %w", p.ListReff, err)
		}
	}
	return &p, nil
}

func (s *SQLiteStore) GetProperty(ctx context.Context, agencyID int64, listReff string) (*models.Property, error) {
	p, err := scanSQLiteProperty(s.db.QueryRowContext(ctx,
		`SELECT `+sqlitePropertyColumns+` FROM properties WHERE agency_id = ? AND list_reff = ?`, agencyID, listReff))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get property %s: %w", listReff, err)
	}
	return p, nil
}

func (s *SQLiteStore) ListProperties(ctx context.Context, agencyID int64) ([]models.Property, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqlitePropertyColumns+` FROM properties WHERE agency_id = ? ORDER BY id`, agencyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var props []models.Property
	for rows.Next() {
		p, err := scanSQLiteProperty(rows)
		if err != nil {
			return nil, err
		}
		props = append(props, *p)
	}
	return props, rows.Err()
}

// UpsertProperty stores the internal feed record, keeping any operator override.
func (s *SQLiteStore) UpsertProperty(ctx context.Context, p *models.Property) error {
	raw, err := json.Marshal(p.Raw)
	if err != nil {
		return fmt.Errorf("encode property %s: %w", p.ListReff, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO properties (agency_id, list_reff, address, primary_source, raw_data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(agency_id, list_reff) DO UPDATE SET
			address = COALESCE(NULLIF(excluded.address, ''), properties.address),
			raw_data = excluded.raw_data,
			updated_at = CURRENT_TIMESTAMP`,
		p.AgencyID, p.ListReff, p.Address, p.PrimarySource, string(raw))
	if err != nil {
		return err
	}

	stored, err := s.GetProperty(ctx, p.AgencyID, p.ListReff)
	if err != nil {
		return err
	}
	if stored != nil {
		p.ID = stored.ID
		p.PrimarySource = stored.PrimarySource
		p.CreatedAt = stored.CreatedAt
		p.UpdatedAt = stored.UpdatedAt
	}
	return nil
}

// SetPropertyPrimarySource sets or clears (nil) the property-level override.
func (s *SQLiteStore) SetPropertyPrimarySource(ctx context.Context, propertyID int64, csv *string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE properties SET primary_source = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, csv, propertyID)
	return err
}

// =============================================================================
// Raw record cache
// =============================================================================

func (s *SQLiteStore) GetCached(ctx context.Context, agencyID int64, externalID string, p models.Provider) (*models.RawRecord, error) {
	var raw string
	var created, modified sql.NullTime
	rec := &models.RawRecord{AgencyID: agencyID, ExternalID: externalID, Provider: p}

	err := s.db.QueryRowContext(ctx, `
		SELECT raw_data, last_fetched, api_created_at, api_modified_at
		FROM raw_records WHERE agency_id = ? AND external_id = ? AND provider = ?`,
		agencyID, externalID, p).Scan(&raw, &rec.LastFetched, &created, &modified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached %s/%s: %w", p, externalID, err)
	}

	if err := json.Unmarshal([]byte(raw), &rec.Data); err != nil {
		return nil, fmt.Errorf("decode cached %s/%s: %w", p, externalID, err)
	}
	if created.Valid {
		rec.APICreatedAt = &created.Time
	}
	if modified.Valid {
		rec.APIModifiedAt = &modified.Time
	}
	return rec, nil
}

// PutCached replaces the cached record in full.
func (s *SQLiteStore) PutCached(ctx context.Context, rec *models.RawRecord) error {
	raw, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", rec.Provider, rec.ExternalID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO raw_records (agency_id, external_id, provider, raw_data, api_created_at, api_modified_at, last_fetched, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(agency_id, external_id, provider) DO UPDATE SET
			raw_data = excluded.raw_data,
			api_created_at = excluded.api_created_at,
			api_modified_at = excluded.api_modified_at,
			last_fetched = excluded.last_fetched,
			updated_at = CURRENT_TIMESTAMP`,
		rec.AgencyID, rec.ExternalID, rec.Provider, string(raw), rec.APICreatedAt, rec.APIModifiedAt, rec.LastFetched)
	if err != nil {
		return fmt.Errorf("put cached %s/%s: %w", rec.Provider, rec.ExternalID, err)
	}
	return nil
}

// CountStale counts cached records of a provider last fetched before cutoff.
func (s *SQLiteStore) CountStale(ctx context.Context, provider models.Provider, cutoff time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM raw_records WHERE provider = ? AND last_fetched < ?`,
		provider, cutoff).Scan(&n)
	return n, err
}

// =============================================================================
// Sync runs and logs
// =============================================================================

func (s *SQLiteStore) CreateSyncRun(ctx context.Context, run *models.SyncRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, agency_id, kind, started_at, status, synced, errors, skipped)
		VALUES (?, ?, ?, ?, ?, 0, 0, 0)`,
		run.ID.String(), run.AgencyID, run.Kind, run.StartedAt, run.Status)
	return err
}

func (s *SQLiteStore) FinishSyncRun(ctx context.Context, run *models.SyncRun) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_runs SET finished_at = ?, status = ?, synced = ?, errors = ?, skipped = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.Synced, run.Errors, run.Skipped, run.ID.String())
	return err
}

// GetLastRunTime returns the start of the newest completed run of a kind,
// the zero time when there is none.
func (s *SQLiteStore) GetLastRunTime(ctx context.Context, kind string) (time.Time, error) {
	var lastRun time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT started_at FROM sync_runs WHERE kind = ? AND status = ?
		ORDER BY started_at DESC LIMIT 1`,
		kind, models.RunStatusCompleted).Scan(&lastRun)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	return lastRun, err
}

func (s *SQLiteStore) Log(runID string, level models.LogLevel, message, source string) error {
	_, err := s.db.Exec(`
		INSERT INTO sync_logs (run_id, timestamp, level, message, source)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, source)
	return err
}

func (s *SQLiteStore) GetRunLogs(runID string) ([]models.SyncLog, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, level, message, source
		FROM sync_logs WHERE run_id = ? ORDER BY timestamp, id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.SyncLog
	for rows.Next() {
		var l models.SyncLog
		if err := rows.Scan(&l.ID, &l.RunID, &l.Timestamp, &l.Level, &l.Message, &l.Source); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// =============================================================================
// Commands
// =============================================================================

func (s *SQLiteStore) EnqueueCommand(cmd models.CommandType, params *models.CommandParams) (int64, error) {
	var raw any
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return 0, err
		}
		raw = string(data)
	}
	result, err := s.db.Exec(`INSERT INTO commands (command, params) VALUES (?, ?)`, cmd, raw)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, params, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params sql.NullString
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt, &cmd.ProcessedAt); err != nil {
			return nil, err
		}
		if params.Valid {
			cmd.Params = json.RawMessage(params.String)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func (s *SQLiteStore) ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	var params models.CommandParams
	if len(cmd.Params) == 0 {
		return &params, nil
	}
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return nil, err
	}
	return &params, nil
}

// =============================================================================
// Daft market
// =============================================================================

func (s *SQLiteStore) UpsertDaftSeller(seller *models.DaftSeller) error {
	_, err := s.db.Exec(`
		INSERT INTO daft_sellers (daft_id, name, phone, email, website, logo_url, last_scraped_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(daft_id) DO UPDATE SET
			name = excluded.name,
			phone = COALESCE(NULLIF(excluded.phone, ''), daft_sellers.phone),
			email = COALESCE(NULLIF(excluded.email, ''), daft_sellers.email),
			website = COALESCE(NULLIF(excluded.website, ''), daft_sellers.website),
			logo_url = COALESCE(NULLIF(excluded.logo_url, ''), daft_sellers.logo_url),
			last_scraped_at = excluded.last_scraped_at,
			updated_at = CURRENT_TIMESTAMP`,
		seller.DaftID, seller.Name, seller.Phone, seller.Email, seller.Website, seller.LogoURL, time.Now())
	return err
}

// UpsertDaftListing stores a scraped listing and reports whether it was new
// and whether its content changed since the last scrape.
func (s *SQLiteStore) UpsertDaftListing(l *models.DaftListing) (isNew, changed bool, err error) {
	var previous sql.NullString
	err = s.db.QueryRow(`SELECT fingerprint FROM daft_listings WHERE daft_id = ?`, l.DaftID).Scan(&previous)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, false, err
	}
	isNew = errors.Is(err, sql.ErrNoRows)
	changed = isNew || previous.String != l.Fingerprint

	images, err := json.Marshal(l.Images)
	if err != nil {
		return false, false, err
	}
	var raw any
	if len(l.RawData) > 0 {
		raw = string(l.RawData)
	}

	_, err = s.db.Exec(`
		INSERT INTO daft_listings (
			daft_id, seller_id, title, price, address, property_type, bedrooms, bathrooms,
			ber_rating, image_urls, latitude, longitude, published_date, location, fingerprint,
			raw_data, last_scraped_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(daft_id) DO UPDATE SET
			seller_id = excluded.seller_id,
			title = excluded.title,
			price = excluded.price,
			address = excluded.address,
			property_type = excluded.property_type,
			bedrooms = excluded.bedrooms,
			bathrooms = excluded.bathrooms,
			ber_rating = excluded.ber_rating,
			image_urls = excluded.image_urls,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			published_date = excluded.published_date,
			location = excluded.location,
			fingerprint = excluded.fingerprint,
			raw_data = excluded.raw_data,
			last_scraped_at = excluded.last_scraped_at,
			updated_at = CURRENT_TIMESTAMP`,
		l.DaftID, l.SellerID, l.Title, l.Price, l.Address, l.PropertyType, l.Bedrooms, l.Bathrooms,
		l.BERRating, string(images), l.Latitude, l.Longitude, l.PublishDate, l.Location, l.Fingerprint,
		raw, l.LastScrapedAt)
	if err != nil {
		return false, false, err
	}
	return isNew, changed, nil
}

func (s *SQLiteStore) CountDaftListings(sellerID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM daft_listings WHERE seller_id = ?`, sellerID).Scan(&n)
	return n, err
}

// OldestDaftSellers returns the sellers whose listings were checked longest ago.
func (s *SQLiteStore) OldestDaftSellers(limit int) ([]models.DaftSeller, error) {
	rows, err := s.db.Query(`
		SELECT daft_id, name, COALESCE(phone, ''), COALESCE(email, ''), COALESCE(website, ''), COALESCE(logo_url, '')
		FROM daft_sellers ORDER BY last_scraped_at LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sellers []models.DaftSeller
	for rows.Next() {
		var d models.DaftSeller
		if err := rows.Scan(&d.DaftID, &d.Name, &d.Phone, &d.Email, &d.Website, &d.LogoURL); err != nil {
			return nil, err
		}
		sellers = append(sellers, d)
	}
	return sellers, rows.Err()
}

func (s *SQLiteStore) TouchDaftSeller(daftID string) error {
	_, err := s.db.Exec(`UPDATE daft_sellers SET last_scraped_at = ? WHERE daft_id = ?`, time.Now(), daftID)
	return err
}

func (s *SQLiteStore) InsertMarketScrapeLog(r *models.MarketScrapeResult) error {
	completed := r.CompletedAt
	if completed.IsZero() {
		completed = time.Now()
	}
	completed = completed.UTC()

	_, err := s.db.Exec(`
		INSERT INTO daft_scrape_log (
			scrape_type, sellers_scraped, listings_scraped, listings_added, listings_updated,
			duration_seconds, error_count, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Mode, r.Sellers, r.Listings, r.Added, r.Updated, int(r.Duration.Seconds()), r.Errors, completed)
	return err
}

// LastMarketScrape returns the most recently completed Daft market scrape, nil if none.
func (s *SQLiteStore) LastMarketScrape() (*models.MarketScrapeResult, error) {
	var r models.MarketScrapeResult
	var seconds int
	err := s.db.QueryRow(`
		SELECT scrape_type, sellers_scraped, listings_scraped, listings_added, listings_updated,
			duration_seconds, error_count, completed_at
		FROM daft_scrape_log ORDER BY completed_at DESC, id DESC LIMIT 1`).Scan(
		&r.Mode, &r.Sellers, &r.Listings, &r.Added, &r.Updated, &seconds, &r.Errors, &r.CompletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last market scrape: %w", err)
	}
	r.Duration = time.Duration(seconds) * time.Second
	return &r, nil
}

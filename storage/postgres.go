package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"propsync/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// rawTables maps each provider to its raw record cache table.
var rawTables = map[models.Provider]string{
	models.ProviderPropertyDrive: "wordpress_properties",
	models.ProviderAcquaint:      "acquaint_properties",
	models.ProviderDaft:          "daft_properties",
	models.ProviderMyHome:        "myhome_properties",
}

func rawTable(p models.Provider) (string, error) {
	table, ok := rawTables[p]
	if !ok {
		return "", fmt.Errorf("no cache table for provider %q", p)
	}
	return table, nil
}

// Migrate creates the tables this service owns when they are missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS agencies (
		id BIGSERIAL PRIMARY KEY,
		unique_key TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		primary_source TEXT,
		acquaint_site_prefix TEXT NOT NULL DEFAULT '',
		daft_api_key TEXT NOT NULL DEFAULT '',
		myhome_api_key TEXT NOT NULL DEFAULT '',
		total_properties INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS properties (
		id BIGSERIAL PRIMARY KEY,
		agency_id BIGINT NOT NULL REFERENCES agencies(id),
		list_reff TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		primary_source TEXT,
		raw_data JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (agency_id, list_reff)
	);

	CREATE TABLE IF NOT EXISTS field_mappings (
		id BIGSERIAL PRIMARY KEY,
		field_name TEXT NOT NULL UNIQUE,
		"order" INTEGER NOT NULL DEFAULT 0,
		propertydrive TEXT NOT NULL DEFAULT '',
		acquaint_crm TEXT NOT NULL DEFAULT '',
		daft TEXT NOT NULL DEFAULT '',
		myhome TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS sync_runs (
		id UUID PRIMARY KEY,
		agency_id BIGINT,
		kind TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		status TEXT NOT NULL,
		synced INTEGER NOT NULL DEFAULT 0,
		errors INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0
	);
	`
	for _, table := range rawTables {
		schema += fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id BIGSERIAL PRIMARY KEY,
		agency_id BIGINT NOT NULL,
		external_id TEXT NOT NULL,
		raw_data JSONB NOT NULL,
		api_created_at TIMESTAMPTZ,
		api_modified_at TIMESTAMPTZ,
		last_fetched TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (agency_id, external_id)
	);
	`, table)
	}

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// =============================================================================
// Agencies
// =============================================================================

const agencyColumns = `id, unique_key, name, primary_source, acquaint_site_prefix,
	daft_api_key, myhome_api_key, total_properties, created_at, updated_at`

func scanAgency(row pgx.Row) (*models.Agency, error) {
	var a models.Agency
	err := row.Scan(
		&a.ID, &a.UniqueKey, &a.Name, &a.PrimarySource, &a.AcquaintSitePrefix,
		&a.DaftAPIKey, &a.MyHomeAPIKey, &a.TotalProperties, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) GetAgency(ctx context.Context, id int64) (*models.Agency, error) {
	a, err := scanAgency(s.pool.QueryRow(ctx, `SELECT `+agencyColumns+` FROM agencies WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agency %d: %w", id, err)
	}
	return a, nil
}

func (s *PostgresStore) ListAgencies(ctx context.Context) ([]models.Agency, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+agencyColumns+` FROM agencies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list agencies: %w", err)
	}
	defer rows.Close()

	var agencies []models.Agency
	for rows.Next() {
		a, err := scanAgency(rows)
		if err != nil {
			return nil, err
		}
		agencies = append(agencies, *a)
	}
	return agencies, rows.Err()
}

func (s *PostgresStore) UpsertAgency(ctx context.Context, a *models.Agency) error {
	query := `
		INSERT INTO agencies (unique_key, name, primary_source, acquaint_site_prefix, daft_api_key, myhome_api_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (unique_key) DO UPDATE SET
			name = EXCLUDED.name,
			primary_source = EXCLUDED.primary_source,
			acquaint_site_prefix = EXCLUDED.acquaint_site_prefix,
			daft_api_key = EXCLUDED.daft_api_key,
			myhome_api_key = EXCLUDED.myhome_api_key,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	return s.pool.QueryRow(ctx, query,
		a.UniqueKey, a.Name, a.PrimarySource, a.AcquaintSitePrefix, a.DaftAPIKey, a.MyHomeAPIKey,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

func (s *PostgresStore) UpdateAgencyPropertyCount(ctx context.Context, agencyID int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE agencies SET
			total_properties = (SELECT COUNT(*) FROM properties WHERE agency_id = $1),
			updated_at = NOW()
		WHERE id = $1`, agencyID)
	return err
}

// =============================================================================
// Properties
// =============================================================================

const propertyColumns = `id, agency_id, list_reff, address, primary_source, raw_data, created_at, updated_at`

func scanProperty(row pgx.Row) (*models.Property, error) {
	var p models.Property
	err := row.Scan(&p.ID, &p.AgencyID, &p.ListReff, &p.Address, &p.PrimarySource, &p.Raw, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) GetProperty(ctx context.Context, agencyID int64, listReff string) (*models.Property, error) {
	p, err := scanProperty(s.pool.QueryRow(ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE agency_id = $1 AND list_reff = $2`, agencyID, listReff))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get property %s: %w", listReff, err)
	}
	return p, nil
}

func (s *PostgresStore) ListProperties(ctx context.Context, agencyID int64) ([]models.Property, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE agency_id = $1 ORDER BY id`, agencyID)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	defer rows.Close()

	var props []models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		props = append(props, *p)
	}
	return props, rows.Err()
}

// UpsertProperty stores the internal feed record. The property-level primary
// source override is operator data and is never overwritten by the feed.
func (s *PostgresStore) UpsertProperty(ctx context.Context, p *models.Property) error {
	query := `
		INSERT INTO properties (agency_id, list_reff, address, primary_source, raw_data)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (agency_id, list_reff) DO UPDATE SET
			address = COALESCE(NULLIF(EXCLUDED.address, ''), properties.address),
			raw_data = EXCLUDED.raw_data,
			updated_at = NOW()
		RETURNING id, primary_source, created_at, updated_at`

	return s.pool.QueryRow(ctx, query,
		p.AgencyID, p.ListReff, p.Address, p.PrimarySource, p.Raw,
	).Scan(&p.ID, &p.PrimarySource, &p.CreatedAt, &p.UpdatedAt)
}

// =============================================================================
// Field Mappings
// =============================================================================

func (s *PostgresStore) ListFieldMappings(ctx context.Context) ([]models.FieldMapping, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, field_name, "order", propertydrive, acquaint_crm, daft, myhome
		FROM field_mappings ORDER BY "order", id`)
	if err != nil {
		return nil, fmt.Errorf("list field mappings: %w", err)
	}
	defer rows.Close()

	var mappings []models.FieldMapping
	for rows.Next() {
		var m models.FieldMapping
		if err := rows.Scan(&m.ID, &m.FieldName, &m.Order, &m.PropertyDrive, &m.AcquaintCRM, &m.Daft, &m.MyHome); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

// ReplaceFieldMappings swaps the whole mapping table in one transaction.
func (s *PostgresStore) ReplaceFieldMappings(ctx context.Context, mappings []models.FieldMapping) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM field_mappings`); err != nil {
		return fmt.Errorf("clear field mappings: %w", err)
	}

	batch := &pgx.Batch{}
	for _, m := range mappings {
		batch.Queue(`
			INSERT INTO field_mappings (field_name, "order", propertydrive, acquaint_crm, daft, myhome)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			m.FieldName, m.Order, m.PropertyDrive, m.AcquaintCRM, m.Daft, m.MyHome)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert field mappings: %w", err)
	}

	return tx.Commit(ctx)
}

// =============================================================================
// Raw Record Cache
// =============================================================================

func (s *PostgresStore) GetCached(ctx context.Context, agencyID int64, externalID string, p models.Provider) (*models.RawRecord, error) {
	table, err := rawTable(p)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT raw_data, last_fetched, api_created_at, api_modified_at
		FROM %s WHERE agency_id = $1 AND external_id = $2`, table)

	rec := &models.RawRecord{AgencyID: agencyID, ExternalID: externalID, Provider: p}
	err = s.pool.QueryRow(ctx, query, agencyID, externalID).Scan(
		&rec.Data, &rec.LastFetched, &rec.APICreatedAt, &rec.APIModifiedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached %s/%s: %w", p, externalID, err)
	}
	return rec, nil
}

// PutCached replaces the cached record for (agency, external id) in full.
func (s *PostgresStore) PutCached(ctx context.Context, rec *models.RawRecord) error {
	table, err := rawTable(rec.Provider)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (agency_id, external_id, raw_data, api_created_at, api_modified_at, last_fetched, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (agency_id, external_id) DO UPDATE SET
			raw_data = EXCLUDED.raw_data,
			api_created_at = EXCLUDED.api_created_at,
			api_modified_at = EXCLUDED.api_modified_at,
			last_fetched = EXCLUDED.last_fetched,
			updated_at = NOW()`, table)

	_, err = s.pool.Exec(ctx, query,
		rec.AgencyID, rec.ExternalID, rec.Data, rec.APICreatedAt, rec.APIModifiedAt, rec.LastFetched,
	)
	if err != nil {
		return fmt.Errorf("put cached %s/%s: %w", rec.Provider, rec.ExternalID, err)
	}
	return nil
}

// CountStale counts cached records of a provider last fetched before cutoff.
func (s *PostgresStore) CountStale(ctx context.Context, p models.Provider, cutoff time.Time) (int, error) {
	table, err := rawTable(p)
	if err != nil {
		return 0, err
	}

	var n int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE last_fetched < $1`, table)
	if err := s.pool.QueryRow(ctx, query, cutoff).Scan(&n); err != nil {
		return 0, fmt.Errorf("count stale %s: %w", p, err)
	}
	return n, nil
}

// =============================================================================
// Sync Runs
// =============================================================================

// GetLastRunTime returns the start of the newest completed run of a kind,
// the zero time when there is none.
func (s *PostgresStore) GetLastRunTime(ctx context.Context, kind string) (time.Time, error) {
	var lastRun time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT started_at FROM sync_runs WHERE kind = $1 AND status = $2
		ORDER BY started_at DESC LIMIT 1`,
		kind, models.RunStatusCompleted).Scan(&lastRun)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("last %s run: %w", kind, err)
	}
	return lastRun, nil
}

func (s *PostgresStore) CreateSyncRun(ctx context.Context, run *models.SyncRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_runs (id, agency_id, kind, started_at, status)
		VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.AgencyID, run.Kind, run.StartedAt, run.Status)
	return err
}

func (s *PostgresStore) FinishSyncRun(ctx context.Context, run *models.SyncRun) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sync_runs SET
			finished_at = $2, status = $3, synced = $4, errors = $5, skipped = $6
		WHERE id = $1`,
		run.ID, run.FinishedAt, run.Status, run.Synced, run.Errors, run.Skipped)
	return err
}

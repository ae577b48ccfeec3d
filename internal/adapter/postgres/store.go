// Package postgres stores sites and the insert-only snapshot history in
// PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/mapshield-weather/internal/domain"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS sites (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	polygon     JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS weather_data (
	id                        TEXT PRIMARY KEY,
	site_id                   TEXT NOT NULL,
	site_name                 TEXT NOT NULL,
	temperature               DOUBLE PRECISION NOT NULL,
	precipitation_probability DOUBLE PRECISION NOT NULL,
	wind_speed                TEXT NOT NULL,
	short_forecast            TEXT NOT NULL DEFAULT '',
	alerts                    JSONB NOT NULL,
	risk_score                DOUBLE PRECISION NOT NULL,
	risk_level                TEXT NOT NULL,
	risk_color                TEXT NOT NULL,
	risk_strategy             TEXT NOT NULL,
	supported                 BOOLEAN NOT NULL,
	created_at                TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS weather_data_site_created_idx
	ON weather_data (site_id, created_at DESC);
`

const snapshotColumns = `id, site_id, site_name, temperature, precipitation_probability,
	wind_speed, short_forecast, alerts, risk_score, risk_level, risk_color,
	risk_strategy, supported, created_at`

// Store implements pipeline.SiteStore and pipeline.SnapshotStore.
type Store struct {
	db *sqlx.DB
}

// Open connects to dsn, retrying with exponential backoff up to attempts
// times while the database comes up.
func Open(ctx context.Context, dsn string, attempts int) (*sqlx.DB, error) {
	if attempts < 1 {
		attempts = 1
	}
	backoff := 500 * time.Millisecond

	var lastErr error
	for i := 0; i < attempts; i++ {
		db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
		if err == nil {
			db.SetMaxOpenConns(10)
			db.SetConnMaxIdleTime(5 * time.Minute)
			return db, nil
		}
		lastErr = err
		if i == attempts-1 || !retry.SleepWithContext(ctx, backoff) {
			break
		}
		backoff = retry.NextBackoff(backoff, 5*time.Second)
	}
	return nil, fmt.Errorf("connect postgres: %w", lastErr)
}

// NewStore wraps an open database.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Ping checks connectivity. It satisfies the readiness checker.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) CreateSite(ctx context.Context, site domain.Site) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO sites (id, name, description, polygon, created_at, updated_at)
		VALUES (:id, :name, :description, :polygon, :created_at, :updated_at)`,
		toSiteRow(site))
	return err
}

func (s *Store) GetSite(ctx context.Context, id string) (domain.Site, error) {
	var row siteRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, name, description, polygon, created_at, updated_at
		FROM sites WHERE id = $1`, id)
	if err != nil {
		return domain.Site{}, notFound(err)
	}
	return row.toDomain(), nil
}

// ListSites returns sites newest first.
func (s *Store) ListSites(ctx context.Context) ([]domain.Site, error) {
	var rows []siteRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, description, polygon, created_at, updated_at
		FROM sites ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Site, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) UpdateSite(ctx context.Context, site domain.Site) error {
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE sites SET name = :name, description = :description,
			polygon = :polygon, updated_at = :updated_at
		WHERE id = :id`, toSiteRow(site))
	if err != nil {
		return err
	}
	return expectRow(res)
}

func (s *Store) DeleteSite(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sites WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func (s *Store) CreateSnapshot(ctx context.Context, snap domain.SiteWeatherSnapshot) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO weather_data (`+snapshotColumns+`)
		VALUES (:id, :site_id, :site_name, :temperature, :precipitation_probability,
			:wind_speed, :short_forecast, :alerts, :risk_score, :risk_level, :risk_color,
			:risk_strategy, :supported, :created_at)`,
		toSnapshotRow(snap))
	return err
}

func (s *Store) LatestSnapshot(ctx context.Context, siteID string) (domain.SiteWeatherSnapshot, error) {
	var row snapshotRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+snapshotColumns+` FROM weather_data
		WHERE site_id = $1 ORDER BY created_at DESC LIMIT 1`, siteID)
	if err != nil {
		return domain.SiteWeatherSnapshot{}, notFound(err)
	}
	return row.toDomain(), nil
}

func (s *Store) AllLatestSnapshots(ctx context.Context) ([]domain.SiteWeatherSnapshot, error) {
	var rows []snapshotRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT DISTINCT ON (site_id) `+snapshotColumns+` FROM weather_data
		ORDER BY site_id, created_at DESC`)
	if err != nil {
		return nil, err
	}
	return snapshotsToDomain(rows), nil
}

// SnapshotHistory returns snapshots created at or after since, newest first.
func (s *Store) SnapshotHistory(ctx context.Context, siteID string, since time.Time) ([]domain.SiteWeatherSnapshot, error) {
	var rows []snapshotRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+snapshotColumns+` FROM weather_data
		WHERE site_id = $1 AND created_at >= $2
		ORDER BY created_at DESC`, siteID, since)
	if err != nil {
		return nil, err
	}
	return snapshotsToDomain(rows), nil
}

func (s *Store) DeleteSnapshotsBySite(ctx context.Context, siteID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM weather_data WHERE site_id = $1`, siteID)
	return err
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Package store persists the engine's records in SQLite. Every record is a
// JSON document under a key with last-write-wins semantics, which is all the
// core contract requires; SQLite additionally gives the archive table its
// append-only guarantee via INSERT OR IGNORE on a (day, report_id) key.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/parkcheck/conditions-engine/internal/domain"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS sites (
	slug TEXT PRIMARY KEY,
	doc  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS site_conditions (
	slug       TEXT PRIMARY KEY,
	doc        TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS reporter_stats (
	id  INTEGER PRIMARY KEY CHECK (id = 1),
	doc TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS weather (
	id  INTEGER PRIMARY KEY CHECK (id = 1),
	doc TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS dry_estimates (
	id  INTEGER PRIMARY KEY CHECK (id = 1),
	doc TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS report_archive (
	day       TEXT NOT NULL,
	site      TEXT NOT NULL,
	report_id TEXT NOT NULL,
	doc       TEXT NOT NULL,
	PRIMARY KEY (day, report_id)
);
`

// Store wraps the SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path and ensures the schema.
// Use ":memory:" for an ephemeral store in tests.
func Open(path string, logger *slog.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	if path == ":memory:" {
		dsn = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// ── Sites ──

// PutSite upserts a park's static attributes.
func (s *Store) PutSite(ctx context.Context, site domain.Site) error {
	doc, err := json.Marshal(site)
	if err != nil {
		return fmt.Errorf("marshal site: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sites(slug, doc) VALUES (?, ?) ON CONFLICT(slug) DO UPDATE SET doc = excluded.doc`,
		site.Slug, string(doc))
	return err
}

// GetSite returns a site's static attributes.
func (s *Store) GetSite(ctx context.Context, slug string) (domain.Site, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM sites WHERE slug = ?`, slug).Scan(&doc)
	if err == sql.ErrNoRows {
		return domain.Site{}, ErrNotFound
	}
	if err != nil {
		return domain.Site{}, err
	}
	var site domain.Site
	if err := json.Unmarshal([]byte(doc), &site); err != nil {
		return domain.Site{}, fmt.Errorf("unmarshal site %s: %w", slug, err)
	}
	return site, nil
}

// HasSite answers whether a park slug exists, the validator's knownSite
// check. A lookup failure is reported as an error, never as absence.
func (s *Store) HasSite(ctx context.Context, slug string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sites WHERE slug = ?`, slug).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query site %s: %w", slug, err)
	}
	return true, nil
}

// ListSites returns every site ordered by slug.
func (s *Store) ListSites(ctx context.Context) ([]domain.Site, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM sites ORDER BY slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []domain.Site
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var site domain.Site
		if err := json.Unmarshal([]byte(doc), &site); err != nil {
			return nil, fmt.Errorf("unmarshal site: %w", err)
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// ── Site conditions ──

// GetConditions loads a site's conditions record. Reports read back from
// storage are re-checked against the field invariants: an out-of-range value
// is an internal inconsistency, nulled and logged rather than propagated.
func (s *Store) GetConditions(ctx context.Context, slug string) (*domain.SiteConditions, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM site_conditions WHERE slug = ?`, slug).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var cond domain.SiteConditions
	if err := json.Unmarshal([]byte(doc), &cond); err != nil {
		return nil, fmt.Errorf("unmarshal conditions %s: %w", slug, err)
	}
	for i, r := range cond.Reports {
		clean, repaired := domain.SanitizeReport(r)
		if repaired {
			s.logger.Warn("repaired out-of-range report fields on read",
				"site", slug, "report_id", r.ID)
			cond.Reports[i] = clean
		}
	}
	return &cond, nil
}

// PutConditions upserts a site's conditions record, last write wins.
func (s *Store) PutConditions(ctx context.Context, cond *domain.SiteConditions) error {
	doc, err := json.Marshal(cond)
	if err != nil {
		return fmt.Errorf("marshal conditions %s: %w", cond.Slug, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO site_conditions(slug, doc, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(slug) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		cond.Slug, string(doc), cond.UpdatedAt.UTC().Format(time.RFC3339))
	return err
}

// ── Reporter stats ledger ──

// GetLedger loads the global reputation ledger, or an empty one if none has
// been written yet.
func (s *Store) GetLedger(ctx context.Context) (*domain.StatsLedger, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM reporter_stats WHERE id = 1`).Scan(&doc)
	if err == sql.ErrNoRows {
		return &domain.StatsLedger{Reporters: []*domain.ReporterProfile{}}, nil
	}
	if err != nil {
		return nil, err
	}
	var ledger domain.StatsLedger
	if err := json.Unmarshal([]byte(doc), &ledger); err != nil {
		return nil, fmt.Errorf("unmarshal ledger: %w", err)
	}
	return &ledger, nil
}

// PutLedger persists the global reputation ledger.
func (s *Store) PutLedger(ctx context.Context, ledger *domain.StatsLedger) error {
	doc, err := json.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reporter_stats(id, doc) VALUES (1, ?) ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`,
		string(doc))
	return err
}

// ── Weather snapshot and dry estimates (singletons) ──

// GetWeather returns the most recent snapshot, or ErrNotFound before the
// first successful fetch.
func (s *Store) GetWeather(ctx context.Context) (*domain.WeatherSnapshot, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM weather WHERE id = 1`).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var snap domain.WeatherSnapshot
	if err := json.Unmarshal([]byte(doc), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal weather: %w", err)
	}
	return &snap, nil
}

// PutWeather replaces the stored snapshot.
func (s *Store) PutWeather(ctx context.Context, snap *domain.WeatherSnapshot) error {
	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal weather: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO weather(id, doc) VALUES (1, ?) ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`,
		string(doc))
	return err
}

// GetEstimates returns the latest dry-out output document.
func (s *Store) GetEstimates(ctx context.Context) (*domain.DryEstimates, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM dry_estimates WHERE id = 1`).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var est domain.DryEstimates
	if err := json.Unmarshal([]byte(doc), &est); err != nil {
		return nil, fmt.Errorf("unmarshal estimates: %w", err)
	}
	return &est, nil
}

// PutEstimates replaces the dry-out output document.
func (s *Store) PutEstimates(ctx context.Context, est *domain.DryEstimates) error {
	doc, err := json.Marshal(est)
	if err != nil {
		return fmt.Errorf("marshal estimates: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dry_estimates(id, doc) VALUES (1, ?) ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`,
		string(doc))
	return err
}

// ── Report archive ──

// AppendArchive writes aged-out reports to permanent per-day storage, keyed
// by each report's own UTC submission day. Writes are append-only: a report
// id already archived for that day is left untouched, so repeated sweeps
// never overwrite prior entries.
func (s *Store) AppendArchive(ctx context.Context, site string, reports []domain.Report) error {
	if len(reports) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, r := range reports {
		doc, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal archived report %s: %w", r.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO report_archive(day, site, report_id, doc) VALUES (?, ?, ?, ?)`,
			domain.ArchiveDay(r), site, r.ID, string(doc)); err != nil {
			return fmt.Errorf("archive report %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// ArchivedDay returns every archived report for a UTC day key (YYYY/MM/DD).
func (s *Store) ArchivedDay(ctx context.Context, day string) ([]domain.Report, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM report_archive WHERE day = ? ORDER BY report_id`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []domain.Report
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var r domain.Report
		if err := json.Unmarshal([]byte(doc), &r); err != nil {
			return nil, fmt.Errorf("unmarshal archived report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

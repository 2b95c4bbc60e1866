// Package store persists marker targets and scan history in sqlite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/soocke/marker-lens-go/analytics"
	"github.com/soocke/marker-lens-go/domain/recognition"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// TargetRecord is one marker definition as stored.
type TargetRecord struct {
	ID             string                  `json:"id"`
	Name           string                  `json:"name,omitempty"`
	MarkerImageURL string                  `json:"marker_image_url"`
	ContentURL     string                  `json:"content_url"`
	ContentType    recognition.ContentType `json:"content_type"`
	CreatedAt      time.Time               `json:"created_at,omitzero"`
}

// Validate checks the fields required to register the target.
func (r TargetRecord) Validate() error {
	if r.ID == "" {
		return errors.New("store: target without id")
	}
	if r.MarkerImageURL == "" {
		return fmt.Errorf("store: target %s has no marker image", r.ID)
	}
	if _, err := recognition.ParseContentType(string(r.ContentType)); err != nil {
		return fmt.Errorf("store: target %s: %w", r.ID, err)
	}
	return nil
}

// Store wraps the sqlite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and migrates it to
// the latest schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000; PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: pragmas: %w", err)
	}
	s := &Store{db: db, logger: logger}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: migrations source: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("store: sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("store: migrate instance: %w", err)
	}
	// m is not closed: closing it would close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("store: migration up failed: %w", err)
	}
	if s.logger != nil {
		if v, dirty, err := m.Version(); err == nil {
			s.logger.Debug("store.migrated", "version", v, "dirty", dirty)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Targets returns every stored target, oldest first.
func (s *Store) Targets(ctx context.Context) ([]TargetRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, marker_image_url, content_url, content_type, created_at
		FROM targets ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("store: query targets: %w", err)
	}
	defer rows.Close()
	var out []TargetRecord
	for rows.Next() {
		var r TargetRecord
		var ct string
		var created int64
		if err := rows.Scan(&r.ID, &r.Name, &r.MarkerImageURL, &r.ContentURL, &ct, &created); err != nil {
			return nil, fmt.Errorf("store: scan target: %w", err)
		}
		r.ContentType = recognition.ContentType(ct)
		r.CreatedAt = time.UnixMilli(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ImportTargets upserts recs in one transaction. Invalid records abort the
// import. It returns the number of records written.
func (s *Store) ImportTargets(ctx context.Context, recs []TargetRecord) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO targets (id, name, marker_image_url, content_url, content_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			marker_image_url = excluded.marker_image_url,
			content_url = excluded.content_url,
			content_type = excluded.content_type`)
	if err != nil {
		return 0, fmt.Errorf("store: prepare: %w", err)
	}
	defer stmt.Close()
	now := time.Now()
	for i, r := range recs {
		ct, err := recognition.ParseContentType(string(r.ContentType))
		if err != nil {
			return 0, fmt.Errorf("store: target %s: %w", r.ID, err)
		}
		r.ContentType = ct
		if err := r.Validate(); err != nil {
			return 0, err
		}
		created := r.CreatedAt
		if created.IsZero() {
			// keep import order stable for equal timestamps
			created = now.Add(time.Duration(i) * time.Millisecond)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Name, r.MarkerImageURL, r.ContentURL, string(r.ContentType), created.UnixMilli()); err != nil {
			return 0, fmt.Errorf("store: upsert %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	return len(recs), nil
}

// DeleteTarget removes a target. Missing ids are not an error.
func (s *Store) DeleteTarget(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM targets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}
	return nil
}

// RecordScan stores one scan event. It implements analytics.Sink.
func (s *Store) RecordScan(ctx context.Context, ev analytics.ScanEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scan_events (id, session_id, target_id, scanned_at) VALUES (?, ?, ?, ?)`,
		ev.ID.String(), ev.SessionID.String(), ev.TargetID, ev.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("store: record scan: %w", err)
	}
	return nil
}

// RecentScans returns up to limit scan events, newest first.
func (s *Store) RecentScans(ctx context.Context, limit int) ([]analytics.ScanEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, target_id, scanned_at
		FROM scan_events ORDER BY scanned_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query scans: %w", err)
	}
	defer rows.Close()
	var out []analytics.ScanEvent
	for rows.Next() {
		var id, session string
		var ev analytics.ScanEvent
		var ts int64
		if err := rows.Scan(&id, &session, &ev.TargetID, &ts); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		ev.ID, _ = uuid.Parse(id)
		ev.SessionID, _ = uuid.Parse(session)
		ev.Timestamp = time.UnixMilli(ts)
		out = append(out, ev)
	}
	return out, rows.Err()
}

var _ analytics.Sink = (*Store)(nil)

// Package sqlitestore persists geocoding results in a local SQLite file so
// repeated lookups survive restarts and spare the provider quota.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/haulplan/haulplan/internal/geo"
)

const schema = `
CREATE TABLE IF NOT EXISTS geocode_cache (
    query      TEXT PRIMARY KEY,
    lat        REAL NOT NULL,
    lng        REAL NOT NULL,
    label      TEXT NOT NULL DEFAULT '',
    updated_at INTEGER NOT NULL
);`

// Store is a geo.Store backed by SQLite.
type Store struct {
	db     *sql.DB
	maxAge time.Duration
}

var _ geo.Store = (*Store)(nil)

// Open opens (or creates) the cache file at path and ensures the schema.
// Entries older than maxAge are ignored; zero keeps entries forever.
func Open(ctx context.Context, path string, maxAge time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %q: %w", path, err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("verify sqlite connection to %q: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create geocode_cache table: %w", err)
	}
	return &Store{db: db, maxAge: maxAge}, nil
}

// Get returns the cached place for key, or nil when absent or expired.
func (s *Store) Get(ctx context.Context, key string) (*geo.Place, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}

	var (
		p       geo.Place
		updated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT lat, lng, label, updated_at FROM geocode_cache WHERE query = ?`, key,
	).Scan(&p.Lat, &p.Lng, &p.Label, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get geocode cache: %w", err)
	}

	if s.maxAge > 0 && time.Since(time.Unix(updated, 0)) > s.maxAge {
		return nil, nil
	}
	return &p, nil
}

// Put stores or replaces the place for key.
func (s *Store) Put(ctx context.Context, key string, place geo.Place) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("insert geocode cache: empty key")
	}

	_, err := s.db.ExecContext(ctx, `
	INSERT OR REPLACE INTO geocode_cache (query, lat, lng, label, updated_at)
	VALUES (?, ?, ?, ?, ?);`,
		key, place.Lat, place.Lng, place.Label, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert geocode cache %q: %w", key, err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

package geocode

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/relonav/navigator/internal/cache"
)

// MemoryStore adapts the in-process cache to the Store interface for
// tests and cache-less deployments that still want per-run memoization.
type MemoryStore struct {
	cache cache.Cache
}

func NewMemoryStore(c cache.Cache) *MemoryStore {
	if c == nil {
		c = cache.NewMemory(1024, 0)
	}
	return &MemoryStore{cache: c}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Result, bool, error) {
	v, ok := s.cache.Get("geocode/" + key)
	if !ok {
		return nil, false, nil
	}
	r := v.(Result)
	return &r, true, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, result *Result) error {
	s.cache.Put("geocode/"+key, *result)
	return nil
}

// SQLStore persists geocode results in SQLite so repeated queries
// survive process restarts. A zero TTL keeps entries forever.
type SQLStore struct {
	db  *sql.DB
	ttl time.Duration
}

const geocodeMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	address_hash TEXT PRIMARY KEY,
	latitude     REAL NOT NULL,
	longitude    REAL NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	source       TEXT NOT NULL DEFAULT '',
	matched      INTEGER NOT NULL,
	cached_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

// OpenSQLStore opens (creating if needed) the SQLite cache at path and
// configures WAL mode.
func OpenSQLStore(path string, ttl time.Duration) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "geocode store: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "geocode store: exec %s", pragma)
		}
	}
	if _, err := db.Exec(geocodeMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "geocode store: migrate")
	}
	return &SQLStore{db: db, ttl: ttl}, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) Get(ctx context.Context, key string) (*Result, bool, error) {
	query := `SELECT latitude, longitude, display_name, source, matched FROM geocode_cache WHERE address_hash = ?`
	args := []any{key}
	if s.ttl > 0 {
		query += ` AND cached_at > datetime('now', ?)`
		args = append(args, fmt.Sprintf("-%d seconds", int64(s.ttl.Seconds())))
	}

	var r Result
	var matched int
	row := s.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&r.Latitude, &r.Longitude, &r.DisplayName, &r.Source, &matched); err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, eris.Wrap(err, "geocode store: get")
	}
	r.Matched = matched != 0
	return &r, true, nil
}

func (s *SQLStore) Put(ctx context.Context, key string, result *Result) error {
	matched := 0
	if result.Matched {
		matched = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (address_hash, latitude, longitude, display_name, source, matched, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT (address_hash) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			display_name = excluded.display_name,
			source = excluded.source,
			matched = excluded.matched,
			cached_at = datetime('now')`,
		key, result.Latitude, result.Longitude, result.DisplayName, result.Source, matched,
	)
	return eris.Wrap(err, "geocode store: put")
}

package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a small sqlite-backed cache for fetched web content. It keeps
// one row per (url, article_number) pair; entries older than TTL are
// treated as misses and overwritten on the next Put.
type Store struct {
	db     *sql.DB
	ttl    time.Duration
	logger *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS web_content_cache (
	url            TEXT NOT NULL,
	article_number TEXT NOT NULL,
	content        TEXT NOT NULL,
	fetched_at     TIMESTAMP NOT NULL,
	PRIMARY KEY (url, article_number)
);`

// Open creates (or opens) the cache database at path. ":memory:" is valid.
func Open(path string, ttl time.Duration, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &Store{db: db, ttl: ttl, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the cached content and whether it was found and fresh.
func (s *Store) Get(ctx context.Context, url, articleNumber string) (string, bool, error) {
	var content string
	var fetchedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT content, fetched_at FROM web_content_cache WHERE url = $1 AND article_number = $2`,
		url, articleNumber,
	).Scan(&content, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if time.Since(fetchedAt) > s.ttl {
		s.logger.Debug("cache.entry_stale", "url", url, "age", time.Since(fetchedAt).String())
		return "", false, nil
	}
	return content, true, nil
}

// Put upserts the content for (url, article_number).
func (s *Store) Put(ctx context.Context, url, articleNumber, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO web_content_cache (url, article_number, content, fetched_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (url, article_number) DO UPDATE SET content = $3, fetched_at = $4`,
		url, articleNumber, content, time.Now().UTC(),
	)
	return err
}

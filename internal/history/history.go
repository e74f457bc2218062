// Package history persists what was shown and how it was rated across
// process restarts. Sessions stay in memory; history is the durable record
// used to steer new rounds away from repeats.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/serendipitylabs/serendipity/internal/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS shown_items (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	batch_id    INTEGER NOT NULL,
	batch_title TEXT NOT NULL DEFAULT '',
	url         TEXT NOT NULL,
	title       TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	media_type  TEXT NOT NULL DEFAULT '',
	approach    TEXT NOT NULL DEFAULT '',
	shown_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_shown_items_url ON shown_items(url);
CREATE INDEX IF NOT EXISTS idx_shown_items_session ON shown_items(session_id);

CREATE TABLE IF NOT EXISTS feedback (
	session_id TEXT NOT NULL,
	url        TEXT NOT NULL,
	rating     INTEGER NOT NULL,
	rated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (session_id, url)
);
`

// Store is the sqlite-backed history.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying history schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordBatch writes every recommendation of a committed batch.
func (s *Store) RecordBatch(ctx context.Context, sessionID string, b session.Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting history tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO shown_items (session_id, batch_id, batch_title, url, title, reason, media_type, approach)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range b.Recommendations {
		if _, err := stmt.ExecContext(ctx, sessionID, b.ID, b.Title, rec.URL, rec.Title, rec.Reason, rec.MediaType, rec.Approach); err != nil {
			return fmt.Errorf("inserting item %s: %w", rec.URL, err)
		}
	}
	return tx.Commit()
}

// RecordFeedback upserts the latest rating for an item in a session.
func (s *Store) RecordFeedback(ctx context.Context, sessionID, url string, rating int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (session_id, url, rating)
		VALUES (?, ?, ?)
		ON CONFLICT (session_id, url)
		DO UPDATE SET rating = excluded.rating, rated_at = CURRENT_TIMESTAMP`,
		sessionID, url, rating)
	if err != nil {
		return fmt.Errorf("recording feedback: %w", err)
	}
	return nil
}

// RecentURLs returns the most recently shown distinct URLs, newest first.
func (s *Store) RecentURLs(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT url FROM shown_items
		GROUP BY url
		ORDER BY MAX(id) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, rows.Err()
}

// Item is one history row, joined with its latest rating when present.
type Item struct {
	SessionID  string    `json:"session_id"`
	BatchID    int64     `json:"batch_id"`
	BatchTitle string    `json:"batch_title,omitempty"`
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Reason     string    `json:"reason,omitempty"`
	MediaType  string    `json:"media_type,omitempty"`
	Approach   string    `json:"approach,omitempty"`
	ShownAt    time.Time `json:"shown_at"`
	Rating     int       `json:"rating,omitempty"`
}

// Recent returns the newest history items, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.session_id, i.batch_id, i.batch_title, i.url, i.title,
		       i.reason, i.media_type, i.approach, i.shown_at,
		       COALESCE(f.rating, 0)
		FROM shown_items i
		LEFT JOIN feedback f ON f.session_id = i.session_id AND f.url = i.url
		ORDER BY i.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.SessionID, &it.BatchID, &it.BatchTitle, &it.URL, &it.Title,
			&it.Reason, &it.MediaType, &it.Approach, &it.ShownAt, &it.Rating); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Clear wipes all history.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM shown_items`); err != nil {
		return fmt.Errorf("clearing shown items: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM feedback`); err != nil {
		return fmt.Errorf("clearing feedback: %w", err)
	}
	return nil
}

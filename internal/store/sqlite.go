package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/vouchbot/internal/model"
)

// SQLiteStore implements Store and Journal using SQLite.
type SQLiteStore struct {
	db *sql.DB

	mu      sync.Mutex
	entropy io.Reader
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID(t time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS vouch_counts (
		user_id    TEXT PRIMARY KEY,
		count      INTEGER NOT NULL CHECK (count >= 0)
	);

	CREATE TABLE IF NOT EXISTS vouch_events (
		id         TEXT PRIMARY KEY,
		user_id    TEXT,
		delta      INTEGER NOT NULL,
		reason     TEXT NOT NULL,
		actor      TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_user ON vouch_events(user_id);
	CREATE INDEX IF NOT EXISTS idx_events_created ON vouch_events(created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Load(ctx context.Context) ([]model.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, count FROM vouch_counts ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.Entry
	for rows.Next() {
		var e model.Entry
		if err := rows.Scan(&e.UserID, &e.Count); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Save(ctx context.Context, entries []model.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM vouch_counts`); err != nil {
		return fmt.Errorf("clear counts: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO vouch_counts (user_id, count) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.UserID, e.Count); err != nil {
			return fmt.Errorf("insert count %s: %w", e.UserID, err)
		}
	}

	return tx.Commit()
}

// Append records events, assigning ids and timestamps where unset.
func (s *SQLiteStore) Append(ctx context.Context, events ...model.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, ev := range events {
		if ev.CreatedAt.IsZero() {
			ev.CreatedAt = now
		}
		if ev.ID == "" {
			ev.ID = s.newID(ev.CreatedAt)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO vouch_events (id, user_id, delta, reason, actor, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			ev.ID, nullable(ev.UserID), ev.Delta, ev.Reason, nullable(ev.Actor),
			ev.CreatedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	return tx.Commit()
}

// History returns journal events newest first.
func (s *SQLiteStore) History(ctx context.Context, p HistoryParams) ([]model.Event, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, user_id, delta, reason, actor, created_at FROM vouch_events`
	var args []interface{}
	if p.UserID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, p.UserID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var ev model.Event
		var userID, actor sql.NullString
		var createdAt string
		if err := rows.Scan(&ev.ID, &userID, &ev.Delta, &ev.Reason, &actor, &createdAt); err != nil {
			return nil, err
		}
		ev.UserID = userID.String
		ev.Actor = actor.String
		ev.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

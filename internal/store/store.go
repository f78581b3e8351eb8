// Package store persists sessions and their line items in SQLite. It is the
// server-side persistence gateway: found quantities are updated with the same
// clamp the clients use, inside the database, so interleaved updates from
// several collaborators can never leave an item out of bounds.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/h0rv/brickhunt/internal/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// ErrItemNotFound indicates the line item does not exist in the session.
var ErrItemNotFound = errors.New("line item not found")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	token       TEXT PRIMARY KEY,
	set_num     TEXT NOT NULL,
	set_name    TEXT NOT NULL,
	set_year    INTEGER NOT NULL DEFAULT 0,
	num_parts   INTEGER NOT NULL DEFAULT 0,
	image_url   TEXT NOT NULL DEFAULT '',
	set_url     TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS line_items (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_token TEXT NOT NULL REFERENCES sessions(token) ON DELETE CASCADE,
	part_num      TEXT NOT NULL,
	part_name     TEXT NOT NULL DEFAULT '',
	image_url     TEXT NOT NULL DEFAULT '',
	color_id      INTEGER NOT NULL,
	color_name    TEXT NOT NULL DEFAULT '',
	color_rgb     TEXT NOT NULL DEFAULT '',
	element_id    TEXT NOT NULL DEFAULT '',
	category_code TEXT NOT NULL DEFAULT '',
	category_name TEXT NOT NULL DEFAULT '',
	qty_needed    INTEGER NOT NULL CHECK (qty_needed >= 0),
	qty_found     INTEGER NOT NULL DEFAULT 0,
	is_spare      INTEGER NOT NULL DEFAULT 0,
	UNIQUE (session_token, part_num, color_id, is_spare),
	CHECK (qty_found >= 0 AND qty_found <= qty_needed)
);

CREATE INDEX IF NOT EXISTS idx_line_items_session ON line_items(session_token);
`

// Store is a SQLite-backed session store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the database at path and ensures the schema exists.
// Use ":memory:" for a throwaway database.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = "brickhunt.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite has a single writer; every connection to :memory: is also a separate database.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	logger.Info("session store ready", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession stores a new session with its items in one transaction and
// returns the generated capability token. Item IDs of the input are ignored;
// the store assigns its own.
func (s *Store) CreateSession(ctx context.Context, set domain.SetMeta, items []domain.LineItem) (domain.Session, error) {
	sess := domain.Session{
		Token:     uuid.NewString(),
		Set:       set,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Session{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (token, set_num, set_name, set_year, num_parts, image_url, set_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.Token, set.SetNum, set.Name, set.Year, set.NumParts, set.ImageURL, set.SetURL, sess.CreatedAt,
	); err != nil {
		return domain.Session{}, fmt.Errorf("insert session: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO line_items (session_token, part_num, part_name, image_url, color_id, color_name, color_rgb,
		 element_id, category_code, category_name, qty_needed, qty_found, is_spare)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`)
	if err != nil {
		return domain.Session{}, fmt.Errorf("prepare items: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, item := range items {
		if _, err := stmt.ExecContext(ctx,
			sess.Token, item.PartNum, item.PartName, item.ImageURL, item.ColorID, item.ColorName, item.ColorRGB,
			item.ElementID, item.CategoryCode, item.CategoryName, item.QtyNeeded, item.IsSpare,
		); err != nil {
			return domain.Session{}, fmt.Errorf("insert item %s/%d: %w", item.PartNum, item.ColorID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Session{}, fmt.Errorf("commit: %w", err)
	}

	s.logger.Info("session created", "set", set.SetNum, "items", len(items))
	return sess, nil
}

// LoadSession returns the session and its items ordered by ID.
// Returns domain.ErrNotFound for an unknown token.
func (s *Store) LoadSession(ctx context.Context, token string) (domain.Session, []domain.LineItem, error) {
	sess, err := s.getSession(ctx, token)
	if err != nil {
		return domain.Session{}, nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, part_num, part_name, image_url, color_id, color_name, color_rgb, element_id,
		        category_code, category_name, qty_needed, qty_found, is_spare
		 FROM line_items WHERE session_token = ? ORDER BY id`, token)
	if err != nil {
		return domain.Session{}, nil, fmt.Errorf("select items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []domain.LineItem
	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(&item.ID, &item.PartNum, &item.PartName, &item.ImageURL, &item.ColorID, &item.ColorName,
			&item.ColorRGB, &item.ElementID, &item.CategoryCode, &item.CategoryName, &item.QtyNeeded, &item.QtyFound,
			&item.IsSpare); err != nil {
			return domain.Session{}, nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return domain.Session{}, nil, fmt.Errorf("iterate items: %w", err)
	}
	return sess, items, nil
}

// SessionExists returns domain.ErrNotFound for an unknown token without
// reading the session's items.
func (s *Store) SessionExists(ctx context.Context, token string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE token = ?`, token).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("session %q: %w", token, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("select session: %w", err)
	}
	return nil
}

func (s *Store) getSession(ctx context.Context, token string) (domain.Session, error) {
	var sess domain.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT token, set_num, set_name, set_year, num_parts, image_url, set_url, created_at
		 FROM sessions WHERE token = ?`, token,
	).Scan(&sess.Token, &sess.Set.SetNum, &sess.Set.Name, &sess.Set.Year, &sess.Set.NumParts,
		&sess.Set.ImageURL, &sess.Set.SetURL, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, fmt.Errorf("session %q: %w", token, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("select session: %w", err)
	}
	return sess, nil
}

// UpdateFound adds delta to an item's found quantity, clamped to
// [0, qty_needed] by the database, and returns the stored value.
func (s *Store) UpdateFound(ctx context.Context, token string, itemID int64, delta int) (int, error) {
	var found int
	err := s.db.QueryRowContext(ctx,
		`UPDATE line_items
		 SET qty_found = MAX(0, MIN(qty_found + ?, qty_needed))
		 WHERE id = ? AND session_token = ?
		 RETURNING qty_found`,
		delta, itemID, token,
	).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("item %d: %w", itemID, ErrItemNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("update found: %w", err)
	}
	return found, nil
}

// ResetAll sets every item's found quantity to zero and returns the IDs of the
// items that changed. Returns domain.ErrNotFound for an unknown token.
func (s *Store) ResetAll(ctx context.Context, token string) ([]int64, error) {
	if _, err := s.getSession(ctx, token); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`UPDATE line_items SET qty_found = 0
		 WHERE session_token = ? AND qty_found != 0
		 RETURNING id`, token)
	if err != nil {
		return nil, fmt.Errorf("reset items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return ids, nil
}

// DeleteSession removes a session; its line items go with it.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %q: %w", token, domain.ErrNotFound)
	}
	return nil
}

// CountItems returns the number of line items stored for a token.
func (s *Store) CountItems(ctx context.Context, token string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM line_items WHERE session_token = ?`, token).Scan(&n); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}

// ListSessions returns every stored session, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT token, set_num, set_name, set_year, num_parts, image_url, set_url, created_at
		 FROM sessions ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("select sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []domain.Session
	for rows.Next() {
		var sess domain.Session
		if err := rows.Scan(&sess.Token, &sess.Set.SetNum, &sess.Set.Name, &sess.Set.Year, &sess.Set.NumParts,
			&sess.Set.ImageURL, &sess.Set.SetURL, &sess.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

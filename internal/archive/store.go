// Package archive persists the ids of notifications the user has already
// acknowledged, so they can be left out of unseen counts.
package archive

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store is a SQLite backed set of archived notification ids
type Store struct {
	conn *sql.DB
}

// Open opens (creating if needed) the archive database at path
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	// a single connection keeps ":memory:" databases consistent
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping archive: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS archived_notifications (
			id INTEGER PRIMARY KEY,
			archived_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.conn.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}

// Archive marks notification ids as seen. Archiving an id twice is a no-op.
func (s *Store) Archive(ctx context.Context, ids ...int64) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO archived_notifications (id) VALUES (?)`, id); err != nil {
			return fmt.Errorf("failed to archive notification %d: %w", id, err)
		}
	}

	return tx.Commit()
}

// Unarchive removes ids from the archive
func (s *Store) Unarchive(ctx context.Context, ids ...int64) error {
	for _, id := range ids {
		if _, err := s.conn.ExecContext(ctx, `DELETE FROM archived_notifications WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to unarchive notification %d: %w", id, err)
		}
	}
	return nil
}

// IDs returns every archived id
func (s *Store) IDs(ctx context.Context) (map[int64]struct{}, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT id FROM archived_notifications ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived notifications: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

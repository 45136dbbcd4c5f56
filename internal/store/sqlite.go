package store

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteBackend keeps save documents in a single SQLite table
type SQLiteBackend struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// NewSQLiteBackend opens the database at dbPath and runs migrations
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	db := &SQLiteBackend{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

// Close closes the database connection
func (db *SQLiteBackend) Close() error {
	return db.conn.Close()
}

// migrate runs database migrations
func (db *SQLiteBackend) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS save_slots (
		name TEXT PRIMARY KEY,
		document TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_save_slots_updated_at ON save_slots(updated_at);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Put upserts a slot
func (db *SQLiteBackend) Put(ctx context.Context, name string, doc []byte, updatedAt time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ts := updatedAt.UnixNano()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO save_slots (name, document, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at
	`, name, string(doc), ts, ts)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Get returns a slot document
func (db *SQLiteBackend) Get(ctx context.Context, name string) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var doc string
	err := db.conn.QueryRowContext(ctx, `
		SELECT document FROM save_slots WHERE name = ?
	`, name).Scan(&doc)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(doc), nil
}

// List returns all slots, most recently updated first
func (db *SQLiteBackend) List(ctx context.Context) ([]SlotInfo, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.QueryContext(ctx, "SELECT name, updated_at FROM save_slots ORDER BY updated_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := make([]SlotInfo, 0)
	for rows.Next() {
		var (
			name string
			ts   int64
		)
		if err := rows.Scan(&name, &ts); err != nil {
			return nil, err
		}
		slots = append(slots, SlotInfo{Name: name, UpdatedAt: time.Unix(0, ts)})
	}

	return slots, rows.Err()
}

// Delete removes a slot
func (db *SQLiteBackend) Delete(ctx context.Context, name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.ExecContext(ctx, "DELETE FROM save_slots WHERE name = ?", name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSlotNotFound
	}
	return nil
}

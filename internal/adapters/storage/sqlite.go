package storage

// sqlite.go — estado del bot en SQLite (pure Go, sin CGo).
//
//   - `state`: una fila por clave con el documento JSON actual.
//   - `state_backups`: copia del documento anterior en cada Save.
//     Se conservan las últimas backupsPerKey por clave.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/geobot/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS state (
    key        TEXT PRIMARY KEY,
    data       BLOB     NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS state_backups (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    key      TEXT     NOT NULL,
    data     BLOB     NOT NULL,
    saved_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_backups_key ON state_backups(key, id DESC);
`

const backupsPerKey = 20

// SQLiteStore implementa ports.StateStore sobre SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load devuelve el documento actual de la clave.
func (s *SQLiteStore) Load(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM state WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("storage.SQLiteStore.Load %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage.SQLiteStore.Load %s: %w", key, err)
	}
	return data, nil
}

// Save guarda el documento en una transacción, moviendo el anterior a state_backups.
func (s *SQLiteStore) Save(ctx context.Context, key string, data []byte) error {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SQLiteStore.Save %s: begin: %w", key, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO state_backups (key, data, saved_at)
		SELECT key, data, ? FROM state WHERE key = ?`, now, key); err != nil {
		return fmt.Errorf("storage.SQLiteStore.Save %s: backup: %w", key, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO state (key, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key, data, now); err != nil {
		return fmt.Errorf("storage.SQLiteStore.Save %s: upsert: %w", key, err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM state_backups WHERE key = ? AND id NOT IN (
			SELECT id FROM state_backups WHERE key = ? ORDER BY id DESC LIMIT ?
		)`, key, key, backupsPerKey); err != nil {
		return fmt.Errorf("storage.SQLiteStore.Save %s: prune: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SQLiteStore.Save %s: commit: %w", key, err)
	}
	return nil
}

// Backups devuelve las copias guardadas de una clave, la más reciente primero.
func (s *SQLiteStore) Backups(ctx context.Context, key string) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM state_backups WHERE key = ? ORDER BY id DESC`, key)
	if err != nil {
		return nil, fmt.Errorf("storage.SQLiteStore.Backups %s: %w", key, err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("storage.SQLiteStore.Backups %s: scan: %w", key, err)
		}
		out = append(out, data)
	}
	return out, rows.Err()
}

// Close cierra la conexión a la base de datos limpiamente.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

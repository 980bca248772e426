package bibdb

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/FocuswithJustin/citesync/core/errors"
	"github.com/FocuswithJustin/citesync/core/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	key  TEXT PRIMARY KEY,
	type TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS fields (
	key   TEXT NOT NULL REFERENCES entries(key) ON DELETE CASCADE,
	name  TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (key, name)
);
`

// SQLiteDatabase stores entries in a SQLite file.
type SQLiteDatabase struct {
	name string
	db   *sql.DB
}

// OpenSQLite opens (creating if needed) the database at dsn.
func OpenSQLite(ctx context.Context, name, dsn string) (*SQLiteDatabase, error) {
	db, err := sqlite.Open(dsn)
	if err != nil {
		return nil, errors.NewIO("open", dsn, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.NewIO("create schema", dsn, err)
	}
	return &SQLiteDatabase{name: name, db: db}, nil
}

// OpenSQLiteReadOnly opens an existing database at path for lookups only.
// A file without the entries table is rejected.
func OpenSQLiteReadOnly(ctx context.Context, name, path string) (*SQLiteDatabase, error) {
	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM entries`).Scan(&n); err != nil {
		db.Close()
		return nil, errors.NewIO("read", path, err)
	}
	return &SQLiteDatabase{name: name, db: db}, nil
}

// Name implements Database.
func (s *SQLiteDatabase) Name() string { return s.name }

// Close releases the underlying connection.
func (s *SQLiteDatabase) Close() error {
	return s.db.Close()
}

// Lookup implements Database.
func (s *SQLiteDatabase) Lookup(ctx context.Context, key string) (*Entry, bool, error) {
	e := &Entry{Key: key, Fields: make(map[string]string)}
	err := s.db.QueryRowContext(ctx, `SELECT type FROM entries WHERE key = ?`, key).Scan(&e.Type)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM fields WHERE key = ?`, key)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, false, err
		}
		e.Fields[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return e, true, nil
}

// Import stores entries, replacing any existing entry with the same key.
// Either every entry is stored or none is.
func (s *SQLiteDatabase) Import(ctx context.Context, entries []Entry) error {
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			return err
		}
	}
	return sqlite.InTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, e := range entries {
			if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, e.Key); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO entries (key, type) VALUES (?, ?)`, e.Key, e.Type); err != nil {
				return err
			}
			for name, value := range e.Fields {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO fields (key, name, value) VALUES (?, ?, ?)`, e.Key, name, value); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Keys returns every stored key in ascending order.
func (s *SQLiteDatabase) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM entries ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

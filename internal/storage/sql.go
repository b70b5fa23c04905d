package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore keeps values in the extension_storage table of a SQLite or Postgres database.
type SQLStore struct {
	db        *sql.DB
	namespace string
	q         queries
}

type queries struct {
	get     string
	set     string
	delete  string
	keys    string
	getMany func(namespace string, keys []string) (string, []any)
}

var postgresQueries = queries{
	get: `SELECT value::text FROM extension_storage WHERE namespace = $1 AND key = $2`,
	set: `
INSERT INTO extension_storage (namespace, key, value, updated_at)
VALUES ($1, $2, $3::jsonb, now())
ON CONFLICT (namespace, key) DO UPDATE SET
  value      = EXCLUDED.value,
  updated_at = now()
`,
	delete: `DELETE FROM extension_storage WHERE namespace = $1 AND key = $2`,
	keys:   `SELECT key FROM extension_storage WHERE namespace = $1 ORDER BY key`,
	getMany: func(namespace string, keys []string) (string, []any) {
		return `
SELECT key, value::text
  FROM extension_storage
 WHERE namespace = $1 AND key = ANY($2)
`, []any{namespace, pq.Array(keys)}
	},
}

var sqliteQueries = queries{
	get: `SELECT value FROM extension_storage WHERE namespace = ? AND key = ?`,
	set: `
INSERT INTO extension_storage (namespace, key, value, updated_at)
VALUES (?, ?, ?, datetime('now'))
ON CONFLICT (namespace, key) DO UPDATE SET
  value      = excluded.value,
  updated_at = excluded.updated_at
`,
	delete: `DELETE FROM extension_storage WHERE namespace = ? AND key = ?`,
	keys:   `SELECT key FROM extension_storage WHERE namespace = ? ORDER BY key`,
	getMany: func(namespace string, keys []string) (string, []any) {
		args := make([]any, 0, len(keys)+1)
		args = append(args, namespace)
		marks := make([]string, len(keys))
		for i, k := range keys {
			marks[i] = "?"
			args = append(args, k)
		}
		return `SELECT key, value FROM extension_storage WHERE namespace = ? AND key IN (` +
			strings.Join(marks, ",") + `)`, args
	},
}

// OpenSQLite opens (or creates) the SQLite database at path and migrates it.
func OpenSQLite(ctx context.Context, path, namespace string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	return newSQLStore(ctx, db, DriverSQLite, namespace, sqliteQueries)
}

// OpenPostgres connects through pgx and migrates the schema.
func OpenPostgres(ctx context.Context, url, namespace string) (*SQLStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)
	return newSQLStore(ctx, db, DriverPostgres, namespace, postgresQueries)
}

func newSQLStore(ctx context.Context, db *sql.DB, dialect, namespace string, q queries) (*SQLStore, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if err := Migrate(db, dialect); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLStore{db: db, namespace: namespace, q: q}, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.q.get, s.namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	return []byte(value), true, nil
}

func (s *SQLStore) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	query, args := s.q.getMany(s.namespace, keys)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get many: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = []byte(v)
	}
	return out, rows.Err()
}

func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, s.q.set, s.namespace, key, string(value)); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.q.delete, s.namespace, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.q.keys, s.namespace)
	if err != nil {
		return nil, fmt.Errorf("keys: %w", err)
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

func (s *SQLStore) Close() error {
	return s.db.Close()
}

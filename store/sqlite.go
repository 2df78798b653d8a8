package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteTimeFormat = time.RFC3339Nano

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	kind       TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       BLOB NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (kind, id)
);`

// SQLite is the default durable Store, a single-file database. Reads run
// concurrently; writes take a single writer mutex on top of the per-key
// locks, mirroring sqlite's own one-writer model so mutations never trip
// over the file lock.
type SQLite struct {
	db      *sql.DB
	locks   *keyLocks
	writeMu sync.Mutex
}

// OpenSQLite opens (creating if needed) the database file at path.
func OpenSQLite(path string) (*SQLite, error) {
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLite{
		db:    db,
		locks: newKeyLocks(),
	}, nil
}

func (s *SQLite) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM records WHERE kind = ? AND id = ?`,
		key.Kind, key.ID(),
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, opError("get", key, err)
	}
	return data, true, nil
}

func (s *SQLite) Put(ctx context.Context, key Key, value []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.put(ctx, s.db, key, value)
}

func (s *SQLite) Delete(ctx context.Context, key Key) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE kind = ? AND id = ?`,
		key.Kind, key.ID(),
	); err != nil {
		return opError("delete", key, err)
	}
	return nil
}

func (s *SQLite) Mutate(ctx context.Context, key Key, fn MutateFunc) error {
	release := s.locks.lock(key.String())
	defer release()

	current, found, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	next, err := fn(current, found)
	if err == Skip {
		return nil
	}
	if err != nil {
		return err
	}
	if next == nil {
		if !found {
			return nil
		}
		return s.Delete(ctx, key)
	}
	return s.Put(ctx, key, next)
}

func (s *SQLite) MutateMany(ctx context.Context, keys []Key, fn MutateManyFunc) error {
	if err := distinctKeys(keys); err != nil {
		return opError("mutate-many", Key{}, err)
	}
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = k.String()
	}
	release := s.locks.lockAll(ids)
	defer release()

	current := make([][]byte, len(keys))
	found := make([]bool, len(keys))
	for i, k := range keys {
		var err error
		current[i], found[i], err = s.Get(ctx, k)
		if err != nil {
			return err
		}
	}
	next, err := fn(current, found)
	if err == Skip {
		return nil
	}
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return opError("mutate-many", keys[0], err)
	}
	defer tx.Rollback()
	for i, k := range keys {
		if next[i] == nil {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM records WHERE kind = ? AND id = ?`,
				k.Kind, k.ID(),
			); err != nil {
				return opError("mutate-many", k, err)
			}
			continue
		}
		if err := s.put(ctx, tx, k, next[i]); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return opError("mutate-many", keys[0], err)
	}
	return nil
}

func (s *SQLite) List(ctx context.Context, kind string, prefix ...string) ([]Entry, error) {
	listKey := Key{Kind: kind, Parts: prefix}
	query := `SELECT id, data FROM records WHERE kind = ? ORDER BY id`
	args := []any{kind}
	if len(prefix) > 0 {
		query = `SELECT id, data FROM records WHERE kind = ? AND (id = ? OR id LIKE ? || '/%') ORDER BY id`
		id := listKey.ID()
		args = append(args, id, id)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, opError("list", listKey, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, opError("list", listKey, err)
		}
		entries = append(entries, Entry{
			Key:   Key{Kind: kind, Parts: splitID(id)},
			Value: data,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, opError("list", listKey, err)
	}
	return entries, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLite) put(ctx context.Context, db execer, key Key, value []byte) error {
	if _, err := db.ExecContext(ctx,
		`INSERT INTO records (kind, id, data, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (kind, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key.Kind, key.ID(), value, time.Now().UTC().Format(sqliteTimeFormat),
	); err != nil {
		return opError("put", key, err)
	}
	return nil
}

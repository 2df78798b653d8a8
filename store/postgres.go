package store

import (
	"context"

	"arcade/database"

	"github.com/jackc/pgx/v5"
)

// Postgres is the Store backed by a pgx connection pool, selected when
// DATABASE_URL is configured. Schema lives in database/migrations. The
// per-key lock registry provides the same-key serialization; storage
// transactions make multi-record writes atomic.
type Postgres struct {
	db    *database.DB
	locks *keyLocks
}

// NewPostgres wraps an open connection pool.
func NewPostgres(db *database.DB) *Postgres {
	return &Postgres{
		db:    db,
		locks: newKeyLocks(),
	}
}

func (p *Postgres) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	var data []byte
	err := p.db.QueryRow(ctx,
		`SELECT data FROM records WHERE kind = $1 AND id = $2`,
		key.Kind, key.ID(),
	).Scan(&data)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, opError("get", key, err)
	}
	return data, true, nil
}

func (p *Postgres) Put(ctx context.Context, key Key, value []byte) error {
	if _, err := p.db.Exec(ctx,
		`INSERT INTO records (kind, id, data, updated_at) VALUES ($1, $2, $3, now())
		 ON CONFLICT (kind, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		key.Kind, key.ID(), value,
	); err != nil {
		return opError("put", key, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, key Key) error {
	if _, err := p.db.Exec(ctx,
		`DELETE FROM records WHERE kind = $1 AND id = $2`,
		key.Kind, key.ID(),
	); err != nil {
		return opError("delete", key, err)
	}
	return nil
}

func (p *Postgres) Mutate(ctx context.Context, key Key, fn MutateFunc) error {
	release := p.locks.lock(key.String())
	defer release()

	current, found, err := p.Get(ctx, key)
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
		return p.Delete(ctx, key)
	}
	return p.Put(ctx, key, next)
}

func (p *Postgres) MutateMany(ctx context.Context, keys []Key, fn MutateManyFunc) error {
	if err := distinctKeys(keys); err != nil {
		return opError("mutate-many", Key{}, err)
	}
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = k.String()
	}
	release := p.locks.lockAll(ids)
	defer release()

	current := make([][]byte, len(keys))
	found := make([]bool, len(keys))
	for i, k := range keys {
		var err error
		current[i], found[i], err = p.Get(ctx, k)
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

	err = p.db.WithTx(ctx, func(tx pgx.Tx) error {
		for i, k := range keys {
			if next[i] == nil {
				if _, err := tx.Exec(ctx,
					`DELETE FROM records WHERE kind = $1 AND id = $2`,
					k.Kind, k.ID(),
				); err != nil {
					return err
				}
				continue
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO records (kind, id, data, updated_at) VALUES ($1, $2, $3, now())
				 ON CONFLICT (kind, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
				k.Kind, k.ID(), next[i],
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return opError("mutate-many", keys[0], err)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context, kind string, prefix ...string) ([]Entry, error) {
	listKey := Key{Kind: kind, Parts: prefix}
	query := `SELECT id, data FROM records WHERE kind = $1 ORDER BY id`
	args := []any{kind}
	if len(prefix) > 0 {
		query = `SELECT id, data FROM records WHERE kind = $1 AND (id = $2 OR id LIKE $2 || '/%') ORDER BY id`
		args = append(args, listKey.ID())
	}

	rows, err := p.db.Query(ctx, query, args...)
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

// Close releases the underlying pool.
func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Mintimate/open-kounter/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
create table if not exists public.kv_store (
	key text primary key,
	value text not null,
	expires_at timestamptz null,
	created_at timestamptz not null default now(),
	updated_at timestamptz not null default now()
);

create index if not exists idx_kv_store_expires_at on public.kv_store (expires_at)
	where expires_at is not null;
`

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	// Ping to fail fast.
	ctxPing, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", mapPgErr(err))
	}
	return nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Expiry is compared against the database clock so every replica agrees
// on visibility.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := store.ValidateKey(key); err != nil {
		return nil, err
	}

	var value string
	err := s.pool.QueryRow(ctx, `
		select value
		from public.kv_store
		where key = $1
		  and (expires_at is null or expires_at > now())
	`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapPgErr(err)
	}
	return []byte(value), nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte, opts store.PutOptions) error {
	if err := store.ValidateKey(key); err != nil {
		return err
	}

	var ttlSeconds *float64
	if opts.TTL > 0 {
		secs := opts.TTL.Seconds()
		ttlSeconds = &secs
	}

	_, err := s.pool.Exec(ctx, `
		insert into public.kv_store (key, value, expires_at)
		values ($1, $2, now() + make_interval(secs => $3::float8))
		on conflict (key) do update
		set value = excluded.value,
		    expires_at = excluded.expires_at,
		    updated_at = now()
	`, key, string(value), ttlSeconds)
	if err != nil {
		return mapPgErr(err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := store.ValidateKey(key); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `delete from public.kv_store where key = $1`, key); err != nil {
		return mapPgErr(err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]store.Entry, error) {
	rows, err := s.pool.Query(ctx, `
		select key, value
		from public.kv_store
		where starts_with(key, $1)
		  and (expires_at is null or expires_at > now())
		order by key
		limit $2
	`, prefix, store.ListLimit)
	if err != nil {
		return nil, mapPgErr(err)
	}
	defer rows.Close()

	out := make([]store.Entry, 0)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, mapPgErr(err)
		}
		out = append(out, store.Entry{Key: key, Value: []byte(value)})
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgErr(err)
	}
	return out, nil
}

func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		delete from public.kv_store
		where expires_at is not null and expires_at <= now()
	`)
	if err != nil {
		return 0, mapPgErr(err)
	}
	return int(tag.RowsAffected()), nil
}

func mapPgErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01":
			return fmt.Errorf("db_error %s: kv_store table missing: %s", pgErr.Code, strings.TrimSpace(pgErr.Message))
		default:
			return fmt.Errorf("db_error %s: %s", pgErr.Code, pgErr.Message)
		}
	}
	return err
}

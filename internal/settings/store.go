package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pointbarre/quoteapi/internal/cache"
	"github.com/pointbarre/quoteapi/internal/obs"
)

// ErrNotFound is returned when no value exists for a key.
var ErrNotFound = errors.New("setting not found")

// Row is one key-value pair of the configuration store.
type Row struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Querier abstracts the persistence layer of the store.
type Querier interface {
	GetSetting(ctx context.Context, key string) (string, error)
	UpsertSetting(ctx context.Context, key, value string) error
	ListSettings(ctx context.Context) ([]Row, error)
}

// PGQuerier implements Querier against Postgres.
type PGQuerier struct {
	Pool *pgxpool.Pool
}

func (q PGQuerier) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := q.Pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("key %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (q PGQuerier) UpsertSetting(ctx context.Context, key, value string) error {
	_, err := q.Pool.Exec(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	if err != nil {
		return fmt.Errorf("upsert setting %q: %w", key, err)
	}
	return nil
}

func (q PGQuerier) ListSettings(ctx context.Context) ([]Row, error) {
	rows, err := q.Pool.Query(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()
	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Key, &r.Value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Store reads and writes configuration values with a read-through cache.
type Store struct {
	Q     Querier
	Cache *cache.Cache
}

// Get returns the value for a key, serving from the cache when possible.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var cached string
	ok, err := s.Cache.GetJSON(ctx, cache.KeySetting(key), &cached)
	if err == nil && ok {
		obs.ObserveSettingsRead("hit")
		return cached, nil
	}
	obs.ObserveSettingsRead("miss")
	value, err := s.Q.GetSetting(ctx, key)
	if err != nil {
		return "", err
	}
	// Cache fill is best effort.
	_ = s.Cache.SetJSON(ctx, cache.KeySetting(key), value)
	return value, nil
}

// Put upserts a key and evicts its cached value.
func (s *Store) Put(ctx context.Context, key, value string) error {
	if err := s.Q.UpsertSetting(ctx, key, value); err != nil {
		return err
	}
	return s.Cache.Delete(ctx, cache.KeySetting(key))
}

// All lists every stored key-value pair.
func (s *Store) All(ctx context.Context) ([]Row, error) {
	return s.Q.ListSettings(ctx)
}

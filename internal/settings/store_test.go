package settings

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/pointbarre/quoteapi/internal/cache"
)

type fakeQuerier struct {
	values map[string]string
	gets   int
}

func (f *fakeQuerier) GetSetting(_ context.Context, key string) (string, error) {
	f.gets++
	v, ok := f.values[key]
	if !ok {
		return "", fmt.Errorf("key %q: %w", key, ErrNotFound)
	}
	return v, nil
}

func (f *fakeQuerier) UpsertSetting(_ context.Context, key, value string) error {
	f.values[key] = value
	return nil
}

func (f *fakeQuerier) ListSettings(context.Context) ([]Row, error) {
	var out []Row
	for k, v := range f.values {
		out = append(out, Row{Key: k, Value: v})
	}
	return out, nil
}

func testStore(t *testing.T) (*Store, *fakeQuerier) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	q := &fakeQuerier{values: map[string]string{"ROOMS": "Cuisine,Salon"}}
	return &Store{Q: q, Cache: cache.New(client, time.Minute)}, q
}

func TestStoreGetCachesValue(t *testing.T) {
	store, q := testStore(t)
	ctx := context.Background()

	value, err := store.Get(ctx, "ROOMS")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if value != "Cuisine,Salon" {
		t.Fatalf("unexpected value %q", value)
	}
	if _, err := store.Get(ctx, "ROOMS"); err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if q.gets != 1 {
		t.Fatalf("expected one database read, got %d", q.gets)
	}
}

func TestStoreGetMissing(t *testing.T) {
	store, _ := testStore(t)
	if _, err := store.Get(context.Background(), "VAT"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStorePutEvictsCache(t *testing.T) {
	store, q := testStore(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "ROOMS"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if err := store.Put(ctx, "ROOMS", "Grenier"); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, err := store.Get(ctx, "ROOMS")
	if err != nil {
		t.Fatalf("get after put: %v", err)
	}
	if value != "Grenier" {
		t.Fatalf("expected updated value, got %q", value)
	}
	if q.gets != 2 {
		t.Fatalf("expected cache eviction to force a reread, got %d reads", q.gets)
	}
}

func TestStoreWorksWithoutCache(t *testing.T) {
	q := &fakeQuerier{values: map[string]string{"VAT": "2:10"}}
	store := &Store{Q: q}
	value, err := store.Get(context.Background(), "VAT")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if value != "2:10" {
		t.Fatalf("unexpected value %q", value)
	}
	if err := store.Put(context.Background(), "VAT", "2:20"); err != nil {
		t.Fatalf("put: %v", err)
	}
}

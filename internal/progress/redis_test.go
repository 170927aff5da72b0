package progress

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeCommander struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newFakeCommander() *fakeCommander {
	return &fakeCommander{
		values: make(map[string]string),
		ttls:   make(map[string]time.Duration),
	}
}

func (f *fakeCommander) Get(_ context.Context, key string) *redis.StringCmd {
	value, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (f *fakeCommander) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.values[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCommander) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(f.values, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func newFakeRedisStore(ttl time.Duration) (*RedisStore, *fakeCommander) {
	commander := newFakeCommander()
	store := newRedisStoreFromCommander(commander, nil, RedisStoreConfig{TTL: ttl})
	return store, commander
}

func TestRedisStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store, commander := newFakeRedisStore(time.Hour)
	ctx := context.Background()

	if err := store.Set(ctx, "Octo", "Widgets", Update{
		Progress: intPtr(30),
		Stage:    StageFetching,
	}); err != nil {
		t.Fatalf("Set() error = %v, want nil", err)
	}

	record, found, err := store.Get(ctx, "octo", "widgets")
	if err != nil || !found {
		t.Fatalf("Get() = (found=%v, err=%v), want record under normalized key", found, err)
	}
	if record.Progress != 30 || record.Stage != StageFetching {
		t.Fatalf("Get() = %+v, want progress 30 in fetching", record)
	}

	wantKey := "contribase:progress:octo/widgets"
	if _, ok := commander.values[wantKey]; !ok {
		t.Fatalf("Set() keys = %v, want %q", commander.values, wantKey)
	}
	if commander.ttls[wantKey] != time.Hour {
		t.Fatalf("Set() ttl = %v, want 1h", commander.ttls[wantKey])
	}
}

func TestRedisStoreMergePreservesMonotonicProgress(t *testing.T) {
	t.Parallel()

	store, _ := newFakeRedisStore(time.Hour)
	ctx := context.Background()

	for _, progressValue := range []int{60, 20} {
		if err := store.Set(ctx, "octo", "widgets", Update{Progress: intPtr(progressValue)}); err != nil {
			t.Fatalf("Set() error = %v, want nil", err)
		}
	}

	record, _, _ := store.Get(ctx, "octo", "widgets")
	if record.Progress != 60 {
		t.Fatalf("Get() progress = %d, want 60", record.Progress)
	}
}

func TestRedisStoreGetMissing(t *testing.T) {
	t.Parallel()

	store, _ := newFakeRedisStore(time.Hour)

	record, found, err := store.Get(context.Background(), "octo", "nothing")
	if err != nil {
		t.Fatalf("Get() error = %v, want nil for missing key", err)
	}
	if found || record.Progress != 0 {
		t.Fatalf("Get() = (found=%v, record=%+v), want absent", found, record)
	}
}

func TestRedisStoreDelete(t *testing.T) {
	t.Parallel()

	store, _ := newFakeRedisStore(time.Hour)
	ctx := context.Background()

	if err := store.Set(ctx, "octo", "widgets", Update{Progress: intPtr(10)}); err != nil {
		t.Fatalf("Set() error = %v, want nil", err)
	}
	if err := store.Delete(ctx, "octo", "widgets"); err != nil {
		t.Fatalf("Delete() error = %v, want nil", err)
	}
	if _, found, _ := store.Get(ctx, "octo", "widgets"); found {
		t.Fatalf("Get() found deleted record, want absent")
	}
}

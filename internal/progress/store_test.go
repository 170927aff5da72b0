package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Hobby2025/Contribase-sub000/internal/analyze"
)

func intPtr(v int) *int       { return &v }
func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }

func TestKeyNormalizes(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		owner string
		repo  string
		want  string
	}{
		{owner: "Octo", repo: "Widgets", want: "octo/widgets"},
		{owner: " octo ", repo: "widgets", want: "octo/widgets"},
		{owner: "OCTO", repo: "WIDGETS", want: "octo/widgets"},
	}
	for _, testCase := range testCases {
		if got := Key(testCase.owner, testCase.repo); got != testCase.want {
			t.Fatalf("Key(%q, %q) = %q, want %q", testCase.owner, testCase.repo, got, testCase.want)
		}
	}
}

func TestMemoryStoreSetAndGet(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	if err := store.Set(ctx, "octo", "widgets", Update{
		Progress: intPtr(10),
		Stage:    StageFetching,
		Message:  strPtr("fetching"),
	}); err != nil {
		t.Fatalf("Set() error = %v, want nil", err)
	}

	// Same key regardless of case.
	record, found, err := store.Get(ctx, "OCTO", "WIDGETS")
	if err != nil || !found {
		t.Fatalf("Get() = (found=%v, err=%v), want record", found, err)
	}
	if record.Progress != 10 || record.Stage != StageFetching {
		t.Fatalf("Get() = %+v, want progress 10 in fetching", record)
	}
	if record.LastUpdated.IsZero() {
		t.Fatalf("Get() LastUpdated is zero, want stamped")
	}
}

func TestMemoryStoreProgressNeverRegresses(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	for _, progressValue := range []int{40, 25, 40} {
		if err := store.Set(ctx, "octo", "widgets", Update{Progress: intPtr(progressValue)}); err != nil {
			t.Fatalf("Set() error = %v, want nil", err)
		}
	}

	record, _, _ := store.Get(ctx, "octo", "widgets")
	if record.Progress != 40 {
		t.Fatalf("Get() progress = %d, want 40 (merge keeps the maximum)", record.Progress)
	}
}

func TestMemoryStoreResetStartsOver(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	if err := store.Set(ctx, "octo", "widgets", Update{
		Progress:  intPtr(100),
		Completed: boolPtr(true),
		Error:     strPtr("boom"),
	}); err != nil {
		t.Fatalf("Set() error = %v, want nil", err)
	}
	if err := store.Set(ctx, "octo", "widgets", Update{
		Progress: intPtr(0),
		Stage:    StagePreparing,
		Reset:    true,
	}); err != nil {
		t.Fatalf("Set() error = %v, want nil", err)
	}

	record, _, _ := store.Get(ctx, "octo", "widgets")
	if record.Progress != 0 || record.Completed || record.Error != "" {
		t.Fatalf("Get() after reset = %+v, want clean record at progress 0", record)
	}
}

func TestMemoryStoreErrorAndResultAreExclusive(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	result := &analyze.Result{Summary: "done"}
	if err := store.Set(ctx, "octo", "widgets", Update{Result: result}); err != nil {
		t.Fatalf("Set() error = %v, want nil", err)
	}
	if err := store.Set(ctx, "octo", "widgets", Update{Error: strPtr("boom")}); err != nil {
		t.Fatalf("Set() error = %v, want nil", err)
	}

	record, _, _ := store.Get(ctx, "octo", "widgets")
	if record.Result != nil || record.Error != "boom" {
		t.Fatalf("Get() = %+v, want error set and result cleared", record)
	}

	if err := store.Set(ctx, "octo", "widgets", Update{Result: result}); err != nil {
		t.Fatalf("Set() error = %v, want nil", err)
	}
	record, _, _ = store.Get(ctx, "octo", "widgets")
	if record.Result == nil || record.Error != "" {
		t.Fatalf("Get() = %+v, want result set and error cleared", record)
	}
}

func TestMemoryStoreSweepRemovesStaleRecords(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return base }
	if err := store.Set(ctx, "octo", "stale", Update{Progress: intPtr(50)}); err != nil {
		t.Fatalf("Set() error = %v, want nil", err)
	}

	store.Now = func() time.Time { return base.Add(30 * time.Minute) }
	if err := store.Set(ctx, "octo", "fresh", Update{Progress: intPtr(50)}); err != nil {
		t.Fatalf("Set() error = %v, want nil", err)
	}

	if err := store.Sweep(ctx, base.Add(90*time.Minute)); err != nil {
		t.Fatalf("Sweep() error = %v, want nil", err)
	}

	if _, found, _ := store.Get(ctx, "octo", "stale"); found {
		t.Fatalf("Get() found stale record, want swept")
	}
	if _, found, _ := store.Get(ctx, "octo", "fresh"); !found {
		t.Fatalf("Get() missing fresh record, want kept")
	}
	if store.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", store.Len())
	}
}

func TestMemoryStoreConcurrentUpdates(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(progressValue int) {
			defer wg.Done()
			_ = store.Set(ctx, "octo", "widgets", Update{Progress: intPtr(progressValue)})
			_, _, _ = store.Get(ctx, "octo", "widgets")
		}(i * 2)
	}
	wg.Wait()

	record, found, err := store.Get(ctx, "octo", "widgets")
	if err != nil || !found {
		t.Fatalf("Get() = (found=%v, err=%v), want record", found, err)
	}
	if record.Progress != 98 {
		t.Fatalf("Get() progress = %d, want 98 (highest written value)", record.Progress)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(time.Hour)
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

package progress

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Hobby2025/Contribase-sub000/internal/analyze"
	"go.uber.org/zap"
)

// Stage identifies a pipeline stage for progress reporting.
type Stage string

const (
	// StageNotStarted is reported for keys with no record.
	StageNotStarted Stage = "not_started"
	// StagePreparing covers run validation and quota checks (0-10%).
	StagePreparing Stage = "preparing"
	// StageFetching covers GitHub data retrieval (10-40%).
	StageFetching Stage = "fetching"
	// StageAnalyzing covers aggregation, AI, and scoring (40-90%).
	StageAnalyzing Stage = "analyzing"
	// StageFinalizing covers result composition (90-100%).
	StageFinalizing Stage = "finalizing"
)

// Record is the progress state for one (owner, repo) analysis.
// Completed implies exactly one of Result or Error is set.
type Record struct {
	Progress    int             `json:"progress"`
	Stage       Stage           `json:"stage"`
	Completed   bool            `json:"completed"`
	Error       string          `json:"error,omitempty"`
	Result      *analyze.Result `json:"result,omitempty"`
	Message     string          `json:"message,omitempty"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

// Update is a partial record mutation. Nil fields preserve existing values.
// Reset discards the existing record first, which lets a new run restart
// progress at zero without violating per-run monotonicity.
type Update struct {
	Progress  *int
	Stage     Stage
	Completed *bool
	Error     *string
	Result    *analyze.Result
	Message   *string
	Reset     bool
}

// Store tracks analysis progress keyed by repository.
type Store interface {
	Set(ctx context.Context, owner, repo string, update Update) error
	Get(ctx context.Context, owner, repo string) (Record, bool, error)
	Delete(ctx context.Context, owner, repo string) error
	Sweep(ctx context.Context, now time.Time) error
}

// Key normalizes (owner, repo) into the single canonical store key.
func Key(owner, repo string) string {
	return strings.ToLower(strings.TrimSpace(owner)) + "/" + strings.ToLower(strings.TrimSpace(repo))
}

// MemoryStore is the in-process progress store. Records are ephemeral: a
// process restart loses them, and callers treat "not found" as "not started".
type MemoryStore struct {
	mu      sync.RWMutex
	ttl     time.Duration
	records map[string]Record
	// Now is injected for testability.
	Now func() time.Time
}

// NewMemoryStore creates a memory progress store with the given record TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryStore{
		ttl:     ttl,
		records: make(map[string]Record),
		Now:     time.Now,
	}
}

// Set merges the update into the record for (owner, repo) and stamps
// LastUpdated. Progress never regresses on merge within a run.
func (s *MemoryStore) Set(_ context.Context, owner, repo string, update Update) error {
	key := Key(owner, repo)

	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.records[key]
	if update.Reset {
		record = Record{}
	}
	record = mergeRecord(record, update)
	record.LastUpdated = s.Now()
	s.records[key] = record
	return nil
}

// Get reads the record for (owner, repo).
func (s *MemoryStore) Get(_ context.Context, owner, repo string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[Key(owner, repo)]
	return record, ok, nil
}

// Delete removes the record for (owner, repo).
func (s *MemoryStore) Delete(_ context.Context, owner, repo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, Key(owner, repo))
	return nil
}

// Sweep removes records older than the TTL.
func (s *MemoryStore) Sweep(_ context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, record := range s.records {
		if now.Sub(record.LastUpdated) > s.ttl {
			delete(s.records, key)
		}
	}
	return nil
}

// Len reports the number of live records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func mergeRecord(record Record, update Update) Record {
	if update.Progress != nil && *update.Progress > record.Progress {
		record.Progress = *update.Progress
	}
	if update.Stage != "" {
		record.Stage = update.Stage
	}
	if update.Completed != nil {
		record.Completed = *update.Completed
	}
	if update.Error != nil {
		record.Error = *update.Error
		record.Result = nil
	}
	if update.Result != nil {
		record.Result = update.Result
		record.Error = ""
	}
	if update.Message != nil {
		record.Message = *update.Message
	}
	return record
}

// StartSweeper runs periodic sweeps until the context is canceled.
func StartSweeper(ctx context.Context, store Store, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if err := store.Sweep(ctx, now); err != nil {
					logger.Warn("progress sweep failed", zap.Error(err))
				}
			}
		}
	}()
}

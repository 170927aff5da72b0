package pipeline

import (
	"context"
	"sync"
	"time"
)

// DailyQuota is a process-local QuotaChecker that caps how many analysis
// runs may start per UTC day. The counter resets when the day rolls over
// and is not persisted across restarts.
type DailyQuota struct {
	mu    sync.Mutex
	limit int
	day   string
	used  int

	// Now is injectable for tests.
	Now func() time.Time
}

// NewDailyQuota returns a quota that admits up to limit runs per UTC day.
// A limit of zero or less admits everything.
func NewDailyQuota(limit int) *DailyQuota {
	return &DailyQuota{
		limit: limit,
		Now:   time.Now,
	}
}

// Check admits the run and consumes one slot, or returns ErrQuotaExceeded
// when the day's allowance is used up. Refused runs consume nothing.
func (q *DailyQuota) Check(ctx context.Context, owner, repo string) error {
	if q.limit <= 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	day := q.Now().UTC().Format(time.DateOnly)
	if day != q.day {
		q.day = day
		q.used = 0
	}
	if q.used >= q.limit {
		return ErrQuotaExceeded
	}
	q.used++
	return nil
}

package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// BudgetWindow is the provider's short rate limit window
	BudgetWindow = 15 * time.Minute
	// DefaultPer15Min is the provider's request allowance per short window
	DefaultPer15Min = 600
	// DefaultPerDay is the provider's daily request allowance
	DefaultPerDay = 30000
)

// BudgetSnapshot is a point-in-time copy of the request counters
type BudgetSnapshot struct {
	WindowStart time.Time `json:"window_start"`
	Window15m   int       `json:"window_15m"`
	DayStart    time.Time `json:"day_start"`
	Day         int       `json:"day"`
	Total       int       `json:"total"`
}

// RequestBudget counts requests issued in the current 15 minute window and the
// current UTC day. Windows follow the provider's fixed clock boundaries. The
// counters are informational; they never block a request.
type RequestBudget struct {
	mu          sync.Mutex
	windowStart time.Time
	dayStart    time.Time
	window      int
	day         int
	total       int
}

func (b *RequestBudget) record(now time.Time) BudgetSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	now = now.UTC()
	windowStart := now.Truncate(BudgetWindow)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	if !windowStart.Equal(b.windowStart) {
		b.windowStart = windowStart
		b.window = 0
	}
	if !dayStart.Equal(b.dayStart) {
		b.dayStart = dayStart
		b.day = 0
	}
	b.window++
	b.day++
	b.total++

	return b.snapshotLocked()
}

// Snapshot returns a copy of the counters
func (b *RequestBudget) Snapshot() BudgetSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *RequestBudget) snapshotLocked() BudgetSnapshot {
	return BudgetSnapshot{
		WindowStart: b.windowStart,
		Window15m:   b.window,
		DayStart:    b.dayStart,
		Day:         b.day,
		Total:       b.total,
	}
}

// Quota enables client-side pacing to the provider's published allowances
type Quota struct {
	Enabled  bool `json:"enabled" mapstructure:"enabled"`
	Per15Min int  `json:"per_15_min" mapstructure:"per_15_min"`
	PerDay   int  `json:"per_day" mapstructure:"per_day"`
}

// DefaultQuota returns the provider allowances with enforcement disabled
func DefaultQuota() Quota {
	return Quota{
		Enabled:  false,
		Per15Min: DefaultPer15Min,
		PerDay:   DefaultPerDay,
	}
}

type quotaLimiter struct {
	short *rate.Limiter
	daily *rate.Limiter
}

func newQuotaLimiter(q Quota) (*quotaLimiter, error) {
	if !q.Enabled {
		return nil, nil
	}
	if q.Per15Min <= 0 || q.PerDay <= 0 {
		return nil, fmt.Errorf("quota limits must be positive (per_15_min=%d, per_day=%d)", q.Per15Min, q.PerDay)
	}
	return &quotaLimiter{
		short: rate.NewLimiter(rate.Every(BudgetWindow/time.Duration(q.Per15Min)), q.Per15Min),
		daily: rate.NewLimiter(rate.Every(24*time.Hour/time.Duration(q.PerDay)), q.PerDay),
	}, nil
}

func (l *quotaLimiter) wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := l.daily.Wait(ctx); err != nil {
		return fmt.Errorf("daily quota wait: %w", err)
	}
	if err := l.short.Wait(ctx); err != nil {
		return fmt.Errorf("15 minute quota wait: %w", err)
	}
	return nil
}

// Package ratelimit tracks per-device daily review quotas. Counters are
// keyed by device id and UTC calendar day so limits reset at the same
// instant for every user regardless of timezone.
package ratelimit

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reviewloop/pkg/models"
)

const (
	// DefaultDailyLimit is the free-tier review allowance per device per
	// UTC day.
	DefaultDailyLimit = 10

	// DefaultMaxTrackedKeys is the high-water mark above which stale
	// keys are swept. Eviction only runs past this threshold so no
	// eviction work happens on the request path under normal load.
	DefaultMaxTrackedKeys = 10000

	// staleAfterDays is how many days old a key's embedded date must be
	// before the sweep removes it. Two days rather than one buffers
	// against clock skew around date boundaries.
	staleAfterDays = 2

	dayFormat = "2006-01-02"
)

// Store is the key-value mapping the limiter counts against. The limiter
// serializes all access through its own mutex, so implementations need
// no internal locking.
type Store interface {
	Get(key string) (int, bool)
	Set(key string, count int)
	Delete(key string)
	Keys() []string
}

// Limiter answers whether a device may run another review today and
// records consumed reviews.
type Limiter struct {
	mu             sync.Mutex
	store          Store
	limit          int
	maxTrackedKeys int
	now            func() time.Time
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithMaxTrackedKeys overrides the eviction high-water mark.
func WithMaxTrackedKeys(n int) Option {
	return func(l *Limiter) { l.maxTrackedKeys = n }
}

// New creates a limiter with the given per-day limit backed by store.
func New(store Store, limit int, opts ...Option) *Limiter {
	if limit < 1 {
		limit = DefaultDailyLimit
	}
	l := &Limiter{
		store:          store,
		limit:          limit,
		maxTrackedKeys: DefaultMaxTrackedKeys,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check reports the device's current standing without consuming quota.
// ResetAt is the next UTC midnight, computed fresh on every call.
func (l *Limiter) Check(deviceID string) models.QuotaStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	used, _ := l.store.Get(l.key(deviceID, now))

	remaining := l.limit - used
	if remaining < 0 {
		remaining = 0
	}

	return models.QuotaStatus{
		Used:      used,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   nextUTCMidnight(now),
	}
}

// Increment consumes one review from the device's daily quota. The
// orchestrator calls this strictly after a successful upstream review;
// failed or exhausted reviews must not burn quota.
func (l *Limiter) Increment(deviceID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	l.evictStale(now)

	key := l.key(deviceID, now)
	used, _ := l.store.Get(key)
	l.store.Set(key, used+1)
}

func (l *Limiter) key(deviceID string, now time.Time) string {
	return fmt.Sprintf("%s:%s", deviceID, now.Format(dayFormat))
}

// evictStale sweeps keys whose embedded date is at least staleAfterDays
// before today. Runs only when the tracked key count exceeds the
// high-water mark. Caller holds the mutex.
func (l *Limiter) evictStale(now time.Time) {
	keys := l.store.Keys()
	if len(keys) <= l.maxTrackedKeys {
		return
	}

	cutoff := now.Truncate(24 * time.Hour).AddDate(0, 0, -(staleAfterDays - 1))
	evicted := 0

	for _, key := range keys {
		idx := strings.LastIndex(key, ":")
		if idx == -1 {
			continue
		}
		day, err := time.Parse(dayFormat, key[idx+1:])
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			l.store.Delete(key)
			evicted++
		}
	}

	log.Info().
		Int("tracked_keys", len(keys)).
		Int("evicted", evicted).
		Msg("Swept stale rate limit keys")
}

// nextUTCMidnight returns the first instant of the next UTC day.
func nextUTCMidnight(now time.Time) time.Time {
	year, month, day := now.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

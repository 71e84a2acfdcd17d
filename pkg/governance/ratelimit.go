package governance

import (
	"sync"
	"time"
)

// AnonymousSubject keys rate-limit windows for callers with no scopes.
const AnonymousSubject = "__anon__"

const (
	rateWindow  = 60 * time.Second
	burstWindow = time.Second
)

// Default limits applied when a limiter is built from zero config.
const (
	DefaultPerMinuteLimit = 60
	DefaultBurstLimit     = 10
)

// SubjectForScopes derives the rate-limit subject from a caller's
// scope list: the first scope, or AnonymousSubject when there is none.
func SubjectForScopes(scopes []string) string {
	if len(scopes) == 0 {
		return AnonymousSubject
	}
	return scopes[0]
}

// RateLimiter tracks per-subject call timestamps under two
// simultaneous sliding windows: a 60 s window against the per-minute
// limit and a 1 s window against the burst limit. Entries older than
// the long window are purged lazily on read.
type RateLimiter struct {
	mu        sync.Mutex
	history   map[string][]time.Time
	perMinute int
	burst     int
	now       func() time.Time
}

// NewRateLimiter builds a limiter. Non-positive limits fall back to
// the defaults.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = DefaultPerMinuteLimit
	}
	if burst <= 0 {
		burst = DefaultBurstLimit
	}
	return &RateLimiter{
		history:   make(map[string][]time.Time),
		perMinute: perMinute,
		burst:     burst,
		now:       time.Now,
	}
}

// SetClock overrides the limiter's time source.
func (rl *RateLimiter) SetClock(now func() time.Time) { rl.now = now }

// Allow reports whether the subject may proceed and, if so, records
// the call. Denied calls are not recorded.
func (rl *RateLimiter) Allow(subject string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	recent := rl.pruneLocked(subject, now)

	if len(recent) >= rl.perMinute {
		return false
	}
	inBurst := 0
	burstStart := now.Add(-burstWindow)
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].Before(burstStart) {
			break
		}
		inBurst++
	}
	if inBurst >= rl.burst {
		return false
	}

	rl.history[subject] = append(recent, now)
	return true
}

// Remaining returns how many calls the subject has left in the
// per-minute window.
func (rl *RateLimiter) Remaining(subject string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	recent := rl.pruneLocked(subject, rl.now())
	rem := rl.perMinute - len(recent)
	if rem < 0 {
		return 0
	}
	return rem
}

// pruneLocked drops timestamps older than the long window and returns
// the surviving slice. Empty subjects are removed from the map so
// idle keys do not accumulate.
func (rl *RateLimiter) pruneLocked(subject string, now time.Time) []time.Time {
	history := rl.history[subject]
	cutoff := now.Add(-rateWindow)
	start := 0
	for start < len(history) && !history[start].After(cutoff) {
		start++
	}
	if start > 0 {
		history = history[start:]
	}
	if len(history) == 0 {
		delete(rl.history, subject)
	} else {
		rl.history[subject] = history
	}
	return history
}

package governance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubjectForScopes(t *testing.T) {
	assert.Equal(t, "tools:execute", SubjectForScopes([]string{"tools:execute", "net:fetch"}))
	assert.Equal(t, AnonymousSubject, SubjectForScopes(nil))
	assert.Equal(t, AnonymousSubject, SubjectForScopes([]string{}))
}

func TestRateLimiter_PerMinuteWindow(t *testing.T) {
	rl := NewRateLimiter(3, 100)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.SetClock(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("subj"), "call %d", i)
		now = now.Add(2 * time.Second)
	}
	assert.False(t, rl.Allow("subj"))

	// Entries age out of the 60 s window lazily on the next read.
	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("subj"))
}

func TestRateLimiter_BurstWindow(t *testing.T) {
	rl := NewRateLimiter(100, 2)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.SetClock(func() time.Time { return now })

	assert.True(t, rl.Allow("subj"))
	now = now.Add(100 * time.Millisecond)
	assert.True(t, rl.Allow("subj"))
	now = now.Add(100 * time.Millisecond)
	assert.False(t, rl.Allow("subj"))

	// Outside the 1 s burst window but inside the minute window.
	now = now.Add(time.Second)
	assert.True(t, rl.Allow("subj"))
}

func TestRateLimiter_DeniedCallsNotRecorded(t *testing.T) {
	rl := NewRateLimiter(1, 100)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.SetClock(func() time.Time { return now })

	assert.True(t, rl.Allow("subj"))
	for i := 0; i < 5; i++ {
		assert.False(t, rl.Allow("subj"))
	}
	// Only the single allowed call occupies the window.
	assert.Equal(t, 0, rl.Remaining("subj"))
	now = now.Add(61 * time.Second)
	assert.Equal(t, 1, rl.Remaining("subj"))
}

func TestRateLimiter_SubjectsIsolated(t *testing.T) {
	rl := NewRateLimiter(1, 100)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.SetClock(func() time.Time { return now })

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
}

func TestRateLimiter_LazyPurgeDropsIdleSubjects(t *testing.T) {
	rl := NewRateLimiter(10, 10)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.SetClock(func() time.Time { return now })

	rl.Allow("subj")
	now = now.Add(2 * time.Minute)
	assert.Equal(t, 10, rl.Remaining("subj"))

	rl.mu.Lock()
	_, present := rl.history["subj"]
	rl.mu.Unlock()
	assert.False(t, present)
}

func TestRateLimiter_DefaultLimits(t *testing.T) {
	rl := NewRateLimiter(0, -1)
	assert.Equal(t, DefaultPerMinuteLimit, rl.perMinute)
	assert.Equal(t, DefaultBurstLimit, rl.burst)
}

package events

import "sync"

// FeedCap bounds the in-memory activity feed; oldest entries are evicted on
// overflow.
const FeedCap = 1000

// Feed is a bounded ring of recent events backing the activity endpoint.
type Feed struct {
	mu      sync.Mutex
	entries []Event
	start   int
	count   int
	cap     int
}

// NewFeed returns a feed bounded at FeedCap.
func NewFeed() *Feed {
	return NewFeedWithCap(FeedCap)
}

// NewFeedWithCap returns a feed with an explicit bound (used by tests).
func NewFeedWithCap(n int) *Feed {
	if n < 1 {
		n = 1
	}
	return &Feed{entries: make([]Event, n), cap: n}
}

// Add appends an event, evicting the oldest when full.
func (f *Feed) Add(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := (f.start + f.count) % f.cap
	if f.count == f.cap {
		// Overwrite the oldest slot and advance the window.
		f.entries[f.start] = ev
		f.start = (f.start + 1) % f.cap
		return
	}
	f.entries[idx] = ev
	f.count++
}

// Recent returns up to limit events, newest first. limit <= 0 returns all.
func (f *Feed) Recent(limit int) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		idx := (f.start + f.count - 1 - i + f.cap) % f.cap
		out = append(out, f.entries[idx])
	}
	return out
}

// Len reports the number of retained events.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

// Run consumes a subscription into the feed until the subscription closes.
// Intended to run in its own goroutine against a GlobalChannel subscription.
func (f *Feed) Run(sub *Subscription) {
	for ev := range sub.C {
		f.Add(ev)
	}
}

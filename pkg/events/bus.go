package events

import (
	"log/slog"
	"sync"
	"time"
)

// SubscriberBufferCap bounds each subscriber's pending queue. When full,
// the oldest pending event is dropped so publishers never block.
const SubscriberBufferCap = 50

// Subscription is one subscriber's view of the bus. Events arrive on C;
// Close unsubscribes and releases the channel.
type Subscription struct {
	C       chan Event
	channel string
	id      int
	bus     *Bus
	once    sync.Once
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.unsubscribe(s)
	})
}

// Bus is a process-local publish/subscribe hub. Publishing is non-blocking:
// each subscriber owns a bounded buffer with drop-oldest overflow.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[string][]*Subscription
	logger *slog.Logger

	dropped uint64
}

// NewBus returns an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[string][]*Subscription),
		logger: logger.With("component", "events"),
	}
}

// Subscribe registers a subscriber on the given channel. Every event also
// reaches GlobalChannel subscribers regardless of its own channel.
func (b *Bus) Subscribe(channel string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &Subscription{
		C:       make(chan Event, SubscriberBufferCap),
		channel: channel,
		id:      b.nextID,
		bus:     b,
	}
	b.subs[channel] = append(b.subs[channel], sub)
	return sub
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[sub.channel]
	for i, s := range list {
		if s.id == sub.id {
			b.subs[sub.channel] = append(list[:i], list[i+1:]...)
			break
		}
	}
	close(sub.C)
}

// Publish delivers the event to its channel's subscribers and to the global
// channel. The timestamp is filled in when unset.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliverLocked(ev.Channel, ev)
	if ev.Channel != GlobalChannel {
		b.deliverLocked(GlobalChannel, ev)
	}
}

func (b *Bus) deliverLocked(channel string, ev Event) {
	for _, sub := range b.subs[channel] {
		select {
		case sub.C <- ev:
		default:
			// Buffer full: evict the oldest pending event, then retry.
			select {
			case <-sub.C:
				b.dropped++
			default:
			}
			select {
			case sub.C <- ev:
			default:
				b.dropped++
			}
		}
	}
}

// SubscriberCount reports active subscribers per channel, for health probes.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, list := range b.subs {
		n += len(list)
	}
	return n
}

// Dropped reports how many events were evicted from full buffers.
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

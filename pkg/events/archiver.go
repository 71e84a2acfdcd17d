package events

import (
	"context"
	"log/slog"
)

// Sink receives events selected for durable storage.
type Sink interface {
	Archive(ctx context.Context, ev Event) error
}

// Archiver drains a global subscription into a sink, keeping selected
// event types beyond the in-memory feed's horizon. A nil filter keeps
// everything.
type Archiver struct {
	bus    *Bus
	sink   Sink
	keep   map[string]bool
	logger *slog.Logger
}

// NewArchiver builds an archiver keeping only the given event types.
func NewArchiver(bus *Bus, sink Sink, keep []string, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	var keepSet map[string]bool
	if len(keep) > 0 {
		keepSet = make(map[string]bool, len(keep))
		for _, t := range keep {
			keepSet[t] = true
		}
	}
	return &Archiver{
		bus:    bus,
		sink:   sink,
		keep:   keepSet,
		logger: logger.With("component", "event_archiver"),
	}
}

// Run subscribes to the global channel and archives until the context
// is cancelled. Sink errors are logged and the event is dropped; the
// archiver never blocks the bus.
func (a *Archiver) Run(ctx context.Context) {
	sub := a.bus.Subscribe(GlobalChannel)
	defer sub.Close()

	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if a.keep != nil && !a.keep[ev.Type] {
				continue
			}
			if err := a.sink.Archive(ctx, ev); err != nil {
				a.logger.Warn("failed to archive event",
					"type", ev.Type, "channel", ev.Channel, "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

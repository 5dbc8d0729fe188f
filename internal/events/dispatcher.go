package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/urielparavi/natours-auth/internal/auth"
)

// DefaultQueueSize is the event buffer used when none is configured.
// Events beyond this are dropped to avoid back-pressure on requests.
const DefaultQueueSize = 256

// sinkTimeout bounds a single sink call.
const sinkTimeout = 5 * time.Second

// Sink consumes events. Handle is called from the dispatcher goroutine
// only, so implementations need not be safe for concurrent use.
type Sink interface {
	Name() string
	Handle(ctx context.Context, ev auth.Event) error
}

// Dispatcher queues events and delivers them to its sinks serially.
// It implements auth.EventRecorder.
type Dispatcher struct {
	queue  chan auth.Event
	sinks  []Sink
	logger *slog.Logger

	dropped uint64
	mu      sync.Mutex
	done    chan struct{}
}

// NewDispatcher creates a dispatcher with a queue of size events.
//
// Parameters:
//   - size: Queue capacity; values <= 0 fall back to DefaultQueueSize
//   - logger: Receives drop warnings and sink failures; nil means slog.Default()
//   - sinks: Delivery targets, called in order for every event
//
// The dispatcher does nothing until Run is started in its own goroutine.
func NewDispatcher(size int, logger *slog.Logger, sinks ...Sink) *Dispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		queue:  make(chan auth.Event, size),
		sinks:  sinks,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Record enqueues ev without blocking. If the queue is full the event is
// dropped and a warning is logged.
func (d *Dispatcher) Record(ev auth.Event) {
	select {
	case d.queue <- ev:
	default:
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
		d.logger.Warn("event queue full, dropping event",
			"type", string(ev.Type),
			"outcome", ev.Outcome,
		)
	}
}

// Dropped returns the number of events discarded because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Run delivers events until ctx is cancelled, then drains what is left in
// the queue and returns. Run must be called at most once.
//
// Shutdown order matters: cancel ctx, wait on Done, and only then close
// the resources behind the sinks (MQTT, InfluxDB, the audit database).
// Events recorded after Run has returned stay in the queue.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

// Done is closed when Run has returned.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// deliver hands ev to every sink. A failing sink does not stop the others.
// Sinks get a fresh context so the drain at shutdown can still write.
func (d *Dispatcher) deliver(ev auth.Event) {
	for _, s := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		if err := s.Handle(ctx, ev); err != nil {
			d.logger.Error("event sink failed",
				"sink", s.Name(),
				"type", string(ev.Type),
				"error", err,
			)
		}
		cancel()
	}
}

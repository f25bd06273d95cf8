// Package notifier buffers usage and billing notification events and
// delivers them through the structured log. The buffer is bounded and
// flushed on shutdown, so the process never blocks on delivery.
package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

const defaultCapacity = 256

// Event is a single notification awaiting delivery.
type Event struct {
	Kind      string       `json:"kind"`
	OrgID     snowflake.ID `json:"org_id"`
	Threshold int          `json:"threshold,omitempty"`
	Message   string       `json:"message,omitempty"`
	At        time.Time    `json:"at"`
}

// Event kinds emitted by the metering core.
const (
	KindUsageThreshold = "usage_threshold"
	KindGraceOpened    = "grace_opened"
	KindGraceExpired   = "grace_expired"
)

type Notifier interface {
	// Record enqueues an event for delivery. It never blocks; when the
	// buffer is full the oldest pending event is dropped.
	Record(ctx context.Context, ev Event)
	// Flush drains the buffer to the sink.
	Flush(ctx context.Context) error
}

type logNotifier struct {
	log *zap.Logger

	mu      sync.Mutex
	pending []Event
	dropped int
}

func New(log *zap.Logger) Notifier {
	return &logNotifier{
		log:     log.Named("notifier"),
		pending: make([]Event, 0, defaultCapacity),
	}
}

func (n *logNotifier) Record(_ context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	n.mu.Lock()
	if len(n.pending) >= defaultCapacity {
		n.pending = n.pending[1:]
		n.dropped++
	}
	n.pending = append(n.pending, ev)
	n.mu.Unlock()
}

func (n *logNotifier) Flush(_ context.Context) error {
	n.mu.Lock()
	batch := n.pending
	dropped := n.dropped
	n.pending = make([]Event, 0, defaultCapacity)
	n.dropped = 0
	n.mu.Unlock()

	for _, ev := range batch {
		n.log.Info("notification",
			zap.String("kind", ev.Kind),
			zap.Int64("org_id", int64(ev.OrgID)),
			zap.Int("threshold", ev.Threshold),
			zap.String("message", ev.Message),
			zap.Time("at", ev.At),
		)
	}
	if dropped > 0 {
		n.log.Warn("notifications dropped under backpressure", zap.Int("dropped", dropped))
	}
	return nil
}

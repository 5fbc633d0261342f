package bridge

import (
	"context"
	"time"

	"github.com/dyluth/locbridge/pkg/blackboard"
	"go.uber.org/zap"
)

// EventStore is the subset of the blackboard client used for auditing.
type EventStore interface {
	RecordSeedEvent(ctx context.Context, e *blackboard.SeedEvent) error
	StoreCurrentPose(ctx context.Context, p *blackboard.CurrentPose) error
}

// EventSink queues audit records and writes them to Redis in the background.
// Records are dropped when the queue is full so workers never wait on Redis.
type EventSink struct {
	store   EventStore
	queue   chan func(context.Context) error
	timeout time.Duration
	// flushTimeout bounds the whole shutdown flush, not each record.
	flushTimeout time.Duration
	log          *zap.SugaredLogger
}

// NewEventSink creates a sink with room for size pending records.
func NewEventSink(store EventStore, size int, log *zap.SugaredLogger) *EventSink {
	return &EventSink{
		store:        store,
		queue:        make(chan func(context.Context) error, size),
		timeout:      2 * time.Second,
		flushTimeout: 3 * time.Second,
		log:          log,
	}
}

// Record queues a seed event.
func (s *EventSink) Record(ctx context.Context, e *blackboard.SeedEvent) {
	s.enqueue("seed event", func(ctx context.Context) error {
		return s.store.RecordSeedEvent(ctx, e)
	})
}

// StoreCurrentPose queues a current pose update.
func (s *EventSink) StoreCurrentPose(ctx context.Context, p *blackboard.CurrentPose) {
	s.enqueue("current pose", func(ctx context.Context) error {
		return s.store.StoreCurrentPose(ctx, p)
	})
}

func (s *EventSink) enqueue(what string, op func(context.Context) error) {
	select {
	case s.queue <- op:
	default:
		s.log.Warnw("Audit queue full, dropping record", "record", what)
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (s *EventSink) Run(ctx context.Context) {
	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
		case op := <-s.queue:
			s.apply(context.Background(), op)
		}
	}
	s.flush()
}

func (s *EventSink) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), s.flushTimeout)
	defer cancel()
	for {
		select {
		case op := <-s.queue:
			if ctx.Err() != nil {
				s.log.Warnw("Audit flush timed out, dropping records", "dropped", 1+s.discard())
				return
			}
			s.apply(ctx, op)
		default:
			return
		}
	}
}

// discard empties the queue and returns how many records were in it.
func (s *EventSink) discard() int {
	n := 0
	for {
		select {
		case <-s.queue:
			n++
		default:
			return n
		}
	}
}

func (s *EventSink) apply(parent context.Context, op func(context.Context) error) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()
	if err := op(ctx); err != nil {
		s.log.Warnw("Failed to write audit record", "err", err)
	}
}

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/events"
)

var errQueueFull = errors.New("relay queue full")

// Publisher sends an encoded event to an external bus channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) (int64, error)
}

// RelayRecorder observes relay attempts.
type RelayRecorder interface {
	RecordEventRelayed(eventType string, err error)
}

// EventRelay forwards in-process events to a pub/sub channel. Publishing is
// decoupled from request handling through a bounded queue; when the queue is
// full the event is dropped and logged.
type EventRelay struct {
	publisher Publisher
	channel   string
	logger    *zap.Logger
	recorder  RelayRecorder
	queue     chan events.Event
	wg        sync.WaitGroup
}

// NewEventRelay creates a relay with a queue of bufferSize events.
func NewEventRelay(publisher Publisher, channel string, bufferSize int, logger *zap.Logger, recorder RelayRecorder) *EventRelay {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &EventRelay{
		publisher: publisher,
		channel:   channel,
		logger:    logger,
		recorder:  recorder,
		queue:     make(chan events.Event, bufferSize),
	}
}

// Register subscribes the relay to every engine event.
func (r *EventRelay) Register(d events.Dispatcher) {
	events.SubscribeAll(d, r.enqueue)
}

func (r *EventRelay) enqueue(_ context.Context, event events.Event) error {
	select {
	case r.queue <- event:
	default:
		r.logger.Warn("event relay queue full; dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.String("tenant_id", event.TenantID))
		if r.recorder != nil {
			r.recorder.RecordEventRelayed(string(event.Type), errQueueFull)
		}
	}
	return nil
}

// Start launches the publishing goroutine. It drains the queue and returns
// once ctx is cancelled; Wait blocks until it has.
func (r *EventRelay) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-ctx.Done():
				r.drain()
				return
			case event := <-r.queue:
				r.publish(context.WithoutCancel(ctx), event)
			}
		}
	}()
}

// Wait blocks until the publishing goroutine exits.
func (r *EventRelay) Wait() {
	r.wg.Wait()
}

func (r *EventRelay) drain() {
	for {
		select {
		case event := <-r.queue:
			r.publish(context.Background(), event)
		default:
			return
		}
	}
}

func (r *EventRelay) publish(ctx context.Context, event events.Event) {
	payload, err := json.Marshal(event)
	if err == nil {
		_, err = r.publisher.Publish(ctx, r.channel, payload)
	}
	if r.recorder != nil {
		r.recorder.RecordEventRelayed(string(event.Type), err)
	}
	if err != nil {
		r.logger.Error("relay event",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
}

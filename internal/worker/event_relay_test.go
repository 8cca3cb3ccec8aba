package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/events"
)

type recordingPublisher struct {
	mu       sync.Mutex
	channel  string
	messages [][]byte
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, payload []byte) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channel = channel
	p.messages = append(p.messages, payload)
	return 1, p.err
}

type countingRecorder struct {
	mu     sync.Mutex
	ok     int
	failed int
}

func (r *countingRecorder) RecordEventRelayed(_ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.failed++
		return
	}
	r.ok++
}

func TestEventRelay_PublishesQueuedEventsOnShutdown(t *testing.T) {
	pub := &recordingPublisher{}
	rec := &countingRecorder{}
	relay := NewEventRelay(pub, "sla-events", 8, zap.NewNop(), rec)

	d := events.NewInMemoryDispatcher()
	relay.Register(d)

	require.NoError(t, d.Publish(context.Background(), events.Event{Type: events.EventClockPaused, TenantID: "t1", TicketID: "tk1"}))
	require.NoError(t, d.Publish(context.Background(), events.Event{Type: events.EventThresholdCrossed, TenantID: "t1", TicketID: "tk1"}))

	ctx, cancel := context.WithCancel(context.Background())
	relay.Start(ctx)
	cancel()
	relay.Wait()

	require.Len(t, pub.messages, 2)
	assert.Equal(t, "sla-events", pub.channel)

	var decoded events.Event
	require.NoError(t, json.Unmarshal(pub.messages[0], &decoded))
	assert.Equal(t, events.EventClockPaused, decoded.Type)
	assert.Equal(t, "tk1", decoded.TicketID)
	assert.Equal(t, 2, rec.ok)
}

func TestEventRelay_DropsWhenQueueFull(t *testing.T) {
	pub := &recordingPublisher{}
	rec := &countingRecorder{}
	relay := NewEventRelay(pub, "sla-events", 1, zap.NewNop(), rec)

	d := events.NewInMemoryDispatcher()
	relay.Register(d)

	require.NoError(t, d.Publish(context.Background(), events.Event{Type: events.EventClockPaused}))
	require.NoError(t, d.Publish(context.Background(), events.Event{Type: events.EventClockResumed}))

	assert.Equal(t, 1, rec.failed)
}

func TestEventRelay_PublishFailureIsRecorded(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("redis unavailable")}
	rec := &countingRecorder{}
	relay := NewEventRelay(pub, "sla-events", 4, zap.NewNop(), rec)

	d := events.NewInMemoryDispatcher()
	relay.Register(d)
	require.NoError(t, d.Publish(context.Background(), events.Event{Type: events.EventPolicyDeleted}))

	ctx, cancel := context.WithCancel(context.Background())
	relay.Start(ctx)
	cancel()
	relay.Wait()

	assert.Equal(t, 1, rec.failed)
	assert.Zero(t, rec.ok)
}

package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_PublishFillsEnvelope(t *testing.T) {
	d := NewInMemoryDispatcher()

	var got Event
	d.Subscribe(EventClockPaused, func(_ context.Context, e Event) error {
		got = e
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventClockPaused, TenantID: "t1"}))
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.Timestamp.IsZero())
	assert.Equal(t, "t1", got.TenantID)
}

func TestDispatcher_HandlerErrorsDoNotStopOthers(t *testing.T) {
	d := NewInMemoryDispatcher()

	calls := 0
	d.Subscribe(EventThresholdCrossed, func(context.Context, Event) error {
		calls++
		return errors.New("relay down")
	})
	d.Subscribe(EventThresholdCrossed, func(context.Context, Event) error {
		calls++
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventThresholdCrossed})
	assert.EqualError(t, err, "relay down")
	assert.Equal(t, 2, calls)
}

func TestSubscribeAll(t *testing.T) {
	d := NewInMemoryDispatcher()

	seen := map[EventType]int{}
	SubscribeAll(d, func(_ context.Context, e Event) error {
		seen[e.Type]++
		return nil
	})
	for _, et := range AllEventTypes {
		require.NoError(t, d.Publish(context.Background(), Event{Type: et}))
	}
	assert.Len(t, seen, len(AllEventTypes))
}

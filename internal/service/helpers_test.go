package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
)

const tenant = "tenant-1"

type eventLog struct {
	events []events.Event
}

func (l *eventLog) ofType(t events.EventType) []events.Event {
	var out []events.Event
	for _, e := range l.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type countingRecorder struct {
	computations map[string]int
	crossed      map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{computations: map[string]int{}, crossed: map[string]int{}}
}

func (r *countingRecorder) ObserveComputation(op string, _ error, _ time.Duration) {
	r.computations[op]++
}

func (r *countingRecorder) RecordThresholdCrossed(dim, typ string) {
	r.crossed[dim+"/"+typ]++
}

type fixture struct {
	store    *fakeStore
	log      *eventLog
	recorder *countingRecorder
	now      time.Time
	deps     Dependencies
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    newFakeStore(),
		log:      &eventLog{},
		recorder: newCountingRecorder(),
		now:      time.Date(2025, time.July, 1, 12, 0, 0, 0, time.UTC),
	}
	dispatcher := events.NewInMemoryDispatcher()
	events.SubscribeAll(dispatcher, func(_ context.Context, e events.Event) error {
		f.log.events = append(f.log.events, e)
		return nil
	})
	f.deps = Dependencies{
		Store:      f.store,
		Dispatcher: dispatcher,
		Recorder:   f.recorder,
		Now:        func() time.Time { return f.now },
	}
	return f
}

func (f *fixture) addUser(id string) {
	f.store.state.users[id] = true
}

func (f *fixture) addPriority(id string) {
	f.store.state.priorities[id] = true
}

func (f *fixture) addClient(id string) {
	f.store.state.clients[id] = nil
}

func (f *fixture) addBoard(id string, managerID *string) {
	f.store.state.boards[id] = memBoard{managerID: managerID}
}

func (f *fixture) putTicket(ticket domain.TicketSLA) {
	if ticket.TenantID == "" {
		ticket.TenantID = tenant
	}
	f.store.state.tickets[ticket.TicketID] = ticket
}

func (f *fixture) ticket(t *testing.T, id string) domain.TicketSLA {
	t.Helper()
	ticket, ok := f.store.state.tickets[id]
	require.True(t, ok, "ticket %s missing", id)
	return ticket
}

func ptr[T any](v T) *T {
	return &v
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return ts
}

// standardInput is Mon-Fri 08:00-18:00 in New York with the weekend disabled.
func standardInput(makeDefault bool) ScheduleInput {
	in := ScheduleInput{Name: "Standard", Timezone: "America/New_York", MakeDefault: makeDefault}
	for day := 0; day < 7; day++ {
		in.Entries = append(in.Entries, EntryInput{
			DayOfWeek: day,
			StartTime: "08:00",
			EndTime:   "18:00",
			IsEnabled: day >= 1 && day <= 5,
		})
	}
	return in
}

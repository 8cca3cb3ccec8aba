package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/pkg/util/errorutil"
)

type plannerFixture struct {
	*fixture
	planner  *NotificationPlanner
	policyID string
}

func newPlannerFixture(t *testing.T) *plannerFixture {
	t.Helper()
	f := newFixture(t)
	f.addPriority("high")
	f.addBoard("support", ptr("boss"))
	f.addUser("lead")
	f.addUser("director")
	ctx := context.Background()

	catalog := NewPolicyCatalog(f.deps)
	policy, err := catalog.CreatePolicy(ctx, tenant, PolicyInput{Name: "Standard", SeedThresholds: true})
	require.NoError(t, err)
	_, err = catalog.UpsertTargets(ctx, tenant, policy.Policy.ID, []TargetInput{
		{PriorityID: "high", ResponseMinutes: ptr(100), ResolutionMinutes: ptr(1000)},
	})
	require.NoError(t, err)
	_, err = NewEscalationRegistry(f.deps).SetBoardEscalationManagers(ctx, tenant, "support", []LevelConfig{
		{Level: domain.EscalationLevel1, UserID: ptr("lead")},
		{Level: domain.EscalationLevel2, UserID: ptr("director"), Channels: []string{"pager"}},
	})
	require.NoError(t, err)

	return &plannerFixture{fixture: f, planner: NewNotificationPlanner(f.deps), policyID: policy.Policy.ID}
}

func (f *plannerFixture) runningTicket(id string, elapsedMinutes int) domain.TicketSLA {
	started := f.now.Add(-time.Duration(elapsedMinutes) * time.Minute)
	return domain.TicketSLA{
		TicketID:           id,
		TicketNumber:       "T-" + id,
		BoardID:            ptr("support"),
		PriorityID:         ptr("high"),
		AssignedTo:         ptr("alice"),
		SlaPolicyID:        ptr(f.policyID),
		SlaStartedAt:       ptr(started),
		SlaResponseDueAt:   ptr(started.Add(100 * time.Minute)),
		SlaResolutionDueAt: ptr(started.Add(1000 * time.Minute)),
	}
}

func TestNotificationPlanner_EvaluateSelectsHighestThreshold(t *testing.T) {
	f := newPlannerFixture(t)
	f.putTicket(f.runningTicket("t1", 92))

	advisories, err := f.planner.Evaluate(context.Background(), tenant, "t1", f.now)
	require.NoError(t, err)
	require.Len(t, advisories, 1, "resolution is only 9.2% elapsed")

	advisory := advisories[0]
	assert.Equal(t, domain.DimensionResponse, advisory.Dimension)
	assert.Equal(t, 90, advisory.ThresholdPercent)
	assert.Equal(t, domain.NotificationWarning, advisory.Type)
	assert.Equal(t, 92.0, advisory.PercentElapsed)
	assert.Equal(t, domain.EscalationLevel2, advisory.EscalationLevel)

	require.Len(t, advisory.Recipients, 3)
	assert.Equal(t, domain.Recipient{UserID: "alice", Role: domain.RecipientAssignee, Channels: []string{domain.ChannelInApp, domain.ChannelEmail}}, advisory.Recipients[0])
	assert.Equal(t, "boss", advisory.Recipients[1].UserID)
	assert.Equal(t, domain.RecipientBoardManager, advisory.Recipients[1].Role)
	assert.Equal(t, domain.Recipient{UserID: "director", Role: domain.RecipientEscalationManager, Channels: []string{"pager"}}, advisory.Recipients[2])

	crossed := f.log.ofType(events.EventThresholdCrossed)
	require.Len(t, crossed, 1)
	assert.Equal(t, "t1", crossed[0].TicketID)
	assert.Equal(t, advisory.ThresholdID, crossed[0].EntityID)
	assert.Equal(t, 1, f.recorder.crossed["response/warning"])
}

func TestNotificationPlanner_BreachThresholdOnOverdueTicket(t *testing.T) {
	f := newPlannerFixture(t)
	f.putTicket(f.runningTicket("t1", 115))

	advisories, err := f.planner.Evaluate(context.Background(), tenant, "t1", f.now)
	require.NoError(t, err)
	require.Len(t, advisories, 1)
	assert.Equal(t, domain.NotificationBreach, advisories[0].Type)
	assert.Equal(t, domain.EscalationLevel3, advisories[0].EscalationLevel)
	// no level 3 manager configured
	assert.Len(t, advisories[0].Recipients, 2)
}

func TestNotificationPlanner_SkipsInactiveTickets(t *testing.T) {
	f := newPlannerFixture(t)
	paused := f.runningTicket("paused", 95)
	paused.SlaPausedAt = ptr(f.now)
	f.putTicket(paused)
	closed := f.runningTicket("closed", 95)
	closed.IsClosed = true
	f.putTicket(closed)
	f.putTicket(domain.TicketSLA{TicketID: "no-sla"})

	for _, id := range []string{"paused", "closed", "no-sla"} {
		advisories, err := f.planner.Evaluate(context.Background(), tenant, id, f.now)
		require.NoError(t, err)
		assert.Empty(t, advisories, id)
	}
	assert.Empty(t, f.log.ofType(events.EventThresholdCrossed))

	_, err := f.planner.Evaluate(context.Background(), tenant, "missing", f.now)
	assert.True(t, errorutil.IsNotFound(err))
}

func TestNotificationPlanner_Sweep(t *testing.T) {
	f := newPlannerFixture(t)
	f.putTicket(f.runningTicket("early", 20))
	f.putTicket(f.runningTicket("late", 60))

	total, err := f.planner.Sweep(context.Background(), tenant, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, f.log.ofType(events.EventThresholdCrossed), 1)

	_, err = f.planner.Sweep(context.Background(), tenant, 0)
	assert.True(t, errorutil.IsValidation(err))
}

func TestNotificationPlanner_SweepIncludesOverdueTickets(t *testing.T) {
	f := newPlannerFixture(t)
	f.putTicket(f.runningTicket("early", 20))
	f.putTicket(f.runningTicket("overdue", 1100))

	total, err := f.planner.Sweep(context.Background(), tenant, 1)
	require.NoError(t, err)
	assert.Positive(t, total)
	crossed := f.log.ofType(events.EventThresholdCrossed)
	require.NotEmpty(t, crossed)
	for _, e := range crossed {
		assert.Equal(t, "overdue", e.TicketID)
	}
}

package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/calendar"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/repository"
	"github.com/spec-kit/sla-engine/pkg/util/errorutil"
)

// ComputationRecorder observes SLA computations.
type ComputationRecorder interface {
	ObserveComputation(operation string, err error, duration time.Duration)
	RecordThresholdCrossed(dimension, notificationType string)
}

// Dependencies bundles what every SLA service needs.
type Dependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Recorder   ComputationRecorder
	// Now defaults to time.Now.
	Now func() time.Time
}

func (d Dependencies) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

func (d Dependencies) clock() func() time.Time {
	if d.Now == nil {
		return time.Now
	}
	return d.Now
}

func (d Dependencies) publish(ctx context.Context, event events.Event) {
	if d.Dispatcher == nil {
		return
	}
	if err := d.Dispatcher.Publish(ctx, event); err != nil {
		d.logger().Warn("publish event",
			zap.String("event_type", string(event.Type)),
			zap.String("tenant_id", event.TenantID),
			zap.Error(err))
	}
}

func (d Dependencies) observe(operation string, start time.Time, err error) {
	if d.Recorder == nil {
		return
	}
	d.Recorder.ObserveComputation(operation, err, time.Since(start))
}

// notFound turns a missing row into a NotFound domain error and leaves other errors alone.
func notFound(err error, resource, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errorutil.NewNotFound(resource, map[string]any{"id": id})
	}
	return err
}

// optional maps a missing row to nil so reads can return "no data" without failing.
func optional[T any](v *T, err error) (*T, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

// calendarError maps calendar failures to configuration errors; the entity
// exists but cannot be used as configured.
func calendarError(err error, scheduleID string) error {
	switch {
	case errors.Is(err, calendar.ErrNoBusinessHours):
		return errorutil.NewConfigurationError("NoBusinessHoursConfigured", map[string]any{
			"schedule_id":  scheduleID,
			"horizon_days": calendar.SearchHorizonDays,
		})
	case errors.Is(err, calendar.ErrInvalidTimezone), errors.Is(err, calendar.ErrInvalidClock):
		return errorutil.NewConfigurationError(err.Error(), map[string]any{"schedule_id": scheduleID})
	}
	return err
}

func validation(field, reason string) error {
	return errorutil.NewValidationError("validation failed", map[string]any{"field": field, "reason": reason})
}

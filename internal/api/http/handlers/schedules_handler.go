package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/api/dto"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/service"
	apperrors "github.com/spec-kit/sla-engine/pkg/util/errorutil"
)

// SchedulesHandler exposes business-hours schedules, holidays and calendar queries.
type SchedulesHandler struct {
	calendars *service.CalendarService
}

// NewSchedulesHandler constructs handler.
func NewSchedulesHandler(calendars *service.CalendarService) *SchedulesHandler {
	return &SchedulesHandler{calendars: calendars}
}

// ListSchedules handles GET /schedules.
func (h *SchedulesHandler) ListSchedules(c *fiber.Ctx) error {
	tenantID, err := tenantOf(c)
	if err != nil {
		return err
	}
	schedules, err := h.calendars.ListSchedules(c.UserContext(), tenantID)
	if err != nil {
		return err
	}
	resp := make([]dto.ScheduleResponse, 0, len(schedules))
	for i := range schedules {
		resp = append(resp, scheduleResponse(&schedules[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// CreateSchedule handles POST /schedules.
func (h *SchedulesHandler) CreateSchedule(c *fiber.Ctx) error {
	tenantID, err := tenantOf(c)
	if err != nil {
		return err
	}
	var req dto.ScheduleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	schedule, err := h.calendars.CreateSchedule(c.UserContext(), tenantID, scheduleInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": scheduleResponse(schedule)})
}

// GetSchedule handles GET /schedules/:id.
func (h *SchedulesHandler) GetSchedule(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	schedule, err := h.calendars.GetSchedule(c.UserContext(), tenantID, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": scheduleResponse(schedule)})
}

// GetDefaultSchedule handles GET /schedules/default.
func (h *SchedulesHandler) GetDefaultSchedule(c *fiber.Ctx) error {
	tenantID, err := tenantOf(c)
	if err != nil {
		return err
	}
	schedule, err := h.calendars.GetDefaultSchedule(c.UserContext(), tenantID)
	if err != nil {
		return err
	}
	if schedule == nil {
		return c.JSON(fiber.Map{"data": nil})
	}
	return c.JSON(fiber.Map{"data": scheduleResponse(schedule)})
}

// UpdateSchedule handles PUT /schedules/:id.
func (h *SchedulesHandler) UpdateSchedule(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	var req dto.ScheduleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	schedule, err := h.calendars.UpdateSchedule(c.UserContext(), tenantID, id, scheduleInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": scheduleResponse(schedule)})
}

// ReplaceEntries handles PUT /schedules/:id/entries.
func (h *SchedulesHandler) ReplaceEntries(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	var req dto.ReplaceEntriesRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	entries, err := h.calendars.ReplaceEntries(c.UserContext(), tenantID, id, entryInputs(req.Entries))
	if err != nil {
		return err
	}
	resp := make([]dto.EntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, entryResponse(e))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// DeleteSchedule handles DELETE /schedules/:id.
func (h *SchedulesHandler) DeleteSchedule(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	if err := h.calendars.DeleteSchedule(c.UserContext(), tenantID, id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// PromoteSchedule handles POST /schedules/:id/default.
func (h *SchedulesHandler) PromoteSchedule(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	schedule, err := h.calendars.PromoteScheduleToDefault(c.UserContext(), tenantID, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": scheduleResponse(schedule)})
}

// ListHolidays handles GET /holidays?schedule_id=.
func (h *SchedulesHandler) ListHolidays(c *fiber.Ctx) error {
	tenantID, err := tenantOf(c)
	if err != nil {
		return err
	}
	holidays, err := h.calendars.ListHolidays(c.UserContext(), tenantID, optionalQuery(c, "schedule_id"))
	if err != nil {
		return err
	}
	resp := make([]dto.HolidayResponse, 0, len(holidays))
	for _, hol := range holidays {
		resp = append(resp, holidayResponse(hol))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// AddHoliday handles POST /holidays.
func (h *SchedulesHandler) AddHoliday(c *fiber.Ctx) error {
	tenantID, err := tenantOf(c)
	if err != nil {
		return err
	}
	var req dto.HolidayRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return apperrors.NewValidationError("invalid holiday", map[string]any{"date": "must be formatted YYYY-MM-DD"})
	}
	holiday, err := h.calendars.AddHoliday(c.UserContext(), tenantID, service.HolidayInput{
		ScheduleID:  req.ScheduleID,
		Name:        req.Name,
		Date:        date,
		IsRecurring: req.IsRecurring,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": holidayResponse(*holiday)})
}

// DeleteHoliday handles DELETE /holidays/:id.
func (h *SchedulesHandler) DeleteHoliday(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	if err := h.calendars.DeleteHoliday(c.UserContext(), tenantID, id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// IsOpen handles GET /schedules/:id/open?at=.
func (h *SchedulesHandler) IsOpen(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	at, err := requireTimeQuery(c, "at")
	if err != nil {
		return err
	}
	open, err := h.calendars.IsWithinBusinessHours(c.UserContext(), tenantID, id, at)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"at": at, "open": open}})
}

// NextOpen handles GET /schedules/:id/next-open?at=.
func (h *SchedulesHandler) NextOpen(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	at, err := requireTimeQuery(c, "at")
	if err != nil {
		return err
	}
	next, err := h.calendars.NextBusinessHourStart(c.UserContext(), tenantID, id, at)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"at": at, "next_open": next}})
}

// AddMinutes handles GET /schedules/:id/add-minutes?at=&minutes=.
func (h *SchedulesHandler) AddMinutes(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	at, err := requireTimeQuery(c, "at")
	if err != nil {
		return err
	}
	minutes, err := parseIntQuery(c, "minutes", 0)
	if err != nil {
		return err
	}
	due, err := h.calendars.AddBusinessMinutes(c.UserContext(), tenantID, id, at, minutes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"at": at, "minutes": minutes, "due_at": due}})
}

// MinutesBetween handles GET /schedules/:id/minutes-between?from=&to=.
func (h *SchedulesHandler) MinutesBetween(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	from, err := requireTimeQuery(c, "from")
	if err != nil {
		return err
	}
	to, err := requireTimeQuery(c, "to")
	if err != nil {
		return err
	}
	minutes, err := h.calendars.BusinessMinutesBetween(c.UserContext(), tenantID, id, from, to)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"from": from, "to": to, "business_minutes": minutes}})
}

func scheduleInput(req dto.ScheduleRequest) service.ScheduleInput {
	return service.ScheduleInput{
		Name:        req.Name,
		Timezone:    req.Timezone,
		Is24x7:      req.Is24x7,
		Entries:     entryInputs(req.Entries),
		MakeDefault: req.MakeDefault,
	}
}

func entryInputs(entries []dto.EntryRequest) []service.EntryInput {
	if entries == nil {
		return nil
	}
	out := make([]service.EntryInput, 0, len(entries))
	for _, e := range entries {
		out = append(out, service.EntryInput{
			DayOfWeek: e.DayOfWeek,
			StartTime: e.StartTime,
			EndTime:   e.EndTime,
			IsEnabled: e.IsEnabled,
		})
	}
	return out
}

func scheduleResponse(s *domain.BusinessHoursSchedule) dto.ScheduleResponse {
	resp := dto.ScheduleResponse{
		ID:        s.ID,
		Name:      s.Name,
		Timezone:  s.Timezone,
		Is24x7:    s.Is24x7,
		IsDefault: s.IsDefault,
		Entries:   make([]dto.EntryResponse, 0, len(s.Entries)),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	for _, e := range s.Entries {
		resp.Entries = append(resp.Entries, entryResponse(e))
	}
	for _, hol := range s.Holidays {
		resp.Holidays = append(resp.Holidays, holidayResponse(hol))
	}
	return resp
}

func entryResponse(e domain.BusinessHoursEntry) dto.EntryResponse {
	return dto.EntryResponse{
		DayOfWeek: e.DayOfWeek,
		StartTime: e.StartTime,
		EndTime:   e.EndTime,
		IsEnabled: e.IsEnabled,
	}
}

func holidayResponse(h domain.Holiday) dto.HolidayResponse {
	return dto.HolidayResponse{
		ID:          h.ID,
		ScheduleID:  h.ScheduleID,
		Name:        h.Name,
		Date:        h.Date.Format(dateLayout),
		IsRecurring: h.IsRecurring,
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/repository"
)

// memState is an in-memory stand-in for the database. WithinTx works on a
// copy and swaps it in only on success, so rollbacks are observable.
type memState struct {
	seq         int
	schedules   map[string]domain.BusinessHoursSchedule
	entries     map[string][]domain.BusinessHoursEntry
	holidays    map[string]domain.Holiday
	policies    map[string]domain.SlaPolicy
	targets     map[string]domain.SlaPolicyTarget
	thresholds  map[string]domain.SlaNotificationThreshold
	escalations map[string]domain.EscalationManager
	users       map[string]bool
	priorities  map[string]bool
	clients     map[string]*string
	boards      map[string]memBoard
	tickets     map[string]domain.TicketSLA

	// locked holds the tickets read with GetForUpdate in the current
	// transaction. It is nil outside a transaction.
	locked map[string]bool

	failEscalationLevel domain.EscalationLevel
}

type memBoard struct {
	policyID  *string
	managerID *string
}

var (
	errInjected  = errors.New("injected failure")
	errNotLocked = errors.New("ticket row written without a row lock")
)

func newMemState() *memState {
	return &memState{
		schedules:   map[string]domain.BusinessHoursSchedule{},
		entries:     map[string][]domain.BusinessHoursEntry{},
		holidays:    map[string]domain.Holiday{},
		policies:    map[string]domain.SlaPolicy{},
		targets:     map[string]domain.SlaPolicyTarget{},
		thresholds:  map[string]domain.SlaNotificationThreshold{},
		escalations: map[string]domain.EscalationManager{},
		users:       map[string]bool{},
		priorities:  map[string]bool{},
		clients:     map[string]*string{},
		boards:      map[string]memBoard{},
		tickets:     map[string]domain.TicketSLA{},
	}
}

func (s *memState) clone() *memState {
	c := *s
	c.schedules = maps.Clone(s.schedules)
	c.entries = maps.Clone(s.entries)
	c.holidays = maps.Clone(s.holidays)
	c.policies = maps.Clone(s.policies)
	c.targets = maps.Clone(s.targets)
	c.thresholds = maps.Clone(s.thresholds)
	c.escalations = maps.Clone(s.escalations)
	c.users = maps.Clone(s.users)
	c.priorities = maps.Clone(s.priorities)
	c.clients = maps.Clone(s.clients)
	c.boards = maps.Clone(s.boards)
	c.tickets = maps.Clone(s.tickets)
	c.locked = map[string]bool{}
	return &c
}

func (s *memState) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

// fakeStore serializes transactions, which stands in for the row locks
// taken by GetForUpdate.
type fakeStore struct {
	mu    sync.Mutex
	state *memState
	txs   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{state: newMemState()}
}

func (f *fakeStore) Repositories() repository.Repositories {
	return memRepositories(f.state)
}

func (f *fakeStore) WithinTx(_ context.Context, fn func(repos repository.Repositories) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs++
	tx := f.state.clone()
	if err := fn(memRepositories(tx)); err != nil {
		return err
	}
	tx.locked = nil
	*f.state = *tx
	return nil
}

func memRepositories(s *memState) repository.Repositories {
	return repository.Repositories{
		Schedules:   memSchedules{s},
		Policies:    memPolicies{s},
		Targets:     memTargets{s},
		Thresholds:  memThresholds{s},
		Escalations: memEscalations{s},
		Directory:   memDirectory{s},
		Tickets:     memTickets{s},
	}
}

type memSchedules struct{ s *memState }

func (r memSchedules) Create(_ context.Context, sc *domain.BusinessHoursSchedule) error {
	sc.ID = r.s.nextID("schedule")
	sc.IsDefault = false
	sc.CreatedAt = time.Now()
	sc.UpdatedAt = sc.CreatedAt
	stored := *sc
	stored.Entries, stored.Holidays = nil, nil
	r.s.schedules[sc.ID] = stored
	return nil
}

func (r memSchedules) Update(_ context.Context, sc *domain.BusinessHoursSchedule) error {
	existing, ok := r.s.schedules[sc.ID]
	if !ok || existing.TenantID != sc.TenantID {
		return pgx.ErrNoRows
	}
	existing.Name, existing.Timezone, existing.Is24x7 = sc.Name, sc.Timezone, sc.Is24x7
	r.s.schedules[sc.ID] = existing
	return nil
}

func (r memSchedules) GetByID(_ context.Context, tenantID, id string) (*domain.BusinessHoursSchedule, error) {
	sc, ok := r.s.schedules[id]
	if !ok || sc.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	return &sc, nil
}

func (r memSchedules) GetDefault(_ context.Context, tenantID string) (*domain.BusinessHoursSchedule, error) {
	for _, sc := range r.s.schedules {
		if sc.TenantID == tenantID && sc.IsDefault {
			return &sc, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r memSchedules) List(_ context.Context, tenantID string) ([]domain.BusinessHoursSchedule, error) {
	var out []domain.BusinessHoursSchedule
	for _, sc := range r.s.schedules {
		if sc.TenantID == tenantID {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memSchedules) Delete(_ context.Context, tenantID, id string) error {
	if _, ok := r.s.schedules[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.schedules, id)
	delete(r.s.entries, id)
	for hid, h := range r.s.holidays {
		if h.ScheduleID != nil && *h.ScheduleID == id {
			delete(r.s.holidays, hid)
		}
	}
	return nil
}

func (r memSchedules) ClearDefault(_ context.Context, tenantID string) (*string, error) {
	for id, sc := range r.s.schedules {
		if sc.TenantID == tenantID && sc.IsDefault {
			sc.IsDefault = false
			r.s.schedules[id] = sc
			prev := id
			return &prev, nil
		}
	}
	return nil, nil
}

func (r memSchedules) MarkDefault(_ context.Context, tenantID, id string) error {
	sc, ok := r.s.schedules[id]
	if !ok || sc.TenantID != tenantID {
		return pgx.ErrNoRows
	}
	sc.IsDefault = true
	r.s.schedules[id] = sc
	return nil
}

func (r memSchedules) CountPolicyReferences(_ context.Context, tenantID, id string) (int, error) {
	n := 0
	for _, p := range r.s.policies {
		if p.TenantID == tenantID && p.ScheduleID != nil && *p.ScheduleID == id {
			n++
		}
	}
	return n, nil
}

func (r memSchedules) ListEntries(_ context.Context, _, scheduleID string) ([]domain.BusinessHoursEntry, error) {
	return append([]domain.BusinessHoursEntry(nil), r.s.entries[scheduleID]...), nil
}

func (r memSchedules) ReplaceEntries(_ context.Context, _, scheduleID string, entries []domain.BusinessHoursEntry) error {
	replaced := make([]domain.BusinessHoursEntry, 0, len(entries))
	for _, e := range entries {
		e.ID = r.s.nextID("entry")
		e.ScheduleID = scheduleID
		replaced = append(replaced, e)
	}
	r.s.entries[scheduleID] = replaced
	return nil
}

func (r memSchedules) CreateHoliday(_ context.Context, h *domain.Holiday) error {
	h.ID = r.s.nextID("holiday")
	r.s.holidays[h.ID] = *h
	return nil
}

func (r memSchedules) DeleteHoliday(_ context.Context, tenantID, id string) error {
	h, ok := r.s.holidays[id]
	if !ok || h.TenantID != tenantID {
		return pgx.ErrNoRows
	}
	delete(r.s.holidays, id)
	return nil
}

func (r memSchedules) ListHolidays(_ context.Context, tenantID string) ([]domain.Holiday, error) {
	return r.holidays(func(h domain.Holiday) bool { return h.TenantID == tenantID }), nil
}

func (r memSchedules) ListHolidaysForSchedule(_ context.Context, tenantID, scheduleID string) ([]domain.Holiday, error) {
	return r.holidays(func(h domain.Holiday) bool {
		return h.TenantID == tenantID && (h.ScheduleID == nil || *h.ScheduleID == scheduleID)
	}), nil
}

func (r memSchedules) holidays(keep func(domain.Holiday) bool) []domain.Holiday {
	var out []domain.Holiday
	for _, h := range r.s.holidays {
		if keep(h) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

type memPolicies struct{ s *memState }

func (r memPolicies) Create(_ context.Context, p *domain.SlaPolicy) error {
	p.ID = r.s.nextID("policy")
	p.IsDefault = false
	r.s.policies[p.ID] = *p
	return nil
}

func (r memPolicies) Update(_ context.Context, p *domain.SlaPolicy) error {
	existing, ok := r.s.policies[p.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	existing.Name, existing.Description, existing.ScheduleID = p.Name, p.Description, p.ScheduleID
	r.s.policies[p.ID] = existing
	return nil
}

func (r memPolicies) GetByID(_ context.Context, tenantID, id string) (*domain.SlaPolicy, error) {
	p, ok := r.s.policies[id]
	if !ok || p.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	return &p, nil
}

func (r memPolicies) GetDefault(_ context.Context, tenantID string) (*domain.SlaPolicy, error) {
	for _, p := range r.s.policies {
		if p.TenantID == tenantID && p.IsDefault {
			return &p, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r memPolicies) List(_ context.Context, tenantID string) ([]domain.SlaPolicy, error) {
	var out []domain.SlaPolicy
	for _, p := range r.s.policies {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r memPolicies) Delete(_ context.Context, _, id string) error {
	if _, ok := r.s.policies[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.policies, id)
	return nil
}

func (r memPolicies) ClearDefault(_ context.Context, tenantID string) (*string, error) {
	for id, p := range r.s.policies {
		if p.TenantID == tenantID && p.IsDefault {
			p.IsDefault = false
			r.s.policies[id] = p
			prev := id
			return &prev, nil
		}
	}
	return nil, nil
}

func (r memPolicies) MarkDefault(_ context.Context, tenantID, id string) error {
	p, ok := r.s.policies[id]
	if !ok || p.TenantID != tenantID {
		return pgx.ErrNoRows
	}
	p.IsDefault = true
	r.s.policies[id] = p
	return nil
}

func (r memPolicies) CountReferences(_ context.Context, _, id string) (domain.PolicyReferences, error) {
	var refs domain.PolicyReferences
	for _, policyID := range r.s.clients {
		if policyID != nil && *policyID == id {
			refs.Clients++
		}
	}
	for _, b := range r.s.boards {
		if b.policyID != nil && *b.policyID == id {
			refs.Boards++
		}
	}
	for _, t := range r.s.tickets {
		if t.SlaPolicyID != nil && *t.SlaPolicyID == id {
			refs.Tickets++
		}
	}
	return refs, nil
}

type memTargets struct{ s *memState }

func (r memTargets) Upsert(_ context.Context, t *domain.SlaPolicyTarget) error {
	for id, existing := range r.s.targets {
		if existing.TenantID == t.TenantID && existing.PolicyID == t.PolicyID && existing.PriorityID == t.PriorityID {
			t.ID = id
			r.s.targets[id] = *t
			return nil
		}
	}
	t.ID = r.s.nextID("target")
	r.s.targets[t.ID] = *t
	return nil
}

func (r memTargets) ListByPolicy(_ context.Context, tenantID, policyID string) ([]domain.SlaPolicyTarget, error) {
	var out []domain.SlaPolicyTarget
	for _, t := range r.s.targets {
		if t.TenantID == tenantID && t.PolicyID == policyID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriorityID < out[j].PriorityID })
	return out, nil
}

func (r memTargets) GetForPriority(_ context.Context, tenantID, policyID, priorityID string) (*domain.SlaPolicyTarget, error) {
	for _, t := range r.s.targets {
		if t.TenantID == tenantID && t.PolicyID == policyID && t.PriorityID == priorityID {
			return &t, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r memTargets) Delete(_ context.Context, _, id string) error {
	if _, ok := r.s.targets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.targets, id)
	return nil
}

func (r memTargets) DeleteByPolicy(_ context.Context, _, policyID string) error {
	for id, t := range r.s.targets {
		if t.PolicyID == policyID {
			delete(r.s.targets, id)
		}
	}
	return nil
}

type memThresholds struct{ s *memState }

func (r memThresholds) Create(_ context.Context, t *domain.SlaNotificationThreshold) error {
	t.ID = r.s.nextID("threshold")
	t.CreatedAt = time.Now()
	r.s.thresholds[t.ID] = *t
	return nil
}

func (r memThresholds) Update(_ context.Context, t *domain.SlaNotificationThreshold) error {
	if _, ok := r.s.thresholds[t.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.s.thresholds[t.ID] = *t
	return nil
}

func (r memThresholds) GetByID(_ context.Context, tenantID, id string) (*domain.SlaNotificationThreshold, error) {
	t, ok := r.s.thresholds[id]
	if !ok || t.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (r memThresholds) ListByPolicy(_ context.Context, tenantID, policyID string) ([]domain.SlaNotificationThreshold, error) {
	var out []domain.SlaNotificationThreshold
	for _, t := range r.s.thresholds {
		if t.TenantID == tenantID && t.PolicyID == policyID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Percent < out[j].Percent })
	return out, nil
}

func (r memThresholds) Delete(_ context.Context, _, id string) error {
	if _, ok := r.s.thresholds[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.thresholds, id)
	return nil
}

func (r memThresholds) DeleteByPolicy(_ context.Context, _, policyID string) error {
	for id, t := range r.s.thresholds {
		if t.PolicyID == policyID {
			delete(r.s.thresholds, id)
		}
	}
	return nil
}

type memEscalations struct{ s *memState }

func escalationKey(boardID string, level domain.EscalationLevel) string {
	return fmt.Sprintf("%s/%d", boardID, level)
}

func (r memEscalations) Upsert(_ context.Context, m *domain.EscalationManager) error {
	if r.s.failEscalationLevel == m.Level {
		return errInjected
	}
	key := escalationKey(m.BoardID, m.Level)
	if existing, ok := r.s.escalations[key]; ok {
		m.ID = existing.ID
	} else {
		m.ID = r.s.nextID("escalation")
	}
	r.s.escalations[key] = *m
	return nil
}

func (r memEscalations) DeleteLevel(_ context.Context, _, boardID string, level domain.EscalationLevel) error {
	delete(r.s.escalations, escalationKey(boardID, level))
	return nil
}

func (r memEscalations) ListByBoard(_ context.Context, tenantID, boardID string) ([]domain.EscalationManager, error) {
	var out []domain.EscalationManager
	for _, m := range r.s.escalations {
		if m.TenantID == tenantID && m.BoardID == boardID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out, nil
}

func (r memEscalations) GetByLevel(_ context.Context, _, boardID string, level domain.EscalationLevel) (*domain.EscalationManager, error) {
	m, ok := r.s.escalations[escalationKey(boardID, level)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &m, nil
}

type memDirectory struct{ s *memState }

func (r memDirectory) UserExists(_ context.Context, _, userID string) (bool, error) {
	return r.s.users[userID], nil
}

func (r memDirectory) ClientExists(_ context.Context, _, clientID string) (bool, error) {
	_, ok := r.s.clients[clientID]
	return ok, nil
}

func (r memDirectory) BoardExists(_ context.Context, _, boardID string) (bool, error) {
	_, ok := r.s.boards[boardID]
	return ok, nil
}

func (r memDirectory) PriorityExists(_ context.Context, _, priorityID string) (bool, error) {
	return r.s.priorities[priorityID], nil
}

func (r memDirectory) ClientPolicyID(_ context.Context, _, clientID string) (*string, error) {
	policyID, ok := r.s.clients[clientID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return policyID, nil
}

func (r memDirectory) BoardPolicyID(_ context.Context, _, boardID string) (*string, error) {
	b, ok := r.s.boards[boardID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return b.policyID, nil
}

func (r memDirectory) SetClientPolicy(_ context.Context, _, clientID string, policyID *string) error {
	if _, ok := r.s.clients[clientID]; !ok {
		return pgx.ErrNoRows
	}
	r.s.clients[clientID] = policyID
	return nil
}

func (r memDirectory) SetBoardPolicy(_ context.Context, _, boardID string, policyID *string) error {
	b, ok := r.s.boards[boardID]
	if !ok {
		return pgx.ErrNoRows
	}
	b.policyID = policyID
	r.s.boards[boardID] = b
	return nil
}

func (r memDirectory) BoardManagerID(_ context.Context, _, boardID string) (*string, error) {
	b, ok := r.s.boards[boardID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return b.managerID, nil
}

type memTickets struct{ s *memState }

func (r memTickets) Get(_ context.Context, tenantID, ticketID string) (*domain.TicketSLA, error) {
	t, ok := r.s.tickets[ticketID]
	if !ok || t.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (r memTickets) GetForUpdate(ctx context.Context, tenantID, ticketID string) (*domain.TicketSLA, error) {
	t, err := r.Get(ctx, tenantID, ticketID)
	if err == nil && r.s.locked != nil {
		r.s.locked[ticketID] = true
	}
	return t, err
}

func (r memTickets) UpdateSLA(_ context.Context, t *domain.TicketSLA) error {
	if _, ok := r.s.tickets[t.TicketID]; !ok {
		return pgx.ErrNoRows
	}
	if !r.s.locked[t.TicketID] {
		return errNotLocked
	}
	r.s.tickets[t.TicketID] = *t
	return nil
}

func matches(ref, want *string) bool {
	return want == nil || (ref != nil && *ref == *want)
}

func (r memTickets) ListForMetrics(_ context.Context, tenantID string, f domain.MetricsFilter) ([]repository.MetricsRow, error) {
	var out []repository.MetricsRow
	for _, t := range r.s.tickets {
		if t.TenantID != tenantID || t.SlaPolicyID == nil {
			continue
		}
		if !matches(t.SlaPolicyID, f.PolicyID) || !matches(t.BoardID, f.BoardID) || !matches(t.ClientID, f.ClientID) ||
			!matches(t.PriorityID, f.PriorityID) || !matches(t.AssignedTo, f.AssignedTo) {
			continue
		}
		if f.EnteredFrom != nil && t.EnteredAt.Before(*f.EnteredFrom) {
			continue
		}
		if f.EnteredTo != nil && !t.EnteredAt.Before(*f.EnteredTo) {
			continue
		}
		row := repository.MetricsRow{TicketSLA: t}
		if t.PriorityID != nil {
			for _, target := range r.s.targets {
				if target.PolicyID == *t.SlaPolicyID && target.PriorityID == *t.PriorityID {
					row.ResponseTargetMinutes = target.ResponseMinutes
					row.ResolutionTargetMinutes = target.ResolutionMinutes
				}
			}
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnteredAt.Before(out[j].EnteredAt) })
	return out, nil
}

// earliestPending returns the earliest pending due date after the given
// time. A zero after keeps overdue deadlines.
func earliestPending(t domain.TicketSLA, after time.Time) time.Time {
	var earliest time.Time
	for _, dim := range domain.SLADimensions {
		if !t.Pending(dim) || !t.DueAt(dim).After(after) {
			continue
		}
		if earliest.IsZero() || t.DueAt(dim).Before(earliest) {
			earliest = *t.DueAt(dim)
		}
	}
	return earliest
}

func (r memTickets) running(tenantID string, after time.Time, limit int) []domain.TicketSLA {
	var out []domain.TicketSLA
	for _, t := range r.s.tickets {
		if t.TenantID != tenantID || !t.HasSLA() || t.SlaStartedAt == nil || t.IsPaused() || t.IsClosed {
			continue
		}
		if earliestPending(t, after).IsZero() {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return earliestPending(out[i], after).Before(earliestPending(out[j], after))
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r memTickets) ListAtRiskCandidates(_ context.Context, tenantID string, now time.Time, limit int) ([]domain.TicketSLA, error) {
	return r.running(tenantID, now, limit), nil
}

func (r memTickets) ListRunning(_ context.Context, tenantID string, limit int) ([]domain.TicketSLA, error) {
	return r.running(tenantID, time.Time{}, limit), nil
}

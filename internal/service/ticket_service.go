package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/repository"
	"github.com/spec-kit/sla-engine/internal/rules"
	"github.com/spec-kit/sla-engine/internal/sla"
	"github.com/spec-kit/sla-engine/internal/workflow"
	apperrors "github.com/spec-kit/sla-engine/pkg/util/errorutil"
)

// SnapshotProvider hands out the current rule snapshot.
type SnapshotProvider interface {
	Current() *rules.Snapshot
}

// TicketService applies SLA and workflow rules to ticket mutations.
type TicketService struct {
	tickets          repository.TicketRepository
	history          repository.TicketHistoryRepository
	rules            SnapshotProvider
	roles            workflow.RoleProvider
	dispatcher       events.Dispatcher
	location         *time.Location
	resolvedStatuses map[string]struct{}
	warningWindow    time.Duration
	clock            func() time.Time
	logger           *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo       repository.TicketRepository
	HistoryRepo      repository.TicketHistoryRepository
	Rules            SnapshotProvider
	Roles            workflow.RoleProvider
	Dispatcher       events.Dispatcher
	Location         *time.Location
	ResolvedStatuses []string
	WarningWindow    time.Duration
	Clock            func() time.Time
	Logger           *zap.Logger
}

// StatusChangeInput describes a requested status transition.
type StatusChangeInput struct {
	TicketID string
	ActorID  string
	ToStatus string
	Note     string
}

// DueStatus is the state of one obligation.
type DueStatus struct {
	Kind        domain.DueKind
	DueAt       *time.Time
	Met         bool
	Breached    bool
	Approaching bool
	Remaining   time.Duration
}

// SLAStatusView summarises a ticket's SLA position.
type SLAStatusView struct {
	Ticket    *domain.Ticket
	Rule      *domain.SLARule
	CheckedAt time.Time
	Due       []DueStatus
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	resolved := make(map[string]struct{}, len(deps.ResolvedStatuses))
	for _, status := range deps.ResolvedStatuses {
		resolved[status] = struct{}{}
	}
	return &TicketService{
		tickets:          deps.TicketRepo,
		history:          deps.HistoryRepo,
		rules:            deps.Rules,
		roles:            deps.Roles,
		dispatcher:       deps.Dispatcher,
		location:         loc,
		resolvedStatuses: resolved,
		warningWindow:    deps.WarningWindow,
		clock:            clock,
		logger:           logger.Named("ticket_service"),
	}
}

// Validator returns a workflow validator bound to the current rules.
func (s *TicketService) Validator() *workflow.Validator {
	return workflow.NewValidator(s.rules.Current(), s.roles)
}

// RecalculateDueDates recomputes the ticket's deadlines from the current
// rules and stores them when they changed.
func (s *TicketService) RecalculateDueDates(ctx context.Context, actorID *string, ticketID string) (*domain.Ticket, *domain.SLARule, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	rule, err := s.applyDueDates(ctx, actorID, ticket)
	if err != nil {
		return nil, nil, err
	}
	return ticket, rule, nil
}

func (s *TicketService) applyDueDates(ctx context.Context, actorID *string, ticket *domain.Ticket) (*domain.SLARule, error) {
	rule, due := sla.Resolve(s.rules.Current(), s.location, ticket)
	old := ticket.DueDates()
	if old.Equal(due) {
		return rule, nil
	}

	if err := s.tickets.UpdateDueDates(ctx, ticket.ID, due); err != nil {
		return nil, fmt.Errorf("store due dates: %w", err)
	}
	ticket.SetDueDates(due)

	if err := s.recordHistory(ctx, &domain.TicketHistory{
		TicketID:    ticket.ID,
		ChangedByID: actorID,
		ChangeType:  domain.ChangeTypeDueDates,
		OldValue:    dueDatesValue(old),
		NewValue:    dueDatesValue(due),
	}); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.New(events.EventTicketDueDatesChanged, ticket.ID, actorOf(actorID), s.clock(),
		events.TicketDueDatesChangedPayload{
			ResponseDue:   due.ResponseDue,
			ResolutionDue: due.ResolutionDue,
			EscalationDue: due.EscalationDue,
		}))
	return rule, nil
}

// ChangeStatus moves the ticket if the workflow rules let the actor do so.
// Denials come back as TRANSITION_DENIED or NOTE_REQUIRED errors together
// with the decision.
func (s *TicketService) ChangeStatus(ctx context.Context, input StatusChangeInput) (*domain.Ticket, workflow.Decision, error) {
	toStatus := strings.TrimSpace(input.ToStatus)
	if toStatus == "" {
		return nil, workflow.Decision{}, apperrors.NewValidationError("status is required", nil)
	}
	ticket, err := s.tickets.GetByID(ctx, input.TicketID)
	if err != nil {
		return nil, workflow.Decision{}, err
	}

	fromStatus := ticket.Status
	decision, err := s.Validator().CheckActor(ctx, input.ActorID, fromStatus, toStatus, ticket.Context())
	if err != nil {
		return nil, decision, err
	}
	details := map[string]any{"from_status": fromStatus, "to_status": toStatus}
	if !decision.Allowed {
		return nil, decision, apperrors.NewTransitionDenied(string(decision.Reason), details)
	}
	note := strings.TrimSpace(input.Note)
	if decision.RequiresNote && note == "" {
		return nil, decision, apperrors.NewNoteRequired(details)
	}

	now := s.clock()
	oldAssignee := ticket.AssigneeID
	ticket.Status = toStatus
	if decision.AutoAssign && ticket.AssigneeID == nil {
		actor := input.ActorID
		ticket.AssigneeID = &actor
	}
	if ticket.FirstResponseAt == nil {
		ticket.FirstResponseAt = &now
	}
	if s.isResolved(toStatus) {
		if ticket.ResolvedAt == nil {
			ticket.ResolvedAt = &now
		}
	} else {
		ticket.ResolvedAt = nil
	}

	if err := s.tickets.UpdateStatus(ctx, ticket); err != nil {
		return nil, decision, fmt.Errorf("store status: %w", err)
	}

	actorID := input.ActorID
	if err := s.recordHistory(ctx, &domain.TicketHistory{
		TicketID:    ticket.ID,
		ChangedByID: &actorID,
		ChangeType:  domain.ChangeTypeStatus,
		OldValue:    map[string]any{"status": fromStatus},
		NewValue:    map[string]any{"status": toStatus},
		Note:        note,
	}); err != nil {
		return nil, decision, err
	}
	if oldAssignee == nil && ticket.AssigneeID != nil {
		if err := s.recordHistory(ctx, &domain.TicketHistory{
			TicketID:    ticket.ID,
			ChangedByID: &actorID,
			ChangeType:  domain.ChangeTypeAssignee,
			OldValue:    map[string]any{"assignee_id": nil},
			NewValue:    map[string]any{"assignee_id": *ticket.AssigneeID},
		}); err != nil {
			return nil, decision, err
		}
	}

	s.publishEvent(ctx, events.New(events.EventTicketStatusChanged, ticket.ID, actorOf(&actorID), now,
		events.TicketStatusChangedPayload{OldStatus: fromStatus, NewStatus: toStatus, Note: note}))
	s.logger.Info("ticket status changed",
		zap.String("ticket_id", ticket.ID),
		zap.String("actor_id", actorID),
		zap.String("from", fromStatus),
		zap.String("to", toStatus),
	)
	return ticket, decision, nil
}

// ChangePriority updates the priority and recomputes deadlines.
func (s *TicketService) ChangePriority(ctx context.Context, actorID *string, ticketID string, priority domain.TicketPriority) (*domain.Ticket, error) {
	priority, err := domain.ParseTicketPriority(string(priority))
	if err != nil {
		return nil, apperrors.NewValidationError("invalid priority", nil)
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Priority == priority {
		return ticket, nil
	}

	oldPriority := ticket.Priority
	if err := s.tickets.UpdatePriority(ctx, ticket.ID, priority); err != nil {
		return nil, fmt.Errorf("store priority: %w", err)
	}
	ticket.Priority = priority

	if err := s.recordHistory(ctx, &domain.TicketHistory{
		TicketID:    ticket.ID,
		ChangedByID: actorID,
		ChangeType:  domain.ChangeTypePriority,
		OldValue:    map[string]any{"priority": string(oldPriority)},
		NewValue:    map[string]any{"priority": string(priority)},
	}); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.New(events.EventTicketPriorityChanged, ticket.ID, actorOf(actorID), s.clock(),
		events.TicketPriorityChangedPayload{OldPriority: oldPriority, NewPriority: priority}))

	if _, err := s.applyDueDates(ctx, actorID, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// SLAStatus reports each obligation of the ticket as of now. Remaining time is
// measured in business time when the rule is business-hours only.
func (s *TicketService) SLAStatus(ctx context.Context, ticketID string) (*SLAStatusView, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	snap := s.rules.Current()
	rule := snap.ResolveSLARule(ticket.EntityID, ticket.Priority)
	cal := sla.ForSnapshot(snap, s.location).Calendar()
	now := s.clock()

	view := &SLAStatusView{Ticket: ticket, Rule: rule, CheckedAt: now}
	obligations := []struct {
		kind domain.DueKind
		due  *time.Time
		met  bool
	}{
		{domain.DueKindResponse, ticket.ResponseDue, ticket.FirstResponseAt != nil},
		{domain.DueKindResolution, ticket.ResolutionDue, ticket.ResolvedAt != nil},
		{domain.DueKindEscalation, ticket.EscalationDue, ticket.ResolvedAt != nil},
	}
	for _, o := range obligations {
		status := DueStatus{Kind: o.kind, DueAt: o.due, Met: o.met}
		if o.due != nil && !o.met {
			status.Breached = !o.due.After(now)
			status.Approaching = !status.Breached && !o.due.After(now.Add(s.warningWindow))
			if rule != nil && rule.BusinessHoursOnly {
				status.Remaining = cal.BusinessDuration(ticket.EntityID, now, *o.due)
			} else {
				status.Remaining = o.due.Sub(now)
			}
		}
		view.Due = append(view.Due, status)
	}
	return view, nil
}

// History lists the audit trail of a ticket.
func (s *TicketService) History(ctx context.Context, ticketID string, limit int) ([]domain.TicketHistory, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.ListByTicket(ctx, ticketID, limit)
}

func (s *TicketService) isResolved(status string) bool {
	_, ok := s.resolvedStatuses[status]
	return ok
}

func (s *TicketService) recordHistory(ctx context.Context, entry *domain.TicketHistory) error {
	if s.history == nil {
		return nil
	}
	if err := s.history.Create(ctx, entry); err != nil {
		return fmt.Errorf("record %s history: %w", entry.ChangeType, err)
	}
	return nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed",
			zap.String("event", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err),
		)
	}
}

func actorOf(actorID *string) events.Actor {
	if actorID == nil {
		return events.SystemActor
	}
	id := *actorID
	return events.Actor{ID: &id}
}

func dueDatesValue(d domain.DueDates) map[string]any {
	value := map[string]any{}
	put := func(key string, t *time.Time) {
		if t == nil {
			value[key] = nil
			return
		}
		value[key] = t.UTC().Format(time.RFC3339)
	}
	put("response_due", d.ResponseDue)
	put("resolution_due", d.ResolutionDue)
	put("escalation_due", d.EscalationDue)
	return value
}

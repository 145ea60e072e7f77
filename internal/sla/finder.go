package sla

import (
	"context"
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// TicketStore is the read side of the ticket collaborator.
type TicketStore interface {
	ListActiveTickets(ctx context.Context, filter domain.ActiveTicketFilter) ([]domain.Ticket, error)
}

// Finding is one unmet obligation of a ticket.
type Finding struct {
	TicketID string
	Kind     domain.DueKind
	DueAt    time.Time
}

// IDs returns the distinct ticket ids of the findings in order.
func IDs(findings []Finding) []string {
	seen := make(map[string]struct{}, len(findings))
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		if _, ok := seen[f.TicketID]; ok {
			continue
		}
		seen[f.TicketID] = struct{}{}
		out = append(out, f.TicketID)
	}
	return out
}

// Finder classifies active tickets against their deadlines. All methods are
// side-effect free reads.
type Finder struct {
	tickets          TicketStore
	inactiveStatuses []string
}

// NewFinder builds a finder. Tickets in inactiveStatuses (e.g. closed) are
// ignored in addition to resolved ones.
func NewFinder(tickets TicketStore, inactiveStatuses []string) *Finder {
	return &Finder{tickets: tickets, inactiveStatuses: inactiveStatuses}
}

// Classification groups the unmet obligations of one ticket listing.
type Classification struct {
	Breached    []Finding
	Approaching []Finding
	Escalations []Finding
}

// Classify lists active tickets once and sorts every unmet obligation into
// breached, approaching (due within window) and due escalations.
func (f *Finder) Classify(ctx context.Context, now time.Time, window time.Duration) (Classification, error) {
	tickets, err := f.activeTickets(ctx)
	if err != nil {
		return Classification{}, err
	}

	limit := now.Add(window)
	var c Classification
	for i := range tickets {
		t := &tickets[i]
		for _, kind := range []domain.DueKind{domain.DueKindResponse, domain.DueKindResolution} {
			due := unmetDue(t, kind)
			switch {
			case due == nil:
			case !due.After(now):
				c.Breached = append(c.Breached, Finding{TicketID: t.ID, Kind: kind, DueAt: *due})
			case !due.After(limit):
				c.Approaching = append(c.Approaching, Finding{TicketID: t.ID, Kind: kind, DueAt: *due})
			}
		}
		if due := unmetDue(t, domain.DueKindEscalation); due != nil && !due.After(now) {
			c.Escalations = append(c.Escalations, Finding{TicketID: t.ID, Kind: domain.DueKindEscalation, DueAt: *due})
		}
	}
	return c, nil
}

// GetTicketsApproachingBreach returns unmet obligations due after now and no
// later than now+window.
func (f *Finder) GetTicketsApproachingBreach(ctx context.Context, window time.Duration, now time.Time) ([]Finding, error) {
	c, err := f.Classify(ctx, now, window)
	return c.Approaching, err
}

// GetBreachedTickets returns unmet obligations whose deadline is not after now.
func (f *Finder) GetBreachedTickets(ctx context.Context, now time.Time) ([]Finding, error) {
	c, err := f.Classify(ctx, now, 0)
	return c.Breached, err
}

// GetEscalationsDue returns unresolved tickets past their escalation deadline.
func (f *Finder) GetEscalationsDue(ctx context.Context, now time.Time) ([]Finding, error) {
	c, err := f.Classify(ctx, now, 0)
	return c.Escalations, err
}

func (f *Finder) activeTickets(ctx context.Context) ([]domain.Ticket, error) {
	tickets, err := f.tickets.ListActiveTickets(ctx, domain.ActiveTicketFilter{
		InactiveStatuses: f.inactiveStatuses,
		WithDueDate:      true,
		Unmet:            true,
	})
	if err != nil {
		return nil, err
	}
	active := make([]domain.Ticket, 0, len(tickets))
	for i := range tickets {
		if f.isActive(&tickets[i]) {
			active = append(active, tickets[i])
		}
	}
	return active, nil
}

func (f *Finder) isActive(t *domain.Ticket) bool {
	if t.ResolvedAt != nil {
		return false
	}
	for _, status := range f.inactiveStatuses {
		if t.Status == status {
			return false
		}
	}
	return true
}

// unmetDue returns the deadline of an obligation that is still outstanding.
func unmetDue(t *domain.Ticket, kind domain.DueKind) *time.Time {
	switch kind {
	case domain.DueKindResponse:
		if t.FirstResponseAt == nil {
			return t.ResponseDue
		}
	case domain.DueKindResolution:
		if t.ResolvedAt == nil {
			return t.ResolutionDue
		}
	case domain.DueKindEscalation:
		if t.ResolvedAt == nil {
			return t.EscalationDue
		}
	}
	return nil
}

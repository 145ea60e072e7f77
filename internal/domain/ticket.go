package domain

import (
	"fmt"
	"strings"
	"time"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityNormal TicketPriority = "normal"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// ParseTicketPriority normalizes a priority tag.
func ParseTicketPriority(raw string) (TicketPriority, error) {
	p := TicketPriority(strings.ToLower(strings.TrimSpace(raw)))
	switch p {
	case TicketPriorityLow, TicketPriorityNormal, TicketPriorityHigh, TicketPriorityUrgent:
		return p, nil
	}
	return "", fmt.Errorf("unknown priority %q", raw)
}

// Ticket carries the fields the SLA and workflow engine reads.
// Status is a free-form tag configured by workflow rules.
type Ticket struct {
	ID              string
	ExternalKey     string
	EntityID        string
	Status          string
	Priority        TicketPriority
	Category        *string
	AssigneeID      *string
	Title           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	FirstResponseAt *time.Time
	ResolvedAt      *time.Time
	ResponseDue     *time.Time
	ResolutionDue   *time.Time
	EscalationDue   *time.Time
}

// DueDates returns the ticket's persisted SLA deadlines.
func (t *Ticket) DueDates() DueDates {
	return DueDates{
		ResponseDue:   t.ResponseDue,
		ResolutionDue: t.ResolutionDue,
		EscalationDue: t.EscalationDue,
	}
}

// SetDueDates replaces the ticket's SLA deadlines.
func (t *Ticket) SetDueDates(d DueDates) {
	t.ResponseDue = d.ResponseDue
	t.ResolutionDue = d.ResolutionDue
	t.EscalationDue = d.EscalationDue
}

// Context returns the attributes workflow rules filter on.
func (t *Ticket) Context() TicketContext {
	return TicketContext{Priority: t.Priority, Category: t.Category}
}

// DueDates groups the three SLA deadlines. A nil field means no obligation
// of that kind.
type DueDates struct {
	ResponseDue   *time.Time
	ResolutionDue *time.Time
	EscalationDue *time.Time
}

// IsZero reports whether no deadline is set.
func (d DueDates) IsZero() bool {
	return d.ResponseDue == nil && d.ResolutionDue == nil && d.EscalationDue == nil
}

// Equal compares deadlines instant by instant.
func (d DueDates) Equal(other DueDates) bool {
	return timePtrEqual(d.ResponseDue, other.ResponseDue) &&
		timePtrEqual(d.ResolutionDue, other.ResolutionDue) &&
		timePtrEqual(d.EscalationDue, other.EscalationDue)
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// ActiveTicketFilter narrows the ticket store's active-ticket listing.
type ActiveTicketFilter struct {
	EntityID *string
	// InactiveStatuses are excluded in addition to resolved tickets.
	InactiveStatuses []string
	// WithDueDate keeps only tickets with at least one deadline.
	WithDueDate bool
	// Unmet keeps only tickets with an outstanding response or resolution.
	Unmet bool
	Limit int
}

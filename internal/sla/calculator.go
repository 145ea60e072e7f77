// Package sla computes ticket deadlines and classifies tickets against them.
package sla

import (
	"time"

	"github.com/spec-kit/sla-engine/internal/calendar"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/rules"
)

// Calculator turns an SLA rule into deadlines for a ticket. It has no clock:
// every deadline derives from the ticket's creation time.
type Calculator struct {
	cal *calendar.Calendar
}

// NewCalculator builds a calculator on top of a business calendar.
func NewCalculator(cal *calendar.Calendar) *Calculator {
	return &Calculator{cal: cal}
}

// ForSnapshot builds a calculator whose calendar reads the snapshot.
func ForSnapshot(snap *rules.Snapshot, loc *time.Location) *Calculator {
	return NewCalculator(calendar.New(snap, loc))
}

// Calendar exposes the underlying business calendar.
func (c *Calculator) Calendar() *calendar.Calendar {
	return c.cal
}

// ComputeDueDates returns one deadline per duration configured on the rule.
// A nil rule means no SLA applies and every deadline stays nil.
func (c *Calculator) ComputeDueDates(ticket *domain.Ticket, rule *domain.SLARule) domain.DueDates {
	if ticket == nil || rule == nil {
		return domain.DueDates{}
	}
	return domain.DueDates{
		ResponseDue:   c.due(ticket, rule, rule.ResponseTimeHours),
		ResolutionDue: c.due(ticket, rule, rule.ResolutionTimeHours),
		EscalationDue: c.due(ticket, rule, rule.EscalationTimeHours),
	}
}

func (c *Calculator) due(ticket *domain.Ticket, rule *domain.SLARule, hours *float64) *time.Time {
	if hours == nil {
		return nil
	}
	var at time.Time
	if rule.BusinessHoursOnly && c.cal != nil {
		at = c.cal.AddBusinessHours(ticket.EntityID, ticket.CreatedAt, *hours)
	} else {
		at = ticket.CreatedAt.Add(time.Duration(*hours * float64(time.Hour)))
	}
	return &at
}

// Resolve looks up the ticket's rule in the snapshot and computes its
// deadlines. The returned rule is nil when no SLA is configured.
func Resolve(snap *rules.Snapshot, loc *time.Location, ticket *domain.Ticket) (*domain.SLARule, domain.DueDates) {
	rule := snap.ResolveSLARule(ticket.EntityID, ticket.Priority)
	return rule, ForSnapshot(snap, loc).ComputeDueDates(ticket, rule)
}

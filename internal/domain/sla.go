package domain

import (
	"strings"
	"time"
)

// DueKind names the obligation a deadline belongs to.
type DueKind string

const (
	DueKindResponse   DueKind = "response"
	DueKindResolution DueKind = "resolution"
	DueKindEscalation DueKind = "escalation"
)

// SLARule configures maximum hours per obligation. A nil EntityID applies
// globally and a nil Priority matches every priority.
type SLARule struct {
	ID                  string
	Name                string
	EntityID            *string
	Priority            *TicketPriority
	ResponseTimeHours   *float64
	ResolutionTimeHours *float64
	EscalationTimeHours *float64
	BusinessHoursOnly   bool
	Active              bool
}

// IsGlobal reports whether the rule is entity-less.
func (r *SLARule) IsGlobal() bool {
	return r.EntityID == nil
}

// MatchesAnyPriority reports whether the rule is a priority wildcard.
func (r *SLARule) MatchesAnyPriority() bool {
	return r.Priority == nil
}

// MonitoringMetrics is the process-wide monitor state.
type MonitoringMetrics struct {
	LastCheck            *time.Time
	WarningsSent         int64
	BreachesRecorded     int64
	EscalationsTriggered int64
	ScansCompleted       int64
}

// PriorityWildcard is the stored form of a priority filter matching every
// ticket. It only appears at persistence and file boundaries.
const PriorityWildcard = "all"

// ParsePriorityFilter maps a stored priority filter to its typed form; the
// wildcard and the empty string become nil.
func ParsePriorityFilter(raw string) (*TicketPriority, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, PriorityWildcard) {
		return nil, nil
	}
	p, err := ParseTicketPriority(raw)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FormatPriorityFilter is the inverse of ParsePriorityFilter.
func FormatPriorityFilter(p *TicketPriority) string {
	if p == nil {
		return PriorityWildcard
	}
	return string(*p)
}

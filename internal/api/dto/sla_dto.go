package dto

import (
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// DueDatesRequest describes an ad-hoc ticket. CreatedAt defaults to now.
type DueDatesRequest struct {
	EntityID  string                `json:"entity_id"`
	Priority  domain.TicketPriority `json:"priority"`
	CreatedAt *time.Time            `json:"created_at"`
}

// DueDatesResponse carries the computed deadlines.
type DueDatesResponse struct {
	RuleID        *string    `json:"rule_id"`
	CreatedAt     time.Time  `json:"created_at"`
	ResponseDue   *time.Time `json:"response_due"`
	ResolutionDue *time.Time `json:"resolution_due"`
	EscalationDue *time.Time `json:"escalation_due"`
}

// FindingResponse is one unmet obligation.
type FindingResponse struct {
	TicketID string         `json:"ticket_id"`
	DueKind  domain.DueKind `json:"due_kind"`
	DueAt    time.Time      `json:"due_at"`
}

// FindingsResponse lists findings with their distinct ticket ids.
type FindingsResponse struct {
	CheckedAt time.Time         `json:"checked_at"`
	TicketIDs []string          `json:"ticket_ids"`
	Findings  []FindingResponse `json:"findings"`
}

// MonitoringMetricsResponse mirrors the monitor counters.
type MonitoringMetricsResponse struct {
	LastCheck            *time.Time `json:"last_check"`
	WarningsSent         int64      `json:"warnings_sent"`
	BreachesRecorded     int64      `json:"breaches_recorded"`
	EscalationsTriggered int64      `json:"escalations_triggered"`
	ScansCompleted       int64      `json:"scans_completed"`
}

// ScanResponse summarises a manual scan.
type ScanResponse struct {
	StartedAt   time.Time `json:"started_at"`
	Warnings    int       `json:"warnings"`
	Breaches    int       `json:"breaches"`
	Escalations int       `json:"escalations"`
	AlreadySent int       `json:"already_sent"`
	Failed      int       `json:"failed"`
}

// RulesReloadResponse describes the snapshot now in effect.
type RulesReloadResponse struct {
	Version       int64     `json:"version"`
	LoadedAt      time.Time `json:"loaded_at"`
	SLARules      int       `json:"sla_rules"`
	BusinessHours int       `json:"business_hours"`
	WorkflowRules int       `json:"workflow_rules"`
}

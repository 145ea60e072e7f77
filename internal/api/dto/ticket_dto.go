package dto

import (
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// ChangeStatusRequest payload.
type ChangeStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

// ChangePriorityRequest payload.
type ChangePriorityRequest struct {
	Priority domain.TicketPriority `json:"priority"`
}

// TicketResponse is the SLA-relevant view of a ticket.
type TicketResponse struct {
	ID              string                `json:"id"`
	ExternalKey     string                `json:"external_key"`
	EntityID        string                `json:"entity_id,omitempty"`
	Title           string                `json:"title"`
	Status          string                `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	Category        *string               `json:"category"`
	AssigneeID      *string               `json:"assignee_id"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	FirstResponseAt *time.Time            `json:"first_response_at"`
	ResolvedAt      *time.Time            `json:"resolved_at"`
	ResponseDue     *time.Time            `json:"response_due"`
	ResolutionDue   *time.Time            `json:"resolution_due"`
	EscalationDue   *time.Time            `json:"escalation_due"`
}

// TicketHistoryResponse is one audit entry.
type TicketHistoryResponse struct {
	ID          string                  `json:"id"`
	ChangedByID *string                 `json:"changed_by_id"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	OldValue    map[string]any          `json:"old_value"`
	NewValue    map[string]any          `json:"new_value"`
	Note        string                  `json:"note,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

// ObligationResponse describes one deadline of a ticket.
type ObligationResponse struct {
	Kind             domain.DueKind `json:"kind"`
	DueAt            *time.Time     `json:"due_at"`
	Met              bool           `json:"met"`
	Breached         bool           `json:"breached"`
	Approaching      bool           `json:"approaching"`
	RemainingSeconds int64          `json:"remaining_seconds"`
}

// TicketSLAResponse is the SLA position of a ticket.
type TicketSLAResponse struct {
	TicketID    string                `json:"ticket_id"`
	Status      string                `json:"status"`
	Priority    domain.TicketPriority `json:"priority"`
	RuleID      *string               `json:"rule_id"`
	CheckedAt   time.Time             `json:"checked_at"`
	Obligations []ObligationResponse  `json:"obligations"`
}

// StatusChangeResponse returns the updated ticket and the decision applied.
type StatusChangeResponse struct {
	Ticket   TicketResponse   `json:"ticket"`
	Decision DecisionResponse `json:"decision"`
}

package dto

import "github.com/spec-kit/sla-engine/internal/domain"

// TransitionCheckRequest payload. The caller's roles are used.
type TransitionCheckRequest struct {
	FromStatus string                `json:"from_status"`
	ToStatus   string                `json:"to_status"`
	Priority   domain.TicketPriority `json:"priority"`
	Category   *string               `json:"category"`
}

// DecisionResponse mirrors a workflow decision.
type DecisionResponse struct {
	Allowed      bool   `json:"allowed"`
	Reason       string `json:"reason,omitempty"`
	RequiresNote bool   `json:"requires_note"`
	AutoAssign   bool   `json:"auto_assign"`
}

// TransitionsResponse lists the reachable statuses.
type TransitionsResponse struct {
	FromStatus  string   `json:"from_status"`
	Transitions []string `json:"transitions"`
	Terminal    bool     `json:"terminal"`
}

// RequiresNoteResponse answers the note query.
type RequiresNoteResponse struct {
	FromStatus   string `json:"from_status"`
	ToStatus     string `json:"to_status"`
	RequiresNote bool   `json:"requires_note"`
}

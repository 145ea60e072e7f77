package handlers

import (
	"github.com/spec-kit/sla-engine/internal/api/dto"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/monitor"
	"github.com/spec-kit/sla-engine/internal/service"
	"github.com/spec-kit/sla-engine/internal/sla"
	"github.com/spec-kit/sla-engine/internal/workflow"
)

func ticketResponse(t *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:              t.ID,
		ExternalKey:     t.ExternalKey,
		EntityID:        t.EntityID,
		Title:           t.Title,
		Status:          t.Status,
		Priority:        t.Priority,
		Category:        t.Category,
		AssigneeID:      t.AssigneeID,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		FirstResponseAt: t.FirstResponseAt,
		ResolvedAt:      t.ResolvedAt,
		ResponseDue:     t.ResponseDue,
		ResolutionDue:   t.ResolutionDue,
		EscalationDue:   t.EscalationDue,
	}
}

func decisionResponse(d workflow.Decision) dto.DecisionResponse {
	return dto.DecisionResponse{
		Allowed:      d.Allowed,
		Reason:       string(d.Reason),
		RequiresNote: d.RequiresNote,
		AutoAssign:   d.AutoAssign,
	}
}

func historyResponse(entries []domain.TicketHistory) []dto.TicketHistoryResponse {
	out := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, h := range entries {
		out = append(out, dto.TicketHistoryResponse{
			ID:          h.ID,
			ChangedByID: h.ChangedByID,
			ChangeType:  h.ChangeType,
			OldValue:    h.OldValue,
			NewValue:    h.NewValue,
			Note:        h.Note,
			CreatedAt:   h.CreatedAt,
		})
	}
	return out
}

func slaStatusResponse(view *service.SLAStatusView) dto.TicketSLAResponse {
	resp := dto.TicketSLAResponse{
		TicketID:    view.Ticket.ID,
		Status:      view.Ticket.Status,
		Priority:    view.Ticket.Priority,
		CheckedAt:   view.CheckedAt,
		Obligations: make([]dto.ObligationResponse, 0, len(view.Due)),
	}
	if view.Rule != nil {
		id := view.Rule.ID
		resp.RuleID = &id
	}
	for _, d := range view.Due {
		resp.Obligations = append(resp.Obligations, dto.ObligationResponse{
			Kind:             d.Kind,
			DueAt:            d.DueAt,
			Met:              d.Met,
			Breached:         d.Breached,
			Approaching:      d.Approaching,
			RemainingSeconds: int64(d.Remaining.Seconds()),
		})
	}
	return resp
}

func findingsResponse(findings []sla.Finding) []dto.FindingResponse {
	out := make([]dto.FindingResponse, 0, len(findings))
	for _, f := range findings {
		out = append(out, dto.FindingResponse{TicketID: f.TicketID, DueKind: f.Kind, DueAt: f.DueAt})
	}
	return out
}

func metricsResponse(m domain.MonitoringMetrics) dto.MonitoringMetricsResponse {
	return dto.MonitoringMetricsResponse{
		LastCheck:            m.LastCheck,
		WarningsSent:         m.WarningsSent,
		BreachesRecorded:     m.BreachesRecorded,
		EscalationsTriggered: m.EscalationsTriggered,
		ScansCompleted:       m.ScansCompleted,
	}
}

func scanResponse(r monitor.ScanResult) dto.ScanResponse {
	return dto.ScanResponse{
		StartedAt:   r.StartedAt,
		Warnings:    r.Warnings,
		Breaches:    r.Breaches,
		Escalations: r.Escalations,
		AlreadySent: r.AlreadySent,
		Failed:      r.Failed,
	}
}

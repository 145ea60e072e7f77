package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/api/dto"
	"github.com/spec-kit/sla-engine/internal/auth"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/service"
	"github.com/spec-kit/sla-engine/internal/workflow"
	apperrors "github.com/spec-kit/sla-engine/pkg/util/errorutil"
)

// WorkflowHandler answers transition questions for the caller.
type WorkflowHandler struct {
	rules service.SnapshotProvider
}

// NewWorkflowHandler constructs handler.
func NewWorkflowHandler(rules service.SnapshotProvider) *WorkflowHandler {
	return &WorkflowHandler{rules: rules}
}

func (h *WorkflowHandler) validator() *workflow.Validator {
	return workflow.NewValidator(h.rules.Current(), nil)
}

// Check POST /workflow/check.
func (h *WorkflowHandler) Check(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	var req dto.TransitionCheckRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.FromStatus) == "" || strings.TrimSpace(req.ToStatus) == "" {
		return apperrors.NewValidationError("from_status and to_status required", nil)
	}
	tctx, err := ticketContext(string(req.Priority), req.Category)
	if err != nil {
		return err
	}
	decision := h.validator().IsTransitionAllowed(req.FromStatus, req.ToStatus, principal.Roles, tctx)
	return c.JSON(fiber.Map{"data": decisionResponse(decision)})
}

// Transitions GET /workflow/transitions?from=&priority=&category=.
func (h *WorkflowHandler) Transitions(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	from := strings.TrimSpace(c.Query("from"))
	if from == "" {
		return apperrors.NewValidationError("from required", nil)
	}
	var category *string
	if raw := strings.TrimSpace(c.Query("category")); raw != "" {
		category = &raw
	}
	tctx, err := ticketContext(c.Query("priority"), category)
	if err != nil {
		return err
	}
	v := h.validator()
	return c.JSON(fiber.Map{"data": dto.TransitionsResponse{
		FromStatus:  from,
		Transitions: v.GetAllowedTransitions(from, principal.Roles, tctx),
		Terminal:    v.IsTerminal(from),
	}})
}

// RequiresNote GET /workflow/requires-note?from=&to=.
func (h *WorkflowHandler) RequiresNote(c *fiber.Ctx) error {
	from, to := strings.TrimSpace(c.Query("from")), strings.TrimSpace(c.Query("to"))
	if from == "" || to == "" {
		return apperrors.NewValidationError("from and to required", nil)
	}
	return c.JSON(fiber.Map{"data": dto.RequiresNoteResponse{
		FromStatus:   from,
		ToStatus:     to,
		RequiresNote: h.validator().RequiresNote(from, to),
	}})
}

func ticketContext(rawPriority string, category *string) (domain.TicketContext, error) {
	if rawPriority == "" {
		rawPriority = string(domain.TicketPriorityNormal)
	}
	priority, err := domain.ParseTicketPriority(rawPriority)
	if err != nil {
		return domain.TicketContext{}, apperrors.NewValidationError("invalid priority", map[string]any{"priority": rawPriority})
	}
	return domain.TicketContext{Priority: priority, Category: category}, nil
}

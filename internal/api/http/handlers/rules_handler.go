package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/api/dto"
	"github.com/spec-kit/sla-engine/internal/rules"
)

// RulesHandler lets operators refresh the rule snapshot.
type RulesHandler struct {
	store *rules.Store
}

// NewRulesHandler constructs handler.
func NewRulesHandler(store *rules.Store) *RulesHandler {
	return &RulesHandler{store: store}
}

// Reload POST /rules/reload.
func (h *RulesHandler) Reload(c *fiber.Ctx) error {
	if err := h.store.Reload(c.UserContext()); err != nil {
		return err
	}
	snap := h.store.Current()
	return c.JSON(fiber.Map{"data": dto.RulesReloadResponse{
		Version:       snap.Version,
		LoadedAt:      snap.LoadedAt,
		SLARules:      len(snap.SLARules),
		BusinessHours: len(snap.BusinessHours),
		WorkflowRules: len(snap.WorkflowRules),
	}})
}

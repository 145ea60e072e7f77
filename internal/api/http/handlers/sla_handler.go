package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/api/dto"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/monitor"
	"github.com/spec-kit/sla-engine/internal/service"
	"github.com/spec-kit/sla-engine/internal/sla"
	apperrors "github.com/spec-kit/sla-engine/pkg/util/errorutil"
)

// SLAHandler exposes deadline computation, breach queries and the monitor.
type SLAHandler struct {
	rules    service.SnapshotProvider
	finder   *sla.Finder
	monitor  *monitor.Monitor
	location *time.Location
	clock    func() time.Time
}

// SLAHandlerConfig bundles handler collaborators.
type SLAHandlerConfig struct {
	Rules    service.SnapshotProvider
	Finder   *sla.Finder
	Monitor  *monitor.Monitor
	Location *time.Location
	Clock    func() time.Time
}

// NewSLAHandler constructs handler.
func NewSLAHandler(cfg SLAHandlerConfig) *SLAHandler {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SLAHandler{
		rules:    cfg.Rules,
		finder:   cfg.Finder,
		monitor:  cfg.Monitor,
		location: cfg.Location,
		clock:    clock,
	}
}

// DueDates POST /sla/due-dates.
func (h *SLAHandler) DueDates(c *fiber.Ctx) error {
	var req dto.DueDatesRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	tctx, err := ticketContext(string(req.Priority), nil)
	if err != nil {
		return err
	}
	createdAt := h.clock()
	if req.CreatedAt != nil {
		createdAt = *req.CreatedAt
	}

	ticket := &domain.Ticket{EntityID: req.EntityID, Priority: tctx.Priority, CreatedAt: createdAt}
	rule, due := sla.Resolve(h.rules.Current(), h.location, ticket)
	resp := dto.DueDatesResponse{
		CreatedAt:     createdAt,
		ResponseDue:   due.ResponseDue,
		ResolutionDue: due.ResolutionDue,
		EscalationDue: due.EscalationDue,
	}
	if rule != nil {
		id := rule.ID
		resp.RuleID = &id
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Breached GET /sla/breached.
func (h *SLAHandler) Breached(c *fiber.Ctx) error {
	now := h.clock()
	findings, err := h.finder.GetBreachedTickets(c.UserContext(), now)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": findingsPage(now, findings)})
}

// Approaching GET /sla/approaching?window_hours=.
func (h *SLAHandler) Approaching(c *fiber.Ctx) error {
	window := h.monitor.WarningWindow()
	if raw := c.Query("window_hours"); raw != "" {
		hours, err := strconv.ParseFloat(raw, 64)
		if err != nil || hours <= 0 {
			return apperrors.NewValidationError("window_hours must be a positive number", nil)
		}
		window = time.Duration(hours * float64(time.Hour))
	}
	now := h.clock()
	findings, err := h.finder.GetTicketsApproachingBreach(c.UserContext(), window, now)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": findingsPage(now, findings)})
}

// Metrics GET /sla/monitor/metrics.
func (h *SLAHandler) Metrics(c *fiber.Ctx) error {
	metrics, err := h.monitor.Metrics(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": metricsResponse(metrics)})
}

// Scan POST /sla/monitor/scan.
func (h *SLAHandler) Scan(c *fiber.Ctx) error {
	result, err := h.monitor.RunScan(c.UserContext())
	if errors.Is(err, monitor.ErrScanInProgress) {
		return apperrors.NewDomainError(apperrors.CodeScanInProgress, err.Error(), fiber.StatusConflict, nil)
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": scanResponse(result)})
}

// ResetMetrics POST /sla/monitor/metrics/reset.
func (h *SLAHandler) ResetMetrics(c *fiber.Ctx) error {
	if err := h.monitor.ResetMetrics(c.UserContext()); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func findingsPage(now time.Time, findings []sla.Finding) dto.FindingsResponse {
	return dto.FindingsResponse{
		CheckedAt: now,
		TicketIDs: sla.IDs(findings),
		Findings:  findingsResponse(findings),
	}
}

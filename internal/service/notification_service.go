package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/config"
	"github.com/spec-kit/sla-engine/internal/events"
)

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger.Named("notifications"),
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventSLAWarning, n.handleSLAEvent)
	n.dispatcher.Subscribe(events.EventSLABreach, n.handleSLAEvent)
	n.dispatcher.Subscribe(events.EventSLAEscalation, n.handleSLAEvent)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketEvent)
	n.dispatcher.Subscribe(events.EventTicketPriorityChanged, n.handleTicketEvent)
}

// handleSLAEvent fails when the webhook does, so the monitor keeps the
// notification pending.
func (n *NotificationService) handleSLAEvent(_ context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
	}
	if payload, ok := event.Payload.(events.SLAPayload); ok {
		fields = append(fields,
			zap.String("due_kind", string(payload.DueKind)),
			zap.Time("due_at", payload.DueAt),
		)
	}
	if event.Type == events.EventSLAWarning {
		n.logger.Info("sla warning", fields...)
	} else {
		n.logger.Warn("sla violation", fields...)
	}
	return n.sendWebhook(event)
}

func (n *NotificationService) handleTicketEvent(_ context.Context, event events.Event) error {
	n.logger.Info("ticket event",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.Any("payload", event.Payload),
	)
	return n.sendWebhook(event)
}

func (n *NotificationService) sendWebhook(event events.Event) error {
	url := strings.TrimSpace(n.cfg.WebhookURL)
	if url == "" {
		return nil
	}
	timeout := n.cfg.WebhookTimeout()
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	agent := fiber.Post(url)
	agent.Set("X-Event-Type", string(event.Type))
	agent.Set("X-Event-ID", event.ID)
	code, _, errs := agent.JSON(event).Timeout(timeout).Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("webhook %s: %w", event.Type, errors.Join(errs...))
	}
	if code < fiber.StatusOK || code >= fiber.StatusMultipleChoices {
		return fmt.Errorf("webhook %s: unexpected status %d", event.Type, code)
	}
	n.logger.Debug("webhook delivered",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.Int("status", code),
	)
	return nil
}

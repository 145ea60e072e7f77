package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSPublisher forwards SLA events to JetStream, one subject per event kind.
type NATSPublisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	prefix string
	logger *zap.Logger
}

// NewNATSPublisher connects to url and binds a JetStream context.
func NewNATSPublisher(url, subjectPrefix string, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("nats")

	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	logger.Info("connected to nats", zap.String("url", url))
	return &NATSPublisher{nc: nc, js: js, prefix: strings.TrimSuffix(subjectPrefix, "."), logger: logger}, nil
}

// Subject maps an event type to its subject, e.g. sla_breach to sla.breach.
func Subject(prefix string, eventType EventType) string {
	subject := strings.ReplaceAll(string(eventType), "_", ".")
	if prefix == "" {
		return subject
	}
	return prefix + "." + subject
}

// Publish waits for the JetStream ack so a failure can be retried by the
// caller. The message id is Event.MessageID, so a retried SLA notification
// falls inside the stream's duplicate window instead of being stored twice.
func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := Subject(p.prefix, event.Type)
	if _, err := p.js.Publish(subject, data, nats.Context(ctx), nats.MsgId(event.MessageID())); err != nil {
		p.logger.Error("publish event failed", zap.String("subject", subject), zap.String("ticket_id", event.TicketID), zap.Error(err))
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	p.logger.Debug("event published", zap.String("subject", subject), zap.Int("size", len(data)))
	return nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	p.logger.Info("closing nats connection")
	return p.nc.Drain()
}

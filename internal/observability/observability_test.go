package observability

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/config"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()

	m.ObserveScan("success", 120*time.Millisecond)
	m.ObserveScan("skipped", 0)
	m.ObserveNotification("sla_breach", "resolution", "success")
	m.ObserveNotification("sla_breach", "resolution", "success")
	m.ObserveRuleReload(errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.scansTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scansTotal.WithLabelValues("skipped")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.notifications.WithLabelValues("sla_breach", "resolution", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ruleReloads.WithLabelValues("error")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordError("/", "GET", "NOT_FOUND")
		m.ObserveScan("success", time.Second)
		m.ObserveNotification("sla_warning", "response", "error")
		m.ObserveRuleReload(nil)
	})
}

func TestRequestLoggerUsesRoutePattern(t *testing.T) {
	m := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), m))
	app.Get("/api/v1/tickets/:id/sla", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/tickets/42/sla", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/api/v1/tickets/:id/sla", "GET", "204")))
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "loud"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}

// Package monitor periodically turns SLA findings into notifications, each
// delivered once per breach window.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/sla"
)

// ErrScanInProgress is returned when a scan is already running here or on
// another instance holding the lock.
var ErrScanInProgress = errors.New("sla scan already in progress")

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Finder classifies unmet obligations from a single ticket listing.
type Finder interface {
	Classify(ctx context.Context, now time.Time, window time.Duration) (sla.Classification, error)
}

// MarkerStore remembers delivered notifications. A zero expireAt keeps the
// marker forever.
type MarkerStore interface {
	IsNotified(ctx context.Context, key string) (bool, error)
	MarkNotified(ctx context.Context, key string, expireAt time.Time) error
}

// MetricsStore persists the cumulative counters.
type MetricsStore interface {
	Load(ctx context.Context) (domain.MonitoringMetrics, error)
	Save(ctx context.Context, metrics domain.MonitoringMetrics) error
	Reset(ctx context.Context) error
}

// Locker guards scans across instances. ok is false when the lock is taken.
type Locker interface {
	Acquire(ctx context.Context) (release func(context.Context), ok bool, err error)
}

// Recorder receives scan and notification observations.
type Recorder interface {
	ObserveScan(outcome string, duration time.Duration)
	ObserveNotification(event, dueKind, outcome string)
}

// Dependencies wires a Monitor. Locker, Recorder, Logger and Clock are
// optional. MarkerRetention bounds how long a marker outlives its deadline;
// zero keeps markers forever.
type Dependencies struct {
	Finder          Finder
	Notifier        events.Publisher
	Markers         MarkerStore
	Metrics         MetricsStore
	Locker          Locker
	Recorder        Recorder
	Logger          *zap.Logger
	Clock           func() time.Time
	WarningWindow   time.Duration
	MarkerRetention time.Duration
}

// ScanResult summarises one scan.
type ScanResult struct {
	StartedAt    time.Time
	Warnings     int
	Breaches     int
	Escalations  int
	AlreadySent  int
	Failed       int
	MarkerErrors int
}

// Monitor runs scans. It is safe for concurrent use; overlapping scans are
// rejected.
type Monitor struct {
	deps    Dependencies
	logger  *zap.Logger
	running atomic.Bool

	mu      sync.Mutex
	metrics domain.MonitoringMetrics
	loaded  bool
}

// New builds a monitor.
func New(deps Dependencies) *Monitor {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	return &Monitor{deps: deps, logger: logger.Named("sla_monitor")}
}

// WarningWindow returns the configured approach window.
func (m *Monitor) WarningWindow() time.Duration {
	return m.deps.WarningWindow
}

// RunScan classifies active tickets and notifies each new crossing once. A
// ticket store failure aborts the scan; delivery failures leave the marker
// unset so the next scan retries.
func (m *Monitor) RunScan(ctx context.Context) (ScanResult, error) {
	if !m.running.CompareAndSwap(false, true) {
		m.deps.Recorder.ObserveScan(OutcomeSkipped, 0)
		return ScanResult{}, ErrScanInProgress
	}
	defer m.running.Store(false)

	if m.deps.Locker != nil {
		release, ok, err := m.deps.Locker.Acquire(ctx)
		if err != nil {
			m.deps.Recorder.ObserveScan(OutcomeError, 0)
			return ScanResult{}, fmt.Errorf("acquire scan lock: %w", err)
		}
		if !ok {
			m.deps.Recorder.ObserveScan(OutcomeSkipped, 0)
			return ScanResult{}, ErrScanInProgress
		}
		defer release(context.WithoutCancel(ctx))
	}

	now := m.deps.Clock()
	result, err := m.scan(ctx, now)
	elapsed := m.deps.Clock().Sub(now)
	if err != nil {
		m.deps.Recorder.ObserveScan(OutcomeError, elapsed)
		m.logger.Error("sla scan failed", zap.Error(err))
		return result, err
	}
	m.deps.Recorder.ObserveScan(OutcomeSuccess, elapsed)
	m.logger.Info("sla scan completed",
		zap.Int("warnings", result.Warnings),
		zap.Int("breaches", result.Breaches),
		zap.Int("escalations", result.Escalations),
		zap.Int("already_sent", result.AlreadySent),
		zap.Int("failed", result.Failed),
		zap.Duration("elapsed", elapsed),
	)
	return result, nil
}

func (m *Monitor) scan(ctx context.Context, now time.Time) (ScanResult, error) {
	result := ScanResult{StartedAt: now}

	found, err := m.deps.Finder.Classify(ctx, now, m.deps.WarningWindow)
	if err != nil {
		return result, fmt.Errorf("list active tickets: %w", err)
	}

	batches := []struct {
		event    events.EventType
		findings []sla.Finding
		counter  *int
	}{
		{events.EventSLABreach, found.Breached, &result.Breaches},
		{events.EventSLAWarning, found.Approaching, &result.Warnings},
		{events.EventSLAEscalation, found.Escalations, &result.Escalations},
	}

	var cancelled error
	for _, batch := range batches {
		for _, finding := range batch.findings {
			if err := ctx.Err(); err != nil {
				cancelled = err
				break
			}
			switch m.notify(ctx, batch.event, finding, now) {
			case delivered:
				*batch.counter++
			case alreadySent:
				result.AlreadySent++
			case deliveryFailed:
				result.Failed++
			case markerFailed:
				result.MarkerErrors++
			}
		}
	}

	if err := m.record(context.WithoutCancel(ctx), result, now); err != nil {
		return result, err
	}
	if cancelled != nil {
		return result, fmt.Errorf("scan interrupted: %w", cancelled)
	}
	return result, nil
}

type notifyStatus int

const (
	delivered notifyStatus = iota
	alreadySent
	deliveryFailed
	markerFailed
)

func (m *Monitor) notify(ctx context.Context, event events.EventType, f sla.Finding, now time.Time) notifyStatus {
	key := MarkerKey(event, f)
	log := m.logger.With(
		zap.String("event", string(event)),
		zap.String("ticket_id", f.TicketID),
		zap.String("due_kind", string(f.Kind)),
		zap.Time("due_at", f.DueAt),
	)

	seen, err := m.deps.Markers.IsNotified(ctx, key)
	if err != nil {
		log.Warn("read notification marker failed", zap.Error(err))
		return markerFailed
	}
	if seen {
		return alreadySent
	}

	payload := events.SLAPayload{DueKind: f.Kind, DueAt: f.DueAt, DetectedAt: now}
	e := events.New(event, f.TicketID, events.SystemActor, now, payload)
	e.DedupKey = key
	if err := m.deps.Notifier.Publish(ctx, e); err != nil {
		m.deps.Recorder.ObserveNotification(string(event), string(f.Kind), OutcomeError)
		log.Warn("sla notification failed, will retry next scan", zap.Error(err))
		return deliveryFailed
	}
	m.deps.Recorder.ObserveNotification(string(event), string(f.Kind), OutcomeSuccess)

	if err := m.deps.Markers.MarkNotified(ctx, key, MarkerExpiry(f.DueAt, m.deps.MarkerRetention, now)); err != nil {
		// Delivered but unmarked: the next scan may repeat it.
		log.Error("write notification marker failed", zap.Error(err))
	}
	return delivered
}

// MarkerKey identifies one notification window. A new due date yields a new
// key.
func MarkerKey(event events.EventType, f sla.Finding) string {
	return fmt.Sprintf("%s:%s:%s:%d", event, f.TicketID, f.Kind, f.DueAt.Unix())
}

// MarkerExpiry anchors a marker's expiry on the deadline, not on the time it
// was written, so a ticket that stays breached is never notified again while
// the marker lives. A zero retention, or an anchored expiry that has already
// passed, yields the zero time (no expiry).
func MarkerExpiry(dueAt time.Time, retention time.Duration, now time.Time) time.Time {
	if retention <= 0 {
		return time.Time{}
	}
	expireAt := dueAt.Add(retention)
	if !expireAt.After(now) {
		return time.Time{}
	}
	return expireAt
}

func (m *Monitor) record(ctx context.Context, result ScanResult, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadLocked(ctx); err != nil {
		return err
	}
	checked := now
	m.metrics.LastCheck = &checked
	m.metrics.WarningsSent += int64(result.Warnings)
	m.metrics.BreachesRecorded += int64(result.Breaches)
	m.metrics.EscalationsTriggered += int64(result.Escalations)
	m.metrics.ScansCompleted++

	if err := m.deps.Metrics.Save(ctx, m.metrics); err != nil {
		return fmt.Errorf("persist monitoring metrics: %w", err)
	}
	return nil
}

func (m *Monitor) loadLocked(ctx context.Context) error {
	if m.loaded {
		return nil
	}
	stored, err := m.deps.Metrics.Load(ctx)
	if err != nil {
		return fmt.Errorf("load monitoring metrics: %w", err)
	}
	m.metrics = stored
	m.loaded = true
	return nil
}

// Metrics returns the cumulative counters.
func (m *Monitor) Metrics(ctx context.Context) (domain.MonitoringMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadLocked(ctx); err != nil {
		return domain.MonitoringMetrics{}, err
	}
	out := m.metrics
	if out.LastCheck != nil {
		last := *out.LastCheck
		out.LastCheck = &last
	}
	return out, nil
}

// ResetMetrics zeroes the counters. Markers are kept, so reset does not cause
// repeat notifications.
func (m *Monitor) ResetMetrics(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.deps.Metrics.Reset(ctx); err != nil {
		return fmt.Errorf("reset monitoring metrics: %w", err)
	}
	m.metrics = domain.MonitoringMetrics{}
	m.loaded = true
	m.logger.Info("monitoring metrics reset")
	return nil
}

type nopRecorder struct{}

func (nopRecorder) ObserveScan(string, time.Duration)          {}
func (nopRecorder) ObserveNotification(string, string, string) {}

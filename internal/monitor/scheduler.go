package monitor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval is used when the scheduler is given no interval.
const DefaultInterval = 5 * time.Minute

// Scanner is the unit of scheduled work.
type Scanner interface {
	RunScan(ctx context.Context) (ScanResult, error)
}

// Scheduler runs a scan on every tick until its context ends. Ticks that
// arrive during a scan are dropped by the ticker, never queued.
type Scheduler struct {
	scanner  Scanner
	interval time.Duration
	logger   *zap.Logger
}

// NewScheduler builds a scheduler.
func NewScheduler(scanner Scanner, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{scanner: scanner, interval: interval, logger: logger.Named("sla_scheduler")}
}

// Start blocks, scanning once immediately and then on every tick.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("sla scheduler started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sla scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	_, err := s.scanner.RunScan(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrScanInProgress):
		s.logger.Debug("sla scan skipped, previous scan still running")
	case errors.Is(err, context.Canceled):
	default:
		s.logger.Warn("sla scan tick failed", zap.Error(err))
	}
}

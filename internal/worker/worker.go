// Package worker runs the background jobs of the service.
package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/monitor"
	"github.com/spec-kit/sla-engine/internal/rules"
	"github.com/spec-kit/sla-engine/internal/service"
)

// Config selects which jobs run. Nil members are skipped.
type Config struct {
	Notifications *service.NotificationService
	Scheduler     *monitor.Scheduler
	Rules         *rules.Store
	RulesInterval time.Duration
	Logger        *zap.Logger
}

// Group tracks running jobs.
type Group struct {
	wg sync.WaitGroup
}

// Start registers notification handlers and launches the monitor scheduler
// and the rule refresher until ctx ends.
func Start(ctx context.Context, cfg Config) *Group {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Group{}

	if cfg.Notifications != nil {
		cfg.Notifications.RegisterHandlers()
	}
	if cfg.Rules != nil && cfg.RulesInterval > 0 {
		g.goRun(func() { cfg.Rules.Run(ctx, cfg.RulesInterval) })
		logger.Info("rule refresher started", zap.Duration("interval", cfg.RulesInterval))
	}
	if cfg.Scheduler != nil {
		g.goRun(func() { cfg.Scheduler.Start(ctx) })
	}
	return g
}

func (g *Group) goRun(fn func()) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		fn()
	}()
}

// Wait blocks until every job returned.
func (g *Group) Wait() {
	g.wg.Wait()
}

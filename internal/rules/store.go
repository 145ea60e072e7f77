package rules

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Source loads the current rule data from the administrative collaborator.
type Source interface {
	Load(ctx context.Context) (Data, error)
}

// Store publishes versioned rule snapshots. Readers never block.
type Store struct {
	source  Source
	logger  *zap.Logger
	now     func() time.Time
	current atomic.Pointer[Snapshot]
	reload  sync.Mutex
	version int64
	observe func(error)
}

// NewStore builds a store with an empty snapshot; call Reload to populate it.
func NewStore(source Source, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{source: source, logger: logger.Named("rules"), now: time.Now}
	s.current.Store(NewSnapshot(0, time.Time{}, Data{}))
	return s
}

// OnReload registers a callback invoked after every reload attempt. Call it
// before the store is shared.
func (s *Store) OnReload(fn func(error)) {
	s.observe = fn
}

// Current returns the latest snapshot.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Reload fetches rules from the source and swaps the snapshot. On failure the
// previous snapshot stays in place.
func (s *Store) Reload(ctx context.Context) error {
	s.reload.Lock()
	defer s.reload.Unlock()

	data, err := s.source.Load(ctx)
	if s.observe != nil {
		s.observe(err)
	}
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	s.version++
	snap := NewSnapshot(s.version, s.now(), data)
	s.current.Store(snap)
	s.logger.Info("rules reloaded",
		zap.Int64("version", snap.Version),
		zap.Int("sla_rules", len(snap.SLARules)),
		zap.Int("business_hours", len(snap.BusinessHours)),
		zap.Int("workflow_rules", len(snap.WorkflowRules)))
	return nil
}

// Run reloads on every tick until ctx is cancelled.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Reload(ctx); err != nil {
				s.logger.Warn("rules refresh failed; keeping previous snapshot", zap.Error(err))
			}
		}
	}
}

// StaticSource serves fixed data, mostly for tests and bootstrapping.
type StaticSource Data

// Load returns the fixed data.
func (s StaticSource) Load(context.Context) (Data, error) {
	return Data(s), nil
}

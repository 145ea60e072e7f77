package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// MemoryMarkerStore keeps markers in process. Used when redis is not
// configured.
type MemoryMarkerStore struct {
	mu   sync.RWMutex
	keys map[string]time.Time
	now  func() time.Time
}

// NewMemoryMarkerStore creates an empty store.
func NewMemoryMarkerStore() *MemoryMarkerStore {
	return &MemoryMarkerStore{keys: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryMarkerStore) IsNotified(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	expireAt, ok := s.keys[key]
	if !ok {
		return false, nil
	}
	return expireAt.IsZero() || s.now().Before(expireAt), nil
}

// MarkNotified stores the marker until expireAt; the zero time keeps it
// forever.
func (s *MemoryMarkerStore) MarkNotified(_ context.Context, key string, expireAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = expireAt
	return nil
}

// Len returns the number of markers.
func (s *MemoryMarkerStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// MemoryMetricsStore keeps the counters in process.
type MemoryMetricsStore struct {
	mu      sync.Mutex
	metrics domain.MonitoringMetrics
}

// NewMemoryMetricsStore creates a zeroed store.
func NewMemoryMetricsStore() *MemoryMetricsStore {
	return &MemoryMetricsStore{}
}

func (s *MemoryMetricsStore) Load(context.Context) (domain.MonitoringMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics, nil
}

func (s *MemoryMetricsStore) Save(_ context.Context, m domain.MonitoringMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
	return nil
}

func (s *MemoryMetricsStore) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = domain.MonitoringMetrics{}
	return nil
}

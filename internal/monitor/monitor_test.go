package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/sla"
)

var scanNow = time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := scanNow.Add(d)
	return &t
}

type ticketStore struct {
	mu      sync.Mutex
	tickets []domain.Ticket
	err     error
	lists   int
}

func (s *ticketStore) ListActiveTickets(context.Context, domain.ActiveTicketFilter) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.Ticket(nil), s.tickets...), nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []events.Event
	fail   func(events.Event) error
}

func (n *recordingNotifier) Publish(_ context.Context, e events.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		if err := n.fail(e); err != nil {
			return err
		}
	}
	n.events = append(n.events, e)
	return nil
}

func (n *recordingNotifier) types() []events.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]events.EventType, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

func defaultTickets() []domain.Ticket {
	return []domain.Ticket{
		{ID: "late", Status: "open", Priority: domain.TicketPriorityHigh, ResolutionDue: at(-2 * time.Hour), EscalationDue: at(-time.Hour)},
		{ID: "soon", Status: "open", Priority: domain.TicketPriorityNormal, ResponseDue: at(time.Hour)},
		{ID: "fine", Status: "open", Priority: domain.TicketPriorityLow, ResolutionDue: at(48 * time.Hour)},
		{ID: "done", Status: "resolved", ResolvedAt: at(-3 * time.Hour), ResolutionDue: at(-5 * time.Hour)},
	}
}

type fixture struct {
	store    *ticketStore
	notifier *recordingNotifier
	markers  *MemoryMarkerStore
	metrics  *MemoryMetricsStore
	monitor  *Monitor
}

func newFixture(tickets []domain.Ticket) *fixture {
	f := &fixture{
		store:    &ticketStore{tickets: tickets},
		notifier: &recordingNotifier{},
		markers:  NewMemoryMarkerStore(),
		metrics:  NewMemoryMetricsStore(),
	}
	f.monitor = New(Dependencies{
		Finder:        sla.NewFinder(f.store, []string{"closed"}),
		Notifier:      f.notifier,
		Markers:       f.markers,
		Metrics:       f.metrics,
		Clock:         func() time.Time { return scanNow },
		WarningWindow: 2 * time.Hour,
	})
	return f
}

func TestRunScanNotifiesOncePerWindow(t *testing.T) {
	f := newFixture(defaultTickets())
	ctx := context.Background()

	first, err := f.monitor.RunScan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Breaches)
	assert.Equal(t, 1, first.Warnings)
	assert.Equal(t, 1, first.Escalations)
	assert.Equal(t, []events.EventType{events.EventSLABreach, events.EventSLAWarning, events.EventSLAEscalation}, f.notifier.types())

	second, err := f.monitor.RunScan(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.Breaches+second.Warnings+second.Escalations)
	assert.Equal(t, 3, second.AlreadySent)
	assert.Len(t, f.notifier.types(), 3)

	metrics, err := f.monitor.Metrics(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, metrics.BreachesRecorded)
	assert.EqualValues(t, 1, metrics.WarningsSent)
	assert.EqualValues(t, 1, metrics.EscalationsTriggered)
	assert.EqualValues(t, 2, metrics.ScansCompleted)
	require.NotNil(t, metrics.LastCheck)
	assert.True(t, metrics.LastCheck.Equal(scanNow))

	stored, _ := f.metrics.Load(ctx)
	assert.Equal(t, metrics.BreachesRecorded, stored.BreachesRecorded)
}

func TestRunScanEventPayload(t *testing.T) {
	f := newFixture(defaultTickets()[:1])
	_, err := f.monitor.RunScan(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, f.notifier.events)
	breach := f.notifier.events[0]
	assert.Equal(t, "late", breach.TicketID)
	payload, ok := breach.Payload.(events.SLAPayload)
	require.True(t, ok)
	assert.Equal(t, domain.DueKindResolution, payload.DueKind)
	assert.True(t, payload.DueAt.Equal(*at(-2 * time.Hour)))
	assert.Nil(t, breach.Actor.ID)
}

func TestRunScanRetriesFailedDispatch(t *testing.T) {
	f := newFixture(defaultTickets()[:1])
	ctx := context.Background()
	f.notifier.fail = func(e events.Event) error {
		if e.Type == events.EventSLABreach {
			return errors.New("webhook unavailable")
		}
		return nil
	}

	first, err := f.monitor.RunScan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Failed)
	assert.Zero(t, first.Breaches)
	assert.Equal(t, 1, first.Escalations)

	f.notifier.fail = nil
	second, err := f.monitor.RunScan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Breaches)
	assert.Equal(t, 1, second.AlreadySent)

	metrics, err := f.monitor.Metrics(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, metrics.BreachesRecorded)
}

func TestRunScanNewDueDateOpensNewWindow(t *testing.T) {
	f := newFixture(defaultTickets()[:1])
	ctx := context.Background()

	_, err := f.monitor.RunScan(ctx)
	require.NoError(t, err)

	f.store.mu.Lock()
	f.store.tickets[0].ResolutionDue = at(-30 * time.Minute)
	f.store.mu.Unlock()

	second, err := f.monitor.RunScan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Breaches)
	assert.Zero(t, second.Escalations)
}

func TestRunScanResolvedTicketStopsNotifying(t *testing.T) {
	f := newFixture(defaultTickets()[:1])
	ctx := context.Background()
	f.notifier.fail = func(events.Event) error { return errors.New("down") }

	_, err := f.monitor.RunScan(ctx)
	require.NoError(t, err)

	f.store.mu.Lock()
	f.store.tickets[0].ResolvedAt = at(-time.Minute)
	f.store.mu.Unlock()
	f.notifier.fail = nil

	result, err := f.monitor.RunScan(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Breaches+result.Escalations+result.Failed)
	assert.Empty(t, f.notifier.types())
}

func TestRunScanListsTicketsOncePerScan(t *testing.T) {
	f := newFixture(defaultTickets())

	result, err := f.monitor.RunScan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Breaches+result.Warnings+result.Escalations)
	assert.Equal(t, 1, f.store.lists)

	_, err = f.monitor.RunScan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.store.lists)
}

func TestRunScanEventsCarryMarkerKey(t *testing.T) {
	f := newFixture(defaultTickets()[:1])
	_, err := f.monitor.RunScan(context.Background())
	require.NoError(t, err)

	require.Len(t, f.notifier.events, 2)
	for _, e := range f.notifier.events {
		payload := e.Payload.(events.SLAPayload)
		want := MarkerKey(e.Type, sla.Finding{TicketID: e.TicketID, Kind: payload.DueKind, DueAt: payload.DueAt})
		assert.Equal(t, want, e.DedupKey)
		assert.Equal(t, want, e.MessageID())
	}
}

func TestRunScanLongBreachIsNotRenotified(t *testing.T) {
	cases := map[string]time.Duration{
		"kept forever":            0,
		"retention past deadline": 90 * 24 * time.Hour,
		"retention already spent": time.Hour,
	}
	for name, retention := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(defaultTickets()[:1])
			ctx := context.Background()
			now := scanNow
			f.monitor.deps.Clock = func() time.Time { return now }
			f.monitor.deps.MarkerRetention = retention
			f.markers.now = func() time.Time { return now }

			first, err := f.monitor.RunScan(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, first.Breaches)

			// Still unresolved two months later.
			now = scanNow.Add(60 * 24 * time.Hour)
			later, err := f.monitor.RunScan(ctx)
			require.NoError(t, err)
			assert.Zero(t, later.Breaches+later.Escalations)
			assert.Equal(t, 2, later.AlreadySent)
			assert.Len(t, f.notifier.types(), 2)

			metrics, err := f.monitor.Metrics(ctx)
			require.NoError(t, err)
			assert.EqualValues(t, 1, metrics.BreachesRecorded)
		})
	}
}

func TestRunScanMarkerExpiresAfterRetention(t *testing.T) {
	f := newFixture([]domain.Ticket{
		{ID: "soon", Status: "open", ResponseDue: at(time.Hour)},
	})
	ctx := context.Background()
	now := scanNow
	f.monitor.deps.Clock = func() time.Time { return now }
	f.monitor.deps.MarkerRetention = 24 * time.Hour
	f.markers.now = func() time.Time { return now }

	_, err := f.monitor.RunScan(ctx)
	require.NoError(t, err)
	assert.Equal(t, []events.EventType{events.EventSLAWarning}, f.notifier.types())

	// The breach is a separate window; the warning marker is gone by then.
	now = scanNow.Add(26 * time.Hour)
	result, err := f.monitor.RunScan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Breaches)
	assert.Zero(t, result.AlreadySent)
	seen, err := f.markers.IsNotified(ctx, MarkerKey(events.EventSLAWarning, sla.Finding{TicketID: "soon", Kind: domain.DueKindResponse, DueAt: *at(time.Hour)}))
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMarkerExpiry(t *testing.T) {
	due := scanNow.Add(-2 * time.Hour)
	cases := []struct {
		name      string
		retention time.Duration
		want      time.Time
	}{
		{"zero retention keeps forever", 0, time.Time{}},
		{"negative retention keeps forever", -time.Hour, time.Time{}},
		{"anchored on deadline", 72 * time.Hour, due.Add(72 * time.Hour)},
		{"anchored expiry already passed", time.Hour, time.Time{}},
		{"anchored expiry equals now", 2 * time.Hour, time.Time{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MarkerExpiry(due, tc.retention, scanNow))
		})
	}
}

func TestMemoryMarkerStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := scanNow
	store := NewMemoryMarkerStore()
	store.now = func() time.Time { return now }

	require.NoError(t, store.MarkNotified(ctx, "forever", time.Time{}))
	require.NoError(t, store.MarkNotified(ctx, "day", scanNow.Add(24*time.Hour)))

	for _, key := range []string{"forever", "day"} {
		seen, err := store.IsNotified(ctx, key)
		require.NoError(t, err)
		assert.True(t, seen, key)
	}

	now = scanNow.Add(24 * time.Hour)
	seen, _ := store.IsNotified(ctx, "day")
	assert.False(t, seen)
	seen, _ = store.IsNotified(ctx, "forever")
	assert.True(t, seen)
	seen, _ = store.IsNotified(ctx, "never-written")
	assert.False(t, seen)
}

func TestRunScanTicketStoreFailure(t *testing.T) {
	f := newFixture(nil)
	f.store.err = errors.New("connection refused")

	_, err := f.monitor.RunScan(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "connection refused")

	metrics, err := f.monitor.Metrics(context.Background())
	require.NoError(t, err)
	assert.Nil(t, metrics.LastCheck)
	assert.Zero(t, metrics.ScansCompleted)
}

type blockingNotifier struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (n *blockingNotifier) Publish(context.Context, events.Event) error {
	n.once.Do(func() { close(n.entered) })
	<-n.release
	return nil
}

func TestRunScanSkipsOverlap(t *testing.T) {
	notifier := &blockingNotifier{entered: make(chan struct{}), release: make(chan struct{})}
	m := New(Dependencies{
		Finder:   sla.NewFinder(&ticketStore{tickets: defaultTickets()}, nil),
		Notifier: notifier,
		Markers:  NewMemoryMarkerStore(),
		Metrics:  NewMemoryMetricsStore(),
		Clock:    func() time.Time { return scanNow },
	})

	done := make(chan error, 1)
	go func() {
		_, err := m.RunScan(context.Background())
		done <- err
	}()
	<-notifier.entered

	_, err := m.RunScan(context.Background())
	assert.ErrorIs(t, err, ErrScanInProgress)

	close(notifier.release)
	require.NoError(t, <-done)

	_, err = m.RunScan(context.Background())
	assert.NoError(t, err)
}

type fakeLocker struct {
	held     bool
	released int
}

func (l *fakeLocker) Acquire(context.Context) (func(context.Context), bool, error) {
	if l.held {
		return nil, false, nil
	}
	return func(context.Context) { l.released++ }, true, nil
}

func TestRunScanRespectsLocker(t *testing.T) {
	f := newFixture(defaultTickets())
	locker := &fakeLocker{held: true}
	f.monitor.deps.Locker = locker

	_, err := f.monitor.RunScan(context.Background())
	assert.ErrorIs(t, err, ErrScanInProgress)
	assert.Empty(t, f.notifier.types())

	locker.held = false
	_, err = f.monitor.RunScan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, locker.released)
}

type flakyMarkers struct {
	*MemoryMarkerStore
}

func (flakyMarkers) IsNotified(context.Context, string) (bool, error) {
	return false, errors.New("redis timeout")
}

func TestRunScanSkipsMarkerFailures(t *testing.T) {
	f := newFixture(defaultTickets())
	f.monitor.deps.Markers = flakyMarkers{f.markers}

	result, err := f.monitor.RunScan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.MarkerErrors)
	assert.Empty(t, f.notifier.types())
}

func TestMetricsAccumulateAcrossRestarts(t *testing.T) {
	f := newFixture(defaultTickets()[:1])
	ctx := context.Background()
	require.NoError(t, f.metrics.Save(ctx, domain.MonitoringMetrics{BreachesRecorded: 10, ScansCompleted: 4}))

	_, err := f.monitor.RunScan(ctx)
	require.NoError(t, err)

	metrics, err := f.monitor.Metrics(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 11, metrics.BreachesRecorded)
	assert.EqualValues(t, 5, metrics.ScansCompleted)

	require.NoError(t, f.monitor.ResetMetrics(ctx))
	metrics, err = f.monitor.Metrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.MonitoringMetrics{}, metrics)

	// Markers survive a reset.
	result, err := f.monitor.RunScan(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Breaches)
	assert.Equal(t, 2, result.AlreadySent)
}

type countingScanner struct {
	calls atomic.Int32
	err   error
}

func (s *countingScanner) RunScan(context.Context) (ScanResult, error) {
	s.calls.Add(1)
	return ScanResult{}, s.err
}

func TestSchedulerRunsUntilCancelled(t *testing.T) {
	scanner := &countingScanner{err: ErrScanInProgress}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewScheduler(scanner, 5*time.Millisecond, nil).Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return scanner.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestMarkerKey(t *testing.T) {
	f := sla.Finding{TicketID: "t-1", Kind: domain.DueKindResponse, DueAt: scanNow}
	assert.Equal(t, "sla_warning:t-1:response:1709726400", MarkerKey(events.EventSLAWarning, f))
	assert.NotEqual(t, MarkerKey(events.EventSLAWarning, f), MarkerKey(events.EventSLABreach, f))
}

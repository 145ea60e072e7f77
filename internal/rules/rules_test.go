package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-engine/internal/domain"
)

func strPtr(s string) *string { return &s }

func prio(p domain.TicketPriority) *domain.TicketPriority { return &p }

func TestResolveSLARuleSpecificity(t *testing.T) {
	all := []domain.SLARule{
		{ID: "global-all", Active: true},
		{ID: "global-urgent", Priority: prio(domain.TicketPriorityUrgent), Active: true},
		{ID: "acme-all", EntityID: strPtr("acme"), Active: true},
		{ID: "acme-urgent", EntityID: strPtr("acme"), Priority: prio(domain.TicketPriorityUrgent), Active: true},
		{ID: "acme-low-inactive", EntityID: strPtr("acme"), Priority: prio(domain.TicketPriorityLow), Active: false},
	}
	snap := NewSnapshot(1, time.Time{}, Data{SLARules: all})

	cases := []struct {
		entity   string
		priority domain.TicketPriority
		want     string
	}{
		{"acme", domain.TicketPriorityUrgent, "acme-urgent"},
		{"acme", domain.TicketPriorityHigh, "acme-all"},
		{"acme", domain.TicketPriorityLow, "acme-all"},
		{"other", domain.TicketPriorityUrgent, "global-urgent"},
		{"other", domain.TicketPriorityNormal, "global-all"},
		{"", domain.TicketPriorityUrgent, "global-urgent"},
	}
	for _, tc := range cases {
		for i := 0; i < 3; i++ {
			got := snap.ResolveSLARule(tc.entity, tc.priority)
			require.NotNil(t, got)
			assert.Equal(t, tc.want, got.ID, "entity=%s priority=%s", tc.entity, tc.priority)
		}
	}
}

func TestResolveSLARuleOrderIndependent(t *testing.T) {
	rules := []domain.SLARule{
		{ID: "global-all", Active: true},
		{ID: "global-urgent", Priority: prio(domain.TicketPriorityUrgent), Active: true},
		{ID: "acme-urgent", EntityID: strPtr("acme"), Priority: prio(domain.TicketPriorityUrgent), Active: true},
	}
	reversed := []domain.SLARule{rules[2], rules[1], rules[0]}
	for _, set := range [][]domain.SLARule{rules, reversed} {
		snap := NewSnapshot(1, time.Time{}, Data{SLARules: set})
		assert.Equal(t, "acme-urgent", snap.ResolveSLARule("acme", domain.TicketPriorityUrgent).ID)
	}
}

func TestResolveSLARuleNone(t *testing.T) {
	snap := NewSnapshot(1, time.Time{}, Data{SLARules: []domain.SLARule{
		{ID: "acme-urgent", EntityID: strPtr("acme"), Priority: prio(domain.TicketPriorityUrgent), Active: true},
	}})
	assert.Nil(t, snap.ResolveSLARule("acme", domain.TicketPriorityLow))
	assert.Nil(t, snap.ResolveSLARule("other", domain.TicketPriorityUrgent))
	var empty *Snapshot
	assert.Nil(t, empty.ResolveSLARule("acme", domain.TicketPriorityUrgent))
}

func TestResolveBusinessHoursFallback(t *testing.T) {
	snap := NewSnapshot(1, time.Time{}, Data{BusinessHours: []domain.BusinessHoursEntry{
		{ID: "g1", DayOfWeek: time.Monday, Active: true},
		{ID: "a1", EntityID: strPtr("acme"), DayOfWeek: time.Tuesday, Active: true},
		{ID: "a2", EntityID: strPtr("acme"), DayOfWeek: time.Wednesday, Active: true},
	}})
	ids := func(entries []domain.BusinessHoursEntry) []string {
		var out []string
		for _, e := range entries {
			out = append(out, e.ID)
		}
		return out
	}
	assert.Equal(t, []string{"a1", "a2"}, ids(snap.ResolveBusinessHours("acme")))
	assert.Equal(t, []string{"g1"}, ids(snap.ResolveBusinessHours("other")))
	assert.Empty(t, NewSnapshot(1, time.Time{}, Data{}).ResolveBusinessHours("acme"))
}

func TestMatchingWorkflowRules(t *testing.T) {
	snap := NewSnapshot(1, time.Time{}, Data{WorkflowRules: []domain.WorkflowRule{
		{ID: "any", FromStatus: "open", ToStatus: "resolved", Active: true},
		{ID: "urgent", FromStatus: "open", ToStatus: "resolved", Priority: prio(domain.TicketPriorityUrgent), Active: true},
		{ID: "billing", FromStatus: "open", ToStatus: "resolved", Category: strPtr("billing"), Active: true},
		{ID: "inactive", FromStatus: "open", ToStatus: "resolved", Active: false},
		{ID: "other-pair", FromStatus: "open", ToStatus: "closed", Active: true},
	}})
	ids := func(rules []domain.WorkflowRule) []string {
		var out []string
		for _, r := range rules {
			out = append(out, r.ID)
		}
		return out
	}

	assert.ElementsMatch(t, []string{"any"}, ids(snap.MatchingWorkflowRules("open", "resolved", domain.TicketPriorityNormal, nil)))
	assert.ElementsMatch(t, []string{"any", "urgent"}, ids(snap.MatchingWorkflowRules("open", "resolved", domain.TicketPriorityUrgent, nil)))
	assert.ElementsMatch(t, []string{"any", "urgent", "billing"}, ids(snap.MatchingWorkflowRules("open", "resolved", domain.TicketPriorityUrgent, strPtr("billing"))))
	assert.Len(t, snap.RulesForPair("open", "resolved"), 3)
	assert.Len(t, snap.WorkflowRulesFrom("open"), 4)
}

const samplePack = `
sla_rules:
  - id: global
    priority: all
    response_time_hours: 4
    resolution_time_hours: 24
  - id: acme-urgent
    entity_id: acme
    priority: urgent
    resolution_time_hours: 4
    business_hours_only: true
business_hours:
  - day_of_week: 1
    start: "09:00"
    end: "17:00"
  - entity_id: acme
    day_of_week: 2
    start: "08:30"
    end: "12:00"
    active: false
workflow_rules:
  - from_status: open
    to_status: resolved
    allowed_roles: [agent]
    requires_note: true
  - from_status: open
    to_status: resolved
    allowed_roles: [manager]
    priority: urgent
`

func TestParsePack(t *testing.T) {
	data, err := ParsePack([]byte(samplePack))
	require.NoError(t, err)

	require.Len(t, data.SLARules, 2)
	assert.Nil(t, data.SLARules[0].Priority)
	assert.Nil(t, data.SLARules[0].EntityID)
	assert.True(t, data.SLARules[0].Active)
	assert.Equal(t, 24.0, *data.SLARules[0].ResolutionTimeHours)
	assert.Equal(t, domain.TicketPriorityUrgent, *data.SLARules[1].Priority)
	assert.Equal(t, "acme", *data.SLARules[1].EntityID)
	assert.True(t, data.SLARules[1].BusinessHoursOnly)

	require.Len(t, data.BusinessHours, 2)
	assert.Equal(t, time.Monday, data.BusinessHours[0].DayOfWeek)
	assert.Equal(t, domain.NewTimeOfDay(9, 0), data.BusinessHours[0].Start)
	assert.NotEmpty(t, data.BusinessHours[0].ID)
	assert.Equal(t, domain.NewTimeOfDay(8, 30), data.BusinessHours[1].Start)
	assert.False(t, data.BusinessHours[1].Active)

	require.Len(t, data.WorkflowRules, 2)
	assert.True(t, data.WorkflowRules[0].AllowedRoles.Has("agent"))
	assert.True(t, data.WorkflowRules[0].RequiresNote)
	assert.Equal(t, domain.TicketPriorityUrgent, *data.WorkflowRules[1].Priority)
}

func TestParsePackRejectsMalformedInput(t *testing.T) {
	bad := []string{
		"business_hours:\n  - day_of_week: 1\n    start: \"9am\"\n    end: \"17:00\"\n",
		"business_hours:\n  - day_of_week: 9\n    start: \"09:00\"\n    end: \"17:00\"\n",
		"sla_rules:\n  - priority: critical\n",
		"workflow_rules:\n  - from_status: open\n",
		"sla_rules: [",
	}
	for _, raw := range bad {
		_, err := ParsePack([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestBundledRulePackLoads(t *testing.T) {
	data, err := NewFileSource("../../configs/rules.yaml").Load(context.Background())
	require.NoError(t, err)

	snap := NewSnapshot(1, time.Now(), data)
	rule := snap.ResolveSLARule("", domain.TicketPriorityLow)
	require.NotNil(t, rule)
	assert.Equal(t, "default-any", rule.ID)
	assert.Len(t, data.BusinessHours, 5)
	assert.NotEmpty(t, snap.MatchingWorkflowRules("open", "in_progress", domain.TicketPriorityNormal, nil))
}

func TestFileSourceMissingFile(t *testing.T) {
	_, err := NewFileSource("does-not-exist.yaml").Load(context.Background())
	assert.Error(t, err)
}

type flakySource struct {
	data Data
	err  error
}

func (f *flakySource) Load(context.Context) (Data, error) {
	return f.data, f.err
}

func TestStoreReloadKeepsPreviousSnapshotOnFailure(t *testing.T) {
	src := &flakySource{data: Data{SLARules: []domain.SLARule{{ID: "r1", Active: true}}}}
	store := NewStore(src, nil)
	assert.Equal(t, int64(0), store.Current().Version)

	require.NoError(t, store.Reload(context.Background()))
	first := store.Current()
	assert.Equal(t, int64(1), first.Version)
	assert.Len(t, first.SLARules, 1)

	src.err = errors.New("db unavailable")
	require.Error(t, store.Reload(context.Background()))
	assert.Same(t, first, store.Current())

	src.err = nil
	src.data = Data{}
	require.NoError(t, store.Reload(context.Background()))
	assert.Equal(t, int64(2), store.Current().Version)
	assert.Empty(t, store.Current().SLARules)
	// Earlier snapshot is untouched by the swap.
	assert.Len(t, first.SLARules, 1)
}

package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/rules"
)

func priorityPtr(p domain.TicketPriority) *domain.TicketPriority { return &p }

func strPtr(s string) *string { return &s }

func snapshotOf(workflow ...domain.WorkflowRule) *rules.Snapshot {
	for i := range workflow {
		workflow[i].Active = true
	}
	return rules.NewSnapshot(1, time.Now(), rules.Data{WorkflowRules: workflow})
}

func resolveRules() *rules.Snapshot {
	return snapshotOf(
		domain.WorkflowRule{ID: "agent", FromStatus: "open", ToStatus: "resolved", AllowedRoles: domain.NewRoleSet("agent")},
		domain.WorkflowRule{ID: "manager", FromStatus: "open", ToStatus: "resolved", AllowedRoles: domain.NewRoleSet("manager"), Priority: priorityPtr(domain.TicketPriorityUrgent)},
	)
}

func TestIsTransitionAllowedPriorityFilter(t *testing.T) {
	v := NewValidator(resolveRules(), nil)
	normal := domain.TicketContext{Priority: domain.TicketPriorityNormal}

	manager := v.IsTransitionAllowed("open", "resolved", domain.NewRoleSet("manager"), normal)
	assert.False(t, manager.Allowed)
	assert.Equal(t, ReasonRoleNotAuthorized, manager.Reason)

	agent := v.IsTransitionAllowed("open", "resolved", domain.NewRoleSet("agent"), normal)
	assert.True(t, agent.Allowed)
	assert.Empty(t, agent.Reason)

	urgent := v.IsTransitionAllowed("open", "resolved", domain.NewRoleSet("manager"), domain.TicketContext{Priority: domain.TicketPriorityUrgent})
	assert.True(t, urgent.Allowed)
}

func TestIsTransitionAllowedNoRule(t *testing.T) {
	v := NewValidator(resolveRules(), nil)

	decision := v.IsTransitionAllowed("resolved", "open", domain.NewRoleSet("agent", "manager"), domain.TicketContext{Priority: domain.TicketPriorityNormal})
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonNoRule, decision.Reason)

	var empty *rules.Snapshot
	assert.Equal(t, ReasonNoRule, NewValidator(empty, nil).IsTransitionAllowed("open", "resolved", domain.NewRoleSet("agent"), domain.TicketContext{}).Reason)
}

func TestIsTransitionAllowedMonotonicInRoles(t *testing.T) {
	v := NewValidator(resolveRules(), nil)
	ctxs := []domain.TicketContext{
		{Priority: domain.TicketPriorityLow},
		{Priority: domain.TicketPriorityNormal},
		{Priority: domain.TicketPriorityUrgent},
	}
	roleSets := []domain.RoleSet{
		domain.NewRoleSet(),
		domain.NewRoleSet("viewer"),
		domain.NewRoleSet("agent"),
		domain.NewRoleSet("manager"),
	}

	for _, tctx := range ctxs {
		for _, roles := range roleSets {
			base := v.IsTransitionAllowed("open", "resolved", roles, tctx).Allowed
			superset := domain.NewRoleSet(append(roles.Slice(), "agent", "admin")...)
			if base {
				assert.True(t, v.IsTransitionAllowed("open", "resolved", superset, tctx).Allowed, "roles %v priority %s", superset.Slice(), tctx.Priority)
			}
		}
	}
}

func TestIsTransitionAllowedCategoryFilter(t *testing.T) {
	v := NewValidator(snapshotOf(
		domain.WorkflowRule{FromStatus: "open", ToStatus: "closed", AllowedRoles: domain.NewRoleSet("billing"), Category: strPtr("billing")},
	), nil)
	roles := domain.NewRoleSet("billing")

	assert.True(t, v.IsTransitionAllowed("open", "closed", roles, domain.TicketContext{Priority: domain.TicketPriorityLow, Category: strPtr("billing")}).Allowed)
	assert.Equal(t, ReasonNoRule, v.IsTransitionAllowed("open", "closed", roles, domain.TicketContext{Priority: domain.TicketPriorityLow, Category: strPtr("tech")}).Reason)
	assert.Equal(t, ReasonNoRule, v.IsTransitionAllowed("open", "closed", roles, domain.TicketContext{Priority: domain.TicketPriorityLow}).Reason)
}

func TestDecisionFlags(t *testing.T) {
	v := NewValidator(snapshotOf(
		domain.WorkflowRule{FromStatus: "open", ToStatus: "in_progress", AllowedRoles: domain.NewRoleSet("agent")},
		domain.WorkflowRule{FromStatus: "open", ToStatus: "in_progress", AllowedRoles: domain.NewRoleSet("agent"), AutoAssign: true},
		domain.WorkflowRule{FromStatus: "open", ToStatus: "in_progress", AllowedRoles: domain.NewRoleSet("lead"), RequiresNote: true},
		domain.WorkflowRule{FromStatus: "open", ToStatus: "pending", AllowedRoles: domain.NewRoleSet("agent")},
	), nil)
	normal := domain.TicketContext{Priority: domain.TicketPriorityNormal}

	agent := v.IsTransitionAllowed("open", "in_progress", domain.NewRoleSet("agent"), normal)
	assert.True(t, agent.Allowed)
	assert.True(t, agent.AutoAssign)
	// The lead rule asks for a note on the pair, so every permitted actor needs one.
	assert.True(t, agent.RequiresNote)

	lead := v.IsTransitionAllowed("open", "in_progress", domain.NewRoleSet("lead"), normal)
	assert.True(t, lead.RequiresNote)
	assert.False(t, lead.AutoAssign)

	pending := v.IsTransitionAllowed("open", "pending", domain.NewRoleSet("agent"), normal)
	assert.True(t, pending.Allowed)
	assert.False(t, pending.RequiresNote)

	denied := v.IsTransitionAllowed("open", "in_progress", domain.NewRoleSet("guest"), normal)
	assert.False(t, denied.Allowed)
	assert.False(t, denied.RequiresNote)
}

func TestDecisionNoteMatchesRequiresNoteAcrossFilters(t *testing.T) {
	v := NewValidator(snapshotOf(
		domain.WorkflowRule{FromStatus: "open", ToStatus: "resolved", AllowedRoles: domain.NewRoleSet("agent")},
		domain.WorkflowRule{FromStatus: "open", ToStatus: "resolved", AllowedRoles: domain.NewRoleSet("manager"), Priority: priorityPtr(domain.TicketPriorityUrgent), RequiresNote: true},
	), nil)

	require.True(t, v.RequiresNote("open", "resolved"))
	decision := v.IsTransitionAllowed("open", "resolved", domain.NewRoleSet("agent"), domain.TicketContext{Priority: domain.TicketPriorityNormal})
	assert.True(t, decision.Allowed)
	assert.True(t, decision.RequiresNote)
}

func TestRequiresNoteIgnoresFilters(t *testing.T) {
	v := NewValidator(snapshotOf(
		domain.WorkflowRule{FromStatus: "open", ToStatus: "resolved", AllowedRoles: domain.NewRoleSet("agent")},
		domain.WorkflowRule{FromStatus: "open", ToStatus: "resolved", AllowedRoles: domain.NewRoleSet("agent"), Priority: priorityPtr(domain.TicketPriorityUrgent), RequiresNote: true},
		domain.WorkflowRule{FromStatus: "open", ToStatus: "closed", AllowedRoles: domain.NewRoleSet("agent")},
	), nil)

	assert.True(t, v.RequiresNote("open", "resolved"))
	assert.False(t, v.RequiresNote("open", "closed"))
	assert.False(t, v.RequiresNote("closed", "open"))
}

func TestGetAllowedTransitions(t *testing.T) {
	v := NewValidator(snapshotOf(
		domain.WorkflowRule{FromStatus: "open", ToStatus: "resolved", AllowedRoles: domain.NewRoleSet("agent")},
		domain.WorkflowRule{FromStatus: "open", ToStatus: "in_progress", AllowedRoles: domain.NewRoleSet("agent", "viewer")},
		domain.WorkflowRule{FromStatus: "open", ToStatus: "closed", AllowedRoles: domain.NewRoleSet("manager")},
		domain.WorkflowRule{FromStatus: "open", ToStatus: "closed", AllowedRoles: domain.NewRoleSet("agent"), Priority: priorityPtr(domain.TicketPriorityLow)},
		domain.WorkflowRule{FromStatus: "resolved", ToStatus: "open", AllowedRoles: domain.NewRoleSet("agent")},
	), nil)
	normal := domain.TicketContext{Priority: domain.TicketPriorityNormal}

	assert.Equal(t, []string{"in_progress", "resolved"}, v.GetAllowedTransitions("open", domain.NewRoleSet("agent"), normal))
	assert.Equal(t, []string{"closed", "in_progress", "resolved"}, v.GetAllowedTransitions("open", domain.NewRoleSet("agent"), domain.TicketContext{Priority: domain.TicketPriorityLow}))
	assert.Equal(t, []string{"in_progress"}, v.GetAllowedTransitions("open", domain.NewRoleSet("viewer"), normal))
	assert.Empty(t, v.GetAllowedTransitions("closed", domain.NewRoleSet("agent"), normal))

	for _, to := range v.GetAllowedTransitions("open", domain.NewRoleSet("agent", "manager"), normal) {
		assert.True(t, v.IsTransitionAllowed("open", to, domain.NewRoleSet("agent", "manager"), normal).Allowed, to)
	}
}

func TestIsTerminal(t *testing.T) {
	v := NewValidator(snapshotOf(
		domain.WorkflowRule{FromStatus: "open", ToStatus: "closed", AllowedRoles: domain.NewRoleSet("agent")},
	), nil)

	assert.False(t, v.IsTerminal("open"))
	assert.True(t, v.IsTerminal("closed"))
}

type failingRoles struct{}

func (failingRoles) ActorRoles(context.Context, string) (domain.RoleSet, error) {
	return nil, errors.New("directory unavailable")
}

func TestCheckActor(t *testing.T) {
	provider := StaticRoleProvider{
		"alice": domain.NewRoleSet("agent"),
		"bob":   domain.NewRoleSet("manager"),
	}
	v := NewValidator(resolveRules(), provider)
	normal := domain.TicketContext{Priority: domain.TicketPriorityNormal}

	decision, err := v.CheckActor(context.Background(), "alice", "open", "resolved", normal)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	decision, err = v.CheckActor(context.Background(), "bob", "open", "resolved", normal)
	require.NoError(t, err)
	assert.Equal(t, ReasonRoleNotAuthorized, decision.Reason)

	decision, err = v.CheckActor(context.Background(), "mallory", "open", "resolved", normal)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	_, err = NewValidator(resolveRules(), failingRoles{}).CheckActor(context.Background(), "alice", "open", "resolved", normal)
	assert.ErrorContains(t, err, "directory unavailable")

	_, err = NewValidator(resolveRules(), nil).CheckActor(context.Background(), "alice", "open", "resolved", normal)
	assert.Error(t, err)
}

// Package workflow decides which ticket status transitions an actor may make.
//
// Statuses are plain tags owned by the workflow rules; the package knows no
// fixed initial or terminal state.
package workflow

import (
	"context"
	"fmt"
	"sort"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// DenialReason explains a refused transition.
type DenialReason string

const (
	ReasonNoRule            DenialReason = "no rule permits this transition"
	ReasonRoleNotAuthorized DenialReason = "actor's role is not authorized for this transition"
)

// Decision is the outcome of a transition check. Denials are values, not
// errors.
type Decision struct {
	Allowed      bool
	Reason       DenialReason
	RequiresNote bool
	AutoAssign   bool
}

// RuleSet is the read side of the rule store the validator needs.
type RuleSet interface {
	MatchingWorkflowRules(fromStatus, toStatus string, priority domain.TicketPriority, category *string) []domain.WorkflowRule
	RulesForPair(fromStatus, toStatus string) []domain.WorkflowRule
	WorkflowRulesFrom(fromStatus string) []domain.WorkflowRule
}

// RoleProvider resolves an actor's role tags.
type RoleProvider interface {
	ActorRoles(ctx context.Context, actorID string) (domain.RoleSet, error)
}

// Validator evaluates transitions against one rule snapshot.
type Validator struct {
	rules RuleSet
	roles RoleProvider
}

// NewValidator binds a validator to a rule snapshot and a role provider. The
// provider may be nil when callers pass role sets directly.
func NewValidator(rules RuleSet, roles RoleProvider) *Validator {
	return &Validator{rules: rules, roles: roles}
}

// IsTransitionAllowed allows the move if any matching rule grants one of the
// actor's roles. No rule can veto another. An allowed decision needs a note
// whenever any active rule for the pair asks for one, matching RequiresNote;
// AutoAssign comes from the permitting rules only.
func (v *Validator) IsTransitionAllowed(fromStatus, toStatus string, actorRoles domain.RoleSet, tctx domain.TicketContext) Decision {
	matching := v.rules.MatchingWorkflowRules(fromStatus, toStatus, tctx.Priority, tctx.Category)
	if len(matching) == 0 {
		return Decision{Reason: ReasonNoRule}
	}

	decision := Decision{Reason: ReasonRoleNotAuthorized}
	for _, rule := range matching {
		if !rule.AllowedRoles.Intersects(actorRoles) {
			continue
		}
		decision.Allowed = true
		decision.Reason = ""
		decision.AutoAssign = decision.AutoAssign || rule.AutoAssign
	}
	if decision.Allowed {
		decision.RequiresNote = v.RequiresNote(fromStatus, toStatus)
	}
	return decision
}

// RequiresNote reports whether any active rule for the pair asks for a note,
// regardless of its priority and category filters.
func (v *Validator) RequiresNote(fromStatus, toStatus string) bool {
	for _, rule := range v.rules.RulesForPair(fromStatus, toStatus) {
		if rule.RequiresNote {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the sorted target statuses the actor may move
// the ticket to.
func (v *Validator) GetAllowedTransitions(fromStatus string, actorRoles domain.RoleSet, tctx domain.TicketContext) []string {
	seen := map[string]struct{}{}
	allowed := []string{}
	for _, rule := range v.rules.WorkflowRulesFrom(fromStatus) {
		if _, done := seen[rule.ToStatus]; done {
			continue
		}
		seen[rule.ToStatus] = struct{}{}
		if v.IsTransitionAllowed(fromStatus, rule.ToStatus, actorRoles, tctx).Allowed {
			allowed = append(allowed, rule.ToStatus)
		}
	}
	sort.Strings(allowed)
	return allowed
}

// IsTerminal reports whether no active rule leaves the status.
func (v *Validator) IsTerminal(status string) bool {
	return len(v.rules.WorkflowRulesFrom(status)) == 0
}

// ActorRoles resolves an actor through the role provider.
func (v *Validator) ActorRoles(ctx context.Context, actorID string) (domain.RoleSet, error) {
	if v.roles == nil {
		return nil, fmt.Errorf("no role provider configured")
	}
	roles, err := v.roles.ActorRoles(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("resolve roles for %s: %w", actorID, err)
	}
	return roles, nil
}

// CheckActor resolves the actor's roles once and evaluates the transition.
// The error only reports a role provider failure.
func (v *Validator) CheckActor(ctx context.Context, actorID, fromStatus, toStatus string, tctx domain.TicketContext) (Decision, error) {
	roles, err := v.ActorRoles(ctx, actorID)
	if err != nil {
		return Decision{}, err
	}
	return v.IsTransitionAllowed(fromStatus, toStatus, roles, tctx), nil
}

// StaticRoleProvider serves roles from a fixed map.
type StaticRoleProvider map[string]domain.RoleSet

// ActorRoles returns an empty set for unknown actors.
func (p StaticRoleProvider) ActorRoles(_ context.Context, actorID string) (domain.RoleSet, error) {
	if roles, ok := p[actorID]; ok {
		return roles, nil
	}
	return domain.RoleSet{}, nil
}

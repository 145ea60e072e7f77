package domain

import "sort"

// RoleSet is a set of actor role tags.
type RoleSet map[string]struct{}

// NewRoleSet builds a set from tags.
func NewRoleSet(roles ...string) RoleSet {
	set := make(RoleSet, len(roles))
	for _, role := range roles {
		if role == "" {
			continue
		}
		set[role] = struct{}{}
	}
	return set
}

// Has reports membership.
func (s RoleSet) Has(role string) bool {
	_, ok := s[role]
	return ok
}

// Intersects reports whether the sets share at least one role.
func (s RoleSet) Intersects(other RoleSet) bool {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	for role := range small {
		if large.Has(role) {
			return true
		}
	}
	return false
}

// Slice returns the roles sorted.
func (s RoleSet) Slice() []string {
	out := make([]string, 0, len(s))
	for role := range s {
		out = append(out, role)
	}
	sort.Strings(out)
	return out
}

// TicketContext holds the ticket attributes workflow rules filter on.
type TicketContext struct {
	Priority TicketPriority
	Category *string
}

// WorkflowRule permits actors holding any of AllowedRoles to move a ticket
// from FromStatus to ToStatus. Nil filters match every ticket.
type WorkflowRule struct {
	ID           string
	FromStatus   string
	ToStatus     string
	AllowedRoles RoleSet
	Priority     *TicketPriority
	Category     *string
	RequiresNote bool
	AutoAssign   bool
	Active       bool
}

// Matches reports whether the rule's optional filters accept the context.
func (r *WorkflowRule) Matches(ctx TicketContext) bool {
	if r.Priority != nil && *r.Priority != ctx.Priority {
		return false
	}
	if r.Category != nil && (ctx.Category == nil || *r.Category != *ctx.Category) {
		return false
	}
	return true
}

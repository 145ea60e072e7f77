package rules

import (
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// Snapshot is an immutable view of every rule family. Callers capture one
// snapshot at the start of a calculation or scan and read only from it.
type Snapshot struct {
	Version       int64
	LoadedAt      time.Time
	SLARules      []domain.SLARule
	BusinessHours []domain.BusinessHoursEntry
	WorkflowRules []domain.WorkflowRule
}

// Data is the raw rule content produced by a Source.
type Data struct {
	SLARules      []domain.SLARule
	BusinessHours []domain.BusinessHoursEntry
	WorkflowRules []domain.WorkflowRule
}

// NewSnapshot copies data into a snapshot.
func NewSnapshot(version int64, loadedAt time.Time, data Data) *Snapshot {
	return &Snapshot{
		Version:       version,
		LoadedAt:      loadedAt,
		SLARules:      append([]domain.SLARule(nil), data.SLARules...),
		BusinessHours: append([]domain.BusinessHoursEntry(nil), data.BusinessHours...),
		WorkflowRules: append([]domain.WorkflowRule(nil), data.WorkflowRules...),
	}
}

// ResolveSLARule returns the most specific active rule for the pair, or nil
// when no SLA is configured. Specificity: entity+priority, entity+wildcard,
// global+priority, global+wildcard.
func (s *Snapshot) ResolveSLARule(entityID string, priority domain.TicketPriority) *domain.SLARule {
	if s == nil {
		return nil
	}
	type tier struct {
		global   bool
		wildcard bool
	}
	tiers := []tier{{false, false}, {false, true}, {true, false}, {true, true}}
	for _, t := range tiers {
		if !t.global && entityID == "" {
			continue
		}
		for i := range s.SLARules {
			rule := &s.SLARules[i]
			if !rule.Active {
				continue
			}
			if t.global != rule.IsGlobal() {
				continue
			}
			if !t.global && *rule.EntityID != entityID {
				continue
			}
			if t.wildcard != rule.MatchesAnyPriority() {
				continue
			}
			if !t.wildcard && *rule.Priority != priority {
				continue
			}
			found := *rule
			return &found
		}
	}
	return nil
}

// ResolveBusinessHours returns the entity's entries, falling back to the global
// calendar. An empty result means the entity is always open.
func (s *Snapshot) ResolveBusinessHours(entityID string) []domain.BusinessHoursEntry {
	if s == nil {
		return nil
	}
	var entity, global []domain.BusinessHoursEntry
	for _, entry := range s.BusinessHours {
		switch {
		case entry.EntityID == nil:
			global = append(global, entry)
		case entityID != "" && *entry.EntityID == entityID:
			entity = append(entity, entry)
		}
	}
	if len(entity) > 0 {
		return entity
	}
	return global
}

// MatchingWorkflowRules returns every active rule for the exact status pair
// whose priority and category filters accept the ticket. Order is not
// meaningful.
func (s *Snapshot) MatchingWorkflowRules(fromStatus, toStatus string, priority domain.TicketPriority, category *string) []domain.WorkflowRule {
	ctx := domain.TicketContext{Priority: priority, Category: category}
	var out []domain.WorkflowRule
	for _, rule := range s.RulesForPair(fromStatus, toStatus) {
		if rule.Matches(ctx) {
			out = append(out, rule)
		}
	}
	return out
}

// RulesForPair returns active rules for the status pair ignoring filters.
func (s *Snapshot) RulesForPair(fromStatus, toStatus string) []domain.WorkflowRule {
	if s == nil {
		return nil
	}
	var out []domain.WorkflowRule
	for _, rule := range s.WorkflowRules {
		if rule.Active && rule.FromStatus == fromStatus && rule.ToStatus == toStatus {
			out = append(out, rule)
		}
	}
	return out
}

// WorkflowRulesFrom returns active rules leaving the status.
func (s *Snapshot) WorkflowRulesFrom(fromStatus string) []domain.WorkflowRule {
	if s == nil {
		return nil
	}
	var out []domain.WorkflowRule
	for _, rule := range s.WorkflowRules {
		if rule.Active && rule.FromStatus == fromStatus {
			out = append(out, rule)
		}
	}
	return out
}

package rules

import (
	"context"
	"fmt"

	"github.com/spec-kit/sla-engine/internal/repository"
)

// PostgresSource reads all three rule families from the rule tables.
type PostgresSource struct {
	SLARules      repository.SLARuleRepository
	BusinessHours repository.BusinessHoursRepository
	WorkflowRules repository.WorkflowRuleRepository
}

// Load queries each family in turn.
func (s *PostgresSource) Load(ctx context.Context) (Data, error) {
	slaRules, err := s.SLARules.ListAll(ctx)
	if err != nil {
		return Data{}, fmt.Errorf("list sla rules: %w", err)
	}
	hours, err := s.BusinessHours.ListAll(ctx)
	if err != nil {
		return Data{}, fmt.Errorf("list business hours: %w", err)
	}
	workflow, err := s.WorkflowRules.ListAll(ctx)
	if err != nil {
		return Data{}, fmt.Errorf("list workflow rules: %w", err)
	}
	return Data{SLARules: slaRules, BusinessHours: hours, WorkflowRules: workflow}, nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// WorkflowRuleRepository reads status transition rules.
type WorkflowRuleRepository interface {
	ListAll(ctx context.Context) ([]domain.WorkflowRule, error)
}

type workflowRuleRepository struct {
	pool *pgxpool.Pool
}

// NewWorkflowRuleRepository builds the repository.
func NewWorkflowRuleRepository(pool *pgxpool.Pool) WorkflowRuleRepository {
	return &workflowRuleRepository{pool: pool}
}

func (r *workflowRuleRepository) ListAll(ctx context.Context) ([]domain.WorkflowRule, error) {
	const query = `
        SELECT id, from_status, to_status, allowed_roles, priority, category,
               requires_note, auto_assign, is_active
        FROM workflow_rules ORDER BY id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.WorkflowRule
	for rows.Next() {
		var rule domain.WorkflowRule
		var roles []string
		var priority *string
		if err := rows.Scan(
			&rule.ID,
			&rule.FromStatus,
			&rule.ToStatus,
			&roles,
			&priority,
			&rule.Category,
			&rule.RequiresNote,
			&rule.AutoAssign,
			&rule.Active,
		); err != nil {
			return nil, err
		}
		rule.AllowedRoles = domain.NewRoleSet(roles...)
		if priority != nil {
			rule.Priority, err = domain.ParsePriorityFilter(*priority)
			if err != nil {
				return nil, fmt.Errorf("workflow rule %s: %w", rule.ID, err)
			}
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}

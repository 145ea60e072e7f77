package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// SLARuleRepository reads SLA rules maintained by rule administration.
type SLARuleRepository interface {
	ListAll(ctx context.Context) ([]domain.SLARule, error)
}

type slaRuleRepository struct {
	pool *pgxpool.Pool
}

// NewSLARuleRepository builds the repository.
func NewSLARuleRepository(pool *pgxpool.Pool) SLARuleRepository {
	return &slaRuleRepository{pool: pool}
}

func (r *slaRuleRepository) ListAll(ctx context.Context) ([]domain.SLARule, error) {
	const query = `
        SELECT id, name, entity_id, priority, response_time_hours, resolution_time_hours,
               escalation_time_hours, business_hours_only, is_active
        FROM sla_rules ORDER BY id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLARule
	for rows.Next() {
		var rule domain.SLARule
		var priority string
		if err := rows.Scan(
			&rule.ID,
			&rule.Name,
			&rule.EntityID,
			&priority,
			&rule.ResponseTimeHours,
			&rule.ResolutionTimeHours,
			&rule.EscalationTimeHours,
			&rule.BusinessHoursOnly,
			&rule.Active,
		); err != nil {
			return nil, err
		}
		rule.Priority, err = domain.ParsePriorityFilter(priority)
		if err != nil {
			return nil, fmt.Errorf("sla rule %s: %w", rule.ID, err)
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}

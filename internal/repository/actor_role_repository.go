package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// ActorRoleRepository resolves the role tags granted to an actor.
type ActorRoleRepository interface {
	ActorRoles(ctx context.Context, actorID string) (domain.RoleSet, error)
}

type actorRoleRepository struct {
	pool *pgxpool.Pool
}

// NewActorRoleRepository builds the repository.
func NewActorRoleRepository(pool *pgxpool.Pool) ActorRoleRepository {
	return &actorRoleRepository{pool: pool}
}

// ActorRoles returns an empty set for unknown actors.
func (r *actorRoleRepository) ActorRoles(ctx context.Context, actorID string) (domain.RoleSet, error) {
	const query = `SELECT role FROM actor_roles WHERE actor_id=$1`
	rows, err := r.pool.Query(ctx, query, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := domain.RoleSet{}
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles[role] = struct{}{}
	}
	return roles, rows.Err()
}

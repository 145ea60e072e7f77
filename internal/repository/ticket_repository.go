package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// TicketRepository encapsulates the ticket columns the engine reads and writes.
type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListActiveTickets(ctx context.Context, filter domain.ActiveTicketFilter) ([]domain.Ticket, error)
	UpdateDueDates(ctx context.Context, id string, due domain.DueDates) error
	UpdateStatus(ctx context.Context, ticket *domain.Ticket) error
	UpdatePriority(ctx context.Context, id string, priority domain.TicketPriority) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, external_key, entity_id, status, priority, category, assignee_id, title,
               created_at, updated_at, first_response_at, resolved_at,
               response_due, resolution_due, escalation_due`

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) ListActiveTickets(ctx context.Context, filter domain.ActiveTicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"resolved_at IS NULL"}
	args := []any{}

	if filter.EntityID != nil {
		args = append(args, *filter.EntityID)
		clauses = append(clauses, fmt.Sprintf("entity_id=$%d", len(args)))
	}
	if len(filter.InactiveStatuses) > 0 {
		args = append(args, filter.InactiveStatuses)
		clauses = append(clauses, fmt.Sprintf("NOT (status = ANY($%d))", len(args)))
	}
	if filter.WithDueDate {
		clauses = append(clauses, "(response_due IS NOT NULL OR resolution_due IS NOT NULL OR escalation_due IS NOT NULL)")
	}
	if filter.Unmet {
		clauses = append(clauses, "(first_response_at IS NULL OR resolved_at IS NULL)")
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at ASC`,
		ticketColumns, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) UpdateDueDates(ctx context.Context, id string, due domain.DueDates) error {
	const query = `
        UPDATE tickets SET response_due=$1, resolution_due=$2, escalation_due=$3, updated_at=NOW()
        WHERE id=$4`
	cmd, err := r.pool.Exec(ctx, query, due.ResponseDue, due.ResolutionDue, due.EscalationDue, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET status=$1, assignee_id=$2, resolved_at=$3, first_response_at=$4, updated_at=NOW()
        WHERE id=$5
        RETURNING updated_at`
	var updatedAt time.Time
	err := r.pool.QueryRow(ctx, query,
		ticket.Status,
		ticket.AssigneeID,
		ticket.ResolvedAt,
		ticket.FirstResponseAt,
		ticket.ID,
	).Scan(&updatedAt)
	if err != nil {
		return err
	}
	ticket.UpdatedAt = updatedAt
	return nil
}

func (r *ticketRepository) UpdatePriority(ctx context.Context, id string, priority domain.TicketPriority) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE tickets SET priority=$1, updated_at=NOW() WHERE id=$2`, priority, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	var entityID *string
	if err := row.Scan(
		&ticket.ID,
		&ticket.ExternalKey,
		&entityID,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Category,
		&ticket.AssigneeID,
		&ticket.Title,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.FirstResponseAt,
		&ticket.ResolvedAt,
		&ticket.ResponseDue,
		&ticket.ResolutionDue,
		&ticket.EscalationDue,
	); err != nil {
		return nil, err
	}
	if entityID != nil {
		ticket.EntityID = *entityID
	}
	return &ticket, nil
}

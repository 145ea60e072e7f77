package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// BusinessHoursRepository reads weekly calendar entries.
type BusinessHoursRepository interface {
	ListAll(ctx context.Context) ([]domain.BusinessHoursEntry, error)
}

type businessHoursRepository struct {
	pool *pgxpool.Pool
}

// NewBusinessHoursRepository builds the repository.
func NewBusinessHoursRepository(pool *pgxpool.Pool) BusinessHoursRepository {
	return &businessHoursRepository{pool: pool}
}

func (r *businessHoursRepository) ListAll(ctx context.Context) ([]domain.BusinessHoursEntry, error) {
	const query = `
        SELECT id, entity_id, day_of_week, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'), is_active
        FROM business_hours ORDER BY day_of_week, start_time`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.BusinessHoursEntry
	for rows.Next() {
		var entry domain.BusinessHoursEntry
		var day int
		var start, end string
		if err := rows.Scan(&entry.ID, &entry.EntityID, &day, &start, &end, &entry.Active); err != nil {
			return nil, err
		}
		entry.DayOfWeek = time.Weekday(day)
		// A malformed stored value leaves the entry closed for that day.
		startTOD, startErr := domain.ParseTimeOfDay(start)
		endTOD, endErr := domain.ParseTimeOfDay(end)
		if startErr != nil || endErr != nil {
			entry.Active = false
		}
		entry.Start, entry.End = startTOD, endTOD
		result = append(result, entry)
	}
	return result, rows.Err()
}

package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// MonitoringMetricsRepository persists the monitor's cumulative counters in a
// single-row table.
type MonitoringMetricsRepository interface {
	Load(ctx context.Context) (domain.MonitoringMetrics, error)
	Save(ctx context.Context, metrics domain.MonitoringMetrics) error
	Reset(ctx context.Context) error
}

type monitoringMetricsRepository struct {
	pool *pgxpool.Pool
}

// NewMonitoringMetricsRepository builds the repository.
func NewMonitoringMetricsRepository(pool *pgxpool.Pool) MonitoringMetricsRepository {
	return &monitoringMetricsRepository{pool: pool}
}

func (r *monitoringMetricsRepository) Load(ctx context.Context) (domain.MonitoringMetrics, error) {
	const query = `
        SELECT last_check, warnings_sent, breaches_recorded, escalations_triggered, scans_completed
        FROM sla_monitoring_metrics WHERE id=1`
	var m domain.MonitoringMetrics
	err := r.pool.QueryRow(ctx, query).Scan(
		&m.LastCheck,
		&m.WarningsSent,
		&m.BreachesRecorded,
		&m.EscalationsTriggered,
		&m.ScansCompleted,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MonitoringMetrics{}, nil
	}
	return m, err
}

func (r *monitoringMetricsRepository) Save(ctx context.Context, m domain.MonitoringMetrics) error {
	const query = `
        INSERT INTO sla_monitoring_metrics (id, last_check, warnings_sent, breaches_recorded, escalations_triggered, scans_completed)
        VALUES (1,$1,$2,$3,$4,$5)
        ON CONFLICT (id) DO UPDATE SET last_check=EXCLUDED.last_check, warnings_sent=EXCLUDED.warnings_sent,
            breaches_recorded=EXCLUDED.breaches_recorded, escalations_triggered=EXCLUDED.escalations_triggered,
            scans_completed=EXCLUDED.scans_completed`
	_, err := r.pool.Exec(ctx, query, m.LastCheck, m.WarningsSent, m.BreachesRecorded, m.EscalationsTriggered, m.ScansCompleted)
	return err
}

func (r *monitoringMetricsRepository) Reset(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sla_monitoring_metrics WHERE id=1`)
	return err
}

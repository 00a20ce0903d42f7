package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"stock-alert-service/internal/models"
)

// AlertLedger is the Postgres ledger of alert events.
type AlertLedger struct {
	db *DB
}

func NewAlertLedger(d *DB) *AlertLedger {
	return &AlertLedger{db: d}
}

const alertColumns = `id, product_id, type, stock_at_trigger, threshold_at_trigger, threshold_key,
	frequency, created_at, status, updated_at, dispatched_at`

func scanAlert(row pgx.Row) (models.AlertEvent, error) {
	var e models.AlertEvent
	err := row.Scan(
		&e.ID,
		&e.ProductID,
		&e.Type,
		&e.StockAtTrigger,
		&e.ThresholdAtTrigger,
		&e.ThresholdKey,
		&e.Frequency,
		&e.Timestamp,
		&e.Status,
		&e.UpdatedAt,
		&e.DispatchedAt,
	)
	return e, err
}

func collectAlerts(rows pgx.Rows) ([]models.AlertEvent, error) {
	defer rows.Close()
	list := make([]models.AlertEvent, 0)
	for rows.Next() {
		e, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert event: %w", err)
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read alert events: %w", err)
	}
	return list, nil
}

func (l *AlertLedger) Append(ctx context.Context, e models.AlertEvent) error {
	if e.ID == uuid.Nil {
		return fmt.Errorf("%w: alert event without id", models.ErrInvalidArgument)
	}
	if e.Status == "" {
		e.Status = models.AlertPending
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = e.Timestamp
	}

	query := `
	INSERT INTO alert_events (` + alertColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := l.db.Pool.Exec(ctx, query,
		e.ID,
		e.ProductID,
		e.Type,
		e.StockAtTrigger,
		e.ThresholdAtTrigger,
		e.ThresholdKey,
		e.Frequency,
		e.Timestamp,
		e.Status,
		e.UpdatedAt,
		e.DispatchedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: alert event %s already recorded", models.ErrInvalidArgument, e.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert alert event: %w", err)
	}
	return nil
}

func (l *AlertLedger) Get(ctx context.Context, id uuid.UUID) (models.AlertEvent, error) {
	query := `SELECT ` + alertColumns + ` FROM alert_events WHERE id = $1`
	e, err := scanAlert(l.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.AlertEvent{}, fmt.Errorf("alert event %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.AlertEvent{}, fmt.Errorf("failed to get alert event %s: %w", id, err)
	}
	return e, nil
}

func (l *AlertLedger) List(ctx context.Context, f models.AlertFilter) ([]models.AlertEvent, error) {
	var (
		conds []string
		args  []interface{}
	)
	if f.ProductID != "" {
		args = append(args, f.ProductID)
		conds = append(conds, fmt.Sprintf("product_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}

	query := `SELECT ` + alertColumns + ` FROM alert_events`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY seq"

	rows, err := l.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alert events: %w", err)
	}
	return collectAlerts(rows)
}

// UpdateStatus only touches pending rows, so two concurrent transitions
// cannot both succeed.
func (l *AlertLedger) UpdateStatus(ctx context.Context, id uuid.UUID, status models.AlertStatus) (models.AlertEvent, error) {
	if !status.Valid() {
		return models.AlertEvent{}, fmt.Errorf("%w: alert status %q", models.ErrInvalidArgument, status)
	}
	if !models.AlertPending.CanTransition(status) {
		return models.AlertEvent{}, fmt.Errorf("%w: alert %s -> %s", models.ErrInvalidTransition, id, status)
	}

	query := `
	UPDATE alert_events SET status = $2, updated_at = $3
	WHERE id = $1 AND status = $4
	RETURNING ` + alertColumns
	e, err := scanAlert(l.db.Pool.QueryRow(ctx, query, id, status, time.Now(), models.AlertPending))
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.AlertEvent{}, fmt.Errorf("failed to update alert status: %w", err)
	}

	current, err := l.Get(ctx, id)
	if err != nil {
		return models.AlertEvent{}, err
	}
	return models.AlertEvent{}, fmt.Errorf("%w: alert %s %s -> %s", models.ErrInvalidTransition, id, current.Status, status)
}

func (l *AlertLedger) ClaimEvents(ctx context.Context, ids []uuid.UUID, at time.Time) ([]models.AlertEvent, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
	WITH claimed AS (
		UPDATE alert_events SET dispatched_at = $2
		WHERE id = ANY($1) AND dispatched_at IS NULL
		RETURNING seq, ` + alertColumns + `
	)
	SELECT ` + alertColumns + ` FROM claimed ORDER BY seq`
	rows, err := l.db.Pool.Query(ctx, query, ids, at)
	if err != nil {
		return nil, fmt.Errorf("failed to claim alert events: %w", err)
	}
	return collectAlerts(rows)
}

func (l *AlertLedger) ClaimPending(ctx context.Context, freq models.Frequency, before, at time.Time) ([]models.AlertEvent, error) {
	query := `
	WITH claimed AS (
		UPDATE alert_events SET dispatched_at = $4
		WHERE frequency = $1 AND status = $2 AND dispatched_at IS NULL AND created_at < $3
		RETURNING seq, ` + alertColumns + `
	)
	SELECT ` + alertColumns + ` FROM claimed ORDER BY seq`
	rows, err := l.db.Pool.Query(ctx, query, freq, models.AlertPending, before, at)
	if err != nil {
		return nil, fmt.Errorf("failed to claim %s alert events: %w", freq, err)
	}
	return collectAlerts(rows)
}

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

// PlanRepository stores replenishment plans in Postgres.
type PlanRepository struct {
	db *DB
}

func NewPlanRepository(d *DB) *PlanRepository {
	return &PlanRepository{db: d}
}

const planColumns = `id, product_id, plan_amount, expected_date, status, supplier, unit_cost,
	estimated_cost, priority, source, stock_at_create, created_at, updated_at`

func scanPlan(row pgx.Row) (models.ReplenishmentPlan, error) {
	var p models.ReplenishmentPlan
	err := row.Scan(
		&p.ID,
		&p.ProductID,
		&p.PlanAmount,
		&p.ExpectedDate,
		&p.Status,
		&p.Supplier,
		&p.UnitCost,
		&p.EstimatedCost,
		&p.Priority,
		&p.Source,
		&p.StockAtCreate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

func (r *PlanRepository) Create(ctx context.Context, p models.ReplenishmentPlan) error {
	query := `
	INSERT INTO replenishment_plans (` + planColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.db.Pool.Exec(ctx, query,
		p.ID,
		p.ProductID,
		p.PlanAmount,
		p.ExpectedDate,
		p.Status,
		p.Supplier,
		p.UnitCost,
		p.EstimatedCost,
		p.Priority,
		p.Source,
		p.StockAtCreate,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: plan %s already exists", models.ErrInvalidArgument, p.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert plan: %w", err)
	}
	return nil
}

func (r *PlanRepository) Get(ctx context.Context, id uuid.UUID) (models.ReplenishmentPlan, error) {
	query := `SELECT ` + planColumns + ` FROM replenishment_plans WHERE id = $1`
	p, err := scanPlan(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ReplenishmentPlan{}, fmt.Errorf("plan %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.ReplenishmentPlan{}, fmt.Errorf("failed to get plan %s: %w", id, err)
	}
	return p, nil
}

func (r *PlanRepository) List(ctx context.Context, f models.PlanFilter) ([]models.ReplenishmentPlan, error) {
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
	query := `SELECT ` + planColumns + ` FROM replenishment_plans`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY seq"

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	list := make([]models.ReplenishmentPlan, 0)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read plans: %w", err)
	}
	return list, nil
}

func (r *PlanRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.PlanStatus, at time.Time) (models.ReplenishmentPlan, error) {
	query := `
	UPDATE replenishment_plans SET status = $3, updated_at = $4
	WHERE id = $1 AND status = $2
	RETURNING ` + planColumns
	p, err := scanPlan(r.db.Pool.QueryRow(ctx, query, id, from, to, at))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.ReplenishmentPlan{}, fmt.Errorf("failed to update plan status: %w", err)
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return models.ReplenishmentPlan{}, err
	}
	return models.ReplenishmentPlan{}, fmt.Errorf("%w: plan %s is %s, not %s", models.ErrInvalidTransition, id, current.Status, from)
}

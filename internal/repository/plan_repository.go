package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/aitrends-backend/internal/models"
)

type PlanRepository struct {
	db *sql.DB
}

func NewPlanRepository(db *sql.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = `code, label, tokens, amount, currency, is_active, created_at, updated_at`

func (r *PlanRepository) List(ctx context.Context) ([]models.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE is_active = 1 ORDER BY amount ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []models.Plan
	for rows.Next() {
		var plan models.Plan
		if err := rows.Scan(&plan.Code, &plan.Label, &plan.Tokens, &plan.Amount, &plan.Currency, &plan.IsActive, &plan.CreatedAt, &plan.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func (r *PlanRepository) GetByCode(ctx context.Context, code string) (*models.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE code = ? AND is_active = 1`
	row := r.db.QueryRowContext(ctx, query, code)
	var plan models.Plan
	if err := row.Scan(&plan.Code, &plan.Label, &plan.Tokens, &plan.Amount, &plan.Currency, &plan.IsActive, &plan.CreatedAt, &plan.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return &plan, nil
}

// Upsert seeds or refreshes a plan row; used by the startup bootstrap.
func (r *PlanRepository) Upsert(ctx context.Context, plan *models.Plan) error {
	const query = `
INSERT INTO plans (code, label, tokens, amount, currency, is_active)
VALUES (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE label = VALUES(label), tokens = VALUES(tokens), amount = VALUES(amount), currency = VALUES(currency), is_active = VALUES(is_active)`
	if _, err := r.db.ExecContext(ctx, query, plan.Code, plan.Label, plan.Tokens, plan.Amount, plan.Currency, plan.IsActive); err != nil {
		return fmt.Errorf("upsert plan: %w", err)
	}
	return nil
}

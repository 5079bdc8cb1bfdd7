package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/aitrends-backend/internal/models"
)

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `
id, tgid, COALESCE(yookassa_payment_id, ''), amount, tokens, status, COALESCE(plan_code, ''), created_at, updated_at`

func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	const query = `
INSERT INTO payments (id, tgid, yookassa_payment_id, amount, tokens, status, plan_code)
VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		payment.ID, payment.TGID, payment.YooKassaPaymentID, payment.Amount,
		payment.Tokens, payment.Status, payment.PlanCode)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) FindByGatewayID(ctx context.Context, yooPaymentID string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE yookassa_payment_id = ? LIMIT 1`
	return scanPayment(r.db.QueryRowContext(ctx, query, yooPaymentID))
}

// GetForUser returns the payment only when owned by the given user.
func (r *PaymentRepository) GetForUser(ctx context.Context, id string, tgid int64) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ? AND tgid = ?`
	return scanPayment(r.db.QueryRowContext(ctx, query, id, tgid))
}

func (r *PaymentRepository) ListForUser(ctx context.Context, tgid int64, limit int) ([]models.Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE tgid = ? ORDER BY created_at DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, tgid, limit)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// MarkSucceededIfPending is the single idempotency guard for crediting: the
// compare-and-swap on status means exactly one of the two reconciliation
// paths (webhook, status poll) wins, no matter how they interleave.
func (r *PaymentRepository) MarkSucceededIfPending(ctx context.Context, yooPaymentID string) (bool, error) {
	const query = `
UPDATE payments SET status = ?, updated_at = NOW()
WHERE yookassa_payment_id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, query, models.PaymentSucceeded, yooPaymentID, models.PaymentPending)
	if err != nil {
		return false, fmt.Errorf("mark payment succeeded: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("payment rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, status models.PaymentStatus) error {
	const query = `UPDATE payments SET status = ?, updated_at = NOW() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, status, id); err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	return nil
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(&p.ID, &p.TGID, &p.YooKassaPaymentID, &p.Amount, &p.Tokens,
		&p.Status, &p.PlanCode, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return &p, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/aitrends-backend/internal/models"
)

type PromoRepository struct {
	db *sql.DB
}

func NewPromoRepository(db *sql.DB) *PromoRepository {
	return &PromoRepository{db: db}
}

func (r *PromoRepository) GetByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	const query = `SELECT id, code, tokens, max_uses, uses, created_at FROM promo_codes WHERE code = ?`
	row := r.db.QueryRowContext(ctx, query, code)
	var promo models.PromoCode
	if err := row.Scan(&promo.ID, &promo.Code, &promo.Tokens, &promo.MaxUses, &promo.Uses, &promo.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan promo: %w", err)
	}
	return &promo, nil
}

// RecordRedemption enforces one redemption per user per code via the unique
// key; returns false when the user already redeemed it.
func (r *PromoRepository) RecordRedemption(ctx context.Context, tgid, promoID int64) (bool, error) {
	const query = `INSERT IGNORE INTO promo_redemptions (tgid, promo_code_id) VALUES (?, ?)`
	res, err := r.db.ExecContext(ctx, query, tgid, promoID)
	if err != nil {
		return false, fmt.Errorf("record redemption: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("redemption rows affected: %w", err)
	}
	return affected > 0, nil
}

// IncrementUsage burns one use; fails when the code is exhausted.
func (r *PromoRepository) IncrementUsage(ctx context.Context, promoID int64) (bool, error) {
	const query = `
UPDATE promo_codes SET uses = uses + 1
WHERE id = ? AND uses < max_uses`
	res, err := r.db.ExecContext(ctx, query, promoID)
	if err != nil {
		return false, fmt.Errorf("increment promo usage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("promo usage rows affected: %w", err)
	}
	return affected > 0, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/digkill/aitrends-backend/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByTGID(ctx context.Context, tgid int64) (*models.User, error) {
	const query = `
SELECT id, tgid, balance, referrer_tgid, created_at, updated_at
FROM users WHERE tgid = ?`
	row := r.db.QueryRowContext(ctx, query, tgid)
	var u models.User
	var referrer sql.NullInt64
	if err := row.Scan(&u.ID, &u.TGID, &u.Balance, &referrer, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if referrer.Valid {
		u.ReferrerTGID = &referrer.Int64
	}
	return &u, nil
}

// Ensure finds the user by telegram id, creating the row on first contact.
func (r *UserRepository) Ensure(ctx context.Context, tgid int64) (*models.User, bool, error) {
	user, err := r.FindByTGID(ctx, tgid)
	if err != nil {
		return nil, false, err
	}
	if user != nil {
		return user, false, nil
	}

	const query = `INSERT INTO users (tgid, balance) VALUES (?, 0.00)`
	if _, err := r.db.ExecContext(ctx, query, tgid); err != nil {
		// Lost a race against a concurrent first request for the same user.
		existing, findErr := r.FindByTGID(ctx, tgid)
		if findErr == nil && existing != nil {
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("insert user: %w", err)
	}

	created, err := r.FindByTGID(ctx, tgid)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// CreditBalance adds tokens to the user balance.
func (r *UserRepository) CreditBalance(ctx context.Context, tgid int64, amount decimal.Decimal) error {
	const query = `UPDATE users SET balance = balance + ?, updated_at = NOW() WHERE tgid = ?`
	if _, err := r.db.ExecContext(ctx, query, amount, tgid); err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	return nil
}

// DebitBalanceIfEnough subtracts amount only when the balance covers it.
// The conditional UPDATE is the atomicity guard: the balance cannot go
// negative through this path even under concurrent generations.
func (r *UserRepository) DebitBalanceIfEnough(ctx context.Context, tgid int64, amount decimal.Decimal) (bool, error) {
	const query = `
UPDATE users SET balance = balance - ?, updated_at = NOW()
WHERE tgid = ? AND balance >= ?`
	res, err := r.db.ExecContext(ctx, query, amount, tgid, amount)
	if err != nil {
		return false, fmt.Errorf("debit balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("debit rows affected: %w", err)
	}
	return affected > 0, nil
}

// SetReferrerIfUnset records the referrer exactly once and never to self.
func (r *UserRepository) SetReferrerIfUnset(ctx context.Context, tgid, referrerTGID int64) (bool, error) {
	if referrerTGID == 0 || referrerTGID == tgid {
		return false, nil
	}
	const query = `
UPDATE users SET referrer_tgid = ?, updated_at = NOW()
WHERE tgid = ? AND referrer_tgid IS NULL`
	res, err := r.db.ExecContext(ctx, query, referrerTGID, tgid)
	if err != nil {
		return false, fmt.Errorf("set referrer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("referrer rows affected: %w", err)
	}
	return affected > 0, nil
}

// IsAdmin checks membership in the admins table.
func (r *UserRepository) IsAdmin(ctx context.Context, tgid int64) (bool, error) {
	const query = `SELECT 1 FROM admins WHERE tgid = ?`
	var one int
	if err := r.db.QueryRowContext(ctx, query, tgid).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check admin: %w", err)
	}
	return true, nil
}

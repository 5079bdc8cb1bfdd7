package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/digkill/aitrends-backend/internal/models"
)

type promoStore interface {
	GetByCode(ctx context.Context, code string) (*models.PromoCode, error)
	RecordRedemption(ctx context.Context, tgid, promoID int64) (bool, error)
	IncrementUsage(ctx context.Context, promoID int64) (bool, error)
}

type PromoService struct {
	log    *slog.Logger
	promos promoStore
	users  balanceStore
}

func NewPromoService(log *slog.Logger, promos promoStore, users balanceStore) *PromoService {
	return &PromoService{log: log, promos: promos, users: users}
}

// Redeem applies a promo code once per user. The redemption row insert and
// the usage counter bump are both conditional writes, so a retried request
// or a code raced to its last use resolve without double-crediting.
func (s *PromoService) Redeem(ctx context.Context, user *models.User, code string) (decimal.Decimal, error) {
	code = strings.TrimSpace(strings.ToUpper(code))
	promo, err := s.promos.GetByCode(ctx, code)
	if err != nil {
		return decimal.Zero, err
	}
	if promo == nil {
		return decimal.Zero, fmt.Errorf("promo code %s: %w", code, ErrNotFound)
	}
	if promo.MaxUses > 0 && promo.Uses >= promo.MaxUses {
		return decimal.Zero, ErrPromoExhausted
	}

	recorded, err := s.promos.RecordRedemption(ctx, user.TGID, promo.ID)
	if err != nil {
		return decimal.Zero, err
	}
	if !recorded {
		return decimal.Zero, ErrAlreadyProcessed
	}

	bumped, err := s.promos.IncrementUsage(ctx, promo.ID)
	if err != nil {
		return decimal.Zero, err
	}
	if !bumped {
		return decimal.Zero, ErrPromoExhausted
	}

	if err := s.users.CreditBalance(ctx, user.TGID, promo.Tokens); err != nil {
		return decimal.Zero, fmt.Errorf("credit promo tokens: %w", err)
	}
	s.log.Info("promo redeemed", "tgid", user.TGID, "code", code, "tokens", promo.Tokens.String())
	return promo.Tokens, nil
}

package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/aitrends-backend/internal/models"
)

type fakePromoStore struct {
	promo     *models.PromoCode
	redeemed  map[int64]bool
	increrror error
}

func (f *fakePromoStore) GetByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	if f.promo != nil && f.promo.Code == code {
		return f.promo, nil
	}
	return nil, nil
}

func (f *fakePromoStore) RecordRedemption(ctx context.Context, tgid, promoID int64) (bool, error) {
	if f.redeemed == nil {
		f.redeemed = map[int64]bool{}
	}
	if f.redeemed[tgid] {
		return false, nil
	}
	f.redeemed[tgid] = true
	return true, nil
}

func (f *fakePromoStore) IncrementUsage(ctx context.Context, promoID int64) (bool, error) {
	if f.increrror != nil {
		return false, f.increrror
	}
	if f.promo.MaxUses > 0 && f.promo.Uses >= f.promo.MaxUses {
		return false, nil
	}
	f.promo.Uses++
	return true, nil
}

func testPromo(code string, tokens string, maxUses, uses int) *models.PromoCode {
	return &models.PromoCode{ID: 1, Code: code, Tokens: decimal.RequireFromString(tokens), MaxUses: maxUses, Uses: uses}
}

func TestRedeemCreditsTokens(t *testing.T) {
	user := balanceUser(1, "0")
	users := newFakeBalanceStore(user)
	promos := &fakePromoStore{promo: testPromo("WELCOME", "5", 10, 0)}
	svc := NewPromoService(slog.Default(), promos, users)

	tokens, err := svc.Redeem(context.Background(), user, "welcome")
	require.NoError(t, err)
	assert.True(t, tokens.Equal(decimal.NewFromInt(5)))
	assert.True(t, user.Balance.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, 1, promos.promo.Uses)
}

func TestRedeemUnknownCode(t *testing.T) {
	user := balanceUser(1, "0")
	svc := NewPromoService(slog.Default(), &fakePromoStore{}, newFakeBalanceStore(user))

	_, err := svc.Redeem(context.Background(), user, "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedeemTwiceRejected(t *testing.T) {
	user := balanceUser(1, "0")
	users := newFakeBalanceStore(user)
	promos := &fakePromoStore{promo: testPromo("WELCOME", "5", 10, 0)}
	svc := NewPromoService(slog.Default(), promos, users)

	_, err := svc.Redeem(context.Background(), user, "WELCOME")
	require.NoError(t, err)

	_, err = svc.Redeem(context.Background(), user, "WELCOME")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.True(t, user.Balance.Equal(decimal.NewFromInt(5)), "balance credited only once")
}

func TestRedeemExhaustedCode(t *testing.T) {
	user := balanceUser(1, "0")
	promos := &fakePromoStore{promo: testPromo("WELCOME", "5", 3, 3)}
	svc := NewPromoService(slog.Default(), promos, newFakeBalanceStore(user))

	_, err := svc.Redeem(context.Background(), user, "WELCOME")
	assert.ErrorIs(t, err, ErrPromoExhausted)
	assert.True(t, user.Balance.IsZero())
}

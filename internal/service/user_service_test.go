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

type fakeUserStore struct {
	users  map[int64]*models.User
	admins map[int64]bool
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[int64]*models.User{}, admins: map[int64]bool{}}
}

func (f *fakeUserStore) FindByTGID(ctx context.Context, tgid int64) (*models.User, error) {
	return f.users[tgid], nil
}

func (f *fakeUserStore) Ensure(ctx context.Context, tgid int64) (*models.User, bool, error) {
	if u, ok := f.users[tgid]; ok {
		return u, false, nil
	}
	u := &models.User{TGID: tgid, Balance: decimal.Zero}
	f.users[tgid] = u
	return u, true, nil
}

func (f *fakeUserStore) SetReferrerIfUnset(ctx context.Context, tgid, referrerTGID int64) (bool, error) {
	u, ok := f.users[tgid]
	if !ok || u.ReferrerTGID != nil || tgid == referrerTGID {
		return false, nil
	}
	u.ReferrerTGID = &referrerTGID
	return true, nil
}

func (f *fakeUserStore) IsAdmin(ctx context.Context, tgid int64) (bool, error) {
	return f.admins[tgid], nil
}

func TestLoginRegistersAndBindsReferrer(t *testing.T) {
	store := newFakeUserStore()
	svc := NewUserService(slog.Default(), store)

	user, err := svc.Login(context.Background(), 42, 100)
	require.NoError(t, err)
	require.NotNil(t, user.ReferrerTGID)
	assert.Equal(t, int64(100), *user.ReferrerTGID)
}

func TestLoginReferrerIsSetOnce(t *testing.T) {
	store := newFakeUserStore()
	svc := NewUserService(slog.Default(), store)

	_, err := svc.Login(context.Background(), 42, 100)
	require.NoError(t, err)

	// A later login through a different link does not reassign.
	user, err := svc.Login(context.Background(), 42, 200)
	require.NoError(t, err)
	require.NotNil(t, user.ReferrerTGID)
	assert.Equal(t, int64(100), *user.ReferrerTGID)
}

func TestLoginWithoutReferrer(t *testing.T) {
	store := newFakeUserStore()
	svc := NewUserService(slog.Default(), store)

	user, err := svc.Login(context.Background(), 42, 0)
	require.NoError(t, err)
	assert.Nil(t, user.ReferrerTGID)
}

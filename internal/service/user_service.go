package service

import (
	"context"
	"log/slog"

	"github.com/digkill/aitrends-backend/internal/models"
)

type userStore interface {
	FindByTGID(ctx context.Context, tgid int64) (*models.User, error)
	Ensure(ctx context.Context, tgid int64) (*models.User, bool, error)
	SetReferrerIfUnset(ctx context.Context, tgid, referrerTGID int64) (bool, error)
	IsAdmin(ctx context.Context, tgid int64) (bool, error)
}

type UserService struct {
	log   *slog.Logger
	users userStore
}

func NewUserService(log *slog.Logger, users userStore) *UserService {
	return &UserService{log: log, users: users}
}

// Login ensures a user row exists and binds the referrer on first contact.
// The referrer is set-once: a user who came in through one link cannot be
// reassigned by a later one.
func (s *UserService) Login(ctx context.Context, tgid, referrerTGID int64) (*models.User, error) {
	user, created, err := s.users.Ensure(ctx, tgid)
	if err != nil {
		return nil, err
	}

	if referrerTGID != 0 && user.ReferrerTGID == nil {
		set, err := s.users.SetReferrerIfUnset(ctx, tgid, referrerTGID)
		if err != nil {
			s.log.Error("set referrer failed", "tgid", tgid, "referrer", referrerTGID, "err", err)
		} else if set {
			user.ReferrerTGID = &referrerTGID
			s.log.Info("referrer bound", "tgid", tgid, "referrer", referrerTGID)
		}
	}

	if created {
		s.log.Info("user registered", "tgid", tgid)
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, tgid int64) (*models.User, error) {
	return s.users.FindByTGID(ctx, tgid)
}

func (s *UserService) IsAdmin(ctx context.Context, tgid int64) (bool, error) {
	return s.users.IsAdmin(ctx, tgid)
}

package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/digkill/aitrends-backend/internal/auth"
	"github.com/digkill/aitrends-backend/internal/models"
)

type contextKey string

const userContextKey contextKey = "user"

// authMiddleware accepts either a Bearer token issued on login or a raw
// Mini App init data header. The init data path exists so the frontend can
// call the API before the token exchange completes.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tgid, ok := s.identify(r)
		if !ok {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		user, err := s.users.Login(r.Context(), tgid, 0)
		if err != nil {
			s.internalError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) identify(r *http.Request) (int64, bool) {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		tgid, err := auth.ParseToken(s.cfg.JWTSecret, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			s.log.Warn("token rejected", "err", err)
			return 0, false
		}
		return tgid, true
	}

	if initData := r.Header.Get("X-Telegram-InitData"); initData != "" {
		data, err := auth.VerifyInitData(initData, s.cfg.BotToken)
		if err != nil {
			s.log.Warn("init data rejected", "err", err)
			return 0, false
		}
		tgid, err := auth.UserTGID(data)
		if err != nil {
			return 0, false
		}
		return tgid, true
	}

	return 0, false
}

func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userFrom(r.Context())
		if user == nil {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		isAdmin, err := s.users.IsAdmin(r.Context(), user.TGID)
		if err != nil {
			s.internalError(w, err)
			return
		}
		if !isAdmin {
			s.writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.cfg.CORSAllowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Telegram-InitData")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userFrom(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey).(*models.User)
	return user
}

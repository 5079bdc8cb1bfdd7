package server

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/digkill/aitrends-backend/internal/auth"
	"github.com/digkill/aitrends-backend/internal/models"
)

type authRequest struct {
	InitData string `json:"init_data"`
}

type userResponse struct {
	TGID         int64           `json:"tgid"`
	Balance      decimal.Decimal `json:"balance"`
	ReferrerTGID *int64          `json:"referrer_tgid,omitempty"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{TGID: u.TGID, Balance: u.Balance, ReferrerTGID: u.ReferrerTGID}
}

// handleAuthTelegram verifies Mini App init data, registers the user (binding
// the referral link on first contact) and issues an API token.
func (s *Server) handleAuthTelegram(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	data, err := auth.VerifyInitData(req.InitData, s.cfg.BotToken)
	if err != nil {
		s.log.Warn("init data rejected", "err", err)
		s.writeError(w, http.StatusUnauthorized, "init data verification failed")
		return
	}
	tgid, err := auth.UserTGID(data)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "init data missing user")
		return
	}

	user, err := s.users.Login(r.Context(), tgid, auth.ReferrerFromStartParam(data))
	if err != nil {
		s.internalError(w, err)
		return
	}

	token, err := auth.IssueToken(s.cfg.JWTSecret, tgid, s.cfg.JWTExpires)
	if err != nil {
		s.internalError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  toUserResponse(user),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, toUserResponse(userFrom(r.Context())))
}

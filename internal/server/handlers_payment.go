package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/digkill/aitrends-backend/internal/models"
	"github.com/digkill/aitrends-backend/internal/service"
)

type planResponse struct {
	Code     string          `json:"code"`
	Label    string          `json:"label"`
	Tokens   decimal.Decimal `json:"tokens"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type paymentResponse struct {
	ID        string          `json:"id"`
	PlanCode  string          `json:"plan_code"`
	Amount    decimal.Decimal `json:"amount"`
	Tokens    decimal.Decimal `json:"tokens"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

func toPaymentResponse(p *models.Payment) paymentResponse {
	return paymentResponse{
		ID:        p.ID,
		PlanCode:  p.PlanCode,
		Amount:    p.Amount,
		Tokens:    p.Tokens,
		Status:    string(p.Status),
		CreatedAt: p.CreatedAt,
	}
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.payments.Plans(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	out := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, planResponse{Code: p.Code, Label: p.Label, Tokens: p.Tokens, Amount: p.Amount, Currency: p.Currency})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlanCode string `json:"plan_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.PlanCode == "" {
		s.writeError(w, http.StatusBadRequest, "plan_code is required")
		return
	}

	payment, confirmationURL, err := s.payments.CreatePayment(r.Context(), userFrom(r.Context()), req.PlanCode)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"payment":          toPaymentResponse(payment),
		"confirmation_url": confirmationURL,
	})
}

// handlePaymentWebhook is the unauthenticated gateway callback. A repeated or
// already-reconciled notification is acknowledged so the gateway stops
// retrying it.
func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read body error")
		return
	}
	if err := s.payments.HandleWebhook(r.Context(), body); err != nil && !errors.Is(err, service.ErrAlreadyProcessed) {
		s.log.Error("payment webhook", "err", err)
		s.writeError(w, http.StatusBadRequest, "webhook rejected")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	payment, err := s.payments.CheckStatus(r.Context(), userFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toPaymentResponse(payment))
}

func (s *Server) handlePaymentHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := s.payments.History(r.Context(), userFrom(r.Context()), limit)
	if err != nil {
		s.internalError(w, err)
		return
	}
	out := make([]paymentResponse, 0, len(items))
	for i := range items {
		out = append(out, toPaymentResponse(&items[i]))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRedeemPromo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Code == "" {
		s.writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	tokens, err := s.promos.Redeem(r.Context(), userFrom(r.Context()), req.Code)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyProcessed) {
			s.writeError(w, http.StatusConflict, "promo code already redeemed")
			return
		}
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tokens": tokens})
}

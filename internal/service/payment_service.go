package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/digkill/aitrends-backend/internal/config"
	"github.com/digkill/aitrends-backend/internal/models"
	"github.com/digkill/aitrends-backend/internal/yookassa"
)

type paymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByGatewayID(ctx context.Context, yooPaymentID string) (*models.Payment, error)
	GetForUser(ctx context.Context, id string, tgid int64) (*models.Payment, error)
	ListForUser(ctx context.Context, tgid int64, limit int) ([]models.Payment, error)
	MarkSucceededIfPending(ctx context.Context, yooPaymentID string) (bool, error)
	UpdateStatus(ctx context.Context, id string, status models.PaymentStatus) error
}

type planStore interface {
	List(ctx context.Context) ([]models.Plan, error)
	GetByCode(ctx context.Context, code string) (*models.Plan, error)
	Upsert(ctx context.Context, plan *models.Plan) error
}

type paymentGateway interface {
	CreatePayment(ctx context.Context, idemKey string, tgid int64, planCode string, tokens, amount decimal.Decimal, currency string) (*yookassa.Payment, error)
	FindPayment(ctx context.Context, paymentID string) (*yookassa.Payment, error)
}

type referralNotifier interface {
	SendBestEffort(ctx context.Context, url string, payload any)
}

type userNotifier interface {
	PaymentSucceeded(tgid int64, tokens decimal.Decimal)
	ReferralBonus(referrerTGID int64, bonus decimal.Decimal)
}

type PaymentService struct {
	cfg      config.Config
	log      *slog.Logger
	payments paymentStore
	users    balanceStore
	plans    planStore
	gateway  paymentGateway
	notifier referralNotifier
	telegram userNotifier
}

func NewPaymentService(cfg config.Config, log *slog.Logger, payments paymentStore, users balanceStore, plans planStore, gateway paymentGateway, notifier referralNotifier, telegram userNotifier) *PaymentService {
	return &PaymentService{
		cfg:      cfg,
		log:      log,
		payments: payments,
		users:    users,
		plans:    plans,
		gateway:  gateway,
		notifier: notifier,
		telegram: telegram,
	}
}

// defaultPlans seed the plans table on startup. Labels are user-facing copy
// and must quote the same token count as the Tokens field.
var defaultPlans = []models.Plan{
	{Code: "trial", Label: "Пробные токены: 2 шт", Tokens: decimal.NewFromInt(2), Amount: decimal.NewFromInt(120), Currency: "RUB", IsActive: true},
	{Code: "base", Label: "База: 12 токенов", Tokens: decimal.NewFromInt(12), Amount: decimal.NewFromInt(470), Currency: "RUB", IsActive: true},
	{Code: "neuro", Label: "Нейро: 30 токенов", Tokens: decimal.NewFromInt(30), Amount: decimal.NewFromInt(900), Currency: "RUB", IsActive: true},
	{Code: "vip", Label: "Вип: 120 токенов", Tokens: decimal.NewFromInt(120), Amount: decimal.NewFromInt(3400), Currency: "RUB", IsActive: true},
	{Code: "top", Label: "Топ: 600 токенов", Tokens: decimal.NewFromInt(600), Amount: decimal.NewFromInt(16000), Currency: "RUB", IsActive: true},
}

// EnsurePlans seeds the balance top-up plans.
func (s *PaymentService) EnsurePlans(ctx context.Context) error {
	for i := range defaultPlans {
		if err := s.plans.Upsert(ctx, &defaultPlans[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *PaymentService) Plans(ctx context.Context) ([]models.Plan, error) {
	return s.plans.List(ctx)
}

// CreatePayment registers a gateway payment for the plan and persists the
// pending row keyed by the gateway's payment id.
func (s *PaymentService) CreatePayment(ctx context.Context, user *models.User, planCode string) (*models.Payment, string, error) {
	plan, err := s.plans.GetByCode(ctx, planCode)
	if err != nil {
		return nil, "", err
	}
	if plan == nil {
		return nil, "", fmt.Errorf("plan %s: %w", planCode, ErrNotFound)
	}

	idemKey := uuid.NewString()
	yooPayment, err := s.gateway.CreatePayment(ctx, idemKey, user.TGID, plan.Code, plan.Tokens, plan.Amount, plan.Currency)
	if err != nil {
		return nil, "", fmt.Errorf("create gateway payment: %w", err)
	}

	payment := &models.Payment{
		ID:                uuid.NewString(),
		TGID:              user.TGID,
		YooKassaPaymentID: yooPayment.ID,
		Amount:            plan.Amount,
		Tokens:            plan.Tokens,
		Status:            models.PaymentPending,
		PlanCode:          plan.Code,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, "", fmt.Errorf("record payment: %w", err)
	}

	s.log.Info("payment created", "payment_id", payment.ID, "yookassa_id", yooPayment.ID, "plan", plan.Code, "tgid", user.TGID)
	return payment, yooPayment.Confirmation.URL, nil
}

// HandleWebhook processes a gateway notification. Only payment.succeeded
// events reconcile; everything else is acknowledged and dropped.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte) error {
	var evt struct {
		Event  string `json:"event"`
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
	}
	if err := json.Unmarshal(body, &evt); err != nil {
		return fmt.Errorf("parse webhook: %w", err)
	}
	if evt.Event != "payment.succeeded" {
		return nil
	}
	if evt.Object.ID == "" {
		return fmt.Errorf("webhook missing payment id")
	}
	return s.Reconcile(ctx, evt.Object.ID)
}

// CheckStatus is the poll-triggered reconciliation path: when the row is
// still pending it asks the gateway directly and runs the same guarded
// transition as the webhook.
func (s *PaymentService) CheckStatus(ctx context.Context, user *models.User, paymentID string) (*models.Payment, error) {
	payment, err := s.payments.GetForUser(ctx, paymentID, user.TGID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, fmt.Errorf("payment %s: %w", paymentID, ErrNotFound)
	}

	if payment.Status == models.PaymentPending && payment.YooKassaPaymentID != "" {
		yooPayment, err := s.gateway.FindPayment(ctx, payment.YooKassaPaymentID)
		if err != nil {
			// The local row still answers the status question.
			s.log.Error("gateway status check failed", "payment_id", payment.ID, "err", err)
			return payment, nil
		}
		switch yooPayment.Status {
		case "succeeded":
			if err := s.Reconcile(ctx, payment.YooKassaPaymentID); err != nil && !errors.Is(err, ErrAlreadyProcessed) {
				return nil, err
			}
			payment.Status = models.PaymentSucceeded
		case "canceled":
			if err := s.payments.UpdateStatus(ctx, payment.ID, models.PaymentCanceled); err != nil {
				return nil, err
			}
			payment.Status = models.PaymentCanceled
		}
	}

	return payment, nil
}

// Reconcile transitions a payment into succeeded and applies its balance
// effects exactly once. Both entry points (webhook, status poll) go through
// here; the compare-and-swap in MarkSucceededIfPending is the only permit to
// credit, so concurrent calls cannot double-apply.
func (s *PaymentService) Reconcile(ctx context.Context, yooPaymentID string) error {
	payment, err := s.payments.FindByGatewayID(ctx, yooPaymentID)
	if err != nil {
		return err
	}
	if payment == nil {
		return fmt.Errorf("payment with gateway id %s: %w", yooPaymentID, ErrNotFound)
	}

	won, err := s.payments.MarkSucceededIfPending(ctx, yooPaymentID)
	if err != nil {
		return err
	}
	if !won {
		return ErrAlreadyProcessed
	}

	if err := s.users.CreditBalance(ctx, payment.TGID, payment.Tokens); err != nil {
		// The status flag already flipped; surface loudly rather than retry
		// and risk a double credit.
		s.log.Error("credit after reconcile failed", "payment_id", payment.ID, "tgid", payment.TGID, "err", err)
		return fmt.Errorf("credit balance: %w", err)
	}
	s.log.Info("payment reconciled", "payment_id", payment.ID, "yookassa_id", yooPaymentID, "tokens", payment.Tokens.String())

	s.telegram.PaymentSucceeded(payment.TGID, payment.Tokens)
	s.propagateReferral(ctx, payment)
	return nil
}

// propagateReferral pays the referrer their percentage of the credited
// tokens. Best effort beyond the credit itself: notification failures are
// logged, never propagated.
func (s *PaymentService) propagateReferral(ctx context.Context, payment *models.Payment) {
	user, err := s.users.FindByTGID(ctx, payment.TGID)
	if err != nil || user == nil || user.ReferrerTGID == nil {
		if err != nil {
			s.log.Error("referral lookup failed", "tgid", payment.TGID, "err", err)
		}
		return
	}

	referrer := *user.ReferrerTGID
	bonus := payment.Tokens.
		Mul(decimal.NewFromInt(int64(s.cfg.ReferralBonusPercent))).
		Div(decimal.NewFromInt(100))
	if !bonus.IsPositive() {
		return
	}

	if err := s.users.CreditBalance(ctx, referrer, bonus); err != nil {
		s.log.Error("referral bonus credit failed", "referrer", referrer, "payment_id", payment.ID, "err", err)
		return
	}
	s.log.Info("referral bonus applied", "referrer", referrer, "referred", payment.TGID, "bonus", bonus.String())

	s.notifier.SendBestEffort(ctx, s.cfg.N8NReferralWebhook, map[string]any{
		"referrer_tgid": referrer,
		"referred_tgid": payment.TGID,
		"tokens":        payment.Tokens.String(),
		"bonus":         bonus.String(),
		"payment_id":    payment.ID,
	})
	s.telegram.ReferralBonus(referrer, bonus)
}

func (s *PaymentService) History(ctx context.Context, user *models.User, limit int) ([]models.Payment, error) {
	return s.payments.ListForUser(ctx, user.TGID, limit)
}

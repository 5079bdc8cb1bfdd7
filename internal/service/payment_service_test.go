package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/aitrends-backend/internal/config"
	"github.com/digkill/aitrends-backend/internal/models"
	"github.com/digkill/aitrends-backend/internal/yookassa"
)

type fakePaymentStore struct {
	mu       sync.Mutex
	payments map[string]*models.Payment // keyed by gateway id
}

func newFakePaymentStore(payments ...*models.Payment) *fakePaymentStore {
	s := &fakePaymentStore{payments: map[string]*models.Payment{}}
	for _, p := range payments {
		s.payments[p.YooKassaPaymentID] = p
	}
	return s
}

func (f *fakePaymentStore) Create(ctx context.Context, payment *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[payment.YooKassaPaymentID] = payment
	return nil
}

func (f *fakePaymentStore) FindByGatewayID(ctx context.Context, yooPaymentID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payments[yooPaymentID], nil
}

func (f *fakePaymentStore) GetForUser(ctx context.Context, id string, tgid int64) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.ID == id && p.TGID == tgid {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakePaymentStore) ListForUser(ctx context.Context, tgid int64, limit int) ([]models.Payment, error) {
	return nil, nil
}

func (f *fakePaymentStore) MarkSucceededIfPending(ctx context.Context, yooPaymentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[yooPaymentID]
	if !ok || p.Status != models.PaymentPending {
		return false, nil
	}
	p.Status = models.PaymentSucceeded
	return true, nil
}

func (f *fakePaymentStore) UpdateStatus(ctx context.Context, id string, status models.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.ID == id {
			p.Status = status
		}
	}
	return nil
}

type fakePlanStore struct {
	plans map[string]*models.Plan
}

func (f *fakePlanStore) List(ctx context.Context) ([]models.Plan, error) {
	out := make([]models.Plan, 0, len(f.plans))
	for _, p := range f.plans {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakePlanStore) GetByCode(ctx context.Context, code string) (*models.Plan, error) {
	return f.plans[code], nil
}

func (f *fakePlanStore) Upsert(ctx context.Context, plan *models.Plan) error {
	if f.plans == nil {
		f.plans = map[string]*models.Plan{}
	}
	f.plans[plan.Code] = plan
	return nil
}

type fakeYooGateway struct {
	created []string // plan codes
	status  string
	findErr error
}

func (f *fakeYooGateway) CreatePayment(ctx context.Context, idemKey string, tgid int64, planCode string, tokens, amount decimal.Decimal, currency string) (*yookassa.Payment, error) {
	f.created = append(f.created, planCode)
	return &yookassa.Payment{
		ID:     "yoo-" + planCode,
		Status: "pending",
		Confirmation: yookassa.Confirmation{
			Type: "redirect",
			URL:  "https://yookassa.example.com/confirm",
		},
	}, nil
}

func (f *fakeYooGateway) FindPayment(ctx context.Context, paymentID string) (*yookassa.Payment, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return &yookassa.Payment{ID: paymentID, Status: f.status}, nil
}

type fakeWebhookNotifier struct {
	urls     []string
	payloads []any
}

func (f *fakeWebhookNotifier) SendBestEffort(ctx context.Context, url string, payload any) {
	f.urls = append(f.urls, url)
	f.payloads = append(f.payloads, payload)
}

type fakeTelegramNotifier struct {
	paymentNotices  []int64
	referralNotices []int64
}

func (f *fakeTelegramNotifier) PaymentSucceeded(tgid int64, tokens decimal.Decimal) {
	f.paymentNotices = append(f.paymentNotices, tgid)
}

func (f *fakeTelegramNotifier) ReferralBonus(referrerTGID int64, bonus decimal.Decimal) {
	f.referralNotices = append(f.referralNotices, referrerTGID)
}

type paymentFixture struct {
	svc      *PaymentService
	users    *fakeBalanceStore
	payments *fakePaymentStore
	plans    *fakePlanStore
	gateway  *fakeYooGateway
	webhooks *fakeWebhookNotifier
	telegram *fakeTelegramNotifier
}

func newPaymentFixture(t *testing.T, users *fakeBalanceStore, payments *fakePaymentStore) *paymentFixture {
	t.Helper()
	f := &paymentFixture{
		users:    users,
		payments: payments,
		plans:    &fakePlanStore{},
		gateway:  &fakeYooGateway{},
		webhooks: &fakeWebhookNotifier{},
		telegram: &fakeTelegramNotifier{},
	}
	cfg := config.Config{
		ReferralBonusPercent: 10,
		N8NReferralWebhook:   "https://n8n.example.com/referral",
	}
	f.svc = NewPaymentService(cfg, slog.Default(), payments, users, f.plans, f.gateway, f.webhooks, f.telegram)
	require.NoError(t, f.svc.EnsurePlans(context.Background()))
	return f
}

func pendingPayment(tgid int64, gatewayID, tokens string) *models.Payment {
	return &models.Payment{
		ID:                "pay-" + gatewayID,
		TGID:              tgid,
		YooKassaPaymentID: gatewayID,
		Tokens:            decimal.RequireFromString(tokens),
		Amount:            decimal.RequireFromString("470"),
		Status:            models.PaymentPending,
		PlanCode:          "base",
	}
}

func TestEnsurePlansSeedsDefaults(t *testing.T) {
	f := newPaymentFixture(t, newFakeBalanceStore(), newFakePaymentStore())
	plans, err := f.svc.Plans(context.Background())
	require.NoError(t, err)
	assert.Len(t, plans, 5)

	// The label is copy shown to the user; it must quote the real token count.
	for _, plan := range plans {
		assert.Contains(t, plan.Label, plan.Tokens.String(), "plan %s", plan.Code)
	}
}

func TestCreatePaymentPersistsPendingRow(t *testing.T) {
	user := balanceUser(1, "0")
	f := newPaymentFixture(t, newFakeBalanceStore(user), newFakePaymentStore())

	payment, confirmationURL, err := f.svc.CreatePayment(context.Background(), user, "base")
	require.NoError(t, err)

	assert.Equal(t, models.PaymentPending, payment.Status)
	assert.Equal(t, "yoo-base", payment.YooKassaPaymentID)
	assert.True(t, payment.Tokens.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, "https://yookassa.example.com/confirm", confirmationURL)

	stored, err := f.payments.FindByGatewayID(context.Background(), "yoo-base")
	require.NoError(t, err)
	require.NotNil(t, stored)
	// No credit before the gateway confirms.
	assert.True(t, user.Balance.IsZero())
}

func TestCreatePaymentUnknownPlan(t *testing.T) {
	user := balanceUser(1, "0")
	f := newPaymentFixture(t, newFakeBalanceStore(user), newFakePaymentStore())

	_, _, err := f.svc.CreatePayment(context.Background(), user, "platinum")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.gateway.created)
}

func TestReconcileCreditsExactlyOnce(t *testing.T) {
	user := balanceUser(1, "0")
	users := newFakeBalanceStore(user)
	f := newPaymentFixture(t, users, newFakePaymentStore(pendingPayment(1, "yoo-1", "12")))

	require.NoError(t, f.svc.Reconcile(context.Background(), "yoo-1"))
	assert.True(t, user.Balance.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, []int64{1}, f.telegram.paymentNotices)

	// The second delivery of the same event is a no-op.
	err := f.svc.Reconcile(context.Background(), "yoo-1")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.True(t, user.Balance.Equal(decimal.NewFromInt(12)))
	assert.Len(t, f.telegram.paymentNotices, 1)
}

func TestReconcileUnknownPayment(t *testing.T) {
	f := newPaymentFixture(t, newFakeBalanceStore(), newFakePaymentStore())
	err := f.svc.Reconcile(context.Background(), "yoo-ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReconcileReferralBonus(t *testing.T) {
	referrer := balanceUser(100, "0")
	referred := balanceUser(1, "0")
	referrerID := int64(100)
	referred.ReferrerTGID = &referrerID
	users := newFakeBalanceStore(referrer, referred)
	f := newPaymentFixture(t, users, newFakePaymentStore(pendingPayment(1, "yoo-1", "30")))

	require.NoError(t, f.svc.Reconcile(context.Background(), "yoo-1"))

	assert.True(t, referred.Balance.Equal(decimal.NewFromInt(30)))
	assert.True(t, referrer.Balance.Equal(decimal.NewFromInt(3)), "referrer gets 10%% of the credited tokens")
	assert.Equal(t, []int64{100}, f.telegram.referralNotices)
	require.Len(t, f.webhooks.urls, 1)
	assert.Equal(t, "https://n8n.example.com/referral", f.webhooks.urls[0])

	body := f.webhooks.payloads[0].(map[string]any)
	assert.Equal(t, int64(100), body["referrer_tgid"])
	assert.Equal(t, int64(1), body["referred_tgid"])
	assert.Equal(t, "3", body["bonus"])
}

func TestReconcileNoReferrerNoBonus(t *testing.T) {
	user := balanceUser(1, "0")
	users := newFakeBalanceStore(user)
	f := newPaymentFixture(t, users, newFakePaymentStore(pendingPayment(1, "yoo-1", "30")))

	require.NoError(t, f.svc.Reconcile(context.Background(), "yoo-1"))

	assert.True(t, user.Balance.Equal(decimal.NewFromInt(30)))
	assert.Empty(t, f.webhooks.urls)
	assert.Empty(t, f.telegram.referralNotices)
	// Only the payer's credit happened.
	assert.Equal(t, []int64{1}, users.creditedTo)
}

func TestHandleWebhook(t *testing.T) {
	user := balanceUser(1, "0")
	f := newPaymentFixture(t, newFakeBalanceStore(user), newFakePaymentStore(pendingPayment(1, "yoo-1", "12")))

	body := []byte(`{"event": "payment.succeeded", "object": {"id": "yoo-1"}}`)
	require.NoError(t, f.svc.HandleWebhook(context.Background(), body))
	assert.True(t, user.Balance.Equal(decimal.NewFromInt(12)))
}

func TestHandleWebhookIgnoresOtherEvents(t *testing.T) {
	user := balanceUser(1, "0")
	f := newPaymentFixture(t, newFakeBalanceStore(user), newFakePaymentStore(pendingPayment(1, "yoo-1", "12")))

	body := []byte(`{"event": "payment.waiting_for_capture", "object": {"id": "yoo-1"}}`)
	require.NoError(t, f.svc.HandleWebhook(context.Background(), body))
	assert.True(t, user.Balance.IsZero())
}

func TestHandleWebhookMalformed(t *testing.T) {
	f := newPaymentFixture(t, newFakeBalanceStore(), newFakePaymentStore())
	assert.Error(t, f.svc.HandleWebhook(context.Background(), []byte("{broken")))
	assert.Error(t, f.svc.HandleWebhook(context.Background(), []byte(`{"event": "payment.succeeded", "object": {}}`)))
}

func TestCheckStatusReconcilesPendingPayment(t *testing.T) {
	user := balanceUser(1, "0")
	f := newPaymentFixture(t, newFakeBalanceStore(user), newFakePaymentStore(pendingPayment(1, "yoo-1", "12")))
	f.gateway.status = "succeeded"

	payment, err := f.svc.CheckStatus(context.Background(), user, "pay-yoo-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSucceeded, payment.Status)
	assert.True(t, user.Balance.Equal(decimal.NewFromInt(12)))
}

func TestCheckStatusAfterWebhookDoesNotDoubleCredit(t *testing.T) {
	// Webhook and status poll race on the same payment; the CAS lets only
	// one of them credit.
	user := balanceUser(1, "0")
	f := newPaymentFixture(t, newFakeBalanceStore(user), newFakePaymentStore(pendingPayment(1, "yoo-1", "12")))
	f.gateway.status = "succeeded"

	body := []byte(`{"event": "payment.succeeded", "object": {"id": "yoo-1"}}`)
	require.NoError(t, f.svc.HandleWebhook(context.Background(), body))

	payment, err := f.svc.CheckStatus(context.Background(), user, "pay-yoo-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSucceeded, payment.Status)
	assert.True(t, user.Balance.Equal(decimal.NewFromInt(12)))
}

func TestCheckStatusCanceled(t *testing.T) {
	user := balanceUser(1, "0")
	f := newPaymentFixture(t, newFakeBalanceStore(user), newFakePaymentStore(pendingPayment(1, "yoo-1", "12")))
	f.gateway.status = "canceled"

	payment, err := f.svc.CheckStatus(context.Background(), user, "pay-yoo-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCanceled, payment.Status)
	assert.True(t, user.Balance.IsZero())
}

func TestCheckStatusGatewayErrorReturnsLocalRow(t *testing.T) {
	user := balanceUser(1, "0")
	f := newPaymentFixture(t, newFakeBalanceStore(user), newFakePaymentStore(pendingPayment(1, "yoo-1", "12")))
	f.gateway.findErr = assert.AnError

	payment, err := f.svc.CheckStatus(context.Background(), user, "pay-yoo-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, payment.Status)
}

func TestCheckStatusOwnershipEnforced(t *testing.T) {
	owner := balanceUser(1, "0")
	other := balanceUser(2, "0")
	f := newPaymentFixture(t, newFakeBalanceStore(owner, other), newFakePaymentStore(pendingPayment(1, "yoo-1", "12")))

	_, err := f.svc.CheckStatus(context.Background(), other, "pay-yoo-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

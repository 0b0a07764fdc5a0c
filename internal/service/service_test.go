package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"testing"
	"time"

	"farmland-checkout/internal/cache"
	"farmland-checkout/internal/client"
	"farmland-checkout/internal/dto"
	"farmland-checkout/internal/events"
	"farmland-checkout/internal/model"
	"farmland-checkout/internal/repository"
	"farmland-checkout/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeGateway struct {
	provider string
	err      error
	requests []*client.HostedSessionRequest
}

func (g *fakeGateway) Provider() string { return g.provider }

func (g *fakeGateway) CreateHostedSession(_ context.Context, req *client.HostedSessionRequest) (*client.HostedSession, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &client.HostedSession{Token: "tok-" + req.InvoiceNumber, CheckoutURL: "https://test.authorize.net/payment/payment"}, nil
}

func (g *fakeGateway) VerifyWebhookSignature(signature string, _ []byte) error {
	if signature != "valid" {
		return client.ErrInvalidSignature
	}
	return nil
}

type fakeBraintree struct {
	fakeGateway
	chargeErr error
	charges   int
}

func (b *fakeBraintree) ChargeNonce(_ context.Context, _ string, _ decimal.Decimal, _ string) (string, error) {
	b.charges++
	if b.chargeErr != nil {
		return "", b.chargeErr
	}
	return "bt-sale-1", nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	db        *gorm.DB
	gateway   *fakeGateway
	braintree *fakeBraintree
	publisher *recordingPublisher
	users     repository.UserRepository
	txns      repository.TransactionRepository
	payments  PaymentService
	orders    OrderService
	rewards   RewardsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		db:        db,
		gateway:   &fakeGateway{provider: client.ProviderAuthorizeNet},
		braintree: &fakeBraintree{fakeGateway: fakeGateway{provider: client.ProviderBraintree}},
		publisher: &recordingPublisher{},
		users:     repository.NewUserRepository(db),
		txns:      repository.NewTransactionRepository(db),
	}
	orderRepo := repository.NewOrderRepository(db)

	f.payments = NewPaymentService(PaymentServiceDeps{
		DB:               db,
		Gateway:          f.gateway,
		AuthorizeNet:     f.gateway,
		Braintree:        f.braintree,
		UserRepo:         f.users,
		TransactionRepo:  f.txns,
		OrderRepo:        orderRepo,
		WebhookEventRepo: repository.NewWebhookEventRepository(db),
		StatusCache:      cache.NewNoopStatusCache(),
		Publisher:        f.publisher,
		Log:              log,
		Options: PaymentOptions{
			ReturnURL:          "http://localhost:8080/order-confirmation",
			AllowedReturnHosts: []string{"localhost"},
		},
	})
	f.orders = NewOrderService(db, orderRepo, f.users, f.publisher, 15*time.Minute, log)
	f.rewards = NewRewardsService(db, f.users, repository.NewCouponRepository(db), f.publisher, log)
	return f
}

var ana = dto.Identity{UserID: "u1", Name: "Ana", Email: "ana@example.com"}

func checkoutRequest(ref, amount string) *dto.CreateTransactionRequest {
	return &dto.CreateTransactionRequest{
		Amount:      decimal.RequireFromString(amount),
		ReferenceID: ref,
		CartItems:   []*dto.CartItem{{ID: "5", Quantity: 2}},
	}
}

func webhookBody(t *testing.T, notificationID, invoice, amount string) []byte {
	t.Helper()
	body, err := json.Marshal(model.GatewayWebhookEvent{
		NotificationID: notificationID,
		EventType:      model.EventAuthCaptureCreated,
		Payload: model.GatewayWebhookPayload{
			ResponseCode:  1,
			AuthAmount:    decimal.RequireFromString(amount),
			InvoiceNumber: invoice,
			ID:            "60012345",
		},
	})
	require.NoError(t, err)
	return body
}

// pay creates a transaction for ana and settles it through the webhook.
func (f *fixture) pay(t *testing.T, ref, amount string) *model.PaymentTransaction {
	t.Helper()
	ctx := context.Background()
	_, err := f.payments.CreateTransaction(ctx, ana, checkoutRequest(ref, amount))
	require.NoError(t, err)

	txn, err := f.txns.FindByReferenceID(ctx, ref)
	require.NoError(t, err)
	require.NoError(t, f.payments.HandleWebhook(ctx, "valid", webhookBody(t, "evt-"+ref, txn.InvoiceNumber, amount)))

	txn, err = f.txns.FindByReferenceID(ctx, ref)
	require.NoError(t, err)
	return txn
}

func TestCreateTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.payments.CreateTransaction(ctx, ana, checkoutRequest("FD-1700000000000-12.72", "12.72"))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "https://test.authorize.net/payment/payment", resp.CheckoutURL)

	txn, err := f.txns.FindByReferenceID(ctx, "FD-1700000000000-12.72")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, txn.Status)
	assert.Len(t, txn.InvoiceNumber, 20)
	assert.Equal(t, resp.Token, txn.Token)
	assert.Equal(t, "http://localhost:8080/order-confirmation", txn.ReturnURL)

	require.Len(t, f.gateway.requests, 1)
	assert.Equal(t, txn.InvoiceNumber, f.gateway.requests[0].InvoiceNumber)

	_, err = f.payments.CreateTransaction(ctx, ana, checkoutRequest("FD-1700000000000-12.72", "12.72"))
	assert.ErrorIs(t, err, ErrDuplicateReference)
}

func TestCreateTransaction_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := "u2"

	tests := []struct {
		name   string
		mutate func(*dto.CreateTransactionRequest)
		want   error
	}{
		{"zero amount", func(r *dto.CreateTransactionRequest) { r.Amount = decimal.Zero }, ErrInvalidRequest},
		{"empty cart", func(r *dto.CreateTransactionRequest) { r.CartItems = nil }, ErrInvalidRequest},
		{"missing reference", func(r *dto.CreateTransactionRequest) { r.ReferenceID = "" }, ErrInvalidRequest},
		{"foreign user", func(r *dto.CreateTransactionRequest) { r.UserID = &other }, ErrUserMismatch},
		{"return without marker", func(r *dto.CreateTransactionRequest) { r.ReturnURL = "http://localhost:8080/home" }, ErrInvalidRequest},
		{"return to unknown host", func(r *dto.CreateTransactionRequest) { r.ReturnURL = "https://evil.test/order-confirmation" }, ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := checkoutRequest("FD-1-"+tt.name, "5.00")
			tt.mutate(req)
			_, err := f.payments.CreateTransaction(ctx, ana, req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.gateway.requests)
}

func TestCreateTransaction_GatewayFailure(t *testing.T) {
	f := newFixture(t)
	f.gateway.err = errors.New("E00007 User authentication failed")
	ctx := context.Background()

	_, err := f.payments.CreateTransaction(ctx, ana, checkoutRequest("FD-2-5.00", "5.00"))
	require.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.ErrorContains(t, err, "E00007")

	txn, err := f.txns.FindByReferenceID(ctx, "FD-2-5.00")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusFailed, txn.Status)

	status, err := f.payments.CheckPaymentStatus(ctx, ana.UserID, "FD-2-5.00")
	require.NoError(t, err)
	assert.Equal(t, dto.StatusPending, status.Status)
}

func TestHandleWebhook_SettlesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	txn := f.pay(t, "FD-3-12.72", "12.72")
	assert.Equal(t, model.PaymentStatusPaid, txn.Status)
	assert.Equal(t, int64(13), txn.PointsEarned)
	assert.Regexp(t, `^ORD-\d{8}-\d{4}$`, txn.OrderNumber)

	status, err := f.payments.CheckPaymentStatus(ctx, ana.UserID, "FD-3-12.72")
	require.NoError(t, err)
	assert.Equal(t, dto.StatusPaid, status.Status)
	assert.Equal(t, int64(13), *status.PointsEarned)
	assert.Equal(t, txn.OrderNumber, status.OrderNumber)
	assert.True(t, decimal.RequireFromString("12.72").Equal(*status.Total))

	// same delivery replayed, then a second delivery for the same invoice
	require.NoError(t, f.payments.HandleWebhook(ctx, "valid", webhookBody(t, "evt-FD-3-12.72", txn.InvoiceNumber, "12.72")))
	require.NoError(t, f.payments.HandleWebhook(ctx, "valid", webhookBody(t, "evt-other", txn.InvoiceNumber, "12.72")))

	user, err := f.users.FindByID(ctx, ana.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(13), user.Points)
	assert.Equal(t, []string{events.TypeOrderPaid}, f.publisher.types())
}

func TestHandleWebhook_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.payments.CreateTransaction(ctx, ana, checkoutRequest("FD-4-10.00", "10.00"))
	require.NoError(t, err)
	txn, err := f.txns.FindByReferenceID(ctx, "FD-4-10.00")
	require.NoError(t, err)

	err = f.payments.HandleWebhook(ctx, "forged", webhookBody(t, "evt-1", txn.InvoiceNumber, "10.00"))
	assert.ErrorIs(t, err, client.ErrInvalidSignature)

	err = f.payments.HandleWebhook(ctx, "valid", webhookBody(t, "evt-2", txn.InvoiceNumber, "1.00"))
	assert.ErrorIs(t, err, ErrInvalidRequest)

	err = f.payments.HandleWebhook(ctx, "valid", webhookBody(t, "evt-3", "NOPE", "10.00"))
	assert.ErrorIs(t, err, ErrTransactionNotFound)

	txn, err = f.txns.FindByReferenceID(ctx, "FD-4-10.00")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, txn.Status)
}

func TestCheckPaymentStatus_OtherUser(t *testing.T) {
	f := newFixture(t)
	f.pay(t, "FD-5-3.00", "3.00")

	_, err := f.payments.CheckPaymentStatus(context.Background(), "intruder", "FD-5-3.00")
	assert.ErrorIs(t, err, ErrTransactionNotFound)

	_, err = f.payments.CheckPaymentStatus(context.Background(), ana.UserID, "")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestHostedSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resp, err := f.payments.CreateTransaction(ctx, ana, checkoutRequest("FD-6-4.00", "4.00"))
	require.NoError(t, err)

	session, err := f.payments.HostedSession(ctx, ana.UserID, "FD-6-4.00")
	require.NoError(t, err)
	assert.Equal(t, resp.Token, session.Token)

	_, err = f.payments.HostedSession(ctx, "intruder", "FD-6-4.00")
	assert.ErrorIs(t, err, ErrTransactionNotFound)

	f.pay(t, "FD-7-4.00", "4.00")
	_, err = f.payments.HostedSession(ctx, ana.UserID, "FD-7-4.00")
	assert.ErrorIs(t, err, ErrTransactionClosed)
}

func TestChargeBraintree(t *testing.T) {
	f := newFixture(t)
	f.gateway.provider = client.ProviderBraintree
	ctx := context.Background()

	_, err := f.payments.CreateTransaction(ctx, ana, checkoutRequest("FD-8-9.50", "9.50"))
	require.NoError(t, err)

	redirect, err := f.payments.ChargeBraintree(ctx, &dto.BraintreeChargeRequest{Nonce: "fake-valid-nonce", ReferenceID: "FD-8-9.50"})
	require.NoError(t, err)

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	assert.Contains(t, u.Path, dto.ConfirmationMarker)
	assert.Equal(t, "10", u.Query().Get("pointsEarned"))
	assert.Equal(t, "9.50", u.Query().Get("total"))
	assert.NotEmpty(t, u.Query().Get("orderNumber"))

	again, err := f.payments.ChargeBraintree(ctx, &dto.BraintreeChargeRequest{Nonce: "fake-valid-nonce", ReferenceID: "FD-8-9.50"})
	require.NoError(t, err)
	assert.Equal(t, redirect, again)
	assert.Equal(t, 1, f.braintree.charges)
}

func TestChargeBraintree_Declined(t *testing.T) {
	f := newFixture(t)
	f.gateway.provider = client.ProviderBraintree
	f.braintree.chargeErr = client.ErrPaymentDeclined
	ctx := context.Background()

	_, err := f.payments.CreateTransaction(ctx, ana, checkoutRequest("FD-9-2.00", "2.00"))
	require.NoError(t, err)

	_, err = f.payments.ChargeBraintree(ctx, &dto.BraintreeChargeRequest{Nonce: "fake-processor-declined-visa-nonce", ReferenceID: "FD-9-2.00"})
	assert.ErrorIs(t, err, client.ErrPaymentDeclined)
}

func TestCancelOrder_ReversesPointsFlooredAtZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txn := f.pay(t, "FD-10-12.72", "12.72")
	require.NoError(t, f.users.DeductPoints(ctx, f.db, ana.UserID, 10))

	_, err := f.orders.Cancel(ctx, "intruder", txn.OrderNumber)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	resp, err := f.orders.Cancel(ctx, ana.UserID, txn.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, int64(13), resp.PointsReversed)
	assert.Equal(t, int64(0), resp.Points)

	_, err = f.orders.Cancel(ctx, ana.UserID, txn.OrderNumber)
	assert.ErrorIs(t, err, ErrOrderNotCancelable)

	order, err := f.orders.Get(ctx, ana.UserID, txn.OrderNumber)
	require.NoError(t, err)
	assert.True(t, order.CancelStatus)
	assert.Equal(t, []*dto.CartItem{{ID: "5", Quantity: 2}}, order.Items)

	assert.ErrorIs(t, f.orders.MarkReady(ctx, txn.OrderNumber), ErrOrderCanceled)
	assert.Contains(t, f.publisher.types(), events.TypeOrderCanceled)
}

func TestCancelOrder_WindowClosed(t *testing.T) {
	f := newFixture(t)
	txn := f.pay(t, "FD-11-5.00", "5.00")
	f.orders.(*orderServiceImpl).now = func() time.Time { return time.Now().Add(16 * time.Minute) }

	_, err := f.orders.Cancel(context.Background(), ana.UserID, txn.OrderNumber)
	assert.ErrorIs(t, err, ErrOrderNotCancelable)
}

func TestMarkReady(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txn := f.pay(t, "FD-12-5.00", "5.00")

	require.NoError(t, f.orders.MarkReady(ctx, txn.OrderNumber))
	assert.ErrorIs(t, f.orders.MarkReady(ctx, "ORD-00000000-0000"), ErrOrderNotFound)

	_, err := f.orders.Cancel(ctx, ana.UserID, txn.OrderNumber)
	assert.ErrorIs(t, err, ErrOrderNotCancelable)

	list, err := f.orders.List(ctx, ana.UserID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].OrderStatus)
}

func TestClaimReward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pay(t, "FD-13-30.00", "30.00")

	_, err := f.rewards.Claim(ctx, ana, 99)
	assert.ErrorIs(t, err, ErrRewardNotFound)

	_, err = f.rewards.Claim(ctx, ana, 2)
	assert.ErrorIs(t, err, ErrInsufficientPoints)

	resp, err := f.rewards.Claim(ctx, ana, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), resp.Points)
	assert.Regexp(t, `^RWD-\d{6}-\d{3}$`, resp.Coupon.CouponCode)
	assert.Equal(t, string(model.CouponStatusActive), resp.Coupon.Status)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), resp.Coupon.ExpirationDate, time.Minute)

	coupons, err := f.rewards.Coupons(ctx, ana.UserID, model.CouponFilterActive)
	require.NoError(t, err)
	require.Len(t, coupons, 1)

	require.NoError(t, f.rewards.Redeem(ctx, resp.Coupon.CouponCode))
	assert.ErrorIs(t, f.rewards.Redeem(ctx, resp.Coupon.CouponCode), ErrCouponNotRedeemable)

	used, err := f.rewards.Coupons(ctx, ana.UserID, model.CouponFilterUsed)
	require.NoError(t, err)
	assert.Len(t, used, 1)
}

func TestClaimReward_ExpiryIsThirtyDaysAfterCreation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pay(t, "FD-15-30.00", "30.00")

	fixed := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	f.rewards.(*rewardsServiceImpl).now = func() time.Time { return fixed }

	resp, err := f.rewards.Claim(ctx, ana, 1)
	require.NoError(t, err)
	assert.True(t, fixed.Equal(resp.Coupon.CreatedAt), "created at %s", resp.Coupon.CreatedAt)
	assert.True(t, fixed.Add(30*24*time.Hour).Equal(resp.Coupon.ExpirationDate))

	stored, err := f.rewards.Coupons(ctx, ana.UserID, model.CouponFilterAll)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 30*24*time.Hour, stored[0].ExpirationDate.Sub(stored[0].CreatedAt))
}

func TestClaimReward_FailedClaimKeepsPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pay(t, "FD-14-100.00", "100.00")

	// a fixed clock and random source make the second coupon code collide
	fixed := time.Now()
	impl := f.rewards.(*rewardsServiceImpl)
	impl.now = func() time.Time { return fixed }
	impl.intn = func(int) int { return 0 }

	_, err := f.rewards.Claim(ctx, ana, 1)
	require.NoError(t, err)
	_, err = f.rewards.Claim(ctx, ana, 1)
	require.Error(t, err)

	points, err := f.users.Points(ctx, f.db, ana.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(75), points, "rolled back claim leaves the balance intact")
}

func TestProfile(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.users)

	profile, err := svc.Profile(context.Background(), ana)
	require.NoError(t, err)
	assert.Equal(t, "Ana", profile.Name)
	assert.Equal(t, int64(0), profile.Points)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"farmland-checkout/internal/cache"
	"farmland-checkout/internal/client"
	"farmland-checkout/internal/dto"
	"farmland-checkout/internal/events"
	"farmland-checkout/internal/model"
	"farmland-checkout/internal/repository"
	"farmland-checkout/internal/rewards"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

var errAlreadySettled = errors.New("transaction already settled")

type PaymentService interface {
	CreateTransaction(ctx context.Context, caller dto.Identity, req *dto.CreateTransactionRequest) (*dto.CreateTransactionResponse, error)
	CheckPaymentStatus(ctx context.Context, userID, referenceID string) (*dto.PaymentStatusResponse, error)
	HostedSession(ctx context.Context, userID, referenceID string) (*client.HostedSession, error)
	HandleWebhook(ctx context.Context, signature string, body []byte) error
	ChargeBraintree(ctx context.Context, req *dto.BraintreeChargeRequest) (string, error)
}

type PaymentOptions struct {
	ReturnURL          string
	CancelURL          string
	AllowedReturnHosts []string
}

type PaymentServiceDeps struct {
	DB               *gorm.DB
	Gateway          client.GatewayClient
	AuthorizeNet     client.AuthorizeNetClient
	Braintree        client.BraintreeClient // nil unless the braintree provider is active
	UserRepo         repository.UserRepository
	TransactionRepo  repository.TransactionRepository
	OrderRepo        repository.OrderRepository
	WebhookEventRepo repository.WebhookEventRepository
	StatusCache      cache.StatusCache
	Publisher        events.Publisher
	Log              *slog.Logger
	Options          PaymentOptions
}

type paymentServiceImpl struct {
	db               *gorm.DB
	gateway          client.GatewayClient
	anet             client.AuthorizeNetClient
	braintree        client.BraintreeClient
	userRepo         repository.UserRepository
	transactionRepo  repository.TransactionRepository
	orderRepo        repository.OrderRepository
	webhookEventRepo repository.WebhookEventRepository
	statusCache      cache.StatusCache
	publisher        events.Publisher
	log              *slog.Logger
	opts             PaymentOptions

	group singleflight.Group
	now   func() time.Time
	intn  rewards.IntN
}

func NewPaymentService(deps PaymentServiceDeps) PaymentService {
	return &paymentServiceImpl{
		db:               deps.DB,
		gateway:          deps.Gateway,
		anet:             deps.AuthorizeNet,
		braintree:        deps.Braintree,
		userRepo:         deps.UserRepo,
		transactionRepo:  deps.TransactionRepo,
		orderRepo:        deps.OrderRepo,
		webhookEventRepo: deps.WebhookEventRepo,
		statusCache:      deps.StatusCache,
		publisher:        deps.Publisher,
		log:              deps.Log,
		opts:             deps.Options,
		now:              time.Now,
		intn:             rewards.DefaultIntN,
	}
}

func (s *paymentServiceImpl) CreateTransaction(ctx context.Context, caller dto.Identity, req *dto.CreateTransactionRequest) (*dto.CreateTransactionResponse, error) {
	if err := validateCreateTransaction(req); err != nil {
		return nil, err
	}
	if req.UserID != nil && *req.UserID != "" && *req.UserID != caller.UserID {
		return nil, ErrUserMismatch
	}

	returnURL, err := s.resolveReturnURL(req.ReturnURL)
	if err != nil {
		return nil, err
	}

	err = s.userRepo.EnsureExists(ctx, &model.User{ID: caller.UserID, Name: caller.Name, Email: caller.Email})
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	items := make([]model.LineItem, len(req.CartItems))
	for i, item := range req.CartItems {
		items[i] = model.LineItem{ID: string(item.ID), Quantity: item.Quantity}
	}

	txn := &model.PaymentTransaction{
		ReferenceID:   req.ReferenceID,
		InvoiceNumber: newInvoiceNumber(),
		UserID:        caller.UserID,
		Amount:        req.Amount.Round(2),
		Items:         items,
		Provider:      s.gateway.Provider(),
		ReturnURL:     returnURL,
		Status:        model.PaymentStatusPending,
	}
	if err := s.transactionRepo.Create(ctx, txn); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateReference
		}
		return nil, fmt.Errorf("store transaction: %w", err)
	}

	session, err := s.gateway.CreateHostedSession(ctx, &client.HostedSessionRequest{
		ReferenceID:   txn.ReferenceID,
		InvoiceNumber: txn.InvoiceNumber,
		Amount:        txn.Amount,
		ReturnURL:     returnURL,
		CancelURL:     s.opts.CancelURL,
	})
	if err != nil {
		if mErr := s.transactionRepo.MarkFailed(ctx, txn.ReferenceID); mErr != nil {
			s.log.Error("mark transaction failed", "reference_id", txn.ReferenceID, "error", mErr)
		}
		s.log.Error("create hosted session", "reference_id", txn.ReferenceID, "provider", s.gateway.Provider(), "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if err := s.transactionRepo.SetSession(ctx, txn.ReferenceID, session.Token, session.CheckoutURL); err != nil {
		return nil, fmt.Errorf("store gateway token: %w", err)
	}

	s.log.Info("transaction created",
		"reference_id", txn.ReferenceID,
		"invoice_number", txn.InvoiceNumber,
		"amount", txn.Amount.StringFixed(2),
		"provider", txn.Provider,
	)

	return &dto.CreateTransactionResponse{
		Token:       session.Token,
		CheckoutURL: session.CheckoutURL,
	}, nil
}

func (s *paymentServiceImpl) CheckPaymentStatus(ctx context.Context, userID, referenceID string) (*dto.PaymentStatusResponse, error) {
	if referenceID == "" {
		return nil, fmt.Errorf("%w: referenceId is required", ErrInvalidRequest)
	}

	key := userID + ":" + referenceID
	if cached, err := s.statusCache.Get(ctx, key); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.log.Warn("status cache get", "reference_id", referenceID, "error", err)
	}

	// concurrent polls for one reference share a single lookup
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		txn, err := s.transactionRepo.FindByReferenceID(ctx, referenceID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("find transaction: %w", err)
		}
		if txn.UserID != userID {
			return nil, ErrTransactionNotFound
		}

		if txn.Status != model.PaymentStatusPaid {
			return &dto.PaymentStatusResponse{Status: dto.StatusPending}, nil
		}

		points := txn.PointsEarned
		total := txn.Amount
		resp := &dto.PaymentStatusResponse{
			Status:       dto.StatusPaid,
			PointsEarned: &points,
			OrderNumber:  txn.OrderNumber,
			Total:        &total,
		}
		if err := s.statusCache.Set(ctx, key, resp); err != nil {
			s.log.Warn("status cache set", "reference_id", referenceID, "error", err)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*dto.PaymentStatusResponse), nil
}

func (s *paymentServiceImpl) HostedSession(ctx context.Context, userID, referenceID string) (*client.HostedSession, error) {
	txn, err := s.transactionRepo.FindByReferenceID(ctx, referenceID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && txn.UserID != userID) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	if txn.Status != model.PaymentStatusPending || txn.Token == "" {
		return nil, ErrTransactionClosed
	}

	return &client.HostedSession{Token: txn.Token, CheckoutURL: txn.CheckoutURL}, nil
}

func (s *paymentServiceImpl) HandleWebhook(ctx context.Context, signature string, body []byte) error {
	if err := s.anet.VerifyWebhookSignature(signature, body); err != nil {
		return fmt.Errorf("verify webhook signature: %w", err)
	}

	var event model.GatewayWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: decode webhook payload: %v", ErrInvalidRequest, err)
	}

	if event.EventType != model.EventAuthCaptureCreated {
		s.log.Debug("webhook ignored", "event_type", event.EventType)
		return nil
	}
	if !event.Payload.Approved() {
		s.log.Info("payment not approved", "invoice_number", event.Payload.InvoiceNumber, "response_code", event.Payload.ResponseCode)
		return nil
	}
	if event.NotificationID == "" {
		return fmt.Errorf("%w: missing notificationId", ErrInvalidRequest)
	}

	processed, err := s.webhookEventRepo.Exists(ctx, event.NotificationID)
	if err != nil {
		return fmt.Errorf("check webhook event: %w", err)
	}
	if processed {
		return nil
	}

	var order *model.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.webhookEventRepo.MarkProcessed(ctx, tx, event.NotificationID, event.EventType); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errAlreadySettled
			}
			return fmt.Errorf("mark webhook processed: %w", err)
		}

		txn, err := s.transactionRepo.FindByInvoiceNumber(ctx, tx, event.Payload.InvoiceNumber)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: invoice %s", ErrTransactionNotFound, event.Payload.InvoiceNumber)
		}
		if err != nil {
			return fmt.Errorf("find transaction: %w", err)
		}
		if !event.Payload.AuthAmount.Equal(txn.Amount) {
			return fmt.Errorf("%w: captured %s but expected %s", ErrInvalidRequest,
				event.Payload.AuthAmount.StringFixed(2), txn.Amount.StringFixed(2))
		}

		order, err = s.settle(ctx, tx, txn, event.Payload.ID)
		return err
	})
	if errors.Is(err, errAlreadySettled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("settle webhook %s: %w", event.NotificationID, err)
	}

	s.publishPaid(ctx, order)
	return nil
}

func (s *paymentServiceImpl) ChargeBraintree(ctx context.Context, req *dto.BraintreeChargeRequest) (string, error) {
	if s.braintree == nil {
		return "", fmt.Errorf("%w: braintree is not enabled", ErrInvalidRequest)
	}
	if req.Nonce == "" || req.ReferenceID == "" {
		return "", fmt.Errorf("%w: nonce and referenceId are required", ErrInvalidRequest)
	}

	txn, err := s.transactionRepo.FindByReferenceID(ctx, req.ReferenceID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrTransactionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find transaction: %w", err)
	}
	if txn.Provider != client.ProviderBraintree {
		return "", fmt.Errorf("%w: transaction was not created for braintree", ErrInvalidRequest)
	}
	if txn.Status == model.PaymentStatusPaid {
		return confirmationURL(txn.ReturnURL, txn.OrderNumber, txn.PointsEarned, txn.Amount), nil
	}
	if txn.Status != model.PaymentStatusPending {
		return "", ErrTransactionClosed
	}

	gatewayTxID, err := s.braintree.ChargeNonce(ctx, req.Nonce, txn.Amount, txn.InvoiceNumber)
	if err != nil {
		return "", fmt.Errorf("braintree charge: %w", err)
	}

	var order *model.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err = s.settle(ctx, tx, txn, gatewayTxID)
		return err
	})
	if errors.Is(err, errAlreadySettled) {
		settled, err := s.transactionRepo.FindByReferenceID(ctx, req.ReferenceID)
		if err != nil {
			return "", fmt.Errorf("reload transaction: %w", err)
		}
		return confirmationURL(settled.ReturnURL, settled.OrderNumber, settled.PointsEarned, settled.Amount), nil
	}
	if err != nil {
		return "", fmt.Errorf("settle braintree sale: %w", err)
	}

	s.publishPaid(ctx, order)
	return confirmationURL(txn.ReturnURL, order.OrderNumber, order.PointsEarned, order.Total), nil
}

// settle turns a pending transaction into an order and awards points. It
// must run inside tx and returns errAlreadySettled when another settlement won.
func (s *paymentServiceImpl) settle(ctx context.Context, tx *gorm.DB, txn *model.PaymentTransaction, gatewayTxID string) (*model.Order, error) {
	orderNumber, err := s.newOrderNumber(ctx, tx)
	if err != nil {
		return nil, err
	}
	points := pointsFor(txn.Amount)

	err = s.transactionRepo.MarkPaid(ctx, tx, txn.ReferenceID, gatewayTxID, orderNumber, points)
	if errors.Is(err, repository.ErrConditionNotMet) {
		return nil, errAlreadySettled
	}
	if err != nil {
		return nil, fmt.Errorf("mark transaction paid: %w", err)
	}

	order := &model.Order{
		OrderNumber:  orderNumber,
		ReferenceID:  txn.ReferenceID,
		UserID:       txn.UserID,
		Total:        txn.Amount,
		PointsEarned: points,
	}
	if err := s.orderRepo.Create(ctx, tx, order); err != nil {
		return nil, fmt.Errorf("store order: %w", err)
	}

	orderItems := make([]*model.OrderItem, len(txn.Items))
	for i, item := range txn.Items {
		orderItems[i] = &model.OrderItem{
			OrderNumber: orderNumber,
			ProductID:   item.ID,
			Quantity:    item.Quantity,
		}
	}
	if err := s.orderRepo.CreateOrderItems(ctx, tx, orderItems); err != nil {
		return nil, fmt.Errorf("store order items: %w", err)
	}

	if err := s.userRepo.AddPoints(ctx, tx, txn.UserID, points); err != nil {
		return nil, fmt.Errorf("award points: %w", err)
	}

	s.log.Info("payment settled",
		"reference_id", txn.ReferenceID,
		"order_number", orderNumber,
		"points_earned", points,
	)
	return order, nil
}

func (s *paymentServiceImpl) newOrderNumber(ctx context.Context, tx *gorm.DB) (string, error) {
	for i := 0; i < 5; i++ {
		n := rewards.NewOrderNumber(s.now(), s.intn)
		exists, err := s.orderRepo.Exists(ctx, tx, n)
		if err != nil {
			return "", fmt.Errorf("check order number: %w", err)
		}
		if !exists {
			return n, nil
		}
	}
	return "", errors.New("could not allocate a free order number")
}

func (s *paymentServiceImpl) publishPaid(ctx context.Context, order *model.Order) {
	err := s.publisher.Publish(ctx, events.Event{
		Type:    events.TypeOrderPaid,
		Key:     order.OrderNumber,
		UserID:  order.UserID,
		Payload: toOrderResponse(order, nil),
	})
	if err != nil {
		s.log.Warn("publish order paid", "order_number", order.OrderNumber, "error", err)
	}
}

func (s *paymentServiceImpl) resolveReturnURL(raw string) (string, error) {
	if raw == "" {
		return s.opts.ReturnURL, nil
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: returnUrl must be an absolute http(s) url", ErrInvalidRequest)
	}
	if !strings.Contains(u.Path, dto.ConfirmationMarker) {
		return "", fmt.Errorf("%w: returnUrl must contain %s", ErrInvalidRequest, dto.ConfirmationMarker)
	}
	if !slices.Contains(s.opts.AllowedReturnHosts, u.Hostname()) {
		return "", fmt.Errorf("%w: returnUrl host %s is not allowed", ErrInvalidRequest, u.Hostname())
	}
	return u.String(), nil
}

func validateCreateTransaction(req *dto.CreateTransactionRequest) error {
	if !req.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	if req.ReferenceID == "" || len(req.ReferenceID) > 64 {
		return fmt.Errorf("%w: referenceId is required (max 64 chars)", ErrInvalidRequest)
	}
	if len(req.CartItems) == 0 {
		return fmt.Errorf("%w: cart is empty", ErrInvalidRequest)
	}
	for _, item := range req.CartItems {
		if item == nil || item.ID == "" || item.Quantity <= 0 {
			return fmt.Errorf("%w: cart items need an id and a positive quantity", ErrInvalidRequest)
		}
	}
	return nil
}

// pointsFor awards one point per currency unit, rounded half up.
func pointsFor(amount decimal.Decimal) int64 {
	return amount.Round(0).IntPart()
}

// newInvoiceNumber fits the gateway's 20 character invoice limit.
func newInvoiceNumber() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:20]
}

func confirmationURL(base, orderNumber string, points int64, total decimal.Decimal) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("orderNumber", orderNumber)
	q.Set("pointsEarned", strconv.FormatInt(points, 10))
	q.Set("total", total.StringFixed(2))
	u.RawQuery = q.Encode()
	return u.String()
}

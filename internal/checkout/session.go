// Package checkout starts a hosted-page payment for the current cart and
// wires the interception, verification and reconciliation steps around it.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"farmland-checkout/internal/client"
	"farmland-checkout/internal/dto"

	"github.com/shopspring/decimal"
)

// PaymentInitError means no gateway session could be created. The attempt
// is over; the shopper can only go back.
type PaymentInitError struct {
	Status  int // backend HTTP status, 0 when the backend was never reached
	Message string
	Err     error
}

func (e *PaymentInitError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("payment init failed (%d): %s", e.Status, e.Message)
	}
	return "payment init failed: " + e.Message
}

func (e *PaymentInitError) Unwrap() error {
	return e.Err
}

// NewReferenceID builds <prefix>-<unix millis>-<amount with 2 decimals>.
func NewReferenceID(prefix string, now time.Time, amount decimal.Decimal) string {
	return fmt.Sprintf("%s-%d-%s", prefix, now.UnixMilli(), amount.StringFixed(2))
}

// Session is one checkout attempt's gateway session. It never changes
// after Initiate returns it.
type Session struct {
	ReferenceID  string
	Token        string
	CheckoutURL  string
	Amount       decimal.Decimal
	CartSnapshot []*dto.CartItem
	UserID       *string
}

type SessionCreator interface {
	CreateTransaction(ctx context.Context, req *dto.CreateTransactionRequest) (*dto.CreateTransactionResponse, error)
}

type Initiator struct {
	creator   SessionCreator
	returnURL string
	log       *slog.Logger
}

// NewInitiator takes the URL the gateway should return to; empty leaves
// the backend default.
func NewInitiator(creator SessionCreator, returnURL string, log *slog.Logger) *Initiator {
	return &Initiator{creator: creator, returnURL: returnURL, log: log}
}

// Initiate asks the backend for a hosted payment page token. Every failure
// comes back as *PaymentInitError.
func (i *Initiator) Initiate(
	ctx context.Context,
	amount decimal.Decimal,
	referenceID string,
	items []*dto.CartItem,
	userID *string,
) (*Session, error) {
	if !amount.IsPositive() {
		return nil, &PaymentInitError{Message: "amount must be greater than zero"}
	}
	if len(items) == 0 {
		return nil, &PaymentInitError{Message: "cart is empty"}
	}

	resp, err := i.creator.CreateTransaction(ctx, &dto.CreateTransactionRequest{
		Amount:      amount,
		ReferenceID: referenceID,
		CartItems:   items,
		UserID:      userID,
		ReturnURL:   i.returnURL,
	})
	if err != nil {
		initErr := &PaymentInitError{Message: err.Error(), Err: err}
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			initErr.Status = apiErr.Status
			initErr.Message = apiErr.Message
		}
		i.log.Error("create payment session", "reference_id", referenceID, "error", initErr)
		return nil, initErr
	}

	i.log.Info("payment session created", "reference_id", referenceID, "amount", amount.StringFixed(2))
	return &Session{
		ReferenceID:  referenceID,
		Token:        resp.Token,
		CheckoutURL:  resp.CheckoutURL,
		Amount:       amount,
		CartSnapshot: items,
		UserID:       userID,
	}, nil
}

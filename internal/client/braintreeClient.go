package client

import (
	"context"
	"errors"
	"farmland-checkout/internal/config"
	"fmt"
	"net/url"

	"github.com/braintree-go/braintree-go"
	"github.com/shopspring/decimal"
)

var ErrPaymentDeclined = errors.New("payment declined")

// BraintreeClient serves the drop-in hosted page: the session token is a
// braintree client token and the page posts back a payment nonce.
type BraintreeClient interface {
	GatewayClient

	// ChargeNonce runs a sale for amount and submits it for settlement.
	ChargeNonce(ctx context.Context, nonce string, amount decimal.Decimal, orderID string) (string, error)
}

type braintreeClientImpl struct {
	gateway     *braintree.Braintree
	checkoutURL string
}

// NewBraintreeClient initializes the Braintree SDK gateway
func NewBraintreeClient(cfg *config.Braintree, serviceBaseURL string) BraintreeClient {
	env := braintree.Sandbox
	if cfg.Environment == "production" {
		env = braintree.Production
	}

	gateway := braintree.New(
		env,
		cfg.MerchantID,
		cfg.PublicKey,
		cfg.PrivateKey,
	)

	return &braintreeClientImpl{
		gateway:     gateway,
		checkoutURL: serviceBaseURL + "/api/braintree/checkout",
	}
}

func (c *braintreeClientImpl) Provider() string {
	return ProviderBraintree
}

// CreateHostedSession issues a client token for the drop-in page. The page
// learns which transaction it pays for from the referenceId query parameter.
func (c *braintreeClientImpl) CreateHostedSession(ctx context.Context, in *HostedSessionRequest) (*HostedSession, error) {
	token, err := c.gateway.ClientToken().Generate(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate braintree client token: %w", err)
	}

	return &HostedSession{
		Token:       token,
		CheckoutURL: c.checkoutURL + "?referenceId=" + url.QueryEscape(in.ReferenceID),
	}, nil
}

func (c *braintreeClientImpl) ChargeNonce(ctx context.Context, nonce string, amount decimal.Decimal, orderID string) (string, error) {
	// Braintree expects NewDecimal(unscaled, scale): 12.72 -> NewDecimal(1272, 2)
	cents := amount.Round(2).Shift(2).IntPart()

	req := &braintree.TransactionRequest{
		Type:               "sale",
		Amount:             braintree.NewDecimal(cents, 2),
		PaymentMethodNonce: nonce,
		OrderId:            orderID,
		Options: &braintree.TransactionOptions{
			SubmitForSettlement: true,
		},
	}

	tx, err := c.gateway.Transaction().Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("braintree sale failed: %w", err)
	}

	if tx.Status == braintree.TransactionStatusProcessorDeclined || tx.Status == braintree.TransactionStatusGatewayRejected {
		return "", fmt.Errorf("%w: %s", ErrPaymentDeclined, tx.ProcessorResponseText)
	}

	return tx.Id, nil
}

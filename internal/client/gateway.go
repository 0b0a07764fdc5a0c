package client

import (
	"context"

	"github.com/shopspring/decimal"
)

const (
	ProviderAuthorizeNet = "authorizenet"
	ProviderBraintree    = "braintree"
)

// GatewayClient creates hosted payment page sessions. The page is always
// reached with a form post carrying a single hidden token field.
type GatewayClient interface {
	Provider() string
	CreateHostedSession(ctx context.Context, req *HostedSessionRequest) (*HostedSession, error)
}

type HostedSessionRequest struct {
	ReferenceID   string
	InvoiceNumber string
	Amount        decimal.Decimal
	ReturnURL     string
	CancelURL     string
}

type HostedSession struct {
	Token       string
	CheckoutURL string
}

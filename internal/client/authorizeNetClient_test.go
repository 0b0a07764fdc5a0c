package client

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"farmland-checkout/internal/config"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizeNet_CreateHostedSession(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		// real responses carry a BOM
		w.Write([]byte("\xef\xbb\xbf" + `{"token":"tok-123","messages":{"resultCode":"Ok","message":[{"code":"I00001","text":"Successful."}]}}`))
	}))
	defer srv.Close()

	c := NewAuthorizeNetClient(&config.Gateway{
		APIURL:         srv.URL,
		HostedPageURL:  "https://test.authorize.net/payment/payment",
		LoginID:        "login",
		TransactionKey: "key",
	})

	session, err := c.CreateHostedSession(context.Background(), &HostedSessionRequest{
		ReferenceID:   "FD-1704067200000-12.72",
		InvoiceNumber: "INV00000000000000001",
		Amount:        decimal.RequireFromString("12.72"),
		ReturnURL:     "http://localhost:8090/order-confirmation",
		CancelURL:     "http://localhost:8090/",
	})
	require.NoError(t, err)

	assert.Equal(t, "tok-123", session.Token)
	assert.Equal(t, "https://test.authorize.net/payment/payment", session.CheckoutURL)

	req := captured["getHostedPaymentPageRequest"].(map[string]any)
	txReq := req["transactionRequest"].(map[string]any)
	assert.Equal(t, "12.72", txReq["amount"])
	assert.Equal(t, "authCaptureTransaction", txReq["transactionType"])
	assert.Equal(t, "INV00000000000000001", txReq["order"].(map[string]any)["invoiceNumber"])
}

func TestAuthorizeNet_CreateHostedSessionRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"messages":{"resultCode":"Error","message":[{"code":"E00007","text":"User authentication failed."}]}}`))
	}))
	defer srv.Close()

	c := NewAuthorizeNetClient(&config.Gateway{APIURL: srv.URL})

	_, err := c.CreateHostedSession(context.Background(), &HostedSessionRequest{Amount: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.ErrorContains(t, err, "E00007")
}

func TestAuthorizeNet_CreateHostedSessionHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewAuthorizeNetClient(&config.Gateway{APIURL: srv.URL})

	_, err := c.CreateHostedSession(context.Background(), &HostedSessionRequest{Amount: decimal.NewFromInt(1)})
	assert.ErrorContains(t, err, "authorize.net error 502")
}

func TestAuthorizeNet_VerifyWebhookSignature(t *testing.T) {
	key := "4A1B2C3D4E5F"
	body := []byte(`{"notificationId":"n1"}`)
	c := NewAuthorizeNetClient(&config.Gateway{SignatureKey: key})

	valid := "sha512=" + hex.EncodeToString(SignWebhookBody(key, body))

	assert.NoError(t, c.VerifyWebhookSignature(valid, body))
	assert.NoError(t, c.VerifyWebhookSignature("SHA512="+hex.EncodeToString(SignWebhookBody(key, body)), body))
	assert.ErrorIs(t, c.VerifyWebhookSignature(valid, []byte(`{"notificationId":"n2"}`)), ErrInvalidSignature)
	assert.ErrorIs(t, c.VerifyWebhookSignature("md5=abc", body), ErrInvalidSignature)
	assert.ErrorIs(t, c.VerifyWebhookSignature("sha512=zz", body), ErrInvalidSignature)
}

func TestAuthorizeNet_VerifyWithoutKey(t *testing.T) {
	c := NewAuthorizeNetClient(&config.Gateway{})
	assert.ErrorIs(t, c.VerifyWebhookSignature("sha512=00", nil), ErrInvalidSignature)
}

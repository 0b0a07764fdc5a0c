package client

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"farmland-checkout/internal/config"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

type AuthorizeNetClient interface {
	GatewayClient
	VerifyWebhookSignature(signatureHeader string, body []byte) error
}

type authorizeNetClientImpl struct {
	httpClient     *http.Client
	apiURL         string
	hostedPageURL  string
	loginID        string
	transactionKey string
	signatureKey   string
}

func NewAuthorizeNetClient(cfg *config.Gateway) AuthorizeNetClient {
	return &authorizeNetClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		apiURL:         cfg.APIURL,
		hostedPageURL:  cfg.HostedPageURL,
		loginID:        cfg.LoginID,
		transactionKey: cfg.TransactionKey,
		signatureKey:   cfg.SignatureKey,
	}
}

type anetMerchantAuth struct {
	Name           string `json:"name"`
	TransactionKey string `json:"transactionKey"`
}

type anetSetting struct {
	SettingName  string `json:"settingName"`
	SettingValue string `json:"settingValue"`
}

type anetHostedPageRequest struct {
	GetHostedPaymentPageRequest struct {
		MerchantAuthentication anetMerchantAuth `json:"merchantAuthentication"`
		RefID                  string           `json:"refId,omitempty"`
		TransactionRequest     struct {
			TransactionType string `json:"transactionType"`
			Amount          string `json:"amount"`
			Order           struct {
				InvoiceNumber string `json:"invoiceNumber"`
			} `json:"order"`
		} `json:"transactionRequest"`
		HostedPaymentSettings struct {
			Setting []anetSetting `json:"setting"`
		} `json:"hostedPaymentSettings"`
	} `json:"getHostedPaymentPageRequest"`
}

type anetMessages struct {
	ResultCode string `json:"resultCode"`
	Message    []struct {
		Code string `json:"code"`
		Text string `json:"text"`
	} `json:"message"`
}

type anetHostedPageResponse struct {
	Token    string       `json:"token"`
	Messages anetMessages `json:"messages"`
}

func (c *authorizeNetClientImpl) Provider() string {
	return ProviderAuthorizeNet
}

func (c *authorizeNetClientImpl) CreateHostedSession(ctx context.Context, in *HostedSessionRequest) (*HostedSession, error) {
	var payload anetHostedPageRequest
	req := &payload.GetHostedPaymentPageRequest
	req.MerchantAuthentication = anetMerchantAuth{Name: c.loginID, TransactionKey: c.transactionKey}
	req.RefID = in.InvoiceNumber
	req.TransactionRequest.TransactionType = "authCaptureTransaction"
	req.TransactionRequest.Amount = in.Amount.StringFixed(2)
	req.TransactionRequest.Order.InvoiceNumber = in.InvoiceNumber

	returnOptions, err := json.Marshal(map[string]interface{}{
		"showReceipt":   false,
		"url":           in.ReturnURL,
		"urlText":       "Continue",
		"cancelUrl":     in.CancelURL,
		"cancelUrlText": "Cancel",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal return options: %w", err)
	}
	req.HostedPaymentSettings.Setting = []anetSetting{
		{SettingName: "hostedPaymentReturnOptions", SettingValue: string(returnOptions)},
		{SettingName: "hostedPaymentOrderOptions", SettingValue: `{"show": false}`},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal req payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("authorize.net request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read authorize.net response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("authorize.net error %d: %s", resp.StatusCode, string(raw))
	}

	// authorize.net prefixes JSON bodies with a UTF-8 BOM
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	var result anetHostedPageResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode authorize.net response: %w", err)
	}
	if result.Messages.ResultCode != "Ok" || result.Token == "" {
		return nil, fmt.Errorf("authorize.net rejected session: %s", result.Messages.text())
	}

	return &HostedSession{
		Token:       result.Token,
		CheckoutURL: c.hostedPageURL,
	}, nil
}

// VerifyWebhookSignature checks X-ANET-Signature: "sha512=" followed by the
// hex HMAC-SHA512 of the body keyed with the signature key.
func (c *authorizeNetClientImpl) VerifyWebhookSignature(signatureHeader string, body []byte) error {
	if c.signatureKey == "" {
		return fmt.Errorf("signature key not configured: %w", ErrInvalidSignature)
	}

	got, ok := strings.CutPrefix(strings.ToLower(strings.TrimSpace(signatureHeader)), "sha512=")
	if !ok {
		return ErrInvalidSignature
	}
	sig, err := hex.DecodeString(got)
	if err != nil {
		return ErrInvalidSignature
	}

	if !hmac.Equal(sig, SignWebhookBody(c.signatureKey, body)) {
		return ErrInvalidSignature
	}
	return nil
}

// SignWebhookBody computes the raw authorize.net webhook signature.
func SignWebhookBody(signatureKey string, body []byte) []byte {
	key, err := hex.DecodeString(signatureKey)
	if err != nil {
		key = []byte(signatureKey)
	}
	mac := hmac.New(sha512.New, key)
	mac.Write(body)
	return mac.Sum(nil)
}

func (m anetMessages) text() string {
	parts := make([]string, 0, len(m.Message))
	for _, msg := range m.Message {
		parts = append(parts, msg.Code+" "+msg.Text)
	}
	if len(parts) == 0 {
		return m.ResultCode
	}
	return strings.Join(parts, "; ")
}

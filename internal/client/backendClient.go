package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"farmland-checkout/internal/dto"
	"farmland-checkout/internal/rewards"

	"github.com/sony/gobreaker/v2"
)

// APIError is a non-2xx answer from the storefront backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// BackendClient talks to the storefront API on behalf of one signed-in
// shopper. Transport failures and 5xx answers count against a circuit
// breaker so a struggling backend is not hammered by the status poller.
type BackendClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	breaker    *gobreaker.CircuitBreaker[*backendResponse]
}

type backendResponse struct {
	status int
	body   []byte
}

func NewBackendClient(baseURL, token string, timeout time.Duration, log *slog.Logger) *BackendClient {
	return &BackendClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		token:      token,
		breaker: gobreaker.NewCircuitBreaker[*backendResponse](gobreaker.Settings{
			Name:        "storefront-backend",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

func (c *BackendClient) CreateTransaction(ctx context.Context, req *dto.CreateTransactionRequest) (*dto.CreateTransactionResponse, error) {
	var out dto.CreateTransactionResponse
	if err := c.do(ctx, http.MethodPost, "/api/authorize/create-transaction", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *BackendClient) CheckPaymentStatus(ctx context.Context, referenceID string) (*dto.PaymentStatusResponse, error) {
	var out dto.PaymentStatusResponse
	path := "/api/authorize/check-payment-status?referenceId=" + url.QueryEscape(referenceID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *BackendClient) GetProfile(ctx context.Context) (*dto.ProfileResponse, error) {
	var out dto.ProfileResponse
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *BackendClient) GetOrder(ctx context.Context, orderNumber string) (*dto.OrderResponse, error) {
	var out dto.OrderResponse
	if err := c.do(ctx, http.MethodGet, "/api/orders/"+url.PathEscape(orderNumber), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *BackendClient) ListOrders(ctx context.Context) ([]*dto.OrderResponse, error) {
	var out []*dto.OrderResponse
	if err := c.do(ctx, http.MethodGet, "/api/orders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BackendClient) CancelOrder(ctx context.Context, orderNumber string) (*dto.CancelOrderResponse, error) {
	var out dto.CancelOrderResponse
	if err := c.do(ctx, http.MethodPost, "/api/orders/"+url.PathEscape(orderNumber)+"/cancel", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *BackendClient) Rewards(ctx context.Context) ([]*dto.RewardResponse, error) {
	var out []*dto.RewardResponse
	if err := c.do(ctx, http.MethodGet, "/api/rewards", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ClaimReward maps the backend's insufficient-points conflict to
// rewards.ErrInsufficientPoints.
func (c *BackendClient) ClaimReward(ctx context.Context, rewardID int) (*dto.ClaimRewardResponse, error) {
	var out dto.ClaimRewardResponse
	err := c.do(ctx, http.MethodPost, "/api/rewards/claim", dto.ClaimRewardRequest{RewardID: rewardID}, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict && apiErr.Message == rewards.ErrInsufficientPoints.Error() {
		return nil, rewards.ErrInsufficientPoints
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *BackendClient) Coupons(ctx context.Context, filter string) ([]*dto.CouponResponse, error) {
	var out []*dto.CouponResponse
	path := "/api/coupons"
	if filter != "" {
		path += "?filter=" + url.QueryEscape(filter)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BackendClient) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	resp, err := c.breaker.Execute(func() (*backendResponse, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		res, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()

		body, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, err
		}
		if res.StatusCode >= http.StatusInternalServerError {
			return nil, apiError(res.StatusCode, body)
		}
		return &backendResponse{status: res.StatusCode, body: body}, nil
	})
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.status < 200 || resp.status > 299 {
		return apiError(resp.status, resp.body)
	}
	if out == nil || len(resp.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func apiError(status int, body []byte) *APIError {
	var e dto.ErrorResponse
	if err := json.Unmarshal(body, &e); err != nil || e.Error == "" {
		e.Error = http.StatusText(status)
		if e.Error == "" {
			e.Error = "status " + strconv.Itoa(status)
		}
	}
	return &APIError{Status: status, Message: e.Error}
}

package dto

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// amounts travel as JSON numbers, not strings
	decimal.MarshalJSONWithoutQuotes = true
}

// ProductID is a catalog product id. Clients send it as a JSON number or
// a string; it is always written back as a string.
type ProductID string

func (p *ProductID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = ProductID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("product id must be a string or a number: %w", err)
	}
	*p = ProductID(n.String())
	return nil
}

type CartItem struct {
	ID       ProductID `json:"id"`
	Quantity int32     `json:"quantity"`
}

type CreateTransactionRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	ReferenceID string          `json:"referenceId"`
	CartItems   []*CartItem     `json:"cartItems"`
	UserID      *string         `json:"userId"`
	ReturnURL   string          `json:"returnUrl,omitempty"`
}

type CreateTransactionResponse struct {
	Token       string `json:"token"`
	CheckoutURL string `json:"checkoutUrl"`
}

const (
	StatusPaid    = "paid"
	StatusPending = "pending"
)

type PaymentStatusResponse struct {
	Status       string           `json:"status"`
	PointsEarned *int64           `json:"pointsEarned,omitempty"`
	OrderNumber  string           `json:"orderNumber,omitempty"`
	Total        *decimal.Decimal `json:"total,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type ProfileResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Points int64  `json:"points"`
}

type OrderResponse struct {
	OrderNumber  string          `json:"orderNumber"`
	ReferenceID  string          `json:"referenceId"`
	Total        decimal.Decimal `json:"total"`
	PointsEarned int64           `json:"pointsEarned"`
	OrderStatus  bool            `json:"orderStatus"`
	CancelStatus bool            `json:"cancelStatus"`
	Items        []*CartItem     `json:"items,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

type CancelOrderResponse struct {
	OrderNumber    string `json:"orderNumber"`
	PointsReversed int64  `json:"pointsReversed"`
	Points         int64  `json:"points"`
}

type RewardResponse struct {
	ID             int    `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	PointsRequired int64  `json:"pointsRequired"`
}

type ClaimRewardRequest struct {
	RewardID int `json:"rewardId"`
}

type CouponResponse struct {
	CouponCode        string    `json:"couponCode"`
	OrderNumber       string    `json:"orderNumber"`
	RewardTitle       string    `json:"rewardTitle"`
	RewardDescription string    `json:"rewardDescription"`
	PointsUsed        int64     `json:"pointsUsed"`
	Status            string    `json:"status"`
	ExpirationDate    time.Time `json:"expirationDate"`
	CreatedAt         time.Time `json:"createdAt"`
}

type ClaimRewardResponse struct {
	Coupon *CouponResponse `json:"coupon"`
	Points int64           `json:"points"`
}

type BraintreeChargeRequest struct {
	Nonce       string `json:"nonce" form:"nonce"`
	ReferenceID string `json:"referenceId" form:"referenceId"`
}

// ConfirmationMarker is the path fragment of the gateway return URL.
const ConfirmationMarker = "order-confirmation"

// Identity is the authenticated caller taken from the bearer token.
type Identity struct {
	UserID string
	Name   string
	Email  string
	Role   string
}

const RoleStaff = "staff"

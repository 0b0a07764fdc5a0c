package service

import (
	"errors"

	"farmland-checkout/internal/rewards"
)

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrUserMismatch        = errors.New("user does not match the authenticated caller")
	ErrDuplicateReference  = errors.New("reference id already used")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTransactionClosed   = errors.New("transaction is no longer pending")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotCancelable  = errors.New("order can no longer be canceled")
	ErrOrderCanceled       = errors.New("order was canceled")
	ErrRewardNotFound      = errors.New("reward not found")
	ErrCouponNotRedeemable = errors.New("coupon is not active")
	ErrInsufficientPoints  = rewards.ErrInsufficientPoints
)

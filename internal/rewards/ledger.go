package rewards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"farmland-checkout/internal/dto"
)

var ErrInsufficientPoints = errors.New("not enough points for this reward")

type Backend interface {
	GetProfile(ctx context.Context) (*dto.ProfileResponse, error)
	ClaimReward(ctx context.Context, rewardID int) (*dto.ClaimRewardResponse, error)
}

const (
	StepReadBalance = "read-balance"
	StepClaim       = "claim"
)

// CouponClaimError reports which claim step failed.
type CouponClaimError struct {
	Step string
	Err  error
}

func (e *CouponClaimError) Error() string {
	return fmt.Sprintf("coupon claim failed at %s: %v", e.Step, e.Err)
}

func (e *CouponClaimError) Unwrap() error {
	return e.Err
}

// Ledger spends loyalty points on catalog rewards. The deduction and the
// coupon insert happen in one server-side transaction.
type Ledger struct {
	backend Backend
	log     *slog.Logger
}

func NewLedger(backend Backend, log *slog.Logger) *Ledger {
	return &Ledger{backend: backend, log: log}
}

// Points returns the current balance.
func (l *Ledger) Points(ctx context.Context) (int64, error) {
	p, err := l.backend.GetProfile(ctx)
	if err != nil {
		return 0, err
	}
	return p.Points, nil
}

// Claim returns ErrInsufficientPoints without touching the backend when the
// balance is short.
func (l *Ledger) Claim(ctx context.Context, reward Reward) (*dto.ClaimRewardResponse, error) {
	points, err := l.Points(ctx)
	if err != nil {
		return nil, &CouponClaimError{Step: StepReadBalance, Err: err}
	}
	if points < reward.PointsRequired {
		return nil, ErrInsufficientPoints
	}

	resp, err := l.backend.ClaimReward(ctx, reward.ID)
	if err != nil {
		if errors.Is(err, ErrInsufficientPoints) {
			return nil, err
		}
		return nil, &CouponClaimError{Step: StepClaim, Err: err}
	}

	l.log.Info("reward claimed",
		"reward_id", reward.ID,
		"coupon_code", resp.Coupon.CouponCode,
		"points_left", resp.Points,
	)
	return resp, nil
}

package rewards

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"farmland-checkout/internal/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockBackend struct {
	points     int64
	profileErr error
	claimErr   error
	claimCalls []int
}

func (m *mockBackend) GetProfile(context.Context) (*dto.ProfileResponse, error) {
	if m.profileErr != nil {
		return nil, m.profileErr
	}
	return &dto.ProfileResponse{ID: "u1", Points: m.points}, nil
}

func (m *mockBackend) ClaimReward(_ context.Context, rewardID int) (*dto.ClaimRewardResponse, error) {
	m.claimCalls = append(m.claimCalls, rewardID)
	if m.claimErr != nil {
		return nil, m.claimErr
	}
	r, _ := Find(rewardID)
	m.points -= r.PointsRequired
	return &dto.ClaimRewardResponse{
		Coupon: &dto.CouponResponse{CouponCode: "RWD-000001-001", PointsUsed: r.PointsRequired},
		Points: m.points,
	}, nil
}

func newTestLedger(b Backend) *Ledger {
	return NewLedger(b, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClaim_Success(t *testing.T) {
	backend := &mockBackend{points: 250}
	reward, _ := Find(2)

	resp, err := newTestLedger(backend).Claim(context.Background(), reward)
	require.NoError(t, err)

	assert.Equal(t, int64(150), resp.Points)
	assert.Equal(t, int64(100), resp.Coupon.PointsUsed)
	assert.Equal(t, []int{2}, backend.claimCalls)
}

func TestClaim_InsufficientPointsIsNoop(t *testing.T) {
	backend := &mockBackend{points: 99}
	reward, _ := Find(2)

	_, err := newTestLedger(backend).Claim(context.Background(), reward)

	assert.ErrorIs(t, err, ErrInsufficientPoints)
	assert.Empty(t, backend.claimCalls)
	assert.Equal(t, int64(99), backend.points)
}

func TestClaim_ProfileFailure(t *testing.T) {
	backend := &mockBackend{profileErr: errors.New("timeout")}
	reward, _ := Find(1)

	_, err := newTestLedger(backend).Claim(context.Background(), reward)

	var claimErr *CouponClaimError
	require.ErrorAs(t, err, &claimErr)
	assert.Equal(t, StepReadBalance, claimErr.Step)
	assert.Empty(t, backend.claimCalls)
}

func TestClaim_ServerFailure(t *testing.T) {
	backend := &mockBackend{points: 500, claimErr: errors.New("500 internal")}
	reward, _ := Find(5)

	_, err := newTestLedger(backend).Claim(context.Background(), reward)

	var claimErr *CouponClaimError
	require.ErrorAs(t, err, &claimErr)
	assert.Equal(t, StepClaim, claimErr.Step)
	assert.ErrorContains(t, err, "500 internal")
}

func TestClaim_ServerRejectsRace(t *testing.T) {
	// balance dropped between the read and the claim
	backend := &mockBackend{points: 500, claimErr: ErrInsufficientPoints}
	reward, _ := Find(5)

	_, err := newTestLedger(backend).Claim(context.Background(), reward)
	assert.ErrorIs(t, err, ErrInsufficientPoints)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"farmland-checkout/internal/dto"
	"farmland-checkout/internal/events"
	"farmland-checkout/internal/model"
	"farmland-checkout/internal/repository"
	"farmland-checkout/internal/rewards"

	"gorm.io/gorm"
)

type RewardsService interface {
	Catalog(ctx context.Context) []*dto.RewardResponse
	Claim(ctx context.Context, caller dto.Identity, rewardID int) (*dto.ClaimRewardResponse, error)
	Coupons(ctx context.Context, userID string, filter model.CouponFilter) ([]*dto.CouponResponse, error)
	Redeem(ctx context.Context, couponCode string) error
}

type rewardsServiceImpl struct {
	db         *gorm.DB
	userRepo   repository.UserRepository
	couponRepo repository.CouponRepository
	publisher  events.Publisher
	log        *slog.Logger
	now        func() time.Time
	intn       rewards.IntN
}

func NewRewardsService(
	db *gorm.DB,
	userRepo repository.UserRepository,
	couponRepo repository.CouponRepository,
	publisher events.Publisher,
	log *slog.Logger,
) RewardsService {
	return &rewardsServiceImpl{
		db:         db,
		userRepo:   userRepo,
		couponRepo: couponRepo,
		publisher:  publisher,
		log:        log,
		now:        time.Now,
		intn:       rewards.DefaultIntN,
	}
}

func (s *rewardsServiceImpl) Catalog(_ context.Context) []*dto.RewardResponse {
	list := rewards.Catalog()
	out := make([]*dto.RewardResponse, len(list))
	for i, r := range list {
		out[i] = &dto.RewardResponse{
			ID:             r.ID,
			Title:          r.Title,
			Description:    r.Description,
			PointsRequired: r.PointsRequired,
		}
	}
	return out
}

// Claim deducts the reward's cost and issues a coupon in one transaction, so
// a failed insert never leaves the points spent.
func (s *rewardsServiceImpl) Claim(ctx context.Context, caller dto.Identity, rewardID int) (*dto.ClaimRewardResponse, error) {
	reward, ok := rewards.Find(rewardID)
	if !ok {
		return nil, ErrRewardNotFound
	}

	err := s.userRepo.EnsureExists(ctx, &model.User{ID: caller.UserID, Name: caller.Name, Email: caller.Email})
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	now := s.now()
	coupon := &model.Coupon{
		CouponCode:        rewards.NewCouponCode(now, s.intn),
		OrderNumber:       rewards.NewOrderNumber(now, s.intn),
		UserID:            caller.UserID,
		RewardTitle:       reward.Title,
		RewardDescription: reward.Description,
		PointsUsed:        reward.PointsRequired,
		Status:            model.CouponStatusActive,
		ExpirationDate:    rewards.ExpiresAt(now),
		CreatedAt:         now,
	}

	var remaining int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := s.userRepo.DeductPoints(ctx, tx, caller.UserID, reward.PointsRequired)
		if errors.Is(err, repository.ErrConditionNotMet) {
			return ErrInsufficientPoints
		}
		if err != nil {
			return fmt.Errorf("deduct points: %w", err)
		}

		if err := s.couponRepo.Create(ctx, tx, coupon); err != nil {
			return fmt.Errorf("store coupon: %w", err)
		}

		remaining, err = s.userRepo.Points(ctx, tx, caller.UserID)
		if err != nil {
			return fmt.Errorf("read points: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := toCouponResponse(coupon, now)
	s.log.Info("reward claimed", "user_id", caller.UserID, "reward_id", reward.ID, "coupon_code", coupon.CouponCode)

	if err := s.publisher.Publish(ctx, events.Event{
		Type:    events.TypeCouponClaimed,
		Key:     coupon.CouponCode,
		UserID:  caller.UserID,
		Payload: resp,
	}); err != nil {
		s.log.Warn("publish coupon claimed", "coupon_code", coupon.CouponCode, "error", err)
	}

	return &dto.ClaimRewardResponse{Coupon: resp, Points: remaining}, nil
}

func (s *rewardsServiceImpl) Coupons(ctx context.Context, userID string, filter model.CouponFilter) ([]*dto.CouponResponse, error) {
	now := s.now()
	coupons, err := s.couponRepo.ListByUser(ctx, userID, filter, now)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}

	out := make([]*dto.CouponResponse, len(coupons))
	for i, c := range coupons {
		out[i] = toCouponResponse(c, now)
	}
	return out, nil
}

func (s *rewardsServiceImpl) Redeem(ctx context.Context, couponCode string) error {
	err := s.couponRepo.MarkUsed(ctx, couponCode, s.now())
	if errors.Is(err, repository.ErrConditionNotMet) {
		return ErrCouponNotRedeemable
	}
	if err != nil {
		return fmt.Errorf("redeem coupon: %w", err)
	}
	s.log.Info("coupon redeemed", "coupon_code", couponCode)
	return nil
}

// toCouponResponse reports active coupons past their expiration as expired.
func toCouponResponse(c *model.Coupon, now time.Time) *dto.CouponResponse {
	status := c.Status
	if status == model.CouponStatusActive && !c.ExpirationDate.After(now) {
		status = model.CouponStatusExpired
	}
	return &dto.CouponResponse{
		CouponCode:        c.CouponCode,
		OrderNumber:       c.OrderNumber,
		RewardTitle:       c.RewardTitle,
		RewardDescription: c.RewardDescription,
		PointsUsed:        c.PointsUsed,
		Status:            string(status),
		ExpirationDate:    c.ExpirationDate,
		CreatedAt:         c.CreatedAt,
	}
}

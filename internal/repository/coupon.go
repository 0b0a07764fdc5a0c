package repository

import (
	"context"
	"farmland-checkout/internal/model"
	"time"

	"gorm.io/gorm"
)

type CouponRepository interface {
	Create(ctx context.Context, tx *gorm.DB, coupon *model.Coupon) error
	ListByUser(ctx context.Context, userID string, filter model.CouponFilter, now time.Time) ([]*model.Coupon, error)
	MarkUsed(ctx context.Context, couponCode string, now time.Time) error
}

type couponRepoImpl struct {
	db *gorm.DB
}

func NewCouponRepository(db *gorm.DB) CouponRepository {
	return &couponRepoImpl{
		db: db,
	}
}

func (r *couponRepoImpl) Create(ctx context.Context, tx *gorm.DB, coupon *model.Coupon) error {
	return tx.WithContext(ctx).Create(coupon).Error
}

func (r *couponRepoImpl) ListByUser(ctx context.Context, userID string, filter model.CouponFilter, now time.Time) ([]*model.Coupon, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)

	switch filter {
	case model.CouponFilterActive:
		q = q.Where("status = ? AND expiration_date > ?", model.CouponStatusActive, now)
	case model.CouponFilterUsed:
		q = q.Where("status = ?", model.CouponStatusUsed)
	case model.CouponFilterExpired:
		q = q.Where("status = ? OR (status = ? AND expiration_date <= ?)",
			model.CouponStatusExpired, model.CouponStatusActive, now)
	}

	var coupons []*model.Coupon
	if err := q.Order("created_at DESC").Find(&coupons).Error; err != nil {
		return nil, err
	}
	return coupons, nil
}

// MarkUsed redeems an active coupon that has not expired.
func (r *couponRepoImpl) MarkUsed(ctx context.Context, couponCode string, now time.Time) error {
	result := r.db.WithContext(ctx).Model(&model.Coupon{}).
		Where("coupon_code = ? AND status = ? AND expiration_date > ?", couponCode, model.CouponStatusActive, now).
		Updates(map[string]interface{}{
			"status":     model.CouponStatusUsed,
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConditionNotMet
	}
	return nil
}

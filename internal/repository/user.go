package repository

import (
	"context"
	"farmland-checkout/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository interface {
	EnsureExists(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, userID string) (*model.User, error)
	Points(ctx context.Context, tx *gorm.DB, userID string) (int64, error)
	AddPoints(ctx context.Context, tx *gorm.DB, userID string, delta int64) error
	DeductPoints(ctx context.Context, tx *gorm.DB, userID string, amount int64) error
	ReversePoints(ctx context.Context, tx *gorm.DB, userID string, amount int64) error
}

type userRepoImpl struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepoImpl{
		db: db,
	}
}

// EnsureExists inserts the user row on first sight and leaves existing rows alone.
func (r *userRepoImpl) EnsureExists(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(user).Error
}

func (r *userRepoImpl) FindByID(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("id = ?", userID).
		First(&user).Error
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userRepoImpl) Points(ctx context.Context, tx *gorm.DB, userID string) (int64, error) {
	var user model.User
	err := tx.WithContext(ctx).
		Select("points").
		Where("id = ?", userID).
		First(&user).Error
	return user.Points, err
}

func (r *userRepoImpl) AddPoints(ctx context.Context, tx *gorm.DB, userID string, delta int64) error {
	result := tx.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"points":     gorm.Expr("points + ?", delta),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeductPoints subtracts amount only when the balance covers it.
func (r *userRepoImpl) DeductPoints(ctx context.Context, tx *gorm.DB, userID string, amount int64) error {
	result := tx.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND points >= ?", userID, amount).
		Updates(map[string]interface{}{
			"points":     gorm.Expr("points - ?", amount),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConditionNotMet
	}
	return nil
}

// ReversePoints subtracts amount, flooring the balance at zero.
func (r *userRepoImpl) ReversePoints(ctx context.Context, tx *gorm.DB, userID string, amount int64) error {
	result := tx.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"points":     gorm.Expr("CASE WHEN points > ? THEN points - ? ELSE 0 END", amount, amount),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

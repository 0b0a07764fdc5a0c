package repository

import (
	"context"
	"farmland-checkout/internal/model"
	"time"

	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	CreateOrderItems(ctx context.Context, tx *gorm.DB, items []*model.OrderItem) error
	Exists(ctx context.Context, tx *gorm.DB, orderNumber string) (bool, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error)
	GetOrderItems(ctx context.Context, orderNumber string) ([]*model.OrderItem, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Order, error)
	MarkReady(ctx context.Context, orderNumber string) error
	MarkCanceled(ctx context.Context, tx *gorm.DB, orderNumber, userID string, placedAfter time.Time) (*model.Order, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return tx.WithContext(ctx).Create(order).Error
}

func (r *orderRepoImpl) CreateOrderItems(ctx context.Context, tx *gorm.DB, items []*model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&items).Error
}

func (r *orderRepoImpl) Exists(ctx context.Context, tx *gorm.DB, orderNumber string) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&model.Order{}).
		Where("order_number = ?", orderNumber).
		Count(&count).Error

	return count > 0, err
}

func (r *orderRepoImpl) FindByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("order_number = ?", orderNumber).
		First(&order).Error
	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) GetOrderItems(ctx context.Context, orderNumber string) ([]*model.OrderItem, error) {
	var items []*model.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_number = ?", orderNumber).
		Order("id").
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	return items, nil
}

func (r *orderRepoImpl) ListByUser(ctx context.Context, userID string) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *orderRepoImpl) MarkReady(ctx context.Context, orderNumber string) error {
	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_number = ? AND cancel_status = ?", orderNumber, false).
		Updates(map[string]interface{}{
			"order_status": true,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConditionNotMet
	}
	return nil
}

// MarkCanceled cancels an order owned by userID that is neither ready nor
// canceled and was placed after placedAfter. It returns the canceled row.
func (r *orderRepoImpl) MarkCanceled(ctx context.Context, tx *gorm.DB, orderNumber, userID string, placedAfter time.Time) (*model.Order, error) {
	result := tx.WithContext(ctx).Model(&model.Order{}).
		Where(`
			order_number = ?
			AND user_id = ?
			AND order_status = ?
			AND cancel_status = ?
			AND created_at > ?
		`,
			orderNumber, userID, false, false, placedAfter,
		).
		Updates(map[string]interface{}{
			"cancel_status": true,
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrConditionNotMet
	}

	var order model.Order
	if err := tx.WithContext(ctx).Where("order_number = ?", orderNumber).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

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

	"gorm.io/gorm"
)

type OrderService interface {
	List(ctx context.Context, userID string) ([]*dto.OrderResponse, error)
	Get(ctx context.Context, userID, orderNumber string) (*dto.OrderResponse, error)
	Cancel(ctx context.Context, userID, orderNumber string) (*dto.CancelOrderResponse, error)
	MarkReady(ctx context.Context, orderNumber string) error
}

type orderServiceImpl struct {
	db           *gorm.DB
	orderRepo    repository.OrderRepository
	userRepo     repository.UserRepository
	publisher    events.Publisher
	cancelWindow time.Duration
	log          *slog.Logger
	now          func() time.Time
}

func NewOrderService(
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	userRepo repository.UserRepository,
	publisher events.Publisher,
	cancelWindow time.Duration,
	log *slog.Logger,
) OrderService {
	return &orderServiceImpl{
		db:           db,
		orderRepo:    orderRepo,
		userRepo:     userRepo,
		publisher:    publisher,
		cancelWindow: cancelWindow,
		log:          log,
		now:          time.Now,
	}
}

func (s *orderServiceImpl) List(ctx context.Context, userID string) ([]*dto.OrderResponse, error) {
	orders, err := s.orderRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	out := make([]*dto.OrderResponse, len(orders))
	for i, o := range orders {
		out[i] = toOrderResponse(o, nil)
	}
	return out, nil
}

func (s *orderServiceImpl) Get(ctx context.Context, userID, orderNumber string) (*dto.OrderResponse, error) {
	order, err := s.findOwned(ctx, userID, orderNumber)
	if err != nil {
		return nil, err
	}

	items, err := s.orderRepo.GetOrderItems(ctx, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	return toOrderResponse(order, items), nil
}

// Cancel flips the order to canceled and takes back the points it earned,
// never letting the balance go below zero. Both writes share one transaction.
func (s *orderServiceImpl) Cancel(ctx context.Context, userID, orderNumber string) (*dto.CancelOrderResponse, error) {
	if _, err := s.findOwned(ctx, userID, orderNumber); err != nil {
		return nil, err
	}

	var (
		order     *model.Order
		remaining int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.orderRepo.MarkCanceled(ctx, tx, orderNumber, userID, s.now().Add(-s.cancelWindow))
		if errors.Is(err, repository.ErrConditionNotMet) {
			return ErrOrderNotCancelable
		}
		if err != nil {
			return fmt.Errorf("mark order canceled: %w", err)
		}

		if order.PointsEarned > 0 {
			if err := s.userRepo.ReversePoints(ctx, tx, userID, order.PointsEarned); err != nil {
				return fmt.Errorf("reverse points: %w", err)
			}
		}

		remaining, err = s.userRepo.Points(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("read points: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order canceled", "order_number", orderNumber, "points_reversed", order.PointsEarned)
	s.publish(ctx, events.TypeOrderCanceled, order)

	return &dto.CancelOrderResponse{
		OrderNumber:    orderNumber,
		PointsReversed: order.PointsEarned,
		Points:         remaining,
	}, nil
}

func (s *orderServiceImpl) MarkReady(ctx context.Context, orderNumber string) error {
	err := s.orderRepo.MarkReady(ctx, orderNumber)
	if errors.Is(err, repository.ErrConditionNotMet) {
		if _, findErr := s.orderRepo.FindByOrderNumber(ctx, orderNumber); errors.Is(findErr, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		return ErrOrderCanceled
	}
	if err != nil {
		return fmt.Errorf("mark order ready: %w", err)
	}

	order, err := s.orderRepo.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return fmt.Errorf("reload order: %w", err)
	}

	s.log.Info("order ready", "order_number", orderNumber)
	s.publish(ctx, events.TypeOrderReady, order)
	return nil
}

func (s *orderServiceImpl) findOwned(ctx context.Context, userID, orderNumber string) (*model.Order, error) {
	order, err := s.orderRepo.FindByOrderNumber(ctx, orderNumber)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *orderServiceImpl) publish(ctx context.Context, eventType string, order *model.Order) {
	err := s.publisher.Publish(ctx, events.Event{
		Type:    eventType,
		Key:     order.OrderNumber,
		UserID:  order.UserID,
		Payload: toOrderResponse(order, nil),
	})
	if err != nil {
		s.log.Warn("publish order event", "type", eventType, "order_number", order.OrderNumber, "error", err)
	}
}

func toOrderResponse(o *model.Order, items []*model.OrderItem) *dto.OrderResponse {
	resp := &dto.OrderResponse{
		OrderNumber:  o.OrderNumber,
		ReferenceID:  o.ReferenceID,
		Total:        o.Total,
		PointsEarned: o.PointsEarned,
		OrderStatus:  o.OrderStatus,
		CancelStatus: o.CancelStatus,
		CreatedAt:    o.CreatedAt,
	}
	for _, item := range items {
		resp.Items = append(resp.Items, &dto.CartItem{ID: dto.ProductID(item.ProductID), Quantity: item.Quantity})
	}
	return resp
}

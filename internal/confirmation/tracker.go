// Package confirmation drives the order-confirmation view: a pickup
// countdown corrected by the order's server-side status.
package confirmation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"farmland-checkout/internal/cache"
	"farmland-checkout/internal/dto"
	"farmland-checkout/internal/notify"
	"farmland-checkout/internal/scheduler"

	"github.com/facebookgo/clock"
)

type State int

const (
	StateCountingDown State = iota
	StateReady
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateCountingDown:
		return "counting-down"
	case StateReady:
		return "ready"
	case StateCanceled:
		return "canceled"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	ErrNotCancelable  = errors.New("order can only be canceled while counting down")
	ErrCancelDeclined = errors.New("cancellation not confirmed")
)

const (
	MessagePickup = "Your order should be ready for pickup!"
	MessageReady  = "Your order is ready for pickup!"
)

// TimerKey is where an order's countdown start is persisted.
func TimerKey(orderNumber string) string {
	return "order_timer_start:" + orderNumber
}

type OrderService interface {
	GetOrder(ctx context.Context, orderNumber string) (*dto.OrderResponse, error)
	CancelOrder(ctx context.Context, orderNumber string) (*dto.CancelOrderResponse, error)
}

type Config struct {
	Countdown      time.Duration
	PollInterval   time.Duration
	RequestTimeout time.Duration
}

// Snapshot is what the view renders.
type Snapshot struct {
	State     State
	Remaining time.Duration
	// PickupReady is set when the countdown ran out before the server
	// reported the order ready. It changes nothing server side.
	PickupReady bool
}

// Tracker serves a single visit to the confirmation view of one order.
type Tracker struct {
	orderNumber string
	orders      OrderService
	store       cache.TimerStore
	notifier    notify.Notifier
	clock       clock.Clock
	sched       *scheduler.Scheduler
	cfg         Config
	log         *slog.Logger

	mu          sync.Mutex
	state       State
	startedAt   time.Time
	pickupReady bool
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewTracker(
	orderNumber string,
	orders OrderService,
	store cache.TimerStore,
	notifier notify.Notifier,
	clk clock.Clock,
	cfg Config,
	log *slog.Logger,
) *Tracker {
	return &Tracker{
		orderNumber: orderNumber,
		orders:      orders,
		store:       store,
		notifier:    notifier,
		clock:       clk,
		sched:       scheduler.New(clk),
		cfg:         cfg,
		log:         log.With("order_number", orderNumber),
		state:       StateCountingDown,
	}
}

// Start begins the countdown, or resumes it from the persisted start, and
// begins polling the order.
func (t *Tracker) Start(ctx context.Context) {
	now := t.clock.Now()
	start, err := t.store.StartOrResume(ctx, TimerKey(t.orderNumber), now)
	if err != nil {
		t.log.Warn("countdown start not persisted", "error", err)
		start = now
	}

	t.mu.Lock()
	t.ctx, t.cancel = context.WithCancel(context.WithoutCancel(ctx))
	t.startedAt = start
	remaining := t.remainingLocked(now)
	if remaining <= 0 {
		t.pickupReady = true
	} else {
		t.sched.After(remaining, t.expire)
	}
	t.sched.After(t.cfg.PollInterval, t.poll)
	expired := t.pickupReady
	t.mu.Unlock()

	if expired {
		t.notifier.Info(MessagePickup)
	}
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		State:       t.state,
		Remaining:   t.remainingLocked(t.clock.Now()),
		PickupReady: t.pickupReady,
	}
}

func (t *Tracker) remainingLocked(now time.Time) time.Duration {
	if t.state != StateCountingDown || t.startedAt.IsZero() {
		return 0
	}
	return max(t.cfg.Countdown-now.Sub(t.startedAt), 0)
}

func (t *Tracker) expire() {
	t.mu.Lock()
	if t.state != StateCountingDown || t.pickupReady {
		t.mu.Unlock()
		return
	}
	t.pickupReady = true
	t.mu.Unlock()

	t.notifier.Info(MessagePickup)
}

func (t *Tracker) poll() {
	t.mu.Lock()
	if t.state != StateCountingDown {
		t.mu.Unlock()
		return
	}
	ctx := t.ctx
	t.mu.Unlock()

	reqCtx := ctx
	if t.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, t.cfg.RequestTimeout)
		defer cancel()
	}
	order, err := t.orders.GetOrder(reqCtx, t.orderNumber)

	t.mu.Lock()
	if t.state != StateCountingDown {
		t.mu.Unlock()
		return
	}
	switch {
	case err != nil:
		t.log.Debug("order status poll failed", "error", err)
	case order.CancelStatus:
		t.state = StateCanceled
	case order.OrderStatus:
		t.state = StateReady
	}
	next := t.state
	if next == StateCountingDown {
		t.sched.After(t.cfg.PollInterval, t.poll)
	}
	t.mu.Unlock()

	switch next {
	case StateReady:
		t.sched.Stop()
		t.log.Info("order ready")
		t.notifier.Success(MessageReady)
	case StateCanceled:
		t.sched.Stop()
		t.log.Info("order canceled elsewhere")
		t.notifier.Info("This order was canceled.")
	}
}

// Cancel asks the shopper to confirm, then cancels the order server side.
// The server reverses the order's points.
func (t *Tracker) Cancel(ctx context.Context) (*dto.CancelOrderResponse, error) {
	if t.Snapshot().State != StateCountingDown {
		return nil, ErrNotCancelable
	}

	ok, err := t.notifier.Confirm(ctx, "Cancel order",
		fmt.Sprintf("Cancel order %s? Points earned on it will be taken back.", t.orderNumber))
	if err != nil {
		return nil, fmt.Errorf("confirm cancel: %w", err)
	}
	if !ok {
		return nil, ErrCancelDeclined
	}

	resp, err := t.orders.CancelOrder(ctx, t.orderNumber)
	if err != nil {
		t.notifier.Error("Could not cancel the order.")
		return nil, fmt.Errorf("cancel order %s: %w", t.orderNumber, err)
	}

	t.mu.Lock()
	t.state = StateCanceled
	t.mu.Unlock()
	t.sched.Stop()

	t.log.Info("order canceled", "points_reversed", resp.PointsReversed)
	msg := fmt.Sprintf("Order %s was canceled. %d points were reversed; your balance is %d.",
		t.orderNumber, resp.PointsReversed, resp.Points)
	if err := t.notifier.Alert(ctx, "Order canceled", msg); err != nil {
		t.log.Warn("cancel alert", "error", err)
	}
	return resp, nil
}

// Leave stops all timers and forgets the persisted countdown start.
func (t *Tracker) Leave(ctx context.Context) {
	t.sched.Stop()

	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if err := t.store.Clear(ctx, TimerKey(t.orderNumber)); err != nil {
		t.log.Warn("clear countdown start", "error", err)
	}
}

// Package poller verifies a payment by polling the status endpoint on a
// fixed interval with a bounded retry budget.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"farmland-checkout/internal/dto"
	"farmland-checkout/internal/notify"
	"farmland-checkout/internal/scheduler"

	"github.com/facebookgo/clock"
)

type State int

const (
	StateIdle State = iota
	StatePolling
	StateSucceeded
	StateExhausted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateSucceeded:
		return "succeeded"
	case StateExhausted:
		return "exhausted"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateExhausted || s == StateStopped
}

// StatusPollError is one failed status lookup. It is retried, never shown.
type StatusPollError struct {
	Attempt int
	Err     error
}

func (e *StatusPollError) Error() string {
	return fmt.Sprintf("status poll attempt %d: %v", e.Attempt, e.Err)
}

func (e *StatusPollError) Unwrap() error {
	return e.Err
}

type StatusChecker interface {
	CheckPaymentStatus(ctx context.Context, referenceID string) (*dto.PaymentStatusResponse, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, status *dto.PaymentStatusResponse) error
}

type Navigator interface {
	Back(ctx context.Context) error
}

type Config struct {
	RetryInterval  time.Duration
	MaxRetries     int
	SuccessDelay   time.Duration
	GoBackDelay    time.Duration
	RequestTimeout time.Duration
}

const (
	MessageConfirmed = "Payment confirmed!"
	MessagePending   = "Payment is still being verified. Your order will update once it is confirmed."
)

// Poller is bound to one checkout view. Stop it when the view goes away.
type Poller struct {
	checker    StatusChecker
	reconciler Reconciler
	nav        Navigator
	notifier   notify.Notifier
	sched      *scheduler.Scheduler
	cfg        Config
	log        *slog.Logger

	mu          sync.Mutex
	state       State
	attempt     int
	referenceID string
	ctx         context.Context
	cancel      context.CancelFunc
}

func New(
	checker StatusChecker,
	reconciler Reconciler,
	nav Navigator,
	notifier notify.Notifier,
	clk clock.Clock,
	cfg Config,
	log *slog.Logger,
) *Poller {
	return &Poller{
		checker:    checker,
		reconciler: reconciler,
		nav:        nav,
		notifier:   notifier,
		sched:      scheduler.New(clk),
		cfg:        cfg,
		log:        log,
		state:      StateIdle,
	}
}

// Start schedules the first lookup after delay. It reports false, doing
// nothing, unless the poller is idle.
func (p *Poller) Start(ctx context.Context, referenceID string, delay time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateIdle {
		return false
	}

	// the chain outlives the request that triggered it but not Stop
	p.ctx, p.cancel = context.WithCancel(context.WithoutCancel(ctx))
	p.state = StatePolling
	p.attempt = 0
	p.referenceID = referenceID
	p.sched.After(delay, func() { p.poll(0) })

	p.log.Info("payment verification scheduled", "reference_id", referenceID, "delay", delay)
	return true
}

// Stop cancels any pending lookup or follow-up and ends the chain.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.state == StateStopped {
		p.mu.Unlock()
		return
	}
	p.state = StateStopped
	cancel := p.cancel
	p.mu.Unlock()

	p.sched.Stop()
	if cancel != nil {
		cancel()
	}
}

// State returns the current state and, while polling, the attempt number.
func (p *Poller) State() (State, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.attempt
}

func (p *Poller) poll(attempt int) {
	p.mu.Lock()
	if p.state != StatePolling || p.attempt != attempt {
		p.mu.Unlock()
		return
	}
	ctx, ref := p.ctx, p.referenceID
	p.mu.Unlock()

	reqCtx := ctx
	if p.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, p.cfg.RequestTimeout)
		defer cancel()
	}
	status, err := p.checker.CheckPaymentStatus(reqCtx, ref)

	p.mu.Lock()
	if p.state != StatePolling {
		p.mu.Unlock()
		return
	}

	if err == nil && status.Status == dto.StatusPaid {
		// leave polling before anything else so a second paid answer cannot reconcile twice
		p.state = StateSucceeded
		p.mu.Unlock()
		p.succeed(ctx, status)
		return
	}

	if err != nil {
		p.log.Warn("payment status lookup failed", "reference_id", ref, "error", &StatusPollError{Attempt: attempt, Err: err})
	} else {
		p.log.Debug("payment still pending", "reference_id", ref, "attempt", attempt)
	}

	if attempt >= p.cfg.MaxRetries {
		p.state = StateExhausted
		p.mu.Unlock()
		p.exhaust(ctx, ref)
		return
	}

	next := attempt + 1
	p.attempt = next
	p.sched.After(p.cfg.RetryInterval, func() { p.poll(next) })
	p.mu.Unlock()
}

func (p *Poller) succeed(ctx context.Context, status *dto.PaymentStatusResponse) {
	p.log.Info("payment confirmed", "reference_id", p.referenceID, "order_number", status.OrderNumber)
	p.notifier.Success(MessageConfirmed)

	p.sched.After(p.cfg.SuccessDelay, func() {
		if err := p.reconciler.Reconcile(ctx, status); err != nil {
			p.log.Error("reconcile order", "order_number", status.OrderNumber, "error", err)
		}
	})
}

func (p *Poller) exhaust(ctx context.Context, ref string) {
	p.log.Warn("payment verification still pending", "reference_id", ref, "retries", p.cfg.MaxRetries)
	p.notifier.Pending(MessagePending)

	p.sched.After(p.cfg.GoBackDelay, func() {
		if err := p.nav.Back(ctx); err != nil {
			p.log.Error("navigate back after verification", "error", err)
		}
	})
}

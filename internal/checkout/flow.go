package checkout

import (
	"context"
	"log/slog"
	"time"

	"farmland-checkout/internal/cart"
	"farmland-checkout/internal/dto"
	"farmland-checkout/internal/intercept"
	"farmland-checkout/internal/navigation"
	"farmland-checkout/internal/notify"
	"farmland-checkout/internal/poller"
	"farmland-checkout/internal/reconcile"

	"github.com/facebookgo/clock"
)

// Backend is the slice of the storefront API a checkout attempt needs.
type Backend interface {
	SessionCreator
	poller.StatusChecker
}

type Timings struct {
	InitialDelay   time.Duration
	RetryInterval  time.Duration
	MaxRetries     int
	SuccessDelay   time.Duration
	GoBackDelay    time.Duration
	RequestTimeout time.Duration
}

type FlowDeps struct {
	Backend         Backend
	Cart            *cart.Store
	Router          *navigation.Router
	Notifier        notify.Notifier
	Clock           clock.Clock
	Timings         Timings
	ReferencePrefix string
	ReturnURL       string
	UserID          *string
	Log             *slog.Logger
}

// Flow creates checkout attempts for the kiosk's cart.
type Flow struct {
	deps      FlowDeps
	initiator *Initiator
}

func NewFlow(deps FlowDeps) *Flow {
	return &Flow{
		deps:      deps,
		initiator: NewInitiator(deps.Backend, deps.ReturnURL, deps.Log),
	}
}

// Attempt lives exactly as long as the checkout view that owns it.
type Attempt struct {
	Session *Session
	Layer   *intercept.Layer
	poller  *poller.Poller
}

// Begin prices the cart, opens a gateway session and prepares the
// interception layer. Nothing is polled until the layer sees the return.
func (f *Flow) Begin(ctx context.Context) (*Attempt, error) {
	amount := f.deps.Cart.Total()
	ref := NewReferenceID(f.deps.ReferencePrefix, f.deps.Clock.Now(), amount)
	log := f.deps.Log.With("reference_id", ref)

	session, err := f.initiator.Initiate(ctx, amount, ref, f.deps.Cart.Snapshot(), f.deps.UserID)
	if err != nil {
		return nil, err
	}

	t := f.deps.Timings
	rec := &returnFiller{next: reconcile.New(f.deps.Cart, f.deps.Router, f.deps.Notifier, log)}
	p := poller.New(f.deps.Backend, rec, f.deps.Router, f.deps.Notifier, f.deps.Clock, poller.Config{
		RetryInterval:  t.RetryInterval,
		MaxRetries:     t.MaxRetries,
		SuccessDelay:   t.SuccessDelay,
		GoBackDelay:    t.GoBackDelay,
		RequestTimeout: t.RequestTimeout,
	}, log)

	rec.layer = intercept.NewLayer(ref, p, f.deps.Notifier, t.InitialDelay, log)

	return &Attempt{
		Session: session,
		Layer:   rec.layer,
		poller:  p,
	}, nil
}

// returnFiller completes a paid status with whatever the gateway put on
// the return URL. The backend's values always win.
type returnFiller struct {
	next  poller.Reconciler
	layer *intercept.Layer
}

func (r *returnFiller) Reconcile(ctx context.Context, status *dto.PaymentStatusResponse) error {
	if r.layer == nil {
		return r.next.Reconcile(ctx, status)
	}
	params := r.layer.ReturnParams()

	filled := *status
	if filled.OrderNumber == "" {
		filled.OrderNumber = params.OrderNumber
	}
	if filled.PointsEarned == nil && params.PointsEarned != 0 {
		points := params.PointsEarned
		filled.PointsEarned = &points
	}
	if filled.Total == nil && !params.Total.IsZero() {
		total := params.Total
		filled.Total = &total
	}
	return r.next.Reconcile(ctx, &filled)
}

// State reports where payment verification stands.
func (a *Attempt) State() (poller.State, int) {
	return a.poller.State()
}

// Close cancels anything still scheduled for this attempt.
func (a *Attempt) Close() {
	a.Layer.Close()
}

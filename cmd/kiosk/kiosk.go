package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"farmland-checkout/internal/cache"
	"farmland-checkout/internal/cart"
	"farmland-checkout/internal/checkout"
	"farmland-checkout/internal/client"
	"farmland-checkout/internal/config"
	"farmland-checkout/internal/confirmation"
	"farmland-checkout/internal/dto"
	"farmland-checkout/internal/hostedpage"
	"farmland-checkout/internal/navigation"
	"farmland-checkout/internal/notify"
	"farmland-checkout/internal/rewards"

	"github.com/facebookgo/clock"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

var errQuit = errors.New("quit")

type kiosk struct {
	cfg     *config.Kiosk
	log     *slog.Logger
	term    *notify.Terminal
	backend *client.BackendClient
	cart    *cart.Store
	router  *navigation.Router
	flow    *checkout.Flow
	ledger  *rewards.Ledger
	timers  cache.TimerStore
	clock   clock.Clock

	mu      sync.Mutex
	attempt *checkout.Attempt
	tracker *confirmation.Tracker
}

func newKiosk(
	cfg *config.Kiosk,
	log *slog.Logger,
	term *notify.Terminal,
	backend *client.BackendClient,
	timers cache.TimerStore,
	clk clock.Clock,
	userID *string,
) (*kiosk, error) {
	taxRate, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		return nil, fmt.Errorf("parse tax rate %q: %w", cfg.TaxRate, err)
	}

	k := &kiosk{
		cfg:     cfg,
		log:     log,
		term:    term,
		backend: backend,
		cart:    cart.NewStore(taxRate),
		ledger:  rewards.NewLedger(backend, log),
		timers:  timers,
		clock:   clk,
	}
	k.router, err = navigation.NewRouter(k.routes(), navigation.RequiredRoutes...)
	if err != nil {
		return nil, err
	}

	t := cfg.Checkout
	k.flow = checkout.NewFlow(checkout.FlowDeps{
		Backend:  backend,
		Cart:     k.cart,
		Router:   k.router,
		Notifier: term,
		Clock:    clk,
		Timings: checkout.Timings{
			InitialDelay:   t.InitialDelay,
			RetryInterval:  t.RetryInterval,
			MaxRetries:     t.MaxRetries,
			SuccessDelay:   t.SuccessDelay,
			GoBackDelay:    t.GoBackDelay,
			RequestTimeout: t.RequestTimeout,
		},
		ReferencePrefix: cfg.ReferencePrefix,
		ReturnURL:       "http://" + cfg.ListenAddr + "/" + dto.ConfirmationMarker,
		UserID:          userID,
		Log:             log,
	})
	return k, nil
}

func (k *kiosk) routes() navigation.Table {
	return navigation.Table{
		navigation.RouteHome:              navigation.ViewFunc(k.showHome),
		navigation.RouteCart:              navigation.ViewFunc(k.showCart),
		navigation.RouteCheckout:          navigation.ViewFunc(k.showCheckout),
		navigation.RouteOrderConfirmation: navigation.ViewFunc(k.showConfirmation),
		navigation.RouteRewards:           navigation.ViewFunc(k.showRewards),
		navigation.RouteOrders:            navigation.ViewFunc(k.showOrders),
	}
}

// leave tears down whatever belonged to the view being replaced. Every
// view calls it first, so no checkout attempt or countdown outlives the
// screen that started it.
func (k *kiosk) leave(ctx context.Context) {
	k.mu.Lock()
	attempt, tracker := k.attempt, k.tracker
	k.attempt, k.tracker = nil, nil
	k.mu.Unlock()

	if attempt != nil {
		attempt.Close()
	}
	if tracker != nil {
		tracker.Leave(ctx)
	}
}

func (k *kiosk) currentAttempt() *checkout.Attempt {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.attempt
}

func (k *kiosk) currentTracker() *confirmation.Tracker {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.tracker
}

func (k *kiosk) showHome(ctx context.Context, _ navigation.Params) error {
	k.leave(ctx)

	k.term.Printf("\n== Farmland Kiosk ==\n")
	for _, item := range menu {
		k.term.Printf("  %s  %-24s $%s\n", item.ID, item.Name, item.UnitPrice.StringFixed(2))
	}
	k.term.Printf("Cart: %d item(s). Type 'help' for commands.\n", k.cart.TotalItems())
	return nil
}

func (k *kiosk) showCart(ctx context.Context, _ navigation.Params) error {
	k.leave(ctx)

	items := k.cart.Items()
	k.term.Printf("\n== Cart ==\n")
	if len(items) == 0 {
		k.term.Printf("  (empty)\n")
		return nil
	}
	for _, item := range items {
		k.term.Printf("  %s  %-24s x%d  $%s\n", item.ID, item.Name, item.Quantity, item.LineTotal().StringFixed(2))
	}
	k.term.Printf("Subtotal $%s  Tax $%s  Total $%s\n",
		k.cart.Subtotal().StringFixed(2), k.cart.Tax().StringFixed(2), k.cart.Total().StringFixed(2))
	return nil
}

func (k *kiosk) showCheckout(ctx context.Context, _ navigation.Params) error {
	k.leave(ctx)

	attempt, err := k.flow.Begin(ctx)
	if err != nil {
		var initErr *checkout.PaymentInitError
		if errors.As(err, &initErr) {
			k.term.Error(initErr.Message)
		} else {
			k.term.Error("Could not start checkout.")
		}
		return k.router.Back(ctx)
	}

	k.mu.Lock()
	prev := k.attempt
	k.attempt = attempt
	k.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	k.term.Printf("\n== Checkout ==\nTotal $%s\nPay at http://%s/pay\n",
		attempt.Session.Amount.StringFixed(2), k.cfg.ListenAddr)
	return nil
}

func (k *kiosk) showConfirmation(ctx context.Context, params navigation.Params) error {
	// reconciliation arrives on the poller's context, which leave cancels
	ctx = context.WithoutCancel(ctx)
	k.leave(ctx)

	tracker := confirmation.NewTracker(params.OrderNumber, k.backend, k.timers, k.term, k.clock, confirmation.Config{
		Countdown:      k.cfg.Checkout.Countdown,
		PollInterval:   k.cfg.Checkout.StatusPollInterval,
		RequestTimeout: k.cfg.Checkout.RequestTimeout,
	}, k.log)

	k.mu.Lock()
	prev := k.tracker
	k.tracker = tracker
	k.mu.Unlock()
	if prev != nil {
		prev.Leave(ctx)
	}

	tracker.Start(ctx)
	snap := tracker.Snapshot()
	k.term.Printf("\n== Order %s ==\nTotal $%s  Points earned %d\nReady in about %s\n",
		params.OrderNumber, params.Total.StringFixed(2), params.PointsEarned, snap.Remaining.Round(time.Second))
	return nil
}

func (k *kiosk) showRewards(ctx context.Context, _ navigation.Params) error {
	k.leave(ctx)

	points, err := k.ledger.Points(ctx)
	if err != nil {
		k.term.Error("Could not load your points.")
		return nil
	}
	k.term.Printf("\n== Rewards ==  You have %d points\n", points)
	for _, r := range k.catalog(ctx) {
		k.term.Printf("  %d  %-28s %4d pts\n", r.ID, r.Title, r.PointsRequired)
	}
	return nil
}

// catalog prefers the backend's list and falls back to the built-in one.
func (k *kiosk) catalog(ctx context.Context) []*dto.RewardResponse {
	remote, err := k.backend.Rewards(ctx)
	if err == nil && len(remote) > 0 {
		return remote
	}
	if err != nil {
		k.log.Warn("load rewards catalog", "error", err)
	}

	local := rewards.Catalog()
	out := make([]*dto.RewardResponse, 0, len(local))
	for _, r := range local {
		out = append(out, &dto.RewardResponse{ID: r.ID, Title: r.Title, Description: r.Description, PointsRequired: r.PointsRequired})
	}
	return out
}

func (k *kiosk) showOrders(ctx context.Context, _ navigation.Params) error {
	k.leave(ctx)

	orders, err := k.backend.ListOrders(ctx)
	if err != nil {
		k.term.Error("Could not load your orders.")
		return nil
	}
	k.term.Printf("\n== Orders ==\n")
	for _, o := range orders {
		state := "preparing"
		switch {
		case o.CancelStatus:
			state = "canceled"
		case o.OrderStatus:
			state = "ready"
		}
		k.term.Printf("  %s  $%s  %s\n", o.OrderNumber, o.Total.StringFixed(2), state)
	}
	return nil
}

const helpText = `Commands:
  home | cart | rewards | orders | back
  add <id> [qty]     remove <id>     qty <id> <n>     clear
  checkout           return <url>    status
  cancel             claim <reward>  coupons [all|active|used|expired]
  quit
`

// exec runs one command line.
func (k *kiosk) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help":
		k.term.Printf("%s", helpText)
	case "quit", "exit":
		return errQuit
	case "home":
		return k.router.Navigate(ctx, navigation.RouteHome, navigation.Params{})
	case "cart":
		return k.router.Navigate(ctx, navigation.RouteCart, navigation.Params{})
	case "rewards":
		return k.router.Navigate(ctx, navigation.RouteRewards, navigation.Params{})
	case "orders":
		return k.router.Navigate(ctx, navigation.RouteOrders, navigation.Params{})
	case "back":
		return k.router.Back(ctx)
	case "add":
		return k.add(args)
	case "remove":
		if len(args) != 1 {
			return fmt.Errorf("usage: remove <id>")
		}
		k.cart.Remove(args[0])
	case "qty":
		if len(args) != 2 {
			return fmt.Errorf("usage: qty <id> <n>")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("quantity: %w", err)
		}
		k.cart.UpdateQuantity(args[0], int32(n))
	case "clear":
		k.cart.Clear()
	case "checkout":
		if k.cart.TotalItems() == 0 {
			k.term.Info("Your cart is empty.")
			return nil
		}
		return k.router.Navigate(ctx, navigation.RouteCheckout, navigation.Params{})
	case "return":
		if len(args) != 1 {
			return fmt.Errorf("usage: return <url>")
		}
		attempt := k.currentAttempt()
		if attempt == nil {
			return fmt.Errorf("no checkout in progress")
		}
		if attempt.Layer.ShouldStartLoad(ctx, args[0]) {
			k.term.Printf("navigating to %s\n", args[0])
		}
	case "status":
		k.status()
	case "cancel":
		tracker := k.currentTracker()
		if tracker == nil {
			return fmt.Errorf("no order on screen")
		}
		if _, err := tracker.Cancel(ctx); err != nil && !errors.Is(err, confirmation.ErrCancelDeclined) {
			return err
		}
	case "claim":
		return k.claim(ctx, args)
	case "coupons":
		filter := "all"
		if len(args) > 0 {
			filter = args[0]
		}
		coupons, err := k.backend.Coupons(ctx, filter)
		if err != nil {
			return err
		}
		for _, c := range coupons {
			k.term.Printf("  %s  %-28s %s  expires %s\n", c.CouponCode, c.RewardTitle, c.Status, c.ExpirationDate.Format("2006-01-02"))
		}
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func (k *kiosk) add(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: add <id> [qty]")
	}
	item, ok := findMenuItem(args[0])
	if !ok {
		return fmt.Errorf("no product %q", args[0])
	}
	item.Quantity = 1
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("quantity: %w", err)
		}
		item.Quantity = int32(n)
	}
	k.cart.Add(item)
	k.term.Info(fmt.Sprintf("Added %s. Cart has %d item(s).", item.Name, k.cart.TotalItems()))
	return nil
}

func (k *kiosk) claim(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: claim <reward>")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("reward: %w", err)
	}
	reward, ok := rewards.Find(id)
	if !ok {
		return fmt.Errorf("no reward %d", id)
	}

	resp, err := k.ledger.Claim(ctx, reward)
	switch {
	case errors.Is(err, rewards.ErrInsufficientPoints):
		k.term.Info("You need more points for that reward.")
		return nil
	case err != nil:
		k.term.Error("Could not claim the reward.")
		return err
	}
	k.term.Success(fmt.Sprintf("Coupon %s claimed. %d points left.", resp.Coupon.CouponCode, resp.Points))
	return nil
}

func (k *kiosk) status() {
	if attempt := k.currentAttempt(); attempt != nil {
		state, n := attempt.State()
		k.term.Printf("payment %s: %s (attempt %d)\n", attempt.Session.ReferenceID, state, n)
	}
	if tracker := k.currentTracker(); tracker != nil {
		snap := tracker.Snapshot()
		k.term.Printf("order: %s, %s left, pickup ready: %t\n", snap.State, snap.Remaining.Round(time.Second), snap.PickupReady)
	}
}

// localServer serves the hosted payment page hand-off and the gateway
// return URL for a shopper paying in a browser.
func (k *kiosk) localServer() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.GET("/pay", func(c echo.Context) error {
		attempt := k.currentAttempt()
		if attempt == nil {
			return echo.NewHTTPError(http.StatusNotFound, "no checkout in progress")
		}
		c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
		return hostedpage.RenderFormPost(c.Response(), attempt.Session.CheckoutURL, attempt.Session.Token)
	})

	e.Any("/"+dto.ConfirmationMarker, func(c echo.Context) error {
		attempt := k.currentAttempt()
		if attempt == nil {
			return echo.NewHTTPError(http.StatusNotFound, "no checkout in progress")
		}
		return echo.WrapHandler(attempt.Layer.ReturnHandler())(c)
	})
	return e
}

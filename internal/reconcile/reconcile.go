// Package reconcile turns a confirmed payment into the shopper-facing
// order confirmation.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"farmland-checkout/internal/dto"
	"farmland-checkout/internal/navigation"
	"farmland-checkout/internal/notify"

	"github.com/shopspring/decimal"
)

// ReconciliationNavigationError means the confirmation view could not be
// reached. The shopper still gets a summary alert.
type ReconciliationNavigationError struct {
	Route navigation.Route
	Err   error
}

func (e *ReconciliationNavigationError) Error() string {
	return fmt.Sprintf("navigate to %s: %v", e.Route, e.Err)
}

func (e *ReconciliationNavigationError) Unwrap() error {
	return e.Err
}

type CartClearer interface {
	Clear()
}

type Navigator interface {
	Replace(ctx context.Context, route navigation.Route, params navigation.Params) error
}

type Reconciler struct {
	cart     CartClearer
	nav      Navigator
	notifier notify.Notifier
	log      *slog.Logger
}

func New(cart CartClearer, nav Navigator, notifier notify.Notifier, log *slog.Logger) *Reconciler {
	return &Reconciler{
		cart:     cart,
		nav:      nav,
		notifier: notifier,
		log:      log,
	}
}

// Reconcile clears the cart and replaces the checkout view with the order
// confirmation. When that navigation fails it shows a blocking summary
// and goes home, returning the navigation error.
func (r *Reconciler) Reconcile(ctx context.Context, status *dto.PaymentStatusResponse) error {
	r.cart.Clear()

	params := ParamsFromStatus(status)
	err := r.nav.Replace(ctx, navigation.RouteOrderConfirmation, params)
	if err == nil {
		return nil
	}

	navErr := &ReconciliationNavigationError{Route: navigation.RouteOrderConfirmation, Err: err}
	r.log.Error("order confirmation unreachable", "order_number", params.OrderNumber, "error", navErr)

	summary := fmt.Sprintf("Order number: %s\nTotal: $%s\nPoints earned: %d",
		params.OrderNumber, params.Total.StringFixed(2), params.PointsEarned)
	if alertErr := r.notifier.Alert(ctx, "Order placed", summary); alertErr != nil {
		r.log.Warn("order summary alert", "error", alertErr)
	}

	if homeErr := r.nav.Replace(ctx, navigation.RouteHome, navigation.Params{}); homeErr != nil {
		r.log.Error("navigate home", "error", homeErr)
	}
	return navErr
}

func ParamsFromStatus(status *dto.PaymentStatusResponse) navigation.Params {
	params := navigation.Params{OrderNumber: status.OrderNumber, Total: decimal.Zero}
	if status.PointsEarned != nil {
		params.PointsEarned = *status.PointsEarned
	}
	if status.Total != nil {
		params.Total = *status.Total
	}
	return params
}

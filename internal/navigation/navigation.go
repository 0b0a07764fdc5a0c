// Package navigation routes the kiosk between views through one routing
// table checked at startup.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

type Route string

const (
	RouteHome              Route = "Home"
	RouteCart              Route = "Cart"
	RouteCheckout          Route = "Checkout"
	RouteOrderConfirmation Route = "OrderConfirmation"
	RouteRewards           Route = "Rewards"
	RouteOrders            Route = "Orders"
)

// RequiredRoutes must be present in every routing table.
var RequiredRoutes = []Route{RouteHome, RouteCheckout, RouteOrderConfirmation}

var ErrRouteNotRegistered = errors.New("route not registered")

// Params travel with a navigation. Only OrderConfirmation reads them today.
type Params struct {
	OrderNumber  string
	PointsEarned int64
	Total        decimal.Decimal
}

type View interface {
	Show(ctx context.Context, params Params) error
}

// ViewFunc adapts a function to View.
type ViewFunc func(ctx context.Context, params Params) error

func (f ViewFunc) Show(ctx context.Context, params Params) error {
	return f(ctx, params)
}

type Table map[Route]View

type entry struct {
	route  Route
	params Params
}

type Router struct {
	table Table

	mu    sync.Mutex
	stack []entry
}

// NewRouter fails when table misses any of required.
func NewRouter(table Table, required ...Route) (*Router, error) {
	var missing []string
	for _, r := range required {
		if table[r] == nil {
			missing = append(missing, string(r))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrRouteNotRegistered, strings.Join(missing, ", "))
	}

	return &Router{table: table}, nil
}

// Navigate pushes route on top of the history.
func (r *Router) Navigate(ctx context.Context, route Route, params Params) error {
	view, err := r.view(route)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.stack = append(r.stack, entry{route, params})
	r.mu.Unlock()

	return view.Show(ctx, params)
}

// Replace swaps the current entry for route, so Back skips the old one.
func (r *Router) Replace(ctx context.Context, route Route, params Params) error {
	view, err := r.view(route)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if n := len(r.stack); n > 0 {
		r.stack[n-1] = entry{route, params}
	} else {
		r.stack = append(r.stack, entry{route, params})
	}
	r.mu.Unlock()

	return view.Show(ctx, params)
}

// Back returns to the previous entry, or Home when there is none.
func (r *Router) Back(ctx context.Context) error {
	r.mu.Lock()
	if n := len(r.stack); n > 0 {
		r.stack = r.stack[:n-1]
	}
	prev := entry{route: RouteHome}
	if n := len(r.stack); n > 0 {
		prev = r.stack[n-1]
	} else {
		r.stack = append(r.stack, prev)
	}
	r.mu.Unlock()

	view, err := r.view(prev.route)
	if err != nil {
		return err
	}
	return view.Show(ctx, prev.params)
}

func (r *Router) Current() Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.stack); n > 0 {
		return r.stack[n-1].route
	}
	return ""
}

func (r *Router) view(route Route) (View, error) {
	view := r.table[route]
	if view == nil {
		return nil, fmt.Errorf("%w: %s", ErrRouteNotRegistered, route)
	}
	return view, nil
}

// Package intercept watches the hosted payment page's navigations and
// takes over when the gateway tries to send the shopper to the
// order-confirmation return URL.
package intercept

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"farmland-checkout/internal/dto"
	"farmland-checkout/internal/notify"

	"github.com/shopspring/decimal"
)

const MessageProcessing = "Processing your payment..."

// Poller is the verification chain started once the return is detected.
type Poller interface {
	Start(ctx context.Context, referenceID string, delay time.Duration) bool
	Stop()
}

// Layer is used once per checkout attempt.
type Layer struct {
	referenceID string
	poller      Poller
	notifier    notify.Notifier
	delay       time.Duration
	log         *slog.Logger

	mu      sync.Mutex
	handled bool
	params  ReturnParams
}

func NewLayer(referenceID string, poller Poller, notifier notify.Notifier, delay time.Duration, log *slog.Logger) *Layer {
	return &Layer{
		referenceID: referenceID,
		poller:      poller,
		notifier:    notifier,
		delay:       delay,
		log:         log,
	}
}

// IsConfirmationURL reports whether rawURL carries the return marker.
func IsConfirmationURL(rawURL string) bool {
	return strings.Contains(rawURL, dto.ConfirmationMarker)
}

// ShouldStartLoad is asked before each navigation of the hosted page and
// denies the one that would land on the confirmation URL.
func (l *Layer) ShouldStartLoad(ctx context.Context, rawURL string) bool {
	if !IsConfirmationURL(rawURL) {
		return true
	}
	l.handle(ctx, rawURL)
	return false
}

// OnNavigationStateChange is told about navigations after they commit.
func (l *Layer) OnNavigationStateChange(ctx context.Context, rawURL string) {
	if IsConfirmationURL(rawURL) {
		l.handle(ctx, rawURL)
	}
}

func (l *Layer) Handled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handled
}

// ReturnParams reports what the gateway put on the return URL, if anything.
func (l *Layer) ReturnParams() ReturnParams {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.params
}

// Close cancels a verification that has not started yet.
func (l *Layer) Close() {
	l.poller.Stop()
}

func (l *Layer) handle(ctx context.Context, rawURL string) {
	l.mu.Lock()
	if l.handled {
		l.mu.Unlock()
		return
	}
	l.handled = true
	l.params, _ = ParseReturnParams(rawURL)
	l.mu.Unlock()

	l.log.Info("gateway return intercepted", "reference_id", l.referenceID)
	l.notifier.Pending(MessageProcessing)
	l.poller.Start(ctx, l.referenceID, l.delay)
}

// ReturnHandler serves the return URL for hosts that cannot veto a
// navigation, such as a system browser pointed at a local listener.
func (l *Layer) ReturnHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l.OnNavigationStateChange(r.Context(), r.URL.String())

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.Write([]byte(returnPage))
	})
}

const returnPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Payment received</title></head>
<body style="font-family: Arial, sans-serif; text-align: center; margin-top: 80px;">
	<h2>Thanks! We are confirming your payment.</h2>
	<p>You can close this page and return to the kiosk.</p>
</body>
</html>
`

type ReturnParams struct {
	OrderNumber  string
	PointsEarned int64
	Total        decimal.Decimal
}

// ParseReturnParams reads orderNumber, pointsEarned and total from the
// query string, falling back to the fragment. ok is false when no order
// number is present.
func ParseReturnParams(rawURL string) (params ReturnParams, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return params, false
	}

	values := u.Query()
	if values.Get("orderNumber") == "" && u.Fragment != "" {
		frag := u.Fragment
		if i := strings.IndexByte(frag, '?'); i >= 0 {
			frag = frag[i+1:]
		}
		if fv, err := url.ParseQuery(frag); err == nil {
			values = fv
		}
	}

	params.OrderNumber = values.Get("orderNumber")
	if points, err := strconv.ParseInt(values.Get("pointsEarned"), 10, 64); err == nil {
		params.PointsEarned = points
	}
	if total, err := decimal.NewFromString(values.Get("total")); err == nil {
		params.Total = total
	}
	return params, params.OrderNumber != ""
}

package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"farmland-checkout/internal/client"
	"farmland-checkout/internal/dto"
	"farmland-checkout/internal/service"

	"github.com/labstack/echo/v4"
)

var errorStatus = []struct {
	err  error
	code int
}{
	{service.ErrInvalidRequest, http.StatusBadRequest},
	{client.ErrInvalidSignature, http.StatusUnauthorized},
	{client.ErrPaymentDeclined, http.StatusPaymentRequired},
	{service.ErrUserMismatch, http.StatusForbidden},
	{service.ErrTransactionNotFound, http.StatusNotFound},
	{service.ErrOrderNotFound, http.StatusNotFound},
	{service.ErrRewardNotFound, http.StatusNotFound},
	{service.ErrDuplicateReference, http.StatusConflict},
	{service.ErrTransactionClosed, http.StatusConflict},
	{service.ErrOrderNotCancelable, http.StatusConflict},
	{service.ErrOrderCanceled, http.StatusConflict},
	{service.ErrCouponNotRedeemable, http.StatusConflict},
	{service.ErrInsufficientPoints, http.StatusConflict},
	{service.ErrGatewayUnavailable, http.StatusBadGateway},
}

// ErrorHandler renders every failure as {"error": "..."}. Unknown errors
// are logged and reported as a bare 500.
func ErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)

		var he *echo.HTTPError
		switch {
		case errors.As(err, &he):
			code = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(he.Code)
			}
		default:
			matched := false
			for _, e := range errorStatus {
				if errors.Is(err, e.err) {
					code, msg, matched = e.code, err.Error(), true
					break
				}
			}
			if !matched {
				log.Error("request failed",
					"method", c.Request().Method,
					"path", c.Path(),
					"error", err,
				)
			}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, dto.ErrorResponse{Error: msg})
		}
		if err != nil {
			log.Error("write error response", "error", err)
		}
	}
}

package handler

import (
	"net/http"

	"farmland-checkout/internal/dto"
	"farmland-checkout/internal/hostedpage"
	"farmland-checkout/internal/service"

	"github.com/labstack/echo/v4"
)

type BraintreeHandler struct {
	paymentService service.PaymentService
	chargePath     string
}

func NewBraintreeHandler(paymentService service.PaymentService) *BraintreeHandler {
	return &BraintreeHandler{
		paymentService: paymentService,
		chargePath:     "/api/braintree/charge",
	}
}

// Checkout renders the drop-in page. It is reached with the same hidden
// token form post as any other hosted page.
func (h *BraintreeHandler) Checkout(c echo.Context) error {
	token := c.FormValue("token")
	referenceID := c.QueryParam("referenceId")
	if token == "" || referenceID == "" {
		return c.String(http.StatusBadRequest, "missing token or referenceId")
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return hostedpage.RenderDropIn(c.Response(), token, referenceID, h.chargePath)
}

func (h *BraintreeHandler) Charge(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.BraintreeChargeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	returnURL, err := h.paymentService.ChargeBraintree(ctx, &req)
	if err != nil {
		return err
	}

	return c.Redirect(http.StatusSeeOther, returnURL)
}

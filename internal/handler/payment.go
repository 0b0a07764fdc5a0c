package handler

import (
	"io"
	"net/http"

	"farmland-checkout/internal/dto"
	"farmland-checkout/internal/hostedpage"
	"farmland-checkout/internal/middleware"
	"farmland-checkout/internal/service"

	"github.com/labstack/echo/v4"
)

const signatureHeader = "X-ANET-Signature"

type PaymentHandler struct {
	paymentService service.PaymentService
}

func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

func (h *PaymentHandler) CreateTransaction(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreateTransactionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	resp, err := h.paymentService.CreateTransaction(ctx, middleware.IdentityFrom(c), &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *PaymentHandler) CheckPaymentStatus(c echo.Context) error {
	ctx := c.Request().Context()

	referenceID := c.QueryParam("referenceId")
	if referenceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing referenceId")
	}

	resp, err := h.paymentService.CheckPaymentStatus(ctx, middleware.IdentityFrom(c).UserID, referenceID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

// Redirect serves the hosted page hand-off to authenticated API clients,
// such as a web shell that fetches it with its bearer token and writes it
// into a new window. Plain browser navigations carry no bearer token and
// are rejected.
func (h *PaymentHandler) Redirect(c echo.Context) error {
	ctx := c.Request().Context()

	session, err := h.paymentService.HostedSession(ctx, middleware.IdentityFrom(c).UserID, c.Param("referenceId"))
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return hostedpage.RenderFormPost(c.Response(), session.CheckoutURL, session.Token)
}

func (h *PaymentHandler) Webhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	if err := h.paymentService.HandleWebhook(ctx, c.Request().Header.Get(signatureHeader), body); err != nil {
		return err
	}

	return c.NoContent(http.StatusOK)
}

package handler

import (
	"net/http"

	"farmland-checkout/internal/middleware"
	"farmland-checkout/internal/service"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	orderService service.OrderService
}

func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

func (h *OrderHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	orders, err := h.orderService.List(ctx, middleware.IdentityFrom(c).UserID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	order, err := h.orderService.Get(ctx, middleware.IdentityFrom(c).UserID, c.Param("orderNumber"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) Cancel(c echo.Context) error {
	ctx := c.Request().Context()

	resp, err := h.orderService.Cancel(ctx, middleware.IdentityFrom(c).UserID, c.Param("orderNumber"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *OrderHandler) MarkReady(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.orderService.MarkReady(ctx, c.Param("orderNumber")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

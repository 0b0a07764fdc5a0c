package handler

import (
	"net/http"

	"farmland-checkout/internal/middleware"
	"farmland-checkout/internal/service"

	"github.com/labstack/echo/v4"
)

type UserHandler struct {
	userService service.UserService
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

func (h *UserHandler) Profile(c echo.Context) error {
	ctx := c.Request().Context()

	profile, err := h.userService.Profile(ctx, middleware.IdentityFrom(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, profile)
}

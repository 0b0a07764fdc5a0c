package handler

import (
	"net/http"

	"farmland-checkout/internal/dto"
	"farmland-checkout/internal/middleware"
	"farmland-checkout/internal/model"
	"farmland-checkout/internal/service"

	"github.com/labstack/echo/v4"
)

type RewardsHandler struct {
	rewardsService service.RewardsService
}

func NewRewardsHandler(rewardsService service.RewardsService) *RewardsHandler {
	return &RewardsHandler{
		rewardsService: rewardsService,
	}
}

func (h *RewardsHandler) Catalog(c echo.Context) error {
	return c.JSON(http.StatusOK, h.rewardsService.Catalog(c.Request().Context()))
}

func (h *RewardsHandler) Claim(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.ClaimRewardRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	resp, err := h.rewardsService.Claim(ctx, middleware.IdentityFrom(c), req.RewardID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *RewardsHandler) Coupons(c echo.Context) error {
	ctx := c.Request().Context()

	filter, ok := model.ParseCouponFilter(c.QueryParam("filter"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "filter must be one of all, active, used, expired")
	}

	coupons, err := h.rewardsService.Coupons(ctx, middleware.IdentityFrom(c).UserID, filter)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, coupons)
}

func (h *RewardsHandler) Redeem(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.rewardsService.Redeem(ctx, c.Param("code")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

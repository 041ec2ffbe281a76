package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"academy-storefront/internal/middleware"
	"academy-storefront/internal/service"
)

// UserHandler serves the signed-in student's own data.
type UserHandler struct {
	profileService service.ProfileService
}

func NewUserHandler(profileService service.ProfileService) *UserHandler {
	return &UserHandler{
		profileService: profileService,
	}
}

func (h *UserHandler) GetProfile(c echo.Context) error {
	ctx := c.Request().Context()

	profile, err := h.profileService.Get(ctx, middleware.SessionFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	ctx := c.Request().Context()

	var req service.ProfileUpdate
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	profile, err := h.profileService.Update(ctx, middleware.SessionFrom(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *UserHandler) GetOrders(c echo.Context) error {
	ctx := c.Request().Context()

	orders, err := h.profileService.Orders(ctx, middleware.SessionFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orders)
}

package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"academy-storefront/internal/checkout"
	"academy-storefront/internal/client"
	"academy-storefront/internal/dto"
	"academy-storefront/internal/middleware"
)

type CheckoutHandler struct {
	checkoutService checkout.Service
}

func NewCheckoutHandler(checkoutService checkout.Service) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
	}
}

func (h *CheckoutHandler) Quote(c echo.Context) error {
	ctx := c.Request().Context()

	quote, err := h.checkoutService.Quote(ctx, c.Param("slug"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, quote)
}

// ValidateField checks the field named by ?field= against the submitted form.
func (h *CheckoutHandler) ValidateField(c echo.Context) error {
	field := c.QueryParam("field")
	if field == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing field query param")
	}

	var form checkout.Form
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	fieldErr, err := h.checkoutService.ValidateField(form, field, acceptLanguage(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ValidateFieldResponse{
		Field: field,
		Valid: fieldErr == nil,
		Error: fieldErr,
	})
}

func (h *CheckoutHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	sc := middleware.SessionFrom(c)

	var req dto.OrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if req.ProgramID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "program_id is required")
	}

	// a signed-in buyer's order is written under their own token
	if sc.Authenticated() {
		ctx = client.WithAccessToken(ctx, sc.AccessToken())
	}

	result, err := h.checkoutService.Submit(ctx, &checkout.SubmitRequest{
		ProgramID: req.ProgramID,
		UserID:    sc.UserID(),
		Lang:      acceptLanguage(c),
		UserAgent: c.Request().UserAgent(),
		Form:      req.Form,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, result)
}

// acceptLanguage prefers ?lang= over the Accept-Language header.
func acceptLanguage(c echo.Context) string {
	if lang := c.QueryParam("lang"); lang != "" {
		return lang
	}
	return c.Request().Header.Get("Accept-Language")
}

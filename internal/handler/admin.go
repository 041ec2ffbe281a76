package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"academy-storefront/internal/dto"
	"academy-storefront/internal/middleware"
	"academy-storefront/internal/model"
	"academy-storefront/internal/repository"
	"academy-storefront/internal/service"
)

// IfUnmodifiedSinceHeader carries the updated_at the admin form was loaded
// with. RFC 3339 with fractions is accepted in addition to the HTTP date.
const IfUnmodifiedSinceHeader = "If-Unmodified-Since"

type AdminHandler struct {
	orderService   service.AdminOrderService
	contentService service.AdminContentService
}

func NewAdminHandler(orderService service.AdminOrderService, contentService service.AdminContentService) *AdminHandler {
	return &AdminHandler{
		orderService:   orderService,
		contentService: contentService,
	}
}

func (h *AdminHandler) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()

	filter := repository.OrderFilter{
		Status: model.OrderStatus(c.QueryParam("status")),
		Email:  c.QueryParam("email"),
	}
	filter.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	filter.Offset, _ = strconv.Atoi(c.QueryParam("offset"))

	list, err := h.orderService.ListOrders(ctx, middleware.SessionFrom(c), filter)
	if err != nil {
		return err
	}

	res := dto.AdminOrderList{
		Orders:      make([]dto.AdminOrder, 0, len(list.Orders)),
		ShowAmounts: list.ShowAmounts,
	}
	for _, o := range list.Orders {
		res.Orders = append(res.Orders, dto.NewAdminOrder(o, list.ShowAmounts))
	}
	return c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()

	detail, err := h.orderService.GetOrder(ctx, middleware.SessionFrom(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.NewAdminOrderDetail(detail.Order, detail.Transactions, detail.ShowAmounts))
}

func (h *AdminHandler) UpdateOrderStatus(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.UpdateOrderStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	order, err := h.orderService.UpdateStatus(ctx, middleware.SessionFrom(c), c.Param("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, order)
}

func (h *AdminHandler) DeleteOrder(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.orderService.DeleteOrder(ctx, middleware.SessionFrom(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) ListPrograms(c echo.Context) error {
	ctx := c.Request().Context()

	programs, err := h.contentService.ListPrograms(ctx, middleware.SessionFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, programs)
}

func (h *AdminHandler) CreateProgram(c echo.Context) error {
	ctx := c.Request().Context()

	var req service.ProgramInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	program, err := h.contentService.CreateProgram(ctx, middleware.SessionFrom(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, program)
}

func (h *AdminHandler) UpdateProgram(c echo.Context) error {
	ctx := c.Request().Context()

	expected, err := ifUnmodifiedSince(c)
	if err != nil {
		return err
	}

	var req service.ProgramInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	program, err := h.contentService.UpdateProgram(ctx, middleware.SessionFrom(c), c.Param("id"), req, expected)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, program)
}

func (h *AdminHandler) DeleteProgram(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.contentService.DeleteProgram(ctx, middleware.SessionFrom(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) ReorderPrograms(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.ReorderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	if err := h.contentService.ReorderPrograms(ctx, middleware.SessionFrom(c), req.IDs); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) CreatePost(c echo.Context) error {
	ctx := c.Request().Context()

	var req service.PostInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	post, err := h.contentService.CreatePost(ctx, middleware.SessionFrom(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, post)
}

func (h *AdminHandler) UpdatePost(c echo.Context) error {
	ctx := c.Request().Context()

	var req service.PostInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	post, err := h.contentService.UpdatePost(ctx, middleware.SessionFrom(c), c.Param("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, post)
}

func ifUnmodifiedSince(c echo.Context) (*time.Time, error) {
	raw := c.Request().Header.Get(IfUnmodifiedSinceHeader)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return &t, nil
	}
	if t, err := http.ParseTime(raw); err == nil {
		return &t, nil
	}
	return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid If-Unmodified-Since header")
}

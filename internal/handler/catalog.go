package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"academy-storefront/internal/dto"
	"academy-storefront/internal/service"
)

type CatalogHandler struct {
	catalogService service.CatalogService
	blogService    service.BlogService
}

func NewCatalogHandler(catalogService service.CatalogService, blogService service.BlogService) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		blogService:    blogService,
	}
}

func (h *CatalogHandler) ListPrograms(c echo.Context) error {
	ctx := c.Request().Context()

	programs, err := h.catalogService.ListPrograms(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, programs)
}

func (h *CatalogHandler) GetProgram(c echo.Context) error {
	ctx := c.Request().Context()

	program, err := h.catalogService.GetProgram(ctx, c.Param("slug"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, program)
}

func (h *CatalogHandler) ListPlans(c echo.Context) error {
	ctx := c.Request().Context()

	plans, err := h.catalogService.ListPlans(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, plans)
}

func (h *CatalogHandler) GetSetting(c echo.Context) error {
	ctx := c.Request().Context()

	setting, err := h.catalogService.Setting(ctx, c.Param("key"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, setting)
}

func (h *CatalogHandler) ListPosts(c echo.Context) error {
	ctx := c.Request().Context()

	var page dto.Page
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &page); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid paging")
	}

	posts, err := h.blogService.ListPosts(ctx, c.QueryParam("category"), page.Page, page.PageSize)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, posts)
}

func (h *CatalogHandler) GetPost(c echo.Context) error {
	ctx := c.Request().Context()

	post, err := h.blogService.GetPost(ctx, c.Param("slug"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, post)
}

func (h *CatalogHandler) Categories(c echo.Context) error {
	ctx := c.Request().Context()

	categories, err := h.blogService.Categories(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, categories)
}

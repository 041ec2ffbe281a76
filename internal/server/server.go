package server

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"

	"academy-storefront/internal/checkout"
	"academy-storefront/internal/config"
	"academy-storefront/internal/handler"
	"academy-storefront/internal/logger"
	"academy-storefront/internal/middleware"
	"academy-storefront/internal/model"
	"academy-storefront/internal/service"
	"academy-storefront/internal/session"
)

// Services are the application services the HTTP surface exposes.
type Services struct {
	Sessions     session.Manager
	Checkout     checkout.Service
	Catalog      service.CatalogService
	Blog         service.BlogService
	Profile      service.ProfileService
	AdminOrders  service.AdminOrderService
	AdminContent service.AdminContentService
}

type Server struct {
	echo            *echo.Echo
	cfg             *config.Config
	rdb             *redis.Client
	sessions        session.Manager
	authHandler     *handler.AuthHandler
	catalogHandler  *handler.CatalogHandler
	checkoutHandler *handler.CheckoutHandler
	userHandler     *handler.UserHandler
	adminHandler    *handler.AdminHandler
}

// NewServer builds the echo instance. rdb may be nil, which turns off rate
// limiting and response caching.
func NewServer(cfg *config.Config, l *logger.Logger, rdb *redis.Client, services Services) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Logger = l.Logger
	e.HTTPErrorHandler = newHTTPErrorHandler(l)

	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			entry := log.JSON{
				"request_id": v.RequestID,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
			}
			if v.Error != nil {
				entry["error"] = v.Error.Error()
			}
			l.Infoj(entry)
			return nil
		},
	}))
	e.Use(echomw.Recover())
	if len(cfg.HTTP.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins:     cfg.HTTP.CORSOrigins,
			AllowCredentials: true,
		}))
	} else {
		e.Use(echomw.CORS())
	}

	s := &Server{
		echo:            e,
		cfg:             cfg,
		rdb:             rdb,
		sessions:        services.Sessions,
		authHandler:     handler.NewAuthHandler(services.Sessions),
		catalogHandler:  handler.NewCatalogHandler(services.Catalog, services.Blog),
		checkoutHandler: handler.NewCheckoutHandler(services.Checkout),
		userHandler:     handler.NewUserHandler(services.Profile),
		adminHandler:    handler.NewAdminHandler(services.AdminOrders, services.AdminContent),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	if dir := s.cfg.HTTP.WebDir; dir != "" {
		s.echo.File("/", filepath.Join(dir, "index.html"))
		s.echo.Static("/assets", filepath.Join(dir, "assets"))
	}

	// unknown pages go back to the landing page
	s.echo.RouteNotFound("/*", func(c echo.Context) error {
		if strings.HasPrefix(c.Request().URL.Path, "/api/") {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "not_found"})
		}
		return c.Redirect(http.StatusFound, "/")
	})

	api := s.echo.Group("/api", middleware.Session(s.sessions, s.cfg.Session))

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	cache := middleware.ResponseCache(s.cfg.Cache, s.rdb)
	limit := middleware.RateLimit(s.cfg.RateLimit, s.rdb)

	// -------- auth --------
	auth := api.Group("/auth")
	auth.POST("/signup", s.authHandler.SignUp, limit)
	auth.POST("/signin", s.authHandler.SignIn, limit)
	auth.POST("/signout", s.authHandler.SignOut)
	auth.POST("/refresh", s.authHandler.Refresh)
	auth.GET("/session", s.authHandler.Session)

	// -------- catalogue --------
	api.GET("/programs", s.catalogHandler.ListPrograms, cache)
	api.GET("/programs/:slug", s.catalogHandler.GetProgram, cache)
	api.GET("/subscription-plans", s.catalogHandler.ListPlans, cache)
	api.GET("/settings/:key", s.catalogHandler.GetSetting, cache)
	api.GET("/blog/posts", s.catalogHandler.ListPosts, cache)
	api.GET("/blog/posts/:slug", s.catalogHandler.GetPost, cache)
	api.GET("/blog/categories", s.catalogHandler.Categories, cache)

	// -------- checkout --------
	co := api.Group("/checkout")
	co.GET("/quote/:slug", s.checkoutHandler.Quote)
	co.POST("/validate", s.checkoutHandler.ValidateField)
	co.POST("/orders", s.checkoutHandler.CreateOrder, limit)

	// -------- student dashboard --------
	me := api.Group("/me", middleware.RequireAuth())
	me.GET("/profile", s.userHandler.GetProfile)
	me.PUT("/profile", s.userHandler.UpdateProfile)
	me.GET("/orders", s.userHandler.GetOrders)

	// -------- back-office --------
	admin := api.Group("/admin", middleware.RequireAuth(), middleware.RequireRole(string(model.RoleAdmin)))
	admin.GET("/orders", s.adminHandler.ListOrders)
	admin.GET("/orders/:id", s.adminHandler.GetOrder)
	admin.PATCH("/orders/:id/status", s.adminHandler.UpdateOrderStatus)
	admin.DELETE("/orders/:id", s.adminHandler.DeleteOrder)
	admin.GET("/programs", s.adminHandler.ListPrograms)
	admin.POST("/programs", s.adminHandler.CreateProgram)
	admin.PUT("/programs/order", s.adminHandler.ReorderPrograms)
	admin.PUT("/programs/:id", s.adminHandler.UpdateProgram)
	admin.DELETE("/programs/:id", s.adminHandler.DeleteProgram)
	admin.POST("/blog/posts", s.adminHandler.CreatePost)
	admin.PUT("/blog/posts/:id", s.adminHandler.UpdatePost)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

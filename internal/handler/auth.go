package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"academy-storefront/internal/client"
	"academy-storefront/internal/dto"
	"academy-storefront/internal/middleware"
	"academy-storefront/internal/session"
)

type AuthHandler struct {
	sessions session.Manager
}

func NewAuthHandler(sessions session.Manager) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
	}
}

func auditFrom(c echo.Context) session.Audit {
	return session.Audit{
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}

func sessionResponse(sc *session.Context, status session.CheckStatus) *dto.SessionResponse {
	res := &dto.SessionResponse{
		Authenticated: sc.Authenticated(),
		Status:        string(status),
	}
	if !res.Authenticated {
		return res
	}
	res.User = sc.User
	res.Profile = sc.Profile
	res.Role = sc.Role()
	if sc.Session != nil && !sc.Session.ExpiresAt.IsZero() {
		exp := sc.Session.ExpiresAt
		res.ExpiresAt = &exp
	}
	return res
}

func (h *AuthHandler) SignUp(c echo.Context) error {
	ctx := c.Request().Context()
	sc := middleware.SessionFrom(c)

	var req dto.SignUpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	awaiting, err := h.sessions.SignUp(ctx, sc, session.SignUpRequest{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
		FullName: strings.TrimSpace(req.FullName),
		Phone:    req.Phone,
	}, auditFrom(c))
	if err != nil {
		return err
	}

	res := &dto.SignUpResponse{AwaitingConfirmation: awaiting}
	if !awaiting {
		res.Session = sessionResponse(sc, session.CheckValid)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *AuthHandler) SignIn(c echo.Context) error {
	ctx := c.Request().Context()
	sc := middleware.SessionFrom(c)

	var req dto.SignInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	err := h.sessions.SignIn(ctx, sc, strings.TrimSpace(req.Email), req.Password, auditFrom(c))
	if status := client.StatusOf(err); status == http.StatusBadRequest || status == http.StatusUnauthorized {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, sessionResponse(sc, session.CheckValid))
}

func (h *AuthHandler) SignOut(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.sessions.SignOut(ctx, middleware.SessionFrom(c), auditFrom(c)); err != nil {
		c.Logger().Warnf("sign out: %v", err)
	}
	middleware.RenewSession(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	sc := middleware.SessionFrom(c)

	if err := h.sessions.Refresh(ctx, sc); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionResponse(sc, session.CheckValid))
}

// Session reports the stored session and verifies it against the backend.
func (h *AuthHandler) Session(c echo.Context) error {
	ctx := c.Request().Context()
	sc := middleware.SessionFrom(c)

	if !sc.Authenticated() {
		return c.JSON(http.StatusOK, sessionResponse(sc, ""))
	}

	status, err := h.sessions.CheckSession(ctx, sc)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionResponse(sc, status))
}

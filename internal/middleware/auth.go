package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"academy-storefront/internal/config"
	"academy-storefront/internal/session"
)

const (
	sessionKey = "session"
	userIDKey  = "user_id"
	roleKey    = "role"
	cookieKey  = "session_cookie"

	// SessionHeader lets non-browser clients carry the session id without cookies.
	SessionHeader = "X-Session-Id"
)

// Session resolves the visitor's session id from the cookie (or header),
// issues a new one when absent, and loads the application context into the
// echo context.
func Session(manager session.Manager, cfg config.Session) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sid := c.Request().Header.Get(SessionHeader)
			if ck, err := c.Cookie(cfg.CookieName); err == nil && ck.Value != "" {
				sid = ck.Value
			}
			c.Set(cookieKey, cfg)
			if _, err := uuid.Parse(sid); err != nil {
				sid = issueSessionID(c, cfg)
			}

			sc, err := manager.Load(c.Request().Context(), sid)
			if err != nil {
				c.Logger().Warnf("session %s: %v", sid, err)
				sc = session.NewContext(sid)
			}

			c.Set(sessionKey, sc)
			if sc.Authenticated() {
				c.Set(userIDKey, sc.UserID())
				c.Set(roleKey, string(sc.Role()))
			}
			return next(c)
		}
	}
}

func issueSessionID(c echo.Context, cfg config.Session) string {
	sid := uuid.NewString()
	c.SetCookie(&http.Cookie{
		Name:     cfg.CookieName,
		Value:    sid,
		Path:     "/",
		Expires:  time.Now().Add(cfg.TTL),
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	c.Response().Header().Set(SessionHeader, sid)
	return sid
}

// RenewSession moves the visitor to a new, empty session id. Whatever is
// still stored under the old id can no longer be reached through this client.
func RenewSession(c echo.Context) *session.Context {
	cfg, _ := c.Get(cookieKey).(config.Session)
	sc := session.NewContext(issueSessionID(c, cfg))
	c.Set(sessionKey, sc)
	c.Set(userIDKey, nil)
	c.Set(roleKey, nil)
	return sc
}

// SessionFrom returns the context loaded by Session. Outside of it a fresh
// unauthenticated context is returned.
func SessionFrom(c echo.Context) *session.Context {
	if sc, ok := c.Get(sessionKey).(*session.Context); ok {
		return sc
	}
	return session.NewContext("")
}

// RequireAuth rejects requests without a signed-in user.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !SessionFrom(c).Authenticated() {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
			}
			return next(c)
		}
	}
}

// RequireRole lets through users whose profile role is one of roles. It runs
// after Session, which stores the role under "role".
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(roleKey).(string)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

package session

import (
	"time"

	"academy-storefront/internal/client"
	"academy-storefront/internal/model"
)

type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticating  State = "authenticating"
	StateAuthenticated   State = "authenticated"
	StateSigningOut      State = "signing_out"
)

// Tokens is the access/refresh pair issued by the auth endpoint.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (t *Tokens) Expired(now time.Time) bool {
	return t == nil || (!t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt))
}

func tokensFrom(res *client.AuthResponse, now time.Time) *Tokens {
	return &Tokens{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		TokenType:    res.TokenType,
		ExpiresAt:    res.Expiry(now).UTC(),
	}
}

// Context is the per-visitor application context: who is signed in, their
// profile and their token pair. It is handed explicitly to whatever needs
// the current user and is persisted as one blob per session id.
type Context struct {
	ID    string `json:"-"`
	State State  `json:"-"`

	User    *client.AuthUser `json:"user"`
	Profile *model.Profile   `json:"profile"`
	Session *Tokens          `json:"session"`
}

func NewContext(id string) *Context {
	return &Context{ID: id, State: StateUnauthenticated}
}

// Reset drops everything but the session id.
func (c *Context) Reset() {
	c.State = StateUnauthenticated
	c.User = nil
	c.Profile = nil
	c.Session = nil
}

func (c *Context) Authenticated() bool {
	return c != nil && c.State == StateAuthenticated && c.Session != nil && c.Session.AccessToken != ""
}

func (c *Context) AccessToken() string {
	if c == nil || c.Session == nil {
		return ""
	}
	return c.Session.AccessToken
}

func (c *Context) UserID() string {
	if c == nil || c.User == nil {
		return ""
	}
	return c.User.ID
}

// Role comes from the profile row; without one the user is a student.
func (c *Context) Role() model.Role {
	if c == nil || c.Profile == nil || c.Profile.Role == "" {
		return model.RoleStudent
	}
	return c.Profile.Role
}

func (c *Context) IsAdmin() bool {
	return c.Authenticated() && c.Profile.IsAdmin()
}

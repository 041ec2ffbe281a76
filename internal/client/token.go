package client

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type accessTokenKey struct{}

// WithAccessToken returns a context whose backend calls are made on behalf of
// the token's user. Calls without a token use the anonymous key.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, token)
}

func AccessToken(ctx context.Context) string {
	token, _ := ctx.Value(accessTokenKey{}).(string)
	return token
}

// Claims are the access-token claims the service relies on.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// ParseClaims decodes an access token. With a secret the HS256 signature and
// expiry are verified; without one the claims are only decoded.
func ParseClaims(token, secret string) (*Claims, error) {
	claims := &Claims{}
	if secret == "" {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("decode access token: %w", err)
		}
		return claims, nil
	}

	tok, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("verify access token: %w", err)
	}
	if !tok.Valid {
		return nil, fmt.Errorf("verify access token: invalid")
	}
	return claims, nil
}

// ExpiresAtTime returns the exp claim, or the zero time.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"academy-storefront/internal/config"
)

// BackendClient is the single entry point to the hosted auth + REST platform.
type BackendClient interface {
	SignUp(ctx context.Context, email, password string, data map[string]interface{}) (*AuthResponse, error)
	SignIn(ctx context.Context, email, password string) (*AuthResponse, error)
	SignOut(ctx context.Context, accessToken string) error
	Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error)
	GetUser(ctx context.Context, accessToken string) (*AuthUser, error)
	Query(ctx context.Context, q *Query, out interface{}) error
	Mutate(ctx context.Context, m *Mutation, out interface{}) error
}

// Policy applies to every request sent by the client. Retries are only used
// for reads that fail with a transport error or a 5xx.
type Policy struct {
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

type backendClientImpl struct {
	httpClient *http.Client
	baseURL    string
	anonKey    string
	policy     Policy
}

type AuthUser struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	Phone        string                 `json:"phone,omitempty"`
	Role         string                 `json:"role,omitempty"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

type AuthResponse struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at"`
	RefreshToken string    `json:"refresh_token"`
	User         *AuthUser `json:"user"`

	// Raw is the response body as received.
	Raw json.RawMessage `json:"-"`
}

// HasSession reports whether the response carries a token pair. Sign-ups that
// wait for email confirmation only return the user.
func (r *AuthResponse) HasSession() bool {
	return r != nil && r.AccessToken != "" && r.RefreshToken != ""
}

// Expiry returns the absolute expiry of the access token. Responses without
// expires_at or expires_in fall back to the token's exp claim.
func (r *AuthResponse) Expiry(now time.Time) time.Time {
	if r.ExpiresAt > 0 {
		return time.Unix(r.ExpiresAt, 0)
	}
	if r.ExpiresIn > 0 {
		return now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	if claims, err := ParseClaims(r.AccessToken, ""); err == nil {
		return claims.ExpiresAtTime()
	}
	return now
}

func NewBackendClient(cfg *config.Backend) BackendClient {
	return newBackendClient(cfg.URL, cfg.AnonKey, Policy{
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		Backoff:    cfg.Backoff,
	})
}

func newBackendClient(baseURL, anonKey string, policy Policy) *backendClientImpl {
	if policy.Timeout <= 0 {
		policy.Timeout = 15 * time.Second
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	return &backendClientImpl{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		policy:     policy,
	}
}

func (c *backendClientImpl) SignUp(ctx context.Context, email, password string, data map[string]interface{}) (*AuthResponse, error) {
	payload := map[string]interface{}{
		"email":    email,
		"password": password,
	}
	if len(data) > 0 {
		payload["data"] = data
	}

	body, err := c.send(ctx, http.MethodPost, "/auth/v1/signup", nil, payload, "", nil)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	return decodeAuthResponse(body)
}

func (c *backendClientImpl) SignIn(ctx context.Context, email, password string) (*AuthResponse, error) {
	q := url.Values{"grant_type": {"password"}}
	payload := map[string]string{
		"email":    email,
		"password": password,
	}

	body, err := c.send(ctx, http.MethodPost, "/auth/v1/token", q, payload, "", nil)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	return decodeAuthResponse(body)
}

func (c *backendClientImpl) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	q := url.Values{"grant_type": {"refresh_token"}}
	payload := map[string]string{"refresh_token": refreshToken}

	body, err := c.send(ctx, http.MethodPost, "/auth/v1/token", q, payload, "", nil)
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	return decodeAuthResponse(body)
}

func (c *backendClientImpl) SignOut(ctx context.Context, accessToken string) error {
	if _, err := c.send(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, accessToken, nil); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

func (c *backendClientImpl) GetUser(ctx context.Context, accessToken string) (*AuthUser, error) {
	body, err := c.send(ctx, http.MethodGet, "/auth/v1/user", nil, nil, accessToken, nil)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	var user AuthUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &user, nil
}

// Query reads rows from a table. out must be a pointer to a slice.
func (c *backendClientImpl) Query(ctx context.Context, q *Query, out interface{}) error {
	body, err := c.send(ctx, http.MethodGet, "/rest/v1/"+q.Table, q.Values(), nil, AccessToken(ctx), nil)
	if err != nil {
		return fmt.Errorf("query %s: %w", q.Table, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s rows: %w", q.Table, err)
	}
	return nil
}

// Mutate writes rows. When m.Returning is set the affected rows are decoded
// into out, which must then be a pointer to a slice.
func (c *backendClientImpl) Mutate(ctx context.Context, m *Mutation, out interface{}) error {
	method, err := m.method()
	if err != nil {
		return err
	}
	if m.Kind != MutationInsert && len(m.Filters) == 0 {
		return fmt.Errorf("%s %s: refusing unfiltered mutation", m.Kind, m.Table)
	}

	headers := http.Header{}
	headers.Set("Prefer", m.prefer())

	var payload interface{}
	if m.Kind != MutationDelete {
		payload = m.Body
	}

	body, err := c.send(ctx, method, "/rest/v1/"+m.Table, m.Values(), payload, AccessToken(ctx), headers)
	if err != nil {
		return fmt.Errorf("%s %s: %w", m.Kind, m.Table, err)
	}
	if out == nil || !m.Returning || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s rows: %w", m.Table, err)
	}
	return nil
}

func (c *backendClientImpl) send(
	ctx context.Context,
	method, path string,
	query url.Values,
	payload interface{},
	bearer string,
	headers http.Header,
) ([]byte, error) {
	var raw []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal req payload: %w", err)
		}
		raw = b
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	attempts := 1
	if method == http.MethodGet {
		attempts += c.policy.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.policy.Backoff * time.Duration(attempt)):
			}
		}

		body, err := c.do(ctx, method, endpoint, raw, bearer, headers)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (c *backendClientImpl) do(
	ctx context.Context,
	method, endpoint string,
	raw []byte,
	bearer string,
	headers http.Header,
) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.policy.Timeout)
	defer cancel()

	var reqBody io.Reader
	if raw != nil {
		reqBody = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}

	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if raw != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vals := range headers {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, body)
	}
	return body, nil
}

func decodeAuthResponse(body []byte) (*AuthResponse, error) {
	var res AuthResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode auth response: %w", err)
	}
	res.Raw = append(json.RawMessage(nil), body...)

	// a sign-up awaiting confirmation answers with the bare user object
	if res.AccessToken == "" && res.User == nil {
		var user AuthUser
		if err := json.Unmarshal(body, &user); err == nil && user.ID != "" {
			res.User = &user
		}
	}
	return &res, nil
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return "backend request failed: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return !errors.Is(err, context.Canceled)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	return false
}

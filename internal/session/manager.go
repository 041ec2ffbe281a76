package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"academy-storefront/internal/client"
	"academy-storefront/internal/model"
	"academy-storefront/internal/repository"
)

var (
	ErrUnauthenticated = errors.New("not signed in")
	// ErrReauthenticate means the token pair was rejected and the session
	// has been cleared.
	ErrReauthenticate = errors.New("session expired, sign in again")
)

type CheckStatus string

const (
	CheckValid   CheckStatus = "valid"
	CheckInvalid CheckStatus = "invalid"
	// CheckUnknown is returned when the backend did not answer in time.
	CheckUnknown CheckStatus = "unknown"
)

type SignUpRequest struct {
	Email    string
	Password string
	FullName string
	Phone    string
}

// Audit carries request details recorded with security events.
type Audit struct {
	IPAddress string
	UserAgent string
}

type Logger interface {
	Warnf(format string, args ...interface{})
}

type Manager interface {
	Load(ctx context.Context, sid string) (*Context, error)
	SignIn(ctx context.Context, sc *Context, email, password string, audit Audit) error
	// SignUp reports whether the account still waits for email confirmation.
	SignUp(ctx context.Context, sc *Context, req SignUpRequest, audit Audit) (bool, error)
	SignOut(ctx context.Context, sc *Context, audit Audit) error
	Refresh(ctx context.Context, sc *Context) error
	WithRefreshRetry(ctx context.Context, sc *Context, op func(ctx context.Context) error) error
	CheckSession(ctx context.Context, sc *Context) (CheckStatus, error)
}

type managerImpl struct {
	backend      client.BackendClient
	profiles     repository.ProfileRepository
	events       repository.SecurityEventRepository
	store        Store
	logger       Logger
	checkTimeout time.Duration
	jwtSecret    string
	now          func() time.Time
}

func NewManager(
	backend client.BackendClient,
	profiles repository.ProfileRepository,
	events repository.SecurityEventRepository,
	store Store,
	logger Logger,
	checkTimeout time.Duration,
	jwtSecret string,
) Manager {
	if checkTimeout <= 0 {
		checkTimeout = 5 * time.Second
	}
	return &managerImpl{
		backend:      backend,
		profiles:     profiles,
		events:       events,
		store:        store,
		logger:       logger,
		checkTimeout: checkTimeout,
		jwtSecret:    jwtSecret,
		now:          time.Now,
	}
}

// Load rehydrates the context stored under sid. A missing or unreadable
// blob yields an unauthenticated context.
func (m *managerImpl) Load(ctx context.Context, sid string) (*Context, error) {
	sc := NewContext(sid)

	raw, err := m.store.Get(ctx, authKey(sid))
	if errors.Is(err, ErrNoData) {
		return sc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if err := json.Unmarshal(raw, sc); err != nil {
		m.logger.Warnf("discarding unreadable session %s: %v", sid, err)
		sc.Reset()
		return sc, nil
	}

	if sc.Session == nil || sc.Session.AccessToken == "" || sc.User == nil {
		sc.Reset()
		return sc, nil
	}
	if !m.trusted(sc.Session.AccessToken) {
		m.logger.Warnf("discarding session %s: access token failed verification", sid)
		if err := m.clear(ctx, sc); err != nil {
			m.logger.Warnf("clear session %s: %v", sid, err)
		}
		return sc, nil
	}
	sc.State = StateAuthenticated

	if err := m.loadProfile(ctx, sc); err != nil {
		m.logger.Warnf("profile fetch for %s: %v", sc.UserID(), err)
		sc.Profile = nil
		if err := m.save(ctx, sc, nil); err != nil {
			m.logger.Warnf("save session %s: %v", sid, err)
		}
	}
	return sc, nil
}

// trusted checks the stored token signature when a secret is configured.
// Expired tokens still pass; the refresh path renews them.
func (m *managerImpl) trusted(token string) bool {
	if m.jwtSecret == "" {
		return true
	}
	_, err := client.ParseClaims(token, m.jwtSecret)
	return err == nil || errors.Is(err, jwt.ErrTokenExpired)
}

func (m *managerImpl) SignIn(ctx context.Context, sc *Context, email, password string, audit Audit) error {
	sc.State = StateAuthenticating

	res, err := m.backend.SignIn(ctx, strings.TrimSpace(email), password)
	if err != nil {
		sc.Reset()
		m.record(ctx, "", "", email, model.SecurityEventSignInFailed, audit)
		return err
	}
	if !res.HasSession() {
		sc.Reset()
		return ErrUnauthenticated
	}

	if err := m.establish(ctx, sc, res, nil); err != nil {
		return err
	}
	m.record(ctx, sc.AccessToken(), sc.UserID(), email, model.SecurityEventSignIn, audit)
	return nil
}

func (m *managerImpl) SignUp(ctx context.Context, sc *Context, req SignUpRequest, audit Audit) (bool, error) {
	sc.State = StateAuthenticating

	data := map[string]interface{}{}
	if req.FullName != "" {
		data["full_name"] = strings.TrimSpace(req.FullName)
	}
	if req.Phone != "" {
		data["phone"] = strings.TrimSpace(req.Phone)
	}

	res, err := m.backend.SignUp(ctx, strings.TrimSpace(req.Email), req.Password, data)
	if err != nil {
		sc.Reset()
		return false, err
	}
	if !res.HasSession() {
		sc.Reset()
		return true, nil
	}

	if err := m.establish(ctx, sc, res, &req); err != nil {
		return false, err
	}
	m.record(ctx, sc.AccessToken(), sc.UserID(), req.Email, model.SecurityEventSignUp, audit)
	return false, nil
}

// establish stores the token pair first and only then looks up or creates the
// profile row. A profile failure leaves the user signed in without a profile.
func (m *managerImpl) establish(ctx context.Context, sc *Context, res *client.AuthResponse, signUp *SignUpRequest) error {
	sc.User = res.User
	sc.Session = tokensFrom(res, m.now())
	sc.Profile = nil
	sc.State = StateAuthenticated

	if err := m.save(ctx, sc, res.Raw); err != nil {
		sc.Reset()
		return fmt.Errorf("save session: %w", err)
	}

	if err := m.ensureProfile(ctx, sc, signUp); err != nil {
		m.logger.Warnf("profile setup for %s: %v", sc.UserID(), err)
		return nil
	}
	if err := m.save(ctx, sc, nil); err != nil {
		m.logger.Warnf("save session %s: %v", sc.ID, err)
	}
	return nil
}

func (m *managerImpl) loadProfile(ctx context.Context, sc *Context) error {
	profile, err := m.profiles.FindByID(client.WithAccessToken(ctx, sc.AccessToken()), sc.UserID())
	if err != nil {
		return err
	}
	sc.Profile = profile
	return nil
}

func (m *managerImpl) ensureProfile(ctx context.Context, sc *Context, signUp *SignUpRequest) error {
	if sc.User == nil {
		return fmt.Errorf("token response without user")
	}
	err := m.loadProfile(ctx, sc)
	if err == nil || !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	profile := &model.Profile{
		ID:    sc.UserID(),
		Email: sc.User.Email,
		Role:  model.RoleStudent,
	}
	if name, ok := sc.User.UserMetadata["full_name"].(string); ok {
		profile.FullName = name
	}
	if signUp != nil {
		profile.FullName = strings.TrimSpace(signUp.FullName)
		profile.Phone = strings.TrimSpace(signUp.Phone)
	}

	created, err := m.profiles.Create(client.WithAccessToken(ctx, sc.AccessToken()), profile)
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	sc.Profile = created
	return nil
}

// SignOut always ends unauthenticated. The remote revocation is best effort;
// only a failure to clear the local store is returned.
func (m *managerImpl) SignOut(ctx context.Context, sc *Context, audit Audit) error {
	sc.State = StateSigningOut

	if token := sc.AccessToken(); token != "" {
		email := ""
		if sc.User != nil {
			email = sc.User.Email
		}
		m.record(ctx, token, sc.UserID(), email, model.SecurityEventSignOut, audit)
		if err := m.backend.SignOut(ctx, token); err != nil {
			m.logger.Warnf("remote sign out for %s: %v", sc.UserID(), err)
		}
	}
	return m.clear(ctx, sc)
}

func (m *managerImpl) Refresh(ctx context.Context, sc *Context) error {
	if sc.Session == nil || sc.Session.RefreshToken == "" {
		return ErrUnauthenticated
	}

	res, err := m.backend.Refresh(ctx, sc.Session.RefreshToken)
	if err != nil {
		if client.IsUnauthorized(err) || client.StatusOf(err) == http.StatusBadRequest {
			if cerr := m.clear(ctx, sc); cerr != nil {
				m.logger.Warnf("clear session %s: %v", sc.ID, cerr)
			}
			return ErrReauthenticate
		}
		return fmt.Errorf("refresh session: %w", err)
	}
	if !res.HasSession() {
		return fmt.Errorf("refresh session: no token pair returned")
	}

	sc.Session = tokensFrom(res, m.now())
	if res.User != nil {
		sc.User = res.User
	}
	sc.State = StateAuthenticated
	return m.save(ctx, sc, res.Raw)
}

// WithRefreshRetry runs op with the current access token. A token already
// past its expiry is refreshed first. When the backend answers 401 the token
// pair is refreshed and op runs once more; a second 401 clears the session.
func (m *managerImpl) WithRefreshRetry(ctx context.Context, sc *Context, op func(ctx context.Context) error) error {
	if !sc.Authenticated() {
		return ErrUnauthenticated
	}

	refreshed := false
	if sc.Session.Expired(m.now()) {
		if rerr := m.Refresh(ctx, sc); rerr != nil {
			return rerr
		}
		refreshed = true
	}

	err := op(client.WithAccessToken(ctx, sc.AccessToken()))
	if !client.IsUnauthorized(err) {
		return err
	}

	if !refreshed {
		if rerr := m.Refresh(ctx, sc); rerr != nil {
			return rerr
		}
	}

	err = op(client.WithAccessToken(ctx, sc.AccessToken()))
	if client.IsUnauthorized(err) {
		if cerr := m.clear(ctx, sc); cerr != nil {
			m.logger.Warnf("clear session %s: %v", sc.ID, cerr)
		}
		return ErrReauthenticate
	}
	return err
}

type userResult struct {
	user *client.AuthUser
	err  error
}

// CheckSession asks the backend whether the access token is still good. If
// it does not answer within the check timeout the local state is kept and
// the status is unknown.
func (m *managerImpl) CheckSession(ctx context.Context, sc *Context) (CheckStatus, error) {
	if !sc.Authenticated() {
		return CheckInvalid, nil
	}

	cctx, cancel := context.WithTimeout(ctx, m.checkTimeout)
	defer cancel()

	done := make(chan userResult, 1)
	go func() {
		user, err := m.backend.GetUser(cctx, sc.AccessToken())
		done <- userResult{user: user, err: err}
	}()

	var res userResult
	select {
	case res = <-done:
	case <-cctx.Done():
		return CheckUnknown, nil
	}

	switch {
	case res.err == nil:
		sc.User = res.user
		return CheckValid, nil
	case errors.Is(res.err, context.DeadlineExceeded):
		return CheckUnknown, nil
	case client.IsUnauthorized(res.err):
		if err := m.Refresh(ctx, sc); err != nil {
			if errors.Is(err, ErrReauthenticate) || errors.Is(err, ErrUnauthenticated) {
				return CheckInvalid, nil
			}
			return CheckUnknown, err
		}
		return CheckValid, nil
	default:
		return CheckUnknown, res.err
	}
}

func (m *managerImpl) save(ctx context.Context, sc *Context, rawTokens json.RawMessage) error {
	blob, err := json.Marshal(sc)
	if err != nil {
		return err
	}
	if err := m.store.Put(ctx, authKey(sc.ID), blob); err != nil {
		return err
	}
	if len(rawTokens) > 0 {
		return m.store.Put(ctx, tokenKey(sc.ID), rawTokens)
	}
	return nil
}

func (m *managerImpl) clear(ctx context.Context, sc *Context) error {
	sc.Reset()
	if err := m.store.Delete(ctx, authKey(sc.ID), tokenKey(sc.ID)); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (m *managerImpl) record(ctx context.Context, token, userID, email string, kind model.SecurityEventType, audit Audit) {
	if m.events == nil {
		return
	}
	event := &model.SecurityEvent{
		Email:     strings.TrimSpace(email),
		EventType: kind,
		IPAddress: audit.IPAddress,
		UserAgent: audit.UserAgent,
	}
	if userID != "" {
		event.UserID = &userID
	}
	if token != "" {
		ctx = client.WithAccessToken(ctx, token)
	}
	if err := m.events.Record(ctx, event); err != nil {
		m.logger.Warnf("record %s event: %v", kind, err)
	}
}

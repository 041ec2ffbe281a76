package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy-storefront/internal/client"
	"academy-storefront/internal/model"
	"academy-storefront/internal/repository"
)

type fakeBackend struct {
	client.BackendClient

	signIn  func(email, password string) (*client.AuthResponse, error)
	signUp  func(email string) (*client.AuthResponse, error)
	signOut func(token string) error
	refresh func(refreshToken string) (*client.AuthResponse, error)
	getUser func(ctx context.Context, token string) (*client.AuthUser, error)

	signOutCalls int
}

func (f *fakeBackend) SignIn(_ context.Context, email, password string) (*client.AuthResponse, error) {
	return f.signIn(email, password)
}

func (f *fakeBackend) SignUp(_ context.Context, email, _ string, _ map[string]interface{}) (*client.AuthResponse, error) {
	return f.signUp(email)
}

func (f *fakeBackend) SignOut(_ context.Context, token string) error {
	f.signOutCalls++
	if f.signOut == nil {
		return nil
	}
	return f.signOut(token)
}

func (f *fakeBackend) Refresh(_ context.Context, refreshToken string) (*client.AuthResponse, error) {
	return f.refresh(refreshToken)
}

func (f *fakeBackend) GetUser(ctx context.Context, token string) (*client.AuthUser, error) {
	return f.getUser(ctx, token)
}

type fakeProfiles struct {
	repository.ProfileRepository
	rows      map[string]*model.Profile
	findErr   error
	createErr error
	tokens    []string
}

func (f *fakeProfiles) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	f.tokens = append(f.tokens, client.AccessToken(ctx))
	if f.findErr != nil {
		return nil, f.findErr
	}
	if p, ok := f.rows[id]; ok {
		return p, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeProfiles) Create(_ context.Context, p *model.Profile) (*model.Profile, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.rows == nil {
		f.rows = map[string]*model.Profile{}
	}
	f.rows[p.ID] = p
	return p, nil
}

type fakeEvents struct {
	repository.SecurityEventRepository
	recorded []model.SecurityEventType
}

func (f *fakeEvents) Record(_ context.Context, e *model.SecurityEvent) error {
	f.recorded = append(f.recorded, e.EventType)
	return nil
}

type memStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	delErr error
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, ErrNoData
	}
	return v, nil
}

func (s *memStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delErr != nil {
		return s.delErr
	}
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...interface{}) {}

func authResponse(access, refresh string) *client.AuthResponse {
	return &client.AuthResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    3600,
		User:         &client.AuthUser{ID: "u1", Email: "ada@example.com"},
		Raw:          json.RawMessage(`{"access_token":"` + access + `"}`),
	}
}

func unauthorized() error {
	return &client.APIError{Status: http.StatusUnauthorized, Code: "bad_jwt", Message: "invalid JWT"}
}

type managerFixture struct {
	backend  *fakeBackend
	profiles *fakeProfiles
	events   *fakeEvents
	store    *memStore
	mgr      *managerImpl
}

func newManagerFixture() *managerFixture {
	f := &managerFixture{
		backend: &fakeBackend{
			signIn: func(string, string) (*client.AuthResponse, error) {
				return authResponse("at1", "rt1"), nil
			},
		},
		profiles: &fakeProfiles{rows: map[string]*model.Profile{
			"u1": {ID: "u1", Email: "ada@example.com", Role: model.RoleAdmin},
		}},
		events: &fakeEvents{},
		store:  newMemStore(),
	}
	f.mgr = NewManager(f.backend, f.profiles, f.events, f.store, nopLogger{}, 50*time.Millisecond, "").(*managerImpl)
	return f
}

func (f *managerFixture) signedIn(t *testing.T) *Context {
	t.Helper()
	sc := NewContext("sid1")
	require.NoError(t, f.mgr.SignIn(context.Background(), sc, "ada@example.com", "pw", Audit{}))
	return sc
}

func TestSignInStoresTokensAndProfile(t *testing.T) {
	f := newManagerFixture()
	sc := f.signedIn(t)

	assert.Equal(t, StateAuthenticated, sc.State)
	assert.True(t, sc.Authenticated())
	assert.True(t, sc.IsAdmin())
	assert.Equal(t, "at1", sc.AccessToken())
	assert.Equal(t, []string{"at1"}, f.profiles.tokens)

	raw, ok := f.store.data["sid1:academy-auth"]
	require.True(t, ok)
	var blob map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &blob))
	assert.Contains(t, blob, "user")
	assert.Contains(t, blob, "profile")
	assert.Contains(t, blob, "session")
	assert.JSONEq(t, `{"access_token":"at1"}`, string(f.store.data["sid1:sb-auth-token"]))
	assert.Equal(t, []model.SecurityEventType{model.SecurityEventSignIn}, f.events.recorded)
}

func TestSignInFailure(t *testing.T) {
	f := newManagerFixture()
	f.backend.signIn = func(string, string) (*client.AuthResponse, error) {
		return nil, &client.APIError{Status: http.StatusBadRequest, Code: "invalid_grant"}
	}

	sc := NewContext("sid1")
	err := f.mgr.SignIn(context.Background(), sc, "ada@example.com", "bad", Audit{})
	require.Error(t, err)
	assert.Equal(t, StateUnauthenticated, sc.State)
	assert.Empty(t, f.store.data)
	assert.Equal(t, []model.SecurityEventType{model.SecurityEventSignInFailed}, f.events.recorded)
}

func TestSignInKeepsSessionWhenProfileFails(t *testing.T) {
	f := newManagerFixture()
	f.profiles.findErr = errors.New("backend down")

	sc := f.signedIn(t)
	assert.True(t, sc.Authenticated())
	assert.Nil(t, sc.Profile)
	assert.Equal(t, model.RoleStudent, sc.Role())
	assert.Contains(t, f.store.data, "sid1:academy-auth")
}

func TestSignInCreatesMissingProfile(t *testing.T) {
	f := newManagerFixture()
	f.profiles.rows = nil

	sc := f.signedIn(t)
	require.NotNil(t, sc.Profile)
	assert.Equal(t, model.RoleStudent, sc.Profile.Role)
	assert.Equal(t, "ada@example.com", sc.Profile.Email)
}

func TestSignUp(t *testing.T) {
	t.Run("awaiting confirmation", func(t *testing.T) {
		f := newManagerFixture()
		f.backend.signUp = func(email string) (*client.AuthResponse, error) {
			return &client.AuthResponse{User: &client.AuthUser{ID: "u2", Email: email}}, nil
		}

		sc := NewContext("sid2")
		pending, err := f.mgr.SignUp(context.Background(), sc, SignUpRequest{Email: "new@example.com", Password: "pw"}, Audit{})
		require.NoError(t, err)
		assert.True(t, pending)
		assert.False(t, sc.Authenticated())
		assert.Empty(t, f.store.data)
	})

	t.Run("signed in immediately", func(t *testing.T) {
		f := newManagerFixture()
		f.profiles.rows = nil
		f.backend.signUp = func(string) (*client.AuthResponse, error) {
			return authResponse("at1", "rt1"), nil
		}

		sc := NewContext("sid2")
		pending, err := f.mgr.SignUp(context.Background(), sc, SignUpRequest{
			Email: "ada@example.com", Password: "pw", FullName: " Ada Lovelace ", Phone: "5551234567",
		}, Audit{})
		require.NoError(t, err)
		assert.False(t, pending)
		assert.True(t, sc.Authenticated())
		require.NotNil(t, sc.Profile)
		assert.Equal(t, "Ada Lovelace", sc.Profile.FullName)
		assert.Equal(t, []model.SecurityEventType{model.SecurityEventSignUp}, f.events.recorded)
	})
}

func TestSignOutAlwaysClearsLocalState(t *testing.T) {
	f := newManagerFixture()
	f.backend.signOut = func(string) error { return errors.New("network unreachable") }
	sc := f.signedIn(t)

	require.NoError(t, f.mgr.SignOut(context.Background(), sc, Audit{}))
	assert.Equal(t, 1, f.backend.signOutCalls)
	assert.Equal(t, StateUnauthenticated, sc.State)
	assert.Nil(t, sc.User)
	assert.Nil(t, sc.Session)
	assert.Empty(t, f.store.data)
	assert.Equal(t, "sid1", sc.ID)
}

func TestSignOutStoreFailureStillResetsContext(t *testing.T) {
	f := newManagerFixture()
	sc := f.signedIn(t)
	f.store.delErr = errors.New("disk full")

	assert.Error(t, f.mgr.SignOut(context.Background(), sc, Audit{}))
	assert.Equal(t, StateUnauthenticated, sc.State)
	assert.Nil(t, sc.Session)
	assert.Contains(t, f.store.data, "sid1:academy-auth")
}

func TestLoad(t *testing.T) {
	f := newManagerFixture()
	f.signedIn(t)

	sc, err := f.mgr.Load(context.Background(), "sid1")
	require.NoError(t, err)
	assert.True(t, sc.Authenticated())
	assert.Equal(t, "u1", sc.UserID())

	empty, err := f.mgr.Load(context.Background(), "other")
	require.NoError(t, err)
	assert.Equal(t, StateUnauthenticated, empty.State)
	assert.Equal(t, "other", empty.ID)

	f.store.data["broken:academy-auth"] = []byte("{not json")
	broken, err := f.mgr.Load(context.Background(), "broken")
	require.NoError(t, err)
	assert.False(t, broken.Authenticated())
}

func TestLoadVerifiesTokenSignature(t *testing.T) {
	sign := func(secret string, exp time.Time) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(exp),
		}).SignedString([]byte(secret))
		require.NoError(t, err)
		return token
	}

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"signed", sign("s3cret", time.Now().Add(time.Hour)), true},
		{"expired but signed", sign("s3cret", time.Now().Add(-time.Hour)), true},
		{"foreign signature", sign("other", time.Now().Add(time.Hour)), false},
		{"opaque", "at1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newManagerFixture()
			f.mgr.jwtSecret = "s3cret"
			f.backend.signIn = func(string, string) (*client.AuthResponse, error) {
				return authResponse(tt.token, "rt1"), nil
			}
			f.signedIn(t)

			sc, err := f.mgr.Load(context.Background(), "sid1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, sc.Authenticated())
			if !tt.want {
				assert.NotContains(t, f.store.data, "sid1:academy-auth")
			}
		})
	}
}

func TestLoadProfileFailureDoesNotSignOut(t *testing.T) {
	f := newManagerFixture()
	f.signedIn(t)
	f.profiles.findErr = errors.New("timeout")

	sc, err := f.mgr.Load(context.Background(), "sid1")
	require.NoError(t, err)
	assert.True(t, sc.Authenticated())
	assert.Nil(t, sc.Profile)
}

func TestRefresh(t *testing.T) {
	f := newManagerFixture()
	sc := f.signedIn(t)
	f.backend.refresh = func(rt string) (*client.AuthResponse, error) {
		assert.Equal(t, "rt1", rt)
		return authResponse("at2", "rt2"), nil
	}

	require.NoError(t, f.mgr.Refresh(context.Background(), sc))
	assert.Equal(t, "at2", sc.AccessToken())
	assert.JSONEq(t, `{"access_token":"at2"}`, string(f.store.data["sid1:sb-auth-token"]))

	assert.ErrorIs(t, f.mgr.Refresh(context.Background(), NewContext("x")), ErrUnauthenticated)
}

func TestWithRefreshRetry(t *testing.T) {
	t.Run("success without refresh", func(t *testing.T) {
		f := newManagerFixture()
		sc := f.signedIn(t)

		calls := 0
		err := f.mgr.WithRefreshRetry(context.Background(), sc, func(ctx context.Context) error {
			calls++
			assert.Equal(t, "at1", client.AccessToken(ctx))
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("refreshes once on 401", func(t *testing.T) {
		f := newManagerFixture()
		sc := f.signedIn(t)
		f.backend.refresh = func(string) (*client.AuthResponse, error) {
			return authResponse("at2", "rt2"), nil
		}

		var tokens []string
		err := f.mgr.WithRefreshRetry(context.Background(), sc, func(ctx context.Context) error {
			tokens = append(tokens, client.AccessToken(ctx))
			if len(tokens) == 1 {
				return unauthorized()
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"at1", "at2"}, tokens)
	})

	t.Run("second 401 clears session", func(t *testing.T) {
		f := newManagerFixture()
		sc := f.signedIn(t)
		f.backend.refresh = func(string) (*client.AuthResponse, error) {
			return authResponse("at2", "rt2"), nil
		}

		calls := 0
		err := f.mgr.WithRefreshRetry(context.Background(), sc, func(ctx context.Context) error {
			calls++
			return unauthorized()
		})
		assert.ErrorIs(t, err, ErrReauthenticate)
		assert.Equal(t, 2, calls)
		assert.False(t, sc.Authenticated())
		assert.Empty(t, f.store.data)
	})

	t.Run("rejected refresh token", func(t *testing.T) {
		f := newManagerFixture()
		sc := f.signedIn(t)
		f.backend.refresh = func(string) (*client.AuthResponse, error) {
			return nil, &client.APIError{Status: http.StatusBadRequest, Code: "invalid_grant"}
		}

		err := f.mgr.WithRefreshRetry(context.Background(), sc, func(context.Context) error {
			return unauthorized()
		})
		assert.ErrorIs(t, err, ErrReauthenticate)
		assert.False(t, sc.Authenticated())
	})

	t.Run("other errors pass through", func(t *testing.T) {
		f := newManagerFixture()
		sc := f.signedIn(t)
		boom := errors.New("boom")

		err := f.mgr.WithRefreshRetry(context.Background(), sc, func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.True(t, sc.Authenticated())
	})

	t.Run("expired token is refreshed up front", func(t *testing.T) {
		f := newManagerFixture()
		sc := f.signedIn(t)
		sc.Session.ExpiresAt = time.Now().Add(-time.Minute)
		refreshes := 0
		f.backend.refresh = func(rt string) (*client.AuthResponse, error) {
			refreshes++
			assert.Equal(t, "rt1", rt)
			return authResponse("at2", "rt2"), nil
		}

		var tokens []string
		err := f.mgr.WithRefreshRetry(context.Background(), sc, func(ctx context.Context) error {
			tokens = append(tokens, client.AccessToken(ctx))
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"at2"}, tokens)
		assert.Equal(t, 1, refreshes)
		assert.False(t, sc.Session.Expired(time.Now()))
	})

	t.Run("401 after an up-front refresh clears session", func(t *testing.T) {
		f := newManagerFixture()
		sc := f.signedIn(t)
		sc.Session.ExpiresAt = time.Now().Add(-time.Minute)
		refreshes := 0
		f.backend.refresh = func(string) (*client.AuthResponse, error) {
			refreshes++
			return authResponse("at2", "rt2"), nil
		}

		err := f.mgr.WithRefreshRetry(context.Background(), sc, func(context.Context) error {
			return unauthorized()
		})
		assert.ErrorIs(t, err, ErrReauthenticate)
		assert.Equal(t, 1, refreshes)
		assert.False(t, sc.Authenticated())
	})

	t.Run("requires a session", func(t *testing.T) {
		f := newManagerFixture()
		err := f.mgr.WithRefreshRetry(context.Background(), NewContext("x"), func(context.Context) error { return nil })
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestCheckSession(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		f := newManagerFixture()
		sc := f.signedIn(t)
		f.backend.getUser = func(_ context.Context, token string) (*client.AuthUser, error) {
			return &client.AuthUser{ID: "u1", Email: "ada@new.example.com"}, nil
		}

		status, err := f.mgr.CheckSession(context.Background(), sc)
		require.NoError(t, err)
		assert.Equal(t, CheckValid, status)
		assert.Equal(t, "ada@new.example.com", sc.User.Email)
	})

	t.Run("timeout keeps local state", func(t *testing.T) {
		f := newManagerFixture()
		sc := f.signedIn(t)
		release := make(chan struct{})
		defer close(release)
		f.backend.getUser = func(context.Context, string) (*client.AuthUser, error) {
			<-release
			return nil, errors.New("too late")
		}

		status, err := f.mgr.CheckSession(context.Background(), sc)
		require.NoError(t, err)
		assert.Equal(t, CheckUnknown, status)
		assert.True(t, sc.Authenticated())
	})

	t.Run("revoked token", func(t *testing.T) {
		f := newManagerFixture()
		sc := f.signedIn(t)
		f.backend.getUser = func(context.Context, string) (*client.AuthUser, error) {
			return nil, unauthorized()
		}
		f.backend.refresh = func(string) (*client.AuthResponse, error) {
			return nil, unauthorized()
		}

		status, err := f.mgr.CheckSession(context.Background(), sc)
		require.NoError(t, err)
		assert.Equal(t, CheckInvalid, status)
		assert.False(t, sc.Authenticated())
	})

	t.Run("anonymous", func(t *testing.T) {
		f := newManagerFixture()
		status, err := f.mgr.CheckSession(context.Background(), NewContext("x"))
		require.NoError(t, err)
		assert.Equal(t, CheckInvalid, status)
	})
}

func TestContextReset(t *testing.T) {
	sc := &Context{
		ID:      "sid",
		State:   StateAuthenticated,
		User:    &client.AuthUser{ID: "u1"},
		Profile: &model.Profile{ID: "u1"},
		Session: &Tokens{AccessToken: "at"},
	}
	sc.Reset()
	assert.Equal(t, "sid", sc.ID)
	assert.Equal(t, StateUnauthenticated, sc.State)
	assert.Empty(t, sc.AccessToken())
	assert.Empty(t, sc.UserID())
}

func TestTokensExpired(t *testing.T) {
	now := time.Now()
	assert.True(t, (*Tokens)(nil).Expired(now))
	assert.True(t, (&Tokens{ExpiresAt: now.Add(-time.Second)}).Expired(now))
	assert.False(t, (&Tokens{ExpiresAt: now.Add(time.Minute)}).Expired(now))
	assert.False(t, (&Tokens{}).Expired(now))
}

package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc, policy Policy) *backendClientImpl {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return newBackendClient(srv.URL, "anon-key", policy)
}

func TestSignInSendsPasswordGrant(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ada@example.com", body["email"])

		_, _ = io.WriteString(w, `{"access_token":"at","refresh_token":"rt","expires_in":3600,"token_type":"bearer","user":{"id":"u1","email":"ada@example.com"}}`)
	}, Policy{})

	res, err := c.SignIn(context.Background(), "ada@example.com", "secret")
	require.NoError(t, err)
	assert.True(t, res.HasSession())
	assert.Equal(t, "u1", res.User.ID)
	assert.NotEmpty(t, res.Raw)

	now := time.Unix(1000, 0)
	assert.Equal(t, now.Add(time.Hour), res.Expiry(now))
}

func TestSignUpAwaitingConfirmation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/signup", r.URL.Path)
		_, _ = io.WriteString(w, `{"id":"u2","email":"new@example.com"}`)
	}, Policy{})

	res, err := c.SignUp(context.Background(), "new@example.com", "secret", map[string]interface{}{"full_name": "New"})
	require.NoError(t, err)
	assert.False(t, res.HasSession())
	require.NotNil(t, res.User)
	assert.Equal(t, "u2", res.User.ID)
}

func TestRefreshUsesRefreshGrant(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "rt", body["refresh_token"])
		_, _ = io.WriteString(w, `{"access_token":"at2","refresh_token":"rt2","expires_at":2000}`)
	}, Policy{})

	res, err := c.Refresh(context.Background(), "rt")
	require.NoError(t, err)
	assert.Equal(t, "at2", res.AccessToken)
	assert.Equal(t, time.Unix(2000, 0), res.Expiry(time.Now()))
}

func TestSignOutUsesUserToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/logout", r.URL.Path)
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}, Policy{})

	require.NoError(t, c.SignOut(context.Background(), "user-token"))
}

func TestQueryBuildsFilters(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/orders", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "*", q.Get("select"))
		assert.Equal(t, "eq.u1", q.Get("user_id"))
		assert.Equal(t, "created_at.desc", q.Get("order"))
		assert.Equal(t, "10", q.Get("limit"))
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `[{"id":"o1"},{"id":"o2"}]`)
	}, Policy{})

	var rows []struct {
		ID string `json:"id"`
	}
	ctx := WithAccessToken(context.Background(), "user-token")
	q := From("orders").Where(Eq("user_id", "u1")).OrderBy("created_at.desc").Page(10, 0)

	require.NoError(t, c.Query(ctx, q, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "o2", rows[1].ID)
}

func TestMutateInsertAsksForRepresentation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `[{"id":"o9"}]`)
	}, Policy{})

	var rows []map[string]interface{}
	err := c.Mutate(context.Background(), Insert("orders", map[string]string{"customer_name": "Ada"}), &rows)
	require.NoError(t, err)
	assert.Equal(t, "o9", rows[0]["id"])
}

func TestMutateRefusesUnfilteredWrites(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must not be sent")
	}, Policy{})

	err := c.Mutate(context.Background(), Delete("orders"), nil)
	assert.Error(t, err)
}

func TestMutationsAreNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}, Policy{MaxRetries: 3, Backoff: time.Millisecond})

	err := c.Mutate(context.Background(), Insert("orders", map[string]string{}), nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestReadsRetryOnServerError(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	}, Policy{MaxRetries: 2, Backoff: time.Millisecond})

	var rows []map[string]interface{}
	require.NoError(t, c.Query(context.Background(), From("programs"), &rows))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestReadsDoNotRetryClientErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"code":"PGRST301","message":"JWT expired"}`)
	}, Policy{MaxRetries: 2, Backoff: time.Millisecond})

	err := c.Query(context.Background(), From("orders"), nil)
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRequestTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}, Policy{Timeout: 20 * time.Millisecond})

	_, err := c.GetUser(context.Background(), "token")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAPIErrorParsing(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
		wantMsg  string
		unauth   bool
		notFound bool
	}{
		{"rest error", 400, `{"code":"23502","message":"null value","details":null}`, "23502", "null value", false, false},
		{"auth error", 400, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`, "invalid_grant", "Invalid login credentials", false, false},
		{"gotrue v2 error", 401, `{"code":401,"error_code":"bad_jwt","msg":"invalid JWT"}`, "bad_jwt", "invalid JWT", true, false},
		{"expired jwt", 401, `{"code":"PGRST301","message":"JWT expired"}`, "PGRST301", "JWT expired", true, false},
		{"plain text", 502, `bad gateway`, "", "bad gateway", false, false},
		{"empty body", 404, ``, "", "Not Found", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newAPIError(tt.status, []byte(tt.body))
			assert.Equal(t, tt.wantCode, err.Code)
			assert.Equal(t, tt.wantMsg, err.Message)
			assert.Equal(t, tt.unauth, IsUnauthorized(err))
			assert.Equal(t, tt.notFound, IsNotFound(err))
			assert.Equal(t, tt.status, StatusOf(err))
		})
	}
}

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jjudge-oj/palette/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestRegister(t *testing.T) {
	env := newTestEnv(t, nil)

	token := env.registerUser(t, "a@x.com", "pw1")

	identity, err := env.auth.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", identity.Email)
	assert.Equal(t, 1, env.users.Count())
}

func TestRegister_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t, nil)
	env.registerUser(t, "a@x.com", "pw1")

	rr := env.do(jsonRequest(t, http.MethodPost, "/api/auth/register", CredentialsRequest{Email: "a@x.com", Password: "other"}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "email already registered")
	assert.Equal(t, 1, env.users.Count())
}

func TestRegister_BadRequests(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: "{"},
		{name: "missing password", body: `{"email":"a@x.com"}`},
		{name: "blank email", body: `{"email":"   ","password":"pw"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(tt.body))
			rr := env.do(req)
			assert.Equal(t, http.StatusBadRequest, rr.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
	assert.Equal(t, 0, env.users.Count())
}

func TestRegister_PasswordTooLong(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(jsonRequest(t, http.MethodPost, "/api/auth/register", CredentialsRequest{Email: "a@x.com", Password: strings.Repeat("p", 73)}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "password must be at most 72 bytes", resp.Error)
	assert.Equal(t, 0, env.users.Count())
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, nil)
	registered := env.registerUser(t, "a@x.com", "pw1")

	rr := env.do(jsonRequest(t, http.MethodPost, "/api/auth/login", CredentialsRequest{Email: "a@x.com", Password: "pw1"}))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	fromLogin, err := env.auth.VerifyToken(resp.Token)
	require.NoError(t, err)
	fromRegister, err := env.auth.VerifyToken(registered)
	require.NoError(t, err)
	assert.Equal(t, fromRegister.UserID, fromLogin.UserID)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t, nil)
	env.registerUser(t, "a@x.com", "pw1")

	for _, creds := range []CredentialsRequest{
		{Email: "a@x.com", Password: "wrong"},
		{Email: "nobody@x.com", Password: "pw1"},
		{Email: "", Password: ""},
	} {
		rr := env.do(jsonRequest(t, http.MethodPost, "/api/auth/login", creds))
		assert.Equal(t, http.StatusUnauthorized, rr.Code, creds.Email)
	}
}

func TestMe(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.registerUser(t, "a@x.com", "pw1")

	rr := env.do(withBearer(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), token))
	require.Equal(t, http.StatusOK, rr.Code)

	var user types.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &user))
	assert.Equal(t, "a@x.com", user.Email)
	assert.NotContains(t, rr.Body.String(), "password")
}

func TestRequireAuth(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "empty token", header: "Bearer "},
		{name: "garbage token", header: "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := env.do(req)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
}

func TestAuthRateLimit(t *testing.T) {
	env := newTestEnv(t, NewAuthLimiter(0.001, 2))

	creds := CredentialsRequest{Email: "nobody@x.com", Password: "pw"}
	for i := 0; i < 2; i++ {
		rr := env.do(jsonRequest(t, http.MethodPost, "/api/auth/login", creds))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	}

	rr := env.do(jsonRequest(t, http.MethodPost, "/api/auth/login", creds))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))

	// register has its own bucket
	env.registerUser(t, "a@x.com", "pw1")
}

func TestAuthRateLimit_PerClient(t *testing.T) {
	env := newTestEnv(t, NewAuthLimiter(0.001, 1))

	creds := CredentialsRequest{Email: "nobody@x.com", Password: "pw"}
	from := func(addr string) *http.Request {
		req := jsonRequest(t, http.MethodPost, "/api/auth/login", creds)
		req.RemoteAddr = addr
		return req
	}

	assert.Equal(t, http.StatusUnauthorized, env.do(from("10.0.0.1:1000")).Code)
	assert.Equal(t, http.StatusTooManyRequests, env.do(from("10.0.0.1:2000")).Code)

	// a noisy client does not lock out anyone else
	assert.Equal(t, http.StatusUnauthorized, env.do(from("10.0.0.2:1000")).Code)
}

func TestClientLimiter_EvictsIdleClients(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := newClientLimiter(rate.Limit(0.001), 1)
	c.now = func() time.Time { return now }

	assert.True(t, c.allow("10.0.0.1"))
	assert.False(t, c.allow("10.0.0.1"))
	assert.Len(t, c.clients, 1)

	now = now.Add(limiterIdleTTL + time.Second)
	assert.True(t, c.allow("10.0.0.2"))
	assert.Len(t, c.clients, 1)
	assert.NotContains(t, c.clients, "10.0.0.1")
}

func TestNewAuthLimiter_Disabled(t *testing.T) {
	assert.Nil(t, NewAuthLimiter(0, 10))
	assert.Nil(t, NewAuthLimiter(-1, 10))

	env := newTestEnv(t, nil)
	for i := 0; i < 20; i++ {
		rr := env.do(jsonRequest(t, http.MethodPost, "/api/auth/login", CredentialsRequest{Email: "x@x.com", Password: "p"}))
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

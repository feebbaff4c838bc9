package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jjudge-oj/palette/internal/services"
	"github.com/jjudge-oj/palette/internal/testutil"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router  *chi.Mux
	auth    *services.AuthService
	users   *testutil.Users
	items   *testutil.Palette
	objects *testutil.Objects
}

func newTestEnv(t *testing.T, limiter *AuthLimiter) *testEnv {
	t.Helper()

	tokens, err := services.NewTokenManager("test-secret", "palette", "palette-client", time.Hour)
	require.NoError(t, err)

	env := &testEnv{
		users:   testutil.NewUsers(),
		items:   testutil.NewPalette(),
		objects: testutil.NewObjects(),
	}
	env.auth = services.NewAuthService(env.users, tokens, nil)
	palette := services.NewPaletteService(env.items, env.objects, nil, "", nil)

	router := chi.NewRouter()
	router.Get("/healthz", Healthz(nil))
	router.Route("/api/auth", func(r chi.Router) {
		AuthRouter(r, env.auth, limiter, nil)
	})
	router.Route("/api/palette", func(r chi.Router) {
		PaletteRouter(r, palette, RequireAuth(env.auth), nil)
	})
	router.Route("/uploads", func(r chi.Router) {
		UploadsRouter(r, palette, nil)
	})
	env.router = router
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// registerUser registers through the API and returns the issued token.
func (e *testEnv) registerUser(t *testing.T, email, password string) string {
	t.Helper()
	rr := e.do(jsonRequest(t, http.MethodPost, "/api/auth/register", CredentialsRequest{Email: email, Password: password}))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp TokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

type uploadForm struct {
	fields   map[string]string
	filename string
	content  []byte
	noFile   bool
}

func multipartRequest(t *testing.T, path string, form uploadForm) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range form.fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if !form.noFile {
		fw, err := mw.CreateFormFile("file", form.filename)
		require.NoError(t, err)
		_, err = fw.Write(form.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// Package client talks to the palette API and keeps the caller's session
// token on disk between calls.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jjudge-oj/palette/types"
)

const defaultTimeout = 30 * time.Second

// Client is an API client whose transport attaches the stored bearer token.
type Client struct {
	baseURL string
	http    *http.Client
	session *Session
}

// New returns a Client for baseURL. A nil httpClient uses a default one;
// its transport is wrapped either way.
func New(baseURL string, session *Session, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	wrapped := *httpClient
	wrapped.Transport = &bearerTransport{base: httpClient.Transport, session: session}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &wrapped,
		session: session,
	}
}

type bearerTransport struct {
	base    http.RoundTripper
	session *Session
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	token, err := t.session.Token()
	if err != nil {
		return nil, err
	}
	if token != "" && req.Header.Get("Authorization") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return base.RoundTrip(req)
}

// UploadRequest describes a file to add to the palette.
type UploadRequest struct {
	Filename string
	Body     io.Reader
	Name     string
	Width    int
	Height   int
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Register creates an account and stores the returned token.
func (c *Client) Register(ctx context.Context, email, password string) error {
	return c.authenticate(ctx, "/api/auth/register", email, password)
}

// Login stores a fresh token for the given credentials.
func (c *Client) Login(ctx context.Context, email, password string) error {
	return c.authenticate(ctx, "/api/auth/login", email, password)
}

// Logout forgets the stored token.
func (c *Client) Logout() error {
	return c.session.Clear()
}

func (c *Client) Me(ctx context.Context) (types.User, error) {
	var user types.User
	err := c.authorized(func() error {
		return c.doJSON(ctx, http.MethodGet, "/api/auth/me", nil, &user)
	})
	return user, err
}

func (c *Client) ListPalette(ctx context.Context) ([]types.PaletteItem, error) {
	var items []types.PaletteItem
	err := c.authorized(func() error {
		return c.doJSON(ctx, http.MethodGet, "/api/palette", nil, &items)
	})
	return items, err
}

func (c *Client) Upload(ctx context.Context, in UploadRequest) (types.PaletteItem, error) {
	var item types.PaletteItem
	err := c.authorized(func() error {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fields := map[string]string{
			"name": in.Name,
			"w":    strconv.Itoa(in.Width),
			"h":    strconv.Itoa(in.Height),
		}
		for k, v := range fields {
			if err := mw.WriteField(k, v); err != nil {
				return err
			}
		}
		fw, err := mw.CreateFormFile("file", in.Filename)
		if err != nil {
			return err
		}
		if in.Body != nil {
			if _, err := io.Copy(fw, in.Body); err != nil {
				return fmt.Errorf("read file: %w", err)
			}
		}
		if err := mw.Close(); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/palette/upload", &buf)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return c.do(req, &item)
	})
	return item, err
}

func (c *Client) authenticate(ctx context.Context, path, email, password string) error {
	var resp tokenResponse
	if err := c.doJSON(ctx, http.MethodPost, path, credentials{Email: email, Password: password}, &resp); err != nil {
		return err
	}
	if resp.Token == "" {
		return errors.New("server returned no token")
	}
	return c.session.Save(resp.Token)
}

// authorized fails fast without a stored token and drops the token when the
// server rejects it.
func (c *Client) authorized(call func() error) error {
	token, err := c.session.Token()
	if err != nil {
		return err
	}
	if token == "" {
		return ErrNotLoggedIn
	}

	err = call()
	if errors.Is(err, ErrUnauthorized) {
		if clearErr := c.session.Clear(); clearErr != nil {
			return errors.Join(err, clearErr)
		}
	}
	return err
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && !strings.HasSuffix(req.URL.Path, "/api/auth/login") {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/dignilife/faceauth-client/credentials"
	"github.com/dignilife/faceauth-client/transport"
)

// API routes
const (
	LoginPath    = "/api/v1/auth/login"
	RegisterPath = "/api/v1/auth/register"
	RefreshPath  = "/api/v1/auth/refresh"
	MePath       = "/api/v1/users/me"
)

// Doer sends a request. *transport.Transport and *http.Client both satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a transport.RequestFunc into a Doer
type DoerFunc transport.RequestFunc

func (f DoerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

var _ transport.Refresher = (*Client)(nil)

// Client is the typed boundary of the remote API
type Client struct {
	baseURL string
	doer    Doer
}

func NewClient(baseURL string, doer Doer) (*Client, error) {
	if doer == nil {
		return nil, errors.New("[api.NewClient] doer is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "[api.NewClient] parse base url %q", baseURL)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("[api.NewClient] base url %q must be absolute", baseURL)
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		doer:    doer,
	}, nil
}

// Login submits a face image, optionally with fallback email and password
func (c *Client) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	var tokens TokenResponse
	if err := c.call(ctx, http.MethodPost, LoginPath, req, &tokens); err != nil {
		return nil, errors.Wrap(err, "[Client.Login]")
	}
	return &tokens, nil
}

// Register creates the account. It does not issue tokens.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	var user User
	if err := c.call(ctx, http.MethodPost, RegisterPath, req, &user); err != nil {
		return nil, errors.Wrap(err, "[Client.Register]")
	}
	return &user, nil
}

// Refresh exchanges refreshToken for a new token pair. Any non-2xx response is a
// failure. A response missing either token is rejected before it can be stored.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (credentials.Session, error) {
	var tokens TokenResponse
	if err := c.call(ctx, http.MethodPost, RefreshPath, RefreshRequest{RefreshToken: refreshToken}, &tokens); err != nil {
		return credentials.Session{}, errors.Wrap(err, "[Client.Refresh]")
	}

	session := tokens.Session()
	if err := session.Validate(); err != nil {
		return credentials.Session{}, errors.Wrap(err, "[Client.Refresh] incomplete token response")
	}
	return session, nil
}

// Me returns the profile of the authenticated user
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.call(ctx, http.MethodGet, MePath, nil, &user); err != nil {
		return nil, errors.Wrap(err, "[Client.Me]")
	}
	return &user, nil
}

// Session returns the token pair carried by the response
func (t TokenResponse) Session() credentials.Session {
	return credentials.Session{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken}
}

func (c *Client) call(ctx context.Context, method, path string, in, out interface{}) error {
	var body *bytes.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(payload)
	}

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, http.NoBody)
	}
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s response", path)
	}
	return nil
}

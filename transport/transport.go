package transport

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/dignilife/faceauth-client/credentials"
)

// RequestFunc sends a single request. It has the shape of http.Client.Do so the
// base of every pipeline is a plain HTTP client.
type RequestFunc func(req *http.Request) (*http.Response, error)

// Middleware decorates a RequestFunc
type Middleware func(next RequestFunc) RequestFunc

// Refresher exchanges a refresh token for a new session. It must not route
// through a pipeline that itself refreshes.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (credentials.Session, error)
}

// Chain composes mw around base. The first middleware is the outermost.
func Chain(base RequestFunc, mw ...Middleware) RequestFunc {
	chained := base
	for i := len(mw) - 1; i >= 0; i-- {
		chained = mw[i](chained)
	}
	return chained
}

// HTTPDoer adapts an http.Client into the base RequestFunc
func HTTPDoer(client *http.Client) RequestFunc {
	if client == nil {
		client = http.DefaultClient
	}
	return func(req *http.Request) (*http.Response, error) {
		resp, err := client.Do(req)
		if err != nil {
			return nil, errors.Wrapf(err, "[transport.HTTPDoer] %s %s", req.Method, req.URL.Path)
		}
		return resp, nil
	}
}

// Transport is the single configured request pipeline used for every API call.
// It attaches the stored access token and recovers from one 401 per request by
// refreshing the session.
type Transport struct {
	do     RequestFunc
	logger zerolog.Logger
	extra  []Middleware
}

// TransportOption configures a Transport
type TransportOption func(*Transport)

// WithLogger sets the logger used by the pipeline
func WithLogger(logger zerolog.Logger) TransportOption {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithMiddleware adds middleware between the pipeline and the base RequestFunc
func WithMiddleware(mw ...Middleware) TransportOption {
	return func(t *Transport) {
		t.extra = append(t.extra, mw...)
	}
}

// New builds the pipeline:
//
//	RequestID -> RefreshOnUnauthorized -> BearerAuth -> Logging -> extra... -> base
//
// Because the refresh step wraps the bearer step, the retried request picks up
// the newly stored access token.
func New(base RequestFunc, repo credentials.Repo, refresher Refresher, navigator Navigator, options ...TransportOption) (*Transport, error) {
	if base == nil {
		return nil, errors.New("[transport.New] base request func is required")
	}
	if repo == nil {
		return nil, errors.New("[transport.New] credentials repo is required")
	}
	if refresher == nil {
		return nil, errors.New("[transport.New] refresher is required")
	}
	if navigator == nil {
		return nil, errors.New("[transport.New] navigator is required")
	}

	t := &Transport{
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		opt(t)
	}

	mw := []Middleware{
		RequestID(),
		RefreshOnUnauthorized(repo, refresher, navigator, t.logger),
		BearerAuth(repo),
		Logging(t.logger),
	}
	t.do = Chain(base, append(mw, t.extra...)...)
	return t, nil
}

// Do dispatches req through the pipeline. Non-2xx responses are returned as
// responses; only transport failures and session expiry are errors.
func (t *Transport) Do(req *http.Request) (*http.Response, error) {
	return t.do(req)
}

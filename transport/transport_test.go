package transport_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dignilife/faceauth-client/credentials"
	"github.com/dignilife/faceauth-client/credentials/filerepo"
	fakecredentialsrepo "github.com/dignilife/faceauth-client/credentials/repofake"
	"github.com/dignilife/faceauth-client/transport"
)

type stubRefresher struct {
	lock    sync.Mutex
	calls   []string
	session credentials.Session
	err     error
}

func (r *stubRefresher) Refresh(_ context.Context, refreshToken string) (credentials.Session, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.calls = append(r.calls, refreshToken)
	if r.err != nil {
		return credentials.Session{}, r.err
	}
	return r.session, nil
}

type serverHit struct {
	authorization string
	requestID     string
	body          string
}

type testFixture struct {
	repo        *fakecredentialsrepo.FakeCredentialsRepo
	refresher   *stubRefresher
	navigations int
	transport   *transport.Transport
	server      *httptest.Server

	lock        sync.Mutex
	acceptToken string
	hits        []serverHit
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()
	tf := &testFixture{
		repo:      fakecredentialsrepo.NewFakeCredentialsRepo(),
		refresher: &stubRefresher{},
	}

	tf.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		tf.lock.Lock()
		tf.hits = append(tf.hits, serverHit{
			authorization: r.Header.Get("Authorization"),
			requestID:     r.Header.Get(transport.HeaderRequestID),
			body:          string(body),
		})
		accept := tf.acceptToken
		tf.lock.Unlock()

		switch {
		case r.URL.Path == "/boom":
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "boom"})
		case r.URL.Path == "/public":
			_, _ = w.Write([]byte("public"))
		case accept != "" && r.Header.Get("Authorization") == "Bearer "+accept:
			_, _ = w.Write([]byte("ok"))
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Invalid token"})
		}
	}))
	t.Cleanup(tf.server.Close)

	var err error
	tf.transport, err = transport.New(
		transport.HTTPDoer(tf.server.Client()),
		tf.repo,
		tf.refresher,
		transport.NavigatorFunc(func(context.Context) { tf.navigations++ }),
	)
	require.NoError(t, err)
	return tf
}

func (tf *testFixture) accept(token string) {
	tf.lock.Lock()
	defer tf.lock.Unlock()
	tf.acceptToken = token
}

func (tf *testFixture) serverHits() []serverHit {
	tf.lock.Lock()
	defer tf.lock.Unlock()
	return append([]serverHit(nil), tf.hits...)
}

func (tf *testFixture) request(t *testing.T, method, path string, body io.Reader) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, tf.server.URL+path, body)
	require.NoError(t, err)
	return req
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	repo := fakecredentialsrepo.NewFakeCredentialsRepo()
	nav := transport.NavigatorFunc(func(context.Context) {})
	base := transport.HTTPDoer(nil)

	_, err := transport.New(nil, repo, &stubRefresher{}, nav)
	require.Error(t, err)
	_, err = transport.New(base, nil, &stubRefresher{}, nav)
	require.Error(t, err)
	_, err = transport.New(base, repo, nil, nav)
	require.Error(t, err)
	_, err = transport.New(base, repo, &stubRefresher{}, nil)
	require.Error(t, err)
}

func TestTransport_AttachesStoredAccessToken(t *testing.T) {
	t.Run("token present", func(t *testing.T) {
		tf := newTestFixture(t)
		tf.accept("A1")
		require.NoError(t, tf.repo.SetSession(credentials.Session{AccessToken: "A1", RefreshToken: "R1"}))

		resp, err := tf.transport.Do(tf.request(t, http.MethodGet, "/api/v1/users/me", nil))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "ok", readBody(t, resp))

		hits := tf.serverHits()
		require.Len(t, hits, 1)
		require.Equal(t, "Bearer A1", hits[0].authorization)
	})

	t.Run("no token still sends the request", func(t *testing.T) {
		tf := newTestFixture(t)

		resp, err := tf.transport.Do(tf.request(t, http.MethodGet, "/public", nil))
		require.NoError(t, err)
		require.Equal(t, "public", readBody(t, resp))

		hits := tf.serverHits()
		require.Len(t, hits, 1)
		require.Empty(t, hits[0].authorization)
	})

	t.Run("caller request is not mutated", func(t *testing.T) {
		tf := newTestFixture(t)
		tf.accept("A1")
		require.NoError(t, tf.repo.SetSession(credentials.Session{AccessToken: "A1", RefreshToken: "R1"}))

		req := tf.request(t, http.MethodGet, "/api/v1/users/me", nil)
		resp, err := tf.transport.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Empty(t, req.Header.Get("Authorization"))
		require.Empty(t, req.Header.Get(transport.HeaderRequestID))
	})
}

func TestTransport_RefreshAndRetry(t *testing.T) {
	tf := newTestFixture(t)
	tf.accept("A2")
	tf.refresher.session = credentials.Session{AccessToken: "A2", RefreshToken: "R2"}
	require.NoError(t, tf.repo.SetSession(credentials.Session{AccessToken: "A1", RefreshToken: "R1"}))

	req := tf.request(t, http.MethodPost, "/api/v1/tasks", strings.NewReader(`{"task":"t1"}`))
	resp, err := tf.transport.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", readBody(t, resp))

	require.Equal(t, []string{"R1"}, tf.refresher.calls)

	session, ok := credentials.Load(tf.repo)
	require.True(t, ok)
	require.Equal(t, credentials.Session{AccessToken: "A2", RefreshToken: "R2"}, session)

	hits := tf.serverHits()
	require.Len(t, hits, 2)
	require.Equal(t, "Bearer A1", hits[0].authorization)
	require.Equal(t, "Bearer A2", hits[1].authorization)
	require.Equal(t, `{"task":"t1"}`, hits[0].body)
	require.Equal(t, hits[0].body, hits[1].body)
	require.NotEmpty(t, hits[0].requestID)
	require.Equal(t, hits[0].requestID, hits[1].requestID)
	require.Zero(t, tf.navigations)
}

func TestTransport_RefreshFailure(t *testing.T) {
	tf := newTestFixture(t)
	refreshErr := errors.New("refresh rejected")
	tf.refresher.err = refreshErr
	require.NoError(t, tf.repo.SetSession(credentials.Session{AccessToken: "A1", RefreshToken: "R1"}))

	resp, err := tf.transport.Do(tf.request(t, http.MethodGet, "/api/v1/users/me", nil))
	require.Nil(t, resp)
	require.ErrorIs(t, err, transport.ErrSessionExpired)
	require.ErrorIs(t, err, refreshErr)

	var expired *transport.SessionExpiredError
	require.ErrorAs(t, err, &expired)
	require.Equal(t, refreshErr, expired.Cause)

	for _, key := range []string{credentials.AccessTokenKey, credentials.RefreshTokenKey} {
		_, ok := tf.repo.Get(key)
		require.False(t, ok, key)
	}
	require.Equal(t, 1, tf.navigations)
	require.Equal(t, []string{"R1"}, tf.refresher.calls)
	require.Len(t, tf.serverHits(), 1)
}

func TestTransport_RetriedRejectionIsTerminal(t *testing.T) {
	tf := newTestFixture(t)
	tf.refresher.session = credentials.Session{AccessToken: "A2", RefreshToken: "R2"}
	require.NoError(t, tf.repo.SetSession(credentials.Session{AccessToken: "A1", RefreshToken: "R1"}))

	resp, err := tf.transport.Do(tf.request(t, http.MethodGet, "/api/v1/users/me", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Contains(t, readBody(t, resp), "Invalid token")

	require.Len(t, tf.refresher.calls, 1)
	require.Len(t, tf.serverHits(), 2)
	require.Zero(t, tf.navigations)
}

func TestTransport_NoRefreshToken(t *testing.T) {
	tf := newTestFixture(t)
	require.NoError(t, tf.repo.Set(credentials.AccessTokenKey, "A1"))

	resp, err := tf.transport.Do(tf.request(t, http.MethodGet, "/api/v1/users/me", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	require.Empty(t, tf.refresher.calls)
	require.Len(t, tf.serverHits(), 1)
	_, ok := tf.repo.Get(credentials.AccessTokenKey)
	require.True(t, ok)
}

func TestTransport_OtherErrorsPassThrough(t *testing.T) {
	tf := newTestFixture(t)
	require.NoError(t, tf.repo.SetSession(credentials.Session{AccessToken: "A1", RefreshToken: "R1"}))

	resp, err := tf.transport.Do(tf.request(t, http.MethodGet, "/boom", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	resp.Body.Close()

	require.Empty(t, tf.refresher.calls)
	require.Len(t, tf.serverHits(), 1)
}

func TestTransport_NonReplayableBodyIsNotRetried(t *testing.T) {
	tf := newTestFixture(t)
	tf.accept("A2")
	tf.refresher.session = credentials.Session{AccessToken: "A2", RefreshToken: "R2"}
	require.NoError(t, tf.repo.SetSession(credentials.Session{AccessToken: "A1", RefreshToken: "R1"}))

	body := io.MultiReader(strings.NewReader(`{"task":"t1"}`))
	resp, err := tf.transport.Do(tf.request(t, http.MethodPost, "/api/v1/tasks", body))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	require.Empty(t, tf.refresher.calls)
	session, _ := credentials.Load(tf.repo)
	require.Equal(t, "A1", session.AccessToken)
}

func TestRefreshOnUnauthorized_MarkedRequest(t *testing.T) {
	repo := fakecredentialsrepo.NewFakeCredentialsRepo()
	require.NoError(t, repo.SetSession(credentials.Session{AccessToken: "A1", RefreshToken: "R1"}))
	refresher := &stubRefresher{session: credentials.Session{AccessToken: "A2", RefreshToken: "R2"}}

	var attempts int
	base := func(req *http.Request) (*http.Response, error) {
		attempts++
		return &http.Response{StatusCode: http.StatusUnauthorized, Body: http.NoBody, Request: req}, nil
	}
	do := transport.Chain(base, transport.RefreshOnUnauthorized(repo, refresher, transport.NavigatorFunc(func(context.Context) {}), zerolog.Nop()))

	req, err := http.NewRequestWithContext(transport.MarkRetried(context.Background()), http.MethodGet, "http://example.test/", nil)
	require.NoError(t, err)

	resp, err := do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, 1, attempts)
	require.Empty(t, refresher.calls)
}

func TestRefreshOnUnauthorized_RetryCarriesMarker(t *testing.T) {
	repo := fakecredentialsrepo.NewFakeCredentialsRepo()
	require.NoError(t, repo.SetSession(credentials.Session{AccessToken: "A1", RefreshToken: "R1"}))
	refresher := &stubRefresher{session: credentials.Session{AccessToken: "A2", RefreshToken: "R2"}}

	var marks []bool
	base := func(req *http.Request) (*http.Response, error) {
		marks = append(marks, transport.IsRetried(req.Context()))
		return &http.Response{StatusCode: http.StatusUnauthorized, Body: http.NoBody, Request: req}, nil
	}
	do := transport.Chain(base, transport.RefreshOnUnauthorized(repo, refresher, transport.NavigatorFunc(func(context.Context) {}), zerolog.Nop()))

	req, err := http.NewRequest(http.MethodGet, "http://example.test/", nil)
	require.NoError(t, err)
	resp, err := do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, []bool{false, true}, marks)
	require.False(t, transport.IsRetried(req.Context()))
}

func TestRefreshOnUnauthorized_ClearFailureStillEndsSession(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	repo, err := filerepo.Open(filepath.Join(dir, "credentials.json"))
	require.NoError(t, err)
	require.NoError(t, repo.SetSession(credentials.Session{AccessToken: "A1", RefreshToken: "R1"}))

	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, []byte("x"), 0o600))

	refresher := &stubRefresher{err: errors.New("refresh 401")}
	var navigations int
	base := func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusUnauthorized, Body: http.NoBody, Request: req}, nil
	}
	do := transport.Chain(base, transport.RefreshOnUnauthorized(repo, refresher, transport.NavigatorFunc(func(context.Context) { navigations++ }), zerolog.Nop()))

	req, err := http.NewRequest(http.MethodGet, "http://example.test/", nil)
	require.NoError(t, err)
	resp, err := do(req)
	require.Nil(t, resp)
	require.ErrorIs(t, err, transport.ErrSessionExpired)
	require.Equal(t, 1, navigations)

	_, ok := repo.Get(credentials.AccessTokenKey)
	require.False(t, ok)
	_, ok = repo.Get(credentials.RefreshTokenKey)
	require.False(t, ok)
}

func TestTransport_WithMiddlewareSeesEveryAttempt(t *testing.T) {
	repo := fakecredentialsrepo.NewFakeCredentialsRepo()
	require.NoError(t, repo.SetSession(credentials.Session{AccessToken: "A1", RefreshToken: "R1"}))
	refresher := &stubRefresher{session: credentials.Session{AccessToken: "A2", RefreshToken: "R2"}}

	var seen []string
	counter := func(next transport.RequestFunc) transport.RequestFunc {
		return func(req *http.Request) (*http.Response, error) {
			seen = append(seen, req.Header.Get("Authorization"))
			return next(req)
		}
	}
	base := func(req *http.Request) (*http.Response, error) {
		status := http.StatusUnauthorized
		if req.Header.Get("Authorization") == "Bearer A2" {
			status = http.StatusOK
		}
		return &http.Response{StatusCode: status, Body: http.NoBody, Request: req}, nil
	}

	tr, err := transport.New(base, repo, refresher, transport.NavigatorFunc(func(context.Context) {}),
		transport.WithLogger(zerolog.Nop()),
		transport.WithMiddleware(counter),
	)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, "http://example.test/", nil)
	require.NoError(t, err)
	resp, err := tr.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []string{"Bearer A1", "Bearer A2"}, seen)
}

func TestChain_FirstMiddlewareIsOutermost(t *testing.T) {
	var order []string
	tag := func(name string) transport.Middleware {
		return func(next transport.RequestFunc) transport.RequestFunc {
			return func(req *http.Request) (*http.Response, error) {
				order = append(order, name)
				return next(req)
			}
		}
	}
	base := func(*http.Request) (*http.Response, error) {
		order = append(order, "base")
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
	}

	req, err := http.NewRequest(http.MethodGet, "http://example.test/", nil)
	require.NoError(t, err)
	_, err = transport.Chain(base, tag("first"), tag("second"))(req)
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second", "base"}, order)
}

func TestRequestID_KeepsCallerID(t *testing.T) {
	var seen string
	base := func(req *http.Request) (*http.Response, error) {
		seen = req.Header.Get(transport.HeaderRequestID)
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
	}

	req, err := http.NewRequest(http.MethodGet, "http://example.test/", nil)
	require.NoError(t, err)
	req.Header.Set(transport.HeaderRequestID, "caller-id")

	_, err = transport.Chain(base, transport.RequestID())(req)
	require.NoError(t, err)
	require.Equal(t, "caller-id", seen)
}

package transport

import (
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/dignilife/faceauth-client/credentials"
)

const maxDrainBytes = 4 << 10

// RefreshOnUnauthorized recovers a 401 with exactly one refresh and one retry.
//
// A request whose context already carries the retried marker is never refreshed
// again; its 401 is returned as is. When the refresh itself fails the store is
// cleared, the navigator is called once and a *SessionExpiredError is returned.
//
// Overlapping requests that are rejected at the same time each run their own
// refresh. There is no de-duplication across requests; the store keeps the last
// pair written.
func RefreshOnUnauthorized(repo credentials.Repo, refresher Refresher, navigator Navigator, logger zerolog.Logger) Middleware {
	return func(next RequestFunc) RequestFunc {
		return func(req *http.Request) (*http.Response, error) {
			resp, err := next(req)
			if err != nil || resp.StatusCode != http.StatusUnauthorized {
				return resp, err
			}

			ctx := req.Context()
			if IsRetried(ctx) {
				return resp, nil
			}

			refreshToken, ok := repo.Get(credentials.RefreshTokenKey)
			if !ok {
				return resp, nil
			}

			if !canReplay(req) {
				logger.Warn().Str("path", req.URL.Path).Msg("401 on request with non-replayable body, not refreshing")
				return resp, nil
			}

			ctx = MarkRetried(ctx)
			session, refreshErr := refresher.Refresh(ctx, refreshToken)
			drain(resp)

			if refreshErr != nil {
				logger.Warn().Err(refreshErr).Str("path", req.URL.Path).Msg("session refresh failed, clearing credentials")
				if err := repo.Clear(); err != nil {
					logger.Error().Err(err).Msg("failed to clear credentials")
				}
				navigator.RedirectToLogin(ctx)
				return nil, &SessionExpiredError{Cause: refreshErr}
			}

			if err := repo.SetSession(session); err != nil {
				return nil, errors.Wrap(err, "[RefreshOnUnauthorized] store refreshed session")
			}
			logger.Debug().Str("path", req.URL.Path).Msg("session refreshed, retrying request")

			retry, err := rewind(ctx, req)
			if err != nil {
				return nil, errors.Wrap(err, "[RefreshOnUnauthorized] rewind request")
			}
			return next(retry)
		}
	}
}

func canReplay(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

// rewind clones req onto ctx with a fresh copy of its body
func rewind(ctx context.Context, req *http.Request) (*http.Request, error) {
	retry := req.Clone(ctx)
	if req.Body == nil || req.Body == http.NoBody {
		return retry, nil
	}
	if req.GetBody == nil {
		return nil, errBodyNotReplayable
	}

	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	retry.Body = body
	return retry, nil
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	_ = resp.Body.Close()
}

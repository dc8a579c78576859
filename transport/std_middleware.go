package transport

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HeaderRequestID carries the correlation id of a logical request
const HeaderRequestID = "X-Request-ID"

// RequestID tags each logical request with a uuid. A retry keeps the id of the
// request it replays.
func RequestID() Middleware {
	return func(next RequestFunc) RequestFunc {
		return func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(HeaderRequestID) != "" {
				return next(req)
			}
			tagged := req.Clone(req.Context())
			tagged.Header.Set(HeaderRequestID, uuid.New().String())
			return next(tagged)
		}
	}
}

// Logging logs every physical attempt that reaches the network
func Logging(logger zerolog.Logger) Middleware {
	return func(next RequestFunc) RequestFunc {
		return func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next(req)

			event := logger.Debug()
			if err != nil {
				event = logger.Warn().Err(err)
			}
			event = event.
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("request_id", req.Header.Get(HeaderRequestID)).
				Bool("retried", IsRetried(req.Context())).
				Dur("elapsed", time.Since(start))
			if resp != nil {
				event = event.Int("status", resp.StatusCode)
			}
			event.Msg("api request")
			return resp, err
		}
	}
}

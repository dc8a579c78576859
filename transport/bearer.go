package transport

import (
	"net/http"

	"github.com/dignilife/faceauth-client/credentials"
)

// BearerAuth attaches the stored access token to every request. Requests are
// still sent when no token is stored.
func BearerAuth(repo credentials.Repo) Middleware {
	return func(next RequestFunc) RequestFunc {
		return func(req *http.Request) (*http.Response, error) {
			accessToken, ok := repo.Get(credentials.AccessTokenKey)
			if !ok {
				return next(req)
			}

			authed := req.Clone(req.Context())
			credentials.Session{AccessToken: accessToken}.Token().SetAuthHeader(authed)
			return next(authed)
		}
	}
}

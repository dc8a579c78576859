package api

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/dignilife/faceauth-client/credentials"
	"github.com/dignilife/faceauth-client/transport"
)

// SessionClient is a Client whose calls go through the session transport
type SessionClient struct {
	*Client
	Transport *transport.Transport
}

// NewSessionClient wires the API client onto the session transport. The refresh
// call uses its own pipeline without the refresh step, so a rejected refresh
// can never trigger another refresh.
func NewSessionClient(baseURL string, httpClient *http.Client, repo credentials.Repo, navigator transport.Navigator, logger zerolog.Logger) (*SessionClient, error) {
	base := transport.HTTPDoer(httpClient)

	refresher, err := NewClient(baseURL, DoerFunc(transport.Chain(base, transport.RequestID(), transport.Logging(logger))))
	if err != nil {
		return nil, errors.Wrap(err, "[api.NewSessionClient] refresh client")
	}

	t, err := transport.New(base, repo, refresher, navigator, transport.WithLogger(logger))
	if err != nil {
		return nil, errors.Wrap(err, "[api.NewSessionClient] transport")
	}

	client, err := NewClient(baseURL, t)
	if err != nil {
		return nil, errors.Wrap(err, "[api.NewSessionClient] api client")
	}
	return &SessionClient{Client: client, Transport: t}, nil
}

package main

import (
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/dignilife/faceauth-client/api"
	"github.com/dignilife/faceauth-client/credentials"
	"github.com/dignilife/faceauth-client/credentials/filerepo"
	"github.com/dignilife/faceauth-client/credentials/redisrepo"
	fakecredentialsrepo "github.com/dignilife/faceauth-client/credentials/repofake"
	"github.com/dignilife/faceauth-client/internal/config"
	"github.com/dignilife/faceauth-client/internal/logging"
	"github.com/dignilife/faceauth-client/transport"
)

type app struct {
	cfg    config.Config
	logger zerolog.Logger
	repo   credentials.Repo
	client *api.SessionClient
	prompt *prompter
	out    io.Writer
	errOut io.Writer

	closers []func() error
}

func newApp(ctx context.Context, configFile string, stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logging.New(cfg.GetLogLevel(), cfg.GetLogPretty(), stderr).With().Str("app", cfg.GetAppName()).Logger(),
		prompt: newPrompter(stdin, stdout),
		out:    stdout,
		errOut: stderr,
	}

	repo, closer, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.repo = repo
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	httpClient := &http.Client{Timeout: cfg.GetRequestTimeout()}
	a.client, err = api.NewSessionClient(cfg.GetAPIURL(), httpClient, a.repo, a.navigator(), a.logger)
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			a.logger.Warn().Err(err).Msg("close")
		}
	}
}

// navigator sends the user back to the login command after the session is lost
func (a *app) navigator() transport.Navigator {
	return transport.NavigatorFunc(func(context.Context) {
		a.prompt.println(a.errOut, "Your session has expired. Please log in again with: faceauth login")
	})
}

// openStore opens the configured credential store. The returned closer may be nil.
func openStore(ctx context.Context, cfg config.StoreConfig) (credentials.Repo, func() error, error) {
	switch cfg.GetStoreBackend() {
	case config.StoreBackendFile:
		repo, err := filerepo.Open(cfg.GetStorePath())
		if err != nil {
			return nil, nil, errors.Wrap(err, "[openStore] file store")
		}
		return repo, nil, nil

	case config.StoreBackendRedis:
		client, err := redisrepo.NewClient(ctx, cfg.GetRedisURL())
		if err != nil {
			return nil, nil, errors.Wrap(err, "[openStore] redis client")
		}
		repo, err := redisrepo.Open(ctx, client, cfg.GetRedisPrefix())
		if err != nil {
			_ = client.Close()
			return nil, nil, errors.Wrap(err, "[openStore] redis store")
		}
		return repo, client.Close, nil

	case config.StoreBackendMemory:
		return fakecredentialsrepo.NewFakeCredentialsRepo(), nil, nil

	default:
		return nil, nil, errors.Errorf("[openStore] unknown store backend %q", cfg.GetStoreBackend())
	}
}

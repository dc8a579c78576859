// Package authflow drives the login and registration sequences. Flow state is a
// plain value with pure transitions; the controllers do the I/O and return the
// next state.
package authflow

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/dignilife/faceauth-client/api"
	"github.com/dignilife/faceauth-client/capture"
	"github.com/dignilife/faceauth-client/credentials"
	"github.com/dignilife/faceauth-client/transport"
)

// User-facing messages
const (
	MsgWelcomeBack        = "Welcome back!"
	MsgAccountCreated     = "Account created successfully!"
	MsgFaceLoginFailed    = "Face login failed. Try email/password."
	MsgLoginFailed        = "Login failed"
	MsgRegistrationFailed = "Registration failed"
	MsgRequiredFields     = "Please fill in required fields"
	MsgMissingCredentials = "Please enter your email and password"
	MsgNoImage            = "No image captured. Please try again."
	MsgCaptureCanceled    = "Capture canceled"
	MsgSessionExpired     = "Your session has expired. Please log in again."
)

// API is the part of the API client the flows use
type API interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error)
	Register(ctx context.Context, req api.RegisterRequest) (*api.User, error)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

type controller struct {
	api       API
	repo      credentials.Repo
	camera    capture.Camera
	confirmer capture.Confirmer
	attempts  int
	logger    zerolog.Logger
}

// ControllerOption configures a login or register controller
type ControllerOption func(*controller)

func WithLogger(logger zerolog.Logger) ControllerOption {
	return func(c *controller) {
		c.logger = logger
	}
}

// WithCaptureAttempts sets how many frames are offered before a capture fails
func WithCaptureAttempts(attempts int) ControllerOption {
	return func(c *controller) {
		c.attempts = attempts
	}
}

func newController(client API, repo credentials.Repo, camera capture.Camera, confirmer capture.Confirmer, options []ControllerOption) (controller, error) {
	if client == nil {
		return controller{}, errors.New("api client is required")
	}
	if repo == nil {
		return controller{}, errors.New("credentials repo is required")
	}
	if camera == nil {
		return controller{}, errors.New("camera is required")
	}
	if confirmer == nil {
		confirmer = capture.AutoConfirm
	}

	c := controller{
		api:       client,
		repo:      repo,
		camera:    camera,
		confirmer: confirmer,
		attempts:  capture.DefaultAttempts,
		logger:    zerolog.Nop(),
	}
	for _, opt := range options {
		opt(&c)
	}
	return c, nil
}

// acquire returns the captured payload or the message to show when nothing usable was captured
func (c controller) acquire(ctx context.Context) (string, string, error) {
	image, err := capture.Acquire(ctx, c.camera, c.confirmer, c.attempts)
	if err == nil {
		return image, "", nil
	}

	c.logger.Debug().Err(err).Msg("capture failed")
	if errors.Is(err, capture.ErrCanceled) {
		return "", MsgCaptureCanceled, err
	}
	return "", MsgNoImage, err
}

// failureMessage prefers the server's detail over the flow default. A failed
// session refresh is reported as such, never with the refresh call's detail.
func failureMessage(err error, fallback string) string {
	if errors.Is(err, transport.ErrSessionExpired) {
		return MsgSessionExpired
	}
	if detail, ok := api.Detail(err); ok {
		return detail
	}
	return fallback
}

// Logout clears the stored session
func Logout(repo credentials.Repo) error {
	if err := repo.Clear(); err != nil {
		return errors.Wrap(err, "[authflow.Logout]")
	}
	return nil
}

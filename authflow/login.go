package authflow

import (
	"context"

	"github.com/pkg/errors"

	"github.com/dignilife/faceauth-client/api"
	"github.com/dignilife/faceauth-client/capture"
	"github.com/dignilife/faceauth-client/credentials"
	clienterrors "github.com/dignilife/faceauth-client/internal/errors"
)

type LoginStep int

const (
	FaceEntry LoginStep = iota
	FallbackEntry
	LoginAuthenticated
)

func (s LoginStep) String() string {
	switch s {
	case FaceEntry:
		return "face_entry"
	case FallbackEntry:
		return "fallback_entry"
	case LoginAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

type LoginEvent int

const (
	// FaceAccepted is a successful face login
	FaceAccepted LoginEvent = iota
	// FaceRejected is any failure of the face login call
	FaceRejected
	// CaptureFailed means no image was captured; the face step is retried
	CaptureFailed
	// FallbackRequested is the user choosing email and password
	FallbackRequested
	// FaceRequested is the user going back to face login
	FaceRequested
	CredentialsAccepted
	CredentialsRejected
)

// LoginState is the login flow position plus the message to show there
type LoginState struct {
	Step    LoginStep
	Message string
}

func NewLoginState() LoginState {
	return LoginState{Step: FaceEntry}
}

// Next applies event to the state. Events that do not apply to the current step
// return ErrInvalidTransition and the unchanged state.
func (s LoginState) Next(event LoginEvent, message string) (LoginState, error) {
	switch s.Step {
	case FaceEntry:
		switch event {
		case FaceAccepted:
			return LoginState{Step: LoginAuthenticated, Message: message}, nil
		case FaceRejected:
			return LoginState{Step: FallbackEntry, Message: message}, nil
		case CaptureFailed:
			return LoginState{Step: FaceEntry, Message: message}, nil
		case FallbackRequested:
			return LoginState{Step: FallbackEntry}, nil
		}
	case FallbackEntry:
		switch event {
		case CredentialsAccepted:
			return LoginState{Step: LoginAuthenticated, Message: message}, nil
		case CredentialsRejected:
			return LoginState{Step: FallbackEntry, Message: message}, nil
		case FaceRequested:
			return LoginState{Step: FaceEntry}, nil
		}
	}
	return s, errors.Wrapf(clienterrors.ErrInvalidTransition, "login event %d in step %s", event, s.Step)
}

// FallbackCredentials are typed by the user on the password fallback
type FallbackCredentials struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

// LoginController runs the face-first login with email and password fallback
type LoginController struct {
	controller
}

func NewLoginController(client API, repo credentials.Repo, camera capture.Camera, confirmer capture.Confirmer, options ...ControllerOption) (*LoginController, error) {
	c, err := newController(client, repo, camera, confirmer, options)
	if err != nil {
		return nil, errors.Wrap(err, "[authflow.NewLoginController]")
	}
	return &LoginController{controller: c}, nil
}

// SubmitFace captures a face and logs in with it. Any login failure moves to
// the fallback step with a message; it never returns an error.
func (lc *LoginController) SubmitFace(ctx context.Context, s LoginState) LoginState {
	if s.Step != FaceEntry {
		lc.logger.Warn().Stringer("step", s.Step).Msg("face submitted outside face entry")
		return s
	}

	image, message, err := lc.acquire(ctx)
	if err != nil {
		return lc.next(s, CaptureFailed, message)
	}

	tokens, err := lc.api.Login(ctx, api.LoginRequest{FaceImageBase64: image})
	if err != nil {
		lc.logger.Info().Err(err).Msg("face login rejected")
		return lc.next(s, FaceRejected, failureMessage(err, MsgFaceLoginFailed))
	}
	if err := lc.repo.SetSession(tokens.Session()); err != nil {
		lc.logger.Error().Err(err).Msg("failed to store session")
		return lc.next(s, FaceRejected, MsgFaceLoginFailed)
	}

	lc.logger.Info().Str("login_method", tokens.LoginMethod).Msg("logged in")
	return lc.next(s, FaceAccepted, MsgWelcomeBack)
}

// SubmitCredentials logs in with email and password. Missing fields are
// reported without a network call.
func (lc *LoginController) SubmitCredentials(ctx context.Context, s LoginState, creds FallbackCredentials) LoginState {
	if s.Step != FallbackEntry {
		lc.logger.Warn().Stringer("step", s.Step).Msg("credentials submitted outside fallback entry")
		return s
	}
	if err := validate.Struct(creds); err != nil {
		return lc.next(s, CredentialsRejected, MsgMissingCredentials)
	}

	tokens, err := lc.api.Login(ctx, api.LoginRequest{
		FaceImageBase64: "",
		Email:           &creds.Email,
		Password:        &creds.Password,
	})
	if err != nil {
		lc.logger.Info().Err(err).Msg("password login rejected")
		return lc.next(s, CredentialsRejected, failureMessage(err, MsgLoginFailed))
	}
	if err := lc.repo.SetSession(tokens.Session()); err != nil {
		lc.logger.Error().Err(err).Msg("failed to store session")
		return lc.next(s, CredentialsRejected, MsgLoginFailed)
	}

	lc.logger.Info().Str("login_method", tokens.LoginMethod).Msg("logged in")
	return lc.next(s, CredentialsAccepted, MsgWelcomeBack)
}

func (lc *LoginController) next(s LoginState, event LoginEvent, message string) LoginState {
	next, err := s.Next(event, message)
	if err != nil {
		lc.logger.Error().Err(err).Msg("login transition")
	}
	return next
}

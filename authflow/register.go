package authflow

import (
	"context"

	"github.com/pkg/errors"

	"github.com/dignilife/faceauth-client/api"
	"github.com/dignilife/faceauth-client/capture"
	"github.com/dignilife/faceauth-client/credentials"
	clienterrors "github.com/dignilife/faceauth-client/internal/errors"
	"github.com/dignilife/faceauth-client/internal/utils"
)

// ErrIncompleteProfile blocks leaving the profile phase
var ErrIncompleteProfile = errors.New("email and full name are required")

type RegisterPhase int

const (
	ProfileEntry RegisterPhase = iota
	BiometricEntry
	RegisterAuthenticated
)

func (p RegisterPhase) String() string {
	switch p {
	case ProfileEntry:
		return "profile_entry"
	case BiometricEntry:
		return "biometric_entry"
	case RegisterAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// ProfileDraft is the registration form. Empty optional fields are not sent.
type ProfileDraft struct {
	Email       string `validate:"required"`
	FullName    string `validate:"required"`
	PhoneNumber string
	Password    string
}

// request builds the register call body. An empty password is "not provided".
func (d ProfileDraft) request(image string) api.RegisterRequest {
	return api.RegisterRequest{
		Email:           d.Email,
		FullName:        d.FullName,
		PhoneNumber:     utils.Optional(d.PhoneNumber),
		Password:        utils.Optional(d.Password),
		FaceImageBase64: image,
	}
}

// RegisterState is the registration phase, the draft entered so far and the
// message to show. The draft is only editable in ProfileEntry.
type RegisterState struct {
	Phase   RegisterPhase
	Draft   ProfileDraft
	Message string
}

func NewRegisterState() RegisterState {
	return RegisterState{Phase: ProfileEntry}
}

func (s RegisterState) invalid(action string) error {
	return errors.Wrapf(clienterrors.ErrInvalidTransition, "register %s in phase %s", action, s.Phase)
}

// Edit replaces the draft while collecting the profile
func (s RegisterState) Edit(draft ProfileDraft) (RegisterState, error) {
	if s.Phase != ProfileEntry {
		return s, s.invalid("edit")
	}
	return RegisterState{Phase: ProfileEntry, Draft: draft}, nil
}

// Advance moves to biometric capture. It is blocked, with a message, unless
// email and full name are both set.
func (s RegisterState) Advance() (RegisterState, error) {
	if s.Phase != ProfileEntry {
		return s, s.invalid("advance")
	}
	if err := validate.Struct(s.Draft); err != nil {
		return RegisterState{Phase: ProfileEntry, Draft: s.Draft, Message: MsgRequiredFields}, ErrIncompleteProfile
	}
	return RegisterState{Phase: BiometricEntry, Draft: s.Draft}, nil
}

// Back returns to the profile phase keeping the draft
func (s RegisterState) Back() (RegisterState, error) {
	if s.Phase != BiometricEntry {
		return s, s.invalid("back")
	}
	return RegisterState{Phase: ProfileEntry, Draft: s.Draft}, nil
}

// Retry stays in biometric capture with a message
func (s RegisterState) Retry(message string) (RegisterState, error) {
	if s.Phase != BiometricEntry {
		return s, s.invalid("retry")
	}
	return RegisterState{Phase: BiometricEntry, Draft: s.Draft, Message: message}, nil
}

// Fail returns to the profile phase with the draft kept as prefill. This happens
// for failures of the register call and of the login that follows it.
func (s RegisterState) Fail(message string) (RegisterState, error) {
	if s.Phase != BiometricEntry {
		return s, s.invalid("fail")
	}
	return RegisterState{Phase: ProfileEntry, Draft: s.Draft, Message: message}, nil
}

// Complete ends the flow. The draft is discarded.
func (s RegisterState) Complete(message string) (RegisterState, error) {
	if s.Phase != BiometricEntry {
		return s, s.invalid("complete")
	}
	return RegisterState{Phase: RegisterAuthenticated, Message: message}, nil
}

// RegisterController runs registration followed by the implicit first login
type RegisterController struct {
	controller
}

func NewRegisterController(client API, repo credentials.Repo, camera capture.Camera, confirmer capture.Confirmer, options ...ControllerOption) (*RegisterController, error) {
	c, err := newController(client, repo, camera, confirmer, options)
	if err != nil {
		return nil, errors.Wrap(err, "[authflow.NewRegisterController]")
	}
	return &RegisterController{controller: c}, nil
}

// SubmitBiometric captures a face, registers the draft with it and logs in with
// the same face and email. Failures never return an error: they land in
// ProfileEntry with a message, or stay in BiometricEntry when nothing was
// captured.
func (rc *RegisterController) SubmitBiometric(ctx context.Context, s RegisterState) RegisterState {
	if s.Phase != BiometricEntry {
		rc.logger.Warn().Stringer("phase", s.Phase).Msg("biometric submitted outside biometric entry")
		return s
	}
	if err := validate.Struct(s.Draft); err != nil {
		return rc.apply(s.Fail(MsgRequiredFields))
	}

	image, message, err := rc.acquire(ctx)
	if errors.Is(err, capture.ErrCanceled) {
		return rc.apply(s.Back())
	}
	if err != nil {
		return rc.apply(s.Retry(message))
	}

	if _, err := rc.api.Register(ctx, s.Draft.request(image)); err != nil {
		rc.logger.Info().Err(err).Msg("register rejected")
		return rc.apply(s.Fail(failureMessage(err, MsgRegistrationFailed)))
	}

	email := s.Draft.Email
	tokens, err := rc.api.Login(ctx, api.LoginRequest{FaceImageBase64: image, Email: &email})
	if err != nil {
		rc.logger.Warn().Err(err).Msg("login after register rejected")
		return rc.apply(s.Fail(failureMessage(err, MsgRegistrationFailed)))
	}
	if err := rc.repo.SetSession(tokens.Session()); err != nil {
		rc.logger.Error().Err(err).Msg("failed to store session")
		return rc.apply(s.Fail(MsgRegistrationFailed))
	}

	rc.logger.Info().Str("email", email).Msg("registered")
	return rc.apply(s.Complete(MsgAccountCreated))
}

func (rc *RegisterController) apply(next RegisterState, err error) RegisterState {
	if err != nil {
		rc.logger.Error().Err(err).Msg("register transition")
	}
	return next
}

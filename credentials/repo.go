package credentials

import (
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	clienterrors "github.com/dignilife/faceauth-client/internal/errors"
)

// Fixed keys under which the session tokens are persisted
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// Session is the pair of opaque bearer strings issued by the API.
// The client never parses either token.
type Session struct {
	AccessToken  string
	RefreshToken string
}

// Validate reports whether both tokens are present
func (s Session) Validate() error {
	if s.AccessToken == "" || s.RefreshToken == "" {
		return clienterrors.ErrIncompleteSession
	}
	return nil
}

// Token returns the access token as a bearer oauth2 token
func (s Session) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
	}
}

// Repo is the local key-value persistence for session tokens.
// Get must never block on I/O: it is called before every outgoing request.
type Repo interface {
	// Get returns the value stored under key, if any
	Get(key string) (string, bool)

	// Set stores a single non-empty value
	Set(key, value string) error

	// SetSession stores both tokens in one write
	SetSession(session Session) error

	// Clear removes every stored value in one write. Get reports every key as
	// absent afterwards even when the returned error says the backing storage
	// could not be updated.
	Clear() error
}

// Load returns the stored session. The session is only reported when both tokens
// are present; a lone token is treated as unauthenticated.
func Load(repo Repo) (Session, bool) {
	access, ok := repo.Get(AccessTokenKey)
	if !ok {
		return Session{}, false
	}
	refresh, ok := repo.Get(RefreshTokenKey)
	if !ok {
		return Session{}, false
	}
	return Session{AccessToken: access, RefreshToken: refresh}, true
}

// CheckValue validates a value before it is written by a Repo implementation
func CheckValue(key, value string) error {
	if value == "" {
		return errors.Wrapf(clienterrors.ErrEmptyValue, "key %q", key)
	}
	return nil
}

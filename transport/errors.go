package transport

import (
	"errors"

	clienterrors "github.com/dignilife/faceauth-client/internal/errors"
)

// ErrSessionExpired matches any error caused by a failed token refresh
var ErrSessionExpired = clienterrors.ErrSessionExpired

var errBodyNotReplayable = errors.New("request body cannot be replayed")

// SessionExpiredError is returned in place of a 401 when the refresh that should
// have recovered it failed. Cause is the refresh failure.
type SessionExpiredError struct {
	Cause error
}

func (e *SessionExpiredError) Error() string {
	if e.Cause == nil {
		return ErrSessionExpired.Error()
	}
	return ErrSessionExpired.Error() + ": " + e.Cause.Error()
}

func (e *SessionExpiredError) Unwrap() error {
	return e.Cause
}

func (e *SessionExpiredError) Is(target error) bool {
	return target == ErrSessionExpired
}

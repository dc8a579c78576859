// Package capture turns still frames from a camera into the base64 payload the
// API expects.
package capture

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	clienterrors "github.com/dignilife/faceauth-client/internal/errors"
)

var (
	// ErrNoImage means the camera produced nothing usable
	ErrNoImage = clienterrors.ErrNoImage
	// ErrCanceled means the user backed out of the capture
	ErrCanceled = clienterrors.ErrCanceled
)

// DefaultAttempts is the number of frames offered before giving up
const DefaultAttempts = 3

// Frame is a captured still image, usually a data URI such as
// "data:image/jpeg;base64,...". A raw base64 string is also accepted.
type Frame string

// Decision is the user's answer to a captured frame
type Decision int

const (
	Use Decision = iota
	Retake
	Cancel
)

func (d Decision) String() string {
	switch d {
	case Use:
		return "use"
	case Retake:
		return "retake"
	case Cancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Camera produces the current frame on demand. It returns ErrNoImage when no
// frame is available.
type Camera interface {
	Capture(ctx context.Context) (Frame, error)
}

// Confirmer shows a captured frame and asks whether to use it
type Confirmer interface {
	Confirm(ctx context.Context, frame Frame) (Decision, error)
}

// ConfirmerFunc adapts a function into a Confirmer
type ConfirmerFunc func(ctx context.Context, frame Frame) (Decision, error)

func (f ConfirmerFunc) Confirm(ctx context.Context, frame Frame) (Decision, error) {
	return f(ctx, frame)
}

// AutoConfirm accepts every frame
var AutoConfirm = ConfirmerFunc(func(context.Context, Frame) (Decision, error) {
	return Use, nil
})

// Acquire captures frames until the user accepts one and returns its base64
// payload with any data-URI prefix removed. Empty frames and retakes count
// against maxAttempts; once they are used up ErrNoImage is returned.
func Acquire(ctx context.Context, camera Camera, confirmer Confirmer, maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultAttempts
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", errors.Wrap(ErrCanceled, err.Error())
		}

		frame, err := camera.Capture(ctx)
		if err != nil {
			if errors.Is(err, ErrNoImage) {
				continue
			}
			return "", errors.Wrap(err, "[capture.Acquire] capture")
		}

		payload := StripDataURI(string(frame))
		if payload == "" {
			continue
		}

		decision, err := confirmer.Confirm(ctx, frame)
		if err != nil {
			return "", errors.Wrap(err, "[capture.Acquire] confirm")
		}
		switch decision {
		case Use:
			return payload, nil
		case Cancel:
			return "", ErrCanceled
		}
	}
	return "", ErrNoImage
}

// StripDataURI returns the payload after the first comma of a data URI.
// Strings without a data-URI prefix are returned unchanged.
func StripDataURI(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	_, payload, found := strings.Cut(s, ",")
	if !found {
		return ""
	}
	return payload
}

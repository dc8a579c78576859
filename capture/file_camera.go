package capture

import (
	"context"
	"encoding/base64"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
)

// FileCamera serves a still image from disk as a data-URI frame. Each capture
// re-reads the file, so replacing it on disk acts as a retake.
type FileCamera struct {
	path string
}

func NewFileCamera(path string) *FileCamera {
	return &FileCamera{path: path}
}

func (fc *FileCamera) Capture(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(fc.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Wrapf(ErrNoImage, "%s", fc.path)
		}
		return "", errors.Wrapf(err, "[FileCamera.Capture] read %s", fc.path)
	}
	if len(data) == 0 {
		return "", errors.Wrapf(ErrNoImage, "%s is empty", fc.path)
	}

	mtype := mimetype.Detect(data)
	if !mtype.Is("image/jpeg") && !mtype.Is("image/png") && !mtype.Is("image/webp") {
		return "", errors.Wrapf(ErrNoImage, "%s is %s, not a still image", fc.path, mtype.String())
	}

	return EncodeFrame(mtype.String(), data), nil
}

// EncodeFrame builds a data-URI frame from raw image bytes
func EncodeFrame(mime string, data []byte) Frame {
	return Frame("data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data))
}

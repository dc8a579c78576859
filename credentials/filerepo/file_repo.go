package filerepo

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/dignilife/faceauth-client/credentials"
)

var _ credentials.Repo = (*FileRepo)(nil)

// FileRepo persists tokens as a JSON object in a single file. The file is read
// once when opened; reads are then served from memory and every write replaces
// the file atomically.
type FileRepo struct {
	path   string
	values map[string]string
	lock   sync.RWMutex
}

// Open loads the credentials file at path. A missing file is an empty store.
func Open(path string) (*FileRepo, error) {
	fr := &FileRepo{
		path:   path,
		values: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fr, nil
	case err != nil:
		return nil, errors.Wrapf(err, "[filerepo.Open] read %s", path)
	}

	if len(data) == 0 {
		return fr, nil
	}
	if err := json.Unmarshal(data, &fr.values); err != nil {
		return nil, errors.Wrapf(err, "[filerepo.Open] decode %s", path)
	}
	return fr, nil
}

// Path returns the location of the credentials file
func (fr *FileRepo) Path() string {
	return fr.path
}

func (fr *FileRepo) Get(key string) (string, bool) {
	fr.lock.RLock()
	defer fr.lock.RUnlock()

	value, ok := fr.values[key]
	return value, ok
}

func (fr *FileRepo) Set(key, value string) error {
	if err := credentials.CheckValue(key, value); err != nil {
		return err
	}

	fr.lock.Lock()
	defer fr.lock.Unlock()

	next := fr.copyValues()
	next[key] = value
	return fr.commit(next)
}

func (fr *FileRepo) SetSession(session credentials.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}

	fr.lock.Lock()
	defer fr.lock.Unlock()

	next := fr.copyValues()
	next[credentials.AccessTokenKey] = session.AccessToken
	next[credentials.RefreshTokenKey] = session.RefreshToken
	return fr.commit(next)
}

func (fr *FileRepo) Clear() error {
	fr.lock.Lock()
	defer fr.lock.Unlock()

	err := fr.commit(make(map[string]string))
	fr.values = make(map[string]string)
	if err == nil {
		return nil
	}

	// Fall back to deleting the file so a reopen does not resurrect the tokens.
	if rmErr := os.Remove(fr.path); rmErr == nil || errors.Is(rmErr, os.ErrNotExist) {
		return nil
	}
	return err
}

func (fr *FileRepo) copyValues() map[string]string {
	next := make(map[string]string, len(fr.values)+2)
	for k, v := range fr.values {
		next[k] = v
	}
	return next
}

// commit writes next to disk and only then swaps it in, so a failed write leaves
// both the file and the in-memory view unchanged. Caller holds the lock.
func (fr *FileRepo) commit(next map[string]string) error {
	data, err := json.Marshal(next)
	if err != nil {
		return errors.Wrap(err, "[FileRepo.commit] encode")
	}

	dir := filepath.Dir(fr.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrapf(err, "[FileRepo.commit] mkdir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return errors.Wrap(err, "[FileRepo.commit] create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[FileRepo.commit] chmod")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[FileRepo.commit] write")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "[FileRepo.commit] close")
	}
	if err := os.Rename(tmpName, fr.path); err != nil {
		return errors.Wrap(err, "[FileRepo.commit] rename")
	}

	fr.values = next
	return nil
}

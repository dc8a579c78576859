package fakecredentialsrepo

import (
	"sync"

	"github.com/dignilife/faceauth-client/credentials"
)

var _ credentials.Repo = (*FakeCredentialsRepo)(nil)

// FakeCredentialsRepo keeps tokens in memory only. It backs the "memory" store
// backend and the tests.
type FakeCredentialsRepo struct {
	values map[string]string
	lock   sync.RWMutex
}

func NewFakeCredentialsRepo() *FakeCredentialsRepo {
	return &FakeCredentialsRepo{
		values: make(map[string]string),
	}
}

func (cr *FakeCredentialsRepo) Get(key string) (string, bool) {
	cr.lock.RLock()
	defer cr.lock.RUnlock()

	value, ok := cr.values[key]
	return value, ok
}

func (cr *FakeCredentialsRepo) Set(key, value string) error {
	if err := credentials.CheckValue(key, value); err != nil {
		return err
	}

	cr.lock.Lock()
	defer cr.lock.Unlock()
	cr.values[key] = value
	return nil
}

func (cr *FakeCredentialsRepo) SetSession(session credentials.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}

	cr.lock.Lock()
	defer cr.lock.Unlock()
	cr.values[credentials.AccessTokenKey] = session.AccessToken
	cr.values[credentials.RefreshTokenKey] = session.RefreshToken
	return nil
}

func (cr *FakeCredentialsRepo) Clear() error {
	cr.lock.Lock()
	defer cr.lock.Unlock()
	cr.values = make(map[string]string)
	return nil
}

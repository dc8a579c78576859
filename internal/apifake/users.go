package apifake

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dignilife/faceauth-client/api"
)

var (
	errUserExists   = errors.New("email already registered")
	errUserNotFound = errors.New("user not found")
)

// User is an account held by the fake API
type User struct {
	ID           string
	Email        string
	FullName     string
	PhoneNumber  *string
	PasswordHash string
	Face         string
	IsActive     bool
	CreatedAt    time.Time
	LoginCount   int
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// CheckPassword reports whether password matches the stored hash
func (u *User) CheckPassword(password string) bool {
	if !u.HasPassword() {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

func (u *User) toAPI() api.User {
	return api.User{
		ID:                u.ID,
		Email:             u.Email,
		FullName:          u.FullName,
		PhoneNumber:       u.PhoneNumber,
		Role:              "user",
		SubscriptionTier:  "free",
		IsActive:          u.IsActive,
		IsVerified:        true,
		PreferredCurrency: "USD",
		CreatedAt:         u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(bytes), err
}

type userStore struct {
	users    map[string]*User
	emailIDs map[string]string
	lock     sync.RWMutex
}

func newUserStore() *userStore {
	return &userStore{
		users:    make(map[string]*User),
		emailIDs: make(map[string]string),
	}
}

func (us *userStore) Insert(user *User) error {
	us.lock.Lock()
	defer us.lock.Unlock()

	if _, ok := us.emailIDs[user.Email]; ok {
		return errUserExists
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	us.users[user.ID] = user
	us.emailIDs[user.Email] = user.ID
	return nil
}

func (us *userStore) GetByEmail(email string) (*User, error) {
	us.lock.RLock()
	defer us.lock.RUnlock()

	id, ok := us.emailIDs[email]
	if !ok {
		return nil, errUserNotFound
	}
	return us.users[id], nil
}

func (us *userStore) GetByID(id string) (*User, error) {
	us.lock.RLock()
	defer us.lock.RUnlock()

	user, ok := us.users[id]
	if !ok {
		return nil, errUserNotFound
	}
	return user, nil
}

// MatchFace returns the user whose enrolled face equals face
func (us *userStore) MatchFace(face string) (*User, error) {
	us.lock.RLock()
	defer us.lock.RUnlock()

	for _, user := range us.users {
		if user.Face != "" && user.Face == face {
			return user, nil
		}
	}
	return nil, errUserNotFound
}

func (us *userStore) RecordLogin(id string) {
	us.lock.Lock()
	defer us.lock.Unlock()
	if user, ok := us.users[id]; ok {
		user.LoginCount++
	}
}

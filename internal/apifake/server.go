// Package apifake is an in-process stand-in for the face auth API. It backs the
// client tests and the fake-api command.
package apifake

import (
	"crypto/rand"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const defaultAccessTTL = 15 * time.Minute

// Call is one request received by the server
type Call struct {
	Method        string
	Path          string
	Authorization string
}

type Server struct {
	mux      *http.ServeMux
	routes   []string
	users    *userStore
	tokens   *tokenIssuer
	validate *validator.Validate
	logger   zerolog.Logger

	accessTTL  time.Duration
	now        func() time.Time
	signingKey []byte

	callsLock sync.Mutex
	calls     []Call
}

type ServerOption func(*Server)

// WithAccessTTL sets the lifetime of issued access tokens
func WithAccessTTL(ttl time.Duration) ServerOption {
	return func(s *Server) {
		s.accessTTL = ttl
	}
}

// WithNowTime overrides the clock used to issue and verify tokens
func WithNowTime(now func() time.Time) ServerOption {
	return func(s *Server) {
		s.now = now
	}
}

func WithSigningKey(key []byte) ServerOption {
	return func(s *Server) {
		s.signingKey = key
	}
}

func WithLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func New(options ...ServerOption) (*Server, error) {
	s := &Server{
		mux:       http.NewServeMux(),
		users:     newUserStore(),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    zerolog.Nop(),
		accessTTL: defaultAccessTTL,
		now:       time.Now,
	}
	for _, opt := range options {
		opt(s)
	}

	if len(s.signingKey) == 0 {
		s.signingKey = make([]byte, 32)
		if _, err := rand.Read(s.signingKey); err != nil {
			return nil, err
		}
	}
	s.tokens = newTokenIssuer(s.signingKey, s.accessTTL, s.now)
	s.validate.RegisterTagNameFunc(jsonFieldName)

	s.initRoutes()
	return s, nil
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler http.HandlerFunc) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes lists the registered route patterns
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

// Calls returns every request received so far, in order
func (s *Server) Calls() []Call {
	s.callsLock.Lock()
	defer s.callsLock.Unlock()
	return append([]Call(nil), s.calls...)
}

func (s *Server) ResetCalls() {
	s.callsLock.Lock()
	defer s.callsLock.Unlock()
	s.calls = nil
}

// RevokeAccessTokens makes every access token issued so far invalid, as if they
// had expired.
func (s *Server) RevokeAccessTokens() {
	s.tokens.RevokeAccessTokens()
}

// RevokeRefreshTokens makes every outstanding refresh token invalid
func (s *Server) RevokeRefreshTokens() {
	s.tokens.RevokeRefreshTokens()
}

// SeedUser enrols an account directly. Password may be empty for face-only accounts.
func (s *Server) SeedUser(email, fullName, password, face string) (*User, error) {
	user := &User{
		Email:     email,
		FullName:  fullName,
		Face:      face,
		IsActive:  true,
		CreatedAt: s.now(),
	}
	if password != "" {
		hash, err := hashPassword(password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if err := s.users.Insert(user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeactivateUser blocks further logins for email
func (s *Server) DeactivateUser(email string) error {
	user, err := s.users.GetByEmail(email)
	if err != nil {
		return err
	}
	s.users.lock.Lock()
	user.IsActive = false
	s.users.lock.Unlock()
	return nil
}

func (s *Server) record(r *http.Request) {
	s.callsLock.Lock()
	defer s.callsLock.Unlock()
	s.calls = append(s.calls, Call{
		Method:        r.Method,
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
	})
}

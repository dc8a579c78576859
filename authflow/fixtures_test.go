package authflow_test

import (
	"context"
	"sync"

	"github.com/dignilife/faceauth-client/api"
	"github.com/dignilife/faceauth-client/capture"
)

type stubAPI struct {
	lock         sync.Mutex
	calls        []string
	loginReqs    []api.LoginRequest
	registerReqs []api.RegisterRequest

	loginResp   *api.TokenResponse
	loginErr    error
	registerErr error
}

func (s *stubAPI) Login(_ context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.calls = append(s.calls, "login")
	s.loginReqs = append(s.loginReqs, req)
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return s.loginResp, nil
}

func (s *stubAPI) Register(_ context.Context, req api.RegisterRequest) (*api.User, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.calls = append(s.calls, "register")
	s.registerReqs = append(s.registerReqs, req)
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	return &api.User{ID: "u1", Email: req.Email, FullName: req.FullName}, nil
}

type stubCamera struct {
	frame capture.Frame
	err   error
	calls int
}

func (c *stubCamera) Capture(context.Context) (capture.Frame, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.frame, nil
}

func faceCamera() *stubCamera {
	return &stubCamera{frame: "data:image/jpeg;base64,RkFDRQ=="}
}

const facePayload = "RkFDRQ=="

func tokens(access, refresh string) *api.TokenResponse {
	return &api.TokenResponse{AccessToken: access, RefreshToken: refresh, TokenType: "bearer", LoginMethod: "face"}
}

var cancelCapture = capture.ConfirmerFunc(func(context.Context, capture.Frame) (capture.Decision, error) {
	return capture.Cancel, nil
})

package authflow_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dignilife/faceauth-client/api"
	"github.com/dignilife/faceauth-client/authflow"
	"github.com/dignilife/faceauth-client/credentials"
	fakecredentialsrepo "github.com/dignilife/faceauth-client/credentials/repofake"
	"github.com/dignilife/faceauth-client/internal/apifake"
	"github.com/dignilife/faceauth-client/transport"
)

type flowFixture struct {
	fake        *apifake.Server
	repo        *fakecredentialsrepo.FakeCredentialsRepo
	client      *api.SessionClient
	navigations int
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()
	ff := &flowFixture{repo: fakecredentialsrepo.NewFakeCredentialsRepo()}

	var err error
	ff.fake, err = apifake.New()
	require.NoError(t, err)
	server := httptest.NewServer(ff.fake)
	t.Cleanup(server.Close)

	ff.client, err = api.NewSessionClient(server.URL, server.Client(), ff.repo,
		transport.NavigatorFunc(func(context.Context) { ff.navigations++ }), zerolog.Nop())
	require.NoError(t, err)
	return ff
}

func (ff *flowFixture) paths() []string {
	var paths []string
	for _, call := range ff.fake.Calls() {
		paths = append(paths, call.Path)
	}
	return paths
}

func TestFlow_RegisterThenUseSession(t *testing.T) {
	ff := newFlowFixture(t)
	rc, err := authflow.NewRegisterController(ff.client, ff.repo, faceCamera(), nil)
	require.NoError(t, err)

	state := rc.SubmitBiometric(context.Background(), biometricState(t, adaDraft))
	require.Equal(t, authflow.RegisterAuthenticated, state.Phase, state.Message)
	require.Equal(t, []string{api.RegisterPath, api.LoginPath}, ff.paths())

	session, ok := credentials.Load(ff.repo)
	require.True(t, ok)

	ff.fake.ResetCalls()
	user, err := ff.client.Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Ada Lovelace", user.FullName)
	require.Equal(t, "Bearer "+session.AccessToken, ff.fake.Calls()[0].Authorization)
}

func TestFlow_DuplicateRegistration(t *testing.T) {
	ff := newFlowFixture(t)
	_, err := ff.fake.SeedUser(adaDraft.Email, adaDraft.FullName, "", "other-face")
	require.NoError(t, err)

	rc, err := authflow.NewRegisterController(ff.client, ff.repo, faceCamera(), nil)
	require.NoError(t, err)

	state := rc.SubmitBiometric(context.Background(), biometricState(t, adaDraft))
	require.Equal(t, authflow.ProfileEntry, state.Phase)
	require.Equal(t, "Email already registered", state.Message)
	require.Equal(t, []string{api.RegisterPath}, ff.paths())
	require.Zero(t, ff.navigations)
}

func TestFlow_FaceLoginFallsBackToPassword(t *testing.T) {
	ff := newFlowFixture(t)
	_, err := ff.fake.SeedUser("ada@example.com", "Ada", "s3cret-pass", "enrolled-face")
	require.NoError(t, err)

	lc, err := authflow.NewLoginController(ff.client, ff.repo, faceCamera(), nil)
	require.NoError(t, err)

	state := lc.SubmitFace(context.Background(), authflow.NewLoginState())
	require.Equal(t, authflow.FallbackEntry, state.Step)
	require.Equal(t, "Login failed. Face not recognized or credentials invalid.", state.Message)
	require.Zero(t, ff.navigations)

	state = lc.SubmitCredentials(context.Background(), state, authflow.FallbackCredentials{Email: "ada@example.com", Password: "wrong"})
	require.Equal(t, authflow.FallbackEntry, state.Step)
	require.Equal(t, "Incorrect email or password", state.Message)

	state = lc.SubmitCredentials(context.Background(), state, authflow.FallbackCredentials{Email: "ada@example.com", Password: "s3cret-pass"})
	require.Equal(t, authflow.LoginAuthenticated, state.Step)
	_, ok := credentials.Load(ff.repo)
	require.True(t, ok)
}

func TestFlow_SessionLifecycle(t *testing.T) {
	ff := newFlowFixture(t)
	_, err := ff.fake.SeedUser("ada@example.com", "Ada", "", facePayload)
	require.NoError(t, err)

	lc, err := authflow.NewLoginController(ff.client, ff.repo, faceCamera(), nil)
	require.NoError(t, err)
	state := lc.SubmitFace(context.Background(), authflow.NewLoginState())
	require.Equal(t, authflow.LoginAuthenticated, state.Step)
	first, _ := credentials.Load(ff.repo)

	// expired access token is refreshed transparently
	ff.fake.RevokeAccessTokens()
	ff.fake.ResetCalls()
	_, err = ff.client.Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{api.MePath, api.RefreshPath, api.MePath}, ff.paths())

	second, _ := credentials.Load(ff.repo)
	require.NotEqual(t, first, second)
	require.Equal(t, "Bearer "+second.AccessToken, ff.fake.Calls()[2].Authorization)

	// a rejected refresh ends the session
	ff.fake.RevokeAccessTokens()
	ff.fake.RevokeRefreshTokens()
	ff.fake.ResetCalls()
	_, err = ff.client.Me(context.Background())
	require.ErrorIs(t, err, transport.ErrSessionExpired)
	require.Equal(t, []string{api.MePath, api.RefreshPath}, ff.paths())
	require.Equal(t, 1, ff.navigations)
	_, ok := credentials.Load(ff.repo)
	require.False(t, ok)

	// with no session left nothing is refreshed
	ff.fake.ResetCalls()
	_, err = ff.client.Me(context.Background())
	require.True(t, api.IsStatus(err, 401))
	require.Equal(t, []string{api.MePath}, ff.paths())
	require.Equal(t, 1, ff.navigations)
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/dignilife/faceauth-client/authflow"
	"github.com/dignilife/faceauth-client/capture"
	"github.com/dignilife/faceauth-client/credentials"
	"github.com/dignilife/faceauth-client/credentials/filerepo"
	"github.com/dignilife/faceauth-client/internal/apifake"
	clienterrors "github.com/dignilife/faceauth-client/internal/errors"
	"github.com/dignilife/faceauth-client/transport"
)

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := a.flags("login")
	image := fs.String("image", "", "still image of your face (jpeg, png or webp)")
	usePassword := fs.Bool("password", false, "skip face login and use email and password")
	attempts := fs.Int("attempts", capture.DefaultAttempts, "frames offered before a capture fails")
	if err := fs.Parse(args); err != nil {
		return err
	}

	lc, err := authflow.NewLoginController(a.client, a.repo, capture.NewFileCamera(*image), a.prompt,
		authflow.WithLogger(a.logger), authflow.WithCaptureAttempts(*attempts))
	if err != nil {
		return err
	}

	state := authflow.NewLoginState()
	if *usePassword || *image == "" {
		state, _ = state.Next(authflow.FallbackRequested, "")
	}

	for state.Step != authflow.LoginAuthenticated {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch state.Step {
		case authflow.FaceEntry:
			a.prompt.println(a.out, "Looking at", *image, "...")
			next := lc.SubmitFace(ctx, state)
			if next.Step == authflow.FaceEntry {
				a.prompt.println(a.out, next.Message)
				again, err := a.prompt.yes("Try face login again?")
				if err != nil {
					return err
				}
				if !again {
					next, _ = next.Next(authflow.FallbackRequested, "")
				}
			}
			state = next

		case authflow.FallbackEntry:
			if state.Message != "" {
				a.prompt.println(a.out, state.Message)
			}
			email, err := a.prompt.ask("Email (blank to go back to face login)", "")
			if err != nil {
				return err
			}
			if email == "" {
				if *image == "" {
					return errors.New("face login needs -image")
				}
				state, _ = state.Next(authflow.FaceRequested, "")
				continue
			}
			password, err := a.prompt.askPassword("Password")
			if err != nil {
				return err
			}
			state = lc.SubmitCredentials(ctx, state, authflow.FallbackCredentials{Email: email, Password: password})
		}
	}

	a.prompt.println(a.out, state.Message)
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := a.flags("register")
	image := fs.String("image", "", "still image of your face (jpeg, png or webp)")
	email := fs.String("email", "", "email address")
	name := fs.String("name", "", "full name")
	phone := fs.String("phone", "", "phone number")
	attempts := fs.Int("attempts", capture.DefaultAttempts, "frames offered before a capture fails")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *image == "" {
		return errors.New("register needs -image")
	}

	rc, err := authflow.NewRegisterController(a.client, a.repo, capture.NewFileCamera(*image), a.prompt,
		authflow.WithLogger(a.logger), authflow.WithCaptureAttempts(*attempts))
	if err != nil {
		return err
	}

	state, _ := authflow.NewRegisterState().Edit(authflow.ProfileDraft{Email: *email, FullName: *name, PhoneNumber: *phone})
	for state.Phase != authflow.RegisterAuthenticated {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch state.Phase {
		case authflow.ProfileEntry:
			if state.Message != "" {
				a.prompt.println(a.out, state.Message)
			}
			draft, err := a.prompt.profile(state.Draft)
			if err != nil {
				return err
			}
			if state, err = state.Edit(draft); err != nil {
				return err
			}
			state, _ = state.Advance()

		case authflow.BiometricEntry:
			a.prompt.println(a.out, "Verifying your face from", *image, "...")
			state = rc.SubmitBiometric(ctx, state)
			if state.Phase == authflow.BiometricEntry {
				a.prompt.println(a.out, state.Message)
				again, err := a.prompt.yes("Try the capture again?")
				if err != nil {
					return err
				}
				if !again {
					state, _ = state.Back()
				}
			}
		}
	}

	a.prompt.println(a.out, state.Message)
	return nil
}

func (a *app) logout(args []string) error {
	if err := a.flags("logout").Parse(args); err != nil {
		return err
	}
	if err := authflow.Logout(a.repo); err != nil {
		return err
	}
	a.prompt.println(a.out, "Logged out.")
	return nil
}

func (a *app) me(ctx context.Context, args []string) error {
	if err := a.flags("me").Parse(args); err != nil {
		return err
	}
	if _, ok := credentials.Load(a.repo); !ok {
		return clienterrors.ErrNotAuthenticated
	}

	user, err := a.client.Me(ctx)
	if err != nil {
		if errors.Is(err, transport.ErrSessionExpired) {
			return clienterrors.ErrSessionExpired
		}
		return err
	}

	out, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return err
	}
	a.prompt.println(a.out, string(out))
	return nil
}

func (a *app) status(args []string) error {
	if err := a.flags("status").Parse(args); err != nil {
		return err
	}

	where := string(a.cfg.GetStoreBackend())
	if fr, ok := a.repo.(*filerepo.FileRepo); ok {
		where = fr.Path()
	}

	if _, ok := credentials.Load(a.repo); !ok {
		a.prompt.println(a.out, "Not logged in.", "Store:", where)
		return nil
	}
	a.prompt.println(a.out, "Logged in.", "Store:", where)
	return nil
}

func (a *app) fakeAPI(ctx context.Context, args []string) error {
	fs := a.flags("fake-api")
	addr := fs.String("addr", "127.0.0.1:8000", "listen address")
	accessTTL := fs.Duration("access-ttl", 15*time.Minute, "access token lifetime")
	seedEmail := fs.String("seed-email", "", "enrol this account at startup")
	seedName := fs.String("seed-name", "Demo User", "full name of the seeded account")
	seedPassword := fs.String("seed-password", "", "password of the seeded account")
	seedImage := fs.String("seed-image", "", "face image of the seeded account")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fake, err := apifake.New(apifake.WithAccessTTL(*accessTTL), apifake.WithLogger(a.logger))
	if err != nil {
		return err
	}

	if *seedEmail != "" {
		var face string
		if *seedImage != "" {
			frame, err := capture.NewFileCamera(*seedImage).Capture(ctx)
			if err != nil {
				return err
			}
			face = capture.StripDataURI(string(frame))
		}
		if _, err := fake.SeedUser(*seedEmail, *seedName, *seedPassword, face); err != nil {
			return err
		}
		a.logger.Info().Str("email", *seedEmail).Msg("seeded account")
	}

	server := &http.Server{Addr: *addr, Handler: fake, ReadHeaderTimeout: 10 * time.Second}
	errs := make(chan error, 1)
	go func() {
		errs <- listenAndServe(a, server)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	return shutdown(server)
}

func listenAndServe(a *app, server *http.Server) error {
	a.logger.Info().Str("addr", server.Addr).Strs("routes", routesOf(server)).Msg("fake api listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func routesOf(server *http.Server) []string {
	if fake, ok := server.Handler.(*apifake.Server); ok {
		return fake.Routes()
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

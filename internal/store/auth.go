package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/al-bashkir/payroll-console/internal/apiclient"
	"github.com/al-bashkir/payroll-console/internal/session"
)

const registerPath = "/api/v1/auth/register"

// Auth signs the user in and out.
type Auth struct {
	state

	client      *apiclient.Client
	session     *session.Manager
	profilePath string
}

// NewAuth returns the auth store. profilePath is the current-user endpoint.
func NewAuth(c *apiclient.Client, s *session.Manager, profilePath string) *Auth {
	return &Auth{client: c, session: s, profilePath: profilePath}
}

// Login exchanges credentials for a token and loads the profile. With
// remember set the credentials are kept for automatic renewal. Without it
// any previously remembered credentials are left alone; Forget drops them.
func (a *Auth) Login(ctx context.Context, username, password string, remember bool) (session.Profile, error) {
	var profile session.Profile
	err := a.run(func() error {
		res, err := a.client.Login(ctx, username, password)
		if err != nil {
			return err
		}
		if err := a.session.SetToken(ctx, res.Token); err != nil {
			return fmt.Errorf("failed to store token: %w", err)
		}

		if remember {
			if err := a.session.Remember(ctx, username, password); err != nil {
				return fmt.Errorf("failed to store credentials: %w", err)
			}
		}

		if res.Profile != nil {
			profile = *res.Profile
			return a.session.SetProfile(ctx, profile)
		}
		profile, err = a.me(ctx)
		return err
	})
	if err == nil {
		slog.Info("signed in", "username", username, "role", string(profile.Role), "remember", remember)
	}
	return profile, err
}

// Register submits a self-service account request. It needs no session;
// the account stays pending until an administrator approves it.
func (a *Auth) Register(ctx context.Context, r Registration) (RegistrationResult, error) {
	var out RegistrationResult
	err := a.run(func() error {
		return a.client.Do(ctx, apiclient.Request{
			Method: http.MethodPost,
			Path:   registerPath,
			Body:   r,
			Login:  true,
		}, &out)
	})
	if err == nil {
		slog.Info("registration submitted", "username", r.Username, "status", out.Status)
	}
	return out, err
}

// Me reloads the current user.
func (a *Auth) Me(ctx context.Context) (session.Profile, error) {
	var profile session.Profile
	err := a.run(func() error {
		var err error
		profile, err = a.me(ctx)
		return err
	})
	return profile, err
}

func (a *Auth) me(ctx context.Context) (session.Profile, error) {
	profile, err := apiclient.Get[session.Profile](ctx, a.client, a.profilePath, nil)
	if err != nil {
		return profile, err
	}
	if err := a.session.SetProfile(ctx, profile); err != nil {
		return profile, fmt.Errorf("failed to store profile: %w", err)
	}
	return profile, nil
}

// Logout drops the token and profile. Remembered credentials stay.
func (a *Auth) Logout(ctx context.Context) error {
	return a.session.Clear(ctx)
}

// Forget drops the remembered credentials.
func (a *Auth) Forget(ctx context.Context) error {
	return a.session.ClearCredentials(ctx)
}

package desk

import (
	"context"
	"errors"
	"fmt"

	"github.com/p-blackswan/repodesk/internal/models"
	"github.com/p-blackswan/repodesk/internal/navigation"
)

// Login signs in, stores tokens and profile, and navigates to the page the
// user was sent away from, or the landing page.
func (d *Desk) Login(ctx context.Context, usernameOrEmail, password string) (navigation.Location, error) {
	pair, err := d.API.Login(ctx, usernameOrEmail, password)
	if err != nil {
		return d.Nav.Current(), err
	}
	if err := d.establish(ctx, pair); err != nil {
		return d.Nav.Current(), err
	}
	target := d.Nav.Guard().PostLoginTarget(d.Nav.Current().Path)
	return d.Nav.Navigate(ctx, target)
}

// Register creates an account and signs in with it.
func (d *Desk) Register(ctx context.Context, req models.RegisterRequest) (navigation.Location, error) {
	pair, err := d.API.Register(ctx, req)
	if err != nil {
		return d.Nav.Current(), err
	}
	if pair.AccessToken == "" {
		login := req.Username
		if login == "" {
			login = req.Email
		}
		return d.Login(ctx, login, req.Password)
	}
	if err := d.establish(ctx, pair); err != nil {
		return d.Nav.Current(), err
	}
	return d.Nav.Navigate(ctx, d.Nav.Guard().Table().Landing)
}

// establish stores tokens, then the profile. A profile failure undoes the
// tokens so a half-signed-in session never persists.
func (d *Desk) establish(ctx context.Context, pair models.TokenPair) error {
	if pair.AccessToken == "" {
		return ErrNoAccessToken
	}
	if err := d.Session.SetTokens(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
		return err
	}

	var user models.User
	var err error
	if pair.UserID != "" {
		user, err = d.API.GetUser(ctx, pair.UserID)
	} else {
		user, err = d.API.Me(ctx)
	}
	if err != nil {
		if cerr := d.Session.Clear(ctx); cerr != nil {
			d.logger.Error().Err(cerr).Msg("failed to clear session after profile fetch failure")
		}
		return fmt.Errorf("fetching profile: %w", err)
	}
	if err := d.Session.SetSession(ctx, user); err != nil {
		return err
	}
	d.logger.Info().Str("user_id", user.ID).Msg("signed in")
	return nil
}

// Logout invalidates the session server-side when possible, then drops all
// local state of the tab and returns to the login page.
func (d *Desk) Logout(ctx context.Context) error {
	if d.Session.Authenticated(ctx) {
		if err := d.API.Logout(ctx); err != nil {
			d.logger.Warn().Err(err).Msg("server-side logout failed")
		}
	}
	d.Channel.Disconnect()
	d.Results.Clear()
	err := errors.Join(
		d.Session.Clear(ctx),
		d.Repo.Clear(ctx),
		d.File.Clear(ctx),
		d.Chat.Clear(ctx),
	)
	if _, nerr := d.Nav.Navigate(ctx, d.Nav.Guard().Table().Login); nerr != nil {
		err = errors.Join(err, nerr)
	}
	d.logger.Info().Msg("signed out")
	return err
}

// Whoami refreshes the profile from the server.
func (d *Desk) Whoami(ctx context.Context) (models.User, error) {
	user, err := d.API.Me(ctx)
	if err != nil {
		return models.User{}, err
	}
	if err := d.Session.SetSession(ctx, user); err != nil {
		return models.User{}, err
	}
	return d.Session.Snapshot().User, nil
}

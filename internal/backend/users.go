package backend

import (
	"context"
	"net/url"

	"github.com/p-blackswan/repodesk/internal/apiclient"
	"github.com/p-blackswan/repodesk/internal/models"
)

// Login exchanges credentials for tokens. In users mode the server may answer
// with only a user id; the caller then has no bearer token to store.
func (a *API) Login(ctx context.Context, usernameOrEmail, password string) (models.TokenPair, error) {
	var pair models.TokenPair
	var err error
	switch a.mode {
	case LoginOAuth:
		form := apiclient.Form(url.Values{
			"username": {usernameOrEmail},
			"password": {password},
		})
		err = a.client.Post(ctx, "/auth/token", form, &pair, apiclient.WithoutAuth())
	default:
		req := models.LoginRequest{UsernameOrEmail: usernameOrEmail, Password: password}
		err = a.client.Post(ctx, "/users/authenticate/", req, &pair, apiclient.WithoutAuth())
	}
	return pair, err
}

type registerResponse struct {
	models.TokenPair
	ID string `json:"id"`
}

// Register creates an account. The oauth endpoint requires a password
// confirmation; it defaults to the password when unset.
func (a *API) Register(ctx context.Context, req models.RegisterRequest) (models.TokenPair, error) {
	var resp registerResponse
	var err error
	switch a.mode {
	case LoginOAuth:
		if req.PasswordConfirm == "" {
			req.PasswordConfirm = req.Password
		}
		err = a.client.Post(ctx, "/auth/register", req, &resp, apiclient.WithoutAuth())
	default:
		req.PasswordConfirm = ""
		err = a.client.Post(ctx, "/users/", req, &resp, apiclient.WithoutAuth())
	}
	if resp.UserID == "" {
		resp.UserID = resp.ID
	}
	return resp.TokenPair, err
}

func (a *API) GetUser(ctx context.Context, userID string) (models.User, error) {
	var u models.User
	err := a.client.Get(ctx, "/users/"+seg(userID), &u)
	return u, err
}

// Me returns the profile of the bearer of the current access token.
func (a *API) Me(ctx context.Context) (models.User, error) {
	var u models.User
	err := a.client.Get(ctx, "/users/me", &u)
	return u, err
}

// Logout invalidates the session server-side.
func (a *API) Logout(ctx context.Context) error {
	return a.client.Post(ctx, "/auth/logout", nil, nil)
}

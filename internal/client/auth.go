package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stemsi/exstem-portal/internal/model"
)

// Login exchanges credentials for a token. A 404 means the email is not
// registered; a 401 is a plain credential failure, not an expired session.
func (c *Client) Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error) {
	body := map[string]string{"email": req.Email, "password": req.Password}

	var out model.LoginResponse
	err := c.do(ctx, request{method: http.MethodPost, path: "/auth/login", body: body, anonymous: true}, &out)
	if err != nil {
		if StatusOf(err) == http.StatusNotFound {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("login: %w", err)
	}
	if out.Token == "" {
		return nil, fmt.Errorf("login: backend returned no token")
	}
	return &out, nil
}

// Logout revokes the token on the backend. An already expired session is
// not an error.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, request{method: http.MethodPost, path: "/auth/logout"}, nil)
	if err != nil && !errors.Is(err, ErrSessionExpired) {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Register submits a student self-registration.
func (c *Client) Register(ctx context.Context, form model.RegistrationForm) (*model.User, error) {
	body := map[string]string{
		"name":      form.Name,
		"email":     form.Email,
		"phone":     form.Phone,
		"password":  form.Password,
		"batchName": form.Batch,
	}

	var out model.User
	if err := c.do(ctx, request{method: http.MethodPost, path: "/auth/register", body: body, anonymous: true}, &out); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &out, nil
}

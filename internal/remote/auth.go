package remote

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

const defaultLoginError = "An error occurred during login."

// Registration is the body of a sign-up request.
type Registration struct {
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Role            string `json:"role"`
}

// Login exchanges credentials for a session token. Rejections carry the
// server's message, or a generic one when it sent none.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	body := map[string]string{"email": email, "password": password}
	var out struct {
		Token string `json:"token"`
	}
	err := c.doPublic(ctx, "login", http.MethodPost, "/api/auth/login", body, &out)
	var rej *RejectionError
	switch {
	case errors.As(err, &rej):
		if rej.Message == "" {
			rej.Message = defaultLoginError
		}
		return "", rej
	case err != nil:
		return "", err
	}
	if strings.TrimSpace(out.Token) == "" {
		return "", &RejectionError{Status: http.StatusOK, Message: defaultLoginError}
	}
	return out.Token, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, r Registration) error {
	return c.doPublic(ctx, "register", http.MethodPost, "/register", r, nil)
}

// Validate asks the API whether the current token is still accepted.
func (c *Client) Validate(ctx context.Context) error {
	return c.do(ctx, "validate session", http.MethodGet, "/api/auth/protected-route", nil, nil)
}

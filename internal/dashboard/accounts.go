package dashboard

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"ecmdash/internal/identity"
	"ecmdash/internal/logging"
	"ecmdash/internal/remote"
)

const (
	LoginFailed        = "An error occurred during login."
	RegistrationFailed = "An error occurred during registration."
	minPasswordLen     = 6
)

type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, r remote.Registration) error
}

type SessionWriter interface {
	Begin(ctx context.Context, token string) error
	End(ctx context.Context) error
}

// RegisterRoles are the roles offered at sign-up, in display order.
var RegisterRoles = []identity.Role{identity.RoleAdmin, identity.RoleTeamManager, identity.RoleTeamMember}

// Accounts runs login, registration and logout against the API and the
// session.
type Accounts struct {
	api  Authenticator
	sess SessionWriter
	log  *zap.Logger
}

func NewAccounts(api Authenticator, sess SessionWriter, log *zap.Logger) *Accounts {
	return &Accounts{api: api, sess: sess, log: logging.OrNop(log)}
}

// Login stores the issued token. Use UserMessage on the error for the text
// to show.
func (a *Accounts) Login(ctx context.Context, email, password string) error {
	tok, err := a.api.Login(ctx, strings.TrimSpace(email), password)
	if err != nil {
		a.log.Info("login failed", zap.Error(err))
		return err
	}
	return a.sess.Begin(ctx, tok)
}

// ValidateRegistration runs the client-side checks in form order: every
// field present, passwords equal, password long enough, known role.
func ValidateRegistration(r remote.Registration) error {
	if strings.TrimSpace(r.FullName) == "" || strings.TrimSpace(r.Email) == "" ||
		r.Password == "" || r.ConfirmPassword == "" || strings.TrimSpace(r.Role) == "" {
		return &ValidationError{Message: "All fields are required."}
	}
	if r.Password != r.ConfirmPassword {
		return &ValidationError{Field: "confirm_password", Message: "Passwords do not match."}
	}
	if len(r.Password) < minPasswordLen {
		return &ValidationError{Field: "password", Message: "Password must be at least 6 characters long."}
	}
	if identity.ParseRole(r.Role) == identity.RoleUnknown {
		return &ValidationError{Field: "role", Message: "Select a role."}
	}
	return nil
}

// Register validates locally, then creates the account. It does not sign in.
func (a *Accounts) Register(ctx context.Context, r remote.Registration) error {
	if err := ValidateRegistration(r); err != nil {
		return err
	}
	r.Role = identity.ParseRole(r.Role).String()
	if err := a.api.Register(ctx, r); err != nil {
		a.log.Warn("registration failed", zap.Error(err))
		return err
	}
	return nil
}

// Logout forgets the session token.
func (a *Accounts) Logout(ctx context.Context) error {
	return a.sess.End(ctx)
}

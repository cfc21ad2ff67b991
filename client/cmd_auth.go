package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"ecmdash/internal/dashboard"
	"ecmdash/internal/remote"
	"ecmdash/internal/session"
)

var (
	loginEmail    string
	loginPassword string

	regName     string
	regEmail    string
	regPassword string
	regConfirm  string
	regRole     string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session token",
	Long: `Sign in with email and password. Missing values are prompted for on
stdin. The issued token replaces any stored session.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Long: `Create an account. Roles: admin, user (team manager), moderator (team
member). Registering does not sign you in.`,
	Args: cobra.NoArgs,
	RunE: runRegister,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := deps.accounts().Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user and check the session with the API",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password")

	registerCmd.Flags().StringVar(&regName, "name", "", "full name")
	registerCmd.Flags().StringVar(&regEmail, "email", "", "email")
	registerCmd.Flags().StringVar(&regPassword, "password", "", "password, at least 6 characters")
	registerCmd.Flags().StringVar(&regConfirm, "confirm", "", "password again")
	registerCmd.Flags().StringVar(&regRole, "role", "", "admin, user or moderator")
}

// prompter asks for values missing from flags, one line each.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{in: bufio.NewReader(cmd.InOrStdin()), out: cmd.OutOrStdout()}
}

func (p *prompter) fill(dst *string, label string) error {
	if *dst != "" {
		return nil
	}
	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	*dst = strings.TrimRight(line, "\r\n")
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	p := newPrompter(cmd)
	email, password := loginEmail, loginPassword
	if err := p.fill(&email, "Email"); err != nil {
		return err
	}
	if err := p.fill(&password, "Password"); err != nil {
		return err
	}
	if err := deps.accounts().Login(cmd.Context(), email, password); err != nil {
		return errors.New(dashboard.UserMessage(err, dashboard.LoginFailed))
	}
	id := deps.sess.Identity(cmd.Context())
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s).\n", id.Email, id.Role.Label())
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	p := newPrompter(cmd)
	r := remote.Registration{
		FullName: regName, Email: regEmail,
		Password: regPassword, ConfirmPassword: regConfirm, Role: regRole,
	}
	for _, f := range []struct {
		dst   *string
		label string
	}{
		{&r.FullName, "Full name"},
		{&r.Email, "Email"},
		{&r.Password, "Password"},
		{&r.ConfirmPassword, "Confirm password"},
		{&r.Role, "Role (admin, user, moderator)"},
	} {
		if err := p.fill(f.dst, f.label); err != nil {
			return err
		}
	}
	if err := deps.accounts().Register(cmd.Context(), r); err != nil {
		return errors.New(dashboard.UserMessage(err, dashboard.RegistrationFailed))
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Registration successful. Run \"ecm login\" to sign in.")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if _, err := deps.sess.Token(ctx); errors.Is(err, session.ErrNoSession) {
		return errors.New("not signed in")
	} else if err != nil {
		return err
	}
	id := deps.sess.Identity(ctx)
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id.Email, id.Role.Label())
	if deps.gate().Check(ctx) == dashboard.RedirectLogin {
		return errors.New("session is no longer valid, run \"ecm login\"")
	}
	return nil
}

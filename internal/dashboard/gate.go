// Package dashboard holds the session-gated case workflow: the auth gate, the
// list/detail reconciler, the create/edit form session and the sign-in flows.
package dashboard

import (
	"context"

	"go.uber.org/zap"

	"ecmdash/internal/logging"
)

// Decision is the gate's verdict for the current screen.
type Decision int

const (
	Stay Decision = iota
	RedirectLogin
)

func (d Decision) String() string {
	if d == RedirectLogin {
		return "redirect-login"
	}
	return "stay"
}

type TokenReader interface {
	Token(ctx context.Context) (string, error)
}

type Validator interface {
	Validate(ctx context.Context) error
}

// Gate checks the stored session against the API when a gated screen opens.
type Gate struct {
	tokens TokenReader
	api    Validator
	log    *zap.Logger
}

func NewGate(tokens TokenReader, api Validator, log *zap.Logger) *Gate {
	return &Gate{tokens: tokens, api: api, log: logging.OrNop(log)}
}

// Check sends no request when no token is stored, and exactly one
// validation request otherwise.
func (g *Gate) Check(ctx context.Context) Decision {
	if _, err := g.tokens.Token(ctx); err != nil {
		g.log.Debug("no session, redirecting to login", zap.Error(err))
		return RedirectLogin
	}
	if err := g.api.Validate(ctx); err != nil {
		g.log.Info("session rejected, redirecting to login", zap.Error(err))
		return RedirectLogin
	}
	return Stay
}

// Start runs Check in the background so the screen can render meanwhile.
// The channel yields one Decision and is then closed.
func (g *Gate) Start(ctx context.Context) <-chan Decision {
	out := make(chan Decision, 1)
	go func() {
		defer close(out)
		out <- g.Check(ctx)
	}()
	return out
}

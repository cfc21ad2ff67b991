package session

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"ecmdash/internal/identity"
	"ecmdash/internal/logging"
)

// ErrNoSession is returned when no token is stored.
var ErrNoSession = errors.New("no session")

// Session is the client's view of the signed-in user. It is created once
// and handed to every component that needs the token.
type Session struct {
	store Store
	log   *zap.Logger
}

func New(store Store, log *zap.Logger) *Session {
	return &Session{store: store, log: logging.OrNop(log)}
}

// Begin stores the token issued by a successful login, replacing any other.
func (s *Session) Begin(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("empty session token")
	}
	return s.store.Set(ctx, token)
}

// End forgets the stored token.
func (s *Session) End(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// Token returns the stored token or ErrNoSession.
func (s *Session) Token(ctx context.Context) (string, error) {
	tok, ok, err := s.store.Get(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNoSession
	}
	return tok, nil
}

// Identity decodes the stored token. A missing or undecodable token yields
// an identity with no elevated capability.
func (s *Session) Identity(ctx context.Context) identity.Identity {
	tok, err := s.Token(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			s.log.Warn("read session", zap.Error(err))
		}
		return identity.Identity{}
	}
	id, err := identity.Decode(tok)
	if err != nil {
		s.log.Warn("decode session token", zap.Error(err))
		return identity.Identity{}
	}
	return id
}

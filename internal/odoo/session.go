package odoo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// State is the authentication state of a Session.
type State int32

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Token is what every read call presents upstream.
type Token struct {
	UID      int64
	Database string
	Secret   string
}

// LoginFunc performs the upstream handshake and returns the uid (0 when the
// server answered with a falsy uid).
type LoginFunc func(ctx context.Context, creds Credentials) (int64, error)

// Session owns the uid for one client. The login handshake runs at most once:
// concurrent first callers block on mu and reuse the outcome. A failed session
// stays failed for the life of the client.
type Session struct {
	mu    sync.Mutex
	state atomic.Int32

	creds    Credentials
	uid      int64
	issuedAt time.Time
	err      error

	now func() time.Time
}

// NewSession returns an unauthenticated session, or an already authenticated
// one in api-key mode where apiKeyUID is presented instead of a negotiated uid.
func NewSession(creds Credentials, apiKeyUID int64) *Session {
	s := &Session{creds: creds, now: time.Now}
	if creds.Mode == ModeAPIKey {
		if apiKeyUID <= 0 {
			apiKeyUID = 1
		}
		s.uid = apiKeyUID
		s.issuedAt = s.now()
		s.state.Store(int32(StateAuthenticated))
	}
	return s
}

// State can be read without waiting for an in-flight login.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) Mode() Mode { return s.creds.Mode }

// UID returns the cached uid, 0 before authentication.
func (s *Session) UID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uid
}

func (s *Session) IssuedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issuedAt
}

// Ensure returns the token for the next call, running login first if needed.
func (s *Session) Ensure(ctx context.Context, login LoginFunc) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State() {
	case StateAuthenticated:
		return s.token(), nil
	case StateFailed:
		return Token{}, s.err
	}

	s.state.Store(int32(StateAuthenticating))

	uid, err := login(ctx, s.creds)
	switch {
	case err != nil && errors.Is(err, ErrAuthentication):
		s.fail(err)
	case err != nil:
		s.fail(fmt.Errorf("%w: %w", ErrAuthentication, err))
	case uid <= 0:
		s.fail(fmt.Errorf("%w: no user id returned", ErrAuthentication))
	default:
		s.uid = uid
		s.issuedAt = s.now()
		s.state.Store(int32(StateAuthenticated))
		return s.token(), nil
	}
	return Token{}, s.err
}

func (s *Session) fail(err error) {
	s.err = err
	s.state.Store(int32(StateFailed))
}

func (s *Session) token() Token {
	return Token{UID: s.uid, Database: s.creds.Database, Secret: s.creds.Secret}
}

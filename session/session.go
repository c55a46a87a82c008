// Package session gates write actions behind an authenticated session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/nasermirzaei89/karma/backend"
	"github.com/nasermirzaei89/karma/feed"
)

// ErrAuthRequired is returned for write actions attempted without a session.
// The action is dropped, not queued.
var ErrAuthRequired = errors.New("authentication required")

type LoginFailedError struct {
	Reason string
	Err    error
}

func (err LoginFailedError) Error() string {
	return "login failed: " + err.Reason
}

func (err LoginFailedError) Unwrap() error {
	return err.Err
}

// Authenticator is the part of the backend the gate talks to.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*feed.User, error)
	Register(ctx context.Context, username, password string) (*feed.User, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*feed.User, error)
}

// State is the session as seen by the UI. WantsLogin and WantsRegister are
// intents to show the corresponding form.
type State struct {
	Authenticated bool
	User          *feed.User
	WantsLogin    bool
	WantsRegister bool
}

func (s State) clone() State {
	if s.User != nil {
		user := s.User.Clone()
		s.User = &user
	}

	return s
}

type Gate struct {
	auth Authenticator

	mu    sync.RWMutex
	state State
}

func NewGate(auth Authenticator) *Gate {
	return &Gate{auth: auth}
}

func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.state.clone()
}

func (g *Gate) Authenticated() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.state.Authenticated
}

// Require lets action through when a session exists. Otherwise it raises the
// login intent and returns ErrAuthRequired.
func (g *Gate) Require(action string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state.Authenticated {
		return nil
	}

	g.state.WantsLogin = true

	slog.Debug("action requires authentication", "action", action)

	return ErrAuthRequired
}

func (g *Gate) Login(ctx context.Context, username, password string) (*feed.User, error) {
	return g.authenticate(ctx, "login", username, password, g.auth.Login)
}

func (g *Gate) Register(ctx context.Context, username, password string) (*feed.User, error) {
	return g.authenticate(ctx, "register", username, password, g.auth.Register)
}

func (g *Gate) authenticate(
	ctx context.Context,
	op string,
	username string,
	password string,
	call func(ctx context.Context, username, password string) (*feed.User, error),
) (*feed.User, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, &LoginFailedError{Reason: "username and password are required"}
	}

	user, err := call(ctx, username, password)
	if err != nil {
		slog.ErrorContext(ctx, "failed to "+op, "username", username, "error", err)

		var loginFailedErr *backend.LoginFailedError
		if errors.As(err, &loginFailedErr) {
			return nil, &LoginFailedError{Reason: loginFailedErr.Reason, Err: err}
		}

		return nil, &LoginFailedError{Reason: err.Error(), Err: err}
	}

	if user == nil {
		return nil, &LoginFailedError{Reason: "server returned no user"}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	signedIn := user.Clone()
	g.state = State{Authenticated: true, User: &signedIn}

	result := user.Clone()

	return &result, nil
}

// Logout always clears the local session. The remote error, if any, is
// returned for reporting only.
func (g *Gate) Logout(ctx context.Context) error {
	err := g.auth.Logout(ctx)

	g.mu.Lock()
	g.state = State{}
	g.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}

	return nil
}

// Hydrate restores an existing server session at startup.
func (g *Gate) Hydrate(ctx context.Context) error {
	user, err := g.auth.CurrentUser(ctx)
	if err != nil {
		if errors.Is(err, backend.ErrNotAuthenticated) {
			return nil
		}

		return fmt.Errorf("failed to get current user: %w", err)
	}

	if user == nil {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	signedIn := user.Clone()
	g.state.Authenticated = true
	g.state.User = &signedIn

	return nil
}

func (g *Gate) RequestLogin() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state.WantsLogin = true
	g.state.WantsRegister = false
}

func (g *Gate) RequestRegister() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state.WantsRegister = true
	g.state.WantsLogin = false
}

func (g *Gate) DismissPrompt() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state.WantsLogin = false
	g.state.WantsRegister = false
}

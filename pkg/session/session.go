// Package session is the authentication gate. It owns the bearer token,
// hydrates preferences after login and tears every cache down on logout.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mynotes/docsync/pkg/gateway"
	"github.com/mynotes/docsync/pkg/localstore"
	"github.com/mynotes/docsync/pkg/logger"
	"github.com/mynotes/docsync/pkg/models"
	"github.com/mynotes/docsync/pkg/notify"
)

// Preferences is loaded after login and cleared on logout.
type Preferences interface {
	Load(ctx context.Context) error
	Clear(ctx context.Context) error
}

// Resetter is a cache emptied on logout.
type Resetter interface {
	Reset()
}

// Claims are read from the token without verifying its signature; the
// backend verifies it on every request.
type Claims struct {
	Subject   string
	UserID    models.UserID
	SessionID string
	ExpiresAt time.Time
}

// Expired reports whether the token carries an expiry before now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

type tokenClaims struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	jwt.RegisteredClaims
}

type Snapshot struct {
	Authenticated bool
	SessionID     string
	UserID        models.UserID
}

type Option func(*Gate)

func WithLogger(l logger.Logger) Option {
	return func(g *Gate) { g.logger = logger.OrNop(l) }
}

// WithResetters adds caches emptied on logout.
func WithResetters(r ...Resetter) Option {
	return func(g *Gate) { g.resetters = append(g.resetters, r...) }
}

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

type Gate struct {
	auth      gateway.AuthAPI
	store     localstore.Store
	prefs     Preferences
	resetters []Resetter
	logger    logger.Logger
	now       func() time.Time
	events    *notify.Broadcaster[Snapshot]

	mu            sync.Mutex
	token         string
	sessionID     string
	authenticated bool
}

func New(auth gateway.AuthAPI, store localstore.Store, prefs Preferences, opts ...Option) *Gate {
	g := &Gate{
		auth:   auth,
		store:  store,
		prefs:  prefs,
		logger: logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.events = notify.New[Snapshot]("session", notify.DefaultBuffer, g.logger)
	return g
}

func (g *Gate) Subscribe() (<-chan Snapshot, func()) {
	return g.events.Subscribe()
}

func (g *Gate) Close() {
	g.events.Close()
}

func (g *Gate) Token() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.token
}

func (g *Gate) SessionID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessionID
}

// IsAuthenticated reports whether a session is open and its token has not
// expired.
func (g *Gate) IsAuthenticated() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.authenticated {
		return false
	}
	claims, err := parseClaims(g.token)
	return err != nil || !claims.Expired(g.now())
}

// Claims returns the claims of the held token.
func (g *Gate) Claims() (Claims, error) {
	return parseClaims(g.Token())
}

func parseClaims(token string) (Claims, error) {
	if token == "" {
		return Claims{}, errors.New("no token")
	}
	var tc tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &tc); err != nil {
		return Claims{}, fmt.Errorf("parse token: %w", err)
	}
	c := Claims{
		Subject:   tc.Subject,
		UserID:    models.UserID(tc.UserID),
		SessionID: tc.SessionID,
	}
	if tc.ExpiresAt != nil {
		c.ExpiresAt = tc.ExpiresAt.Time
	}
	return c, nil
}

// Snapshot returns the current state.
func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

func (g *Gate) snapshotLocked() Snapshot {
	s := Snapshot{Authenticated: g.authenticated, SessionID: g.sessionID}
	if claims, err := parseClaims(g.token); err == nil {
		s.UserID = claims.UserID
	}
	return s
}

func (g *Gate) publishLocked() {
	g.events.Publish(g.snapshotLocked())
}

// Login opens a session, stores the token and session id locally, then loads
// preferences. It returns once preferences hold either the user's values or
// the fallback, so nothing rendered after it sees a half-initialized record.
func (g *Gate) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	resp, err := g.auth.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	g.auth.SetAuthToken(resp.Token)

	g.mu.Lock()
	g.token = resp.Token
	g.sessionID = resp.SessionID
	g.authenticated = true
	g.publishLocked()
	g.mu.Unlock()

	if err := g.store.Set(ctx, localstore.KeyToken, resp.Token); err != nil {
		g.logger.Warn("Failed to store token", "error", err)
	}
	if err := g.store.Set(ctx, localstore.KeySessionID, resp.SessionID); err != nil {
		g.logger.Warn("Failed to store session id", "error", err)
	}

	if err := g.prefs.Load(ctx); err != nil {
		g.logger.Warn("Preferences loaded from fallback", "error", err)
	}
	g.logger.Info("Logged in", "session_id", resp.SessionID)
	return resp, nil
}

// Register creates an account. The returned token is held but the gate stays
// unauthenticated until Login.
func (g *Gate) Register(ctx context.Context, name, email, password string) (*models.AuthResponse, error) {
	resp, err := g.auth.Register(ctx, name, email, password)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.token = resp.Token
	g.authenticated = false
	g.publishLocked()
	return resp, nil
}

// Restore reopens the session kept in the local store. It reports false when
// there is none or its token has expired; an expired session is cleared.
func (g *Gate) Restore(ctx context.Context) (bool, error) {
	token, ok, err := g.store.Get(ctx, localstore.KeyToken)
	if err != nil {
		return false, fmt.Errorf("read token: %w", err)
	}
	if !ok || token == "" {
		return false, nil
	}
	sessionID, _, err := g.store.Get(ctx, localstore.KeySessionID)
	if err != nil {
		return false, fmt.Errorf("read session id: %w", err)
	}

	if claims, err := parseClaims(token); err == nil && claims.Expired(g.now()) {
		g.logger.Info("Stored session expired", "session_id", sessionID)
		return false, g.Expire(ctx)
	}

	g.auth.SetAuthToken(token)
	g.mu.Lock()
	g.token = token
	g.sessionID = sessionID
	g.authenticated = true
	g.publishLocked()
	g.mu.Unlock()
	return true, nil
}

// Logout ends the server session, then tears down local state. The server
// call is best effort; local teardown always happens and is complete when
// Logout returns.
func (g *Gate) Logout(ctx context.Context) error {
	if err := g.auth.Logout(ctx); err != nil {
		g.logger.Warn("Server logout failed", "error", err)
	}
	return g.Expire(ctx)
}

// Expire tears down local session state without contacting the server: the
// token, the stored session keys, preferences and every registered cache.
func (g *Gate) Expire(ctx context.Context) error {
	g.auth.SetAuthToken("")

	g.mu.Lock()
	g.token = ""
	g.sessionID = ""
	g.authenticated = false
	g.publishLocked()
	g.mu.Unlock()

	var errs []error
	if err := g.store.Delete(ctx, localstore.SessionKeys...); err != nil {
		errs = append(errs, fmt.Errorf("delete session keys: %w", err))
	}
	if err := g.prefs.Clear(ctx); err != nil {
		errs = append(errs, err)
	}
	for _, r := range g.resetters {
		r.Reset()
	}
	g.logger.Info("Session closed")
	return errors.Join(errs...)
}

// OnUnauthorized returns a hook for gateway.WithUnauthorizedHandler that
// closes the session locally.
func (g *Gate) OnUnauthorized() func() {
	return func() {
		if err := g.Expire(context.Background()); err != nil {
			g.logger.Error("Failed to close session after 401", "error", err)
		}
	}
}

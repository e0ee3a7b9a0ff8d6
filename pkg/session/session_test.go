package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mynotes/docsync/pkg/localstore"
	"github.com/mynotes/docsync/pkg/models"
	"github.com/mynotes/docsync/pkg/session"
)

var errBackend = errors.New("backend unavailable")

func signToken(t *testing.T, userID string, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        userID,
		"user_id":    userID,
		"session_id": "sess-" + userID,
		"exp":        exp.Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

type fakeAuth struct {
	mu        sync.Mutex
	token     string
	loginResp *models.AuthResponse
	err       error
	logoutErr error
	logouts   int
	events    *[]string
}

func (f *fakeAuth) Login(context.Context, string, string) (*models.AuthResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	*f.events = append(*f.events, "login")
	return f.loginResp, nil
}

func (f *fakeAuth) Register(context.Context, string, string, string) (*models.AuthResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.loginResp, nil
}

func (f *fakeAuth) Logout(context.Context) error {
	f.logouts++
	return f.logoutErr
}

func (f *fakeAuth) SetAuthToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

func (f *fakeAuth) currentToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

type fakePrefs struct {
	events  *[]string
	loadErr error
}

func (p *fakePrefs) Load(context.Context) error {
	*p.events = append(*p.events, "prefs.load")
	return p.loadErr
}

func (p *fakePrefs) Clear(context.Context) error {
	*p.events = append(*p.events, "prefs.clear")
	return nil
}

type resetCounter struct{ n int }

func (r *resetCounter) Reset() { r.n++ }

type fixture struct {
	events []string
	auth   *fakeAuth
	prefs  *fakePrefs
	store  *localstore.Memory
	docs   *resetCounter
	gate   *session.Gate
}

func newFixture(t *testing.T, token string, opts ...session.Option) *fixture {
	f := &fixture{store: localstore.NewMemory(), docs: &resetCounter{}}
	f.auth = &fakeAuth{events: &f.events, loginResp: &models.AuthResponse{Token: token, SessionID: "sess-1"}}
	f.prefs = &fakePrefs{events: &f.events}
	opts = append(opts, session.WithResetters(f.docs))
	f.gate = session.New(f.auth, f.store, f.prefs, opts...)
	return f
}

func TestLoginLoadsPreferencesBeforeReturning(t *testing.T) {
	ctx := context.Background()
	token := signToken(t, "u1", time.Now().Add(time.Hour))
	f := newFixture(t, token)
	f.prefs.loadErr = errBackend

	resp, err := f.gate.Login(ctx, "ada@example.com", "secret")
	require.NoError(t, err, "a preference fallback does not fail login")
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.Equal(t, []string{"login", "prefs.load"}, f.events)

	assert.True(t, f.gate.IsAuthenticated())
	assert.Equal(t, token, f.auth.currentToken())
	assert.Equal(t, map[string]string{
		localstore.KeyToken:     token,
		localstore.KeySessionID: "sess-1",
	}, f.store.Snapshot())

	claims, err := f.gate.Claims()
	require.NoError(t, err)
	assert.Equal(t, models.UserID("u1"), claims.UserID)
	assert.Equal(t, "u1", claims.Subject)
}

func TestLoginFailure(t *testing.T) {
	f := newFixture(t, "")
	f.auth.err = errBackend
	_, err := f.gate.Login(context.Background(), "ada@example.com", "wrong")
	require.ErrorIs(t, err, errBackend)
	assert.False(t, f.gate.IsAuthenticated())
	assert.Empty(t, f.events)
	assert.Empty(t, f.store.Snapshot())
}

func TestRegisterStaysUnauthenticated(t *testing.T) {
	token := signToken(t, "u2", time.Now().Add(time.Hour))
	f := newFixture(t, token)

	_, err := f.gate.Register(context.Background(), "Ada", "ada@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, token, f.gate.Token())
	assert.False(t, f.gate.IsAuthenticated())
	assert.Empty(t, f.auth.currentToken())
	assert.Empty(t, f.store.Snapshot())
}

func TestLogoutTearsEverythingDown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, signToken(t, "u1", time.Now().Add(time.Hour)))
	require.NoError(t, f.store.Set(ctx, localstore.KeySidebarWidth, "300"))
	_, err := f.gate.Login(ctx, "ada@example.com", "secret")
	require.NoError(t, err)

	f.auth.logoutErr = errBackend
	require.NoError(t, f.gate.Logout(ctx), "server logout is best effort")

	assert.Equal(t, 1, f.auth.logouts)
	assert.False(t, f.gate.IsAuthenticated())
	assert.Empty(t, f.gate.Token())
	assert.Empty(t, f.auth.currentToken())
	assert.Equal(t, "prefs.clear", f.events[len(f.events)-1])
	assert.Equal(t, 1, f.docs.n)
	for _, key := range localstore.SessionKeys {
		_, ok, _ := f.store.Get(ctx, key)
		assert.False(t, ok, key)
	}
}

func TestUnauthorizedHookExpiresLocally(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, signToken(t, "u1", time.Now().Add(time.Hour)))
	_, err := f.gate.Login(ctx, "ada@example.com", "secret")
	require.NoError(t, err)

	f.gate.OnUnauthorized()()
	assert.False(t, f.gate.IsAuthenticated())
	assert.Zero(t, f.auth.logouts, "no server call after a 401")
	assert.Equal(t, 1, f.docs.n)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("nothing stored", func(t *testing.T) {
		f := newFixture(t, "")
		ok, err := f.gate.Restore(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("valid token", func(t *testing.T) {
		token := signToken(t, "u1", now.Add(time.Hour))
		f := newFixture(t, "", session.WithClock(func() time.Time { return now }))
		require.NoError(t, f.store.Set(ctx, localstore.KeyToken, token))
		require.NoError(t, f.store.Set(ctx, localstore.KeySessionID, "sess-9"))

		ok, err := f.gate.Restore(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, f.gate.IsAuthenticated())
		assert.Equal(t, "sess-9", f.gate.SessionID())
		assert.Equal(t, token, f.auth.currentToken())
	})

	t.Run("expired token", func(t *testing.T) {
		token := signToken(t, "u1", now.Add(-time.Minute))
		f := newFixture(t, "", session.WithClock(func() time.Time { return now }))
		require.NoError(t, f.store.Set(ctx, localstore.KeyToken, token))

		ok, err := f.gate.Restore(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.False(t, f.gate.IsAuthenticated())
		assert.Empty(t, f.store.Snapshot())
	})

	t.Run("token expires while open", func(t *testing.T) {
		clock := now
		token := signToken(t, "u1", now.Add(time.Minute))
		f := newFixture(t, token, session.WithClock(func() time.Time { return clock }))
		_, err := f.gate.Login(ctx, "ada@example.com", "secret")
		require.NoError(t, err)
		assert.True(t, f.gate.IsAuthenticated())

		clock = now.Add(2 * time.Minute)
		assert.False(t, f.gate.IsAuthenticated())
	})
}

func TestClaimsWithoutToken(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.gate.Claims()
	assert.Error(t, err)
}

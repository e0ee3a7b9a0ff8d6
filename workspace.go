package docsync

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/mynotes/docsync/internal/metrics"
	"github.com/mynotes/docsync/pkg/document"
	"github.com/mynotes/docsync/pkg/favorite"
	"github.com/mynotes/docsync/pkg/gateway"
	"github.com/mynotes/docsync/pkg/localstore"
	"github.com/mynotes/docsync/pkg/logger"
	"github.com/mynotes/docsync/pkg/preferences"
	"github.com/mynotes/docsync/pkg/session"
	"github.com/mynotes/docsync/pkg/sidebar"
	"github.com/mynotes/docsync/pkg/space"
)

type options struct {
	store       localstore.Store
	logger      logger.Logger
	metrics     metrics.Recorder
	sidebarMode sidebar.Mode
	pushRetries uint64
}

type Option func(*options)

// WithStore sets the local fallback store. The default keeps values in memory.
func WithStore(s localstore.Store) Option {
	return func(o *options) { o.store = s }
}

func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(o *options) { o.metrics = r }
}

// WithSidebarMode chooses between a self-persisting sidebar and one backed by
// preferences. The default is sidebar.ModeSynchronized.
func WithSidebarMode(m sidebar.Mode) Option {
	return func(o *options) { o.sidebarMode = m }
}

func WithPushRetries(n uint64) Option {
	return func(o *options) { o.pushRetries = n }
}

// Workspace wires every cache of one client session to a gateway and a local
// store.
type Workspace struct {
	Gateway     gateway.Gateway
	Store       localstore.Store
	Documents   *document.Cache
	Preferences *preferences.Cache
	Favorites   *favorite.Set
	Spaces      *space.Cache
	Sidebar     *sidebar.Sidebar
	Session     *session.Gate

	logger logger.Logger
}

// New builds a workspace on gw. When gw accepts an unauthorized handler, a 401
// on any authenticated request closes the session.
func New(ctx context.Context, gw gateway.Gateway, opts ...Option) (*Workspace, error) {
	o := options{
		sidebarMode: sidebar.ModeSynchronized,
		pushRetries: preferences.DefaultPushRetries,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.store == nil {
		o.store = localstore.NewMemory()
	}
	log := logger.OrNop(o.logger)
	rec := metrics.OrNop(o.metrics)

	w := &Workspace{
		Gateway:   gw,
		Store:     o.store,
		Documents: document.New(gw, document.WithLogger(log), document.WithMetrics(rec)),
		Preferences: preferences.New(gw, o.store,
			preferences.WithLogger(log),
			preferences.WithMetrics(rec),
			preferences.WithPushRetries(o.pushRetries)),
		Favorites: favorite.New(gw, favorite.WithLogger(log), favorite.WithMetrics(rec)),
		Spaces:    space.New(gw, space.WithLogger(log), space.WithMetrics(rec)),
		logger:    log,
	}

	switch o.sidebarMode {
	case sidebar.ModeLegacy:
		sb, err := sidebar.NewLegacy(ctx, o.store, sidebar.WithLogger(log))
		if err != nil {
			return nil, err
		}
		w.Sidebar = sb
	case sidebar.ModeSynchronized:
		w.Sidebar = sidebar.NewSynchronized(w.Preferences, sidebar.WithLogger(log))
	default:
		return nil, fmt.Errorf("unknown sidebar mode %q", o.sidebarMode)
	}

	w.Session = session.New(gw, o.store, w.Preferences,
		session.WithLogger(log),
		session.WithResetters(w.Documents, w.Favorites, w.Spaces, w.Sidebar))

	if h, ok := gw.(interface{ SetUnauthorizedHandler(func()) }); ok {
		h.SetUnauthorizedHandler(w.Session.OnUnauthorized())
	}
	return w, nil
}

// Start reopens a stored session. With one, preferences are loaded from the
// backend and the workspace is bootstrapped; without one, preferences come
// from the local store.
func (w *Workspace) Start(ctx context.Context) (bool, error) {
	ok, err := w.Session.Restore(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		w.Preferences.LoadLocal(ctx)
		return false, nil
	}
	if err := w.Preferences.Load(ctx); err != nil {
		w.logger.Warn("Preferences loaded from fallback", "error", err)
	}
	return true, w.Bootstrap(ctx)
}

// Login opens a session and bootstraps the workspace.
func (w *Workspace) Login(ctx context.Context, email, password string) error {
	if _, err := w.Session.Login(ctx, email, password); err != nil {
		return err
	}
	return w.Bootstrap(ctx)
}

// Bootstrap loads spaces and favorites concurrently. Both failures are also
// recorded by their caches; the first one is returned.
func (w *Workspace) Bootstrap(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Spaces.Fetch(gctx) })
	g.Go(func() error { return w.Favorites.Fetch(gctx) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("bootstrap workspace: %w", err)
	}
	return nil
}

// Logout closes the session and empties every cache.
func (w *Workspace) Logout(ctx context.Context) error {
	return w.Session.Logout(ctx)
}

// Close waits for pending preference pushes and ends every subscription.
func (w *Workspace) Close() {
	w.Preferences.Close()
	w.Documents.Close()
	w.Favorites.Close()
	w.Spaces.Close()
	w.Sidebar.Close()
	w.Session.Close()
}

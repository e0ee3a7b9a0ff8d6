package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mynotes/docsync"
	"github.com/mynotes/docsync/internal/config"
	"github.com/mynotes/docsync/internal/metrics"
	"github.com/mynotes/docsync/pkg/gateway"
	"github.com/mynotes/docsync/pkg/localstore"
	"github.com/mynotes/docsync/pkg/logger"
	"github.com/mynotes/docsync/pkg/logger/slog"
)

const redisNamespace = "docsync"

var ErrNoSession = errors.New("no session, run docsync login first")

// App owns everything one command needs. Close releases it.
type App struct {
	config  *config.Config
	out     io.Writer
	log     logger.Logger
	logFile io.Closer
	store   localstore.Store
	metrics *metrics.Metrics
	client  *gateway.Client
	ws      *docsync.Workspace
}

// New builds the logger, local store, gateway client and workspace for cfg.
// Command output goes to out; logs go to cfg.LogFile or logOut.
func New(ctx context.Context, cfg *config.Config, out, logOut io.Writer) (*App, error) {
	log, logFile, err := newLogger(cfg, logOut)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	app := &App{config: cfg, out: out, log: log, logFile: logFile, metrics: metrics.New()}

	app.store, err = openStore(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.client = gateway.NewClient(cfg.APIURL,
		gateway.WithTimeout(cfg.HTTPTimeout),
		gateway.WithLogger(log))

	app.ws, err = docsync.New(ctx, app.client,
		docsync.WithStore(app.store),
		docsync.WithLogger(log),
		docsync.WithMetrics(app.metrics),
		docsync.WithSidebarMode(cfg.SidebarMode),
		docsync.WithPushRetries(cfg.PushRetries))
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to build workspace: %w", err)
	}
	return app, nil
}

// newLogger writes zerolog JSON lines, or slog text records with the text
// format. The closer is nil unless a log file was opened.
func newLogger(cfg *config.Config, w io.Writer) (logger.Logger, io.Closer, error) {
	if cfg.LogFormat != config.LogFormatText {
		data, err := logger.New().FromBuffer(w).FromPath(cfg.LogFile).WithLevel(cfg.LogLevel).Make()
		if err != nil {
			return nil, nil, err
		}
		if data.LogFile == nil {
			return data, nil, nil
		}
		return data, data, nil
	}

	var closer io.Closer
	if w == nil {
		w = os.Stderr
	}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o664)
		if err != nil {
			return nil, nil, err
		}
		w, closer = f, f
	}
	return slog.NewText(w, cfg.LogLevel), closer, nil
}

func openStore(ctx context.Context, cfg *config.Config) (localstore.Store, error) {
	switch cfg.LocalStore {
	case config.StoreMemory:
		return localstore.NewMemory(), nil
	case config.StoreRedis:
		s, err := localstore.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, redisNamespace)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		return s, nil
	default:
		s, err := localstore.OpenFile(cfg.StateDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open state dir: %w", err)
		}
		return s, nil
	}
}

// Close waits for pending preference pushes before releasing the store.
func (a *App) Close() {
	if a.ws != nil {
		a.ws.Close()
	}
	if c, ok := a.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			a.log.Warn("Failed to close local store", "error", err)
		}
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil {
			fmt.Fprintf(a.out, "failed to close log: %v\n", err)
		}
	}
}

// resume reopens the stored session.
func (a *App) resume(ctx context.Context) error {
	ok, err := a.ws.Start(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoSession
	}
	return nil
}

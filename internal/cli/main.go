// Package cli implements the docsync command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Main runs one docsync command with os.Stdout and os.Stderr.
//
// # Environment Variables
//
//	DOCSYNC_API_URL            - backend base URL (default: http://127.0.0.1:8080/api)
//	DOCSYNC_STATE_DIR          - directory of the file-backed local store (default: .docsync)
//	DOCSYNC_LOCAL_STORE        - file, memory or redis (default: file)
//	DOCSYNC_REDIS_ADDR         - Redis address for the redis store
//	DOCSYNC_REDIS_PASSWORD     - Redis password
//	DOCSYNC_SIDEBAR_MODE       - synchronized or legacy (default: synchronized)
//	DOCSYNC_PREF_PUSH_RETRIES  - retries of a failed preference push (default: 3)
//	DOCSYNC_HTTP_TIMEOUT       - timeout of one backend request (default: 30s)
//	DOCSYNC_LOG_LEVEL          - debug, info, warn or error (default: info)
//	DOCSYNC_LOG_FORMAT         - json (zerolog) or text (slog) (default: json)
//	DOCSYNC_LOG_FILE           - append logs to this file instead of stderr
//	DOCSYNC_BRIDGE_ADDR        - listen address of serve (default: 127.0.0.1:8090)
//
// The same keys may be set in .env.local or .env in the working directory.
// Flags win over the environment, which wins over those files.
func Main(ctx context.Context, args []string) error {
	return Run(ctx, args, os.Stdout, os.Stderr)
}

// Run is Main with explicit output streams.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd, cfg, err := Parse(args)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	app, err := New(ctx, cfg, stdout, stderr)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer app.Close()

	return app.Execute(ctx, cmd)
}

// Execute runs cmd against the app's workspace.
func (a *App) Execute(ctx context.Context, cmd Command) error {
	var err error
	switch c := cmd.(type) {
	case *LoginCommand:
		err = a.Login(ctx, c)
	case *LogoutCommand:
		err = a.Logout(ctx)
	case *OpenCommand:
		err = a.Open(ctx, c)
	case *TreeCommand:
		err = a.Tree(ctx, c)
	case *FavoritesCommand:
		err = a.Favorites(ctx, c)
	case *ServeCommand:
		err = a.Serve(ctx)
	default:
		return fmt.Errorf("unknown command type: %T", cmd)
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w", cmd.Name(), err)
	}
	return nil
}

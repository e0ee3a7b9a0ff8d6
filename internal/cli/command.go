package cli

// Command is one CLI operation with its own arguments. Settings shared by
// every command live in [config.Config].
type Command interface {
	// Name returns the sub-command name used on the command line.
	Name() string
}

// LoginCommand opens a session and keeps its token in the local store, so
// later invocations reuse it.
//
//	docsync login -email ada@example.com -password secret
type LoginCommand struct {
	Email    string
	Password string
}

func (c *LoginCommand) Name() string { return "login" }

// LogoutCommand closes the stored session and clears local state.
type LogoutCommand struct{}

func (c *LogoutCommand) Name() string { return "logout" }

// OpenCommand loads one document by slug or id and prints it. Drawing
// documents stored without valid content are repaired and saved back, the
// same as when a view opens them.
//
//	docsync open getting-started
type OpenCommand struct {
	Slug string
}

func (c *OpenCommand) Name() string { return "open" }

// TreeCommand prints the document tree of one space, or of every space when
// SpaceID is empty. Depth bounds how many levels below the roots are fetched.
//
//	docsync tree
//	docsync tree -depth 1 2f8c...
type TreeCommand struct {
	SpaceID string
	Depth   int
}

func (c *TreeCommand) Name() string { return "tree" }

const (
	FavoritesList   = "list"
	FavoritesAdd    = "add"
	FavoritesRemove = "remove"
)

// FavoritesCommand lists favorites, or adds or removes one document.
//
//	docsync favorites
//	docsync favorites add 9d1e...
type FavoritesCommand struct {
	Action     string
	DocumentID string
}

func (c *FavoritesCommand) Name() string { return "favorites" }

// ServeCommand streams workspace snapshots to views over a WebSocket until
// interrupted. It also serves Prometheus metrics on /metrics.
type ServeCommand struct{}

func (c *ServeCommand) Name() string { return "serve" }

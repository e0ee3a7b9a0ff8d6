package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/mynotes/docsync/internal/bridge"
	"github.com/mynotes/docsync/pkg/models"
)

func (a *App) Login(ctx context.Context, c *LoginCommand) error {
	if err := a.ws.Login(ctx, c.Email, c.Password); err != nil {
		return err
	}
	claims, _ := a.ws.Session.Claims()
	fmt.Fprintf(a.out, "Logged in as %s (user %s)\n", c.Email, claims.UserID)
	fmt.Fprintf(a.out, "%d spaces, %d favorites\n", len(a.ws.Spaces.Spaces()), len(a.ws.Favorites.Favorites()))
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	ok, err := a.ws.Start(ctx)
	if !ok {
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, "No session")
		return nil
	}
	if err != nil {
		a.log.Warn("Workspace bootstrap failed before logout", "error", err)
	}
	if err := a.ws.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) Open(ctx context.Context, c *OpenCommand) error {
	if err := a.resume(ctx); err != nil {
		return err
	}
	if err := a.ws.Documents.FetchBySlug(ctx, c.Slug); err != nil {
		return err
	}
	doc, ok := a.ws.Documents.Current()
	if !ok {
		return fmt.Errorf("document %q not loaded", c.Slug)
	}
	content, err := a.ws.Documents.CurrentContent()
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s (%s)\n", doc.Name, doc.Type)
	fmt.Fprintf(a.out, "id: %s\nspace: %s\n", doc.ID, doc.SpaceID)
	if doc.Slug != "" {
		fmt.Fprintf(a.out, "slug: %s\n", doc.Slug)
	}
	if a.ws.Favorites.IsFavorite(doc.ID) {
		fmt.Fprintln(a.out, "favorite: yes")
	}
	switch body := content.(type) {
	case models.CanvasContent:
		fmt.Fprintf(a.out, "elements: %d\n", body.ElementCount())
	case models.TextContent:
		if body.Text != "" {
			fmt.Fprintf(a.out, "\n%s\n", body.Text)
		}
	default:
		fmt.Fprintf(a.out, "content: %d bytes\n", len(body.Encode()))
	}
	return nil
}

func (a *App) Tree(ctx context.Context, c *TreeCommand) error {
	if err := a.resume(ctx); err != nil {
		return err
	}
	spaces := a.ws.Spaces.Spaces()
	if c.SpaceID != "" {
		sp, ok := a.ws.Spaces.Get(models.SpaceID(c.SpaceID))
		if !ok {
			return fmt.Errorf("unknown space %s", c.SpaceID)
		}
		spaces = []models.Space{sp}
	}

	for _, sp := range spaces {
		fmt.Fprintf(a.out, "%s [%s]\n", sp.Name, sp.ID)
		if err := a.ws.Documents.FetchBySpace(ctx, sp.ID, false); err != nil {
			return err
		}
		roots, _ := a.ws.Documents.DocumentsBySpace(sp.ID)
		for _, doc := range roots {
			if err := a.printNode(ctx, sp.ID, doc, 1, c.Depth); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *App) printNode(ctx context.Context, spaceID models.SpaceID, doc models.Document, level, depth int) error {
	marker := " "
	if a.ws.Favorites.IsFavorite(doc.ID) {
		marker = "*"
	}
	fmt.Fprintf(a.out, "%s%s %s (%s) [%s]\n", strings.Repeat("  ", level), marker, doc.Name, doc.Type, doc.ID)
	if level > depth {
		return nil
	}
	if err := a.ws.Documents.FetchChildren(ctx, spaceID, doc.ID); err != nil {
		return err
	}
	children, _ := a.ws.Documents.Children(doc.ID)
	for _, child := range children {
		if err := a.printNode(ctx, spaceID, child, level+1, depth); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) Favorites(ctx context.Context, c *FavoritesCommand) error {
	if err := a.resume(ctx); err != nil {
		return err
	}
	switch c.Action {
	case FavoritesAdd:
		if err := a.ws.Favorites.Add(ctx, models.DocumentID(c.DocumentID)); err != nil {
			return err
		}
	case FavoritesRemove:
		if err := a.ws.Favorites.Remove(ctx, models.DocumentID(c.DocumentID)); err != nil {
			return err
		}
	}
	for _, fav := range a.ws.Favorites.Favorites() {
		name := ""
		if fav.Document != nil {
			name = fav.Document.Name
		}
		fmt.Fprintf(a.out, "%s\t%s\n", fav.DocumentID, name)
	}
	return nil
}

// Serve streams snapshots until ctx is done. Without a stored session views
// see the signed-out state.
func (a *App) Serve(ctx context.Context) error {
	ok, err := a.ws.Start(ctx)
	if err != nil {
		a.log.Warn("Workspace bootstrap failed", "error", err)
	}
	a.log.Info("Serving workspace", "authenticated", ok, "addr", a.config.BridgeAddr)

	srv := bridge.New(a.ws,
		bridge.WithLogger(a.log),
		bridge.WithHandler("/metrics", a.metrics.Handler()))
	return srv.ListenAndServe(ctx, a.config.BridgeAddr)
}

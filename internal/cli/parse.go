package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/mynotes/docsync/internal/config"
)

const usage = `subcommand required

Usage: docsync [flags] <command> [command flags] [args]

Commands:
  login       Open a session (-email, -password)
  logout      Close the stored session
  open        Load a document by slug or id
  tree        Print the document tree of a space, or of every space (-depth)
  favorites   List favorites, or "add <id>" / "remove <id>"
  serve       Stream workspace snapshots over a WebSocket

Examples:
  docsync login -email ada@example.com -password secret
  docsync tree -depth 1
  docsync -store memory -api-url http://localhost:8080/api open getting-started
  docsync -bridge-addr 127.0.0.1:9000 serve`

// Parse splits args into the shared configuration and the command to run.
func Parse(args []string) (Command, *config.Config, error) {
	return parseWith(config.Loader{Files: config.DefaultEnvFiles}, args)
}

func parseWith(loader config.Loader, args []string) (Command, *config.Config, error) {
	cfg, rest, err := loader.Parse(args)
	if err != nil {
		return nil, nil, err
	}
	if len(rest) == 0 {
		return nil, nil, errors.New(usage)
	}
	output := loader.Output
	if output == nil {
		output = io.Discard
	}

	name, rest := rest[0], rest[1:]
	flagSet := flag.NewFlagSet("docsync "+name, flag.ContinueOnError)
	flagSet.SetOutput(output)

	var cmd Command
	switch name {
	case "login":
		c := &LoginCommand{}
		flagSet.StringVar(&c.Email, "email", "", "Account email")
		flagSet.StringVar(&c.Password, "password", "", "Account password")
		if err := flagSet.Parse(rest); err != nil {
			return nil, nil, err
		}
		if c.Email == "" || c.Password == "" {
			return nil, nil, errors.New("login requires -email and -password")
		}
		cmd = c
	case "logout":
		if err := flagSet.Parse(rest); err != nil {
			return nil, nil, err
		}
		cmd = &LogoutCommand{}
	case "open":
		if err := flagSet.Parse(rest); err != nil {
			return nil, nil, err
		}
		if flagSet.NArg() != 1 {
			return nil, nil, errors.New("open requires exactly one slug or id")
		}
		cmd = &OpenCommand{Slug: flagSet.Arg(0)}
	case "tree":
		c := &TreeCommand{}
		flagSet.IntVar(&c.Depth, "depth", 2, "Levels fetched below the root documents")
		if err := flagSet.Parse(rest); err != nil {
			return nil, nil, err
		}
		if c.Depth < 0 {
			return nil, nil, fmt.Errorf("invalid depth: %d", c.Depth)
		}
		if flagSet.NArg() > 1 {
			return nil, nil, errors.New("tree takes at most one space id")
		}
		c.SpaceID = flagSet.Arg(0)
		cmd = c
	case "favorites":
		if err := flagSet.Parse(rest); err != nil {
			return nil, nil, err
		}
		c := &FavoritesCommand{Action: FavoritesList}
		switch flagSet.NArg() {
		case 0:
		case 2:
			c.Action, c.DocumentID = flagSet.Arg(0), flagSet.Arg(1)
			if c.Action != FavoritesAdd && c.Action != FavoritesRemove {
				return nil, nil, fmt.Errorf("unknown favorites action: %s (must be add or remove)", c.Action)
			}
		default:
			return nil, nil, errors.New(`favorites takes no arguments, or "add <id>" / "remove <id>"`)
		}
		cmd = c
	case "serve":
		if err := flagSet.Parse(rest); err != nil {
			return nil, nil, err
		}
		cmd = &ServeCommand{}
	default:
		return nil, nil, fmt.Errorf("unknown command: %s\n\nValid commands: login, logout, open, tree, favorites, serve", name)
	}
	return cmd, cfg, nil
}

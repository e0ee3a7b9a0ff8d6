// Package sidebar holds the sidebar geometry: width, collapsed and hovering.
//
// A Sidebar runs in one of two modes. In legacy mode it owns width and
// collapsed and writes them to the local store itself. In synchronized mode it
// owns neither and reads and writes them through the preference cache, so the
// values follow the user across devices. Hovering is transient in both modes.
package sidebar

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/mynotes/docsync/pkg/localstore"
	"github.com/mynotes/docsync/pkg/logger"
	"github.com/mynotes/docsync/pkg/models"
	"github.com/mynotes/docsync/pkg/notify"
)

type Mode string

const (
	ModeLegacy       Mode = "legacy"
	ModeSynchronized Mode = "synchronized"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLegacy, ModeSynchronized:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown sidebar mode %q", s)
}

// Preferences is the part of the preference cache a synchronized sidebar uses.
type Preferences interface {
	UI() models.UIPreferences
	SetSidebarCollapsed(ctx context.Context, collapsed bool) error
	SetSidebarWidth(ctx context.Context, width int) error
}

type State struct {
	Collapsed bool
	Width     int
	Hovering  bool
}

type Option func(*Sidebar)

func WithLogger(l logger.Logger) Option {
	return func(s *Sidebar) { s.logger = logger.OrNop(l) }
}

type Sidebar struct {
	mode   Mode
	prefs  Preferences
	store  localstore.Store
	logger logger.Logger
	events *notify.Broadcaster[State]

	mu        sync.Mutex
	collapsed bool
	width     int
	hovering  bool
}

func newSidebar(mode Mode, opts []Option) *Sidebar {
	s := &Sidebar{mode: mode, logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.events = notify.New[State]("sidebar", notify.DefaultBuffer, s.logger)
	return s
}

// NewLegacy returns a self-persisting sidebar initialized from store. A width
// that is missing or unreadable starts at the minimum.
func NewLegacy(ctx context.Context, store localstore.Store, opts ...Option) (*Sidebar, error) {
	s := newSidebar(ModeLegacy, opts)
	s.store = store
	s.width = models.MinSidebarWidth

	v, ok, err := store.Get(ctx, localstore.KeySidebarCollapsed)
	if err != nil {
		return nil, fmt.Errorf("read sidebar state: %w", err)
	}
	s.collapsed = ok && v == "true"

	v, ok, err = store.Get(ctx, localstore.KeySidebarWidth)
	if err != nil {
		return nil, fmt.Errorf("read sidebar state: %w", err)
	}
	if ok {
		if w, err := strconv.Atoi(v); err == nil {
			s.width = models.ClampSidebarWidth(w)
		}
	}
	return s, nil
}

// NewSynchronized returns a sidebar that delegates width and collapsed to prefs.
func NewSynchronized(prefs Preferences, opts ...Option) *Sidebar {
	s := newSidebar(ModeSynchronized, opts)
	s.prefs = prefs
	return s
}

func (s *Sidebar) Mode() Mode { return s.mode }

func (s *Sidebar) Subscribe() (<-chan State, func()) {
	return s.events.Subscribe()
}

func (s *Sidebar) Close() {
	s.events.Close()
}

func (s *Sidebar) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Sidebar) stateLocked() State {
	if s.mode == ModeSynchronized {
		ui := s.prefs.UI()
		return State{Collapsed: ui.SidebarCollapsed, Width: ui.SidebarWidth, Hovering: s.hovering}
	}
	return State{Collapsed: s.collapsed, Width: s.width, Hovering: s.hovering}
}

func (s *Sidebar) IsCollapsed() bool { return s.State().Collapsed }

func (s *Sidebar) Width() int { return s.State().Width }

// ToggleCollapse flips the collapsed flag and persists it.
func (s *Sidebar) ToggleCollapse(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	collapsed := !s.stateLocked().Collapsed
	if s.mode == ModeSynchronized {
		if err := s.prefs.SetSidebarCollapsed(ctx, collapsed); err != nil {
			return err
		}
	} else {
		s.collapsed = collapsed
		if err := s.store.Set(ctx, localstore.KeySidebarCollapsed, strconv.FormatBool(collapsed)); err != nil {
			return fmt.Errorf("store sidebar state: %w", err)
		}
	}
	s.events.Publish(s.stateLocked())
	return nil
}

// SetWidth sets the width, clamped to the allowed range, and persists it.
func (s *Sidebar) SetWidth(ctx context.Context, width int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	width = models.ClampSidebarWidth(width)
	if s.mode == ModeSynchronized {
		if err := s.prefs.SetSidebarWidth(ctx, width); err != nil {
			return err
		}
	} else {
		s.width = width
		if err := s.store.Set(ctx, localstore.KeySidebarWidth, strconv.Itoa(width)); err != nil {
			return fmt.Errorf("store sidebar state: %w", err)
		}
	}
	s.events.Publish(s.stateLocked())
	return nil
}

// SetHovering records whether the pointer is over a collapsed sidebar. It is
// never persisted.
func (s *Sidebar) SetHovering(hovering bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hovering == hovering {
		return
	}
	s.hovering = hovering
	s.events.Publish(s.stateLocked())
}

// Reset forgets the previous user's geometry. A legacy sidebar returns to its
// startup defaults; the store is left to the preference cache, which owns the
// same keys.
func (s *Sidebar) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeLegacy {
		s.collapsed = false
		s.width = models.MinSidebarWidth
	}
	s.hovering = false
	s.events.Publish(s.stateLocked())
}

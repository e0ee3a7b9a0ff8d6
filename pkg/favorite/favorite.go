// Package favorite holds the user's favorite documents.
//
// The backend decides membership and order: every mutation replaces the whole
// list with the one it returns. Nothing is inserted or removed locally ahead
// of the response.
package favorite

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/mynotes/docsync/internal/metrics"
	"github.com/mynotes/docsync/pkg/gateway"
	"github.com/mynotes/docsync/pkg/logger"
	"github.com/mynotes/docsync/pkg/models"
	"github.com/mynotes/docsync/pkg/notify"
)

const cacheName = "favorite"

type Snapshot struct {
	Favorites []models.Favorite
	Loading   bool
	Err       string
}

type Option func(*Set)

func WithLogger(l logger.Logger) Option {
	return func(s *Set) { s.logger = logger.OrNop(l) }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *Set) { s.metrics = metrics.OrNop(r) }
}

func WithSubscriberBuffer(n int) Option {
	return func(s *Set) { s.buffer = n }
}

// Set is the favorite set of the signed-in user.
type Set struct {
	api     gateway.FavoriteAPI
	logger  logger.Logger
	metrics metrics.Recorder
	buffer  int
	events  *notify.Broadcaster[Snapshot]

	mu        sync.Mutex
	gen       uint64
	favorites models.FavoriteList
	loading   int
	err       error
}

func New(api gateway.FavoriteAPI, opts ...Option) *Set {
	s := &Set{
		api:     api,
		logger:  logger.Nop(),
		metrics: metrics.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.events = notify.New[Snapshot](cacheName, s.buffer, s.logger)
	return s
}

func (s *Set) Subscribe() (<-chan Snapshot, func()) {
	return s.events.Subscribe()
}

func (s *Set) Close() {
	s.events.Close()
}

// Favorites returns the list in server order.
func (s *Set) Favorites() []models.Favorite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.favorites)
}

// IsFavorite reports whether documentID is in the set.
func (s *Set) IsFavorite(documentID models.DocumentID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.favorites.Contains(documentID)
}

func (s *Set) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading > 0
}

// Err returns the failure of the last Fetch, or nil.
func (s *Set) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Snapshot returns the current state.
func (s *Set) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Set) snapshotLocked() Snapshot {
	snap := Snapshot{Favorites: slices.Clone(s.favorites), Loading: s.loading > 0}
	if s.err != nil {
		snap.Err = s.err.Error()
	}
	return snap
}

func (s *Set) publishLocked() {
	s.events.Publish(s.snapshotLocked())
}

// Fetch loads the list. On failure the previous list is kept and the error is
// recorded and returned.
func (s *Set) Fetch(ctx context.Context) error {
	s.mu.Lock()
	gen := s.gen
	s.loading++
	s.err = nil
	s.publishLocked()
	s.mu.Unlock()

	start := time.Now()
	favs, err := s.api.ListFavorites(ctx)
	s.metrics.Observe(cacheName, "fetch", time.Since(start), err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return err
	}
	s.loading--
	defer s.publishLocked()
	if err != nil {
		s.err = fmt.Errorf("fetch favorites: %w", err)
		s.logger.Error("Failed to fetch favorites", "error", err)
		return s.err
	}
	s.favorites = nonNil(favs)
	s.logger.Debug("Fetched favorites", "count", len(favs))
	return nil
}

// Add marks documentID as a favorite. Failures are returned and change nothing.
func (s *Set) Add(ctx context.Context, documentID models.DocumentID) error {
	if err := models.RequireID("add-favorite", "document_id", documentID); err != nil {
		return err
	}
	return s.mutate(ctx, "add", documentID, s.api.AddFavorite)
}

// Remove unmarks documentID. Failures are returned and change nothing.
func (s *Set) Remove(ctx context.Context, documentID models.DocumentID) error {
	if err := models.RequireID("remove-favorite", "document_id", documentID); err != nil {
		return err
	}
	return s.mutate(ctx, "remove", documentID, s.api.RemoveFavorite)
}

func (s *Set) mutate(
	ctx context.Context,
	op string,
	documentID models.DocumentID,
	call func(context.Context, models.DocumentID) (models.FavoriteList, error),
) error {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	start := time.Now()
	favs, err := call(ctx, documentID)
	s.metrics.Observe(cacheName, op, time.Since(start), err)
	if err != nil {
		s.logger.Error("Failed to change favorites", "op", op, "document_id", documentID, "error", err)
		return fmt.Errorf("%s favorite %s: %w", op, documentID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.gen {
		s.favorites = nonNil(favs)
		s.publishLocked()
	}
	return nil
}

// Reset empties the set. Responses to earlier requests are discarded.
func (s *Set) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.favorites = models.FavoriteList{}
	s.loading = 0
	s.err = nil
	s.publishLocked()
}

func nonNil(l models.FavoriteList) models.FavoriteList {
	if l == nil {
		return models.FavoriteList{}
	}
	return l
}

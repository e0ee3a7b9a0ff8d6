// Package space caches the spaces visible to the signed-in user.
package space

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

const cacheName = "space"

type Snapshot struct {
	Spaces  []models.Space
	Loading bool
	Err     string
}

type Option func(*Cache)

func WithLogger(l logger.Logger) Option {
	return func(c *Cache) { c.logger = logger.OrNop(l) }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(c *Cache) { c.metrics = metrics.OrNop(r) }
}

type Cache struct {
	api     gateway.SpaceAPI
	logger  logger.Logger
	metrics metrics.Recorder
	events  *notify.Broadcaster[Snapshot]

	mu      sync.Mutex
	gen     uint64
	spaces  []models.Space
	loading int
	err     error
}

func New(api gateway.SpaceAPI, opts ...Option) *Cache {
	c := &Cache{
		api:     api,
		logger:  logger.Nop(),
		metrics: metrics.Nop(),
		spaces:  []models.Space{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.events = notify.New[Snapshot](cacheName, notify.DefaultBuffer, c.logger)
	return c
}

func (c *Cache) Subscribe() (<-chan Snapshot, func()) {
	return c.events.Subscribe()
}

func (c *Cache) Close() {
	c.events.Close()
}

func (c *Cache) Spaces() []models.Space {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.spaces)
}

// Get returns the cached space with the given id.
func (c *Cache) Get(id models.SpaceID) (models.Space, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := slices.IndexFunc(c.spaces, func(s models.Space) bool { return s.ID == id })
	if i < 0 {
		return models.Space{}, false
	}
	return c.spaces[i], true
}

func (c *Cache) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading > 0
}

func (c *Cache) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Snapshot returns the current state.
func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Cache) snapshotLocked() Snapshot {
	s := Snapshot{Spaces: slices.Clone(c.spaces), Loading: c.loading > 0}
	if c.err != nil {
		s.Err = c.err.Error()
	}
	return s
}

func (c *Cache) publishLocked() {
	c.events.Publish(c.snapshotLocked())
}

// Fetch loads the space list. On failure the previous list is kept and the
// error is recorded and returned.
func (c *Cache) Fetch(ctx context.Context) error {
	c.mu.Lock()
	gen := c.gen
	c.loading++
	c.err = nil
	c.publishLocked()
	c.mu.Unlock()

	start := time.Now()
	spaces, err := c.api.ListSpaces(ctx)
	c.metrics.Observe(cacheName, "fetch", time.Since(start), err)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return err
	}
	c.loading--
	defer c.publishLocked()
	if err != nil {
		c.err = fmt.Errorf("fetch spaces: %w", err)
		c.logger.Error("Failed to fetch spaces", "error", err)
		return c.err
	}
	c.spaces = slices.Clone(spaces)
	if c.spaces == nil {
		c.spaces = []models.Space{}
	}
	c.logger.Debug("Fetched spaces", "count", len(spaces))
	return nil
}

// Create creates a space and appends it to the list. Failures are returned
// and change nothing.
func (c *Cache) Create(ctx context.Context, params models.CreateSpaceParams) (models.Space, error) {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	start := time.Now()
	created, err := c.api.CreateSpace(ctx, params)
	c.metrics.Observe(cacheName, "create", time.Since(start), err)
	if err != nil {
		c.logger.Error("Failed to create space", "name", params.Name, "error", err)
		return models.Space{}, fmt.Errorf("create space: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.gen {
		c.spaces = append(slices.Clone(c.spaces), *created)
		c.publishLocked()
	}
	return *created, nil
}

// Reset empties the list. Responses to earlier requests are discarded.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.spaces = []models.Space{}
	c.loading = 0
	c.err = nil
	c.publishLocked()
}

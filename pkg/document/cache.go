// Package document implements the document cache: the open document, the
// per-space and per-parent listings and the has-children index.
//
// The cache is safe for concurrent use. Its lock is never held across a
// gateway call; every continuation re-checks the state it is about to change.
// Two updates of the same document in flight resolve in arrival order: the
// last response wins.
package document

import (
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

const cacheName = "document"

// Snapshot is an immutable view of the cache handed to subscribers.
type Snapshot struct {
	State         State
	Current       *models.Document
	BySpace       map[models.SpaceID][]models.Document
	ByParent      map[models.DocumentID][]models.Document
	WithChildren  []models.DocumentID
	LoadingSpaces []models.SpaceID
	Libraries     []string
	Err           string
}

type Option func(*Cache)

func WithLogger(l logger.Logger) Option {
	return func(c *Cache) { c.logger = logger.OrNop(l) }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(c *Cache) { c.metrics = metrics.OrNop(r) }
}

// WithSubscriberBuffer sets the channel capacity of each subscriber.
func WithSubscriberBuffer(n int) Option {
	return func(c *Cache) { c.buffer = n }
}

type Cache struct {
	api     gateway.DocumentAPI
	logger  logger.Logger
	metrics metrics.Recorder
	buffer  int
	events  *notify.Broadcaster[Snapshot]

	mu           sync.Mutex
	gen          uint64
	slot         *slot
	current      *models.Document
	latest       string
	inflight     int
	bySpace      map[models.SpaceID][]models.Document
	byParent     map[models.DocumentID][]models.Document
	withChildren map[models.DocumentID]struct{}
	loading      map[models.SpaceID]int
	libraries    []string
	err          error
}

func New(api gateway.DocumentAPI, opts ...Option) *Cache {
	c := &Cache{
		api:     api,
		logger:  logger.Nop(),
		metrics: metrics.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.events = notify.New[Snapshot](cacheName, c.buffer, c.logger)
	c.resetLocked()
	return c
}

func (c *Cache) resetLocked() {
	c.gen++
	c.slot = newSlot()
	c.current = nil
	c.latest = ""
	c.bySpace = make(map[models.SpaceID][]models.Document)
	c.byParent = make(map[models.DocumentID][]models.Document)
	c.withChildren = make(map[models.DocumentID]struct{})
	c.loading = make(map[models.SpaceID]int)
	c.libraries = nil
	c.err = nil
}

// Subscribe returns a channel of snapshots published after every change.
func (c *Cache) Subscribe() (<-chan Snapshot, func()) {
	return c.events.Subscribe()
}

// Close ends every subscription.
func (c *Cache) Close() {
	c.events.Close()
}

// Current returns the open document.
func (c *Cache) Current() (models.Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return models.Document{}, false
	}
	return *c.current, true
}

// CurrentContent returns the typed content of the open document.
func (c *Cache) CurrentContent() (models.Content, error) {
	doc, ok := c.Current()
	if !ok {
		return nil, fmt.Errorf("no open document")
	}
	return doc.Body()
}

func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slot.state()
}

// Loading reports whether a document fetch is in flight.
func (c *Cache) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight > 0
}

// Err returns the last read failure, or nil.
func (c *Cache) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// DocumentsBySpace returns the cached top-level listing of a space.
func (c *Cache) DocumentsBySpace(spaceID models.SpaceID) ([]models.Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	docs, ok := c.bySpace[spaceID]
	return slices.Clone(docs), ok
}

// Children returns the cached children of a document.
func (c *Cache) Children(parentID models.DocumentID) ([]models.Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	docs, ok := c.byParent[parentID]
	return slices.Clone(docs), ok
}

// HasChildren reports whether a document has cached children.
func (c *Cache) HasChildren(id models.DocumentID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.withChildren[id]
	return ok
}

// IsSpaceLoading reports whether a listing fetch for spaceID is in flight.
func (c *Cache) IsSpaceLoading(spaceID models.SpaceID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading[spaceID] > 0
}

// LoadingSpaces returns the spaces with a listing fetch in flight.
func (c *Cache) LoadingSpaces() []models.SpaceID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedKeys(c.loading)
}

func (c *Cache) CanvasLibraries() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.libraries)
}

// Snapshot returns the current state.
func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Cache) snapshotLocked() Snapshot {
	s := Snapshot{
		State:         c.slot.state(),
		BySpace:       make(map[models.SpaceID][]models.Document, len(c.bySpace)),
		ByParent:      make(map[models.DocumentID][]models.Document, len(c.byParent)),
		WithChildren:  sortedKeys(c.withChildren),
		LoadingSpaces: sortedKeys(c.loading),
		Libraries:     slices.Clone(c.libraries),
	}
	if c.current != nil {
		doc := *c.current
		s.Current = &doc
	}
	for k, v := range c.bySpace {
		s.BySpace[k] = slices.Clone(v)
	}
	for k, v := range c.byParent {
		s.ByParent[k] = slices.Clone(v)
	}
	if c.err != nil {
		s.Err = c.err.Error()
	}
	return s
}

// publishLocked must be called with c.mu held so snapshots go out in order.
func (c *Cache) publishLocked() {
	c.events.Publish(c.snapshotLocked())
}

// Clear closes the open document. A fetch still in flight for it is ignored
// when it lands.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
	c.latest = ""
	if err := c.slot.fire(eventClear); err != nil {
		c.logger.Error("Failed to clear document slot", "error", err)
	}
	c.publishLocked()
}

// Reset drops every index and the open document. Responses to requests
// issued before Reset are discarded.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	c.publishLocked()
}

func (c *Cache) observe(op string, start time.Time, err error) {
	c.metrics.Observe(cacheName, op, time.Since(start), err)
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

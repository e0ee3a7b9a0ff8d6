// Package preferences holds the per-user UI preference record.
//
// The record is local-first and remote-eventual: a change is applied in memory
// and mirrored to the local store before the setter returns, then pushed to
// the backend on a detached goroutine. A push that keeps failing is retried a
// bounded number of times, then logged and dropped; the local change stays.
package preferences

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/cenkalti/backoff"
	"github.com/goccy/go-json"

	"github.com/mynotes/docsync/internal/metrics"
	"github.com/mynotes/docsync/pkg/gateway"
	"github.com/mynotes/docsync/pkg/localstore"
	"github.com/mynotes/docsync/pkg/logger"
	"github.com/mynotes/docsync/pkg/models"
	"github.com/mynotes/docsync/pkg/notify"
)

const cacheName = "preferences"

// DefaultPushRetries is how many times a failed push is retried.
const DefaultPushRetries = 3

// Source tells where the in-memory record last came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceRemote  Source = "remote"
	SourceLocal   Source = "local"
)

var errSuperseded = errors.New("superseded by a newer push")

type Snapshot struct {
	UI     models.UIPreferences
	Source Source
	Err    string
}

type Option func(*Cache)

func WithLogger(l logger.Logger) Option {
	return func(c *Cache) { c.logger = logger.OrNop(l) }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(c *Cache) { c.metrics = metrics.OrNop(r) }
}

// WithPushRetries bounds the retries of one remote push.
func WithPushRetries(n uint64) Option {
	return func(c *Cache) { c.retries = n }
}

// WithBackOff sets the policy between push attempts. The retry bound is
// applied on top of it.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Cache) { c.newBackOff = fn }
}

func WithSubscriberBuffer(n int) Option {
	return func(c *Cache) { c.buffer = n }
}

type Cache struct {
	api        gateway.PreferenceAPI
	store      localstore.Store
	logger     logger.Logger
	metrics    metrics.Recorder
	retries    uint64
	newBackOff func() backoff.BackOff
	buffer     int
	events     *notify.Broadcaster[Snapshot]

	mu         sync.Mutex
	ui         models.UIPreferences
	source     Source
	err        error
	pushCtx    context.Context
	cancelPush context.CancelFunc
	pushSeq    uint64
	gen        uint64

	wg sync.WaitGroup
}

func New(api gateway.PreferenceAPI, store localstore.Store, opts ...Option) *Cache {
	c := &Cache{
		api:     api,
		store:   store,
		logger:  logger.Nop(),
		metrics: metrics.Nop(),
		retries: DefaultPushRetries,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		ui:     models.DefaultUIPreferences(),
		source: SourceDefault,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.events = notify.New[Snapshot](cacheName, c.buffer, c.logger)
	c.pushCtx, c.cancelPush = context.WithCancel(context.Background())
	return c
}

func (c *Cache) Subscribe() (<-chan Snapshot, func()) {
	return c.events.Subscribe()
}

// UI returns a copy of the current record.
func (c *Cache) UI() models.UIPreferences {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ui.Clone()
}

func (c *Cache) Source() Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

// Err returns the failure of the last Load, or nil.
func (c *Cache) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Cache) IsSpaceExpanded(id models.SpaceID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Contains(c.ui.ExpandedSpaces, id)
}

func (c *Cache) IsDocumentExpanded(id models.DocumentID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Contains(c.ui.ExpandedDocuments, id)
}

// Snapshot returns the current state.
func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Cache) snapshotLocked() Snapshot {
	s := Snapshot{UI: c.ui.Clone(), Source: c.source}
	if c.err != nil {
		s.Err = c.err.Error()
	}
	return s
}

func (c *Cache) publishLocked() {
	c.events.Publish(c.snapshotLocked())
}

// Load reads the record from the backend.
//
// Fields present in the response replace the in-memory ones; missing fields
// keep their current value. The merged record is then written to the local
// store. When the backend cannot be read the record is rebuilt from the local
// store over the built-in defaults instead, and the remote error is recorded
// and returned.
//
// A Load that overlaps a Clear drops its result and returns nil.
func (c *Cache) Load(ctx context.Context) error {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	prefs, err := c.api.GetPreferences(ctx)
	if err != nil {
		c.logger.Error("Failed to fetch preferences, using local copy", "error", err)
		ui := c.readLocal(ctx)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen != gen {
			c.logger.Debug("Dropping preferences loaded before a clear")
			return nil
		}
		c.ui = ui
		c.source = SourceLocal
		c.err = fmt.Errorf("fetch preferences: %w", err)
		c.publishLocked()
		return c.err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		c.logger.Debug("Dropping preferences loaded before a clear")
		return nil
	}
	if prefs != nil && prefs.UI != nil {
		c.ui = c.ui.Merge(prefs.UI)
	}
	c.source = SourceRemote
	c.err = nil
	if err := c.writeLocalLocked(ctx); err != nil {
		c.logger.Warn("Failed to mirror preferences locally", "error", err)
	}
	c.publishLocked()
	c.logger.Debug("Loaded preferences", "sidebar_width", c.ui.SidebarWidth)
	return nil
}

// LoadLocal rebuilds the record from the local store alone.
func (c *Cache) LoadLocal(ctx context.Context) {
	ui := c.readLocal(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ui = ui
	c.source = SourceLocal
	c.publishLocked()
}

func (c *Cache) SetSidebarWidth(ctx context.Context, width int) error {
	return c.update(ctx, func(ui *models.UIPreferences) {
		ui.SidebarWidth = models.ClampSidebarWidth(width)
	})
}

func (c *Cache) SetSidebarCollapsed(ctx context.Context, collapsed bool) error {
	return c.update(ctx, func(ui *models.UIPreferences) {
		ui.SidebarCollapsed = collapsed
	})
}

func (c *Cache) SetExpandedSpaces(ctx context.Context, ids []models.SpaceID) error {
	return c.update(ctx, func(ui *models.UIPreferences) {
		ui.ExpandedSpaces = slices.Clone(ids)
	})
}

func (c *Cache) SetExpandedDocuments(ctx context.Context, ids []models.DocumentID) error {
	return c.update(ctx, func(ui *models.UIPreferences) {
		ui.ExpandedDocuments = slices.Clone(ids)
	})
}

// ToggleExpandedSpace adds id to the expanded spaces, or removes it.
func (c *Cache) ToggleExpandedSpace(ctx context.Context, id models.SpaceID) error {
	return c.update(ctx, func(ui *models.UIPreferences) {
		ui.ExpandedSpaces = toggle(ui.ExpandedSpaces, id)
	})
}

// ToggleExpandedDocument adds id to the expanded documents, or removes it.
func (c *Cache) ToggleExpandedDocument(ctx context.Context, id models.DocumentID) error {
	return c.update(ctx, func(ui *models.UIPreferences) {
		ui.ExpandedDocuments = toggle(ui.ExpandedDocuments, id)
	})
}

func toggle[T comparable](set []T, v T) []T {
	if i := slices.Index(set, v); i >= 0 {
		return slices.Delete(slices.Clone(set), i, i+1)
	}
	return append(slices.Clone(set), v)
}

// update applies fn, mirrors the whole record to the local store and starts a
// push. Only a local store failure is returned.
func (c *Cache) update(ctx context.Context, fn func(*models.UIPreferences)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ui := c.ui.Clone()
	fn(&ui)
	c.ui = ui
	c.publishLocked()

	if err := c.writeLocalLocked(ctx); err != nil {
		return fmt.Errorf("store preferences locally: %w", err)
	}
	c.pushSeq++
	c.startPushLocked(c.pushSeq, ui.Wire())
	return nil
}

// Clear resets the record to the defaults and deletes its local keys. Pushes
// still running are abandoned.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelPush()
	c.pushCtx, c.cancelPush = context.WithCancel(context.Background())
	c.pushSeq++
	c.gen++

	c.ui = models.DefaultUIPreferences()
	c.source = SourceDefault
	c.err = nil
	c.publishLocked()

	if err := c.store.Delete(ctx, localstore.PreferenceKeys...); err != nil {
		return fmt.Errorf("delete local preferences: %w", err)
	}
	return nil
}

// Wait blocks until every push started so far has finished.
func (c *Cache) Wait() {
	c.wg.Wait()
}

// Close abandons running pushes, waits for them and ends every subscription.
func (c *Cache) Close() {
	c.mu.Lock()
	c.cancelPush()
	c.mu.Unlock()
	c.wg.Wait()
	c.events.Close()
}

func (c *Cache) writeLocalLocked(ctx context.Context) error {
	spaces, err := json.Marshal(c.ui.ExpandedSpaces)
	if err != nil {
		return err
	}
	docs, err := json.Marshal(c.ui.ExpandedDocuments)
	if err != nil {
		return err
	}
	values := [][2]string{
		{localstore.KeyExpandedSpaces, string(spaces)},
		{localstore.KeyExpandedDocuments, string(docs)},
		{localstore.KeySidebarCollapsed, strconv.FormatBool(c.ui.SidebarCollapsed)},
		{localstore.KeySidebarWidth, strconv.Itoa(c.ui.SidebarWidth)},
	}
	for _, kv := range values {
		if err := c.store.Set(ctx, kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}

// readLocal builds a record from the defaults and whatever the local store
// holds. Values that cannot be read are skipped.
func (c *Cache) readLocal(ctx context.Context) models.UIPreferences {
	ui := models.DefaultUIPreferences()
	get := func(key string) (string, bool) {
		v, ok, err := c.store.Get(ctx, key)
		if err != nil {
			c.logger.Warn("Failed to read local preference", "key", key, "error", err)
			return "", false
		}
		return v, ok
	}

	if v, ok := get(localstore.KeyExpandedSpaces); ok {
		var ids []models.SpaceID
		if err := json.Unmarshal([]byte(v), &ids); err != nil {
			c.logger.Warn("Ignoring malformed local preference", "key", localstore.KeyExpandedSpaces, "error", err)
		} else if ids != nil {
			ui.ExpandedSpaces = ids
		}
	}
	if v, ok := get(localstore.KeyExpandedDocuments); ok {
		var ids []models.DocumentID
		if err := json.Unmarshal([]byte(v), &ids); err != nil {
			c.logger.Warn("Ignoring malformed local preference", "key", localstore.KeyExpandedDocuments, "error", err)
		} else if ids != nil {
			ui.ExpandedDocuments = ids
		}
	}
	if v, ok := get(localstore.KeySidebarCollapsed); ok {
		ui.SidebarCollapsed = v == "true"
	}
	if v, ok := get(localstore.KeySidebarWidth); ok {
		if w, err := strconv.Atoi(v); err == nil && w > 0 {
			ui.SidebarWidth = models.ClampSidebarWidth(w)
		}
	}
	return ui
}

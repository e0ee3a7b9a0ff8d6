package document

import (
	"context"
	"fmt"
	"time"

	"github.com/mynotes/docsync/pkg/models"
)

// FetchBySlug loads the document with the given slug as the open document.
//
// The response replaces the open document with a new value after its content
// has been normalized for its type. When a drawing had no content the
// synthesized default is written back with Update; a failure of that write is
// recorded and returned while the document stays open.
//
// On failure the error is recorded, the previous open document is kept and the
// error is returned. A response for a key other than the one most recently
// requested is dropped.
func (c *Cache) FetchBySlug(ctx context.Context, slug string) error {
	if err := models.RequireID("fetch-document", "slug", slug); err != nil {
		return err
	}
	return c.fetchCurrent(ctx, "fetch_by_slug", slug)
}

// FetchByID loads the document with the given id as the open document. The
// slug route resolves ids as well; normalization is the same as FetchBySlug.
func (c *Cache) FetchByID(ctx context.Context, id models.DocumentID) error {
	if err := models.RequireID("fetch-document", "id", id); err != nil {
		return err
	}
	return c.fetchCurrent(ctx, "fetch_by_id", id.String())
}

func (c *Cache) fetchCurrent(ctx context.Context, op, key string) error {
	c.mu.Lock()
	gen := c.gen
	c.latest = key
	c.inflight++
	c.err = nil
	if err := c.slot.fire(eventFetch); err != nil {
		c.logger.Error("Failed to enter loading state", "error", err)
	}
	c.publishLocked()
	c.mu.Unlock()

	start := time.Now()
	doc, err := c.api.GetDocumentBySlug(ctx, key)
	c.observe(op, start, err)

	c.mu.Lock()
	c.inflight--
	if gen != c.gen || key != c.latest {
		c.mu.Unlock()
		c.logger.Debug("Dropping stale document response", "key", key)
		return err
	}
	if err != nil {
		c.err = fmt.Errorf("fetch document %q: %w", key, err)
		if c.inflight == 0 {
			if ferr := c.slot.fire(eventFail); ferr != nil {
				c.logger.Error("Failed to enter error state", "error", ferr)
			}
		}
		c.publishLocked()
		c.mu.Unlock()
		c.logger.Error("Failed to fetch document", "key", key, "error", err)
		return c.Err()
	}

	norm := models.NormalizeContent(doc.Type, doc.Content)
	for _, r := range norm.Repairs {
		c.logger.Warn("Repaired malformed canvas content", "document_id", doc.ID, "field", r.Field, "reason", r.Reason)
		c.metrics.CanvasRepaired(r.Field)
	}
	opened := doc.WithContent(models.Ptr(norm.Encoded))
	c.current = &opened
	if err := c.slot.fire(eventLoaded); err != nil {
		c.logger.Error("Failed to enter loaded state", "error", err)
	}
	c.publishLocked()
	c.mu.Unlock()
	c.logger.Debug("Fetched document", "document_id", doc.ID, "type", doc.Type)

	if !norm.Synthesized {
		return nil
	}

	c.metrics.CanvasRepaired("synthesized")
	c.logger.Info("Initialized empty canvas content", "document_id", doc.ID)
	_, err = c.Update(ctx, models.DocumentPatch{
		ID:      doc.ID,
		Name:    models.Ptr(doc.Name),
		SpaceID: doc.SpaceID,
		Content: models.Ptr(norm.Encoded),
		Config:  models.Ptr(doc.Config),
	})
	if err != nil {
		c.mu.Lock()
		c.err = fmt.Errorf("persist initialized canvas of %s: %w", doc.ID, err)
		c.publishLocked()
		c.mu.Unlock()
		return c.Err()
	}
	return nil
}

// FetchBySpace loads the top-level documents of a space. It does nothing for
// an empty id, or when the space is already cached and force is false.
//
// While the request is outstanding the space is reported by IsSpaceLoading, so
// callers can avoid issuing a duplicate; the cache itself does not merge
// concurrent requests. On success the listing is replaced as a whole, without
// content. On failure the previous listing is kept, and the error is recorded
// and returned.
func (c *Cache) FetchBySpace(ctx context.Context, spaceID models.SpaceID, force bool) error {
	if spaceID.IsZero() {
		return nil
	}

	c.mu.Lock()
	if _, ok := c.bySpace[spaceID]; ok && !force {
		c.mu.Unlock()
		return nil
	}
	gen := c.gen
	c.loading[spaceID]++
	c.publishLocked()
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen != gen {
			return
		}
		if c.loading[spaceID] <= 1 {
			delete(c.loading, spaceID)
		} else {
			c.loading[spaceID]--
		}
		c.publishLocked()
	}()

	start := time.Now()
	docs, err := c.api.ListDocumentsBySpace(ctx, spaceID)
	c.observe("fetch_by_space", start, err)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return err
	}
	if err != nil {
		c.err = fmt.Errorf("fetch documents of space %s: %w", spaceID, err)
		c.logger.Error("Failed to fetch documents", "space_id", spaceID, "error", err)
		return c.err
	}
	c.bySpace[spaceID] = listing(docs)
	c.logger.Debug("Fetched documents", "space_id", spaceID, "count", len(docs))
	return nil
}

// FetchChildren loads the children of a document. Both ids are required.
//
// The child listing and the has-children index are written together: a
// non-empty listing marks the parent as having children, an empty one clears
// the mark.
func (c *Cache) FetchChildren(ctx context.Context, spaceID models.SpaceID, parentID models.DocumentID) error {
	if err := models.RequireID("fetch-children", "space_id", spaceID); err != nil {
		return err
	}
	if err := models.RequireID("fetch-children", "document_id", parentID); err != nil {
		return err
	}

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	start := time.Now()
	docs, err := c.api.ListChildDocuments(ctx, spaceID, parentID)
	c.observe("fetch_children", start, err)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return err
	}
	if err != nil {
		c.err = fmt.Errorf("fetch children of %s: %w", parentID, err)
		c.logger.Error("Failed to fetch child documents", "space_id", spaceID, "document_id", parentID, "error", err)
		c.publishLocked()
		return c.err
	}
	c.setChildrenLocked(parentID, listing(docs))
	c.publishLocked()
	return nil
}

// setChildrenLocked is the only writer of byParent and withChildren.
func (c *Cache) setChildrenLocked(parentID models.DocumentID, docs []models.Document) {
	c.byParent[parentID] = docs
	if len(docs) > 0 {
		c.withChildren[parentID] = struct{}{}
	} else {
		delete(c.withChildren, parentID)
	}
}

// ListCanvasLibraries fetches the drawing library URLs offered to editors.
// Failures are returned, not recorded.
func (c *Cache) ListCanvasLibraries(ctx context.Context) ([]string, error) {
	start := time.Now()
	libs, err := c.api.ListCanvasLibraries(ctx)
	c.observe("list_canvas_libraries", start, err)
	if err != nil {
		c.logger.Error("Failed to fetch canvas libraries", "error", err)
		return nil, fmt.Errorf("fetch canvas libraries: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.libraries = libs
	c.publishLocked()
	return append([]string(nil), libs...), nil
}

// listing strips content from server documents.
func listing(docs []models.Document) []models.Document {
	out := make([]models.Document, len(docs))
	for i, d := range docs {
		out[i] = d.WithoutContent()
	}
	return out
}

package document

import (
	"context"
	"fmt"
	"time"

	"github.com/mynotes/docsync/pkg/models"
)

// Create creates a document and returns it as the server assigned it.
//
// Drawing content is normalized before sending, so absent content goes out as
// the default canvas. The new document is appended to the cached listing it
// belongs in (its parent's children, or its space's top level); listings that
// are not cached are left alone. Failures are returned and change nothing.
func (c *Cache) Create(ctx context.Context, params models.CreateDocumentParams) (models.Document, error) {
	if err := models.RequireID("create-document", "space_id", params.SpaceID); err != nil {
		return models.Document{}, err
	}
	if params.Type == models.TypeDrawing {
		params.Content = models.Ptr(models.NormalizeContent(models.TypeDrawing, params.Content).Encoded)
	}

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	start := time.Now()
	created, err := c.api.CreateDocument(ctx, params)
	c.observe("create", start, err)
	if err != nil {
		c.logger.Error("Failed to create document", "space_id", params.SpaceID, "error", err)
		return models.Document{}, fmt.Errorf("create document: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.gen {
		entry := created.WithoutContent()
		if !created.ParentID.IsZero() {
			if children, ok := c.byParent[created.ParentID]; ok {
				c.setChildrenLocked(created.ParentID, appendCopy(children, entry))
			}
		} else if docs, ok := c.bySpace[created.SpaceID]; ok {
			c.bySpace[created.SpaceID] = appendCopy(docs, entry)
		}
		c.publishLocked()
	}
	c.logger.Debug("Created document", "document_id", created.ID, "type", created.Type)
	return *created, nil
}

// Update sends a partial update and merges the response into the cache.
//
// Only the fields set in patch are sent; SpaceID defaults to the open
// document's space. Listing entries take every field of the response except
// content. The open document, when it is the one updated, becomes a new value
// with every field of the response except content, which keeps the locally
// held value: a slow metadata change never overwrites unsaved edits.
//
// A document that moved to another space leaves its old space's listing, and
// the new space's listing is dropped so the next fetch reloads it.
//
// Failures are returned and change nothing.
func (c *Cache) Update(ctx context.Context, patch models.DocumentPatch) (models.Document, error) {
	if err := models.RequireID("update-document", "id", patch.ID); err != nil {
		return models.Document{}, err
	}

	c.mu.Lock()
	gen := c.gen
	if patch.SpaceID.IsZero() && c.current != nil {
		patch.SpaceID = c.current.SpaceID
	}
	c.mu.Unlock()

	start := time.Now()
	updated, err := c.api.UpdateDocument(ctx, patch)
	c.observe("update", start, err)
	if err != nil {
		c.logger.Error("Failed to update document", "document_id", patch.ID, "error", err)
		return models.Document{}, fmt.Errorf("update document %s: %w", patch.ID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.gen {
		c.mergeLocked(*updated)
		c.publishLocked()
	}
	return *updated, nil
}

func (c *Cache) mergeLocked(updated models.Document) {
	entry := updated.WithoutContent()

	for spaceID, docs := range c.bySpace {
		i := indexOf(docs, updated.ID)
		if i < 0 {
			continue
		}
		if spaceID == updated.SpaceID {
			c.bySpace[spaceID] = replaceCopy(docs, i, entry)
			continue
		}
		c.bySpace[spaceID] = removeCopy(docs, updated.ID)
		delete(c.bySpace, updated.SpaceID)
		c.logger.Debug("Document moved between spaces", "document_id", updated.ID,
			"from", spaceID, "to", updated.SpaceID)
	}
	for parentID, docs := range c.byParent {
		if i := indexOf(docs, updated.ID); i >= 0 {
			c.byParent[parentID] = replaceCopy(docs, i, entry)
		}
	}

	if c.current != nil && c.current.ID == updated.ID {
		merged := updated.WithContent(c.current.Content)
		c.current = &merged
	}
}

// UpdateConfig changes the display options of the open document. It does
// nothing when no document is open. Failures are recorded and returned.
func (c *Cache) UpdateConfig(ctx context.Context, config models.Config) error {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return nil
	}
	patch := models.DocumentPatch{
		ID:      c.current.ID,
		Name:    models.Ptr(c.current.Name),
		SpaceID: c.current.SpaceID,
		Config:  &config,
	}
	c.mu.Unlock()

	if _, err := c.Update(ctx, patch); err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.err = fmt.Errorf("update document config: %w", err)
		c.publishLocked()
		return c.err
	}
	return nil
}

// SetLocalContent replaces the content of the open document with an edit that
// has not been saved. It fails when id is not the open document or when the
// content variant does not match the document type.
func (c *Cache) SetLocalContent(id models.DocumentID, content models.Content) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.ID != id {
		return fmt.Errorf("document %s is not open", id)
	}
	want := c.current.Type
	if !want.Valid() {
		want = models.TypeText
	}
	if content.Type() != want {
		return fmt.Errorf("content of type %s does not fit document type %s", content.Type(), c.current.Type)
	}
	edited := c.current.WithContent(models.Ptr(content.Encode()))
	c.current = &edited
	c.publishLocked()
	return nil
}

// SaveContent writes the open document's local content to the server.
func (c *Cache) SaveContent(ctx context.Context) error {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return fmt.Errorf("no open document")
	}
	patch := models.DocumentPatch{
		ID:      c.current.ID,
		SpaceID: c.current.SpaceID,
		Content: c.current.Content,
	}
	c.mu.Unlock()

	_, err := c.Update(ctx, patch)
	return err
}

// Delete deletes a document on the server, then removes it from every listing
// and closes it if it is open. Its own child listing is dropped too. A parent
// left without children loses its has-children mark. Failures are returned
// and change nothing.
func (c *Cache) Delete(ctx context.Context, id models.DocumentID) error {
	if err := models.RequireID("delete-document", "id", id); err != nil {
		return err
	}

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	start := time.Now()
	err := c.api.DeleteDocument(ctx, id)
	c.observe("delete", start, err)
	if err != nil {
		c.logger.Error("Failed to delete document", "document_id", id, "error", err)
		return fmt.Errorf("delete document %s: %w", id, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return nil
	}
	for spaceID, docs := range c.bySpace {
		if indexOf(docs, id) >= 0 {
			c.bySpace[spaceID] = removeCopy(docs, id)
		}
	}
	for parentID, docs := range c.byParent {
		if indexOf(docs, id) >= 0 {
			c.setChildrenLocked(parentID, removeCopy(docs, id))
		}
	}
	delete(c.byParent, id)
	delete(c.withChildren, id)

	if c.current != nil && c.current.ID == id {
		c.current = nil
		c.latest = ""
		if err := c.slot.fire(eventClear); err != nil {
			c.logger.Error("Failed to clear document slot", "error", err)
		}
	}
	c.publishLocked()
	c.logger.Debug("Deleted document", "document_id", id)
	return nil
}

// Listings are never modified in place; snapshots share them.

func indexOf(docs []models.Document, id models.DocumentID) int {
	for i, d := range docs {
		if d.ID == id {
			return i
		}
	}
	return -1
}

func appendCopy(docs []models.Document, d models.Document) []models.Document {
	out := make([]models.Document, 0, len(docs)+1)
	out = append(out, docs...)
	return append(out, d)
}

func replaceCopy(docs []models.Document, i int, d models.Document) []models.Document {
	out := make([]models.Document, len(docs))
	copy(out, docs)
	out[i] = d
	return out
}

func removeCopy(docs []models.Document, id models.DocumentID) []models.Document {
	out := make([]models.Document, 0, len(docs))
	for _, d := range docs {
		if d.ID != id {
			out = append(out, d)
		}
	}
	return out
}

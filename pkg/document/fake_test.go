package document_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/mynotes/docsync/pkg/models"
)

// fakeAPI is an in-memory gateway.DocumentAPI. Calls can be made to fail with
// failNext or to block until released with hold.
type fakeAPI struct {
	mu       sync.Mutex
	docs     map[string]models.Document
	bySpace  map[models.SpaceID][]models.Document
	children map[models.DocumentID][]models.Document
	libs     []string
	calls    map[string]int
	updates  []models.DocumentPatch
	creates  []models.CreateDocumentParams
	failures map[string]error
	holds    map[string]chan struct{}
	// echoContent replaces the content returned by UpdateDocument.
	echoContent *string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		docs:     make(map[string]models.Document),
		bySpace:  make(map[models.SpaceID][]models.Document),
		children: make(map[models.DocumentID][]models.Document),
		calls:    make(map[string]int),
		failures: make(map[string]error),
		holds:    make(map[string]chan struct{}),
	}
}

func (f *fakeAPI) put(d models.Document) models.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[d.ID.String()] = d
	if d.Slug != "" {
		f.docs[d.Slug] = d
	}
	return d
}

func (f *fakeAPI) setSpace(spaceID models.SpaceID, docs ...models.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bySpace[spaceID] = docs
}

func (f *fakeAPI) setChildren(parentID models.DocumentID, docs ...models.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.children[parentID] = docs
}

func (f *fakeAPI) failNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = err
}

// hold blocks the next call of op with key until the returned func is called.
// entered is closed once the call is blocked.
func (f *fakeAPI) hold(op, key string) (entered chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	entered = make(chan struct{})
	f.holds[op+":"+key] = gate
	f.holds[op+":"+key+":entered"] = entered
	var once sync.Once
	return entered, func() { once.Do(func() { close(gate) }) }
}

func (f *fakeAPI) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAPI) lastUpdate() (models.DocumentPatch, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updates) == 0 {
		return models.DocumentPatch{}, false
	}
	return f.updates[len(f.updates)-1], true
}

// enter records the call, waits on a hold and returns an armed failure.
func (f *fakeAPI) enter(ctx context.Context, op, key string) error {
	f.mu.Lock()
	f.calls[op]++
	gate := f.holds[op+":"+key]
	entered := f.holds[op+":"+key+":entered"]
	delete(f.holds, op+":"+key)
	delete(f.holds, op+":"+key+":entered")
	f.mu.Unlock()

	if gate != nil {
		close(entered)
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failures[op]; ok {
		delete(f.failures, op)
		return err
	}
	return nil
}

func (f *fakeAPI) GetDocumentBySlug(ctx context.Context, slug string) (*models.Document, error) {
	if err := f.enter(ctx, "get", slug); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[slug]
	if !ok {
		return nil, fmt.Errorf("document %s not found", slug)
	}
	return &d, nil
}

func (f *fakeAPI) ListDocumentsBySpace(ctx context.Context, spaceID models.SpaceID) ([]models.Document, error) {
	if err := f.enter(ctx, "space", spaceID.String()); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Document(nil), f.bySpace[spaceID]...), nil
}

func (f *fakeAPI) ListChildDocuments(ctx context.Context, spaceID models.SpaceID, parentID models.DocumentID) ([]models.Document, error) {
	if err := f.enter(ctx, "children", parentID.String()); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Document(nil), f.children[parentID]...), nil
}

func (f *fakeAPI) CreateDocument(ctx context.Context, params models.CreateDocumentParams) (*models.Document, error) {
	if err := f.enter(ctx, "create", params.Name); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, params)
	d := models.Document{
		ID:       models.DocumentID(fmt.Sprintf("new-%d", len(f.creates))),
		Name:     params.Name,
		SpaceID:  params.SpaceID,
		ParentID: params.ParentID,
		Type:     params.Type,
		Content:  params.Content,
	}
	f.docs[d.ID.String()] = d
	return &d, nil
}

func (f *fakeAPI) UpdateDocument(ctx context.Context, patch models.DocumentPatch) (*models.Document, error) {
	if err := f.enter(ctx, "update", patch.ID.String()); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, patch)
	d, ok := f.docs[patch.ID.String()]
	if !ok {
		return nil, fmt.Errorf("document %s not found", patch.ID)
	}
	if patch.Name != nil {
		d.Name = *patch.Name
	}
	if !patch.SpaceID.IsZero() {
		d.SpaceID = patch.SpaceID
	}
	if patch.Content != nil {
		d.Content = patch.Content
	}
	if patch.Config != nil {
		d.Config = *patch.Config
	}
	if f.echoContent != nil {
		d.Content = f.echoContent
	}
	f.docs[d.ID.String()] = d
	if d.Slug != "" {
		f.docs[d.Slug] = d
	}
	return &d, nil
}

func (f *fakeAPI) DeleteDocument(ctx context.Context, id models.DocumentID) error {
	if err := f.enter(ctx, "delete", id.String()); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, id.String())
	return nil
}

func (f *fakeAPI) ListCanvasLibraries(ctx context.Context) ([]string, error) {
	if err := f.enter(ctx, "libs", ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.libs...), nil
}

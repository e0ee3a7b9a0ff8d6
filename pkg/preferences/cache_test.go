package preferences_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cenkalti/backoff"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mynotes/docsync/internal/metrics"
	"github.com/mynotes/docsync/pkg/gateway"
	"github.com/mynotes/docsync/pkg/localstore"
	"github.com/mynotes/docsync/pkg/models"
	"github.com/mynotes/docsync/pkg/preferences"
)

var errBackend = errors.New("backend unavailable")

type fakePrefs struct {
	mu        sync.Mutex
	stored    *models.UserPreferences
	getErr    error
	failPush  int
	pushErr   error
	pushes    []models.UserPreferences
	attempts  int
	pushBlock chan struct{}

	// getStarted and getRelease, when set, hold GetPreferences until released.
	getStarted chan struct{}
	getRelease chan struct{}
}

func (f *fakePrefs) GetPreferences(context.Context) (*models.UserPreferences, error) {
	f.mu.Lock()
	started, release := f.getStarted, f.getRelease
	f.mu.Unlock()
	if release != nil {
		started <- struct{}{}
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.stored == nil {
		return &models.UserPreferences{}, nil
	}
	return f.stored, nil
}

func (f *fakePrefs) UpdatePreferences(ctx context.Context, prefs models.UserPreferences) error {
	f.mu.Lock()
	block := f.pushBlock
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failPush != 0 {
		f.failPush--
		return f.pushErr
	}
	f.pushes = append(f.pushes, prefs)
	f.stored = &prefs
	return nil
}

func (f *fakePrefs) snapshot() (attempts int, pushes []models.UserPreferences) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts, append([]models.UserPreferences(nil), f.pushes...)
}

func newCache(api *fakePrefs, store localstore.Store, opts ...preferences.Option) *preferences.Cache {
	opts = append([]preferences.Option{
		preferences.WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	}, opts...)
	return preferences.New(api, store, opts...)
}

func TestLoadMergesRemoteOverCurrent(t *testing.T) {
	ctx := context.Background()
	api := &fakePrefs{stored: &models.UserPreferences{UI: &models.PartialUIPreferences{
		ExpandedSpaces: []models.SpaceID{"s1"},
		SidebarWidth:   models.Ptr(0),
	}}}
	store := localstore.NewMemory()
	c := newCache(api, store)

	require.NoError(t, c.Load(ctx))

	ui := c.UI()
	assert.Equal(t, []models.SpaceID{"s1"}, ui.ExpandedSpaces)
	assert.Equal(t, []models.DocumentID{}, ui.ExpandedDocuments, "missing fields keep the default")
	assert.Equal(t, models.DefaultSidebarWidth, ui.SidebarWidth, "a zero width does not blank the default")
	assert.False(t, ui.SidebarCollapsed)
	assert.Equal(t, preferences.SourceRemote, c.Source())
	assert.NoError(t, c.Err())

	assert.Equal(t, map[string]string{
		localstore.KeyExpandedSpaces:    `["s1"]`,
		localstore.KeyExpandedDocuments: `[]`,
		localstore.KeySidebarCollapsed:  "false",
		localstore.KeySidebarWidth:      "256",
	}, store.Snapshot(), "a successful load rewrites the local copy")
}

func TestLoadWithoutUIRecordKeepsCurrent(t *testing.T) {
	ctx := context.Background()
	api := &fakePrefs{}
	c := newCache(api, localstore.NewMemory())

	require.NoError(t, c.SetSidebarWidth(ctx, 400))
	c.Wait()
	api.mu.Lock()
	api.stored = &models.UserPreferences{}
	api.mu.Unlock()

	require.NoError(t, c.Load(ctx))
	assert.Equal(t, 400, c.UI().SidebarWidth)
}

func TestLoadFallsBackToLocalStore(t *testing.T) {
	ctx := context.Background()
	store := localstore.NewMemory()
	require.NoError(t, store.Set(ctx, localstore.KeyExpandedDocuments, `["d1","d2"]`))
	require.NoError(t, store.Set(ctx, localstore.KeyExpandedSpaces, `not json`))
	require.NoError(t, store.Set(ctx, localstore.KeySidebarCollapsed, "true"))
	require.NoError(t, store.Set(ctx, localstore.KeySidebarWidth, "9000"))

	c := newCache(&fakePrefs{getErr: errBackend}, store)
	err := c.Load(ctx)
	require.ErrorIs(t, err, errBackend)
	assert.ErrorIs(t, c.Err(), errBackend)
	assert.Equal(t, preferences.SourceLocal, c.Source())

	ui := c.UI()
	assert.Equal(t, []models.DocumentID{"d1", "d2"}, ui.ExpandedDocuments)
	assert.Equal(t, []models.SpaceID{}, ui.ExpandedSpaces)
	assert.True(t, ui.SidebarCollapsed)
	assert.Equal(t, models.MaxSidebarWidth, ui.SidebarWidth)
}

func TestLoadOverlappingClearIsDropped(t *testing.T) {
	for name, getErr := range map[string]error{"remote": nil, "fallback": errBackend} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := localstore.NewMemory()
			require.NoError(t, store.Set(ctx, localstore.KeySidebarWidth, "480"))
			api := &fakePrefs{
				stored: &models.UserPreferences{UI: &models.PartialUIPreferences{
					ExpandedSpaces: []models.SpaceID{"s1"},
					SidebarWidth:   models.Ptr(400),
				}},
				getErr:     getErr,
				getStarted: make(chan struct{}),
				getRelease: make(chan struct{}),
			}
			c := newCache(api, store)

			done := make(chan error, 1)
			go func() { done <- c.Load(ctx) }()
			<-api.getStarted

			require.NoError(t, c.Clear(ctx))
			close(api.getRelease)
			require.NoError(t, <-done)

			assert.Equal(t, models.DefaultUIPreferences(), c.UI())
			assert.Equal(t, preferences.SourceDefault, c.Source())
			assert.NoError(t, c.Err())
			assert.Empty(t, store.Snapshot(), "nothing from the previous account is written back")
		})
	}
}

func TestLoadClampsRemoteWidth(t *testing.T) {
	ctx := context.Background()
	api := &fakePrefs{stored: &models.UserPreferences{UI: &models.PartialUIPreferences{
		SidebarWidth: models.Ptr(100_000),
	}}}
	store := localstore.NewMemory()
	c := newCache(api, store)

	require.NoError(t, c.Load(ctx))
	assert.Equal(t, models.MaxSidebarWidth, c.UI().SidebarWidth)
	v, _, err := store.Get(ctx, localstore.KeySidebarWidth)
	require.NoError(t, err)
	assert.Equal(t, "600", v)
}

func TestLoadFallbackWithEmptyStoreUsesDefaults(t *testing.T) {
	c := newCache(&fakePrefs{getErr: errBackend}, localstore.NewMemory())
	require.Error(t, c.Load(context.Background()))
	assert.Equal(t, models.DefaultUIPreferences(), c.UI())
}

func TestUpdateIsLocalFirst(t *testing.T) {
	ctx := context.Background()
	api := &fakePrefs{}
	store := localstore.NewMemory()
	m := metrics.New()
	c := newCache(api, store, preferences.WithMetrics(m))

	require.NoError(t, c.SetSidebarCollapsed(ctx, true))

	v, ok, err := store.Get(ctx, localstore.KeySidebarCollapsed)
	require.NoError(t, err)
	require.True(t, ok, "local copy is written before the setter returns")
	assert.Equal(t, "true", v)
	assert.True(t, c.UI().SidebarCollapsed)

	c.Wait()
	_, pushes := api.snapshot()
	require.Len(t, pushes, 1)
	require.NotNil(t, pushes[0].UI)
	require.NotNil(t, pushes[0].UI.SidebarCollapsed)
	assert.True(t, *pushes[0].UI.SidebarCollapsed)
	require.NotNil(t, pushes[0].UI.SidebarWidth, "the whole record is pushed")
	assert.Equal(t, models.DefaultSidebarWidth, *pushes[0].UI.SidebarWidth)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PreferencePushes().WithLabelValues(metrics.ResultOK)))
}

func TestPushRetriesThenSucceeds(t *testing.T) {
	ctx := context.Background()
	api := &fakePrefs{failPush: 2, pushErr: errBackend}
	c := newCache(api, localstore.NewMemory(), preferences.WithPushRetries(3))

	require.NoError(t, c.SetSidebarWidth(ctx, 300))
	c.Wait()

	attempts, pushes := api.snapshot()
	assert.Equal(t, 3, attempts)
	require.Len(t, pushes, 1)
	assert.Equal(t, 300, *pushes[0].UI.SidebarWidth)
}

func TestPushFailureKeepsLocalChange(t *testing.T) {
	ctx := context.Background()
	api := &fakePrefs{failPush: -1, pushErr: errBackend}
	store := localstore.NewMemory()
	m := metrics.New()
	c := newCache(api, store, preferences.WithPushRetries(2), preferences.WithMetrics(m))

	require.NoError(t, c.ToggleExpandedSpace(ctx, "s1"))
	c.Wait()

	attempts, pushes := api.snapshot()
	assert.Equal(t, 3, attempts, "first attempt plus two retries")
	assert.Empty(t, pushes)
	assert.Equal(t, []models.SpaceID{"s1"}, c.UI().ExpandedSpaces)
	v, _, _ := store.Get(ctx, localstore.KeyExpandedSpaces)
	assert.Equal(t, `["s1"]`, v)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PreferencePushes().WithLabelValues(metrics.ResultError)))
}

func TestPushUnauthorizedIsNotRetried(t *testing.T) {
	api := &fakePrefs{failPush: -1, pushErr: &gateway.APIError{StatusCode: 401}}
	c := newCache(api, localstore.NewMemory())

	require.NoError(t, c.SetSidebarWidth(context.Background(), 200))
	c.Wait()

	attempts, _ := api.snapshot()
	assert.Equal(t, 1, attempts)
}

func TestToggleExpanded(t *testing.T) {
	ctx := context.Background()
	c := newCache(&fakePrefs{}, localstore.NewMemory())

	require.NoError(t, c.ToggleExpandedDocument(ctx, "d1"))
	require.NoError(t, c.ToggleExpandedDocument(ctx, "d2"))
	assert.True(t, c.IsDocumentExpanded("d1"))
	require.NoError(t, c.ToggleExpandedDocument(ctx, "d1"))
	assert.False(t, c.IsDocumentExpanded("d1"))
	assert.Equal(t, []models.DocumentID{"d2"}, c.UI().ExpandedDocuments)

	require.NoError(t, c.SetExpandedSpaces(ctx, []models.SpaceID{"a", "b"}))
	require.NoError(t, c.ToggleExpandedSpace(ctx, "a"))
	assert.False(t, c.IsSpaceExpanded("a"))
	assert.True(t, c.IsSpaceExpanded("b"))
	c.Wait()
}

func TestSetSidebarWidthClamps(t *testing.T) {
	ctx := context.Background()
	c := newCache(&fakePrefs{}, localstore.NewMemory())

	require.NoError(t, c.SetSidebarWidth(ctx, 10))
	assert.Equal(t, models.MinSidebarWidth, c.UI().SidebarWidth)
	require.NoError(t, c.SetSidebarWidth(ctx, 10_000))
	assert.Equal(t, models.MaxSidebarWidth, c.UI().SidebarWidth)
	c.Wait()
}

func TestClearResetsAndDeletesLocalKeys(t *testing.T) {
	ctx := context.Background()
	store := localstore.NewMemory()
	require.NoError(t, store.Set(ctx, localstore.KeyToken, "tok"))
	api := &fakePrefs{pushBlock: make(chan struct{})}
	c := newCache(api, store)

	require.NoError(t, c.SetExpandedDocuments(ctx, []models.DocumentID{"d1"}))
	require.NoError(t, c.SetSidebarWidth(ctx, 500))

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, models.DefaultUIPreferences(), c.UI())
	assert.Equal(t, preferences.SourceDefault, c.Source())
	for _, key := range localstore.PreferenceKeys {
		_, ok, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}
	_, ok, _ := store.Get(ctx, localstore.KeyToken)
	assert.True(t, ok, "session keys are not preference keys")

	c.Wait()
	_, pushes := api.snapshot()
	assert.Empty(t, pushes, "pushes started before Clear are abandoned")
}

func TestSubscribe(t *testing.T) {
	c := newCache(&fakePrefs{}, localstore.NewMemory())
	defer c.Close()
	ch, cancel := c.Subscribe()
	defer cancel()

	require.NoError(t, c.SetSidebarCollapsed(context.Background(), true))
	s := <-ch
	assert.True(t, s.UI.SidebarCollapsed)
}

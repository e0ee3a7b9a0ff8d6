package models_test

import (
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mynotes/docsync/pkg/models"
)

func TestFavoriteListDecoding(t *testing.T) {
	t.Run("bare array", func(t *testing.T) {
		var l models.FavoriteList
		require.NoError(t, json.Unmarshal([]byte(`[{"id":"f1","user_id":"u1","document_id":"d1"}]`), &l))
		require.Len(t, l, 1)
		assert.True(t, l.Contains("d1"))
		assert.False(t, l.Contains("d2"))
	})

	t.Run("envelope", func(t *testing.T) {
		var l models.FavoriteList
		require.NoError(t, json.Unmarshal([]byte(` {"favorites":[{"id":"f1"},{"id":"f2"}]}`), &l))
		require.Len(t, l, 2)
		assert.Equal(t, models.FavoriteID("f2"), l[1].ID)
	})

	t.Run("envelope without list", func(t *testing.T) {
		var l models.FavoriteList
		require.NoError(t, json.Unmarshal([]byte(`{}`), &l))
		require.Empty(t, l)
	})
}

func TestSpaceListDecoding(t *testing.T) {
	var l models.SpaceList
	require.NoError(t, json.Unmarshal([]byte(`{"spaces":[{"id":"s1","name":"Team"}]}`), &l))
	require.Equal(t, models.SpaceID("s1"), l[0].ID)

	require.NoError(t, json.Unmarshal([]byte(`[{"id":"s2","name":"Me"}]`), &l))
	require.Equal(t, "Me", l[0].Name)
}

func TestPreferencesMerge(t *testing.T) {
	base := models.UIPreferences{
		ExpandedDocuments: []models.DocumentID{"d1"},
		ExpandedSpaces:    []models.SpaceID{"s1"},
		SidebarCollapsed:  true,
		SidebarWidth:      300,
	}

	t.Run("missing fields keep current values", func(t *testing.T) {
		got := base.Merge(&models.PartialUIPreferences{SidebarCollapsed: models.Ptr(false)})
		assert.Equal(t, []models.DocumentID{"d1"}, got.ExpandedDocuments)
		assert.Equal(t, []models.SpaceID{"s1"}, got.ExpandedSpaces)
		assert.False(t, got.SidebarCollapsed)
		assert.Equal(t, 300, got.SidebarWidth)
	})

	t.Run("zero width is ignored", func(t *testing.T) {
		got := base.Merge(&models.PartialUIPreferences{SidebarWidth: models.Ptr(0)})
		assert.Equal(t, 300, got.SidebarWidth)
	})

	t.Run("width out of range is clamped", func(t *testing.T) {
		assert.Equal(t, models.MaxSidebarWidth, base.Merge(&models.PartialUIPreferences{SidebarWidth: models.Ptr(100_000)}).SidebarWidth)
		assert.Equal(t, models.MinSidebarWidth, base.Merge(&models.PartialUIPreferences{SidebarWidth: models.Ptr(20)}).SidebarWidth)
	})

	t.Run("nil partial", func(t *testing.T) {
		assert.Equal(t, base, base.Merge(nil))
	})

	t.Run("merge does not alias", func(t *testing.T) {
		partial := &models.PartialUIPreferences{ExpandedSpaces: []models.SpaceID{"s9"}}
		got := base.Merge(partial)
		partial.ExpandedSpaces[0] = "changed"
		assert.Equal(t, models.SpaceID("s9"), got.ExpandedSpaces[0])
	})

	t.Run("wire round trip", func(t *testing.T) {
		data, err := json.Marshal(models.DefaultUIPreferences().Wire())
		require.NoError(t, err)
		assert.JSONEq(t, `{"ui":{"expanded_documents":[],"expanded_spaces":[],"sidebarCollapsed":false,"sidebarWidth":256}}`, string(data))
	})
}

func TestClampSidebarWidth(t *testing.T) {
	assert.Equal(t, models.MinSidebarWidth, models.ClampSidebarWidth(10))
	assert.Equal(t, models.MaxSidebarWidth, models.ClampSidebarWidth(4000))
	assert.Equal(t, 321, models.ClampSidebarWidth(321))
}

func TestValidationError(t *testing.T) {
	err := models.RequireID("fetch-children", "document_id", models.DocumentID(""))
	require.Error(t, err)
	require.True(t, errors.Is(err, models.ErrMissingID))
	require.Contains(t, err.Error(), "document_id")

	require.NoError(t, models.RequireID("fetch-children", "space_id", models.SpaceID("s1")))
}

func TestDocumentPatchEncoding(t *testing.T) {
	data, err := json.Marshal(models.DocumentPatch{ID: "d1", Name: models.Ptr("Renamed")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"d1","name":"Renamed"}`, string(data))
}

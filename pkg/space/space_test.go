package space_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mynotes/docsync/pkg/models"
	"github.com/mynotes/docsync/pkg/space"
)

var errBackend = errors.New("backend unavailable")

type fakeSpaces struct {
	spaces models.SpaceList
	err    error
	calls  int
}

func (f *fakeSpaces) ListSpaces(context.Context) (models.SpaceList, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append(models.SpaceList(nil), f.spaces...), nil
}

func (f *fakeSpaces) CreateSpace(_ context.Context, params models.CreateSpaceParams) (*models.Space, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	s := models.Space{ID: models.SpaceID(fmt.Sprintf("s%d", len(f.spaces)+1)), Name: params.Name, Description: params.Description}
	f.spaces = append(f.spaces, s)
	return &s, nil
}

func TestFetchAndCreate(t *testing.T) {
	ctx := context.Background()
	api := &fakeSpaces{spaces: models.SpaceList{{ID: "s1", Name: "Team"}}}
	c := space.New(api)

	require.NoError(t, c.Fetch(ctx))
	require.Len(t, c.Spaces(), 1)

	created, err := c.Create(ctx, models.CreateSpaceParams{Name: "Personal", Private: true})
	require.NoError(t, err)
	assert.Equal(t, models.SpaceID("s2"), created.ID)
	assert.Equal(t, 1, api.calls-1, "create does not refetch")

	spaces := c.Spaces()
	require.Len(t, spaces, 2)
	assert.Equal(t, "Personal", spaces[1].Name)

	got, ok := c.Get("s2")
	require.True(t, ok)
	assert.Equal(t, "Personal", got.Name)
	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestFetchFailureKeepsList(t *testing.T) {
	ctx := context.Background()
	api := &fakeSpaces{spaces: models.SpaceList{{ID: "s1", Name: "Team"}}}
	c := space.New(api)
	require.NoError(t, c.Fetch(ctx))

	api.err = errBackend
	require.ErrorIs(t, c.Fetch(ctx), errBackend)
	assert.ErrorIs(t, c.Err(), errBackend)
	assert.Len(t, c.Spaces(), 1)
	assert.False(t, c.Loading())

	_, err := c.Create(ctx, models.CreateSpaceParams{Name: "Lost"})
	require.ErrorIs(t, err, errBackend)
	assert.Len(t, c.Spaces(), 1)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	c := space.New(&fakeSpaces{spaces: models.SpaceList{{ID: "s1"}}})
	require.NoError(t, c.Fetch(ctx))

	c.Reset()
	assert.Empty(t, c.Spaces())
	assert.NoError(t, c.Err())
}

func TestSnapshotCarriesTheRecordedError(t *testing.T) {
	ctx := context.Background()
	api := &fakeSpaces{spaces: models.SpaceList{{ID: "s1", Name: "Team"}}}
	c := space.New(api)
	require.NoError(t, c.Fetch(ctx))

	api.err = errBackend
	require.Error(t, c.Fetch(ctx))

	snap := c.Snapshot()
	require.Len(t, snap.Spaces, 1)
	assert.False(t, snap.Loading)
	assert.Contains(t, snap.Err, errBackend.Error())
}

package index

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/quarrylabs/quarry/internal/errors"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := OpenRegistry("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRegistry_AddGetRoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	created := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	require.NoError(t, r.Add(ctx, Info{
		Name:         "docs",
		CollectionID: "col_abc",
		Dimension:    768,
		CreatedAt:    created,
	}))

	info, err := r.Get(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, "col_abc", info.CollectionID)
	assert.Equal(t, 768, info.Dimension)
	assert.True(t, info.CreatedAt.Equal(created))
}

func TestRegistry_UnknownNameIsIndexNotFound(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeIndexNotFound, qerrors.GetCode(err))

	err = r.Remove(context.Background(), "missing")
	assert.Equal(t, qerrors.ErrCodeIndexNotFound, qerrors.GetCode(err))
}

func TestRegistry_DuplicateNameRejected(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	info := Info{Name: "docs", CollectionID: "col_1", Dimension: 8, CreatedAt: time.Now()}
	require.NoError(t, r.Add(ctx, info))

	info.CollectionID = "col_2"
	assert.Error(t, r.Add(ctx, info))
}

func TestRegistry_ListOrdered(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	for _, name := range []string{"zebra", "alpha", "mid"} {
		require.NoError(t, r.Add(ctx, Info{
			Name: name, CollectionID: "col_" + name, Dimension: 8, CreatedAt: time.Now(),
		}))
	}

	infos, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "alpha", infos[0].Name)
	assert.Equal(t, "mid", infos[1].Name)
	assert.Equal(t, "zebra", infos[2].Name)
}

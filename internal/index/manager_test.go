package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/quarrylabs/quarry/internal/errors"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestManager_CreateOpenDestroy(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	info, err := m.Create(ctx, "docs", 8)
	require.NoError(t, err)
	assert.Equal(t, 8, info.Dimension)
	assert.NotEmpty(t, info.CollectionID)

	col, err := m.Open(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, "docs", col.Info.Name)
	assert.Equal(t, 0, col.Vector.Count())

	require.NoError(t, m.Destroy(ctx, "docs"))

	_, err = m.Open(ctx, "docs")
	assert.Equal(t, qerrors.ErrCodeIndexNotFound, qerrors.GetCode(err))
}

func TestManager_CreateDuplicateFails(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "docs", 8)
	require.NoError(t, err)

	_, err = m.Create(ctx, "docs", 8)
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeIndexExists, qerrors.GetCode(err))
}

func TestManager_CreateValidation(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "", 8)
	assert.Equal(t, qerrors.ErrCodeInvalidInput, qerrors.GetCode(err))

	_, err = m.Create(ctx, "docs", 0)
	assert.Equal(t, qerrors.ErrCodeInvalidInput, qerrors.GetCode(err))
}

func TestManager_DestroyRemovesCollectionDir(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, nil)
	require.NoError(t, err)
	defer m.Close()
	ctx := context.Background()

	info, err := m.Create(ctx, "docs", 8)
	require.NoError(t, err)

	colDir := filepath.Join(dir, "collections", info.CollectionID)
	_, err = os.Stat(colDir)
	require.NoError(t, err)

	require.NoError(t, m.Destroy(ctx, "docs"))
	_, err = os.Stat(colDir)
	assert.True(t, os.IsNotExist(err))
}

func TestManager_ReopenAfterRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	m1, err := NewManager(dir, nil)
	require.NoError(t, err)
	_, err = m1.Create(ctx, "docs", 4)
	require.NoError(t, err)

	col, err := m1.Open(ctx, "docs")
	require.NoError(t, err)
	require.NoError(t, col.Vector.Upsert(ctx, []string{"c1"}, [][]float32{{1, 0, 0, 0}}))
	require.NoError(t, col.Save())
	require.NoError(t, m1.Close())

	// Fresh manager over the same directory sees the persisted index.
	m2, err := NewManager(dir, nil)
	require.NoError(t, err)
	defer m2.Close()

	col2, err := m2.Open(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 1, col2.Vector.Count())
	assert.True(t, col2.Vector.Contains("c1"))
}

func TestManager_OpenReturnsSameCollection(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "docs", 8)
	require.NoError(t, err)

	a, err := m.Open(ctx, "docs")
	require.NoError(t, err)
	b, err := m.Open(ctx, "docs")
	require.NoError(t, err)
	assert.Same(t, a, b)
}

package snapshotindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reconbug/treekv/pkg/keyspace"
	"github.com/reconbug/treekv/pkg/storage"
)

func newTestTree(t *testing.T) *keyspace.Tree {
	t.Helper()
	dir := t.TempDir()
	engine := storage.NewEngine(dir)
	t.Cleanup(func() { _ = engine.Close() })

	tree, err := keyspace.Open(engine, "test-"+t.Name(), false)
	require.NoError(t, err)
	return tree
}

func TestLatestBeforeAnySnapshot(t *testing.T) {
	idx := Open(newTestTree(t))

	_, ok, err := idx.Latest()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecordAndLatest(t *testing.T) {
	idx := Open(newTestTree(t))

	require.NoError(t, idx.Record(SnapshotMeta{
		LastIncludedIndex: 42,
		LastIncludedTerm:  3,
		Path:              "/var/lib/treekv/snap-42.bin",
	}))

	meta, ok, err := idx.Latest()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(42), meta.LastIncludedIndex)
	assert.Equal(t, uint64(3), meta.LastIncludedTerm)
	assert.Equal(t, "/var/lib/treekv/snap-42.bin", meta.Path)
}

func TestRecordOverwritesPreviousMarker(t *testing.T) {
	idx := Open(newTestTree(t))

	require.NoError(t, idx.Record(SnapshotMeta{LastIncludedIndex: 1, LastIncludedTerm: 1, Path: "a"}))
	require.NoError(t, idx.Record(SnapshotMeta{LastIncludedIndex: 2, LastIncludedTerm: 1, Path: "b"}))

	meta, ok, err := idx.Latest()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(2), meta.LastIncludedIndex)
	assert.Equal(t, "b", meta.Path)
}

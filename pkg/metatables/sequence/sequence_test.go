package sequence

import (
	"sync"
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

func TestIncrementAndFetchStartsAtOne(t *testing.T) {
	seqs := Open(newTestTree(t))

	v, err := seqs.IncrementAndFetch("raft-term")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	v, err = seqs.IncrementAndFetch("raft-term")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v)
}

func TestIncrementAndFetchConcurrent(t *testing.T) {
	seqs := Open(newTestTree(t))

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := seqs.IncrementAndFetch("shared")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	v, err := seqs.Current("shared")
	require.NoError(t, err)
	assert.Equal(t, uint64(n), v)
}

func TestResetSeedsExplicitValue(t *testing.T) {
	seqs := Open(newTestTree(t))

	require.NoError(t, seqs.Reset("restored", 42))
	v, err := seqs.Current("restored")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), v)

	next, err := seqs.IncrementAndFetch("restored")
	require.NoError(t, err)
	assert.Equal(t, uint64(43), next)
}

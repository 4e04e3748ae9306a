package keyspace

import (
	"sort"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reconbug/treekv/internal/metrics"
	"github.com/reconbug/treekv/pkg/storage"
)

func newTestTree(t *testing.T) *Tree {
	t.Helper()
	name := "test-" + t.Name()
	AssertTestTreeName(name)

	dir := t.TempDir()
	engine := storage.NewEngine(dir)
	t.Cleanup(func() { _ = engine.Close() })

	tree, err := Open(engine, name, false)
	require.NoError(t, err)
	return tree
}

func stringsKeySpace(name string) KeySpace[string, string] {
	return NewKeySpace[string, string](name, StringKeyCodec(), StringValueCodec())
}

func insert[K, V any](t *testing.T, ks View[K, V], key K, val V) {
	t.Helper()
	_, _, err := ks.Insert(key, val)
	require.NoError(t, err)
}

func TestRoundTrip(t *testing.T) {
	tree := newTestTree(t)
	ks := KeySpaceOf(tree, stringsKeySpace("widgets"))

	insert(t, ks, "alpha", "one")

	val, ok, err := ks.Get("alpha")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "one", val)

	_, ok, err = ks.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOrderPreservation(t *testing.T) {
	tree := newTestTree(t)
	ks := KeySpaceOf(tree, NewKeySpace[uint64, string]("counters", Uint64KeyCodec(), StringValueCodec()))

	inserted := []uint64{500, 1, 9999, 42, 7}
	for _, k := range inserted {
		insert(t, ks, k, "v")
	}

	var seen []uint64
	err := ks.Range(Unbounded[uint64]().Forward(), func(k uint64, _ string) bool {
		seen = append(seen, k)
		return true
	})
	require.NoError(t, err)

	want := append([]uint64{}, inserted...)
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	assert.Equal(t, want, seen)
}

func TestReverseRange(t *testing.T) {
	tree := newTestTree(t)
	ks := KeySpaceOf(tree, NewKeySpace[uint64, string]("rev", Uint64KeyCodec(), StringValueCodec()))

	for i := uint64(0); i < 10; i++ {
		insert(t, ks, i, "v")
	}

	var seen []uint64
	err := ks.Range(Unbounded[uint64]().Reverse(), func(k uint64, _ string) bool {
		seen = append(seen, k)
		return true
	})
	require.NoError(t, err)

	for i := range seen {
		assert.Equal(t, uint64(9-i), seen[i])
	}
}

func TestRangeBounds(t *testing.T) {
	tree := newTestTree(t)
	ks := KeySpaceOf(tree, NewKeySpace[uint64, string]("bounded", Uint64KeyCodec(), StringValueCodec()))

	for i := uint64(0); i < 10; i++ {
		insert(t, ks, i, "v")
	}

	var seen []uint64
	err := ks.Range(Included[uint64](3).To(Excluded[uint64](7)).Forward(), func(k uint64, _ string) bool {
		seen = append(seen, k)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 4, 5, 6}, seen)
}

func TestLast(t *testing.T) {
	tree := newTestTree(t)
	ks := KeySpaceOf(tree, NewKeySpace[uint64, string]("lastks", Uint64KeyCodec(), StringValueCodec()))

	_, _, ok, err := ks.Last()
	require.NoError(t, err)
	assert.False(t, ok)

	for i := uint64(0); i < 5; i++ {
		insert(t, ks, i, "v")
	}

	key, _, ok, err := ks.Last()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(4), key)
}

func TestNamespaceDisjointness(t *testing.T) {
	tree := newTestTree(t)
	a := KeySpaceOf(tree, stringsKeySpace("alpha"))
	b := KeySpaceOf(tree, stringsKeySpace("beta"))

	insert(t, a, "x", "from-a")
	insert(t, b, "x", "from-b")

	av, ok, err := a.Get("x")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "from-a", av)

	bv, ok, err := b.Get("x")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "from-b", bv)

	var aKeys []string
	require.NoError(t, a.Export(func(k, _ string) bool {
		aKeys = append(aKeys, k)
		return true
	}))
	assert.Equal(t, []string{"x"}, aKeys)
}

// TestIdempotentRemove proves remove(k, flush) returns the previous value
// the first time and None (existed=false) every time after, per spec
// §4.1's "previous v or None" remove result and its idempotent-remove
// testable property.
func TestIdempotentRemove(t *testing.T) {
	tree := newTestTree(t)
	ks := KeySpaceOf(tree, stringsKeySpace("removable"))

	prev, existed, err := ks.Remove("never-existed", true)
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Empty(t, prev)

	insert(t, ks, "k", "v")

	prev, existed, err = ks.Remove("k", true)
	require.NoError(t, err)
	require.True(t, existed)
	assert.Equal(t, "v", prev)

	prev, existed, err = ks.Remove("k", true)
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Empty(t, prev)

	_, ok, err := ks.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBatchAtomicity(t *testing.T) {
	tree := newTestTree(t)
	ks := KeySpaceOf(tree, stringsKeySpace("batched"))

	err := ks.Append([]struct {
		Key string
		Val string
	}{
		{Key: "a", Val: "1"},
		{Key: "b", Val: "2"},
		{Key: "c", Val: "3"},
	})
	require.NoError(t, err)

	for _, k := range []string{"a", "b", "c"} {
		_, ok, err := ks.Get(k)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestExportCompleteness(t *testing.T) {
	tree := newTestTree(t)
	ks := KeySpaceOf(tree, stringsKeySpace("exportme"))

	want := map[string]string{"a": "1", "b": "2", "c": "3"}
	for k, v := range want {
		insert(t, ks, k, v)
	}

	got := map[string]string{}
	require.NoError(t, ks.Export(func(k, v string) bool {
		got[k] = v
		return true
	}))
	assert.Equal(t, want, got)
}

func TestExportAllCrossesKeySpaces(t *testing.T) {
	tree := newTestTree(t)
	alpha := KeySpaceOf(tree, stringsKeySpace("alpha"))
	beta := KeySpaceOf(tree, stringsKeySpace("beta"))

	insert(t, alpha, "a", "1")
	insert(t, alpha, "b", "2")
	insert(t, beta, "x", "9")

	var keys [][]byte
	tree.ExportAll(func(key, _ []byte) bool {
		keys = append(keys, append([]byte{}, key...))
		return true
	})

	// Tree.Export(name, ...) is scoped to one KeySpace and would only see
	// 2 entries for "alpha"; ExportAll must see every KeySpace's entries
	// in the same physical tree, raw tags included.
	assert.Len(t, keys, 3)
	for i := 1; i < len(keys); i++ {
		assert.LessOrEqual(t, string(keys[i-1]), string(keys[i]), "ExportAll must yield ascending byte order")
	}
}

func TestTxnUpdateAndFetchSequentialIncrements(t *testing.T) {
	tree := newTestTree(t)
	ks := NewKeySpace[string, uint64]("seqs", StringKeyCodec(), Uint64ValueCodec())

	for i := 0; i < 5; i++ {
		_, err := Txn(tree, true, func(txt *TxTree) (uint64, error) {
			v := TxKeySpaceOf(txt, ks)
			return v.UpdateAndFetch("n", func(old uint64, existed bool) (uint64, error) {
				if !existed {
					return 1, nil
				}
				return old + 1, nil
			})
		})
		require.NoError(t, err)
	}

	view := KeySpaceOf(tree, ks)
	val, ok, err := view.Get("n")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(5), val)
}

func TestTxnConcurrentIncrements(t *testing.T) {
	tree := newTestTree(t)
	ks := NewKeySpace[string, uint64]("concurrent-seqs", StringKeyCodec(), Uint64ValueCodec())

	const goroutines = 100
	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			_, err := Txn(tree, true, func(txt *TxTree) (uint64, error) {
				v := TxKeySpaceOf(txt, ks)
				return v.UpdateAndFetch("counter", func(old uint64, existed bool) (uint64, error) {
					if !existed {
						return 1, nil
					}
					return old + 1, nil
				})
			})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	view := KeySpaceOf(tree, ks)
	val, ok, err := view.Get("counter")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(goroutines), val)
}

func TestTxnAbortDiscardsWrites(t *testing.T) {
	tree := newTestTree(t)
	ks := stringsKeySpace("abortme")
	view := KeySpaceOf(tree, ks)

	sentinel := assert.AnError
	_, err := Txn(tree, true, func(txt *TxTree) (struct{}, error) {
		tv := TxKeySpaceOf(txt, ks)
		tv.Insert("never-committed", "value")
		return struct{}{}, sentinel
	})
	require.Error(t, err)

	_, ok, getErr := view.Get("never-committed")
	require.NoError(t, getErr)
	assert.False(t, ok, "writes from an aborted transaction must not be visible")
}

func TestSyncTrueWriteSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	engine := storage.NewEngine(dir)
	defer engine.Close()

	name := "test-" + t.Name()
	tree, err := Open(engine, name, true)
	require.NoError(t, err)

	ks := KeySpaceOf(tree, stringsKeySpace("synced"))
	insert(t, ks, "a", "1")

	// Reopening the same physical file must observe the durable write.
	require.NoError(t, engine.Close())
	engine2 := storage.NewEngine(dir)
	defer engine2.Close()

	tree2, err := Open(engine2, name, true)
	require.NoError(t, err)
	ks2 := KeySpaceOf(tree2, stringsKeySpace("synced"))

	val, ok, getErr := ks2.Get("a")
	require.NoError(t, getErr)
	require.True(t, ok)
	assert.Equal(t, "1", val)
}

// TestSyncFalseSuppressesFlush proves sync=false never requests a durability
// flush even when a caller passes flush=true to Remove, per spec §8
// scenario 6 ("with sync disabled, no flush call reaches the engine").
func TestSyncFalseSuppressesFlush(t *testing.T) {
	dir := t.TempDir()
	engine := storage.NewEngine(dir)
	defer engine.Close()

	name := "test-" + t.Name()
	tree, err := Open(engine, name, false)
	require.NoError(t, err)
	met := metrics.NewMetrics()
	tree.WithMetrics(met)

	ks := KeySpaceOf(tree, stringsKeySpace("unsynced"))
	insert(t, ks, "a", "1")
	_, _, err = ks.Remove("a", true)
	require.NoError(t, err)
	require.NoError(t, ks.RangeRemove(Unbounded[string](), true))

	assert.Zero(t, testutil.ToFloat64(met.TreeFlushesTotal.WithLabelValues(name)),
		"sync=false must never record a flush, regardless of the caller's flush argument")
}

func TestAssertTestTreeNamePanics(t *testing.T) {
	assert.Panics(t, func() {
		AssertTestTreeName("production-tree")
	})
}

func TestRangeRemove(t *testing.T) {
	tree := newTestTree(t)
	ks := KeySpaceOf(tree, NewKeySpace[uint64, string]("rangerm", Uint64KeyCodec(), StringValueCodec()))

	for i, v := range []string{"a", "b", "c", "d"} {
		insert(t, ks, uint64(i+1), v)
	}

	require.NoError(t, ks.RangeRemove(Included[uint64](2).To(Excluded[uint64](4)), true))

	var got []uint64
	err := ks.Range(Unbounded[uint64]().Forward(), func(k uint64, _ string) bool {
		got = append(got, k)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 4}, got)
}

func TestRangeRemoveDoesNotTouchOtherKeySpace(t *testing.T) {
	tree := newTestTree(t)
	a := KeySpaceOf(tree, NewKeySpace[uint64, string]("rma", Uint64KeyCodec(), StringValueCodec()))
	b := KeySpaceOf(tree, NewKeySpace[uint64, string]("rmb", Uint64KeyCodec(), StringValueCodec()))

	for i := uint64(1); i <= 3; i++ {
		insert(t, a, i, "a")
		insert(t, b, i, "b")
	}

	require.NoError(t, a.RangeRemove(Unbounded[uint64](), true))

	var aKeys, bKeys []uint64
	require.NoError(t, a.Range(Unbounded[uint64]().Forward(), func(k uint64, _ string) bool {
		aKeys = append(aKeys, k)
		return true
	}))
	require.NoError(t, b.Range(Unbounded[uint64]().Forward(), func(k uint64, _ string) bool {
		bKeys = append(bKeys, k)
		return true
	}))
	assert.Empty(t, aKeys)
	assert.Equal(t, []uint64{1, 2, 3}, bKeys)
}

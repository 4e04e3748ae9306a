// ABOUTME: Tree is a handle onto one physical storage.KV shared by many
// ABOUTME: disjoint KeySpaces, tagged by a length-prefixed namespace byte

package keyspace

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/reconbug/treekv/internal/logger"
	"github.com/reconbug/treekv/internal/metrics"
	"github.com/reconbug/treekv/pkg/storage"
)

// testTreeNamePrefix is the name prefix test builds are expected to use,
// mirroring spec §4.1's requirement that tree names created under test
// scaffolding be visibly distinct from production trees.
const testTreeNamePrefix = "test-"

// Tree wraps one physical storage.KV. Multiple KeySpaces can share a Tree;
// each is namespaced with a disjoint, length-prefixed byte tag so their
// key layouts never collide. A Tree may be held and used concurrently by
// multiple goroutines: every mutating method serializes through
// storage.KV.Update.
type Tree struct {
	name string
	kv   *storage.KV
	sync bool

	log *logger.Logger
	met *metrics.Metrics
}

// Open binds a Tree to the named physical tree inside engine, creating it
// on first use. sync controls whether mutating calls request a durability
// flush from the underlying engine.
func Open(engine *storage.Engine, name string, sync bool) (*Tree, error) {
	kv, err := engine.Tree(name)
	if err != nil {
		return nil, fmt.Errorf("keyspace: open tree %q: %w", name, err)
	}
	return &Tree{name: name, kv: kv, sync: sync}, nil
}

// AssertTestTreeName panics if name does not start with "test-". Test
// helpers that construct throwaway Trees should call this so a
// misconfigured test can never silently write into a production tree
// name; Go has no cfg!(test) gate, so callers opt into the check
// explicitly rather than having it applied automatically (see DESIGN.md).
func AssertTestTreeName(name string) {
	if !strings.HasPrefix(name, testTreeNamePrefix) {
		panic(fmt.Sprintf("keyspace: test tree name %q must start with %q", name, testTreeNamePrefix))
	}
}

// WithLogger attaches a scoped logger to the Tree, used for per-operation
// diagnostics.
func (t *Tree) WithLogger(log *logger.Logger) *Tree {
	if log != nil {
		t.log = log.TreeLogger(t.name)
	}
	return t
}

// WithMetrics attaches a metrics recorder to the Tree.
func (t *Tree) WithMetrics(m *metrics.Metrics) *Tree {
	t.met = m
	return t
}

// Name returns the physical tree's name.
func (t *Tree) Name() string { return t.name }

func tagKey(name string, key []byte) []byte {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(name)))

	out := make([]byte, 0, n+len(name)+len(key))
	out = append(out, lenBuf[:n]...)
	out = append(out, name...)
	out = append(out, key...)
	return out
}

func (t *Tree) observe(op string, start time.Time, err error) {
	dur := time.Since(start)
	if t.log != nil {
		t.log.LogTreeOperation(op, dur, err)
	}
	if t.met != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		t.met.RecordTreeOperation(t.name, op, status, dur)
	}
}

// Get fetches the raw bytes stored under name+key, if any.
func (t *Tree) Get(name string, key []byte) ([]byte, bool) {
	start := time.Now()
	val, ok := t.kv.Get(tagKey(name, key))
	t.observe("get", start, nil)
	return val, ok
}

// Insert stores key/val under name, overwriting any existing value, and
// returns the value it overwrote (if any), per spec §4.1's insert result
// "previous v or None". A flush is requested from the engine when
// Tree.sync is true.
func (t *Tree) Insert(name string, key, val []byte) ([]byte, bool, error) {
	start := time.Now()
	tagged := tagKey(name, key)
	var prev []byte
	var existed bool
	err := t.kv.Update(t.sync, func(tx *storage.KVTX) error {
		if old, ok := tx.Get(tagged); ok {
			prev = append([]byte{}, old...)
			existed = true
		}
		tx.Set(tagged, val)
		return nil
	})
	t.observe("insert", start, err)
	if err == nil && t.sync {
		t.recordFlush()
	}
	if err != nil {
		return nil, false, err
	}
	return prev, existed, nil
}

// Remove deletes key from name, returning the value it removed (if any),
// per spec §4.1's remove result "previous v or None". Removing an absent
// key is a no-op, never an error (spec §4.1's "idempotent remove"). A
// flush is requested from the engine only when Tree.sync ∧ flush, per the
// remove(k, flush) op table entry.
func (t *Tree) Remove(name string, key []byte, flush bool) ([]byte, bool, error) {
	start := time.Now()
	effectiveFlush := t.sync && flush
	tagged := tagKey(name, key)
	var prev []byte
	var existed bool
	err := t.kv.Update(effectiveFlush, func(tx *storage.KVTX) error {
		if old, ok := tx.Get(tagged); ok {
			prev = append([]byte{}, old...)
			existed = true
		}
		tx.Del(tagged)
		return nil
	})
	t.observe("remove", start, err)
	if err == nil && effectiveFlush {
		t.recordFlush()
	}
	if err != nil {
		return nil, false, err
	}
	return prev, existed, nil
}

// Last returns the last key/value stored under name, if any.
func (t *Tree) Last(name string) (key, val []byte, ok bool) {
	start := time.Now()
	prefix := tagKey(name, nil)

	err := t.kv.View(func(tx *storage.KVTX) error {
		c := tx.NewCursor()
		if !c.SeekLast() {
			return nil
		}
		for c.Valid() {
			k := c.Key()
			if !hasPrefix(k, prefix) {
				if lessThanPrefix(k, prefix) {
					return nil
				}
				if !c.Prev() {
					return nil
				}
				continue
			}
			key = append([]byte{}, k[len(prefix):]...)
			val = append([]byte{}, c.Val()...)
			ok = true
			return nil
		}
		return nil
	})
	t.observe("last", start, err)
	return key, val, ok
}

func hasPrefix(b, prefix []byte) bool {
	return len(b) >= len(prefix) && string(b[:len(prefix)]) == string(prefix)
}

func lessThanPrefix(b, prefix []byte) bool {
	n := len(b)
	if n > len(prefix) {
		n = len(prefix)
	}
	return string(b[:n]) < string(prefix[:n])
}

// ScanPrefix calls fn for every key under name with the given raw byte
// prefix, in ascending order, until fn returns false.
func (t *Tree) ScanPrefix(name string, prefix []byte, fn func(key, val []byte) bool) {
	full := append(tagKey(name, nil), prefix...)
	t.kv.Scan(full, func(key, val []byte) bool {
		if !hasPrefix(key, full) {
			return false
		}
		return fn(key[len(tagKey(name, nil)):], val)
	})
}

// RangeKeys calls fn with each key in br's window, in order (or reverse
// order if reverse is true).
func (t *Tree) RangeKeys(name string, br storage.ByteRange, reverse bool, fn func(key []byte) bool) {
	t.rangeScan(name, br, reverse, func(k, _ []byte) bool { return fn(k) })
}

// RangeValues calls fn with each value in r's window.
func (t *Tree) RangeValues(name string, br storage.ByteRange, reverse bool, fn func(val []byte) bool) {
	t.rangeScan(name, br, reverse, func(_, v []byte) bool { return fn(v) })
}

// RangeKVs calls fn with each key/value pair in r's window.
func (t *Tree) RangeKVs(name string, br storage.ByteRange, reverse bool, fn func(key, val []byte) bool) {
	t.rangeScan(name, br, reverse, fn)
}

func (t *Tree) rangeScan(name string, br storage.ByteRange, reverse bool, fn func(key, val []byte) bool) {
	_ = t.kv.View(func(tx *storage.KVTX) error {
		rangeScanTx(tx, name, br, reverse, fn)
		return nil
	})
}

// rangeScanTx walks name's window of br within an already-open
// transaction, so callers needing read-then-write atomicity (RangeRemove)
// can do both under one storage.KVTX instead of two separate calls into
// storage.KV that would let a concurrent writer interleave between them.
func rangeScanTx(tx *storage.KVTX, name string, br storage.ByteRange, reverse bool, fn func(key, val []byte) bool) {
	prefix := tagKey(name, nil)
	lo := append(append([]byte{}, prefix...), br.Start...)
	var hi []byte
	if br.End != nil {
		hi = append(append([]byte{}, prefix...), br.End...)
	}

	c := tx.NewCursor()

	if reverse {
		// The upper probe must stay inside this namespace even when
		// the range itself is unbounded above: seeking to the tree's
		// absolute last key could land in a different, later-sorted
		// KeySpace sharing this Tree.
		effectiveHi := hi
		if effectiveHi == nil {
			effectiveHi = successor(prefix)
		}

		if !c.SeekGE(effectiveHi) {
			if !c.SeekLast() {
				return
			}
		} else if !c.Prev() {
			return
		}

		for c.Valid() {
			k := c.Key()
			if !hasPrefix(k, prefix) {
				if lessThanPrefix(k, prefix) {
					return
				}
				// Key belongs to a later namespace sharing this
				// Tree; keep walking backward into ours.
				if !c.Prev() {
					return
				}
				continue
			}
			if string(k) < string(lo) {
				return
			}
			if !fn(append([]byte{}, k[len(prefix):]...), append([]byte{}, c.Val()...)) {
				return
			}
			if !c.Prev() {
				return
			}
		}
		return
	}

	if !c.SeekGE(lo) {
		return
	}
	for c.Valid() {
		k := c.Key()
		if !hasPrefix(k, prefix) {
			return
		}
		if hi != nil && string(k) >= string(hi) {
			return
		}
		if !fn(append([]byte{}, k[len(prefix):]...), append([]byte{}, c.Val()...)) {
			return
		}
		if !c.Next() {
			return
		}
	}
}

// RangeRemove deletes every key under name within br's window. A flush is
// requested from the engine only when Tree.sync ∧ flush, per the
// range_remove(R, flush) op table entry.
func (t *Tree) RangeRemove(name string, br storage.ByteRange, flush bool) error {
	start := time.Now()
	effectiveFlush := t.sync && flush

	// Collecting and deleting must happen under the same storage.KVTX, not
	// a View followed by a separate Update: across two calls a concurrent
	// Update could insert a key into the window between them, and this
	// operation would silently miss it.
	err := t.kv.Update(effectiveFlush, func(tx *storage.KVTX) error {
		var keys [][]byte
		rangeScanTx(tx, name, br, false, func(k, _ []byte) bool {
			keys = append(keys, append([]byte{}, k...))
			return true
		})
		for _, k := range keys {
			tx.Del(tagKey(name, k))
		}
		return nil
	})
	t.observe("range_remove", start, err)
	if err == nil && effectiveFlush {
		t.recordFlush()
	}
	return err
}

// Append stores a batch of key/value pairs under name atomically, then
// flushes if Tree.sync is true (spec §4.1: "then flushes (if sync)").
func (t *Tree) Append(name string, kvs [][2][]byte) error {
	start := time.Now()
	err := t.kv.Update(t.sync, func(tx *storage.KVTX) error {
		for _, kv := range kvs {
			tx.Set(tagKey(name, kv[0]), kv[1])
		}
		return nil
	})
	t.observe("append", start, err)
	if err == nil && t.sync {
		t.recordFlush()
	}
	return err
}

// Export calls fn for every key/value pair stored under name, in key
// order, regardless of any range window. Used for full-table snapshotting.
func (t *Tree) Export(name string, fn func(key, val []byte) bool) {
	t.ScanPrefix(name, nil, fn)
}

// ExportAll calls fn for every raw key/value pair in the entire physical
// tree, in ascending byte order, with no KeySpace filtering or tag
// stripping — the keys fn sees are exactly what is stored on disk,
// namespace tags included. Used for whole-tree snapshots that must
// capture every KeySpace sharing this Tree at once, not just one.
func (t *Tree) ExportAll(fn func(key, val []byte) bool) {
	t.kv.Scan(nil, fn)
}

func (t *Tree) recordFlush() {
	if t.met != nil {
		t.met.RecordFlush(t.name)
	}
}
